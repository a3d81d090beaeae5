// Package masterlist acquires, caches, and parses the per-game masterlist
// documents that describe known mods and their relationships. It exposes
// immutable views with the derived indices the analysis components join
// against: the name index, requirement edges, incompatibility pairs,
// load-after edges, the patch map, and the weight table.
package masterlist

import (
	"time"

	"github.com/loadstone-dev/loadstone/app/core/modlist"
)

// Entry is one known mod from the masterlist, after override merging and
// name canonicalization.
type Entry struct {
	// Name is the canonical match key.
	Name string
	// Display preserves the upstream casing.
	Display string
	// Aliases are alternate canonical names that resolve to this entry.
	Aliases []string
	// Tags categorize the mod ("texture", "script-heavy", ...). They drive
	// derived weights and the per-tag pressure breakdown.
	Tags []string
	// Requires lists canonical names that must be present and enabled.
	Requires []string
	// IncompatibleWith lists canonical names this entry cannot co-exist with.
	IncompatibleWith []string
	// LoadAfter lists canonical names that must precede this entry when both
	// are present.
	LoadAfter []string
	// Dirty marks entries shipping known identical-to-master or
	// deleted-reference records.
	Dirty bool
	// Weight is the explicit pressure score. Nil means derive from tags.
	Weight *int
	// Notes is an optional human-readable remediation hint.
	Notes string
	// MinimumGameVersion, when set, is a semver string the running game
	// version is checked against.
	MinimumGameVersion string
}

// Pair is an unordered pair of canonical names stored canonically: A is the
// lexicographically smaller name.
type Pair struct {
	A, B string
}

// MakePair builds the canonical form of an unordered name pair.
func MakePair(x, y string) Pair {
	if x <= y {
		return Pair{A: x, B: y}
	}
	return Pair{A: y, B: x}
}

// View is an immutable snapshot of one parsed masterlist. Analyses hold a
// view for their duration and must not retain it afterwards; the store hands
// out either the old or the new view around a refresh, never a partial one.
type View struct {
	// Game is the game identifier the view belongs to.
	Game string
	// Version is the document version the view was parsed from.
	Version string
	// FetchedAt is when the underlying document was obtained from upstream.
	FetchedAt time.Time
	// Degraded is set when the view was served from cache because a refresh
	// failed or because the deadline did not allow a fetch.
	Degraded bool

	// Entries maps canonical name to entry.
	Entries map[string]*Entry
	// NameIndex maps every canonical name and alias to the owning entry's
	// canonical name. Lookup returns at most one entry per name.
	NameIndex map[string]string
	// Requires maps dependent name to its sorted requirement names.
	Requires map[string][]string
	// IncompatPairs holds the symmetric incompatibilities as canonical pairs.
	IncompatPairs map[Pair]struct{}
	// LoadAfter maps a name to the sorted names that must precede it.
	LoadAfter map[string][]string
	// PatchMap maps a canonical pair to the patch that reconciles it.
	PatchMap map[Pair]string
	// Weights maps canonical name to its resolved pressure weight.
	Weights map[string]int
	// Diagnostics records entries or edges that were discarded or rewritten
	// while building the view.
	Diagnostics []string
}

// Resolve returns the canonical entry for a user-supplied name, following
// aliases. The name may be raw or canonical. The boolean reports whether the
// name is known.
func (v *View) Resolve(name string) (*Entry, bool) {
	canonical, ok := v.NameIndex[modlist.Canonicalize(name)]
	if !ok {
		return nil, false
	}
	entry, ok := v.Entries[canonical]
	return entry, ok
}

// Info summarizes the cache state of one game's masterlist.
type Info struct {
	Game      string    `json:"game"`
	Version   string    `json:"version"`
	FetchedAt time.Time `json:"fetchedAt"`
	Degraded  bool      `json:"degraded"`
}
