package masterlist

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"go.uber.org/zap"

	"github.com/loadstone-dev/loadstone/app/core/modlist"
	"github.com/loadstone-dev/loadstone/app/core/sets"
)

// BuildView canonicalizes a validated document into an immutable view with
// all derived indices. Malformed pieces of individual entries are dropped
// and recorded as diagnostics; BuildView itself never fails.
func BuildView(game string, doc *Document, fetchedAt time.Time, log *zap.Logger) *View {
	b := &viewBuilder{
		log: log,
		view: &View{
			Game:          game,
			Version:       doc.Version,
			FetchedAt:     fetchedAt,
			Entries:       make(map[string]*Entry),
			NameIndex:     make(map[string]string),
			Requires:      make(map[string][]string),
			IncompatPairs: make(map[Pair]struct{}),
			LoadAfter:     make(map[string][]string),
			PatchMap:      make(map[Pair]string),
			Weights:       make(map[string]int),
		},
		patches: make(map[Pair]string),
	}

	for i := range doc.Entries {
		b.addEntry(&doc.Entries[i])
	}
	b.resolveReferences()
	b.breakLoadAfterCycles()
	b.finish()

	return b.view
}

type viewBuilder struct {
	log     *zap.Logger
	view    *View
	patches map[Pair]string
}

func (b *viewBuilder) diag(format string, args ...any) {
	message := fmt.Sprintf(format, args...)
	b.view.Diagnostics = append(b.view.Diagnostics, message)
	b.log.Warn("Masterlist: " + message)
}

// addEntry inserts a document entry, collapsing it into an existing entry
// when its name or one of its aliases already resolves. The first-seen
// canonical name wins display.
func (b *viewBuilder) addEntry(raw *DocumentEntry) {
	name := modlist.Canonicalize(raw.Name)
	if name == "" {
		return
	}

	keys := append([]string{name}, canonicalizeAll(raw.Aliases)...)
	entry := b.findExisting(keys)
	if entry == nil {
		entry = &Entry{Name: name, Display: strings.TrimSpace(raw.Name)}
		b.view.Entries[name] = entry
	} else if entry.Name != name {
		b.diag("entry %q collapses into %q", raw.Name, entry.Name)
	}

	mergeDocumentEntry(entry, raw)

	for _, key := range keys {
		if key == "" {
			continue
		}
		if owner, taken := b.view.NameIndex[key]; taken && owner != entry.Name {
			b.diag("alias %q of %q already names %q", key, entry.Name, owner)
			continue
		}
		b.view.NameIndex[key] = entry.Name
		if key != entry.Name {
			entry.Aliases = appendMissing(entry.Aliases, key)
		}
	}

	for _, patch := range raw.Patches {
		if len(patch.Pair) != 2 || patch.Name == "" {
			continue
		}
		pair := MakePair(modlist.Canonicalize(patch.Pair[0]), modlist.Canonicalize(patch.Pair[1]))
		if pair.A == pair.B {
			b.diag("patch %q reconciles %q with itself, discarded", patch.Name, pair.A)
			continue
		}
		b.patches[pair] = modlist.Canonicalize(patch.Name)
	}
}

func (b *viewBuilder) findExisting(keys []string) *Entry {
	for _, key := range keys {
		if key == "" {
			continue
		}
		if canonical, ok := b.view.NameIndex[key]; ok {
			return b.view.Entries[canonical]
		}
	}
	return nil
}

// mergeDocumentEntry folds raw fields into the entry: list fields union,
// scalar fields keep the first declared value.
func mergeDocumentEntry(entry *Entry, raw *DocumentEntry) {
	entry.Tags = appendMissingAll(entry.Tags, canonicalizeTags(raw.Tags))
	entry.Requires = appendMissingAll(entry.Requires, canonicalizeAll(raw.Requires))
	entry.IncompatibleWith = appendMissingAll(entry.IncompatibleWith, canonicalizeAll(raw.IncompatibleWith))
	entry.LoadAfter = appendMissingAll(entry.LoadAfter, canonicalizeAll(raw.LoadAfter))
	entry.Dirty = entry.Dirty || raw.Dirty
	if entry.Weight == nil && raw.Weight != nil {
		weight := *raw.Weight
		entry.Weight = &weight
	}
	if entry.Notes == "" {
		entry.Notes = strings.TrimSpace(raw.Notes)
	}
	if entry.MinimumGameVersion == "" {
		entry.MinimumGameVersion = strings.TrimSpace(raw.MinimumGameVersion)
	}
}

// resolveReferences rewrites requirement, incompatibility, load-after, and
// patch references through the name index so aliases point at canonical
// names, and discards self references.
func (b *viewBuilder) resolveReferences() {
	for _, name := range b.sortedEntryNames() {
		entry := b.view.Entries[name]

		entry.Requires = b.resolveList(entry.Requires)
		entry.Requires = b.dropSelf(entry.Requires, name, "requirement")
		entry.IncompatibleWith = b.resolveList(entry.IncompatibleWith)
		entry.IncompatibleWith = b.dropSelf(entry.IncompatibleWith, name, "incompatibility")
		entry.LoadAfter = b.resolveList(entry.LoadAfter)
		entry.LoadAfter = b.dropSelf(entry.LoadAfter, name, "load-after rule")

		if len(entry.Requires) > 0 {
			b.view.Requires[name] = entry.Requires
		}
		if len(entry.LoadAfter) > 0 {
			b.view.LoadAfter[name] = append([]string(nil), entry.LoadAfter...)
		}
		for _, other := range entry.IncompatibleWith {
			b.view.IncompatPairs[MakePair(name, other)] = struct{}{}
		}
	}

	for pair, patch := range b.patches {
		resolved := MakePair(b.resolveName(pair.A), b.resolveName(pair.B))
		b.view.PatchMap[resolved] = b.resolveName(patch)
	}
}

func (b *viewBuilder) resolveName(name string) string {
	if canonical, ok := b.view.NameIndex[name]; ok {
		return canonical
	}
	return name
}

func (b *viewBuilder) resolveList(names []string) []string {
	resolved := make([]string, 0, len(names))
	for _, name := range names {
		resolved = appendMissing(resolved, b.resolveName(name))
	}
	sort.Strings(resolved)
	return resolved
}

func (b *viewBuilder) dropSelf(names []string, self, what string) []string {
	kept := names[:0]
	for _, name := range names {
		if name == self {
			b.diag("%q declares a self-referential %s, discarded", self, what)
			continue
		}
		kept = append(kept, name)
	}
	return kept
}

// breakLoadAfterCycles drops edges until the load-after graph is acyclic.
// Within a detected cycle the edge whose target name sorts last is dropped,
// which makes the tie-break reproducible for identical documents.
func (b *viewBuilder) breakLoadAfterCycles() {
	for {
		cycle := findCycle(b.view.LoadAfter)
		if len(cycle) == 0 {
			return
		}

		members := make(sets.Set, len(cycle))
		drop := cycle[0]
		for _, edge := range cycle {
			members.Add(edge.later)
			if edge.earlier > drop.earlier || (edge.earlier == drop.earlier && edge.later > drop.later) {
				drop = edge
			}
		}
		b.log.Debug("Masterlist: load-after cycle detected", zap.Stringer("members", sets.Format(members)))

		b.view.LoadAfter[drop.later] = removeString(b.view.LoadAfter[drop.later], drop.earlier)
		if len(b.view.LoadAfter[drop.later]) == 0 {
			delete(b.view.LoadAfter, drop.later)
		}
		if entry, ok := b.view.Entries[drop.later]; ok {
			entry.LoadAfter = removeString(entry.LoadAfter, drop.earlier)
		}
		b.diag("load-after cycle broken by dropping edge %q -> %q", drop.later, drop.earlier)
	}
}

type loadEdge struct {
	later, earlier string
}

// findCycle walks the load-after graph depth-first and returns the edges of
// the first cycle found, or nil. Nodes are visited in sorted order so the
// same document always yields the same cycle first.
func findCycle(loadAfter map[string][]string) []loadEdge {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(loadAfter))

	starts := make([]string, 0, len(loadAfter))
	for name := range loadAfter {
		starts = append(starts, name)
	}
	sort.Strings(starts)

	var stack []string
	var cycle []loadEdge

	var visit func(node string) bool
	visit = func(node string) bool {
		color[node] = gray
		stack = append(stack, node)
		for _, next := range loadAfter[node] {
			switch color[next] {
			case gray:
				// Found a back edge; collect the cycle from the stack.
				start := len(stack) - 1
				for start >= 0 && stack[start] != next {
					start--
				}
				for i := start; i < len(stack)-1; i++ {
					cycle = append(cycle, loadEdge{later: stack[i], earlier: stack[i+1]})
				}
				cycle = append(cycle, loadEdge{later: node, earlier: next})
				return true
			case white:
				if visit(next) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[node] = black
		return false
	}

	for _, start := range starts {
		if color[start] == white {
			if visit(start) {
				return cycle
			}
		}
	}
	return nil
}

// finish sorts every derived list, drops unparseable version constraints,
// and materializes the weight table.
func (b *viewBuilder) finish() {
	for _, name := range b.sortedEntryNames() {
		entry := b.view.Entries[name]
		sort.Strings(entry.Aliases)
		sort.Strings(entry.Tags)
		sort.Strings(entry.Requires)
		sort.Strings(entry.IncompatibleWith)
		sort.Strings(entry.LoadAfter)
		if entry.MinimumGameVersion != "" {
			if _, err := semver.NewVersion(entry.MinimumGameVersion); err != nil {
				b.diag("%q declares unparseable minimum_game_version %q, discarded", name, entry.MinimumGameVersion)
				entry.MinimumGameVersion = ""
			}
		}
		b.view.Weights[name] = deriveWeight(entry)
	}
	for name := range b.view.LoadAfter {
		sort.Strings(b.view.LoadAfter[name])
	}
}

func (b *viewBuilder) sortedEntryNames() []string {
	names := make([]string, 0, len(b.view.Entries))
	for name := range b.view.Entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func canonicalizeAll(names []string) []string {
	out := make([]string, 0, len(names))
	for _, name := range names {
		if canonical := modlist.Canonicalize(name); canonical != "" {
			out = append(out, canonical)
		}
	}
	return out
}

func canonicalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if t := strings.ToLower(strings.TrimSpace(tag)); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func appendMissing(list []string, item string) []string {
	for _, existing := range list {
		if existing == item {
			return list
		}
	}
	return append(list, item)
}

func appendMissingAll(list []string, items []string) []string {
	for _, item := range items {
		list = appendMissing(list, item)
	}
	return list
}

func removeString(list []string, item string) []string {
	kept := make([]string, 0, len(list))
	for _, existing := range list {
		if existing != item {
			kept = append(kept, existing)
		}
	}
	return kept
}
