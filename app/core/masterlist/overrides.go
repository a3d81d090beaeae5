package masterlist

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/titanous/json5"

	"github.com/loadstone-dev/loadstone/app/core/modlist"
)

// overridesVersion is the only override document version this build accepts.
const overridesVersion = 1

// OverrideDocument is a curated local adjustment layer merged over upstream
// masterlist data. The file format is JSON5 so curators can comment. Scalar
// fields replace the upstream value; list fields are adjusted through
// "+field" (add) and "-field" (remove) action keys.
type OverrideDocument struct {
	Version int
	Entries map[string]OverrideRule
}

// OverrideRule adjusts or introduces a single entry.
type OverrideRule struct {
	Weight             *float64        `json:"weight"`
	Dirty              *bool           `json:"dirty"`
	Notes              *string         `json:"notes"`
	MinimumGameVersion *string         `json:"minimum_game_version"`
	AddAliases         []string        `json:"+aliases"`
	RemoveAliases      []string        `json:"-aliases"`
	AddTags            []string        `json:"+tags"`
	RemoveTags         []string        `json:"-tags"`
	AddRequires        []string        `json:"+requires"`
	RemoveRequires     []string        `json:"-requires"`
	AddIncompatible    []string        `json:"+incompatible_with"`
	RemoveIncompatible []string        `json:"-incompatible_with"`
	AddLoadAfter       []string        `json:"+load_after"`
	RemoveLoadAfter    []string        `json:"-load_after"`
	AddPatches         []DocumentPatch `json:"+patches"`
}

var allowedRuleKeys = map[string]struct{}{
	"weight": {}, "dirty": {}, "notes": {}, "minimum_game_version": {},
	"+aliases": {}, "-aliases": {},
	"+tags": {}, "-tags": {},
	"+requires": {}, "-requires": {},
	"+incompatible_with": {}, "-incompatible_with": {},
	"+load_after": {}, "-load_after": {},
	"+patches": {},
}

type rawOverrideDocument struct {
	Version int                     `json:"version"`
	Entries map[string]OverrideRule `json:"entries"`
}

// DecodeOverrides parses and validates an override document. Unknown rule
// keys and malformed values are rejected, all violations at once, so a
// curator sees every mistake in one pass.
func DecodeOverrides(data []byte) (*OverrideDocument, error) {
	var raw rawOverrideDocument
	if err := json5.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding overrides file: %w", err)
	}
	if raw.Version != overridesVersion {
		return nil, fmt.Errorf("unsupported overrides version %d (want %d)", raw.Version, overridesVersion)
	}

	// A second permissive pass catches keys the typed decode silently drops.
	var shape struct {
		Version int                       `json:"version"`
		Entries map[string]map[string]any `json:"entries"`
	}
	if err := json5.Unmarshal(data, &shape); err != nil {
		return nil, fmt.Errorf("decoding overrides file: %w", err)
	}

	var result *multierror.Error
	for name, rule := range shape.Entries {
		keys := make([]string, 0, len(rule))
		for key := range rule {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			if _, ok := allowedRuleKeys[key]; !ok {
				result = multierror.Append(result, fmt.Errorf("entry %q: unknown rule key %q", name, key))
			}
		}
	}
	for name, rule := range raw.Entries {
		if rule.Weight != nil && (*rule.Weight < 0 || *rule.Weight != math.Trunc(*rule.Weight)) {
			result = multierror.Append(result, fmt.Errorf("entry %q: weight must be a non-negative integer", name))
		}
		for i, patch := range rule.AddPatches {
			if len(patch.Pair) != 2 || patch.Name == "" {
				result = multierror.Append(result, fmt.Errorf("entry %q: +patches[%d] must carry a two-name pair and a name", name, i))
			}
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}

	return &OverrideDocument{Version: raw.Version, Entries: raw.Entries}, nil
}

// ApplyOverrides merges an override document into a decoded upstream
// document in place. Entries are matched by canonical name; rules naming an
// unknown entry introduce it. Later layers win, so callers apply the
// embedded baseline first and the on-disk file second.
func ApplyOverrides(doc *Document, overrides *OverrideDocument) {
	if overrides == nil || len(overrides.Entries) == 0 {
		return
	}

	index := make(map[string]int, len(doc.Entries))
	for i, entry := range doc.Entries {
		index[modlist.Canonicalize(entry.Name)] = i
	}

	names := make([]string, 0, len(overrides.Entries))
	for name := range overrides.Entries {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		rule := overrides.Entries[name]
		canonical := modlist.Canonicalize(name)
		if canonical == "" {
			continue
		}

		i, ok := index[canonical]
		if !ok {
			doc.Entries = append(doc.Entries, DocumentEntry{Name: strings.TrimSpace(name)})
			i = len(doc.Entries) - 1
			index[canonical] = i
		}
		applyRule(&doc.Entries[i], rule)
	}
}

func applyRule(entry *DocumentEntry, rule OverrideRule) {
	if rule.Weight != nil {
		weight := int(*rule.Weight)
		entry.Weight = &weight
	}
	if rule.Dirty != nil {
		entry.Dirty = *rule.Dirty
	}
	if rule.Notes != nil {
		entry.Notes = *rule.Notes
	}
	if rule.MinimumGameVersion != nil {
		entry.MinimumGameVersion = *rule.MinimumGameVersion
	}

	entry.Aliases = adjustList(entry.Aliases, rule.AddAliases, rule.RemoveAliases)
	entry.Tags = adjustList(entry.Tags, rule.AddTags, rule.RemoveTags)
	entry.Requires = adjustList(entry.Requires, rule.AddRequires, rule.RemoveRequires)
	entry.IncompatibleWith = adjustList(entry.IncompatibleWith, rule.AddIncompatible, rule.RemoveIncompatible)
	entry.LoadAfter = adjustList(entry.LoadAfter, rule.AddLoadAfter, rule.RemoveLoadAfter)
	entry.Patches = append(entry.Patches, rule.AddPatches...)
}

// adjustList applies add and remove actions. Matching is canonical so
// curators do not have to mirror upstream casing.
func adjustList(list, add, remove []string) []string {
	removeSet := make(map[string]struct{}, len(remove))
	for _, item := range remove {
		removeSet[modlist.Canonicalize(item)] = struct{}{}
	}

	result := make([]string, 0, len(list)+len(add))
	seen := make(map[string]struct{}, len(list)+len(add))
	for _, item := range list {
		canonical := modlist.Canonicalize(item)
		if _, drop := removeSet[canonical]; drop {
			continue
		}
		if _, dup := seen[canonical]; dup {
			continue
		}
		seen[canonical] = struct{}{}
		result = append(result, item)
	}
	for _, item := range add {
		canonical := modlist.Canonicalize(item)
		if _, drop := removeSet[canonical]; drop {
			continue
		}
		if _, dup := seen[canonical]; dup {
			continue
		}
		seen[canonical] = struct{}{}
		result = append(result, item)
	}
	return result
}
