package conflict

import (
	"fmt"

	"github.com/Masterminds/semver/v3"

	"github.com/loadstone-dev/loadstone/app/core/games"
	"github.com/loadstone-dev/loadstone/app/core/masterlist"
	"github.com/loadstone-dev/loadstone/app/core/modlist"
	"github.com/loadstone-dev/loadstone/app/core/sets"
)

// Detect produces all findings for a normalized list against a masterlist
// view. It never fails: an empty view yields unknown_mod findings for every
// enabled entry plus the plugin-limit computation. The result is sorted with
// Sort and is fully deterministic for identical inputs.
func Detect(list modlist.List, view *masterlist.View, game games.Game) []Finding {
	d := &detector{
		list:     list,
		view:     view,
		game:     game,
		presence: make(map[string]modlist.Record, len(list.Records)),
		enabled:  make(sets.Set, len(list.Records)),
	}

	// Presence and enablement are keyed by resolved name so that records
	// listed under an alias join against the same edges as the canonical
	// entry.
	for _, record := range list.Records {
		key := d.resolveKey(record.Name)
		if _, taken := d.presence[key]; !taken {
			d.presence[key] = record
		}
		if record.Enabled {
			d.enabled.Add(key)
		}
	}

	return d.run()
}

type detector struct {
	list modlist.List
	view *masterlist.View
	game games.Game

	// presence maps resolved names to the first record carrying them,
	// enabled or not.
	presence map[string]modlist.Record
	// enabled holds the resolved names of enabled records.
	enabled sets.Set

	findings []Finding
}

func (d *detector) run() []Finding {
	seen := make(sets.Set, len(d.list.Records))
	for _, record := range d.list.Records {
		if !record.Enabled {
			continue
		}
		key := d.resolveKey(record.Name)
		if seen.Has(key) {
			continue
		}
		seen.Add(key)

		entry, known := d.view.Entries[key]
		if !known {
			d.add(Finding{
				Kind:     KindUnknownMod,
				Severity: SeverityInfo,
				Subjects: []string{record.Display},
				Message:  fmt.Sprintf("%s is not in the masterlist.", record.Display),
			})
			continue
		}

		d.checkRequirements(record, key)
		d.checkLoadAfter(record, key)
		d.checkDirty(record, entry, key)
		d.checkGameVersion(record, entry)
	}

	d.checkIncompatibilities()
	d.checkDuplicates()
	d.checkLimits()

	Sort(d.findings)
	return d.findings
}

// resolveKey maps a canonical record name to the owning masterlist entry's
// canonical name, following aliases. Unknown names resolve to themselves.
func (d *detector) resolveKey(name string) string {
	if canonical, ok := d.view.NameIndex[name]; ok {
		return canonical
	}
	return name
}

// displayName prefers the user's casing, then the masterlist's, then the
// canonical name itself.
func (d *detector) displayName(key string) string {
	if record, ok := d.presence[key]; ok {
		return record.Display
	}
	if entry, ok := d.view.Entries[key]; ok {
		return entry.Display
	}
	return key
}

func (d *detector) checkRequirements(record modlist.Record, key string) {
	for _, required := range d.view.Requires[key] {
		if d.enabled.Has(required) {
			continue
		}
		display := d.displayName(required)
		if _, present := d.presence[required]; present {
			d.add(Finding{
				Kind:     KindMissingRequirement,
				Severity: SeverityWarning,
				Subjects: []string{record.Display, display},
				Message:  fmt.Sprintf("%s requires %s, which is present but disabled.", record.Display, display),
				Remediation: &Remediation{
					SuggestedAction: fmt.Sprintf("Enable %s.", display),
				},
			})
			continue
		}
		d.add(Finding{
			Kind:     KindMissingRequirement,
			Severity: SeverityError,
			Subjects: []string{record.Display, display},
			Message:  fmt.Sprintf("%s requires %s, which is not in the list.", record.Display, display),
			Remediation: &Remediation{
				SuggestedAction: fmt.Sprintf("Install and enable %s.", display),
			},
		})
	}
}

func (d *detector) checkLoadAfter(record modlist.Record, key string) {
	for _, earlier := range d.view.LoadAfter[key] {
		if !d.enabled.Has(earlier) {
			continue
		}
		predecessor := d.presence[earlier]
		if record.Position > predecessor.Position {
			continue
		}
		// Master pairs are re-sorted implicitly by the optimizer, so an
		// inversion between two masters is not worth a finding.
		if record.Ext == modlist.ExtMaster && predecessor.Ext == modlist.ExtMaster {
			continue
		}
		d.add(Finding{
			Kind:      KindLoadOrderViolation,
			Severity:  SeverityWarning,
			Subjects:  []string{predecessor.Display, record.Display},
			Positions: []int{predecessor.Position, record.Position},
			Message:   fmt.Sprintf("%s must load after %s.", record.Display, predecessor.Display),
			Remediation: &Remediation{
				SuggestedAction: "Apply the suggested order.",
			},
		})
	}
}

func (d *detector) checkDirty(record modlist.Record, entry *masterlist.Entry, key string) {
	if !entry.Dirty || d.hasEnabledPatchFor(key) {
		return
	}
	action := entry.Notes
	if action == "" {
		action = "Clean the plugin with xEdit."
	}
	d.add(Finding{
		Kind:        KindDirtyEdit,
		Severity:    SeverityInfo,
		Subjects:    []string{record.Display},
		Message:     fmt.Sprintf("%s ships known dirty edits.", record.Display),
		Remediation: &Remediation{SuggestedAction: action},
	})
}

// hasEnabledPatchFor reports whether any enabled list entry is declared as a
// patch for a pair involving the given name.
func (d *detector) hasEnabledPatchFor(name string) bool {
	for pair, patch := range d.view.PatchMap {
		if pair.A != name && pair.B != name {
			continue
		}
		if d.enabled.Has(patch) {
			return true
		}
	}
	return false
}

func (d *detector) checkGameVersion(record modlist.Record, entry *masterlist.Entry) {
	if entry.MinimumGameVersion == "" || d.game.GameVersion == "" {
		return
	}
	minimum, err := semver.NewVersion(entry.MinimumGameVersion)
	if err != nil {
		// The view builder drops unparseable declarations.
		return
	}
	current, err := semver.NewVersion(d.game.GameVersion)
	if err != nil {
		return
	}
	if current.LessThan(minimum) {
		d.add(Finding{
			Kind:     KindVersionMismatch,
			Severity: SeverityWarning,
			Subjects: []string{record.Display},
			Message: fmt.Sprintf("%s requires game version %s or newer (running %s).",
				record.Display, entry.MinimumGameVersion, d.game.GameVersion),
		})
	}
}

func (d *detector) checkIncompatibilities() {
	for pair := range d.view.IncompatPairs {
		if !d.enabled.Has(pair.A) || !d.enabled.Has(pair.B) {
			continue
		}
		displayA, displayB := d.displayName(pair.A), d.displayName(pair.B)
		finding := Finding{
			Kind:     KindIncompatible,
			Severity: SeverityError,
			Subjects: []string{displayA, displayB},
			Message:  fmt.Sprintf("%s and %s are incompatible.", displayA, displayB),
		}
		if patch, ok := d.view.PatchMap[pair]; ok {
			patchDisplay := d.displayName(patch)
			remediation := &Remediation{PatchName: patchDisplay}
			if d.enabled.Has(patch) {
				finding.Severity = SeverityInfo
				finding.Message = fmt.Sprintf("%s and %s are incompatible, but %s reconciles them.",
					displayA, displayB, patchDisplay)
			} else {
				remediation.SuggestedAction = fmt.Sprintf("Enable %s to reconcile the pair.", patchDisplay)
			}
			finding.Remediation = remediation
		}
		d.add(finding)
	}
}

func (d *detector) checkDuplicates() {
	for _, duplicate := range d.list.Duplicates {
		display := d.displayName(d.resolveKey(duplicate.Name))
		d.add(Finding{
			Kind:      KindDuplicate,
			Severity:  SeverityInfo,
			Subjects:  []string{display},
			Positions: []int{duplicate.First, duplicate.Second},
			Message:   fmt.Sprintf("%s appears twice; the second occurrence is ignored.", display),
		})
	}
}

func (d *detector) checkLimits() {
	plugins, lights := 0, 0
	var lastPlugin, lastLight string
	for _, record := range d.list.Records {
		if !record.Enabled {
			continue
		}
		switch record.Ext {
		case modlist.ExtPlugin, modlist.ExtMaster, modlist.ExtUnknown:
			plugins++
			lastPlugin = record.Display
		case modlist.ExtLight:
			lights++
			lastLight = record.Display
		}
	}

	d.limitFinding(plugins, d.game.PluginSoft, d.game.PluginHard, lastPlugin,
		"plugins", "Disable plugins or convert eligible ones to light plugins.")
	d.limitFinding(lights, d.game.LightSoft, d.game.LightHard, lastLight,
		"light plugins", "Disable some light plugins.")
}

// limitFinding emits at most one finding per class; reaching the hard limit
// supersedes the soft warning.
func (d *detector) limitFinding(count, soft, hard int, subject, class, action string) {
	switch {
	case hard > 0 && count >= hard:
		d.add(Finding{
			Kind:        KindPluginLimit,
			Severity:    SeverityError,
			Subjects:    []string{subject},
			Message:     fmt.Sprintf("%d enabled %s reach the hard limit of %d; the game cannot load all of them.", count, class, hard),
			Remediation: &Remediation{SuggestedAction: action},
		})
	case soft > 0 && count >= soft:
		d.add(Finding{
			Kind:     KindPluginLimit,
			Severity: SeverityWarning,
			Subjects: []string{subject},
			Message:  fmt.Sprintf("%d enabled %s reach the soft limit of %d.", count, class, soft),
		})
	}
}

func (d *detector) add(finding Finding) {
	d.findings = append(d.findings, finding)
}
