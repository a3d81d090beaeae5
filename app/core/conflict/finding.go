// Package conflict joins a normalized mod list against a masterlist view and
// emits severity-classified findings: incompatibilities, missing
// requirements, load-order inversions, dirty edits, duplicates, plugin-limit
// pressure, version mismatches, and unknown mods.
package conflict

import (
	"sort"
	"strings"

	"github.com/loadstone-dev/loadstone/app/core/modlist"
)

// Kind identifies what a finding detected.
type Kind string

const (
	KindIncompatible       Kind = "incompatible"
	KindMissingRequirement Kind = "missing_requirement"
	KindLoadOrderViolation Kind = "load_order_violation"
	KindDirtyEdit          Kind = "dirty_edit"
	KindDuplicate          Kind = "duplicate"
	KindPluginLimit        Kind = "plugin_limit_pressure"
	KindVersionMismatch    Kind = "version_mismatch"
	KindUnknownMod         Kind = "unknown_mod"
)

// Severity classifies how serious a finding is.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// severityRank orders severities for sorting; lower sorts first.
var severityRank = map[Severity]int{
	SeverityError:   0,
	SeverityWarning: 1,
	SeverityInfo:    2,
}

// Rank returns the sort rank of a severity. Errors rank lowest (first).
func (s Severity) Rank() int {
	rank, ok := severityRank[s]
	if !ok {
		return len(severityRank)
	}
	return rank
}

// Remediation is a structured hint attached to a finding.
type Remediation struct {
	// PatchName names the reconciling patch from the masterlist's patch map.
	PatchName string `json:"patchName,omitempty"`
	// SuggestedAction is a short imperative the user can act on.
	SuggestedAction string `json:"suggestedAction,omitempty"`
	// Notes carries the masterlist notes of a referenced patch entry.
	Notes string `json:"notes,omitempty"`
}

// Finding is a single detection outcome. Subjects use the display form of
// the names involved; every error finding names at least one entry that is
// present and enabled in the analyzed list.
type Finding struct {
	Kind     Kind     `json:"kind"`
	Severity Severity `json:"severity"`
	Subjects []string `json:"subjects"`
	Message  string   `json:"message"`
	// Positions carries user-list positions where they matter: exactly two
	// for duplicates, the (predecessor, successor) pair for load-order
	// violations.
	Positions   []int        `json:"positions,omitempty"`
	Remediation *Remediation `json:"remediation,omitempty"`
}

// Sort orders findings deterministically: severity (errors first), then the
// first subject's canonical name, then kind. Remaining ties fall back to the
// full subject list and the message so the order is total.
func Sort(findings []Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		return less(findings[i], findings[j])
	})
}

func less(a, b Finding) bool {
	if ra, rb := a.Severity.Rank(), b.Severity.Rank(); ra != rb {
		return ra < rb
	}
	if as, bs := sortSubject(a), sortSubject(b); as != bs {
		return as < bs
	}
	if a.Kind != b.Kind {
		return a.Kind < b.Kind
	}
	if aj, bj := strings.Join(a.Subjects, "\x00"), strings.Join(b.Subjects, "\x00"); aj != bj {
		return aj < bj
	}
	return a.Message < b.Message
}

func sortSubject(f Finding) string {
	if len(f.Subjects) == 0 {
		return ""
	}
	return modlist.Canonicalize(f.Subjects[0])
}
