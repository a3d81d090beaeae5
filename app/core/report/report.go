// Package report consolidates detector, optimizer, and estimator outputs
// into the canonical analysis report and applies the size policy: errors and
// warnings are kept verbatim, info findings are capped visibly.
package report

import (
	"fmt"
	"time"

	"github.com/loadstone-dev/loadstone/app/core/conflict"
	"github.com/loadstone-dev/loadstone/app/core/games"
	"github.com/loadstone-dev/loadstone/app/core/impact"
	"github.com/loadstone-dev/loadstone/app/core/loadorder"
	"github.com/loadstone-dev/loadstone/app/core/masterlist"
	"github.com/loadstone-dev/loadstone/app/core/modlist"
)

// DefaultInfoCap is the info-finding cap applied when the caller does not
// choose one.
const DefaultInfoCap = 12

// Stats counts findings per severity. Info counts the findings the report
// carries; DroppedInfo counts the ones the cap removed.
type Stats struct {
	Errors      int `json:"errors"`
	Warnings    int `json:"warnings"`
	Info        int `json:"info"`
	DroppedInfo int `json:"droppedInfo"`
}

// FindingsBySeverity buckets sorted findings. Errors and Warnings are always
// complete; Info may be truncated, never silently.
type FindingsBySeverity struct {
	Errors   []conflict.Finding `json:"errors"`
	Warnings []conflict.Finding `json:"warnings"`
	Info     []conflict.Finding `json:"info"`
}

// CanonicalReport is the single analysis result handed to callers. Marshaled
// as JSON it is byte-identical for identical inputs, identifiers included.
type CanonicalReport struct {
	ID          string    `json:"id"`
	GeneratedAt time.Time `json:"generatedAt"`

	Game           string             `json:"game"`
	Masterlist     masterlist.Info    `json:"masterlistInfo"`
	ListSummary    modlist.Counts     `json:"listSummary"`
	Findings       FindingsBySeverity `json:"findingsBySeverity"`
	SuggestedOrder []string           `json:"suggestedOrder"`
	Impact         impact.Report      `json:"impactReport"`

	WarningsGenerated bool  `json:"warningsGenerated"`
	InfoCapped        bool  `json:"infoCapped"`
	Stats             Stats `json:"stats"`

	// PartialReason is set when the analysis stopped early; the report then
	// carries whatever completed.
	PartialReason string `json:"partialReason,omitempty"`
}

// Inputs carries everything the consolidator merges.
type Inputs struct {
	ID          string
	GeneratedAt time.Time
	Game        games.Game
	View        *masterlist.View
	List        modlist.List
	Findings    []conflict.Finding
	Order       loadorder.Result
	Impact      impact.Report
	// InfoCap bounds the info bucket; zero or negative selects
	// DefaultInfoCap.
	InfoCap int
}

// Build merges the component outputs into a canonical report.
func Build(in Inputs) CanonicalReport {
	infoCap := in.InfoCap
	if infoCap <= 0 {
		infoCap = DefaultInfoCap
	}

	merged := make([]conflict.Finding, 0, len(in.Findings)+len(in.Order.Dropped))
	merged = append(merged, in.Findings...)
	for _, edge := range in.Order.Dropped {
		merged = append(merged, droppedEdgeFinding(edge))
	}
	attachPatchNotes(merged, in.View)
	conflict.Sort(merged)

	buckets := FindingsBySeverity{
		Errors:   make([]conflict.Finding, 0),
		Warnings: make([]conflict.Finding, 0),
		Info:     make([]conflict.Finding, 0),
	}
	for _, finding := range merged {
		switch finding.Severity {
		case conflict.SeverityError:
			buckets.Errors = append(buckets.Errors, finding)
		case conflict.SeverityWarning:
			buckets.Warnings = append(buckets.Warnings, finding)
		default:
			buckets.Info = append(buckets.Info, finding)
		}
	}

	droppedInfo := 0
	if len(buckets.Info) > infoCap {
		droppedInfo = len(buckets.Info) - infoCap
		buckets.Info = buckets.Info[:infoCap]
	}

	order := in.Order.Order
	if order == nil {
		order = make([]string, 0)
	}

	return CanonicalReport{
		ID:          in.ID,
		GeneratedAt: in.GeneratedAt.UTC(),
		Game:        in.Game.ID,
		Masterlist: masterlist.Info{
			Game:      in.View.Game,
			Version:   in.View.Version,
			FetchedAt: in.View.FetchedAt,
			Degraded:  in.View.Degraded,
		},
		ListSummary:       in.List.Count(),
		Findings:          buckets,
		SuggestedOrder:    order,
		Impact:            in.Impact,
		WarningsGenerated: len(buckets.Warnings) > 0,
		InfoCapped:        droppedInfo > 0,
		Stats: Stats{
			Errors:      len(buckets.Errors),
			Warnings:    len(buckets.Warnings),
			Info:        len(buckets.Info),
			DroppedInfo: droppedInfo,
		},
	}
}

// droppedEdgeFinding converts an optimizer-dropped edge into the warning the
// report carries for it.
func droppedEdgeFinding(edge loadorder.DroppedEdge) conflict.Finding {
	return conflict.Finding{
		Kind:     conflict.KindLoadOrderViolation,
		Severity: conflict.SeverityWarning,
		Subjects: []string{edge.Earlier, edge.Later},
		Message: fmt.Sprintf("%s must load after %s, but the edge was dropped (%s).",
			edge.Later, edge.Earlier, edge.Reason),
	}
}

// attachPatchNotes copies the masterlist notes of referenced patch entries
// onto the findings that recommend them.
func attachPatchNotes(findings []conflict.Finding, view *masterlist.View) {
	for i, finding := range findings {
		if finding.Remediation == nil || finding.Remediation.PatchName == "" {
			continue
		}
		entry, ok := view.Resolve(finding.Remediation.PatchName)
		if !ok || entry.Notes == "" {
			continue
		}
		remediation := *finding.Remediation
		remediation.Notes = entry.Notes
		findings[i].Remediation = &remediation
	}
}
