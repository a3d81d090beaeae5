package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/loadstone-dev/loadstone/app/core/conflict"
	"github.com/loadstone-dev/loadstone/app/core/impact"
	"github.com/loadstone-dev/loadstone/app/core/report"
)

// renderReport writes the report: canonical JSON when asJSON is set, the
// grouped human rendering otherwise.
func renderReport(w io.Writer, result report.CanonicalReport, asJSON bool) error {
	if asJSON {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	}
	renderHuman(w, result)
	return nil
}

func renderHuman(w io.Writer, result report.CanonicalReport) {
	fmt.Fprintf(w, "Report %s for %s\n", result.ID, result.Game)

	masterlistLine := fmt.Sprintf("Masterlist %s", result.Masterlist.Version)
	if !result.Masterlist.FetchedAt.IsZero() {
		masterlistLine += fmt.Sprintf(", fetched %s", humanize.Time(result.Masterlist.FetchedAt))
	}
	if result.Masterlist.Degraded {
		masterlistLine += " (stale: the last refresh failed)"
	}
	fmt.Fprintln(w, masterlistLine)

	counts := result.ListSummary
	fmt.Fprintf(w, "List: %s entries, %d enabled (%d masters, %d plugins, %d light, %d archives)\n",
		humanize.Comma(int64(counts.Total)), counts.Enabled,
		counts.Masters, counts.Plugins, counts.Lights, counts.Archives)

	if result.PartialReason != "" {
		fmt.Fprintf(w, "\nPARTIAL REPORT: the analysis stopped early (%s); sections may be empty.\n",
			result.PartialReason)
	}

	renderFindings(w, "ERRORS", result.Findings.Errors)
	renderFindings(w, "WARNINGS", result.Findings.Warnings)
	renderFindings(w, "INFO", result.Findings.Info)
	if result.InfoCapped {
		fmt.Fprintf(w, "  ... and %d more info findings (raise --info-cap to see them)\n",
			result.Stats.DroppedInfo)
	}
	if result.Stats.Errors+result.Stats.Warnings+result.Stats.Info == 0 && result.PartialReason == "" {
		fmt.Fprintln(w, "\nNo findings. The list looks clean.")
	}

	if len(result.SuggestedOrder) > 0 {
		fmt.Fprintf(w, "\nSUGGESTED ORDER (%d entries)\n", len(result.SuggestedOrder))
		for i, name := range result.SuggestedOrder {
			fmt.Fprintf(w, "  %3d  %s\n", i+1, name)
		}
	}

	renderImpact(w, result.Impact)
}

func renderFindings(w io.Writer, label string, findings []conflict.Finding) {
	if len(findings) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s (%d)\n", label, len(findings))
	for _, finding := range findings {
		fmt.Fprintf(w, "  [%s] %s\n", finding.Kind, finding.Message)
		if finding.Remediation == nil {
			continue
		}
		if action := finding.Remediation.SuggestedAction; action != "" {
			fmt.Fprintf(w, "        fix: %s\n", action)
		}
		if notes := finding.Remediation.Notes; notes != "" {
			fmt.Fprintf(w, "        note: %s\n", notes)
		}
	}
}

func renderImpact(w io.Writer, estimate impact.Report) {
	fmt.Fprintf(w, "\nIMPACT\n")
	fmt.Fprintf(w, "  Total pressure: %d (%d plugins, %d light plugins enabled)\n",
		estimate.TotalPressure, estimate.PluginCountEnabled, estimate.LightPluginCountEnabled)

	if len(estimate.PerTagPressure) > 0 {
		tags := make([]string, 0, len(estimate.PerTagPressure))
		for tag := range estimate.PerTagPressure {
			tags = append(tags, tag)
		}
		sort.Strings(tags)
		parts := make([]string, 0, len(tags))
		for _, tag := range tags {
			parts = append(parts, fmt.Sprintf("%s %d", tag, estimate.PerTagPressure[tag]))
		}
		fmt.Fprintf(w, "  Per tag: %s\n", strings.Join(parts, ", "))
	}

	if len(estimate.Heaviest) > 0 {
		fmt.Fprintln(w, "  Heaviest:")
		for _, mod := range estimate.Heaviest {
			line := fmt.Sprintf("    %3d  %s", mod.Weight, mod.Name)
			if len(mod.Tags) > 0 {
				line += " [" + strings.Join(mod.Tags, ", ") + "]"
			}
			fmt.Fprintln(w, line)
		}
	}

	if hw := estimate.Hardware; hw != nil {
		fmt.Fprintf(w, "  Hardware: %s\n", hw.Advisory)
	}
}
