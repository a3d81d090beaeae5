// Package ui provides the interactive terminal browser for analysis reports.
// It is read-only: nothing the user does here mutates the report or the
// cache, and quitting leaves no state behind.
package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/loadstone-dev/loadstone/app/core/conflict"
	"github.com/loadstone-dev/loadstone/app/core/impact"
	"github.com/loadstone-dev/loadstone/app/core/report"
)

// Browse opens the report browser and blocks until the user quits.
func Browse(result report.CanonicalReport) error {
	return newBrowser(result).app.Run()
}

type browser struct {
	app      *tview.Application
	findings *FindingsTable
	order    *tview.TextView
	impact   *tview.TextView

	panes []tview.Primitive
}

func newBrowser(result report.CanonicalReport) *browser {
	b := &browser{app: tview.NewApplication()}

	header := tview.NewTextView().SetDynamicColors(true)
	header.SetText(headerText(result))

	b.findings = NewFindingsTable()
	b.findings.SetFindings(allFindings(result.Findings))
	b.findings.SetBorder(true)
	b.findings.SetTitle(" Findings ")

	b.order = tview.NewTextView()
	b.order.SetText(orderText(result.SuggestedOrder))
	b.order.SetBorder(true)
	b.order.SetTitle(" Suggested Order ")

	b.impact = tview.NewTextView().SetDynamicColors(true)
	b.impact.SetText(impactText(result.Impact))
	b.impact.SetBorder(true)
	b.impact.SetTitle(" Impact ")

	right := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(b.order, 0, 3, false).
		AddItem(b.impact, 0, 2, false)

	content := tview.NewFlex().
		AddItem(b.findings, 0, 3, true).
		AddItem(right, 0, 2, false)

	footer := tview.NewTextView().SetDynamicColors(true)
	footer.SetText(" [yellow]Tab[-] next pane   [yellow]/[-] filter   [yellow]q[-] quit")

	root := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(header, 4, 0, false).
		AddItem(content, 0, 1, true).
		AddItem(footer, 1, 0, false)

	b.panes = []tview.Primitive{b.findings, b.order, b.impact}
	b.app.SetRoot(root, true)
	b.app.SetInputCapture(b.handleKey)
	return b
}

func (b *browser) handleKey(event *tcell.EventKey) *tcell.EventKey {
	switch event.Key() {
	case tcell.KeyTab:
		b.cycleFocus(1)
		return nil
	case tcell.KeyBacktab:
		b.cycleFocus(-1)
		return nil
	case tcell.KeyEscape:
		b.app.Stop()
		return nil
	case tcell.KeyRune:
		// Characters typed into the filter input belong to the input.
		if b.findings.SearchHasFocus() {
			return event
		}
		switch event.Rune() {
		case 'q':
			b.app.Stop()
			return nil
		case '/':
			b.findings.FocusSearch(b.app)
			return nil
		}
	}
	return event
}

func (b *browser) cycleFocus(step int) {
	current := 0
	for i, pane := range b.panes {
		if pane.HasFocus() {
			current = i
			break
		}
	}
	next := (current + step + len(b.panes)) % len(b.panes)
	b.app.SetFocus(b.panes[next])
}

func allFindings(buckets report.FindingsBySeverity) []conflict.Finding {
	findings := make([]conflict.Finding, 0, len(buckets.Errors)+len(buckets.Warnings)+len(buckets.Info))
	findings = append(findings, buckets.Errors...)
	findings = append(findings, buckets.Warnings...)
	findings = append(findings, buckets.Info...)
	return findings
}

func headerText(result report.CanonicalReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[::b]loadstone[::-]  report [yellow]%s[-]  game [yellow]%s[-]\n", result.ID, result.Game)
	fmt.Fprintf(&b, "masterlist %s", result.Masterlist.Version)
	if !result.Masterlist.FetchedAt.IsZero() {
		fmt.Fprintf(&b, ", fetched %s", humanize.Time(result.Masterlist.FetchedAt))
	}
	if result.Masterlist.Degraded {
		b.WriteString(" [red](stale)[-]")
	}
	b.WriteString("\n")
	counts := result.ListSummary
	fmt.Fprintf(&b, "%s entries, %d enabled   [red]%d errors[-]  [yellow]%d warnings[-]  %d info",
		humanize.Comma(int64(counts.Total)), counts.Enabled,
		result.Stats.Errors, result.Stats.Warnings, result.Stats.Info)
	if result.InfoCapped {
		fmt.Fprintf(&b, " (+%d hidden)", result.Stats.DroppedInfo)
	}
	if result.PartialReason != "" {
		fmt.Fprintf(&b, "\n[red]PARTIAL REPORT[-]: the analysis stopped early (%s)", result.PartialReason)
	}
	return b.String()
}

func orderText(order []string) string {
	if len(order) == 0 {
		return "no enabled entries"
	}
	var b strings.Builder
	for i, name := range order {
		fmt.Fprintf(&b, "%3d  %s\n", i+1, name)
	}
	return b.String()
}

func impactText(estimate impact.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "total pressure [yellow]%d[-]\n", estimate.TotalPressure)
	fmt.Fprintf(&b, "%d plugins, %d light plugins enabled\n", estimate.PluginCountEnabled, estimate.LightPluginCountEnabled)

	if len(estimate.PerTagPressure) > 0 {
		tags := make([]string, 0, len(estimate.PerTagPressure))
		for tag := range estimate.PerTagPressure {
			tags = append(tags, tag)
		}
		sort.Strings(tags)
		b.WriteString("\nper tag\n")
		for _, tag := range tags {
			fmt.Fprintf(&b, "  %-16s %d\n", tag, estimate.PerTagPressure[tag])
		}
	}

	if len(estimate.Heaviest) > 0 {
		b.WriteString("\nheaviest\n")
		for _, mod := range estimate.Heaviest {
			fmt.Fprintf(&b, "  %3d  %s\n", mod.Weight, tview.Escape(mod.Name))
		}
	}

	if hw := estimate.Hardware; hw != nil {
		bucketColors := map[string]string{
			impact.BucketOK:    "green",
			impact.BucketTight: "yellow",
			impact.BucketOver:  "red",
		}
		fmt.Fprintf(&b, "\nhardware [%s]%s[-]\n%s\n", bucketColors[hw.Bucket], hw.Bucket, tview.Escape(hw.Advisory))
	}
	return b.String()
}
