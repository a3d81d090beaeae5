package ui

import (
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/loadstone-dev/loadstone/app/core/conflict"
)

var severityColors = map[conflict.Severity]tcell.Color{
	conflict.SeverityError:   tcell.ColorRed,
	conflict.SeverityWarning: tcell.ColorYellow,
	conflict.SeverityInfo:    tcell.ColorSkyblue,
}

var findingsHeaders = []string{"SEVERITY", "KIND", "SUBJECTS", "MESSAGE"}

// FindingsTable combines a filter input with the severity-colored findings
// table. Typing narrows the rows on kind, subjects, and message; Enter or
// Down moves from the input into the table.
type FindingsTable struct {
	*tview.Flex
	table       *tview.Table
	searchField *tview.InputField

	findings []conflict.Finding
}

// NewFindingsTable creates an empty findings table.
func NewFindingsTable() *FindingsTable {
	ft := &FindingsTable{
		Flex: tview.NewFlex().SetDirection(tview.FlexRow),
		table: tview.NewTable().
			SetSelectable(true, false).
			SetFixed(1, 0),
		searchField: tview.NewInputField().SetPlaceholder("Filter findings..."),
	}

	ft.AddItem(ft.searchField, 1, 0, false).
		AddItem(ft.table, 0, 1, true)

	ft.searchField.SetChangedFunc(func(text string) {
		ft.filter(text)
	})

	searchFocusedStyle := ft.searchField.GetFieldStyle().Foreground(tcell.ColorBlack)
	searchBlurredStyle := searchFocusedStyle.Background(tcell.ColorDarkSlateGray)
	ft.searchField.SetFocusFunc(func() {
		ft.searchField.SetFieldStyle(searchFocusedStyle)
		ft.searchField.SetPlaceholderStyle(searchFocusedStyle)
	})
	ft.searchField.SetBlurFunc(func() {
		ft.searchField.SetFieldStyle(searchBlurredStyle)
		ft.searchField.SetPlaceholderStyle(searchBlurredStyle)
	})
	ft.searchField.Blur()

	ft.table.SetFocusFunc(func() {
		ft.table.SetSelectedStyle(tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorBlue))
	})
	ft.table.SetBlurFunc(func() {
		ft.table.SetSelectedStyle(tcell.StyleDefault.Foreground(tcell.ColorWhite).Background(tcell.ColorDarkSlateGray))
	})

	ft.populateHeaders()
	return ft
}

// SetFindings replaces the table contents, keeping the current filter.
func (ft *FindingsTable) SetFindings(findings []conflict.Finding) {
	ft.findings = findings
	ft.filter(ft.searchField.GetText())
}

// Focus moves focus into the table. The filter input is reached with '/'.
func (ft *FindingsTable) Focus(delegate func(p tview.Primitive)) {
	delegate(ft.table)
}

// FocusSearch moves focus to the filter input.
func (ft *FindingsTable) FocusSearch(app *tview.Application) {
	ft.searchField.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter || key == tcell.KeyDown {
			if ft.table.GetRowCount() > 1 {
				app.SetFocus(ft.table)
			}
		}
	})
	app.SetFocus(ft.searchField)
}

// SearchHasFocus reports whether the filter input currently has focus.
func (ft *FindingsTable) SearchHasFocus() bool {
	return ft.searchField.HasFocus()
}

func (ft *FindingsTable) populateHeaders() {
	for col, header := range findingsHeaders {
		cell := tview.NewTableCell(header).
			SetSelectable(false).
			SetTextColor(tcell.ColorYellow).
			SetAttributes(tcell.AttrBold).
			SetAlign(tview.AlignLeft)
		ft.table.SetCell(0, col, cell)
	}
}

// filter re-populates the table with the findings matching the query.
func (ft *FindingsTable) filter(query string) {
	ft.table.Clear()
	ft.populateHeaders()

	query = strings.ToLower(query)
	row := 1
	for _, finding := range ft.findings {
		if query != "" && !matchesFinding(finding, query) {
			continue
		}
		ft.table.SetCell(row, 0, tview.NewTableCell(string(finding.Severity)).
			SetTextColor(severityColors[finding.Severity]))
		ft.table.SetCell(row, 1, tview.NewTableCell(string(finding.Kind)).
			SetTextColor(tcell.ColorGray))
		ft.table.SetCell(row, 2, tview.NewTableCell(tview.Escape(strings.Join(finding.Subjects, ", "))).
			SetMaxWidth(40))
		ft.table.SetCell(row, 3, tview.NewTableCell(tview.Escape(finding.Message)).
			SetExpansion(1))
		row++
	}

	if ft.table.GetRowCount() > 1 {
		ft.table.Select(1, 0)
	}
	ft.table.ScrollToBeginning()
}

func matchesFinding(finding conflict.Finding, query string) bool {
	if strings.Contains(strings.ToLower(string(finding.Kind)), query) {
		return true
	}
	if strings.Contains(strings.ToLower(finding.Message), query) {
		return true
	}
	for _, subject := range finding.Subjects {
		if strings.Contains(strings.ToLower(subject), query) {
			return true
		}
	}
	return false
}
