package engine

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	green  = lipgloss.Color("76")
	red    = lipgloss.Color("204")
	purple = lipgloss.Color("99")
	dim    = lipgloss.Color("243")
	faint  = lipgloss.Color("238")

	appliedStyle   = lipgloss.NewStyle().Foreground(green)
	failedStyle    = lipgloss.NewStyle().Foreground(red)
	satisfiedStyle = lipgloss.NewStyle().Foreground(dim)
	headerStyle    = lipgloss.NewStyle().Foreground(purple).Bold(true).Padding(0, 1)
	cellStyle      = lipgloss.NewStyle().Padding(0, 1)
)

func statusText(s StepStatus) string {
	switch s {
	case StepStatusApplied:
		return appliedStyle.Render(string(s))
	case StepStatusFailed:
		return failedStyle.Render(string(s))
	default:
		return satisfiedStyle.Render(string(s))
	}
}

// RenderSummary writes a human-readable summary of report.
func RenderSummary(w io.Writer, report *Report) error {
	rows := make([][]string, 0, len(report.Steps))
	for _, s := range report.Steps {
		rows = append(rows, []string{string(s.Step), s.Resource, statusText(s.Status), s.Detail})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(faint)).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers("STEP", "RESOURCE", "STATUS", "DETAIL").
		Rows(rows...)

	var b strings.Builder
	b.WriteString(t.String())
	b.WriteString("\n")

	profile := "unresolved"
	if report.Profile != nil {
		profile = report.Profile.String()
	}
	state := appliedStyle.Render(string(report.State))
	if report.State != RunStateDone {
		state = failedStyle.Render(string(report.State))
	}
	fmt.Fprintf(&b, "run %s on %s: %s, %d applied, %d already satisfied, %d failed\n",
		report.ID, profile, state,
		report.Count(StepStatusApplied),
		report.Count(StepStatusAlreadySatisfied),
		report.Count(StepStatusFailed))

	for _, f := range report.Failures() {
		fmt.Fprintf(&b, "%s %s %s: %s\n", failedStyle.Render("✗"), f.Step, f.Resource, f.Detail)
	}
	if report.AbortReason != "" {
		fmt.Fprintf(&b, "%s %s\n", failedStyle.Render("aborted:"), report.AbortReason)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderJSON writes report as indented JSON.
func RenderJSON(w io.Writer, report *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
