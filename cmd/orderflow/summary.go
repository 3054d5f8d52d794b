package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/nomis52/orderflow/orchestrator"
)

var (
	headerColor = color.New(color.FgCyan, color.Bold)
	statusColor = map[orchestrator.UnitStatus]*color.Color{
		orchestrator.Completed:  color.New(color.FgGreen),
		orchestrator.Failed:     color.New(color.FgRed),
		orchestrator.Skipped:    color.New(color.FgYellow),
		orchestrator.NotStarted: color.New(color.FgHiBlack),
		orchestrator.Running:    color.New(color.FgBlue),
	}
	outcomeColor = map[orchestrator.RunOutcome]*color.Color{
		orchestrator.OutcomeCompleted:             color.New(color.FgGreen, color.Bold),
		orchestrator.OutcomeCompletedWithFailures: color.New(color.FgYellow, color.Bold),
	}
	failColor = color.New(color.FgRed, color.Bold)
)

// printSummary renders rep as a table of units followed by the run totals.
func printSummary(w io.Writer, rep *orchestrator.Report) {
	headers := []string{"UNIT", "STATUS", "ELAPSED", "DETAIL"}
	rows := make([][]string, 0, len(rep.Units))
	for _, u := range rep.Units {
		rows = append(rows, []string{
			u.Name,
			u.Status.String(),
			fmt.Sprintf("%.2fs", u.ElapsedSeconds),
			unitDetail(u),
		})
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], len(cell))
		}
	}

	cells := make([]string, len(headers))
	for i, h := range headers {
		if i < len(headers)-1 {
			h = pad(h, widths[i])
		}
		cells[i] = headerColor.Sprint(h)
	}
	fmt.Fprintln(w, strings.Join(cells, "  "))

	for j, row := range rows {
		for i, cell := range row {
			cells[i] = pad(cell, widths[i])
		}
		if c, ok := statusColor[rep.Units[j].Status]; ok {
			cells[1] = c.Sprint(cells[1])
		}
		fmt.Fprintln(w, strings.TrimRight(strings.Join(cells, "  "), " "))
	}

	fmt.Fprintln(w)
	oc, ok := outcomeColor[rep.Outcome]
	if !ok {
		oc = failColor
	}
	fmt.Fprintf(w, "Run %s %s in %.2fs: %d completed, %d failed, %d skipped, %d not started\n",
		rep.RunID, oc.Sprint(string(rep.Outcome)), rep.ElapsedSeconds,
		rep.Completed, rep.Failed, rep.Skipped, rep.NotStarted)
	if rep.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", failColor.Sprint(rep.Error))
	}
	if len(rep.Outputs) > 0 {
		fmt.Fprintf(w, "Outputs (%d):\n", len(rep.Outputs))
		for _, o := range rep.Outputs {
			fmt.Fprintf(w, "  %s\n", o)
		}
	}
}

func unitDetail(u orchestrator.UnitReport) string {
	switch {
	case u.Error != nil:
		return *u.Error
	case len(u.BlockedBy) > 0:
		return "blocked by " + strings.Join(u.BlockedBy, ", ")
	case len(u.Outputs) == 1:
		return "1 output"
	case len(u.Outputs) > 1:
		return fmt.Sprintf("%d outputs", len(u.Outputs))
	}
	return ""
}

func pad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}
