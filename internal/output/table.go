package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/yairfalse/aurora-snapshot-copier/internal/deletion"
	"github.com/yairfalse/aurora-snapshot-copier/internal/runner"
)

// TableRenderer renders plans and reports as aligned tables
type TableRenderer struct {
	noColor bool
}

// NewTableRenderer creates a new table renderer
func NewTableRenderer(noColor bool) *TableRenderer {
	return &TableRenderer{noColor: noColor}
}

// column is one table column; cells are padded before they are colored
type column struct {
	title string
	width int
}

// FormatPlan renders the planned copies and deletion actions
func (r *TableRenderer) FormatPlan(plan *runner.Plan, writer io.Writer) error {
	var out strings.Builder

	out.WriteString(r.colorize("Snapshot Copy Plan\n", color.FgCyan, color.Bold))
	out.WriteString(r.colorize("══════════════════\n", color.FgCyan))
	fmt.Fprintf(&out, "Matched: %d  Selected: %d\n\n", plan.Matched, len(plan.Selected))

	if len(plan.Copies) == 0 {
		out.WriteString(r.colorize("No copies planned\n", color.FgGreen))
	} else {
		rows := make([][]string, 0, len(plan.Copies))
		colors := make([]color.Attribute, 0, len(plan.Copies))
		for _, c := range plan.Copies {
			key := c.KMSKeyID
			if key == "" {
				key = "-"
			}
			status, statusColor := "copy", color.FgGreen
			if c.Skipped {
				status, statusColor = "skip (source region)", color.FgYellow
			}
			rows = append(rows, []string{
				c.Snapshot.Identifier,
				c.TargetRegion,
				c.TargetIdentifier,
				key,
				status,
			})
			colors = append(colors, statusColor)
		}
		out.WriteString(r.renderTable([]string{"Snapshot", "Region", "Target Identifier", "KMS Key", "Action"}, rows, colors))
	}
	out.WriteString("\n")

	if len(plan.Deletions) == 0 {
		out.WriteString(r.colorize("No deletion policy actions planned\n", color.FgGreen))
	} else {
		rows := make([][]string, 0, len(plan.Deletions))
		colors := make([]color.Attribute, 0, len(plan.Deletions))
		for _, d := range plan.Deletions {
			rows = append(rows, []string{
				d.Snapshot.Identifier,
				d.Region,
				d.Snapshot.ClusterIdentifier,
				d.Snapshot.CreatedAt.UTC().Format(time.RFC3339),
				string(d.Action),
			})
			colors = append(colors, actionColor(d.Action))
		}
		out.WriteString(r.renderTable([]string{"Snapshot", "Region", "Cluster", "Created", "Action"}, rows, colors))
	}

	r.renderFailures(&out, plan.Failures)

	_, err := io.WriteString(writer, out.String())
	return err
}

// FormatReport renders the counters and failures of a finished run
func (r *TableRenderer) FormatReport(report *runner.Report, writer io.Writer) error {
	var out strings.Builder

	out.WriteString(r.colorize("Snapshot Copy Report\n", color.FgCyan, color.Bold))
	out.WriteString(r.colorize("════════════════════\n", color.FgCyan))
	fmt.Fprintf(&out, "Run:      %s\n", report.RunID)
	fmt.Fprintf(&out, "Duration: %s\n\n", report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))

	rows := [][]string{
		{"Matched", fmt.Sprint(report.Matched)},
		{"Selected", fmt.Sprint(report.Selected)},
		{"Copies requested", fmt.Sprint(report.CopiesRequested)},
		{"Existing copies claimed", fmt.Sprint(report.Claimed)},
		{"Skipped", fmt.Sprint(report.Skipped)},
		{"Deleted", fmt.Sprint(report.Deleted)},
		{"Untagged", fmt.Sprint(report.Untagged)},
		{"Dry-run marked", fmt.Sprint(report.DryRunMarked)},
		{"Failures", fmt.Sprint(len(report.Failures))},
	}
	colors := make([]color.Attribute, len(rows))
	for i := range colors {
		colors[i] = color.FgWhite
	}
	if len(report.Failures) > 0 {
		colors[len(colors)-1] = color.FgRed
	}
	out.WriteString(r.renderTable([]string{"Outcome", "Count"}, rows, colors))

	r.renderFailures(&out, report.Failures)

	_, err := io.WriteString(writer, out.String())
	return err
}

func (r *TableRenderer) renderFailures(out *strings.Builder, failures []runner.UnitFailure) {
	if len(failures) == 0 {
		return
	}
	out.WriteString("\n")
	out.WriteString(r.colorize(fmt.Sprintf("%d failures\n", len(failures)), color.FgRed, color.Bold))
	for _, f := range failures {
		out.WriteString(r.colorize("  ✗ ", color.FgRed))
		out.WriteString(f.Error())
		out.WriteString("\n")
	}
}

// renderTable draws a boxed table. rowColors colors the last cell of each row.
func (r *TableRenderer) renderTable(titles []string, rows [][]string, rowColors []color.Attribute) string {
	columns := make([]column, len(titles))
	for i, title := range titles {
		columns[i] = column{title: title, width: len(title)}
	}
	for _, row := range rows {
		for i, cell := range row {
			if len(cell) > columns[i].width {
				columns[i].width = len(cell)
			}
		}
	}

	var table strings.Builder
	table.WriteString(r.renderSeparator(columns, "┌", "┬", "┐"))

	table.WriteString("│")
	for _, col := range columns {
		table.WriteString(" ")
		table.WriteString(r.colorize(padString(col.title, col.width), color.FgWhite, color.Bold))
		table.WriteString(" │")
	}
	table.WriteString("\n")
	table.WriteString(r.renderSeparator(columns, "├", "┼", "┤"))

	for i, row := range rows {
		table.WriteString("│")
		for j, cell := range row {
			padded := padString(cell, columns[j].width)
			if j == len(row)-1 {
				padded = r.colorize(padded, rowColors[i])
			}
			table.WriteString(" ")
			table.WriteString(padded)
			table.WriteString(" │")
		}
		table.WriteString("\n")
	}

	table.WriteString(r.renderSeparator(columns, "└", "┴", "┘"))
	return table.String()
}

func (r *TableRenderer) renderSeparator(columns []column, left, mid, right string) string {
	var sep strings.Builder

	sep.WriteString(left)
	for i, col := range columns {
		if i > 0 {
			sep.WriteString(mid)
		}
		sep.WriteString(strings.Repeat("─", col.width+2))
	}
	sep.WriteString(right)
	sep.WriteString("\n")

	return sep.String()
}

func (r *TableRenderer) colorize(text string, attrs ...color.Attribute) string {
	if r.noColor {
		return text
	}
	return color.New(attrs...).Sprint(text)
}

func actionColor(action deletion.Action) color.Attribute {
	switch action {
	case deletion.ActionDelete:
		return color.FgRed
	case deletion.ActionUntag:
		return color.FgYellow
	default:
		return color.FgBlue
	}
}

func padString(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}
