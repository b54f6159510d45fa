package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/KiruiElisha/esg-compliance/internal/scoring"
	"github.com/KiruiElisha/esg-compliance/internal/service"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	labelStyle  = lipgloss.NewStyle().Width(16)
	cellStyle   = lipgloss.NewStyle().Width(10).Align(lipgloss.Right)
	goodStyle   = cellStyle.Foreground(lipgloss.Color("10")) // green
	fairStyle   = cellStyle.Foreground(lipgloss.Color("3"))  // yellow
	poorStyle   = cellStyle.Foreground(lipgloss.Color("9"))  // red
)

// render writes v as JSON or YAML, or calls table for the table format.
func render(w io.Writer, format string, v any, table func() string) error {
	switch format {
	case OutputTable:
		_, err := fmt.Fprintln(w, table())
		return err
	case OutputYAML:
		generic, err := toGeneric(v)
		if err != nil {
			return err
		}
		out, err := yaml.Marshal(generic)
		if err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		_, err = w.Write(out)
		return err
	default:
		out, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		_, err = fmt.Fprintln(w, string(out))
		return err
	}
}

// toGeneric round-trips v through JSON so YAML output uses the same field names.
func toGeneric(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return out, nil
}

func scoreCell(s scoring.CategoryScore) string {
	text := strconv.Itoa(int(s))
	switch {
	case s >= 70:
		return goodStyle.Render(text)
	case s >= 40:
		return fairStyle.Render(text)
	default:
		return poorStyle.Render(text)
	}
}

func trendCell(d scoring.TrendDelta) string {
	return cellStyle.Render(fmt.Sprintf("%+.2f", float64(d)))
}

func row(label string, cells ...string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, append([]string{labelStyle.Render(label)}, cells...)...)
}

func renderSnapshotTable(s scoring.ScoreSnapshot) string {
	lines := []string{
		headerStyle.Render(row("CATEGORY", cellStyle.Render("SCORE"), cellStyle.Render("TREND"))),
		row("Environmental", scoreCell(s.Environmental), trendCell(s.Trends.Environmental)),
		row("Social", scoreCell(s.Social), trendCell(s.Trends.Social)),
		row("Governance", scoreCell(s.Governance), trendCell(s.Trends.Governance)),
		row("Overall", scoreCell(s.Overall), trendCell(s.Trends.Overall)),
		"",
		fmt.Sprintf("%d entries, trends as of %s", s.EntryCount, s.ReferenceDate.Format("2006-01-02")),
	}
	return strings.Join(lines, "\n")
}

func renderDashboardTable(d service.Dashboard) string {
	var b strings.Builder
	b.WriteString(renderSnapshotTable(d.Scores))
	b.WriteString("\n\n")

	st := d.Statistics
	fmt.Fprintf(&b, "%s\n", headerStyle.Render("STATISTICS"))
	fmt.Fprintf(&b, "%s%d active of %d, %d expiring soon\n", labelStyle.Render("Policies"),
		st.Policies.Active, st.Policies.Total, st.Policies.ExpiringSoon)
	fmt.Fprintf(&b, "%s%d running, %d%% complete, %d%% of budget used\n", labelStyle.Render("Initiatives"),
		st.Initiatives.Running, st.Initiatives.AvgCompletion, st.Initiatives.BudgetUtilization)
	fmt.Fprintf(&b, "%s%d overdue, %d due this week\n", labelStyle.Render("Actions"),
		st.Actions.Overdue, st.Actions.DueThisWeek)

	if len(d.Alerts) > 0 {
		fmt.Fprintf(&b, "\n%s\n", headerStyle.Render("ALERTS"))
		for _, a := range d.Alerts {
			fmt.Fprintf(&b, "%s%s (%d days)\n", labelStyle.Render(strings.ToUpper(string(a.Priority))), a.Message, a.Days)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
