package commands

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/l3aro/go-qtranspile/pkg/circuit"
	"github.com/l3aro/go-qtranspile/pkg/gate"
	"github.com/l3aro/go-qtranspile/pkg/pipeline"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ff9e64"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7dcfff")).Width(14)
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#565f89"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#9ece6a"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#e0af68"))

	boxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#7aa2f7")).Padding(0, 1)
)

func field(label string, value any) string {
	return labelStyle.Render(label) + fmt.Sprint(value)
}

// countLine renders op counts as "cx:2 h:1 ..." in gate table order.
func countLine(counts map[gate.Kind]int) string {
	var parts []string
	for _, k := range gate.Kinds() {
		if n := counts[k]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s:%d", k, n))
		}
	}
	if len(parts) == 0 {
		return dimStyle.Render("(empty)")
	}
	return strings.Join(parts, " ")
}

func circuitSummary(title string, g *circuit.DAG) string {
	lines := []string{
		titleStyle.Render(title),
		field("qubits", g.NumQubits()),
		field("ops", g.Len()),
		field("two-qubit", g.TwoQubitCount()),
		field("depth", g.Depth()),
		field("counts", countLine(g.CountOps())),
	}
	if g.GlobalPhase() != 0 {
		lines = append(lines, field("global phase", fmt.Sprintf("%.6f", g.GlobalPhase())))
	}
	return boxStyle.Render(strings.Join(lines, "\n"))
}

func diagnosticsSummary(diags []pipeline.Diagnostic) string {
	if len(diags) == 0 {
		return okStyle.Render("no diagnostics")
	}
	counts := pipeline.CountByReason(diags)
	lines := []string{titleStyle.Render(fmt.Sprintf("%d diagnostics", len(diags)))}
	for _, r := range pipeline.SortedReasons(counts) {
		lines = append(lines, field(string(r), counts[r]))
	}
	for _, d := range diags {
		lines = append(lines, warnStyle.Render("  "+d.String()))
	}
	return strings.Join(lines, "\n")
}
