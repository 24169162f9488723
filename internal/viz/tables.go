package viz

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/san-kum/fermsim/internal/analysis"
	"github.com/san-kum/fermsim/internal/dynamo"
	"github.com/san-kum/fermsim/internal/kinetics"
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(BorderStyle).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return HeaderStyle
			}
			return CellStyle
		})
}

func num(v float64) string { return fmt.Sprintf("%.6g", v) }

// RatesTable reports every phenomenon, the five reaction rates and the
// species derivative at state x.
func RatesTable(x dynamo.State, p kinetics.Params) string {
	ph := kinetics.Evaluate(x, &p)

	terms := newTable("term", "value", "meaning")
	for _, term := range ph.Terms() {
		terms.Row(term.Name, num(term.Value), term.Help)
	}

	rates := newTable("reaction", "rate [g/L/h]")
	r := ph.Rates()
	for j, v := range r {
		rates.Row(kinetics.Reaction(j).String(), num(v))
	}

	dx := kinetics.Derivative(0, x, p)
	deriv := newTable("species", "x [g/L]", "dx/dt [g/L/h]")
	for _, sp := range kinetics.AllSpecies() {
		deriv.Row(sp.String(), num(x[sp]), Signed(dx[sp], num(dx[sp])))
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		Title.Render("phenomena"), terms.Render(),
		Title.Render("reaction rates"), rates.Render(),
		Title.Render("derivative"), deriv.Render(),
	)
}

// ParamsTable lists p in declaration order, highlighting values that differ
// from base.
func ParamsTable(p, base kinetics.Params) string {
	names := p.Names()
	changed := make(map[int]bool)

	t := newTable("parameter", "value", "default")
	for i, name := range names {
		v, _ := p.Get(name)
		d, _ := base.Get(name)
		t.Row(name, num(v), num(d))
		if v != d {
			changed[i] = true
		}
	}
	t.StyleFunc(func(row, col int) lipgloss.Style {
		switch {
		case row == table.HeaderRow:
			return HeaderStyle
		case changed[row] && col < 2:
			return Changed
		}
		return CellStyle
	})
	return t.Render()
}

// MetricsTable lists metric values by name.
func MetricsTable(metrics map[string]float64) string {
	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	t := newTable("metric", "value")
	for _, name := range names {
		t.Row(name, num(metrics[name]))
	}
	return t.Render()
}

// SpeciesSummary shows the initial, final and extreme values of each species
// with a sparkline of its trajectory.
func SpeciesSummary(res *dynamo.Result, sparkWidth int) string {
	t := newTable("species", "initial", "final", "min", "max", "trend")
	if res == nil || len(res.States) == 0 {
		return t.Render()
	}

	for _, sp := range kinetics.AllSpecies() {
		series := res.Series(int(sp))
		min, max := series[0], series[0]
		for _, v := range series {
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}
		t.Row(sp.String(), num(series[0]), num(series[len(series)-1]), num(min), num(max),
			Sparkline(series, sparkWidth))
	}
	return t.Render()
}

// PeaksTable lists the strongest sensitivities, at most limit rows.
func PeaksTable(peaks []analysis.Peak, limit int) string {
	if limit <= 0 || limit > len(peaks) {
		limit = len(peaks)
	}

	t := newTable("parameter", "species", "time [h]", "peak dy/dp")
	for _, pk := range peaks[:limit] {
		t.Row(pk.Param, pk.Species.String(), fmt.Sprintf("%.1f", pk.Time), Signed(pk.Value, num(pk.Value)))
	}
	return t.Render()
}

// Summary is a one-line solver report.
func Summary(res *dynamo.Result) string {
	if res == nil {
		return ""
	}
	s := res.Stats
	parts := []string{
		MetricLabel.Render("method ") + MetricValue.Render(res.Method),
		MetricLabel.Render("samples ") + MetricValue.Render(fmt.Sprint(len(res.Times))),
		MetricLabel.Render("steps ") + MetricValue.Render(fmt.Sprintf("%d/%d", s.Accepted, s.Rejected)),
		MetricLabel.Render("nfev ") + MetricValue.Render(fmt.Sprint(s.Evaluations)),
	}
	if s.Jacobians > 0 {
		parts = append(parts, MetricLabel.Render("njev ")+MetricValue.Render(fmt.Sprint(s.Jacobians)))
	}
	if s.Switches > 0 {
		parts = append(parts, MetricLabel.Render("switches ")+MetricValue.Render(fmt.Sprint(s.Switches)))
	}
	return strings.Join(parts, Subtle.Render("  │  "))
}
