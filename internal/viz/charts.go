package viz

import (
	"fmt"
	"math"
	"strings"

	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/fermsim/internal/dynamo"
	"github.com/san-kum/fermsim/internal/kinetics"
)

// Chart plots one series, skipping non-finite values.
func Chart(data []float64, caption string, width, height int) string {
	clean := make([]float64, 0, len(data))
	for _, v := range data {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			clean = append(clean, v)
		}
	}
	if len(clean) == 0 {
		return ""
	}
	return asciigraph.Plot(clean,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption(caption),
	)
}

// SpeciesCharts draws one chart per species, in the order given. An empty
// list draws every species.
func SpeciesCharts(res *dynamo.Result, species []kinetics.Species, width, height int) string {
	if res == nil || len(res.States) == 0 {
		return ""
	}
	if len(species) == 0 {
		species = kinetics.AllSpecies()
	}

	var b strings.Builder
	for _, sp := range species {
		if int(sp) < 0 || int(sp) >= len(res.States[0]) {
			continue
		}
		caption := fmt.Sprintf("%s [g/L] vs time [h]", sp)
		chart := Chart(res.Series(int(sp)), caption, width, height)
		if chart == "" {
			continue
		}
		b.WriteString(chart)
		b.WriteString("\n\n")
	}
	return b.String()
}

// SensitivityChart draws dy/dp for one parameter and species.
func SensitivityChart(curve []float64, param string, sp kinetics.Species, width, height int) string {
	caption := fmt.Sprintf("d[%s]/d%s vs time [h]", sp, param)
	return Chart(curve, caption, width, height)
}
