package export

import (
	"fmt"
	"math"
	"strings"

	"github.com/san-kum/fermsim/internal/dynamo"
	"github.com/san-kum/fermsim/internal/kinetics"
)

// speciesColors follows the state-vector order.
var speciesColors = [kinetics.NumSpecies]string{
	"#ffaa00", // glucose
	"#ffee55", // xylose
	"#ff4444", // furfural
	"#cc66ff", // furfuryl alcohol
	"#ff66aa", // HMF
	"#66ddff", // HAc
	"#00ff88", // ethanol
	"#ffffff", // biomass
}

// TrajectorySVG draws one path per species against time. The axes share
// bounds across all species, padded by 10%.
func TrajectorySVG(res *dynamo.Result, width, height int) string {
	if res == nil || len(res.Times) < 2 {
		return ""
	}

	minX, maxX := res.Times[0], res.Times[len(res.Times)-1]
	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, x := range res.States {
		for _, v := range x {
			if v < minY {
				minY = v
			}
			if v > maxY {
				maxY = v
			}
		}
	}

	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minY -= rangeY * 0.1
	maxY += rangeY * 0.1
	rangeY = maxY - minY

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height))

	for _, sp := range kinetics.AllSpecies() {
		sb.WriteString(fmt.Sprintf(`<path id="%s" fill="none" stroke="%s" stroke-width="1.5" d="M`,
			sp.Key(), speciesColors[sp]))

		for k, t := range res.Times {
			x := (t - minX) / rangeX * float64(width)
			y := float64(height) - (res.States[k][sp]-minY)/rangeY*float64(height)

			if k == 0 {
				sb.WriteString(fmt.Sprintf("%.1f,%.1f", x, y))
			} else {
				sb.WriteString(fmt.Sprintf(" L%.1f,%.1f", x, y))
			}
		}
		sb.WriteString("\"/>\n")
	}

	sb.WriteString("</svg>")
	return sb.String()
}
