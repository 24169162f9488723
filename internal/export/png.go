package export

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/san-kum/fermsim/internal/analysis"
	"github.com/san-kum/fermsim/internal/dynamo"
	"github.com/san-kum/fermsim/internal/kinetics"
)

var ErrNoData = errors.New("export: nothing to plot")

// Growth plot window.
const (
	GrowthXMin = 0.0
	GrowthXMax = 50.0
	GrowthYMin = 0.0
	GrowthYMax = 40.0
)

const (
	TimeLabel          = "Time [h]"
	ConcentrationLabel = "Concentration [g/L]"
	dpi                = 150
)

func limitedTicker(maxLabels int, labelFmt string) plot.Ticker {
	if maxLabels < 2 {
		maxLabels = 2
	}
	return plot.TickerFunc(func(min, max float64) []plot.Tick {
		if math.IsNaN(min) || math.IsNaN(max) || math.IsInf(min, 0) || math.IsInf(max, 0) {
			return nil
		}
		if min == max {
			return []plot.Tick{{Value: min, Label: fmt.Sprintf(labelFmt, min)}}
		}
		step := (max - min) / float64(maxLabels-1)
		ticks := make([]plot.Tick, 0, maxLabels)
		for i := 0; i < maxLabels; i++ {
			v := min + float64(i)*step
			ticks = append(ticks, plot.Tick{Value: v, Label: fmt.Sprintf(labelFmt, v)})
		}
		return ticks
	})
}

func speciesLine(times []float64, values func(k int) float64, sp kinetics.Species) (*plotter.Line, error) {
	pts := make(plotter.XYs, len(times))
	for k, t := range times {
		pts[k].X = t
		pts[k].Y = values(k)
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", sp, err)
	}
	line.LineStyle.Width = vg.Points(1.5)
	line.LineStyle.Color = plotutil.Color(int(sp))
	line.LineStyle.Dashes = plotutil.Dashes(int(sp) / len(plotutil.DefaultColors))
	return line, nil
}

// GrowthPlot draws every species against time on the fixed growth window.
func GrowthPlot(res *dynamo.Result) (*plot.Plot, error) {
	if res == nil || len(res.Times) < 2 {
		return nil, ErrNoData
	}

	p := plot.New()
	p.Title.Text = "Fermentation"
	p.X.Label.Text = TimeLabel
	p.Y.Label.Text = ConcentrationLabel
	p.X.Tick.Marker = limitedTicker(11, "%.0f")
	p.Y.Tick.Marker = limitedTicker(9, "%.0f")
	p.Legend.Top = true
	p.Legend.Left = false
	p.Add(plotter.NewGrid())

	for _, sp := range kinetics.AllSpecies() {
		line, err := speciesLine(res.Times, func(k int) float64 { return res.States[k][sp] }, sp)
		if err != nil {
			return nil, err
		}
		p.Add(line)
		p.Legend.Add(sp.String(), line)
	}

	// plot.Add widens the axes to fit the data; restore the window
	p.X.Min, p.X.Max = GrowthXMin, GrowthXMax
	p.Y.Min, p.Y.Max = GrowthYMin, GrowthYMax
	return p, nil
}

// SensitivityPlots builds one subplot per target parameter and species.
// Species titles go on the top row, parameter labels on the first column.
func SensitivityPlots(s *analysis.Sensitivity) ([][]*plot.Plot, error) {
	if s == nil || len(s.Curves) == 0 || len(s.Times) < 2 {
		return nil, ErrNoData
	}

	rows := make([][]*plot.Plot, len(s.Curves))
	for i := range s.Curves {
		rows[i] = make([]*plot.Plot, kinetics.NumSpecies)
		for _, sp := range kinetics.AllSpecies() {
			curve := s.Curve(i, sp)
			if len(curve) != len(s.Times) {
				return nil, fmt.Errorf("%s/%s: %w", s.Params[i], sp.Key(), ErrNoData)
			}

			p := plot.New()
			p.X.Tick.Marker = limitedTicker(3, "%.0f")
			p.Y.Tick.Marker = limitedTicker(3, "%.2g")
			p.X.Tick.Label.Font.Size = vg.Points(6)
			p.Y.Tick.Label.Font.Size = vg.Points(6)

			if i == 0 {
				p.Title.Text = sp.String()
			}
			if sp == 0 {
				p.Y.Label.Text = s.Params[i]
			}
			if i == len(s.Curves)-1 {
				p.X.Label.Text = TimeLabel
				p.X.Label.TextStyle.Font.Size = vg.Points(7)
			}

			line, err := speciesLine(s.Times, func(k int) float64 { return curve[k] }, sp)
			if err != nil {
				return nil, err
			}
			p.Add(line)
			rows[i][sp] = p
		}
	}
	return rows, nil
}

func writePNG(w io.Writer, width, height vg.Length, render func(dc draw.Canvas)) error {
	c := vgimg.NewWith(vgimg.UseWH(width, height), vgimg.UseDPI(dpi))
	render(draw.New(c))

	pngc := vgimg.PngCanvas{Canvas: c}
	if _, err := pngc.WriteTo(w); err != nil {
		return fmt.Errorf("cannot write png: %w", err)
	}
	return nil
}

func WriteGrowthPNG(w io.Writer, res *dynamo.Result) error {
	p, err := GrowthPlot(res)
	if err != nil {
		return err
	}
	return writePNG(w, 8*vg.Inch, 6*vg.Inch, func(dc draw.Canvas) { p.Draw(dc) })
}

func WriteSensitivityPNG(w io.Writer, s *analysis.Sensitivity) error {
	plots, err := SensitivityPlots(s)
	if err != nil {
		return err
	}

	tiles := draw.Tiles{
		Rows:      len(plots),
		Cols:      kinetics.NumSpecies,
		PadX:      vg.Millimeter,
		PadY:      vg.Millimeter,
		PadTop:    vg.Points(4),
		PadBottom: vg.Points(4),
		PadLeft:   vg.Points(4),
		PadRight:  vg.Points(4),
	}
	height := vg.Length(len(plots)) * 2 * vg.Inch
	return writePNG(w, 18*vg.Inch, height, func(dc draw.Canvas) {
		canvases := plot.Align(plots, tiles, dc)
		for i := range plots {
			for j := range plots[i] {
				plots[i][j].Draw(canvases[i][j])
			}
		}
	})
}

// SaveFile creates path, including missing parent directories, and fills it
// with write.
func SaveFile(path string, write func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("cannot create directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}

	bw := bufio.NewWriter(f)
	if err := write(bw); err != nil {
		f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
