package tui

import (
	"fmt"
	"math"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/fermsim/internal/analysis"
	"github.com/san-kum/fermsim/internal/kinetics"
	"github.com/san-kum/fermsim/internal/viz"
)

var (
	cyan   = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	dim    = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	dimmer = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
)

const cellWidth = 11

// Browser walks the parameter × species grid of a sensitivity analysis and
// charts the focused curve.
type Browser struct {
	sens     *analysis.Sensitivity
	relative [][][]float64

	row, col     int
	showRelative bool

	width  int
	height int
}

func NewBrowser(s *analysis.Sensitivity) Browser {
	b := Browser{sens: s, width: 100, height: 30}
	if s.Baseline != nil {
		b.relative = s.Relative()
	}
	return b
}

func (b Browser) Init() tea.Cmd { return nil }

func (b Browser) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return b.handleKey(msg)
	case tea.WindowSizeMsg:
		b.width = msg.Width
		b.height = msg.Height
	}
	return b, nil
}

func (b Browser) handleKey(msg tea.KeyMsg) (Browser, tea.Cmd) {
	switch msg.String() {
	case "q", "esc", "ctrl+c":
		return b, tea.Quit
	case "up", "k":
		if b.row > 0 {
			b.row--
		}
	case "down", "j":
		if b.row < len(b.sens.Params)-1 {
			b.row++
		}
	case "left", "h":
		if b.col > 0 {
			b.col--
		}
	case "right", "l":
		if b.col < kinetics.NumSpecies-1 {
			b.col++
		}
	case "home", "g":
		b.row, b.col = 0, 0
	case "r":
		b.showRelative = !b.showRelative
	}
	return b, nil
}

// Selection returns the focused parameter and species.
func (b Browser) Selection() (string, kinetics.Species) {
	if len(b.sens.Params) == 0 {
		return "", kinetics.Species(b.col)
	}
	return b.sens.Params[b.row], kinetics.Species(b.col)
}

// Relative reports whether curves are shown normalized.
func (b Browser) Relative() bool { return b.showRelative }

func (b Browser) curve(i int, sp kinetics.Species) []float64 {
	if b.showRelative {
		if i < len(b.relative) && int(sp) < len(b.relative[i]) {
			return b.relative[i][sp]
		}
		return nil
	}
	return b.sens.Curve(i, sp)
}

func peak(curve []float64) float64 {
	best := 0.0
	for _, v := range curve {
		if math.Abs(v) > math.Abs(best) {
			best = v
		}
	}
	return best
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		return string(r[:n])
	}
	return s
}

func (b Browser) View() string {
	var sb strings.Builder

	mode := "dy/dp"
	if b.showRelative {
		mode = "(dy/dp)·(p/y)"
	}
	sb.WriteString("\n  " + cyan.Render("sensitivity") + "  " +
		dim.Render(fmt.Sprintf("factor %.3g  %s  peak per curve", b.sens.Factor, mode)) + "\n\n")

	sb.WriteString(fmt.Sprintf("  %-*s", cellWidth, ""))
	for _, sp := range kinetics.AllSpecies() {
		sb.WriteString(dim.Render(fmt.Sprintf("%*s", cellWidth, clip(sp.String(), cellWidth-1))))
	}
	sb.WriteString("\n")

	for i, name := range b.sens.Params {
		sb.WriteString("  " + dim.Render(fmt.Sprintf("%-*s", cellWidth, clip(name, cellWidth-1))))
		for _, sp := range kinetics.AllSpecies() {
			v := peak(b.curve(i, sp))
			cell := fmt.Sprintf("%*.3g", cellWidth, v)
			if i == b.row && int(sp) == b.col {
				sb.WriteString(viz.Selected.Render(cell))
			} else {
				sb.WriteString(viz.Signed(v, cell))
			}
		}
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	if len(b.sens.Params) > 0 {
		param, sp := b.Selection()
		w := b.width - 12
		if w < 30 {
			w = 30
		}
		h := b.height - len(b.sens.Params) - 12
		if h < 5 {
			h = 5
		}
		if h > 20 {
			h = 20
		}
		chart := viz.SensitivityChart(b.curve(b.row, sp), param, sp, w, h)
		if chart == "" {
			chart = dimmer.Render("no finite values")
		}
		sb.WriteString(chart + "\n\n")
	}

	sb.WriteString(dim.Render("  ↑↓←→ move   r relative   g home   q quit") + "\n")
	return sb.String()
}

// Run opens the browser full screen until the user quits.
func Run(s *analysis.Sensitivity) error {
	p := tea.NewProgram(NewBrowser(s), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
