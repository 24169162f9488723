package main

import (
	"fmt"
	"io"

	"github.com/san-kum/fermsim/internal/dynamo"
	"github.com/san-kum/fermsim/internal/kinetics"
)

// progress reports each integration in tenths of the time span. A step back
// at the start time marks the next trial of a sensitivity run.
type progress struct {
	w          io.Writer
	start, end float64
	trial      int
	decile     int
}

func newProgress(w io.Writer, start, end float64) *progress {
	return &progress{w: w, start: start, end: end, decile: -1}
}

func (p *progress) OnStep(x dynamo.State, t float64) {
	if t <= p.start {
		p.trial++
		p.decile = -1
	}

	d := int(10 * (t - p.start) / (p.end - p.start))
	if d > 10 {
		d = 10
	}
	if d <= p.decile {
		return
	}
	p.decile = d

	fmt.Fprintf(p.w, "integration %d %3d%%  t=%5.1f h  glucose %7.3f g/L\n",
		p.trial, 10*d, t, x[kinetics.Glucose])
}
