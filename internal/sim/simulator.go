package sim

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/san-kum/fermsim/internal/dynamo"
)

const (
	defaultAbsTol   = 1e-6
	defaultRelTol   = 1e-3
	defaultMaxSteps = 1_000_000
	defaultMinStep  = 1e-12
)

// Config describes one integration over [Start, End].
//
// A zero Dt selects adaptive stepping, which needs an integrator that
// implements dynamo.AdaptiveIntegrator. With TEval empty every accepted step
// is recorded; otherwise exactly the TEval points are, interpolated from
// the steps that straddle them.
type Config struct {
	Start float64
	End   float64
	TEval []float64

	Dt        float64
	FirstStep float64
	MaxStep   float64
	MinStep   float64
	MaxSteps  int

	AbsTol float64
	RelTol float64

	ValidateState bool
}

type Option func(*Simulator)

func WithLogger(l *slog.Logger) Option {
	return func(s *Simulator) {
		if l != nil {
			s.logger = l
		}
	}
}

type Simulator struct {
	dyn        dynamo.System
	integrator dynamo.Integrator
	metrics    []dynamo.Metric
	observers  []dynamo.Observer
	logger     *slog.Logger
}

func New(dyn dynamo.System, integrator dynamo.Integrator, opts ...Option) *Simulator {
	s := &Simulator{
		dyn:        dyn,
		integrator: integrator,
		metrics:    make([]dynamo.Metric, 0),
		observers:  make([]dynamo.Observer, 0),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Simulator) AddMetric(m dynamo.Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o dynamo.Observer) { s.observers = append(s.observers, o) }

// counter counts right-hand side evaluations.
type counter struct {
	dynamo.System
	n int
}

func (c *counter) Derive(x dynamo.State, t float64) dynamo.State {
	c.n++
	return c.System.Derive(x, t)
}

type methodReporter interface {
	Method() string
}

type switchCounter interface {
	Switches() int
}

type resetter interface {
	Reset()
}

type namer interface {
	Name() string
}

type recorder struct {
	result  *dynamo.Result
	metrics []dynamo.Metric
}

func (r *recorder) record(x dynamo.State, t float64) {
	r.result.States = append(r.result.States, x.Clone())
	r.result.Times = append(r.result.Times, t)
	for _, m := range r.metrics {
		m.Observe(x, t)
	}
}

func (s *Simulator) Run(ctx context.Context, x0 dynamo.State, cfg Config) (*dynamo.Result, error) {
	if err := s.validateConfig(x0, cfg); err != nil {
		return nil, err
	}

	if r, ok := s.integrator.(resetter); ok {
		r.Reset()
	}
	for _, m := range s.metrics {
		m.Reset()
	}

	result := &dynamo.Result{
		States:  make([]dynamo.State, 0, len(cfg.TEval)+1),
		Times:   make([]float64, 0, len(cfg.TEval)+1),
		Metrics: make(map[string]float64),
		Method:  s.methodName(),
	}
	rec := &recorder{result: result, metrics: s.metrics}
	dyn := &counter{System: s.dyn}

	var err error
	if adaptive, ok := s.integrator.(dynamo.AdaptiveIntegrator); ok && cfg.Dt == 0 {
		err = s.runAdaptive(ctx, dyn, adaptive, x0, cfg, rec)
	} else {
		err = s.runFixed(ctx, dyn, x0, cfg, rec)
	}

	result.Stats.Evaluations += dyn.n
	if sc, ok := s.integrator.(switchCounter); ok {
		result.Stats.Switches = sc.Switches()
	}
	result.Method = s.methodName()

	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}

	if err != nil {
		s.logger.Warn("integration failed", "method", result.Method, "err", err)
		return result, err
	}

	s.logger.Debug("integration finished",
		"method", result.Method,
		"samples", len(result.Times),
		"nfev", result.Stats.Evaluations,
		"accepted", result.Stats.Accepted,
		"rejected", result.Stats.Rejected,
	)
	return result, nil
}

func (s *Simulator) methodName() string {
	if m, ok := s.integrator.(methodReporter); ok {
		return m.Method()
	}
	if n, ok := s.integrator.(namer); ok {
		return n.Name()
	}
	return "custom"
}

func (s *Simulator) validateConfig(x0 dynamo.State, cfg Config) error {
	if !(cfg.End > cfg.Start) {
		return fmt.Errorf("end %g must be after start %g: %w", cfg.End, cfg.Start, dynamo.ErrInvalidSpan)
	}
	if len(x0) != s.dyn.StateDim() {
		return fmt.Errorf("initial state has %d components, system %d: %w", len(x0), s.dyn.StateDim(), dynamo.ErrDimensionMismatch)
	}
	if !x0.IsValid() {
		return fmt.Errorf("initial state: %w", dynamo.ErrInvalidState)
	}
	for i, te := range cfg.TEval {
		if te < cfg.Start || te > cfg.End {
			return fmt.Errorf("output time %g outside [%g, %g]: %w", te, cfg.Start, cfg.End, dynamo.ErrInvalidSpan)
		}
		if i > 0 && te <= cfg.TEval[i-1] {
			return fmt.Errorf("output times must be strictly increasing at index %d: %w", i, dynamo.ErrInvalidSpan)
		}
	}
	if cfg.Dt < 0 {
		return fmt.Errorf("dt must be positive, got %f", cfg.Dt)
	}
	if _, ok := s.integrator.(dynamo.AdaptiveIntegrator); !ok && cfg.Dt == 0 {
		return fmt.Errorf("dt must be positive for a fixed-step integrator")
	}
	if cfg.AbsTol < 0 || cfg.RelTol < 0 {
		return fmt.Errorf("tolerances must not be negative")
	}
	return nil
}

func (s *Simulator) runAdaptive(ctx context.Context, dyn *counter, integ dynamo.AdaptiveIntegrator, x0 dynamo.State, cfg Config, rec *recorder) error {
	tol := dynamo.Tolerance{Abs: cfg.AbsTol, Rel: cfg.RelTol}
	if tol.Abs == 0 && tol.Rel == 0 {
		tol = dynamo.Tolerance{Abs: defaultAbsTol, Rel: defaultRelTol}
	}
	maxStep := cfg.MaxStep
	if maxStep <= 0 {
		maxStep = math.Inf(1)
	}
	minStep := cfg.MinStep
	if minStep <= 0 {
		minStep = defaultMinStep
	}
	maxSteps := cfg.MaxSteps
	if maxSteps <= 0 {
		maxSteps = defaultMaxSteps
	}

	stats := &rec.result.Stats
	x := x0.Clone()
	t := cfg.Start
	f := dyn.Derive(x, t)

	h := cfg.FirstStep
	if h <= 0 {
		h = InitialStep(dyn, x, f, t, cfg.End, 4, tol)
	}

	next := 0
	if len(cfg.TEval) == 0 {
		rec.record(x, t)
	} else {
		for next < len(cfg.TEval) && cfg.TEval[next] <= t {
			rec.record(x, t)
			next++
		}
	}
	for _, obs := range s.observers {
		obs.OnStep(x, t)
	}

	method := s.methodName()
	attempts := 0

	for t < cfg.End {
		if len(cfg.TEval) > 0 && next == len(cfg.TEval) {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if attempts >= maxSteps {
			return &dynamo.SimulationError{Step: attempts, Time: t, State: x.Clone(), Wrapped: dynamo.ErrMaxSteps}
		}

		h = math.Min(h, maxStep)
		if h < minStep || math.IsNaN(h) {
			return &dynamo.SimulationError{Step: attempts, Time: t, State: x.Clone(), Wrapped: dynamo.ErrStepTooSmall}
		}
		last := t+h >= cfg.End
		if last {
			h = cfg.End - t
		}

		st, err := integ.StepAdaptive(dyn, x, f, t, h, tol)
		attempts++
		if err != nil {
			return &dynamo.SimulationError{Step: attempts, Time: t, State: x.Clone(), Wrapped: err}
		}
		stats.Jacobians += st.Jacobians
		stats.LUs += st.LUs

		if !st.Accepted() {
			stats.Rejected++
			s.logger.Debug("step rejected", "t", t, "dt", h, "err", st.ErrNorm)
			h = st.NextDt
			continue
		}
		stats.Accepted++

		tNew := t + st.Dt
		if last {
			tNew = cfg.End
		}

		if len(cfg.TEval) == 0 {
			rec.record(st.X, tNew)
		} else {
			for next < len(cfg.TEval) && cfg.TEval[next] <= tNew {
				te := cfg.TEval[next]
				if te == tNew {
					rec.record(st.X, te)
				} else {
					rec.record(st.Interpolate((te-t)/st.Dt), te)
				}
				next++
			}
		}
		for _, obs := range s.observers {
			obs.OnStep(st.X, tNew)
		}

		if m := s.methodName(); m != method {
			s.logger.Info("integration method switched", "from", method, "to", m, "t", tNew, "dt", st.Dt)
			method = m
		}

		x, f, t = st.X, st.F1, tNew
		h = st.NextDt
	}

	return nil
}

func (s *Simulator) runFixed(ctx context.Context, dyn *counter, x0 dynamo.State, cfg Config, rec *recorder) error {
	maxSteps := cfg.MaxSteps
	if maxSteps <= 0 {
		maxSteps = defaultMaxSteps
	}

	stats := &rec.result.Stats
	x := x0.Clone()
	t := cfg.Start

	next := 0
	if len(cfg.TEval) == 0 {
		rec.record(x, t)
	} else {
		for next < len(cfg.TEval) && cfg.TEval[next] <= t {
			rec.record(x, t)
			next++
		}
	}
	for _, obs := range s.observers {
		obs.OnStep(x, t)
	}

	for i := 0; t < cfg.End; i++ {
		if len(cfg.TEval) > 0 && next == len(cfg.TEval) {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if i >= maxSteps {
			return &dynamo.SimulationError{Step: i, Time: t, State: x.Clone(), Wrapped: dynamo.ErrMaxSteps}
		}

		target := cfg.End
		if next < len(cfg.TEval) {
			target = cfg.TEval[next]
		}

		h := cfg.Dt
		landed := target-t <= h*(1+1e-9)
		if landed {
			h = target - t
		}

		newX := s.integrator.Step(dyn, x, t, h)
		if cfg.ValidateState && !newX.IsValid() {
			return &dynamo.SimulationError{Step: i, Time: t, State: x.Clone(), Wrapped: dynamo.ErrInvalidState}
		}
		stats.Accepted++

		if landed {
			t = target
		} else {
			t += h
		}
		x = newX

		if len(cfg.TEval) == 0 {
			rec.record(x, t)
		} else if landed && next < len(cfg.TEval) {
			rec.record(x, t)
			next++
		}
		for _, obs := range s.observers {
			obs.OnStep(x, t)
		}
	}

	return nil
}

// InitialStep picks a first step size from the size of the state, its
// derivative and a trial explicit Euler step (Hairer, Norsett and Wanner).
// order is the order of the error estimator.
func InitialStep(dyn dynamo.System, x, f dynamo.State, t, end float64, order int, tol dynamo.Tolerance) float64 {
	span := end - t
	zero := make(dynamo.State, len(x))

	d0 := tol.ErrorNorm(x, x, zero)
	d1 := tol.ErrorNorm(f, x, zero)

	var h0 float64
	if d0 < 1e-5 || d1 < 1e-5 {
		h0 = 1e-6
	} else {
		h0 = 0.01 * d0 / d1
	}
	h0 = math.Min(h0, span)

	f1 := dyn.Derive(x.Add(f.Scale(h0)), t+h0)

	d2 := tol.ErrorNorm(f1.Sub(f), x, zero) / h0

	var h1 float64
	if d1 <= 1e-15 && d2 <= 1e-15 {
		h1 = math.Max(1e-6, h0*1e-3)
	} else {
		h1 = math.Pow(0.01/math.Max(d1, d2), 1/float64(order+1))
	}
	if math.IsNaN(h1) {
		h1 = h0
	}

	return math.Min(math.Min(100*h0, h1), span)
}
