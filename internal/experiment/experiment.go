package experiment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/san-kum/fermsim/internal/analysis"
	"github.com/san-kum/fermsim/internal/config"
	"github.com/san-kum/fermsim/internal/dynamo"
	"github.com/san-kum/fermsim/internal/kinetics"
	"github.com/san-kum/fermsim/internal/sim"
)

// DefaultFixedDt is the step of euler and rk4 when none is configured.
const DefaultFixedDt = 0.01

type Config struct {
	Params  kinetics.Params
	Initial kinetics.Composition

	Start float64
	End   float64
	// Step is the spacing of the output grid; 0 records every solver step.
	Step float64
	// Dt is the step of fixed-step methods.
	Dt float64

	Method  string
	AbsTol  float64
	RelTol  float64
	MaxStep float64

	Targets []string
	Factor  float64
}

// FromConfig builds the single-run configuration.
func FromConfig(c *config.Config) (Config, error) {
	p, err := c.RunParams()
	if err != nil {
		return Config{}, err
	}
	x0, err := c.InitialComposition()
	if err != nil {
		return Config{}, err
	}
	return Config{
		Params:  p,
		Initial: x0,
		Start:   c.Start,
		End:     c.End,
		Step:    c.Step,
		Method:  c.Method,
		AbsTol:  c.AbsTol,
		RelTol:  c.RelTol,
		MaxStep: c.MaxStep,
		Targets: c.Sensitivity.Targets,
		Factor:  c.Sensitivity.Factor,
	}, nil
}

// SensitivityFromConfig builds the configuration of a sensitivity study:
// the sensitivity baseline, grid, method and tolerances.
func SensitivityFromConfig(c *config.Config) (Config, error) {
	cfg, err := FromConfig(c)
	if err != nil {
		return Config{}, err
	}
	p, err := c.SensitivityParams()
	if err != nil {
		return Config{}, err
	}
	s := c.Sensitivity
	cfg.Params = p
	cfg.Step = s.Step
	cfg.Method = s.Method
	cfg.AbsTol = s.AbsTol
	cfg.RelTol = s.RelTol
	return cfg, nil
}

// StatsRecorder receives the solver statistics of every integration.
type StatsRecorder interface {
	Record(mode, method string, stats dynamo.Stats, elapsed time.Duration, err error)
}

type Option func(*Experiment)

func WithLogger(l *slog.Logger) Option {
	return func(e *Experiment) {
		if l != nil {
			e.logger = l
		}
	}
}

func WithRegistry(r *Registry) Option {
	return func(e *Experiment) { e.registry = r }
}

func WithRecorder(r StatsRecorder) Option {
	return func(e *Experiment) { e.recorder = r }
}

func WithObserver(o dynamo.Observer) Option {
	return func(e *Experiment) { e.observers = append(e.observers, o) }
}

type Experiment struct {
	cfg       Config
	registry  *Registry
	logger    *slog.Logger
	recorder  StatsRecorder
	observers []dynamo.Observer
}

func New(cfg Config, opts ...Option) *Experiment {
	e := &Experiment{
		cfg:      cfg,
		registry: NewRegistry(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Experiment) Config() Config { return e.cfg }

// RunSingle integrates the configured parameter set once and attaches the
// fermentation metrics.
func (e *Experiment) RunSingle(ctx context.Context) (*dynamo.Result, error) {
	if err := e.cfg.Params.Validate(); err != nil {
		return nil, Wrap(StageSetup, err)
	}
	teval, err := e.outputGrid()
	if err != nil {
		return nil, Wrap(StageSetup, err)
	}

	res, err := e.integrate(ctx, e.cfg.Params, "single", teval, true)
	if err != nil {
		return res, &StageError{Stage: StageIntegration, Err: err}
	}
	return res, nil
}

// RunSensitivity integrates the baseline and one trial per target on the
// output grid and returns the finite-difference sensitivities.
func (e *Experiment) RunSensitivity(ctx context.Context) (*analysis.Sensitivity, error) {
	base := e.cfg.Params
	if err := base.Validate(); err != nil {
		return nil, Wrap(StageSetup, err)
	}
	if e.cfg.Step <= 0 {
		return nil, Wrap(StageSetup, fmt.Errorf("sensitivity needs a positive grid step, got %g", e.cfg.Step))
	}
	teval, err := e.outputGrid()
	if err != nil {
		return nil, Wrap(StageSetup, err)
	}

	run := func(ctx context.Context, p kinetics.Params) (*dynamo.Result, error) {
		trial := trialName(base, p, e.cfg.Targets)
		if err := p.Validate(); err != nil {
			return nil, &StageError{Stage: StageSetup, Trial: trial, Err: err}
		}
		res, err := e.integrate(ctx, p, trial, teval, false)
		if err != nil {
			return nil, &StageError{Stage: StageIntegration, Trial: trial, Err: err}
		}
		return res, nil
	}

	s, err := analysis.LocalSensitivity(ctx, run, base, e.cfg.Targets, e.cfg.Factor)
	if err != nil {
		var stageErr *StageError
		if errors.As(err, &stageErr) {
			return nil, stageErr
		}
		return nil, Wrap(StageSetup, err)
	}
	return s, nil
}

func (e *Experiment) outputGrid() ([]float64, error) {
	if _, err := e.registry.Canonical(e.method()); err != nil {
		return nil, err
	}
	if !(e.cfg.End > e.cfg.Start) {
		return nil, fmt.Errorf("end %g must be after start %g: %w", e.cfg.End, e.cfg.Start, dynamo.ErrInvalidSpan)
	}
	if e.cfg.Step <= 0 {
		return nil, nil
	}
	return Grid(e.cfg.Start, e.cfg.End, e.cfg.Step), nil
}

func (e *Experiment) integrate(ctx context.Context, p kinetics.Params, trial string, teval []float64, withMetrics bool) (*dynamo.Result, error) {
	integ, err := e.registry.GetIntegrator(e.method())
	if err != nil {
		return nil, err
	}

	simulator := sim.New(kinetics.NewModel(p), integ, sim.WithLogger(e.logger.With("trial", trial)))
	if withMetrics {
		for _, m := range e.registry.DefaultMetrics() {
			simulator.AddMetric(m)
		}
	}
	for _, o := range e.observers {
		simulator.AddObserver(o)
	}

	simCfg := sim.Config{
		Start:   e.cfg.Start,
		End:     e.cfg.End,
		TEval:   teval,
		MaxStep: e.cfg.MaxStep,
		AbsTol:  e.cfg.AbsTol,
		RelTol:  e.cfg.RelTol,
	}
	if _, ok := integ.(dynamo.AdaptiveIntegrator); !ok {
		simCfg.Dt = e.cfg.Dt
		if simCfg.Dt <= 0 {
			simCfg.Dt = DefaultFixedDt
		}
		simCfg.ValidateState = true
	}

	started := time.Now()
	res, err := simulator.Run(ctx, e.cfg.Initial.State(), simCfg)
	elapsed := time.Since(started)

	if e.recorder != nil && res != nil {
		mode := "single"
		if !withMetrics {
			mode = "sensitivity"
		}
		e.recorder.Record(mode, res.Method, res.Stats, elapsed, err)
	}
	if err != nil {
		return res, err
	}

	e.logger.Info("integration finished",
		"trial", trial,
		"method", res.Method,
		"samples", len(res.Times),
		"nfev", res.Stats.Evaluations,
		"switches", res.Stats.Switches,
		"elapsed", elapsed,
	)
	return res, nil
}

func (e *Experiment) method() string {
	if e.cfg.Method == "" {
		return config.DefaultMethod
	}
	return e.cfg.Method
}

// trialName names a sensitivity run by the target it perturbs.
func trialName(base, p kinetics.Params, targets []string) string {
	for _, name := range targets {
		a, errA := base.Get(name)
		b, errB := p.Get(name)
		if errA == nil && errB == nil && a != b {
			return name
		}
	}
	return "baseline"
}

// Grid returns start, start+step, ... up to but excluding end.
func Grid(start, end, step float64) []float64 {
	if step <= 0 || !(end > start) {
		return nil
	}
	n := int(math.Ceil((end-start)/step - 1e-9))
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}
