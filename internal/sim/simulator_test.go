package sim

import (
	"context"
	"errors"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/fermsim/internal/dynamo"
	"github.com/san-kum/fermsim/internal/integrators"
)

type testDynamics struct{}

func (t *testDynamics) Derive(x dynamo.State, time float64) dynamo.State {
	return dynamo.State{-x[0]}
}

func (t *testDynamics) StateDim() int { return 1 }

type testIntegrator struct{}

func (t *testIntegrator) Step(dyn dynamo.System, x dynamo.State, time float64, dt float64) dynamo.State {
	dx := dyn.Derive(x, time)
	return dynamo.State{x[0] + dt*dx[0]}
}

// blowup returns NaN once t passes a threshold.
type blowup struct{ at float64 }

func (b *blowup) StateDim() int { return 1 }
func (b *blowup) Derive(x dynamo.State, t float64) dynamo.State {
	if t > b.at {
		return dynamo.State{math.NaN()}
	}
	return dynamo.State{1}
}

type testMetric struct {
	count int
	sum   float64
}

func (t *testMetric) Name() string { return "test" }
func (t *testMetric) Observe(x dynamo.State, time float64) {
	t.count++
	t.sum += x[0]
}
func (t *testMetric) Value() float64 {
	if t.count == 0 {
		return 0
	}
	return t.sum / float64(t.count)
}
func (t *testMetric) Reset() {
	t.count = 0
	t.sum = 0
}

type timeObserver struct{ times []float64 }

func (o *timeObserver) OnStep(x dynamo.State, t float64) { o.times = append(o.times, t) }

func grid(start, end, step float64) []float64 {
	var out []float64
	for i := 0; ; i++ {
		v := start + float64(i)*step
		if v >= end {
			return out
		}
		out = append(out, v)
	}
}

var _ = Describe("Simulator", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("fixed-step integration", func() {
		It("records every step", func() {
			sim := New(&testDynamics{}, &testIntegrator{})

			result, err := sim.Run(ctx, dynamo.State{1.0}, Config{Dt: 0.1, End: 1.0})
			Expect(err).NotTo(HaveOccurred())

			Expect(result.States).To(HaveLen(11))
			Expect(result.Times).To(HaveLen(11))
			Expect(result.Times[10]).To(Equal(1.0))
			Expect(result.Final()[0]).To(BeNumerically("~", math.Exp(-1), 0.2))
			Expect(result.Method).To(Equal("custom"))
		})

		It("lands exactly on output times", func() {
			sim := New(&testDynamics{}, integrators.NewRK4())
			teval := []float64{0, 0.25, 0.5, 0.75}

			result, err := sim.Run(ctx, dynamo.State{1.0}, Config{Dt: 0.1, End: 1.0, TEval: teval})
			Expect(err).NotTo(HaveOccurred())

			Expect(result.Times).To(Equal(teval))
			for i, te := range teval {
				Expect(result.States[i][0]).To(BeNumerically("~", math.Exp(-te), 1e-6))
			}
		})

		It("fails on invalid states when validation is on", func() {
			sim := New(&blowup{at: 0.5}, integrators.NewEuler())

			_, err := sim.Run(ctx, dynamo.State{0}, Config{Dt: 0.1, End: 1.0, ValidateState: true})
			Expect(errors.Is(err, dynamo.ErrInvalidState)).To(BeTrue())

			var simErr *dynamo.SimulationError
			Expect(errors.As(err, &simErr)).To(BeTrue())
			Expect(simErr.Time).To(BeNumerically(">", 0.5))
		})

		It("feeds metrics every recorded sample", func() {
			sim := New(&testDynamics{}, &testIntegrator{})
			metric := &testMetric{}
			sim.AddMetric(metric)

			result, err := sim.Run(ctx, dynamo.State{1.0}, Config{Dt: 0.1, End: 1.0})
			Expect(err).NotTo(HaveOccurred())

			Expect(result.Metrics).To(HaveKey("test"))
			Expect(metric.count).To(Equal(11))
		})
	})

	Describe("adaptive integration", func() {
		It("solves exponential decay to tolerance", func() {
			sim := New(&testDynamics{}, integrators.NewRK45())

			result, err := sim.Run(ctx, dynamo.State{1.0}, Config{End: 5, AbsTol: 1e-10, RelTol: 1e-10})
			Expect(err).NotTo(HaveOccurred())

			Expect(result.Times[0]).To(Equal(0.0))
			Expect(result.Times[len(result.Times)-1]).To(Equal(5.0))
			Expect(result.Final()[0]).To(BeNumerically("~", math.Exp(-5), 1e-8))
			Expect(result.Stats.Accepted).To(Equal(len(result.Times) - 1))
			Expect(result.Stats.Evaluations).To(BeNumerically(">", 6*result.Stats.Accepted))
			Expect(result.Method).To(Equal("rk45"))
		})

		It("interpolates onto the output grid", func() {
			sim := New(&testDynamics{}, integrators.NewRK45())
			teval := grid(0, 5, 0.1)

			result, err := sim.Run(ctx, dynamo.State{1.0}, Config{End: 5, TEval: teval, MaxStep: 0.1, AbsTol: 1e-10, RelTol: 1e-10})
			Expect(err).NotTo(HaveOccurred())

			Expect(result.Times).To(Equal(teval))
			for i, te := range teval {
				Expect(result.States[i][0]).To(BeNumerically("~", math.Exp(-te), 1e-6))
			}
		})

		It("respects the maximum step", func() {
			sim := New(&testDynamics{}, integrators.NewRK45())
			obs := &timeObserver{}
			sim.AddObserver(obs)

			_, err := sim.Run(ctx, dynamo.State{1.0}, Config{End: 2, MaxStep: 0.05})
			Expect(err).NotTo(HaveOccurred())

			for i := 1; i < len(obs.times); i++ {
				Expect(obs.times[i] - obs.times[i-1]).To(BeNumerically("<=", 0.05+1e-12))
			}
		})

		It("reports a step budget overrun", func() {
			sim := New(&testDynamics{}, integrators.NewRK45())

			_, err := sim.Run(ctx, dynamo.State{1.0}, Config{End: 100, MaxStep: 0.01, MaxSteps: 50})
			Expect(errors.Is(err, dynamo.ErrMaxSteps)).To(BeTrue())
		})

		It("gives up when the step size collapses", func() {
			sim := New(&blowup{at: 0.5}, integrators.NewRK45())

			result, err := sim.Run(ctx, dynamo.State{0}, Config{End: 1, MinStep: 1e-6})
			Expect(errors.Is(err, dynamo.ErrStepTooSmall)).To(BeTrue())
			Expect(result.Stats.Rejected).To(BeNumerically(">", 0))
		})

		It("stops on cancellation", func() {
			sim := New(&testDynamics{}, integrators.NewRK45())
			cancelled, cancel := context.WithCancel(ctx)
			cancel()

			_, err := sim.Run(cancelled, dynamo.State{1.0}, Config{End: 1})
			Expect(err).To(MatchError(context.Canceled))
		})

		It("switches method on a stiff problem", func() {
			auto := integrators.NewAuto()
			sim := New(&stiffPair{}, auto)

			result, err := sim.Run(ctx, dynamo.State{1, 1}, Config{End: 20, AbsTol: 1e-6, RelTol: 1e-6})
			Expect(err).NotTo(HaveOccurred())

			Expect(result.Final()[1]).To(BeNumerically("~", math.Exp(-20), 1e-5))
			if result.Stats.Switches > 0 {
				Expect(result.Stats.LUs).To(BeNumerically(">", 0))
			}
		})
	})

	Describe("configuration", func() {
		DescribeTable("rejects invalid configurations",
			func(cfg Config, x0 dynamo.State, target error) {
				sim := New(&testDynamics{}, integrators.NewRK45())
				_, err := sim.Run(ctx, x0, cfg)
				Expect(err).To(HaveOccurred())
				if target != nil {
					Expect(errors.Is(err, target)).To(BeTrue())
				}
			},
			Entry("empty span", Config{End: 0}, dynamo.State{1}, dynamo.ErrInvalidSpan),
			Entry("reversed span", Config{Start: 2, End: 1}, dynamo.State{1}, dynamo.ErrInvalidSpan),
			Entry("output time outside span", Config{End: 1, TEval: []float64{0, 2}}, dynamo.State{1}, dynamo.ErrInvalidSpan),
			Entry("unsorted output times", Config{End: 1, TEval: []float64{0.5, 0.2}}, dynamo.State{1}, dynamo.ErrInvalidSpan),
			Entry("wrong dimension", Config{End: 1}, dynamo.State{1, 2}, dynamo.ErrDimensionMismatch),
			Entry("NaN initial state", Config{End: 1}, dynamo.State{math.NaN()}, dynamo.ErrInvalidState),
			Entry("negative dt", Config{End: 1, Dt: -0.1}, dynamo.State{1}, nil),
		)

		It("requires a step for fixed-step integrators", func() {
			sim := New(&testDynamics{}, &testIntegrator{})
			_, err := sim.Run(ctx, dynamo.State{1}, Config{End: 1})
			Expect(err).To(HaveOccurred())
		})
	})
})

type stiffPair struct{}

func (s *stiffPair) StateDim() int { return 2 }

func (s *stiffPair) Derive(x dynamo.State, t float64) dynamo.State {
	return dynamo.State{-1000*x[0] + x[1], -x[1]}
}
