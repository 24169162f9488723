package experiment

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/fermsim/internal/config"
	"github.com/san-kum/fermsim/internal/dynamo"
	"github.com/san-kum/fermsim/internal/kinetics"
)

type fakeRecorder struct {
	modes []string
	runs  int
}

func (f *fakeRecorder) Record(mode, method string, stats dynamo.Stats, elapsed time.Duration, err error) {
	f.modes = append(f.modes, mode)
	f.runs++
}

type stepLog struct {
	times []float64
}

func (s *stepLog) OnStep(x dynamo.State, t float64) {
	s.times = append(s.times, t)
}

func singleConfig() Config {
	cfg, err := FromConfig(config.DefaultConfig())
	Expect(err).NotTo(HaveOccurred())
	return cfg
}

func sensitivityConfig() Config {
	cfg, err := SensitivityFromConfig(config.DefaultConfig())
	Expect(err).NotTo(HaveOccurred())
	return cfg
}

var _ = Describe("Experiment", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("single run", func() {
		It("integrates the default fermentation over 50 hours", func() {
			res, err := New(singleConfig()).RunSingle(ctx)
			Expect(err).NotTo(HaveOccurred())

			Expect(res.Times[0]).To(Equal(0.0))
			Expect(res.Times[len(res.Times)-1]).To(Equal(50.0))
			Expect(res.States[0]).To(Equal(kinetics.DefaultComposition().State()))
			Expect(res.Method).To(Equal("rk45"))

			for i := 1; i < len(res.Times); i++ {
				Expect(res.Times[i]).To(BeNumerically(">", res.Times[i-1]))
			}
		})

		It("keeps glucose non-increasing", func() {
			cfg := singleConfig()
			cfg.AbsTol, cfg.RelTol = 1e-8, 1e-8

			res, err := New(cfg).RunSingle(ctx)
			Expect(err).NotTo(HaveOccurred())

			glucose := res.Series(int(kinetics.Glucose))
			for i := 1; i < len(glucose); i++ {
				Expect(glucose[i]).To(BeNumerically("<=", glucose[i-1]+1e-6), "t=%g", res.Times[i])
			}
			Expect(glucose[len(glucose)-1]).To(BeNumerically("<", glucose[0]))
		})

		It("produces ethanol and biomass and reports metrics", func() {
			res, err := New(singleConfig()).RunSingle(ctx)
			Expect(err).NotTo(HaveOccurred())

			final := kinetics.CompositionOf(res.Final())
			Expect(final.Ethanol).To(BeNumerically(">", 0.62))
			Expect(final.Biomass).To(BeNumerically(">", 1.75))

			Expect(res.Metrics).To(HaveKey("ethanol_yield"))
			Expect(res.Metrics).To(HaveKey("glucose_depletion_time"))
			Expect(res.Metrics["ethanol_yield"]).To(BeNumerically(">", 0))
			Expect(res.Metrics["biomass_ratio"]).To(BeNumerically(">", 1))
		})

		It("samples the requested grid", func() {
			cfg := singleConfig()
			cfg.Step = 0.5

			res, err := New(cfg).RunSingle(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Times).To(Equal(Grid(0, 50, 0.5)))
		})

		It("notifies observers from the start time through the last sample", func() {
			steps := &stepLog{}
			res, err := New(singleConfig(), WithObserver(steps)).RunSingle(ctx)
			Expect(err).NotTo(HaveOccurred())

			Expect(steps.times).NotTo(BeEmpty())
			Expect(steps.times[0]).To(Equal(0.0))
			for i := 1; i < len(steps.times); i++ {
				Expect(steps.times[i]).To(BeNumerically(">", steps.times[i-1]))
			}
			Expect(steps.times[len(steps.times)-1]).To(BeNumerically(">=", res.Times[len(res.Times)-1]))
		})

		DescribeTable("agrees across methods",
			func(method string) {
				ref := singleConfig()
				ref.Step = 1
				ref.AbsTol, ref.RelTol = 1e-9, 1e-9
				want, err := New(ref).RunSingle(ctx)
				Expect(err).NotTo(HaveOccurred())

				cfg := ref
				cfg.Method = method
				cfg.AbsTol, cfg.RelTol = 1e-7, 1e-7
				cfg.Dt = 0.005
				got, err := New(cfg).RunSingle(ctx)
				Expect(err).NotTo(HaveOccurred())

				Expect(got.Times).To(Equal(want.Times))
				for k := range want.Times {
					for sp := 0; sp < kinetics.NumSpecies; sp++ {
						Expect(got.States[k][sp]).To(BeNumerically("~", want.States[k][sp], 1e-2))
					}
				}
			},
			Entry("rk4", "rk4"),
			Entry("rosenbrock", "rosenbrock"),
			Entry("auto", "auto"),
			Entry("LSODA alias", "LSODA"),
		)

		It("rejects degenerate parameters before integrating", func() {
			cfg := singleConfig()
			cfg.Params.KSPG = 0

			_, err := New(cfg).RunSingle(ctx)

			var stageErr *StageError
			Expect(errors.As(err, &stageErr)).To(BeTrue())
			Expect(stageErr.Stage).To(Equal(StageSetup))
			Expect(errors.Is(err, dynamo.ErrParameterBounds)).To(BeTrue())
		})

		It("rejects unknown methods during setup", func() {
			cfg := singleConfig()
			cfg.Method = "Radau"

			_, err := New(cfg).RunSingle(ctx)

			var stageErr *StageError
			Expect(errors.As(err, &stageErr)).To(BeTrue())
			Expect(stageErr.Stage).To(Equal(StageSetup))
			Expect(errors.Is(err, dynamo.ErrUnknownMethod)).To(BeTrue())
		})

		It("reports integration failures as an integration stage", func() {
			cancelled, cancel := context.WithCancel(ctx)
			cancel()

			_, err := New(singleConfig()).RunSingle(cancelled)

			var stageErr *StageError
			Expect(errors.As(err, &stageErr)).To(BeTrue())
			Expect(stageErr.Stage).To(Equal(StageIntegration))
			Expect(errors.Is(err, context.Canceled)).To(BeTrue())
		})
	})

	Describe("sensitivity", func() {
		It("uses the sensitivity reference point", func() {
			cfg := sensitivityConfig()
			Expect(cfg.Params.NumaxG).To(Equal(3.9872))
			Expect(cfg.Params.KSPG).To(Equal(0.14637))
			Expect(cfg.Params.KiPG).To(Equal(4752.8))
			Expect(cfg.Method).To(Equal("auto"))
			Expect(cfg.Step).To(Equal(0.1))
			Expect(cfg.Targets).To(Equal([]string{"numaxG", "KSPG", "KiPG"}))
		})

		It("computes a 3x8 grid of curves on the output grid", func() {
			rec := &fakeRecorder{}
			cfg := sensitivityConfig()
			cfg.AbsTol, cfg.RelTol = 1e-9, 1e-9

			s, err := New(cfg, WithRecorder(rec)).RunSensitivity(ctx)
			Expect(err).NotTo(HaveOccurred())

			Expect(s.Times).To(HaveLen(500))
			Expect(s.Times[0]).To(Equal(0.0))
			Expect(s.Times[499]).To(BeNumerically("~", 49.9, 1e-9))
			Expect(s.Curves).To(HaveLen(3))
			for _, perParam := range s.Curves {
				Expect(perParam).To(HaveLen(kinetics.NumSpecies))
				for _, curve := range perParam {
					Expect(curve).To(HaveLen(500))
				}
			}
			Expect(rec.runs).To(Equal(4))
			Expect(rec.modes).To(HaveEach("sensitivity"))
		})

		It("shows glucose falling faster with a larger numaxG", func() {
			s, err := New(sensitivityConfig()).RunSensitivity(ctx)
			Expect(err).NotTo(HaveOccurred())

			glucose := s.Curve(s.Index("numaxG"), kinetics.Glucose)
			Expect(glucose[0]).To(Equal(0.0))
			Expect(glucose[1]).To(BeNumerically("<", 0))

			for sp := 0; sp < kinetics.NumSpecies; sp++ {
				for i := range s.Params {
					Expect(s.Curves[i][sp][0]).To(Equal(0.0))
				}
			}
		})

		It("names the failing trial", func() {
			cancelled, cancel := context.WithCancel(ctx)
			cancel()

			_, err := New(sensitivityConfig()).RunSensitivity(cancelled)

			var stageErr *StageError
			Expect(errors.As(err, &stageErr)).To(BeTrue())
			Expect(stageErr.Stage).To(Equal(StageIntegration))
			Expect(stageErr.Trial).To(Equal("baseline"))
			Expect(err.Error()).To(ContainSubstring("integration (baseline)"))
		})

		It("rejects unknown targets during setup", func() {
			cfg := sensitivityConfig()
			cfg.Targets = []string{"numaxZ"}

			_, err := New(cfg).RunSensitivity(ctx)

			var stageErr *StageError
			Expect(errors.As(err, &stageErr)).To(BeTrue())
			Expect(stageErr.Stage).To(Equal(StageSetup))
			Expect(errors.Is(err, kinetics.ErrUnknownParam)).To(BeTrue())
		})

		It("requires a grid", func() {
			cfg := sensitivityConfig()
			cfg.Step = 0

			_, err := New(cfg).RunSensitivity(ctx)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Grid", func() {
		DescribeTable("follows half-open range semantics",
			func(start, end, step float64, n int) {
				g := Grid(start, end, step)
				Expect(g).To(HaveLen(n))
				if n > 0 {
					Expect(g[0]).To(Equal(start))
					Expect(g[n-1]).To(BeNumerically("<", end))
				}
			},
			Entry("sensitivity grid", 0.0, 50.0, 0.1, 500),
			Entry("unit steps", 0.0, 5.0, 1.0, 5),
			Entry("uneven end", 0.0, 1.05, 0.5, 3),
			Entry("empty span", 1.0, 1.0, 0.1, 0),
			Entry("zero step", 0.0, 1.0, 0.0, 0),
		)
	})

	Describe("Registry", func() {
		It("lists every method", func() {
			Expect(NewRegistry().ListIntegrators()).To(Equal([]string{"auto", "euler", "rk4", "rk45", "rosenbrock"}))
		})

		DescribeTable("resolves names and aliases",
			func(name, want string) {
				got, err := NewRegistry().Canonical(name)
				Expect(err).NotTo(HaveOccurred())
				Expect(got).To(Equal(want))
			},
			Entry("rk45", "rk45", "rk45"),
			Entry("RK45 alias", "RK45", "rk45"),
			Entry("LSODA alias", "LSODA", "auto"),
		)

		DescribeTable("rejects unavailable methods",
			func(name string) {
				_, err := NewRegistry().GetIntegrator(name)
				Expect(errors.Is(err, dynamo.ErrUnknownMethod)).To(BeTrue())
			},
			Entry("Radau", "Radau"),
			Entry("BDF", "BDF"),
			Entry("empty", ""),
		)
	})

	Describe("StageError", func() {
		It("formats with and without a trial", func() {
			Expect((&StageError{Stage: StageExport, Err: errors.New("disk full")}).Error()).To(Equal("export: disk full"))
			Expect((&StageError{Stage: StageIntegration, Trial: "KSPG", Err: dynamo.ErrStepTooSmall}).Error()).
				To(Equal("integration (KSPG): dynamo: adaptive timestep below minimum"))
			Expect(Wrap(StageRendering, nil)).To(BeNil())
		})
	})
})
