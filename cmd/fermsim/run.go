package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/san-kum/fermsim/internal/config"
	"github.com/san-kum/fermsim/internal/dynamo"
	"github.com/san-kum/fermsim/internal/experiment"
	"github.com/san-kum/fermsim/internal/export"
	"github.com/san-kum/fermsim/internal/kinetics"
	"github.com/san-kum/fermsim/internal/storage"
	"github.com/san-kum/fermsim/internal/telemetry"
	"github.com/san-kum/fermsim/internal/tui"
	"github.com/san-kum/fermsim/internal/viz"
)

func runSingle(cmd *cobra.Command, args []string) (err error) {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd, modeSingle)
	if err != nil {
		return experiment.Wrap(experiment.StageSetup, err)
	}
	ecfg, err := experiment.FromConfig(cfg)
	if err != nil {
		return experiment.Wrap(experiment.StageSetup, err)
	}

	collector := telemetry.New()
	defer flushMetrics(collector, &err)
	exp := experiment.New(ecfg, experimentOptions(logger, collector, ecfg)...)

	began := time.Now()
	res, err := exp.RunSingle(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Printf("completed in %v\n", time.Since(began).Round(time.Millisecond))
	fmt.Println(viz.Summary(res))
	fmt.Println(viz.MetricsTable(res.Metrics))

	if err := export.SaveFile(cfg.Output, func(w io.Writer) error { return export.WriteGrowthPNG(w, res) }); err != nil {
		return experiment.Wrap(experiment.StageRendering, err)
	}
	fmt.Printf("wrote %s\n", cfg.Output)

	if svgPath != "" {
		svg := export.TrajectorySVG(res, 1200, 600)
		if err := export.SaveFile(svgPath, func(w io.Writer) error {
			_, err := io.WriteString(w, svg)
			return err
		}); err != nil {
			return experiment.Wrap(experiment.StageRendering, err)
		}
		fmt.Printf("wrote %s\n", svgPath)
	}

	if save {
		st := storage.New(dataDir)
		if err := st.Init(); err != nil {
			return experiment.Wrap(experiment.StageExport, err)
		}
		runID, err := st.Save(metadata(cfg, ecfg), res)
		if err != nil {
			return experiment.Wrap(experiment.StageExport, err)
		}
		fmt.Printf("run id: %s\n", runID)
	}
	return nil
}

func runSensitivity(cmd *cobra.Command, args []string) (err error) {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd, modeSensitivity)
	if err != nil {
		return experiment.Wrap(experiment.StageSetup, err)
	}
	ecfg, err := experiment.SensitivityFromConfig(cfg)
	if err != nil {
		return experiment.Wrap(experiment.StageSetup, err)
	}

	collector := telemetry.New()
	defer flushMetrics(collector, &err)
	exp := experiment.New(ecfg, experimentOptions(logger, collector, ecfg)...)

	began := time.Now()
	sens, err := exp.RunSensitivity(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Printf("completed %d trials in %v\n", len(sens.Params)+1, time.Since(began).Round(time.Millisecond))
	fmt.Println(viz.Summary(sens.Baseline))
	fmt.Println(viz.PeaksTable(sens.Peaks(), 10))

	out := cfg.Sensitivity.Output
	if err := export.SaveFile(out, func(w io.Writer) error { return export.WriteSensitivityPNG(w, sens) }); err != nil {
		return experiment.Wrap(experiment.StageRendering, err)
	}
	fmt.Printf("wrote %s\n", out)

	if save {
		st := storage.New(dataDir)
		if err := st.Init(); err != nil {
			return experiment.Wrap(experiment.StageExport, err)
		}
		meta := metadata(cfg, ecfg)
		meta.Preset = cfg.Sensitivity.Preset
		runID, err := st.SaveSensitivity(meta, sens)
		if err != nil {
			return experiment.Wrap(experiment.StageExport, err)
		}
		fmt.Printf("run id: %s\n", runID)
	}

	if interactive {
		if err := tui.Run(sens); err != nil {
			return experiment.Wrap(experiment.StageRendering, err)
		}
	}
	return nil
}

func metadata(cfg *config.Config, ecfg experiment.Config) storage.RunMetadata {
	return storage.RunMetadata{
		Preset:  cfg.Preset,
		Start:   ecfg.Start,
		End:     ecfg.End,
		Step:    ecfg.Step,
		AbsTol:  ecfg.AbsTol,
		RelTol:  ecfg.RelTol,
		Params:  ecfg.Params.Map(),
		Initial: ecfg.Initial.Map(),
	}
}

func experimentOptions(logger *slog.Logger, c *telemetry.Collector, ecfg experiment.Config) []experiment.Option {
	opts := []experiment.Option{experiment.WithLogger(logger), experiment.WithRecorder(c)}
	if showProgress {
		opts = append(opts, experiment.WithObserver(newProgress(os.Stderr, ecfg.Start, ecfg.End)))
	}
	return opts
}

// flushMetrics writes the counters on every exit path, failed integrations
// included. A write error only surfaces when the command succeeded.
func flushMetrics(c *telemetry.Collector, err *error) {
	if metricsFile == "" {
		return
	}
	if werr := c.WriteTextfile(metricsFile); werr != nil && *err == nil {
		*err = experiment.Wrap(experiment.StageExport, werr)
	}
}

func showRates(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, modeSingle)
	if err != nil {
		return err
	}
	p, err := cfg.RunParams()
	if err != nil {
		return err
	}
	x0, err := cfg.InitialComposition()
	if err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}

	fmt.Println(viz.RatesTable(x0.State(), p))
	return nil
}

func showParams(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, modeSingle)
	if err != nil {
		return err
	}
	p, err := cfg.RunParams()
	if err != nil {
		return err
	}

	fmt.Printf("preset: %s\n", cfg.Preset)
	fmt.Println(viz.ParamsTable(p, kinetics.DefaultParams()))
	return nil
}

func listPresets(cmd *cobra.Command, args []string) error {
	for _, name := range config.ListPresets() {
		fmt.Printf("  %-12s %s\n", name, config.GetPreset(name).Description)
	}
	return nil
}

// loadResult rebuilds a result from a saved run.
func loadResult(st *storage.Store, runID string) (*storage.RunMetadata, *dynamo.Result, error) {
	meta, err := st.Load(runID)
	if err != nil {
		return nil, nil, err
	}
	states, times, err := st.LoadStates(runID)
	if err != nil {
		return nil, nil, err
	}

	res := &dynamo.Result{
		Times:   times,
		States:  make([]dynamo.State, len(states)),
		Metrics: meta.Metrics,
		Stats:   meta.Stats,
		Method:  meta.Method,
	}
	for i, s := range states {
		res.States[i] = dynamo.State(s)
	}
	return meta, res, nil
}
