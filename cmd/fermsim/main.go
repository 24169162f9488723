package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/san-kum/fermsim/internal/config"
	"github.com/san-kum/fermsim/internal/experiment"
)

var (
	dataDir      string
	configFile   string
	preset       string
	method       string
	atol         float64
	rtol         float64
	start        float64
	end          float64
	step         float64
	maxStep      float64
	output       string
	svgPath      string
	save         bool
	metricsFile  string
	showProgress bool
	logLevel     string

	targets     []string
	factor      float64
	interactive bool

	plotSensitivity bool
)

type mode int

const (
	modeSingle mode = iota
	modeSensitivity
)

// main registers the commands and runs the root command. With no
// subcommand it integrates the default fermentation and writes growth.png.
// Failures are logged with their stage and exit with status 1.
func main() {
	rootCmd := &cobra.Command{
		Use:           "fermsim",
		Short:         "yeast fermentation kinetics and parameter sensitivity",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runSingle,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&dataDir, "data", ".fermsim", "data directory for saved runs")
	pf.StringVar(&configFile, "config", "", "config file path (yaml)")
	pf.StringVar(&preset, "preset", "", "parameter preset (see presets)")
	pf.StringVar(&logLevel, "log-level", "warn", "log level: debug, info, warn, error")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "integrate one fermentation and plot all species",
		Long: "Integrate one fermentation and plot all species.\n\nMethods: " +
			strings.Join(experiment.NewRegistry().ListIntegrators(), ", ") + " (aliases RK45, LSODA).",
		Args: cobra.NoArgs,
		RunE: runSingle,
	}
	addRunFlags(runCmd)
	addRunFlags(rootCmd)
	for _, cmd := range []*cobra.Command{runCmd, rootCmd} {
		cmd.Flags().StringVar(&svgPath, "svg", "", "also write the trajectory as SVG")
	}

	sensCmd := &cobra.Command{
		Use:   "sensitivity",
		Short: "finite-difference sensitivity of every species to the target parameters",
		Args:  cobra.NoArgs,
		RunE:  runSensitivity,
	}
	addRunFlags(sensCmd)
	sensCmd.Flags().StringSliceVar(&targets, "targets", nil, "parameters to perturb")
	sensCmd.Flags().Float64Var(&factor, "factor", 0, "perturbation factor")
	sensCmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "browse the sensitivity grid in the terminal")

	ratesCmd := &cobra.Command{
		Use:   "rates",
		Short: "print every phenomenon, rate and derivative at the initial state",
		Args:  cobra.NoArgs,
		RunE:  showRates,
	}

	paramsCmd := &cobra.Command{
		Use:   "params",
		Short: "print the resolved kinetic parameters",
		Args:  cobra.NoArgs,
		RunE:  showParams,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list parameter presets",
		Args:  cobra.NoArgs,
		RunE:  listPresets,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list saved runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a saved run in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().BoolVar(&plotSensitivity, "sensitivity", false, "plot the sensitivity curves instead of the states")

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export run data to CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run data to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}

	rootCmd.AddCommand(runCmd, sensCmd, ratesCmd, paramsCmd, presetsCmd, listCmd, plotCmd, exportCSVCmd, exportJSONCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		logFailure(err)
		os.Exit(1)
	}
}

func logFailure(err error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	var stageErr *experiment.StageError
	if errors.As(err, &stageErr) {
		attrs := []any{"stage", stageErr.Stage, "err", stageErr.Err}
		if stageErr.Trial != "" {
			attrs = append(attrs, "trial", stageErr.Trial)
		}
		logger.Error("fermsim failed", attrs...)
		return
	}
	logger.Error("fermsim failed", "err", err)
}

func addRunFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&method, "method", "", "integration method (see run --help)")
	f.Float64Var(&atol, "atol", 0, "absolute tolerance")
	f.Float64Var(&rtol, "rtol", 0, "relative tolerance")
	f.Float64Var(&start, "start", 0, "start time [h]")
	f.Float64Var(&end, "end", 0, "end time [h]")
	f.Float64Var(&step, "step", 0, "output grid spacing [h], 0 records solver steps")
	f.Float64Var(&maxStep, "max-step", 0, "largest solver step [h], 0 for no limit")
	f.StringVarP(&output, "out", "o", "", "output image path")
	f.BoolVar(&save, "save", false, "save the run under --data")
	f.StringVar(&metricsFile, "metrics-file", "", "write solver counters in Prometheus text format")
	f.BoolVar(&showProgress, "progress", false, "report integration progress on stderr")
}

func newLogger() (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return nil, fmt.Errorf("log level %q: %w", logLevel, err)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})), nil
}

// loadConfig reads the config file, if any, then applies the flags the user
// set explicitly. Run flags target the sensitivity section in that mode.
func loadConfig(cmd *cobra.Command, m mode) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("start") {
		cfg.Start = start
	}
	if flags.Changed("end") {
		cfg.End = end
	}
	if flags.Changed("max-step") {
		cfg.MaxStep = maxStep
	}

	switch m {
	case modeSingle:
		if flags.Changed("preset") {
			cfg.Preset = preset
		}
		if flags.Changed("method") {
			cfg.Method = method
		}
		if flags.Changed("atol") {
			cfg.AbsTol = atol
		}
		if flags.Changed("rtol") {
			cfg.RelTol = rtol
		}
		if flags.Changed("step") {
			cfg.Step = step
		}
		if flags.Changed("out") {
			cfg.Output = output
		}
	case modeSensitivity:
		s := &cfg.Sensitivity
		if flags.Changed("preset") {
			s.Preset = preset
		}
		if flags.Changed("method") {
			s.Method = method
		}
		if flags.Changed("atol") {
			s.AbsTol = atol
		}
		if flags.Changed("rtol") {
			s.RelTol = rtol
		}
		if flags.Changed("step") {
			s.Step = step
		}
		if flags.Changed("out") {
			s.Output = output
		}
		if flags.Changed("targets") {
			s.Targets = targets
		}
		if flags.Changed("factor") {
			s.Factor = factor
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
