package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/fermsim/internal/kinetics"
)

const (
	DefaultStart  = 0.0
	DefaultEnd    = 50.0
	DefaultMethod = "rk45"
	DefaultAbsTol = 1e-6
	DefaultRelTol = 1e-3
	DefaultOutput = "growth.png"

	DefaultSensitivityPreset = "sensitivity"
	DefaultFactor            = 1.1
	DefaultGridStep          = 0.1
	DefaultSensitivityMethod = "auto"
	DefaultSensitivityTol    = 1e-10
	DefaultSensitivityOutput = "sensitivity.png"
)

var DefaultTargets = []string{"numaxG", "KSPG", "KiPG"}

var ErrInvalidConfig = errors.New("config: invalid configuration")

type Config struct {
	Preset      string             `yaml:"preset"`
	Params      map[string]float64 `yaml:"params,omitempty"`
	Initial     map[string]float64 `yaml:"initial,omitempty"`
	Start       float64            `yaml:"start"`
	End         float64            `yaml:"end"`
	Step        float64            `yaml:"step,omitempty"`
	Method      string             `yaml:"method"`
	AbsTol      float64            `yaml:"atol"`
	RelTol      float64            `yaml:"rtol"`
	MaxStep     float64            `yaml:"max_step,omitempty"`
	Output      string             `yaml:"output"`
	Sensitivity SensitivityConfig  `yaml:"sensitivity"`
}

type SensitivityConfig struct {
	Preset  string   `yaml:"preset"`
	Targets []string `yaml:"targets"`
	Factor  float64  `yaml:"factor"`
	Step    float64  `yaml:"step"`
	Method  string   `yaml:"method"`
	AbsTol  float64  `yaml:"atol"`
	RelTol  float64  `yaml:"rtol"`
	Output  string   `yaml:"output"`
}

func DefaultConfig() *Config {
	return &Config{
		Preset: "default",
		Start:  DefaultStart,
		End:    DefaultEnd,
		Method: DefaultMethod,
		AbsTol: DefaultAbsTol,
		RelTol: DefaultRelTol,
		Output: DefaultOutput,
		Sensitivity: SensitivityConfig{
			Preset:  DefaultSensitivityPreset,
			Targets: append([]string(nil), DefaultTargets...),
			Factor:  DefaultFactor,
			Step:    DefaultGridStep,
			Method:  DefaultSensitivityMethod,
			AbsTol:  DefaultSensitivityTol,
			RelTol:  DefaultSensitivityTol,
			Output:  DefaultSensitivityOutput,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	switch {
	case !(c.End > c.Start):
		return fmt.Errorf("end %g must be after start %g: %w", c.End, c.Start, ErrInvalidConfig)
	case c.AbsTol < 0 || c.RelTol < 0:
		return fmt.Errorf("tolerances must not be negative: %w", ErrInvalidConfig)
	case c.Step < 0:
		return fmt.Errorf("step must not be negative: %w", ErrInvalidConfig)
	case c.Sensitivity.Factor <= 0 || c.Sensitivity.Factor == 1:
		return fmt.Errorf("sensitivity factor %g must be positive and not 1: %w", c.Sensitivity.Factor, ErrInvalidConfig)
	case c.Sensitivity.Step <= 0:
		return fmt.Errorf("sensitivity step must be positive: %w", ErrInvalidConfig)
	case len(c.Sensitivity.Targets) == 0:
		return fmt.Errorf("sensitivity needs at least one target: %w", ErrInvalidConfig)
	case c.Sensitivity.AbsTol < 0 || c.Sensitivity.RelTol < 0:
		return fmt.Errorf("sensitivity tolerances must not be negative: %w", ErrInvalidConfig)
	}
	if c.Preset != "" && GetPreset(c.Preset) == nil {
		return fmt.Errorf("unknown preset %q: %w", c.Preset, ErrInvalidConfig)
	}
	if c.Sensitivity.Preset != "" && GetPreset(c.Sensitivity.Preset) == nil {
		return fmt.Errorf("unknown sensitivity preset %q: %w", c.Sensitivity.Preset, ErrInvalidConfig)
	}
	return nil
}

// RunParams resolves the preset and then the per-parameter overrides.
func (c *Config) RunParams() (kinetics.Params, error) {
	return resolve(c.Preset, c.Params)
}

// SensitivityParams resolves the sensitivity baseline: its own preset,
// then the same overrides as a single run.
func (c *Config) SensitivityParams() (kinetics.Params, error) {
	return resolve(c.Sensitivity.Preset, c.Params)
}

func (c *Config) InitialComposition() (kinetics.Composition, error) {
	return kinetics.DefaultComposition().Apply(c.Initial)
}

func resolve(preset string, overrides map[string]float64) (kinetics.Params, error) {
	if preset == "" {
		preset = "default"
	}
	p := GetPreset(preset)
	if p == nil {
		return kinetics.Params{}, fmt.Errorf("unknown preset %q: %w", preset, ErrInvalidConfig)
	}
	base, err := p.Resolve()
	if err != nil {
		return kinetics.Params{}, err
	}
	return base.Apply(overrides)
}
