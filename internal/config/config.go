// Package config loads and saves session parameter files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/operantlab/triseq/internal/task"
)

// Config is the YAML-facing parameter file. Durations are expressed in
// seconds so the file edits like the lab's existing protocol sheets.
type Config struct {
	// Mode selects the trial protocol: sequence3 or shaping1.
	Mode string `yaml:"mode"`
	// ShapingStep is the target step (1..3) in shaping mode.
	ShapingStep int `yaml:"shaping_step"`

	// WaitTimes are the per-step press deadlines, in seconds.
	WaitTimes [3]float64 `yaml:"wait_times"`
	// Intervals are the two inter-step gaps, in seconds.
	Intervals [2]float64 `yaml:"intervals"`

	RewardDuration float64 `yaml:"reward_duration"`
	ReleaseWindow  float64 `yaml:"release_window"`

	// ITI components: actual ITI is fixed + uniform(0, rand), with the
	// correct/error pair selected by the previous trial's outcome.
	ITIFixedCorrect float64 `yaml:"iti_fixed_correct"`
	ITIRandCorrect  float64 `yaml:"iti_rand_correct"`
	ITIFixedError   float64 `yaml:"iti_fixed_error"`
	ITIRandError    float64 `yaml:"iti_rand_error"`

	MaxTrials    int    `yaml:"max_trials"`
	SubjectID    string `yaml:"subject_id"`
	SessionLabel string `yaml:"session_label,omitempty"`

	// Controls maps steps 1..3 to input key names.
	Controls [3]string `yaml:"controls"`

	Adaptive AdaptiveConfig `yaml:"adaptive"`

	// DataDir is the root directory for per-session trial files.
	DataDir string `yaml:"data_dir"`
	// DBPath is the SQLite database location.
	DBPath string `yaml:"db_path"`

	// Seed fixes the ITI random draws when set. Zero means unseeded.
	Seed int64 `yaml:"seed,omitempty"`
}

// AdaptiveConfig tunes automatic wait-time adjustment.
type AdaptiveConfig struct {
	Enabled       bool    `yaml:"enabled"`
	Window        int     `yaml:"window"`
	ThresholdHigh float64 `yaml:"threshold_high"`
	ThresholdLow  float64 `yaml:"threshold_low"`
	Step          float64 `yaml:"step"`
	MinWait       float64 `yaml:"min_wait"`
	MaxWait       float64 `yaml:"max_wait"`
}

// DefaultConfig returns the standard parameter file.
func DefaultConfig() *Config {
	return &Config{
		Mode:            string(task.ModeSequence3),
		ShapingStep:     1,
		WaitTimes:       [3]float64{3.0, 3.0, 3.0},
		Intervals:       [2]float64{0.5, 0.5},
		RewardDuration:  0.3,
		ReleaseWindow:   1.0,
		ITIFixedCorrect: 1.0,
		ITIRandCorrect:  1.0,
		ITIFixedError:   2.0,
		ITIRandError:    1.0,
		MaxTrials:       500,
		SubjectID:       "M001",
		Controls:        [3]string{"j", "k", "l"},
		Adaptive: AdaptiveConfig{
			Enabled:       true,
			Window:        20,
			ThresholdHigh: 0.85,
			ThresholdLow:  0.60,
			Step:          0.1,
			MinWait:       1.0,
			MaxWait:       5.0,
		},
		DataDir: "data",
		DBPath:  filepath.Join("data", "triseq.db"),
	}
}

// Load reads a YAML parameter file. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to a YAML file, creating parent directories
// if needed.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Validate checks the parts of the file the task layer cannot repair by
// clamping: mode names and control bindings must be well formed.
func (c *Config) Validate() error {
	switch c.Mode {
	case string(task.ModeSequence3), string(task.ModeShaping1):
	default:
		return fmt.Errorf("invalid mode %q, must be: %s or %s", c.Mode, task.ModeSequence3, task.ModeShaping1)
	}
	seen := map[string]bool{}
	for i, key := range c.Controls {
		if key == "" {
			return fmt.Errorf("control %d has no key bound", i+1)
		}
		if seen[key] {
			return fmt.Errorf("key %q bound to more than one control", key)
		}
		seen[key] = true
	}
	if c.SubjectID == "" {
		return fmt.Errorf("subject_id must not be empty")
	}
	return nil
}

// ToTask converts the file into the task layer's parameter bundle. Timing
// values out of range are clamped by task.Config.Sanitize, not rejected.
func (c *Config) ToTask() task.Config {
	t := task.Config{
		Mode:            task.Mode(c.Mode),
		ShapingStep:     c.ShapingStep,
		RewardDuration:  dur(c.RewardDuration),
		ReleaseWindow:   dur(c.ReleaseWindow),
		ITIFixedCorrect: dur(c.ITIFixedCorrect),
		ITIRandCorrect:  dur(c.ITIRandCorrect),
		ITIFixedError:   dur(c.ITIFixedError),
		ITIRandError:    dur(c.ITIRandError),
		MaxTrials:       c.MaxTrials,
		SubjectID:       c.SubjectID,
		SessionLabel:    c.SessionLabel,
		Controls:        c.Controls,

		AdaptiveEnabled:       c.Adaptive.Enabled,
		AdaptiveWindow:        c.Adaptive.Window,
		AdaptiveThresholdHigh: c.Adaptive.ThresholdHigh,
		AdaptiveThresholdLow:  c.Adaptive.ThresholdLow,
		AdaptiveStep:          dur(c.Adaptive.Step),
		MinWait:               dur(c.Adaptive.MinWait),
		MaxWait:               dur(c.Adaptive.MaxWait),
	}
	for i, s := range c.WaitTimes {
		t.Wait[i] = dur(s)
	}
	for i, s := range c.Intervals {
		t.Interval[i] = dur(s)
	}
	if c.Seed != 0 {
		seed := c.Seed
		t.Seed = &seed
	}
	return t
}

func dur(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
