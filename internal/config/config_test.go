package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/operantlab/triseq/internal/task"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Mode != string(task.ModeSequence3) {
		t.Errorf("Default mode = %s", cfg.Mode)
	}
	if cfg.WaitTimes != [3]float64{3.0, 3.0, 3.0} {
		t.Errorf("Default waits = %v", cfg.WaitTimes)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "task.yaml")

	cfg := DefaultConfig()
	cfg.Mode = string(task.ModeShaping1)
	cfg.ShapingStep = 2
	cfg.SubjectID = "m123"
	cfg.WaitTimes[1] = 2.5
	cfg.Seed = 42

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.Mode != string(task.ModeShaping1) || got.ShapingStep != 2 {
		t.Errorf("Mode = %s step %d", got.Mode, got.ShapingStep)
	}
	if got.SubjectID != "m123" || got.WaitTimes[1] != 2.5 || got.Seed != 42 {
		t.Errorf("Round trip mismatch: %+v", got)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "task.yaml")
	partial := "subject_id: m900\nwait_times: [2.0, 2.0, 2.0]\n"
	if err := os.WriteFile(path, []byte(partial), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.SubjectID != "m900" {
		t.Errorf("subject_id = %s", cfg.SubjectID)
	}
	if cfg.WaitTimes[0] != 2.0 {
		t.Errorf("wait_times[0] = %v", cfg.WaitTimes[0])
	}
	// Untouched fields keep their defaults
	if cfg.ReleaseWindow != 1.0 || cfg.MaxTrials != 500 {
		t.Errorf("Defaults lost: %+v", cfg)
	}
}

func TestValidateRejectsBadInput(t *testing.T) {
	cases := map[string]func(*Config){
		"bad mode":      func(c *Config) { c.Mode = "sequence9" },
		"empty control": func(c *Config) { c.Controls[2] = "" },
		"dup control":   func(c *Config) { c.Controls = [3]string{"j", "j", "l"} },
		"no subject":    func(c *Config) { c.SubjectID = "" },
	}
	for name, mutate := range cases {
		cfg := DefaultConfig()
		mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: Validate did not fail", name)
		}
	}
}

func TestToTaskConvertsSecondsToDurations(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WaitTimes = [3]float64{1.5, 2.0, 2.5}
	cfg.ReleaseWindow = 0.8
	cfg.Seed = 7

	tc := cfg.ToTask()
	if tc.Wait[0] != 1500*time.Millisecond || tc.Wait[2] != 2500*time.Millisecond {
		t.Errorf("Waits = %v", tc.Wait)
	}
	if tc.ReleaseWindow != 800*time.Millisecond {
		t.Errorf("Release window = %s", tc.ReleaseWindow)
	}
	if tc.Seed == nil || *tc.Seed != 7 {
		t.Errorf("Seed = %v", tc.Seed)
	}
	if !tc.AdaptiveEnabled || tc.AdaptiveWindow != 20 {
		t.Errorf("Adaptive = %v window %d", tc.AdaptiveEnabled, tc.AdaptiveWindow)
	}

	cfg.Seed = 0
	if tc := cfg.ToTask(); tc.Seed != nil {
		t.Error("Zero seed must convert to nil")
	}
}
