package task

import (
	"testing"
	"time"
)

func TestSanitizeClampsOutOfRangeValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Wait[0] = -time.Second
	cfg.Wait[2] = time.Hour
	cfg.ReleaseWindow = 0
	cfg.ShapingStep = 7
	cfg.Mode = Mode("bogus")
	cfg.MaxTrials = -3
	cfg.AdaptiveWindow = 0
	cfg.AdaptiveThresholdHigh = 1.5
	cfg.AdaptiveThresholdLow = -0.2
	cfg.MinWait = 2 * time.Second
	cfg.MaxWait = time.Second // below MinWait

	cfg.Sanitize()

	if cfg.Wait[0] != 100*time.Millisecond {
		t.Errorf("negative wait clamped to %s, want 100ms", cfg.Wait[0])
	}
	if cfg.Wait[2] != 10*time.Second {
		t.Errorf("huge wait clamped to %s, want 10s", cfg.Wait[2])
	}
	if cfg.ReleaseWindow != 100*time.Millisecond {
		t.Errorf("release window clamped to %s, want 100ms", cfg.ReleaseWindow)
	}
	if cfg.ShapingStep != 3 {
		t.Errorf("shaping step = %d, want 3", cfg.ShapingStep)
	}
	if cfg.Mode != ModeSequence3 {
		t.Errorf("mode = %s, want %s", cfg.Mode, ModeSequence3)
	}
	if cfg.MaxTrials != 1 {
		t.Errorf("max trials = %d, want 1", cfg.MaxTrials)
	}
	if cfg.AdaptiveWindow != 1 {
		t.Errorf("adaptive window = %d, want 1", cfg.AdaptiveWindow)
	}
	if cfg.AdaptiveThresholdHigh != 1 || cfg.AdaptiveThresholdLow != 0 {
		t.Errorf("thresholds = %v/%v, want 1/0", cfg.AdaptiveThresholdHigh, cfg.AdaptiveThresholdLow)
	}
	if cfg.MaxWait < cfg.MinWait {
		t.Errorf("MaxWait %s below MinWait %s after sanitize", cfg.MaxWait, cfg.MinWait)
	}
}

func TestAdjustWaitClampsToAbsoluteRange(t *testing.T) {
	cfg := DefaultConfig()

	for i := 0; i < 200; i++ {
		cfg.AdjustWait(1, -100*time.Millisecond)
	}
	if cfg.Wait[0] != 100*time.Millisecond {
		t.Errorf("wait floor = %s, want 100ms", cfg.Wait[0])
	}

	for i := 0; i < 200; i++ {
		cfg.AdjustWait(1, 100*time.Millisecond)
	}
	if cfg.Wait[0] != 10*time.Second {
		t.Errorf("wait ceiling = %s, want 10s", cfg.Wait[0])
	}

	// Out-of-range steps are ignored.
	before := cfg.Wait
	cfg.AdjustWait(0, time.Second)
	cfg.AdjustWait(4, time.Second)
	if cfg.Wait != before {
		t.Error("invalid step index must not change any wait")
	}
}

func TestAdjustReleaseWindowClamps(t *testing.T) {
	cfg := DefaultConfig()

	for i := 0; i < 100; i++ {
		cfg.AdjustReleaseWindow(100 * time.Millisecond)
	}
	if cfg.ReleaseWindow != 5*time.Second {
		t.Errorf("release window ceiling = %s, want 5s", cfg.ReleaseWindow)
	}

	for i := 0; i < 100; i++ {
		cfg.AdjustReleaseWindow(-100 * time.Millisecond)
	}
	if cfg.ReleaseWindow != 100*time.Millisecond {
		t.Errorf("release window floor = %s, want 100ms", cfg.ReleaseWindow)
	}
}

func TestWaitForStep(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Wait = [3]time.Duration{time.Second, 2 * time.Second, 3 * time.Second}

	for step := 1; step <= 3; step++ {
		if got := cfg.WaitForStep(step); got != time.Duration(step)*time.Second {
			t.Errorf("WaitForStep(%d) = %s", step, got)
		}
	}
	if cfg.WaitForStep(0) != 0 || cfg.WaitForStep(4) != 0 {
		t.Error("out-of-range steps must return 0")
	}
}
