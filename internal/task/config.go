package task

import "time"

// Absolute bounds for live parameter adjustment, independent of the
// adaptive min/max window.
const (
	minAdjustWait   = 100 * time.Millisecond
	maxAdjustWait   = 10 * time.Second
	minReleaseWin   = 100 * time.Millisecond
	maxReleaseWin   = 5 * time.Second
	adjustIncrement = 100 * time.Millisecond
)

// Config is the timing and mode parameter bundle for a session. It is a
// value object: the session controller owns one mutable copy and each trial
// captures an immutable snapshot at trial start.
type Config struct {
	Mode        Mode
	ShapingStep int // 1..3, target step in shaping mode

	// Per-step wait durations and inter-step intervals.
	Wait     [3]time.Duration
	Interval [2]time.Duration

	RewardDuration time.Duration
	ReleaseWindow  time.Duration

	// Inter-trial interval components. Actual ITI is fixed + uniform(0, rand),
	// resampled every ITI, with the correct/error pair chosen by the previous
	// trial's outcome.
	ITIFixedCorrect time.Duration
	ITIRandCorrect  time.Duration
	ITIFixedError   time.Duration
	ITIRandError    time.Duration

	MaxTrials    int
	SubjectID    string
	SessionLabel string

	// Controls maps steps 1..3 to input key names.
	Controls [3]string

	// Adaptive difficulty tuning.
	AdaptiveEnabled       bool
	AdaptiveWindow        int
	AdaptiveThresholdHigh float64
	AdaptiveThresholdLow  float64
	AdaptiveStep          time.Duration
	MinWait               time.Duration
	MaxWait               time.Duration

	// Seed makes ITI draws deterministic when non-nil.
	Seed *int64
}

// DefaultConfig returns the standard task parameters.
func DefaultConfig() Config {
	return Config{
		Mode:            ModeSequence3,
		ShapingStep:     1,
		Wait:            [3]time.Duration{3 * time.Second, 3 * time.Second, 3 * time.Second},
		Interval:        [2]time.Duration{500 * time.Millisecond, 500 * time.Millisecond},
		RewardDuration:  300 * time.Millisecond,
		ReleaseWindow:   time.Second,
		ITIFixedCorrect: time.Second,
		ITIRandCorrect:  time.Second,
		ITIFixedError:   2 * time.Second,
		ITIRandError:    time.Second,
		MaxTrials:       500,
		SubjectID:       "M001",
		Controls:        [3]string{"j", "k", "l"},
		AdaptiveWindow:  20,

		AdaptiveThresholdHigh: 0.85,
		AdaptiveThresholdLow:  0.60,
		AdaptiveStep:          100 * time.Millisecond,
		MinWait:               time.Second,
		MaxWait:               5 * time.Second,
	}
}

// Sanitize clamps every parameter to a valid value. Bad input never fails a
// running session; it is pulled to the nearest legal bound instead.
func (c *Config) Sanitize() {
	if c.Mode != ModeShaping1 {
		c.Mode = ModeSequence3
	}
	if c.ShapingStep < 1 {
		c.ShapingStep = 1
	}
	if c.ShapingStep > 3 {
		c.ShapingStep = 3
	}
	for i := range c.Wait {
		c.Wait[i] = clampDur(c.Wait[i], minAdjustWait, maxAdjustWait)
	}
	for i := range c.Interval {
		c.Interval[i] = clampDur(c.Interval[i], 0, maxAdjustWait)
	}
	c.RewardDuration = clampDur(c.RewardDuration, 0, maxAdjustWait)
	c.ReleaseWindow = clampDur(c.ReleaseWindow, minReleaseWin, maxReleaseWin)
	c.ITIFixedCorrect = clampDur(c.ITIFixedCorrect, 0, maxAdjustWait)
	c.ITIRandCorrect = clampDur(c.ITIRandCorrect, 0, maxAdjustWait)
	c.ITIFixedError = clampDur(c.ITIFixedError, 0, maxAdjustWait)
	c.ITIRandError = clampDur(c.ITIRandError, 0, maxAdjustWait)
	if c.MaxTrials < 1 {
		c.MaxTrials = 1
	}
	if c.AdaptiveWindow < 1 {
		c.AdaptiveWindow = 1
	}
	c.AdaptiveThresholdHigh = clampFloat(c.AdaptiveThresholdHigh, 0, 1)
	c.AdaptiveThresholdLow = clampFloat(c.AdaptiveThresholdLow, 0, 1)
	if c.AdaptiveStep < 0 {
		c.AdaptiveStep = 0
	}
	c.MinWait = clampDur(c.MinWait, minAdjustWait, maxAdjustWait)
	c.MaxWait = clampDur(c.MaxWait, c.MinWait, maxAdjustWait)
}

// WaitForStep returns the wait duration bound to a step (1..3).
func (c *Config) WaitForStep(step int) time.Duration {
	if step < 1 || step > 3 {
		return 0
	}
	return c.Wait[step-1]
}

// AdjustWait shifts the wait duration for a step by delta, clamped to the
// absolute adjustment range.
func (c *Config) AdjustWait(step int, delta time.Duration) {
	if step < 1 || step > 3 {
		return
	}
	c.Wait[step-1] = clampDur(c.Wait[step-1]+delta, minAdjustWait, maxAdjustWait)
}

// AdjustReleaseWindow shifts the shared release window by delta, clamped to
// its absolute range.
func (c *Config) AdjustReleaseWindow(delta time.Duration) {
	c.ReleaseWindow = clampDur(c.ReleaseWindow+delta, minReleaseWin, maxReleaseWin)
}

func clampDur(d, lo, hi time.Duration) time.Duration {
	if d < lo {
		return lo
	}
	if d > hi {
		return hi
	}
	return d
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
