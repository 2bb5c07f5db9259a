package task

import (
	"log"
	"math/rand"
	"time"

	"github.com/operantlab/triseq/internal/device"
)

// recentWindow bounds the outcome history retained for display. The full
// history is kept separately for adaptive computation.
const recentWindow = 10

// Session wraps the trial state machine with session-level concerns: trial
// counting, statistics, adaptive difficulty, pause/resume, and reset.
//
// A Session is not safe for concurrent use. All methods must be called from
// one logic goroutine; presentation layers read state through Snapshot.
type Session struct {
	cfg   Config
	port  device.Port
	rec   Recorder
	clock Clock
	rng   *rand.Rand
	m     *machine

	started  bool
	paused   bool
	finished bool

	sessionStart time.Time
	trialCount   int

	stats              [NumOutcomes]int
	results            []Outcome
	adjustments        []Adjustment
	prematureCount     int
	prematureByControl map[int]int
}

// NewSession builds a session controller over the given device port and
// recorder. A nil clock selects the system monotonic clock; a nil recorder
// disables recording. The configuration's seed, when set, makes ITI draws
// deterministic.
func NewSession(cfg Config, port device.Port, rec Recorder, clock Clock) *Session {
	cfg.Sanitize()
	if clock == nil {
		clock = RealClock()
	}

	seed := time.Now().UnixNano()
	if cfg.Seed != nil {
		seed = *cfg.Seed
	}

	s := &Session{
		cfg:                cfg,
		port:               port,
		rec:                rec,
		clock:              clock,
		rng:                rand.New(rand.NewSource(seed)),
		prematureByControl: make(map[int]int),
	}
	s.m = newMachine(&s.cfg, port)

	now := clock.Now()
	s.sessionStart = now
	s.m.sessionStart = now
	s.m.beginITI(s.drawITI(false), now)
	return s
}

// StartSession marks the session started and begins trial 1. Calling it
// again has no effect.
func (s *Session) StartSession() {
	if s.started {
		return
	}
	now := s.clock.Now()
	s.started = true
	s.sessionStart = now
	s.m.sessionStart = now
	s.startNewTrial(now)
}

// Tick drains the device port and advances every timeout-driven transition.
// Call it once per frame (typically 60 Hz). Pausing is cooperative: input
// events for task controls and timeout logic are both skipped while paused,
// but operator commands still apply.
func (s *Session) Tick() {
	for _, ev := range s.port.Poll() {
		s.handleEvent(ev)
	}

	if !s.started || s.paused || s.finished {
		return
	}

	now := s.clock.Now()
	res := s.m.tick(now)
	switch {
	case res.trialOver:
		s.endTrial(res.outcome, now)
	case res.itiElapsed:
		if s.trialCount >= s.cfg.MaxTrials {
			s.finished = true
			s.m.finish(now)
		} else {
			s.startNewTrial(now)
		}
	}
}

func (s *Session) handleEvent(ev device.Event) {
	switch ev.Kind {
	case device.KindCommand:
		s.handleCommand(ev.Cmd)

	case device.KindPress, device.KindRelease:
		if !s.started || s.paused {
			return
		}
		var res inputResult
		if ev.Kind == device.KindPress {
			res = s.m.handlePress(ev.Control, ev.Time)
		} else {
			res = s.m.handleRelease(ev.Control, ev.Time)
		}
		if res.itiPress != 0 {
			s.prematureByControl[res.itiPress]++
			if res.itiFirst {
				s.prematureCount++
			}
		}
		if res.trialOver {
			s.endTrial(res.outcome, ev.Time)
		}
	}
}

func (s *Session) handleCommand(cmd device.Command) {
	switch cmd {
	case device.CmdStartPause:
		if !s.started {
			s.StartSession()
		} else {
			s.TogglePause()
		}
	case device.CmdReset:
		s.Reset()
	case device.CmdToggleMode:
		s.ToggleMode()
	case device.CmdWaitUp:
		s.AdjustWait(adjustIncrement)
	case device.CmdWaitDown:
		s.AdjustWait(-adjustIncrement)
	case device.CmdReleaseWinUp:
		s.AdjustReleaseWindow(adjustIncrement)
	case device.CmdReleaseWinDown:
		s.AdjustReleaseWindow(-adjustIncrement)
	}
}

func (s *Session) startNewTrial(now time.Time) {
	s.trialCount++
	s.applyAdaptive(now)
	s.m.beginTrial(s.trialCount, now, time.Now())
}

// endTrial books the outcome, hands the finished trial to the recorder, and
// re-enters the ITI with a freshly drawn duration. Recorder failures are
// logged and never stall the protocol.
func (s *Session) endTrial(o Outcome, now time.Time) {
	s.m.endTrial(o, now)
	s.results = append(s.results, o)
	s.stats[o]++

	iti := s.drawITI(o == OutcomeCorrect)
	s.m.trial.ITIPlanned = iti

	if s.rec != nil {
		if err := s.rec.Record(s.m.trial); err != nil {
			log.Printf("Warning: trial %d not recorded: %v", s.m.trial.Index, err)
		}
	}

	s.m.beginITI(iti, now)
}

// drawITI resamples the inter-trial interval: fixed + uniform(0, rand),
// with the component pair chosen by the previous outcome.
func (s *Session) drawITI(correct bool) time.Duration {
	fixed, rnd := s.cfg.ITIFixedError, s.cfg.ITIRandError
	if correct {
		fixed, rnd = s.cfg.ITIFixedCorrect, s.cfg.ITIRandCorrect
	}
	if rnd <= 0 {
		return fixed
	}
	return fixed + time.Duration(s.rng.Float64()*float64(rnd))
}

// applyAdaptive tunes the per-step wait durations from rolling accuracy.
// Evaluated once per new trial, only once a full window of outcomes exists.
// An adjustment is recorded only when at least one wait value changed.
func (s *Session) applyAdaptive(now time.Time) {
	if !s.cfg.AdaptiveEnabled || len(s.results) < s.cfg.AdaptiveWindow {
		return
	}

	recent := s.results[len(s.results)-s.cfg.AdaptiveWindow:]
	correct := 0
	for _, o := range recent {
		if o == OutcomeCorrect {
			correct++
		}
	}
	accuracy := float64(correct) / float64(len(recent))

	changed := false
	switch {
	case accuracy >= s.cfg.AdaptiveThresholdHigh:
		for i := range s.cfg.Wait {
			v := s.cfg.Wait[i] - s.cfg.AdaptiveStep
			if v < s.cfg.MinWait {
				v = s.cfg.MinWait
			}
			if v != s.cfg.Wait[i] {
				s.cfg.Wait[i] = v
				changed = true
			}
		}
	case accuracy <= s.cfg.AdaptiveThresholdLow:
		for i := range s.cfg.Wait {
			v := s.cfg.Wait[i] + s.cfg.AdaptiveStep
			if v > s.cfg.MaxWait {
				v = s.cfg.MaxWait
			}
			if v != s.cfg.Wait[i] {
				s.cfg.Wait[i] = v
				changed = true
			}
		}
	}

	if changed {
		s.adjustments = append(s.adjustments, Adjustment{
			TrialIndex: s.trialCount,
			Accuracy:   accuracy,
			Wait:       s.cfg.Wait,
			At:         now.Sub(s.sessionStart),
		})
	}
}

// TogglePause freezes timeout logic. Only effective once the session has
// started. Event timestamps continue to be read from the real clock.
func (s *Session) TogglePause() {
	if !s.started {
		return
	}
	s.paused = !s.paused
}

// ToggleMode swaps between the sequence and shaping protocols. Changing the
// protocol mid-stream invalidates the running statistics, so it implies a
// session reset.
func (s *Session) ToggleMode() {
	if s.cfg.Mode == ModeSequence3 {
		s.cfg.Mode = ModeShaping1
	} else {
		s.cfg.Mode = ModeSequence3
	}
	s.Reset()
}

// Reset zeroes the trial counter, statistics, and adaptive history and
// returns to the ITI with the session marked not started.
func (s *Session) Reset() {
	now := s.clock.Now()
	s.trialCount = 0
	s.results = nil
	s.stats = [NumOutcomes]int{}
	s.adjustments = nil
	s.prematureCount = 0
	s.prematureByControl = make(map[int]int)
	s.started = false
	s.paused = false
	s.finished = false
	s.sessionStart = now
	s.m.sessionStart = now
	s.m.beginITI(s.drawITI(false), now)
}

// AdjustWait shifts the wait duration bound to the currently active step
// (the shaping target in shaping mode). No-op outside wait states.
func (s *Session) AdjustWait(delta time.Duration) {
	if step := s.m.expectedControl(); step != 0 {
		s.cfg.AdjustWait(step, delta)
	}
}

// AdjustReleaseWindow shifts the shared release window.
func (s *Session) AdjustReleaseWindow(delta time.Duration) {
	s.cfg.AdjustReleaseWindow(delta)
}

// Config returns a copy of the live configuration.
func (s *Session) Config() Config {
	return s.cfg
}

// Snapshot is a read-only view of session state for presentation layers,
// taken between ticks.
type Snapshot struct {
	State        State
	StateEntered time.Time
	Remaining    time.Duration
	TrialIndex   int
	Stats        [NumOutcomes]int
	Recent       []Outcome
	Adjustments  []Adjustment
	Config       Config
	Started      bool
	Paused       bool
	Finished     bool

	PrematureCount     int
	PrematureByControl map[int]int
}

// Snapshot captures the current session state.
func (s *Session) Snapshot() Snapshot {
	now := s.clock.Now()

	state := s.m.state
	if s.paused {
		state = StatePaused
	}

	recent := s.results
	if len(recent) > recentWindow {
		recent = recent[len(recent)-recentWindow:]
	}

	byControl := make(map[int]int, len(s.prematureByControl))
	for c, n := range s.prematureByControl {
		byControl[c] = n
	}

	return Snapshot{
		State:        state,
		StateEntered: s.m.stateEntered,
		Remaining:    s.m.remaining(now),
		TrialIndex:   s.trialCount,
		Stats:        s.stats,
		Recent:       append([]Outcome(nil), recent...),
		Adjustments:  append([]Adjustment(nil), s.adjustments...),
		Config:       s.cfg,
		Started:      s.started,
		Paused:       s.paused,
		Finished:     s.finished,

		PrematureCount:     s.prematureCount,
		PrematureByControl: byControl,
	}
}
