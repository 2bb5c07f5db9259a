package task

import (
	"time"

	"github.com/operantlab/triseq/internal/device"
)

// machine is the trial state machine. It owns the current trial's buffers
// and press/release bookkeeping, advancing one state per tick or per input
// event. It is driven exclusively by the Session on a single logic goroutine.
type machine struct {
	cfg          *Config
	port         device.Port
	sessionStart time.Time

	state        State
	stateEntered time.Time

	trial    Trial
	hasPress bool
	pressAt  time.Time
	held     map[int]bool

	itiDuration time.Duration
	itiLatched  bool
}

// inputResult is what one press/release event did to the trial.
type inputResult struct {
	trialOver bool
	outcome   Outcome
	itiPress  int  // control pressed during ITI, 0 otherwise
	itiFirst  bool // first press of the current ITI (latch fired)
}

// tickResult is what one timeout evaluation did to the trial.
type tickResult struct {
	trialOver  bool
	outcome    Outcome
	itiElapsed bool // ITI is over and all controls are released
}

func newMachine(cfg *Config, port device.Port) *machine {
	return &machine{
		cfg:   cfg,
		port:  port,
		state: StateITI,
		held:  make(map[int]bool),
	}
}

// offset converts an absolute timestamp to a session-relative one.
func (m *machine) offset(t time.Time) time.Duration {
	return t.Sub(m.sessionStart)
}

func (m *machine) logEvent(ev TrialEvent) {
	m.trial.Events = append(m.trial.Events, ev)
}

func isWaitState(s State) bool {
	switch s {
	case StateWait1, StateWait2, StateWait3, StateShapingWait:
		return true
	}
	return false
}

// expectedControl returns the control bound to the active wait state, or 0
// when no wait state is active.
func (m *machine) expectedControl() int {
	switch m.state {
	case StateWait1:
		return 1
	case StateWait2:
		return 2
	case StateWait3:
		return 3
	case StateShapingWait:
		return m.cfg.ShapingStep
	}
	return 0
}

// currentWait returns the wait duration bound to the active wait state.
func (m *machine) currentWait() time.Duration {
	return m.cfg.WaitForStep(m.expectedControl())
}

func (m *machine) anyHeld() bool {
	for _, h := range m.held {
		if h {
			return true
		}
	}
	return false
}

func (m *machine) enterState(s State, now time.Time) {
	m.state = s
	m.stateEntered = now
	m.logEvent(TrialEvent{Type: EventStateEnter, State: s, At: m.offset(now)})

	switch {
	case s == StateITI:
		for i := 1; i <= 3; i++ {
			m.port.SetIndicator(i, false)
		}
		m.itiLatched = false
	case isWaitState(s):
		m.hasPress = false
		c := m.expectedControl()
		m.port.SetIndicator(c, true)
		m.logEvent(TrialEvent{Type: EventIndicatorOn, Control: c, At: m.offset(now)})
	case s == StateReward:
		for i := 1; i <= 3; i++ {
			m.port.SetIndicator(i, false)
		}
		m.port.SetActuator(true, m.cfg.RewardDuration)
		m.trial.RewardOnset = m.offset(now)
		m.logEvent(TrialEvent{Type: EventRewardOn, At: m.offset(now)})
	}
}

// beginTrial clears per-trial buffers, snapshots the configuration, and
// enters the mode-appropriate first wait state.
func (m *machine) beginTrial(index int, now, wall time.Time) {
	m.trial = Trial{
		Index:        index,
		Mode:         m.cfg.Mode,
		SubjectID:    m.cfg.SubjectID,
		SessionLabel: m.cfg.SessionLabel,
		StartedWall:  wall,
		StartOffset:  m.offset(now),
		Config:       *m.cfg,
	}
	m.hasPress = false
	m.logEvent(TrialEvent{Type: EventTrialStart, At: m.offset(now)})

	if m.cfg.Mode == ModeShaping1 {
		m.enterState(StateShapingWait, now)
	} else {
		m.enterState(StateWait1, now)
	}
}

// endTrial assigns the trial's outcome. Assignment is terminal; the Session
// hands the trial to recorders and re-enters the ITI afterwards.
func (m *machine) endTrial(o Outcome, now time.Time) {
	m.trial.Outcome = o
	m.trial.OutcomeText = o.String()
	oc := o
	m.logEvent(TrialEvent{Type: EventTrialEnd, Outcome: &oc, At: m.offset(now)})
}

// beginITI enters the inter-trial interval with a freshly drawn duration.
func (m *machine) beginITI(d time.Duration, now time.Time) {
	m.itiDuration = d
	m.enterState(StateITI, now)
}

// finish enters the terminal state once the trial cap is reached.
func (m *machine) finish(now time.Time) {
	m.enterState(StateFinished, now)
}

// handlePress processes one control press at its captured timestamp.
func (m *machine) handlePress(c int, ts time.Time) inputResult {
	m.held[c] = true
	m.logEvent(TrialEvent{Type: EventPress, Control: c, At: m.offset(ts)})

	switch m.state {
	case StateITI:
		// A press during the ITI never resets the interval and never ends a
		// trial; the latch keeps the premature count at one per ITI.
		res := inputResult{itiPress: c}
		if !m.itiLatched {
			m.itiLatched = true
			res.itiFirst = true
			m.logEvent(TrialEvent{Type: EventITIPress, Control: c, At: m.offset(ts)})
		}
		return res

	case StateInterval1, StateInterval2, StateReward:
		if m.state == StateReward {
			m.port.SetActuator(false, 0)
		}
		return inputResult{trialOver: true, outcome: OutcomePrematurePress}

	case StateWait1, StateWait2, StateWait3, StateShapingWait:
		if c != m.expectedControl() {
			return inputResult{trialOver: true, outcome: OutcomeWrongButton}
		}
		// Only the first press is authoritative for timing; repeats of the
		// same control are logged as raw events above and otherwise ignored.
		if !m.hasPress {
			m.hasPress = true
			m.pressAt = ts
			m.trial.PressTimes = append(m.trial.PressTimes, m.offset(ts))
		}
	}
	return inputResult{}
}

// handleRelease processes one control release at its captured timestamp.
func (m *machine) handleRelease(c int, ts time.Time) inputResult {
	delete(m.held, c)
	m.logEvent(TrialEvent{Type: EventRelease, Control: c, At: m.offset(ts)})

	// A release with no matching recorded press is not a classifiable
	// outcome and is ignored.
	if !isWaitState(m.state) || !m.hasPress || c != m.expectedControl() {
		return inputResult{}
	}

	m.trial.ReleaseTimes = append(m.trial.ReleaseTimes, m.offset(ts))

	// The deadline is anchored to state entry: wait end plus the release
	// window. The boundary is inclusive.
	deadline := m.stateEntered.Add(m.currentWait() + m.cfg.ReleaseWindow)
	if ts.After(deadline) {
		return inputResult{trialOver: true, outcome: OutcomeHoldTooLong}
	}

	m.advance(ts)
	return inputResult{}
}

// advance moves past a successfully completed wait state.
func (m *machine) advance(now time.Time) {
	c := m.expectedControl()
	m.port.SetIndicator(c, false)
	m.logEvent(TrialEvent{Type: EventIndicatorOff, Control: c, At: m.offset(now)})

	switch m.state {
	case StateWait1:
		m.enterState(StateInterval1, now)
	case StateWait2:
		m.enterState(StateInterval2, now)
	case StateWait3, StateShapingWait:
		m.enterState(StateReward, now)
	}
}

// tick evaluates every timeout-driven transition for the current state.
func (m *machine) tick(now time.Time) tickResult {
	elapsed := now.Sub(m.stateEntered)

	switch m.state {
	case StateITI:
		// Leaving the ITI requires every task control released.
		if elapsed >= m.itiDuration && !m.anyHeld() {
			return tickResult{itiElapsed: true}
		}

	case StateWait1, StateWait2, StateWait3, StateShapingWait:
		// Holding past the release window fails immediately, even if the
		// nominal wait period has not elapsed. Checked before the no-press
		// rule so the hold timeout wins when both fire in one tick.
		if m.hasPress && now.Sub(m.pressAt) >= m.cfg.ReleaseWindow {
			c := m.expectedControl()
			m.port.SetIndicator(c, false)
			m.logEvent(TrialEvent{Type: EventIndicatorOff, Control: c, At: m.offset(now)})
			return tickResult{trialOver: true, outcome: OutcomeHoldTooLong}
		}
		if !m.hasPress && elapsed >= m.currentWait() {
			return tickResult{trialOver: true, outcome: OutcomeNoPress}
		}

	case StateInterval1:
		if elapsed >= m.cfg.Interval[0] {
			m.enterState(StateWait2, now)
		}

	case StateInterval2:
		if elapsed >= m.cfg.Interval[1] {
			m.enterState(StateWait3, now)
		}

	case StateReward:
		if elapsed >= m.cfg.RewardDuration {
			m.port.SetActuator(false, 0)
			m.trial.RewardOffset = m.offset(now)
			m.logEvent(TrialEvent{Type: EventRewardOff, At: m.offset(now)})
			return tickResult{trialOver: true, outcome: OutcomeCorrect}
		}
	}
	return tickResult{}
}

// remaining reports the time left before the current state's timeout fires,
// floored at zero. Display use only.
func (m *machine) remaining(now time.Time) time.Duration {
	var bound time.Duration
	switch m.state {
	case StateITI:
		bound = m.itiDuration
	case StateWait1, StateWait2, StateWait3, StateShapingWait:
		bound = m.currentWait()
	case StateInterval1:
		bound = m.cfg.Interval[0]
	case StateInterval2:
		bound = m.cfg.Interval[1]
	case StateReward:
		bound = m.cfg.RewardDuration
	default:
		return 0
	}
	rem := bound - now.Sub(m.stateEntered)
	if rem < 0 {
		return 0
	}
	return rem
}
