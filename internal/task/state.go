// Package task implements the trial state machine and session controller for
// the three-step sequence task.
package task

import "time"

// State is the active phase of the trial protocol. Exactly one state is
// active at a time.
type State string

const (
	StateITI         State = "ITI"
	StateWait1       State = "WAIT_1"
	StateInterval1   State = "INTERVAL_1"
	StateWait2       State = "WAIT_2"
	StateInterval2   State = "INTERVAL_2"
	StateWait3       State = "WAIT_3"
	StateReward      State = "REWARD"
	StateShapingWait State = "SHAPING_WAIT"
	StatePaused      State = "PAUSED"
	StateFinished    State = "FINISHED"
)

// Outcome classifies a finished trial. The numeric values are the result
// codes written to recorded data and must not be reordered.
type Outcome int

const (
	OutcomeCorrect        Outcome = 0
	OutcomeNoPress        Outcome = 1
	OutcomeWrongButton    Outcome = 2
	OutcomeHoldTooLong    Outcome = 3
	OutcomePrematurePress Outcome = 4

	// NumOutcomes is the count of outcome codes, for tally arrays.
	NumOutcomes = 5
)

// String returns the human-readable outcome label.
func (o Outcome) String() string {
	switch o {
	case OutcomeCorrect:
		return "Correct"
	case OutcomeNoPress:
		return "No Press"
	case OutcomeWrongButton:
		return "Wrong Button"
	case OutcomeHoldTooLong:
		return "Hold Too Long"
	case OutcomePrematurePress:
		return "Premature Press"
	default:
		return "Unknown"
	}
}

// Mode selects the trial protocol variant.
type Mode string

const (
	// ModeSequence3 runs the full three-step press sequence.
	ModeSequence3 Mode = "sequence3"
	// ModeShaping1 runs a single-step variant on the configured target step.
	ModeShaping1 Mode = "shaping1"
)

// Clock is a monotonic time source. All timing-window arithmetic is measured
// against it; injecting a fake makes the state machine deterministic in tests.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// RealClock returns a Clock backed by the system monotonic clock.
func RealClock() Clock { return realClock{} }
