package task

import "time"

// TrialEventType identifies one entry in a trial's event log.
type TrialEventType string

const (
	EventTrialStart   TrialEventType = "trial_start"
	EventTrialEnd     TrialEventType = "trial_end"
	EventStateEnter   TrialEventType = "state_enter"
	EventPress        TrialEventType = "press"
	EventRelease      TrialEventType = "release"
	EventIndicatorOn  TrialEventType = "indicator_on"
	EventIndicatorOff TrialEventType = "indicator_off"
	EventRewardOn     TrialEventType = "reward_on"
	EventRewardOff    TrialEventType = "reward_off"
	EventITIPress     TrialEventType = "iti_press"
)

// TrialEvent is one timestamped entry in a trial's event log. At is the
// offset from session start on the monotonic clock.
type TrialEvent struct {
	Type    TrialEventType `json:"type"`
	State   State          `json:"state,omitempty"`
	Control int            `json:"control,omitempty"`
	Outcome *Outcome       `json:"outcome,omitempty"`
	At      time.Duration  `json:"at"`
}

// Trial is one attempt at the sequence. It is owned by the state machine
// from start to end, then handed to recorders by value and never mutated
// afterward. Press/release/reward times are offsets from session start.
type Trial struct {
	Index        int            `json:"trial_index"`
	Mode         Mode           `json:"mode"`
	SubjectID    string         `json:"subject_id"`
	SessionLabel string         `json:"session_label,omitempty"`
	StartedWall  time.Time      `json:"trial_start_walltime"`
	StartOffset  time.Duration  `json:"trial_start_monotonic"`
	Events       []TrialEvent   `json:"events"`
	PressTimes   []time.Duration `json:"press_times"`
	ReleaseTimes []time.Duration `json:"release_times"`
	Outcome      Outcome        `json:"result_code"`
	OutcomeText  string         `json:"result_text"`
	RewardOnset  time.Duration  `json:"reward_onset,omitempty"`
	RewardOffset time.Duration  `json:"reward_offset,omitempty"`
	ITIPlanned   time.Duration  `json:"iti_duration_planned"`
	Config       Config         `json:"config_snapshot"`
}

// Adjustment records one adaptive parameter change, logged only when at
// least one wait value actually moved.
type Adjustment struct {
	TrialIndex int               `json:"trial_index"`
	Accuracy   float64           `json:"accuracy"`
	Wait       [3]time.Duration  `json:"wait"`
	At         time.Duration     `json:"at"`
}

// Recorder accepts finished trials. Implementations own the persistence
// format; a failing recorder must never stall trial progression, so errors
// are surfaced to the caller as warnings only.
type Recorder interface {
	Record(t Trial) error
}

// RecorderFunc adapts a function to the Recorder interface.
type RecorderFunc func(t Trial) error

// Record implements Recorder.
func (f RecorderFunc) Record(t Trial) error { return f(t) }
