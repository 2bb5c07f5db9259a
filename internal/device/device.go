// Package device defines the hardware abstraction for the task rig.
package device

import "time"

// EventKind identifies the type of an input event.
type EventKind string

const (
	// KindPress is a control transition from released to held.
	KindPress EventKind = "press"
	// KindRelease is a control transition from held to released.
	KindRelease EventKind = "release"
	// KindCommand is an operator control command (start, reset, ...).
	KindCommand EventKind = "command"
)

// Command identifies an operator control command delivered through the port.
type Command string

const (
	CmdStartPause     Command = "start_pause"
	CmdReset          Command = "reset"
	CmdToggleMode     Command = "toggle_mode"
	CmdWaitUp         Command = "wait_up"
	CmdWaitDown       Command = "wait_down"
	CmdReleaseWinUp   Command = "release_window_up"
	CmdReleaseWinDown Command = "release_window_down"
)

// Event is one timestamped input transition or control command.
// Time is captured at the moment of the physical transition, not at
// processing time, so downstream timing math is independent of poll latency.
type Event struct {
	Kind    EventKind
	Control int // 1..3 for press/release, 0 for commands
	Cmd     Command
	Time    time.Time
}

// Port is the rig interface the task core drives. Implementations own the
// physical (or simulated) indicator lines, the reward actuator, and the
// input queue.
type Port interface {
	// SetIndicator switches a stimulus indicator (1..3) on or off.
	SetIndicator(index int, on bool)

	// SetActuator switches the reward actuator. When turning on, duration
	// is the intended delivery time; implementations may use it to
	// auto-stop delivery if the controller never turns it off.
	SetActuator(on bool, duration time.Duration)

	// Poll drains and returns pending input events in arrival order.
	// It never blocks.
	Poll() []Event
}
