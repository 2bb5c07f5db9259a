package device

import (
	"sync"
	"time"
)

// KeyPort is a keyboard-driven Port for terminal sessions. Terminals do not
// report key releases, so task controls are toggles: the first press of a
// bound key queues a press event, the next press of the same key queues the
// matching release. Events are timestamped when pushed, not when polled.
type KeyPort struct {
	mu         sync.Mutex
	bindings   map[string]int // key rune -> control index (1..3)
	commands   map[string]Command
	queue      []Event
	held       map[int]bool
	indicators [3]bool
	actuatorOn bool
	actuatorAt time.Time
	actuatorDL time.Duration
}

// NewKeyPort builds a KeyPort with the given control bindings. controls maps
// steps 1..3 to key names, e.g. ["j", "k", "l"].
func NewKeyPort(controls [3]string) *KeyPort {
	bindings := make(map[string]int, 3)
	for i, key := range controls {
		if key != "" {
			bindings[key] = i + 1
		}
	}
	return &KeyPort{
		bindings: bindings,
		commands: map[string]Command{
			" ":   CmdStartPause,
			"r":   CmdReset,
			"tab": CmdToggleMode,
			"[":   CmdWaitDown,
			"]":   CmdWaitUp,
			"-":   CmdReleaseWinDown,
			"=":   CmdReleaseWinUp,
		},
		held: make(map[int]bool),
	}
}

// Push translates one key event into a port event. Unknown keys are ignored.
// Returns true if the key was consumed.
func (p *KeyPort) Push(key string, at time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if control, ok := p.bindings[key]; ok {
		kind := KindPress
		if p.held[control] {
			kind = KindRelease
		}
		p.held[control] = !p.held[control]
		p.queue = append(p.queue, Event{Kind: kind, Control: control, Time: at})
		return true
	}
	if cmd, ok := p.commands[key]; ok {
		p.queue = append(p.queue, Event{Kind: KindCommand, Cmd: cmd, Time: at})
		return true
	}
	return false
}

// Poll implements Port.
func (p *KeyPort) Poll() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.queue) == 0 {
		return nil
	}
	out := p.queue
	p.queue = nil
	return out
}

// SetIndicator implements Port.
func (p *KeyPort) SetIndicator(index int, on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if index >= 1 && index <= 3 {
		p.indicators[index-1] = on
	}
}

// SetActuator implements Port.
func (p *KeyPort) SetActuator(on bool, duration time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.actuatorOn = on
	if on {
		p.actuatorAt = time.Now()
		p.actuatorDL = duration
	}
}

// Indicators returns the current indicator line states for display.
func (p *KeyPort) Indicators() [3]bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.indicators
}

// ActuatorOn reports whether reward delivery is active. Delivery auto-stops
// after the requested duration even if the controller never turns it off.
func (p *KeyPort) ActuatorOn() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.actuatorOn && p.actuatorDL > 0 && time.Since(p.actuatorAt) >= p.actuatorDL {
		p.actuatorOn = false
	}
	return p.actuatorOn
}

// Held reports whether a control is currently held (toggled on).
func (p *KeyPort) Held(control int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.held[control]
}
