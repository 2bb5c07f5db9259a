package device

import (
	"testing"
	"time"
)

func TestKeyPortToggleSynthesizesRelease(t *testing.T) {
	p := NewKeyPort([3]string{"j", "k", "l"})
	t0 := time.Now()

	if !p.Push("j", t0) {
		t.Fatal("bound key must be consumed")
	}
	if !p.Push("j", t0.Add(200*time.Millisecond)) {
		t.Fatal("bound key must be consumed")
	}

	events := p.Poll()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Kind != KindPress || events[0].Control != 1 {
		t.Errorf("first event = %+v, want press of control 1", events[0])
	}
	if events[1].Kind != KindRelease || events[1].Control != 1 {
		t.Errorf("second event = %+v, want release of control 1", events[1])
	}
	if !events[0].Time.Equal(t0) {
		t.Error("event timestamp must be the push time, not the poll time")
	}
	if p.Held(1) {
		t.Error("control 1 should be released after the toggle")
	}
}

func TestKeyPortPollDrains(t *testing.T) {
	p := NewKeyPort([3]string{"j", "k", "l"})
	p.Push("k", time.Now())

	if got := len(p.Poll()); got != 1 {
		t.Fatalf("expected 1 event, got %d", got)
	}
	if got := p.Poll(); got != nil {
		t.Errorf("second poll must be empty, got %d events", len(got))
	}
}

func TestKeyPortCommands(t *testing.T) {
	p := NewKeyPort([3]string{"j", "k", "l"})

	cases := map[string]Command{
		" ":   CmdStartPause,
		"r":   CmdReset,
		"tab": CmdToggleMode,
		"[":   CmdWaitDown,
		"]":   CmdWaitUp,
		"-":   CmdReleaseWinDown,
		"=":   CmdReleaseWinUp,
	}
	for key, want := range cases {
		if !p.Push(key, time.Now()) {
			t.Errorf("command key %q not consumed", key)
		}
		events := p.Poll()
		if len(events) != 1 || events[0].Kind != KindCommand || events[0].Cmd != want {
			t.Errorf("key %q produced %+v, want command %s", key, events, want)
		}
	}
}

func TestKeyPortIgnoresUnboundKeys(t *testing.T) {
	p := NewKeyPort([3]string{"j", "k", "l"})
	if p.Push("x", time.Now()) {
		t.Error("unbound key must not be consumed")
	}
	if got := p.Poll(); got != nil {
		t.Errorf("unbound key must not queue events, got %+v", got)
	}
}

func TestKeyPortIndicatorAndActuator(t *testing.T) {
	p := NewKeyPort([3]string{"j", "k", "l"})

	p.SetIndicator(2, true)
	if ind := p.Indicators(); !ind[1] || ind[0] || ind[2] {
		t.Errorf("indicators = %v, want only 2 on", ind)
	}
	p.SetIndicator(0, true) // out of range, ignored
	p.SetIndicator(4, true)
	if ind := p.Indicators(); ind != [3]bool{false, true, false} {
		t.Errorf("indicators = %v after out-of-range sets", ind)
	}

	p.SetActuator(true, time.Hour)
	if !p.ActuatorOn() {
		t.Error("actuator should be on")
	}
	p.SetActuator(false, 0)
	if p.ActuatorOn() {
		t.Error("actuator should be off")
	}
}

func TestKeyPortActuatorAutoStops(t *testing.T) {
	p := NewKeyPort([3]string{"j", "k", "l"})
	p.SetActuator(true, time.Nanosecond)
	time.Sleep(time.Millisecond)
	if p.ActuatorOn() {
		t.Error("actuator must auto-stop after its duration")
	}
}
