package player

import "testing"

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateIdle, "idle"},
		{StateBuffering, "buffering"},
		{StateReady, "ready"},
		{StateEnded, "ended"},
		{State(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestState_IsTerminal(t *testing.T) {
	for _, s := range []State{StateIdle, StateBuffering, StateReady} {
		if s.IsTerminal() {
			t.Errorf("%s.IsTerminal() = true, want false", s)
		}
	}
	if !StateEnded.IsTerminal() {
		t.Error("ended.IsTerminal() = false, want true")
	}
}

func TestEvent_Constructors(t *testing.T) {
	ev := StateChanged(StateEnded)
	if ev.Kind != EventStateChanged || ev.State != StateEnded {
		t.Errorf("StateChanged(ended) = %+v", ev)
	}
	if ev.String() != "state_changed(ended)" {
		t.Errorf("String() = %q", ev.String())
	}

	ev = Error("E_NET", "segment 404")
	if ev.Kind != EventError || ev.Code != "E_NET" || ev.Message != "segment 404" {
		t.Errorf("Error() = %+v", ev)
	}
	if ev.String() != "error(E_NET: segment 404)" {
		t.Errorf("String() = %q", ev.String())
	}
}
