package procman

import "testing"

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateSpawned, "spawned"},
		{StateRunning, "running"},
		{StateExited, "exited"},
		{StateFailed, "failed"},
		{StateKilled, "killed"},
		{State(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestStateIsTerminal(t *testing.T) {
	tests := []struct {
		state State
		want  bool
	}{
		{StateSpawned, false},
		{StateRunning, false},
		{StateExited, true},
		{StateFailed, true},
		{StateKilled, true},
	}

	for _, tt := range tests {
		if got := tt.state.IsTerminal(); got != tt.want {
			t.Errorf("%s.IsTerminal() = %v, want %v", tt.state, got, tt.want)
		}
	}
}
