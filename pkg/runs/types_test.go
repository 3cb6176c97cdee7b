package runs

import "testing"

// TestCanTransition walks the full status transition table: queued may only
// move to running, running only to a terminal status, and nothing leaves a
// terminal status.
func TestCanTransition(t *testing.T) {
	statuses := []Status{StatusQueued, StatusRunning, StatusDone, StatusFailed}
	allowed := map[[2]Status]bool{
		{StatusQueued, StatusRunning}: true,
		{StatusRunning, StatusDone}:   true,
		{StatusRunning, StatusFailed}: true,
	}

	for _, from := range statuses {
		for _, to := range statuses {
			want := allowed[[2]Status{from, to}]
			if got := CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

// TestStatusTerminal verifies done and failed are the absorbing statuses.
func TestStatusTerminal(t *testing.T) {
	for _, tc := range []struct {
		status Status
		want   bool
	}{
		{StatusQueued, false},
		{StatusRunning, false},
		{StatusDone, true},
		{StatusFailed, true},
	} {
		if got := tc.status.Terminal(); got != tc.want {
			t.Errorf("%s.Terminal() = %v, want %v", tc.status, got, tc.want)
		}
	}
}
