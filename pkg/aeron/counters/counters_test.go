package counters

import "testing"

func Test_ManagerTracksNamedCounters(t *testing.T) {
	m := NewManager()
	m.Get(UnblockedPublications).Increment()
	m.Get(UnblockedPublications).Increment()
	m.Get(Errors).Add(3)

	if got := m.Get(UnblockedPublications).Get(); got != 2 {
		t.Errorf("expected 2 unblocked publications, got %d", got)
	}
	if got := m.Get(Errors).Get(); got != 3 {
		t.Errorf("expected 3 errors, got %d", got)
	}

	snap := m.Snapshot()
	if snap["unblocked publications"] != 2 {
		t.Errorf("snapshot missing unblocked publications count: %#v", snap)
	}
}

func Test_UnknownCounterPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("expected panic on unknown counter id")
		}
	}()
	NewManager().Get(9999)
}
