package driver

import "testing"

func Test_SessionAllocatorSkipsReservedRange(t *testing.T) {
	a := NewSessionAllocator(-1, 1000)
	id := a.Allocate(5, "aeron:ipc")
	if id <= 1000 {
		t.Errorf("expected allocated session id above reserved high, got %d", id)
	}
}

func Test_SessionAllocatorNeverRepeatsATupleWithoutRelease(t *testing.T) {
	a := NewSessionAllocator(-1, 1000)
	seen := make(map[int32]bool)
	for i := 0; i < 50; i++ {
		id := a.Allocate(1, "aeron:ipc")
		if seen[id] {
			t.Fatalf("session id %d allocated twice for the same stream/channel", id)
		}
		seen[id] = true
	}
}

func Test_SessionAllocatorClaimRejectsActiveTuple(t *testing.T) {
	a := NewSessionAllocator(-1, 1000)
	if err := a.Claim(42, 1, "aeron:ipc"); err != nil {
		t.Fatalf("expected first claim to succeed, got %v", err)
	}
	if err := a.Claim(42, 1, "aeron:ipc"); err == nil {
		t.Fatalf("expected second claim of the same tuple to fail")
	}
}

func Test_SessionAllocatorReleaseFreesTuple(t *testing.T) {
	a := NewSessionAllocator(-1, 1000)
	if err := a.Claim(42, 1, "aeron:ipc"); err != nil {
		t.Fatalf("expected claim to succeed, got %v", err)
	}
	a.Release(42, 1, "aeron:ipc")
	if err := a.Claim(42, 1, "aeron:ipc"); err != nil {
		t.Fatalf("expected claim after release to succeed, got %v", err)
	}
}
