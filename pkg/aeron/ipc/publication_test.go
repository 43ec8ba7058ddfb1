package ipc

import (
	"testing"

	"github.com/aeronio/aeron-go/pkg/aeron/buffer"
	"github.com/aeronio/aeron-go/pkg/aeron/counters"
)

type nopLogger struct{}

func (nopLogger) Debugf(string, ...interface{}) {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}

func newTestPublication(t *testing.T, termLength int32, exclusive bool, cfg Config) (*Publication, *buffer.LogBuffer) {
	t.Helper()
	mem := make([]byte, buffer.RequiredLength(termLength))
	mapped := &buffer.MappedFile{Mem: mem}
	lb, err := buffer.New(mapped, termLength, 0, 1, 100)
	if err != nil {
		t.Fatalf("buffer.New: %v", err)
	}
	pub := NewPublication(lb, 1, 100, 1, exclusive, cfg, counters.NewManager(), nopLogger{}, false, 0)
	pub.Incref()
	return pub, lb
}

func defaultConfig() Config {
	return Config{
		WindowLength:                   4096,
		UnblockTimeoutNs:               1_000_000,
		UntetheredWindowLimitTimeoutNs: 5_000_000,
		UntetheredRestingTimeoutNs:     10_000_000,
	}
}

func Test_ReplayPreservesActiveTermCount(t *testing.T) {
	mem := make([]byte, buffer.RequiredLength(64*1024))
	mapped := &buffer.MappedFile{Mem: mem}
	lb, err := buffer.New(mapped, 64*1024, 0, 1, 100)
	if err != nil {
		t.Fatalf("buffer.New: %v", err)
	}

	_ = NewPublication(lb, 1, 100, 1, true, defaultConfig(), counters.NewManager(), nopLogger{}, true, 7)

	if got := lb.Metadata().ActiveTermCount(); got != 7 {
		t.Fatalf("expected replay-set active_term_count to survive construction, got %d", got)
	}
}

func Test_DecrefToZeroCapturesEndOfStreamAndIsIdempotent(t *testing.T) {
	pub, lb := newTestPublication(t, 64*1024, true, defaultConfig())
	pub.PublisherPosition.SetOrdered(500)

	if n := pub.Decref(); n != 0 {
		t.Fatalf("expected refcnt 0 after single decref, got %d", n)
	}
	if pub.State() != StateInactive {
		t.Fatalf("expected INACTIVE after decref to zero, got %v", pub.State())
	}
	eos := lb.Metadata().EndOfStreamPositionVolatile()
	if eos != 500 {
		t.Fatalf("expected end_of_stream_position 500, got %d", eos)
	}

	// A second decref (spec.md §8 invariant 5) must not alter it further.
	pub.PublisherPosition.SetOrdered(999)
	pub.Decref()
	if got := lb.Metadata().EndOfStreamPositionVolatile(); got != 500 {
		t.Fatalf("expected end_of_stream_position to remain 500 after idempotent decref, got %d", got)
	}
}

func Test_UpdatePublisherLimitNoSubscribersIsNoOp(t *testing.T) {
	pub, _ := newTestPublication(t, 64*1024, true, defaultConfig())
	work := pub.UpdatePublisherLimit()
	if work != 0 {
		t.Errorf("expected no-op with zero subscribers")
	}
	if pub.PublisherLimit.Get() != 0 {
		t.Errorf("expected publisher_limit to remain at 0 with no subscribers")
	}
}

func Test_UpdatePublisherLimitAdvancesWithSlowestSubscriber(t *testing.T) {
	pub, _ := newTestPublication(t, 1<<20, true, defaultConfig())
	slow := &Subscriber{RegistrationID: 1, Position: &counters.Position{}}
	fast := &Subscriber{RegistrationID: 2, Position: &counters.Position{}}
	slow.Position.SetOrdered(0)
	fast.Position.SetOrdered(10_000)
	pub.AddSubscriber(slow, 0)
	pub.AddSubscriber(fast, 0)

	pub.UpdatePublisherLimit()
	if got := pub.PublisherLimit.Get(); got != 4096 {
		t.Errorf("expected publisher_limit governed by slowest subscriber (4096), got %d", got)
	}
}

func Test_UntetheredSubscriberEvictedThenRestedThenReadmitted(t *testing.T) {
	cfg := defaultConfig()
	pub, _ := newTestPublication(t, 1<<20, true, cfg)
	pub.PublisherLimit.SetOrdered(100_000)

	sub := &Subscriber{RegistrationID: 5, Position: &counters.Position{}, IsTether: false}
	var notifiedUnavailable, notifiedAvailable int
	pub.NotifyUnavailable = func(*Subscriber) { notifiedUnavailable++ }
	pub.NotifyAvailable = func(*Subscriber) { notifiedAvailable++ }
	pub.AddSubscriber(sub, 0)
	pub.consumerPosition = 100_000

	// Falls behind window limit and stays there past the window timeout.
	pub.checkUntetheredSubscriptions(cfg.UntetheredWindowLimitTimeoutNs + 1)
	if sub.Tether != TetherLinger || notifiedUnavailable != 1 {
		t.Fatalf("expected LINGER + unavailable notification, got tether=%v notified=%d", sub.Tether, notifiedUnavailable)
	}

	pub.checkUntetheredSubscriptions(2*cfg.UntetheredWindowLimitTimeoutNs + 2)
	if sub.Tether != TetherResting {
		t.Fatalf("expected RESTING after a second window timeout, got %v", sub.Tether)
	}

	pub.checkUntetheredSubscriptions(2*cfg.UntetheredWindowLimitTimeoutNs + 2 + cfg.UntetheredRestingTimeoutNs + 1)
	if sub.Tether != TetherActive || notifiedAvailable != 1 {
		t.Fatalf("expected re-admission to ACTIVE with available notification, got tether=%v notified=%d", sub.Tether, notifiedAvailable)
	}
	if sub.Position.Get() != pub.consumerPosition {
		t.Errorf("expected re-admitted subscriber position snapped to consumer position")
	}
}

func Test_TryClaimAdvancesPublisherPositionOnSuccess(t *testing.T) {
	pub, _ := newTestPublication(t, 64*1024, true, defaultConfig())
	pub.PublisherLimit.SetOrdered(1 << 20)

	claim, err := pub.TryClaim(64)
	if err != nil {
		t.Fatalf("unexpected TryClaim error: %v", err)
	}
	if pub.PublisherPosition.Get() != claim.Position() {
		t.Errorf("expected publisher_position to advance to the claim's end position %d, got %d", claim.Position(), pub.PublisherPosition.Get())
	}
}

func Test_TryClaimRejectsWhenItWouldExceedPublisherLimit(t *testing.T) {
	pub, _ := newTestPublication(t, 64*1024, true, defaultConfig())
	pub.PublisherLimit.SetOrdered(32) // smaller than even one aligned 64-byte frame

	if _, err := pub.TryClaim(64); err != buffer.ErrBackPressured {
		t.Fatalf("expected ErrBackPressured, got %v", err)
	}
	if pub.PublisherPosition.Get() != 0 {
		t.Errorf("expected publisher_position to stay at 0 when back-pressured, got %d", pub.PublisherPosition.Get())
	}
}

func Test_BlockedPublisherUnblocksAfterTimeout(t *testing.T) {
	cfg := defaultConfig()
	pub, lb := newTestPublication(t, 64*1024, false, cfg)

	claim, err := lb.Claim(1, 100, 64, false)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	_ = claim // never commit: simulates a crashed shared-session producer

	pub.PublisherPosition.SetOrdered(int64(96)) // aligned length of a 64-byte body
	pub.consumerPosition = 0
	pub.lastConsumerPosition = 0

	pub.checkForBlockedPublisher(0)
	pub.checkForBlockedPublisher(cfg.UnblockTimeoutNs + 1)

	sys := pub.sys.Get(counters.UnblockedPublications).Get()
	if sys != 1 {
		t.Fatalf("expected unblocked_publications counter to be 1, got %d", sys)
	}
}
