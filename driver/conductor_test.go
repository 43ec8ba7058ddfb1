package driver

import (
	"testing"
	"time"

	"github.com/aeronio/aeron-go/pkg/aeron/buffer"
	"github.com/aeronio/aeron-go/pkg/aeron/ipc"
)

// withSmallTestLogBuffers overrides the createLogBuffer seam with a
// small, deterministic term length so conductor tests don't allocate a
// full 16MiB term per publication, and restores the original hook on
// cleanup.
func withSmallTestLogBuffers(t *testing.T) {
	t.Helper()
	prev := createLogBuffer
	createLogBuffer = func(c *Conductor, correlationID int64, sessionID, streamID int32) (*buffer.LogBuffer, error) {
		const termLength = 64 * 1024
		mem := make([]byte, buffer.RequiredLength(termLength))
		mapped := &buffer.MappedFile{Mem: mem}
		return buffer.New(mapped, termLength, 0, sessionID, streamID)
	}
	t.Cleanup(func() { createLogBuffer = prev })
}

func newTestConductor(t *testing.T, ringCapacity int) *Conductor {
	t.Helper()
	withSmallTestLogBuffers(t)
	cfg := NewConfig(
		WithClientLivenessTimeout(time.Hour),
		WithTimerInterval(time.Nanosecond),
	)
	return NewConductor(cfg, make([]byte, ringCapacity), nil)
}

func submit(t *testing.T, c *Conductor, clientID int64, correlationID int64, cmdType CommandType, payload interface{}) {
	t.Helper()
	header := CommandHeader{Type: cmdType, ClientID: clientID, CorrelationID: correlationID}
	raw, err := EncodeCommand(header, payload)
	if err != nil {
		t.Fatalf("unexpected encode error: %v", err)
	}
	if err := c.commandRing.Write(raw); err != nil {
		t.Fatalf("unexpected ring write error: %v", err)
	}
}

func Test_ConductorAddPublicationAllocatesSessionAndRegisters(t *testing.T) {
	c := newTestConductor(t, 4096)
	c.registry.Clients.Register(ClientID(1))

	submit(t, c, 1, 10, CmdAddPublication, AddPublicationPayload{Channel: "aeron:ipc", StreamID: 5})
	c.Tick()

	if len(c.registry.Publications) != 1 {
		t.Fatalf("expected 1 publication registered, got %d", len(c.registry.Publications))
	}
	pub, ok := c.registry.Publications[10]
	if !ok {
		t.Fatalf("expected publication keyed by correlation id 10")
	}
	if pub.StreamID != 5 {
		t.Errorf("expected stream id 5, got %d", pub.StreamID)
	}
	if pub.SessionID <= c.cfg.ReservedSessionIDHigh {
		t.Errorf("expected session id above the reserved range, got %d", pub.SessionID)
	}
}

func Test_ConductorLazilyRegistersClientOnFirstAddPublication(t *testing.T) {
	c := newTestConductor(t, 4096)

	submit(t, c, 1, 10, CmdAddPublication, AddPublicationPayload{Channel: "aeron:ipc", StreamID: 5})
	c.Tick()

	if len(c.registry.Publications) != 1 {
		t.Errorf("expected a never-before-seen client's add-publication to succeed via lazy registration, got %d publications", len(c.registry.Publications))
	}
	if _, ok := c.registry.Clients.Get(ClientID(1)); !ok {
		t.Errorf("expected client 1 to be registered after its first command")
	}
}

func Test_ConductorRejectsKeepaliveFromUnknownClient(t *testing.T) {
	c := newTestConductor(t, 4096)

	submit(t, c, 1, 10, CmdClientKeepalive, struct{}{})
	c.Tick()

	if _, ok := c.registry.Clients.Get(ClientID(1)); ok {
		t.Errorf("expected a keepalive from a never-registered client to be rejected, not to register it")
	}
}

func Test_ConductorAddSubscriptionLinksToExistingPublication(t *testing.T) {
	c := newTestConductor(t, 4096)
	c.registry.Clients.Register(ClientID(1))

	submit(t, c, 1, 10, CmdAddPublication, AddPublicationPayload{Channel: "aeron:ipc", StreamID: 5})
	c.Tick()

	submit(t, c, 1, 11, CmdAddSubscription, AddSubscriptionPayload{Channel: "aeron:ipc", StreamID: 5, Tether: true})
	c.Tick()

	link, ok := c.registry.Subscriptions[11]
	if !ok {
		t.Fatalf("expected subscription link keyed by correlation id 11")
	}
	if len(link.Images) != 1 {
		t.Fatalf("expected subscription to have joined 1 image, got %d", len(link.Images))
	}

	pub := c.registry.Publications[10]
	if len(pub.Subscribers()) != 1 {
		t.Errorf("expected publication to have 1 subscriber, got %d", len(pub.Subscribers()))
	}
}

func Test_ConductorAddSubscriptionRejectsTetherClash(t *testing.T) {
	c := newTestConductor(t, 4096)
	c.registry.Clients.Register(ClientID(1))

	submit(t, c, 1, 10, CmdAddSubscription, AddSubscriptionPayload{Channel: "aeron:ipc", StreamID: 5, Tether: true})
	c.Tick()
	submit(t, c, 1, 11, CmdAddSubscription, AddSubscriptionPayload{Channel: "aeron:ipc", StreamID: 5, Tether: false})
	c.Tick()

	if len(c.registry.Subscriptions) != 1 {
		t.Errorf("expected the clashing subscription to be rejected, got %d subscriptions", len(c.registry.Subscriptions))
	}
	if _, ok := c.registry.Subscriptions[10]; !ok {
		t.Errorf("expected the original subscription to remain registered")
	}
}

func Test_ConductorRemovePublicationDecrefsToInactive(t *testing.T) {
	c := newTestConductor(t, 4096)
	c.registry.Clients.Register(ClientID(1))

	submit(t, c, 1, 10, CmdAddPublication, AddPublicationPayload{Channel: "aeron:ipc", StreamID: 5})
	c.Tick()

	submit(t, c, 1, 11, CmdRemovePublication, RemoveResourcePayload{RegistrationID: 10})
	c.Tick()

	pub := c.registry.Publications[10]
	if pub == nil {
		t.Fatalf("expected publication to still be present pending linger/end-of-life")
	}
	if pub.State() != ipc.StateInactive {
		t.Errorf("expected a decref'd single-refcount publication to go inactive, got %v", pub.State())
	}
}

func Test_ConductorTimedOutClientTearsDownItsResources(t *testing.T) {
	c := newTestConductor(t, 4096)
	c.cfg.ClientLivenessTimeout = time.Millisecond
	c.registry.Clients = NewClientRegistry(time.Millisecond)
	c.registry.Clients.Register(ClientID(1))

	submit(t, c, 1, 10, CmdAddPublication, AddPublicationPayload{Channel: "aeron:ipc", StreamID: 5})
	c.Tick()

	time.Sleep(20 * time.Millisecond)
	c.checkManagedResources(c.clock.NowNs(), c.clock.NowMs())

	if _, ok := c.registry.Clients.Get(ClientID(1)); ok {
		t.Errorf("expected timed-out client to be removed from the registry")
	}
}

func Test_ConductorReleasesSessionOnceItsPublicationReachesEndOfLife(t *testing.T) {
	c := newTestConductor(t, 4096)
	c.registry.Clients.Register(ClientID(1))

	submit(t, c, 1, 10, CmdAddPublication, AddPublicationPayload{Channel: "aeron:ipc", StreamID: 5, ExplicitSession: true, SessionID: 99})
	c.Tick()
	if _, ok := c.registry.Publications[10]; !ok {
		t.Fatalf("expected publication 10 to be registered")
	}

	submit(t, c, 1, 20, CmdRemovePublication, RemoveResourcePayload{RegistrationID: 10})
	c.Tick()

	nowNs, nowMs := c.clock.NowNs(), c.clock.NowMs()
	c.checkManagedResources(nowNs, nowMs) // ACTIVE decref'd to INACTIVE -> drained -> LINGER
	c.checkManagedResources(nowNs, nowMs) // LINGER -> end-of-life, tears down

	if _, ok := c.registry.Publications[10]; ok {
		t.Fatalf("expected the publication to be torn down after reaching end-of-life")
	}
	if err := c.registry.Sessions.Claim(99, 5, "aeron:ipc"); err != nil {
		t.Fatalf("expected session 99/stream 5/aeron:ipc to be reclaimable after its publication closed, got %v", err)
	}
}

func Test_ConductorClientKeepaliveTouchesLiveness(t *testing.T) {
	c := newTestConductor(t, 4096)
	c.registry.Clients.Register(ClientID(1))

	submit(t, c, 1, 10, CmdClientKeepalive, struct{}{})
	c.Tick()

	if !c.registry.Clients.IsLive(ClientID(1)) {
		t.Errorf("expected the client to remain live after a keepalive command")
	}
}
