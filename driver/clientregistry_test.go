package driver

import (
	"testing"
	"time"

	"go.uber.org/goleak"
)

func Test_ClientRegistryRegisterIsLive(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := NewClientRegistry(time.Minute)
	r.Register(ClientID(1))
	if !r.IsLive(ClientID(1)) {
		t.Errorf("expected freshly registered client to be live")
	}
	if r.IsLive(ClientID(2)) {
		t.Errorf("expected unregistered client to not be live")
	}
	r.Close()
}

func Test_ClientRegistryTouchExtendsLiveness(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := NewClientRegistry(30 * time.Millisecond)
	r.Register(ClientID(1))

	time.Sleep(15 * time.Millisecond)
	r.Touch(ClientID(1))
	time.Sleep(15 * time.Millisecond)

	if !r.IsLive(ClientID(1)) {
		t.Errorf("expected touch to have extended liveness past the original deadline")
	}
	r.Close()
}

func Test_ClientRegistryTimedOutReportsExpiredClients(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := NewClientRegistry(10 * time.Millisecond)
	r.Register(ClientID(1))
	r.Register(ClientID(2))
	r.Touch(ClientID(2))

	time.Sleep(50 * time.Millisecond)
	r.Touch(ClientID(2)) // keep client 2 alive

	timedOut := r.TimedOut()
	if len(timedOut) != 1 || timedOut[0].ID != ClientID(1) {
		t.Fatalf("expected exactly client 1 timed out, got %+v", timedOut)
	}
	r.Close()
}

func Test_ClientRegistryRemoveDropsClient(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := NewClientRegistry(time.Minute)
	r.Register(ClientID(1))
	r.Remove(ClientID(1))

	if _, ok := r.Get(ClientID(1)); ok {
		t.Errorf("expected client to be gone after Remove")
	}
	if r.IsLive(ClientID(1)) {
		t.Errorf("expected removed client to not be live")
	}
	r.Close()
}
