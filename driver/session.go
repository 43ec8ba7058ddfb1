package driver

import "fmt"

// streamKey identifies the tuple the session allocator must not collide
// on (spec.md §4.C "Session id allocation").
type streamKey struct {
	sessionID int32
	streamID  int32
	channel   string
}

// SessionAllocator hands out session ids for new IPC publications: a
// monotone counter, skipping a reserved range, retried until the
// resulting (session_id, stream_id, canonical_channel) tuple is free
// (spec.md §4.C).
type SessionAllocator struct {
	next     int32
	low      int32
	high     int32
	active   map[streamKey]struct{}
}

func NewSessionAllocator(reservedLow, reservedHigh int32) *SessionAllocator {
	return &SessionAllocator{
		next:   reservedHigh + 1,
		low:    reservedLow,
		high:   reservedHigh,
		active: make(map[streamKey]struct{}),
	}
}

// Allocate returns a fresh session id for (streamID, channel), skipping
// the reserved range and any id already active for that tuple.
func (a *SessionAllocator) Allocate(streamID int32, channel string) int32 {
	for {
		candidate := a.next
		a.next++
		if a.next == a.low {
			a.next = a.high + 1
		}
		k := streamKey{sessionID: candidate, streamID: streamID, channel: channel}
		if _, clash := a.active[k]; clash {
			continue
		}
		a.active[k] = struct{}{}
		return candidate
	}
}

// Claim records an explicit session id a client requested, failing if
// that tuple is already active (spec.md §4.C: "If a client requests an
// explicit session id already active, the command fails").
func (a *SessionAllocator) Claim(sessionID, streamID int32, channel string) error {
	k := streamKey{sessionID: sessionID, streamID: streamID, channel: channel}
	if _, clash := a.active[k]; clash {
		return fmt.Errorf("session id %d already active for stream %d channel %q", sessionID, streamID, channel)
	}
	a.active[k] = struct{}{}
	return nil
}

// Release frees a (session, stream, channel) tuple once its publication
// reaches end-of-life.
func (a *SessionAllocator) Release(sessionID, streamID int32, channel string) {
	delete(a.active, streamKey{sessionID: sessionID, streamID: streamID, channel: channel})
}
