package driver

import (
	"strconv"
	"time"

	"github.com/ReneKroon/ttlcache"
)

// ClientID identifies one client process attached to the driver's
// command ring (spec.md §4.C, §6 "Command protocol").
type ClientID int64

// Client is the conductor-owned record spec.md §4.C's "Blocked-commands
// check" and "Client heartbeat timeout" failure semantics operate on.
type Client struct {
	ID ClientID

	// PublicationIDs/SubscriptionIDs are the registration ids this
	// client owns, used to decref/remove everything on timeout (spec.md
	// §4 failure semantics: "all its publications decref'd, all its
	// subscriptions removed").
	PublicationIDs  []int64
	SubscriptionIDs []int64
}

// ClientRegistry tracks per-client liveness, adapted from the teacher's
// TtlCache (internal/cache.go): that structure only ever asked "have I
// seen this key recently", which is exactly the liveness question spec.md
// §4 "Client heartbeat timeout" needs, generalized here from an
// internal deliver-dedup cache to a client-keepalive tracker.
type ClientRegistry struct {
	clients map[ClientID]*Client
	liveness *ttlcache.Cache
}

// NewClientRegistry builds a registry whose liveness cache expires an
// entry after livenessTimeout of no Touch calls, matching
// `client_liveness_timeout_ns` (spec.md §6).
func NewClientRegistry(livenessTimeout time.Duration) *ClientRegistry {
	cache := ttlcache.NewCache()
	cache.SetTTL(livenessTimeout)
	return &ClientRegistry{
		clients:  make(map[ClientID]*Client),
		liveness: cache,
	}
}

// Register adds a new client and marks it alive as of now.
func (r *ClientRegistry) Register(id ClientID) *Client {
	c := &Client{ID: id}
	r.clients[id] = c
	r.touch(id)
	return c
}

// GetOrAdd returns the client record for id, registering it first if this
// is its first time being seen (spec.md §12.4: most command handlers
// lazily add an unknown client rather than rejecting it outright; only
// the explicit keepalive handler requires pre-existing registration).
func (r *ClientRegistry) GetOrAdd(id ClientID) *Client {
	if c, ok := r.clients[id]; ok {
		return c
	}
	return r.Register(id)
}

// Touch refreshes a client's liveness deadline (spec.md §12.5: called both
// from the explicit keepalive handler and from generic command dispatch,
// since any valid command counts as liveness).
func (r *ClientRegistry) Touch(id ClientID) {
	if _, ok := r.clients[id]; !ok {
		return
	}
	r.touch(id)
}

func (r *ClientRegistry) touch(id ClientID) {
	r.liveness.Set(strconv.FormatInt(int64(id), 10), struct{}{})
}

// IsLive reports whether id has been touched within the liveness timeout.
func (r *ClientRegistry) IsLive(id ClientID) bool {
	_, ok := r.liveness.Get(strconv.FormatInt(int64(id), 10))
	return ok
}

// Get returns the client record, if registered.
func (r *ClientRegistry) Get(id ClientID) (*Client, bool) {
	c, ok := r.clients[id]
	return c, ok
}

// TimedOut returns every registered client whose liveness entry has
// expired, for the conductor's checkManagedResources sweep to act on
// (spec.md §4 "Client heartbeat timeout").
func (r *ClientRegistry) TimedOut() []*Client {
	var out []*Client
	for id, c := range r.clients {
		if !r.IsLive(id) {
			out = append(out, c)
		}
	}
	return out
}

// TrackPublication records that client id owns the publication keyed by
// pubCorrelationID, so a later timeout sweep knows to decref it (spec.md
// §4 "Client heartbeat timeout" failure semantics).
func (r *ClientRegistry) TrackPublication(id ClientID, pubCorrelationID int64) {
	if c, ok := r.clients[id]; ok {
		c.PublicationIDs = append(c.PublicationIDs, pubCorrelationID)
	}
}

// TrackSubscription records that client id owns the subscription keyed by
// subCorrelationID, mirroring TrackPublication.
func (r *ClientRegistry) TrackSubscription(id ClientID, subCorrelationID int64) {
	if c, ok := r.clients[id]; ok {
		c.SubscriptionIDs = append(c.SubscriptionIDs, subCorrelationID)
	}
}

// Remove drops a client from the registry entirely, called once the
// conductor has decref'd all its publications and removed all its
// subscriptions.
func (r *ClientRegistry) Remove(id ClientID) {
	delete(r.clients, id)
	r.liveness.Remove(strconv.FormatInt(int64(id), 10))
}

// Close releases the underlying ttlcache's background sweeper goroutine.
func (r *ClientRegistry) Close() error {
	r.liveness.Close()
	return nil
}
