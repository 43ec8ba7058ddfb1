package driver

import (
	"github.com/aeronio/aeron-go/pkg/aeron/image"
	"github.com/aeronio/aeron-go/pkg/aeron/ipc"
)

// SubscriptionLink is a conductor-owned record of one client's attachment
// to a stream (spec.md §3 "Subscribable Entry" realized at the
// conductor level, above the per-publication ipc.Subscriber).
type SubscriptionLink struct {
	RegistrationID int64
	ClientID       ClientID
	Channel        string
	StreamID       int32
	Tether         bool

	// Images are the per-session read views this subscription currently
	// has joined (one per matching IPC publication, spec.md §4.C
	// "Publication/subscription matching").
	Images []*image.Image
}

// Registry holds every conductor-owned resource collection spec.md §4.C
// names: "clients, publication-links, network publications,
// subscription-links, publication images, IPC publications,
// counter-links." Only IPC publications and subscription links are held;
// network publications, images and counter-links have no representation
// here, and no UDP transport is implemented.
type Registry struct {
	Clients       *ClientRegistry
	Publications  map[int64]*ipc.Publication
	Subscriptions map[int64]*SubscriptionLink
	Sessions      *SessionAllocator
}

func NewRegistry(cfg *Config) *Registry {
	return &Registry{
		Clients:       NewClientRegistry(cfg.ClientLivenessTimeout),
		Publications:  make(map[int64]*ipc.Publication),
		Subscriptions: make(map[int64]*SubscriptionLink),
		Sessions:      NewSessionAllocator(cfg.ReservedSessionIDLow, cfg.ReservedSessionIDHigh),
	}
}

// PublicationsByStream returns every ACTIVE IPC publication on streamID,
// for the matching the conductor performs when a new subscription arrives
// (spec.md §4.C "Publication/subscription matching").
func (r *Registry) PublicationsByStream(streamID int32) []*ipc.Publication {
	var out []*ipc.Publication
	for _, pub := range r.Publications {
		if pub.StreamID == streamID && pub.State() == ipc.StateActive {
			out = append(out, pub)
		}
	}
	return out
}

// SubscriptionsByStream returns every subscription link on streamID, used
// to signal available-image when a new publication is created.
func (r *Registry) SubscriptionsByStream(streamID int32) []*SubscriptionLink {
	var out []*SubscriptionLink
	for _, sub := range r.Subscriptions {
		if sub.StreamID == streamID {
			out = append(out, sub)
		}
	}
	return out
}

// ClashesWith reports whether an existing subscription on the same
// channel+stream has an incompatible tether setting (spec.md §4.C
// "Clashing subscriptions": here specialized to the one compatibility
// axis IPC subscriptions have -- tether -- since reliable/rejoin are
// UDP-transport concerns this module's Non-goals exclude).
func (r *Registry) ClashesWith(channel string, streamID int32, tether bool) (*SubscriptionLink, bool) {
	for _, sub := range r.Subscriptions {
		if sub.Channel == channel && sub.StreamID == streamID && sub.Tether != tether {
			return sub, true
		}
	}
	return nil, false
}
