// Package ipc implements the IPC publication engine: one producer, N
// consumers over a single log buffer, with flow control, buffer cleaning,
// unblock recovery, and the untethered-subscriber lifecycle (spec.md
// §4.P). It is the simplest fully-specifiable instance of a log-buffer
// producer.
package ipc

import (
	"sync/atomic"

	"github.com/aeronio/aeron-go/pkg/aeron/buffer"
	"github.com/aeronio/aeron-go/pkg/aeron/counters"
	"github.com/aeronio/aeron-go/pkg/aeron/protocol"
)

// Logger is the minimal structured-logging surface this package needs.
// Any of driver's Logger backends satisfy this structurally, with no
// import of the driver package required (breaking what would otherwise be
// an ipc<->driver import cycle, since the conductor owns Publications).
type Logger interface {
	Debugf(format string, v ...interface{})
	Warnf(format string, v ...interface{})
	Errorf(format string, v ...interface{})
}

// State is the IPC publication lifecycle state (spec.md §4.P state table).
type State int

const (
	StateActive State = iota
	StateInactive
	StateLinger
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "ACTIVE"
	case StateInactive:
		return "INACTIVE"
	case StateLinger:
		return "LINGER"
	default:
		return "UNKNOWN"
	}
}

// TetherState is a subscribable entry's tether state (spec.md §3
// "Subscribable Entry", §4.P "Untethered subscriber protocol").
type TetherState int

const (
	TetherActive TetherState = iota
	TetherLinger
	TetherResting
)

// tripGainShift implements spec.md §4.P's "trip_limit = proposed_limit +
// window_length/8" (spec.md §12.1 supplement names the real driver's
// equivalent constant).
const tripGainShift = 3

// Subscriber is a per-attached-subscriber "Subscribable Entry"
// (spec.md §3).
type Subscriber struct {
	RegistrationID     int64
	CounterID          int32
	Position           *counters.Position
	IsTether           bool
	Tether             TetherState
	TimeOfLastUpdateNs int64
}

// Config carries the flow-control and timeout knobs an IPC publication
// needs (subset of the driver-wide configuration, spec.md §6).
type Config struct {
	WindowLength                    int64
	UnblockTimeoutNs                int64
	UntetheredWindowLimitTimeoutNs  int64
	UntetheredRestingTimeoutNs      int64
}

// Publication is the conductor-owned IPC Publication Record (spec.md §3).
type Publication struct {
	SessionID      int32
	StreamID       int32
	Channel        string
	RegistrationID int64
	Exclusive      bool

	Log              *buffer.LogBuffer
	PublisherPosition *counters.Position
	PublisherLimit    *counters.Position

	subscribers []*Subscriber
	refcnt      int32
	state       State

	cfg       Config
	tripLimit int64

	// consumerPosition and lastConsumerPosition back the blocked-producer
	// check (spec.md §4.P "Blocked-producer detection").
	consumerPosition     int64
	lastConsumerPosition int64
	blocked              bool
	blockedSinceNs       int64

	hasReachedEndOfLife bool

	sys    *counters.Manager
	log    Logger

	// NotifyUnavailable/NotifyAvailable are set by the conductor so the
	// publication can signal image availability changes without owning
	// a reference back to the whole conductor (spec.md §9 "Cyclic
	// conductor <-> resource references").
	NotifyUnavailable func(sub *Subscriber)
	NotifyAvailable   func(sub *Subscriber)
}

// NewPublication constructs an IPC publication over an already-created log
// buffer. When isReplay is true, replayActiveTermCount is written to the
// log metadata's active_term_count as the LAST metadata write the
// constructor performs -- fixing the upstream bug spec.md §9 flags, where
// the replay-provided value was clobbered back to zero by a later
// unconditional reset (see DESIGN.md "Open Question decision").
func NewPublication(log *buffer.LogBuffer, sessionID, streamID int32, registrationID int64, exclusive bool, cfg Config, sysCounters *counters.Manager, logger Logger, isReplay bool, replayActiveTermCount int32) *Publication {
	p := &Publication{
		SessionID:         sessionID,
		StreamID:          streamID,
		RegistrationID:    registrationID,
		Exclusive:         exclusive,
		Log:               log,
		PublisherPosition: &counters.Position{},
		PublisherLimit:    &counters.Position{},
		state:             StateActive,
		cfg:               cfg,
		sys:               sysCounters,
		log:               logger,
	}
	if isReplay {
		log.Metadata().SetActiveTermCountOrdered(replayActiveTermCount)
	}

	return p
}

func (p *Publication) State() State { return p.state }

func (p *Publication) HasReachedEndOfLife() bool { return p.hasReachedEndOfLife }

// Incref registers a new publisher-client reference.
func (p *Publication) Incref() int32 {
	return atomic.AddInt32(&p.refcnt, 1)
}

// Decref releases a publisher-client reference. Decref to zero moves the
// publication to INACTIVE and publishes end_of_stream_position (spec.md
// §3 "Lifecycle"). Subsequent decrefs after the first to zero must not
// alter end_of_stream_position again (spec.md §8 invariant 5) -- refcnt is
// clamped at zero rather than allowed to go negative.
func (p *Publication) Decref() int32 {
	if atomic.LoadInt32(&p.refcnt) <= 0 {
		return 0
	}
	n := atomic.AddInt32(&p.refcnt, -1)
	if n == 0 {
		pos := p.PublisherPosition.Get()
		p.Log.Metadata().SetEndOfStreamPositionOrdered(pos)
		p.PublisherLimit.SetOrdered(pos)
		p.state = StateInactive
	}
	return n
}

// TryClaim reserves space for a length-byte message, enforcing spec.md
// §5's publisher-limit check before the log buffer ever reserves
// anything: a claim that would push the publisher past PublisherLimit is
// rejected with buffer.ErrBackPressured rather than attempted, matching
// invariant 1 (publisher_position <= publisher_limit). On success,
// PublisherPosition is advanced to the claimed frame's end position with
// an ordered store, the write discipline spec.md §5 requires.
func (p *Publication) TryClaim(length int32) (buffer.BufferClaim, error) {
	aligned := protocol.AlignedLength(protocol.HeaderLength + length)
	proposedPosition := p.Log.ProducerPosition() + int64(aligned)
	if proposedPosition > p.PublisherLimit.Get() {
		return buffer.BufferClaim{}, buffer.ErrBackPressured
	}

	claim, err := p.Log.Claim(p.SessionID, p.StreamID, length, p.Exclusive)
	if err != nil {
		return claim, err
	}
	p.PublisherPosition.SetOrdered(claim.Position())
	return claim, nil
}

func (p *Publication) AddSubscriber(sub *Subscriber, nowNs int64) {
	sub.TimeOfLastUpdateNs = nowNs
	p.subscribers = append(p.subscribers, sub)
}

func (p *Publication) RemoveSubscriber(registrationID int64) {
	for i, s := range p.subscribers {
		if s.RegistrationID == registrationID {
			p.subscribers = append(p.subscribers[:i], p.subscribers[i+1:]...)
			return
		}
	}
}

func (p *Publication) Subscribers() []*Subscriber { return p.subscribers }

// UpdatePublisherLimit is called by the conductor every duty cycle
// (spec.md §4.P).
func (p *Publication) UpdatePublisherLimit() int {
	active := activeSubscribers(p.subscribers)
	if len(active) == 0 {
		return 0
	}

	minPos, maxPos := active[0].Position.Get(), active[0].Position.Get()
	for _, s := range active[1:] {
		v := s.Position.Get()
		if v < minPos {
			minPos = v
		}
		if v > maxPos {
			maxPos = v
		}
	}

	p.consumerPosition = maxPos

	proposedLimit := minPos + p.cfg.WindowLength
	if proposedLimit <= p.tripLimit {
		return 0
	}

	p.cleanUpTo(minPos)
	p.PublisherLimit.SetOrdered(proposedLimit)
	p.tripLimit = proposedLimit + p.cfg.WindowLength>>tripGainShift
	return 1
}

func activeSubscribers(subs []*Subscriber) []*Subscriber {
	var out []*Subscriber
	for _, s := range subs {
		if s.Tether != TetherResting {
			out = append(out, s)
		}
	}
	return out
}

// cleanUpTo zeroes previously-read frames behind position, never ahead of
// the slowest subscriber (spec.md §4.L "Cleaning"). It first finishes
// cleaning the partition of the term before position's term up to that
// term's end, then cleans the partition holding position up to position's
// offset, so a partition is fully zeroed before the producer can rotate
// back into it.
func (p *Publication) cleanUpTo(position int64) {
	bits := p.Log.BitsToShift()
	termLength := p.Log.TermLength()
	termID := buffer.TermID(p.Log.InitialTermID(), position, bits)
	if termID != p.Log.InitialTermID() {
		p.Log.CleanTo(buffer.PartitionIndex(p.Log.InitialTermID(), termID-1), termLength)
	}
	partitionIndex := buffer.PartitionIndex(p.Log.InitialTermID(), termID)
	offset := buffer.TermOffset(position, termLength)
	p.Log.CleanTo(partitionIndex, offset)
}

// OnTimeEvent is the state-machine sweep spec.md §4.P's table describes.
func (p *Publication) OnTimeEvent(nowNs, nowMs int64) {
	switch p.state {
	case StateActive:
		p.checkUntetheredSubscriptions(nowNs)
		if !p.Exclusive {
			p.checkForBlockedPublisher(nowNs)
		}
	case StateInactive:
		if p.drained() {
			for _, s := range p.subscribers {
				if p.NotifyUnavailable != nil {
					p.NotifyUnavailable(s)
				}
			}
			p.state = StateLinger
		} else if !p.Exclusive {
			p.checkForBlockedPublisher(nowNs)
		}
	case StateLinger:
		p.hasReachedEndOfLife = true
	}
}

func (p *Publication) drained() bool {
	endOfStream := p.Log.Metadata().EndOfStreamPositionVolatile()
	for _, s := range p.subscribers {
		if s.Tether == TetherResting {
			continue
		}
		if s.Position.Get() < endOfStream {
			return false
		}
	}
	return true
}

// checkUntetheredSubscriptions drives the ACTIVE->LINGER->RESTING->ACTIVE
// protocol described in spec.md §4.P "Untethered subscriber protocol".
func (p *Publication) checkUntetheredSubscriptions(nowNs int64) {
	windowLimit := p.consumerPosition - p.cfg.WindowLength + p.cfg.WindowLength>>tripGainShift

	for _, s := range p.subscribers {
		if s.IsTether {
			s.TimeOfLastUpdateNs = nowNs
			continue
		}

		switch s.Tether {
		case TetherActive:
			if s.Position.Get() >= windowLimit {
				s.TimeOfLastUpdateNs = nowNs
				continue
			}
			if nowNs-s.TimeOfLastUpdateNs > p.cfg.UntetheredWindowLimitTimeoutNs {
				s.Tether = TetherLinger
				s.TimeOfLastUpdateNs = nowNs
				if p.NotifyUnavailable != nil {
					p.NotifyUnavailable(s)
				}
			}
		case TetherLinger:
			if nowNs-s.TimeOfLastUpdateNs > p.cfg.UntetheredWindowLimitTimeoutNs {
				s.Tether = TetherResting
				s.TimeOfLastUpdateNs = nowNs
			}
		case TetherResting:
			if nowNs-s.TimeOfLastUpdateNs > p.cfg.UntetheredRestingTimeoutNs {
				s.Position.SetOrdered(p.consumerPosition)
				s.Tether = TetherActive
				s.TimeOfLastUpdateNs = nowNs
				if p.NotifyAvailable != nil {
					p.NotifyAvailable(s)
				}
			}
		}
	}
}

// checkForBlockedPublisher implements spec.md §4.P "Blocked-producer
// detection": a shared publication is suspected blocked if the consumer
// position stalls while the producer has claimed further ahead.
func (p *Publication) checkForBlockedPublisher(nowNs int64) {
	producerPos := p.PublisherPosition.Get()

	if producerPos <= p.consumerPosition || p.consumerPosition != p.lastConsumerPosition {
		p.blocked = false
		p.lastConsumerPosition = p.consumerPosition
		return
	}

	if !p.blocked {
		p.blocked = true
		p.blockedSinceNs = nowNs
		return
	}

	if nowNs-p.blockedSinceNs < p.cfg.UnblockTimeoutNs {
		return
	}

	bits := p.Log.BitsToShift()
	termLength := p.Log.TermLength()
	termID := buffer.TermID(p.Log.InitialTermID(), p.consumerPosition, bits)
	partitionIndex := buffer.PartitionIndex(p.Log.InitialTermID(), termID)
	offset := buffer.TermOffset(p.consumerPosition, termLength)

	if newPosition, unblocked := p.Log.Unblock(partitionIndex, offset, termID); unblocked {
		p.consumerPosition = newPosition
		p.lastConsumerPosition = newPosition
		p.sys.Get(counters.UnblockedPublications).Increment()
		if p.log != nil {
			p.log.Warnf("unblocked stuck publisher session=%d stream=%d at position=%d", p.SessionID, p.StreamID, p.consumerPosition)
		}
	}
	p.blocked = false
}
