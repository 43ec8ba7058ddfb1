package driver

import (
	"errors"
	"sync/atomic"

	"github.com/aeronio/aeron-go/pkg/aeron/protocol"
)

// ErrBackPressured mirrors buffer.ErrBackPressured for the command ring:
// returned by Write when claiming would lap the conductor's still-unread
// consumer position.
var ErrBackPressured = errors.New("driver: command ring has no room")

// RingBuffer is the many-producer/single-consumer command ring clients
// submit commands through (spec.md §5 "Command rings: multi-producer,
// single-consumer; synchronisation via their own claim protocol identical
// to the log buffer's", §6 "Command protocol"). It reuses the log
// buffer's record framing (a 4-byte length sentinel: 0 = uncommitted,
// followed by the record bytes) rather than the 3-partition term
// rotation, since a ring buffer never rotates -- it wraps in place.
type RingBuffer struct {
	buf      []byte
	capacity int32
	mask     int32

	tail int64 // producer claim position, CAS'd by every producer
	head int64 // consumer read position, owned solely by the conductor thread
}

// NewRingBuffer builds a ring buffer over a capacity-byte region.
// capacity must be a power of two.
func NewRingBuffer(buf []byte) *RingBuffer {
	capacity := int32(len(buf))
	if capacity&(capacity-1) != 0 {
		panic("driver: ring buffer capacity must be a power of two")
	}
	return &RingBuffer{buf: buf, capacity: capacity, mask: capacity - 1}
}

const ringRecordHeader = 4

// Write reserves space for a record of len(payload) bytes and writes it,
// returning ErrBackPressured if claiming would advance the tail more than
// capacity bytes past the conductor's still-unread head -- i.e. it would
// overwrite an in-flight, not-yet-drained record (the producer-side
// analogue of the log buffer's publisher-limit check, spec.md §4.L step
// 4, but single-shot since command records are always small and fully
// buffered by the caller before Write).
func (r *RingBuffer) Write(payload []byte) error {
	aligned := protocol.AlignedLength(int32(ringRecordHeader + len(payload)))
	for {
		tail := atomic.LoadInt64(&r.tail)
		head := atomic.LoadInt64(&r.head)
		offset := int32(tail) & r.mask

		if offset+aligned > r.capacity {
			// Wrap: pad the remainder and retry at offset 0 next lap.
			wrapTo := tail + int64(r.capacity-offset)
			if wrapTo-head > int64(r.capacity) {
				return ErrBackPressured
			}
			if !atomic.CompareAndSwapInt64(&r.tail, tail, wrapTo) {
				continue
			}
			protocol.PutFrameLengthOrdered(r.buf, offset, -(r.capacity - offset))
			continue
		}

		if tail+int64(aligned)-head > int64(r.capacity) {
			return ErrBackPressured
		}

		if !atomic.CompareAndSwapInt64(&r.tail, tail, tail+int64(aligned)) {
			continue
		}

		copy(r.buf[offset+ringRecordHeader:offset+ringRecordHeader+int32(len(payload))], payload)
		protocol.PutFrameLengthOrdered(r.buf, offset, int32(ringRecordHeader+len(payload)))
		return nil
	}
}

// Read drains up to limit records, invoking handler with each record's
// payload, and returns how many were read (spec.md §4.C duty cycle step
// 3: "Drain the command ring (up to a bounded limit)").
func (r *RingBuffer) Read(limit int, handler func(payload []byte)) int {
	read := 0
	head := atomic.LoadInt64(&r.head)
	offset := int32(head) & r.mask

	for read < limit {
		length := protocol.FrameLengthVolatile(r.buf, offset)
		if protocol.IsUnwritten(length) {
			break
		}
		if protocol.IsPaddingFrame(length) {
			head += int64(protocol.AlignedLength(-length))
			atomic.StoreInt64(&r.head, head)
			offset = int32(head) & r.mask
			continue
		}

		payload := r.buf[offset+ringRecordHeader : offset+length]
		handler(payload)
		protocol.PutFrameLengthOrdered(r.buf, offset, 0)

		head += int64(protocol.AlignedLength(length))
		atomic.StoreInt64(&r.head, head)
		offset = int32(head) & r.mask
		read++
	}
	return read
}

// ProducerPosition/ConsumerPosition back the conductor's blocked-commands
// check (spec.md §4.C "Blocked-commands check").
func (r *RingBuffer) ProducerPosition() int64 { return atomic.LoadInt64(&r.tail) }
func (r *RingBuffer) ConsumerPosition() int64 { return atomic.LoadInt64(&r.head) }

// Unblock advances past a claimed-but-never-committed record at the
// consumer's current position, mirroring buffer.Unblock for the log
// buffer (spec.md §4.C "Blocked-commands check": "attempt to unblock the
// ring (by writing a padding record over the stuck claim)").
func (r *RingBuffer) Unblock() bool {
	head := atomic.LoadInt64(&r.head)
	offset := int32(head) & r.mask
	if !protocol.IsUnwritten(protocol.FrameLengthVolatile(r.buf, offset)) {
		return false
	}
	tail := atomic.LoadInt64(&r.tail)
	gap := int32(tail - head)
	if gap <= 0 || gap > r.capacity-offset {
		gap = r.capacity - offset
	}
	protocol.PutFrameLengthOrdered(r.buf, offset, -gap)
	return true
}
