package buffer

import "github.com/aeronio/aeron-go/pkg/aeron/protocol"

// CleanTo incrementally zeroes partitionIndex from wherever cleaning last
// left off up to (but never past) limitOffset, and never ahead of the
// slowest subscriber (spec.md §4.L "Cleaning"; the caller -- the IPC
// publication's update_publisher_limit -- is responsible for passing a
// limitOffset no greater than min(subscriber_position) translated into
// this partition).
//
// Per the real driver's aeron_ipc_publication_clean_buffer (spec.md §12.2
// supplement), each already-written frame is zeroed from offset+HeaderLength
// through the end of its aligned span, then the header's non-length fields
// are zeroed, and the 4-byte length sentinel is stored to zero last via an
// ordered store so a concurrent reader never observes a stale positive
// length pointing at zeroed data.
func (l *LogBuffer) CleanTo(partitionIndex int32, limitOffset int32) {
	term := l.terms[partitionIndex]
	cursor := l.cleanPosition[partitionIndex]

	for cursor < limitOffset {
		raw := term.FrameLengthVolatile(cursor)
		if protocol.IsUnwritten(raw) {
			// Nothing committed yet at this offset; cleaning cannot get
			// ahead of the producer, stop here.
			break
		}
		length := raw
		if length < 0 {
			length = -length
		}
		aligned := protocol.AlignedLength(length)
		if cursor+aligned > l.termLength {
			aligned = l.termLength - cursor
		}

		buf := term.RawBytes()
		zero(buf[cursor+protocol.HeaderLength : cursor+aligned])
		zero(buf[cursor+4 : cursor+protocol.HeaderLength])
		protocol.PutFrameLengthOrdered(buf, cursor, 0)

		cursor += aligned
	}
	l.cleanPosition[partitionIndex] = cursor
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
