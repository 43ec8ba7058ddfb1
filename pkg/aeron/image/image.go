// Package image implements the subscriber read path: a per-session view
// of a log buffer, fragment delivery, and position counters (spec.md
// §4.I).
package image

import (
	"github.com/aeronio/aeron-go/pkg/aeron/buffer"
	"github.com/aeronio/aeron-go/pkg/aeron/counters"
	"github.com/aeronio/aeron-go/pkg/aeron/protocol"
)

// FragmentHandler processes one delivered fragment. header is provided so
// handlers can inspect session/stream/term identity.
type FragmentHandler func(data []byte, header protocol.Header)

// Image is a subscriber's per-session view of a log buffer.
type Image struct {
	Log      *buffer.LogBuffer
	Position *counters.Position

	SessionID int32
	StreamID  int32

	reassembly *reassembler
}

func New(log *buffer.LogBuffer, position *counters.Position, sessionID, streamID int32) *Image {
	return &Image{
		Log:        log,
		Position:   position,
		SessionID:  sessionID,
		StreamID:   streamID,
		reassembly: newReassembler(),
	}
}

// Poll reads up to fragmentLimit fragments starting at the image's current
// position, delivering each complete message to handler, and advances
// Position with an ordered store (spec.md §4.I).
func (img *Image) Poll(handler FragmentHandler, fragmentLimit int) int {
	bits := img.Log.BitsToShift()
	termLength := img.Log.TermLength()
	initialTermID := img.Log.InitialTermID()

	position := img.Position.Get()
	termID := buffer.TermID(initialTermID, position, bits)
	partitionIndex := buffer.PartitionIndex(initialTermID, termID)
	offset := buffer.TermOffset(position, termLength)
	term := img.Log.Term(partitionIndex)

	fragmentsRead := 0
	for fragmentsRead < fragmentLimit {
		length := term.FrameLengthVolatile(offset)
		if protocol.IsUnwritten(length) {
			break
		}

		if protocol.IsPaddingFrame(length) {
			aligned := protocol.AlignedLength(-length)
			offset += aligned
			position += int64(aligned)
			if offset >= termLength {
				termID++
				partitionIndex = buffer.PartitionIndex(initialTermID, termID)
				term = img.Log.Term(partitionIndex)
				offset = 0
			}
			continue
		}

		header := term.Header(offset)
		body := term.Body(offset, length)
		img.reassembly.onFragment(header, body, func(msg []byte, h protocol.Header) {
			handler(msg, h)
		})

		aligned := protocol.AlignedLength(length)
		offset += aligned
		position += int64(aligned)
		fragmentsRead++

		if offset >= termLength {
			termID++
			partitionIndex = buffer.PartitionIndex(initialTermID, termID)
			term = img.Log.Term(partitionIndex)
			offset = 0
		}
	}

	if fragmentsRead > 0 {
		img.Position.SetOrdered(position)
	}
	return fragmentsRead
}
