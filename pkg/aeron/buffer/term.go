package buffer

import "github.com/aeronio/aeron-go/pkg/aeron/protocol"

// Term is one of the three fixed-size partitions comprising a log buffer.
type Term struct {
	buf []byte
}

func NewTerm(buf []byte) *Term {
	return &Term{buf: buf}
}

// ClaimResult carries the outcome of a successful Claim: where the caller
// should write the frame body, and the frame's absolute stream position.
type ClaimResult struct {
	Offset   int32
	Position int64
}

// Claim reserves alignedLength bytes at the current tail of the term,
// following spec.md §4.L steps 2-3. exclusive selects the single-writer
// path, which does not retry; when false the CAS retry loop is used since
// multiple producer clients may share the session.
//
// Returns ErrAdminAction when the claim would cross the term boundary:
// the caller (LogBuffer.Claim) is responsible for driving the rotation
// and padding protocol and retrying in the new term.
func (t *Term) Claim(partitionIndex int32, meta *Metadata, alignedLength int32, exclusive bool) (ClaimResult, error) {
	termLength := int32(len(t.buf))

	if exclusive {
		// Single writer: the tail update goes through CASRawTail for its
		// ordered store, and its result is not checked since no other
		// writer can race it.
		rawTail := meta.RawTailVolatile(partitionIndex)
		termID, termOffset := UnpackTail(rawTail)
		newTermOffset := termOffset + alignedLength
		if newTermOffset > termLength {
			if termOffset < termLength {
				t.WritePadding(termOffset, termLength-termOffset, termID, meta)
			}
			meta.CASRawTail(partitionIndex, rawTail, PackTail(termID, termLength))
			return ClaimResult{}, ErrAdminAction
		}
		meta.CASRawTail(partitionIndex, rawTail, PackTail(termID, newTermOffset))
		return ClaimResult{Offset: termOffset}, nil
	}

	for {
		rawTail := meta.RawTailVolatile(partitionIndex)
		termID, termOffset := UnpackTail(rawTail)
		newTermOffset := termOffset + alignedLength

		if newTermOffset > termLength {
			// Claim what remains of the term as padding, so a consumer
			// scanning up to termLength always finds a frame.
			if termOffset < termLength {
				padded := PackTail(termID, termLength)
				if !meta.CASRawTail(partitionIndex, rawTail, padded) {
					continue
				}
				t.WritePadding(termOffset, termLength-termOffset, termID, meta)
			}
			return ClaimResult{}, ErrAdminAction
		}

		next := PackTail(termID, newTermOffset)
		if meta.CASRawTail(partitionIndex, rawTail, next) {
			return ClaimResult{Offset: termOffset}, nil
		}
	}
}

// WritePadding writes a negative-length padding frame covering [offset,
// offset+length) so a consumer skips straight to the end of the term
// (spec.md §4.L "Padding").
func (t *Term) WritePadding(offset, length int32, termID int32, meta *Metadata) {
	def := meta.DefaultHeader()
	protocol.PutHeader(t.buf, offset, protocol.Header{
		FrameLength: 0,
		Version:     def.Version,
		Flags:       protocol.FlagUnfragmented,
		Type:        protocol.TypePad,
		TermOffset:  offset,
		SessionID:   def.SessionID,
		StreamID:    def.StreamID,
		TermID:      termID,
		Reserved:    0,
	})
	protocol.PutFrameLengthOrdered(t.buf, offset, -length)
}

// Commit publishes the real length of a claimed frame, making it visible
// to consumers (spec.md §4.L step 4).
func (t *Term) Commit(offset int32, length int32) {
	protocol.PutFrameLengthOrdered(t.buf, offset, length)
}

// WriteHeader writes an uncommitted (frame_length=0) header at offset,
// which LogBuffer.Claim does immediately after a successful claim so the
// frame carries session/stream/term identity before the body is copied in.
func (t *Term) WriteHeader(offset int32, h protocol.Header) {
	h.FrameLength = 0
	protocol.PutHeader(t.buf, offset, h)
}

// FrameLengthVolatile reads the length sentinel with acquire semantics.
func (t *Term) FrameLengthVolatile(offset int32) int32 {
	return protocol.FrameLengthVolatile(t.buf, offset)
}

// Header decodes the frame header at offset.
func (t *Term) Header(offset int32) protocol.Header {
	return protocol.GetHeader(t.buf, offset)
}

// Body returns the frame body slice for a frame of the given (positive,
// aligned-independent) length at offset.
func (t *Term) Body(offset int32, length int32) []byte {
	start := offset + protocol.HeaderLength
	end := offset + length
	if end > start {
		return t.buf[start:end]
	}
	return t.buf[start:start]
}

// RawBytes returns the underlying term buffer, used by the cleaner and by
// tests that assert on the exact bytes written.
func (t *Term) RawBytes() []byte {
	return t.buf
}

// Length returns the term length in bytes.
func (t *Term) Length() int32 {
	return int32(len(t.buf))
}
