// Package protocol implements the Aeron frame header: the fixed-size,
// little-endian record that prefixes every fragment written to a log
// buffer, on IPC as well as on the wire for UDP.
package protocol

import "encoding/binary"

// HeaderLength is the size in bytes of a frame header. All frames are
// aligned to FrameAlignment.
const (
	HeaderLength   = 32
	FrameAlignment = 32
)

// Frame type codes carried in the Type field.
const (
	TypePad  = 0x00
	TypeData = 0x01
)

// Flag bits carried in the Flags field.
const (
	FlagBegin byte = 1 << 7
	FlagEnd   byte = 1 << 6
	FlagUnfragmented = FlagBegin | FlagEnd
)

// Header is the decoded view of a frame header. Offsets below match
// the on-wire layout exactly:
//
//	0  4  frame_length (signed; 0 = uncommitted; <0 = padding)
//	4  1  version
//	5  1  flags
//	6  2  type
//	8  4  term_offset
//	12 4  session_id
//	16 4  stream_id
//	20 4  term_id
//	24 8  reserved_value
type Header struct {
	FrameLength int32
	Version     uint8
	Flags       byte
	Type        uint16
	TermOffset  int32
	SessionID   int32
	StreamID    int32
	TermID      int32
	Reserved    uint64
}

// PutHeader encodes h into buf[0:HeaderLength]. buf must have at least
// HeaderLength bytes starting at the given offset.
func PutHeader(buf []byte, offset int32, h Header) {
	b := buf[offset : offset+HeaderLength]
	binary.LittleEndian.PutUint32(b[0:4], uint32(h.FrameLength))
	b[4] = h.Version
	b[5] = h.Flags
	binary.LittleEndian.PutUint16(b[6:8], h.Type)
	binary.LittleEndian.PutUint32(b[8:12], uint32(h.TermOffset))
	binary.LittleEndian.PutUint32(b[12:16], uint32(h.SessionID))
	binary.LittleEndian.PutUint32(b[16:20], uint32(h.StreamID))
	binary.LittleEndian.PutUint32(b[20:24], uint32(h.TermID))
	binary.LittleEndian.PutUint64(b[24:32], h.Reserved)
}

// GetHeader decodes the header at buf[offset:offset+HeaderLength].
func GetHeader(buf []byte, offset int32) Header {
	b := buf[offset : offset+HeaderLength]
	return Header{
		FrameLength: int32(binary.LittleEndian.Uint32(b[0:4])),
		Version:     b[4],
		Flags:       b[5],
		Type:        binary.LittleEndian.Uint16(b[6:8]),
		TermOffset:  int32(binary.LittleEndian.Uint32(b[8:12])),
		SessionID:   int32(binary.LittleEndian.Uint32(b[12:16])),
		StreamID:    int32(binary.LittleEndian.Uint32(b[16:20])),
		TermID:      int32(binary.LittleEndian.Uint32(b[20:24])),
		Reserved:    binary.LittleEndian.Uint64(b[24:32]),
	}
}

// FrameLengthVolatile reads the length word of the frame at offset with
// acquire semantics: this is the synchronization point between a producer's
// commit and a consumer's scan (spec.md §4.L "Consumer scan").
func FrameLengthVolatile(buf []byte, offset int32) int32 {
	return int32(loadUint32Acquire(buf, offset))
}

// PutFrameLengthOrdered publishes length with release semantics: the last
// write a producer performs when committing a claimed frame, and the last
// write the cleaner performs when re-priming a slot to zero.
func PutFrameLengthOrdered(buf []byte, offset int32, length int32) {
	storeUint32Release(buf, offset, uint32(length))
}

// AlignedLength rounds length up to the next multiple of FrameAlignment.
func AlignedLength(length int32) int32 {
	return (length + FrameAlignment - 1) &^ (FrameAlignment - 1)
}

// IsPaddingFrame reports whether a frame of the given raw (unaligned-magnitude)
// length is a padding/tombstone frame per spec.md §3 ("negative = padding").
func IsPaddingFrame(frameLength int32) bool {
	return frameLength < 0
}

// IsUnwritten reports whether the length sentinel still marks the slot
// as not-yet-committed.
func IsUnwritten(frameLength int32) bool {
	return frameLength == 0
}
