package buffer

import "github.com/aeronio/aeron-go/pkg/aeron/protocol"

// Metadata layout offsets within the log metadata region (spec.md §3,
// §6 "Metadata region is at a fixed offset after the term buffers").
// Field order and sizes follow the real Aeron driver's
// aeron_logbuffer_metadata_t.
const (
	offsetTailPartition0        = 0
	offsetTailPartition1        = 8
	offsetTailPartition2        = 16
	offsetActiveTermCount       = 24
	offsetInitialTermID         = 128
	offsetMTULength             = 132
	offsetTermLength            = 136
	offsetPageSize              = 140
	offsetIsConnected           = 144
	offsetActiveTransportCount  = 148
	offsetCorrelationID         = 152
	offsetEndOfStreamPosition   = 160
	defaultFrameHeaderOffset    = 256
	// MetadataLength is the total size reserved for the metadata region.
	// It must be page-aligned; 4096 comfortably fits the fields above plus
	// the default frame header template.
	MetadataLength = 4096
)

// Metadata is a thin, allocation-free view over the metadata region of a
// mapped log buffer.
type Metadata struct {
	buf []byte
}

func NewMetadata(buf []byte) *Metadata {
	if len(buf) < MetadataLength {
		panic("buffer: metadata region too small")
	}
	return &Metadata{buf: buf}
}

func tailOffset(partitionIndex int32) int32 {
	switch partitionIndex {
	case 0:
		return offsetTailPartition0
	case 1:
		return offsetTailPartition1
	default:
		return offsetTailPartition2
	}
}

func (m *Metadata) RawTailVolatile(partitionIndex int32) uint64 {
	return protocol.LoadUint64Volatile(m.buf, tailOffset(partitionIndex))
}

func (m *Metadata) CASRawTail(partitionIndex int32, old, new uint64) bool {
	return protocol.CASUint64(m.buf, tailOffset(partitionIndex), old, new)
}

func (m *Metadata) InitializeTail(partitionIndex int32, termID int32) {
	protocol.StoreUint64Ordered(m.buf, tailOffset(partitionIndex), PackTail(termID, 0))
}

func (m *Metadata) ActiveTermCount() int32 {
	return int32(protocol.LoadUint64Volatile(m.buf, offsetActiveTermCount))
}

func (m *Metadata) SetActiveTermCountOrdered(count int32) {
	protocol.StoreUint64Ordered(m.buf, offsetActiveTermCount, uint64(uint32(count)))
}

func (m *Metadata) CASActiveTermCount(old, new int32) bool {
	return protocol.CASUint64(m.buf, offsetActiveTermCount, uint64(uint32(old)), uint64(uint32(new)))
}

func (m *Metadata) InitialTermID() int32 {
	return int32(le32(m.buf, offsetInitialTermID))
}

func (m *Metadata) SetInitialTermID(id int32) {
	putLE32(m.buf, offsetInitialTermID, uint32(id))
}

func (m *Metadata) MTULength() int32 { return int32(le32(m.buf, offsetMTULength)) }
func (m *Metadata) SetMTULength(v int32) { putLE32(m.buf, offsetMTULength, uint32(v)) }

func (m *Metadata) TermLength() int32 { return int32(le32(m.buf, offsetTermLength)) }
func (m *Metadata) SetTermLength(v int32) { putLE32(m.buf, offsetTermLength, uint32(v)) }

func (m *Metadata) PageSize() int32 { return int32(le32(m.buf, offsetPageSize)) }
func (m *Metadata) SetPageSize(v int32) { putLE32(m.buf, offsetPageSize, uint32(v)) }

func (m *Metadata) IsConnected() bool { return le32(m.buf, offsetIsConnected) != 0 }
func (m *Metadata) SetIsConnected(v bool) {
	x := uint32(0)
	if v {
		x = 1
	}
	putLE32(m.buf, offsetIsConnected, x)
}

func (m *Metadata) ActiveTransportCount() int32 { return int32(le32(m.buf, offsetActiveTransportCount)) }
func (m *Metadata) SetActiveTransportCount(v int32) {
	putLE32(m.buf, offsetActiveTransportCount, uint32(v))
}

func (m *Metadata) CorrelationID() int64 {
	return int64(protocol.LoadUint64Volatile(m.buf, offsetCorrelationID))
}
func (m *Metadata) SetCorrelationID(v int64) {
	protocol.StoreUint64Ordered(m.buf, offsetCorrelationID, uint64(v))
}

// EndOfStreamPosition is "initially +∞" per spec.md §3.
const EndOfStreamPositionUnset = int64(1<<63 - 1)

func (m *Metadata) EndOfStreamPositionVolatile() int64 {
	return int64(protocol.LoadUint64Volatile(m.buf, offsetEndOfStreamPosition))
}
func (m *Metadata) SetEndOfStreamPositionOrdered(v int64) {
	protocol.StoreUint64Ordered(m.buf, offsetEndOfStreamPosition, uint64(v))
}

// DefaultHeader returns the default frame header template stored in the
// metadata region and used to prime new claims (spec.md §3).
func (m *Metadata) DefaultHeader() protocol.Header {
	return protocol.GetHeader(m.buf, defaultFrameHeaderOffset)
}

func (m *Metadata) SetDefaultHeader(h protocol.Header) {
	protocol.PutHeader(m.buf, defaultFrameHeaderOffset, h)
}

func le32(buf []byte, offset int32) uint32 {
	return uint32(buf[offset]) | uint32(buf[offset+1])<<8 | uint32(buf[offset+2])<<16 | uint32(buf[offset+3])<<24
}

func putLE32(buf []byte, offset int32, v uint32) {
	buf[offset] = byte(v)
	buf[offset+1] = byte(v >> 8)
	buf[offset+2] = byte(v >> 16)
	buf[offset+3] = byte(v >> 24)
}
