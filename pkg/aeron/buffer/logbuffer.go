package buffer

import "github.com/aeronio/aeron-go/pkg/aeron/protocol"

// LogBuffer is the memory-mapped ring of three term partitions plus its
// metadata region (spec.md §3 "Term Partition", §6 "Log file path").
type LogBuffer struct {
	mapped        *MappedFile
	terms         [PartitionCount]*Term
	meta          *Metadata
	termLength    int32
	bitsToShift   uint
	initialTermID int32

	// cleanPosition tracks how far the incremental cleaner has zeroed each
	// partition, so cleaning never re-scans bytes it already primed.
	cleanPosition [PartitionCount]int32
}

// New lays out a freshly mapped file as N=3 term partitions followed by the
// metadata region (spec.md §6), and primes partition 0 as the active term
// at initialTermID.
func New(mapped *MappedFile, termLength int32, initialTermID int32, sessionID, streamID int32) (*LogBuffer, error) {
	if err := ValidateTermLength(termLength); err != nil {
		return nil, err
	}
	lb := &LogBuffer{
		mapped:        mapped,
		termLength:    termLength,
		bitsToShift:   BitsToShift(termLength),
		initialTermID: initialTermID,
	}
	for i := int32(0); i < PartitionCount; i++ {
		lb.terms[i] = NewTerm(mapped.Mem[i*termLength : (i+1)*termLength])
	}
	lb.meta = NewMetadata(mapped.Mem[PartitionCount*termLength:])

	lb.meta.SetInitialTermID(initialTermID)
	lb.meta.SetTermLength(termLength)
	lb.meta.SetMTULength(1408)
	lb.meta.SetPageSize(4096)
	lb.meta.SetActiveTermCountOrdered(0)
	lb.meta.SetEndOfStreamPositionOrdered(EndOfStreamPositionUnset)
	lb.meta.SetDefaultHeader(protocol.Header{
		Version:   0,
		Type:      protocol.TypeData,
		SessionID: sessionID,
		StreamID:  streamID,
	})

	lb.meta.InitializeTail(0, initialTermID)
	lb.meta.InitializeTail(1, initialTermID+1)
	lb.meta.InitializeTail(2, initialTermID+2)
	return lb, nil
}

// Open attaches to an existing mapped log buffer, reading term length and
// initial term id back out of the already-initialized metadata region.
func Open(mapped *MappedFile) *LogBuffer {
	meta := NewMetadata(mapped.Mem[len(mapped.Mem)-MetadataLength:])
	termLength := meta.TermLength()
	lb := &LogBuffer{
		mapped:        mapped,
		termLength:    termLength,
		bitsToShift:   BitsToShift(termLength),
		initialTermID: meta.InitialTermID(),
		meta:          meta,
	}
	for i := int32(0); i < PartitionCount; i++ {
		lb.terms[i] = NewTerm(mapped.Mem[i*termLength : (i+1)*termLength])
	}
	return lb
}

// RequiredLength returns the total file size for a log buffer with the
// given term length: N partitions plus the metadata region.
func RequiredLength(termLength int32) int64 {
	return int64(termLength)*PartitionCount + int64(MetadataLength)
}

func (l *LogBuffer) TermLength() int32       { return l.termLength }
func (l *LogBuffer) InitialTermID() int32    { return l.initialTermID }
func (l *LogBuffer) BitsToShift() uint       { return l.bitsToShift }
func (l *LogBuffer) Metadata() *Metadata     { return l.meta }
func (l *LogBuffer) Term(i int32) *Term      { return l.terms[i] }
func (l *LogBuffer) ActivePartitionIndex() int32 {
	return PartitionIndex(l.initialTermID, l.initialTermID+l.meta.ActiveTermCount())
}

// ProducerPosition returns the active partition's current tail position,
// i.e. the position a Claim would start from if one were attempted right
// now. Used by Publication.TryClaim to check a would-be claim against the
// publisher limit before reserving any space (spec.md §5 "Claim
// operations... return a back-pressured sentinel if publisher_limit
// would be exceeded").
func (l *LogBuffer) ProducerPosition() int64 {
	partitionIndex := l.ActivePartitionIndex()
	termID, termOffset := UnpackTail(l.meta.RawTailVolatile(partitionIndex))
	return ComputePosition(termID, l.initialTermID, l.bitsToShift, termOffset)
}

// Close unmaps the backing file.
func (l *LogBuffer) Close() error {
	return l.mapped.Close()
}

// Claim reserves space for a length-byte message and returns a BufferClaim
// the caller writes the body into and then commits (spec.md §4.L). It
// drives the rotation protocol transparently across as many partition
// crossings as a single claim requires (at most one, since alignedLength
// never exceeds termLength by construction of MTU limits).
func (l *LogBuffer) Claim(sessionID, streamID int32, length int32, exclusive bool) (BufferClaim, error) {
	if length < 0 {
		return BufferClaim{}, ErrMaxMessageSize
	}
	aligned := protocol.AlignedLength(protocol.HeaderLength + length)
	if aligned > l.termLength {
		return BufferClaim{}, ErrMaxMessageSize
	}

	for attempts := 0; attempts < PartitionCount+1; attempts++ {
		activeTermCount := l.meta.ActiveTermCount()
		partitionIndex := PartitionIndex(l.initialTermID, l.initialTermID+activeTermCount)
		term := l.terms[partitionIndex]

		res, err := term.Claim(partitionIndex, l.meta, aligned, exclusive)
		if err == ErrAdminAction {
			l.rotate(partitionIndex, activeTermCount)
			continue
		}
		if err != nil {
			return BufferClaim{}, err
		}

		termID := l.initialTermID + activeTermCount
		term.WriteHeader(res.Offset, protocol.Header{
			Type:      protocol.TypeData,
			Flags:     protocol.FlagUnfragmented,
			TermOffset: res.Offset,
			SessionID: sessionID,
			StreamID:  streamID,
			TermID:    termID,
		})
		position := ComputePosition(termID, l.initialTermID, l.bitsToShift, res.Offset) + int64(aligned)
		return BufferClaim{
			term:     term,
			offset:   res.Offset,
			length:   protocol.HeaderLength + length,
			aligned:  aligned,
			position: position,
		}, nil
	}
	return BufferClaim{}, ErrAdminAction
}

// rotate advances the active partition after a claim reports the term is
// full (spec.md §4.L step 2). Only the goroutine that wins the CAS on
// active_term_count performs the rotation bookkeeping; losers simply
// retry their claim, which will now observe the rotated state.
func (l *LogBuffer) rotate(partitionIndex, activeTermCount int32) {
	if !l.meta.CASActiveTermCount(activeTermCount, activeTermCount+1) {
		return
	}
	nextIndex := NextPartitionIndex(partitionIndex)
	newTermID := l.initialTermID + activeTermCount + 1

	// The partition two rotations away is the "dirty predecessor" that has
	// just finished being read; pre-prepare it with the term id it will
	// carry the *next* time it becomes active (spec.md §3's third,
	// pre-prepared partition).
	rotatePrepIndex := NextPartitionIndex(nextIndex)
	l.meta.InitializeTail(rotatePrepIndex, newTermID+1)
	l.cleanPosition[rotatePrepIndex] = 0
}

// BufferClaim is the write handle returned by Claim: the caller copies its
// message into Data() and then calls Commit to publish frame_length,
// making the frame visible to consumers (spec.md §4.L step 4). length is
// the actual, unaligned header+body length that gets published as
// frame_length; aligned is the larger, 32-byte-aligned amount reserved at
// the tail, used only to size a full-slot padding frame on Abort.
type BufferClaim struct {
	term     *Term
	offset   int32
	length   int32
	aligned  int32
	position int64
}

// Data returns the writable body of the claimed frame.
func (c BufferClaim) Data() []byte {
	return c.term.Body(c.offset, c.length)
}

// Position is the stream position immediately after this frame once
// committed.
func (c BufferClaim) Position() int64 {
	return c.position
}

// Commit publishes the frame with its exact header+body length as
// claimed, making it visible to consumers.
func (c BufferClaim) Commit() {
	c.term.Commit(c.offset, c.length)
}

// Abort commits a padding frame in place of the claimed slot, used when a
// producer decides not to publish after claiming (mirrors Aeron's
// ExclusiveBufferClaim.abort()). It pads the full reserved (aligned) slot,
// not just the unaligned frame length, so a consumer scanning the term
// never lands mid-slot.
func (c BufferClaim) Abort(termID int32, meta *Metadata) {
	c.term.WritePadding(c.offset, c.aligned, termID, meta)
}
