package buffer

import "github.com/aeronio/aeron-go/pkg/aeron/protocol"

// Unblock advances past a slot a producer claimed but never committed,
// per spec.md §4.L "Unblocker" and the two cases the real driver's
// aeron_ipc_publication_check_for_blocked_publisher distinguishes
// (spec.md §12.3 supplement):
//
//   - the stuck slot's partition still belongs to the generation the
//     caller expected (expectedTermID): pad from consumerOffset to the
//     current tail (or to the end of the term, if the tail is already
//     pinned there by a completed rotation), or to the next
//     already-committed/padding frame if one was claimed past the stuck
//     slot by a producer that kept going;
//   - the term has rotated underneath the stuck claim: the partition's
//     packed tail now names a different term id than expectedTermID,
//     meaning rotate has already recycled that partition for a later
//     generation. Writing a padding frame there would corrupt live data
//     for the new term, so the unblocker instead reports the position at
//     the start of the currently active partition, with nothing written,
//     for the caller to jump the stuck consumer straight to.
//
// Returns the position to resume from and whether anything was unblocked
// (the caller increments the unblocked-publications system counter when
// true).
func (l *LogBuffer) Unblock(partitionIndex int32, consumerOffset int32, expectedTermID int32) (int64, bool) {
	term := l.terms[partitionIndex]

	rawTail := l.meta.RawTailVolatile(partitionIndex)
	tailTermID, tailOffset := UnpackTail(rawTail)

	if tailTermID != expectedTermID {
		activeTermCount := l.meta.ActiveTermCount()
		newTermID := l.initialTermID + activeTermCount
		return ComputePosition(newTermID, l.initialTermID, l.bitsToShift, 0), true
	}

	if !protocol.IsUnwritten(term.FrameLengthVolatile(consumerOffset)) {
		return 0, false
	}

	if consumerOffset+protocol.HeaderLength >= tailOffset {
		gap := tailOffset - consumerOffset
		if gap <= 0 {
			gap = l.termLength - consumerOffset
		}
		term.WritePadding(consumerOffset, gap, tailTermID, l.meta)
		return ComputePosition(expectedTermID, l.initialTermID, l.bitsToShift, consumerOffset+gap), true
	}

	cursor := consumerOffset + protocol.HeaderLength
	for cursor < tailOffset {
		if !protocol.IsUnwritten(term.FrameLengthVolatile(cursor)) {
			term.WritePadding(consumerOffset, cursor-consumerOffset, tailTermID, l.meta)
			return ComputePosition(expectedTermID, l.initialTermID, l.bitsToShift, cursor), true
		}
		cursor += protocol.HeaderLength
	}

	term.WritePadding(consumerOffset, tailOffset-consumerOffset, tailTermID, l.meta)
	return ComputePosition(expectedTermID, l.initialTermID, l.bitsToShift, tailOffset), true
}
