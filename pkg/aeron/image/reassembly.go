package image

import "github.com/aeronio/aeron-go/pkg/aeron/protocol"

// reassembler buffers fragments between BEGIN and END flags per session
// (spec.md §4.I "Reassembly"). One Image only ever sees one session, so a
// single in-flight buffer suffices -- unlike a general multi-session
// receiver, which would key this by session id the way the teacher's
// Deliver keys in-flight processing by message UID.
type reassembler struct {
	inProgress bool
	buf        []byte
	header     protocol.Header
}

func newReassembler() *reassembler {
	return &reassembler{}
}

func (r *reassembler) onFragment(header protocol.Header, body []byte, deliver func([]byte, protocol.Header)) {
	begin := header.Flags&protocol.FlagBegin != 0
	end := header.Flags&protocol.FlagEnd != 0

	if begin && end {
		deliver(body, header)
		return
	}

	if begin {
		r.inProgress = true
		r.header = header
		r.buf = append(r.buf[:0], body...)
		return
	}

	if !r.inProgress {
		// A stray continuation fragment with no BEGIN observed (the image
		// attached mid-message); drop it rather than deliver a truncated
		// message.
		return
	}

	r.buf = append(r.buf, body...)
	if end {
		r.header.Flags = protocol.FlagUnfragmented
		deliver(r.buf, r.header)
		r.inProgress = false
		r.buf = nil
	}
}
