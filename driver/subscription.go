package driver

import (
	"github.com/aeronio/aeron-go/pkg/aeron/image"
	"github.com/aeronio/aeron-go/pkg/aeron/ipc"
)

// newImage builds the subscriber's read-side view of pub's log buffer,
// sharing the same position counter the publication's flow control reads
// from (spec.md §4.I: an Image is "a per-session view of a log buffer").
func newImage(pub *ipc.Publication, sub *ipc.Subscriber) *image.Image {
	return image.New(pub.Log, sub.Position, pub.SessionID, pub.StreamID)
}
