package driver

import (
	"strconv"

	"github.com/wangjia184/sortedset"
)

// RestingSubscriber is the minimal record the conductor needs to
// re-admit an untethered subscriber that has finished resting (spec.md
// §4.P "Untethered subscriber protocol").
type RestingSubscriber struct {
	PublicationRegistrationID int64
	SubscriberRegistrationID  int64
}

// RestingQueue orders untethered subscribers currently in the RESTING
// tether state by their re-admission deadline, adapted from the
// teacher's RQueue (internal/queue.go): that structure kept a
// sortedset of messages ordered by delivery timestamp so the earliest-due
// entry always sits at the head; here the score is a resting deadline in
// nanoseconds and the "delivery" is re-admission to ACTIVE, generalized
// from generic-multicast message ordering to a single scalar key.
type RestingQueue struct {
	set *sortedset.SortedSet
}

func NewRestingQueue() *RestingQueue {
	return &RestingQueue{set: sortedset.New()}
}

func key(pubRegID, subRegID int64) string {
	return strconv.FormatInt(pubRegID, 10) + ":" + strconv.FormatInt(subRegID, 10)
}

// Add enqueues sub, due for re-admission at deadlineNs.
func (q *RestingQueue) Add(sub RestingSubscriber, deadlineNs int64) {
	q.set.AddOrUpdate(key(sub.PublicationRegistrationID, sub.SubscriberRegistrationID), sortedset.SCORE(deadlineNs), sub)
}

// Remove drops sub from the queue, e.g. because its publication was torn
// down while it was still resting.
func (q *RestingQueue) Remove(sub RestingSubscriber) {
	q.set.Remove(key(sub.PublicationRegistrationID, sub.SubscriberRegistrationID))
}

// DueBy pops and returns every entry whose deadline is <= nowNs, in
// deadline order, for the conductor's sweep to re-admit.
func (q *RestingQueue) DueBy(nowNs int64) []RestingSubscriber {
	var due []RestingSubscriber
	for {
		node := q.set.PeekMin()
		if node == nil || int64(node.Score()) > nowNs {
			break
		}
		q.set.Remove(node.Key())
		due = append(due, node.Value.(RestingSubscriber))
	}
	return due
}

// Len reports how many subscribers are currently resting.
func (q *RestingQueue) Len() int {
	return q.set.GetCount()
}
