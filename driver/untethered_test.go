package driver

import "testing"

func Test_RestingQueueDueByReturnsEarliestFirst(t *testing.T) {
	q := NewRestingQueue()
	a := RestingSubscriber{PublicationRegistrationID: 1, SubscriberRegistrationID: 10}
	b := RestingSubscriber{PublicationRegistrationID: 1, SubscriberRegistrationID: 20}
	c := RestingSubscriber{PublicationRegistrationID: 2, SubscriberRegistrationID: 30}

	q.Add(a, 300)
	q.Add(b, 100)
	q.Add(c, 200)

	if q.Len() != 3 {
		t.Fatalf("expected 3 resting entries, got %d", q.Len())
	}

	due := q.DueBy(200)
	if len(due) != 2 {
		t.Fatalf("expected 2 entries due by 200, got %d", len(due))
	}
	if due[0] != b || due[1] != c {
		t.Errorf("expected due order [b,c], got [%+v,%+v]", due[0], due[1])
	}
	if q.Len() != 1 {
		t.Errorf("expected 1 entry remaining, got %d", q.Len())
	}
}

func Test_RestingQueueRemoveDropsEntry(t *testing.T) {
	q := NewRestingQueue()
	sub := RestingSubscriber{PublicationRegistrationID: 1, SubscriberRegistrationID: 10}
	q.Add(sub, 100)
	q.Remove(sub)

	if q.Len() != 0 {
		t.Errorf("expected queue to be empty after Remove, got %d", q.Len())
	}
	due := q.DueBy(1000)
	if len(due) != 0 {
		t.Errorf("expected removed entry to never come due, got %+v", due)
	}
}
