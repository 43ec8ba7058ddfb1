package driver

import "testing"

func Test_DistinctErrorLogRecordsFirstOccurrence(t *testing.T) {
	log := NewDistinctErrorLog()
	log.Record(ErrorStorage, 1, "disk full on %s", "/dev/shm")
	if got := log.Count(ErrorStorage, "disk full on /dev/shm"); got != 1 {
		t.Errorf("expected count 1 after first occurrence, got %d", got)
	}
}

func Test_DistinctErrorLogCoalescesRepeats(t *testing.T) {
	log := NewDistinctErrorLog()
	for i := 0; i < 250; i++ {
		log.Record(ErrorProtocol, int64(i), "bad frame")
	}
	if got := log.Count(ErrorProtocol, "bad frame"); got != 250 {
		t.Errorf("expected count to keep incrementing across coalesced occurrences, got %d", got)
	}
}

func Test_DistinctErrorLogSeparatesDistinctCodes(t *testing.T) {
	log := NewDistinctErrorLog()
	log.Record(ErrorStorage, 1, "same message")
	log.Record(ErrorProtocol, 1, "same message")

	if got := log.Count(ErrorStorage, "same message"); got != 1 {
		t.Errorf("expected storage count 1, got %d", got)
	}
	if got := log.Count(ErrorProtocol, "same message"); got != 1 {
		t.Errorf("expected protocol count 1, got %d", got)
	}
}

func Test_DistinctErrorLogCountUnknownIsZero(t *testing.T) {
	log := NewDistinctErrorLog()
	if got := log.Count(ErrorFatal, "never happened"); got != 0 {
		t.Errorf("expected 0 for an unrecorded pair, got %d", got)
	}
}
