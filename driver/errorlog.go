package driver

import (
	"fmt"
	"sync"

	plog "github.com/prometheus/common/log"
)

// ErrorCode identifies the taxonomy spec.md §7 defines.
type ErrorCode int

const (
	ErrorStorage ErrorCode = iota
	ErrorProtocol
	ErrorFlowControlRecoverable
	ErrorLiveness
	ErrorFatal
)

func (c ErrorCode) String() string {
	switch c {
	case ErrorStorage:
		return "storage"
	case ErrorProtocol:
		return "protocol"
	case ErrorFlowControlRecoverable:
		return "flow-control"
	case ErrorLiveness:
		return "liveness"
	case ErrorFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

type distinctEntry struct {
	count      int64
	lastSeenNs int64
}

// DistinctErrorLog implements spec.md §7's policy: "errors are... logged
// once (distinct error log with coalescing)". Repeated occurrences of the
// same (code, message) pair bump an observation count and a last-seen
// timestamp instead of writing a new log line every time, built on
// github.com/prometheus/common/log's structured Logger (the teacher
// depends on prometheus/common already; this generalizes it from a plain
// logging dependency into the specific coalescing behavior spec.md
// requires).
type DistinctErrorLog struct {
	mutex   sync.Mutex
	entries map[string]*distinctEntry
	sink    plog.Logger
}

func NewDistinctErrorLog() *DistinctErrorLog {
	return &DistinctErrorLog{
		entries: make(map[string]*distinctEntry),
		sink:    plog.With("component", "aeron-driver"),
	}
}

// Record logs the (code, message) pair the first time it is seen, and on
// every occurrence after that only updates the coalesced count silently.
// nowNs is the caller's cached clock reading so this never calls into the
// wall clock itself.
func (d *DistinctErrorLog) Record(code ErrorCode, nowNs int64, format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	key := code.String() + "|" + message

	d.mutex.Lock()
	entry, seen := d.entries[key]
	if !seen {
		entry = &distinctEntry{}
		d.entries[key] = entry
	}
	entry.count++
	entry.lastSeenNs = nowNs
	count := entry.count
	d.mutex.Unlock()

	if !seen {
		plog.With("code", code.String()).Warn(message)
		return
	}
	if count%100 == 0 {
		d.sink.With("code", code.String()).With("occurrences", count).Warn(message + " (coalesced)")
	}
}

// Count returns how many times the given (code, message) pair has been
// recorded, for tests and for the errors system counter.
func (d *DistinctErrorLog) Count(code ErrorCode, message string) int64 {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	entry, ok := d.entries[code.String()+"|"+message]
	if !ok {
		return 0
	}
	return entry.count
}
