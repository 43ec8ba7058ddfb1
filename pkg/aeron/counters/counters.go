// Package counters implements the driver's system counters: labeled
// atomic 64-bit values readable by all parties (spec.md §6 "System
// counters"), used for the observability spec.md §7 requires ("errors are
// counted... and logged once").
package counters

import "sync/atomic"

// Well-known system counter ids, mirroring the ones spec.md and the real
// Aeron driver name explicitly.
const (
	Errors = iota
	UnblockedPublications
	UnblockedCommands
	FreeFails
	ClientTimeouts
)

var defaultLabels = map[int]string{
	Errors:                "errors",
	UnblockedPublications: "unblocked publications",
	UnblockedCommands:     "unblocked commands",
	FreeFails:             "free fails",
	ClientTimeouts:        "client timeouts",
}

// Counter is a single atomic counter with a label.
type Counter struct {
	label string
	value int64
}

func (c *Counter) Label() string { return c.label }
func (c *Counter) Get() int64    { return atomic.LoadInt64(&c.value) }
func (c *Counter) Increment()    { atomic.AddInt64(&c.value, 1) }
func (c *Counter) Add(delta int64) int64 {
	return atomic.AddInt64(&c.value, delta)
}

// Manager owns the fixed set of system counters for one driver instance.
// Unlike the real driver, which persists counters in a shared memory-mapped
// file so client processes can read them without an RPC, this module keeps
// them process-local: the counters file is a supplemented, but genuinely
// out-of-scope, piece of external-interfaces plumbing (client API wrappers
// are explicitly out of scope per spec.md §1), so no cross-process counters
// file is mapped here.
type Manager struct {
	counters map[int]*Counter
}

func NewManager() *Manager {
	m := &Manager{counters: make(map[int]*Counter, len(defaultLabels))}
	for id, label := range defaultLabels {
		m.counters[id] = &Counter{label: label}
	}
	return m
}

func (m *Manager) Get(id int) *Counter {
	c, ok := m.counters[id]
	if !ok {
		panic("counters: unknown counter id")
	}
	return c
}

// Snapshot returns a label->value map of every counter.
func (m *Manager) Snapshot() map[string]int64 {
	out := make(map[string]int64, len(m.counters))
	for _, c := range m.counters {
		out[c.Label()] = c.Get()
	}
	return out
}
