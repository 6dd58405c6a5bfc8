// Package eventlog retains a bounded rolling history of bus traffic for
// introspection. When the buffer is full the oldest event is dropped.
package eventlog

import (
	"sync"

	"github.com/therenansimoes/cortexOS/agent"
)

// DefaultCapacity matches the runtime default of 100 retained events.
const DefaultCapacity = 100

// Log is a fixed-capacity ring of the most recent events.
type Log struct {
	mu    sync.RWMutex
	buf   []agent.Event
	head  int // index of the oldest event
	count int
}

// New creates a log retaining the last capacity events. Non-positive
// capacities fall back to DefaultCapacity.
func New(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{buf: make([]agent.Event, capacity)}
}

// Append records one event, evicting the oldest when full.
func (l *Log) Append(ev agent.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.count < len(l.buf) {
		l.buf[(l.head+l.count)%len(l.buf)] = ev
		l.count++
		return
	}
	l.buf[l.head] = ev
	l.head = (l.head + 1) % len(l.buf)
}

// Len returns the number of retained events.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.count
}

// Snapshot returns the retained events, oldest first.
func (l *Log) Snapshot() []agent.Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]agent.Event, l.count)
	for i := 0; i < l.count; i++ {
		out[i] = l.buf[(l.head+i)%len(l.buf)]
	}
	return out
}
