package agent

import (
	"sync"
	"time"
)

// Direction marks which way a conversation entry flowed.
type Direction string

const (
	Inbound  Direction = "inbound"
	Outbound Direction = "outbound"
)

// Entry is one recorded message in an agent's conversation.
type Entry struct {
	Direction Direction `json:"direction"`
	Content   string    `json:"content"`
	At        time.Time `json:"at"`
}

// Conversation is an append-only ordered record of exchanged messages,
// owned by exactly one agent. Append is the only mutation; readers get
// copied snapshots so they never block appenders beyond the short critical
// section.
type Conversation struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewConversation returns an empty conversation log.
func NewConversation() *Conversation {
	return &Conversation{}
}

// Append records one entry, stamped with the current time. Timestamps are
// monotonically non-decreasing in log order because appends are serialized
// under the lock.
func (c *Conversation) Append(dir Direction, content string) {
	c.mu.Lock()
	c.entries = append(c.entries, Entry{Direction: dir, Content: content, At: time.Now()})
	c.mu.Unlock()
}

// Len returns the number of recorded entries.
func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Snapshot returns a copy of the log in append order.
func (c *Conversation) Snapshot() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Exchange pairs an inbound message with the outbound response that
// immediately followed it. Response is empty for an unpaired inbound entry.
type Exchange struct {
	Input    string
	Response string
	HasReply bool
}

// Exchanges folds the log into input/response pairs in chronological order.
// An inbound entry followed by an outbound entry forms one exchange; an
// inbound entry with no following outbound forms an unpaired exchange.
// Leading outbound entries (none are produced by current variants) are
// skipped.
func (c *Conversation) Exchanges() []Exchange {
	entries := c.Snapshot()
	var out []Exchange
	for i := 0; i < len(entries); i++ {
		if entries[i].Direction != Inbound {
			continue
		}
		ex := Exchange{Input: entries[i].Content}
		if i+1 < len(entries) && entries[i+1].Direction == Outbound {
			ex.Response = entries[i+1].Content
			ex.HasReply = true
			i++
		}
		out = append(out, ex)
	}
	return out
}
