package agent

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversationAppendOrder(t *testing.T) {
	c := NewConversation()
	c.Append(Inbound, "hello")
	c.Append(Outbound, "hi")
	c.Append(Inbound, "bye")

	entries := c.Snapshot()
	require.Len(t, entries, 3)
	assert.Equal(t, "hello", entries[0].Content)
	assert.Equal(t, Outbound, entries[1].Direction)
	assert.Equal(t, "bye", entries[2].Content)

	for i := 1; i < len(entries); i++ {
		assert.False(t, entries[i].At.Before(entries[i-1].At), "timestamps must be monotonic")
	}
}

func TestConversationSnapshotIsCopy(t *testing.T) {
	c := NewConversation()
	c.Append(Inbound, "one")

	snap := c.Snapshot()
	snap[0].Content = "mutated"

	assert.Equal(t, "one", c.Snapshot()[0].Content)
}

func TestConversationExchanges(t *testing.T) {
	c := NewConversation()
	c.Append(Inbound, "q1")
	c.Append(Outbound, "a1")
	c.Append(Inbound, "q2")
	c.Append(Outbound, "a2")
	c.Append(Inbound, "q3") // no reply yet

	exchanges := c.Exchanges()
	require.Len(t, exchanges, 3)
	assert.Equal(t, Exchange{Input: "q1", Response: "a1", HasReply: true}, exchanges[0])
	assert.Equal(t, Exchange{Input: "q2", Response: "a2", HasReply: true}, exchanges[1])
	assert.Equal(t, Exchange{Input: "q3"}, exchanges[2])
}

func TestConversationConcurrentAppend(t *testing.T) {
	c := NewConversation()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Append(Inbound, fmt.Sprintf("w%d-%d", n, j))
				_ = c.Len()
				_ = c.Snapshot()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1000, c.Len())
}
