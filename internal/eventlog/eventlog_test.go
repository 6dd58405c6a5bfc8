package eventlog

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/therenansimoes/cortexOS/agent"
)

func TestLogAppendBelowCapacity(t *testing.T) {
	l := New(5)
	for i := 0; i < 3; i++ {
		l.Append(agent.NewEvent("k", fmt.Sprintf("p%d", i), ""))
	}

	snap := l.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "p0", snap[0].Payload)
	assert.Equal(t, "p2", snap[2].Payload)
}

func TestLogEvictsOldest(t *testing.T) {
	l := New(3)
	for i := 0; i < 5; i++ {
		l.Append(agent.NewEvent("k", fmt.Sprintf("p%d", i), ""))
	}

	snap := l.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "p2", snap[0].Payload)
	assert.Equal(t, "p3", snap[1].Payload)
	assert.Equal(t, "p4", snap[2].Payload)
	assert.Equal(t, 3, l.Len())
}

func TestLogDefaultCapacity(t *testing.T) {
	l := New(0)
	for i := 0; i < DefaultCapacity+10; i++ {
		l.Append(agent.NewEvent("k", fmt.Sprintf("p%d", i), ""))
	}
	assert.Equal(t, DefaultCapacity, l.Len())
	assert.Equal(t, "p10", l.Snapshot()[0].Payload)
}

func TestLogConcurrentAccess(t *testing.T) {
	l := New(16)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				l.Append(agent.NewEvent("k", "p", ""))
				_ = l.Snapshot()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 16, l.Len())
}
