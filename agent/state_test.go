package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidTransition(t *testing.T) {
	allowed := []struct{ from, to State }{
		{StateStarting, StateRunning},
		{StateStarting, StateStopped}, // failed initialization
		{StateRunning, StateStopping},
		{StateRunning, StateStopped}, // forced removal
		{StateStopping, StateStopped},
	}
	for _, tr := range allowed {
		assert.True(t, ValidTransition(tr.from, tr.to), "%s -> %s", tr.from, tr.to)
		assert.NoError(t, CheckTransition(tr.from, tr.to))
	}

	denied := []struct{ from, to State }{
		{StateStopped, StateRunning},
		{StateStopped, StateStarting},
		{StateStopping, StateRunning},
		{StateRunning, StateStarting},
		{StateStarting, StateStopping},
	}
	for _, tr := range denied {
		assert.False(t, ValidTransition(tr.from, tr.to), "%s -> %s", tr.from, tr.to)
		assert.Error(t, CheckTransition(tr.from, tr.to))
	}
}
