package inference

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalRules(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	tests := []struct {
		input string
		want  string
	}{
		{"hello there", "Hello! I am a CortexOS agent running locally."},
		{"who are you?", "I am a CortexOS inference agent."},
		{"help", "I can handle: greetings, math (2+2), echo, uptime, and text analysis."},
		{"echo repeat this", "repeat this"},
		{"2+2", "= 4"},
		{"10 / 4", "= 2.5"},
		{"what is cortex?", "CortexOS is a distributed cognitive operating system."},
	}
	for _, tt := range tests {
		got, err := l.Complete(ctx, tt.input)
		require.NoError(t, err, tt.input)
		assert.Equal(t, tt.want, got, tt.input)
	}
}

func TestLocalFallbackAnalysis(t *testing.T) {
	l := NewLocal()
	got, err := l.Complete(context.Background(), "one two three")
	require.NoError(t, err)
	assert.Equal(t, "Analyzed your message: 3 words, 13 characters.", got)
}

func TestLocalUptime(t *testing.T) {
	l := NewLocal()
	got, err := l.Complete(context.Background(), "time?")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got, "I have been running for"), got)
}

func TestLocalDivisionByZeroFallsThrough(t *testing.T) {
	l := NewLocal()
	got, err := l.Complete(context.Background(), "1/0")
	require.NoError(t, err)
	assert.Contains(t, got, "words")
}

func TestLocalCanceledContext(t *testing.T) {
	l := NewLocal()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := l.Complete(ctx, "hello")
	assert.ErrorIs(t, err, context.Canceled)
}
