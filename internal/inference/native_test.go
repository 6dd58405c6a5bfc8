package inference

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNativeUnregistered(t *testing.T) {
	notReady := errors.New("not registered")
	n := NewNative(func() func(context.Context, string) (string, error) {
		return nil
	}, notReady)

	_, err := n.Complete(context.Background(), "x")
	assert.ErrorIs(t, err, notReady)
}

func TestNativeLateRegistration(t *testing.T) {
	var (
		mu sync.Mutex
		fn func(context.Context, string) (string, error)
	)
	n := NewNative(func() func(context.Context, string) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		return fn
	}, errors.New("not registered"))

	_, err := n.Complete(context.Background(), "x")
	require.Error(t, err)

	mu.Lock()
	fn = func(ctx context.Context, input string) (string, error) {
		return "echo:" + input, nil
	}
	mu.Unlock()

	got, err := n.Complete(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "echo:x", got)
}

func TestNativeSerializesInvocations(t *testing.T) {
	inFlight := 0
	maxInFlight := 0
	var mu sync.Mutex

	cb := func(ctx context.Context, input string) (string, error) {
		mu.Lock()
		inFlight++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		mu.Unlock()

		mu.Lock()
		inFlight--
		mu.Unlock()
		return "ok", nil
	}

	n := NewNative(func() func(context.Context, string) (string, error) {
		return cb
	}, errors.New("not registered"))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = n.Complete(context.Background(), "x")
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxInFlight)
}
