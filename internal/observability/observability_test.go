package observability

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestInitDisabled(t *testing.T) {
	require.NoError(t, Init(Config{Enabled: false}))
	require.NoError(t, Shutdown(context.Background()), "shutdown without a provider is a no-op")
}

func TestInitStdoutExporter(t *testing.T) {
	require.NoError(t, Init(Config{
		ServiceName:  "cortexos-test",
		Enabled:      true,
		ExporterType: "stdout",
	}))
	t.Cleanup(func() { _ = Shutdown(context.Background()) })

	ctx, span := StartSpan(context.Background(), "runtime.publish",
		attribute.String("event.kind", "heartbeat"))
	assert.NotNil(t, ctx)
	EndSpan(span, nil)

	require.NoError(t, Shutdown(context.Background()))
}

func TestInitUnknownExporter(t *testing.T) {
	err := Init(Config{Enabled: true, ExporterType: "jaeger"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown exporter type")
}

func TestStartSpanWithoutInit(t *testing.T) {
	// No Init: helpers fall back to the no-op global tracer.
	tracer = nil
	ctx, span := StartSpan(context.Background(), "uninitialized")
	assert.NotNil(t, ctx)
	EndSpan(span, errors.New("recorded on noop span"))
}

func TestStartSpanConcurrent(t *testing.T) {
	require.NoError(t, Init(Config{Enabled: false}))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			_, span := StartSpan(context.Background(), "concurrent",
				attribute.Int("worker", id))
			span.End()
		}(i)
	}
	wg.Wait()
}

func TestParseHeaders(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  map[string]string
	}{
		{name: "empty", input: "", want: nil},
		{name: "single", input: "Authorization=Bearer tok", want: map[string]string{"Authorization": "Bearer tok"}},
		{
			name:  "multiple",
			input: "a=1,b=2",
			want:  map[string]string{"a": "1", "b": "2"},
		},
		{
			name:  "value with equals",
			input: "sig=a=b",
			want:  map[string]string{"sig": "a=b"},
		},
		{name: "malformed pair skipped", input: "no-equals,a=1", want: map[string]string{"a": "1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseHeaders(tt.input))
		})
	}
}
