package agents

import (
	"context"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/therenansimoes/cortexOS/agent"
	"github.com/therenansimoes/cortexOS/internal/inference"
	"github.com/therenansimoes/cortexOS/internal/observability"
	metrics "github.com/therenansimoes/cortexOS/pkg/observability"
)

func init() {
	agent.RegisterFactory(agent.KindLocalInference, func(id string, def agent.Def, rt agent.Runtime) (agent.Agent, error) {
		return NewInference(id, def, inference.NewLocal()), nil
	})
	agent.RegisterFactory(agent.KindRemoteInference, func(id string, def agent.Def, rt agent.Runtime) (agent.Agent, error) {
		var backend inference.Backend
		if def.Format == "openai" {
			backend = inference.NewOpenAI(def.Endpoint, def.Model)
		} else {
			backend = inference.NewOllama(def.Endpoint, def.Model)
		}
		return NewInference(id, def, backend), nil
	})
	agent.RegisterFactory(agent.KindNativeInference, func(id string, def agent.Def, rt agent.Runtime) (agent.Agent, error) {
		backend := inference.NewNative(func() func(context.Context, string) (string, error) {
			if fn := rt.NativeBackend(); fn != nil {
				return fn
			}
			return nil
		}, agent.ErrNativeNotRegistered)
		return NewInference(id, def, backend), nil
	})
}

// Inference answers direct messages through its configured backend and
// treats subscribed bus events as implicit direct messages with no
// returned response. A failed backend call surfaces as an InferenceError
// but never moves the agent out of Running; failures are counted and left
// for the caller (and metrics) to observe.
type Inference struct {
	*Base
	backend  inference.Backend
	failures atomic.Uint64
}

// NewInference creates an inference agent over the given backend.
func NewInference(id string, def agent.Def, backend inference.Backend) *Inference {
	return &Inference{Base: NewBase(id, def), backend: backend}
}

// Backend exposes the backend identity for stats and logs.
func (a *Inference) Backend() string { return a.backend.Name() }

// Failures returns the number of failed backend calls so far.
func (a *Inference) Failures() uint64 { return a.failures.Load() }

// HandleDirect records the message, asks the backend for a response,
// records it, and returns it.
func (a *Inference) HandleDirect(ctx context.Context, msg string) (string, error) {
	if err := a.begin(); err != nil {
		return "", err
	}
	defer a.end()

	callCtx, done := a.callContext(ctx)
	defer done()

	a.conv.Append(agent.Inbound, msg)

	callCtx, span := observability.StartSpan(callCtx, "agent.inference",
		attribute.String("inference.backend", a.backend.Name()))
	start := time.Now()
	out, err := a.backend.Complete(callCtx, msg)
	observability.EndSpan(span, err)

	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.RecordInference(a.backend.Name(), status, time.Since(start))

	if err != nil {
		a.failures.Add(1)
		return "", &agent.InferenceError{Backend: a.backend.Name(), Err: err}
	}
	a.appendOutbound(out)
	return out, nil
}

// HandleEvent runs fire-and-forget inference on the event payload: the
// exchange is recorded in the conversation log, but no response event is
// ever published.
func (a *Inference) HandleEvent(ctx context.Context, ev agent.Event) error {
	_, err := a.HandleDirect(ctx, ev.Payload)
	return err
}
