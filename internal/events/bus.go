package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wolfman30/clinic-booking-engine/pkg/logging"
)

// Handler consumes delivered envelopes.
type Handler interface {
	Handle(ctx context.Context, env Envelope) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, env Envelope) error

func (f HandlerFunc) Handle(ctx context.Context, env Envelope) error { return f(ctx, env) }

// Publisher emits domain events after a state change committed. Publishing
// never fails the caller; delivery problems are logged.
type Publisher interface {
	Publish(ctx context.Context, aggregate string, evt CanonicalEvent)
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, CanonicalEvent) {}

type correlationKey struct{}

// WithCorrelationID stores the id stamped on envelopes published with ctx.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID returns the id stored by WithCorrelationID.
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

type subscription struct {
	name    string
	handler Handler
}

// Bus fans each event out to its subscribers on separate goroutines, so a
// slow or failing subscriber never blocks the publisher.
type Bus struct {
	mu      sync.RWMutex
	subs    []subscription
	logger  *logging.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewBus(logger *logging.Logger) *Bus {
	if logger == nil {
		logger = logging.Default()
	}
	return &Bus{logger: logger, timeout: 15 * time.Second}
}

func (b *Bus) WithHandlerTimeout(d time.Duration) *Bus {
	if d > 0 {
		b.timeout = d
	}
	return b
}

// Subscribe registers h under name for every subsequent event.
func (b *Bus) Subscribe(name string, h Handler) {
	if h == nil {
		return
	}
	b.mu.Lock()
	b.subs = append(b.subs, subscription{name: name, handler: h})
	b.mu.Unlock()
}

func (b *Bus) Publish(ctx context.Context, aggregate string, evt CanonicalEvent) {
	env, err := NewEnvelope(aggregate, CorrelationID(ctx), evt)
	if err != nil {
		b.logger.Error("event envelope failed", "error", err, "aggregate", aggregate)
		return
	}
	b.Dispatch(ctx, env)
}

// Dispatch delivers a prepared envelope to all subscribers.
func (b *Bus) Dispatch(ctx context.Context, env Envelope) {
	b.mu.RLock()
	subs := append([]subscription(nil), b.subs...)
	b.mu.RUnlock()

	// detach from the request so handlers outlive the HTTP response
	base := context.WithoutCancel(ctx)
	for _, sub := range subs {
		b.wg.Add(1)
		go b.deliver(base, sub, env)
	}
}

func (b *Bus) deliver(ctx context.Context, sub subscription, env Envelope) {
	defer b.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked", "handler", sub.name, "event_id", env.EventID, "panic", fmt.Sprint(r))
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	if err := sub.handler.Handle(ctx, env); err != nil {
		b.logger.Error("event handler failed",
			"handler", sub.name,
			"event_id", env.EventID,
			"event_type", env.EventType,
			"aggregate", env.Aggregate,
			"error", err,
		)
	}
}

// Wait blocks until in-flight deliveries finish or ctx ends.
func (b *Bus) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Recorder is an in-memory Handler that keeps every envelope it sees.
type Recorder struct {
	mu        sync.Mutex
	envelopes []Envelope
}

func (r *Recorder) Handle(ctx context.Context, env Envelope) error {
	r.mu.Lock()
	r.envelopes = append(r.envelopes, env)
	r.mu.Unlock()
	return nil
}

// Envelopes returns a copy of the recorded envelopes.
func (r *Recorder) Envelopes() []Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Envelope(nil), r.envelopes...)
}

// OfType returns the recorded envelopes with the given event type.
func (r *Recorder) OfType(eventType string) []Envelope {
	var out []Envelope
	for _, env := range r.Envelopes() {
		if env.EventType == eventType {
			out = append(out, env)
		}
	}
	return out
}

// RecordingPublisher publishes synchronously into a Recorder. Tests use it to
// assert on emitted events without goroutines.
type RecordingPublisher struct {
	Recorder
}

func (p *RecordingPublisher) Publish(ctx context.Context, aggregate string, evt CanonicalEvent) {
	env, err := NewEnvelope(aggregate, CorrelationID(ctx), evt)
	if err != nil {
		return
	}
	_ = p.Handle(ctx, env)
}
