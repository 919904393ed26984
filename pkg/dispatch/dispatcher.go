// Package dispatch routes normalized webhook events to handlers
// registered by the application, per platform and event type.
package dispatch

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tzrikka/hookgate/pkg/extract"
)

// Wildcard registers a handler for every event type of a platform.
const Wildcard = "*"

// HandlerFunc processes a single event. Its return value is recorded
// as-is in the event's [Result]; errors and panics are recorded as failures.
type HandlerFunc func(ctx context.Context, eventType string, data any, platform string) (any, error)

type registration struct {
	platform  string
	eventType string
	handler   HandlerFunc
}

// Outcome is the result of invoking a single handler.
type Outcome struct {
	HandlerIndex int
	Value        any
	Err          error
}

// OK reports whether the handler succeeded.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Result lists the outcomes of all the handlers
// that matched a single event, in invocation order.
type Result struct {
	Event    extract.Event
	Outcomes []Outcome
}

// Dispatcher is an append-only registry of event handlers. It is safe
// for concurrent use, including registration during dispatching.
type Dispatcher struct {
	mu            sync.RWMutex
	registrations []registration
}

func New() *Dispatcher {
	return &Dispatcher{}
}

// Register adds a handler for events of the given platform and type
// (or [Wildcard]). Registrations cannot be removed.
func (d *Dispatcher) Register(platform, eventType string, h HandlerFunc) {
	if h == nil {
		panic(fmt.Sprintf("dispatch: nil handler for %s/%s", platform, eventType))
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.registrations = append(d.registrations, registration{platform: platform, eventType: eventType, handler: h})
}

// matches returns a snapshot of the handlers matching the given event,
// in registration order, so they can run without holding the lock.
func (d *Dispatcher) matches(e extract.Event) []HandlerFunc {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var hs []HandlerFunc
	for _, r := range d.registrations {
		if r.platform != e.Platform {
			continue
		}
		if r.eventType == Wildcard || r.eventType == e.Type {
			hs = append(hs, r.handler)
		}
	}
	return hs
}

// Dispatch invokes every handler that matches the given event: both exact-type
// and wildcard registrations. Handlers are isolated from each other: a failure
// in one doesn't prevent the others from running. Handlers currently run in
// registration order, but callers shouldn't depend on that.
func (d *Dispatcher) Dispatch(ctx context.Context, e extract.Event) Result {
	l := zerolog.Ctx(ctx)
	res := Result{Event: e}

	for i, h := range d.matches(e) {
		v, err := invoke(ctx, h, e)
		if err != nil {
			l.Warn().Err(err).Str("event_type", e.Type).Int("handler_index", i).Msg("event handler failed")
		}
		res.Outcomes = append(res.Outcomes, Outcome{HandlerIndex: i, Value: v, Err: err})
	}

	return res
}

// DispatchAll dispatches a batch of events, in order.
func (d *Dispatcher) DispatchAll(ctx context.Context, events []extract.Event) []Result {
	rs := make([]Result, 0, len(events))
	for _, e := range events {
		rs = append(rs, d.Dispatch(ctx, e))
	}
	return rs
}

func invoke(ctx context.Context, h HandlerFunc, e extract.Event) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			v = nil
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	return h(ctx, e.Type, e.Data, e.Platform)
}
