// Package webhook orchestrates the processing of a single inbound webhook
// request: best-effort auditing, signature verification, body parsing,
// event extraction, and dispatching to registered handlers.
//
// Rejected requests are never parsed or dispatched. Everything after
// verification degrades gracefully instead of failing.
package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tzrikka/hookgate/pkg/audit"
	"github.com/tzrikka/hookgate/pkg/dispatch"
	"github.com/tzrikka/hookgate/pkg/extract"
	"github.com/tzrikka/hookgate/pkg/metrics"
	"github.com/tzrikka/hookgate/pkg/secrets"
	"github.com/tzrikka/hookgate/pkg/verify"
)

// ReasonRejected is the only rejection reason exposed to callers,
// regardless of which verification check failed.
const ReasonRejected = "signature verification failed"

// State is a processing stage of a single request.
type State string

const (
	StateReceived   State = "received"
	StateLogged     State = "logged"
	StateVerifying  State = "verifying"
	StateVerified   State = "verified"
	StateRejected   State = "rejected"
	StateParsed     State = "parsed"
	StateExtracted  State = "extracted"
	StateDispatched State = "dispatched"
	StateCompleted  State = "completed"
)

// Request is a single inbound webhook delivery. Body must hold the exact
// bytes that were received: it is verified as-is, before any parsing.
type Request struct {
	ID         string
	Platform   string
	Headers    http.Header
	Body       []byte
	ReceivedAt time.Time
	SourceIP   string
}

// Result is the outcome of processing a single request.
type Result struct {
	Success         bool
	EventsProcessed int
	Results         []dispatch.Result
	Reason          string
}

type resultJSON struct {
	Success         bool        `json:"success"`
	EventsProcessed int         `json:"events_processed"`
	Events          []eventJSON `json:"events,omitempty"`
	Reason          string      `json:"reason,omitempty"`
}

type eventJSON struct {
	Type     string        `json:"type"`
	Handlers []handlerJSON `json:"handlers"`
}

type handlerJSON struct {
	Index int  `json:"index"`
	OK    bool `json:"ok"`
}

// MarshalJSON summarizes the result for the sender of the request:
// per-event handler outcomes, without handler values or error details.
func (r Result) MarshalJSON() ([]byte, error) {
	out := resultJSON{Success: r.Success, EventsProcessed: r.EventsProcessed, Reason: r.Reason}
	for _, dr := range r.Results {
		e := eventJSON{Type: dr.Event.Type, Handlers: []handlerJSON{}}
		for _, o := range dr.Outcomes {
			e.Handlers = append(e.Handlers, handlerJSON{Index: o.HandlerIndex, OK: o.OK()})
		}
		out.Events = append(out.Events, e)
	}
	return json.Marshal(out)
}

// Events returns the events that were extracted from the request.
func (r Result) Events() []extract.Event {
	es := make([]extract.Event, 0, len(r.Results))
	for _, dr := range r.Results {
		es = append(es, dr.Event)
	}
	return es
}

// Pipeline processes webhook requests. It holds no per-request state,
// so a single instance is safe for concurrent use.
type Pipeline struct {
	Verifiers  *verify.Registry
	Extractors *extract.Registry
	Dispatcher *dispatch.Dispatcher
	Secrets    secrets.Store
	Audit      *audit.Async

	// Now is the single clock of the pipeline, used for replay-window
	// checks and timestamps. It defaults to [time.Now].
	Now func() time.Time

	tracer trace.Tracer
}

func New(v *verify.Registry, e *extract.Registry, d *dispatch.Dispatcher, s secrets.Store, a *audit.Async) *Pipeline {
	return &Pipeline{
		Verifiers:  v,
		Extractors: e,
		Dispatcher: d,
		Secrets:    s,
		Audit:      a,
		Now:        time.Now,
		tracer:     otel.Tracer("github.com/tzrikka/hookgate/pkg/webhook"),
	}
}

// Process runs a request through the pipeline. It never returns an error:
// rejected requests yield Success = false, and all the failures after
// verification are recorded in the result or recovered from.
func (p *Pipeline) Process(ctx context.Context, req Request) Result {
	now := p.now()
	if req.ReceivedAt.IsZero() {
		req.ReceivedAt = now
	}
	if req.ID == "" {
		req.ID = shortuuid.New()
	}
	if req.Headers == nil {
		req.Headers = http.Header{}
	}

	ctx, span := p.startSpan(ctx, req)
	defer span.End()

	l := zerolog.Ctx(ctx).With().Str("platform", req.Platform).Str("request_id", req.ID).Logger()
	ctx = l.WithContext(ctx)

	label := p.PlatformLabel(req.Platform)
	metrics.RequestsReceived.WithLabelValues(label).Inc()
	defer func() {
		d := p.now().Sub(now)
		metrics.ProcessingDuration.WithLabelValues(label).Observe(float64(d.Milliseconds()))
	}()

	// Best-effort, asynchronous, and independent of the outcome.
	p.Audit.Submit(ctx, audit.NewRecord(req.ID, req.Platform, req.Headers, req.Body, req.ReceivedAt, req.SourceIP))
	span.AddEvent(string(StateLogged))

	span.AddEvent(string(StateVerifying))
	o := p.Verifiers.Verify(ctx, verify.Input{
		Platform: req.Platform,
		Headers:  req.Headers,
		Body:     req.Body,
		Now:      now,
	}, p.store())

	if !o.Valid {
		metrics.Verifications.WithLabelValues(label, metrics.ResultRejected).Inc()
		l.Warn().Str("reason", o.Reason).Int("body_size", len(req.Body)).Msg("rejected webhook request")
		span.AddEvent(string(StateRejected))
		span.SetStatus(codes.Error, ReasonRejected)
		return Result{Success: false, Reason: ReasonRejected}
	}

	metrics.Verifications.WithLabelValues(label, metrics.ResultAccepted).Inc()
	l.Debug().Str("reason", o.Reason).Msg("verified webhook request")
	span.AddEvent(string(StateVerified))

	payload := ParseBody(req.Body)
	span.AddEvent(string(StateParsed))

	events := p.Extractors.Extract(req.Platform, payload)
	for _, e := range events {
		metrics.EventsExtracted.WithLabelValues(label, e.Type).Inc()
	}
	l.Debug().Strs("event_types", extract.Types(events)).Int("events", len(events)).Msg("extracted webhook events")
	span.AddEvent(string(StateExtracted))

	results := p.Dispatcher.DispatchAll(ctx, events)
	failures := 0
	for _, r := range results {
		for _, out := range r.Outcomes {
			outcome := metrics.OutcomeSuccess
			if !out.OK() {
				outcome = metrics.OutcomeFailure
				failures++
			}
			metrics.HandlerInvocations.WithLabelValues(label, outcome).Inc()
		}
	}
	span.AddEvent(string(StateDispatched))

	l.Info().Int("events", len(events)).Int("handler_failures", failures).Msg("processed webhook request")
	span.AddEvent(string(StateCompleted))

	return Result{Success: true, EventsProcessed: len(events), Results: results}
}

// PlatformLabel returns the metric label of the given platform ID. Platforms
// without their own verifier share [metrics.OtherPlatform], to keep the
// number of metric series bounded. Logs and spans keep the actual ID.
func (p *Pipeline) PlatformLabel(platform string) string {
	if p.Verifiers != nil && p.Verifiers.Has(platform) {
		return platform
	}
	return metrics.OtherPlatform
}

func (p *Pipeline) startSpan(ctx context.Context, req Request) (context.Context, trace.Span) {
	t := p.tracer
	if t == nil {
		t = otel.Tracer("github.com/tzrikka/hookgate/pkg/webhook")
	}

	ctx, span := t.Start(ctx, "webhook.process", trace.WithAttributes(
		attribute.String("webhook.platform", req.Platform),
		attribute.String("webhook.request_id", req.ID),
		attribute.Int("webhook.body_size", len(req.Body)),
	))
	span.AddEvent(string(StateReceived))
	return ctx, span
}

func (p *Pipeline) store() secrets.Store {
	if p.Secrets != nil {
		return p.Secrets
	}
	return secrets.Static{}
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}
