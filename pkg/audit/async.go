package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tzrikka/hookgate/pkg/metrics"
)

const DefaultTimeout = 2 * time.Second

// Async writes records to a [Sink] in the background, each write bounded by
// a timeout, so that a slow or unavailable sink can't stall webhook processing.
// Errors (and panics) are logged and counted, but otherwise swallowed.
type Async struct {
	sink    Sink
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewAsync(s Sink, timeout time.Duration) *Async {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Async{sink: s, timeout: timeout}
}

// Submit returns immediately. The write is detached from the cancellation
// of the given context, because the request may finish before the write.
func (a *Async) Submit(ctx context.Context, r Record) {
	if a == nil || a.sink == nil {
		return
	}

	l := zerolog.Ctx(ctx)
	ctx = context.WithoutCancel(ctx)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()

		ctx, cancel := context.WithTimeout(ctx, a.timeout)
		defer cancel()

		if err := a.write(ctx, r); err != nil {
			metrics.AuditFailures.Inc()
			l.Debug().Err(err).Str("audit_id", r.ID).Msg("failed to write audit record")
		}
	}()
}

func (a *Async) write(ctx context.Context, r Record) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("audit sink panic: %v", p)
		}
	}()

	return a.sink.Write(ctx, r)
}

// Wait blocks until all the submitted writes are done (e.g. during shutdown).
func (a *Async) Wait() {
	if a != nil {
		a.wg.Wait()
	}
}
