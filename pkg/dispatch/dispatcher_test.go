package dispatch

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/tzrikka/hookgate/pkg/extract"
)

// recorder is a handler factory that records its invocations.
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) handler(name string) HandlerFunc {
	return func(_ context.Context, eventType string, _ any, _ string) (any, error) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.calls = append(r.calls, name+":"+eventType)
		return name, nil
	}
}

func TestDispatchMatching(t *testing.T) {
	tests := []struct {
		name      string
		event     extract.Event
		wantCalls []string
	}{
		{
			name:      "exact_and_wildcard",
			event:     extract.Event{Platform: "a", Type: "x"},
			wantCalls: []string{"exact:x", "wildcard:x"},
		},
		{
			name:      "wildcard_only",
			event:     extract.Event{Platform: "a", Type: "y"},
			wantCalls: []string{"wildcard:y"},
		},
		{
			name:  "other_platform",
			event: extract.Event{Platform: "b", Type: "x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &recorder{}
			d := New()
			d.Register("a", "x", r.handler("exact"))
			d.Register("a", Wildcard, r.handler("wildcard"))

			res := d.Dispatch(t.Context(), tt.event)
			if !reflect.DeepEqual(r.calls, tt.wantCalls) {
				t.Errorf("handler calls = %v, want %v", r.calls, tt.wantCalls)
			}
			if len(res.Outcomes) != len(tt.wantCalls) {
				t.Errorf("len(Outcomes) = %d, want %d", len(res.Outcomes), len(tt.wantCalls))
			}
			for _, o := range res.Outcomes {
				if !o.OK() {
					t.Errorf("outcome = %+v, want success", o)
				}
			}
		})
	}
}

func TestDispatchIsolatesFailures(t *testing.T) {
	r := &recorder{}
	d := New()
	d.Register("a", "x", func(context.Context, string, any, string) (any, error) {
		return nil, errors.New("handler error")
	})
	d.Register("a", "x", func(context.Context, string, any, string) (any, error) {
		panic("handler panic")
	})
	d.Register("a", Wildcard, r.handler("after"))

	events := []extract.Event{{Platform: "a", Type: "x"}, {Platform: "a", Type: "z"}}
	results := d.DispatchAll(t.Context(), events)

	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}

	first := results[0].Outcomes
	if len(first) != 3 {
		t.Fatalf("len(first.Outcomes) = %d, want 3", len(first))
	}
	if first[0].OK() || first[1].OK() || !first[2].OK() {
		t.Errorf("first event outcomes = %+v", first)
	}
	if first[2].Value != "after" || first[2].HandlerIndex != 2 {
		t.Errorf("third outcome = %+v", first[2])
	}

	if len(results[1].Outcomes) != 1 || !results[1].Outcomes[0].OK() {
		t.Errorf("second event outcomes = %+v", results[1].Outcomes)
	}

	want := []string{"after:x", "after:z"}
	if !reflect.DeepEqual(r.calls, want) {
		t.Errorf("calls = %v, want %v", r.calls, want)
	}
}

func TestDispatchPassesEventData(t *testing.T) {
	d := New()
	d.Register("slack", "message", func(_ context.Context, eventType string, data any, platform string) (any, error) {
		return []any{eventType, data, platform}, nil
	})

	res := d.Dispatch(t.Context(), extract.Event{Platform: "slack", Type: "message", Data: "hi"})
	want := []any{"message", "hi", "slack"}
	if got := res.Outcomes[0].Value; !reflect.DeepEqual(got, want) {
		t.Errorf("handler value = %v, want %v", got, want)
	}
}

func TestConcurrentRegisterAndDispatch(t *testing.T) {
	d := New()
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			d.Register("a", Wildcard, func(context.Context, string, any, string) (any, error) {
				return nil, nil
			})
		}()
		go func() {
			defer wg.Done()
			d.Dispatch(context.Background(), extract.Event{Platform: "a", Type: "x"})
		}()
	}
	wg.Wait()

	if got := len(d.Dispatch(t.Context(), extract.Event{Platform: "a", Type: "x"}).Outcomes); got != 10 {
		t.Errorf("len(Outcomes) = %d, want 10", got)
	}
}

func TestRegisterNilHandler(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Register(nil) didn't panic")
		}
	}()
	New().Register("a", "x", nil)
}
