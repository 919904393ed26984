// Package extract turns verified and parsed webhook payloads into
// platform-agnostic [Event]s. Each platform's payload shape is handled by
// an [Extractor] strategy, selected by a static [Registry].
//
// Extraction never fails: unexpected shapes degrade into a single
// [Unknown] event that carries the entire payload.
package extract

import (
	"fmt"
	"strconv"
)

// Unknown is the type of the fallback event.
const Unknown = "unknown"

// Event is a normalized webhook event.
type Event struct {
	Platform string `json:"platform"`
	Type     string `json:"type"`
	Data     any    `json:"data,omitempty"`
}

// Extractor is a single payload-shape strategy. It returns zero events when
// it doesn't recognize the payload; the [Registry] handles the fallback.
// Implementations must be pure, and must not modify the payload.
type Extractor interface {
	Extract(platform string, payload any) []Event
}

// Generic recognizes nothing, so its payloads always
// become a single [Unknown] event.
type Generic struct{}

func (Generic) Extract(string, any) []Event {
	return nil
}

// Registry maps platform IDs to [Extractor] strategies.
// It is immutable after construction, and safe for concurrent use.
type Registry struct {
	strategies map[string]Extractor
}

func NewRegistry(strategies map[string]Extractor) *Registry {
	m := make(map[string]Extractor, len(strategies))
	for k, e := range strategies {
		m[k] = e
	}
	return &Registry{strategies: m}
}

// Strategy returns the extractor of the given platform, or [Generic].
func (r *Registry) Strategy(platform string) Extractor {
	if e, ok := r.strategies[platform]; ok {
		return e
	}
	return Generic{}
}

// Extract always returns at least one event.
func (r *Registry) Extract(platform string, payload any) (events []Event) {
	defer func() {
		if recover() != nil {
			events = nil
		}
		if len(events) == 0 {
			events = []Event{{Platform: platform, Type: Unknown, Data: payload}}
		}
	}()

	return r.Strategy(platform).Extract(platform, payload)
}

func asMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func asSlice(v any) ([]any, bool) {
	s, ok := v.([]any)
	return s, ok
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	default:
		return ""
	}
}

// asInt accepts the numeric representations produced by
// JSON decoding, and decimal strings from form decoding.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		if n != float64(int(n)) {
			return 0, false
		}
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	case interface{ Int64() (int64, error) }:
		i, err := n.Int64()
		return int(i), err == nil
	case string:
		i, err := strconv.Atoi(n)
		return i, err == nil
	default:
		return 0, false
	}
}
