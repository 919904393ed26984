// Package verify authenticates inbound webhook requests. Each platform family
// signs its requests differently, so there is one [Verifier] strategy per
// scheme, selected by a static [Registry] keyed by platform ID, with a
// [Generic] fallback for platforms that aren't listed.
//
// Verification never returns an error: a rejected request is an ordinary
// [Outcome] with Valid = false and an internal reason for logging.
package verify

import (
	"context"
	"crypto/hmac"
	"net/http"
	"time"

	"github.com/tzrikka/hookgate/pkg/secrets"
)

// The maximum shift/delay that we allow between an inbound request's
// timestamp, and our current timestamp, to defend against replay attacks.
const DefaultMaxSkew = 5 * time.Minute

// Internal rejection reasons. These are logged, but never returned
// to the sender of the request.
const (
	ReasonMissingSignature = "missing signature header"
	ReasonMissingTimestamp = "missing timestamp header"
	ReasonInvalidTimestamp = "invalid timestamp header"
	ReasonStaleTimestamp   = "stale timestamp"
	ReasonMismatch         = "signature mismatch"
	ReasonNoSecret         = "verification secret not configured"
	ReasonInvalidKey       = "invalid public key"
	ReasonInvalidSignature = "malformed signature"
	ReasonStoreUnavailable = "secrets store unavailable"
	ReasonUnsigned         = "unsigned request allowed by policy"
	ReasonVerified         = "verified"
)

// Input is everything a [Verifier] may look at. Body must be the exact
// bytes received over the wire, never a re-serialization of a parsed payload.
type Input struct {
	Platform string
	Headers  http.Header
	Body     []byte
	Now      time.Time
}

// Outcome is the immutable result of verifying a single request.
type Outcome struct {
	Valid  bool
	Reason string
}

func OK(reason string) Outcome {
	return Outcome{Valid: true, Reason: reason}
}

func Fail(reason string) Outcome {
	return Outcome{Valid: false, Reason: reason}
}

// Verifier is a single signature scheme. Implementations are pure
// functions of their input and the platform's configuration values.
type Verifier interface {
	Verify(in Input, v secrets.Values) Outcome
}

// Registry maps platform IDs to [Verifier] strategies.
// It is immutable after construction, and safe for concurrent use.
type Registry struct {
	strategies map[string]Verifier
	fallback   Verifier
}

// NewRegistry copies the given strategies. A nil fallback selects
// a fail-closed [Generic] verifier with the default header.
func NewRegistry(strategies map[string]Verifier, fallback Verifier) *Registry {
	if fallback == nil {
		fallback = Generic{}
	}

	m := make(map[string]Verifier, len(strategies))
	for k, v := range strategies {
		m[k] = v
	}

	return &Registry{strategies: m, fallback: fallback}
}

// Strategy returns the verifier of the given platform,
// or the generic fallback if the platform isn't mapped.
func (r *Registry) Strategy(platform string) Verifier {
	if v, ok := r.strategies[platform]; ok {
		return v
	}
	return r.fallback
}

// Has reports whether the platform has its own strategy,
// as opposed to the generic fallback.
func (r *Registry) Has(platform string) bool {
	_, ok := r.strategies[platform]
	return ok
}

// Verify looks up the platform's configuration in the given store,
// and checks the request with the platform's strategy. Failing to
// reach the store is a rejection, not an error (fail-closed).
func (r *Registry) Verify(ctx context.Context, in Input, s secrets.Store) Outcome {
	if in.Now.IsZero() {
		in.Now = time.Now()
	}

	v, err := s.Values(ctx, in.Platform)
	if err != nil {
		return Fail(ReasonStoreUnavailable)
	}

	return r.Strategy(in.Platform).Verify(in, v)
}

// equal compares two strings in constant time.
func equal(got, want string) bool {
	return hmac.Equal([]byte(got), []byte(want))
}
