// Package secrets supplies per-platform verification material (signing
// secrets, public keys, verify tokens) and feature flags to the webhook
// pipeline. Sources are interchangeable behind the [Store] interface.
package secrets

import (
	"context"
	"errors"
	"strconv"
	"strings"
)

// Well-known keys in a platform's [Values].
const (
	SigningSecret    = "signing_secret"
	PublicKey        = "public_key"
	VerifyToken      = "verify_token"
	SecretToken      = "secret_token"
	RequireSignature = "require_signature"
	AllowUnsigned    = "allow_unsigned"
)

// ErrNotFound is returned by sources that distinguish a missing platform
// from an empty one. [Store] implementations never return it to callers.
var ErrNotFound = errors.New("platform not found")

// Values is the configuration of a single platform.
type Values map[string]string

// Get returns the trimmed value of the given key, or an empty string.
func (v Values) Get(key string) string {
	return strings.TrimSpace(v[key])
}

// Bool interprets the given key as a boolean flag. Missing
// or unparsable values are treated as false.
func (v Values) Bool(key string) bool {
	b, err := strconv.ParseBool(v.Get(key))
	return err == nil && b
}

// Store looks up the configuration of a platform. Unknown platforms
// yield empty [Values] and no error; errors mean the store itself
// is unavailable, and callers must fail closed.
type Store interface {
	Values(ctx context.Context, platform string) (Values, error)
}

// Static is an in-memory [Store], mostly for tests and development.
type Static map[string]Values

func (s Static) Values(_ context.Context, platform string) (Values, error) {
	v, ok := s[platform]
	if !ok {
		return Values{}, nil
	}
	return v, nil
}
