package verify

import (
	"crypto/hmac"
	"crypto/sha1" //nolint:gosec // Required by legacy platforms, not a choice.
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"hash"
	"strings"

	"github.com/tzrikka/hookgate/pkg/secrets"
)

const (
	HubSignature256Header  = "X-Hub-Signature-256"
	HubSignatureHeader     = "X-Hub-Signature"
	TwitterSignatureHeader = "X-Twitter-Webhooks-Signature"
	GenericSignatureHeader = "X-Signature"

	sha256Prefix = "sha256="
	sha1Prefix   = "sha1="
)

// HubSHA256 implements the body-only scheme of Meta-style platforms:
// "sha256=" + hex(HMAC-SHA256(secret, body)) in a single header.
type HubSHA256 struct {
	Header string
}

func (h HubSHA256) Verify(in Input, v secrets.Values) Outcome {
	sig := in.Headers.Get(headerOrDefault(h.Header, HubSignature256Header))
	if sig == "" {
		return Fail(ReasonMissingSignature)
	}

	secret := v.Get(secrets.SigningSecret)
	if secret == "" {
		return Fail(ReasonNoSecret)
	}

	want := sha256Prefix + hex.EncodeToString(sum(sha256.New, secret, in.Body))
	if !equal(sig, want) {
		return Fail(ReasonMismatch)
	}
	return OK(ReasonVerified)
}

// Base64SHA256 is the same body-only scheme as [HubSHA256], but the
// digest is base64-encoded, as in CRC-style platforms (e.g. Twitter/X).
type Base64SHA256 struct {
	Header string
}

func (b Base64SHA256) Verify(in Input, v secrets.Values) Outcome {
	sig := in.Headers.Get(headerOrDefault(b.Header, TwitterSignatureHeader))
	if sig == "" {
		return Fail(ReasonMissingSignature)
	}

	secret := v.Get(secrets.SigningSecret)
	if secret == "" {
		return Fail(ReasonNoSecret)
	}

	want := sha256Prefix + base64.StdEncoding.EncodeToString(sum(sha256.New, secret, in.Body))
	if !equal(sig, want) {
		return Fail(ReasonMismatch)
	}
	return OK(ReasonVerified)
}

// LegacySHA1 implements the PubSubHubbub scheme: "sha1=" + hex(HMAC-SHA1(secret, body)).
//
// The emitting platforms only sign when a hub secret was supplied at subscription
// time, so AllowUnsigned trusts requests without a signature header. This is an
// intentionally weaker policy, which a platform can opt out of with the
// [secrets.RequireSignature] flag. A signature that is present is always checked.
type LegacySHA1 struct {
	Header        string
	AllowUnsigned bool
}

func (l LegacySHA1) Verify(in Input, v secrets.Values) Outcome {
	sig := in.Headers.Get(headerOrDefault(l.Header, HubSignatureHeader))
	if sig == "" {
		if l.AllowUnsigned && !v.Bool(secrets.RequireSignature) {
			return OK(ReasonUnsigned)
		}
		return Fail(ReasonMissingSignature)
	}

	secret := v.Get(secrets.SigningSecret)
	if secret == "" {
		return Fail(ReasonNoSecret)
	}

	want := sha1Prefix + hex.EncodeToString(sum(sha1.New, secret, in.Body))
	if !equal(sig, want) {
		return Fail(ReasonMismatch)
	}
	return OK(ReasonVerified)
}

// Generic is the fallback for unmapped platforms: hex HMAC-SHA256 over the
// body, in a configurable header, with or without a "sha256=" prefix.
//
// It fails closed when the header is missing, unless AllowUnsigned is set
// (an explicit server switch), or the platform sets the [secrets.AllowUnsigned]
// flag. Both are reviewed exceptions, not defaults.
type Generic struct {
	Header        string
	AllowUnsigned bool
}

func (g Generic) Verify(in Input, v secrets.Values) Outcome {
	sig := in.Headers.Get(headerOrDefault(g.Header, GenericSignatureHeader))
	if sig == "" {
		if g.AllowUnsigned || v.Bool(secrets.AllowUnsigned) {
			return OK(ReasonUnsigned)
		}
		return Fail(ReasonMissingSignature)
	}

	secret := v.Get(secrets.SigningSecret)
	if secret == "" {
		return Fail(ReasonNoSecret)
	}

	if len(sig) > len(sha256Prefix) && strings.EqualFold(sig[:len(sha256Prefix)], sha256Prefix) {
		sig = sig[len(sha256Prefix):]
	}

	want := hex.EncodeToString(sum(sha256.New, secret, in.Body))
	if !equal(strings.ToLower(sig), want) {
		return Fail(ReasonMismatch)
	}
	return OK(ReasonVerified)
}

// sum computes an HMAC over the concatenation of the given parts.
func sum(h func() hash.Hash, secret string, parts ...[]byte) []byte {
	mac := hmac.New(h, []byte(secret))
	for _, p := range parts {
		mac.Write(p)
	}
	return mac.Sum(nil)
}

func headerOrDefault(h, def string) string {
	if h == "" {
		return def
	}
	return h
}
