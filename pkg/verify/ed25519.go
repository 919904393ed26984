package verify

import (
	"crypto/ed25519"
	"encoding/hex"

	"github.com/tzrikka/hookgate/pkg/secrets"
)

const (
	Ed25519SignatureHeader = "X-Signature-Ed25519"
	Ed25519TimestampHeader = "X-Signature-Timestamp"
)

// Ed25519 implements asymmetric verification (e.g. Discord interactions):
// the platform signs "{timestamp}{body}" with its private key, and we check
// it with the hex-encoded public key in the platform's configuration.
type Ed25519 struct {
	SignatureHeader string
	TimestampHeader string
}

func (e Ed25519) Verify(in Input, v secrets.Values) Outcome {
	ts := in.Headers.Get(headerOrDefault(e.TimestampHeader, Ed25519TimestampHeader))
	if ts == "" {
		return Fail(ReasonMissingTimestamp)
	}

	sigHex := in.Headers.Get(headerOrDefault(e.SignatureHeader, Ed25519SignatureHeader))
	if sigHex == "" {
		return Fail(ReasonMissingSignature)
	}

	keyHex := v.Get(secrets.PublicKey)
	if keyHex == "" {
		return Fail(ReasonNoSecret)
	}

	key, err := hex.DecodeString(keyHex)
	if err != nil || len(key) != ed25519.PublicKeySize {
		return Fail(ReasonInvalidKey)
	}

	sig, err := hex.DecodeString(sigHex)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return Fail(ReasonInvalidSignature)
	}

	msg := make([]byte, 0, len(ts)+len(in.Body))
	msg = append(msg, ts...)
	msg = append(msg, in.Body...)

	if !ed25519.Verify(ed25519.PublicKey(key), msg, sig) {
		return Fail(ReasonMismatch)
	}
	return OK(ReasonVerified)
}
