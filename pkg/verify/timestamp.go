package verify

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/tzrikka/hookgate/pkg/secrets"
)

const (
	SlackSignatureHeader  = "X-Slack-Signature"
	SlackTimestampHeader  = "X-Slack-Request-Timestamp"
	TikTokSignatureHeader = "X-Tiktok-Signature"
	TikTokTimestampHeader = "X-Tiktok-Timestamp"

	// Slack API implementation detail.
	// See https://docs.slack.dev/authentication/verifying-requests-from-slack.
	slackSigVersion = "v0"
)

// VersionedTimestamp implements Slack-style signatures: the signing input
// is "{version}:{timestamp}:{body}", and the header value is "{version}=" +
// hex(HMAC-SHA256). The timestamp must be within MaxSkew of the current time.
type VersionedTimestamp struct {
	SignatureHeader string
	TimestampHeader string
	Version         string
	MaxSkew         time.Duration
}

func (s VersionedTimestamp) Verify(in Input, v secrets.Values) Outcome {
	ts := in.Headers.Get(headerOrDefault(s.TimestampHeader, SlackTimestampHeader))
	if o := checkTimestamp(ts, in.Now, s.MaxSkew); !o.Valid {
		return o
	}

	sig := in.Headers.Get(headerOrDefault(s.SignatureHeader, SlackSignatureHeader))
	if sig == "" {
		return Fail(ReasonMissingSignature)
	}

	secret := v.Get(secrets.SigningSecret)
	if secret == "" {
		return Fail(ReasonNoSecret)
	}

	version := s.Version
	if version == "" {
		version = slackSigVersion
	}

	mac := sum(sha256.New, secret, fmt.Appendf(nil, "%s:%s:", version, ts), in.Body)
	want := fmt.Sprintf("%s=%s", version, hex.EncodeToString(mac))
	if !equal(sig, want) {
		return Fail(ReasonMismatch)
	}
	return OK(ReasonVerified)
}

// TimestampConcat signs "{timestamp}{body}" without a version prefix, with the
// timestamp and the hex-encoded HMAC-SHA256 signature in separate headers.
type TimestampConcat struct {
	SignatureHeader string
	TimestampHeader string
	MaxSkew         time.Duration
}

func (s TimestampConcat) Verify(in Input, v secrets.Values) Outcome {
	ts := in.Headers.Get(headerOrDefault(s.TimestampHeader, TikTokTimestampHeader))
	if o := checkTimestamp(ts, in.Now, s.MaxSkew); !o.Valid {
		return o
	}

	sig := in.Headers.Get(headerOrDefault(s.SignatureHeader, TikTokSignatureHeader))
	if sig == "" {
		return Fail(ReasonMissingSignature)
	}

	secret := v.Get(secrets.SigningSecret)
	if secret == "" {
		return Fail(ReasonNoSecret)
	}

	want := hex.EncodeToString(sum(sha256.New, secret, []byte(ts), in.Body))
	if !equal(sig, want) {
		return Fail(ReasonMismatch)
	}
	return OK(ReasonVerified)
}

// checkTimestamp parses a Unix timestamp in seconds,
// and rejects it if it's outside the replay window.
func checkTimestamp(ts string, now time.Time, maxSkew time.Duration) Outcome {
	if ts == "" {
		return Fail(ReasonMissingTimestamp)
	}

	secs, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return Fail(ReasonInvalidTimestamp)
	}

	if maxSkew <= 0 {
		maxSkew = DefaultMaxSkew
	}

	d := now.Sub(time.Unix(secs, 0))
	if d.Abs() > maxSkew {
		return Fail(ReasonStaleTimestamp)
	}

	return OK(ReasonVerified)
}
