package verify

import (
	"github.com/tzrikka/hookgate/pkg/secrets"
)

const TelegramTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// StaticToken compares a shared secret token, sent as-is in a header
// (e.g. Telegram bots), with the platform's configured token. There is
// no hashing in this scheme, but the comparison is still constant-time.
type StaticToken struct {
	Header string
}

func (s StaticToken) Verify(in Input, v secrets.Values) Outcome {
	got := in.Headers.Get(headerOrDefault(s.Header, TelegramTokenHeader))
	if got == "" {
		return Fail(ReasonMissingSignature)
	}

	want := v.Get(secrets.SecretToken)
	if want == "" {
		return Fail(ReasonNoSecret)
	}

	if !equal(got, want) {
		return Fail(ReasonMismatch)
	}
	return OK(ReasonVerified)
}
