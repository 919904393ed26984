// Package challenge answers one-time handshake requests, which platforms send
// to confirm ownership of a webhook endpoint before (and sometimes during)
// steady-state event delivery. These are separate from signed deliveries.
package challenge

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/url"

	"github.com/tzrikka/hookgate/pkg/secrets"
)

const (
	ContentTypeText = "text/plain"
	ContentTypeJSON = "application/json"
)

// Response is the body that the platform expects to receive.
type Response struct {
	Body        string
	ContentType string
}

// Responder is a single handshake scheme. It returns false when the request
// isn't a valid handshake; the HTTP layer turns that into a failure status.
type Responder interface {
	Respond(query url.Values, v secrets.Values) (Response, bool)
}

// Registry maps platform IDs to [Responder]s. Platforms without
// a handshake step are simply not mapped. It is immutable after
// construction, and safe for concurrent use.
type Registry struct {
	responders map[string]Responder
}

func NewRegistry(responders map[string]Responder) *Registry {
	m := make(map[string]Responder, len(responders))
	for k, r := range responders {
		m[k] = r
	}
	return &Registry{responders: m}
}

// Respond handles a handshake request for the given platform.
// Unmapped platforms and unavailable secrets stores are rejections.
func (r *Registry) Respond(ctx context.Context, platform string, query url.Values, s secrets.Store) (Response, bool) {
	resp, ok := r.responders[platform]
	if !ok {
		return Response{}, false
	}

	v, err := s.Values(ctx, platform)
	if err != nil {
		return Response{}, false
	}

	return resp.Respond(query, v)
}

// HubSubscribe implements the "mode/verify token/challenge" scheme of Meta
// platforms and WebSub (PubSubHubbub) hubs: if the mode is allowed and the
// verify token matches, the challenge is echoed back as plain text.
type HubSubscribe struct {
	// Modes defaults to "subscribe" only.
	Modes []string
	// OptionalToken accepts requests without a verify token, if no
	// token is configured either (WebSub hubs don't require one).
	OptionalToken bool
}

func (h HubSubscribe) Respond(query url.Values, v secrets.Values) (Response, bool) {
	mode := param(query, "mode")
	challenge := param(query, "challenge")
	if mode == "" || challenge == "" {
		return Response{}, false
	}

	if !h.modeAllowed(mode) {
		return Response{}, false
	}

	got, want := param(query, "verify_token"), v.Get(secrets.VerifyToken)
	switch {
	case want == "" && h.OptionalToken && got == "":
		// Nothing to compare.
	case want == "" || !hmac.Equal([]byte(got), []byte(want)):
		return Response{}, false
	}

	return Response{Body: challenge, ContentType: ContentTypeText}, true
}

func (h HubSubscribe) modeAllowed(mode string) bool {
	modes := h.Modes
	if len(modes) == 0 {
		modes = []string{"subscribe"}
	}
	for _, m := range modes {
		if m == mode {
			return true
		}
	}
	return false
}

// param reads "hub.{name}", "hub_{name}", or just "{name}".
func param(query url.Values, name string) string {
	for _, k := range []string{"hub." + name, "hub_" + name, name} {
		if v := query.Get(k); v != "" {
			return v
		}
	}
	return ""
}

// CRC implements Challenge-Response Checks (e.g. Twitter/X): the response
// token is "sha256=" + base64(HMAC-SHA256(secret, crc_token)), in JSON.
type CRC struct{}

type crcResponse struct {
	ResponseToken string `json:"response_token"`
}

func (CRC) Respond(query url.Values, v secrets.Values) (Response, bool) {
	token := query.Get("crc_token")
	if token == "" {
		return Response{}, false
	}

	secret := v.Get(secrets.SigningSecret)
	if secret == "" {
		return Response{}, false
	}

	b, err := json.Marshal(crcResponse{ResponseToken: ResponseToken(secret, token)})
	if err != nil {
		return Response{}, false
	}

	return Response{Body: string(b), ContentType: ContentTypeJSON}, true
}

// ResponseToken computes the CRC response token of the given CRC token.
func ResponseToken(secret, crcToken string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(crcToken))
	return "sha256=" + base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
