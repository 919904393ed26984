package challenge

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/url"
	"testing"

	"github.com/tzrikka/hookgate/pkg/secrets"
)

func TestHubSubscribe(t *testing.T) {
	tests := []struct {
		name      string
		responder HubSubscribe
		query     string
		values    secrets.Values
		want      string
		wantOK    bool
	}{
		{
			name:   "meta_dotted_params",
			query:  "hub.mode=subscribe&hub.verify_token=tok&hub.challenge=1158201444",
			values: secrets.Values{secrets.VerifyToken: "tok"},
			want:   "1158201444",
			wantOK: true,
		},
		{
			name:   "underscored_params",
			query:  "hub_mode=subscribe&hub_verify_token=tok&hub_challenge=abc",
			values: secrets.Values{secrets.VerifyToken: "tok"},
			want:   "abc",
			wantOK: true,
		},
		{
			name:   "bare_params",
			query:  "mode=subscribe&verify_token=tok&challenge=abc",
			values: secrets.Values{secrets.VerifyToken: "tok"},
			want:   "abc",
			wantOK: true,
		},
		{
			name:   "wrong_token",
			query:  "hub.mode=subscribe&hub.verify_token=nope&hub.challenge=abc",
			values: secrets.Values{secrets.VerifyToken: "tok"},
		},
		{
			name:  "token_not_configured",
			query: "hub.mode=subscribe&hub.verify_token=&hub.challenge=abc",
		},
		{
			name:   "wrong_mode",
			query:  "hub.mode=unsubscribe&hub.verify_token=tok&hub.challenge=abc",
			values: secrets.Values{secrets.VerifyToken: "tok"},
		},
		{
			name:      "websub_unsubscribe_without_token",
			responder: HubSubscribe{Modes: []string{"subscribe", "unsubscribe"}, OptionalToken: true},
			query:     "hub.mode=unsubscribe&hub.challenge=abc&hub.topic=x",
			want:      "abc",
			wantOK:    true,
		},
		{
			name:      "optional_token_still_checked_if_configured",
			responder: HubSubscribe{OptionalToken: true},
			query:     "hub.mode=subscribe&hub.challenge=abc",
			values:    secrets.Values{secrets.VerifyToken: "tok"},
		},
		{
			name:   "missing_challenge",
			query:  "hub.mode=subscribe&hub.verify_token=tok",
			values: secrets.Values{secrets.VerifyToken: "tok"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := url.ParseQuery(tt.query)
			if err != nil {
				t.Fatal(err)
			}

			got, ok := tt.responder.Respond(q, tt.values)
			if ok != tt.wantOK {
				t.Fatalf("Respond() ok = %v, want %v", ok, tt.wantOK)
			}
			if got.Body != tt.want {
				t.Errorf("Respond() body = %q, want %q", got.Body, tt.want)
			}
			if ok && got.ContentType != ContentTypeText {
				t.Errorf("Respond() content type = %q", got.ContentType)
			}
		})
	}
}

func TestCRC(t *testing.T) {
	got, ok := CRC{}.Respond(url.Values{"crc_token": {"abc"}}, secrets.Values{secrets.SigningSecret: "s"})
	if !ok {
		t.Fatal("Respond() ok = false")
	}

	mac := hmac.New(sha256.New, []byte("s"))
	mac.Write([]byte("abc"))
	want := "sha256=" + base64.StdEncoding.EncodeToString(mac.Sum(nil))

	var body map[string]string
	if err := json.Unmarshal([]byte(got.Body), &body); err != nil {
		t.Fatal(err)
	}
	if body["response_token"] != want {
		t.Errorf("response_token = %q, want %q", body["response_token"], want)
	}
	if got.ContentType != ContentTypeJSON {
		t.Errorf("content type = %q", got.ContentType)
	}

	if _, ok := (CRC{}).Respond(url.Values{}, secrets.Values{secrets.SigningSecret: "s"}); ok {
		t.Error("Respond() without crc_token: ok = true")
	}
	if _, ok := (CRC{}).Respond(url.Values{"crc_token": {"abc"}}, nil); ok {
		t.Error("Respond() without secret: ok = true")
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(map[string]Responder{"facebook": HubSubscribe{}})
	s := secrets.Static{"facebook": {secrets.VerifyToken: "tok"}}
	q := url.Values{"hub.mode": {"subscribe"}, "hub.verify_token": {"tok"}, "hub.challenge": {"c"}}

	if got, ok := r.Respond(t.Context(), "facebook", q, s); !ok || got.Body != "c" {
		t.Errorf("Respond(facebook) = %+v, %v", got, ok)
	}
	if _, ok := r.Respond(t.Context(), "slack", q, s); ok {
		t.Error("Respond(slack) ok = true, want no challenge step")
	}
}
