package links

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/url"
	"reflect"
	"testing"
	"time"

	"github.com/tzrikka/hookgate/pkg/challenge"
	"github.com/tzrikka/hookgate/pkg/extract"
	"github.com/tzrikka/hookgate/pkg/secrets"
	"github.com/tzrikka/hookgate/pkg/verify"
)

func TestPlatforms(t *testing.T) {
	for id, l := range Platforms {
		if l.Verifier == nil {
			t.Errorf("Platforms[%q] has no verifier", id)
		}
		if l.Extractor == nil {
			t.Errorf("Platforms[%q] has no extractor", id)
		}
	}
}

func TestVerifiers(t *testing.T) {
	r := Verifiers(Options{})

	tests := []struct {
		platform string
		want     verify.Verifier
	}{
		{platform: Facebook, want: verify.HubSHA256{}},
		{platform: Threads, want: verify.HubSHA256{}},
		{platform: Twitter, want: verify.Base64SHA256{}},
		{platform: Slack, want: verify.VersionedTimestamp{}},
		{platform: TikTok, want: verify.TimestampConcat{}},
		{platform: Discord, want: verify.Ed25519{}},
		{platform: YouTube, want: verify.LegacySHA1{AllowUnsigned: true}},
		{platform: Telegram, want: verify.StaticToken{}},
		{platform: "github", want: verify.Generic{}},
	}

	for _, tt := range tests {
		t.Run(tt.platform, func(t *testing.T) {
			if got := r.Strategy(tt.platform); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Strategy() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestVerifiersFallbackOptions(t *testing.T) {
	r := Verifiers(Options{FallbackHeader: "X-Hub-Signature-256", AllowUnsignedFallback: true})

	want := verify.Generic{Header: "X-Hub-Signature-256", AllowUnsigned: true}
	if got := r.Strategy("github"); !reflect.DeepEqual(got, want) {
		t.Errorf("Strategy() = %#v, want %#v", got, want)
	}

	o := r.Verify(t.Context(), verify.Input{Platform: "github", Headers: http.Header{}, Now: time.Now()}, secrets.Static{})
	if !o.Valid {
		t.Errorf("Verify() = %v, want valid", o)
	}
}

func TestMetaSignature(t *testing.T) {
	body := []byte(`{"object":"page","entry":[]}`)
	mac := hmac.New(sha256.New, []byte("shh"))
	mac.Write(body)

	h := http.Header{}
	h.Set(verify.HubSignature256Header, "sha256="+hex.EncodeToString(mac.Sum(nil)))

	store := secrets.Static{Instagram: {secrets.SigningSecret: "shh"}}
	in := verify.Input{Platform: Instagram, Headers: h, Body: body, Now: time.Now()}
	if o := Verifiers(Options{}).Verify(t.Context(), in, store); !o.Valid {
		t.Errorf("Verify() = %v, want valid", o)
	}
}

func TestExtractors(t *testing.T) {
	r := Extractors()

	tests := []struct {
		name     string
		platform string
		payload  any
		want     []string
	}{
		{
			name:     "facebook_page_feed",
			platform: Facebook,
			payload: map[string]any{
				"object": "page",
				"entry": []any{
					map[string]any{"id": "1", "changes": []any{map[string]any{"field": "feed", "value": map[string]any{}}}},
				},
			},
			want: []string{"page.feed"},
		},
		{
			name:     "twitter_tweets_and_follows",
			platform: Twitter,
			payload: map[string]any{
				"for_user_id":         "2244994945",
				"follow_events":       []any{map[string]any{}},
				"tweet_create_events": []any{map[string]any{}, map[string]any{}},
			},
			want: []string{"tweet.create", "tweet.create", "follow"},
		},
		{
			name:     "slack_event_callback",
			platform: Slack,
			payload:  map[string]any{"type": "event_callback", "event": map[string]any{"type": "app_mention"}},
			want:     []string{"app_mention"},
		},
		{
			name:     "slack_url_verification",
			platform: Slack,
			payload:  map[string]any{"type": "url_verification", "challenge": "abc"},
			want:     []string{"url_verification"},
		},
		{
			name:     "tiktok",
			platform: TikTok,
			payload:  map[string]any{"event": "video.publish.complete"},
			want:     []string{"video.publish.complete"},
		},
		{
			name:     "discord_ping",
			platform: Discord,
			payload:  map[string]any{"type": 1.0},
			want:     []string{"ping"},
		},
		{
			name:     "discord_unknown_code",
			platform: Discord,
			payload:  map[string]any{"type": 99.0},
			want:     []string{extract.Unknown},
		},
		{
			name:     "telegram_callback_query",
			platform: Telegram,
			payload:  map[string]any{"update_id": 1.0, "callback_query": map[string]any{}},
			want:     []string{"callback_query"},
		},
		{
			name:     "youtube_atom_feed",
			platform: YouTube,
			payload:  map[string]any{"raw": "<feed/>"},
			want:     []string{extract.Unknown},
		},
		{
			name:     "unmapped_platform",
			platform: "github",
			payload:  map[string]any{"action": "opened"},
			want:     []string{extract.Unknown},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, e := range r.Extract(tt.platform, tt.payload) {
				got = append(got, e.Type)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Extract() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestChallenges(t *testing.T) {
	r := Challenges()
	store := secrets.Static{
		Facebook: {secrets.VerifyToken: "tok"},
		Twitter:  {secrets.SigningSecret: "s"},
	}

	tests := []struct {
		name     string
		platform string
		query    url.Values
		want     challenge.Response
		wantOK   bool
	}{
		{
			name:     "facebook_subscribe",
			platform: Facebook,
			query:    url.Values{"hub.mode": {"subscribe"}, "hub.verify_token": {"tok"}, "hub.challenge": {"123"}},
			want:     challenge.Response{Body: "123", ContentType: challenge.ContentTypeText},
			wantOK:   true,
		},
		{
			name:     "facebook_wrong_token",
			platform: Facebook,
			query:    url.Values{"hub.mode": {"subscribe"}, "hub.verify_token": {"nope"}, "hub.challenge": {"123"}},
		},
		{
			name:     "youtube_without_token",
			platform: YouTube,
			query:    url.Values{"hub.mode": {"unsubscribe"}, "hub.challenge": {"xyz"}},
			want:     challenge.Response{Body: "xyz", ContentType: challenge.ContentTypeText},
			wantOK:   true,
		},
		{
			name:     "twitter_crc",
			platform: Twitter,
			query:    url.Values{"crc_token": {"abc"}},
			want: challenge.Response{
				Body:        `{"response_token":"` + challenge.ResponseToken("s", "abc") + `"}`,
				ContentType: challenge.ContentTypeJSON,
			},
			wantOK: true,
		},
		{
			name:     "slack_has_no_get_challenge",
			platform: Slack,
			query:    url.Values{"challenge": {"abc"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := r.Respond(t.Context(), tt.platform, tt.query, store)
			if ok != tt.wantOK {
				t.Fatalf("Respond() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Respond() = %#v, want %#v", got, tt.want)
			}
		})
	}
}
