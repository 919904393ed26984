// Package links defines the platforms that hookgate supports out of the box:
// how each one signs its webhooks, shapes its payloads, and performs its
// endpoint-ownership handshake. Adding a platform is a change to [Platforms].
package links

import (
	"github.com/tzrikka/hookgate/pkg/challenge"
	"github.com/tzrikka/hookgate/pkg/extract"
	"github.com/tzrikka/hookgate/pkg/verify"
)

// Platform IDs, as they appear in webhook URL paths.
const (
	Facebook  = "facebook"
	Instagram = "instagram"
	WhatsApp  = "whatsapp"
	Threads   = "threads"
	Twitter   = "twitter"
	Slack     = "slack"
	TikTok    = "tiktok"
	Discord   = "discord"
	YouTube   = "youtube"
	Telegram  = "telegram"
)

// Link bundles the strategies of a single platform.
// A nil Responder means the platform has no handshake step.
type Link struct {
	Verifier  verify.Verifier
	Extractor extract.Extractor
	Responder challenge.Responder
}

var meta = Link{
	Verifier:  verify.HubSHA256{},
	Extractor: extract.EntryChanges{},
	Responder: challenge.HubSubscribe{},
}

// Platforms is a map of all the platform-specific webhooks that hookgate supports.
var Platforms = map[string]Link{
	Facebook:  meta,
	Instagram: meta,
	WhatsApp:  meta,
	Threads:   meta,
	Twitter: {
		Verifier: verify.Base64SHA256{},
		Extractor: extract.TypedArrays{Kinds: []extract.ArrayKind{
			{Key: "tweet_create_events", Type: "tweet.create"},
			{Key: "tweet_delete_events", Type: "tweet.delete"},
			{Key: "favorite_events", Type: "favorite"},
			{Key: "follow_events", Type: "follow"},
			{Key: "unfollow_events", Type: "unfollow"},
			{Key: "block_events", Type: "block"},
			{Key: "unblock_events", Type: "unblock"},
			{Key: "mute_events", Type: "mute"},
			{Key: "unmute_events", Type: "unmute"},
			{Key: "direct_message_events", Type: "direct_message"},
			{Key: "direct_message_indicate_typing_events", Type: "direct_message.typing"},
			{Key: "direct_message_mark_read_events", Type: "direct_message.read"},
		}},
		Responder: challenge.CRC{},
	},
	Slack: {
		Verifier:  verify.VersionedTimestamp{},
		Extractor: extract.Discriminant{Paths: [][]string{{"event", "type"}, {"type"}}},
	},
	TikTok: {
		Verifier:  verify.TimestampConcat{},
		Extractor: extract.Discriminant{Paths: [][]string{{"event"}, {"type"}}},
	},
	Discord: {
		Verifier: verify.Ed25519{},
		Extractor: extract.CodeTable{Field: "type", Codes: map[int]string{
			1: "ping",
			2: "application_command",
			3: "message_component",
			4: "application_command_autocomplete",
			5: "modal_submit",
		}},
	},
	YouTube: {
		Verifier:  verify.LegacySHA1{AllowUnsigned: true},
		Extractor: extract.Generic{},
		Responder: challenge.HubSubscribe{Modes: []string{"subscribe", "unsubscribe"}, OptionalToken: true},
	},
	Telegram: {
		Verifier: verify.StaticToken{},
		Extractor: extract.KeyPresence{Keys: []string{
			"message",
			"edited_message",
			"channel_post",
			"edited_channel_post",
			"inline_query",
			"chosen_inline_result",
			"callback_query",
			"shipping_query",
			"pre_checkout_query",
			"poll",
			"poll_answer",
			"my_chat_member",
			"chat_member",
			"chat_join_request",
		}},
	},
}

// Options configure the verification of platforms that aren't in [Platforms].
type Options struct {
	FallbackHeader        string
	AllowUnsignedFallback bool
}

// Verifiers returns a registry of the signature schemes of all the
// supported platforms, with a [verify.Generic] fallback for the rest.
func Verifiers(opts Options) *verify.Registry {
	m := make(map[string]verify.Verifier, len(Platforms))
	for id, l := range Platforms {
		m[id] = l.Verifier
	}

	return verify.NewRegistry(m, verify.Generic{
		Header:        opts.FallbackHeader,
		AllowUnsigned: opts.AllowUnsignedFallback,
	})
}

// Extractors returns a registry of the payload shapes of all the supported platforms.
func Extractors() *extract.Registry {
	m := make(map[string]extract.Extractor, len(Platforms))
	for id, l := range Platforms {
		m[id] = l.Extractor
	}
	return extract.NewRegistry(m)
}

// Challenges returns a registry of the handshakes of all the supported platforms.
func Challenges() *challenge.Registry {
	m := map[string]challenge.Responder{}
	for id, l := range Platforms {
		if l.Responder != nil {
			m[id] = l.Responder
		}
	}
	return challenge.NewRegistry(m)
}
