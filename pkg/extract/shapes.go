package extract

import (
	"sort"
)

// EntryChanges handles Meta-style batches: {"object": "page", "entry": [...]},
// where each entry contains "changes" (Graph API subscriptions) and/or
// "messaging" (Messenger) arrays. Each change becomes a "{object}.{field}"
// event, and each messaging item becomes a "{object}.messaging" event.
type EntryChanges struct{}

func (EntryChanges) Extract(platform string, payload any) []Event {
	m, ok := asMap(payload)
	if !ok {
		return nil
	}

	object := asString(m["object"])
	if object == "" {
		object = platform
	}

	entries, _ := asSlice(m["entry"])
	var events []Event
	for _, e := range entries {
		entry, ok := asMap(e)
		if !ok {
			continue
		}

		changes, _ := asSlice(entry["changes"])
		for _, c := range changes {
			change, ok := asMap(c)
			if !ok {
				continue
			}
			field := asString(change["field"])
			if field == "" {
				continue
			}
			events = append(events, Event{
				Platform: platform,
				Type:     object + "." + field,
				Data: map[string]any{
					"entry_id": entry["id"],
					"time":     entry["time"],
					"value":    change["value"],
				},
			})
		}

		msgs, _ := asSlice(entry["messaging"])
		for _, msg := range msgs {
			events = append(events, Event{Platform: platform, Type: object + ".messaging", Data: msg})
		}
	}

	return events
}

// ArrayKind maps a top-level array key to the event type of its elements.
type ArrayKind struct {
	Key  string
	Type string
}

// TypedArrays handles deliveries that batch typed records in top-level
// arrays (e.g. Twitter/X Account Activity: "tweet_create_events": [...]).
// Kinds are scanned in order, so the output order is stable.
type TypedArrays struct {
	Kinds []ArrayKind
}

func (t TypedArrays) Extract(platform string, payload any) []Event {
	m, ok := asMap(payload)
	if !ok {
		return nil
	}

	var events []Event
	for _, k := range t.Kinds {
		items, _ := asSlice(m[k.Key])
		for _, item := range items {
			events = append(events, Event{Platform: platform, Type: k.Type, Data: item})
		}
	}

	return events
}

// Discriminant handles single-object payloads whose type is a string field.
// Paths are tried in order, e.g. [["event", "type"], ["type"]] for Slack's
// Events API, where "event_callback" envelopes wrap the interesting type.
type Discriminant struct {
	Paths [][]string
}

func (d Discriminant) Extract(platform string, payload any) []Event {
	for _, path := range d.Paths {
		if t := lookupString(payload, path); t != "" {
			return []Event{{Platform: platform, Type: t, Data: payload}}
		}
	}
	return nil
}

func lookupString(v any, path []string) string {
	if len(path) == 0 {
		return ""
	}
	for _, key := range path {
		m, ok := asMap(v)
		if !ok {
			return ""
		}
		v = m[key]
	}
	return asString(v)
}

// CodeTable handles single-object payloads with a numeric type code,
// translated through a fixed table (e.g. Discord interaction types).
// Codes that aren't in the table are not recognized.
type CodeTable struct {
	Field string
	Codes map[int]string
}

func (c CodeTable) Extract(platform string, payload any) []Event {
	m, ok := asMap(payload)
	if !ok {
		return nil
	}

	code, ok := asInt(m[c.Field])
	if !ok {
		return nil
	}

	t, ok := c.Codes[code]
	if !ok {
		return nil
	}

	return []Event{{Platform: platform, Type: t, Data: payload}}
}

// KeyPresence handles single-object payloads whose type is implied by
// which optional key is present (e.g. Telegram updates: "message",
// "callback_query", ...). The first key present in the list wins.
type KeyPresence struct {
	Keys []string
}

func (k KeyPresence) Extract(platform string, payload any) []Event {
	m, ok := asMap(payload)
	if !ok {
		return nil
	}

	for _, key := range k.Keys {
		if v, ok := m[key]; ok && v != nil {
			return []Event{{Platform: platform, Type: key, Data: payload}}
		}
	}

	return nil
}

// Types lists the distinct event types of the given events, sorted.
func Types(events []Event) []string {
	seen := map[string]bool{}
	var ts []string
	for _, e := range events {
		if !seen[e.Type] {
			seen[e.Type] = true
			ts = append(ts, e.Type)
		}
	}
	sort.Strings(ts)
	return ts
}
