package webhook

import (
	"bytes"
	"encoding/json"
	"net/url"
	"strings"
)

// RawKey holds the body of unparseable requests in the fallback payload.
const RawKey = "raw"

const formUnsafe = " \t\r\n\"<>{}"

// ParseBody decodes a verified request body. It tries strict JSON first,
// then form-URL-encoding. Empty bodies become an empty object, and bodies
// that are neither become {"raw": "<body>"}, so extraction always has
// something to work with. It never fails.
func ParseBody(body []byte) any {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return map[string]any{}
	}

	var v any
	if err := json.Unmarshal(trimmed, &v); err == nil {
		return v
	}

	if m, ok := parseForm(string(trimmed)); ok {
		return m
	}

	return map[string]any{RawKey: string(body)}
}

// parseForm decodes a form-URL-encoded body. Because almost any string is
// technically valid form encoding, bodies without a single "key=value" pair,
// or with characters that form encoding always escapes (e.g. XML documents),
// are not accepted. Keys with multiple values are decoded as arrays.
//
// Interactive payloads (e.g. Slack's "payload=<JSON>") are unwrapped.
func parseForm(s string) (map[string]any, bool) {
	if !strings.ContainsRune(s, '=') || strings.ContainsAny(s, formUnsafe) {
		return nil, false
	}

	q, err := url.ParseQuery(s)
	if err != nil || len(q) == 0 {
		return nil, false
	}

	if p := q.Get("payload"); len(q) == 1 && p != "" {
		var inner map[string]any
		if err := json.Unmarshal([]byte(p), &inner); err == nil {
			return inner, true
		}
	}

	m := make(map[string]any, len(q))
	for k, vs := range q {
		if len(vs) == 1 {
			m[k] = vs[0]
			continue
		}
		arr := make([]any, len(vs))
		for i, v := range vs {
			arr[i] = v
		}
		m[k] = arr
	}
	return m, true
}
