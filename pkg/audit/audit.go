// Package audit records a sanitized summary of every inbound webhook request:
// never the raw body, and never secret material. Writing is best-effort,
// and failures never affect request processing.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"
)

const redacted = "[REDACTED]"

// sensitiveHeaders are never recorded as-is. Keys are in canonical form.
var sensitiveHeaders = map[string]bool{
	"Authorization":                   true,
	"Proxy-Authorization":             true,
	"Cookie":                          true,
	"Set-Cookie":                      true,
	"Api-Key":                         true,
	"X-Api-Key":                       true,
	"X-Telegram-Bot-Api-Secret-Token": true,
}

// Record is the summary of a single inbound request.
type Record struct {
	ID         string            `json:"id" msgpack:"id"`
	Platform   string            `json:"platform" msgpack:"platform"`
	Headers    map[string]string `json:"headers" msgpack:"headers"`
	BodySHA256 string            `json:"body_sha256" msgpack:"body_sha256"`
	BodySize   int               `json:"body_size" msgpack:"body_size"`
	Timestamp  time.Time         `json:"timestamp" msgpack:"timestamp"`
	SourceIP   string            `json:"source_ip" msgpack:"source_ip"`
}

// NewRecord summarizes a request. The body is hashed, not copied.
func NewRecord(id, platform string, h http.Header, body []byte, ts time.Time, sourceIP string) Record {
	sum := sha256.Sum256(body)
	return Record{
		ID:         id,
		Platform:   platform,
		Headers:    Sanitize(h),
		BodySHA256: hex.EncodeToString(sum[:]),
		BodySize:   len(body),
		Timestamp:  ts.UTC(),
		SourceIP:   sourceIP,
	}
}

// Sanitize flattens the given headers, and redacts credentials.
func Sanitize(h http.Header) map[string]string {
	m := make(map[string]string, len(h))
	for k, vs := range h {
		k = http.CanonicalHeaderKey(k)
		if sensitiveHeaders[k] {
			m[k] = redacted
			continue
		}
		m[k] = strings.Join(vs, ", ")
	}
	return m
}

// Sink stores audit records.
type Sink interface {
	Write(ctx context.Context, r Record) error
}

// Multi writes each record to all of its sinks,
// even if some of them fail.
type Multi []Sink

func (m Multi) Write(ctx context.Context, r Record) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// headerNames returns the sorted keys of a sanitized header map.
func headerNames(m map[string]string) []string {
	ks := make([]string, 0, len(m))
	for k := range m {
		ks = append(ks, k)
	}
	sort.Strings(ks)
	return ks
}
