package audit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/vmihailenco/msgpack/v5"
)

var ts = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

func TestSanitize(t *testing.T) {
	h := http.Header{}
	h.Set("Authorization", "Bearer xyz")
	h.Set("cookie", "a=b")
	h.Set("Api-Key", "k")
	h.Set("X-Telegram-Bot-Api-Secret-Token", "t")
	h.Add("X-Forwarded-For", "1.1.1.1")
	h.Add("X-Forwarded-For", "2.2.2.2")
	h.Set("X-Hub-Signature-256", "sha256=abc")

	want := map[string]string{
		"Authorization":                   redacted,
		"Cookie":                          redacted,
		"Api-Key":                         redacted,
		"X-Telegram-Bot-Api-Secret-Token": redacted,
		"X-Forwarded-For":                 "1.1.1.1, 2.2.2.2",
		"X-Hub-Signature-256":             "sha256=abc",
	}
	if got := Sanitize(h); !reflect.DeepEqual(got, want) {
		t.Errorf("Sanitize() = %v, want %v", got, want)
	}
}

func TestNewRecord(t *testing.T) {
	body := []byte("hello")
	r := NewRecord("id", "slack", http.Header{}, body, ts.In(time.FixedZone("X", 3600)), "10.0.0.1")

	// sha256("hello")
	want := "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"
	if r.BodySHA256 != want {
		t.Errorf("BodySHA256 = %q, want %q", r.BodySHA256, want)
	}
	if r.BodySize != 5 {
		t.Errorf("BodySize = %d, want 5", r.BodySize)
	}
	if r.Timestamp.Location() != time.UTC {
		t.Errorf("Timestamp = %v, want UTC", r.Timestamp)
	}
}

type fakeSink struct {
	mu      sync.Mutex
	records []Record
	err     error
	block   bool
	panics  bool
}

func (s *fakeSink) Write(ctx context.Context, r Record) error {
	if s.panics {
		panic("sink panic")
	}
	if s.block {
		<-ctx.Done()
		return ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
	return s.err
}

func TestAsync(t *testing.T) {
	s := &fakeSink{}
	a := NewAsync(s, time.Second)

	ctx, cancel := context.WithCancel(t.Context())
	a.Submit(ctx, Record{ID: "1"})
	cancel() // The write must not depend on the request's context.
	a.Wait()

	if len(s.records) != 1 || s.records[0].ID != "1" {
		t.Errorf("records = %v", s.records)
	}
}

func TestAsyncBoundedAndSwallowed(t *testing.T) {
	tests := []struct {
		name string
		sink *fakeSink
	}{
		{
			name: "error",
			sink: &fakeSink{err: errors.New("unavailable")},
		},
		{
			name: "slow",
			sink: &fakeSink{block: true},
		},
		{
			name: "panic",
			sink: &fakeSink{panics: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAsync(tt.sink, 10*time.Millisecond)

			start := time.Now()
			a.Submit(t.Context(), Record{ID: "1"})
			if d := time.Since(start); d > 100*time.Millisecond {
				t.Errorf("Submit() blocked for %v", d)
			}
			a.Wait()
		})
	}
}

func TestAsyncNil(t *testing.T) {
	var a *Async
	a.Submit(t.Context(), Record{})
	a.Wait()
}

func TestMulti(t *testing.T) {
	ok := &fakeSink{}
	bad := &fakeSink{err: errors.New("bad")}

	if err := (Multi{bad, ok}).Write(t.Context(), Record{ID: "1"}); err == nil {
		t.Error("Multi.Write() error = nil")
	}
	if len(ok.records) != 1 {
		t.Errorf("healthy sink records = %v", ok.records)
	}
}

type fakePublisher struct {
	subject string
	data    []byte
}

func (p *fakePublisher) Publish(subject string, data []byte) error {
	p.subject, p.data = subject, data
	return nil
}

func TestNATSSink(t *testing.T) {
	r := NewRecord("id", "discord", http.Header{"Authorization": {"x"}}, []byte("{}"), ts, "10.0.0.1")

	tests := []struct {
		name   string
		enc    Encoding
		decode func([]byte, any) error
	}{
		{
			name:   "json",
			enc:    EncodingJSON,
			decode: json.Unmarshal,
		},
		{
			name:   "msgpack",
			enc:    EncodingMsgpack,
			decode: msgpack.Unmarshal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakePublisher{}
			s := &NATSSink{Conn: p, Subject: "hookgate.audit", Encoding: tt.enc}
			if err := s.Write(t.Context(), r); err != nil {
				t.Fatal(err)
			}
			if p.subject != "hookgate.audit" {
				t.Errorf("subject = %q", p.subject)
			}

			var got Record
			if err := tt.decode(p.data, &got); err != nil {
				t.Fatal(err)
			}
			if got.ID != r.ID || got.BodySHA256 != r.BodySHA256 || got.Headers["Authorization"] != redacted {
				t.Errorf("decoded record = %+v", got)
			}
			if !got.Timestamp.Equal(r.Timestamp) {
				t.Errorf("decoded timestamp = %v, want %v", got.Timestamp, r.Timestamp)
			}
		})
	}
}

func TestNATSSinkErrors(t *testing.T) {
	if err := (&NATSSink{Conn: &fakePublisher{}}).Write(t.Context(), Record{}); err == nil {
		t.Error("Write() without subject: error = nil")
	}
	s := &NATSSink{Conn: &fakePublisher{}, Subject: "s", Encoding: "xml"}
	if err := s.Write(t.Context(), Record{}); err == nil {
		t.Error("Write() with unknown encoding: error = nil")
	}
}

func TestParseEncoding(t *testing.T) {
	if e, err := ParseEncoding("msgpack"); err != nil || e != EncodingMsgpack {
		t.Errorf("ParseEncoding(msgpack) = %q, %v", e, err)
	}
	if _, err := ParseEncoding("yaml"); err == nil {
		t.Error("ParseEncoding(yaml) error = nil")
	}
}

func TestRedisSink(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	s := &RedisSink{Client: client, Stream: "hookgate:audit"}
	r := NewRecord("id", "telegram", http.Header{"X-Telegram-Bot-Api-Secret-Token": {"t"}}, []byte("{}"), ts, "10.0.0.1")
	if err := s.Write(t.Context(), r); err != nil {
		t.Fatal(err)
	}

	msgs, err := client.XRange(t.Context(), "hookgate:audit", "-", "+").Result()
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 {
		t.Fatalf("len(stream) = %d, want 1", len(msgs))
	}

	v := msgs[0].Values
	if v["id"] != "id" || v["platform"] != "telegram" || v["body_size"] != "2" {
		t.Errorf("stream entry = %v", v)
	}
	if v["headers"] != `{"X-Telegram-Bot-Api-Secret-Token":"[REDACTED]"}` {
		t.Errorf("stream entry headers = %v", v["headers"])
	}

	mr.SetError("LOADING")
	if err := s.Write(t.Context(), r); err == nil {
		t.Error("Write() to failing server: error = nil")
	}
}
