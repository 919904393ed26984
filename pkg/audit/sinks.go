package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// Encoding of records in message-based sinks.
type Encoding string

const (
	EncodingJSON    Encoding = "json"
	EncodingMsgpack Encoding = "msgpack"
)

func (e Encoding) encode(r Record) ([]byte, error) {
	switch e {
	case EncodingJSON, "":
		return json.Marshal(r)
	case EncodingMsgpack:
		return msgpack.Marshal(r)
	default:
		return nil, fmt.Errorf("unsupported audit encoding %q", e)
	}
}

// ParseEncoding validates a user-supplied encoding name.
func ParseEncoding(s string) (Encoding, error) {
	switch e := Encoding(s); e {
	case EncodingJSON, EncodingMsgpack:
		return e, nil
	default:
		return "", fmt.Errorf("unsupported audit encoding %q", s)
	}
}

// LogSink writes records to the logger in the context.
type LogSink struct{}

func (LogSink) Write(ctx context.Context, r Record) error {
	zerolog.Ctx(ctx).Info().
		Str("audit_id", r.ID).
		Str("platform", r.Platform).
		Strs("header_names", headerNames(r.Headers)).
		Str("body_sha256", r.BodySHA256).
		Int("body_size", r.BodySize).
		Time("received_at", r.Timestamp).
		Str("source_ip", r.SourceIP).
		Msg("webhook audit record")
	return nil
}

// Publisher is the subset of [nats.Conn] that [NATSSink] uses.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSSink publishes each record as a message on a NATS subject.
type NATSSink struct {
	Conn     Publisher
	Subject  string
	Encoding Encoding
}

// DialNATS connects to a NATS server, and returns a sink
// and a function to drain and close the connection.
func DialNATS(url, subject string, enc Encoding) (*NATSSink, func(), error) {
	nc, err := nats.Connect(url, nats.Name("hookgate-audit"), nats.Timeout(DefaultTimeout))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS server: %w", err)
	}

	closer := func() {
		_ = nc.Drain()
	}

	return &NATSSink{Conn: nc, Subject: subject, Encoding: enc}, closer, nil
}

func (s *NATSSink) Write(ctx context.Context, r Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.Subject == "" {
		return errors.New("NATS audit subject is not configured")
	}

	data, err := s.Encoding.encode(r)
	if err != nil {
		return err
	}

	if err := s.Conn.Publish(s.Subject, data); err != nil {
		return fmt.Errorf("failed to publish audit record: %w", err)
	}
	return nil
}

// StreamAdder is the subset of [redis.Cmdable] that [RedisSink] uses.
type StreamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// RedisSink appends each record to a Redis stream. MaxLen, if positive,
// approximately caps the stream length.
type RedisSink struct {
	Client StreamAdder
	Stream string
	MaxLen int64
}

func (s *RedisSink) Write(ctx context.Context, r Record) error {
	headers, err := json.Marshal(r.Headers)
	if err != nil {
		return err
	}

	args := &redis.XAddArgs{
		Stream: s.Stream,
		Values: map[string]any{
			"id":          r.ID,
			"platform":    r.Platform,
			"headers":     string(headers),
			"body_sha256": r.BodySHA256,
			"body_size":   strconv.Itoa(r.BodySize),
			"timestamp":   r.Timestamp.Format(time.RFC3339Nano),
			"source_ip":   r.SourceIP,
		},
	}
	if s.MaxLen > 0 {
		args.MaxLen = s.MaxLen
		args.Approx = true
	}

	if err := s.Client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to add audit record to Redis stream: %w", err)
	}
	return nil
}
