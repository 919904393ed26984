package http

import (
	"time"

	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"

	"github.com/tzrikka/hookgate/pkg/audit"
	"github.com/tzrikka/hookgate/pkg/verify"
)

const (
	DefaultWebhookPort    = 14480
	DefaultSecretsSource  = "file"
	DefaultSecretsFile    = "secrets.yaml"
	DefaultSecretsTTL     = time.Minute
	DefaultNATSURL        = "nats://localhost:4222"
	DefaultNATSSubject    = "hookgate.audit"
	DefaultRedisAddr      = "localhost:6379"
	DefaultRedisStream    = "hookgate:audit"
	DefaultRedisStreamLen = 100000
)

// Flags defines CLI flags to configure the HTTP server, its secrets store, and
// its audit sinks. These flags can also be set using environment variables
// and the application's configuration file.
func Flags(configFilePath altsrc.StringSourcer) []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:  "webhook-port",
			Usage: "local port number for HTTP webhooks",
			Value: DefaultWebhookPort,
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("HOOKGATE_WEBHOOK_PORT"),
				toml.TOML("server.webhook_port", configFilePath),
			),
		},
		&cli.BoolFlag{
			Name:  "trust-forwarded-for",
			Usage: "record the client address from \"X-Forwarded-For\" (only behind a trusted reverse proxy)",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("HOOKGATE_TRUST_FORWARDED_FOR"),
				toml.TOML("server.trust_forwarded_for", configFilePath),
			),
		},
		&cli.StringFlag{
			Name:  "secrets-source",
			Usage: "source of per-platform secrets: \"file\", \"thrippy\", or \"etcd\"",
			Value: DefaultSecretsSource,
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("HOOKGATE_SECRETS_SOURCE"),
				toml.TOML("secrets.source", configFilePath),
			),
		},
		&cli.StringFlag{
			Name:  "secrets-file",
			Usage: "YAML file with per-platform secrets (reloaded on changes)",
			Value: DefaultSecretsFile,
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("HOOKGATE_SECRETS_FILE"),
				toml.TOML("secrets.file", configFilePath),
			),
			TakesFile: true,
		},
		&cli.DurationFlag{
			Name:  "secrets-cache-ttl",
			Usage: "how long to cache secrets from remote sources (0 = no caching)",
			Value: DefaultSecretsTTL,
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("HOOKGATE_SECRETS_CACHE_TTL"),
				toml.TOML("secrets.cache_ttl", configFilePath),
			),
		},
		&cli.BoolFlag{
			Name:  "allow-unsigned-fallback",
			Usage: "accept unsigned requests for platforms without a known signature scheme (unsafe)",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("HOOKGATE_ALLOW_UNSIGNED_FALLBACK"),
				toml.TOML("verify.allow_unsigned_fallback", configFilePath),
			),
		},
		&cli.StringFlag{
			Name:  "fallback-signature-header",
			Usage: "signature header for platforms without a known signature scheme",
			Value: verify.GenericSignatureHeader,
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("HOOKGATE_FALLBACK_SIGNATURE_HEADER"),
				toml.TOML("verify.fallback_signature_header", configFilePath),
			),
		},
		&cli.StringSliceFlag{
			Name:  "audit-sinks",
			Usage: "zero or more audit sinks: \"log\", \"nats\", \"redis\"",
			Value: []string{"log"},
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("HOOKGATE_AUDIT_SINKS"),
				toml.TOML("audit.sinks", configFilePath),
			),
		},
		&cli.DurationFlag{
			Name:  "audit-timeout",
			Usage: "timeout of each audit record write",
			Value: audit.DefaultTimeout,
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("HOOKGATE_AUDIT_TIMEOUT"),
				toml.TOML("audit.timeout", configFilePath),
			),
		},
		&cli.StringFlag{
			Name:  "audit-encoding",
			Usage: "encoding of audit records in NATS messages: \"json\" or \"msgpack\"",
			Value: string(audit.EncodingJSON),
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("HOOKGATE_AUDIT_ENCODING"),
				toml.TOML("audit.encoding", configFilePath),
			),
		},
		&cli.StringFlag{
			Name:  "nats-url",
			Usage: "NATS server URL (for the \"nats\" audit sink)",
			Value: DefaultNATSURL,
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("NATS_URL"),
				toml.TOML("audit.nats_url", configFilePath),
			),
		},
		&cli.StringFlag{
			Name:  "nats-subject",
			Usage: "NATS subject of audit records",
			Value: DefaultNATSSubject,
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("HOOKGATE_NATS_SUBJECT"),
				toml.TOML("audit.nats_subject", configFilePath),
			),
		},
		&cli.StringFlag{
			Name:  "redis-addr",
			Usage: "Redis server address (for the \"redis\" audit sink)",
			Value: DefaultRedisAddr,
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("REDIS_ADDR"),
				toml.TOML("audit.redis_addr", configFilePath),
			),
		},
		&cli.StringFlag{
			Name:  "redis-stream",
			Usage: "Redis stream of audit records",
			Value: DefaultRedisStream,
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("HOOKGATE_REDIS_STREAM"),
				toml.TOML("audit.redis_stream", configFilePath),
			),
		},
		&cli.Int64Flag{
			Name:  "redis-stream-max-len",
			Usage: "approximate maximum length of the Redis audit stream (0 = unlimited)",
			Value: DefaultRedisStreamLen,
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("HOOKGATE_REDIS_STREAM_MAX_LEN"),
				toml.TOML("audit.redis_stream_max_len", configFilePath),
			),
		},
	}
}
