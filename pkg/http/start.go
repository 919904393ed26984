package http

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/tzrikka/hookgate/pkg/audit"
	"github.com/tzrikka/hookgate/pkg/dispatch"
	"github.com/tzrikka/hookgate/pkg/etcd"
	"github.com/tzrikka/hookgate/pkg/links"
	"github.com/tzrikka/hookgate/pkg/secrets"
	"github.com/tzrikka/hookgate/pkg/thrippy"
	"github.com/tzrikka/hookgate/pkg/webhook"
)

// Start initializes hookgate's HTTP server, backend clients, and logging.
// It runs until the context is canceled, or the HTTP server fails.
func Start(ctx context.Context, cmd *cli.Command) error {
	initLog(cmd.Bool("dev"))
	ctx = log.Logger.WithContext(ctx)

	store, watch, closeStore, err := secretsStore(cmd)
	if err != nil {
		return err
	}
	defer closeStore()

	sink, closeSinks, err := auditSinks(cmd)
	if err != nil {
		return err
	}
	defer closeSinks()

	a := audit.NewAsync(sink, cmd.Duration("audit-timeout"))
	defer a.Wait()

	d := dispatch.New()
	for id := range links.Platforms {
		d.Register(id, dispatch.Wildcard, logEvent)
	}

	v := links.Verifiers(links.Options{
		FallbackHeader:        cmd.String("fallback-signature-header"),
		AllowUnsignedFallback: cmd.Bool("allow-unsigned-fallback"),
	})
	if cmd.Bool("allow-unsigned-fallback") {
		log.Warn().Msg("accepting unsigned requests for unknown platforms")
	}

	p := webhook.New(v, links.Extractors(), d, store, a)
	s := newHTTPServer(cmd.Int("webhook-port"), cmd.Bool("trust-forwarded-for"), p, links.Challenges(), store)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.run(ctx)
	})
	if watch != nil {
		g.Go(func() error {
			return watch(ctx)
		})
	}

	return g.Wait()
}

// initLog initializes the logger for the hookgate server,
// based on whether it's running in development mode or not.
func initLog(devMode bool) {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs

	if !devMode {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Caller().Logger()
		return
	}

	zerolog.SetGlobalLevel(zerolog.TraceLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: "15:04:05.000",
	}).With().Caller().Logger()

	log.Warn().Msg("********** DEV MODE - UNSAFE IN PRODUCTION! **********")
}

// secretsStore initializes the source of per-platform secrets, based on CLI flags.
// It also returns an optional function to watch for changes, and a cleanup function.
func secretsStore(cmd *cli.Command) (secrets.Store, func(context.Context) error, func(), error) {
	noop := func() {}

	var s secrets.Store
	cleanup := noop
	switch src := cmd.String("secrets-source"); src {
	case "file":
		f, err := secrets.NewFile(cmd.String("secrets-file"))
		if err != nil {
			return nil, nil, noop, err
		}
		log.Info().Str("path", cmd.String("secrets-file")).Msg("reading secrets from file")
		return f, f.Watch, noop, nil

	case "thrippy":
		creds, err := thrippy.SecureCreds(cmd)
		if err != nil {
			return nil, nil, noop, err
		}
		s = thrippy.NewStore(cmd.String("thrippy-server-addr"), creds, cmd.StringMap("thrippy-links"))
		log.Info().Str("addr", cmd.String("thrippy-server-addr")).Msg("reading secrets from Thrippy")

	case "etcd":
		c, err := etcd.Dial(cmd.StringSlice("etcd-endpoint-urls"))
		if err != nil {
			return nil, nil, noop, err
		}
		s = etcd.NewStore(c, cmd.String("etcd-secrets-prefix"))
		cleanup = func() {
			_ = c.Close()
		}
		log.Info().Strs("endpoints", cmd.StringSlice("etcd-endpoint-urls")).Msg("reading secrets from etcd")

	default:
		return nil, nil, noop, fmt.Errorf("unsupported secrets source %q", src)
	}

	if ttl := cmd.Duration("secrets-cache-ttl"); ttl > 0 {
		s = secrets.NewCached(s, 0, ttl)
	}

	return s, nil, cleanup, nil
}

// auditSinks initializes the audit sinks, based on CLI flags.
// It also returns a function to close their connections.
func auditSinks(cmd *cli.Command) (audit.Sink, func(), error) {
	var sinks audit.Multi
	var closers []func()
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	for _, name := range cmd.StringSlice("audit-sinks") {
		switch name {
		case "log":
			sinks = append(sinks, audit.LogSink{})

		case "nats":
			enc, err := audit.ParseEncoding(cmd.String("audit-encoding"))
			if err != nil {
				closeAll()
				return nil, nil, err
			}
			s, c, err := audit.DialNATS(cmd.String("nats-url"), cmd.String("nats-subject"), enc)
			if err != nil {
				closeAll()
				return nil, nil, err
			}
			sinks = append(sinks, s)
			closers = append(closers, c)

		case "redis":
			rc := redis.NewClient(&redis.Options{Addr: cmd.String("redis-addr")})
			sinks = append(sinks, &audit.RedisSink{
				Client: rc,
				Stream: cmd.String("redis-stream"),
				MaxLen: cmd.Int64("redis-stream-max-len"),
			})
			closers = append(closers, func() {
				_ = rc.Close()
			})

		default:
			closeAll()
			return nil, nil, errors.New("unsupported audit sink: " + name)
		}
	}

	if len(sinks) == 0 {
		return nil, closeAll, nil
	}
	return sinks, closeAll, nil
}

// logEvent is the default event handler: it only logs the event, so
// that the server is useful as-is, before applications register theirs.
func logEvent(ctx context.Context, eventType string, _ any, platform string) (any, error) {
	zerolog.Ctx(ctx).Debug().Str("event_type", eventType).Str("event_platform", platform).
		Msg("received webhook event")
	return nil, nil
}
