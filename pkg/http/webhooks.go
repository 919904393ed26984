package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tzrikka/hookgate/pkg/challenge"
	"github.com/tzrikka/hookgate/pkg/links"
	"github.com/tzrikka/hookgate/pkg/links/slack"
	"github.com/tzrikka/hookgate/pkg/metrics"
	"github.com/tzrikka/hookgate/pkg/secrets"
	"github.com/tzrikka/hookgate/pkg/webhook"
)

const (
	timeout = 3 * time.Second

	// MaxBodySize is the maximum size of webhook request bodies.
	MaxBodySize = 1 << 20
)

var platformPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,31}$`)

type httpServer struct {
	httpPort int

	// Use the "X-Forwarded-For" header instead of the remote address,
	// when the server runs behind a trusted reverse proxy.
	trustForwardedFor bool

	pipeline   *webhook.Pipeline
	challenges *challenge.Registry
	secrets    secrets.Store
}

func newHTTPServer(port int, trustForwardedFor bool, p *webhook.Pipeline, c *challenge.Registry, s secrets.Store) *httpServer {
	return &httpServer{
		httpPort:          port,
		trustForwardedFor: trustForwardedFor,
		pipeline:          p,
		challenges:        c,
		secrets:           s,
	}
}

func (s *httpServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /webhook/{platform}", s.challengeHandler)
	mux.HandleFunc("POST /webhook/{platform}", s.webhookHandler)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

// run starts an HTTP server to expose webhooks. This is blocking, to keep the
// hookgate server running, until the context is canceled or the server fails.
func (s *httpServer) run(ctx context.Context) error {
	lis, err := net.Listen("tcp", net.JoinHostPort("", strconv.Itoa(s.httpPort)))
	if err != nil {
		log.Err(err).Send()
		return err
	}

	log.Info().Msgf("HTTP server listening on port %d", s.httpPort)
	return s.serve(ctx, lis)
}

// serve handles requests until the context is canceled. It returns only after
// in-flight requests are done (or the shutdown timeout expires), so that callers
// can safely release the resources that request handlers use.
func (s *httpServer) serve(ctx context.Context, lis net.Listener) error {
	server := &http.Server{
		Handler:      s.handler(),
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
		BaseContext: func(net.Listener) context.Context {
			return context.WithoutCancel(ctx)
		},
	}

	shutdown := make(chan error, 1)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		shutdown <- server.Shutdown(shutdownCtx)
	}()

	if err := server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Err(err).Send()
		return err
	}

	if err := <-shutdown; err != nil {
		log.Warn().Err(err).Msg("HTTP server shutdown timed out")
	}
	log.Info().Msg("HTTP server stopped")
	return nil
}

// challengeHandler answers endpoint-ownership handshakes.
func (s *httpServer) challengeHandler(w http.ResponseWriter, r *http.Request) {
	l := requestLogger(r)

	platform, ok := getPlatform(w, r, l)
	if !ok {
		// Logging and HTTP status code setting already done in [getPlatform].
		return
	}

	l = l.With().Str("platform", platform).Logger()
	resp, ok := s.challenges.Respond(r.Context(), platform, r.URL.Query(), s.secrets)
	if !ok {
		metrics.Challenges.WithLabelValues(s.pipeline.PlatformLabel(platform), metrics.ResultRejected).Inc()
		l.Warn().Msg("rejected handshake request")
		w.WriteHeader(http.StatusForbidden)
		return
	}

	metrics.Challenges.WithLabelValues(s.pipeline.PlatformLabel(platform), metrics.ResultAccepted).Inc()
	l.Info().Msg("answered handshake request")

	w.Header().Set("Content-Type", resp.ContentType)
	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, resp.Body); err != nil {
		l.Err(err).Msg("failed to write handshake response")
	}
}

// webhookHandler checks and processes incoming asynchronous
// event notifications over HTTP from third-party services.
func (s *httpServer) webhookHandler(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	l := requestLogger(r)

	platform, ok := getPlatform(w, r, l)
	if !ok {
		// Logging and HTTP status code setting already done in [getPlatform].
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			l.Warn().Str("platform", platform).Int64("limit", tooLarge.Limit).Msg("request body too large")
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		l.Warn().Err(err).Str("platform", platform).Msg("failed to read request body")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	res := s.pipeline.Process(l.WithContext(r.Context()), webhook.Request{
		ID:       shortuuid.New(),
		Platform: platform,
		Headers:  r.Header,
		Body:     body,
		SourceIP: sourceIP(r, s.trustForwardedFor),
	})

	if !res.Success {
		writeJSON(w, http.StatusForbidden, res, l)
		return
	}

	if c, ok := slack.URLVerification(res.Events()); ok && platform == links.Slack {
		w.Header().Set("Content-Type", challenge.ContentTypeText)
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, c)
		return
	}

	writeJSON(w, http.StatusOK, res, l)
}

func requestLogger(r *http.Request) zerolog.Logger {
	l := log.With().Str("http_method", r.Method).Str("url_path", r.URL.EscapedPath()).Logger()
	l.Debug().Msg("received HTTP request")
	return l
}

// getPlatform extracts the platform ID from the request's URL path.
// IDs are short lowercase names (e.g. "slack"), since they also
// appear in logs and metric labels.
func getPlatform(w http.ResponseWriter, r *http.Request, l zerolog.Logger) (string, bool) {
	platform := r.PathValue("platform")
	if platform == "" {
		l.Warn().Msg("missing platform ID")
		w.WriteHeader(http.StatusBadRequest)
		return "", false
	}

	if !platformPattern.MatchString(platform) {
		l.Warn().Str("platform", platform).Msg("invalid platform ID")
		w.WriteHeader(http.StatusNotFound)
		return "", false
	}

	return platform, true
}

// sourceIP returns the host of the request's remote address. Behind a trusted
// reverse proxy, it returns the first address in the "X-Forwarded-For" header
// instead, if there is one. Otherwise that header is sender-controlled.
func sourceIP(r *http.Request, trustForwardedFor bool) string {
	if xff := r.Header.Get("X-Forwarded-For"); trustForwardedFor && xff != "" {
		ip, _, _ := strings.Cut(xff, ",")
		if ip = strings.TrimSpace(ip); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any, l zerolog.Logger) {
	b, err := json.Marshal(v)
	if err != nil {
		l.Err(err).Msg("failed to encode JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", challenge.ContentTypeJSON)
	w.WriteHeader(status)
	if _, err := w.Write(b); err != nil {
		l.Err(err).Msg("failed to write JSON response")
	}
}
