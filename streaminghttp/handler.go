package streaminghttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/elnormous/contenttype"
	"github.com/ggoodman/a2a-server-go/agentcard"
	"github.com/ggoodman/a2a-server-go/auth"
	"github.com/ggoodman/a2a-server-go/internal/logctx"
	"github.com/ggoodman/a2a-server-go/internal/wellknown"
	"github.com/ggoodman/a2a-server-go/stream"
	"github.com/ggoodman/a2a-server-go/transport"
	"github.com/google/uuid"
)

var (
	_ http.Handler = (*StreamingHTTPHandler)(nil)
)

var (
	jsonMediaType        = contenttype.NewMediaType("application/json")
	eventStreamMediaType = contenttype.NewMediaType("text/event-stream")
)

const (
	// AgentCardPath is where the public agent card is served.
	AgentCardPath = "/.well-known/agent-card.json"
	// legacyAgentCardPath is the discovery path of earlier protocol revisions.
	legacyAgentCardPath = "/.well-known/agent.json"

	defaultMaxBodyBytes = 4 << 20
)

// writeJSONError emits a minimal JSON body for HTTP-layer rejections that
// happen before either dispatcher sees the request.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", jsonMediaType.String())
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"code": status, "message": msg}})
}

// Option configures the StreamingHTTPHandler.
type Option func(*newConfig)

type newConfig struct {
	logger         *slog.Logger
	authenticator  auth.Authenticator
	allowAnonymous bool
	realm          string
	issuers        []string
	scopes         []string
	maxBodyBytes   int64
	ids            *stream.IDGenerator
}

// WithLogger sets the slog logger used by the handler and both dispatchers.
func WithLogger(l *slog.Logger) Option {
	return func(c *newConfig) { c.logger = l }
}

// WithAuthenticator requires a bearer token on every A2A call, checked by a.
// The agent card stays public.
func WithAuthenticator(a auth.Authenticator) Option {
	return func(c *newConfig) { c.authenticator = a }
}

// WithAnonymousAccess lets calls without an Authorization header through as
// auth.Unauthenticated while still validating tokens that are presented.
func WithAnonymousAccess() Option {
	return func(c *newConfig) { c.allowAnonymous = true }
}

// WithRealm sets the realm advertised in WWW-Authenticate challenges.
func WithRealm(realm string) Option {
	return func(c *newConfig) { c.realm = strings.TrimSpace(realm) }
}

// WithAuthorizationServer publishes RFC 9728 protected resource metadata
// naming issuer and the scopes it can grant, and points WWW-Authenticate
// challenges at it. It has no effect without WithAuthenticator.
func WithAuthorizationServer(issuer string, scopes ...string) Option {
	return func(c *newConfig) {
		c.issuers = append(c.issuers, issuer)
		c.scopes = append(c.scopes, scopes...)
	}
}

// WithMaxBodyBytes caps request bodies. The default is 4 MiB.
func WithMaxBodyBytes(n int64) Option {
	return func(c *newConfig) { c.maxBodyBytes = n }
}

// WithIDGenerator sets the source of SSE event ids.
func WithIDGenerator(g *stream.IDGenerator) Option {
	return func(c *newConfig) { c.ids = g }
}

// StreamingHTTPHandler serves the A2A JSON-RPC and HTTP+JSON bindings over
// net/http, with Server-Sent Events for streaming methods.
type StreamingHTTPHandler struct {
	mux      *http.ServeMux
	log      *slog.Logger
	rpc      *transport.JSONRPC
	rest     *transport.REST
	cards    agentcard.Provider
	basePath string
	maxBody  int64
	prm      *wellknown.ProtectedResourceMetadata
}

// lockedWriteFlusher wraps an io.Writer + http.Flusher with a mutex and an optional context.
// It serializes concurrent writes/flushes and avoids writing after ctx is canceled.
type lockedWriteFlusher struct {
	io.Writer
	http.Flusher
	mu  sync.Mutex
	ctx context.Context
}

func (l *lockedWriteFlusher) Write(p []byte) (int, error) {
	if l.ctx != nil && l.ctx.Err() != nil {
		return 0, l.ctx.Err()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	// Re-check after acquiring the lock to minimize races with cancellation
	if l.ctx != nil && l.ctx.Err() != nil {
		return 0, l.ctx.Err()
	}
	return l.Writer.Write(p)
}

func (l *lockedWriteFlusher) Flush() {
	if l.ctx != nil && l.ctx.Err() != nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ctx != nil && l.ctx.Err() != nil {
		return
	}
	l.Flusher.Flush()
}

// New constructs a StreamingHTTPHandler.
//
// Required:
//   - publicEndpoint: externally visible URL of the JSON-RPC endpoint. REST
//     routes are mounted under its path + "/v1".
//   - handler: the business logic answering A2A calls
//
// cards may be nil, in which case no agent card is served.
func New(publicEndpoint string, handler transport.RequestHandler, cards agentcard.Provider, opts ...Option) (*StreamingHTTPHandler, error) {
	if handler == nil {
		return nil, fmt.Errorf("request handler is required")
	}

	endpoint, err := url.Parse(publicEndpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL %q: %w", publicEndpoint, err)
	}
	if endpoint.Scheme != "https" && endpoint.Scheme != "http" {
		return nil, fmt.Errorf("server URL must use HTTP or HTTPS scheme, got %q", endpoint.Scheme)
	}

	cfg := &newConfig{logger: slog.Default(), maxBodyBytes: defaultMaxBodyBytes, ids: &stream.IDGenerator{}}
	for _, opt := range opts {
		opt(cfg)
	}

	log := logctx.Wrap(cfg.logger)

	var prm *wellknown.ProtectedResourceMetadata
	users := transport.Anonymous()
	if cfg.authenticator != nil {
		bopts := []transport.BearerOption{transport.WithRealm(cfg.realm)}
		if cfg.allowAnonymous {
			bopts = append(bopts, transport.AllowAnonymous())
		}
		if len(cfg.issuers) > 0 {
			prm = &wellknown.ProtectedResourceMetadata{
				Resource:               endpoint.String(),
				AuthorizationServers:   cfg.issuers,
				ScopesSupported:        cfg.scopes,
				BearerMethodsSupported: []string{"header"},
			}
			bopts = append(bopts, transport.WithResourceMetadata(wellknown.ProtectedResourceURL(endpoint).String()))
		}
		users = transport.Bearer(cfg.authenticator, bopts...)
	}
	topts := []transport.Option{
		transport.WithLogger(log),
		transport.WithUserResolver(users),
		transport.WithIDGenerator(cfg.ids),
	}

	h := &StreamingHTTPHandler{
		log:      log,
		rpc:      transport.NewJSONRPC(handler, topts...),
		rest:     transport.NewREST(handler, topts...),
		cards:    cards,
		basePath: strings.TrimSuffix(endpoint.Path, "/"),
		maxBody:  cfg.maxBodyBytes,
		prm:      prm,
	}

	mux := http.NewServeMux()
	if h.basePath == "" {
		mux.HandleFunc("POST /{$}", h.handleJSONRPC)
	} else {
		mux.HandleFunc("POST "+h.basePath, h.handleJSONRPC)
	}
	mux.HandleFunc(h.basePath+"/v1/", h.handleREST)
	if cards != nil {
		for _, p := range []string{AgentCardPath, legacyAgentCardPath} {
			mux.HandleFunc("GET "+p, h.handleGetAgentCard)
			mux.HandleFunc("OPTIONS "+p, h.handleOptionsWellKnown)
		}
	}
	if prm != nil {
		p := wellknown.ProtectedResourceURL(endpoint).Path
		mux.HandleFunc("GET "+p, h.handleGetProtectedResourceMetadata)
		mux.HandleFunc("OPTIONS "+p, h.handleOptionsWellKnown)
	}
	h.mux = mux
	return h, nil
}

func (h *StreamingHTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r.WithContext(logctx.WithRequestData(r.Context(), &logctx.RequestData{
		RequestID:  uuid.NewString(),
		Method:     r.Method,
		UserAgent:  r.UserAgent(),
		RemoteAddr: r.RemoteAddr,
		Path:       r.URL.Path,
	})))
}

// handleJSONRPC handles POST to the endpoint, the JSON-RPC binding.
func (h *StreamingHTTPHandler) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	req, res, ok := h.adapt(w, r, "/")
	if !ok {
		return
	}
	h.rpc.Handle(r.Context(), req, res)
	res.finish()
}

// handleREST handles every method under <endpoint>/v1/, the HTTP+JSON binding.
func (h *StreamingHTTPHandler) handleREST(w http.ResponseWriter, r *http.Request) {
	req, res, ok := h.adapt(w, r, strings.TrimPrefix(r.URL.Path, h.basePath))
	if !ok {
		return
	}
	h.rest.Handle(r.Context(), req, res)
	res.finish()
}

func (h *StreamingHTTPHandler) adapt(w http.ResponseWriter, r *http.Request, path string) (*httpRequest, *httpResponder, bool) {
	f, ok := w.(http.Flusher)
	if !ok {
		w.WriteHeader(http.StatusInternalServerError)
		h.log.ErrorContext(r.Context(), "flusher.missing")
		return nil, nil, false
	}
	wf := &lockedWriteFlusher{Writer: w, Flusher: f, ctx: r.Context()}
	req := &httpRequest{r: r, path: path, body: http.MaxBytesReader(w, r.Body, h.maxBody)}
	res := &httpResponder{w: w, wf: wf, consumer: stream.NewWriterConsumer(r.Context(), wf, nil)}
	return req, res, true
}

// handleOptionsWellKnown answers CORS preflight for the discovery documents.
func (h *StreamingHTTPHandler) handleOptionsWellKnown(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Authorization")
	w.Header().Set("Access-Control-Max-Age", "600")
	w.WriteHeader(http.StatusNoContent)
}

// handleGetAgentCard serves the public agent card.
func (h *StreamingHTTPHandler) handleGetAgentCard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Vary", "Origin")

	card, err := h.cards.AgentCard(ctx)
	if err != nil {
		h.log.ErrorContext(ctx, "agentcard.load.fail", slog.String("err", err.Error()))
		writeJSONError(w, http.StatusInternalServerError, "agent card unavailable")
		return
	}
	w.Header().Set("Content-Type", jsonMediaType.String())
	if err := json.NewEncoder(w).Encode(card); err != nil {
		h.log.ErrorContext(ctx, "agentcard.write.fail", slog.String("err", err.Error()))
	}
}

// handleGetProtectedResourceMetadata serves the OAuth2 Protected Resource Metadata document.
func (h *StreamingHTTPHandler) handleGetProtectedResourceMetadata(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Vary", "Origin")
	w.Header().Set("Content-Type", jsonMediaType.String())
	if err := json.NewEncoder(w).Encode(h.prm); err != nil {
		h.log.ErrorContext(r.Context(), "prm.write.fail", slog.String("err", err.Error()))
	}
}

// httpRequest adapts *http.Request to transport.Request.
type httpRequest struct {
	r    *http.Request
	path string
	body io.Reader
}

func (q *httpRequest) Method() string            { return q.r.Method }
func (q *httpRequest) Path() string              { return q.path }
func (q *httpRequest) Header(name string) string { return q.r.Header.Get(name) }
func (q *httpRequest) Query(name string) string  { return q.r.URL.Query().Get(name) }

// DecodeJSON rejects bodies declared as anything but JSON. A missing
// Content-Type is tolerated. The body must hold exactly one JSON value.
func (q *httpRequest) DecodeJSON(v any) error {
	if q.r.Header.Get("Content-Type") != "" {
		ctype, err := contenttype.GetMediaType(q.r)
		if err != nil || !ctype.Matches(jsonMediaType) {
			return errors.New("content-type must be application/json")
		}
	}
	data, err := io.ReadAll(q.body)
	if err != nil {
		return fmt.Errorf("reading body: %w", err)
	}
	return json.Unmarshal(data, v)
}

// httpResponder adapts http.ResponseWriter to transport.Responder.
type httpResponder struct {
	w        http.ResponseWriter
	wf       *lockedWriteFlusher
	consumer *stream.WriterConsumer
	wrote    bool
}

func (s *httpResponder) SetHeader(name, value string) { s.w.Header().Set(name, value) }

func (s *httpResponder) WriteJSON(status int, body []byte) error {
	if s.wrote {
		return errors.New("response already written")
	}
	s.wrote = true
	if len(body) > 0 {
		s.w.Header().Set("Content-Type", jsonMediaType.String())
	}
	s.w.WriteHeader(status)
	if len(body) == 0 {
		return nil
	}
	_, err := s.wf.Write(body)
	return err
}

func (s *httpResponder) BeginStream() error {
	if s.wrote {
		return errors.New("response already written")
	}
	s.wrote = true
	s.w.Header().Set("Content-Type", eventStreamMediaType.String())
	s.w.Header().Set("Cache-Control", "no-cache")
	s.w.Header().Set("Connection", "keep-alive")
	s.w.Header().Set("X-Accel-Buffering", "no")
	s.w.WriteHeader(http.StatusOK)
	s.wf.Flush()
	return nil
}

func (s *httpResponder) Consumer() stream.Consumer { return s.consumer }

// finish ends any stream left open by the dispatcher.
func (s *httpResponder) finish() {
	_ = s.consumer.End()
}
