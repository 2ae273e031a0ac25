package transport

import (
	"context"
	"log/slog"

	"github.com/ggoodman/a2a-server-go/a2a"
	"github.com/ggoodman/a2a-server-go/internal/logctx"
	"github.com/ggoodman/a2a-server-go/stream"
)

// Request is the narrow view of an inbound request the dispatchers need.
// Hosts adapt their framework's request type to it.
type Request interface {
	Method() string
	Path() string
	// Header returns the first value of the named header, or "".
	Header(name string) string
	// Query returns the first value of the named query parameter, or "".
	Query(name string) string
	// DecodeJSON decodes the request body into v. An empty or malformed body
	// is an error.
	DecodeJSON(v any) error
}

// Responder is how the dispatchers answer. Exactly one of WriteJSON or
// BeginStream is called per request.
type Responder interface {
	SetHeader(name, value string)
	// WriteJSON sends a complete response. body is already serialized.
	WriteJSON(status int, body []byte) error
	// BeginStream commits a 200 event-stream response. Headers set afterwards
	// are ignored.
	BeginStream() error
	// Consumer receives the frames of a committed stream.
	Consumer() stream.Consumer
}

// ResultKind tags a Result.
type ResultKind int

const (
	// ResultSingle is a single JSON value.
	ResultSingle ResultKind = iota
	// ResultStream is a sequence of events.
	ResultStream
	// ResultEmpty carries no body.
	ResultEmpty
)

// Result is what an operation produced.
type Result struct {
	Kind   ResultKind
	Value  any
	Source stream.Source
}

// Single wraps one response value.
func Single(v any) Result { return Result{Kind: ResultSingle, Value: v} }

// Stream wraps an event source.
func Stream(src stream.Source) Result { return Result{Kind: ResultStream, Source: src} }

// Empty is a result without a body.
func Empty() Result { return Result{Kind: ResultEmpty} }

// RequestHandler is the business logic behind both transports. Methods may
// return *a2a.Error to choose the wire error; any other error is reported
// as an internal error. Streaming methods hand back a source that the
// dispatcher drains and closes.
//
// Implementations can reach the request's negotiated extensions and caller
// identity with a2a.CallContextFrom(ctx).
type RequestHandler interface {
	// SendMessage returns a *a2a.Message or *a2a.Task.
	SendMessage(ctx context.Context, params *a2a.MessageSendParams) (a2a.Event, error)
	SendMessageStream(ctx context.Context, params *a2a.MessageSendParams) (stream.Source, error)
	GetTask(ctx context.Context, params *a2a.TaskQueryParams) (*a2a.Task, error)
	CancelTask(ctx context.Context, params *a2a.TaskIDParams) (*a2a.Task, error)
	ResubscribeTask(ctx context.Context, params *a2a.TaskIDParams) (stream.Source, error)
	SetTaskPushNotificationConfig(ctx context.Context, params *a2a.TaskPushNotificationConfig) (*a2a.TaskPushNotificationConfig, error)
	GetTaskPushNotificationConfig(ctx context.Context, params *a2a.GetTaskPushNotificationConfigParams) (*a2a.TaskPushNotificationConfig, error)
	ListTaskPushNotificationConfigs(ctx context.Context, params *a2a.ListTaskPushNotificationConfigParams) ([]*a2a.TaskPushNotificationConfig, error)
	DeleteTaskPushNotificationConfig(ctx context.Context, params *a2a.DeleteTaskPushNotificationConfigParams) error
	GetAuthenticatedExtendedCard(ctx context.Context) (*a2a.AgentCard, error)
}

// Option configures a dispatcher.
type Option func(*config)

type config struct {
	log   *slog.Logger
	users UserResolver
	ids   *stream.IDGenerator
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.log = l }
}

// WithUserResolver sets how callers are identified. By default every caller
// is auth.Unauthenticated.
func WithUserResolver(r UserResolver) Option {
	return func(c *config) { c.users = r }
}

// WithIDGenerator sets the source of stream frame ids.
func WithIDGenerator(g *stream.IDGenerator) Option {
	return func(c *config) { c.ids = g }
}

func newConfig(opts []Option) *config {
	c := &config{log: slog.Default(), users: Anonymous(), ids: &stream.IDGenerator{}}
	for _, opt := range opts {
		opt(c)
	}
	c.log = logctx.Wrap(c.log)
	return c
}

// newCallContext resolves the caller and builds the per-request CallContext.
func (c *config) newCallContext(ctx context.Context, req Request, transport string) (context.Context, *a2a.CallContext, error) {
	user, err := c.users.ResolveUser(ctx, req)
	if err != nil {
		return ctx, nil, err
	}
	cc := a2a.NewCallContext(req.Header(a2a.ExtensionsHeader), user)
	ctx = a2a.WithCallContext(ctx, cc)
	ctx = logctx.WithCallData(ctx, &logctx.CallData{
		Transport:  transport,
		UserID:     user.UserID(),
		Extensions: cc.RequestedExtensions(),
	})
	return ctx, cc, nil
}

// writeExtensions echoes activated extensions, if any, onto the response.
func writeExtensions(res Responder, cc *a2a.CallContext) {
	if v, ok := cc.ActivatedExtensionsHeader(); ok {
		res.SetHeader(a2a.ExtensionsHeader, v)
	}
}
