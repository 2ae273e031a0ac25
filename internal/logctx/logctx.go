package logctx

import (
	"context"
	"log/slog"
)

// Handler decorates records with request-scoped groups found on the
// context passed to the *Context logging methods.
type Handler struct {
	slog.Handler
}

func (h Handler) Handle(ctx context.Context, r slog.Record) error {
	if rd, ok := ctx.Value(requestDataKey{}).(*RequestData); ok {
		r.AddAttrs(slog.Group("req",
			slog.String("id", rd.RequestID),
			slog.String("method", rd.Method),
			slog.String("user_agent", rd.UserAgent),
			slog.String("remote_addr", rd.RemoteAddr),
			slog.String("path", rd.Path),
		))
	}

	if cd, ok := ctx.Value(callDataKey{}).(*CallData); ok {
		r.AddAttrs(slog.Group("call",
			slog.String("transport", cd.Transport),
			slog.String("user_id", cd.UserID),
			slog.Any("extensions", cd.Extensions),
		))
	}

	if msg, ok := ctx.Value(rpcMsg{}).(*RPCMessage); ok {
		r.AddAttrs(slog.Group("rpc",
			slog.String("method", msg.Method),
			slog.String("id", msg.ID),
		))
	}

	if td, ok := ctx.Value(taskDataKey{}).(*TaskData); ok {
		r.AddAttrs(slog.Group("task",
			slog.String("id", td.TaskID),
		))
	}

	return h.Handler.Handle(ctx, r)
}

func (h Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return Handler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h Handler) WithGroup(name string) slog.Handler {
	return Handler{Handler: h.Handler.WithGroup(name)}
}

// Wrap returns a logger whose handler is decorated by Handler. Loggers that
// are already wrapped are returned unchanged.
func Wrap(l *slog.Logger) *slog.Logger {
	if l == nil {
		l = slog.Default()
	}
	if _, ok := l.Handler().(Handler); ok {
		return l
	}
	return slog.New(Handler{Handler: l.Handler()})
}

type rpcMsg struct{}

type RPCMessage struct {
	Method string
	ID     string
}

func WithRPCMessage(ctx context.Context, msg *RPCMessage) context.Context {
	return context.WithValue(ctx, rpcMsg{}, msg)
}

type requestDataKey struct{}

type RequestData struct {
	RequestID  string
	Method     string
	UserAgent  string
	RemoteAddr string
	Path       string
}

func WithRequestData(ctx context.Context, data *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey{}, data)
}

type callDataKey struct{}

// CallData summarizes the negotiated call for log records.
type CallData struct {
	Transport  string
	UserID     string
	Extensions []string
}

func WithCallData(ctx context.Context, data *CallData) context.Context {
	return context.WithValue(ctx, callDataKey{}, data)
}

type taskDataKey struct{}

type TaskData struct {
	TaskID string
}

func WithTaskData(ctx context.Context, data *TaskData) context.Context {
	return context.WithValue(ctx, taskDataKey{}, data)
}
