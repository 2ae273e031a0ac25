package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ggoodman/a2a-server-go/a2a"
	"github.com/ggoodman/a2a-server-go/internal/logctx"
	"github.com/ggoodman/a2a-server-go/internal/route"
	"github.com/ggoodman/a2a-server-go/stream"
)

// binder fills the typed params of an operation from the path parameters,
// query string and body of a REST request.
type binder func(req Request, params route.Params, v any) error

type restRoute struct {
	method a2a.Method
	bind   binder
}

// REST dispatches the HTTP+JSON binding of A2A under /v1.
//
// Successful calls answer with the status declared by their route, errors
// with the status mapped from their code and a {code, message, data} body.
// Streaming routes answer with bare event payloads.
type REST struct {
	h      RequestHandler
	cfg    *config
	routes *route.Table[restRoute]
}

// NewREST returns a dispatcher over h.
func NewREST(h RequestHandler, opts ...Option) *REST {
	d := &REST{h: h, cfg: newConfig(opts), routes: &route.Table[restRoute]{}}

	add := func(method, pattern string, status int, op a2a.Method, bind binder) {
		if err := d.routes.Add(method, pattern, status, op.IsStreaming(), restRoute{method: op, bind: bind}); err != nil {
			panic(err)
		}
	}
	add(http.MethodGet, "/v1/card", http.StatusOK, a2a.AgentGetAuthenticatedExtendedCardMethod, bindNothing)
	add(http.MethodPost, "/v1/message:send", http.StatusCreated, a2a.MessageSendMethod, bindBody)
	add(http.MethodPost, "/v1/message:stream", http.StatusOK, a2a.MessageStreamMethod, bindBody)
	add(http.MethodGet, "/v1/tasks/:taskId", http.StatusOK, a2a.TasksGetMethod, bindTaskQuery)
	add(http.MethodPost, "/v1/tasks/:taskId:cancel", http.StatusAccepted, a2a.TasksCancelMethod, bindTaskID)
	add(http.MethodPost, "/v1/tasks/:taskId:subscribe", http.StatusOK, a2a.TasksResubscribeMethod, bindTaskID)
	add(http.MethodPost, "/v1/tasks/:taskId/pushNotificationConfigs", http.StatusCreated, a2a.TasksPushNotificationConfigSetMethod, bindSetConfig)
	add(http.MethodGet, "/v1/tasks/:taskId/pushNotificationConfigs", http.StatusOK, a2a.TasksPushNotificationConfigListMethod, bindTaskConfigs)
	add(http.MethodGet, "/v1/tasks/:taskId/pushNotificationConfigs/:configId", http.StatusOK, a2a.TasksPushNotificationConfigGetMethod, bindTaskConfigs)
	add(http.MethodDelete, "/v1/tasks/:taskId/pushNotificationConfigs/:configId", http.StatusNoContent, a2a.TasksPushNotificationConfigDeleteMethod, bindTaskConfigs)
	return d
}

// Handle answers one request.
func (d *REST) Handle(ctx context.Context, req Request, res Responder) {
	start := time.Now()
	log := d.cfg.log

	ctx, cc, err := d.cfg.newCallContext(ctx, req, a2a.TransportHTTPJSON)
	if err != nil {
		status, challenge := authFailure(err)
		log.InfoContext(ctx, "auth.fail", slog.Int("status", status), slog.String("err", err.Error()))
		if challenge != "" {
			res.SetHeader(wwwAuthenticateHeader, challenge)
		}
		pe := a2a.NewInvalidRequestError(http.StatusText(status))
		if status == http.StatusInternalServerError {
			pe = a2a.NewInternalError("")
		}
		d.writeError(ctx, res, status, pe)
		return
	}

	def, params, ok := d.routes.Lookup(req.Method(), req.Path())
	if !ok {
		log.InfoContext(ctx, "rest.route.miss")
		d.writeError(ctx, res, http.StatusNotFound, a2a.NewMethodNotFoundError(req.Method()+" "+req.Path()))
		return
	}
	ctx = logctx.WithRPCMessage(ctx, &logctx.RPCMessage{Method: string(def.Handler.method)})
	if taskID := params["taskId"]; taskID != "" {
		ctx = logctx.WithTaskData(ctx, &logctx.TaskData{TaskID: taskID})
	}
	log.DebugContext(ctx, "rest.dispatch", slog.String("route", def.Pattern.String()), slog.Bool("streaming", def.Streaming))

	result, err := operations[def.Handler.method](ctx, d.h, func(v any) error {
		return def.Handler.bind(req, params, v)
	})
	if err != nil {
		pe := a2a.AsError(err)
		logOperationError(ctx, log, pe, err)
		writeExtensions(res, cc)
		d.writeError(ctx, res, a2a.HTTPStatus(pe.Code), pe)
		return
	}

	switch result.Kind {
	case ResultEmpty:
		writeExtensions(res, cc)
		if err := res.WriteJSON(def.SuccessStatus, nil); err != nil {
			log.ErrorContext(ctx, "rest.write.fail", slog.String("err", err.Error()))
		}
	case ResultSingle:
		b, err := json.Marshal(result.Value)
		if err != nil {
			log.ErrorContext(ctx, "rest.result.encode.fail", slog.String("err", err.Error()))
			d.writeError(ctx, res, http.StatusInternalServerError, a2a.NewInternalError(""))
			return
		}
		writeExtensions(res, cc)
		if err := res.WriteJSON(def.SuccessStatus, b); err != nil {
			log.ErrorContext(ctx, "rest.write.fail", slog.String("err", err.Error()))
		}
	case ResultStream:
		sr := stream.ProcessStream(ctx, result.Source, res.Consumer(), stream.Options{
			IncludeIDs: true,
			IDs:        d.cfg.ids,
			Logger:     log,
			OnStreamStart: func() {
				writeExtensions(res, cc)
				if err := res.BeginStream(); err != nil {
					log.ErrorContext(ctx, "stream.begin.fail", slog.String("err", err.Error()))
				}
			},
		})
		if sr.EarlyError {
			logOperationError(ctx, log, sr.Err, sr.Err)
			writeExtensions(res, cc)
			if err := res.WriteJSON(sr.StatusCode, sr.ErrorBody); err != nil {
				log.ErrorContext(ctx, "rest.write.fail", slog.String("err", err.Error()))
			}
			return
		}
		log.InfoContext(ctx, "rest.stream.end",
			slog.Int("frames", sr.Frames),
			slog.Bool("canceled", sr.Canceled),
			slog.Duration("dur", time.Since(start)),
		)
		return
	}
	log.InfoContext(ctx, "rest.ok", slog.Int("status", def.SuccessStatus), slog.Duration("dur", time.Since(start)))
}

// Routes lists the method and pattern of every REST route in match order.
func (d *REST) Routes() []string {
	defs := d.routes.Routes()
	out := make([]string, 0, len(defs))
	for _, def := range defs {
		out = append(out, def.Method+" "+def.Pattern.String())
	}
	return out
}

func (d *REST) writeError(ctx context.Context, res Responder, status int, pe *a2a.Error) {
	b, err := json.Marshal(a2a.ToJSONRPCError(pe))
	if err != nil {
		d.cfg.log.ErrorContext(ctx, "rest.error.encode.fail", slog.String("err", err.Error()))
		status = http.StatusInternalServerError
		b, _ = json.Marshal(a2a.ToJSONRPCError(a2a.NewInternalError("")))
	}
	if err := res.WriteJSON(status, b); err != nil {
		d.cfg.log.ErrorContext(ctx, "rest.write.fail", slog.String("err", err.Error()))
	}
}

func bindNothing(Request, route.Params, any) error { return nil }

func bindBody(req Request, _ route.Params, v any) error {
	if err := req.DecodeJSON(v); err != nil {
		return a2a.NewParseError("")
	}
	return nil
}

func bindTaskID(_ Request, params route.Params, v any) error {
	p, ok := v.(*a2a.TaskIDParams)
	if !ok {
		return bindMismatch(v)
	}
	p.ID = params["taskId"]
	return nil
}

func bindTaskQuery(req Request, params route.Params, v any) error {
	p, ok := v.(*a2a.TaskQueryParams)
	if !ok {
		return bindMismatch(v)
	}
	p.ID = params["taskId"]
	if raw := req.Query("historyLength"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return a2a.NewInvalidParamsError("Invalid parameters: historyLength must be an integer")
		}
		p.HistoryLength = &n
	}
	return nil
}

// bindSetConfig reads a PushNotificationConfig body and attaches it to the
// task named in the path.
func bindSetConfig(req Request, params route.Params, v any) error {
	p, ok := v.(*a2a.TaskPushNotificationConfig)
	if !ok {
		return bindMismatch(v)
	}
	if err := req.DecodeJSON(&p.PushNotificationConfig); err != nil {
		return a2a.NewParseError("")
	}
	p.TaskID = params["taskId"]
	return nil
}

func bindTaskConfigs(_ Request, params route.Params, v any) error {
	switch p := v.(type) {
	case *a2a.ListTaskPushNotificationConfigParams:
		p.ID = params["taskId"]
	case *a2a.GetTaskPushNotificationConfigParams:
		p.ID = params["taskId"]
		p.PushNotificationConfigID = params["configId"]
	case *a2a.DeleteTaskPushNotificationConfigParams:
		p.ID = params["taskId"]
		p.PushNotificationConfigID = params["configId"]
	default:
		return bindMismatch(v)
	}
	return nil
}

func bindMismatch(v any) error {
	return a2a.NewInternalError(fmt.Sprintf("no REST binding for %T", v))
}
