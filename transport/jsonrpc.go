package transport

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ggoodman/a2a-server-go/a2a"
	"github.com/ggoodman/a2a-server-go/internal/jsonrpc"
	"github.com/ggoodman/a2a-server-go/internal/logctx"
	"github.com/ggoodman/a2a-server-go/stream"
)

// JSONRPC dispatches A2A JSON-RPC 2.0 requests.
//
// Envelope failures (unparseable body, invalid request object, batches) are
// answered with HTTP 400. Once a request is identified every outcome is HTTP
// 200 and failures travel in the JSON-RPC error member, including a stream
// whose first event could not be produced. Stream frames carry JSON-RPC
// response objects echoing the request id.
type JSONRPC struct {
	h   RequestHandler
	cfg *config
}

// NewJSONRPC returns a dispatcher over h.
func NewJSONRPC(h RequestHandler, opts ...Option) *JSONRPC {
	return &JSONRPC{h: h, cfg: newConfig(opts)}
}

// Handle answers one request.
func (d *JSONRPC) Handle(ctx context.Context, req Request, res Responder) {
	start := time.Now()
	log := d.cfg.log

	ctx, cc, err := d.cfg.newCallContext(ctx, req, a2a.TransportJSONRPC)
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
		d.writeError(ctx, res, status, nil, pe)
		return
	}

	var raw json.RawMessage
	if err := req.DecodeJSON(&raw); err != nil {
		log.WarnContext(ctx, "jsonrpc.parse.fail", slog.String("err", err.Error()))
		d.writeError(ctx, res, http.StatusBadRequest, nil, a2a.NewParseError(""))
		return
	}

	msg, err := jsonrpc.DecodeRequest(raw)
	if err != nil {
		var id *jsonrpc.RequestID
		if msg != nil {
			id = msg.ID
		}
		pe := a2a.NewInvalidRequestError("")
		if errors.Is(err, jsonrpc.ErrBatchUnsupported) {
			pe = a2a.NewInvalidRequestError("Batch requests are not supported")
		}
		log.WarnContext(ctx, "jsonrpc.request.invalid", slog.String("err", err.Error()))
		d.writeError(ctx, res, http.StatusBadRequest, id, pe)
		return
	}

	ctx = logctx.WithRPCMessage(ctx, &logctx.RPCMessage{Method: msg.Method, ID: msg.ID.String()})
	log.DebugContext(ctx, "jsonrpc.dispatch")

	op, ok := operations[a2a.Method(msg.Method)]
	if !ok {
		log.InfoContext(ctx, "jsonrpc.method.unknown")
		writeExtensions(res, cc)
		d.writeError(ctx, res, http.StatusOK, msg.ID, a2a.NewMethodNotFoundError(msg.Method))
		return
	}

	result, err := op(ctx, d.h, func(v any) error {
		if len(msg.Params) == 0 {
			return nil
		}
		if err := json.Unmarshal(msg.Params, v); err != nil {
			return a2a.NewInvalidParamsError("")
		}
		return nil
	})
	if err != nil {
		pe := a2a.AsError(err)
		logOperationError(ctx, log, pe, err)
		writeExtensions(res, cc)
		d.writeError(ctx, res, http.StatusOK, msg.ID, pe)
		return
	}

	if result.Kind != ResultStream {
		resp, err := jsonrpc.NewResultResponse(msg.ID, result.Value)
		if err != nil {
			log.ErrorContext(ctx, "jsonrpc.result.encode.fail", slog.String("err", err.Error()))
			d.writeError(ctx, res, http.StatusOK, msg.ID, a2a.NewInternalError(""))
			return
		}
		writeExtensions(res, cc)
		d.writeResponse(ctx, res, http.StatusOK, resp)
		log.InfoContext(ctx, "jsonrpc.ok", slog.Duration("dur", time.Since(start)))
		return
	}

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
		Wrap: func(payload any) (any, error) {
			return jsonrpc.NewResultResponse(msg.ID, payload)
		},
		ErrorBody: func(pe *a2a.Error) any {
			return &jsonrpc.Response{JSONRPCVersion: jsonrpc.ProtocolVersion, ID: msg.ID, Error: a2a.ToJSONRPCError(pe)}
		},
		Status: func(*a2a.Error) int { return http.StatusOK },
	})
	if sr.EarlyError {
		logOperationError(ctx, log, sr.Err, sr.Err)
		writeExtensions(res, cc)
		if err := res.WriteJSON(sr.StatusCode, sr.ErrorBody); err != nil {
			log.ErrorContext(ctx, "jsonrpc.write.fail", slog.String("err", err.Error()))
		}
		return
	}
	log.InfoContext(ctx, "jsonrpc.stream.end",
		slog.Int("frames", sr.Frames),
		slog.Bool("canceled", sr.Canceled),
		slog.Duration("dur", time.Since(start)),
	)
}

func (d *JSONRPC) writeError(ctx context.Context, res Responder, status int, id *jsonrpc.RequestID, pe *a2a.Error) {
	d.writeResponse(ctx, res, status, &jsonrpc.Response{
		JSONRPCVersion: jsonrpc.ProtocolVersion,
		ID:             id,
		Error:          a2a.ToJSONRPCError(pe),
	})
}

func (d *JSONRPC) writeResponse(ctx context.Context, res Responder, status int, resp *jsonrpc.Response) {
	b, err := json.Marshal(resp)
	if err != nil {
		d.cfg.log.ErrorContext(ctx, "jsonrpc.response.encode.fail", slog.String("err", err.Error()))
		status = http.StatusInternalServerError
		b, _ = json.Marshal(&jsonrpc.Response{
			JSONRPCVersion: jsonrpc.ProtocolVersion,
			ID:             resp.ID,
			Error:          a2a.ToJSONRPCError(a2a.NewInternalError("")),
		})
	}
	if err := res.WriteJSON(status, b); err != nil {
		d.cfg.log.ErrorContext(ctx, "jsonrpc.write.fail", slog.String("err", err.Error()))
	}
}

// logOperationError logs failures of the business collaborator. Internal
// errors carry the underlying cause; protocol errors are expected outcomes.
func logOperationError(ctx context.Context, log *slog.Logger, pe *a2a.Error, cause error) {
	if pe.Code == a2a.CodeInternalError {
		log.ErrorContext(ctx, "operation.fail", slog.String("err", cause.Error()))
		return
	}
	log.InfoContext(ctx, "operation.error", slog.Int("code", pe.Code), slog.String("err", pe.Message))
}
