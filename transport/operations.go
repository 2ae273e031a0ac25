package transport

import (
	"context"

	"github.com/ggoodman/a2a-server-go/a2a"
	"github.com/ggoodman/a2a-server-go/stream"
)

// decodeFunc fills typed params from the transport's representation of the
// request. It returns a protocol error.
type decodeFunc func(v any) error

// operation runs one protocol method against a RequestHandler.
type operation func(ctx context.Context, h RequestHandler, decode decodeFunc) (Result, error)

var operations = map[a2a.Method]operation{
	a2a.MessageSendMethod:                       unary(RequestHandler.SendMessage),
	a2a.MessageStreamMethod:                     streaming(RequestHandler.SendMessageStream),
	a2a.TasksGetMethod:                          unary(RequestHandler.GetTask),
	a2a.TasksCancelMethod:                       unary(RequestHandler.CancelTask),
	a2a.TasksResubscribeMethod:                  streaming(RequestHandler.ResubscribeTask),
	a2a.TasksPushNotificationConfigSetMethod:    unary(RequestHandler.SetTaskPushNotificationConfig),
	a2a.TasksPushNotificationConfigGetMethod:    unary(RequestHandler.GetTaskPushNotificationConfig),
	a2a.TasksPushNotificationConfigListMethod:   unary(RequestHandler.ListTaskPushNotificationConfigs),
	a2a.TasksPushNotificationConfigDeleteMethod: deleteConfig,
	a2a.AgentGetAuthenticatedExtendedCardMethod: extendedCard,
}

func unary[P, R any](call func(RequestHandler, context.Context, *P) (R, error)) operation {
	return func(ctx context.Context, h RequestHandler, decode decodeFunc) (Result, error) {
		p, err := decodeParams[P](decode)
		if err != nil {
			return Result{}, err
		}
		r, err := call(h, ctx, p)
		if err != nil {
			return Result{}, err
		}
		return Single(r), nil
	}
}

func streaming[P any](call func(RequestHandler, context.Context, *P) (stream.Source, error)) operation {
	return func(ctx context.Context, h RequestHandler, decode decodeFunc) (Result, error) {
		p, err := decodeParams[P](decode)
		if err != nil {
			return Result{}, err
		}
		src, err := call(h, ctx, p)
		if err != nil {
			return Result{}, err
		}
		if src == nil {
			return Result{}, a2a.NewInternalError("handler returned no stream")
		}
		return Stream(src), nil
	}
}

func deleteConfig(ctx context.Context, h RequestHandler, decode decodeFunc) (Result, error) {
	p, err := decodeParams[a2a.DeleteTaskPushNotificationConfigParams](decode)
	if err != nil {
		return Result{}, err
	}
	if err := h.DeleteTaskPushNotificationConfig(ctx, p); err != nil {
		return Result{}, err
	}
	return Empty(), nil
}

func extendedCard(ctx context.Context, h RequestHandler, _ decodeFunc) (Result, error) {
	card, err := h.GetAuthenticatedExtendedCard(ctx)
	if err != nil {
		return Result{}, err
	}
	return Single(card), nil
}

func decodeParams[P any](decode decodeFunc) (*P, error) {
	p := new(P)
	if err := decode(p); err != nil {
		return nil, err
	}
	if err := validateParams(p); err != nil {
		return nil, err
	}
	return p, nil
}

// validateParams enforces the identifiers every task-scoped method needs.
func validateParams(p any) error {
	missing := func(field string) error {
		return a2a.NewInvalidParamsError("Invalid parameters: " + field + " is required")
	}
	switch v := p.(type) {
	case *a2a.TaskIDParams:
		if v.ID == "" {
			return missing("id")
		}
	case *a2a.TaskQueryParams:
		if v.ID == "" {
			return missing("id")
		}
		if v.HistoryLength != nil && *v.HistoryLength < 0 {
			return a2a.NewInvalidParamsError("Invalid parameters: historyLength must be non-negative")
		}
	case *a2a.TaskPushNotificationConfig:
		if v.TaskID == "" {
			return missing("taskId")
		}
		if v.PushNotificationConfig.URL == "" {
			return missing("pushNotificationConfig.url")
		}
	case *a2a.GetTaskPushNotificationConfigParams:
		if v.ID == "" {
			return missing("id")
		}
	case *a2a.ListTaskPushNotificationConfigParams:
		if v.ID == "" {
			return missing("id")
		}
	case *a2a.DeleteTaskPushNotificationConfigParams:
		if v.ID == "" {
			return missing("id")
		}
		if v.PushNotificationConfigID == "" {
			return missing("pushNotificationConfigId")
		}
	}
	return nil
}
