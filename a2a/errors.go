package a2a

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/ggoodman/a2a-server-go/internal/jsonrpc"
)

// Canonical error codes.
const (
	CodeParseError                   = int(jsonrpc.ErrorCodeParseError)
	CodeInvalidRequest               = int(jsonrpc.ErrorCodeInvalidRequest)
	CodeMethodNotFound               = int(jsonrpc.ErrorCodeMethodNotFound)
	CodeInvalidParams                = int(jsonrpc.ErrorCodeInvalidParams)
	CodeInternalError                = int(jsonrpc.ErrorCodeInternalError)
	CodeTaskNotFound                 = int(jsonrpc.ErrorCodeTaskNotFound)
	CodeTaskNotCancelable            = int(jsonrpc.ErrorCodeTaskNotCancelable)
	CodePushNotificationNotSupported = int(jsonrpc.ErrorCodePushNotificationNotSupported)
	CodeUnsupportedOperation         = int(jsonrpc.ErrorCodeUnsupportedOperation)
	CodeExtendedCardNotConfigured    = int(jsonrpc.ErrorCodeExtendedCardNotConfigured)
)

// Error is a protocol error. It is the only error shape that reaches the
// wire; anything else is coerced by AsError.
type Error struct {
	Code    int
	Message string
	Data    map[string]any
	// TaskID is kept for logging and never serialized.
	TaskID string
}

func (e *Error) Error() string {
	return fmt.Sprintf("a2a error %d: %s", e.Code, e.Message)
}

// WithData returns a copy of e carrying data.
func (e *Error) WithData(data map[string]any) *Error {
	cp := *e
	cp.Data = data
	return &cp
}

// NewParseError reports a body that is not valid JSON. An empty message
// uses the standard one.
func NewParseError(message string) *Error {
	if message == "" {
		message = "Invalid JSON payload."
	}
	return &Error{Code: CodeParseError, Message: message}
}

// NewInvalidRequestError reports a malformed request envelope.
func NewInvalidRequestError(message string) *Error {
	if message == "" {
		message = "Request payload validation error"
	}
	return &Error{Code: CodeInvalidRequest, Message: message}
}

// NewMethodNotFoundError reports an unknown method or REST route.
func NewMethodNotFoundError(method string) *Error {
	return &Error{Code: CodeMethodNotFound, Message: "Method not found: " + method}
}

// NewInvalidParamsError reports params that do not fit the method.
func NewInvalidParamsError(message string) *Error {
	if message == "" {
		message = "Invalid parameters"
	}
	return &Error{Code: CodeInvalidParams, Message: message}
}

// NewInternalError reports a server-side failure.
func NewInternalError(message string) *Error {
	if message == "" {
		message = "Internal error"
	}
	return &Error{Code: CodeInternalError, Message: message}
}

// NewTaskNotFoundError reports an unknown or expired task.
func NewTaskNotFoundError(taskID string) *Error {
	return &Error{Code: CodeTaskNotFound, Message: "Task not found: " + taskID, TaskID: taskID}
}

// NewTaskNotCancelableError reports a cancel of a task that already finished.
func NewTaskNotCancelableError(taskID string) *Error {
	return &Error{Code: CodeTaskNotCancelable, Message: "Task not cancelable: " + taskID, TaskID: taskID}
}

// NewPushNotificationNotSupportedError reports that the agent does not
// accept push notification configs.
func NewPushNotificationNotSupportedError() *Error {
	return &Error{Code: CodePushNotificationNotSupported, Message: "Push Notification is not supported"}
}

// NewUnsupportedOperationError reports an operation the agent does not
// implement.
func NewUnsupportedOperationError(operation string) *Error {
	return &Error{Code: CodeUnsupportedOperation, Message: "Unsupported operation: " + operation}
}

// NewExtendedCardNotConfiguredError reports that no extended card is served.
func NewExtendedCardNotConfiguredError() *Error {
	return &Error{Code: CodeExtendedCardNotConfigured, Message: "Extended card not configured."}
}

// AsError returns err as a protocol error. Errors that do not wrap an *Error
// become an InternalError carrying only err's message.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	return NewInternalError(err.Error())
}

// ToJSONRPCError projects err onto the JSON-RPC error object. The task id
// is dropped.
func ToJSONRPCError(err error) *jsonrpc.Error {
	pe := AsError(err)
	out := &jsonrpc.Error{Code: jsonrpc.ErrorCode(pe.Code), Message: pe.Message}
	if len(pe.Data) > 0 {
		out.Data = pe.Data
	}
	return out
}

// HTTPStatus maps an error code to the closest REST status.
func HTTPStatus(code int) int {
	switch code {
	case CodeTaskNotFound, CodeExtendedCardNotConfigured, CodeMethodNotFound:
		return http.StatusNotFound
	case CodeTaskNotCancelable:
		return http.StatusConflict
	case CodePushNotificationNotSupported, CodeUnsupportedOperation:
		return http.StatusNotImplemented
	case CodeParseError, CodeInvalidRequest, CodeInvalidParams:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// StatusOf is HTTPStatus applied to AsError(err).
func StatusOf(err error) int {
	return HTTPStatus(AsError(err).Code)
}
