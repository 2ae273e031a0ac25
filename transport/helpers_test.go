package transport_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/ggoodman/a2a-server-go/a2a"
	"github.com/ggoodman/a2a-server-go/stream"
	"github.com/ggoodman/a2a-server-go/transport"
)

type fakeRequest struct {
	method string
	path   string
	header http.Header
	query  map[string]string
	body   string
}

func post(path, body string) *fakeRequest {
	return &fakeRequest{method: http.MethodPost, path: path, header: http.Header{}, body: body}
}

func get(path string) *fakeRequest {
	return &fakeRequest{method: http.MethodGet, path: path, header: http.Header{}}
}

func (r *fakeRequest) Method() string            { return r.method }
func (r *fakeRequest) Path() string              { return r.path }
func (r *fakeRequest) Header(name string) string { return r.header.Get(name) }
func (r *fakeRequest) Query(name string) string  { return r.query[name] }

func (r *fakeRequest) DecodeJSON(v any) error {
	if strings.TrimSpace(r.body) == "" {
		return io.EOF
	}
	return json.Unmarshal([]byte(r.body), v)
}

type fakeResponder struct {
	header    http.Header
	status    int
	body      []byte
	streamed  bool
	buf       bytes.Buffer
	consumer  *stream.WriterConsumer
	responses int
}

func newResponder() *fakeResponder {
	r := &fakeResponder{header: http.Header{}}
	r.consumer = stream.NewWriterConsumer(context.Background(), &r.buf, nil)
	return r
}

func (r *fakeResponder) SetHeader(name, value string) { r.header.Set(name, value) }

func (r *fakeResponder) WriteJSON(status int, body []byte) error {
	r.responses++
	r.status = status
	r.body = body
	return nil
}

func (r *fakeResponder) BeginStream() error {
	r.responses++
	r.streamed = true
	r.status = http.StatusOK
	return nil
}

func (r *fakeResponder) Consumer() stream.Consumer { return r.consumer }

type frame struct {
	id    string
	event string
	data  string
}

// frames parses the SSE body written to the responder.
func (r *fakeResponder) frames(t *testing.T) []frame {
	t.Helper()
	var (
		out []frame
		cur frame
	)
	sc := bufio.NewScanner(bytes.NewReader(r.buf.Bytes()))
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			out = append(out, cur)
			cur = frame{}
		case strings.HasPrefix(line, "id: "):
			cur.id = strings.TrimPrefix(line, "id: ")
		case strings.HasPrefix(line, "event: "):
			cur.event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			cur.data = strings.TrimPrefix(line, "data: ")
		default:
			t.Fatalf("unexpected SSE line %q", line)
		}
	}
	return out
}

func mustUnmarshal(t *testing.T, data []byte, v any) {
	t.Helper()
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("unmarshal %s: %v", data, err)
	}
}

// stubHandler answers every method it has no function for with
// UnsupportedOperation.
type stubHandler struct {
	sendMessage  func(context.Context, *a2a.MessageSendParams) (a2a.Event, error)
	sendStream   func(context.Context, *a2a.MessageSendParams) (stream.Source, error)
	getTask      func(context.Context, *a2a.TaskQueryParams) (*a2a.Task, error)
	cancelTask   func(context.Context, *a2a.TaskIDParams) (*a2a.Task, error)
	resubscribe  func(context.Context, *a2a.TaskIDParams) (stream.Source, error)
	setConfig    func(context.Context, *a2a.TaskPushNotificationConfig) (*a2a.TaskPushNotificationConfig, error)
	getConfig    func(context.Context, *a2a.GetTaskPushNotificationConfigParams) (*a2a.TaskPushNotificationConfig, error)
	listConfigs  func(context.Context, *a2a.ListTaskPushNotificationConfigParams) ([]*a2a.TaskPushNotificationConfig, error)
	deleteConfig func(context.Context, *a2a.DeleteTaskPushNotificationConfigParams) error
	card         func(context.Context) (*a2a.AgentCard, error)
}

var _ transport.RequestHandler = (*stubHandler)(nil)

func unsupported(op string) error { return a2a.NewUnsupportedOperationError(op) }

func (s *stubHandler) SendMessage(ctx context.Context, p *a2a.MessageSendParams) (a2a.Event, error) {
	if s.sendMessage == nil {
		return nil, unsupported("message/send")
	}
	return s.sendMessage(ctx, p)
}

func (s *stubHandler) SendMessageStream(ctx context.Context, p *a2a.MessageSendParams) (stream.Source, error) {
	if s.sendStream == nil {
		return nil, unsupported("message/stream")
	}
	return s.sendStream(ctx, p)
}

func (s *stubHandler) GetTask(ctx context.Context, p *a2a.TaskQueryParams) (*a2a.Task, error) {
	if s.getTask == nil {
		return nil, unsupported("tasks/get")
	}
	return s.getTask(ctx, p)
}

func (s *stubHandler) CancelTask(ctx context.Context, p *a2a.TaskIDParams) (*a2a.Task, error) {
	if s.cancelTask == nil {
		return nil, unsupported("tasks/cancel")
	}
	return s.cancelTask(ctx, p)
}

func (s *stubHandler) ResubscribeTask(ctx context.Context, p *a2a.TaskIDParams) (stream.Source, error) {
	if s.resubscribe == nil {
		return nil, unsupported("tasks/resubscribe")
	}
	return s.resubscribe(ctx, p)
}

func (s *stubHandler) SetTaskPushNotificationConfig(ctx context.Context, p *a2a.TaskPushNotificationConfig) (*a2a.TaskPushNotificationConfig, error) {
	if s.setConfig == nil {
		return nil, a2a.NewPushNotificationNotSupportedError()
	}
	return s.setConfig(ctx, p)
}

func (s *stubHandler) GetTaskPushNotificationConfig(ctx context.Context, p *a2a.GetTaskPushNotificationConfigParams) (*a2a.TaskPushNotificationConfig, error) {
	if s.getConfig == nil {
		return nil, a2a.NewPushNotificationNotSupportedError()
	}
	return s.getConfig(ctx, p)
}

func (s *stubHandler) ListTaskPushNotificationConfigs(ctx context.Context, p *a2a.ListTaskPushNotificationConfigParams) ([]*a2a.TaskPushNotificationConfig, error) {
	if s.listConfigs == nil {
		return nil, a2a.NewPushNotificationNotSupportedError()
	}
	return s.listConfigs(ctx, p)
}

func (s *stubHandler) DeleteTaskPushNotificationConfig(ctx context.Context, p *a2a.DeleteTaskPushNotificationConfigParams) error {
	if s.deleteConfig == nil {
		return a2a.NewPushNotificationNotSupportedError()
	}
	return s.deleteConfig(ctx, p)
}

func (s *stubHandler) GetAuthenticatedExtendedCard(ctx context.Context) (*a2a.AgentCard, error) {
	if s.card == nil {
		return nil, a2a.NewExtendedCardNotConfiguredError()
	}
	return s.card(ctx)
}

// failingAfter yields items then fails with err.
func failingAfter(err error, items ...any) stream.Source {
	i := 0
	return stream.SourceFunc(func(context.Context) (any, error) {
		if i < len(items) {
			i++
			return items[i-1], nil
		}
		return nil, err
	})
}

var errBoom = errors.New("boom")

func working(taskID string) *a2a.TaskStatusUpdateEvent {
	return &a2a.TaskStatusUpdateEvent{TaskID: taskID, ContextID: "ctx-1", Status: a2a.TaskStatus{State: a2a.TaskStateWorking}}
}

func completed(taskID string) *a2a.TaskStatusUpdateEvent {
	return &a2a.TaskStatusUpdateEvent{TaskID: taskID, ContextID: "ctx-1", Status: a2a.TaskStatus{State: a2a.TaskStateCompleted}, Final: true}
}
