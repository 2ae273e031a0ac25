package transport_test

import (
	"context"
	"net/http"
	"reflect"
	"testing"

	"github.com/ggoodman/a2a-server-go/a2a"
	"github.com/ggoodman/a2a-server-go/stream"
	"github.com/ggoodman/a2a-server-go/transport"
)

func TestREST_Routes(t *testing.T) {
	d := transport.NewREST(&stubHandler{})
	want := []string{
		"GET /v1/card",
		"POST /v1/message:send",
		"POST /v1/message:stream",
		"GET /v1/tasks/:taskId",
		"POST /v1/tasks/:taskId:cancel",
		"POST /v1/tasks/:taskId:subscribe",
		"POST /v1/tasks/:taskId/pushNotificationConfigs",
		"GET /v1/tasks/:taskId/pushNotificationConfigs",
		"GET /v1/tasks/:taskId/pushNotificationConfigs/:configId",
		"DELETE /v1/tasks/:taskId/pushNotificationConfigs/:configId",
	}
	if got := d.Routes(); !reflect.DeepEqual(want, got) {
		t.Fatalf("routes:\nwant %v\ngot  %v", want, got)
	}
}

func TestREST_Dispatch(t *testing.T) {
	var (
		gotQuery  *a2a.TaskQueryParams
		gotCancel *a2a.TaskIDParams
		gotSet    *a2a.TaskPushNotificationConfig
		gotGet    *a2a.GetTaskPushNotificationConfigParams
		gotDelete *a2a.DeleteTaskPushNotificationConfigParams
	)
	task := &a2a.Task{ID: "abc", ContextID: "ctx-1", Status: a2a.TaskStatus{State: a2a.TaskStateWorking}}
	h := &stubHandler{
		sendMessage: func(_ context.Context, p *a2a.MessageSendParams) (a2a.Event, error) {
			return &a2a.Message{MessageID: "reply", Role: a2a.RoleAgent, Parts: []a2a.Part{a2a.NewTextPart(p.Message.Text())}}, nil
		},
		getTask: func(_ context.Context, p *a2a.TaskQueryParams) (*a2a.Task, error) {
			gotQuery = p
			return task, nil
		},
		cancelTask: func(_ context.Context, p *a2a.TaskIDParams) (*a2a.Task, error) {
			gotCancel = p
			if p.ID == "done" {
				return nil, a2a.NewTaskNotCancelableError(p.ID)
			}
			return task, nil
		},
		setConfig: func(_ context.Context, p *a2a.TaskPushNotificationConfig) (*a2a.TaskPushNotificationConfig, error) {
			gotSet = p
			return p, nil
		},
		getConfig: func(_ context.Context, p *a2a.GetTaskPushNotificationConfigParams) (*a2a.TaskPushNotificationConfig, error) {
			gotGet = p
			return &a2a.TaskPushNotificationConfig{TaskID: p.ID, PushNotificationConfig: a2a.PushNotificationConfig{ID: p.PushNotificationConfigID, URL: "https://hook"}}, nil
		},
		listConfigs: func(_ context.Context, p *a2a.ListTaskPushNotificationConfigParams) ([]*a2a.TaskPushNotificationConfig, error) {
			return []*a2a.TaskPushNotificationConfig{}, nil
		},
		deleteConfig: func(_ context.Context, p *a2a.DeleteTaskPushNotificationConfigParams) error {
			gotDelete = p
			return nil
		},
	}
	d := transport.NewREST(h)

	t.Run("send message answers 201", func(t *testing.T) {
		res := newResponder()
		d.Handle(context.Background(), post("/v1/message:send", `{"message":{"messageId":"m1","role":"user","parts":[{"kind":"text","text":"hi"}]}}`), res)
		if want, got := http.StatusCreated, res.status; want != got {
			t.Fatalf("status: want %d got %d (%s)", want, got, res.body)
		}
		var msg a2a.Message
		mustUnmarshal(t, res.body, &msg)
		if msg.Kind != a2a.KindMessage || msg.Text() != "hi" {
			t.Fatalf("unexpected reply %s", res.body)
		}
	})

	t.Run("malformed body answers 400", func(t *testing.T) {
		res := newResponder()
		d.Handle(context.Background(), post("/v1/message:send", `{"message":`), res)
		if want, got := http.StatusBadRequest, res.status; want != got {
			t.Fatalf("status: want %d got %d", want, got)
		}
		if want, got := `{"code":-32700,"message":"Invalid JSON payload."}`, string(res.body); want != got {
			t.Fatalf("body: want %s got %s", want, got)
		}
	})

	t.Run("trailing data after the body answers 400", func(t *testing.T) {
		for _, path := range []string{"/v1/message:send", "/v1/tasks/abc/pushNotificationConfigs"} {
			res := newResponder()
			d.Handle(context.Background(), post(path, `{"url":"https://hook"} not json`), res)
			if want, got := http.StatusBadRequest, res.status; want != got {
				t.Fatalf("%s status: want %d got %d", path, want, got)
			}
			if want, got := `{"code":-32700,"message":"Invalid JSON payload."}`, string(res.body); want != got {
				t.Fatalf("%s body: want %s got %s", path, want, got)
			}
		}
	})

	t.Run("get task binds path and query", func(t *testing.T) {
		req := get("/v1/tasks/abc")
		req.query = map[string]string{"historyLength": "3"}
		res := newResponder()
		d.Handle(context.Background(), req, res)
		if want, got := http.StatusOK, res.status; want != got {
			t.Fatalf("status: want %d got %d", want, got)
		}
		if gotQuery == nil || gotQuery.ID != "abc" || gotQuery.HistoryLength == nil || *gotQuery.HistoryLength != 3 {
			t.Fatalf("unexpected params %+v", gotQuery)
		}
	})

	t.Run("bad history length answers 400", func(t *testing.T) {
		req := get("/v1/tasks/abc")
		req.query = map[string]string{"historyLength": "many"}
		res := newResponder()
		d.Handle(context.Background(), req, res)
		if want, got := http.StatusBadRequest, res.status; want != got {
			t.Fatalf("status: want %d got %d", want, got)
		}
	})

	t.Run("cancel answers 202", func(t *testing.T) {
		res := newResponder()
		d.Handle(context.Background(), post("/v1/tasks/abc:cancel", ""), res)
		if want, got := http.StatusAccepted, res.status; want != got {
			t.Fatalf("status: want %d got %d", want, got)
		}
		if gotCancel == nil || gotCancel.ID != "abc" {
			t.Fatalf("unexpected params %+v", gotCancel)
		}
	})

	t.Run("not cancelable answers 409", func(t *testing.T) {
		res := newResponder()
		d.Handle(context.Background(), post("/v1/tasks/done:cancel", ""), res)
		if want, got := http.StatusConflict, res.status; want != got {
			t.Fatalf("status: want %d got %d", want, got)
		}
		if want, got := `{"code":-32002,"message":"Task not cancelable: done"}`, string(res.body); want != got {
			t.Fatalf("body: want %s got %s", want, got)
		}
	})

	t.Run("set config answers 201", func(t *testing.T) {
		res := newResponder()
		d.Handle(context.Background(), post("/v1/tasks/abc/pushNotificationConfigs", `{"url":"https://hook","token":"s3cr3t"}`), res)
		if want, got := http.StatusCreated, res.status; want != got {
			t.Fatalf("status: want %d got %d (%s)", want, got, res.body)
		}
		if gotSet == nil || gotSet.TaskID != "abc" || gotSet.PushNotificationConfig.Token != "s3cr3t" {
			t.Fatalf("unexpected params %+v", gotSet)
		}
	})

	t.Run("set config without url answers 400", func(t *testing.T) {
		res := newResponder()
		d.Handle(context.Background(), post("/v1/tasks/abc/pushNotificationConfigs", `{"token":"x"}`), res)
		if want, got := http.StatusBadRequest, res.status; want != got {
			t.Fatalf("status: want %d got %d", want, got)
		}
	})

	t.Run("list configs", func(t *testing.T) {
		res := newResponder()
		d.Handle(context.Background(), get("/v1/tasks/abc/pushNotificationConfigs"), res)
		if want, got := http.StatusOK, res.status; want != got {
			t.Fatalf("status: want %d got %d", want, got)
		}
		if want, got := `[]`, string(res.body); want != got {
			t.Fatalf("body: want %s got %s", want, got)
		}
	})

	t.Run("get config binds both ids", func(t *testing.T) {
		res := newResponder()
		d.Handle(context.Background(), get("/v1/tasks/abc/pushNotificationConfigs/cfg-1"), res)
		if want, got := http.StatusOK, res.status; want != got {
			t.Fatalf("status: want %d got %d", want, got)
		}
		if gotGet == nil || gotGet.ID != "abc" || gotGet.PushNotificationConfigID != "cfg-1" {
			t.Fatalf("unexpected params %+v", gotGet)
		}
	})

	t.Run("delete config answers 204 without body", func(t *testing.T) {
		req := &fakeRequest{method: http.MethodDelete, path: "/v1/tasks/abc/pushNotificationConfigs/cfg-1", header: http.Header{}}
		res := newResponder()
		d.Handle(context.Background(), req, res)
		if want, got := http.StatusNoContent, res.status; want != got {
			t.Fatalf("status: want %d got %d", want, got)
		}
		if len(res.body) != 0 {
			t.Fatalf("unexpected body %s", res.body)
		}
		if gotDelete == nil || gotDelete.PushNotificationConfigID != "cfg-1" {
			t.Fatalf("unexpected params %+v", gotDelete)
		}
	})

	t.Run("unconfigured extended card answers 404", func(t *testing.T) {
		res := newResponder()
		d.Handle(context.Background(), get("/v1/card"), res)
		if want, got := http.StatusNotFound, res.status; want != got {
			t.Fatalf("status: want %d got %d", want, got)
		}
		if want, got := `{"code":-32007,"message":"Extended card not configured."}`, string(res.body); want != got {
			t.Fatalf("body: want %s got %s", want, got)
		}
	})

	t.Run("unknown route answers 404", func(t *testing.T) {
		res := newResponder()
		d.Handle(context.Background(), get("/v1/tasks/abc/extra/deep"), res)
		if want, got := http.StatusNotFound, res.status; want != got {
			t.Fatalf("status: want %d got %d", want, got)
		}
		if want, got := `{"code":-32601,"message":"Method not found: GET /v1/tasks/abc/extra/deep"}`, string(res.body); want != got {
			t.Fatalf("body: want %s got %s", want, got)
		}
	})

	t.Run("wrong method answers 404", func(t *testing.T) {
		res := newResponder()
		d.Handle(context.Background(), get("/v1/message:send"), res)
		if want, got := http.StatusNotFound, res.status; want != got {
			t.Fatalf("status: want %d got %d", want, got)
		}
	})

	t.Run("unsupported push answers 501", func(t *testing.T) {
		d := transport.NewREST(&stubHandler{})
		res := newResponder()
		d.Handle(context.Background(), get("/v1/tasks/abc/pushNotificationConfigs"), res)
		if want, got := http.StatusNotImplemented, res.status; want != got {
			t.Fatalf("status: want %d got %d", want, got)
		}
	})
}

func TestREST_Stream(t *testing.T) {
	t.Run("frames carry bare payloads", func(t *testing.T) {
		d := transport.NewREST(&stubHandler{
			sendStream: func(context.Context, *a2a.MessageSendParams) (stream.Source, error) {
				return stream.FromSlice([]a2a.Event{working("t-1"), completed("t-1")}), nil
			},
		})
		res := newResponder()
		d.Handle(context.Background(), post("/v1/message:stream", `{"message":{"messageId":"m1","role":"user","parts":[]}}`), res)

		if !res.streamed {
			t.Fatalf("expected stream")
		}
		frames := res.frames(t)
		if want, got := 2, len(frames); want != got {
			t.Fatalf("frames: want %d got %d", want, got)
		}
		ev, err := a2a.UnmarshalEvent([]byte(frames[1].data))
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !a2a.IsFinal(ev) {
			t.Fatalf("last frame should be final: %s", frames[1].data)
		}
	})

	t.Run("early error uses mapped status", func(t *testing.T) {
		d := transport.NewREST(&stubHandler{
			resubscribe: func(_ context.Context, p *a2a.TaskIDParams) (stream.Source, error) {
				return failingAfter(a2a.NewTaskNotFoundError(p.ID)), nil
			},
		})
		res := newResponder()
		d.Handle(context.Background(), post("/v1/tasks/t-9:subscribe", ""), res)

		if res.streamed {
			t.Fatalf("stream must not be committed on early error")
		}
		if want, got := http.StatusNotFound, res.status; want != got {
			t.Fatalf("status: want %d got %d", want, got)
		}
		if want, got := `{"code":-32001,"message":"Task not found: t-9"}`, string(res.body); want != got {
			t.Fatalf("body: want %s got %s", want, got)
		}
	})

	t.Run("mid-stream error is a terminal frame", func(t *testing.T) {
		d := transport.NewREST(&stubHandler{
			resubscribe: func(context.Context, *a2a.TaskIDParams) (stream.Source, error) {
				return failingAfter(errBoom, working("t-1"), working("t-1")), nil
			},
		})
		res := newResponder()
		d.Handle(context.Background(), post("/v1/tasks/t-1:subscribe", ""), res)

		frames := res.frames(t)
		if want, got := 3, len(frames); want != got {
			t.Fatalf("frames: want %d got %d", want, got)
		}
		if want, got := stream.ErrorEventName, frames[2].event; want != got {
			t.Fatalf("event: want %q got %q", want, got)
		}
		if want, got := `{"code":-32603,"message":"boom"}`, frames[2].data; want != got {
			t.Fatalf("data: want %s got %s", want, got)
		}
	})
}
