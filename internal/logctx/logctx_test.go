package logctx_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/ggoodman/a2a-server-go/internal/logctx"
)

func TestHandlerAddsContextGroups(t *testing.T) {
	var buf bytes.Buffer
	log := logctx.Wrap(slog.New(slog.NewTextHandler(&buf, nil))).With("component", "test")

	ctx := logctx.WithRequestData(context.Background(), &logctx.RequestData{RequestID: "r-1", Method: "POST", Path: "/"})
	ctx = logctx.WithRPCMessage(ctx, &logctx.RPCMessage{Method: "tasks/get", ID: "7"})
	ctx = logctx.WithTaskData(ctx, &logctx.TaskData{TaskID: "t-1"})

	log.InfoContext(ctx, "jsonrpc.dispatch")

	out := buf.String()
	for _, want := range []string{"component=test", "req.id=r-1", "rpc.method=tasks/get", "rpc.id=7", "task.id=t-1"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}
}

func TestWrapIsIdempotent(t *testing.T) {
	l := logctx.Wrap(slog.Default())
	if want, got := l, logctx.Wrap(l); want != got {
		t.Fatalf("expected wrapped logger to be returned unchanged")
	}
}
