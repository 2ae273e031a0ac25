package stream_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"iter"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ggoodman/a2a-server-go/a2a"
	"github.com/ggoodman/a2a-server-go/stream"
)

// recorder is a Consumer that records every call.
type recorder struct {
	mu       sync.Mutex
	frames   []stream.Event
	ends     int
	writable bool
	// stopAfter flips writable to false after that many writes (0 = never).
	stopAfter int
	log       *[]string
}

func newRecorder() *recorder { return &recorder{writable: true, log: &[]string{}} }

func (r *recorder) Write(_ context.Context, ev stream.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.writable {
		return stream.ErrNotWritable
	}
	r.frames = append(r.frames, ev)
	*r.log = append(*r.log, "write")
	if r.stopAfter > 0 && len(r.frames) >= r.stopAfter {
		r.writable = false
	}
	return nil
}

func (r *recorder) End() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ends++
	r.writable = false
	return nil
}

func (r *recorder) IsWritable() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writable
}

// countingSource yields items then optionally fails, counting pulls.
type countingSource struct {
	items  []any
	failAt int // 1-based pull index that fails; 0 = never
	err    error
	pulls  int
	closed bool
}

func (s *countingSource) Next(context.Context) (any, error) {
	s.pulls++
	if s.failAt == s.pulls {
		return nil, s.err
	}
	if len(s.items) == 0 {
		return nil, io.EOF
	}
	item := s.items[0]
	s.items = s.items[1:]
	return item, nil
}

func (s *countingSource) Close() error {
	s.closed = true
	return nil
}

func TestEventFormat(t *testing.T) {
	t.Run("all fields", func(t *testing.T) {
		ev := stream.Event{ID: "42", Event: "error", Data: `{"a":1}`}
		if want, got := "id: 42\nevent: error\ndata: {\"a\":1}\n\n", string(ev.Format()); want != got {
			t.Fatalf("want %q got %q", want, got)
		}
	})

	t.Run("data only", func(t *testing.T) {
		ev := stream.Event{Data: `{}`}
		if want, got := "data: {}\n\n", string(ev.Format()); want != got {
			t.Fatalf("want %q got %q", want, got)
		}
	})

	t.Run("data round trips", func(t *testing.T) {
		values := []any{
			map[string]any{"kind": "task", "id": "t-1", "nested": map[string]any{"n": 1.5, "list": []any{"a", nil, true}}},
			"line one\nline two",
			[]any{},
			nil,
		}
		for _, v := range values {
			ev, err := stream.NewEvent(v)
			if err != nil {
				t.Fatalf("new event: %v", err)
			}
			data := parseData(t, ev.Format())
			var got any
			if err := json.Unmarshal([]byte(data), &got); err != nil {
				t.Fatalf("unmarshal %q: %v", data, err)
			}
			if !reflect.DeepEqual(v, got) {
				t.Fatalf("round trip: want %#v got %#v", v, got)
			}
		}
	})
}

func parseData(t *testing.T, frame []byte) string {
	t.Helper()
	var lines []string
	for _, line := range strings.Split(strings.TrimSuffix(string(frame), "\n\n"), "\n") {
		if rest, ok := strings.CutPrefix(line, "data: "); ok {
			lines = append(lines, rest)
		}
	}
	return strings.Join(lines, "\n")
}

func TestIDGeneratorMonotonic(t *testing.T) {
	fixed := time.UnixMilli(1_000)
	g := &stream.IDGenerator{Now: func() time.Time { return fixed }}

	if want, got := "1000", g.Next(); want != got {
		t.Fatalf("want %s got %s", want, got)
	}
	if want, got := "1001", g.Next(); want != got {
		t.Fatalf("want %s got %s", want, got)
	}

	fixed = time.UnixMilli(5_000)
	if want, got := "5000", g.Next(); want != got {
		t.Fatalf("want %s got %s", want, got)
	}

	fixed = time.UnixMilli(10)
	if want, got := "5001", g.Next(); want != got {
		t.Fatalf("clock going backwards must not reuse ids: want %s got %s", want, got)
	}
}

func TestProcessStream(t *testing.T) {
	ctx := context.Background()

	t.Run("writes every item in order", func(t *testing.T) {
		src := &countingSource{items: []any{map[string]any{"n": 1.0}, map[string]any{"n": 2.0}, map[string]any{"n": 3.0}}}
		rec := newRecorder()
		starts := 0

		res := stream.ProcessStream(ctx, src, rec, stream.Options{
			OnStreamStart: func() {
				if len(rec.frames) != 0 {
					t.Errorf("stream start fired after a write")
				}
				starts++
			},
		})

		if res.EarlyError || res.Err != nil || res.Canceled {
			t.Fatalf("unexpected result: %+v", res)
		}
		if want, got := 1, starts; want != got {
			t.Fatalf("starts: want %d got %d", want, got)
		}
		if want, got := 3, res.Frames; want != got {
			t.Fatalf("frames: want %d got %d", want, got)
		}
		for i, f := range rec.frames {
			if want, got := `{"n":`+string(rune('1'+i))+`}`, f.Data; want != got {
				t.Fatalf("frame %d: want %s got %s", i, want, got)
			}
			if f.ID != "" || f.Event != "" {
				t.Fatalf("frame %d: unexpected id/event %+v", i, f)
			}
		}
		if want, got := 1, rec.ends; want != got {
			t.Fatalf("ends: want %d got %d", want, got)
		}
		if !src.closed {
			t.Fatalf("source was not closed")
		}
	})

	t.Run("early error writes nothing", func(t *testing.T) {
		src := &countingSource{failAt: 1, err: a2a.NewTaskNotFoundError("t-9")}
		rec := newRecorder()
		started := false

		res := stream.ProcessStream(ctx, src, rec, stream.Options{OnStreamStart: func() { started = true }})

		if !res.EarlyError {
			t.Fatalf("expected early error, got %+v", res)
		}
		if want, got := http.StatusNotFound, res.StatusCode; want != got {
			t.Fatalf("status: want %d got %d", want, got)
		}
		if want, got := `{"code":-32001,"message":"Task not found: t-9"}`, string(res.ErrorBody); want != got {
			t.Fatalf("body: want %s got %s", want, got)
		}
		if len(rec.frames) != 0 || started {
			t.Fatalf("nothing may be written on early error: frames=%d started=%v", len(rec.frames), started)
		}
		if !src.closed {
			t.Fatalf("source was not closed")
		}
	})

	t.Run("early plain error is coerced to internal error", func(t *testing.T) {
		src := &countingSource{failAt: 1, err: errors.New("database exploded")}
		res := stream.ProcessStream(ctx, src, newRecorder(), stream.Options{})

		if want, got := http.StatusInternalServerError, res.StatusCode; want != got {
			t.Fatalf("status: want %d got %d", want, got)
		}
		if want, got := `{"code":-32603,"message":"database exploded"}`, string(res.ErrorBody); want != got {
			t.Fatalf("body: want %s got %s", want, got)
		}
	})

	t.Run("mid-stream error emits one error frame", func(t *testing.T) {
		src := &countingSource{items: []any{"a", "b", "c"}, failAt: 3, err: a2a.NewUnsupportedOperationError("x")}
		rec := newRecorder()

		res := stream.ProcessStream(ctx, src, rec, stream.Options{IncludeIDs: true, IDs: &stream.IDGenerator{}})

		if res.EarlyError {
			t.Fatalf("unexpected early error")
		}
		if want, got := 2, res.Frames; want != got {
			t.Fatalf("frames: want %d got %d", want, got)
		}
		if want, got := 3, len(rec.frames); want != got {
			t.Fatalf("written: want %d got %d", want, got)
		}
		last := rec.frames[2]
		if want, got := stream.ErrorEventName, last.Event; want != got {
			t.Fatalf("event: want %q got %q", want, got)
		}
		if want, got := `{"code":-32004,"message":"Unsupported operation: x"}`, last.Data; want != got {
			t.Fatalf("data: want %s got %s", want, got)
		}
		for i, f := range rec.frames {
			if f.ID == "" {
				t.Fatalf("frame %d: missing id", i)
			}
			if i > 0 && f.ID <= rec.frames[i-1].ID {
				t.Fatalf("frame ids not increasing: %q then %q", rec.frames[i-1].ID, f.ID)
			}
		}
		if want, got := 1, rec.ends; want != got {
			t.Fatalf("ends: want %d got %d", want, got)
		}
	})

	t.Run("unwritable consumer stops pulling", func(t *testing.T) {
		src := &countingSource{items: []any{1, 2, 3, 4, 5}}
		rec := newRecorder()
		rec.stopAfter = 2

		res := stream.ProcessStream(ctx, src, rec, stream.Options{})

		if !res.Canceled {
			t.Fatalf("expected canceled result")
		}
		if want, got := 2, len(rec.frames); want != got {
			t.Fatalf("frames: want %d got %d", want, got)
		}
		if want, got := 2, src.pulls; want != got {
			t.Fatalf("pulls: want %d got %d", want, got)
		}
		if want, got := 1, rec.ends; want != got {
			t.Fatalf("ends: want %d got %d", want, got)
		}
	})

	t.Run("idle source released when consumer cancels", func(t *testing.T) {
		ch := make(chan string, 1)
		ch <- "first"
		c := stream.NewChannelConsumer(1)

		done := make(chan stream.Result, 1)
		go func() {
			done <- stream.ProcessStream(ctx, stream.FromChannel(ch), c, stream.Options{})
		}()

		ev := <-c.Events()
		if want, got := `"first"`, ev.Data; want != got {
			t.Fatalf("want %s got %s", want, got)
		}
		c.Cancel()

		select {
		case res := <-done:
			if !res.Canceled {
				t.Fatalf("expected canceled result, got %+v", res)
			}
			if want, got := 1, res.Frames; want != got {
				t.Fatalf("frames: want %d got %d", want, got)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("driver still pulling after the consumer went away")
		}
		if _, ok := <-c.Events(); ok {
			t.Fatalf("expected the frame channel to be closed by End")
		}
	})

	t.Run("consumer unwritable before start", func(t *testing.T) {
		src := &countingSource{items: []any{1}}
		rec := newRecorder()
		rec.writable = false

		res := stream.ProcessStream(ctx, src, rec, stream.Options{})
		if !res.Canceled || src.pulls != 0 || len(rec.frames) != 0 {
			t.Fatalf("unexpected result %+v pulls=%d", res, src.pulls)
		}
	})

	t.Run("empty source starts and ends", func(t *testing.T) {
		rec := newRecorder()
		started := false
		res := stream.ProcessStream(ctx, stream.FromSlice([]any{}), rec, stream.Options{OnStreamStart: func() { started = true }})
		if res.EarlyError || !started || rec.ends != 1 || len(rec.frames) != 0 {
			t.Fatalf("unexpected result %+v started=%v ends=%d", res, started, rec.ends)
		}
	})

	t.Run("wrap shapes each frame", func(t *testing.T) {
		rec := newRecorder()
		stream.ProcessStream(ctx, stream.FromSlice([]string{"x"}), rec, stream.Options{
			Wrap: func(p any) (any, error) { return map[string]any{"result": p}, nil },
		})
		if want, got := `{"result":"x"}`, rec.frames[0].Data; want != got {
			t.Fatalf("want %s got %s", want, got)
		}
	})

	t.Run("unencodable payload mid-stream", func(t *testing.T) {
		rec := newRecorder()
		res := stream.ProcessStream(ctx, stream.FromSlice([]any{"ok", make(chan int)}), rec, stream.Options{})
		if want, got := 2, len(rec.frames); want != got {
			t.Fatalf("written: want %d got %d", want, got)
		}
		if res.Err == nil || res.Err.Code != a2a.CodeInternalError {
			t.Fatalf("expected internal error, got %+v", res.Err)
		}
	})
}

func TestSources(t *testing.T) {
	ctx := context.Background()

	t.Run("FromSeq yields then fails", func(t *testing.T) {
		boom := errors.New("boom")
		seq := iter.Seq2[int, error](func(yield func(int, error) bool) {
			if !yield(1, nil) {
				return
			}
			yield(0, boom)
		})
		src := stream.FromSeq(seq)
		defer src.Close()

		v, err := src.Next(ctx)
		if err != nil || v != 1 {
			t.Fatalf("first: %v %v", v, err)
		}
		if _, err := src.Next(ctx); !errors.Is(err, boom) {
			t.Fatalf("second: want boom got %v", err)
		}
		if _, err := src.Next(ctx); !errors.Is(err, io.EOF) {
			t.Fatalf("third: want EOF got %v", err)
		}
	})

	t.Run("FromChannel ends on close", func(t *testing.T) {
		ch := make(chan string, 2)
		ch <- "a"
		close(ch)
		src := stream.FromChannel(ch)
		if v, err := src.Next(ctx); err != nil || v != "a" {
			t.Fatalf("first: %v %v", v, err)
		}
		if _, err := src.Next(ctx); !errors.Is(err, io.EOF) {
			t.Fatalf("want EOF got %v", err)
		}
	})

	t.Run("FromChannel honors context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		src := stream.FromChannel(make(chan int))
		if _, err := src.Next(cctx); !errors.Is(err, context.Canceled) {
			t.Fatalf("want canceled got %v", err)
		}
	})
}

func TestWriterConsumer(t *testing.T) {
	var buf bytes.Buffer
	ends := 0
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := stream.NewWriterConsumer(ctx, &buf, func() { ends++ })

	if err := c.Write(ctx, stream.Event{Data: "1"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if want, got := "data: 1\n\n", buf.String(); want != got {
		t.Fatalf("want %q got %q", want, got)
	}

	_ = c.End()
	_ = c.End()
	if want, got := 1, ends; want != got {
		t.Fatalf("End must be idempotent: want %d got %d", want, got)
	}
	if c.IsWritable() {
		t.Fatalf("ended consumer must not be writable")
	}
	if err := c.Write(ctx, stream.Event{Data: "2"}); !errors.Is(err, stream.ErrNotWritable) {
		t.Fatalf("want ErrNotWritable got %v", err)
	}

	c2 := stream.NewWriterConsumer(ctx, io.Discard, nil)
	cancel()
	if c2.IsWritable() {
		t.Fatalf("canceled context must make consumer unwritable")
	}
	select {
	case <-c2.Done():
	default:
		t.Fatalf("Done must be closed once the context is canceled")
	}
}

func TestChannelConsumer(t *testing.T) {
	ctx := context.Background()
	c := stream.NewChannelConsumer(4)

	res := stream.ProcessStream(ctx, stream.FromSlice([]int{1, 2}), c, stream.Options{})
	if want, got := 2, res.Frames; want != got {
		t.Fatalf("frames: want %d got %d", want, got)
	}

	var got []string
	for ev := range c.Events() {
		got = append(got, ev.Data)
	}
	if want := []string{"1", "2"}; !reflect.DeepEqual(want, got) {
		t.Fatalf("want %v got %v", want, got)
	}

	_ = c.End() // second End is a no-op

	c2 := stream.NewChannelConsumer(0)
	c2.Cancel()
	if c2.IsWritable() {
		t.Fatalf("canceled consumer must not be writable")
	}
	if err := c2.Write(ctx, stream.Event{Data: "x"}); !errors.Is(err, stream.ErrNotWritable) {
		t.Fatalf("want ErrNotWritable got %v", err)
	}
	select {
	case <-c2.Done():
	default:
		t.Fatalf("Done must be closed after Cancel")
	}
}

func TestChannelConsumerEndDuringWrite(t *testing.T) {
	ctx := context.Background()
	c := stream.NewChannelConsumer(0)

	errc := make(chan error, 1)
	go func() {
		// Nobody reads, so this blocks until End.
		errc <- c.Write(ctx, stream.Event{Data: "x"})
	}()

	time.Sleep(20 * time.Millisecond)
	if err := c.End(); err != nil {
		t.Fatalf("End: %v", err)
	}

	select {
	case err := <-errc:
		if !errors.Is(err, stream.ErrNotWritable) {
			t.Fatalf("want ErrNotWritable got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Write still blocked after End")
	}
	if _, ok := <-c.Events(); ok {
		t.Fatalf("expected closed channel after End")
	}
	if err := c.Write(ctx, stream.Event{Data: "y"}); !errors.Is(err, stream.ErrNotWritable) {
		t.Fatalf("want ErrNotWritable got %v", err)
	}
}
