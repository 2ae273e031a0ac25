package stream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"

	"github.com/ggoodman/a2a-server-go/a2a"
)

// Options tune ProcessStream. The zero value streams bare payloads without
// ids and formats errors as JSON-RPC error objects.
type Options struct {
	// IncludeIDs stamps every frame with an id from IDs.
	IncludeIDs bool
	// IDs generates frame ids. Nil means a process-wide generator.
	IDs *IDGenerator
	// OnStreamStart runs once, immediately before the first frame is written.
	OnStreamStart func()
	// Wrap maps each payload to the value serialized into the frame. An error
	// counts as a failed pull.
	Wrap func(payload any) (any, error)
	// ErrorBody maps a protocol error to the value serialized into an early
	// error body or a terminal error frame.
	ErrorBody func(err *a2a.Error) any
	// Status maps a protocol error to the status of an early error response.
	Status func(err *a2a.Error) int
	Logger *slog.Logger
}

// Result describes how a stream ended.
type Result struct {
	// EarlyError is set when the first pull failed. Nothing was written and
	// the caller must send StatusCode and ErrorBody as a plain response.
	EarlyError bool
	StatusCode int
	ErrorBody  []byte
	// Err is the protocol error that ended the stream, early or not.
	Err *a2a.Error
	// Frames counts successfully written frames, excluding a terminal error
	// frame.
	Frames int
	// Canceled is set when the consumer stopped being writable before the
	// source was exhausted.
	Canceled bool
}

// Notifier is implemented by consumers that can signal the moment they stop
// being writable. ProcessStream uses it to abandon a pull that is blocked on
// an idle source.
type Notifier interface {
	Done() <-chan struct{}
}

// ProcessStream drains src into c. It always closes src and, unless an
// early error is returned, always ends c. Pulls stop as soon as c is no
// longer writable.
func ProcessStream(ctx context.Context, src Source, c Consumer, opts Options) Result {
	defer src.Close()

	pullCtx, stopPull := context.WithCancel(ctx)
	defer stopPull()
	if n, ok := c.(Notifier); ok {
		go func() {
			select {
			case <-n.Done():
				stopPull()
			case <-pullCtx.Done():
			}
		}()
	}

	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	var res Result
	if !c.IsWritable() {
		res.Canceled = true
		_ = c.End()
		return res
	}

	started := false
	start := func() {
		if !started {
			started = true
			if opts.OnStreamStart != nil {
				opts.OnStreamStart()
			}
		}
	}

	item, err := src.Next(pullCtx)
	if errors.Is(err, io.EOF) {
		start()
		_ = c.End()
		return res
	}
	var frame Event
	if err == nil {
		frame, err = opts.frame(item)
	}
	if err != nil {
		if pullCtx.Err() != nil || !c.IsWritable() {
			res.Canceled = true
			_ = c.End()
			return res
		}
		pe := a2a.AsError(err)
		res.EarlyError = true
		res.Err = pe
		res.StatusCode = opts.status(pe)
		res.ErrorBody = opts.errorJSON(pe)
		log.DebugContext(ctx, "stream.error.early", slog.Int("code", pe.Code), slog.String("err", err.Error()))
		return res
	}

	for {
		if !c.IsWritable() {
			res.Canceled = true
			break
		}

		start()
		if err := c.Write(ctx, frame); err != nil {
			log.DebugContext(ctx, "stream.write.fail", slog.String("err", err.Error()))
			res.Canceled = true
			break
		}
		res.Frames++

		if !c.IsWritable() {
			res.Canceled = true
			break
		}
		item, err = src.Next(pullCtx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err == nil {
			if frame, err = opts.frame(item); err == nil {
				continue
			}
		}

		if !c.IsWritable() || pullCtx.Err() != nil {
			res.Canceled = true
			break
		}
		pe := a2a.AsError(err)
		res.Err = pe
		log.WarnContext(ctx, "stream.error.mid", slog.Int("code", pe.Code), slog.Int("frames", res.Frames), slog.String("err", err.Error()))

		ef := Event{Event: ErrorEventName, Data: string(opts.errorJSON(pe))}
		if opts.IncludeIDs {
			ef.ID = opts.ids().Next()
		}
		if err := c.Write(ctx, ef); err != nil {
			log.DebugContext(ctx, "stream.write.fail", slog.String("err", err.Error()))
		}
		break
	}

	_ = c.End()
	return res
}

func (o *Options) ids() *IDGenerator {
	if o.IDs != nil {
		return o.IDs
	}
	return &defaultIDs
}

func (o *Options) frame(payload any) (Event, error) {
	v := payload
	if o.Wrap != nil {
		var err error
		if v, err = o.Wrap(payload); err != nil {
			return Event{}, err
		}
	}
	ev, err := NewEvent(v)
	if err != nil {
		return Event{}, err
	}
	if o.IncludeIDs {
		ev.ID = o.ids().Next()
	}
	return ev, nil
}

func (o *Options) status(pe *a2a.Error) int {
	if o.Status != nil {
		return o.Status(pe)
	}
	return a2a.HTTPStatus(pe.Code)
}

func (o *Options) errorJSON(pe *a2a.Error) []byte {
	var body any = a2a.ToJSONRPCError(pe)
	if o.ErrorBody != nil {
		body = o.ErrorBody(pe)
	}
	b, err := json.Marshal(body)
	if err != nil {
		// Fall back to the bare projection, which always encodes.
		b, _ = json.Marshal(a2a.ToJSONRPCError(a2a.NewInternalError(pe.Message)))
	}
	return b
}
