package eventbus

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/ggoodman/a2a-server-go/a2a"
	"github.com/ggoodman/a2a-server-go/broker"
	"github.com/ggoodman/a2a-server-go/stream"
)

// finishedMarker is published after the last event of an execution so
// remote subscribers know to stop even when no final event was emitted.
var finishedMarker = []byte(`{"kind":"finished"}`)

// Forward publishes every event of bus to namespace on b until the execution
// is over or ctx is done. Call it before the execution starts publishing;
// it returns once subscribed and relays from a separate goroutine. The
// returned wait function blocks until relaying has stopped and reports the
// first publish error.
func Forward(ctx context.Context, bus *Bus, b broker.Broker, namespace string, log *slog.Logger) (wait func() error) {
	if log == nil {
		log = slog.Default()
	}

	q := NewQueue(bus)

	var (
		wg  sync.WaitGroup
		err error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer q.Close()

		for {
			item, nerr := q.Next(ctx)
			if errors.Is(nerr, io.EOF) {
				break
			}
			if nerr != nil {
				err = nerr
				return
			}
			data, merr := a2a.MarshalEvent(item.(a2a.Event))
			if merr != nil {
				log.ErrorContext(ctx, "relay.encode.fail", slog.String("err", merr.Error()))
				continue
			}
			if _, perr := b.Publish(ctx, namespace, data); perr != nil {
				log.ErrorContext(ctx, "relay.publish.fail", slog.String("namespace", namespace), slog.String("err", perr.Error()))
				err = perr
				return
			}
		}

		if _, perr := b.Publish(ctx, namespace, finishedMarker); perr != nil {
			err = perr
		}
	}()

	return func() error {
		wg.Wait()
		return err
	}
}

// Subscribe returns a stream.Source of the events relayed to namespace
// after lastEventID. The source ends after a final event, after the
// execution's finished marker, or when the namespace is cleaned up.
func Subscribe(ctx context.Context, b broker.Broker, namespace, lastEventID string) (stream.Source, error) {
	s, err := b.Subscribe(ctx, namespace, lastEventID)
	if err != nil {
		return nil, fmt.Errorf("subscribing to %s: %w", namespace, err)
	}
	return &brokerSource{s: s}, nil
}

type brokerSource struct {
	s    broker.Stream
	done bool
}

func (r *brokerSource) Next(ctx context.Context) (any, error) {
	if r.done {
		return nil, io.EOF
	}
	env, err := r.s.Next(ctx)
	if err != nil {
		return nil, err
	}
	if bytes.Equal(env.Data, finishedMarker) {
		r.done = true
		return nil, io.EOF
	}
	ev, err := a2a.UnmarshalEvent(env.Data)
	if err != nil {
		return nil, a2a.NewInternalError(fmt.Sprintf("relayed event %s: %v", env.ID, err))
	}
	if a2a.IsFinal(ev) {
		r.done = true
	}
	return ev, nil
}

func (r *brokerSource) Close() error {
	return r.s.Close()
}
