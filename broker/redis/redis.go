// Package redis implements broker.Broker on Redis Streams, letting any node
// serving the agent relay events for tasks executing on another node.
package redis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/ggoodman/a2a-server-go/broker"
	"github.com/joeshaw/envdecode"
	"github.com/redis/go-redis/v9"
)

const (
	dataField = "d"
	eofField  = "eof"
)

// Config for the Redis-backed broker. Defaults can be loaded via envdecode.
type Config struct {
	// Addr like "localhost:6379". ENV: REDIS_ADDR
	Addr string `env:"REDIS_ADDR,default=localhost:6379"`
	// KeyPrefix for all keys. ENV: BROKER_KEY_PREFIX
	KeyPrefix string `env:"BROKER_KEY_PREFIX,default=a2a:broker:"`
	// MaxLen approximately caps each namespace stream; 0 means unbounded.
	// ENV: BROKER_MAX_LEN
	MaxLen int64 `env:"BROKER_MAX_LEN,default=10000"`
	// TTL expires idle namespaces; refreshed on every publish.
	// ENV: BROKER_TTL
	TTL time.Duration `env:"BROKER_TTL,default=24h"`

	// Client overrides Addr with an existing client.
	Client redis.UniversalClient
}

// Broker is a Redis Streams-based implementation of broker.Broker.
type Broker struct {
	client    redis.UniversalClient
	keyPrefix string
	maxLen    int64
	ttl       time.Duration
	// block bounds each XREAD so context cancellation is observed promptly.
	block time.Duration
}

// New creates a Redis-backed broker and verifies connectivity.
func New(ctx context.Context, cfg Config) (*Broker, error) {
	client := cfg.Client
	if client == nil {
		addr := cfg.Addr
		if addr == "" {
			addr = "localhost:6379"
		}
		client = redis.NewClient(&redis.Options{Addr: addr})
	}
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "a2a:broker:"
	}

	return &Broker{
		client:    client,
		keyPrefix: prefix,
		maxLen:    cfg.MaxLen,
		ttl:       cfg.TTL,
		block:     time.Second,
	}, nil
}

// NewFromEnv builds a Broker using envdecode to populate Config.
func NewFromEnv(ctx context.Context) (*Broker, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decoding broker config: %w", err)
	}
	return New(ctx, cfg)
}

// Close closes the Redis client.
func (b *Broker) Close() error {
	return b.client.Close()
}

func (b *Broker) streamKey(namespace string) string { return b.keyPrefix + "stream:" + namespace }

// Publish implements broker.Broker.Publish
func (b *Broker) Publish(ctx context.Context, namespace string, data []byte) (string, error) {
	key := b.streamKey(namespace)

	args := &redis.XAddArgs{
		Stream: key,
		Values: map[string]any{dataField: data},
	}
	if b.maxLen > 0 {
		args.MaxLen = b.maxLen
		args.Approx = true
	}

	pipe := b.client.TxPipeline()
	add := pipe.XAdd(ctx, args)
	if b.ttl > 0 {
		pipe.Expire(ctx, key, b.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("failed to publish message to stream %s: %w", key, err)
	}

	return add.Val(), nil
}

// Subscribe implements broker.Broker.Subscribe. Without lastEventID the
// current tail of the stream is resolved eagerly, so messages published
// after Subscribe returns are never missed.
func (b *Broker) Subscribe(ctx context.Context, namespace string, lastEventID string) (broker.Stream, error) {
	key := b.streamKey(namespace)

	start := lastEventID
	if start == "" {
		last, err := b.client.XRevRangeN(ctx, key, "+", "-", 1).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("failed to read tail of stream %s: %w", key, err)
		}
		start = "0-0"
		if len(last) > 0 {
			start = last[0].ID
		}
	}

	return &subscription{b: b, key: key, lastID: start}, nil
}

// Cleanup implements broker.Broker.Cleanup. A tombstone is appended so
// active subscribers observe io.EOF, and the stream expires shortly after.
func (b *Broker) Cleanup(ctx context.Context, namespace string) error {
	key := b.streamKey(namespace)

	pipe := b.client.TxPipeline()
	pipe.XAdd(ctx, &redis.XAddArgs{Stream: key, Values: map[string]any{eofField: "1"}})
	pipe.Expire(ctx, key, time.Minute)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cleanup namespace %s: %w", namespace, err)
	}

	return nil
}

type subscription struct {
	b       *Broker
	key     string
	lastID  string
	pending []redis.XMessage
	eof     bool
	closed  atomic.Bool
}

// Next implements broker.Stream.Next
func (s *subscription) Next(ctx context.Context) (broker.Envelope, error) {
	for {
		if s.closed.Load() {
			return broker.Envelope{}, broker.ErrClosed
		}
		if s.eof {
			return broker.Envelope{}, io.EOF
		}

		if len(s.pending) > 0 {
			msg := s.pending[0]
			s.pending = s.pending[1:]
			s.lastID = msg.ID

			if _, ok := msg.Values[eofField]; ok {
				s.eof = true
				return broker.Envelope{}, io.EOF
			}
			data, ok := msg.Values[dataField].(string)
			if !ok {
				// Skip malformed entries.
				continue
			}
			return broker.Envelope{ID: msg.ID, Data: []byte(data)}, nil
		}

		if err := ctx.Err(); err != nil {
			return broker.Envelope{}, err
		}

		streams, err := s.b.client.XRead(ctx, &redis.XReadArgs{
			Streams: []string{s.key, s.lastID},
			Count:   100,
			Block:   s.b.block,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return broker.Envelope{}, ctxErr
			}
			return broker.Envelope{}, fmt.Errorf("failed to read from stream %s: %w", s.key, err)
		}
		for _, st := range streams {
			s.pending = append(s.pending, st.Messages...)
		}
	}
}

// Close implements broker.Stream.Close
func (s *subscription) Close() error {
	s.closed.Store(true)
	return nil
}

var (
	_ broker.Broker = (*Broker)(nil)
	_ broker.Stream = (*subscription)(nil)
)
