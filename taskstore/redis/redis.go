// Package redis implements taskstore.Store on Redis so every node serving an
// agent sees the same task snapshots.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ggoodman/a2a-server-go/a2a"
	"github.com/ggoodman/a2a-server-go/taskstore"
	"github.com/joeshaw/envdecode"
	"github.com/redis/go-redis/v9"
)

var _ taskstore.Store = (*Store)(nil)

// Config for the Redis-backed store. Defaults can be loaded via envdecode.
type Config struct {
	// Addr like "localhost:6379". ENV: REDIS_ADDR
	Addr string `env:"REDIS_ADDR,default=localhost:6379"`
	// KeyPrefix for all keys. ENV: TASKSTORE_KEY_PREFIX
	KeyPrefix string `env:"TASKSTORE_KEY_PREFIX,default=a2a:tasks:"`
	// DefaultTTL applies to saves without an explicit TTL; 0 keeps tasks
	// forever. ENV: TASKSTORE_TTL
	DefaultTTL time.Duration `env:"TASKSTORE_TTL"`

	// Client overrides Addr with an existing client.
	Client redis.UniversalClient
}

// Store implements taskstore.Store using Redis string keys holding task JSON.
type Store struct {
	client     redis.UniversalClient
	keyPrefix  string
	defaultTTL time.Duration
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, cfg Config) (*Store, error) {
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
		prefix = "a2a:tasks:"
	}

	return &Store{
		client:     client,
		keyPrefix:  prefix,
		defaultTTL: cfg.DefaultTTL,
	}, nil
}

// NewFromEnv builds a Store using envdecode to populate Config.
func NewFromEnv(ctx context.Context) (*Store, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decoding task store config: %w", err)
	}
	return New(ctx, cfg)
}

func (s *Store) key(taskID string) string { return s.keyPrefix + "task:" + taskID }

func (s *Store) Load(ctx context.Context, taskID string) (*a2a.Task, error) {
	key := s.key(taskID)
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // Key doesn't exist or has expired
		}
		return nil, fmt.Errorf("failed to get key %s: %w", key, err)
	}

	var task a2a.Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task %s: %w", taskID, err)
	}
	return &task, nil
}

func (s *Store) Save(ctx context.Context, task *a2a.Task, opts ...taskstore.Option) error {
	options := taskstore.ApplyOptions(opts)

	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task %s: %w", task.ID, err)
	}

	ttl := s.defaultTTL
	if options.TTL != nil {
		ttl = *options.TTL
	}

	key := s.key(task.ID)
	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, taskID string) error {
	key := s.key(taskID)
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

// Close closes the Redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
