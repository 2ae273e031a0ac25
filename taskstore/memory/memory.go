// Package memory provides an in-memory taskstore.Store using
// github.com/hashicorp/golang-lru/v2, evicting the least recently used task
// once the store is full.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ggoodman/a2a-server-go/a2a"
	"github.com/ggoodman/a2a-server-go/taskstore"
	lru "github.com/hashicorp/golang-lru/v2"
)

var _ taskstore.Store = (*Store)(nil)

type item struct {
	data      []byte
	expiresAt time.Time
}

func (it *item) expired(now time.Time) bool {
	return !it.expiresAt.IsZero() && now.After(it.expiresAt)
}

// Store implements taskstore.Store in memory. Snapshots are kept serialized
// so callers never share a task value.
type Store struct {
	mu    sync.Mutex
	cache *lru.Cache[string, *item]
	done  chan struct{}
	once  sync.Once
}

// New creates a store holding at most maxItems tasks.
func New(maxItems int) (*Store, error) {
	cache, err := lru.New[string, *item](maxItems)
	if err != nil {
		return nil, fmt.Errorf("failed to create LRU cache: %w", err)
	}

	s := &Store{
		cache: cache,
		done:  make(chan struct{}),
	}

	// Start background cleanup of expired items
	go s.cleanupExpired(5 * time.Minute)

	return s, nil
}

func (s *Store) Load(ctx context.Context, taskID string) (*a2a.Task, error) {
	s.mu.Lock()
	it, exists := s.cache.Get(taskID)
	if exists && it.expired(time.Now()) {
		s.cache.Remove(taskID)
		exists = false
	}
	s.mu.Unlock()

	if !exists {
		return nil, nil
	}

	var task a2a.Task
	if err := json.Unmarshal(it.data, &task); err != nil {
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
	it := &item{data: data}
	if options.TTL != nil {
		it.expiresAt = time.Now().Add(*options.TTL)
	}

	s.mu.Lock()
	s.cache.Add(task.ID, it)
	s.mu.Unlock()
	return nil
}

func (s *Store) Delete(ctx context.Context, taskID string) error {
	s.mu.Lock()
	s.cache.Remove(taskID)
	s.mu.Unlock()
	return nil
}

// Close drops every task and stops the background cleanup.
func (s *Store) Close() error {
	s.once.Do(func() { close(s.done) })
	s.mu.Lock()
	s.cache.Purge()
	s.mu.Unlock()
	return nil
}

// cleanupExpired periodically removes expired items until Close.
func (s *Store) cleanupExpired(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
		}

		s.mu.Lock()
		now := time.Now()
		for _, key := range s.cache.Keys() {
			if it, exists := s.cache.Peek(key); exists && it.expired(now) {
				s.cache.Remove(key)
			}
		}
		s.mu.Unlock()
	}
}
