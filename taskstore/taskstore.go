// Package taskstore persists task snapshots for request handlers that need
// them to outlive a single execution or process.
package taskstore

import (
	"context"
	"time"

	"github.com/ggoodman/a2a-server-go/a2a"
)

// Store holds the latest snapshot of each task.
type Store interface {
	// Load returns the stored task, or nil if it does not exist or has
	// expired. An error is returned only for storage system failures.
	// Every call returns an independent copy.
	Load(ctx context.Context, taskID string) (*a2a.Task, error)

	// Save replaces the stored snapshot of task.
	Save(ctx context.Context, task *a2a.Task, opts ...Option) error

	// Delete removes a task. Deleting a missing task is not an error.
	Delete(ctx context.Context, taskID string) error

	// Close releases the backend's resources.
	Close() error
}

// Option configures a Save.
type Option func(*Options)

// Options contains configuration for Save.
type Options struct {
	TTL *time.Duration // Optional: time-to-live for the snapshot
}

// WithTTL expires the snapshot after ttl.
func WithTTL(ttl time.Duration) Option {
	return func(opts *Options) {
		opts.TTL = &ttl
	}
}

// ApplyOptions folds opts into a new Options.
func ApplyOptions(opts []Option) Options {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
