// Package broker relays serialized task events between processes so that a
// client can subscribe to a task from any node serving the agent.
//
// A namespace is an append-only, ordered log of messages, typically one per
// task. Subscribers resume from the message after a given event id, or from
// the next published message when no id is given.
package broker

import (
	"context"
	"errors"
)

// ErrClosed is returned by Publish and Subscribe on a namespace that has
// been cleaned up, and by Stream.Next after Close.
var ErrClosed = errors.New("broker: closed")

// Broker provides namespace-isolated, ordered message fan-out.
type Broker interface {
	// Publish appends data to namespace and returns its event id.
	Publish(ctx context.Context, namespace string, data []byte) (eventID string, err error)

	// Subscribe to namespace messages, resuming from lastEventID if provided.
	// If lastEventID is empty, subscription starts from the next published message.
	// If lastEventID is provided, subscription resumes from the message after that ID.
	Subscribe(ctx context.Context, namespace string, lastEventID string) (Stream, error)

	// Cleanup removes all resources associated with a namespace.
	// This includes all stored messages and active subscriptions.
	Cleanup(ctx context.Context, namespace string) error
}

// Stream provides ordered message consumption within a namespace.
// A Stream is meant for a single consumer.
type Stream interface {
	// Next blocks until the next message is available or ctx is done.
	// It returns io.EOF once the namespace has been cleaned up.
	Next(ctx context.Context) (Envelope, error)

	// Close releases resources associated with this stream.
	Close() error
}

// Envelope wraps a message with its event id.
type Envelope struct {
	// ID is unique and increasing within the namespace.
	ID string `json:"id"`
	// Data is the message payload, usually JSON.
	Data []byte `json:"data"`
}
