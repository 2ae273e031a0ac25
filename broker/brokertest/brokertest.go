// Package brokertest is a conformance suite for broker.Broker
// implementations.
package brokertest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/ggoodman/a2a-server-go/broker"
)

// BrokerFactory is a function that creates a new broker instance for testing.
type BrokerFactory func(t *testing.T) broker.Broker

// RunBrokerTests runs the complete broker test suite against the provided factory.
func RunBrokerTests(t *testing.T, factory BrokerFactory) {
	t.Run("SubscribeThenPublish", func(t *testing.T) {
		testSubscribeThenPublish(t, factory)
	})
	t.Run("ResumeFromLastEventID", func(t *testing.T) {
		testResumeFromLastEventID(t, factory)
	})
	t.Run("MultipleSubscribersToSameNamespace", func(t *testing.T) {
		testMultipleSubscribers(t, factory)
	})
	t.Run("NamespaceIsolation", func(t *testing.T) {
		testNamespaceIsolation(t, factory)
	})
	t.Run("NextHonorsContext", func(t *testing.T) {
		testNextHonorsContext(t, factory)
	})
	t.Run("Cleanup", func(t *testing.T) {
		testCleanup(t, factory)
	})
}

func uniqueNamespace(t *testing.T) string {
	return fmt.Sprintf("%s-%d", t.Name(), time.Now().UnixNano())
}

func mustPublish(t *testing.T, b broker.Broker, ns, data string) string {
	t.Helper()
	id, err := b.Publish(context.Background(), ns, []byte(data))
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if id == "" {
		t.Fatalf("publish returned empty event id")
	}
	return id
}

func mustNext(t *testing.T, s broker.Stream) broker.Envelope {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	env, err := s.Next(ctx)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	return env
}

func testSubscribeThenPublish(t *testing.T, factory BrokerFactory) {
	b := factory(t)
	ns := uniqueNamespace(t)
	defer b.Cleanup(context.Background(), ns)

	mustPublish(t, b, ns, `{"before":true}`)

	s, err := b.Subscribe(context.Background(), ns, "")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer s.Close()

	id := mustPublish(t, b, ns, `{"n":1}`)

	env := mustNext(t, s)
	if want, got := id, env.ID; want != got {
		t.Fatalf("id: want %s got %s", want, got)
	}
	if want, got := `{"n":1}`, string(env.Data); want != got {
		t.Fatalf("data: want %s got %s", want, got)
	}
}

func testResumeFromLastEventID(t *testing.T, factory BrokerFactory) {
	b := factory(t)
	ns := uniqueNamespace(t)
	defer b.Cleanup(context.Background(), ns)

	first := mustPublish(t, b, ns, `"a"`)
	mustPublish(t, b, ns, `"b"`)
	mustPublish(t, b, ns, `"c"`)

	s, err := b.Subscribe(context.Background(), ns, first)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer s.Close()

	for _, want := range []string{`"b"`, `"c"`} {
		if got := string(mustNext(t, s).Data); want != got {
			t.Fatalf("want %s got %s", want, got)
		}
	}
}

func testMultipleSubscribers(t *testing.T, factory BrokerFactory) {
	b := factory(t)
	ns := uniqueNamespace(t)
	defer b.Cleanup(context.Background(), ns)

	s1, err := b.Subscribe(context.Background(), ns, "")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer s1.Close()
	s2, err := b.Subscribe(context.Background(), ns, "")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer s2.Close()

	mustPublish(t, b, ns, `1`)
	mustPublish(t, b, ns, `2`)

	for _, s := range []broker.Stream{s1, s2} {
		for _, want := range []string{"1", "2"} {
			if got := string(mustNext(t, s).Data); want != got {
				t.Fatalf("want %s got %s", want, got)
			}
		}
	}
}

func testNamespaceIsolation(t *testing.T, factory BrokerFactory) {
	b := factory(t)
	nsA := uniqueNamespace(t) + "-a"
	nsB := uniqueNamespace(t) + "-b"
	defer b.Cleanup(context.Background(), nsA)
	defer b.Cleanup(context.Background(), nsB)

	s, err := b.Subscribe(context.Background(), nsA, "")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer s.Close()

	mustPublish(t, b, nsB, `"other"`)
	mustPublish(t, b, nsA, `"mine"`)

	if want, got := `"mine"`, string(mustNext(t, s).Data); want != got {
		t.Fatalf("want %s got %s", want, got)
	}
}

func testNextHonorsContext(t *testing.T, factory BrokerFactory) {
	b := factory(t)
	ns := uniqueNamespace(t)
	defer b.Cleanup(context.Background(), ns)

	s, err := b.Subscribe(context.Background(), ns, "")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := s.Next(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("want deadline exceeded, got %v", err)
	}
}

func testCleanup(t *testing.T, factory BrokerFactory) {
	b := factory(t)
	ns := uniqueNamespace(t)

	s, err := b.Subscribe(context.Background(), ns, "")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer s.Close()

	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, err := s.Next(ctx)
		done <- err
	}()

	if err := b.Cleanup(context.Background(), ns); err != nil {
		t.Fatalf("cleanup: %v", err)
	}

	if err := <-done; !errors.Is(err, io.EOF) {
		t.Fatalf("want io.EOF after cleanup, got %v", err)
	}
}
