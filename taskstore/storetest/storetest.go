// Package storetest is a conformance suite for taskstore.Store
// implementations.
package storetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ggoodman/a2a-server-go/a2a"
	"github.com/ggoodman/a2a-server-go/taskstore"
)

// StoreFactory creates a new store instance for testing.
type StoreFactory func(t *testing.T) taskstore.Store

// RunStoreTests runs the complete store test suite against the provided factory.
func RunStoreTests(t *testing.T, factory StoreFactory) {
	t.Run("SaveThenLoad", func(t *testing.T) {
		testSaveThenLoad(t, factory)
	})
	t.Run("LoadMissing", func(t *testing.T) {
		testLoadMissing(t, factory)
	})
	t.Run("SaveReplaces", func(t *testing.T) {
		testSaveReplaces(t, factory)
	})
	t.Run("LoadReturnsCopies", func(t *testing.T) {
		testLoadReturnsCopies(t, factory)
	})
	t.Run("Delete", func(t *testing.T) {
		testDelete(t, factory)
	})
	t.Run("TTL", func(t *testing.T) {
		testTTL(t, factory)
	})
}

func uniqueID(t *testing.T) string {
	return fmt.Sprintf("%s-%d", t.Name(), time.Now().UnixNano())
}

func newTask(id string, state a2a.TaskState) *a2a.Task {
	return &a2a.Task{
		ID:        id,
		ContextID: "ctx-" + id,
		Status:    a2a.TaskStatus{State: state},
		History: []a2a.Message{{
			MessageID: "m1",
			Role:      a2a.RoleUser,
			Parts:     []a2a.Part{a2a.NewTextPart("hello")},
		}},
	}
}

func mustSave(t *testing.T, s taskstore.Store, task *a2a.Task, opts ...taskstore.Option) {
	t.Helper()
	if err := s.Save(context.Background(), task, opts...); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
}

func mustLoad(t *testing.T, s taskstore.Store, id string) *a2a.Task {
	t.Helper()
	task, err := s.Load(context.Background(), id)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	return task
}

func testSaveThenLoad(t *testing.T, factory StoreFactory) {
	s := factory(t)
	id := uniqueID(t)
	defer s.Delete(context.Background(), id)

	mustSave(t, s, newTask(id, a2a.TaskStateWorking))

	got := mustLoad(t, s, id)
	if got == nil {
		t.Fatalf("Load() returned nil for a saved task")
	}
	if want, got := id, got.ID; want != got {
		t.Fatalf("id: want %q got %q", want, got)
	}
	if want, got := "ctx-"+id, got.ContextID; want != got {
		t.Fatalf("context id: want %q got %q", want, got)
	}
	if want, got := a2a.TaskStateWorking, got.Status.State; want != got {
		t.Fatalf("state: want %q got %q", want, got)
	}
	if want, got := 1, len(got.History); want != got {
		t.Fatalf("history: want %d got %d", want, got)
	}
	if want, got := "hello", got.History[0].Text(); want != got {
		t.Fatalf("history text: want %q got %q", want, got)
	}
}

func testLoadMissing(t *testing.T, factory StoreFactory) {
	s := factory(t)
	got := mustLoad(t, s, uniqueID(t))
	if got != nil {
		t.Fatalf("expected nil for missing task, got %+v", got)
	}
}

func testSaveReplaces(t *testing.T, factory StoreFactory) {
	s := factory(t)
	id := uniqueID(t)
	defer s.Delete(context.Background(), id)

	mustSave(t, s, newTask(id, a2a.TaskStateWorking))
	mustSave(t, s, newTask(id, a2a.TaskStateCompleted))

	if want, got := a2a.TaskStateCompleted, mustLoad(t, s, id).Status.State; want != got {
		t.Fatalf("state: want %q got %q", want, got)
	}
}

func testLoadReturnsCopies(t *testing.T, factory StoreFactory) {
	s := factory(t)
	id := uniqueID(t)
	defer s.Delete(context.Background(), id)

	task := newTask(id, a2a.TaskStateWorking)
	mustSave(t, s, task)
	task.Status.State = a2a.TaskStateFailed

	first := mustLoad(t, s, id)
	first.History[0].Parts[0].Text = "mutated"

	second := mustLoad(t, s, id)
	if want, got := a2a.TaskStateWorking, second.Status.State; want != got {
		t.Fatalf("state: want %q got %q", want, got)
	}
	if want, got := "hello", second.History[0].Text(); want != got {
		t.Fatalf("history text: want %q got %q", want, got)
	}
}

func testDelete(t *testing.T, factory StoreFactory) {
	s := factory(t)
	id := uniqueID(t)

	mustSave(t, s, newTask(id, a2a.TaskStateWorking))
	if err := s.Delete(context.Background(), id); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if got := mustLoad(t, s, id); got != nil {
		t.Fatalf("expected nil after delete, got %+v", got)
	}
	if err := s.Delete(context.Background(), id); err != nil {
		t.Fatalf("Delete() of a missing task failed: %v", err)
	}
}

func testTTL(t *testing.T, factory StoreFactory) {
	s := factory(t)
	id := uniqueID(t)
	defer s.Delete(context.Background(), id)

	mustSave(t, s, newTask(id, a2a.TaskStateWorking), taskstore.WithTTL(time.Second))
	if got := mustLoad(t, s, id); got == nil {
		t.Fatalf("task expired too early")
	}

	time.Sleep(1500 * time.Millisecond)
	if got := mustLoad(t, s, id); got != nil {
		t.Fatalf("expected task to expire, got %+v", got)
	}
}
