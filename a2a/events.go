package a2a

import (
	"encoding/json"
	"fmt"
)

// Event kinds, as carried in the "kind" discriminator of every payload.
const (
	KindMessage        = "message"
	KindTask           = "task"
	KindStatusUpdate   = "status-update"
	KindArtifactUpdate = "artifact-update"
)

// Event is an execution event: a *Message, *Task, *TaskStatusUpdateEvent or
// *TaskArtifactUpdateEvent. The same union is the result of message/send
// (Message or Task) and the item type of every stream.
type Event interface {
	EventKind() string
}

func (*Message) EventKind() string                 { return KindMessage }
func (*Task) EventKind() string                    { return KindTask }
func (*TaskStatusUpdateEvent) EventKind() string   { return KindStatusUpdate }
func (*TaskArtifactUpdateEvent) EventKind() string { return KindArtifactUpdate }

// TaskIDOf returns the task an event belongs to, if any.
func TaskIDOf(ev Event) string {
	switch e := ev.(type) {
	case *Message:
		return e.TaskID
	case *Task:
		return e.ID
	case *TaskStatusUpdateEvent:
		return e.TaskID
	case *TaskArtifactUpdateEvent:
		return e.TaskID
	}
	return ""
}

// IsFinal reports whether ev ends an execution. A direct message reply, a
// final status update and a task in a terminal state all do.
func IsFinal(ev Event) bool {
	switch e := ev.(type) {
	case *Message:
		return true
	case *Task:
		return e.Status.State.IsTerminal()
	case *TaskStatusUpdateEvent:
		return e.Final
	}
	return false
}

// MarshalEvent encodes ev. The kind discriminator is filled in by the
// concrete types' MarshalJSON methods when the producer left it empty.
func MarshalEvent(ev Event) ([]byte, error) {
	return json.Marshal(ev)
}

func (m Message) MarshalJSON() ([]byte, error) {
	type wire Message
	if m.Kind == "" {
		m.Kind = KindMessage
	}
	return json.Marshal(wire(m))
}

func (t Task) MarshalJSON() ([]byte, error) {
	type wire Task
	if t.Kind == "" {
		t.Kind = KindTask
	}
	return json.Marshal(wire(t))
}

func (e TaskStatusUpdateEvent) MarshalJSON() ([]byte, error) {
	type wire TaskStatusUpdateEvent
	if e.Kind == "" {
		e.Kind = KindStatusUpdate
	}
	return json.Marshal(wire(e))
}

func (e TaskArtifactUpdateEvent) MarshalJSON() ([]byte, error) {
	type wire TaskArtifactUpdateEvent
	if e.Kind == "" {
		e.Kind = KindArtifactUpdate
	}
	return json.Marshal(wire(e))
}

// UnmarshalEvent decodes a payload by its kind discriminator.
func UnmarshalEvent(data []byte) (Event, error) {
	var probe struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("decoding event kind: %w", err)
	}

	var ev Event
	switch probe.Kind {
	case KindMessage:
		ev = &Message{}
	case KindTask:
		ev = &Task{}
	case KindStatusUpdate:
		ev = &TaskStatusUpdateEvent{}
	case KindArtifactUpdate:
		ev = &TaskArtifactUpdateEvent{}
	default:
		return nil, fmt.Errorf("unknown event kind %q", probe.Kind)
	}

	if err := json.Unmarshal(data, ev); err != nil {
		return nil, fmt.Errorf("decoding %s event: %w", probe.Kind, err)
	}
	return ev, nil
}
