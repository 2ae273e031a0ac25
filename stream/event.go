package stream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// ErrorEventName is the SSE event name of a terminal error frame.
const ErrorEventName = "error"

// Event is one SSE frame. Data holds serialized JSON.
type Event struct {
	ID    string
	Event string
	Data  string
}

// NewEvent serializes payload into the data of a frame.
func NewEvent(payload any) (Event, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("stream: encoding payload: %w", err)
	}
	return Event{Data: string(b)}, nil
}

// Format renders the frame in SSE wire format: optional id and event lines,
// one data line per line of Data, then a blank line.
func (e Event) Format() []byte {
	var b bytes.Buffer
	if e.ID != "" {
		b.WriteString("id: ")
		b.WriteString(e.ID)
		b.WriteByte('\n')
	}
	if e.Event != "" {
		b.WriteString("event: ")
		b.WriteString(e.Event)
		b.WriteByte('\n')
	}
	for _, line := range strings.Split(e.Data, "\n") {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	return b.Bytes()
}

// IDGenerator hands out frame ids derived from wall-clock milliseconds.
// Ids never repeat or go backwards within one generator: when the clock has
// not advanced past the previous id, the previous id plus one is used. The
// zero value is ready to use.
type IDGenerator struct {
	last atomic.Int64
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// Next returns the next id.
func (g *IDGenerator) Next() string {
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	for {
		last := g.last.Load()
		next := max(now().UnixMilli(), last+1)
		if g.last.CompareAndSwap(last, next) {
			return strconv.FormatInt(next, 10)
		}
	}
}

var defaultIDs IDGenerator
