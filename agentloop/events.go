package agentloop

import (
	"sync"
	"time"
)

// EventKind identifies an output event.
type EventKind string

const (
	EventText      EventKind = "text"
	EventWarning   EventKind = "warning"
	EventToolStart EventKind = "tool_start"
	EventToolEnd   EventKind = "tool_end"
)

// Event is one item of a turn's output stream.
type Event struct {
	Kind      EventKind              `json:"kind"`
	Timestamp time.Time              `json:"timestamp"`
	TurnID    string                 `json:"turn_id,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// EventSink is an OutputSink that delivers events on a buffered channel.
// It never blocks the loop: events are dropped when the buffer is full.
type EventSink struct {
	turnID  string
	ch      chan Event
	closed  bool
	dropped int
	mu      sync.Mutex
}

// NewEventSink creates a sink with the given buffer size (256 if <= 0).
func NewEventSink(turnID string, bufferSize int) *EventSink {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &EventSink{turnID: turnID, ch: make(chan Event, bufferSize)}
}

func (s *EventSink) emit(kind EventKind, data map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- Event{Kind: kind, Timestamp: time.Now(), TurnID: s.turnID, Data: data}:
	default:
		s.dropped++
	}
}

func (s *EventSink) Text(text string) {
	s.emit(EventText, map[string]interface{}{"text": text})
}

func (s *EventSink) Warning(message string) {
	s.emit(EventWarning, map[string]interface{}{"message": message})
}

func (s *EventSink) ToolStart(call ToolCall) {
	s.emit(EventToolStart, map[string]interface{}{
		"call_id":   call.ID,
		"tool_name": call.Name,
		"arguments": call.Arguments,
	})
}

func (s *EventSink) ToolEnd(call ToolCall, output string, err error) {
	data := map[string]interface{}{
		"call_id":   call.ID,
		"tool_name": call.Name,
		"output":    output,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	s.emit(EventToolEnd, data)
}

// Events returns the read-only event channel.
func (s *EventSink) Events() <-chan Event {
	return s.ch
}

// Dropped returns how many events were discarded on a full buffer.
func (s *EventSink) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Close closes the channel. Safe to call more than once.
func (s *EventSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}
