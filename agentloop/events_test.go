package agentloop

import (
	"errors"
	"sync"
	"testing"

	"github.com/martinemde/toolloop/backend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventSinkEmitsInOrder(t *testing.T) {
	sink := NewEventSink("turn-1", 8)
	call := ToolCall{ID: "c1", Name: "echo", Arguments: `{"text":"x"}`}

	sink.Text("hello")
	sink.ToolStart(call)
	sink.ToolEnd(call, "x", errors.New("failed"))
	sink.Warning("careful")
	sink.Close()

	var events []Event
	for ev := range sink.Events() {
		events = append(events, ev)
	}
	require.Len(t, events, 4)
	assert.Equal(t, EventText, events[0].Kind)
	assert.Equal(t, "turn-1", events[0].TurnID)
	assert.Equal(t, "hello", events[0].Data["text"])
	assert.Equal(t, EventToolStart, events[1].Kind)
	assert.Equal(t, "echo", events[1].Data["tool_name"])
	assert.Equal(t, "failed", events[2].Data["error"])
	assert.Equal(t, EventWarning, events[3].Kind)
	assert.False(t, events[0].Timestamp.IsZero())
}

func TestEventSinkDropsWhenFull(t *testing.T) {
	sink := NewEventSink("t", 1)
	sink.Text("a")
	sink.Text("b")
	sink.Text("c")
	assert.Equal(t, 2, sink.Dropped())

	sink.Close()
	sink.Close()
	sink.Text("after close")
	assert.Equal(t, 2, sink.Dropped())
}

func TestUsageTotals(t *testing.T) {
	u := &UsageTotals{}
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			u.Report(3, 1)
		}()
	}
	wg.Wait()
	u.Aggregate(backend.Usage{InputTokens: 5, OutputTokens: 2})

	prompt, completion := u.Totals()
	assert.Equal(t, 35, prompt)
	assert.Equal(t, 12, completion)
	assert.Equal(t, 10, u.Reports())
}
