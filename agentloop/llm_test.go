package agentloop

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/martinemde/toolloop/backend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompleter struct {
	responses []*backend.Response
	errs      []error
	requests  []backend.Request
}

func (f *fakeCompleter) Complete(_ context.Context, req backend.Request) (*backend.Response, error) {
	i := len(f.requests)
	f.requests = append(f.requests, req)
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	return f.responses[i], nil
}

func testEndpoint() Endpoint {
	return ModelEndpoint{Info: backend.ModelInfo{ID: "claude-sonnet-4-5", Provider: "anthropic", ContextWindow: 200000}}
}

func TestClientFetcherMapsRequestAndResponse(t *testing.T) {
	msg := backend.AssistantMessage("checking")
	msg.Content = append(msg.Content,
		backend.ThinkingPart("first I", "sig-1"),
		backend.ToolCallPart("c1", "read_file", json.RawMessage(`{"path":"go.mod"}`)),
	)
	reasoning := 12
	completer := &fakeCompleter{responses: []*backend.Response{{
		ID:           "resp_1",
		StateID:      "state_1",
		Message:      msg,
		FinishReason: backend.FinishReason{Reason: "tool_calls"},
		Usage:        backend.Usage{InputTokens: 100, OutputTokens: 20, ReasoningTokens: &reasoning},
	}}}
	fetcher := NewClientFetcher(completer, nil)

	prompt := Prompt{
		Messages:       []backend.Message{backend.UserMessage("hi")},
		Tools:          []backend.ToolDefinition{{Name: "read_file"}},
		StatefulMarker: "resp_0",
	}
	res, err := fetcher.Fetch(context.Background(), testEndpoint(), prompt)
	require.NoError(t, err)

	require.Len(t, completer.requests, 1)
	req := completer.requests[0]
	assert.Equal(t, "claude-sonnet-4-5", req.Model)
	assert.Equal(t, "anthropic", req.Provider)
	assert.Equal(t, "resp_0", req.PreviousID)
	require.NotNil(t, req.ToolChoice)
	assert.Equal(t, "auto", req.ToolChoice.Mode)

	assert.Equal(t, "checking", res.Text)
	assert.Equal(t, "state_1", res.StatefulMarker)
	assert.False(t, res.Continue)
	assert.Equal(t, []ToolCall{{ID: "c1", Name: "read_file", Arguments: `{"path":"go.mod"}`}}, res.ToolCalls)
	require.Len(t, res.Thinking, 1)
	assert.Equal(t, "first I", res.Thinking[0].Text)
	assert.Equal(t, "sig-1", res.Thinking[0].Metadata["signature"])
	require.NotNil(t, res.Usage)
	assert.Equal(t, 100, res.Usage.InputTokens)
}

func TestClientFetcherContinuesOnLength(t *testing.T) {
	completer := &fakeCompleter{responses: []*backend.Response{{
		ID:           "resp_2",
		Message:      backend.AssistantMessage("cut off mid"),
		FinishReason: backend.FinishReason{Reason: "length"},
	}}}
	res, err := NewClientFetcher(completer, nil).Fetch(context.Background(), testEndpoint(), Prompt{})
	require.NoError(t, err)
	assert.True(t, res.Continue)
	assert.Empty(t, res.StatefulMarker)
	assert.Nil(t, completer.requests[0].ToolChoice)
}

func TestClientFetcherRetries(t *testing.T) {
	completer := &fakeCompleter{
		errs:      []error{backend.ErrorFromStatusCode(503, "overloaded", "anthropic", nil), nil},
		responses: []*backend.Response{nil, {Message: backend.AssistantMessage("ok")}},
	}
	fetcher := NewClientFetcher(completer, nil).WithRetryPolicy(backend.RetryPolicy{
		MaxRetries: 2,
		BaseDelay:  time.Millisecond,
		MaxDelay:   time.Millisecond,
	})

	res, err := fetcher.Fetch(context.Background(), testEndpoint(), Prompt{})
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Text)
	assert.Len(t, completer.requests, 2)
}

func TestClientFetcherDoesNotRetryAuthErrors(t *testing.T) {
	completer := &fakeCompleter{errs: []error{backend.ErrorFromStatusCode(401, "bad key", "openai", nil)}}
	fetcher := NewClientFetcher(completer, nil).WithRetryPolicy(backend.RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond})

	_, err := fetcher.Fetch(context.Background(), testEndpoint(), Prompt{})
	var auth *backend.AuthenticationError
	require.ErrorAs(t, err, &auth)
	assert.Len(t, completer.requests, 1)
}

func TestCatalogEndpointProvider(t *testing.T) {
	ctx := context.Background()
	p := CatalogEndpointProvider{DefaultProvider: "anthropic"}

	ep, err := p.Resolve(ctx, TurnRequest{Model: "sonnet"})
	require.NoError(t, err)
	assert.Equal(t, "claude-sonnet-4-5", ep.Model())
	assert.Equal(t, "anthropic", ep.Provider())
	assert.Equal(t, 200000, ep.(ModelEndpoint).ContextWindow())

	ep, err = p.Resolve(ctx, TurnRequest{})
	require.NoError(t, err)
	assert.Equal(t, "claude-opus-4-6", ep.Model())

	ep, err = p.Resolve(ctx, TurnRequest{Model: "my-finetune"})
	require.NoError(t, err)
	assert.Equal(t, "my-finetune", ep.Model())
	assert.Equal(t, "anthropic", ep.Provider())

	ep, err = p.Resolve(ctx, TurnRequest{Model: "gpt-5.2", Provider: "openai"})
	require.NoError(t, err)
	assert.Equal(t, "openai", ep.Provider())

	_, err = CatalogEndpointProvider{}.Resolve(ctx, TurnRequest{Model: "mystery"})
	assert.Error(t, err)
	_, err = CatalogEndpointProvider{DefaultProvider: "nobody"}.Resolve(ctx, TurnRequest{})
	assert.Error(t, err)
}
