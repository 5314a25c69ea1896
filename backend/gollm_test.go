package backend

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractToolCallsWrapped(t *testing.T) {
	text := `Let me look. {"tool_calls": [{"id": "c1", "name": "read_file", "arguments": {"path": "a.go"}}]} Done.`
	prose, calls := extractToolCalls(text)
	require.Len(t, calls, 1)
	assert.Equal(t, "c1", calls[0].ID)
	assert.Equal(t, "read_file", calls[0].Name)
	assert.JSONEq(t, `{"path": "a.go"}`, string(calls[0].Arguments))
	assert.Equal(t, "Let me look. Done.", prose)
}

func TestExtractToolCallsBareArray(t *testing.T) {
	prose, calls := extractToolCalls(`[{"name": "list_files"}, {"name": ""}]`)
	require.Len(t, calls, 1)
	assert.Equal(t, "list_files", calls[0].Name)
	assert.NotEmpty(t, calls[0].ID)
	assert.Equal(t, json.RawMessage("{}"), calls[0].Arguments)
	assert.Empty(t, prose)
}

func TestExtractToolCallsPlainText(t *testing.T) {
	prose, calls := extractToolCalls("just an answer")
	assert.Nil(t, calls)
	assert.Equal(t, "just an answer", prose)

	prose, calls = extractToolCalls(`broken {"tool_calls": [`)
	assert.Nil(t, calls)
	assert.Equal(t, `broken {"tool_calls": [`, prose)
}

func TestGollmBuildResponse(t *testing.T) {
	a := &GollmAdapter{provider: "openai", model: "gpt-4o-mini", count: ApproximateTokens}
	req := Request{Messages: []Message{SystemMessage("be brief"), UserMessage("hello there")}}

	resp := a.buildResponse(req, `[{"name": "read_file", "arguments": {"path": "x"}}]`)
	assert.Equal(t, "gpt-4o-mini", resp.Model)
	assert.Equal(t, "openai", resp.Provider)
	assert.Equal(t, "tool_calls", resp.FinishReason.Reason)
	assert.NotEmpty(t, resp.ID)
	assert.Empty(t, resp.StateID)
	require.Len(t, resp.ToolCalls(), 1)
	assert.Equal(t, ApproximateTokens("be brief")+ApproximateTokens("hello there"), resp.Usage.InputTokens)
	assert.Equal(t, resp.Usage.InputTokens+resp.Usage.OutputTokens, resp.Usage.TotalTokens)

	resp = a.buildResponse(Request{Model: "gpt-5.2"}, "plain")
	assert.Equal(t, "gpt-5.2", resp.Model)
	assert.Equal(t, "stop", resp.FinishReason.Reason)
	assert.Equal(t, "plain", resp.Text())
}

func TestGollmClassify(t *testing.T) {
	a := &GollmAdapter{provider: "anthropic"}

	var auth *AuthenticationError
	assert.ErrorAs(t, a.classify(errors.New("HTTP 401 Unauthorized")), &auth)

	var rl *RateLimitError
	err := a.classify(errors.New("rate limit exceeded"))
	require.ErrorAs(t, err, &rl)
	assert.True(t, IsRetryable(err))

	var ctxLen *ContextLengthError
	assert.ErrorAs(t, a.classify(errors.New("prompt exceeds context length")), &ctxLen)

	var pe *ProviderError
	err = a.classify(errors.New("something odd"))
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "anthropic", pe.Provider)
	assert.True(t, IsRetryable(err))
}

func TestApproximateTokens(t *testing.T) {
	assert.Equal(t, 0, ApproximateTokens(""))
	assert.Equal(t, 1, ApproximateTokens("abc"))
	assert.Equal(t, 3, ApproximateTokens("hello world!"))
}
