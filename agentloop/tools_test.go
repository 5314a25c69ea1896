package agentloop

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/martinemde/toolloop/backend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolRegistryValidate(t *testing.T) {
	reg := echoTools(t)

	input, err := reg.Validate("echo", `{"text":"hi"}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"text":"hi"}`, string(input))

	tests := []struct {
		name   string
		tool   string
		raw    string
		reason string
	}{
		{"unknown tool", "shell", `{}`, `unknown tool "shell"; available tools: echo`},
		{"bad json", "echo", `{"text":`, "arguments are not valid JSON"},
		{"missing field", "echo", `{}`, "arguments do not match the tool schema"},
		{"wrong type", "echo", `{"text":42}`, "arguments do not match the tool schema"},
		{"empty input", "echo", "  ", "arguments do not match the tool schema"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := reg.Validate(tt.tool, tt.raw)
			var inputErr *ToolInputError
			require.ErrorAs(t, err, &inputErr)
			assert.Equal(t, tt.tool, inputErr.Tool)
			assert.Equal(t, tt.reason, inputErr.Reason)
			assert.Contains(t, inputErr.Hint(), "The tool was not run.")
		})
	}
}

func TestToolRegistryEmptySchemaAcceptsObjects(t *testing.T) {
	reg := NewToolRegistry()
	require.NoError(t, reg.Register(backend.ToolDefinition{Name: "noop"}, func(context.Context, json.RawMessage) (string, error) {
		return "ok", nil
	}))

	input, err := reg.Validate("noop", "")
	require.NoError(t, err)
	assert.Equal(t, json.RawMessage("{}"), input)

	_, err = reg.Validate("noop", `{"anything":[1,2]}`)
	assert.NoError(t, err)
}

func TestToolRegistryRegisterErrors(t *testing.T) {
	reg := NewToolRegistry()
	handler := func(context.Context, json.RawMessage) (string, error) { return "", nil }

	assert.Error(t, reg.Register(backend.ToolDefinition{}, handler))
	assert.Error(t, reg.Register(backend.ToolDefinition{Name: "x"}, nil))
	assert.Equal(t, 0, reg.Count())
}

func TestToolRegistryListingAndClone(t *testing.T) {
	reg := echoTools(t)
	handler := func(context.Context, json.RawMessage) (string, error) { return "", nil }
	require.NoError(t, reg.Register(backend.ToolDefinition{Name: "alpha"}, handler))

	assert.Equal(t, []string{"alpha", "echo"}, reg.Names())
	defs := reg.Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, "alpha", defs[0].Name)

	clone := reg.Clone()
	clone.Unregister("alpha")
	assert.Equal(t, 2, reg.Count())
	assert.Equal(t, 1, clone.Count())
	assert.Nil(t, clone.Get("alpha"))
}

func TestToolRegistryInvoke(t *testing.T) {
	reg := echoTools(t)
	out, err := reg.Invoke(context.Background(), "echo", json.RawMessage(`{"text":"hello"}`))
	require.NoError(t, err)
	assert.Equal(t, "hello", out)

	_, err = reg.Invoke(context.Background(), "missing", nil)
	assert.ErrorContains(t, err, "unknown tool")
}

func TestGetArgs(t *testing.T) {
	args, err := ParseToolArguments(json.RawMessage(`{"path":"a.go","offset":3,"flag":true}`))
	require.NoError(t, err)

	path, ok := GetStringArg(args, "path")
	assert.True(t, ok)
	assert.Equal(t, "a.go", path)

	offset, ok := GetIntArg(args, "offset")
	assert.True(t, ok)
	assert.Equal(t, 3, offset)

	_, ok = GetIntArg(args, "flag")
	assert.False(t, ok)
	_, ok = GetStringArg(args, "missing")
	assert.False(t, ok)

	_, err = ParseToolArguments(json.RawMessage(`[1]`))
	assert.Error(t, err)
}
