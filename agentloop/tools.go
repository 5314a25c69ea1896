package agentloop

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/martinemde/toolloop/backend"
)

// ToolHandler runs a tool with validated JSON input.
type ToolHandler func(ctx context.Context, input json.RawMessage) (string, error)

// RegisteredTool pairs a definition with its handler and compiled schema.
type RegisteredTool struct {
	Definition backend.ToolDefinition
	Handler    ToolHandler
	schema     *openapi3.Schema
}

// ToolRegistry holds the tools available to a turn. It is both the
// ToolExecutor and the ToolValidator of the loop.
type ToolRegistry struct {
	tools map[string]*RegisteredTool
	mu    sync.RWMutex
}

// NewToolRegistry creates an empty ToolRegistry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]*RegisteredTool)}
}

// Register adds or replaces a tool. The parameters must be a JSON Schema
// object; an empty schema accepts any object.
func (r *ToolRegistry) Register(def backend.ToolDefinition, handler ToolHandler) error {
	if def.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	if handler == nil {
		return fmt.Errorf("tool %s: handler is required", def.Name)
	}
	schema, err := compileSchema(def.Parameters)
	if err != nil {
		return fmt.Errorf("tool %s: %w", def.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[def.Name] = &RegisteredTool{Definition: def, Handler: handler, schema: schema}
	return nil
}

func compileSchema(params map[string]interface{}) (*openapi3.Schema, error) {
	if len(params) == 0 {
		return openapi3.NewObjectSchema(), nil
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal parameters: %w", err)
	}
	schema := &openapi3.Schema{}
	if err := json.Unmarshal(raw, schema); err != nil {
		return nil, fmt.Errorf("parse parameters schema: %w", err)
	}
	return schema, nil
}

// Unregister removes a tool.
func (r *ToolRegistry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
}

// Get returns a registered tool by name, or nil.
func (r *ToolRegistry) Get(name string) *RegisteredTool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// Definitions returns the tool definitions sorted by name.
func (r *ToolRegistry) Definitions() []backend.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]backend.ToolDefinition, 0, len(r.tools))
	for _, tool := range r.tools {
		defs = append(defs, tool.Definition)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Names returns the sorted tool names.
func (r *ToolRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered tools.
func (r *ToolRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Clone returns an independent copy of the registry.
func (r *ToolRegistry) Clone() *ToolRegistry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	clone := NewToolRegistry()
	for name, tool := range r.tools {
		cloned := *tool
		clone.tools[name] = &cloned
	}
	return clone
}

// Validate checks rawInput against the named tool's schema and returns the
// input to invoke it with. Failures are *ToolInputError.
func (r *ToolRegistry) Validate(name, rawInput string) (json.RawMessage, error) {
	tool := r.Get(name)
	if tool == nil {
		return nil, &ToolInputError{Tool: name, Reason: fmt.Sprintf("unknown tool %q; available tools: %s", name, strings.Join(r.Names(), ", "))}
	}
	if strings.TrimSpace(rawInput) == "" {
		rawInput = "{}"
	}
	var value interface{}
	if err := json.Unmarshal([]byte(rawInput), &value); err != nil {
		return nil, &ToolInputError{Tool: name, Reason: "arguments are not valid JSON", Err: err}
	}
	if err := tool.schema.VisitJSON(value); err != nil {
		return nil, &ToolInputError{Tool: name, Reason: "arguments do not match the tool schema", Err: err}
	}
	return json.RawMessage(rawInput), nil
}

// Invoke runs the named tool.
func (r *ToolRegistry) Invoke(ctx context.Context, name string, input json.RawMessage) (string, error) {
	tool := r.Get(name)
	if tool == nil {
		return "", fmt.Errorf("unknown tool: %s", name)
	}
	return tool.Handler(ctx, input)
}

// ParseToolArguments unmarshals tool input into a map.
func ParseToolArguments(raw json.RawMessage) (map[string]interface{}, error) {
	var args map[string]interface{}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("invalid tool arguments: %w", err)
	}
	return args, nil
}

// GetStringArg extracts a string argument.
func GetStringArg(args map[string]interface{}, key string) (string, bool) {
	s, ok := args[key].(string)
	return s, ok
}

// GetIntArg extracts an integer argument. JSON numbers decode as float64.
func GetIntArg(args map[string]interface{}, key string) (int, bool) {
	switch n := args[key].(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	default:
		return 0, false
	}
}
