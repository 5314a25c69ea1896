package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/teilomillet/gollm"
)

// GollmAdapter implements Adapter on top of a gollm.LLM.
type GollmAdapter struct {
	provider string
	llm      gollm.LLM
	model    string
	count    TokenCounter
}

// GollmAdapterOption configures a GollmAdapter.
type GollmAdapterOption func(*gollmConfig)

type gollmConfig struct {
	model       string
	maxTokens   int
	temperature float64
	counter     TokenCounter
	extra       []gollm.ConfigOption
}

// WithModel sets the adapter's default model.
func WithModel(model string) GollmAdapterOption {
	return func(c *gollmConfig) { c.model = model }
}

// WithMaxTokens sets the default completion budget.
func WithMaxTokens(n int) GollmAdapterOption {
	return func(c *gollmConfig) { c.maxTokens = n }
}

// WithTemperature sets the default sampling temperature.
func WithTemperature(t float64) GollmAdapterOption {
	return func(c *gollmConfig) { c.temperature = t }
}

// WithTokenCounter overrides the usage estimator (CountTokens by default).
func WithTokenCounter(counter TokenCounter) GollmAdapterOption {
	return func(c *gollmConfig) { c.counter = counter }
}

// WithGollmOptions passes extra options straight to gollm.
func WithGollmOptions(opts ...gollm.ConfigOption) GollmAdapterOption {
	return func(c *gollmConfig) { c.extra = append(c.extra, opts...) }
}

// NewGollmAdapter creates an adapter for provider. An empty apiKey lets gollm
// read the provider's key from the environment.
func NewGollmAdapter(provider, apiKey string, opts ...GollmAdapterOption) (*GollmAdapter, error) {
	cfg := &gollmConfig{maxTokens: 4096, temperature: 0.7, counter: CountTokens}
	for _, opt := range opts {
		opt(cfg)
	}

	model := cfg.model
	if model == "" {
		if info := DefaultModelFor(provider); info != nil {
			model = info.ID
		} else {
			model = "gpt-4o-mini"
		}
	}

	gollmOpts := []gollm.ConfigOption{
		gollm.SetProvider(provider),
		gollm.SetModel(model),
		gollm.SetMaxTokens(cfg.maxTokens),
		gollm.SetTemperature(cfg.temperature),
		gollm.SetMaxRetries(0), // Retry lives in this package.
		gollm.SetLogLevel(gollm.LogLevelWarn),
	}
	if apiKey != "" {
		gollmOpts = append(gollmOpts, gollm.SetAPIKey(apiKey))
	}
	gollmOpts = append(gollmOpts, cfg.extra...)

	llm, err := gollm.NewLLM(gollmOpts...)
	if err != nil {
		return nil, fmt.Errorf("create gollm LLM for provider %s: %w", provider, err)
	}
	return &GollmAdapter{provider: provider, llm: llm, model: model, count: cfg.counter}, nil
}

// NewGollmAdapterFromLLM wraps an existing gollm.LLM.
func NewGollmAdapterFromLLM(provider, model string, llm gollm.LLM) *GollmAdapter {
	return &GollmAdapter{provider: provider, llm: llm, model: model, count: CountTokens}
}

// Name returns the provider identifier.
func (a *GollmAdapter) Name() string { return a.provider }

// Complete renders the request as a gollm prompt and generates a response.
func (a *GollmAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	prompt := a.buildPrompt(req)
	if req.Model != "" {
		a.llm.SetOption("model", req.Model)
	}
	if req.Temperature != nil {
		a.llm.SetOption("temperature", *req.Temperature)
	}
	if req.MaxTokens != nil {
		a.llm.SetOption("max_tokens", *req.MaxTokens)
	}

	text, err := a.llm.Generate(ctx, prompt)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &AbortError{SDKError{Message: "generation cancelled", Cause: ctx.Err()}}
		}
		return nil, a.classify(err)
	}
	return a.buildResponse(req, text), nil
}

// buildPrompt flattens the conversation into gollm's single-prompt shape.
func (a *GollmAdapter) buildPrompt(req Request) *gollm.Prompt {
	var system []string
	var turns []string
	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			system = append(system, msg.TextContent())
		case RoleUser:
			turns = append(turns, msg.TextContent())
		case RoleAssistant:
			if text := msg.TextContent(); text != "" {
				turns = append(turns, "[Assistant]: "+text)
			}
			for _, call := range msg.ToolCalls() {
				turns = append(turns, fmt.Sprintf("[Tool Call %s]: %s %s", call.ID, call.Name, string(call.Arguments)))
			}
		case RoleTool:
			for _, part := range msg.Content {
				if part.Kind != PartToolResult || part.ToolResult == nil {
					continue
				}
				label := "[Tool Result " + part.ToolResult.ToolCallID + "]"
				if part.ToolResult.IsError {
					label = "[Tool Error " + part.ToolResult.ToolCallID + "]"
				}
				turns = append(turns, label+": "+part.ToolResult.Content)
			}
		}
	}

	text := strings.Join(turns, "\n")
	if text == "" {
		text = "Hello"
	}

	var opts []gollm.PromptOption
	if len(system) > 0 {
		opts = append(opts, gollm.WithSystemPrompt(strings.TrimSpace(strings.Join(system, "\n")), gollm.CacheTypeEphemeral))
	}
	if req.MaxTokens != nil {
		opts = append(opts, gollm.WithMaxLength(*req.MaxTokens))
	}
	if len(req.ToolDefs) > 0 {
		tools := make([]gollm.Tool, 0, len(req.ToolDefs))
		for _, def := range req.ToolDefs {
			tools = append(tools, gollm.Tool{
				Type: "function",
				Function: gollm.Function{
					Name:        def.Name,
					Description: def.Description,
					Parameters:  def.Parameters,
				},
			})
		}
		opts = append(opts, gollm.WithTools(tools))
	}
	if req.ToolChoice != nil {
		opts = append(opts, gollm.WithToolChoice(req.ToolChoice.Mode))
	}
	return gollm.NewPrompt(text, opts...)
}

func (a *GollmAdapter) buildResponse(req Request, text string) *Response {
	model := req.Model
	if model == "" {
		model = a.model
	}

	prose, calls := extractToolCalls(text)
	var parts []ContentPart
	if prose != "" {
		parts = append(parts, TextPart(prose))
	}
	for i := range calls {
		parts = append(parts, ContentPart{Kind: PartToolCall, ToolCall: &calls[i]})
	}

	finish := FinishReason{Reason: "stop", Raw: "stop"}
	if len(calls) > 0 {
		finish = FinishReason{Reason: "tool_calls", Raw: "tool_calls"}
	}

	// gollm does not surface provider usage, so both sides are estimated.
	count := a.count
	if count == nil {
		count = ApproximateTokens
	}
	input := 0
	for _, msg := range req.Messages {
		for _, part := range msg.Content {
			switch part.Kind {
			case PartText:
				input += count(part.Text)
			case PartToolResult:
				input += count(part.ToolResult.Content)
			}
		}
	}
	output := count(text)

	return &Response{
		ID:           "resp_" + uuid.NewString()[:8],
		Model:        model,
		Provider:     a.provider,
		Message:      Message{Role: RoleAssistant, Content: parts},
		FinishReason: finish,
		Usage:        Usage{InputTokens: input, OutputTokens: output, TotalTokens: input + output},
	}
}

// extractToolCalls splits generated text into prose and tool calls emitted as
// JSON, either {"tool_calls": [...]} or a bare [{"name": ...}] array.
func extractToolCalls(text string) (string, []ToolCallData) {
	type rawCall struct {
		ID        string          `json:"id"`
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}

	start := strings.Index(text, `{"tool_calls"`)
	if start == -1 {
		start = strings.Index(text, `[{"name"`)
	}
	if start == -1 {
		return text, nil
	}

	var raw []rawCall
	dec := json.NewDecoder(strings.NewReader(text[start:]))
	if text[start] == '{' {
		var wrapper struct {
			ToolCalls []rawCall `json:"tool_calls"`
		}
		if err := dec.Decode(&wrapper); err != nil {
			return text, nil
		}
		raw = wrapper.ToolCalls
	} else if err := dec.Decode(&raw); err != nil {
		return text, nil
	}

	calls := make([]ToolCallData, 0, len(raw))
	for _, rc := range raw {
		if rc.Name == "" {
			continue
		}
		id := rc.ID
		if id == "" {
			id = "call_" + uuid.NewString()[:8]
		}
		args := rc.Arguments
		if len(bytes.TrimSpace(args)) == 0 {
			args = json.RawMessage("{}")
		}
		calls = append(calls, ToolCallData{ID: id, Name: rc.Name, Arguments: args})
	}
	rest := text[start+int(dec.InputOffset()):]
	prose := strings.TrimSpace(strings.TrimSpace(text[:start]) + " " + strings.TrimSpace(rest))
	return prose, calls
}

// classify maps a gollm error onto the backend error hierarchy by message.
func (a *GollmAdapter) classify(err error) error {
	msg := err.Error()
	lower := strings.ToLower(msg)
	pe := ProviderError{SDKError: SDKError{Message: msg, Cause: err}, Provider: a.provider}
	switch {
	case strings.Contains(lower, "401") || strings.Contains(lower, "unauthorized") || strings.Contains(lower, "invalid api key"):
		pe.StatusCode = 401
		return &AuthenticationError{pe}
	case strings.Contains(lower, "403") || strings.Contains(lower, "forbidden"):
		pe.StatusCode = 403
		return &AccessDeniedError{pe}
	case strings.Contains(lower, "404") || strings.Contains(lower, "not found"):
		pe.StatusCode = 404
		return &NotFoundError{pe}
	case strings.Contains(lower, "429") || strings.Contains(lower, "rate limit"):
		pe.StatusCode, pe.Retryable = 429, true
		return &RateLimitError{pe}
	case strings.Contains(lower, "context length") || strings.Contains(lower, "too many tokens"):
		pe.StatusCode = 413
		return &ContextLengthError{pe}
	case strings.Contains(lower, "500") || strings.Contains(lower, "internal server"):
		pe.StatusCode, pe.Retryable = 500, true
		return &ServerError{pe}
	case strings.Contains(lower, "timeout"):
		return &RequestTimeoutError{SDKError{Message: msg, Cause: err}}
	case strings.Contains(lower, "content filter") || strings.Contains(lower, "safety"):
		return &ContentFilterError{pe}
	default:
		pe.Retryable = true
		return &pe
	}
}
