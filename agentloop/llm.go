package agentloop

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/martinemde/toolloop/backend"
)

// Completer is the part of backend.Client the fetcher needs.
type Completer interface {
	Complete(ctx context.Context, req backend.Request) (*backend.Response, error)
}

// ClientFetcher implements Fetcher on a backend client with retries.
type ClientFetcher struct {
	client Completer
	policy backend.RetryPolicy
	logger *slog.Logger
}

// NewClientFetcher creates a fetcher using the default retry policy.
func NewClientFetcher(client Completer, logger *slog.Logger) *ClientFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	f := &ClientFetcher{client: client, policy: backend.DefaultRetryPolicy(), logger: logger}
	f.policy.OnRetry = func(err error, attempt int, delay time.Duration) {
		f.logger.Warn("[Fetch] retrying", "attempt", attempt, "delay", delay, "error", err)
	}
	return f
}

// WithRetryPolicy replaces the retry policy, keeping the retry logging when
// the new policy has none.
func (f *ClientFetcher) WithRetryPolicy(policy backend.RetryPolicy) *ClientFetcher {
	if policy.OnRetry == nil {
		policy.OnRetry = f.policy.OnRetry
	}
	f.policy = policy
	return f
}

// Fetch implements Fetcher. A "length" finish reason asks the loop to
// continue. The stateful marker is the backend's StateID, empty for
// stateless backends.
func (f *ClientFetcher) Fetch(ctx context.Context, endpoint Endpoint, prompt Prompt) (FetchResult, error) {
	req := backend.Request{
		Model:      endpoint.Model(),
		Provider:   endpoint.Provider(),
		Messages:   prompt.Messages,
		ToolDefs:   prompt.Tools,
		PreviousID: prompt.StatefulMarker,
	}
	if len(prompt.Tools) > 0 {
		req.ToolChoice = &backend.ToolChoice{Mode: "auto"}
	}

	resp, err := backend.Retry(ctx, f.policy, func(ctx context.Context) (*backend.Response, error) {
		return f.client.Complete(ctx, req)
	})
	if err != nil {
		return FetchResult{}, err
	}

	result := FetchResult{
		Text:           resp.Text(),
		Continue:       resp.FinishReason.Reason == "length",
		StatefulMarker: resp.StateID,
	}
	usage := resp.Usage
	result.Usage = &usage
	for _, tc := range resp.ToolCalls() {
		result.ToolCalls = append(result.ToolCalls, ToolCall{ID: tc.ID, Name: tc.Name, Arguments: string(tc.Arguments)})
	}
	for _, th := range resp.Thinking() {
		delta := ThinkingDelta{Text: th.Text, Encrypted: th.Encrypted}
		if th.Signature != "" {
			delta.Metadata = map[string]interface{}{"signature": th.Signature}
		}
		result.Thinking = append(result.Thinking, delta)
	}
	return result, nil
}

// ModelEndpoint is an Endpoint backed by a catalog entry.
type ModelEndpoint struct {
	Info backend.ModelInfo
}

func (e ModelEndpoint) Model() string    { return e.Info.ID }
func (e ModelEndpoint) Provider() string { return e.Info.Provider }

// ContextWindow returns the model's context size in tokens, 0 if unknown.
func (e ModelEndpoint) ContextWindow() int { return e.Info.ContextWindow }

// CatalogEndpointProvider resolves the turn's model through the backend
// catalog. Unknown models are accepted when a provider is known.
type CatalogEndpointProvider struct {
	DefaultModel    string
	DefaultProvider string
}

// Resolve implements EndpointProvider.
func (p CatalogEndpointProvider) Resolve(_ context.Context, req TurnRequest) (Endpoint, error) {
	model := req.Model
	if model == "" {
		model = p.DefaultModel
	}
	provider := req.Provider
	if provider == "" {
		provider = p.DefaultProvider
	}

	if model == "" {
		if info := backend.DefaultModelFor(provider); info != nil {
			return ModelEndpoint{Info: *info}, nil
		}
		return nil, fmt.Errorf("no model configured for provider %q", provider)
	}
	if info := backend.LookupModel(model); info != nil && (provider == "" || provider == info.Provider) {
		return ModelEndpoint{Info: *info}, nil
	}
	if provider == "" {
		return nil, fmt.Errorf("unknown model %q and no provider configured", model)
	}
	return ModelEndpoint{Info: backend.ModelInfo{ID: model, Provider: provider, DisplayName: model}}, nil
}
