package backend

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Handler performs one Complete exchange.
type Handler func(ctx context.Context, req Request) (*Response, error)

// Middleware wraps a Handler. The first registered middleware is outermost.
type Middleware func(ctx context.Context, req Request, next Handler) (*Response, error)

// Client routes requests to registered adapters.
type Client struct {
	adapters        map[string]Adapter
	defaultProvider string
	middleware      []Middleware
	mu              sync.RWMutex
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithAdapter registers an adapter under the given provider name.
func WithAdapter(name string, adapter Adapter) ClientOption {
	return func(c *Client) {
		c.adapters[name] = adapter
	}
}

// WithDefaultProvider sets the provider used when a request names none.
func WithDefaultProvider(name string) ClientOption {
	return func(c *Client) {
		c.defaultProvider = name
	}
}

// WithMiddleware appends middleware to the client.
func WithMiddleware(mw ...Middleware) ClientOption {
	return func(c *Client) {
		c.middleware = append(c.middleware, mw...)
	}
}

// NewClient creates a Client. With exactly one adapter and no explicit
// default, that adapter becomes the default.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{adapters: make(map[string]Adapter)}
	for _, opt := range opts {
		opt(c)
	}
	if c.defaultProvider == "" && len(c.adapters) == 1 {
		for name := range c.adapters {
			c.defaultProvider = name
		}
	}
	return c
}

// Register adds an adapter after construction.
func (c *Client) Register(name string, adapter Adapter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.adapters[name] = adapter
	if c.defaultProvider == "" {
		c.defaultProvider = name
	}
}

// Providers returns the registered provider names, sorted.
func (c *Client) Providers() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.adapters))
	for name := range c.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultProvider returns the provider used for requests that name none.
func (c *Client) DefaultProvider() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.defaultProvider
}

// HasProvider reports whether an adapter is registered under name.
func (c *Client) HasProvider(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.adapters[name]
	return ok
}

func (c *Client) adapterFor(req Request) (Adapter, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	name := req.Provider
	if name == "" {
		if info := LookupModel(req.Model); info != nil {
			if _, ok := c.adapters[info.Provider]; ok {
				name = info.Provider
			}
		}
	}
	if name == "" {
		name = c.defaultProvider
	}
	if name == "" {
		return nil, &ConfigurationError{SDKError{Message: "no provider specified and no default provider configured"}}
	}
	adapter, ok := c.adapters[name]
	if !ok {
		return nil, &ConfigurationError{SDKError{Message: fmt.Sprintf("provider %q is not registered", name)}}
	}
	return adapter, nil
}

// Complete sends the request through the middleware chain to its adapter.
func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	adapter, err := c.adapterFor(req)
	if err != nil {
		return nil, err
	}
	if req.Provider == "" {
		req.Provider = adapter.Name()
	}

	handler := Handler(adapter.Complete)
	c.mu.RLock()
	chain := append([]Middleware(nil), c.middleware...)
	c.mu.RUnlock()
	for i := len(chain) - 1; i >= 0; i-- {
		mw, next := chain[i], handler
		handler = func(ctx context.Context, r Request) (*Response, error) {
			return mw(ctx, r, next)
		}
	}
	return handler(ctx, req)
}

// Close releases adapter resources and returns the first failure.
func (c *Client) Close() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var firstErr error
	for _, adapter := range c.adapters {
		if closer, ok := adapter.(Closer); ok {
			if err := closer.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// NewClientFromEnv registers a gollm adapter for every provider whose
// credentials gollm can find in the environment.
func NewClientFromEnv(providers ...string) *Client {
	if len(providers) == 0 {
		providers = []string{"openai", "anthropic"}
	}
	c := NewClient()
	for _, provider := range providers {
		adapter, err := NewGollmAdapter(provider, "")
		if err == nil {
			c.Register(provider, adapter)
		}
	}
	return c
}
