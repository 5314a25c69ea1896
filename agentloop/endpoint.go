package agentloop

import (
	"context"
	"fmt"
	"sync"
)

// EndpointCache memoizes the endpoint of the running turn. The provider is
// consulted at most once between acquire and release.
type EndpointCache struct {
	provider EndpointProvider
	endpoint Endpoint
	mu       sync.Mutex
}

// NewEndpointCache creates a cache over provider.
func NewEndpointCache(provider EndpointProvider) *EndpointCache {
	return &EndpointCache{provider: provider}
}

// acquire starts a turn scope. The returned release func empties the cache
// and must be deferred so every exit path clears it.
func (c *EndpointCache) acquire() (release func()) {
	c.clear()
	return c.clear
}

func (c *EndpointCache) clear() {
	c.mu.Lock()
	c.endpoint = nil
	c.mu.Unlock()
}

// Get returns the cached endpoint, resolving it on first use.
func (c *EndpointCache) Get(ctx context.Context, req TurnRequest) (Endpoint, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.endpoint != nil {
		return c.endpoint, nil
	}
	endpoint, err := c.provider.Resolve(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("resolve endpoint: %w", err)
	}
	if endpoint == nil {
		return nil, fmt.Errorf("resolve endpoint: provider returned no endpoint for model %q", req.Model)
	}
	c.endpoint = endpoint
	return endpoint, nil
}

// Cached returns the memoized endpoint, or nil outside a turn.
func (c *EndpointCache) Cached() Endpoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.endpoint
}
