package agentloop

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
)

// HookCallback is one hook handler.
type HookCallback func(ctx context.Context, input HookInput) (HookResult, error)

// HookMatcher supplies the callbacks for one registration.
type HookMatcher interface {
	Hooks() []HookCallback
}

// HookCallbacks is a HookMatcher that always applies.
type HookCallbacks []HookCallback

func (h HookCallbacks) Hooks() []HookCallback { return h }

// ToolMatcher applies its callbacks only to tools whose name matches Pattern.
// A nil Pattern matches every tool.
type ToolMatcher struct {
	Pattern   *regexp.Regexp
	Callbacks []HookCallback
}

// Hooks wraps each callback with the tool name check. Events without a tool
// name are never filtered.
func (m ToolMatcher) Hooks() []HookCallback {
	out := make([]HookCallback, len(m.Callbacks))
	for i, cb := range m.Callbacks {
		out[i] = func(ctx context.Context, input HookInput) (HookResult, error) {
			if m.Pattern != nil && input.ToolName != "" && !m.Pattern.MatchString(input.ToolName) {
				return HookResult{Kind: HookSuccess}, nil
			}
			return cb(ctx, input)
		}
	}
	return out
}

// HookEnvironment is handed to every factory.
type HookEnvironment struct {
	Logger     *slog.Logger
	WorkingDir string
	SessionID  string
}

// HookFactory builds a matcher from the registry's environment.
type HookFactory func(env HookEnvironment) (HookMatcher, error)

// HookRegistry owns the hook factories for each lifecycle event. Matchers are
// built in registration order on the first dispatch of their event.
type HookRegistry struct {
	env       HookEnvironment
	factories map[HookType][]HookFactory
	built     map[HookType][]HookMatcher
	mu        sync.Mutex
}

// NewHookRegistry creates an empty registry.
func NewHookRegistry(env HookEnvironment) *HookRegistry {
	if env.Logger == nil {
		env.Logger = slog.Default()
	}
	return &HookRegistry{
		env:       env,
		factories: make(map[HookType][]HookFactory),
		built:     make(map[HookType][]HookMatcher),
	}
}

// Register appends a factory for hookType.
func (r *HookRegistry) Register(hookType HookType, factory HookFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[hookType] = append(r.factories[hookType], factory)
	delete(r.built, hookType)
}

// Matchers returns the matchers for hookType, building them if needed.
func (r *HookRegistry) Matchers(hookType HookType) ([]HookMatcher, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if matchers, ok := r.built[hookType]; ok {
		return matchers, nil
	}
	matchers := make([]HookMatcher, 0, len(r.factories[hookType]))
	for i, factory := range r.factories[hookType] {
		m, err := factory(r.env)
		if err != nil {
			return nil, fmt.Errorf("build %s hook %d: %w", hookType, i, err)
		}
		matchers = append(matchers, m)
	}
	r.built[hookType] = matchers
	return matchers, nil
}

// Dispatch invokes every callback for hookType in order. A callback error
// becomes an error result carrying that error.
func (r *HookRegistry) Dispatch(ctx context.Context, hookType HookType, input HookInput) ([]HookResult, error) {
	matchers, err := r.Matchers(hookType)
	if err != nil {
		return nil, err
	}
	input.HookType = hookType
	if input.SessionID == "" {
		input.SessionID = r.env.SessionID
	}
	if input.Cwd == "" {
		input.Cwd = r.env.WorkingDir
	}

	var results []HookResult
	for _, m := range matchers {
		for _, cb := range m.Hooks() {
			if err := ctx.Err(); err != nil {
				return results, err
			}
			res, err := cb(ctx, input)
			if err != nil {
				r.env.Logger.Warn("[Hooks] callback failed", "hook", hookType, "tool", input.ToolName, "error", err)
				res = HookResult{Kind: HookError, Output: err}
			}
			results = append(results, res)
		}
	}
	return results, nil
}
