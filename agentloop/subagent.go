package agentloop

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/martinemde/toolloop/backend"
)

// SubagentToolName is the tool that delegates a task to a child turn.
const SubagentToolName = "run_subagent"

// SubAgentConfig configures nested turns.
type SubAgentConfig struct {
	MaxDepth     int    // nesting limit; 1 allows children but no grandchildren
	SystemPrompt string // system prompt of child turns
	Loop         LoopConfig
}

// SubAgentRunner runs child turns on behalf of a parent. Each child gets its
// own ToolCallingLoop, so its endpoint cache and round history are
// independent. Child usage is never reported per round; the total is folded
// into Usage once the child finishes.
type SubAgentRunner struct {
	cfg       SubAgentConfig
	depth     int
	prompts   func(tools ToolLister) PromptBuilder
	fetcher   Fetcher
	endpoints EndpointProvider
	tools     *ToolRegistry
	hooks     HookDispatcher
	usage     *UsageTotals
	sink      OutputSink
	logger    *slog.Logger
}

// SubAgentDeps are the collaborators shared by every child turn.
type SubAgentDeps struct {
	Fetcher   Fetcher
	Endpoints EndpointProvider
	Hooks     HookDispatcher
	Usage     *UsageTotals
	Sink      OutputSink
	Logger    *slog.Logger
}

// NewSubAgentRunner creates a runner whose children see a copy of tools.
func NewSubAgentRunner(cfg SubAgentConfig, tools *ToolRegistry, deps SubAgentDeps) *SubAgentRunner {
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = 1
	}
	if cfg.Loop.MaxRounds <= 0 {
		cfg.Loop = DefaultLoopConfig()
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sink := deps.Sink
	if sink == nil {
		sink = discardSink{}
	}
	return &SubAgentRunner{
		cfg:       cfg,
		prompts:   func(t ToolLister) PromptBuilder { return HistoryPromptBuilder{Tools: t} },
		fetcher:   deps.Fetcher,
		endpoints: deps.Endpoints,
		tools:     tools,
		hooks:     deps.Hooks,
		usage:     deps.Usage,
		sink:      sink,
		logger:    logger,
	}
}

// CanSpawn reports whether another level of nesting is allowed.
func (r *SubAgentRunner) CanSpawn() bool {
	return r.depth < r.cfg.MaxDepth
}

// Register adds the run_subagent tool to reg when nesting allows it.
func (r *SubAgentRunner) Register(reg *ToolRegistry) error {
	if !r.CanSpawn() {
		reg.Unregister(SubagentToolName)
		return nil
	}
	return reg.Register(backend.ToolDefinition{
		Name:        SubagentToolName,
		Description: "Delegate a self-contained task to a sub-agent and return its final answer.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"task": map[string]interface{}{
					"type":        "string",
					"description": "Natural language task description.",
					"minLength":   1,
				},
				"model": map[string]interface{}{
					"type":        "string",
					"description": "Model override for the sub-agent.",
				},
			},
			"required": []string{"task"},
		},
	}, r.handle)
}

func (r *SubAgentRunner) handle(ctx context.Context, input json.RawMessage) (string, error) {
	args, err := ParseToolArguments(input)
	if err != nil {
		return "", err
	}
	task, _ := GetStringArg(args, "task")
	model, _ := GetStringArg(args, "model")

	res, err := r.Run(ctx, TurnRequest{Prompt: task, Model: model})
	if err != nil {
		return "", err
	}
	if res.Outcome != OutcomeSuccess {
		return "", fmt.Errorf("sub-agent did not finish: %s", res.Summary())
	}
	return res.FinalText, nil
}

// Run executes one child turn. The request is marked as a sub-agent turn.
func (r *SubAgentRunner) Run(ctx context.Context, req TurnRequest) (TurnResult, error) {
	if !r.CanSpawn() {
		return TurnResult{}, fmt.Errorf("maximum sub-agent depth (%d) reached", r.cfg.MaxDepth)
	}
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	req.SubAgent = true
	if req.SystemPrompt == "" {
		req.SystemPrompt = r.cfg.SystemPrompt
	}

	if err := r.dispatch(ctx, HookSubagentStart, HookInput{SessionID: req.ID, Prompt: req.Prompt}); err != nil {
		return TurnResult{}, err
	}

	child := *r
	child.depth = r.depth + 1
	tools := r.tools.Clone()
	if err := child.Register(tools); err != nil {
		return TurnResult{}, err
	}
	child.tools = tools

	loop, err := NewToolCallingLoop(req, r.cfg.Loop, Options{
		Prompts:   r.prompts(tools),
		Fetcher:   r.fetcher,
		Endpoints: r.endpoints,
		Tools:     tools,
		Validator: tools,
		Hooks:     r.hooks,
		Logger:    r.logger.With("depth", child.depth),
	})
	if err != nil {
		return TurnResult{}, err
	}

	r.logger.Info("[Subagent] started", "turn", req.ID, "depth", child.depth)
	res, runErr := loop.Run(ctx, r.sink)
	if r.usage != nil {
		r.usage.Aggregate(res.Usage)
	}
	if runErr != nil {
		return res, fmt.Errorf("sub-agent %s: %w", req.ID, runErr)
	}
	r.logger.Info("[Subagent] finished", "turn", req.ID, "outcome", res.Outcome, "rounds", len(res.Rounds))

	stop := HookInput{SessionID: req.ID, FinalText: res.FinalText}
	if err := r.dispatch(ctx, HookSubagentStop, stop); err != nil {
		return res, err
	}
	return res, nil
}

func (r *SubAgentRunner) dispatch(ctx context.Context, hookType HookType, input HookInput) error {
	if r.hooks == nil {
		return nil
	}
	results, err := r.hooks.Dispatch(ctx, hookType, input)
	if err != nil {
		return fmt.Errorf("dispatch %s hooks: %w", hookType, err)
	}
	err = ProcessHookResults(hookType, results, r.sink, nil)
	var abort *HookAbortError
	if errors.As(err, &abort) {
		r.logger.Warn("[Subagent] blocked by hook", "hook", hookType, "reason", abort.Reason)
	}
	return err
}
