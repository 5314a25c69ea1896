package agentloop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/martinemde/toolloop/backend"
)

// LoopConfig holds the per-turn limits.
type LoopConfig struct {
	MaxRounds           int                 `json:"max_rounds"`
	MaxToolInputRetries int                 `json:"max_tool_input_retries"`
	EnableLoopDetection bool                `json:"enable_loop_detection"`
	LoopDetection       LoopDetectionConfig `json:"loop_detection"`
	ToolOutputLimit     int                 `json:"tool_output_limit"` // characters; 0 = unlimited
	ToolLineLimit       int                 `json:"tool_line_limit"`   // lines; 0 = unlimited
}

// DefaultLoopConfig returns the default limits.
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{
		MaxRounds:           25,
		MaxToolInputRetries: 2,
		EnableLoopDetection: true,
		LoopDetection:       DefaultLoopDetectionConfig(),
		ToolOutputLimit:     DefaultToolOutputLimit,
	}
}

// Options are the collaborators of a ToolCallingLoop. Hooks, Usage and
// Logger are optional.
type Options struct {
	Prompts   PromptBuilder
	Fetcher   Fetcher
	Endpoints EndpointProvider
	Tools     ToolExecutor
	Validator ToolValidator
	Hooks     HookDispatcher
	Usage     UsageSink
	Logger    *slog.Logger
}

// ToolCallingLoop drives one turn: build prompt, fetch, run the requested
// tools through hooks, detect repetition, repeat. An instance owns its round
// history and endpoint cache and runs one turn at a time.
type ToolCallingLoop struct {
	request TurnRequest
	config  LoopConfig
	opts    Options
	cache   *EndpointCache
	logger  *slog.Logger

	rounds  []*ToolCallRound
	results map[string]ToolCallResult
	usage   backend.Usage
}

// NewToolCallingLoop validates the collaborators and creates a loop.
func NewToolCallingLoop(req TurnRequest, cfg LoopConfig, opts Options) (*ToolCallingLoop, error) {
	switch {
	case opts.Prompts == nil:
		return nil, errors.New("agentloop: prompt builder is required")
	case opts.Fetcher == nil:
		return nil, errors.New("agentloop: fetcher is required")
	case opts.Endpoints == nil:
		return nil, errors.New("agentloop: endpoint provider is required")
	case opts.Tools == nil:
		return nil, errors.New("agentloop: tool executor is required")
	case opts.Validator == nil:
		return nil, errors.New("agentloop: tool validator is required")
	}
	if cfg.MaxRounds <= 0 {
		return nil, fmt.Errorf("agentloop: max rounds must be positive, got %d", cfg.MaxRounds)
	}
	if cfg.MaxToolInputRetries < 0 {
		return nil, fmt.Errorf("agentloop: max tool input retries must not be negative, got %d", cfg.MaxToolInputRetries)
	}
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ToolCallingLoop{
		request: req,
		config:  cfg,
		opts:    opts,
		cache:   NewEndpointCache(opts.Endpoints),
		logger:  logger.With("turn", req.ID),
	}, nil
}

// Request returns the turn request.
func (l *ToolCallingLoop) Request() TurnRequest { return l.request }

// EndpointCache exposes the turn's cache. It is empty outside Run.
func (l *ToolCallingLoop) EndpointCache() *EndpointCache { return l.cache }

// Rounds returns the round history of the last run.
func (l *ToolCallingLoop) Rounds() []*ToolCallRound {
	out := make([]*ToolCallRound, len(l.rounds))
	copy(out, l.rounds)
	return out
}

// Run executes the turn. Cancellation, hook aborts, repetition and budget
// exhaustion are outcomes; only transport failures, collaborator failures
// and exhausted validation retries are returned as errors.
func (l *ToolCallingLoop) Run(ctx context.Context, sink OutputSink) (TurnResult, error) {
	if sink == nil {
		sink = discardSink{}
	}
	release := l.cache.acquire()
	defer release()

	l.rounds = nil
	l.results = make(map[string]ToolCallResult)
	l.usage = backend.Usage{}

	l.logger.Info("[Loop] turn started", "sub_agent", l.request.SubAgent, "max_rounds", l.config.MaxRounds)

	if err := l.runHooks(ctx, HookUserPromptSubmit, HookInput{Prompt: l.request.Prompt}, sink, nil); err != nil {
		return l.finish(ctx, err)
	}

	inputRetries := 0
	budgetUsed := 0
	for {
		if ctx.Err() != nil {
			return l.cancelled(), nil
		}

		endpoint, err := l.cache.Get(ctx, l.request)
		if err != nil {
			return l.finish(ctx, err)
		}

		prompt, err := l.opts.Prompts.BuildPrompt(ctx, PromptContext{
			Request: l.request,
			Rounds:  l.Rounds(),
			Results: l.results,
		})
		if err != nil {
			return l.finish(ctx, fmt.Errorf("build prompt: %w", err))
		}

		l.logger.Debug("[Loop] fetching", "round", len(l.rounds)+1, "model", endpoint.Model(), "messages", len(prompt.Messages))
		fetched, err := l.opts.Fetcher.Fetch(ctx, endpoint, prompt)
		if err != nil {
			return l.finish(ctx, fmt.Errorf("fetch round %d: %w", len(l.rounds)+1, err))
		}
		l.recordUsage(fetched.Usage)

		round := l.newRound(fetched, inputRetries)
		if fetched.Text != "" {
			sink.Text(fetched.Text)
		}

		if len(fetched.ToolCalls) == 0 && !fetched.Continue {
			l.rounds = append(l.rounds, round)
			l.logger.Info("[Loop] turn completed", "rounds", len(l.rounds))
			stop := HookInput{FinalText: fetched.Text}
			if err := l.runHooks(ctx, HookStop, stop, sink, nil); err != nil {
				return l.finish(ctx, err)
			}
			return l.result(TurnResult{Outcome: OutcomeSuccess, FinalText: fetched.Text}), nil
		}

		invalid, err := l.executeTools(ctx, round, sink)
		l.rounds = append(l.rounds, round)
		if err != nil {
			return l.finish(ctx, err)
		}

		if invalid != nil {
			inputRetries++
			l.logger.Warn("[Loop] invalid tool input", "retry", inputRetries, "max", l.config.MaxToolInputRetries, "error", invalid)
			if inputRetries > l.config.MaxToolInputRetries {
				return l.result(TurnResult{}), &ToolValidationError{Retries: l.config.MaxToolInputRetries, Last: invalid}
			}
		} else {
			inputRetries = 0
			budgetUsed++
		}

		if rep := l.detectRepetition(); rep != nil {
			l.logger.Warn("[Loop] repetition detected", "kind", rep.Kind, "rounds", len(l.rounds))
			return l.result(TurnResult{Outcome: OutcomeRepetitionDetected, Repetition: rep}), nil
		}

		if budgetUsed >= l.config.MaxRounds {
			l.logger.Warn("[Loop] round budget exhausted", "rounds", budgetUsed)
			return l.result(TurnResult{Outcome: OutcomeBudgetExceeded}), nil
		}
	}
}

func (l *ToolCallingLoop) newRound(fetched FetchResult, inputRetries int) *ToolCallRound {
	var thinking *ThinkingDataItem
	if len(fetched.Thinking) > 0 {
		thinking = NewThinkingDataItem("")
		for _, delta := range fetched.Thinking {
			thinking.Update(delta)
		}
		if fetched.Usage != nil && fetched.Usage.ReasoningTokens != nil {
			thinking.SetTokens(*fetched.Usage.ReasoningTokens)
		}
	}
	return NewToolCallRound(RoundData{
		Response:       fetched.Text,
		ToolCalls:      fetched.ToolCalls,
		ToolInputRetry: inputRetries,
		StatefulMarker: fetched.StatefulMarker,
		Thinking:       thinking,
	})
}

// executeTools runs the round's calls in order. It returns the last input
// validation failure, if any, and a non-nil error when the turn must end.
func (l *ToolCallingLoop) executeTools(ctx context.Context, round *ToolCallRound, sink OutputSink) (invalid error, err error) {
	for _, call := range round.toolCalls {
		if ctx.Err() != nil {
			return invalid, ctx.Err()
		}

		input, verr := l.opts.Validator.Validate(call.Name, call.Arguments)
		if verr != nil {
			invalid = verr
			hint := verr.Error()
			var inputErr *ToolInputError
			if errors.As(verr, &inputErr) {
				hint = inputErr.Hint()
			}
			l.results[call.ID] = ToolCallResult{CallID: call.ID, Content: hint, IsError: true}
			sink.ToolStart(call)
			sink.ToolEnd(call, "", verr)
			continue
		}

		pre := HookInput{ToolName: call.Name, ToolCallID: call.ID, ToolInput: input}
		var extra []string
		collect := func(output interface{}) {
			if s, ok := output.(string); ok && s != "" {
				extra = append(extra, s)
			}
		}
		if err := l.runHooks(ctx, HookPreToolUse, pre, sink, collect); err != nil {
			return invalid, err
		}

		sink.ToolStart(call)
		l.logger.Debug("[Loop] invoking tool", "tool", call.Name, "call_id", call.ID)
		output, toolErr := l.opts.Tools.Invoke(ctx, call.Name, input)
		sink.ToolEnd(call, output, toolErr)

		content := output
		if toolErr != nil {
			l.logger.Warn("[Loop] tool failed", "tool", call.Name, "error", toolErr)
			content = fmt.Sprintf("Tool error (%s): %v", call.Name, toolErr)
		}

		post := pre
		post.ToolOutput = content
		if err := l.runHooks(ctx, HookPostToolUse, post, sink, collect); err != nil {
			return invalid, err
		}

		content = truncateToolResult(content, l.config)
		if len(extra) > 0 {
			content += "\n\n" + strings.Join(extra, "\n")
		}
		l.results[call.ID] = ToolCallResult{CallID: call.ID, Content: content, IsError: toolErr != nil}
	}
	return invalid, nil
}

func (l *ToolCallingLoop) runHooks(ctx context.Context, hookType HookType, input HookInput, sink OutputSink, onSuccess func(interface{})) error {
	if l.opts.Hooks == nil {
		return nil
	}
	if input.SessionID == "" {
		input.SessionID = l.request.ID
	}
	if input.Cwd == "" {
		input.Cwd = l.request.WorkingDir
	}
	results, err := l.opts.Hooks.Dispatch(ctx, hookType, input)
	if err != nil {
		return fmt.Errorf("dispatch %s hooks: %w", hookType, err)
	}
	return ProcessHookResults(hookType, results, sink, onSuccess)
}

func (l *ToolCallingLoop) recordUsage(u *backend.Usage) {
	if u == nil {
		return
	}
	l.usage = l.usage.Add(*u)
	if l.request.SubAgent || l.opts.Usage == nil {
		return
	}
	l.opts.Usage.Report(u.InputTokens, u.OutputTokens)
}

func (l *ToolCallingLoop) detectRepetition() *Repetition {
	if !l.config.EnableLoopDetection {
		return nil
	}
	if d := DetectToolCallLoop(l.rounds, l.config.LoopDetection); d != nil {
		return &Repetition{Kind: RepetitionTool, ToolLoop: d}
	}
	if d := DetectTextLoop(l.rounds, l.config.LoopDetection); d != nil {
		return &Repetition{Kind: RepetitionText, TextLoop: d}
	}
	return nil
}

// finish converts a terminal error into the turn's result. Hook aborts and
// cancellation are outcomes; everything else is returned.
func (l *ToolCallingLoop) finish(ctx context.Context, err error) (TurnResult, error) {
	var abort *HookAbortError
	if errors.As(err, &abort) {
		l.logger.Warn("[Loop] aborted by hook", "hook", abort.HookType, "reason", abort.Reason)
		return l.result(TurnResult{Outcome: OutcomeAborted, HookType: abort.HookType, Reason: abort.Reason}), nil
	}
	if ctx.Err() != nil {
		return l.cancelled(), nil
	}
	l.logger.Error("[Loop] turn failed", "error", err)
	return l.result(TurnResult{}), err
}

func (l *ToolCallingLoop) cancelled() TurnResult {
	l.logger.Info("[Loop] turn cancelled", "rounds", len(l.rounds))
	return l.result(TurnResult{Outcome: OutcomeCancelled})
}

func (l *ToolCallingLoop) result(r TurnResult) TurnResult {
	r.Rounds = l.Rounds()
	r.Usage = l.usage
	return r
}
