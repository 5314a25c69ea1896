package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/martinemde/toolloop/agentloop"
	"github.com/martinemde/toolloop/backend"
	"github.com/martinemde/toolloop/config"
	"github.com/martinemde/toolloop/logging"
	"github.com/spf13/cobra"
)

const basePrompt = `You are a coding assistant working in the user's repository. Use the
available tools to inspect files before answering. When you have enough
information, reply with a concise final answer and no tool calls.`

const subagentPrompt = `You are a sub-agent handling one delegated task. Use the available tools,
then reply with a self-contained answer for the agent that delegated to you.`

// app holds everything a turn needs.
type app struct {
	settings config.Settings
	logger   *slog.Logger
	closer   io.Closer
	ws       workspace
	tools    *agentloop.ToolRegistry
}

func setup() (*app, error) {
	settings, err := config.New()
	if err != nil {
		return nil, err
	}
	if provider != "" {
		settings.LLM.Provider = provider
	}
	if model != "" {
		settings.LLM.Model = model
	}
	if maxRounds > 0 {
		settings.Agent.MaxRounds = maxRounds
	}
	if hooksFile != "" {
		settings.HooksFile = hooksFile
	}
	if verbose {
		settings.Log.Level = "debug"
	}

	logger, closer, err := logging.New(logging.Config{
		Level:  settings.Log.Level,
		Format: settings.Log.Format,
		File:   settings.Log.File,
	})
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	dir := workingDir
	if dir == "" {
		if dir, err = os.Getwd(); err != nil {
			return nil, err
		}
	}
	dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	a := &app{settings: settings, logger: logger, closer: closer, ws: workspace{dir: dir}, tools: agentloop.NewToolRegistry()}
	if err := registerBuiltinTools(a.tools, a.ws); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *app) client() (*backend.Client, error) {
	name := a.settings.LLM.Provider
	if name == "" {
		return nil, errors.New("no provider configured: set TOOLLOOP_PROVIDER, --provider or a provider API key")
	}
	apiKey, err := config.APIKeyFor(name)
	if err != nil {
		return nil, err
	}
	adapter, err := backend.NewGollmAdapter(name, apiKey,
		backend.WithModel(a.settings.LLM.Model),
		backend.WithMaxTokens(a.settings.LLM.MaxTokens),
		backend.WithTemperature(a.settings.LLM.Temperature),
	)
	if err != nil {
		return nil, err
	}
	return backend.NewClient(backend.WithAdapter(name, adapter), backend.WithMiddleware(a.logRequests)), nil
}

func (a *app) logRequests(ctx context.Context, req backend.Request, next backend.Handler) (*backend.Response, error) {
	a.logger.Debug("[Backend] request", "provider", req.Provider, "model", req.Model, "messages", len(req.Messages), "tools", len(req.ToolDefs))
	resp, err := next(ctx, req)
	if err != nil {
		a.logger.Debug("[Backend] request failed", "error", err)
		return nil, err
	}
	a.logger.Debug("[Backend] response", "finish", resp.FinishReason.Reason, "input_tokens", resp.Usage.InputTokens, "output_tokens", resp.Usage.OutputTokens)
	return resp, nil
}

func runCmd() *cobra.Command {
	var instructions string

	cmd := &cobra.Command{
		Use:   "run [request]",
		Short: "Execute one agent turn",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			a, err := setup()
			if err != nil {
				return err
			}
			defer a.closer.Close()
			return a.runTurn(ctx, args[0], instructions, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVar(&instructions, "instructions", "", "Extra instructions appended to the system prompt")

	return cmd
}

func (a *app) runTurn(ctx context.Context, request, instructions string, stdout, stderr io.Writer) error {
	client, err := a.client()
	if err != nil {
		return err
	}
	defer client.Close()

	turnID := uuid.New().String()
	sink := agentloop.NewEventSink(turnID, 256)
	usage := &agentloop.UsageTotals{}
	fetcher := agentloop.NewClientFetcher(client, a.logger)
	endpoints := agentloop.CatalogEndpointProvider{DefaultModel: a.settings.LLM.Model, DefaultProvider: a.settings.LLM.Provider}
	loopCfg := a.settings.LoopConfig()

	hooks := agentloop.NewHookRegistry(agentloop.HookEnvironment{Logger: a.logger, WorkingDir: a.ws.dir, SessionID: turnID})
	if a.settings.HooksFile != "" {
		file, err := config.LoadHooks(a.settings.HooksFile)
		if err != nil {
			return err
		}
		a.logger.Info("[Hooks] loaded", "file", a.settings.HooksFile, "commands", file.Register(hooks))
	}

	if depth := a.settings.Agent.SubAgentDepth; depth > 0 {
		runner := agentloop.NewSubAgentRunner(agentloop.SubAgentConfig{
			MaxDepth:     depth,
			SystemPrompt: agentloop.BuildSystemPrompt(agentloop.SystemPromptOptions{Base: subagentPrompt, WorkingDir: a.ws.dir}),
			Loop:         loopCfg,
		}, a.tools, agentloop.SubAgentDeps{
			Fetcher:   fetcher,
			Endpoints: endpoints,
			Hooks:     hooks,
			Usage:     usage,
			Sink:      sink,
			Logger:    a.logger,
		})
		if err := runner.Register(a.tools); err != nil {
			return err
		}
	}

	req := agentloop.TurnRequest{
		ID:       turnID,
		Prompt:   request,
		Model:    a.settings.LLM.Model,
		Provider: a.settings.LLM.Provider,
		SystemPrompt: agentloop.BuildSystemPrompt(agentloop.SystemPromptOptions{
			Base:       basePrompt,
			WorkingDir: a.ws.dir,
			Model:      a.settings.LLM.Model,
			Tools:      a.tools.Names(),
			Extra:      instructions,
		}),
		WorkingDir: a.ws.dir,
	}

	loop, err := agentloop.NewToolCallingLoop(req, loopCfg, agentloop.Options{
		Prompts:   agentloop.HistoryPromptBuilder{Tools: a.tools},
		Fetcher:   fetcher,
		Endpoints: endpoints,
		Tools:     a.tools,
		Validator: a.tools,
		Hooks:     hooks,
		Usage:     usage,
		Logger:    a.logger,
	})
	if err != nil {
		return err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		printEvents(sink.Events(), stdout, stderr)
	}()

	result, runErr := a.startSession(ctx, hooks, sink, loop)
	sink.Close()
	<-done

	prompt, completion := usage.Totals()
	fmt.Fprintf(stderr, "\n[%s] rounds=%d prompt_tokens=%d completion_tokens=%d\n", result.Outcome, len(result.Rounds), prompt, completion)
	if dropped := sink.Dropped(); dropped > 0 {
		a.logger.Warn("[Loop] output events dropped", "count", dropped)
	}
	if runErr != nil {
		return runErr
	}
	if result.Outcome != agentloop.OutcomeSuccess {
		return fmt.Errorf("turn ended: %s", result.Summary())
	}
	return nil
}

// startSession runs the SessionStart hooks, then the turn.
func (a *app) startSession(ctx context.Context, hooks *agentloop.HookRegistry, sink agentloop.OutputSink, loop *agentloop.ToolCallingLoop) (agentloop.TurnResult, error) {
	results, err := hooks.Dispatch(ctx, agentloop.HookSessionStart, agentloop.HookInput{})
	if err != nil {
		return agentloop.TurnResult{}, err
	}
	var abort *agentloop.HookAbortError
	if err := agentloop.ProcessHookResults(agentloop.HookSessionStart, results, sink, nil); errors.As(err, &abort) {
		return agentloop.TurnResult{Outcome: agentloop.OutcomeAborted, HookType: abort.HookType, Reason: abort.Reason}, nil
	}
	return loop.Run(ctx, sink)
}

func printEvents(events <-chan agentloop.Event, stdout, stderr io.Writer) {
	for ev := range events {
		switch ev.Kind {
		case agentloop.EventText:
			fmt.Fprintln(stdout, ev.Data["text"])
		case agentloop.EventWarning:
			fmt.Fprintf(stderr, "warning: %v\n", ev.Data["message"])
		case agentloop.EventToolStart:
			fmt.Fprintf(stderr, "→ %v %v\n", ev.Data["tool_name"], ev.Data["arguments"])
		case agentloop.EventToolEnd:
			if msg, ok := ev.Data["error"]; ok {
				fmt.Fprintf(stderr, "✗ %v: %v\n", ev.Data["tool_name"], msg)
				continue
			}
			output, _ := ev.Data["output"].(string)
			fmt.Fprintf(stderr, "✓ %v (%d lines)\n", ev.Data["tool_name"], strings.Count(output, "\n")+1)
		}
	}
}
