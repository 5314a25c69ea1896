package agentloop

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func subagentCall(task string) ToolCall {
	return ToolCall{ID: "sub1", Name: SubagentToolName, Arguments: `{"task":"` + task + `"}`}
}

func toolNames(p Prompt) []string {
	var names []string
	for _, def := range p.Tools {
		names = append(names, def.Name)
	}
	return names
}

func TestSubAgentUsageAggregatedOnce(t *testing.T) {
	h := newHarness(t,
		callResult(subagentCall("summarize the README")), // parent round 1
		textResult("README summary"),                      // child round 1
		textResult("Here is the summary."),                // parent round 2
	)
	var events []HookType
	for _, ht := range []HookType{HookSubagentStart, HookSubagentStop} {
		h.hooks.Register(ht, func(HookEnvironment) (HookMatcher, error) {
			return HookCallbacks{func(_ context.Context, in HookInput) (HookResult, error) {
				events = append(events, in.HookType)
				return HookResult{Kind: HookSuccess}, nil
			}}, nil
		})
	}
	runner := NewSubAgentRunner(SubAgentConfig{SystemPrompt: "you are a helper"}, h.tools, SubAgentDeps{
		Fetcher:   h.fetcher,
		Endpoints: h.endpoints,
		Hooks:     h.hooks,
		Usage:     h.usage,
	})
	require.NoError(t, runner.Register(h.tools))

	res, _, err := h.run(t)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, res.Outcome)

	assert.Equal(t, 2, h.usage.Reports())
	prompt, completion := h.usage.Totals()
	assert.Equal(t, 30, prompt)
	assert.Equal(t, 15, completion)

	assert.Equal(t, 2, h.endpoints.count())
	assert.Equal(t, []HookType{HookSubagentStart, HookSubagentStop}, events)
	assert.Equal(t, "README summary", h.fetcher.toolResults(2)["sub1"].Content)

	childPrompt := h.fetcher.prompts[1]
	assert.Equal(t, "you are a helper", childPrompt.Messages[0].TextContent())
	assert.Equal(t, "summarize the README", childPrompt.Messages[1].TextContent())
	assert.NotContains(t, toolNames(childPrompt), SubagentToolName)
	assert.Contains(t, toolNames(h.fetcher.prompts[0]), SubagentToolName)
}

func TestSubAgentDepthAllowsNesting(t *testing.T) {
	h := newHarness(t, textResult("child done"))
	runner := NewSubAgentRunner(SubAgentConfig{MaxDepth: 2}, h.tools, SubAgentDeps{Fetcher: h.fetcher, Endpoints: h.endpoints})
	require.NoError(t, runner.Register(h.tools))

	res, err := runner.Run(context.Background(), TurnRequest{Prompt: "task"})
	require.NoError(t, err)
	assert.Equal(t, "child done", res.FinalText)
	assert.Contains(t, toolNames(h.fetcher.prompts[0]), SubagentToolName)
}

func TestSubAgentStartHookBlocks(t *testing.T) {
	h := newHarness(t, textResult("never"))
	h.hooks.Register(HookSubagentStart, func(HookEnvironment) (HookMatcher, error) {
		return HookCallbacks{constantHook(HookResult{Kind: HookSuccess, StopReason: "no delegation"})}, nil
	})
	runner := NewSubAgentRunner(SubAgentConfig{}, h.tools, SubAgentDeps{Fetcher: h.fetcher, Endpoints: h.endpoints, Hooks: h.hooks})

	_, err := runner.Run(context.Background(), TurnRequest{Prompt: "task"})
	var abort *HookAbortError
	require.ErrorAs(t, err, &abort)
	assert.Equal(t, HookSubagentStart, abort.HookType)
	assert.Empty(t, h.fetcher.prompts)
}

func TestSubAgentFailureBecomesToolError(t *testing.T) {
	looping := callResult(echoCall("c1", "again"))
	h := newHarness(t,
		callResult(subagentCall("loop forever")),
		looping,
	)
	runner := NewSubAgentRunner(SubAgentConfig{Loop: LoopConfig{MaxRounds: 1, LoopDetection: DefaultLoopDetectionConfig()}}, h.tools, SubAgentDeps{
		Fetcher:   h.fetcher,
		Endpoints: h.endpoints,
	})
	require.NoError(t, runner.Register(h.tools))
	h.fetcher.script = append(h.fetcher.script, textResult("gave up"))

	res, _, err := h.run(t)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, res.Outcome)
	result := h.fetcher.toolResults(2)["sub1"]
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "sub-agent did not finish")
}

func TestSubAgentRegisterRespectsDepth(t *testing.T) {
	reg := NewToolRegistry()
	runner := NewSubAgentRunner(SubAgentConfig{MaxDepth: 1}, reg, SubAgentDeps{})
	require.NoError(t, runner.Register(reg))
	assert.True(t, runner.CanSpawn())
	assert.NotNil(t, reg.Get(SubagentToolName))

	_, err := reg.Validate(SubagentToolName, `{"task":""}`)
	assert.Error(t, err)
	_, err = reg.Validate(SubagentToolName, `{"task":"go"}`)
	assert.NoError(t, err)
}
