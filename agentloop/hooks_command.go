package agentloop

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"
)

// DefaultHookTimeout bounds a command hook that sets no timeout.
const DefaultHookTimeout = 60 * time.Second

// CommandHook runs a shell command with the JSON HookInput on stdin.
//
// Exit status 0 is success. Stdout may then carry a JSON object whose
// stopReason (with continue=false), decision "block" with reason,
// systemMessage and additionalContext fields shape the result; any other
// stdout becomes the success output. Exit status 2 is an error result with
// stderr as its output. Any other status is a warning.
type CommandHook struct {
	Command string
	Timeout time.Duration
	Dir     string
	Env     []string
}

type commandHookOutput struct {
	Continue          *bool  `json:"continue"`
	StopReason        string `json:"stopReason"`
	Decision          string `json:"decision"`
	Reason            string `json:"reason"`
	SystemMessage     string `json:"systemMessage"`
	AdditionalContext string `json:"additionalContext"`
}

// Run executes the command. It satisfies HookCallback.
func (h CommandHook) Run(ctx context.Context, input HookInput) (HookResult, error) {
	payload, err := json.Marshal(input)
	if err != nil {
		return HookResult{}, fmt.Errorf("marshal hook input: %w", err)
	}

	timeout := h.Timeout
	if timeout <= 0 {
		timeout = DefaultHookTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", h.Command)
	cmd.Dir = h.Dir
	cmd.Env = append(os.Environ(), h.Env...)
	cmd.Stdin = bytes.NewReader(payload)
	cmd.WaitDelay = time.Second
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return parseCommandHookOutput(stdout.String()), nil
	case errors.As(err, &exitErr):
		if ctx.Err() != nil {
			return HookResult{}, fmt.Errorf("hook %q: %w", h.Command, ctx.Err())
		}
		msg := strings.TrimSpace(stderr.String())
		if exitErr.ExitCode() == 2 {
			return HookResult{Kind: HookError, Output: msg}, nil
		}
		if msg == "" {
			msg = fmt.Sprintf("hook %q exited with status %d", h.Command, exitErr.ExitCode())
		}
		return HookResult{Kind: HookWarning, WarningMessage: msg}, nil
	default:
		return HookResult{}, fmt.Errorf("run hook %q: %w", h.Command, err)
	}
}

func parseCommandHookOutput(stdout string) HookResult {
	trimmed := strings.TrimSpace(stdout)
	if trimmed == "" {
		return HookResult{Kind: HookSuccess}
	}
	var out commandHookOutput
	if !strings.HasPrefix(trimmed, "{") || json.Unmarshal([]byte(trimmed), &out) != nil {
		return HookResult{Kind: HookSuccess, Output: trimmed}
	}

	if out.Continue != nil && !*out.Continue {
		reason := out.StopReason
		if reason == "" {
			reason = "stopped by hook"
		}
		return HookResult{Kind: HookSuccess, StopReason: reason}
	}
	if out.Decision == "block" {
		reason := out.Reason
		if reason == "" {
			reason = "blocked by hook"
		}
		return HookResult{Kind: HookSuccess, StopReason: reason}
	}
	if out.SystemMessage != "" {
		return HookResult{Kind: HookWarning, WarningMessage: out.SystemMessage}
	}
	if out.AdditionalContext != "" {
		return HookResult{Kind: HookSuccess, Output: out.AdditionalContext}
	}
	return HookResult{Kind: HookSuccess}
}

// CommandHookFactory returns a factory for command hooks restricted to tools
// matching pattern. An empty pattern or "*" matches everything.
func CommandHookFactory(pattern string, hooks ...CommandHook) HookFactory {
	return func(env HookEnvironment) (HookMatcher, error) {
		var re *regexp.Regexp
		if pattern != "" && pattern != "*" {
			compiled, err := regexp.Compile("^(?:" + pattern + ")$")
			if err != nil {
				return nil, fmt.Errorf("invalid hook matcher %q: %w", pattern, err)
			}
			re = compiled
		}
		callbacks := make([]HookCallback, len(hooks))
		for i, h := range hooks {
			if h.Dir == "" {
				h.Dir = env.WorkingDir
			}
			callbacks[i] = h.Run
		}
		return ToolMatcher{Pattern: re, Callbacks: callbacks}, nil
	}
}
