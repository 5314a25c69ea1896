package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/martinemde/toolloop/agentloop"
)

// HooksFile is the on-disk hook configuration:
//
//	{
//	  "hooks": {
//	    "PreToolUse": [
//	      {"matcher": "shell|write_file", "hooks": [{"type": "command", "command": "./check.sh", "timeout": 30}]}
//	    ]
//	  }
//	}
type HooksFile struct {
	Hooks map[agentloop.HookType][]HookMatcherConfig `json:"hooks"`
}

// HookMatcherConfig groups the commands that share a tool name pattern.
type HookMatcherConfig struct {
	Matcher string              `json:"matcher"`
	Hooks   []CommandHookConfig `json:"hooks"`
}

// CommandHookConfig is one command hook. Timeout is in seconds.
type CommandHookConfig struct {
	Type    string `json:"type"`
	Command string `json:"command"`
	Timeout int    `json:"timeout"`
}

var knownHookTypes = map[agentloop.HookType]bool{
	agentloop.HookSessionStart:     true,
	agentloop.HookUserPromptSubmit: true,
	agentloop.HookPreToolUse:       true,
	agentloop.HookPostToolUse:      true,
	agentloop.HookSubagentStart:    true,
	agentloop.HookSubagentStop:     true,
	agentloop.HookStop:             true,
}

// LoadHooks reads and validates a hook configuration file.
func LoadHooks(path string) (*HooksFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read hooks file: %w", err)
	}
	var file HooksFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse hooks file %s: %w", path, err)
	}
	for hookType, matchers := range file.Hooks {
		if !knownHookTypes[hookType] {
			return nil, fmt.Errorf("hooks file %s: unknown hook type %q", path, hookType)
		}
		for i, m := range matchers {
			for j, h := range m.Hooks {
				if h.Type != "" && h.Type != "command" {
					return nil, fmt.Errorf("hooks file %s: %s[%d].hooks[%d]: unsupported type %q", path, hookType, i, j, h.Type)
				}
				if h.Command == "" {
					return nil, fmt.Errorf("hooks file %s: %s[%d].hooks[%d]: command is required", path, hookType, i, j)
				}
			}
		}
	}
	return &file, nil
}

// Register adds every configured command hook to reg, preserving file order
// within each hook type.
func (f *HooksFile) Register(reg *agentloop.HookRegistry) int {
	count := 0
	for hookType, matchers := range f.Hooks {
		for _, m := range matchers {
			hooks := make([]agentloop.CommandHook, 0, len(m.Hooks))
			for _, h := range m.Hooks {
				hooks = append(hooks, agentloop.CommandHook{
					Command: h.Command,
					Timeout: time.Duration(h.Timeout) * time.Second,
				})
			}
			reg.Register(hookType, agentloop.CommandHookFactory(m.Matcher, hooks...))
			count += len(hooks)
		}
	}
	return count
}
