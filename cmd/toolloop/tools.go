package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/martinemde/toolloop/agentloop"
	"github.com/martinemde/toolloop/backend"
	ignore "github.com/sabhiram/go-gitignore"
)

const (
	defaultReadLimit = 2000
	defaultListDepth = 3
	maxListEntries   = 500
)

// workspace resolves tool paths against the working directory.
type workspace struct {
	dir string
}

func (w workspace) resolvePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(w.dir, path)
}

// readFile returns line-numbered content starting at the 1-based offset.
func (w workspace) readFile(path string, offset, limit int) (string, error) {
	data, err := os.ReadFile(w.resolvePath(path))
	if err != nil {
		return "", fmt.Errorf("read_file: %w", err)
	}
	lines := strings.Split(string(data), "\n")

	start := 0
	if offset > 0 {
		start = offset - 1
	}
	if start >= len(lines) {
		return "", nil
	}
	if limit <= 0 {
		limit = defaultReadLimit
	}
	end := len(lines)
	if start+limit < end {
		end = start + limit
	}

	var sb strings.Builder
	for i := start; i < end; i++ {
		fmt.Fprintf(&sb, "%d | %s\n", i+1, lines[i])
	}
	return sb.String(), nil
}

// ignoreRules loads .gitignore and .toolloopignore from the workspace root.
func (w workspace) ignoreRules() *ignore.GitIgnore {
	var rules []string
	for _, name := range []string{".gitignore", ".toolloopignore"} {
		if lines, err := readIgnoreFile(filepath.Join(w.dir, name)); err == nil {
			rules = append(rules, lines...)
		}
	}
	if len(rules) == 0 {
		return nil
	}
	return ignore.CompileIgnoreLines(rules...)
}

func readIgnoreFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}

// listFiles walks path up to maxDepth levels, skipping .git and ignored
// entries. Directories end in "/".
func (w workspace) listFiles(path string, maxDepth int) (string, error) {
	root := w.resolvePath(path)
	if maxDepth <= 0 {
		maxDepth = defaultListDepth
	}
	rules := w.ignoreRules()

	var entries []string
	truncated := false
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == root {
			return nil
		}
		rel, relErr := filepath.Rel(root, p)
		if relErr != nil {
			return relErr
		}
		if d.IsDir() && d.Name() == ".git" {
			return filepath.SkipDir
		}
		if rules != nil {
			fromWorkspace, _ := filepath.Rel(w.dir, p)
			candidate := filepath.ToSlash(fromWorkspace)
			if rules.MatchesPath(candidate) || (d.IsDir() && rules.MatchesPath(candidate+"/")) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
		}
		if len(entries) >= maxListEntries {
			truncated = true
			return filepath.SkipAll
		}

		name := filepath.ToSlash(rel)
		if d.IsDir() {
			name += "/"
		}
		entries = append(entries, name)

		if d.IsDir() && strings.Count(filepath.ToSlash(rel), "/")+1 >= maxDepth {
			return filepath.SkipDir
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("list_files: %w", err)
	}
	if truncated {
		entries = append(entries, fmt.Sprintf("[listing truncated at %d entries]", maxListEntries))
	}
	return strings.Join(entries, "\n"), nil
}

// registerBuiltinTools adds read_file and list_files to reg.
func registerBuiltinTools(reg *agentloop.ToolRegistry, ws workspace) error {
	err := reg.Register(backend.ToolDefinition{
		Name:        "read_file",
		Description: "Read a file from the filesystem. Returns line-numbered content.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"file_path": map[string]interface{}{
					"type":        "string",
					"description": "Path to the file, absolute or relative to the working directory.",
				},
				"offset": map[string]interface{}{
					"type":        "integer",
					"description": "1-based line number to start reading from.",
					"minimum":     1,
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of lines to read. Default: 2000.",
					"minimum":     1,
				},
			},
			"required": []string{"file_path"},
		},
	}, func(_ context.Context, input json.RawMessage) (string, error) {
		args, err := agentloop.ParseToolArguments(input)
		if err != nil {
			return "", err
		}
		path, _ := agentloop.GetStringArg(args, "file_path")
		offset, _ := agentloop.GetIntArg(args, "offset")
		limit, _ := agentloop.GetIntArg(args, "limit")
		return ws.readFile(path, offset, limit)
	})
	if err != nil {
		return err
	}

	return reg.Register(backend.ToolDefinition{
		Name:        "list_files",
		Description: "List files and directories, honouring .gitignore. Directories end in /.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Directory to list. Default: the working directory.",
				},
				"max_depth": map[string]interface{}{
					"type":        "integer",
					"description": "How many directory levels to descend. Default: 3.",
					"minimum":     1,
				},
			},
		},
	}, func(_ context.Context, input json.RawMessage) (string, error) {
		args, err := agentloop.ParseToolArguments(input)
		if err != nil {
			return "", err
		}
		path, ok := agentloop.GetStringArg(args, "path")
		if !ok || path == "" {
			path = "."
		}
		depth, _ := agentloop.GetIntArg(args, "max_depth")
		return ws.listFiles(path, depth)
	})
}
