package agentloop

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

const maxProjectDocBytes = 32 * 1024

// SystemPromptOptions feeds BuildSystemPrompt.
type SystemPromptOptions struct {
	Base       string // role instructions placed first
	WorkingDir string
	Model      string
	Tools      []string
	Extra      string // user instructions placed last
}

// BuildSystemPrompt assembles the base instructions, an environment block,
// project instruction files and any extra instructions.
func BuildSystemPrompt(opts SystemPromptOptions) string {
	var sections []string
	if opts.Base != "" {
		sections = append(sections, opts.Base)
	}
	sections = append(sections, environmentBlock(opts))
	if docs := DiscoverProjectDocs(opts.WorkingDir); docs != "" {
		sections = append(sections, "# Project instructions\n\n"+docs)
	}
	if opts.Extra != "" {
		sections = append(sections, "# User instructions\n\n"+opts.Extra)
	}
	return strings.Join(sections, "\n\n")
}

func environmentBlock(opts SystemPromptOptions) string {
	var sb strings.Builder
	sb.WriteString("<environment>\n")
	if opts.WorkingDir != "" {
		fmt.Fprintf(&sb, "Working directory: %s\n", opts.WorkingDir)
		if branch := gitOutput(opts.WorkingDir, "rev-parse", "--abbrev-ref", "HEAD"); branch != "" {
			fmt.Fprintf(&sb, "Git branch: %s\n", branch)
		}
	}
	fmt.Fprintf(&sb, "Platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(&sb, "Today's date: %s\n", time.Now().Format("2006-01-02"))
	if opts.Model != "" {
		fmt.Fprintf(&sb, "Model: %s\n", opts.Model)
	}
	if len(opts.Tools) > 0 {
		fmt.Fprintf(&sb, "Tools: %s\n", strings.Join(opts.Tools, ", "))
	}
	sb.WriteString("</environment>")
	return sb.String()
}

// DiscoverProjectDocs loads AGENTS.md files from the git root (or workingDir)
// down to workingDir, capped at 32KB in total.
func DiscoverProjectDocs(workingDir string) string {
	if workingDir == "" {
		return ""
	}
	root := gitOutput(workingDir, "rev-parse", "--show-toplevel")
	if root == "" {
		root = workingDir
	}

	var docs []string
	total := 0
	for _, dir := range pathHierarchy(root, workingDir) {
		content, err := os.ReadFile(filepath.Join(dir, "AGENTS.md"))
		if err != nil {
			continue
		}
		remaining := maxProjectDocBytes - total
		if remaining <= 0 {
			break
		}
		text := string(content)
		if len(text) > remaining {
			text = text[:remaining] + "\n[project instructions truncated]"
		}
		docs = append(docs, fmt.Sprintf("## AGENTS.md (from %s)\n\n%s", dir, text))
		total += len(text)
	}
	return strings.Join(docs, "\n\n---\n\n")
}

// pathHierarchy lists the directories from root down to target. When target
// is not under root only target is returned.
func pathHierarchy(root, target string) []string {
	rel, err := filepath.Rel(root, target)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return []string{target}
	}
	dirs := []string{root}
	current := root
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		current = filepath.Join(current, part)
		dirs = append(dirs, current)
	}
	return dirs
}

func gitOutput(dir string, args ...string) string {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}
