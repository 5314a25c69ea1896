package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/martinemde/toolloop/agentloop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestReadFileLineNumbers(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "one\ntwo\nthree")
	ws := workspace{dir: dir}

	out, err := ws.readFile("a.txt", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "1 | one\n2 | two\n3 | three\n", out)

	out, err = ws.readFile(filepath.Join(dir, "a.txt"), 2, 1)
	require.NoError(t, err)
	assert.Equal(t, "2 | two\n", out)

	out, err = ws.readFile("a.txt", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, out)

	_, err = ws.readFile("missing.txt", 0, 0)
	assert.ErrorContains(t, err, "read_file")
}

func TestListFilesHonoursGitignore(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".gitignore"), "build/\n*.log\n")
	writeFile(t, filepath.Join(dir, "main.go"), "package main")
	writeFile(t, filepath.Join(dir, "debug.log"), "noise")
	writeFile(t, filepath.Join(dir, "build", "out.bin"), "x")
	writeFile(t, filepath.Join(dir, "pkg", "deep", "deeper", "x.go"), "package deeper")
	writeFile(t, filepath.Join(dir, ".git", "HEAD"), "ref: refs/heads/main")
	ws := workspace{dir: dir}

	out, err := ws.listFiles(".", 2)
	require.NoError(t, err)
	entries := strings.Split(out, "\n")
	assert.Contains(t, entries, "main.go")
	assert.Contains(t, entries, "pkg/")
	assert.Contains(t, entries, "pkg/deep/")
	assert.NotContains(t, entries, "pkg/deep/deeper/")
	assert.NotContains(t, entries, "debug.log")
	assert.NotContains(t, entries, "build/")
	assert.NotContains(t, entries, "build/out.bin")
	assert.NotContains(t, entries, ".git/")
}

func TestBuiltinToolsThroughRegistry(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "README.md"), "# Title\nBody")
	reg := agentloop.NewToolRegistry()
	require.NoError(t, registerBuiltinTools(reg, workspace{dir: dir}))
	assert.Equal(t, []string{"list_files", "read_file"}, reg.Names())

	input, err := reg.Validate("read_file", `{"file_path":"README.md","offset":2}`)
	require.NoError(t, err)
	out, err := reg.Invoke(context.Background(), "read_file", input)
	require.NoError(t, err)
	assert.Equal(t, "2 | Body\n", out)

	_, err = reg.Validate("read_file", `{"offset":0}`)
	assert.Error(t, err)

	out, err = reg.Invoke(context.Background(), "list_files", json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.Equal(t, "README.md", out)
}
