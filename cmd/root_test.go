package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/require"
)

// executeCommand runs the root command with args and returns what it wrote
// to stdout.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cfgFile = ""
	debugFlag = false
	highlightSpans = false
	highlightWatch = false
	highlightExpandTabs = false
	runInterval = 0
	runNoHistory = false
	historyLimit = 20

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return stdout.String(), err
}

func testConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf(`run:
  pump_interval: 10ms
syntax:
  builtin: lua
history:
  path: %s
`, filepath.Join(dir, "history.db"))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestExecute_WritesDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fresh", "config.yaml")

	out, err := executeCommand(t, "--config", path, "syntax", "builtins")
	require.NoError(t, err)
	require.Contains(t, out, "* lua")
	require.FileExists(t, path)
}

func TestExecute_UserConfigFallback(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	_, err := executeCommand(t, "syntax", "builtins")
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(home, ".config", "omniedit", "config.yaml"))
	require.Equal(t, filepath.Join(home, ".config", "omniedit", "config.yaml"), configFilePath)
}

func TestExecute_InvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("editor:\n  tab_width: -1\n"), 0o600))

	_, err := executeCommand(t, "--config", path, "syntax", "list")
	require.Error(t, err)
	require.Contains(t, err.Error(), "editor.tab_width")
}

func TestExecute_SyntaxTokensThenList(t *testing.T) {
	path := testConfig(t, t.TempDir())

	_, err := executeCommand(t, "--config", path, "syntax", "tokens", "special", "goto", "continue")
	require.NoError(t, err)

	out, err := executeCommand(t, "--config", path, "syntax", "list")
	require.NoError(t, err)
	require.Contains(t, out, "special")
	require.Contains(t, out, `\bgoto\b|\bcontinue\b`)
}

func TestExecute_SyntaxAddRejectsZeroWidth(t *testing.T) {
	path := testConfig(t, t.TempDir())

	_, err := executeCommand(t, "--config", path, "syntax", "add", "bad", "x*")
	require.Error(t, err)
	require.Contains(t, err.Error(), "empty string")
}

func TestExecute_HighlightSpans(t *testing.T) {
	dir := t.TempDir()
	path := testConfig(t, dir)
	src := filepath.Join(dir, "main.lua")
	require.NoError(t, os.WriteFile(src, []byte(`local x = "hi" -- note`), 0o600))

	out, err := executeCommand(t, "--config", path, "highlight", src, "--spans")
	require.NoError(t, err)
	require.Contains(t, out, "keyword")
	require.Contains(t, out, "string")
	require.Contains(t, out, "comment")
}

func TestExecute_HighlightPlain(t *testing.T) {
	dir := t.TempDir()
	path := testConfig(t, dir)
	src := filepath.Join(dir, "main.lua")
	text := "if x then\n  print(1)\nend\n"
	require.NoError(t, os.WriteFile(src, []byte(text), 0o600))

	out, err := executeCommand(t, "--config", path, "highlight", src)
	require.NoError(t, err)
	require.Equal(t, text, ansi.Strip(out))
}

func TestExecute_RunRecordsHistory(t *testing.T) {
	dir := t.TempDir()
	path := testConfig(t, dir)
	src := filepath.Join(dir, "hello.lua")
	require.NoError(t, os.WriteFile(src, []byte(`for i = 1, 3 do print("line " .. i) end`), 0o600))

	out, err := executeCommand(t, "--config", path, "run", src)
	require.NoError(t, err)
	require.Equal(t, "line 1\nline 2\nline 3\n", out)

	out, err = executeCommand(t, "--config", path, "history")
	require.NoError(t, err)
	require.Contains(t, out, "completed")
	require.Contains(t, out, "hello.lua")
}

func TestExecute_RunFailureReturnsError(t *testing.T) {
	dir := t.TempDir()
	path := testConfig(t, dir)
	src := filepath.Join(dir, "bad.lua")
	require.NoError(t, os.WriteFile(src, []byte(`error("kaput")`), 0o600))

	_, err := executeCommand(t, "--config", path, "run", src, "--no-history")
	require.Error(t, err)
	require.Contains(t, err.Error(), "kaput")
}

func TestExecute_HistoryShowUnknown(t *testing.T) {
	path := testConfig(t, t.TempDir())

	_, err := executeCommand(t, "--config", path, "history", "show", "nope")
	require.Error(t, err)
	require.Contains(t, err.Error(), "no run with id nope")
}
