package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/omniedit/internal/config"
	"github.com/zjrosen/omniedit/internal/syntax"
)

func TestAddRule_SavesValidRule(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, config.WriteDefaultConfig(path))

	sc := config.SyntaxConfig{Builtin: "basic"}
	var buf bytes.Buffer
	require.NoError(t, addRule(&buf, path, sc, syntax.Rule{Label: "todo", Pattern: "TODO"}))
	require.Contains(t, buf.String(), "added todo rule")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "label: todo")
}

func TestAddRule_RejectsBadPattern(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, config.WriteDefaultConfig(path))
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	err = addRule(&bytes.Buffer{}, path, config.SyntaxConfig{}, syntax.Rule{Label: "empty", Pattern: `a*`})
	require.ErrorIs(t, err, syntax.ErrPattern)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestAddRule_DoesNotMutateConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	patterns := make([]syntax.Rule, 1, 4)
	patterns[0] = syntax.Rule{Label: "a", Pattern: "a"}
	sc := config.SyntaxConfig{Patterns: patterns}

	require.NoError(t, addRule(&bytes.Buffer{}, path, sc, syntax.Rule{Label: "b", Pattern: "b"}))
	require.Len(t, sc.Patterns, 1)
	require.Equal(t, syntax.Rule{}, patterns[:2][1])
}

func TestAddRule_NoConfigFile(t *testing.T) {
	err := addRule(&bytes.Buffer{}, "", config.SyntaxConfig{}, syntax.Rule{Label: "a", Pattern: "a"})
	require.Error(t, err)
}

func TestPrintEntries(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printEntries(&buf, []syntax.Entry{
		{Label: "keyword", Pattern: `\bif\b`, Order: 0},
		{Label: "string", Pattern: `"[^"]*"`, Order: 1},
	}))

	out := buf.String()
	require.Contains(t, out, "ORDER")
	require.Contains(t, out, "keyword")
	require.Contains(t, out, `\bif\b`)
}
