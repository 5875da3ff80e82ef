package syntax

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func labelAt(t *testing.T, m *Matcher, text string) []string {
	t.Helper()
	var labels []string
	for _, sm := range m.FindAll(text) {
		labels = append(labels, text[sm[0]:sm[1]]+"="+m.Label(sm))
	}
	return labels
}

func TestRegistry_Empty(t *testing.T) {
	r := NewRegistry()

	require.Equal(t, 0, r.Len())
	require.True(t, r.Matcher().Empty())
	require.Nil(t, r.Matcher().FindAll("anything"))
	require.Equal(t, uint64(0), r.Matcher().Generation())
}

func TestRegistry_AddPattern(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.AddPattern("keyword", `\bif\b|\belse\b`))
	require.NoError(t, r.AddPattern("string", `"[^"]*"`))

	entries := r.Entries()
	require.Equal(t, []Entry{
		{Label: "keyword", Pattern: `\bif\b|\belse\b`, Order: 0},
		{Label: "string", Pattern: `"[^"]*"`, Order: 1},
	}, entries)
	require.Equal(t, uint64(2), r.Matcher().Generation())

	require.Equal(t,
		[]string{"if=keyword", `"x"=string`, "else=keyword"},
		labelAt(t, r.Matcher(), `if "x" else 1`))
}

func TestRegistry_FirstRegisteredWinsOnTie(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.AddPattern("short", `ab`))
	require.NoError(t, r.AddPattern("long", `abcd`))

	require.Equal(t, []string{"ab=short"}, labelAt(t, r.Matcher(), "abcd"))

	reversed := NewRegistry()
	require.NoError(t, reversed.AddPattern("long", `abcd`))
	require.NoError(t, reversed.AddPattern("short", `ab`))

	require.Equal(t, []string{"abcd=long"}, labelAt(t, reversed.Matcher(), "abcd"))
}

func TestRegistry_LeftmostWinsOverOrder(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.AddPattern("late", `cd`))
	require.NoError(t, r.AddPattern("early", `bcd`))

	require.Equal(t, []string{"bcd=early"}, labelAt(t, r.Matcher(), "abcd"))
}

func TestRegistry_NestedCaptureGroupsKeepLabelsAligned(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.AddPattern("call", `(\w+)\((\w*)\)`))
	require.NoError(t, r.AddPattern("number", `\d+`))
	require.NoError(t, r.AddPattern("named", `(?P<sigil>\$)\w+`))

	require.Equal(t,
		[]string{"f(x)=call", "42=number", "$v=named"},
		labelAt(t, r.Matcher(), "f(x) 42 $v"))
}

func TestRegistry_InvalidPattern(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.AddPattern("ok", `x`))

	err := r.AddPattern("broken", `(unclosed`)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrPattern))

	var perr *PatternError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, "broken", perr.Label)
	require.Equal(t, "invalid regular expression", perr.Reason)

	// unchanged
	require.Equal(t, 1, r.Len())
	require.Equal(t, uint64(1), r.Matcher().Generation())
}

func TestRegistry_RejectsZeroWidthPatterns(t *testing.T) {
	patterns := []string{
		``,
		`a*`,
		`x?`,
		`\b`,
		`^`,
		`(?m)$`,
		`(a|)`,
		`a{0,3}`,
		`(?:)`,
		`\bfoo|\b`,
	}
	for _, p := range patterns {
		t.Run(p, func(t *testing.T) {
			r := NewRegistry()
			err := r.AddPattern("zero", p)
			require.ErrorIs(t, err, ErrPattern)
			require.Contains(t, err.Error(), "empty string")
			require.Equal(t, 0, r.Len())
		})
	}
}

func TestRegistry_AcceptsAnchoredNonEmptyPatterns(t *testing.T) {
	for _, p := range []string{`\bif\b`, `a+`, `(?m)^#.*`, `a{1,3}`, `(a|b)c*`} {
		r := NewRegistry()
		require.NoError(t, r.AddPattern("ok", p), p)
	}
}

func TestRegistry_EmptyLabel(t *testing.T) {
	r := NewRegistry()
	require.ErrorIs(t, r.AddPattern("", `x`), ErrPattern)
}

func TestRegistry_AddTokens(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.AddTokens("keyword", "if", "a.b", "end"))

	require.Equal(t, `\bif\b|\ba\.b\b|\bend\b`, r.Entries()[0].Pattern)
	require.Equal(t,
		[]string{"if=keyword", "a.b=keyword", "end=keyword"},
		labelAt(t, r.Matcher(), "if axb a.b endless end"))
}

func TestRegistry_AddTokensErrors(t *testing.T) {
	r := NewRegistry()

	err := r.AddTokens("keyword")
	require.ErrorIs(t, err, ErrPattern)
	require.Contains(t, err.Error(), "keyword")

	require.ErrorIs(t, r.AddTokens("keyword", "if", ""), ErrPattern)
	require.Equal(t, 0, r.Len())
}

func TestMatcher_SnapshotIsImmutable(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.AddPattern("a", `a`))
	before := r.Matcher()

	require.NoError(t, r.AddPattern("b", `b`))

	require.Equal(t, []string{"a"}, before.Labels())
	require.Equal(t, []string{"a", "b"}, r.Matcher().Labels())
	require.Equal(t, []string{"a=a"}, labelAt(t, before, "ab"))
}

func TestBuiltin(t *testing.T) {
	require.Contains(t, BuiltinNames(), "lua")
	require.Contains(t, BuiltinNames(), "basic")

	def, err := Builtin("lua")
	require.NoError(t, err)
	require.Equal(t, "lua", def.Name)

	r := NewRegistry()
	require.NoError(t, r.AddDefinition(def))
	require.Equal(t, len(def.Rules), r.Len())

	require.Equal(t,
		[]string{"local=keyword", "==operator", `"a--b"=string`, "-- note=comment"},
		labelAt(t, r.Matcher(), `local x = "a--b" -- note`))

	_, err = Builtin("cobol")
	require.Error(t, err)
	require.Contains(t, err.Error(), "lua")
}

func TestParseDefinition(t *testing.T) {
	def, err := ParseDefinition([]byte(`
name: tiny
rules:
  - label: keyword
    tokens: [if, else]
  - label: number
    pattern: '\d+'
`))
	require.NoError(t, err)
	require.Equal(t, Definition{
		Name: "tiny",
		Rules: []Rule{
			{Label: "keyword", Tokens: []string{"if", "else"}},
			{Label: "number", Pattern: `\d+`},
		},
	}, def)
}

func TestParseDefinition_RuleErrors(t *testing.T) {
	_, err := ParseDefinition([]byte("rules:\n  - label: x\n"))
	require.ErrorIs(t, err, ErrPattern)
	require.Contains(t, err.Error(), "rule 0")

	_, err = ParseDefinition([]byte("rules:\n  - label: x\n    pattern: a\n    tokens: [b]\n"))
	require.ErrorIs(t, err, ErrPattern)

	_, err = ParseDefinition([]byte("rules: [unclosed"))
	require.Error(t, err)
}

func TestLoadDefinitionFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mini.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rules:\n  - label: word\n    pattern: '\\w+'\n"), 0o600))

	def, err := LoadDefinitionFile(path)
	require.NoError(t, err)
	require.Equal(t, "mini", def.Name)
	require.Len(t, def.Rules, 1)

	_, err = LoadDefinitionFile(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}

func TestAddDefinition_StopsAtFirstBadRule(t *testing.T) {
	r := NewRegistry()
	err := r.AddDefinition(Definition{
		Name: "bad",
		Rules: []Rule{
			{Label: "a", Pattern: "a"},
			{Label: "b", Pattern: "b*"},
			{Label: "c", Pattern: "c"},
		},
	})
	require.ErrorIs(t, err, ErrPattern)
	require.Contains(t, err.Error(), `syntax "bad" rule 1`)
	require.Equal(t, 1, r.Len())
}
