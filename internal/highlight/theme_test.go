package highlight

import (
	"io"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func trueColorRenderer() *lipgloss.Renderer {
	r := lipgloss.NewRenderer(io.Discard)
	r.SetColorProfile(termenv.TrueColor)
	return r
}

func TestTheme_RenderStylesLabeledSpans(t *testing.T) {
	theme, err := NewTheme(nil, WithRenderer(trueColorRenderer()))
	require.NoError(t, err)

	text := `if "x" else 1`
	out := theme.Render(text, ComputeTimeline(scenarioMatcher(t), text))

	require.Contains(t, out, "\x1b[")
	// #98C379
	require.Contains(t, out, "38;2;152;195;121")
	require.Equal(t, text, ansi.Strip(out))
}

func TestTheme_Overrides(t *testing.T) {
	theme, err := NewTheme(map[string]string{"string": "#FF0000", "custom": "#0f0"}, WithRenderer(trueColorRenderer()))
	require.NoError(t, err)
	require.Contains(t, theme.Labels(), "custom")

	out := theme.Render(`"x"`, Timeline{{Length: 3, Labels: []string{"string"}}})
	require.Contains(t, out, "38;2;255;0;0")

	_, err = NewTheme(map[string]string{"string": "red"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "string")
}

func TestTheme_UnknownLabelPassesThrough(t *testing.T) {
	theme, err := NewTheme(nil, WithRenderer(trueColorRenderer()))
	require.NoError(t, err)

	require.Equal(t, "abc", theme.Render("abc", Timeline{{Length: 3, Labels: []string{"nope"}}}))
}

func TestTheme_RenderKeepsNewlinesAndTabs(t *testing.T) {
	theme, err := NewTheme(nil, WithRenderer(trueColorRenderer()))
	require.NoError(t, err)

	text := "-- a\n\t-- b\n"
	tl := Timeline{{Length: len(text), Labels: []string{"comment"}}}
	require.Equal(t, text, ansi.Strip(theme.Render(text, tl)))
}

func TestTheme_RenderPreservesTextProperty(t *testing.T) {
	theme, err := NewTheme(nil, WithRenderer(trueColorRenderer()))
	require.NoError(t, err)
	m := scenarioMatcher(t)

	rapid.Check(t, func(t *rapid.T) {
		text := rapid.StringOf(rapid.SampledFrom([]rune(`if else "ab" 1`+"\n\t"))).Draw(t, "text")
		out := theme.Render(text, ComputeTimeline(m, text))
		if got := ansi.Strip(out); got != text {
			t.Fatalf("render changed text: %q -> %q", text, got)
		}
	})
}
