package highlight

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// DefaultPalette maps the labels used by the builtin syntax definitions to
// foreground colors.
var DefaultPalette = map[string]string{
	"keyword":  "#C678DD",
	"string":   "#98C379",
	"comment":  "#5C6370",
	"number":   "#D19A66",
	"operator": "#56B6C2",
	"constant": "#E5C07B",
	"builtin":  "#61AFEF",
}

// Theme maps labels to terminal styles.
type Theme struct {
	renderer *lipgloss.Renderer
	styles   map[string]lipgloss.Style
}

// ThemeOption configures a Theme.
type ThemeOption func(*Theme)

// WithRenderer renders through r instead of the default stdout renderer.
func WithRenderer(r *lipgloss.Renderer) ThemeOption {
	return func(t *Theme) { t.renderer = r }
}

// NewTheme builds a theme from DefaultPalette with colors overridden by
// label. Colors must be "#RGB" or "#RRGGBB".
func NewTheme(overrides map[string]string, opts ...ThemeOption) (*Theme, error) {
	t := &Theme{renderer: lipgloss.DefaultRenderer()}
	for _, opt := range opts {
		opt(t)
	}

	colors := maps.Clone(DefaultPalette)
	for label, value := range overrides {
		if !isValidHexColor(value) {
			return nil, fmt.Errorf("invalid hex color for %s: %s", label, value)
		}
		colors[label] = value
	}

	t.styles = make(map[string]lipgloss.Style, len(colors))
	for label, hex := range colors {
		style := t.renderer.NewStyle().
			Foreground(lipgloss.Color(hex)).
			TabWidth(lipgloss.NoTabConversion)
		switch label {
		case "keyword":
			style = style.Bold(true)
		case "comment":
			style = style.Italic(true)
		}
		t.styles[label] = style
	}
	return t, nil
}

// Labels returns the labels the theme has a style for, sorted.
func (t *Theme) Labels() []string {
	return slices.Sorted(maps.Keys(t.styles))
}

// Style returns the style for label and whether one is defined.
func (t *Theme) Style(label string) (lipgloss.Style, bool) {
	s, ok := t.styles[label]
	return s, ok
}

// Render applies the timeline to text. Unlabeled spans and labels without a
// style pass through unchanged. Styling never crosses a newline.
func (t *Theme) Render(text string, tl Timeline) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, seg := range tl.Segments() {
		if seg.End > len(text) {
			break
		}
		chunk := text[seg.Start:seg.End]
		style, ok := t.styles[firstLabel(seg.Labels)]
		if !ok {
			b.WriteString(chunk)
			continue
		}
		for i, line := range strings.Split(chunk, "\n") {
			if i > 0 {
				b.WriteByte('\n')
			}
			if line != "" {
				b.WriteString(style.Render(line))
			}
		}
	}
	return b.String()
}

func firstLabel(labels []string) string {
	if len(labels) == 0 {
		return ""
	}
	return labels[0]
}

func isValidHexColor(s string) bool {
	if !strings.HasPrefix(s, "#") {
		return false
	}
	hex := s[1:]
	if len(hex) != 3 && len(hex) != 6 {
		return false
	}
	_, err := strconv.ParseUint(hex, 16, 64)
	return err == nil
}
