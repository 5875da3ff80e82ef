package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/zjrosen/omniedit/internal/config"
	"github.com/zjrosen/omniedit/internal/editor"
	"github.com/zjrosen/omniedit/internal/highlight"
	"github.com/zjrosen/omniedit/internal/log"
	"github.com/zjrosen/omniedit/internal/syntax"
	"github.com/zjrosen/omniedit/internal/watcher"
)

var (
	highlightSpans      bool
	highlightWatch      bool
	highlightExpandTabs bool
)

var highlightCmd = &cobra.Command{
	Use:   "highlight <file>",
	Short: "Print a file with syntax highlighting",
	Long: `Print a file with the configured syntax rules applied.

With --spans the style timeline is printed as a table instead: one row per
span with its byte offsets and label. With --watch the file is printed again
whenever it, or the configured syntax file, changes.

Examples:
  omniedit highlight main.lua
  omniedit highlight main.lua --spans
  omniedit highlight main.lua --watch`,
	Args: cobra.ExactArgs(1),
	RunE: runHighlight,
}

func init() {
	rootCmd.AddCommand(highlightCmd)

	highlightCmd.Flags().BoolVar(&highlightSpans, "spans", false, "print the span table instead of styled text")
	highlightCmd.Flags().BoolVarP(&highlightWatch, "watch", "w", false, "re-render when the file or syntax file changes")
	highlightCmd.Flags().BoolVar(&highlightExpandTabs, "expand-tabs", false, "expand tabs to editor.tab_width spaces before rendering")
}

// renderer highlights files with one registry, cache and theme.
type renderer struct {
	syntax    config.SyntaxConfig
	registry  *syntax.Registry
	hl        *highlight.Highlighter
	theme     *highlight.Theme
	editor    config.EditorConfig
	spans     bool
	expandTab bool
}

func newRenderer(c config.Config, themeOpts ...highlight.ThemeOption) (*renderer, error) {
	reg, err := c.Syntax.Registry()
	if err != nil {
		return nil, err
	}
	theme, err := highlight.NewTheme(c.Syntax.Styles, themeOpts...)
	if err != nil {
		return nil, err
	}
	return &renderer{
		syntax:   c.Syntax,
		registry: reg,
		hl:       highlight.NewHighlighter(highlight.WithCacheExpiration(c.Cache.Expiration, c.Cache.CleanupInterval)),
		theme:    theme,
		editor:   c.Editor,
	}, nil
}

// reload rebuilds the registry from the syntax configuration.
func (r *renderer) reload() error {
	reg, err := r.syntax.Registry()
	if err != nil {
		return err
	}
	r.registry = reg
	r.hl.Invalidate()
	return nil
}

func (r *renderer) render(w io.Writer, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: user-selected file
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	doc, err := newDocument(r.editor, r.registry, r.hl)
	if err != nil {
		return err
	}
	doc.SetText(string(data))
	if r.expandTab && r.editor.TabWidth > 0 {
		if err := doc.ExpandTabs(r.editor.TabWidth); err != nil {
			return err
		}
	}

	tl := doc.Timeline()
	if r.spans {
		_, err = fmt.Fprintln(w, spanTable(doc.Text(), tl))
		return err
	}
	_, err = io.WriteString(w, r.theme.Render(doc.Text(), tl))
	return err
}

// newDocument creates a document with the editor settings applied.
func newDocument(ec config.EditorConfig, reg *syntax.Registry, hl *highlight.Highlighter) (*editor.Document, error) {
	doc := editor.NewDocument(reg, editor.WithHighlighter(hl))
	if ec.TabWidth > 0 {
		if err := doc.EnableDynamicTabs(ec.TabWidth); err != nil {
			return nil, err
		}
	}
	if ec.SmartNewline {
		doc.EnableSmartNewline()
	}
	return doc, nil
}

// spanTable lists each span with its offsets, label and a short excerpt.
func spanTable(text string, tl highlight.Timeline) string {
	rows := make([][]string, 0, len(tl))
	for _, seg := range tl.Segments() {
		label := "-"
		if len(seg.Labels) > 0 {
			label = strings.Join(seg.Labels, ",")
		}
		rows = append(rows, []string{
			strconv.Itoa(seg.Start),
			strconv.Itoa(seg.End - seg.Start),
			label,
			excerpt(text[seg.Start:seg.End], 32),
		})
	}
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers("OFFSET", "LENGTH", "LABEL", "TEXT").
		Rows(rows...).
		String()
}

// excerpt quotes s, truncated to limit display cells.
func excerpt(s string, limit int) string {
	return strconv.Quote(ansi.Truncate(s, limit, "…"))
}

func runHighlight(cmd *cobra.Command, args []string) error {
	r, err := newRenderer(cfg)
	if err != nil {
		return err
	}
	r.spans = highlightSpans
	r.expandTab = highlightExpandTabs

	path := args[0]
	out := cmd.OutOrStdout()
	if err := r.render(out, path); err != nil {
		return err
	}
	if !highlightWatch {
		return nil
	}

	watched := []string{path}
	if f := r.syntax.FilePath(); f != "" {
		watched = append(watched, f)
	}
	w, err := watcher.New(watcher.DefaultConfig(watched...))
	if err != nil {
		return err
	}
	changes, err := w.Start()
	if err != nil {
		return err
	}
	defer func() { _ = w.Stop() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	syntaxFile := r.syntax.FilePath()
	term := termenv.NewOutput(out)
	for {
		select {
		case <-ctx.Done():
			return nil
		case changed, ok := <-changes:
			if !ok {
				return nil
			}
			log.Debug(log.CatWatcher, "re-rendering", "changed", changed)
			if syntaxFile != "" && containsPath(changed, syntaxFile) {
				if err := r.reload(); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "syntax reload failed: %v\n", err)
					continue
				}
			}
			term.ClearScreen()
			if err := r.render(out, path); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "%v\n", err)
			}
		}
	}
}

func containsPath(list []string, path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	return slices.Contains(list, abs)
}
