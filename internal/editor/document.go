// Package editor models an editable, highlighted text buffer with a caret.
//
// Every mutation re-highlights the whole text synchronously, so Timeline
// always describes the current text.
package editor

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"

	"github.com/zjrosen/omniedit/internal/highlight"
	"github.com/zjrosen/omniedit/internal/log"
	"github.com/zjrosen/omniedit/internal/syntax"
)

// DefaultTabStop is the display width of a tab when dynamic tabs are off.
const DefaultTabStop = 8

var (
	ErrTabsAlreadyEnabled = errors.New("dynamic tabs already enabled")
	ErrNegativeTabWidth   = errors.New("tab width must not be negative")
	ErrOutOfRange         = errors.New("offset out of range")
)

// Option configures a Document.
type Option func(*Document)

// WithHighlighter shares a highlighter, and its cache, between documents.
func WithHighlighter(h *highlight.Highlighter) Option {
	return func(d *Document) {
		if h != nil {
			d.hl = h
		}
	}
}

// Document is not safe for concurrent use.
type Document struct {
	registry *syntax.Registry
	hl       *highlight.Highlighter

	text  string
	caret int

	tabWidth     int
	tabsEnabled  bool
	smartNewline bool

	timeline   highlight.Timeline
	generation uint64
	entry      highlight.Entry
}

// NewDocument creates an empty document highlighted with reg. A nil reg
// leaves every span unstyled.
func NewDocument(reg *syntax.Registry, opts ...Option) *Document {
	if reg == nil {
		reg = syntax.NewRegistry()
	}
	d := &Document{registry: reg}
	for _, opt := range opts {
		opt(d)
	}
	if d.hl == nil {
		d.hl = highlight.NewHighlighter()
	}
	d.rehighlight()
	return d
}

// Text returns the current text.
func (d *Document) Text() string { return d.text }

// Caret returns the caret byte offset.
func (d *Document) Caret() int { return d.caret }

// Timeline returns the highlighting of the current text. Patterns added to
// the registry since the last mutation are picked up here.
func (d *Document) Timeline() highlight.Timeline {
	if d.registry.Matcher().Generation() != d.generation {
		d.rehighlight()
	}
	return d.timeline
}

// SetText replaces the whole text and moves the caret to the end.
func (d *Document) SetText(text string) {
	d.text = text
	d.caret = len(text)
	d.rehighlight()
}

// SetCaret moves the caret. pos must be a rune boundary within the text.
func (d *Document) SetCaret(pos int) error {
	if err := d.checkOffset(pos); err != nil {
		return err
	}
	d.caret = pos
	return nil
}

// InsertText inserts s at the caret and moves the caret past it.
func (d *Document) InsertText(s string) {
	if s == "" {
		return
	}
	d.text = d.text[:d.caret] + s + d.text[d.caret:]
	d.caret += len(s)
	d.rehighlight()
}

// DeleteRange removes text[start:end]. A caret inside the range moves to
// start; a caret after it shifts left.
func (d *Document) DeleteRange(start, end int) error {
	if start > end {
		return fmt.Errorf("delete [%d, %d): %w", start, end, ErrOutOfRange)
	}
	if err := d.checkOffset(start); err != nil {
		return err
	}
	if err := d.checkOffset(end); err != nil {
		return err
	}
	if start == end {
		return nil
	}

	d.text = d.text[:start] + d.text[end:]
	switch {
	case d.caret >= end:
		d.caret -= end - start
	case d.caret > start:
		d.caret = start
	}
	d.rehighlight()
	return nil
}

// EnableDynamicTabs makes PressTab insert width spaces instead of a tab
// character. It can be called once per document.
func (d *Document) EnableDynamicTabs(width int) error {
	if d.tabsEnabled {
		return ErrTabsAlreadyEnabled
	}
	if width < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeTabWidth, width)
	}
	d.tabWidth = width
	d.tabsEnabled = true
	log.Debug(log.CatEditor, "dynamic tabs enabled", "width", width)
	return nil
}

// TabWidth returns the dynamic tab width and whether dynamic tabs are on.
func (d *Document) TabWidth() (int, bool) {
	return d.tabWidth, d.tabsEnabled
}

// EnableSmartNewline makes PressEnter indent the new line like the current one.
func (d *Document) EnableSmartNewline() {
	d.smartNewline = true
}

// PressTab handles the Tab key.
func (d *Document) PressTab() {
	if d.tabsEnabled {
		d.InsertText(strings.Repeat(" ", d.tabWidth))
		return
	}
	d.InsertText("\t")
}

// PressEnter handles the Enter key. With smart newline on, the new line
// starts with the leading whitespace of the line before the caret.
func (d *Document) PressEnter() {
	if !d.smartNewline {
		d.InsertText("\n")
		return
	}
	before := d.text[d.lineStart(d.caret):d.caret]
	indent := before[:len(before)-len(strings.TrimLeft(before, " \t"))]
	d.InsertText("\n" + indent)
}

// ExpandTabs replaces every tab character with spaces up to the next tab
// stop of width columns, measuring display width. The caret keeps its
// logical position.
func (d *Document) ExpandTabs(width int) error {
	if width < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeTabWidth, width)
	}
	if !strings.Contains(d.text, "\t") {
		return nil
	}

	var b strings.Builder
	b.Grow(len(d.text))
	col := 0
	newCaret := -1
	for i, r := range d.text {
		if i == d.caret {
			newCaret = b.Len()
		}
		switch r {
		case '\t':
			n := width
			if width > 0 {
				n = width - col%width
			}
			b.WriteString(strings.Repeat(" ", n))
			col += n
		case '\n':
			b.WriteRune(r)
			col = 0
		default:
			b.WriteRune(r)
			col += runewidth.RuneWidth(r)
		}
	}
	if newCaret < 0 {
		newCaret = b.Len()
	}

	d.text = b.String()
	d.caret = newCaret
	d.rehighlight()
	return nil
}

// CaretLine returns the zero-based line of the caret.
func (d *Document) CaretLine() int {
	return strings.Count(d.text[:d.caret], "\n")
}

// CaretColumn returns the zero-based display column of the caret, with
// wide runes counted as two columns and tabs advancing to the next stop.
func (d *Document) CaretColumn() int {
	stop := DefaultTabStop
	if d.tabsEnabled && d.tabWidth > 0 {
		stop = d.tabWidth
	}
	col := 0
	for _, r := range d.text[d.lineStart(d.caret):d.caret] {
		if r == '\t' {
			col += stop - col%stop
			continue
		}
		col += runewidth.RuneWidth(r)
	}
	return col
}

func (d *Document) lineStart(pos int) int {
	return strings.LastIndexByte(d.text[:pos], '\n') + 1
}

func (d *Document) checkOffset(pos int) error {
	if pos < 0 || pos > len(d.text) {
		return fmt.Errorf("offset %d of %d: %w", pos, len(d.text), ErrOutOfRange)
	}
	if pos < len(d.text) && !utf8.RuneStart(d.text[pos]) {
		return fmt.Errorf("offset %d splits a character: %w", pos, ErrOutOfRange)
	}
	return nil
}

func (d *Document) rehighlight() {
	m := d.registry.Matcher()
	d.timeline, d.entry = d.hl.Replace(d.entry, m, d.text)
	d.generation = m.Generation()
}
