// Package highlight turns text into a style timeline: an ordered run-length
// decomposition of the text where each run carries the label of the pattern
// that matched it, or no label.
//
// Lengths and offsets are byte offsets into the UTF-8 text, like Go slice
// indices.
package highlight

import (
	"fmt"
	"slices"

	"github.com/zjrosen/omniedit/internal/syntax"
)

// Span is a maximal run of bytes sharing one classification.
// Empty Labels means unstyled.
type Span struct {
	Length int
	Labels []string
}

// Label returns the span's first label, or "" when unstyled.
func (s Span) Label() string {
	if len(s.Labels) == 0 {
		return ""
	}
	return s.Labels[0]
}

// Timeline is the full ordered decomposition of a text into spans.
// Span lengths always sum to the length of the text it was computed for.
type Timeline []Span

// Segment is a span resolved to absolute offsets.
type Segment struct {
	Start  int
	End    int
	Labels []string
}

// ComputeTimeline scans text once, left to right, and classifies every byte
// using m. A nil or empty matcher yields a single unlabeled span.
// Empty text yields a single zero-length span.
func ComputeTimeline(m *syntax.Matcher, text string) Timeline {
	if text == "" {
		return Timeline{{Length: 0}}
	}
	if m.Empty() {
		return Timeline{{Length: len(text)}}
	}

	var b builder
	last := 0
	for _, sm := range m.FindAll(text) {
		start, end := sm[0], sm[1]
		if end <= start {
			// Registry rejects zero-width patterns; skip defensively so the scan
			// always advances.
			continue
		}
		b.add(nil, start-last)
		b.add([]string{m.Label(sm)}, end-start)
		last = end
	}
	b.add(nil, len(text)-last)
	return b.spans
}

// builder accumulates spans, dropping empty ones and merging neighbours
// with identical labels.
type builder struct {
	spans Timeline
}

func (b *builder) add(labels []string, length int) {
	if length <= 0 {
		return
	}
	if n := len(b.spans); n > 0 && slices.Equal(b.spans[n-1].Labels, labels) {
		b.spans[n-1].Length += length
		return
	}
	b.spans = append(b.spans, Span{Length: length, Labels: labels})
}

// Len returns the sum of all span lengths.
func (t Timeline) Len() int {
	total := 0
	for _, s := range t {
		total += s.Length
	}
	return total
}

// Validate checks that t decomposes text: lengths are non-negative and sum
// to len(text).
func (t Timeline) Validate(text string) error {
	if len(t) == 0 {
		return fmt.Errorf("timeline is empty")
	}
	for i, s := range t {
		if s.Length < 0 {
			return fmt.Errorf("span %d has negative length %d", i, s.Length)
		}
	}
	if got := t.Len(); got != len(text) {
		return fmt.Errorf("span lengths sum to %d, text is %d bytes", got, len(text))
	}
	return nil
}

// Segments resolves the timeline into absolute, non-overlapping offsets.
// Zero-length spans are omitted.
func (t Timeline) Segments() []Segment {
	segs := make([]Segment, 0, len(t))
	pos := 0
	for _, s := range t {
		if s.Length == 0 {
			continue
		}
		segs = append(segs, Segment{Start: pos, End: pos + s.Length, Labels: s.Labels})
		pos += s.Length
	}
	return segs
}
