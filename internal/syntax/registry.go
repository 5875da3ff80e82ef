// Package syntax holds the ordered set of highlighting patterns and compiles
// them into a single matcher.
//
// Patterns are tried as one alternation in registration order. The leftmost
// match in the text wins; among matches starting at the same position the
// pattern registered first wins, even when a later pattern would match more
// text. Register specific patterns before general ones.
package syntax

import (
	"fmt"
	"regexp"
	"regexp/syntax"
	"strings"
	"sync"

	"github.com/zjrosen/omniedit/internal/log"
)

// Entry is a single registered pattern.
type Entry struct {
	Label   string
	Pattern string
	Order   int
}

// Registry is an append-only, ordered list of pattern entries together with
// the matcher compiled from them. It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	entries    []Entry
	subexps    []int // capture groups declared inside each entry's own pattern
	matcher    *Matcher
	generation uint64
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{matcher: &Matcher{}}
}

// AddPattern appends a pattern for label and rebuilds the matcher.
// It returns a *PatternError if the pattern does not compile or can match
// the empty string. A failed call leaves the registry unchanged.
func (r *Registry) AddPattern(label, pattern string) error {
	if label == "" {
		return &PatternError{Pattern: pattern, Reason: "label is required"}
	}

	subexps, err := validate(pattern)
	if err != nil {
		err.Label = label
		log.Warn(log.CatSyntax, "rejected pattern", "label", label, "pattern", pattern, "reason", err.Reason)
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entries := append(r.entries[:len(r.entries):len(r.entries)], Entry{
		Label:   label,
		Pattern: pattern,
		Order:   len(r.entries),
	})
	counts := append(r.subexps[:len(r.subexps):len(r.subexps)], subexps)

	m, cerr := compile(entries, counts, r.generation+1)
	if cerr != nil {
		return &PatternError{Label: label, Pattern: pattern, Reason: "combined pattern does not compile", Err: cerr}
	}

	r.entries = entries
	r.subexps = counts
	r.matcher = m
	r.generation++

	log.Debug(log.CatSyntax, "registered pattern", "label", label, "order", len(entries)-1, "generation", r.generation)
	return nil
}

// AddTokens registers a pattern matching any of tokens as a whole word.
// Tokens are matched literally.
func (r *Registry) AddTokens(label string, tokens ...string) error {
	pattern, err := tokensPattern(tokens...)
	if err != nil {
		err.Label = label
		return err
	}
	return r.AddPattern(label, pattern)
}

// Matcher returns the matcher compiled from the current entries. The
// returned value is immutable; later registrations produce a new Matcher.
func (r *Registry) Matcher() *Matcher {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.matcher
}

// Entries returns a copy of the registered entries in registration order.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Len returns the number of registered entries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// tokensPattern builds a word-boundary delimited alternation of the
// literal tokens.
func tokensPattern(tokens ...string) (string, *PatternError) {
	if len(tokens) == 0 {
		return "", &PatternError{Reason: "at least one token is required"}
	}
	parts := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if tok == "" {
			return "", &PatternError{Reason: "empty token"}
		}
		parts = append(parts, `\b`+regexp.QuoteMeta(tok)+`\b`)
	}
	return strings.Join(parts, "|"), nil
}

// validate checks that pattern compiles and cannot match zero-width.
// It returns the number of capture groups the pattern declares.
func validate(pattern string) (int, *PatternError) {
	parsed, err := syntax.Parse(pattern, syntax.Perl)
	if err != nil {
		return 0, &PatternError{Pattern: pattern, Reason: "invalid regular expression", Err: err}
	}
	if canMatchEmpty(parsed.Simplify()) {
		return 0, &PatternError{Pattern: pattern, Reason: "pattern can match the empty string"}
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return 0, &PatternError{Pattern: pattern, Reason: "invalid regular expression", Err: err}
	}
	return re.NumSubexp(), nil
}

// canMatchEmpty reports whether re can succeed without consuming input.
// Empty-width assertions count as matching empty.
func canMatchEmpty(re *syntax.Regexp) bool {
	switch re.Op {
	case syntax.OpNoMatch:
		return false
	case syntax.OpEmptyMatch,
		syntax.OpBeginLine, syntax.OpEndLine,
		syntax.OpBeginText, syntax.OpEndText,
		syntax.OpWordBoundary, syntax.OpNoWordBoundary:
		return true
	case syntax.OpLiteral:
		return len(re.Rune) == 0
	case syntax.OpCharClass, syntax.OpAnyChar, syntax.OpAnyCharNotNL:
		return false
	case syntax.OpStar, syntax.OpQuest:
		return true
	case syntax.OpCapture, syntax.OpPlus:
		return canMatchEmpty(re.Sub[0])
	case syntax.OpRepeat:
		return re.Min == 0 || canMatchEmpty(re.Sub[0])
	case syntax.OpConcat:
		for _, sub := range re.Sub {
			if !canMatchEmpty(sub) {
				return false
			}
		}
		return true
	case syntax.OpAlternate:
		for _, sub := range re.Sub {
			if canMatchEmpty(sub) {
				return true
			}
		}
		return false
	default:
		return true
	}
}

// compile joins entries into "(p0)|(p1)|..." and records the capture group
// that identifies each entry.
func compile(entries []Entry, subexps []int, generation uint64) (*Matcher, error) {
	if len(entries) == 0 {
		return &Matcher{generation: generation}, nil
	}

	var b strings.Builder
	groups := make([]int, len(entries))
	labels := make([]string, len(entries))
	next := 1
	for i, e := range entries {
		if i > 0 {
			b.WriteByte('|')
		}
		fmt.Fprintf(&b, "(%s)", e.Pattern)
		groups[i] = next
		labels[i] = e.Label
		next += 1 + subexps[i]
	}

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, err
	}
	return &Matcher{
		re:         re,
		groups:     groups,
		labels:     labels,
		generation: generation,
	}, nil
}
