package syntax

import "regexp"

// Matcher is the compiled form of a registry snapshot.
// A zero or empty Matcher matches nothing.
type Matcher struct {
	re         *regexp.Regexp
	groups     []int
	labels     []string
	generation uint64
}

// Empty reports whether the matcher has no patterns.
func (m *Matcher) Empty() bool {
	return m == nil || m.re == nil
}

// Generation identifies the registry state the matcher was built from.
// It increases with every successful registration.
func (m *Matcher) Generation() uint64 {
	if m == nil {
		return 0
	}
	return m.generation
}

// Regexp returns the combined expression, or nil for an empty matcher.
func (m *Matcher) Regexp() *regexp.Regexp {
	if m == nil {
		return nil
	}
	return m.re
}

// FindAll returns the submatch index slices of all successive
// non-overlapping matches in text, as regexp.FindAllStringSubmatchIndex.
func (m *Matcher) FindAll(text string) [][]int {
	if m.Empty() {
		return nil
	}
	return m.re.FindAllStringSubmatchIndex(text, -1)
}

// Label returns the label of the entry that produced a match, given the
// submatch index slice from FindAll. The first participating entry group in
// registration order owns the match.
func (m *Matcher) Label(submatches []int) string {
	if m.Empty() {
		return ""
	}
	for i, g := range m.groups {
		if 2*g+1 < len(submatches) && submatches[2*g] >= 0 {
			return m.labels[i]
		}
	}
	return ""
}

// Labels returns the labels of all entries in registration order.
func (m *Matcher) Labels() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.labels))
	copy(out, m.labels)
	return out
}
