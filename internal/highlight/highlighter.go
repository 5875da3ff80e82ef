package highlight

import (
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/zjrosen/omniedit/internal/cachemanager"
	"github.com/zjrosen/omniedit/internal/log"
	"github.com/zjrosen/omniedit/internal/syntax"
)

type cachedTimeline struct {
	pattern  string
	text     string
	timeline Timeline
}

// Highlighter memoizes ComputeTimeline per combined pattern and text.
// It is safe for concurrent use.
type Highlighter struct {
	cache cachemanager.CacheManager[cachedTimeline]
}

// Option configures a Highlighter.
type Option func(*hlConfig)

type hlConfig struct {
	expiration      time.Duration
	cleanupInterval time.Duration
}

// WithCacheExpiration sets how long timelines stay cached and how often
// expired ones are purged.
func WithCacheExpiration(expiration, cleanupInterval time.Duration) Option {
	return func(c *hlConfig) {
		c.expiration = expiration
		c.cleanupInterval = cleanupInterval
	}
}

// NewHighlighter creates a Highlighter with an in-memory timeline cache.
func NewHighlighter(opts ...Option) *Highlighter {
	cfg := hlConfig{
		expiration:      cachemanager.DefaultExpiration,
		cleanupInterval: cachemanager.DefaultCleanupInterval,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Highlighter{
		cache: cachemanager.NewInMemoryCacheManager[cachedTimeline]("timeline", cfg.expiration, cfg.cleanupInterval),
	}
}

// Compute returns the timeline of text under m, reusing a cached result
// when the same text was highlighted with an identical set of patterns.
func (h *Highlighter) Compute(m *syntax.Matcher, text string) Timeline {
	tl, _ := h.compute(m, text)
	return tl
}

// Entry names the cache slot a timeline was stored under.
type Entry struct {
	key string
}

// Replace computes the timeline of text under m like Compute and evicts
// prev when the result lives under a different slot. A caller that always
// passes back the Entry it was last given holds at most one cached
// timeline.
func (h *Highlighter) Replace(prev Entry, m *syntax.Matcher, text string) (Timeline, Entry) {
	tl, key := h.compute(m, text)
	if prev.key != "" && prev.key != key {
		h.cache.Delete(prev.key)
	}
	return tl, Entry{key: key}
}

// Len reports how many timelines are cached.
func (h *Highlighter) Len() int {
	return h.cache.Len()
}

func (h *Highlighter) compute(m *syntax.Matcher, text string) (Timeline, string) {
	pattern := matcherSource(m)
	key := cacheKey(pattern, text)
	if hit, ok := h.cache.Get(key); ok && hit.pattern == pattern && hit.text == text {
		return hit.timeline.clone(), key
	}

	start := time.Now()
	tl := ComputeTimeline(m, text)
	log.Debug(log.CatHighlight, "computed timeline",
		"bytes", len(text),
		"spans", len(tl),
		"generation", m.Generation(),
		"took", time.Since(start))

	h.cache.Set(key, cachedTimeline{pattern: pattern, text: text, timeline: tl}, 0)
	return tl.clone(), key
}

// Invalidate drops every cached timeline.
func (h *Highlighter) Invalidate() {
	h.cache.Flush()
}

// matcherSource is the combined expression with its labels, so two matchers
// built from the same rules share cache entries.
func matcherSource(m *syntax.Matcher) string {
	re := m.Regexp()
	if re == nil {
		return ""
	}
	return strings.Join(m.Labels(), "\x00") + "\x00" + re.String()
}

func cacheKey(pattern, text string) string {
	return strconv.FormatUint(xxhash.Sum64String(pattern), 16) + ":" + strconv.FormatUint(xxhash.Sum64String(text), 16)
}

// clone copies the spans and their label slices.
func (t Timeline) clone() Timeline {
	if t == nil {
		return nil
	}
	out := make(Timeline, len(t))
	for i, sp := range t {
		out[i] = Span{Length: sp.Length}
		if sp.Labels != nil {
			out[i].Labels = append([]string(nil), sp.Labels...)
		}
	}
	return out
}
