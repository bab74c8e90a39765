package policy

import (
	"sort"
	"strings"
	"sync"
	"unicode"

	ahocorasick "github.com/cloudflare/ahocorasick"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Normalize folds case, applies NFKC and collapses whitespace so that
// patterns and page text are compared in the same form.
func Normalize(s string) string {
	s = norm.NFKC.String(s)
	s = cases.Fold().String(s)

	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}

// Group is a named set of patterns compiled into one Aho-Corasick automaton.
// The automaton keeps per-search state, so searches are serialized.
type Group struct {
	Name     string
	Category string
	Weight   int
	Patterns []string
	mu       sync.Mutex
	matcher  *ahocorasick.Matcher
}

func newGroup(name, category string, weight int, patterns []string) *Group {
	g := &Group{Name: name, Category: category, Weight: weight}
	seen := make(map[string]bool, len(patterns))
	for _, p := range patterns {
		n := Normalize(p)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		g.Patterns = append(g.Patterns, n)
	}
	if len(g.Patterns) > 0 {
		g.matcher = ahocorasick.NewStringMatcher(g.Patterns)
	}
	return g
}

// Match returns the distinct patterns found in already-normalized text, in table order.
func (g *Group) Match(text string) []string {
	if g == nil || g.matcher == nil || text == "" {
		return nil
	}

	g.mu.Lock()
	hits := g.matcher.Match([]byte(text))
	g.mu.Unlock()
	if len(hits) == 0 {
		return nil
	}

	unique := make(map[int]bool, len(hits))
	for _, h := range hits {
		if h >= 0 && h < len(g.Patterns) {
			unique[h] = true
		}
	}
	idx := make([]int, 0, len(unique))
	for h := range unique {
		idx = append(idx, h)
	}
	sort.Ints(idx)

	matched := make([]string, len(idx))
	for i, h := range idx {
		matched[i] = g.Patterns[h]
	}
	return matched
}

// Contains reports whether any pattern occurs in already-normalized text.
func (g *Group) Contains(text string) bool {
	return len(g.Match(text)) > 0
}

// Count returns the number of distinct patterns found.
func (g *Group) Count(text string) int {
	return len(g.Match(text))
}
