// Package collation orders strings for display.
//
// Two strategies exist: a locale-aware collator backed by
// golang.org/x/text/collate, and an ASCII-folding fallback that sorts by
// the lowercased, accent-stripped form of a string. The strategy is
// chosen once at startup with Select and passed to Sort.
package collation

import (
	"bytes"
	"fmt"
	"slices"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/minios-linux/transmerge/configerr"
)

// Strategy turns strings into byte-comparable sort keys.
type Strategy interface {
	Name() string
	SortKey(s string) []byte
}

// Collator sorts according to the collation rules of a locale.
type Collator struct {
	tag language.Tag

	mu  sync.Mutex
	c   *collate.Collator
	buf collate.Buffer
}

// NewCollator returns a locale-aware strategy for tag.
func NewCollator(tag language.Tag) *Collator {
	return &Collator{tag: tag, c: collate.New(tag)}
}

// Name implements Strategy.
func (c *Collator) Name() string {
	return "collate:" + c.tag.String()
}

// SortKey implements Strategy.
func (c *Collator) SortKey(s string) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := c.c.KeyFromString(&c.buf, s)
	out := make([]byte, len(key))
	copy(out, key)
	c.buf.Reset()
	return out
}

// Fallback sorts by the lowercase ASCII skeleton of a string.
type Fallback struct{}

// Name implements Strategy.
func (Fallback) Name() string {
	return "ascii-fold"
}

// SortKey implements Strategy.
func (Fallback) SortKey(s string) []byte {
	return []byte(strings.ToLower(RemoveAccents(s)))
}

var nonASCII = runes.Predicate(func(r rune) bool { return r > unicode.MaxASCII })

// RemoveAccents applies NFKD decomposition and drops everything that is
// not ASCII, so "Ärger" becomes "Arger" and "日本" becomes "".
func RemoveAccents(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(nonASCII))
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Select returns the strategy used for the rest of the process. When
// native is false, or locale cannot be parsed, the fallback is used; a
// bad locale is also reported as a configuration error.
func Select(native bool, locale string) Strategy {
	if !native {
		return Fallback{}
	}
	if locale == "" {
		return NewCollator(language.Und)
	}
	tag, err := language.Parse(locale)
	if err != nil {
		configerr.Report("collation", fmt.Sprintf("invalid locale %q: %v", locale, err))
		return Fallback{}
	}
	return NewCollator(tag)
}

// Sort returns a stably sorted copy of items ordered by the sort key of
// key(item). The input slice is not modified.
func Sort[T any](s Strategy, items []T, key func(T) string) []T {
	type keyed struct {
		item T
		key  []byte
	}
	ks := make([]keyed, len(items))
	for i, it := range items {
		ks[i] = keyed{item: it, key: s.SortKey(key(it))}
	}
	slices.SortStableFunc(ks, func(a, b keyed) int {
		return bytes.Compare(a.key, b.key)
	})
	out := make([]T, len(ks))
	for i, k := range ks {
		out[i] = k.item
	}
	return out
}

// Choice is a value with a display label.
type Choice struct {
	Value string
	Label string
}

// SortChoices orders choices by label.
func SortChoices(s Strategy, choices []Choice) []Choice {
	return Sort(s, choices, func(c Choice) string { return c.Label })
}

// SortObjects orders objects by their string representation.
func SortObjects[T fmt.Stringer](s Strategy, objects []T) []T {
	return Sort(s, objects, func(o T) string { return o.String() })
}

// SortStrings orders plain strings.
func SortStrings(s Strategy, items []string) []string {
	return Sort(s, items, func(v string) string { return v })
}
