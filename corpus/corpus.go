// Package corpus defines translation units and the translations that
// group them.
package corpus

import (
	"time"

	"github.com/minios-linux/transmerge/idhash"
	"github.com/minios-linux/transmerge/plural"
	"github.com/minios-linux/transmerge/stats"
)

// Unit is one translatable entry of a translation.
type Unit struct {
	// Source holds the source string; plural sources are encoded with
	// plural.Join.
	Source string `yaml:"source"`
	// Context disambiguates identical sources. May be empty.
	Context string `yaml:"context,omitempty"`
	// Target holds the translated forms encoded with plural.Join.
	Target string `yaml:"target,omitempty"`
	// Fuzzy marks a provisional, unreviewed target.
	Fuzzy bool `yaml:"fuzzy,omitempty"`
	// SuggestionCount is the number of pending suggestions.
	SuggestionCount int `yaml:"suggestions,omitempty"`
	// Position is the order of the unit within its translation.
	Position int `yaml:"position"`
}

// IsTranslated reports whether the unit has a reviewed target.
func (u *Unit) IsTranslated() bool {
	return u.Target != "" && !u.Fuzzy
}

// IsFuzzy reports whether the unit is marked fuzzy.
func (u *Unit) IsFuzzy() bool {
	return u.Fuzzy
}

// IsPlural reports whether the source has plural forms.
func (u *Unit) IsPlural() bool {
	return plural.IsPlural(u.Source)
}

// IDHash returns the identity of the unit's source and context.
func (u *Unit) IDHash() idhash.Hash {
	return idhash.Compute(u.Source, u.Context)
}

// Checksum returns the hexadecimal form of IDHash.
func (u *Unit) Checksum() string {
	return u.IDHash().Checksum()
}

// SourceForms returns the decoded source forms.
func (u *Unit) SourceForms() []string {
	return plural.Split(u.Source)
}

// TargetForms returns the decoded target forms.
func (u *Unit) TargetForms() []string {
	return plural.Split(u.Target)
}

// Matches reports whether the unit has exactly this source and context.
func (u *Unit) Matches(source, context string) bool {
	return u.Source == source && u.Context == context
}

// Translation is the set of units of one language.
type Translation struct {
	Language string       `yaml:"language"`
	Units    []*Unit      `yaml:"units"`
	Stats    stats.Counts `yaml:"stats"`
}

// Recompute refreshes Stats from the current units and returns them.
func (t *Translation) Recompute() stats.Counts {
	t.Stats = stats.Recompute(t.Units)
	return t.Stats
}

// Percent returns the translated percentage of the stored stats.
func (t *Translation) Percent() float64 {
	return t.Stats.TranslatedPercent()
}

// Suggestion is a proposed target recorded next to a unit without
// changing it.
type Suggestion struct {
	ID        string      `yaml:"id"`
	Language  string      `yaml:"language"`
	IDHash    idhash.Hash `yaml:"id_hash"`
	Target    string      `yaml:"target"`
	Author    string      `yaml:"author,omitempty"`
	CreatedAt time.Time   `yaml:"created_at"`
}

// DistinctTargets returns the first unit for each distinct target, in
// input order.
func DistinctTargets(units []*Unit) []*Unit {
	seen := make(map[string]bool, len(units))
	var result []*Unit
	for _, u := range units {
		if seen[u.Target] {
			continue
		}
		seen[u.Target] = true
		result = append(result, u)
	}
	return result
}
