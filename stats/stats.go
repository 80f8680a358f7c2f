// Package stats computes translation progress counters and percentages.
package stats

import "math"

// Unit is anything that can report its translation state.
type Unit interface {
	IsTranslated() bool
	IsFuzzy() bool
}

// Counts holds aggregate progress for a collection of units.
type Counts struct {
	Translated int `yaml:"translated" json:"translated"`
	Fuzzy      int `yaml:"fuzzy" json:"fuzzy"`
	Total      int `yaml:"total" json:"total"`
}

// Recompute counts translated and fuzzy units. A unit is translated when
// it has a target and is not fuzzy; fuzzy units never count as
// translated, so Translated+Fuzzy never exceeds Total.
func Recompute[U Unit](units []U) Counts {
	c := Counts{Total: len(units)}
	for _, u := range units {
		switch {
		case u.IsFuzzy():
			c.Fuzzy++
		case u.IsTranslated():
			c.Translated++
		}
	}
	return c
}

// Untranslated returns the number of units that are neither translated
// nor fuzzy.
func (c Counts) Untranslated() int {
	return c.Total - c.Translated - c.Fuzzy
}

// TranslatedPercent returns Percent(c.Translated, c.Total).
func (c Counts) TranslatedPercent() float64 {
	return Percent(c.Translated, c.Total)
}

// FuzzyPercent returns Percent(c.Fuzzy, c.Total).
func (c Counts) FuzzyPercent() float64 {
	return Percent(c.Fuzzy, c.Total)
}

// Percent returns count/total as a percentage with one decimal place,
// rounded half up. A nonzero count is never shown as 0.0 and an
// incomplete count is never shown as 100.0.
func Percent(count, total int) float64 {
	if total <= 0 {
		return 0.0
	}
	perc := math.Floor(1000*float64(count)/float64(total)+0.5) / 10.0
	if perc == 0.0 && count != 0 {
		return 0.1
	}
	if perc == 100.0 && count != total {
		return 99.9
	}
	return perc
}
