// Package plural encodes the plural forms of a string into a single
// storage field and back.
//
// Forms are joined with a reserved two-character separator that never
// occurs in ordinary translatable text. No escaping is performed: a form
// that itself contains the separator does not survive a round trip.
package plural

import "strings"

// Separator delimits plural forms inside an encoded string.
const Separator = "\x1e\x1e"

// Join encodes forms into one string.
func Join(forms []string) string {
	return strings.Join(forms, Separator)
}

// Split decodes a string produced by Join. A string without the
// separator yields a single form.
func Split(text string) []string {
	return strings.Split(text, Separator)
}

// IsPlural reports whether text carries more than one form.
func IsPlural(text string) bool {
	return strings.Contains(text, Separator)
}

// Value is a translation target as handed over by a parser: either a
// plain string or a list of plural forms.
type Value interface {
	isValue()
}

// Plain is a single-form value.
type Plain string

// Forms is a multi-form value, ordered by plural index.
type Forms []string

func (Plain) isValue() {}
func (Forms) isValue() {}

// Normalize returns the storage encoding of v. A nil value (missing
// target, as produced by some XLIFF files) becomes the empty string.
func Normalize(v Value) string {
	switch v := v.(type) {
	case nil:
		return ""
	case Plain:
		return string(v)
	case Forms:
		return Join(v)
	default:
		return ""
	}
}

// Valid reports whether every form of v can be encoded losslessly. A
// nil value is valid and encodes as the empty string.
func Valid(v Value) bool {
	switch v := v.(type) {
	case nil:
		return true
	case Plain:
		return !strings.Contains(string(v), Separator)
	case Forms:
		if len(v) == 0 {
			return false
		}
		for _, f := range v {
			if strings.Contains(f, Separator) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
