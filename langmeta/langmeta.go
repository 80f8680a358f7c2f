// Package langmeta resolves language codes to display metadata (native
// name, English name, emoji flag) for the CLI.
package langmeta

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Meta describes language display metadata.
type Meta struct {
	Code    string
	Name    string
	English string
	Flag    string
}

// Canonicalize turns POSIX and loosely written codes such as "pt_br" into
// BCP 47 form. Unparseable codes are returned trimmed.
func Canonicalize(lang string) string {
	normalized := strings.ReplaceAll(strings.TrimSpace(lang), "_", "-")
	if normalized == "" {
		return ""
	}
	tag, err := language.Parse(normalized)
	if err != nil {
		return normalized
	}
	return tag.String()
}

// Resolve returns best-effort metadata for lang. Unknown codes fall back
// to the code itself with no flag.
func Resolve(lang string) Meta {
	code := Canonicalize(lang)
	tag, err := language.Parse(code)
	if err != nil {
		return Meta{Code: lang, Name: lang, English: lang}
	}
	m := Meta{
		Code:    code,
		Name:    display.Self.Name(tag),
		English: display.English.Languages().Name(tag),
	}
	if m.Name == "" {
		m.Name = code
	}
	if m.English == "" {
		m.English = code
	}
	if region, conf := tag.Region(); conf != language.No && region.IsCountry() {
		m.Flag = FlagFromRegion(region.String())
	}
	return m
}

// FlagFromRegion returns the emoji flag of a two-letter region code.
func FlagFromRegion(region string) string {
	if len(region) != 2 {
		return ""
	}
	region = strings.ToUpper(region)
	var b strings.Builder
	for _, c := range region {
		if c < 'A' || c > 'Z' {
			return ""
		}
		b.WriteRune(0x1F1E6 + (c - 'A'))
	}
	return b.String()
}
