// Package i18n translates the transmerge command line messages.
//
// Catalogs live in locales/{lang}/LC_MESSAGES/transmerge.po and are
// embedded in the binary. The requested language is matched against the
// embedded catalogs, so "ru_RU.UTF-8" selects the "ru" catalog.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/leonelquinteros/gotext"
	"golang.org/x/text/language"
)

//go:embed all:locales
var locales embed.FS

const domain = "transmerge"

var po *gotext.Locale

// Init loads the catalog best matching lang. An empty lang is read from
// LANGUAGE, LC_ALL, LC_MESSAGES and LANG in that order. It returns the
// catalog name in use, or "" when messages stay untranslated.
func Init(lang string) string {
	if lang == "" {
		lang = detectLanguage()
	}
	name := Match(lang)
	if name == "" {
		po = nil
		return ""
	}
	po = gotext.NewLocaleFSWithPath(name, locales, "locales")
	po.AddDomain(domain)
	po.SetDomain(domain)
	return name
}

// T translates msgid, returning it unchanged when no catalog is loaded.
func T(msgid string, vars ...any) string {
	if po == nil {
		if len(vars) == 0 {
			return msgid
		}
		return fmt.Sprintf(msgid, vars...)
	}
	return po.Get(msgid, vars...)
}

// N translates a message with plural forms.
func N(singular, plural string, n int, vars ...any) string {
	if po == nil {
		msg := plural
		if n == 1 {
			msg = singular
		}
		if len(vars) == 0 {
			return msg
		}
		return fmt.Sprintf(msg, vars...)
	}
	return po.GetN(singular, plural, n, vars...)
}

// Languages lists the embedded catalogs.
func Languages() []string {
	entries, err := fs.ReadDir(locales, "locales")
	if err != nil {
		return nil
	}
	var langs []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := fs.Stat(locales, "locales/"+e.Name()+"/LC_MESSAGES/"+domain+".po"); err == nil {
			langs = append(langs, e.Name())
		}
	}
	return langs
}

// Match returns the embedded catalog closest to the POSIX or BCP 47
// locale lang, or "" if none is close enough.
func Match(lang string) string {
	lang = strings.ReplaceAll(lang, "_", "-")
	if i := strings.IndexAny(lang, ".@"); i >= 0 {
		lang = lang[:i]
	}
	want, err := language.Parse(lang)
	if err != nil {
		return ""
	}
	available := Languages()
	if len(available) == 0 {
		return ""
	}
	tags := make([]language.Tag, 0, len(available)+1)
	// English is the source language and wins ties.
	tags = append(tags, language.English)
	for _, a := range available {
		tags = append(tags, language.Make(a))
	}
	_, idx, conf := language.NewMatcher(tags).Match(want)
	if conf < language.High || idx == 0 {
		return ""
	}
	return available[idx-1]
}

func detectLanguage() string {
	for _, env := range []string{"LANGUAGE", "LC_ALL", "LC_MESSAGES", "LANG"} {
		val := os.Getenv(env)
		if env == "LANGUAGE" {
			val, _, _ = strings.Cut(val, ":")
		}
		if i := strings.IndexByte(val, '.'); i >= 0 {
			val = val[:i]
		}
		if val == "" || val == "C" || val == "POSIX" {
			continue
		}
		return val
	}
	return "en"
}
