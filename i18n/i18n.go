// Package i18n translates textkey's own user-facing messages.
//
// Catalogues are gettext .po files embedded in the binary, one per language
// under locales/{lang}/LC_MESSAGES/textkey.po. English is the source
// language and needs none.
//
//	i18n.Init("")  // from LANGUAGE, LC_ALL, LC_MESSAGES or LANG
//	fmt.Println(i18n.T("%s key already exists", key))
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/leonelquinteros/gotext"
	"golang.org/x/text/language"
)

//go:embed all:locales
var locales embed.FS

const domain = "textkey"

var (
	po     *gotext.Locale
	active = "en"
)

// Init selects the catalogue closest to lang ("fr_CA.UTF-8" uses "fr").
// An empty lang is read from the environment. Languages without a
// catalogue fall back to English.
//
// Call it once at startup, before T or N.
func Init(lang string) {
	if lang == "" {
		lang = detectLanguage()
	}
	active = match(lang, Available())
	po = gotext.NewLocaleFSWithPath(active, locales, "locales")
	po.AddDomain(domain)
	po.SetDomain(domain)
}

// Lang returns the catalogue language in use.
func Lang() string { return active }

// Available lists the embedded catalogue languages, sorted.
func Available() []string {
	entries, err := fs.ReadDir(locales, "locales")
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out
}

// match picks the best catalogue for a POSIX locale name.
func match(lang string, available []string) string {
	if i := strings.IndexAny(lang, ".@"); i >= 0 {
		lang = lang[:i]
	}
	tag, err := language.Parse(strings.ReplaceAll(lang, "_", "-"))
	if err != nil {
		return "en"
	}
	supported := []language.Tag{language.English}
	for _, l := range available {
		supported = append(supported, language.Make(l))
	}
	_, i, conf := language.NewMatcher(supported).Match(tag)
	if conf == language.No || i == 0 {
		return "en"
	}
	return available[i-1]
}

// T translates msgid and formats it with vars.
func T(msgid string, vars ...any) string {
	if po == nil {
		return format(msgid, vars)
	}
	return po.Get(msgid, vars...)
}

// N is T with plural forms.
func N(singular, plural string, n int, vars ...any) string {
	if po == nil {
		if n == 1 {
			return format(singular, vars)
		}
		return format(plural, vars)
	}
	return po.GetN(singular, plural, n, vars...)
}

func format(s string, vars []any) string {
	if len(vars) == 0 {
		return s
	}
	return fmt.Sprintf(s, vars...)
}

// detectLanguage follows gettext: LANGUAGE, LC_ALL, LC_MESSAGES, then LANG.
// "C" and "POSIX" mean untranslated and are skipped.
func detectLanguage() string {
	for _, env := range []string{"LANGUAGE", "LC_ALL", "LC_MESSAGES", "LANG"} {
		val := os.Getenv(env)
		if env == "LANGUAGE" {
			val, _, _ = strings.Cut(val, ":")
		}
		// fr_FR.UTF-8@euro -> fr_FR
		if i := strings.IndexAny(val, ".@"); i >= 0 {
			val = val[:i]
		}
		if val == "" || val == "C" || val == "POSIX" {
			continue
		}
		return val
	}
	return "en"
}
