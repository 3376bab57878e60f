// Package langmeta provides a shared language metadata registry used to
// build translation prompts and to validate configured locales.
package langmeta

import (
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Meta describes a language.
type Meta struct {
	// English is the language name in English, as sent to the model.
	English string
	// Native is the language name in the language itself.
	Native string
	Flag   string
}

// Registry contains canonical language metadata.
// Locale variants are resolved in Resolve() via normalization and base fallback.
var Registry = map[string]Meta{
	"ar":    {English: "Arabic", Native: "العربية", Flag: "🇸🇦"},
	"bg":    {English: "Bulgarian", Native: "Български", Flag: "🇧🇬"},
	"ca":    {English: "Catalan", Native: "Català", Flag: "🇪🇸"},
	"cs":    {English: "Czech", Native: "Čeština", Flag: "🇨🇿"},
	"da":    {English: "Danish", Native: "Dansk", Flag: "🇩🇰"},
	"de":    {English: "German", Native: "Deutsch", Flag: "🇩🇪"},
	"de-CH": {English: "Swiss German", Native: "Deutsch (Schweiz)", Flag: "🇨🇭"},
	"el":    {English: "Greek", Native: "Ελληνικά", Flag: "🇬🇷"},
	"en":    {English: "English", Native: "English", Flag: "🇺🇸"},
	"en-GB": {English: "British English", Native: "English (UK)", Flag: "🇬🇧"},
	"es":    {English: "Spanish", Native: "Español", Flag: "🇪🇸"},
	"es-MX": {English: "Mexican Spanish", Native: "Español (México)", Flag: "🇲🇽"},
	"et":    {English: "Estonian", Native: "Eesti", Flag: "🇪🇪"},
	"fa":    {English: "Persian", Native: "فارسی", Flag: "🇮🇷"},
	"fi":    {English: "Finnish", Native: "Suomi", Flag: "🇫🇮"},
	"fr":    {English: "French", Native: "Français", Flag: "🇫🇷"},
	"fr-BE": {English: "Belgian French", Native: "Français (Belgique)", Flag: "🇧🇪"},
	"fr-CA": {English: "Canadian French", Native: "Français (Canada)", Flag: "🇨🇦"},
	"he":    {English: "Hebrew", Native: "עברית", Flag: "🇮🇱"},
	"hi":    {English: "Hindi", Native: "हिन्दी", Flag: "🇮🇳"},
	"hr":    {English: "Croatian", Native: "Hrvatski", Flag: "🇭🇷"},
	"hu":    {English: "Hungarian", Native: "Magyar", Flag: "🇭🇺"},
	"id":    {English: "Indonesian", Native: "Bahasa Indonesia", Flag: "🇮🇩"},
	"it":    {English: "Italian", Native: "Italiano", Flag: "🇮🇹"},
	"ja":    {English: "Japanese", Native: "日本語", Flag: "🇯🇵"},
	"ko":    {English: "Korean", Native: "한국어", Flag: "🇰🇷"},
	"lt":    {English: "Lithuanian", Native: "Lietuvių", Flag: "🇱🇹"},
	"lv":    {English: "Latvian", Native: "Latviešu", Flag: "🇱🇻"},
	"nb":    {English: "Norwegian Bokmål", Native: "Norsk bokmål", Flag: "🇳🇴"},
	"nl":    {English: "Dutch", Native: "Nederlands", Flag: "🇳🇱"},
	"pl":    {English: "Polish", Native: "Polski", Flag: "🇵🇱"},
	"pt":    {English: "Portuguese", Native: "Português", Flag: "🇵🇹"},
	"pt-BR": {English: "Brazilian Portuguese", Native: "Português (Brasil)", Flag: "🇧🇷"},
	"ro":    {English: "Romanian", Native: "Română", Flag: "🇷🇴"},
	"ru":    {English: "Russian", Native: "Русский", Flag: "🇷🇺"},
	"sk":    {English: "Slovak", Native: "Slovenčina", Flag: "🇸🇰"},
	"sl":    {English: "Slovenian", Native: "Slovenščina", Flag: "🇸🇮"},
	"sr":    {English: "Serbian", Native: "Српски", Flag: "🇷🇸"},
	"sv":    {English: "Swedish", Native: "Svenska", Flag: "🇸🇪"},
	"th":    {English: "Thai", Native: "ไทย", Flag: "🇹🇭"},
	"tr":    {English: "Turkish", Native: "Türkçe", Flag: "🇹🇷"},
	"uk":    {English: "Ukrainian", Native: "Українська", Flag: "🇺🇦"},
	"vi":    {English: "Vietnamese", Native: "Tiếng Việt", Flag: "🇻🇳"},
	"zh":    {English: "Chinese", Native: "中文", Flag: "🇨🇳"},
	"zh-CN": {English: "Simplified Chinese", Native: "简体中文", Flag: "🇨🇳"},
	"zh-TW": {English: "Traditional Chinese", Native: "繁體中文", Flag: "🇹🇼"},
}

// Canonical normalizes a language code: "pt_br" becomes "pt-BR".
func Canonical(lang string) string {
	normalized := strings.ReplaceAll(strings.TrimSpace(lang), "_", "-")
	if normalized == "" {
		return ""
	}
	parts := strings.Split(normalized, "-")
	parts[0] = strings.ToLower(parts[0])
	if len(parts) >= 2 {
		parts[1] = strings.ToUpper(parts[1])
	}
	return strings.Join(parts, "-")
}

// Lookup returns metadata for lang, falling back to the base language for
// unknown regional variants and then to the CLDR names for languages
// outside the registry. ok is false when nothing matches.
func Lookup(lang string) (Meta, bool) {
	if m, ok := Registry[lang]; ok {
		return m, true
	}
	normalized := Canonical(lang)
	if m, ok := Registry[normalized]; ok {
		return m, true
	}
	if base, _, found := strings.Cut(normalized, "-"); found {
		if m, ok := Registry[base]; ok {
			return m, true
		}
	}
	return cldr(normalized)
}

// cldr names a language the registry lacks. No flag is derived.
func cldr(lang string) (Meta, bool) {
	tag, err := language.Parse(lang)
	if err != nil || tag == language.Und {
		return Meta{}, false
	}
	english := display.English.Tags().Name(tag)
	if english == "" {
		return Meta{}, false
	}
	native := display.Self.Name(tag)
	if native == "" {
		native = english
	}
	return Meta{English: english, Native: native}, true
}

// Resolve returns best-effort language metadata for language codes,
// supporting variants like pt_BR, pt-BR, and locale fallbacks.
// Unknown codes pass through as their own name.
func Resolve(lang string) Meta {
	if m, ok := Lookup(lang); ok {
		return m
	}
	return Meta{English: lang, Native: lang}
}

// Known reports whether lang resolves to a registry entry.
func Known(lang string) bool {
	_, ok := Lookup(lang)
	return ok
}

// EnglishNames lists the English names of langs, in order.
func EnglishNames(langs []string) []string {
	names := make([]string, len(langs))
	for i, l := range langs {
		names[i] = Resolve(l).English
	}
	return names
}

// Codes returns the registry codes, sorted.
func Codes() []string {
	codes := make([]string, 0, len(Registry))
	for c := range Registry {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}
