// Package keyname validates and builds translation key identifiers.
//
// A key must be usable as an unquoted TypeScript property name, so the
// accepted alphabet is the ASCII identifier subset: [A-Za-z_$][A-Za-z0-9_$]*.
package keyname

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// MaxLen is the rune limit for generated keys.
const MaxLen = 48

// Valid reports whether key is an ASCII identifier.
func Valid(key string) bool {
	if key == "" {
		return false
	}
	for i := 0; i < len(key); i++ {
		c := key[i]
		switch {
		case c == '_' || c == '$':
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// Camelize turns free text into a camelCase key.
//
//	"Save changes?"      -> "saveChanges"
//	"Créer un compte"    -> "creerUnCompte"
//	"3 items selected"   -> "_3ItemsSelected"
func Camelize(text string) string {
	words := splitWords(stripMarks(text))
	if len(words) == 0 {
		return ""
	}

	var b strings.Builder
	for i, w := range words {
		if b.Len()+len(w) > MaxLen && b.Len() > 0 {
			break
		}
		w = strings.ToLower(w)
		if i > 0 {
			w = strings.ToUpper(w[:1]) + w[1:]
		}
		b.WriteString(w)
	}

	key := b.String()
	if utf8.RuneCountInString(key) > MaxLen {
		key = key[:MaxLen]
	}
	if key[0] >= '0' && key[0] <= '9' {
		key = "_" + key
	}
	return key
}

// Normalize returns a usable key. A valid candidate is returned as-is; a
// candidate with stray separators or quotes is camelized; otherwise the key
// is derived from fallback text (usually the English translation).
func Normalize(candidate, fallback string) string {
	candidate = strings.TrimSpace(candidate)
	candidate = strings.Trim(candidate, "\"'`")
	if Valid(candidate) {
		return candidate
	}
	if repaired := repair(candidate); Valid(repaired) {
		return repaired
	}
	return Camelize(fallback)
}

// repair keeps the casing of an almost-valid key ("save-changes",
// "save changes", "saveChanges!") while dropping the separators.
func repair(s string) string {
	words := splitWords(stripMarks(s))
	if len(words) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(words[0])
	for _, w := range words[1:] {
		b.WriteString(strings.ToUpper(w[:1]) + w[1:])
	}
	out := b.String()
	if out != "" && out[0] >= '0' && out[0] <= '9' {
		out = "_" + out
	}
	return out
}

// stripMarks removes diacritics: "é" decomposes to "e" + U+0301 and the
// combining mark is dropped.
func stripMarks(s string) string {
	var b strings.Builder
	for _, r := range norm.NFD.String(s) {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// splitWords splits on anything that is not an ASCII letter or digit.
func splitWords(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9')
	})
}
