package translate

import (
	"fmt"
	"strings"

	"github.com/minios-linux/textkey/keyname"
	"github.com/minios-linux/textkey/langmeta"
)

const defaultPrompt = `Translate the given text into {{languages}}, and provide a camelCase version of the English translation. Return the response in JSON : {{format}}.

Rules:
- camelizedKey must be a valid JavaScript identifier (letters and digits only, no spaces)
- Keep the key short: at most 5 words
- Preserve placeholders, HTML tags and punctuation of the source text
- Do not add explanations, return only the JSON object`

// SystemPrompt builds the system instruction for locales. A non-empty
// override replaces the built-in text; {{languages}} and {{format}} are
// expanded in both.
func SystemPrompt(locales []string, override string) string {
	tmpl := defaultPrompt
	if strings.TrimSpace(override) != "" {
		tmpl = override
	}
	r := strings.NewReplacer(
		"{{languages}}", joinNames(langmeta.EnglishNames(locales)),
		"{{format}}", responseFormat(locales),
	)
	return r.Replace(tmpl)
}

// joinNames renders "English", "English and French",
// "English, French and German".
func joinNames(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	}
	return strings.Join(names[:len(names)-1], ", ") + " and " + names[len(names)-1]
}

func responseFormat(locales []string) string {
	fields := make([]string, len(locales))
	for i, l := range locales {
		fields[i] = fmt.Sprintf("%q: string", l)
	}
	return "{ camelizedKey: string, translations: { " + strings.Join(fields, ", ") + " } }"
}

// legacyField is the per-language property of the flat response shape:
// "en" -> "englishTranslation".
func legacyField(locale string) string {
	return keyname.Camelize(langmeta.Resolve(locale).English) + "Translation"
}
