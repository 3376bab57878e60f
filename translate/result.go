package translate

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"google.golang.org/genai"

	"github.com/minios-linux/textkey/keyname"
	"github.com/minios-linux/textkey/langmeta"
)

// Result is one answer: the key and a value per locale.
type Result struct {
	Key          string            `json:"key" yaml:"key"`
	Translations map[string]string `json:"translations" yaml:"translations"`
}

// Values returns the translations keyed by locale, ready for
// textsfile.File.Insert.
func (r *Result) Values() map[string]string {
	out := make(map[string]string, len(r.Translations))
	for k, v := range r.Translations {
		out[k] = v
	}
	return out
}

var (
	markdownCodeBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")
	// Some models leave object keys unquoted.
	bareKey = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)\s*:`)
)

// ParseResult decodes a completion reply. Both the flat shape
// {camelizedKey, englishTranslation, frenchTranslation} and the nested
// {camelizedKey, translations: {en, fr}} are accepted. Every locale must be
// present; the key is normalized, falling back to the English text.
func ParseResult(content string, locales []string) (*Result, error) {
	raw := extractJSON(content)
	if raw == "" {
		return nil, fmt.Errorf("%w: no JSON object in reply: %s", ErrBadResponse, truncate(content, 200))
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		// Retry once with bare keys quoted.
		fixed := bareKey.ReplaceAllString(raw, `$1"$2":`)
		if err2 := json.Unmarshal([]byte(fixed), &fields); err2 != nil {
			return nil, fmt.Errorf("%w: decoding reply: %v", ErrBadResponse, err)
		}
	}

	nested := map[string]string{}
	if t, ok := fields["translations"]; ok {
		_ = json.Unmarshal(t, &nested)
	}

	res := &Result{Translations: make(map[string]string, len(locales))}
	for _, loc := range locales {
		v := lookupTranslation(nested, fields, loc)
		if strings.TrimSpace(v) == "" {
			return nil, fmt.Errorf("%w: no %s translation in reply", ErrBadResponse, loc)
		}
		res.Translations[loc] = v
	}

	var candidate string
	for _, name := range []string{"camelizedKey", "key"} {
		if v, ok := fields[name]; ok {
			_ = json.Unmarshal(v, &candidate)
			break
		}
	}
	res.Key = keyname.Normalize(candidate, fallbackText(res.Translations, locales))
	if res.Key == "" {
		return nil, fmt.Errorf("%w: cannot derive a key from reply", ErrBadResponse)
	}
	return res, nil
}

func lookupTranslation(nested map[string]string, fields map[string]json.RawMessage, loc string) string {
	if v, ok := nested[loc]; ok {
		return v
	}
	canon := langmeta.Canonical(loc)
	for k, v := range nested {
		if langmeta.Canonical(k) == canon {
			return v
		}
	}
	var s string
	if raw, ok := fields[legacyField(loc)]; ok && json.Unmarshal(raw, &s) == nil {
		return s
	}
	return ""
}

func fallbackText(translations map[string]string, locales []string) string {
	for _, loc := range locales {
		if base, _, _ := strings.Cut(langmeta.Canonical(loc), "-"); base == "en" {
			return translations[loc]
		}
	}
	if len(locales) > 0 {
		return translations[locales[0]]
	}
	return ""
}

// extractJSON strips markdown fences and surrounding prose.
func extractJSON(content string) string {
	s := strings.TrimSpace(content)
	if m := markdownCodeBlock.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return ""
	}
	return s[start : end+1]
}

// ---------------------------------------------------------------------------
// Response schemas
// ---------------------------------------------------------------------------

// responseSchema is the strict JSON schema sent to OpenAI.
func responseSchema(locales []string) *jsonschema.Schema {
	closed := &jsonschema.Schema{Not: &jsonschema.Schema{}}
	props := make(map[string]*jsonschema.Schema, len(locales))
	for _, loc := range locales {
		props[loc] = &jsonschema.Schema{
			Type:        "string",
			Description: langmeta.Resolve(loc).English + " translation",
		}
	}
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"camelizedKey": {
				Type:        "string",
				Description: "camelCase identifier derived from the English translation",
			},
			"translations": {
				Type:                 "object",
				Properties:           props,
				Required:             append([]string(nil), locales...),
				AdditionalProperties: closed,
			},
		},
		Required:             []string{"camelizedKey", "translations"},
		AdditionalProperties: closed,
	}
}

// geminiSchema is the same shape in genai terms.
func geminiSchema(locales []string) *genai.Schema {
	props := make(map[string]*genai.Schema, len(locales))
	for _, loc := range locales {
		props[loc] = &genai.Schema{
			Type:        genai.TypeString,
			Description: langmeta.Resolve(loc).English + " translation",
		}
	}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"camelizedKey": {Type: genai.TypeString},
			"translations": {
				Type:       genai.TypeObject,
				Properties: props,
				Required:   append([]string(nil), locales...),
			},
		},
		Required: []string{"camelizedKey", "translations"},
	}
}
