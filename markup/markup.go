// Package markup decides how a selection is rewritten into a reference to a
// translation key, depending on whether it sits inside a Vue <template>
// block and, there, inside an attribute value.
package markup

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/minios-linux/textkey/document"
)

var (
	templateOpen  = regexp.MustCompile(`<template(?:\s[^>]*?)?(/?)>`)
	templateClose = regexp.MustCompile(`</template\s*>`)
)

// InTemplate reports whether line lies inside a <template> block. Lines are
// scanned from the top down to and including line; nested templates are
// counted so an inner </template> does not end the outer block.
func InTemplate(lines []string, line int) bool {
	depth := 0
	for i := 0; i < len(lines) && i <= line; i++ {
		for _, m := range templateOpen.FindAllStringSubmatch(lines[i], -1) {
			if m[1] != "/" {
				depth++
			}
		}
		depth -= len(templateClose.FindAllStringIndex(lines[i], -1))
		if depth < 0 {
			depth = 0
		}
	}
	return depth > 0
}

// Attribute is an attribute whose value contains the selected text.
type Attribute struct {
	Name string
	// Start and End are UTF-16 columns spanning name="value".
	Start, End int
}

// Covers reports whether col falls inside the attribute.
func (a Attribute) Covers(col int) bool {
	return col >= a.Start && col < a.End
}

// AttributeAt finds a name="..." attribute on lineText whose value contains
// selected. When several match, the one covering col (UTF-16) wins,
// otherwise the first.
func AttributeAt(lineText, selected string, col int) (Attribute, bool) {
	if selected == "" {
		return Attribute{}, false
	}
	re, err := regexp.Compile(`([a-zA-Z-]+)="[^"]*` + regexp.QuoteMeta(selected) + `[^"]*"`)
	if err != nil {
		return Attribute{}, false
	}
	matches := re.FindAllStringSubmatchIndex(lineText, -1)
	if len(matches) == 0 {
		return Attribute{}, false
	}

	pick := matches[0]
	for _, m := range matches {
		a := Attribute{
			Start: document.UTF16Len(lineText[:m[0]]),
			End:   document.UTF16Len(lineText[:m[1]]),
		}
		if a.Covers(col) {
			pick = m
			break
		}
	}
	return Attribute{
		Name:  lineText[pick[2]:pick[3]],
		Start: document.UTF16Len(lineText[:pick[0]]),
		End:   document.UTF16Len(lineText[:pick[1]]),
	}, true
}

// References holds the replacement templates. {key} is replaced by the
// translation key and {attr} by the attribute name.
type References struct {
	Script    string `yaml:"script"`
	Template  string `yaml:"template"`
	Attribute string `yaml:"attribute"`
}

// DefaultReferences returns the forms used by a Vue component that exposes
// its texts as "t".
func DefaultReferences() References {
	return References{
		Script:    "this.t.{key}",
		Template:  "{{ t.{key} }}",
		Attribute: `:{attr}="t.{key}"`,
	}
}

// Validate checks that every form mentions {key}.
func (r References) Validate() error {
	forms := []struct{ name, form string }{
		{"script", r.Script},
		{"template", r.Template},
		{"attribute", r.Attribute},
	}
	for _, f := range forms {
		if !strings.Contains(f.form, "{key}") {
			return fmt.Errorf("reference %s %q does not contain {key}", f.name, f.form)
		}
	}
	return nil
}

func render(form, key, attr string) string {
	return strings.NewReplacer("{key}", key, "{attr}", attr).Replace(form)
}

// Context says where a selection was found.
type Context int

const (
	Script Context = iota
	Template
	AttributeValue
)

func (c Context) String() string {
	switch c {
	case Template:
		return "template"
	case AttributeValue:
		return "attribute"
	default:
		return "script"
	}
}

// Replacement is the planned rewrite of one selection.
type Replacement struct {
	Context   Context
	Attribute string
	Edit      document.Edit
}

// Plan computes the edit replacing sel with a reference to key.
//
// Inside a template, a selection within an attribute value replaces the
// whole attribute with a bound one; any other selection becomes an
// interpolation, even when the same text also appears in an attribute
// elsewhere on the line. Outside templates the selection becomes a property access.
func Plan(doc *document.Document, sel document.Range, key string, refs References) Replacement {
	sel = sel.Normalized()
	if !InTemplate(doc.Lines(), sel.Start.Line) {
		return Replacement{
			Context: Script,
			Edit:    document.Edit{Range: sel, NewText: render(refs.Script, key, "")},
		}
	}

	selected := strings.TrimSpace(doc.TextIn(sel))
	attr, ok := AttributeAt(doc.Line(sel.Start.Line), selected, sel.Start.Character)
	if ok && attr.Covers(sel.Start.Character) {
		line := sel.Start.Line
		return Replacement{
			Context:   AttributeValue,
			Attribute: attr.Name,
			Edit: document.Edit{
				Range: document.Range{
					Start: document.Position{Line: line, Character: attr.Start},
					End:   document.Position{Line: line, Character: attr.End},
				},
				NewText: render(refs.Attribute, key, attr.Name),
			},
		}
	}
	return Replacement{
		Context: Template,
		Edit:    document.Edit{Range: sel, NewText: render(refs.Template, key, "")},
	}
}
