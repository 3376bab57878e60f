package markup

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/minios-linux/textkey/document"
)

const component = `<template>
  <div>
    <template v-if="ready">
      <p>Welcome back</p>
    </template>
    <input placeholder="Type your name" title="Name" />
  </div>
</template>

<script>
export default {
  mounted() {
    alert("Saved");
  },
};
</script>`

func TestInTemplate(t *testing.T) {
	lines := strings.Split(component, "\n")
	tests := []struct {
		line int
		want bool
	}{
		{0, true},
		{3, true},
		{4, true},
		// The inner </template> must not end the outer block.
		{5, true},
		{7, false},
		{12, false},
	}
	for _, tt := range tests {
		if got := InTemplate(lines, tt.line); got != tt.want {
			t.Errorf("InTemplate(line %d %q) = %v, want %v", tt.line, lines[tt.line], got, tt.want)
		}
	}
}

func TestInTemplateEdgeCases(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		line  int
		want  bool
	}{
		{"attributes on the root tag", []string{`<template lang="pug">`, "p hello"}, 1, true},
		{"self closing", []string{"<template />", "x"}, 1, false},
		{"open and close on one line", []string{"<template><b>x</b></template>", "y"}, 0, false},
		{"not a template tag", []string{"<templates>", "x"}, 1, false},
		{"stray close", []string{"</template>", "<template>", "x"}, 2, true},
		{"no lines", nil, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InTemplate(tt.lines, tt.line); got != tt.want {
				t.Fatalf("InTemplate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAttributeAt(t *testing.T) {
	line := `    <input placeholder="Type your name" title="Name" />`

	got, ok := AttributeAt(line, "Type your name", 24)
	if !ok {
		t.Fatal("AttributeAt() found nothing")
	}
	want := Attribute{Name: "placeholder", Start: 11, End: 39}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("AttributeAt mismatch (-want +got):\n%s", diff)
	}

	twice := `<input placeholder="Your Name" title="Name" />`
	got, ok = AttributeAt(twice, "Name", 38)
	if !ok || got.Name != "title" || got.Start != 31 || got.End != 43 {
		t.Fatalf("AttributeAt(col in title) = %+v, %v; want title 31..43", got, ok)
	}
	// Outside every match the first one is returned.
	got, _ = AttributeAt(twice, "Name", 0)
	if got.Name != "placeholder" {
		t.Fatalf("AttributeAt(col 0) = %+v, want placeholder", got)
	}

	if _, ok := AttributeAt(line, "missing", 0); ok {
		t.Fatal("AttributeAt(missing) = true")
	}
	if _, ok := AttributeAt(line, "", 0); ok {
		t.Fatal("AttributeAt(empty) = true")
	}
}

func TestAttributeAtEscapesSelection(t *testing.T) {
	line := `<a title="Total (EUR) [net]?">x</a>`
	got, ok := AttributeAt(line, "Total (EUR) [net]?", 10)
	if !ok {
		t.Fatal("AttributeAt() found nothing")
	}
	if got.Name != "title" || got.Start != 3 || got.End != 29 {
		t.Fatalf("AttributeAt() = %+v", got)
	}
}

func TestAttributeAtUTF16Columns(t *testing.T) {
	line := `<p>😀</p><img alt="Été" />`
	got, ok := AttributeAt(line, "Été", 19)
	if !ok {
		t.Fatal("AttributeAt() found nothing")
	}
	// "😀" counts two UTF-16 units, "É"/"é" one each.
	if got.Start != 14 || got.End != 23 {
		t.Fatalf("AttributeAt() = %+v, want 14..23", got)
	}
}

func TestPlan(t *testing.T) {
	doc := document.New("file:///App.vue", "vue", component)
	refs := DefaultReferences()

	tests := []struct {
		name string
		sel  document.Range
		want Replacement
	}{
		{
			name: "interpolation",
			sel:  rng(3, 9, 3, 21),
			want: Replacement{
				Context: Template,
				Edit:    document.Edit{Range: rng(3, 9, 3, 21), NewText: "{{ t.welcomeBack }}"},
			},
		},
		{
			name: "attribute",
			sel:  rng(5, 24, 5, 38),
			want: Replacement{
				Context:   AttributeValue,
				Attribute: "placeholder",
				Edit:      document.Edit{Range: rng(5, 11, 5, 39), NewText: `:placeholder="t.welcomeBack"`},
			},
		},
		{
			name: "script",
			sel:  rng(12, 10, 12, 17),
			want: Replacement{
				Context: Script,
				Edit:    document.Edit{Range: rng(12, 10, 12, 17), NewText: "this.t.welcomeBack"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Plan(doc, tt.sel, "welcomeBack", refs)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("Plan mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPlanCustomReferences(t *testing.T) {
	doc := document.New("", "vue", "<template>\n  <b label=\"Hi\">Hi</b>\n</template>")
	refs := References{
		Script:    "i18n.{key}",
		Template:  "{{ $t('{key}') }}",
		Attribute: `v-bind:{attr}="$t('{key}')"`,
	}
	got := Plan(doc, rng(1, 12, 1, 14), "hi", refs)
	if got.Edit.NewText != `v-bind:label="$t('hi')"` {
		t.Fatalf("NewText = %q", got.Edit.NewText)
	}
	// The body text equals the attribute value but lies outside it.
	got = Plan(doc, rng(1, 16, 1, 18), "hi", refs)
	if got.Context != Template || got.Edit.NewText != "{{ $t('hi') }}" {
		t.Fatalf("Plan(body) = %+v, want template interpolation", got)
	}
}

func TestReferencesValidate(t *testing.T) {
	if err := DefaultReferences().Validate(); err != nil {
		t.Fatalf("Validate(default) error: %v", err)
	}
	refs := DefaultReferences()
	refs.Template = "{{ t.key }}"
	if err := refs.Validate(); err == nil {
		t.Fatal("Validate() = nil, want error for missing {key}")
	}
}

func rng(l1, c1, l2, c2 int) document.Range {
	return document.Range{
		Start: document.Position{Line: l1, Character: c1},
		End:   document.Position{Line: l2, Character: c2},
	}
}
