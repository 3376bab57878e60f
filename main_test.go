package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/google/go-cmp/cmp"

	"github.com/minios-linux/textkey/config"
	"github.com/minios-linux/textkey/lockfile"
	"github.com/minios-linux/textkey/settings"
	"github.com/minios-linux/textkey/translate"
)

const appVue = `<template>
  <h1>Welcome back</h1>
</template>
`

const textsTS = `export type Texts = {
    cancel: NoParamString;
};

const texts_en: Texts = {
    cancel: "Cancel",
};

const texts_fr: Texts = {
    cancel: "Annuler",
};
`

type stubTranslator struct{ calls int }

func (s *stubTranslator) Translate(_ context.Context, text string) (*translate.Result, error) {
	s.calls++
	if text != "Welcome back" {
		return nil, errors.New("unexpected text " + text)
	}
	return &translate.Result{
		Key:          "welcomeBack",
		Translations: map[string]string{"en": "Welcome back", "fr": "Bon retour"},
	}, nil
}

func (s *stubTranslator) factory() func(context.Context, *config.Config) (translate.Translator, error) {
	return func(context.Context, *config.Config) (translate.Translator, error) { return s, nil }
}

// setupCLI creates a project, points --root at it and captures the logs.
func setupCLI(t *testing.T) (root string, logs *bytes.Buffer) {
	t.Helper()
	t.Setenv(config.EnvTranslationFile, "")
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	root = t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "src", "utils"), 0755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(root, "src", "utils", "i18n.ts"), textsTS)
	writeFile(t, filepath.Join(root, "src", "App.vue"), appVue)

	oldRoot, oldStderr, oldNoColor := rootDir, stderr, color.NoColor
	logs = &bytes.Buffer{}
	rootDir, stderr, color.NoColor = root, logs, true
	t.Cleanup(func() { rootDir, stderr, color.NoColor = oldRoot, oldStderr, oldNoColor })
	return root, logs
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

// ---------------------------------------------------------------------------
// add
// ---------------------------------------------------------------------------

func TestRunAddRewritesFile(t *testing.T) {
	root, logs := setupCLI(t)
	stub := &stubTranslator{}
	app := filepath.Join(root, "src", "App.vue")

	err := runAdd(context.Background(), &bytes.Buffer{}, addArgs{
		file:          app,
		ranges:        []string{"2:7-2:19"},
		newTranslator: stub.factory(),
	})
	if err != nil {
		t.Fatalf("runAdd() error = %v\nlogs:\n%s", err, logs)
	}

	want := strings.Replace(appVue, "Welcome back", "{{ t.welcomeBack }}", 1)
	if got := readFile(t, app); got != want {
		t.Fatalf("App.vue = %q, want %q", got, want)
	}
	texts := readFile(t, filepath.Join(root, "src", "utils", "i18n.ts"))
	for _, line := range []string{`welcomeBack: NoParamString;`, `welcomeBack: "Welcome back",`, `welcomeBack: "Bon retour",`} {
		if !strings.Contains(texts, line) {
			t.Errorf("i18n.ts missing %q:\n%s", line, texts)
		}
	}
	if !strings.Contains(logs.String(), "Translation file updated successfully.") {
		t.Errorf("logs = %q", logs)
	}

	// The memory answers the second time.
	lf, err := lockfile.Load(root)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := lf.Lookup([]string{"en", "fr"}, "Welcome back"); !ok {
		t.Fatal("answer not remembered")
	}
}

func TestRunAddWholeLineKeepsLayout(t *testing.T) {
	root, logs := setupCLI(t)
	app := filepath.Join(root, "src", "App.vue")
	writeFile(t, app, "<template>\n  <p>\n    Welcome back\n  </p>\n</template>\n")

	stub := &stubTranslator{}
	err := runAdd(context.Background(), &bytes.Buffer{}, addArgs{
		file:          app,
		ranges:        []string{"3"},
		newTranslator: stub.factory(),
	})
	if err != nil {
		t.Fatalf("runAdd() error = %v\nlogs:\n%s", err, logs)
	}
	want := "<template>\n  <p>\n    {{ t.welcomeBack }}\n  </p>\n</template>\n"
	if got := readFile(t, app); got != want {
		t.Fatalf("App.vue = %q, want %q", got, want)
	}
}

func TestRunAddDryRunPrintsJSON(t *testing.T) {
	root, _ := setupCLI(t)
	stub := &stubTranslator{}
	app := filepath.Join(root, "src", "App.vue")

	var out bytes.Buffer
	err := runAdd(context.Background(), &out, addArgs{
		file:          app,
		ranges:        []string{"2:7-2:19"},
		dryRun:        true,
		newTranslator: stub.factory(),
	})
	if err != nil {
		t.Fatal(err)
	}

	var report dryRunReport
	if err := json.Unmarshal(out.Bytes(), &report); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out.String())
	}
	want := []dryRunSelection{{
		Range:        "2:7-2:19",
		Text:         "Welcome back",
		Status:       "added",
		Key:          "welcomeBack",
		Context:      "template",
		Translations: map[string]string{"en": "Welcome back", "fr": "Bon retour"},
	}}
	if diff := cmp.Diff(want, report.Selections); diff != "" {
		t.Fatalf("selections mismatch (-want +got):\n%s", diff)
	}
	if len(report.Edits) != 1 || report.Edits[0].NewText != "{{ t.welcomeBack }}" {
		t.Fatalf("edits = %+v", report.Edits)
	}

	if got := readFile(t, app); got != appVue {
		t.Fatal("dry run modified the source file")
	}
	if got := readFile(t, filepath.Join(root, "src", "utils", "i18n.ts")); got != textsTS {
		t.Fatal("dry run modified the translation file")
	}
	if _, err := os.Stat(filepath.Join(root, lockfile.FileName)); !os.IsNotExist(err) {
		t.Fatalf("dry run wrote the memory: %v", err)
	}
}

func TestRunAddReportsFailures(t *testing.T) {
	root, logs := setupCLI(t)
	stub := &stubTranslator{}
	app := filepath.Join(root, "src", "App.vue")

	// An empty selection only warns.
	err := runAdd(context.Background(), &bytes.Buffer{}, addArgs{
		file:          app,
		ranges:        []string{"2:3-2:3"},
		newTranslator: stub.factory(),
	})
	if err != nil {
		t.Fatalf("empty selection: error = %v", err)
	}
	if !strings.Contains(logs.String(), "No text selected.") {
		t.Fatalf("logs = %q", logs)
	}

	err = runAdd(context.Background(), &bytes.Buffer{}, addArgs{
		file:          app,
		ranges:        []string{"1:2-1:10"},
		newTranslator: stub.factory(),
	})
	if !errors.Is(err, errReported) {
		t.Fatalf("translator error: got %v, want errReported", err)
	}
	if !strings.Contains(logs.String(), "Error getting translations:") {
		t.Fatalf("logs = %q", logs)
	}

	if err := runAdd(context.Background(), &bytes.Buffer{}, addArgs{file: app, ranges: []string{"x"}}); err == nil {
		t.Fatal("bad range: want error")
	}
}

func TestRunAddMissingTranslationFile(t *testing.T) {
	root, logs := setupCLI(t)
	if err := os.Remove(filepath.Join(root, "src", "utils", "i18n.ts")); err != nil {
		t.Fatal(err)
	}
	err := runAdd(context.Background(), &bytes.Buffer{}, addArgs{
		file:          filepath.Join(root, "src", "App.vue"),
		ranges:        []string{"2:7-2:19"},
		newTranslator: (&stubTranslator{}).factory(),
	})
	if !errors.Is(err, errReported) {
		t.Fatalf("got %v, want errReported", err)
	}
	if !strings.Contains(logs.String(), "Translation file not found at path") {
		t.Fatalf("logs = %q", logs)
	}
}

// ---------------------------------------------------------------------------
// check / keys / memory
// ---------------------------------------------------------------------------

func TestRunCheck(t *testing.T) {
	root, logs := setupCLI(t)
	if err := runCheck(); err != nil {
		t.Fatalf("clean file: %v", err)
	}

	broken := strings.Replace(textsTS, `    cancel: "Annuler",`+"\n", "", 1)
	writeFile(t, filepath.Join(root, "src", "utils", "i18n.ts"), broken)
	if err := runCheck(); !errors.Is(err, errReported) {
		t.Fatalf("broken file: got %v, want errReported", err)
	}
	if !strings.Contains(logs.String(), `fr: missing value "cancel"`) {
		t.Fatalf("logs = %q", logs)
	}
}

func TestRunKeysJSON(t *testing.T) {
	setupCLI(t)
	var out bytes.Buffer
	if err := runKeys(&out, true); err != nil {
		t.Fatal(err)
	}
	var got map[string]map[string]string
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	want := map[string]map[string]string{"cancel": {"en": "Cancel", "fr": "Annuler"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("keys mismatch (-want +got):\n%s", diff)
	}
}

func TestRunKeysTable(t *testing.T) {
	setupCLI(t)
	var out bytes.Buffer
	if err := runKeys(&out, false); err != nil {
		t.Fatal(err)
	}
	if got, want := out.String(), "cancel  en=Cancel  fr=Annuler\n"; got != want {
		t.Fatalf("runKeys() = %q, want %q", got, want)
	}
}

func TestRunMemoryPrune(t *testing.T) {
	root, logs := setupCLI(t)

	lf, err := lockfile.Load(root)
	if err != nil {
		t.Fatal(err)
	}
	lf.Record([]string{"en", "fr"}, "Cancel", "cancel", map[string]string{"en": "Cancel", "fr": "Annuler"})
	lf.Record([]string{"en", "fr"}, "Gone", "gone", map[string]string{"en": "Gone", "fr": "Parti"})
	if err := lf.Save(); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := runMemory(&out, true, true); err != nil {
		t.Fatal(err)
	}
	if got, want := out.String(), "cancel\t\"Cancel\"\n"; got != want {
		t.Fatalf("list = %q, want %q", got, want)
	}
	if !strings.Contains(logs.String(), "Removed 1 stale entries") {
		t.Fatalf("logs = %q", logs)
	}

	lf, err = lockfile.Load(root)
	if err != nil {
		t.Fatal(err)
	}
	if entries, _ := lf.Stats(); entries != 1 {
		t.Fatalf("entries after prune = %d, want 1", entries)
	}
}

// ---------------------------------------------------------------------------
// auth
// ---------------------------------------------------------------------------

func scanner(input string) *bufio.Scanner {
	return bufio.NewScanner(strings.NewReader(input))
}

func TestAuthLoginAPIKey(t *testing.T) {
	setupCLI(t)
	var out bytes.Buffer

	if err := runAuthLogin(context.Background(), scanner("sk-test-123456789\n"), &out, "openai"); err != nil {
		t.Fatal(err)
	}
	if got := settings.GetAPIKey("openai"); got != "sk-test-123456789" {
		t.Fatalf("stored key = %q", got)
	}

	// Enter keeps the stored key.
	if err := runAuthLogin(context.Background(), scanner("\n"), &out, "openai"); err != nil {
		t.Fatal(err)
	}
	if got := settings.GetAPIKey("openai"); got != "sk-test-123456789" {
		t.Fatalf("stored key after keep = %q", got)
	}

	if err := runAuthLogin(context.Background(), scanner("\n"), &out, "groq"); err == nil {
		t.Fatal("empty key without a stored one: want error")
	}
	if err := runAuthLogin(context.Background(), scanner(""), &out, "nope"); err == nil {
		t.Fatal("unknown provider: want error")
	}
}

func TestAuthLoginCustomOpenAI(t *testing.T) {
	setupCLI(t)
	var out bytes.Buffer
	if err := runAuthLogin(context.Background(), scanner("https://llm.example.com/v1\n\n"), &out, "custom-openai"); err != nil {
		t.Fatal(err)
	}
	if got := settings.GetBaseURL("custom-openai"); got != "https://llm.example.com/v1" {
		t.Fatalf("base URL = %q", got)
	}
	if got := settings.GetAPIKey("custom-openai"); got != "" {
		t.Fatalf("key = %q, want none", got)
	}
}

func TestChooseProvider(t *testing.T) {
	var out bytes.Buffer
	id, err := chooseProvider(scanner("2\n"), &out)
	if err != nil {
		t.Fatal(err)
	}
	if id != "copilot" {
		t.Fatalf("chooseProvider(2) = %q, want %q", id, "copilot")
	}
	if _, err := chooseProvider(scanner("9\n"), &out); err == nil {
		t.Fatal("out of range: want error")
	}
	if strings.Contains(out.String(), "Ollama") {
		t.Fatal("menu lists a provider without authentication")
	}
}

func TestAuthLogout(t *testing.T) {
	setupCLI(t)
	if err := settings.SetAPIKey("openai", "sk-a", ""); err != nil {
		t.Fatal(err)
	}
	if err := settings.SetAPIKey("groq", "gsk-b", ""); err != nil {
		t.Fatal(err)
	}

	if err := runAuthLogout("openai"); err != nil {
		t.Fatal(err)
	}
	if settings.GetAPIKey("openai") != "" || settings.GetAPIKey("groq") == "" {
		t.Fatal("logout --provider openai removed the wrong entries")
	}
	if err := runAuthLogout("ollama"); err == nil {
		t.Fatal("ollama: want error")
	}
	if err := runAuthLogout(""); err != nil {
		t.Fatal(err)
	}
	if settings.GetAPIKey("groq") != "" {
		t.Fatal("logout without provider kept credentials")
	}
}

func TestPrintAuthListMasksKeys(t *testing.T) {
	setupCLI(t)
	t.Setenv(settings.EnvAPIKey, "")
	if err := settings.SetAPIKey("openai", "sk-secret-value-1234", ""); err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	printAuthList(&out)
	if strings.Contains(out.String(), "sk-secret-value-1234") {
		t.Fatal("auth list printed the full key")
	}
	if !strings.Contains(out.String(), "sk-s...1234") {
		t.Fatalf("auth list = %q", out.String())
	}
}

func TestVersionCommand(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out.String(), "textkey version dev\n") {
		t.Fatalf("version output = %q", out.String())
	}
}
