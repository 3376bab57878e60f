// textkey turns selected UI text into translation keys: it asks an AI
// provider for a camelCase key and per-locale translations, merges them into
// src/utils/i18n.ts and rewrites the selection into a reference to the key.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/minios-linux/textkey/config"
	"github.com/minios-linux/textkey/document"
	"github.com/minios-linux/textkey/editor"
	"github.com/minios-linux/textkey/i18n"
	"github.com/minios-linux/textkey/lockfile"
	"github.com/minios-linux/textkey/lsp"
	"github.com/minios-linux/textkey/textsfile"
	"github.com/minios-linux/textkey/translate"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	blue   = color.New(color.FgBlue).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow, color.Bold).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
)

// stderr receives every log line; stdout is kept for machine output.
var stderr io.Writer = color.Error

func logInfo(format string, args ...any) {
	fmt.Fprintf(stderr, blue("[INFO]")+" "+format+"\n", args...)
}

func logSuccess(format string, args ...any) {
	fmt.Fprintf(stderr, green("[OK]")+" "+format+"\n", args...)
}

func logWarning(format string, args ...any) {
	fmt.Fprintf(stderr, yellow("[WARN]")+" "+format+"\n", args...)
}

func logError(format string, args ...any) {
	fmt.Fprintf(stderr, red("[ERROR]")+" "+format+"\n", args...)
}

func logDebug(format string, args ...any) {
	if verbose {
		fmt.Fprintf(stderr, "[DEBUG] "+format+"\n", args...)
	}
}

// errReported makes the process exit 1 without printing anything more:
// the details were already logged.
var errReported = errors.New("errors were reported")

// ---------------------------------------------------------------------------
// Global flags
// ---------------------------------------------------------------------------

var (
	rootDir string
	verbose bool
)

// ---------------------------------------------------------------------------
// Root command
// ---------------------------------------------------------------------------

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "textkey",
		Short: "Turn selected UI text into translation keys with AI",
		Long: `textkey: turn selected UI text into translation keys with AI.

The selected text is sent to an AI provider, which answers with a camelCase
key and one translation per configured locale. The key is merged into every
section of src/utils/i18n.ts and the selection is rewritten into a reference
to it (this.t.key in scripts, {{ t.key }} in templates, :attr="t.key" for
attributes).

Commands:
  add         Translate selections of a file and rewrite them
  check       Validate the configuration and the translation file
  keys        List the keys of the translation file
  serve       Run the language server on stdio
  memory      Show or prune the translation memory
  auth        Manage provider authentication

AI Providers:
  openai         OpenAI (default), API key
  google         Google AI (Gemini), API key
  groq           Groq, API key
  copilot        GitHub Copilot (native OAuth)
  ollama         Ollama local server
  custom-openai  Custom OpenAI-compatible endpoint`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&rootDir, "root", ".", "Project root directory")
	root.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable detailed logging")

	root.AddCommand(
		newAddCmd(),
		newCheckCmd(),
		newKeysCmd(),
		newServeCmd(),
		newMemoryCmd(),
		newAuthCmd(),
		newVersionCmd(),
	)

	return root
}

func main() {
	i18n.Init("")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		if !errors.Is(err, errReported) {
			logError("%v", err)
		}
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// version
// ---------------------------------------------------------------------------

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display version, commit hash, and build date.`,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "textkey version %s\n", version)
			fmt.Fprintf(out, "  commit:    %s\n", commit)
			fmt.Fprintf(out, "  built:     %s\n", date)
		},
	}
}

// ---------------------------------------------------------------------------
// add
// ---------------------------------------------------------------------------

func newAddCmd() *cobra.Command {
	var (
		ranges   []string
		dryRun   bool
		noMemory bool
		ov       editor.Overrides
	)

	cmd := &cobra.Command{
		Use:   "add FILE --range L:C-L:C [--range ...]",
		Short: "Translate selections of a file and rewrite them",
		Long: `Translate the selected texts of FILE and rewrite each selection into a
reference to its new key.

Ranges are one-based line:column pairs; columns count UTF-16 code units, as
editors do. A bare line number selects the whole line.

Examples:
  # Translate the heading on line 3 of a component
  textkey add src/components/Login.vue --range 3:9-3:21

  # Several selections at once, through GitHub Copilot
  textkey add src/App.vue --range 5:7-5:19 --range 9:22-9:31 --provider copilot

  # Show what would change without touching any file
  textkey add src/App.vue --range 5:7-5:19 --dry-run`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(ranges) == 0 {
				return errors.New("at least one --range is required")
			}
			ov.Verbose = verbose
			ov.OnLog = logDebug
			return runAdd(cmd.Context(), cmd.OutOrStdout(), addArgs{
				file: args[0], ranges: ranges,
				dryRun: dryRun, noMemory: noMemory,
				overrides: ov,
			})
		},
	}

	cmd.Flags().StringArrayVar(&ranges, "range", nil, "Selection to translate, L:C-L:C (repeatable)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the planned changes as JSON without writing files")
	cmd.Flags().BoolVar(&noMemory, "no-memory", false, "Do not read or update the translation memory")
	addProviderFlags(cmd, &ov)

	return cmd
}

// addProviderFlags registers the flags that override the provider settings
// of .textkey.yaml.
func addProviderFlags(cmd *cobra.Command, ov *editor.Overrides) {
	cmd.Flags().StringVar(&ov.Provider, "provider", "", "AI provider: "+strings.Join(translate.ProviderIDs(), ", "))
	cmd.Flags().StringVar(&ov.Model, "model", "", "Model name (default: provider default)")
	cmd.Flags().StringVar(&ov.APIKey, "api-key", "", "API key (or TEXTKEY_API_KEY env var)")
	cmd.Flags().StringVar(&ov.BaseURL, "base-url", "", "Custom API base URL")
	cmd.Flags().DurationVar(&ov.Timeout, "timeout", 0, "Request timeout (0 = provider default)")
	cmd.Flags().StringVar(&ov.Proxy, "proxy", "", "HTTP/HTTPS proxy URL")
	cmd.Flags().IntVar(&ov.MaxRetries, "max-retries", 3, "Maximum retries on rate limit (429) and server errors")

	_ = cmd.RegisterFlagCompletionFunc("provider", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		defaults := translate.DefaultProviders()
		out := make([]string, 0, len(defaults))
		for _, id := range translate.ProviderIDs() {
			out = append(out, id+"\t"+defaults[id].Name)
		}
		return out, cobra.ShellCompDirectiveNoFileComp
	})

	_ = cmd.RegisterFlagCompletionFunc("model", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		p, _ := cmd.Flags().GetString("provider")
		switch p {
		case translate.ProviderOpenAI, "":
			return []string{"gpt-4o", "gpt-4o-mini", "gpt-4.1"}, cobra.ShellCompDirectiveNoFileComp
		case translate.ProviderGoogle:
			return []string{"gemini-2.0-flash", "gemini-2.5-flash", "gemini-1.5-pro"}, cobra.ShellCompDirectiveNoFileComp
		case translate.ProviderGroq:
			return []string{"llama-3.3-70b-versatile", "mixtral-8x7b-32768"}, cobra.ShellCompDirectiveNoFileComp
		case translate.ProviderCopilot:
			return []string{"gpt-4o", "gpt-5-mini", "claude-sonnet-4"}, cobra.ShellCompDirectiveNoFileComp
		case translate.ProviderOllama:
			return []string{"llama3.2", "qwen2.5", "mistral"}, cobra.ShellCompDirectiveNoFileComp
		default:
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
	})
}

type addArgs struct {
	file             string
	ranges           []string
	dryRun, noMemory bool
	overrides        editor.Overrides
	// newTranslator replaces overrides.Factory() in tests.
	newTranslator editor.TranslatorFactory
}

// cliNotifier prints editor messages with the log helpers.
type cliNotifier struct{}

func (cliNotifier) Info(msg string)    { logSuccess("%s", msg) }
func (cliNotifier) Warning(msg string) { logWarning("%s", msg) }
func (cliNotifier) Error(msg string)   { logError("%s", msg) }

// dryRunReport is what add --dry-run prints.
type dryRunReport struct {
	File       string            `json:"file"`
	Selections []dryRunSelection `json:"selections"`
	Edits      []document.Edit   `json:"edits"`
}

type dryRunSelection struct {
	Range        string            `json:"range"`
	Text         string            `json:"text"`
	Status       string            `json:"status"`
	Key          string            `json:"key,omitempty"`
	Context      string            `json:"context,omitempty"`
	Cached       bool              `json:"cached,omitempty"`
	Translations map[string]string `json:"translations,omitempty"`
	Error        string            `json:"error,omitempty"`
}

func runAdd(ctx context.Context, out io.Writer, a addArgs) error {
	sels := make([]document.Range, 0, len(a.ranges))
	for _, s := range a.ranges {
		r, err := document.ParseRange(s)
		if err != nil {
			return err
		}
		sels = append(sels, r)
	}

	path, err := filepath.Abs(a.file)
	if err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	doc := document.New("file://"+filepath.ToSlash(path), document.LanguageFromPath(path), string(data))
	// Indentation and line breaks around a selection stay in the file.
	for i, r := range sels {
		sels[i] = doc.Trim(r)
	}

	factory := a.newTranslator
	if factory == nil {
		factory = a.overrides.Factory()
	}
	svc := &editor.Service{
		Root:          rootDir,
		NewTranslator: factory,
		Notifier:      cliNotifier{},
		NoMemory:      a.noMemory,
		DryRun:        a.dryRun,
	}

	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()
	res, runErr := svc.AddTranslations(ctx, doc, sels)
	if res == nil {
		// Configuration problems, already shown.
		return errReported
	}
	logDebug("processed %d selection(s) in %s", len(sels), time.Since(start).Round(time.Millisecond))

	if a.dryRun {
		if err := writeDryRun(out, a.file, res); err != nil {
			return err
		}
	} else if len(res.Edits) > 0 {
		text, err := doc.ApplyEdits(res.Edits)
		if err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(text), info.Mode().Perm()); err != nil {
			return fmt.Errorf("writing %s: %w", a.file, err)
		}
		logSuccess("Rewrote %d selection(s) in %s", len(res.Edits), a.file)
	}

	if runErr != nil {
		logDebug("%v", runErr)
		return errReported
	}
	return nil
}

func writeDryRun(out io.Writer, file string, res *editor.Result) error {
	report := dryRunReport{File: file, Edits: res.Edits}
	if report.Edits == nil {
		report.Edits = []document.Edit{}
	}
	for _, sel := range res.Selections {
		ds := dryRunSelection{
			Range:        sel.Range.String(),
			Text:         sel.Text,
			Status:       sel.Status.String(),
			Key:          sel.Key,
			Cached:       sel.Cached,
			Translations: sel.Translations,
		}
		if sel.Edit != nil {
			ds.Context = sel.Context.String()
		}
		if sel.Err != nil {
			ds.Error = translate.Describe(sel.Err)
		}
		report.Selections = append(report.Selections, ds)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// ---------------------------------------------------------------------------
// check
// ---------------------------------------------------------------------------

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration and the translation file",
		Long: `Validate .textkey.yaml and the translation file.

Reports keys missing from a locale section, keys the type does not declare,
duplicates and keys out of alphabetical order. Exits with status 1 when
anything is found.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck()
		},
	}
}

func runCheck() error {
	problems, err := lsp.Check(rootDir)
	if err != nil {
		return err
	}
	if len(problems) == 0 {
		logSuccess("%s", i18n.T("No problems found."))
		return nil
	}
	for _, p := range problems {
		logWarning("%s", p)
	}
	logError("%s", i18n.N("%d problem found in the translation file.", "%d problems found in the translation file.", len(problems), len(problems)))
	return errReported
}

// ---------------------------------------------------------------------------
// keys
// ---------------------------------------------------------------------------

func newKeysCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "keys",
		Short: "List the keys of the translation file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeys(cmd.OutOrStdout(), asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print keys and values as JSON")
	return cmd
}

func loadTranslationFile() (*config.Config, *textsfile.File, error) {
	cfg, err := config.Load(rootDir)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.ValidateTranslationFile(); err != nil {
		return nil, nil, err
	}
	file, err := textsfile.ParseFile(cfg.TranslationPath(), cfg.Layout())
	if err != nil {
		return nil, nil, err
	}
	return cfg, file, nil
}

func runKeys(out io.Writer, asJSON bool) error {
	cfg, file, err := loadTranslationFile()
	if err != nil {
		return err
	}
	keys := file.Keys()

	if asJSON {
		values := make(map[string]map[string]string, len(keys))
		for _, key := range keys {
			values[key] = make(map[string]string, len(cfg.Locales))
			for _, lang := range cfg.Locales {
				if v, ok := file.Value(lang, key); ok {
					values[key][lang] = v
				}
			}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(values)
	}

	width := 0
	for _, key := range keys {
		width = max(width, len(key))
	}
	for _, key := range keys {
		var parts []string
		for _, lang := range cfg.Locales {
			v, ok := file.Value(lang, key)
			if !ok {
				v = red("missing")
			}
			parts = append(parts, fmt.Sprintf("%s=%s", lang, v))
		}
		fmt.Fprintf(out, "%-*s  %s\n", width, key, strings.Join(parts, "  "))
	}
	logInfo("%d keys in %s", len(keys), cfg.TranslationFile)
	return nil
}

// ---------------------------------------------------------------------------
// serve
// ---------------------------------------------------------------------------

func newServeCmd() *cobra.Command {
	var (
		noMemory bool
		ov       editor.Overrides
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the language server on stdio",
		Long: `Run textkey as a Language Server over stdin/stdout.

Editors get an "Add translation" code action on non-empty selections and
the textkey.addTranslation and textkey.check commands. Logs go to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := filepath.Abs(rootDir)
			if err != nil {
				return err
			}
			ov.Verbose = verbose
			ov.OnLog = logDebug
			verbosity := 1
			if verbose {
				verbosity = 2
			}
			return lsp.New(lsp.Options{
				Version:       version,
				Root:          root,
				NewTranslator: ov.Factory(),
				NoMemory:      noMemory,
			}).RunStdio(verbosity)
		},
	}

	cmd.Flags().BoolVar(&noMemory, "no-memory", false, "Do not read or update the translation memory")
	addProviderFlags(cmd, &ov)
	return cmd
}

// ---------------------------------------------------------------------------
// memory
// ---------------------------------------------------------------------------

func newMemoryCmd() *cobra.Command {
	var (
		prune bool
		list  bool
	)

	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Show or prune the translation memory",
		Long: `Show the translation memory kept in textkey.lock.

Every answer from the AI provider is remembered by source text, so selecting
the same text again reuses the key and translations without a request.
--prune drops entries whose key is no longer in the translation file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMemory(cmd.OutOrStdout(), prune, list)
		},
	}

	cmd.Flags().BoolVar(&prune, "prune", false, "Remove entries whose key no longer exists")
	cmd.Flags().BoolVar(&list, "list", false, "List every remembered text")
	return cmd
}

func runMemory(out io.Writer, prune, list bool) error {
	cfg, err := config.Load(rootDir)
	if err != nil {
		return err
	}
	lf, err := lockfile.Load(cfg.Root)
	if err != nil {
		return err
	}

	if prune {
		_, file, err := loadTranslationFile()
		if err != nil {
			return err
		}
		removed := lf.Clean(file.Keys())
		if removed > 0 {
			if err := lf.Save(); err != nil {
				return err
			}
		}
		logSuccess("Removed %d stale entries", removed)
	}

	if list {
		for _, e := range lf.List() {
			fmt.Fprintf(out, "%s\t%q\n", e.Key, e.Text)
		}
	}

	logInfo("%s: %s", lockfile.FileName, lf.Summary())
	return nil
}
