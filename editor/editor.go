// Package editor implements the "add translation" command shared by the CLI
// and the language server: every selection is translated, its key is merged
// into the translation file, and the selection is rewritten into a
// reference to that key.
package editor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/minios-linux/textkey/config"
	"github.com/minios-linux/textkey/document"
	"github.com/minios-linux/textkey/i18n"
	"github.com/minios-linux/textkey/lockfile"
	"github.com/minios-linux/textkey/markup"
	"github.com/minios-linux/textkey/textsfile"
	"github.com/minios-linux/textkey/translate"
)

// ---------------------------------------------------------------------------
// Notifications
// ---------------------------------------------------------------------------

// Notifier shows messages to the user.
type Notifier interface {
	Info(msg string)
	Warning(msg string)
	Error(msg string)
}

type discard struct{}

func (discard) Info(string)    {}
func (discard) Warning(string) {}
func (discard) Error(string)   {}

// ---------------------------------------------------------------------------
// Outcome
// ---------------------------------------------------------------------------

// Status is what happened to one selection.
type Status int

const (
	// Added means the key was new and the selection was rewritten.
	Added Status = iota
	// Existing means the key was already defined; the selection was
	// rewritten anyway.
	Existing
	// Empty means the selection held only whitespace.
	Empty
	// Failed means no edit was produced.
	Failed
)

func (s Status) String() string {
	switch s {
	case Added:
		return "added"
	case Existing:
		return "existing"
	case Empty:
		return "empty"
	default:
		return "failed"
	}
}

// Selection is the outcome for one selected range.
type Selection struct {
	Range   document.Range `json:"range"`
	Text    string         `json:"text"`
	Key     string         `json:"key,omitempty"`
	Status  Status         `json:"-"`
	Context markup.Context `json:"-"`
	// Cached is true when the answer came from the translation memory.
	Cached       bool              `json:"cached,omitempty"`
	Translations map[string]string `json:"translations,omitempty"`
	// Edit is the planned rewrite, nil when the selection was skipped.
	Edit *document.Edit `json:"edit,omitempty"`
	Err  error          `json:"-"`
}

// Result is the outcome of AddTranslations.
type Result struct {
	// Edits rewrite the document. They never overlap.
	Edits      []document.Edit
	Selections []Selection
	// Written is true when the translation file was saved.
	Written bool
}

// ---------------------------------------------------------------------------
// Service
// ---------------------------------------------------------------------------

// Service runs the command against one project.
type Service struct {
	// Root is the project root holding .textkey.yaml.
	Root string
	// NewTranslator builds the remote translator. It is only called when
	// at least one text is missing from the translation memory.
	NewTranslator TranslatorFactory
	// Notifier receives user-facing messages. Nil discards them.
	Notifier Notifier
	// NoMemory disables the translation memory.
	NoMemory bool
	// DryRun computes edits without writing any file.
	DryRun bool
}

func (s *Service) notifier() Notifier {
	if s.Notifier == nil {
		return discard{}
	}
	return s.Notifier
}

// answer is a translation or the error obtaining it.
type answer struct {
	res    *translate.Result
	cached bool
	err    error
}

// AddTranslations processes the selections of doc in order and returns the
// edits to apply. Per-selection failures are reported through the Notifier
// and aggregated in the returned error; the edits of the other selections
// are still returned.
func (s *Service) AddTranslations(ctx context.Context, doc *document.Document, selections []document.Range) (*Result, error) {
	n := s.notifier()

	cfg, err := config.Load(s.Root)
	if err != nil {
		n.Error(err.Error())
		return nil, err
	}
	if err := cfg.ValidateTranslationFile(); err != nil {
		n.Error(err.Error())
		return nil, err
	}
	path := cfg.TranslationPath()
	file, err := textsfile.ParseFile(path, cfg.Layout())
	if err != nil {
		n.Error(err.Error())
		return nil, err
	}

	var mem *lockfile.LockFile
	if !s.NoMemory {
		if mem, err = lockfile.Load(cfg.Root); err != nil {
			n.Warning(err.Error())
			mem = nil
		}
	}

	result := &Result{Selections: make([]Selection, len(selections))}
	texts := make([]string, len(selections))
	for i, sel := range selections {
		sel = sel.Normalized()
		texts[i] = strings.TrimSpace(doc.TextIn(sel))
		result.Selections[i] = Selection{Range: sel, Text: texts[i]}
	}

	answers := s.fetch(ctx, cfg, mem, texts)

	var errs *multierror.Error
	var planned []document.Edit
	added := 0
	for i := range result.Selections {
		sel := &result.Selections[i]
		if sel.Text == "" {
			sel.Status = Empty
			n.Warning(i18n.T("No text selected."))
			continue
		}

		ans := answers[sel.Text]
		if ans.err != nil {
			sel.Status, sel.Err = Failed, ans.err
			n.Error(i18n.T("Error getting translations: %s", translate.Describe(ans.err)))
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", sel.Range, ans.err))
			continue
		}
		sel.Key, sel.Cached = ans.res.Key, ans.cached
		sel.Translations = ans.res.Values()

		repl := markup.Plan(doc, sel.Range, sel.Key, cfg.References)
		if overlapsAny(repl.Edit.Range, planned) {
			sel.Status = Failed
			sel.Err = fmt.Errorf("%s: %w", sel.Range, document.ErrOverlappingEdits)
			n.Warning(i18n.T("Selection %s overlaps an earlier one and was skipped.", sel.Range))
			errs = multierror.Append(errs, sel.Err)
			continue
		}
		sel.Context = repl.Context

		report, err := file.Insert(sel.Key, sel.Translations)
		switch {
		case errors.Is(err, textsfile.ErrDuplicateKey):
			sel.Status = Existing
			n.Warning(i18n.T("%s key already exists", sel.Key))
		case err != nil:
			sel.Status, sel.Err = Failed, err
			n.Error(err.Error())
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", sel.Range, err))
			continue
		default:
			sel.Status = Added
			added++
			for _, name := range report.Missing {
				n.Warning(i18n.T("Section %s not found in the translation file.", name))
			}
		}

		edit := repl.Edit
		sel.Edit = &edit
		planned = append(planned, edit)
	}

	if added > 0 && !s.DryRun {
		if err := file.WriteFile(path); err != nil {
			// Edits referencing keys that were not saved are dropped.
			n.Error(err.Error())
			errs = multierror.Append(errs, err)
			for i := range result.Selections {
				if sel := &result.Selections[i]; sel.Status == Added {
					sel.Status, sel.Err, sel.Edit = Failed, err, nil
				}
			}
		} else {
			result.Written = true
			n.Info(i18n.T("Translation file updated successfully."))
		}
	}

	for _, sel := range result.Selections {
		if sel.Edit != nil {
			result.Edits = append(result.Edits, *sel.Edit)
		}
	}

	if mem != nil && !s.DryRun {
		// Only answers whose key made it into the file are remembered.
		for _, sel := range result.Selections {
			if sel.Edit != nil && !sel.Cached {
				mem.Record(cfg.Locales, sel.Text, sel.Key, sel.Translations)
			}
		}
		if err := mem.SaveIfChanged(); err != nil {
			n.Warning(err.Error())
		}
	}

	return result, errs.ErrorOrNil()
}

// fetch resolves every distinct non-empty text, from the memory first and
// the translator otherwise. With max_concurrent > 1 the remote calls run in
// parallel.
func (s *Service) fetch(ctx context.Context, cfg *config.Config, mem *lockfile.LockFile, texts []string) map[string]answer {
	answers := make(map[string]answer, len(texts))
	var pending []string
	for _, text := range texts {
		if text == "" {
			continue
		}
		if _, done := answers[text]; done {
			continue
		}
		if mem != nil {
			if e, ok := mem.Lookup(cfg.Locales, text); ok {
				answers[text] = answer{res: &translate.Result{Key: e.Key, Translations: e.Translations}, cached: true}
				continue
			}
		}
		answers[text] = answer{}
		pending = append(pending, text)
	}
	if len(pending) == 0 {
		return answers
	}

	if s.NewTranslator == nil {
		err := errors.New("no translator configured")
		for _, text := range pending {
			answers[text] = answer{err: err}
		}
		return answers
	}
	tr, err := s.NewTranslator(ctx, cfg)
	if err != nil {
		for _, text := range pending {
			answers[text] = answer{err: err}
		}
		return answers
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Concurrency())
	for _, text := range pending {
		g.Go(func() error {
			res, err := tr.Translate(gctx, text)
			mu.Lock()
			answers[text] = answer{res: res, err: err}
			mu.Unlock()
			// Failures stay per selection.
			return nil
		})
	}
	_ = g.Wait()
	return answers
}

func overlapsAny(r document.Range, edits []document.Edit) bool {
	for _, e := range edits {
		if r.Start.Before(e.Range.End) && e.Range.Start.Before(r.End) {
			return true
		}
		if r == e.Range {
			return true
		}
	}
	return false
}
