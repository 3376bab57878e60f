package lsp

import (
	"encoding/json"
	"fmt"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/minios-linux/textkey/config"
	"github.com/minios-linux/textkey/document"
	"github.com/minios-linux/textkey/i18n"
	"github.com/minios-linux/textkey/textsfile"
)

// AddTranslationArgs is the argument of textkey.addTranslation.
type AddTranslationArgs struct {
	URI    string           `json:"uri"`
	Ranges []protocol.Range `json:"ranges"`
}

// ---------------------------------------------------------------------------
// Code actions
// ---------------------------------------------------------------------------

func (s *Server) codeAction(_ *glsp.Context, params *protocol.CodeActionParams) (any, error) {
	r := fromRange(params.Range).Normalized()
	if r.Empty() {
		return []protocol.CodeAction{}, nil
	}
	doc, ok := s.docs.snapshot(params.TextDocument.URI)
	if !ok || doc.TextIn(r) == "" {
		return []protocol.CodeAction{}, nil
	}

	kind := protocol.CodeActionKindRefactorRewrite
	title := i18n.T("Add translation")
	return []protocol.CodeAction{{
		Title: title,
		Kind:  &kind,
		Command: &protocol.Command{
			Title:   title,
			Command: CommandAddTranslation,
			Arguments: []any{AddTranslationArgs{
				URI:    params.TextDocument.URI,
				Ranges: []protocol.Range{params.Range},
			}},
		},
	}}, nil
}

// ---------------------------------------------------------------------------
// Commands
// ---------------------------------------------------------------------------

func (s *Server) executeCommand(ctx *glsp.Context, params *protocol.ExecuteCommandParams) (any, error) {
	switch params.Command {
	case CommandAddTranslation:
		return s.addTranslation(ctx, params.Arguments)
	case CommandCheck:
		return s.check(ctx)
	default:
		return nil, fmt.Errorf("unknown command %q", params.Command)
	}
}

func decodeAddArgs(arguments []any) (AddTranslationArgs, error) {
	var args AddTranslationArgs
	if len(arguments) == 0 {
		return args, fmt.Errorf("%s: missing arguments", CommandAddTranslation)
	}
	// Arguments arrive as decoded JSON; round-trip into the typed form.
	raw, err := json.Marshal(arguments[0])
	if err != nil {
		return args, err
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return args, fmt.Errorf("%s: %w", CommandAddTranslation, err)
	}
	if args.URI == "" || len(args.Ranges) == 0 {
		return args, fmt.Errorf("%s: uri and ranges are required", CommandAddTranslation)
	}
	return args, nil
}

// addTranslation validates the request and returns at once. glsp serves
// requests one at a time on the connection's reader, so the AI round trip
// and the workspace/applyEdit call run in the background; applyEdit would
// otherwise wait for a reply the blocked reader can never deliver.
func (s *Server) addTranslation(ctx *glsp.Context, arguments []any) (any, error) {
	args, err := decodeAddArgs(arguments)
	if err != nil {
		return nil, err
	}
	doc, ok := s.docs.snapshot(args.URI)
	if !ok {
		return nil, fmt.Errorf("document %s is not open", args.URI)
	}

	ranges := make([]document.Range, len(args.Ranges))
	for i, r := range args.Ranges {
		ranges[i] = fromRange(r)
	}

	s.jobs.Add(1)
	go func() {
		defer s.jobs.Done()
		s.work.Lock()
		defer s.work.Unlock()
		s.runAddTranslation(ctx, args.URI, doc, ranges)
	}()
	return nil, nil
}

func (s *Server) runAddTranslation(ctx *glsp.Context, uri string, doc *document.Document, ranges []document.Range) {
	if s.ctx.Err() != nil {
		return
	}
	res, err := s.service(ctx).AddTranslations(s.ctx, doc, ranges)
	if err != nil {
		// Already shown to the user through the notifier.
		log.Errorf("%s: %s", CommandAddTranslation, err)
	}
	if res == nil || len(res.Edits) == 0 {
		return
	}

	label := i18n.T("Add translation")
	edit := protocol.ApplyWorkspaceEditParams{
		Label: &label,
		Edit: protocol.WorkspaceEdit{
			Changes: map[protocol.DocumentUri][]protocol.TextEdit{
				uri: toTextEdits(res.Edits),
			},
		},
	}
	var applied protocol.ApplyWorkspaceEditResponse
	ctx.Call(protocol.ServerWorkspaceApplyEdit, edit, &applied)
	if !applied.Applied {
		reason := "rejected"
		if applied.FailureReason != nil {
			reason = *applied.FailureReason
		}
		log.Warningf("workspace edit not applied: %s", reason)
	}
}

// check reports configuration and translation file problems.
func (s *Server) check(ctx *glsp.Context) (any, error) {
	problems, err := Check(s.Root())
	if err != nil {
		showMessage(ctx, protocol.MessageTypeError, err.Error())
		return nil, nil
	}
	if len(problems) == 0 {
		showMessage(ctx, protocol.MessageTypeInfo, i18n.T("No problems found."))
		return []string{}, nil
	}

	out := make([]string, len(problems))
	for i, p := range problems {
		out[i] = p.String()
		log.Warningf("%s", out[i])
	}
	showMessage(ctx, protocol.MessageTypeWarning,
		i18n.N("%d problem found in the translation file.", "%d problems found in the translation file.", len(problems), len(problems)))
	return out, nil
}

// Check loads the project at root and returns the translation file's
// consistency problems.
func Check(root string) ([]textsfile.Problem, error) {
	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateTranslationFile(); err != nil {
		return nil, err
	}
	file, err := textsfile.ParseFile(cfg.TranslationPath(), cfg.Layout())
	if err != nil {
		return nil, err
	}
	return file.Check()
}
