// Package lsp serves textkey as a Language Server over stdio. Editors get an
// "Add translation" code action on every non-empty selection; running it
// calls the textkey.addTranslation command, which updates the translation
// file and answers with a workspace/applyEdit for the source document.
package lsp

import (
	"context"
	"os"
	"sync"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/tliron/glsp/server"

	"github.com/minios-linux/textkey/config"
	"github.com/minios-linux/textkey/editor"
)

const serverName = "textkey"

// Command names accepted by workspace/executeCommand.
const (
	CommandAddTranslation = "textkey.addTranslation"
	CommandCheck          = "textkey.check"
)

var log = commonlog.GetLogger("textkey.lsp")

// Options configures a Server.
type Options struct {
	Version string
	// Root is used when the client sends no workspace root.
	Root string
	// NewTranslator builds the remote translator for each command run.
	NewTranslator editor.TranslatorFactory
	// NoMemory disables the translation memory.
	NoMemory bool
}

// Server is the textkey language server.
type Server struct {
	opts    Options
	handler protocol.Handler
	docs    *store

	// ctx outlives single requests; shutdown cancels it.
	ctx    context.Context
	cancel context.CancelFunc

	// jobs tracks background command runs. work serializes them so two
	// runs never rewrite the translation file at once.
	jobs sync.WaitGroup
	work sync.Mutex

	mu   sync.Mutex
	root string
}

// New returns a server with its handlers wired.
func New(opts Options) *Server {
	s := &Server{opts: opts, docs: newStore(), root: opts.Root}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.handler = protocol.Handler{
		Initialize:              s.initialize,
		Initialized:             s.initialized,
		Shutdown:                s.shutdown,
		SetTrace:                s.setTrace,
		TextDocumentDidOpen:     s.didOpen,
		TextDocumentDidChange:   s.didChange,
		TextDocumentDidClose:    s.didClose,
		TextDocumentCodeAction:  s.codeAction,
		WorkspaceExecuteCommand: s.executeCommand,
	}
	return s
}

// RunStdio serves on stdin/stdout until the client disconnects. Logs go
// to stderr because stdout carries the protocol.
func (s *Server) RunStdio(verbosity int) error {
	commonlog.Configure(verbosity, nil)
	log.Infof("starting %s %s", serverName, s.opts.Version)
	return server.NewServer(&s.handler, serverName, verbosity > 1).RunStdio()
}

// Root returns the workspace root in use.
func (s *Server) Root() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.root != "" {
		return s.root
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}

func (s *Server) service(ctx *glsp.Context) *editor.Service {
	return &editor.Service{
		Root:          s.Root(),
		NewTranslator: s.opts.NewTranslator,
		Notifier:      notifier{ctx},
		NoMemory:      s.opts.NoMemory,
	}
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

func (s *Server) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	root := ""
	switch {
	case params.RootURI != nil && *params.RootURI != "":
		root = uriToPath(*params.RootURI)
	case params.RootPath != nil && *params.RootPath != "":
		root = *params.RootPath
	case len(params.WorkspaceFolders) > 0:
		root = uriToPath(params.WorkspaceFolders[0].URI)
	}
	if root != "" {
		s.mu.Lock()
		s.root = root
		s.mu.Unlock()
	}
	log.Infof("workspace root: %s", s.Root())

	capabilities := s.handler.CreateServerCapabilities()
	syncKind := protocol.TextDocumentSyncKindIncremental
	openClose := true
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: &openClose,
		Change:    &syncKind,
	}
	capabilities.CodeActionProvider = &protocol.CodeActionOptions{
		CodeActionKinds: []protocol.CodeActionKind{protocol.CodeActionKindRefactorRewrite},
	}
	capabilities.ExecuteCommandProvider = &protocol.ExecuteCommandOptions{
		Commands: []string{CommandAddTranslation, CommandCheck},
	}

	version := s.opts.Version
	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    serverName,
			Version: &version,
		},
	}, nil
}

// initialized checks the project the way activation does: a broken config
// or a missing translation file is reported right away.
func (s *Server) initialized(ctx *glsp.Context, _ *protocol.InitializedParams) error {
	cfg, err := config.Load(s.Root())
	if err != nil {
		log.Errorf("%s", err)
		showMessage(ctx, protocol.MessageTypeError, err.Error())
		return nil
	}
	if err := cfg.ValidateTranslationFile(); err != nil {
		log.Errorf("%s", err)
		showMessage(ctx, protocol.MessageTypeError, err.Error())
	}
	return nil
}

// shutdown cancels running commands. It does not wait for them: a run
// blocked in workspace/applyEdit needs this connection's reader, which is
// busy with this very request.
func (s *Server) shutdown(*glsp.Context) error {
	s.cancel()
	protocol.SetTraceValue(protocol.TraceValueOff)
	return nil
}

func (s *Server) setTrace(_ *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)
	return nil
}

// ---------------------------------------------------------------------------
// Document sync
// ---------------------------------------------------------------------------

func (s *Server) didOpen(_ *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	s.docs.open(params.TextDocument.URI, params.TextDocument.LanguageID, params.TextDocument.Text)
	return nil
}

func (s *Server) didChange(_ *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	if !s.docs.change(params.TextDocument.URI, params.ContentChanges) {
		log.Warningf("change for unopened document %s", params.TextDocument.URI)
	}
	return nil
}

func (s *Server) didClose(_ *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	s.docs.close(params.TextDocument.URI)
	return nil
}

// ---------------------------------------------------------------------------
// Messages
// ---------------------------------------------------------------------------

func showMessage(ctx *glsp.Context, kind protocol.MessageType, msg string) {
	if ctx == nil || ctx.Notify == nil {
		return
	}
	ctx.Notify(protocol.ServerWindowShowMessage, protocol.ShowMessageParams{Type: kind, Message: msg})
}

// notifier forwards editor messages as window/showMessage.
type notifier struct{ ctx *glsp.Context }

func (n notifier) Info(msg string)    { showMessage(n.ctx, protocol.MessageTypeInfo, msg) }
func (n notifier) Warning(msg string) { showMessage(n.ctx, protocol.MessageTypeWarning, msg) }
func (n notifier) Error(msg string)   { showMessage(n.ctx, protocol.MessageTypeError, msg) }
