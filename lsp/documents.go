package lsp

import (
	"net/url"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/minios-linux/textkey/document"
)

// store holds the open documents by URI.
type store struct {
	mu   sync.RWMutex
	docs map[string]*document.Document
}

func newStore() *store {
	return &store{docs: make(map[string]*document.Document)}
}

func (s *store) open(uri, languageID, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[uri] = document.New(uri, languageID, text)
}

// change applies content changes in order. It reports false for unknown
// documents.
func (s *store) change(uri string, changes []any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[uri]
	if !ok {
		return false
	}
	for _, c := range changes {
		switch c := c.(type) {
		case protocol.TextDocumentContentChangeEvent:
			if c.Range == nil {
				doc.Replace(c.Text)
			} else {
				doc.Change(fromRange(*c.Range), c.Text)
			}
		case protocol.TextDocumentContentChangeEventWhole:
			doc.Replace(c.Text)
		}
	}
	return true
}

func (s *store) close(uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, uri)
}

// snapshot returns a copy safe to use while further changes arrive.
func (s *store) snapshot(uri string) (*document.Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[uri]
	if !ok {
		return nil, false
	}
	return document.New(doc.URI, doc.LanguageID, doc.Text()), true
}

// ---------------------------------------------------------------------------
// Conversions
// ---------------------------------------------------------------------------

func fromPosition(p protocol.Position) document.Position {
	return document.Position{Line: int(p.Line), Character: int(p.Character)}
}

func fromRange(r protocol.Range) document.Range {
	return document.Range{Start: fromPosition(r.Start), End: fromPosition(r.End)}
}

func toPosition(p document.Position) protocol.Position {
	return protocol.Position{Line: protocol.UInteger(p.Line), Character: protocol.UInteger(p.Character)}
}

func toRange(r document.Range) protocol.Range {
	return protocol.Range{Start: toPosition(r.Start), End: toPosition(r.End)}
}

func toTextEdits(edits []document.Edit) []protocol.TextEdit {
	out := make([]protocol.TextEdit, len(edits))
	for i, e := range edits {
		out[i] = protocol.TextEdit{Range: toRange(e.Range), NewText: e.NewText}
	}
	return out
}

// uriToPath converts a file:// URI to a local path. Other strings are
// returned unchanged.
func uriToPath(uri string) string {
	if !strings.HasPrefix(uri, "file://") {
		return uri
	}
	u, err := url.Parse(uri)
	if err != nil {
		return strings.TrimPrefix(uri, "file://")
	}
	path := u.Path
	// file:///C:/x -> C:/x
	if runtime.GOOS == "windows" && len(path) > 2 && path[0] == '/' && path[2] == ':' {
		path = path[1:]
	}
	return filepath.FromSlash(path)
}
