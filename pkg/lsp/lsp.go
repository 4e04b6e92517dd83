// Package lsp serves the pipeline to editors over the Language Server Protocol: diagnostics on
// every change, token hover and keyword/identifier completion.
package lsp

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/xplshn/cinterp/pkg/config"
	"github.com/xplshn/cinterp/pkg/session"
	"github.com/xplshn/cinterp/pkg/token"
	"github.com/xplshn/cinterp/pkg/util"
)

const lspName = "cinterp-lsp"

var log = commonlog.GetLogger("cinterp.lsp")

type Server struct {
	sess *session.Session

	mu   sync.Mutex
	docs map[string]string // URI → full document content

	handler protocol.Handler
	server  *glspserver.Server
	version string

	// phase is the last phase diagnostics run; the program is never executed by the editor.
	phase session.Phase
}

func New(cfg *config.Config, version string) *Server {
	s := &Server{
		sess:    session.New(cfg),
		docs:    make(map[string]string),
		version: version,
		phase:   session.PhaseSemantic,
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion: s.textDocumentCompletion,
		TextDocumentHover:      s.textDocumentHover,
	}
	s.server = glspserver.NewServer(&s.handler, lspName, false)
	return s
}

// Run serves stdio until the client disconnects.
func (s *Server) Run() error {
	return s.server.RunStdio()
}

func (s *Server) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	log.Info("initializing")

	capabilities := s.handler.CreateServerCapabilities()
	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}
	capabilities.CompletionProvider = &protocol.CompletionOptions{}
	capabilities.HoverProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *Server) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *Server) shutdown(ctx *glsp.Context) error {
	log.Infof("shutting down after %d cached analyses", s.sess.Hits())
	return nil
}

func (s *Server) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

func (s *Server) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	s.store(uri, params.TextDocument.Text)
	s.publish(ctx, uri, params.TextDocument.Text)
	return nil
}

func (s *Server) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	if len(params.ContentChanges) == 0 {
		return nil
	}
	// Full sync: the last change carries the whole text.
	last := params.ContentChanges[len(params.ContentChanges)-1]
	if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
		uri := params.TextDocument.URI
		s.store(uri, whole.Text)
		s.publish(ctx, uri, whole.Text)
	}
	return nil
}

func (s *Server) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI
	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

func (s *Server) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	text, ok := s.text(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	prefix := extractPrefix(text, params.Position)
	r := s.sess.Run(text, session.PhaseLex)
	return completions(prefix, r.Tokens), nil
}

func (s *Server) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	text, ok := s.text(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	r := s.sess.Run(text, session.PhaseLex)
	if !r.OK() {
		return nil, nil
	}
	return hover(r.Tokens, params.Position), nil
}

func (s *Server) store(uri protocol.DocumentUri, text string) {
	s.mu.Lock()
	s.docs[string(uri)] = text
	s.mu.Unlock()
}

func (s *Server) text(uri protocol.DocumentUri) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text, ok := s.docs[string(uri)]
	return text, ok
}

func (s *Server) publish(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	r := s.sess.Run(text, s.phase)
	log.Debugf("%s: run %s, err=%v, %d warnings", uri, r.RunID, r.Err, len(r.Warnings))
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics(r),
	})
}

// diagnostics converts the first phase error and the analyzer warnings of r.
func diagnostics(r *session.Result) []protocol.Diagnostic {
	out := []protocol.Diagnostic{}
	source := lspName
	if r.Err != nil {
		severity := protocol.DiagnosticSeverityError
		var pos util.Pos
		var p util.Positioned
		if errors.As(r.Err, &p) {
			pos = p.Position()
		}
		out = append(out, protocol.Diagnostic{
			Range:    rangeOf(pos),
			Severity: &severity,
			Source:   &source,
			Message:  r.Err.Error(),
		})
	}
	for _, w := range r.Warnings {
		severity := protocol.DiagnosticSeverityWarning
		out = append(out, protocol.Diagnostic{
			Range:    rangeOf(w.Pos),
			Severity: &severity,
			Source:   &source,
			Message:  w.String(),
		})
	}
	return out
}

// rangeOf converts a 1-based token position to an LSP range. Errors without a position cover
// the start of the document.
func rangeOf(pos util.Pos) protocol.Range {
	if !pos.IsValid() {
		return protocol.Range{}
	}
	line := protocol.UInteger(pos.Line - 1)
	start := protocol.UInteger(max(pos.Column-1, 0))
	return protocol.Range{
		Start: protocol.Position{Line: line, Character: start},
		End:   protocol.Position{Line: line, Character: start + protocol.UInteger(max(pos.Len, 1))},
	}
}

// tokenAt finds the token covering an LSP position.
func tokenAt(tokens []token.Token, pos protocol.Position) (token.Token, bool) {
	line, col := int(pos.Line)+1, int(pos.Character)+1
	for _, t := range tokens {
		if t.Line == line && col >= t.Column && col < t.Column+max(t.Len, 1) {
			return t, true
		}
	}
	return token.Token{}, false
}

func hover(tokens []token.Token, pos protocol.Position) *protocol.Hover {
	t, ok := tokenAt(tokens, pos)
	if !ok {
		return nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "**%s** `%s`\n\n", t.KindName(), t.Text)
	fmt.Fprintf(&b, "id %d", t.ID)
	if len(t.Parts) > 0 {
		fmt.Fprintf(&b, ", %d parts", len(t.Parts))
	}
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: b.String(),
		},
	}
}

// completions offers type keywords, keywords and the identifiers of the document that start
// with prefix, sorted by label.
func completions(prefix string, tokens []token.Token) []protocol.CompletionItem {
	seen := make(map[string]bool)
	var items []protocol.CompletionItem
	add := func(label, detail string, kind protocol.CompletionItemKind) {
		if seen[label] || !strings.HasPrefix(label, prefix) || label == prefix {
			return
		}
		seen[label] = true
		insert := label
		items = append(items, protocol.CompletionItem{
			Label:      label,
			Kind:       &kind,
			Detail:     &detail,
			InsertText: &insert,
		})
	}
	for kw := range token.TypeKeywords {
		add(kw, "type", protocol.CompletionItemKindKeyword)
	}
	for kw := range token.Keywords {
		add(kw, "keyword", protocol.CompletionItemKindKeyword)
	}
	for _, t := range tokens {
		if t.Kind == token.Identifier {
			add(t.Text, "identifier", protocol.CompletionItemKindVariable)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Label < items[j].Label })
	return items
}

// extractPrefix returns the identifier fragment before the cursor.
func extractPrefix(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := []rune(lines[pos.Line])
	col := min(int(pos.Character), len(line))
	start := col
	for start > 0 && isIdentRune(line[start-1]) {
		start--
	}
	return string(line[start:col])
}

func isIdentRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

func boolPtr(b bool) *bool {
	return &b
}
