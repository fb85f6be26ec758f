// Package lspserver implements the LSP surface over stdio (spec.md §6
// "LSP surface"): lifecycle, incremental/full document sync, completion,
// and diagnostics publication, riding on sourcegraph/jsonrpc2 the way
// sourcegraph's own go-langserver wires jsonrpc2.Conn to a single
// method-dispatching Handler.
package lspserver

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	charmlog "charm.land/log/v2"
	"github.com/sourcegraph/jsonrpc2"

	"github.com/djls-go/djls/internal/config"
	"github.com/djls-go/djls/internal/diag"
	"github.com/djls-go/djls/internal/incremental"
	"github.com/djls-go/djls/internal/source"
)

// Server dispatches JSON-RPC requests/notifications from an LSP client
// onto the incremental engine. One Server instance serves exactly one
// client connection, matching jsonrpc2's one-Handler-per-Conn model.
type Server struct {
	store  *source.Store
	engine *incremental.Engine
	cfg    *config.Config
	logger *charmlog.Logger

	mu       sync.RWMutex
	encoding Encoding
	shutdown atomic.Bool
	exitCh   chan struct{}
}

// NewServer builds a Server around an already-constructed store and
// engine, so the CLI's `check` command and the LSP server can share the
// exact same analysis pipeline wiring (spec.md's "single writer"
// incremental engine applies identically to both surfaces).
func NewServer(store *source.Store, engine *incremental.Engine, cfg *config.Config, logger *charmlog.Logger) *Server {
	return &Server{
		store:    store,
		engine:   engine,
		cfg:      cfg,
		logger:   logger,
		encoding: EncodingUTF16,
		exitCh:   make(chan struct{}),
	}
}

// Done is closed once the client sends `exit`, signaling main() to stop
// the process.
func (s *Server) Done() <-chan struct{} { return s.exitCh }

// Handle implements jsonrpc2.Handler, dispatching on req.Method.
func (s *Server) Handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	switch req.Method {
	case "initialize":
		s.handleInitialize(ctx, conn, req)
	case "initialized":
		// No server-side action required once capabilities are settled.
	case "shutdown":
		s.shutdown.Store(true)
		s.reply(ctx, conn, req, nil)
	case "exit":
		close(s.exitCh)
	case "textDocument/didOpen":
		s.handleDidOpen(ctx, conn, req)
	case "textDocument/didChange":
		s.handleDidChange(ctx, conn, req)
	case "textDocument/didSave":
		s.handleDidSave(ctx, conn, req)
	case "textDocument/didClose":
		s.handleDidClose(ctx, conn, req)
	case "textDocument/completion":
		s.handleCompletion(ctx, conn, req)
	default:
		if !req.Notif {
			_ = conn.ReplyWithError(ctx, req.ID, &jsonrpc2.Error{
				Code:    jsonrpc2.CodeMethodNotFound,
				Message: fmt.Sprintf("method not found: %s", req.Method),
			})
		}
	}
}

func (s *Server) reply(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request, result interface{}) {
	if req.Notif {
		return
	}
	if err := conn.Reply(ctx, req.ID, result); err != nil {
		s.logger.Error("replying to request", "method", req.Method, "err", err)
	}
}

func (s *Server) replyError(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request, err error) {
	if req.Notif {
		s.logger.Error("handling notification", "method", req.Method, "err", err)
		return
	}
	_ = conn.ReplyWithError(ctx, req.ID, &jsonrpc2.Error{
		Code:    jsonrpc2.CodeInvalidParams,
		Message: err.Error(),
	})
}

func unmarshalParams(req *jsonrpc2.Request, v interface{}) error {
	if req.Params == nil {
		return fmt.Errorf("lspserver: %s: missing params", req.Method)
	}
	return json.Unmarshal(*req.Params, v)
}

func (s *Server) handleInitialize(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	var params InitializeParams
	if err := unmarshalParams(req, &params); err != nil {
		s.replyError(ctx, conn, req, err)
		return
	}

	enc := negotiateEncoding(params.Capabilities)
	s.mu.Lock()
	s.encoding = enc
	s.mu.Unlock()

	result := InitializeResult{
		Capabilities: ServerCapabilities{
			PositionEncoding: string(enc),
			TextDocumentSync: TextDocumentSyncOptions{
				OpenClose: true,
				Change:    2, // Incremental
				Save:      &SaveOptions{IncludeText: false},
			},
			CompletionProvider: &CompletionOptions{TriggerCharacters: []string{"%", " "}},
		},
	}
	s.reply(ctx, conn, req, result)
}

func (s *Server) currentEncoding() Encoding {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.encoding
}

func (s *Server) handleDidOpen(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	var params DidOpenTextDocumentParams
	if err := unmarshalParams(req, &params); err != nil {
		s.replyError(ctx, conn, req, err)
		return
	}
	path, err := pathFromURI(params.TextDocument.URI)
	if err != nil {
		s.replyError(ctx, conn, req, err)
		return
	}
	s.store.Open(path, params.TextDocument.Text)
	s.publishDiagnostics(ctx, conn, path, params.TextDocument.URI)
}

func (s *Server) handleDidChange(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	var params DidChangeTextDocumentParams
	if err := unmarshalParams(req, &params); err != nil {
		s.replyError(ctx, conn, req, err)
		return
	}
	path, err := pathFromURI(params.TextDocument.URI)
	if err != nil {
		s.replyError(ctx, conn, req, err)
		return
	}
	file, ok := s.store.Get(path)
	if !ok {
		s.replyError(ctx, conn, req, fmt.Errorf("lspserver: didChange for unopened document %s", path))
		return
	}

	enc := s.currentEncoding()
	for _, change := range params.ContentChanges {
		if change.Range == nil {
			file.SetText(change.Text)
			continue
		}
		text := file.Text()
		idx := file.Index()
		start := offsetFromPosition(text, idx, change.Range.Start, enc)
		end := offsetFromPosition(text, idx, change.Range.End, enc)
		file.ApplyRange(start, end, change.Text)
	}
	s.store.Touch()
	s.publishDiagnostics(ctx, conn, path, params.TextDocument.URI)
}

func (s *Server) handleDidSave(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	var params DidSaveTextDocumentParams
	if err := unmarshalParams(req, &params); err != nil {
		s.replyError(ctx, conn, req, err)
		return
	}
	path, err := pathFromURI(params.TextDocument.URI)
	if err != nil {
		s.replyError(ctx, conn, req, err)
		return
	}
	if params.Text != nil {
		if file, ok := s.store.Get(path); ok {
			file.SetText(*params.Text)
			s.store.Touch()
		}
	}
	s.publishDiagnostics(ctx, conn, path, params.TextDocument.URI)
}

func (s *Server) handleDidClose(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	var params DidCloseTextDocumentParams
	if err := unmarshalParams(req, &params); err != nil {
		s.replyError(ctx, conn, req, err)
		return
	}
	path, err := pathFromURI(params.TextDocument.URI)
	if err != nil {
		s.replyError(ctx, conn, req, err)
		return
	}
	s.store.Close(path)
	_ = conn.Notify(ctx, "textDocument/publishDiagnostics", PublishDiagnosticsParams{
		URI:         params.TextDocument.URI,
		Diagnostics: []Diagnostic{},
	})
}

func (s *Server) handleCompletion(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	var params CompletionParams
	if err := unmarshalParams(req, &params); err != nil {
		s.replyError(ctx, conn, req, err)
		return
	}
	path, err := pathFromURI(params.TextDocument.URI)
	if err != nil {
		s.replyError(ctx, conn, req, err)
		return
	}
	file, ok := s.store.Get(path)
	if !ok {
		s.reply(ctx, conn, req, []CompletionItem{})
		return
	}
	nodes, err := s.engine.Nodes(path)
	if err != nil {
		s.replyError(ctx, conn, req, err)
		return
	}

	text := file.Text()
	offset := offsetFromPosition(text, file.Index(), params.Position, s.currentEncoding())
	prefix, inTag := tagPrefixAt(nodes, text, offset)
	if !inTag {
		s.reply(ctx, conn, req, []CompletionItem{})
		return
	}

	items := CompletionCandidates(s.engine.Registry(), prefix)
	s.reply(ctx, conn, req, items)
}

// publishDiagnostics runs (or retrieves the memoized) diagnostics for path
// and pushes them to the client as a notification, translating spans to
// the negotiated position encoding and config-resolved severities.
func (s *Server) publishDiagnostics(ctx context.Context, conn *jsonrpc2.Conn, path, uri string) {
	diags, err := s.engine.Diagnostics(path)
	if err != nil {
		s.logger.Error("computing diagnostics", "path", path, "err", err)
		return
	}
	file, ok := s.store.Get(path)
	if !ok {
		return
	}
	text := file.Text()
	idx := file.Index()
	enc := s.currentEncoding()

	out := make([]Diagnostic, 0, len(diags))
	for _, d := range diags {
		sev := d.Severity
		if s.cfg != nil {
			sev = s.cfg.ResolveSeverity(d.Code, d.Severity)
		}
		if sev == diag.Off {
			continue
		}
		out = append(out, Diagnostic{
			Range: Range{
				Start: positionFromOffset(text, idx, d.Primary.Start, enc),
				End:   positionFromOffset(text, idx, d.Primary.End(), enc),
			},
			Severity: lspSeverity(sev),
			Code:     d.Code,
			Source:   "djls",
			Message:  d.Message,
		})
	}

	_ = conn.Notify(ctx, "textDocument/publishDiagnostics", PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: out,
	})
}

func lspSeverity(sev diag.Severity) int {
	switch sev {
	case diag.Error:
		return 1
	case diag.Warning:
		return 2
	case diag.Info:
		return 3
	case diag.Hint:
		return 4
	default:
		return 1
	}
}
