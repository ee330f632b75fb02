package lsp

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"attributor/internal/config"
	"attributor/internal/driver"
	"attributor/internal/ir"
	"attributor/internal/irtext"
)

// Handler implements the LSP server handlers for attributor IR text (.air)
// files: per-file mutex-guarded state, Initialize/Shutdown/DidOpen/
// DidChange/DidClose wiring, and textDocument/hover reporting the inferred
// attributes at the hovered position (spec.md §6.5, concretized by
// SPEC_FULL.md §10).
type Handler struct {
	mu      sync.RWMutex
	content map[string]string
	modules map[string]*ir.Module
	indexes map[string]*irtext.LineIndex
	results map[string]*driver.Result
}

func NewHandler() *Handler {
	return &Handler{
		content: make(map[string]string),
		modules: make(map[string]*ir.Module),
		indexes: make(map[string]*irtext.LineIndex),
		results: make(map[string]*driver.Result),
	}
}

// Initialize responds to the LSP client's initialize request and
// advertises the server's capabilities.
func (h *Handler) Initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	return &protocol.InitializeResult{
		Capabilities: protocol.ServerCapabilities{
			TextDocumentSync: &protocol.TextDocumentSyncOptions{
				OpenClose: ptrBool(true),
				Change:    ptrSyncKind(protocol.TextDocumentSyncKindFull),
			},
			HoverProvider: true,
		},
	}, nil
}

func (h *Handler) Initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (h *Handler) Shutdown(ctx *glsp.Context) error {
	return nil
}

// TextDocumentDidOpen parses and runs the engine on the opened file,
// publishing parse diagnostics if it failed to parse.
func (h *Handler) TextDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	diagnostics, err := h.update(params.TextDocument.URI)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", params.TextDocument.URI, err)
	}
	if diagnostics != nil {
		sendDiagnosticNotification(ctx, params.TextDocument.URI, diagnostics)
	}
	return nil
}

// TextDocumentDidChange re-parses and re-runs the engine on every change:
// a full-document-sync-only strategy, no incremental reparsing.
func (h *Handler) TextDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	diagnostics, err := h.update(params.TextDocument.URI)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", params.TextDocument.URI, err)
	}
	if diagnostics != nil {
		sendDiagnosticNotification(ctx, params.TextDocument.URI, diagnostics)
	}
	return nil
}

func (h *Handler) TextDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	path, err := uriToPath(params.TextDocument.URI)
	if err != nil {
		return fmt.Errorf("failed to convert URI %s: %w", params.TextDocument.URI, err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.content, path)
	delete(h.modules, path)
	delete(h.indexes, path)
	delete(h.results, path)
	return nil
}

// TextDocumentHover reports every settled attribute record at the hovered
// position. irtext's LineIndex already maps a source span to the exact
// position.Position the engine seeded a record set for, so no further
// Subsuming walk is needed to find the record — only to explain it, which
// is left to the record's own String().
func (h *Handler) TextDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	path, err := uriToPath(params.TextDocument.URI)
	if err != nil {
		return nil, fmt.Errorf("failed to convert URI %s: %w", params.TextDocument.URI, err)
	}

	idx, res, ok := h.lookupOrUpdate(path, params.TextDocument.URI)
	if !ok {
		return nil, nil
	}

	// LSP positions are 0-based; irtext's lexer.Position fields are 1-based.
	pos, found := idx.Lookup(int(params.Position.Line)+1, int(params.Position.Character)+1)
	if !found {
		return nil, nil
	}

	var lines []string
	for _, r := range res.Engine.Records() {
		if r.Position() == pos && r.IsValidState() {
			lines = append(lines, "- "+r.String())
		}
	}
	if len(lines) == 0 {
		return nil, nil
	}

	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: strings.Join(append([]string{fmt.Sprintf("**inferred attributes at %s**", pos.String())}, lines...), "\n"),
		},
	}, nil
}

func (h *Handler) lookupOrUpdate(path string, rawURI protocol.DocumentUri) (*irtext.LineIndex, *driver.Result, bool) {
	h.mu.RLock()
	idx, res := h.indexes[path], h.results[path]
	h.mu.RUnlock()
	if idx != nil && res != nil {
		return idx, res, true
	}
	if _, err := h.update(rawURI); err != nil {
		return nil, nil, false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	idx, res = h.indexes[path], h.results[path]
	return idx, res, idx != nil && res != nil
}

// update re-reads, re-parses, and re-runs the engine on rawURI's file,
// caching the result. A parse failure clears any stale cached result and
// returns diagnostics instead of an error — a bad edit shouldn't crash the
// session, just stop offering hover until the next edit fixes it.
func (h *Handler) update(rawURI protocol.DocumentUri) ([]protocol.Diagnostic, error) {
	path, err := uriToPath(rawURI)
	if err != nil {
		return nil, fmt.Errorf("failed to convert URI %s: %w", rawURI, err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}

	m, idx, err := irtext.ParseWithIndex(path, string(content))
	if err != nil {
		h.mu.Lock()
		delete(h.modules, path)
		delete(h.indexes, path)
		delete(h.results, path)
		h.mu.Unlock()
		return ConvertParseError(err), nil
	}

	res := driver.RunOnFunctions(m, config.Default())

	h.mu.Lock()
	h.content[path] = string(content)
	h.modules[path] = m
	h.indexes[path] = idx
	h.results[path] = res
	h.mu.Unlock()

	return nil, nil
}

func uriToPath(rawURI protocol.DocumentUri) (string, error) {
	u, err := url.Parse(string(rawURI))
	if err != nil {
		return "", fmt.Errorf("invalid URI %s: %w", rawURI, err)
	}

	path := u.Path
	if runtime.GOOS == "windows" && strings.HasPrefix(path, "/") && len(path) > 3 && path[2] == ':' {
		path = path[1:]
	}
	return filepath.FromSlash(path), nil
}

func sendDiagnosticNotification(ctx *glsp.Context, uri protocol.DocumentUri, diagnostics []protocol.Diagnostic) {
	ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, &protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

func ptrBool(b bool) *bool { return &b }

func ptrSyncKind(k protocol.TextDocumentSyncKind) *protocol.TextDocumentSyncKind { return &k }
