package lsp_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"attributor/internal/lsp"
)

// writeFixture writes src to a temp .air file and returns its file:// URI.
func writeFixture(t *testing.T, src string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "scenario.air")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	absPath, err := filepath.Abs(path)
	require.NoError(t, err)
	return "file://" + filepath.ToSlash(absPath)
}

// TestTextDocumentHoverReportsNonNull opens spec.md §8 scenario 2's fixture
// (a nonnull/dereferenceable parameter) and hovers over the "%p" in the
// signature, expecting the settled NonNull record's text back.
func TestTextDocumentHoverReportsNonNull(t *testing.T) {
	src := `define i8* @h(i8* nonnull dereferenceable(16) %p) {
entry:
  %q = getelementptr i8, i8* %p, i64 4
  ret i8* %q
}
`
	uri := writeFixture(t, src)
	h := lsp.NewHandler()
	ctx := &glsp.Context{}

	err := h.TextDocumentDidOpen(ctx, &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: protocol.DocumentUri(uri), Text: src},
	})
	require.NoError(t, err)

	hover, err := h.TextDocumentHover(ctx, &protocol.HoverParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: protocol.DocumentUri(uri)},
			Position:     protocol.Position{Line: 0, Character: 35},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, hover)

	content, ok := hover.Contents.(protocol.MarkupContent)
	require.True(t, ok)
	require.Contains(t, content.Value, "non-null")
}

// TestTextDocumentHoverReturnsNilOffRecord hovers far past the end of the
// file, outside every indexed span, expecting no hover response rather
// than an error.
func TestTextDocumentHoverReturnsNilOffRecord(t *testing.T) {
	src := `define void @k() {
entry:
  ret void
}
`
	uri := writeFixture(t, src)
	h := lsp.NewHandler()
	ctx := &glsp.Context{}

	err := h.TextDocumentDidOpen(ctx, &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: protocol.DocumentUri(uri), Text: src},
	})
	require.NoError(t, err)

	hover, err := h.TextDocumentHover(ctx, &protocol.HoverParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: protocol.DocumentUri(uri)},
			Position:     protocol.Position{Line: 100, Character: 0},
		},
	})
	require.NoError(t, err)
	require.Nil(t, hover)
}

// TestTextDocumentDidCloseSucceedsAfterOpen checks that closing a
// previously opened document returns no error.
func TestTextDocumentDidCloseSucceedsAfterOpen(t *testing.T) {
	src := `define void @k() {
entry:
  ret void
}
`
	uri := writeFixture(t, src)
	h := lsp.NewHandler()
	ctx := &glsp.Context{}

	require.NoError(t, h.TextDocumentDidOpen(ctx, &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: protocol.DocumentUri(uri), Text: src},
	}))
	require.NoError(t, h.TextDocumentDidClose(ctx, &protocol.DidCloseTextDocumentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: protocol.DocumentUri(uri)},
	}))
}
