package irtext

import (
	"fmt"
	"os"

	"github.com/alecthomas/participle/v2"

	"attributor/internal/diag"
	"attributor/internal/ir"
)

var parser = buildParser()

func buildParser() *participle.Parser[Program] {
	p, err := participle.Build[Program](
		participle.Lexer(Lexer),
		participle.Elide("Whitespace", "Comment"),
		participle.UseLookahead(3),
	)
	if err != nil {
		panic(fmt.Errorf("irtext: failed to build parser: %w", err))
	}
	return p
}

// ParseFile reads path and parses it as attributor IR text (spec.md §8's
// pseudo-assembly, concretized by SPEC_FULL.md §9.2), returning a built
// *ir.Module in one step, since this grammar's capture targets feed the
// IR builder directly rather than a separate AST.
func ParseFile(path string) (*ir.Module, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("irtext: failed to read %s: %w", path, err)
	}
	return Parse(path, string(source))
}

// Parse parses src (named filename for diagnostics) into an *ir.Module.
func Parse(filename, src string) (*ir.Module, error) {
	prog, err := parser.ParseString(filename, src)
	if err != nil {
		return nil, reportParseError(src, err)
	}
	return Build(prog)
}

// ParseWithIndex is Parse plus a *LineIndex, for callers (cmd/attributor-
// lsp's hover handler) that need to map a cursor line/column back to the
// position.Position the engine seeded for it.
func ParseWithIndex(filename, src string) (*ir.Module, *LineIndex, error) {
	prog, err := parser.ParseString(filename, src)
	if err != nil {
		return nil, nil, reportParseError(src, err)
	}
	return BuildIndexed(prog)
}

// reportParseError turns a participle.Error into a caret-style
// diag.Diagnostic and returns it as the error Parse propagates. It never
// prints: this runs on every ParseWithIndex call the LSP handler makes on
// each DidOpen/DidChange, so a library-level stderr write here would spam
// the server's log for every keystroke. Callers that want the rendered
// text (cmd/attributor-cli's entry point) format it themselves via
// diag.Reporter.
func reportParseError(src string, err error) error {
	pe, ok := err.(participle.Error)
	if !ok {
		return err
	}
	pos := pe.Position()
	return diag.Diagnostic{
		Level:     diag.Fatal,
		Code:      diag.UnsupportedConstruct,
		Message:   pe.Message(),
		Locations: []string{fmt.Sprintf("%s:%d:%d", pos.Filename, pos.Line, pos.Column)},
	}
}
