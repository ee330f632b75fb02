// Package irtext is the textual front end for the small assembler-style IR
// language spec.md §8 uses for its scenarios, concretized by SPEC_FULL.md
// §9.2. It drives github.com/alecthomas/participle/v2 off the struct-tagged
// grammar in grammar.go, split the same way into a lexer.go and a
// parser.go, and builds an *ir.Module directly from the parse tree rather
// than through a separate AST stage.
package irtext
