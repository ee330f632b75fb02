package irtext

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// Lexer tokenizes the assembler-style IR text SPEC_FULL.md §9.2 describes,
// using lexer.MustStateful's single-state idiom: a fixed rule table,
// longest-prefix-first, with keywords left as plain Ident tokens rather
// than their own token kind (matched by literal value in the grammar
// tags instead, e.g. `"define" @Ident`).
var Lexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		{"Comment", `;[^\n]*`, nil},
		{"Ident", `[a-zA-Z_][a-zA-Z0-9_.]*`, nil},
		{"Integer", `-?[0-9]+`, nil},
		{"Punctuation", `[@%(){}\[\],:*=]`, nil},
		{"Whitespace", `[ \t\r\n]+`, nil},
	},
})
