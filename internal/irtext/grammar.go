package irtext

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// This file holds the struct-tagged grammar participle drives, in the
// "grammar struct doubles as the parse tree" style: for the small
// assembler-style IR text language spec.md §8 uses for its scenarios.
// Struct field tags are concatenated in declaration order into one
// grammar expression per struct — a bare leading "|" on a field starts a
// new alternative, a field with no leading "|" continues the previous one
// sequentially.

// Program is the parse root: a sequence of function declarations/
// definitions, in any order (forward references by name are fine — Build
// resolves callees by name against the whole module after every function
// signature has been registered).
type Program struct {
	Functions []*FunctionDecl `@@*`
}

// Type is a base scalar name (i1/i8/i32/i64/void) with zero or more
// trailing "*" for pointer nesting, e.g. "i8**".
type Type struct {
	Name  string   `@Ident`
	Stars []string `{ @"*" }`
}

// ParamAttr is an IR-level input fact attached directly to a parameter in
// the signature (spec.md §8 scenario 2's `i8* nonnull dereferenceable(16)
// %p`) — these seed the parameter's ir.AttrSet the way a source-level LLVM
// attribute would, rather than being inferred.
type ParamAttr struct {
	Simple *string    `  @( "nonnull" | "noalias" | "returned" )`
	Sized  *SizedAttr `| @@`
}

type SizedAttr struct {
	Name string `@( "dereferenceable" | "align" )`
	N    int64  `"(" @Integer ")"`
}

// Param is one formal parameter: a type, its input attributes, then its
// "%name". Pos/EndPos are auto-captured by participle — no grammar tag
// needed for an untagged lexer.Position-typed field — and let
// cmd/attributor-lsp's hover handler map a cursor line back to the
// argument position the engine seeded for it.
type Param struct {
	Pos   lexer.Position
	EndPos lexer.Position
	Ty    *Type        `@@`
	Attrs []*ParamAttr `{ @@ }`
	Name  string       `"%" @Ident`
}

// FunctionDecl is either a "declare" (no body, an opaque/external callee)
// or a "define" (a body of labeled blocks).
type FunctionDecl struct {
	Pos     lexer.Position
	EndPos  lexer.Position
	Declare bool     `  @"declare"`
	Define  bool     `| @"define"`
	RetTy   *Type    `@@`
	Name    string   `"@" @Ident`
	Params  []*Param `"(" [ @@ { "," @@ } ] ")"`
	Blocks  []*Block `[ "{" { @@ } "}" ]`
}

// Block is a label followed by its straight-line instructions and
// terminator.
type Block struct {
	Label        string         `@Ident ":"`
	Instructions []*Instruction `{ @@ }`
}

// Operand is a use: either a "%name" reference to a prior result/parameter,
// or a bare integer literal (synthesized into its own constant instruction
// by Build), covering both forms spec.md §8's scenarios use (e.g. `store i8
// 0, i8* %m`).
type Operand struct {
	Var *string `  "%" @Ident`
	Lit *int64  `| @Integer`
}

// Instruction is the union of every line shape a block body can contain:
// either "%name = <rhs>" or a void/terminator form with no result. Pos lets
// cmd/attributor-lsp's hover handler map a cursor line to the result value
// (or call site) the engine built for this line.
type Instruction struct {
	Pos    lexer.Position
	EndPos lexer.Position
	Assign *Assign `  @@`
	Void   *Void   `| @@`
}

type Assign struct {
	Name string `"%" @Ident "="`
	Rhs  *Rhs   `@@`
}

// Rhs is every instruction shape that produces a value.
type Rhs struct {
	Alloca   *AllocaI   `  @@`
	Load     *LoadI     `| @@`
	Call     *CallI     `| @@`
	GEP      *GEPI      `| @@`
	ICmp     *ICmpI     `| @@`
	Binary   *BinaryI   `| @@`
	Cast     *CastI     `| @@`
	Select   *SelectI   `| @@`
	Phi      *PhiI      `| @@`
	Constant *ConstantI `| @@`
}

// Void is every instruction/terminator shape with no result value.
type Void struct {
	Store       *StoreI      `  @@`
	Call        *CallI       `| @@`
	Br          *BrI         `| @@`
	Ret         *RetI        `| @@`
	Unreachable *Unreachable `| @@`
}

type AllocaI struct {
	Ty    *Type  `"alloca" @@`
	Count *int64 `[ "," "i64" @Integer ]`
}

type LoadI struct {
	Ty    *Type    `"load" @@ ","`
	PtrTy *Type    `@@`
	Addr  *Operand `@@`
}

type StoreI struct {
	Ty    *Type    `"store" @@`
	Val   *Operand `@@ ","`
	PtrTy *Type    `@@`
	Addr  *Operand `@@`
}

type CallI struct {
	Ty     *Type      `"call" @@`
	Callee string     `"@" @Ident`
	Args   []*CallArg `"(" [ @@ { "," @@ } ] ")"`
}

type CallArg struct {
	Ty  *Type    `@@`
	Val *Operand `@@`
}

type GEPI struct {
	ElemTy *Type    `"getelementptr" @@ ","`
	PtrTy  *Type    `@@`
	Base   *Operand `@@ ","`
	IdxTy  *Type    `@@`
	Index  *Operand `@@`
}

type ICmpI struct {
	Pred string   `"icmp" @Ident`
	Ty   *Type    `@@`
	L    *Operand `@@ ","`
	R    *Operand `@@`
}

type BinaryI struct {
	Op string   `@( "add" | "sub" | "mul" | "sdiv" | "udiv" | "and" | "or" | "xor" )`
	Ty *Type    `@@`
	L  *Operand `@@ ","`
	R  *Operand `@@`
}

type CastI struct {
	Op     string   `@( "ptrtoint" | "inttoptr" | "bitcast" | "trunc" | "zext" | "sext" )`
	FromTy *Type    `@@`
	Val    *Operand `@@`
	ToTy   *Type    `"to" @@`
}

type SelectI struct {
	CondTy *Type    `"select" @@`
	Cond   *Operand `@@ ","`
	Ty     *Type    `@@`
	True   *Operand `@@ ","`
	False  *Operand `@@`
}

type PhiIncoming struct {
	Val   *Operand `"[" @@ ","`
	Label string   `@Ident "]"`
}

type PhiI struct {
	Ty       *Type          `"phi" @@`
	Incoming []*PhiIncoming `@@ { "," @@ }`
}

type ConstantI struct {
	Ty  *Type `@@`
	Lit int64 `@Integer`
}

// BrI covers both branch forms: a conditional "br i1 %cond, label %t, label
// %f" and an unconditional "br label %target", sharing the leading "br"
// literal before the alternation.
type BrI struct {
	Keyword bool     `"br"`
	CondTy  *Type    `  @@`
	Cond    *Operand `  @@ ","`
	True    string   `  "label" "%" @Ident ","`
	False   string   `  "label" "%" @Ident`
	Target  string   `| "label" "%" @Ident`
}

type RetI struct {
	Keyword bool     `"ret"`
	Void    bool     `  @"void"`
	Ty      *Type    `| @@`
	Val     *Operand `@@?`
}

type Unreachable struct {
	Keyword bool `@"unreachable"`
}
