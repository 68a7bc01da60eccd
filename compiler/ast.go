// Package compiler implements the semantic analyser and instruction
// generator described in spec §4.3/§4.4: it turns a parsed expression
// tree into resolved, classified expressions and lowers those into
// bytecode pages. The lexer and parser that produce the input tree are
// out of scope (spec §1) — this package only defines the tree shape
// they're expected to hand it.
package compiler

import "github.com/wisp-lang/wisp/lib/runtime"

// Position is a source location, reproduced from spec §3.
type Position struct {
	Line, Column int
}

func (p Position) toRuntime() runtime.Position { return runtime.Position{Line: p.Line, Column: p.Column} }

// CallType is the call classification assigned by the analyser and
// consumed by the generator (spec §3 "Call classification").
type CallType uint8

const (
	CallUnclassified CallType = iota
	CallBuiltInCd
	CallBuiltInExec
	CallBuiltInScriptPath
	CallBuiltInClosure
	CallBuiltInCall
	CallBuiltInError
	CallStdFunction
	CallFunction
	CallProgram
)

// Expr is implemented by every node of the closed sum listed in spec §3.
type Expr interface {
	Pos() Position
	IsRootExpr() bool
	SetRoot(bool)
	EnclosingFn() *runtime.FunctionSymbol
	SetEnclosingFn(*runtime.FunctionSymbol)
	exprNode()
}

// base carries the fields every node shares: its source position, the
// IsRoot flag, and (after analysis) a non-owning handle to the function
// it was analysed inside of. EnclosingFunction is deliberately a plain
// pointer into the analyser's long-lived function table, never into
// another Expr or VarScope — see spec §9 "Back-references / cycles".
type base struct {
	position          Position
	isRoot            bool
	EnclosingFunction *runtime.FunctionSymbol
}

func (b *base) Pos() Position      { return b.position }
func (b *base) IsRootExpr() bool   { return b.isRoot }
func (b *base) SetRoot(v bool)     { b.isRoot = v }
func (b *base) EnclosingFn() *runtime.FunctionSymbol          { return b.EnclosingFunction }
func (b *base) SetEnclosingFn(fn *runtime.FunctionSymbol)     { b.EnclosingFunction = fn }
func (b *base) exprNode()          {}

// --- Module / declarations -------------------------------------------------

// Module is a root module or submodule declaration.
type Module struct {
	base
	Name        string
	Functions   []*Function
	Structs     []*Struct
	Submodules  []*Module
	Imports     []ImportSpec

	Scope *runtime.ModuleScope // attached by the analyser
}

// ImportSpec names a module path to import from, and which members.
type ImportSpec struct {
	Path    []string
	Members []string // empty means "import the submodule itself"
}

// Struct declares a struct type with named fields.
type Struct struct {
	base
	Name       string
	FieldNames []string

	Symbol *runtime.StructSymbol
}

// Function declares a named function (or is the synthetic function
// wrapping the top-level script page).
type Function struct {
	base
	Name   string
	Params []ParamDecl
	Body   []Expr

	Symbol *runtime.FunctionSymbol // attached by the analyser
}

// ParamDecl is a parsed parameter: at most one of Default/Variadic set.
type ParamDecl struct {
	Name     string
	Default  Expr // nil if none
	Variadic bool

	Symbol *runtime.VarSymbol // bound by the analyser to the param's body-scope variable
}

// --- Statements / control flow ---------------------------------------------

type Let struct {
	base
	Name  string
	Value Expr

	Symbol *runtime.VarSymbol // pre-registered by the parser (spec §4.3)
}

type New struct {
	base
	Path []string
	Args []Expr

	ResolvedStruct *runtime.StructSymbol
	StdStructName  string // set when falling back to a standard-library struct
}

type If struct {
	base
	Cond      Expr
	Then      []Expr
	Else      []Expr // nil if no else branch
}

type For struct {
	base
	VarNames []string // one name, or two for `for k, v in ...`
	Iterable Expr
	Body     []Expr

	Symbols []*runtime.VarSymbol // bound by the analyser, parallel to VarNames
}

type While struct {
	base
	Cond Expr
	Body []Expr
}

type Block struct {
	base
	Body []Expr
}

// Keyword is a bare keyword expression (e.g. `break`, `continue`,
// `return <expr>`).
type Keyword struct {
	base
	Word  string
	Value Expr // nil unless the keyword takes a value (e.g. return)
}

// --- Operators ---------------------------------------------------------

type BinaryOp uint8

const (
	BinAdd BinaryOp = iota
	BinSub
	BinMul
	BinDiv
	BinMod
	BinEq
	BinNe
	BinGt
	BinGe
	BinLt
	BinLe
	BinAnd
	BinOr
	BinContains
	BinAssign
	BinPipe
)

type Binary struct {
	base
	Op    BinaryOp
	Left  Expr
	Right Expr
}

type UnaryOp uint8

const (
	UnNeg UnaryOp = iota
	UnNot
)

type Unary struct {
	base
	Op      UnaryOp
	Operand Expr
}

type FieldAccess struct {
	base
	Receiver Expr
	Field    string
}

type RangeExpr struct {
	base
	From, To, Step Expr // Step may be nil
}

type Indexer struct {
	base
	Receiver Expr
	Index    Expr
}

// TypeExpr names a type, used by `New` path resolution and `cast`.
type TypeExpr struct {
	base
	Name string

	Resolved *runtime.TypeDescriptor
}

// Variable references a name; dollar-prefixed names are environment
// shell variables and skip scope checks (spec §4.3).
type Variable struct {
	base
	Name string

	Symbol *runtime.VarSymbol // nil for $-prefixed names
}

// Call is a call site: a module path, argument list, and optional
// trailing closure / piped value (threaded in by Binary's `|` handling).
type Call struct {
	base
	Path      []string
	Args      []Expr
	Closure   *Closure // nil if none
	PipedFrom Expr     // set by analysis when this call is the RHS of `a | f(...)`

	Type           CallType
	Function       *runtime.FunctionSymbol
	Std            *runtime.StdBinding
	ProgramName    string
}

type Tuple struct {
	base
	Items []Expr
}

type List struct {
	base
	Items []Expr
}

type DictEntry struct {
	Key   Expr
	Value Expr
}

type Dictionary struct {
	base
	Entries []DictEntry
}

// Literal is an interned constant: integer, float, string, boolean, nil.
type Literal struct {
	base
	Value runtime.Value
}

// FunctionReference is a first-class callable reference (spec §4.3
// "FunctionReference" resolved Std -> user -> Program fallback).
type FunctionReference struct {
	base
	Path []string

	Type     CallType
	Function *runtime.FunctionSymbol
	Std      *runtime.StdBinding
}

type StringInterpolation struct {
	base
	Parts []Expr // alternating literal string Exprs and expression Exprs
}

// Closure is an anonymous function literal (`&x: x*2`). CapturedVariables
// is populated by the analyser (spec §4.3 "Variable").
type Closure struct {
	base
	Params []ParamDecl
	Body   []Expr

	Symbol            *runtime.FunctionSymbol
	CapturedVariables []string
}
