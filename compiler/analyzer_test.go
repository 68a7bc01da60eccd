package compiler

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wisp-lang/wisp/lib/runtime"
)

func newTestAnalyzer() (*Analyzer, *runtime.ModuleScope) {
	std := runtime.NewStandardTable()
	root := runtime.NewModuleScope("root", nil)
	return NewAnalyzer(std), root
}

// funcScope builds a function-body VarScope the way AnalyzeFunction does
// internally, for tests that exercise AnalyzeExpr below the granularity
// of a full Function/Module declaration.
func funcScope(module *runtime.ModuleScope, sym *runtime.FunctionSymbol) *runtime.VarScope {
	return runtime.NewFunctionVarScope(module, sym)
}

func TestAnalyzeLetThenVariable(t *testing.T) {
	// `let x = 1 + 2; x` (spec §8 scenario 1): Let's binding is
	// pre-registered by the parser in the owning block scope before
	// analysis runs; we simulate that pre-registration here.
	a, root := newTestAnalyzer()
	scope := funcScope(root, nil)

	sym := scope.AddVariable("x")
	let := &Let{Name: "x", Symbol: sym, Value: &Binary{
		Op: BinAdd, Left: &Literal{Value: runtime.Int(1)}, Right: &Literal{Value: runtime.Int(2)},
	}}
	require.NoError(t, a.AnalyzeExpr(let, scope))

	ref := &Variable{Name: "x"}
	require.NoError(t, a.AnalyzeExpr(ref, scope))
	require.Same(t, sym, ref.Symbol)
}

func TestAnalyzeVariableNotFound(t *testing.T) {
	a, root := newTestAnalyzer()
	scope := funcScope(root, nil)

	err := a.AnalyzeExpr(&Variable{Name: "missing"}, scope)
	require.Error(t, err)
	le, ok := runtime.AsLangError(err)
	require.True(t, ok)
	require.Equal(t, runtime.KindNotFound, le.Kind)
}

func TestAnalyzeDollarVariableSkipsScopeCheck(t *testing.T) {
	a, root := newTestAnalyzer()
	scope := funcScope(root, nil)
	require.NoError(t, a.AnalyzeExpr(&Variable{Name: "$HOME"}, scope))
}

func TestFunctionArityVariadicRewrite(t *testing.T) {
	// fn sum(a, b=5, *rest) => a + b + len(rest) (spec §8 scenario 3).
	a, root := newTestAnalyzer()
	params := []runtime.Param{
		{Name: "a"},
		{Name: "b", HasDefault: true},
		{Name: "rest", Variadic: true},
	}
	sym := &runtime.FunctionSymbol{Name: "sum", Module: root, Params: params}
	require.NoError(t, root.DeclareFunction(sym))

	call := &Call{Path: []string{"sum"}, Args: []Expr{
		&Literal{Value: runtime.Int(1)},
		&Literal{Value: runtime.Int(2)},
		&Literal{Value: runtime.Int(3)},
		&Literal{Value: runtime.Int(4)},
	}}
	scope := funcScope(root, nil)
	require.NoError(t, a.AnalyzeExpr(call, scope))
	require.Equal(t, CallFunction, call.Type)
	require.Len(t, call.Args, 3) // a, b, rest(as one list)
	tail, ok := call.Args[2].(*List)
	require.True(t, ok)
	require.Len(t, tail.Items, 2) // 4 actual - (3 params - 1 variadic) = 2
}

func TestFunctionArityErrorCarriesExpectedActualVariadic(t *testing.T) {
	a, root := newTestAnalyzer()
	params := []runtime.Param{{Name: "a"}, {Name: "b", HasDefault: true}, {Name: "rest", Variadic: true}}
	sym := &runtime.FunctionSymbol{Name: "sum", Module: root, Params: params}
	require.NoError(t, root.DeclareFunction(sym))

	call := &Call{Path: []string{"sum"}}
	scope := funcScope(root, nil)
	err := a.AnalyzeExpr(call, scope)
	require.Error(t, err)
	le, ok := runtime.AsLangError(err)
	require.True(t, ok)
	require.Equal(t, runtime.KindWrongArity, le.Kind)
	require.Equal(t, 3, le.Expected)
	require.Equal(t, 0, le.Actual)
	require.True(t, le.Variadic)
}

func TestAnalyzeCallFallsBackToProgram(t *testing.T) {
	a, root := newTestAnalyzer()
	call := &Call{Path: []string{"cat"}, Args: []Expr{&Literal{Value: runtime.String("file.txt")}}}
	scope := funcScope(root, nil)
	require.NoError(t, a.AnalyzeExpr(call, scope))
	require.Equal(t, CallProgram, call.Type)
	require.Equal(t, "cat", call.ProgramName)
}

func TestPipeThreadsIntoNonProgramCallArgZero(t *testing.T) {
	// `a | f(b)`: f's analysed arguments become [a, b] when f is not a
	// Program (spec §8 "Pipe threading").
	a, root := newTestAnalyzer()
	sym := &runtime.FunctionSymbol{Name: "f", Module: root, Params: []runtime.Param{{Name: "x"}, {Name: "y"}}}
	require.NoError(t, root.DeclareFunction(sym))

	scope := funcScope(root, nil)
	left := &Literal{Value: runtime.Int(1)}
	call := &Call{Path: []string{"f"}, Args: []Expr{&Literal{Value: runtime.Int(2)}}}
	bin := &Binary{Op: BinPipe, Left: left, Right: call}

	require.NoError(t, a.AnalyzeExpr(bin, scope))
	require.Len(t, call.Args, 2)
	require.Same(t, left, call.Args[0])
}

func TestPipeIntoProgramStoresPipedFromNotArgs(t *testing.T) {
	// `a | cat`: the piped value becomes the program's stdin feed, not an
	// argument (spec §8 scenario 5 / "Pipe threading").
	a, root := newTestAnalyzer()
	scope := funcScope(root, nil)
	left := &Literal{Value: runtime.String("hello")}
	call := &Call{Path: []string{"cat"}}
	bin := &Binary{Op: BinPipe, Left: left, Right: call}

	require.NoError(t, a.AnalyzeExpr(bin, scope))
	require.Empty(t, call.Args)
	require.Same(t, left, call.PipedFrom)
}

func TestClosureCapturesReferencedOuterVariable(t *testing.T) {
	// A variable referenced inside a closure body appears in that
	// closure's CapturedVariables set (spec §8 "Closure captures").
	a, root := newTestAnalyzer()
	outer := funcScope(root, nil)
	outerSym := outer.AddVariable("acc")

	closure := &Closure{
		Params: []ParamDecl{{Name: "x"}},
		Body:   []Expr{&Variable{Name: "acc"}, &Variable{Name: "x"}},
	}
	require.NoError(t, a.AnalyzeExpr(closure, outer))
	require.Contains(t, closure.CapturedVariables, "acc")
	require.NotContains(t, closure.CapturedVariables, "x") // x is the closure's own param, not captured
	_ = outerSym
}

func TestClosureRejectedOnBuiltinExec(t *testing.T) {
	a, root := newTestAnalyzer()
	scope := funcScope(root, nil)
	call := &Call{Path: []string{"exec"}, Closure: &Closure{Body: []Expr{&Literal{Value: runtime.Int(1)}}}}
	err := a.AnalyzeExpr(call, scope)
	require.Error(t, err)
	le, ok := runtime.AsLangError(err)
	require.True(t, ok)
	require.Equal(t, runtime.KindUnexpectedClosure, le.Kind)
}

func TestInvalidParameterOrderingRejected(t *testing.T) {
	a, _ := newTestAnalyzer()
	params := []ParamDecl{{Name: "a", Variadic: true}, {Name: "b"}}
	err := a.validateParamOrdering(&Function{Name: "bad"}, params)
	require.Error(t, err)
}

func TestImportCycleVisitsEachModuleOnce(t *testing.T) {
	// Two modules importing each other's submodule terminate instead of
	// recursing forever (spec §8 "Import cycles terminate").
	a, _ := newTestAnalyzer()

	modA := runtime.NewModuleScope("a", nil)
	modB := runtime.NewModuleScope("b", nil)
	modA.ImportSubmodule(modB)
	modB.ImportSubmodule(modA)

	astA := &Module{Name: "a", Scope: modA}
	astB := &Module{Name: "b", Scope: modB}
	astA.Submodules = []*Module{} // imported, not declared, so moduleByScope won't find astB as a child

	require.NoError(t, a.AnalyzeModule(astA))
	require.True(t, modA.IsAnalysed)
	require.True(t, modB.IsAnalysed) // trusted-analysed via the "no local AST handle" branch
	_ = astB
}

func TestModuleNotFoundError(t *testing.T) {
	_, root := newTestAnalyzer()
	_, err := runtime.ResolveModulePath(root, []string{"nope"})
	require.Error(t, err)
	le, ok := runtime.AsLangError(err)
	require.True(t, ok)
	require.Equal(t, runtime.KindModuleNotFound, le.Kind)
}

func TestNewResolvesDeclaredStructArity(t *testing.T) {
	a, root := newTestAnalyzer()
	st := &runtime.StructSymbol{Name: "Point", Module: root, FieldNames: []string{"x", "y"}, MinArgs: 2, MaxArgs: 2}
	require.NoError(t, root.DeclareStruct(st))

	scope := funcScope(root, nil)
	n := &New{Path: []string{"Point"}, Args: []Expr{&Literal{Value: runtime.Int(1)}, &Literal{Value: runtime.Int(2)}}}
	require.NoError(t, a.AnalyzeExpr(n, scope))
	require.Same(t, st, n.ResolvedStruct)
}

func TestNewFallsBackToStdStruct(t *testing.T) {
	a, root := newTestAnalyzer()
	scope := funcScope(root, nil)
	n := &New{Path: []string{"Buffer"}}
	require.NoError(t, a.AnalyzeExpr(n, scope))
	require.Equal(t, "Buffer", n.StdStructName)
	require.Nil(t, n.ResolvedStruct)
}

func TestAssignmentToUnknownVariableFails(t *testing.T) {
	a, root := newTestAnalyzer()
	scope := funcScope(root, nil)
	bin := &Binary{Op: BinAssign, Left: &Variable{Name: "ghost"}, Right: &Literal{Value: runtime.Int(1)}}
	err := a.AnalyzeExpr(bin, scope)
	require.Error(t, err)
	le, ok := runtime.AsLangError(err)
	require.True(t, ok)
	require.Equal(t, runtime.KindNotFound, le.Kind)
}

func TestAssignmentToInvalidShapeFails(t *testing.T) {
	a, root := newTestAnalyzer()
	scope := funcScope(root, nil)
	bin := &Binary{Op: BinAssign, Left: &Literal{Value: runtime.Int(1)}, Right: &Literal{Value: runtime.Int(2)}}
	err := a.AnalyzeExpr(bin, scope)
	require.Error(t, err)
	le, ok := runtime.AsLangError(err)
	require.True(t, ok)
	require.Equal(t, runtime.KindInvalidAssignment, le.Kind)
}
