package runtime

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveModulePathFollowsDeclaredBeforeImported(t *testing.T) {
	root := NewModuleScope("root", nil)
	declared := NewModuleScope("util", nil)
	root.DeclareSubmodule(declared)
	imported := NewModuleScope("util", nil)
	root.ImportSubmodule(imported)

	m, err := ResolveModulePath(root, []string{"util"})
	require.NoError(t, err)
	require.Same(t, declared, m)
}

func TestResolveModulePathStartsAtRoot(t *testing.T) {
	root := NewModuleScope("root", nil)
	sub := NewModuleScope("a", nil)
	root.DeclareSubmodule(sub)
	leaf := NewModuleScope("b", nil)
	sub.DeclareSubmodule(leaf)

	// Resolution from a nested module still walks from the root.
	m, err := ResolveModulePath(leaf, []string{"a", "b"})
	require.NoError(t, err)
	require.Same(t, leaf, m)
}

func TestResolveModulePathNotFound(t *testing.T) {
	root := NewModuleScope("root", nil)
	_, err := ResolveModulePath(root, []string{"missing", "deep"})
	require.Error(t, err)
	le, ok := AsLangError(err)
	require.True(t, ok)
	require.Equal(t, KindModuleNotFound, le.Kind)
	require.Contains(t, le.Msg, "missing")
}

func TestDeclareFunctionRejectsDuplicates(t *testing.T) {
	m := NewModuleScope("main", nil)
	require.NoError(t, m.DeclareFunction(&FunctionSymbol{Name: "f"}))
	require.Error(t, m.DeclareFunction(&FunctionSymbol{Name: "f"}))
}

func TestFunctionAndStructNamesShareOneNamespace(t *testing.T) {
	m := NewModuleScope("main", nil)
	require.NoError(t, m.DeclareStruct(&StructSymbol{Name: "point"}))
	require.Error(t, m.DeclareFunction(&FunctionSymbol{Name: "point"}))
	require.Error(t, m.DeclareStruct(&StructSymbol{Name: "point"}))
}

func TestLookupFunctionConsultsImportsOnlyWhenAsked(t *testing.T) {
	m := NewModuleScope("main", nil)
	imported := &FunctionSymbol{Name: "helper"}
	m.ImportFunction(imported)

	_, ok := m.LookupFunction("helper", false)
	require.False(t, ok)

	fn, ok := m.LookupFunction("helper", true)
	require.True(t, ok)
	require.Same(t, imported, fn)
}

func TestMinMaxArity(t *testing.T) {
	fn := &FunctionSymbol{Params: []Param{
		{Name: "a"},
		{Name: "b", HasDefault: true},
		{Name: "rest", Variadic: true},
	}}
	min, max, variadic := fn.MinMaxArity()
	require.Equal(t, 1, min)
	require.Equal(t, 2, max)
	require.True(t, variadic)
}

func TestMinMaxArityIgnoresClosureParam(t *testing.T) {
	fn := &FunctionSymbol{Params: []Param{
		{Name: "xs"},
		{Name: "closure", IsClosure: true},
	}}
	min, max, variadic := fn.MinMaxArity()
	require.Equal(t, 1, min)
	require.Equal(t, 1, max)
	require.False(t, variadic)
}

func TestHasVariableWalksEnclosingScopes(t *testing.T) {
	mod := NewModuleScope("main", nil)
	fnScope := NewFunctionVarScope(mod, &FunctionSymbol{Name: "f"})
	outer := fnScope.AddVariable("x")
	block := NewChildVarScope(fnScope, ScopeBlock)

	sym, ok := block.HasVariable("x")
	require.True(t, ok)
	require.Same(t, outer, sym)

	_, ok = block.HasVariable("y")
	require.False(t, ok)
}

func TestVariableBelongsToInnermostScope(t *testing.T) {
	mod := NewModuleScope("main", nil)
	fnScope := NewFunctionVarScope(mod, &FunctionSymbol{Name: "f"})
	fnScope.AddVariable("x")
	block := NewChildVarScope(fnScope, ScopeBlock)
	shadow := block.AddVariable("x")

	sym, ok := block.HasVariable("x")
	require.True(t, ok)
	require.Same(t, shadow, sym)
	require.Same(t, block, sym.Scope)
}

func TestIsClosureBodyDetectedThroughNestedBlocks(t *testing.T) {
	mod := NewModuleScope("main", nil)
	fnScope := NewFunctionVarScope(mod, &FunctionSymbol{Name: "f"})
	require.False(t, fnScope.IsClosureBody())

	closure := NewChildVarScope(fnScope, ScopeClosureBody)
	inner := NewChildVarScope(closure, ScopeBlock)
	require.True(t, inner.IsClosureBody())
}

func TestStdTableRegisterAndLookup(t *testing.T) {
	tbl := NewStdTable()
	tbl.Register(&StdBinding{Name: "noop", MinArgs: 0, MaxArgs: 0, VariadicStart: -1})
	b, ok := tbl.Lookup("noop")
	require.True(t, ok)
	require.Equal(t, "noop", b.Name)
	_, ok = tbl.Lookup("absent")
	require.False(t, ok)
}
