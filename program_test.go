package wisp

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wisp-lang/wisp/compiler"
	"github.com/wisp-lang/wisp/lib/runtime"
)

// buildFactModule hand-builds the AST a parser would produce for:
//
//	fn fact(n) { if n <= 1 { 1 } else { n * fact(n - 1) } }
//	fact(5)
//
// using only function parameters (never Let) so no external
// pre-registration step is needed before analysis (spec §4.3's Let
// binding is assumed pre-registered by the parser, which this repo does
// not have).
func buildFactModule() (*compiler.Module, *compiler.Function) {
	n := func() *compiler.Variable { return &compiler.Variable{Name: "n"} }

	factBody := []compiler.Expr{
		&compiler.If{
			Cond: &compiler.Binary{Op: compiler.BinLe, Left: n(), Right: &compiler.Literal{Value: runtime.Int(1)}},
			Then: []compiler.Expr{&compiler.Literal{Value: runtime.Int(1)}},
			Else: []compiler.Expr{
				&compiler.Binary{
					Op:   compiler.BinMul,
					Left: n(),
					Right: &compiler.Call{
						Path: []string{"fact"},
						Args: []compiler.Expr{
							&compiler.Binary{Op: compiler.BinSub, Left: n(), Right: &compiler.Literal{Value: runtime.Int(1)}},
						},
					},
				},
			},
		},
	}
	fact := &compiler.Function{Name: "fact", Params: []compiler.ParamDecl{{Name: "n"}}, Body: factBody}

	mod := &compiler.Module{Name: "main", Functions: []*compiler.Function{fact}}
	topLevel := &compiler.Function{
		Name: "<top>",
		Body: []compiler.Expr{
			&compiler.Call{Path: []string{"fact"}, Args: []compiler.Expr{&compiler.Literal{Value: runtime.Int(5)}}},
		},
	}
	return mod, topLevel
}

func TestRunRecursiveFactorial(t *testing.T) {
	mod, topLevel := buildFactModule()
	p := New(nil)

	v, err := p.Run(mod, topLevel)
	require.NoError(t, err)
	require.Equal(t, runtime.TagInt, v.Tag)
	require.Equal(t, int64(120), v.Int)
}

func TestRunSimpleArithmetic(t *testing.T) {
	// 1 + 2 (spec §8 scenario 1).
	mod := &compiler.Module{Name: "main"}
	topLevel := &compiler.Function{
		Name: "<top>",
		Body: []compiler.Expr{
			&compiler.Binary{Op: compiler.BinAdd, Left: &compiler.Literal{Value: runtime.Int(1)}, Right: &compiler.Literal{Value: runtime.Int(2)}},
		},
	}
	p := New(nil)
	v, err := p.Run(mod, topLevel)
	require.NoError(t, err)
	require.Equal(t, int64(3), v.Int)
}

func TestRunListIndexOutOfRange(t *testing.T) {
	// xs[5] on a 2-element list fails with a *not found* error naming the
	// offending index (spec §8 scenario 2).
	mod := &compiler.Module{Name: "main"}
	topLevel := &compiler.Function{
		Name: "<top>",
		Body: []compiler.Expr{
			&compiler.Indexer{
				Receiver: &compiler.List{Items: []compiler.Expr{
					&compiler.Literal{Value: runtime.Int(10)},
					&compiler.Literal{Value: runtime.Int(20)},
				}},
				Index: &compiler.Literal{Value: runtime.Int(5)},
			},
		},
	}
	p := New(nil)
	_, err := p.Run(mod, topLevel)
	require.Error(t, err)
	le, ok := runtime.AsLangError(err)
	require.True(t, ok)
	require.Equal(t, runtime.KindNotFound, le.Kind)
	require.Contains(t, le.Msg, "5")
}

func TestRunVariadicSumWithDefault(t *testing.T) {
	// fn sum(a, b=5, *rest) => a + b + len(rest); sum(1) => 6 (spec §8
	// scenario 3). Exercises the default-value prologue: b's slot is
	// filled from its Default expression since only one argument is
	// supplied at the call site.
	restLen := &compiler.Call{Path: []string{"len"}, Args: []compiler.Expr{&compiler.Variable{Name: "rest"}}}
	sumBody := []compiler.Expr{
		&compiler.Binary{
			Op:   compiler.BinAdd,
			Left: &compiler.Binary{Op: compiler.BinAdd, Left: &compiler.Variable{Name: "a"}, Right: &compiler.Variable{Name: "b"}},
			Right: restLen,
		},
	}
	sum := &compiler.Function{
		Name: "sum",
		Params: []compiler.ParamDecl{
			{Name: "a"},
			{Name: "b", Default: &compiler.Literal{Value: runtime.Int(5)}},
			{Name: "rest", Variadic: true},
		},
		Body: sumBody,
	}
	mod := &compiler.Module{Name: "main", Functions: []*compiler.Function{sum}}
	topLevel := &compiler.Function{
		Name: "<top>",
		Body: []compiler.Expr{
			&compiler.Call{Path: []string{"sum"}, Args: []compiler.Expr{&compiler.Literal{Value: runtime.Int(1)}}},
		},
	}
	p := New(nil)
	v, err := p.Run(mod, topLevel)
	require.NoError(t, err)
	require.Equal(t, int64(6), v.Int)
}

func TestLastExitCodeStartsZero(t *testing.T) {
	p := New(nil)
	require.Equal(t, 0, p.LastExitCode())
}
