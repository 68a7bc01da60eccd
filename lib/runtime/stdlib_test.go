package runtime

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// stubInvoker stands in for the VM's closure-call machinery: it routes
// every invocation to a Go function keyed by the FuncRef's name.
func stubInvoker(fns map[string]func(args []Value) (Value, error)) Invoker {
	return func(fr *FuncRef, args []Value) (Value, error) {
		return fns[fr.Name](args)
	}
}

func callStd(t *testing.T, name string, args []Value, invoke Invoker) (Value, error) {
	t.Helper()
	b, ok := NewStandardTable().Lookup(name)
	require.True(t, ok, "std binding %q not registered", name)
	return b.Call(args, invoke)
}

func TestStdLen(t *testing.T) {
	v, err := callStd(t, "len", []Value{List([]Value{Int(1), Int(2)})}, nil)
	require.NoError(t, err)
	require.Equal(t, int64(2), v.Int)

	v, err = callStd(t, "len", []Value{String("héllo")}, nil)
	require.NoError(t, err)
	require.Equal(t, int64(5), v.Int) // rune count, not byte count

	_, err = callStd(t, "len", []Value{Int(3)}, nil)
	require.Error(t, err)
}

func TestStdMapInvokesClosurePerItem(t *testing.T) {
	double := Func(&FuncRef{Name: "double"})
	invoke := stubInvoker(map[string]func([]Value) (Value, error){
		"double": func(args []Value) (Value, error) { return Int(args[0].Int * 2), nil },
	})

	v, err := callStd(t, "map", []Value{List([]Value{Int(1), Int(2), Int(3)}), double}, invoke)
	require.NoError(t, err)
	require.Equal(t, "[2, 4, 6]", v.Display())
}

func TestStdMapRejectsNonClosureArgument(t *testing.T) {
	_, err := callStd(t, "map", []Value{List(nil), Int(1)}, nil)
	require.Error(t, err)
	le, ok := AsLangError(err)
	require.True(t, ok)
	require.Equal(t, KindExpectedClosure, le.Kind)
}

func TestStdFilterKeepsTruthyItems(t *testing.T) {
	pos := Func(&FuncRef{Name: "pos"})
	invoke := stubInvoker(map[string]func([]Value) (Value, error){
		"pos": func(args []Value) (Value, error) { return Bool(args[0].Int > 0), nil },
	})

	v, err := callStd(t, "filter", []Value{List([]Value{Int(-1), Int(2), Int(0), Int(3)}), pos}, invoke)
	require.NoError(t, err)
	require.Equal(t, "[2, 3]", v.Display())
}

func TestStdReduceFoldsLeft(t *testing.T) {
	add := Func(&FuncRef{Name: "add"})
	invoke := stubInvoker(map[string]func([]Value) (Value, error){
		"add": func(args []Value) (Value, error) { return Int(args[0].Int + args[1].Int), nil },
	})

	v, err := callStd(t, "reduce", []Value{Range(1, 5, 1), Int(0), add}, invoke)
	require.NoError(t, err)
	require.Equal(t, int64(10), v.Int)
}

func TestStdPushMutatesListInPlace(t *testing.T) {
	xs := List([]Value{Int(1)})
	_, err := callStd(t, "push", []Value{xs, Int(2)}, nil)
	require.NoError(t, err)
	require.Len(t, xs.List.Items, 2)
}

func TestStdJoinAndSplitRoundTrip(t *testing.T) {
	v, err := callStd(t, "join", []Value{List([]Value{String("a"), String("b")}), String(",")}, nil)
	require.NoError(t, err)
	require.Equal(t, "a,b", v.Str)

	v, err = callStd(t, "split", []Value{String("a,b"), String(",")}, nil)
	require.NoError(t, err)
	require.Equal(t, "[a, b]", v.Display())
}

func TestStdSortNumericAndLexicographic(t *testing.T) {
	v, err := callStd(t, "sort", []Value{List([]Value{Int(3), Int(1), Int(2)})}, nil)
	require.NoError(t, err)
	require.Equal(t, "[1, 2, 3]", v.Display())

	v, err = callStd(t, "sort", []Value{List([]Value{String("b"), String("a")})}, nil)
	require.NoError(t, err)
	require.Equal(t, "[a, b]", v.Display())
}

func TestStdKeysValuesPreserveInsertionOrder(t *testing.T) {
	d := NewDict()
	d.Set("z", Int(26))
	d.Set("a", Int(1))

	v, err := callStd(t, "keys", []Value{Dict(d)}, nil)
	require.NoError(t, err)
	require.Equal(t, "[z, a]", v.Display())

	v, err = callStd(t, "values", []Value{Dict(d)}, nil)
	require.NoError(t, err)
	require.Equal(t, "[26, 1]", v.Display())
}

func TestStdCastBindingDelegatesToCast(t *testing.T) {
	v, err := callStd(t, "cast", []Value{String("7"), String("int")}, nil)
	require.NoError(t, err)
	require.Equal(t, int64(7), v.Int)
}

func TestStdCallInvokesReferenceWithTailArgs(t *testing.T) {
	add := Func(&FuncRef{Name: "add"})
	invoke := stubInvoker(map[string]func([]Value) (Value, error){
		"add": func(args []Value) (Value, error) { return Int(args[0].Int + args[1].Int), nil },
	})

	v, err := callStd(t, "call", []Value{add, Int(2), Int(3)}, invoke)
	require.NoError(t, err)
	require.Equal(t, int64(5), v.Int)
}

func TestStdErrorRaisesRuntimeError(t *testing.T) {
	_, err := callStd(t, "error", []Value{String("boom")}, nil)
	require.Error(t, err)
	le, ok := AsLangError(err)
	require.True(t, ok)
	require.Equal(t, KindRuntimeError, le.Kind)
	require.Equal(t, "boom", le.Msg)
}

func TestStdEnvRoundTrip(t *testing.T) {
	t.Setenv("WISP_STD_TEST", "xyzzy")
	v, err := callStd(t, "env", []Value{String("WISP_STD_TEST")}, nil)
	require.NoError(t, err)
	require.Equal(t, "xyzzy", v.Str)

	// Unset variables read as "", not an error (shell convention).
	v, err = callStd(t, "env", []Value{String("WISP_STD_TEST_UNSET")}, nil)
	require.NoError(t, err)
	require.Equal(t, "", v.Str)
}

func TestStdIndexBindings(t *testing.T) {
	xs := List([]Value{Int(10), Int(20)})

	v, err := callStd(t, "__index__", []Value{xs, Int(0)}, nil)
	require.NoError(t, err)
	require.Equal(t, int64(10), v.Int)

	_, err = callStd(t, "__index_set__", []Value{xs, Int(0), Int(99)}, nil)
	require.NoError(t, err)
	require.Equal(t, int64(99), xs.List.Items[0].Int)
}

func TestStdFieldGet(t *testing.T) {
	inst := Struct(&StructInstance{
		TypeName: "point",
		Fields:   map[string]Value{"x": Int(4)},
		Order:    []string{"x"},
	})

	v, err := callStd(t, "__field__", []Value{inst, String("x")}, nil)
	require.NoError(t, err)
	require.Equal(t, int64(4), v.Int)

	_, err = callStd(t, "__field__", []Value{inst, String("y")}, nil)
	require.Error(t, err)
	le, ok := AsLangError(err)
	require.True(t, ok)
	require.Equal(t, KindNotFound, le.Kind)
}
