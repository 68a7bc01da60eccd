package runtime

import (
	"os"
	"sort"
	"strings"
)

// NewStandardTable builds the host-provided standard bindings table
// (spec §6): collection helpers, string helpers, casts, environment
// access, and the small set of names the analyser's built-in call types
// (cd/scriptPath/call/error) lower to at the generator boundary. The
// exec built-in has no binding here; it lowers to OpExecCall.
func NewStandardTable() *StdTable {
	t := NewStdTable()
	for _, b := range []*StdBinding{
		bindLen(), bindPrint(), bindPrintln(),
		bindMap(), bindFilter(), bindReduce(), bindEach(),
		bindKeys(), bindValues(), bindPush(), bindJoin(), bindSplit(),
		bindUpper(), bindLower(), bindTrim(), bindSort(), bindReverse(),
		bindCast(), bindEnv(), bindSetEnv(),
		bindCd(), bindScriptPath(), bindCall(), bindError(),
		bindIndexGet(), bindFieldGet(), bindIndexSet(),
	} {
		t.Register(b)
	}
	return t
}

func simple(name string, min, max int, fn func(args []Value) (Value, error)) *StdBinding {
	return &StdBinding{
		Name: name, MinArgs: min, MaxArgs: max, VariadicStart: -1,
		Call: func(args []Value, _ Invoker) (Value, error) { return fn(args) },
	}
}

// bindLen implements `len`: size of a list/tuple/dict/set/string.
func bindLen() *StdBinding {
	return simple("len", 1, 1, func(args []Value) (Value, error) {
		switch v := args[0]; v.Tag {
		case TagList:
			return Int(int64(len(v.List.Items))), nil
		case TagTuple:
			return Int(int64(len(v.Tuple))), nil
		case TagDict:
			return Int(int64(v.Dict.Len())), nil
		case TagSet:
			return Int(int64(v.Set.Len())), nil
		case TagString:
			return Int(int64(len([]rune(v.Str)))), nil
		default:
			return Value{}, NewInvalidOperationErrorSimple("len", v.Tag)
		}
	})
}

func bindPrint() *StdBinding {
	return &StdBinding{Name: "print", MinArgs: 0, MaxArgs: -1, VariadicStart: 0,
		Call: func(args []Value, _ Invoker) (Value, error) {
			parts := make([]string, len(args))
			for i, a := range args {
				parts[i] = a.Display()
			}
			os.Stdout.WriteString(strings.Join(parts, " "))
			return Nil(), nil
		}}
}

func bindPrintln() *StdBinding {
	return &StdBinding{Name: "println", MinArgs: 0, MaxArgs: -1, VariadicStart: 0,
		Call: func(args []Value, _ Invoker) (Value, error) {
			parts := make([]string, len(args))
			for i, a := range args {
				parts[i] = a.Display()
			}
			os.Stdout.WriteString(strings.Join(parts, " ") + "\n")
			return Nil(), nil
		}}
}

func itemsOf(v Value) ([]Value, error) {
	switch v.Tag {
	case TagList:
		return v.List.Items, nil
	case TagTuple:
		return v.Tuple, nil
	case TagSet:
		return v.Set.Items(), nil
	case TagRange:
		return rangeToList(v.Range), nil
	default:
		return nil, NewInvalidOperationErrorSimple("iterate", v.Tag)
	}
}

// bindMap implements `map(xs, closure)`: a new list of f(item) per item.
func bindMap() *StdBinding {
	return &StdBinding{Name: "map", MinArgs: 2, MaxArgs: 2, VariadicStart: -1, HasClosure: true,
		Call: func(args []Value, invoke Invoker) (Value, error) {
			items, err := itemsOf(args[0])
			if err != nil {
				return Value{}, err
			}
			fn, err := requireFunc("map", args[1])
			if err != nil {
				return Value{}, err
			}
			out := make([]Value, len(items))
			for i, it := range items {
				v, err := invoke(fn, []Value{it})
				if err != nil {
					return Value{}, err
				}
				out[i] = v
			}
			return List(out), nil
		}}
}

// bindFilter implements `filter(xs, closure)`: items for which f(item) is truthy.
func bindFilter() *StdBinding {
	return &StdBinding{Name: "filter", MinArgs: 2, MaxArgs: 2, VariadicStart: -1, HasClosure: true,
		Call: func(args []Value, invoke Invoker) (Value, error) {
			items, err := itemsOf(args[0])
			if err != nil {
				return Value{}, err
			}
			fn, err := requireFunc("filter", args[1])
			if err != nil {
				return Value{}, err
			}
			var out []Value
			for _, it := range items {
				v, err := invoke(fn, []Value{it})
				if err != nil {
					return Value{}, err
				}
				if v.Truthy() {
					out = append(out, it)
				}
			}
			return List(out), nil
		}}
}

// bindReduce implements `reduce(xs, init, closure)`: left fold.
func bindReduce() *StdBinding {
	return &StdBinding{Name: "reduce", MinArgs: 3, MaxArgs: 3, VariadicStart: -1, HasClosure: true,
		Call: func(args []Value, invoke Invoker) (Value, error) {
			items, err := itemsOf(args[0])
			if err != nil {
				return Value{}, err
			}
			fn, err := requireFunc("reduce", args[2])
			if err != nil {
				return Value{}, err
			}
			acc := args[1]
			for _, it := range items {
				acc, err = invoke(fn, []Value{acc, it})
				if err != nil {
					return Value{}, err
				}
			}
			return acc, nil
		}}
}

// bindEach implements `each(xs, closure)`: run a closure per item for
// side effects, yielding nil.
func bindEach() *StdBinding {
	return &StdBinding{Name: "each", MinArgs: 2, MaxArgs: 2, VariadicStart: -1, HasClosure: true,
		Call: func(args []Value, invoke Invoker) (Value, error) {
			items, err := itemsOf(args[0])
			if err != nil {
				return Value{}, err
			}
			fn, err := requireFunc("each", args[1])
			if err != nil {
				return Value{}, err
			}
			for _, it := range items {
				if _, err := invoke(fn, []Value{it}); err != nil {
					return Value{}, err
				}
			}
			return Nil(), nil
		}}
}

func requireFunc(name string, v Value) (*FuncRef, error) {
	if v.Tag != TagFuncRef {
		return nil, NewExpectedClosureError(name)
	}
	return v.Func, nil
}

func bindKeys() *StdBinding {
	return simple("keys", 1, 1, func(args []Value) (Value, error) {
		if args[0].Tag != TagDict {
			return Value{}, NewInvalidOperationErrorSimple("keys", args[0].Tag)
		}
		ks := args[0].Dict.Keys()
		out := make([]Value, len(ks))
		for i, k := range ks {
			out[i] = String(k)
		}
		return List(out), nil
	})
}

func bindValues() *StdBinding {
	return simple("values", 1, 1, func(args []Value) (Value, error) {
		if args[0].Tag != TagDict {
			return Value{}, NewInvalidOperationErrorSimple("values", args[0].Tag)
		}
		ks := args[0].Dict.Keys()
		out := make([]Value, len(ks))
		for i, k := range ks {
			out[i], _ = args[0].Dict.Get(k)
		}
		return List(out), nil
	})
}

// bindPush implements `push(xs, v)`: append, mutating the list in place.
func bindPush() *StdBinding {
	return simple("push", 2, 2, func(args []Value) (Value, error) {
		if args[0].Tag != TagList {
			return Value{}, NewInvalidOperationErrorSimple("push", args[0].Tag)
		}
		args[0].List.Items = append(args[0].List.Items, args[1])
		return args[0], nil
	})
}

func bindJoin() *StdBinding {
	return simple("join", 2, 2, func(args []Value) (Value, error) {
		items, err := itemsOf(args[0])
		if err != nil {
			return Value{}, err
		}
		if args[1].Tag != TagString {
			return Value{}, NewInvalidOperationErrorSimple("join", args[1].Tag)
		}
		parts := make([]string, len(items))
		for i, it := range items {
			parts[i] = it.Display()
		}
		return String(strings.Join(parts, args[1].Str)), nil
	})
}

func bindSplit() *StdBinding {
	return simple("split", 2, 2, func(args []Value) (Value, error) {
		if args[0].Tag != TagString || args[1].Tag != TagString {
			return Value{}, NewInvalidOperationErrorSimple("split", args[0].Tag)
		}
		parts := strings.Split(args[0].Str, args[1].Str)
		out := make([]Value, len(parts))
		for i, p := range parts {
			out[i] = String(p)
		}
		return List(out), nil
	})
}

func bindUpper() *StdBinding {
	return simple("upper", 1, 1, func(args []Value) (Value, error) {
		return String(strings.ToUpper(args[0].Str)), nil
	})
}

func bindLower() *StdBinding {
	return simple("lower", 1, 1, func(args []Value) (Value, error) {
		return String(strings.ToLower(args[0].Str)), nil
	})
}

func bindTrim() *StdBinding {
	return simple("trim", 1, 1, func(args []Value) (Value, error) {
		return String(strings.TrimSpace(args[0].Str)), nil
	})
}

// bindSort implements `sort(xs)`: a new sorted list, numeric or
// lexicographic depending on the element tag.
func bindSort() *StdBinding {
	return simple("sort", 1, 1, func(args []Value) (Value, error) {
		items, err := itemsOf(args[0])
		if err != nil {
			return Value{}, err
		}
		out := append([]Value(nil), items...)
		sort.SliceStable(out, func(i, j int) bool {
			if isNumeric(out[i]) && isNumeric(out[j]) {
				return asFloat(out[i]) < asFloat(out[j])
			}
			return out[i].Display() < out[j].Display()
		})
		return List(out), nil
	})
}

func bindReverse() *StdBinding {
	return simple("reverse", 1, 1, func(args []Value) (Value, error) {
		items, err := itemsOf(args[0])
		if err != nil {
			return Value{}, err
		}
		out := make([]Value, len(items))
		for i, it := range items {
			out[len(items)-1-i] = it
		}
		return List(out), nil
	})
}

// bindCast implements `cast(v, "typename")`, converting v with Cast.
func bindCast() *StdBinding {
	return simple("cast", 2, 2, func(args []Value) (Value, error) {
		if args[1].Tag != TagString {
			return Value{}, NewInvalidOperationErrorSimple("cast", args[1].Tag)
		}
		return Cast(args[0], args[1].Str)
	})
}

// bindEnv implements `$NAME` variable reads, returning "" for unset
// variables (shell convention, not a *not found* error).
func bindEnv() *StdBinding {
	return simple("env", 1, 1, func(args []Value) (Value, error) {
		return String(os.Getenv(args[0].Str)), nil
	})
}

// bindSetEnv implements `$NAME = value` assignment. The generator pushes
// the value before the name, so args arrive as (value, name).
func bindSetEnv() *StdBinding {
	return simple("setenv", 2, 2, func(args []Value) (Value, error) {
		return args[0], os.Setenv(args[1].Str, args[0].Display())
	})
}

// bindCd implements the `cd` built-in call type.
func bindCd() *StdBinding {
	return simple("cd", 1, 1, func(args []Value) (Value, error) {
		if args[0].Tag != TagString {
			return Value{}, NewInvalidOperationErrorSimple("cd", args[0].Tag)
		}
		if err := os.Chdir(args[0].Str); err != nil {
			return Value{}, NewNotFoundError("directory " + args[0].Str)
		}
		return Nil(), nil
	})
}

// bindScriptPath implements the `scriptPath` built-in: it returns
// os.Args[0], the path the host process was started with. It does not
// know the path or directory of the script being run.
func bindScriptPath() *StdBinding {
	return simple("scriptPath", 0, 0, func(args []Value) (Value, error) {
		return String(os.Args[0]), nil
	})
}

// bindCall implements the `call` built-in: invoke a function reference
// value with a dynamically-built argument list.
func bindCall() *StdBinding {
	return &StdBinding{Name: "call", MinArgs: 1, MaxArgs: -1, VariadicStart: 1,
		Call: func(args []Value, invoke Invoker) (Value, error) {
			fn, err := requireFunc("call", args[0])
			if err != nil {
				return Value{}, err
			}
			return invoke(fn, args[1:])
		}}
}

// bindError implements the `error` built-in: it raises a runtime error
// carrying the user message.
func bindError() *StdBinding {
	return simple("error", 1, 1, func(args []Value) (Value, error) {
		return Value{}, NewRuntimeError(args[0].Display())
	})
}

func bindIndexGet() *StdBinding {
	return simple("__index__", 2, 2, func(args []Value) (Value, error) {
		return Index(args[0], args[1])
	})
}

func bindFieldGet() *StdBinding {
	return simple("__field__", 2, 2, func(args []Value) (Value, error) {
		recv, field := args[0], args[1]
		if recv.Tag != TagStruct {
			return Value{}, NewInvalidOperationErrorSimple("field access", recv.Tag)
		}
		v, ok := recv.Struct.Fields[field.Str]
		if !ok {
			return Value{}, NewNotFoundError("field " + field.Str)
		}
		return v, nil
	})
}

func bindIndexSet() *StdBinding {
	return simple("__index_set__", 3, 3, func(args []Value) (Value, error) {
		return args[2], IndexAssign(args[0], args[1], args[2])
	})
}
