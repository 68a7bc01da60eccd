package bytecode

import (
	"encoding/binary"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
	"github.com/wisp-lang/wisp/lib/runtime"
)

var log = commonlog.GetLogger("wisp.vm")

// Frame is the VM's call frame (spec §3 "Call frame"): the current page,
// instruction offset, locals, the closure's captured-variable snapshot
// (if any), and whether this frame's trailing root-marked expression may
// stream its result to the shell's stdout (spec §4.4 "Root call").
type Frame struct {
	ID       uuid.UUID
	Page     *Page
	IP       int
	Locals   []runtime.Value
	Captured []runtime.Value
	Root     bool

	// ArgCount is the number of arguments the caller actually supplied,
	// as opposed to len(Locals) which also counts parameters filled by a
	// default-value prologue or left nil. Read by OpLoadArgCount.
	ArgCount int
}

// VM is the stack-based Virtual Machine / Executor (spec §4.5). It holds
// an operand stack and a call-frame stack, and is constructed with the
// host-provided collaborators it needs to dispatch StdFunction and
// Program calls without pkg/bytecode importing compiler or creating a
// cycle with lib/runtime.
type VM struct {
	Std    *runtime.StdTable
	Shell  *runtime.ShellState
	Stdout io.Writer

	stack  []runtime.Value
	frames []*Frame
	iters  []runtime.Iterator
}

func NewVM(std *runtime.StdTable, shell *runtime.ShellState) *VM {
	return &VM{Std: std, Shell: shell, Stdout: os.Stdout}
}

func (vm *VM) push(v runtime.Value) { vm.stack = append(vm.stack, v) }

func (vm *VM) pop() runtime.Value {
	n := len(vm.stack)
	v := vm.stack[n-1]
	vm.stack = vm.stack[:n-1]
	return v
}

func (vm *VM) popN(n int) []runtime.Value {
	out := make([]runtime.Value, n)
	copy(out, vm.stack[len(vm.stack)-n:])
	vm.stack = vm.stack[:len(vm.stack)-n]
	return out
}

func (vm *VM) top() runtime.Value { return vm.stack[len(vm.stack)-1] }

func (vm *VM) frame() *Frame { return vm.frames[len(vm.frames)-1] }

// Execute is the public entry point (spec §4.5): it runs page as the
// top-level script and returns its final value.
func (vm *VM) Execute(page *Page) (runtime.Value, error) {
	f := &Frame{ID: uuid.New(), Page: page, Locals: make([]runtime.Value, page.NumLocals), Root: true}
	vm.frames = append(vm.frames, f)
	v, err := vm.run()
	if err != nil {
		return runtime.Value{}, err
	}
	return v, nil
}

// run executes frames until the initial frame returns.
func (vm *VM) run() (runtime.Value, error) {
	baseDepth := len(vm.frames) - 1
	var result runtime.Value
	for len(vm.frames) > baseDepth {
		f := vm.frame()
		if f.IP >= len(f.Page.Code) {
			// Implicit return of whatever is on top of this frame's stack
			// portion (fell off the end of the page without an explicit Ret).
			result = vm.popFrameResult()
			vm.frames = vm.frames[:len(vm.frames)-1]
			if len(vm.frames) > baseDepth {
				vm.push(result)
			}
			continue
		}
		op := Opcode(f.Page.Code[f.IP])
		ret, done, err := vm.step(f, op)
		if err != nil {
			return runtime.Value{}, err
		}
		if done {
			result = ret
			vm.frames = vm.frames[:len(vm.frames)-1]
			if len(vm.frames) > baseDepth {
				vm.push(result)
			}
		}
	}
	return result, nil
}

func (vm *VM) popFrameResult() runtime.Value {
	if len(vm.stack) == 0 {
		return runtime.Nil()
	}
	return vm.pop()
}

func (vm *VM) u16(f *Frame, at int) uint16 { return binary.BigEndian.Uint16(f.Page.Code[at : at+2]) }
func (vm *VM) u32(f *Frame, at int) uint32 { return binary.BigEndian.Uint32(f.Page.Code[at : at+4]) }
func (vm *VM) i16(f *Frame, at int) int16  { return int16(vm.u16(f, at)) }

// step executes one instruction. It returns (value, true, nil) when the
// instruction is a Ret that ends the frame.
func (vm *VM) step(f *Frame, op Opcode) (runtime.Value, bool, error) {
	switch op {
	case OpNop:
		f.IP++
	case OpPop:
		vm.pop()
		f.IP++
	case OpPopArgs:
		n := int(f.Page.Code[f.IP+1])
		vm.stack = vm.stack[:len(vm.stack)-n]
		f.IP += 2
	case OpUnpack:
		n := int(f.Page.Code[f.IP+1])
		v := vm.pop()
		items := unpackItems(v)
		for i := 0; i < n && i < len(items); i++ {
			vm.push(items[i])
		}
		f.IP += 2
	case OpExitBlock:
		// watermark trim: operand is the number of extra values below the
		// result to discard (codegen ensures only the result sits above
		// the watermark, so this is a no-op at the stack level here).
		f.IP += 2

	case OpLoadLocal:
		idx := int(f.Page.Code[f.IP+1])
		vm.push(f.Locals[idx])
		f.IP += 2
	case OpStoreLocal:
		idx := int(f.Page.Code[f.IP+1])
		f.Locals[idx] = vm.top()
		f.IP += 2
	case OpLoadUpper:
		idx := int(f.Page.Code[f.IP+1])
		vm.push(f.Captured[idx])
		f.IP += 2
	case OpStoreUpper:
		idx := int(f.Page.Code[f.IP+1])
		f.Captured[idx] = vm.top()
		f.IP += 2
	case OpLoadArgCount:
		vm.push(runtime.Int(int64(f.ArgCount)))
		f.IP++

	case OpConst:
		idx := vm.u16(f, f.IP+1)
		vm.push(f.Page.Constants[idx])
		f.IP += 3

	case OpAdd, OpSub, OpMul, OpDiv, OpMod, OpEqual, OpNotEqual, OpGreater, OpGreaterEqual, OpLess, OpLessEqual, OpAnd, OpOr, OpContains:
		b := vm.pop()
		a := vm.pop()
		res, err := runtime.BinaryOp(opToOperatorKind(op), a, b)
		if err != nil {
			return runtime.Value{}, false, err
		}
		vm.push(res)
		f.IP++
	case OpNegate:
		a := vm.pop()
		if a.Tag == runtime.TagFloat {
			vm.push(runtime.Float(-a.Float))
		} else {
			vm.push(runtime.Int(-a.Int))
		}
		f.IP++
	case OpNot:
		a := vm.pop()
		vm.push(runtime.Bool(!a.Truthy()))
		f.IP++

	case OpJump:
		off := vm.i16(f, f.IP+1)
		f.IP = f.IP + 3 + int(off)
	case OpJumpBackward:
		off := vm.i16(f, f.IP+1)
		f.IP = f.IP + 3 - int(off)
	case OpJumpIf:
		off := vm.i16(f, f.IP+1)
		if vm.top().Truthy() {
			f.IP = f.IP + 3 + int(off)
		} else {
			f.IP += 3
		}
	case OpJumpIfNot:
		off := vm.i16(f, f.IP+1)
		if !vm.top().Truthy() {
			f.IP = f.IP + 3 + int(off)
		} else {
			f.IP += 3
		}
	case OpPopJumpIf:
		off := vm.i16(f, f.IP+1)
		if vm.pop().Truthy() {
			f.IP = f.IP + 3 + int(off)
		} else {
			f.IP += 3
		}
	case OpPopJumpIfNot:
		off := vm.i16(f, f.IP+1)
		if !vm.pop().Truthy() {
			f.IP = f.IP + 3 + int(off)
		} else {
			f.IP += 3
		}
	case OpRet:
		return vm.popFrameResult(), true, nil

	case OpGetIter:
		v := vm.pop()
		it, err := runtime.GetIterator(v)
		if err != nil {
			return runtime.Value{}, false, err
		}
		vm.iters = append(vm.iters, it)
		f.IP++
	case OpForIter:
		off := vm.i16(f, f.IP+1)
		it := vm.iters[len(vm.iters)-1]
		val, ok, err := it.Next()
		if err != nil {
			return runtime.Value{}, false, err
		}
		if !ok {
			f.IP = f.IP + 3 + int(off)
		} else {
			vm.push(val)
			f.IP += 3
		}
	case OpEndFor:
		vm.iters = vm.iters[:len(vm.iters)-1]
		f.IP++

	case OpBuildTuple:
		n := int(f.Page.Code[f.IP+1])
		vm.push(runtime.Tuple(vm.popN(n)))
		f.IP += 2
	case OpBuildList:
		n := int(f.Page.Code[f.IP+1])
		vm.push(runtime.List(vm.popN(n)))
		f.IP += 2
	case OpBuildListBig:
		n := int(vm.u32(f, f.IP+1))
		vm.push(runtime.List(vm.popN(n)))
		f.IP += 5
	case OpBuildSet:
		n := int(f.Page.Code[f.IP+1])
		items := vm.popN(n)
		s := runtime.NewSet()
		for _, it := range items {
			s.Add(it)
		}
		vm.push(runtime.Set(s))
		f.IP += 2
	case OpBuildDict:
		n := int(f.Page.Code[f.IP+1]) // number of key/value pairs
		items := vm.popN(n * 2)
		d := runtime.NewDict()
		for i := 0; i < len(items); i += 2 {
			d.Set(items[i].Str, items[i+1])
		}
		vm.push(runtime.Dict(d))
		f.IP += 2
	case OpBuildRange:
		hasStep := f.Page.Code[f.IP+1] != 0
		var step runtime.Value
		if hasStep {
			step = vm.pop()
		} else {
			step = runtime.Int(1)
		}
		to := vm.pop()
		from := vm.pop()
		vm.push(runtime.Range(from.Int, to.Int, step.Int))
		f.IP += 2
	case OpBuildString:
		n := int(f.Page.Code[f.IP+1])
		parts := vm.popN(n)
		s := ""
		for _, p := range parts {
			s += p.Display()
		}
		vm.push(runtime.String(s))
		f.IP += 2
	case OpStructConst:
		idx := vm.u16(f, f.IP+1)
		argc := int(f.Page.Code[f.IP+3])
		args := vm.popN(argc)
		td := f.Page.Constants[idx].Type
		inst := &runtime.StructInstance{TypeName: td.Name, Fields: map[string]runtime.Value{}, Order: append([]string(nil), td.FieldNames...)}
		for i, name := range td.FieldNames {
			if i < len(args) {
				inst.Fields[name] = args[i]
			} else {
				inst.Fields[name] = runtime.Nil()
			}
		}
		vm.push(runtime.Struct(inst))
		f.IP += 4
	case OpNew:
		idx := vm.u16(f, f.IP+1)
		argc := int(f.Page.Code[f.IP+3])
		args := vm.popN(argc)
		td := f.Page.Constants[idx].Type
		inst := &runtime.StructInstance{TypeName: td.Name, Fields: map[string]runtime.Value{}, Order: append([]string(nil), td.FieldNames...)}
		for i, name := range td.FieldNames {
			if i < len(args) {
				inst.Fields[name] = args[i]
			} else {
				inst.Fields[name] = runtime.Nil()
			}
		}
		vm.push(runtime.Struct(inst))
		f.IP += 4
	case OpGlob:
		pattern := vm.pop()
		matches, err := globExpand(pattern.Str)
		if err != nil {
			return runtime.Value{}, false, err
		}
		vm.push(matches)
		f.IP++

	case OpCall, OpRootCall, OpMaybeRootCall:
		idx := vm.u16(f, f.IP+1)
		argc := int(f.Page.Code[f.IP+3])
		args := vm.popN(argc)
		callee := f.Page.Constants[idx]
		root := op == OpRootCall || (op == OpMaybeRootCall && f.Root)
		if err := vm.callFuncRef(callee.Func, args, root); err != nil {
			return runtime.Value{}, false, err
		}
		f.IP += 4

	case OpCallStd:
		idx := vm.u16(f, f.IP+1)
		argc := int(f.Page.Code[f.IP+3])
		args := vm.popN(argc)
		name := f.Page.Constants[idx].Str
		res, err := vm.callStd(name, args)
		if err != nil {
			return runtime.Value{}, false, err
		}
		vm.push(res)
		f.IP += 4

	case OpCallProgram, OpRootCallProgram, OpMaybeRootCallProgram:
		idx := vm.u16(f, f.IP+1)
		argc := int(f.Page.Code[f.IP+3])
		hasPiped := f.Page.Code[f.IP+4] != 0
		args := vm.popN(argc)
		var piped *runtime.Value
		if hasPiped {
			p := vm.pop()
			piped = &p
		}
		name := f.Page.Constants[idx].Str
		root := op == OpRootCallProgram || (op == OpMaybeRootCallProgram && f.Root)
		res, err := vm.callProgram(name, args, piped, root)
		if err != nil {
			return runtime.Value{}, false, err
		}
		vm.push(res)
		f.IP += 5

	case OpResolveArgumentsDynamically:
		argc := int(f.Page.Code[f.IP+1])
		args := vm.popN(argc)
		vm.push(runtime.List(args))
		f.IP += 2
	case OpDynamicCall:
		argsList := vm.pop()
		callee := vm.pop()
		if err := vm.callFuncRef(callee.Func, argsList.List.Items, false); err != nil {
			return runtime.Value{}, false, err
		}
		f.IP++

	case OpPushArgsToRef:
		n := int(f.Page.Code[f.IP+1])
		args := vm.popN(n)
		callee := vm.pop()
		bound := &runtime.FuncRef{Name: callee.Func.Name, Page: callee.Func.Page, Captured: args, IsProgram: callee.Func.IsProgram, ProgName: callee.Func.ProgName}
		vm.push(runtime.Func(bound))
		f.IP += 2
	case OpPushClosureToRef:
		// already-built closure value is left as-is; this opcode exists so
		// the generator can mark a closure as "referenceable" without an
		// extra allocation.
		f.IP++

	case OpExecCall:
		argc := int(f.Page.Code[f.IP+1])
		all := vm.popN(argc)
		if len(all) == 0 || all[0].Tag != runtime.TagString {
			return runtime.Value{}, false, runtime.NewRuntimeError("exec requires a program name")
		}
		res, err := vm.callProgram(all[0].Str, all[1:], nil, true)
		if err != nil {
			return runtime.Value{}, false, err
		}
		vm.push(res)
		f.IP += 2

	default:
		return runtime.Value{}, false, runtime.NewRuntimeErrorf("unknown opcode %v", op)
	}
	return runtime.Value{}, false, nil
}

func unpackItems(v runtime.Value) []runtime.Value {
	switch v.Tag {
	case runtime.TagList:
		return v.List.Items
	case runtime.TagTuple:
		return v.Tuple
	default:
		return []runtime.Value{v}
	}
}

func opToOperatorKind(op Opcode) runtime.OperatorKind {
	switch op {
	case OpAdd:
		return runtime.OpAdd
	case OpSub:
		return runtime.OpSub
	case OpMul:
		return runtime.OpMul
	case OpDiv:
		return runtime.OpDiv
	case OpMod:
		return runtime.OpMod
	case OpEqual:
		return runtime.OpEqual
	case OpNotEqual:
		return runtime.OpNotEqual
	case OpGreater:
		return runtime.OpGreater
	case OpGreaterEqual:
		return runtime.OpGreaterEqual
	case OpLess:
		return runtime.OpLess
	case OpLessEqual:
		return runtime.OpLessEqual
	case OpAnd:
		return runtime.OpAnd
	case OpOr:
		return runtime.OpOr
	case OpContains:
		return runtime.OpContains
	}
	return runtime.OpAdd
}

// callFuncRef dispatches a resolved callable value: a Program reference,
// a closure (Captured != nil), or a plain user function page.
func (vm *VM) callFuncRef(fr *runtime.FuncRef, args []runtime.Value, root bool) error {
	if fr.IsProgram {
		res, err := vm.callProgram(fr.ProgName, args, nil, root)
		if err != nil {
			return err
		}
		vm.push(res)
		return nil
	}
	page, ok := fr.Page.(*Page)
	if !ok || page == nil {
		return runtime.NewRuntimeErrorf("function reference %q has no page", fr.Name)
	}
	nf := &Frame{ID: uuid.New(), Page: page, Locals: make([]runtime.Value, page.NumLocals), Captured: fr.Captured, Root: root, ArgCount: len(args)}
	for i, a := range args {
		if i < len(nf.Locals) {
			nf.Locals[i] = a
		}
	}
	vm.frames = append(vm.frames, nf)
	return nil
}

// callStd marshals arguments and invokes the host callable (spec §4.5
// "StdFunction"), handing it vm.invoke so bindings like map/filter can
// call back into a closure argument.
func (vm *VM) callStd(name string, args []runtime.Value) (runtime.Value, error) {
	b, ok := vm.Std.Lookup(name)
	if !ok {
		return runtime.Value{}, runtime.NewNotFoundError("std function " + name)
	}
	return b.Call(args, vm.invoke)
}

// invoke runs fr to completion with args and returns its result,
// reentering run() on a frame pushed above the current one. Used by
// standard bindings that take a closure argument.
func (vm *VM) invoke(fr *runtime.FuncRef, args []runtime.Value) (runtime.Value, error) {
	if fr.IsProgram {
		return vm.callProgram(fr.ProgName, args, nil, false)
	}
	page, ok := fr.Page.(*Page)
	if !ok || page == nil {
		return runtime.Value{}, runtime.NewRuntimeErrorf("function reference %q has no page", fr.Name)
	}
	nf := &Frame{ID: uuid.New(), Page: page, Locals: make([]runtime.Value, page.NumLocals), Captured: fr.Captured, ArgCount: len(args)}
	for i, a := range args {
		if i < len(nf.Locals) {
			nf.Locals[i] = a
		}
	}
	vm.frames = append(vm.frames, nf)
	return vm.run()
}

// callProgram constructs a Process Context and dispatches Start or
// StartWithRedirect depending on root (spec §4.5 "Program").
func (vm *VM) callProgram(name string, args []runtime.Value, piped *runtime.Value, root bool) (runtime.Value, error) {
	argv := make([]string, len(args))
	for i, a := range args {
		argv[i] = a.Display()
	}
	ctx := runtime.NewProcessContext(vm.Shell, name, argv)
	log.Debug("dispatching program call", "program", name, "root", root)
	if root {
		code, err := ctx.Start(piped)
		if err != nil {
			return runtime.Value{}, err
		}
		return runtime.Int(int64(code)), nil
	}
	pv, err := ctx.StartWithRedirect(piped)
	if err != nil {
		return runtime.Value{}, err
	}
	return runtime.Pipe(pv), nil
}

func globExpand(pattern string) (runtime.Value, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return runtime.Value{}, runtime.NewRuntimeErrorf("glob %q: %v", pattern, err)
	}
	items := make([]runtime.Value, len(matches))
	for i, m := range matches {
		items[i] = runtime.String(m)
	}
	return runtime.List(items), nil
}
