package compiler

import (
	"strings"

	"github.com/wisp-lang/wisp/compiler/hash"
	"github.com/wisp-lang/wisp/lib/runtime"
	"github.com/wisp-lang/wisp/pkg/bytecode"
)

// Generator lowers an analysed expression tree into bytecode pages
// (spec §4.4). One Generator instance is used per compilation; the
// FunctionTable it produces maps each resolved FunctionSymbol to its
// page, living here rather than on FunctionSymbol itself to avoid an
// import cycle between lib/runtime and pkg/bytecode (see spec §9
// "Back-references / cycles").
type Generator struct {
	FunctionTable map[*runtime.FunctionSymbol]*bytecode.Page

	localSlots map[*runtime.VarSymbol]int
	b          *bytecode.Builder
}

func NewGenerator() *Generator {
	return &Generator{FunctionTable: map[*runtime.FunctionSymbol]*bytecode.Page{}}
}

// CompileModule lowers every function declared in m (and, transitively,
// its submodules) into pages, and returns the top-level script's page.
// preRegister runs first over the whole module tree so that a call to a
// function compiled later in this pass -- a forward reference, mutual
// recursion, or plain self-recursion -- already has a stable *Page to
// intern; compileFunction fills each reserved page in place once its body
// is actually lowered.
func (g *Generator) CompileModule(m *Module, topLevel *Function) (*bytecode.Page, error) {
	g.preRegister(m)
	for _, fn := range m.Functions {
		if _, err := g.compileFunction(fn); err != nil {
			return nil, err
		}
	}
	for _, sub := range m.Submodules {
		if _, err := g.CompileModule(sub, nil); err != nil {
			return nil, err
		}
	}
	if topLevel != nil {
		return g.compileFunction(topLevel)
	}
	return nil, nil
}

// preRegister reserves an empty *Page per declared function so emitCall's
// FunctionTable lookup never sees a missing entry, regardless of
// declaration or compilation order (spec §9 "Back-references / cycles").
func (g *Generator) preRegister(m *Module) {
	for _, fn := range m.Functions {
		if fn.Symbol == nil {
			continue
		}
		if _, ok := g.FunctionTable[fn.Symbol]; !ok {
			g.FunctionTable[fn.Symbol] = &bytecode.Page{Name: fn.Name}
		}
	}
	for _, sub := range m.Submodules {
		g.preRegister(sub)
	}
}

func (g *Generator) compileFunction(fn *Function) (*bytecode.Page, error) {
	var page *bytecode.Page
	if fn.Symbol != nil {
		if existing, ok := g.FunctionTable[fn.Symbol]; ok {
			if existing.Code != nil {
				return existing, nil // already compiled
			}
			page = existing // reserved by preRegister: fill in place
		}
	}

	prevLocals := g.localSlots
	prevBuilder := g.b
	g.localSlots = map[*runtime.VarSymbol]int{}
	g.b = bytecode.NewBuilder(fn.Name)

	for i := range fn.Params {
		slot := g.b.AllocLocal()
		if fn.Params[i].Symbol != nil {
			g.localSlots[fn.Params[i].Symbol] = slot
		}
	}
	if err := g.emitDefaultParams(fn.Params); err != nil {
		return nil, err
	}
	g.emitVariadicDefault(fn.Params)
	if err := g.emitBlock(fn.Body); err != nil {
		return nil, err
	}
	g.b.Emit(bytecode.OpRet)
	finished := g.b.Finish()
	finished.Hash = hash.PageHash(finished)

	if page == nil {
		page = finished
		if fn.Symbol != nil {
			g.FunctionTable[fn.Symbol] = page
		}
	} else {
		*page = *finished
	}

	g.localSlots = prevLocals
	g.b = prevBuilder
	return page, nil
}

func (g *Generator) slotFor(sym *runtime.VarSymbol) int {
	if idx, ok := g.localSlots[sym]; ok {
		return idx
	}
	idx := g.b.AllocLocal()
	g.localSlots[sym] = idx
	return idx
}

// emitDefaultParams emits, for each declared parameter carrying a default
// expression, a conditional prologue that fills its already-allocated
// local slot with the default's value when the caller supplied too few
// arguments to reach it (spec §4.3 "Parameters" default-value semantics).
// Params whose Default is nil -- including the trailing variadic slot --
// are left untouched, since the normal argument-copy loop in callFuncRef
// already filled (or zero-filled) them.
func (g *Generator) emitDefaultParams(params []ParamDecl) error {
	for i, p := range params {
		if p.Default == nil {
			continue
		}
		slot := i
		if p.Symbol != nil {
			if s, ok := g.localSlots[p.Symbol]; ok {
				slot = s
			}
		}
		g.b.Emit(bytecode.OpLoadArgCount)
		g.b.EmitU16(bytecode.OpConst, g.b.Intern(runtime.Int(int64(i))))
		g.b.Emit(bytecode.OpGreater)
		skip := g.b.EmitJump(bytecode.OpPopJumpIf)
		if err := g.emit(p.Default); err != nil {
			return err
		}
		g.b.EmitU8(bytecode.OpStoreLocal, byte(slot))
		g.b.Emit(bytecode.OpPop)
		g.b.PatchJump(skip)
	}
	return nil
}

// emitVariadicDefault mirrors emitDefaultParams for the trailing variadic
// parameter itself: finishCallClassification only splices a tail list
// into the call site's arguments when the caller supplied at least as
// many arguments as there are declared non-variadic parameters, so a
// call that falls short of that count (relying on a leading parameter's
// own default) never produces an argument for the variadic slot at all.
// This fills it with an empty list in that case, matching spec §4.3's
// "absent variadic args collect to an empty list".
func (g *Generator) emitVariadicDefault(params []ParamDecl) {
	for i, p := range params {
		if !p.Variadic {
			continue
		}
		slot := i
		if p.Symbol != nil {
			if s, ok := g.localSlots[p.Symbol]; ok {
				slot = s
			}
		}
		g.b.Emit(bytecode.OpLoadArgCount)
		g.b.EmitU16(bytecode.OpConst, g.b.Intern(runtime.Int(int64(i))))
		g.b.Emit(bytecode.OpGreater)
		skip := g.b.EmitJump(bytecode.OpPopJumpIf)
		g.b.EmitU8(bytecode.OpBuildList, 0)
		g.b.EmitU8(bytecode.OpStoreLocal, byte(slot))
		g.b.Emit(bytecode.OpPop)
		g.b.PatchJump(skip)
		return
	}
}

// emitBlock lowers a sequence of statements. Every statement but the
// last, when the block is itself a value-producing context, is popped;
// the generator here always pops non-final root statements and leaves
// the final one on the stack. The trailing ExitBlock carries operand 0
// and leaves the stack unchanged, since only the result remains.
func (g *Generator) emitBlock(body []Expr) error {
	for i, e := range body {
		if err := g.emit(e); err != nil {
			return err
		}
		if i != len(body)-1 {
			g.b.Emit(bytecode.OpPop)
		}
	}
	if len(body) == 0 {
		g.b.EmitU16(bytecode.OpConst, g.internNil())
	}
	g.b.EmitU8(bytecode.OpExitBlock, 0)
	return nil
}

func (g *Generator) internNil() uint16 { return g.b.Intern(runtime.Nil()) }

// emit lowers one expression, leaving exactly one value on the stack.
func (g *Generator) emit(e Expr) error {
	switch n := e.(type) {
	case *Literal:
		g.b.EmitU16(bytecode.OpConst, g.b.Intern(n.Value))
	case *Let:
		if err := g.emit(n.Value); err != nil {
			return err
		}
		slot := g.slotFor(n.Symbol)
		g.b.EmitU8(bytecode.OpStoreLocal, byte(slot))
	case *Variable:
		if n.Symbol == nil { // $-prefixed env var
			g.b.EmitU16(bytecode.OpConst, g.b.Intern(runtime.String(strings.TrimPrefix(n.Name, "$"))))
			g.b.EmitU16U8(bytecode.OpCallStd, g.b.Intern(runtime.String("env")), 1)
			return nil
		}
		if slot, ok := g.localSlots[n.Symbol]; ok {
			g.b.EmitU8(bytecode.OpLoadLocal, byte(slot))
			return nil
		}
		if fn := e.EnclosingFn(); fn != nil && fn.IsClosureFn {
			if idx, captured := g.closureCaptureIndex(n.Symbol, fn); captured {
				g.b.EmitU8(bytecode.OpLoadUpper, byte(idx))
				return nil
			}
		}
		g.b.EmitU8(bytecode.OpLoadLocal, byte(g.slotFor(n.Symbol)))
	case *Binary:
		return g.emitBinary(n)
	case *Unary:
		if err := g.emit(n.Operand); err != nil {
			return err
		}
		if n.Op == UnNeg {
			g.b.Emit(bytecode.OpNegate)
		} else {
			g.b.Emit(bytecode.OpNot)
		}
	case *If:
		return g.emitIf(n)
	case *While:
		return g.emitWhile(n)
	case *For:
		return g.emitFor(n)
	case *Block:
		return g.emitBlock(n.Body)
	case *Tuple:
		for _, it := range n.Items {
			if err := g.emit(it); err != nil {
				return err
			}
		}
		g.b.EmitU8(bytecode.OpBuildTuple, byte(len(n.Items)))
	case *List:
		for _, it := range n.Items {
			if err := g.emit(it); err != nil {
				return err
			}
		}
		if len(n.Items) > 255 {
			g.b.EmitU32(bytecode.OpBuildListBig, uint32(len(n.Items)))
		} else {
			g.b.EmitU8(bytecode.OpBuildList, byte(len(n.Items)))
		}
	case *Dictionary:
		for _, entry := range n.Entries {
			if err := g.emit(entry.Key); err != nil {
				return err
			}
			if err := g.emit(entry.Value); err != nil {
				return err
			}
		}
		g.b.EmitU8(bytecode.OpBuildDict, byte(len(n.Entries)))
	case *RangeExpr:
		if err := g.emit(n.From); err != nil {
			return err
		}
		if err := g.emit(n.To); err != nil {
			return err
		}
		hasStep := n.Step != nil
		if hasStep {
			if err := g.emit(n.Step); err != nil {
				return err
			}
		}
		flag := byte(0)
		if hasStep {
			flag = 1
		}
		g.b.EmitU8(bytecode.OpBuildRange, flag)
	case *Indexer:
		if err := g.emit(n.Receiver); err != nil {
			return err
		}
		if err := g.emit(n.Index); err != nil {
			return err
		}
		g.b.EmitU16U8(bytecode.OpCallStd, g.b.Intern(runtime.String("__index__")), 2)
	case *FieldAccess:
		if err := g.emit(n.Receiver); err != nil {
			return err
		}
		g.b.EmitU16(bytecode.OpConst, g.b.Intern(runtime.String(n.Field)))
		g.b.EmitU16U8(bytecode.OpCallStd, g.b.Intern(runtime.String("__field__")), 2)
	case *StringInterpolation:
		for _, p := range n.Parts {
			if err := g.emit(p); err != nil {
				return err
			}
		}
		g.b.EmitU8(bytecode.OpBuildString, byte(len(n.Parts)))
	case *New:
		return g.emitNew(n)
	case *Call:
		return g.emitCall(n)
	case *FunctionReference:
		return g.emitFunctionReference(n)
	case *Closure:
		return g.emitClosure(n)
	case *Keyword:
		return g.emitKeyword(n)
	case *TypeExpr:
		g.b.EmitU16(bytecode.OpConst, g.b.Intern(runtime.Nil()))
	default:
		return runtime.NewRuntimeErrorf("codegen: unhandled expression kind %T", e)
	}
	return nil
}

func (g *Generator) closureCaptureIndex(sym *runtime.VarSymbol, fn *runtime.FunctionSymbol) (int, bool) {
	names := CapturedVariables(fn)
	for i, name := range names {
		if name == sym.Name {
			return i, true
		}
	}
	return 0, false
}

func (g *Generator) emitBinary(n *Binary) error {
	if n.Op == BinAssign {
		return g.emitAssign(n)
	}
	if n.Op == BinPipe {
		// Pipes compile to sequential calls: the left operand's value was
		// already threaded as argument 0 by the analyser, so the pipe
		// itself lowers to just the right-hand call/closure (spec §4.4).
		return g.emit(n.Right)
	}
	if err := g.emit(n.Left); err != nil {
		return err
	}
	if err := g.emit(n.Right); err != nil {
		return err
	}
	g.b.Emit(binOpOpcode(n.Op))
	return nil
}

func binOpOpcode(op BinaryOp) bytecode.Opcode {
	switch op {
	case BinAdd:
		return bytecode.OpAdd
	case BinSub:
		return bytecode.OpSub
	case BinMul:
		return bytecode.OpMul
	case BinDiv:
		return bytecode.OpDiv
	case BinMod:
		return bytecode.OpMod
	case BinEq:
		return bytecode.OpEqual
	case BinNe:
		return bytecode.OpNotEqual
	case BinGt:
		return bytecode.OpGreater
	case BinGe:
		return bytecode.OpGreaterEqual
	case BinLt:
		return bytecode.OpLess
	case BinLe:
		return bytecode.OpLessEqual
	case BinAnd:
		return bytecode.OpAnd
	case BinOr:
		return bytecode.OpOr
	case BinContains:
		return bytecode.OpContains
	}
	return bytecode.OpAdd
}

func (g *Generator) emitAssign(n *Binary) error {
	if err := g.emit(n.Right); err != nil {
		return err
	}
	switch lhs := n.Left.(type) {
	case *Variable:
		if lhs.Symbol == nil { // $-prefixed env var
			g.b.EmitU16(bytecode.OpConst, g.b.Intern(runtime.String(strings.TrimPrefix(lhs.Name, "$"))))
			g.b.EmitU16U8(bytecode.OpCallStd, g.b.Intern(runtime.String("setenv")), 2)
			return nil
		}
		if slot, ok := g.localSlots[lhs.Symbol]; ok {
			g.b.EmitU8(bytecode.OpStoreLocal, byte(slot))
			return nil
		}
		if fn := n.EnclosingFn(); fn != nil && fn.IsClosureFn {
			if idx, captured := g.closureCaptureIndex(lhs.Symbol, fn); captured {
				g.b.EmitU8(bytecode.OpStoreUpper, byte(idx))
				return nil
			}
		}
		g.b.EmitU8(bytecode.OpStoreLocal, byte(g.slotFor(lhs.Symbol)))
	case *Indexer:
		if err := g.emit(lhs.Receiver); err != nil {
			return err
		}
		if err := g.emit(lhs.Index); err != nil {
			return err
		}
		g.b.EmitU16U8(bytecode.OpCallStd, g.b.Intern(runtime.String("__index_set__")), 3)
	}
	return nil
}

func (g *Generator) emitIf(n *If) error {
	if err := g.emit(n.Cond); err != nil {
		return err
	}
	elseJump := g.b.EmitJump(bytecode.OpPopJumpIfNot)
	if err := g.emitBlock(n.Then); err != nil {
		return err
	}
	endJump := g.b.EmitJump(bytecode.OpJump)
	g.b.PatchJump(elseJump)
	if n.Else != nil {
		if err := g.emitBlock(n.Else); err != nil {
			return err
		}
	} else {
		g.b.EmitU16(bytecode.OpConst, g.internNil())
	}
	g.b.PatchJump(endJump)
	return nil
}

func (g *Generator) emitWhile(n *While) error {
	loopHead := g.b.Here()
	if err := g.emit(n.Cond); err != nil {
		return err
	}
	exitJump := g.b.EmitJump(bytecode.OpPopJumpIfNot)
	if err := g.emitBlock(n.Body); err != nil {
		return err
	}
	g.b.Emit(bytecode.OpPop) // discard body result; while yields nil
	g.b.EmitBackwardJump(loopHead)
	g.b.PatchJump(exitJump)
	g.b.EmitU16(bytecode.OpConst, g.internNil())
	return nil
}

func (g *Generator) emitFor(n *For) error {
	if err := g.emit(n.Iterable); err != nil {
		return err
	}
	g.b.Emit(bytecode.OpGetIter)
	loopHead := g.b.Here()
	exitJump := g.b.EmitJump(bytecode.OpForIter)
	// ForIter pushed one value (a tuple for the two-variable form); unpack
	// and bind it to the loop variable slot(s) before the body runs.
	if len(n.Symbols) > 1 {
		g.b.EmitU8(bytecode.OpUnpack, byte(len(n.Symbols)))
	}
	for i := len(n.Symbols) - 1; i >= 0; i-- {
		g.b.EmitU8(bytecode.OpStoreLocal, byte(g.slotFor(n.Symbols[i])))
		if i > 0 {
			g.b.Emit(bytecode.OpPop)
		}
	}
	g.b.Emit(bytecode.OpPop)
	if err := g.emitBlock(n.Body); err != nil {
		return err
	}
	g.b.Emit(bytecode.OpPop)
	g.b.EmitBackwardJump(loopHead)
	g.b.PatchJump(exitJump)
	g.b.Emit(bytecode.OpEndFor)
	g.b.EmitU16(bytecode.OpConst, g.internNil())
	return nil
}

func (g *Generator) emitKeyword(n *Keyword) error {
	switch n.Word {
	case "return":
		if n.Value != nil {
			if err := g.emit(n.Value); err != nil {
				return err
			}
		} else {
			g.b.EmitU16(bytecode.OpConst, g.internNil())
		}
		g.b.Emit(bytecode.OpRet)
	default:
		g.b.EmitU16(bytecode.OpConst, g.internNil())
	}
	return nil
}

func (g *Generator) emitNew(n *New) error {
	for _, a := range n.Args {
		if err := g.emit(a); err != nil {
			return err
		}
	}
	if n.ResolvedStruct != nil {
		td := &runtime.TypeDescriptor{Name: n.ResolvedStruct.Name, FieldNames: n.ResolvedStruct.FieldNames, MinArgs: n.ResolvedStruct.MinArgs, MaxArgs: n.ResolvedStruct.MaxArgs}
		idx := g.b.Intern(runtime.Type(td))
		g.b.EmitU16U8(bytecode.OpNew, idx, byte(len(n.Args)))
		return nil
	}
	td := &runtime.TypeDescriptor{Name: n.StdStructName, MinArgs: 0, MaxArgs: -1}
	idx := g.b.Intern(runtime.Type(td))
	g.b.EmitU16U8(bytecode.OpNew, idx, byte(len(n.Args)))
	return nil
}

// emitClosure builds a closure value: a plain function reference pushed
// first, followed by one value per captured name (looked up in the
// enclosing scope's already-allocated slots), bound together by
// PushArgsToRef into a FuncRef carrying that value snapshot as its
// Captured array.
func (g *Generator) emitClosure(n *Closure) error {
	page, err := g.compileClosurePage(n)
	if err != nil {
		return err
	}
	fr := runtime.NewFuncRefValue(n.Symbol.Name, page)
	g.b.EmitU16(bytecode.OpConst, g.b.Intern(fr))
	for _, name := range n.CapturedVariables {
		if sym, ok := g.findLocalByName(name); ok {
			g.b.EmitU8(bytecode.OpLoadLocal, byte(g.slotFor(sym)))
		} else {
			g.b.EmitU16(bytecode.OpConst, g.internNil())
		}
	}
	g.b.EmitU8(bytecode.OpPushArgsToRef, byte(len(n.CapturedVariables)))
	g.b.Emit(bytecode.OpPushClosureToRef)
	return nil
}

// findLocalByName resolves a captured variable by name among the slots
// already allocated in the currently-compiling function/closure, since
// the analyser's capture set only records names (a name, not an owning
// pointer, crosses the scope boundary into the closure).
func (g *Generator) findLocalByName(name string) (*runtime.VarSymbol, bool) {
	for sym := range g.localSlots {
		if sym.Name == name {
			return sym, true
		}
	}
	return nil, false
}

func (g *Generator) compileClosurePage(n *Closure) (*bytecode.Page, error) {
	prevLocals := g.localSlots
	prevBuilder := g.b
	g.localSlots = map[*runtime.VarSymbol]int{}
	g.b = bytecode.NewBuilder("<closure>")

	for i := range n.Params {
		slot := g.b.AllocLocal()
		if n.Params[i].Symbol != nil {
			g.localSlots[n.Params[i].Symbol] = slot
		}
	}
	if err := g.emitDefaultParams(n.Params); err != nil {
		return nil, err
	}
	g.emitVariadicDefault(n.Params)
	if err := g.emitBlock(n.Body); err != nil {
		return nil, err
	}
	g.b.Emit(bytecode.OpRet)
	page := g.b.Finish()
	page.Hash = hash.PageHash(page)

	g.localSlots = prevLocals
	g.b = prevBuilder
	return page, nil
}

func (g *Generator) emitFunctionReference(n *FunctionReference) error {
	switch n.Type {
	case CallStdFunction:
		g.b.EmitU16(bytecode.OpConst, g.b.Intern(runtime.NewFuncRefValue(n.Std.Name, nil)))
	case CallFunction:
		page := g.FunctionTable[n.Function]
		g.b.EmitU16(bytecode.OpConst, g.b.Intern(runtime.NewFuncRefValue(n.Function.Name, page)))
	default:
		name := n.Path[len(n.Path)-1]
		g.b.EmitU16(bytecode.OpConst, g.b.Intern(runtime.NewProgramRefValue(name)))
	}
	return nil
}

// emitCall lowers one call site using the opcode family selected by the
// analyser-assigned CallType (spec §4.4).
func (g *Generator) emitCall(n *Call) error {
	switch n.Type {
	case CallBuiltInCd:
		return g.emitBuiltinStd(n, "cd")
	case CallBuiltInExec:
		for _, a := range n.Args {
			if err := g.emit(a); err != nil {
				return err
			}
		}
		g.b.EmitU8(bytecode.OpExecCall, byte(len(n.Args)))
		return nil
	case CallBuiltInScriptPath:
		return g.emitBuiltinStd(n, "scriptPath")
	case CallBuiltInClosure:
		return g.emitBuiltinClosureInvoke(n)
	case CallBuiltInCall:
		return g.emitBuiltinStd(n, "call")
	case CallBuiltInError:
		return g.emitBuiltinStd(n, "error")
	case CallStdFunction:
		for _, a := range n.Args {
			if err := g.emit(a); err != nil {
				return err
			}
		}
		argc := len(n.Args)
		if n.Closure != nil {
			if err := g.emitClosure(n.Closure); err != nil {
				return err
			}
			argc++
		}
		g.b.EmitU16U8(bytecode.OpCallStd, g.b.Intern(runtime.String(n.Std.Name)), byte(argc))
		return nil
	case CallFunction:
		for _, a := range n.Args {
			if err := g.emit(a); err != nil {
				return err
			}
		}
		argc := len(n.Args)
		if n.Closure != nil {
			// The reserved `closure` parameter is always declared last, so
			// its bound value is pushed last too.
			if err := g.emitClosure(n.Closure); err != nil {
				return err
			}
			argc++
		}
		page := g.FunctionTable[n.Function]
		idx := g.b.Intern(runtime.NewFuncRefValue(n.Function.Name, page))
		op := bytecode.OpCall
		if n.IsRootExpr() {
			op = bytecode.OpMaybeRootCall
		}
		g.b.EmitU16U8(op, idx, byte(argc))
		return nil
	case CallProgram:
		// The piped-in value sits beneath the arguments: the VM pops the
		// argc arguments first, then the piped value.
		hasPiped := n.PipedFrom != nil
		if hasPiped {
			if err := g.emit(n.PipedFrom); err != nil {
				return err
			}
		}
		for _, a := range n.Args {
			if err := g.emit(a); err != nil {
				return err
			}
		}
		idx := g.b.Intern(runtime.String(n.ProgramName))
		op := bytecode.OpCallProgram
		if n.IsRootExpr() {
			op = bytecode.OpMaybeRootCallProgram
		}
		g.b.EmitProgramCall(op, idx, byte(len(n.Args)), hasPiped)
		return nil
	default:
		return runtime.NewRuntimeErrorf("codegen: call %v has no classification", n.Path)
	}
}

func (g *Generator) emitBuiltinStd(n *Call, stdName string) error {
	for _, a := range n.Args {
		if err := g.emit(a); err != nil {
			return err
		}
	}
	g.b.EmitU16U8(bytecode.OpCallStd, g.b.Intern(runtime.String(stdName)), byte(len(n.Args)))
	return nil
}

// emitBuiltinClosureInvoke lowers the built-in `closure()` call: it
// invokes the value bound to the enclosing function's reserved `closure`
// parameter, legal only where the analyser has already confirmed that
// parameter is declared.
func (g *Generator) emitBuiltinClosureInvoke(n *Call) error {
	if sym, ok := g.findLocalByName("closure"); ok {
		g.b.EmitU8(bytecode.OpLoadLocal, byte(g.slotFor(sym)))
	} else {
		g.b.EmitU16(bytecode.OpConst, g.internNil())
	}
	for _, a := range n.Args {
		if err := g.emit(a); err != nil {
			return err
		}
	}
	g.b.EmitU8(bytecode.OpResolveArgumentsDynamically, byte(len(n.Args)))
	g.b.Emit(bytecode.OpDynamicCall)
	return nil
}
