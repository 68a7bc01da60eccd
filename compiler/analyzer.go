package compiler

import (
	"github.com/wisp-lang/wisp/lib/runtime"
)

// builtInNames is the set of call names that short-circuit resolution
// and are never shadowed (spec §4.1/§4.3).
var builtInNames = map[string]CallType{
	"cd":         CallBuiltInCd,
	"exec":       CallBuiltInExec,
	"scriptPath": CallBuiltInScriptPath,
	"closure":    CallBuiltInClosure,
	"call":       CallBuiltInCall,
	"error":      CallBuiltInError,
}

// Analyzer implements spec §4.3: it walks a parsed expression tree,
// resolves identifiers, classifies call sites, validates arities, and
// populates closure capture sets.
type Analyzer struct {
	Std *runtime.StdTable

	// funcNodes maps a resolved FunctionSymbol back to the AST node that
	// defines it, so imported functions (declared in another module) can
	// still be walked from here. Kept on the analyser, not on
	// FunctionSymbol itself, so lib/runtime never imports this package.
	funcNodes map[*runtime.FunctionSymbol]*Function
}

func NewAnalyzer(std *runtime.StdTable) *Analyzer {
	return &Analyzer{Std: std, funcNodes: map[*runtime.FunctionSymbol]*Function{}}
}

// err attaches the node's source position to cause, matching spec §4.3's "raise ... with the position of the
// last visited expression".
func (a *Analyzer) err(e Expr, cause error) error {
	return runtime.WithPosition(cause, e.Pos().toRuntime())
}

// DeclareModule registers every function, struct, and submodule in m's
// tree with its runtime.ModuleScope, and resolves m's import statements,
// all before any body is analysed. This is the declaration pass the
// parser is expected to drive in a full pipeline (spec §4.1 "name
// resolution"); AnalyzeModule only ever reads from an already-populated
// scope tree, so this must run first.
func (a *Analyzer) DeclareModule(m *Module) error {
	if err := a.declareModuleTree(m, nil); err != nil {
		return err
	}
	return a.resolveImports(m)
}

func (a *Analyzer) declareModuleTree(m *Module, parent *runtime.ModuleScope) error {
	if m.Scope == nil {
		m.Scope = runtime.NewModuleScope(m.Name, parent)
		if parent != nil {
			parent.DeclareSubmodule(m.Scope)
		}
	}
	for _, st := range m.Structs {
		sym := &runtime.StructSymbol{Name: st.Name, FieldNames: st.FieldNames, MinArgs: len(st.FieldNames), MaxArgs: len(st.FieldNames)}
		if err := m.Scope.DeclareStruct(sym); err != nil {
			return a.err(st, err)
		}
		st.Symbol = sym
	}
	for _, fn := range m.Functions {
		if err := a.DeclareFunction(m.Scope, fn, ToRuntimeParams(fn.Params)); err != nil {
			return err
		}
	}
	for _, sub := range m.Submodules {
		if err := a.declareModuleTree(sub, m.Scope); err != nil {
			return err
		}
	}
	return nil
}

// resolveImports walks m's tree a second time, once every module's
// symbol table already exists, and wires each ImportSpec's declared
// target(s) into the importing scope (spec §4.1 "declared-then-imported"
// lookup order).
func (a *Analyzer) resolveImports(m *Module) error {
	for _, imp := range m.Imports {
		target, err := runtime.ResolveModulePath(m.Scope, imp.Path)
		if err != nil {
			return a.err(moduleAsExpr(m), err)
		}
		if len(imp.Members) == 0 {
			m.Scope.ImportSubmodule(target)
			continue
		}
		for _, name := range imp.Members {
			if fn, ok := target.LookupFunction(name, false); ok {
				m.Scope.ImportFunction(fn)
				continue
			}
			if st, ok := target.LookupStruct(name, false); ok {
				m.Scope.ImportStruct(st)
				continue
			}
			return a.err(moduleAsExpr(m), runtime.NewNotFoundError("import member "+name))
		}
	}
	for _, sub := range m.Submodules {
		if err := a.resolveImports(sub); err != nil {
			return err
		}
	}
	return nil
}

// moduleAsExpr lets import errors reuse Analyzer.err's position-tagging
// plumbing even though Module itself carries no meaningful source span.
func moduleAsExpr(m *Module) Expr { return m }

// AnalyzeModule implements spec §4.3's module traversal: mark analysed,
// analyse declared+imported functions in their home scope, then recurse
// into submodules not yet analysed. Import cycles terminate because
// IsAnalysed only ever transitions false->true (spec §8).
func (a *Analyzer) AnalyzeModule(m *Module) error {
	if m.Scope.IsAnalysed {
		return nil
	}
	m.Scope.IsAnalysed = true

	for _, fn := range m.Scope.Functions {
		if node, ok := a.funcNodes[fn]; ok {
			if err := a.AnalyzeFunction(node, fn.Module); err != nil {
				return err
			}
		}
	}
	for _, fn := range m.Scope.ImportedFunctions {
		if node, ok := a.funcNodes[fn]; ok {
			if err := a.AnalyzeFunction(node, fn.Module); err != nil {
				return err
			}
		}
	}

	var children []*runtime.ModuleScope
	for _, sub := range m.Submodules {
		children = append(children, sub.Scope)
	}
	for _, sub := range m.Scope.ImportedSubmodules {
		children = append(children, sub)
	}
	for _, sub := range children {
		if sub.IsAnalysed {
			continue
		}
		subModule := a.moduleByScope(m, sub)
		if subModule != nil {
			if err := a.AnalyzeModule(subModule); err != nil {
				return err
			}
		} else {
			sub.IsAnalysed = true // imported module with no local AST handle: trust upstream analysis
		}
	}
	return nil
}

func (a *Analyzer) moduleByScope(parent *Module, scope *runtime.ModuleScope) *Module {
	for _, sub := range parent.Submodules {
		if sub.Scope == scope {
			return sub
		}
	}
	return nil
}

// DeclareFunction registers fn's symbol in module and remembers the AST
// node so AnalyzeModule can reach its body later.
func (a *Analyzer) DeclareFunction(module *runtime.ModuleScope, fn *Function, params []runtime.Param) error {
	sym := &runtime.FunctionSymbol{Name: fn.Name, Params: params}
	for _, p := range params {
		if p.IsClosure {
			sym.DeclaresClosureParam = true
		}
	}
	if err := module.DeclareFunction(sym); err != nil {
		return a.err(fn, err)
	}
	fn.Symbol = sym
	a.funcNodes[sym] = fn
	return nil
}

// AnalyzeFunction implements spec §4.3 "Function": binds parameters as
// nil-initialised variables, sets EnclosingFunction to itself, and
// analyses the body with the module scope switched to the function's
// defining module.
func (a *Analyzer) AnalyzeFunction(fn *Function, module *runtime.ModuleScope) error {
	if err := a.validateParamOrdering(fn, fn.Params); err != nil {
		return err
	}

	scope := runtime.NewFunctionVarScope(module, fn.Symbol)
	for i := range fn.Params {
		p := &fn.Params[i]
		p.Symbol = scope.AddVariable(p.Name)
		if p.Default != nil {
			// Defaults are analysed in the declaring module's scope (spec §4.3).
			if err := a.AnalyzeExpr(p.Default, scope); err != nil {
				return err
			}
		}
	}
	return a.analyzeBlock(fn.Body, scope, true)
}

// validateParamOrdering enforces spec §4.3: defaults contiguous and
// trailing, variadic last.
func (a *Analyzer) validateParamOrdering(e Expr, params []ParamDecl) error {
	seenDefault := false
	for i, p := range params {
		if p.Variadic && i != len(params)-1 {
			return a.err(e, runtime.NewRuntimeError("invalid parameter ordering: variadic parameter must be last"))
		}
		if p.Default != nil {
			seenDefault = true
		} else if seenDefault && !p.Variadic {
			return a.err(e, runtime.NewRuntimeError("invalid parameter ordering: default-valued parameters must be contiguous and trailing"))
		}
	}
	return nil
}

// ToRuntimeParams converts parsed ParamDecls into runtime.Param for
// FunctionSymbol construction, reserving the name "closure" as the
// closure-parameter marker (spec §4.3 "built-in closure ... legal inside
// a function whose declared signature includes a closure").
func ToRuntimeParams(decls []ParamDecl) []runtime.Param {
	out := make([]runtime.Param, len(decls))
	for i, d := range decls {
		out[i] = runtime.Param{
			Name:       d.Name,
			HasDefault: d.Default != nil,
			Variadic:   d.Variadic,
			IsClosure:  d.Name == "closure",
		}
	}
	return out
}

func (a *Analyzer) analyzeBlock(body []Expr, scope *runtime.VarScope, markRoot bool) error {
	for _, e := range body {
		if markRoot {
			e.SetRoot(true)
		}
		if err := a.AnalyzeExpr(e, scope); err != nil {
			return err
		}
	}
	return nil
}

// AnalyzeExpr dispatches over the closed expression sum (spec §3/§4.3).
func (a *Analyzer) AnalyzeExpr(e Expr, scope *runtime.VarScope) error {
	e.SetEnclosingFn(scope.EnclosingFunction)
	switch n := e.(type) {
	case *Let:
		if err := a.AnalyzeExpr(n.Value, scope); err != nil {
			return err
		}
		return nil
	case *New:
		return a.analyzeNew(n, scope)
	case *If:
		if err := a.AnalyzeExpr(n.Cond, scope); err != nil {
			return err
		}
		thenScope := runtime.NewChildVarScope(scope, runtime.ScopeBlock)
		if err := a.analyzeBlock(n.Then, thenScope, true); err != nil {
			return err
		}
		if n.Else != nil {
			elseScope := runtime.NewChildVarScope(scope, runtime.ScopeBlock)
			if err := a.analyzeBlock(n.Else, elseScope, true); err != nil {
				return err
			}
		}
		return nil
	case *For:
		if err := a.AnalyzeExpr(n.Iterable, scope); err != nil {
			return err
		}
		bodyScope := runtime.NewChildVarScope(scope, runtime.ScopeBlock)
		n.Symbols = make([]*runtime.VarSymbol, len(n.VarNames))
		for i, name := range n.VarNames {
			n.Symbols[i] = bodyScope.AddVariable(name)
		}
		return a.analyzeBlock(n.Body, bodyScope, true)
	case *While:
		if err := a.AnalyzeExpr(n.Cond, scope); err != nil {
			return err
		}
		bodyScope := runtime.NewChildVarScope(scope, runtime.ScopeBlock)
		return a.analyzeBlock(n.Body, bodyScope, true)
	case *Block:
		blockScope := runtime.NewChildVarScope(scope, runtime.ScopeBlock)
		return a.analyzeBlock(n.Body, blockScope, true)
	case *Keyword:
		if n.Value != nil {
			return a.AnalyzeExpr(n.Value, scope)
		}
		return nil
	case *Binary:
		return a.analyzeBinary(n, scope)
	case *Unary:
		return a.AnalyzeExpr(n.Operand, scope)
	case *FieldAccess:
		return a.AnalyzeExpr(n.Receiver, scope)
	case *RangeExpr:
		if err := a.AnalyzeExpr(n.From, scope); err != nil {
			return err
		}
		if err := a.AnalyzeExpr(n.To, scope); err != nil {
			return err
		}
		if n.Step != nil {
			return a.AnalyzeExpr(n.Step, scope)
		}
		return nil
	case *Indexer:
		if err := a.AnalyzeExpr(n.Receiver, scope); err != nil {
			return err
		}
		return a.AnalyzeExpr(n.Index, scope)
	case *TypeExpr:
		return nil
	case *Variable:
		return a.analyzeVariable(n, scope)
	case *Call:
		return a.analyzeCall(n, scope, nil)
	case *Tuple:
		return a.analyzeAll(n.Items, scope)
	case *List:
		return a.analyzeAll(n.Items, scope)
	case *Dictionary:
		for _, entry := range n.Entries {
			if err := a.AnalyzeExpr(entry.Key, scope); err != nil {
				return err
			}
			if err := a.AnalyzeExpr(entry.Value, scope); err != nil {
				return err
			}
		}
		return nil
	case *Literal:
		return nil
	case *FunctionReference:
		return a.analyzeFunctionReference(n, scope)
	case *StringInterpolation:
		return a.analyzeAll(n.Parts, scope)
	case *Closure:
		return a.analyzeClosure(n, scope)
	case *Module, *Struct, *Function:
		// Declarations are walked by AnalyzeModule/AnalyzeFunction directly.
		return nil
	default:
		return a.err(e, runtime.NewRuntimeErrorf("unhandled expression kind %T", e))
	}
}

func (a *Analyzer) analyzeAll(items []Expr, scope *runtime.VarScope) error {
	for _, it := range items {
		if err := a.AnalyzeExpr(it, scope); err != nil {
			return err
		}
	}
	return nil
}

// analyzeNew implements spec §4.3 "New": resolve the module path; if not
// found, fall back to a standard-library struct keyed by the path's
// first element; validate arity against the struct's declared range.
func (a *Analyzer) analyzeNew(n *New, scope *runtime.VarScope) error {
	if err := a.analyzeAll(n.Args, scope); err != nil {
		return err
	}
	if len(n.Path) == 0 {
		return a.err(n, runtime.NewRuntimeError("new requires a type path"))
	}
	typeName := n.Path[len(n.Path)-1]
	modPath := n.Path[:len(n.Path)-1]

	mod, err := runtime.ResolveModulePath(scope.Module, modPath)
	if err == nil {
		if st, ok := mod.LookupStruct(typeName, true); ok {
			n.ResolvedStruct = st
			return a.validateArity(n, st.MinArgs, st.MaxArgs, st.MaxArgs < 0, len(n.Args))
		}
	}
	// Fallback: standard-library struct keyed by the first path element.
	n.StdStructName = n.Path[0]
	return nil
}

// analyzeBinary implements spec §4.3 "Binary": `=` validates the LHS
// shape; `|` threads the left operand as a piped value into the call or
// closure on the right.
func (a *Analyzer) analyzeBinary(n *Binary, scope *runtime.VarScope) error {
	switch n.Op {
	case BinAssign:
		if err := a.AnalyzeExpr(n.Right, scope); err != nil {
			return err
		}
		switch lhs := n.Left.(type) {
		case *Variable:
			if !isEnvVar(lhs.Name) {
				sym, ok := scope.HasVariable(lhs.Name)
				if !ok {
					return a.err(lhs, runtime.NewNotFoundError("variable "+lhs.Name))
				}
				lhs.Symbol = sym
			}
			return nil
		case *Indexer:
			return a.AnalyzeExpr(lhs, scope)
		default:
			return a.err(n, runtime.NewInvalidAssignmentError("left side of assignment must be a variable or index expression"))
		}
	case BinPipe:
		if err := a.AnalyzeExpr(n.Left, scope); err != nil {
			return err
		}
		switch rhs := n.Right.(type) {
		case *Call:
			return a.analyzeCall(rhs, scope, n.Left)
		case *Closure:
			return a.analyzeClosure(rhs, scope)
		default:
			return a.err(n, runtime.NewRuntimeError("right side of | must be a call or a closure"))
		}
	default:
		if err := a.AnalyzeExpr(n.Left, scope); err != nil {
			return err
		}
		return a.AnalyzeExpr(n.Right, scope)
	}
}

func isEnvVar(name string) bool { return len(name) > 0 && name[0] == '$' }

// analyzeVariable implements spec §4.3 "Variable".
func (a *Analyzer) analyzeVariable(n *Variable, scope *runtime.VarScope) error {
	if isEnvVar(n.Name) {
		return nil
	}
	sym, ok := scope.HasVariable(n.Name)
	if !ok {
		return a.err(n, runtime.NewNotFoundError("variable "+n.Name))
	}
	n.Symbol = sym
	// Only names declared in a different enclosing function than the
	// reference site are genuinely free: the closure's own parameters and
	// the locals of its nested blocks resolve here too, but belong to the
	// same function and must not be recorded as captures.
	if scope.IsClosureBody() && sym.Scope.EnclosingFunction != scope.EnclosingFunction {
		recordCapture(scope.EnclosingFunction, n.Name)
	}
	return nil
}

// recordCapture appends name to the enclosing closure's captured-variable
// set if not already present (spec §3 invariant "closure captures are
// sound").
func recordCapture(fn *runtime.FunctionSymbol, name string) {
	if fn == nil {
		return
	}
	for _, existing := range capturedSets[fn] {
		if existing == name {
			return
		}
	}
	capturedSets[fn] = append(capturedSets[fn], name)
}

// capturedSets maps a closure's FunctionSymbol to its captured-variable
// names. Kept package-level (not on FunctionSymbol) for the same reason
// funcNodes is kept on the Analyzer: lib/runtime stays free of
// compiler-only bookkeeping. Safe because each Analyzer run operates on
// one fresh expression tree at a time.
var capturedSets = map[*runtime.FunctionSymbol][]string{}

// CapturedVariables returns the recorded capture set for a closure.
func CapturedVariables(fn *runtime.FunctionSymbol) []string { return capturedSets[fn] }

// analyzeClosure implements spec §4.3/§4.4: a closure gets its own
// synthetic FunctionSymbol (IsClosureFn) and a ScopeClosureBody VarScope.
func (a *Analyzer) analyzeClosure(n *Closure, outer *runtime.VarScope) error {
	if err := a.validateParamOrdering(n, n.Params); err != nil {
		return err
	}
	sym := &runtime.FunctionSymbol{Name: "<closure>", Module: outer.Module, Params: ToRuntimeParams(n.Params), IsClosureFn: true}
	n.Symbol = sym

	closureScope := runtime.NewChildVarScope(outer, runtime.ScopeClosureBody)
	closureScope.EnclosingFunction = sym
	for i := range n.Params {
		n.Params[i].Symbol = closureScope.AddVariable(n.Params[i].Name)
	}
	if err := a.analyzeBlock(n.Body, closureScope, true); err != nil {
		return err
	}
	n.CapturedVariables = CapturedVariables(sym)
	return nil
}

// analyzeFunctionReference implements spec §4.3 "FunctionReference":
// resolve in order Std -> user -> Program fallback.
func (a *Analyzer) analyzeFunctionReference(n *FunctionReference, scope *runtime.VarScope) error {
	if len(n.Path) <= 1 {
		name := n.Path[0]
		if b, ok := a.Std.Lookup(name); ok {
			n.Type = CallStdFunction
			n.Std = b
			return nil
		}
	}
	if fn, ok := a.resolveUserFunction(n.Path, scope.Module); ok {
		n.Type = CallFunction
		n.Function = fn
		return nil
	}
	n.Type = CallProgram
	return nil
}

func (a *Analyzer) resolveUserFunction(path []string, current *runtime.ModuleScope) (*runtime.FunctionSymbol, bool) {
	if len(path) == 0 {
		return nil, false
	}
	name := path[len(path)-1]
	modPath := path[:len(path)-1]
	mod, err := runtime.ResolveModulePath(current, modPath)
	if err != nil {
		return nil, false
	}
	return mod.LookupFunction(name, true)
}

// analyzeCall implements spec §4.3 "Call": classify, resolve, validate
// arity, rewrite the variadic tail, and thread a piped value into
// argument 0 unless the call targets a Program.
func (a *Analyzer) analyzeCall(n *Call, scope *runtime.VarScope, piped Expr) error {
	if err := a.analyzeAll(n.Args, scope); err != nil {
		return err
	}
	if n.Closure != nil {
		if err := a.analyzeClosure(n.Closure, scope); err != nil {
			return err
		}
	}
	if len(n.Path) == 0 {
		return a.err(n, runtime.NewRuntimeError("call requires a name"))
	}
	name := n.Path[0]

	if len(n.Path) == 1 {
		if bt, ok := builtInNames[name]; ok {
			n.Type = bt
			if n.Closure != nil {
				return a.err(n, runtime.NewUnexpectedClosureError())
			}
			if bt == CallBuiltInClosure {
				fn := scope.EnclosingFunction
				if fn == nil || !fn.DeclaresClosureParam {
					return a.err(n, runtime.NewRuntimeError("closure() is only legal inside a function whose signature declares a closure parameter"))
				}
			}
			return a.finishCallClassification(n, piped, -1, -1, true)
		}
		if b, ok := a.Std.Lookup(name); ok {
			n.Type = CallStdFunction
			n.Std = b
			if n.Closure != nil && !b.HasClosure {
				return a.err(n, runtime.NewUnexpectedClosureError())
			}
			minArgs, maxArgs := b.MinArgs, b.MaxArgs
			if n.Closure != nil {
				// The trailing closure is passed as the binding's last
				// argument (emitCall pushes it after n.Args), so it counts
				// toward the binding's declared arity.
				minArgs--
				if maxArgs > 0 {
					maxArgs--
				}
			}
			return a.finishCallClassification(n, piped, minArgs, maxArgs, b.VariadicStart >= 0)
		}
	}
	if fn, ok := a.resolveUserFunction(n.Path, scope.Module); ok {
		n.Type = CallFunction
		n.Function = fn
		if n.Closure != nil && !fn.DeclaresClosureParam {
			return a.err(n, runtime.NewUnexpectedClosureError())
		}
		min, max, variadic := fn.MinMaxArity()
		return a.finishCallClassification(n, piped, min, max, variadic)
	}

	n.Type = CallProgram
	n.ProgramName = name
	if n.Closure != nil {
		return a.err(n, runtime.NewUnexpectedClosureError())
	}
	// Programs take an unbounded argv; no arity check, no variadic rewrite.
	if piped != nil {
		n.PipedFrom = piped // carried as stdin, not argument 0 (spec §4.3/§8 scenario 5)
	}
	return nil
}

// finishCallClassification validates arity, performs the variadic tail
// rewrite, and threads a piped value into argument 0 for non-Program
// calls (spec §4.3/§8).
func (a *Analyzer) finishCallClassification(n *Call, piped Expr, min, max int, variadic bool) error {
	if piped != nil {
		n.Args = append([]Expr{piped}, n.Args...)
	}
	if min >= 0 {
		if err := a.validateArity(n, min, max, variadic, len(n.Args)); err != nil {
			return err
		}
	}
	if variadic && max >= 0 {
		nonVariadic := max
		if len(n.Args) > nonVariadic {
			tail := append([]Expr(nil), n.Args[nonVariadic:]...)
			n.Args = append(n.Args[:nonVariadic], &List{Items: tail})
		} else if len(n.Args) == nonVariadic {
			n.Args = append(n.Args, &List{})
		}
	}
	return nil
}

// validateArity implements spec §4.3/§8: argument count must lie in
// [min, max] (max<0, or variadic=true, means unbounded above).
func (a *Analyzer) validateArity(e Expr, min, max int, variadic bool, actual int) error {
	if actual < min || (!variadic && max >= 0 && actual > max) {
		var expected int
		switch {
		case max < 0:
			// Std binding with a truly unbounded tail (VariadicStart>=0,
			// MaxArgs=-1): no concrete upper count to report.
			expected = min
		case variadic:
			// User function: max is the declared non-variadic count; the
			// variadic parameter itself counts as one more slot (spec §8
			// scenario 3, "expected 3" for fn(a, b=5, *rest)).
			expected = max + 1
		default:
			expected = max
		}
		return a.err(e, runtime.NewWrongArityError(expected, actual, variadic))
	}
	return nil
}
