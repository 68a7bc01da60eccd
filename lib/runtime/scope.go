package runtime

// ScopeKind discriminates the five scope shapes from spec §3.
type ScopeKind uint8

const (
	ScopeRootModule ScopeKind = iota
	ScopeSubmodule
	ScopeFunction
	ScopeBlock
	ScopeClosureBody
)

// Invoker lets a standard binding call back into a user-supplied
// function or closure value (e.g. map/filter's callback argument)
// without this package depending on pkg/bytecode for the call machinery.
type Invoker func(fr *FuncRef, args []Value) (Value, error)

// StdBinding describes one entry of the host-provided standard bindings
// table (spec §6): a name, its declared arity range, its variadic start
// index, whether it accepts a closure argument, and its invocation
// callable.
type StdBinding struct {
	Name          string
	MinArgs       int
	MaxArgs       int // -1 = unbounded (variadic)
	VariadicStart int // index of first variadic parameter, -1 if none
	HasClosure    bool
	Call          func(args []Value, invoke Invoker) (Value, error)
}

// StdTable is the read-only registry of standard bindings the analyser
// consults (spec §4.3) and the executor invokes (spec §4.5).
type StdTable struct {
	entries map[string]*StdBinding
}

func NewStdTable() *StdTable { return &StdTable{entries: map[string]*StdBinding{}} }

func (t *StdTable) Register(b *StdBinding) { t.entries[b.Name] = b }

func (t *StdTable) Lookup(name string) (*StdBinding, bool) {
	b, ok := t.entries[name]
	return b, ok
}

// FunctionSymbol identifies one user-defined function, resolved by the
// analyser and consumed by the generator/executor. It never owns a page
// pointer directly (that would create an import cycle with pkg/bytecode);
// the function table mapping symbols to pages lives in the generator
// (see compiler.Generator.FunctionTable).
type FunctionSymbol struct {
	Name   string
	Module *ModuleScope
	Params []Param

	// DeclaresClosureParam is true when one of Params is the reserved
	// `closure` parameter, making the BuiltInClosure call legal in the
	// function body (spec §4.3).
	DeclaresClosureParam bool

	// IsClosureFn is true when this symbol represents an anonymous
	// closure literal rather than a named module function.
	IsClosureFn bool
}

// Param describes one declared parameter.
type Param struct {
	Name       string
	HasDefault bool
	Variadic   bool
	IsClosure  bool // the reserved `closure` parameter
}

// MinMaxArity computes the [min, max] argument range implied by Params,
// honoring contiguous-trailing defaults and a trailing variadic (spec
// §4.3 "Parameters"). max is always the count of declared non-variadic
// parameters, even when variadic is true: the analyser needs that exact
// split point to rewrite a variadic call's trailing arguments into a
// single list (spec §4.3/§8 "variadic tail rewrite"); callers that only
// care about an upper bound should treat variadic=true as "unbounded".
func (f *FunctionSymbol) MinMaxArity() (min, max int, variadic bool) {
	for _, p := range f.Params {
		if p.IsClosure {
			continue
		}
		if p.Variadic {
			variadic = true
			continue
		}
		max++
		if !p.HasDefault {
			min++
		}
	}
	return min, max, variadic
}

// StructSymbol identifies one user-defined struct type.
type StructSymbol struct {
	Name       string
	Module     *ModuleScope
	FieldNames []string
	MinArgs    int
	MaxArgs    int // -1 = variadic constructor
}

// ModuleScope is a root module or submodule: it owns function, struct,
// and submodule tables plus import relations (spec §3 "Scope tree").
type ModuleScope struct {
	Kind ScopeKind // ScopeRootModule or ScopeSubmodule
	Name string

	Parent *ModuleScope // nil for the root

	Functions map[string]*FunctionSymbol
	Structs   map[string]*StructSymbol
	Submodules map[string]*ModuleScope

	ImportedFunctions  map[string]*FunctionSymbol
	ImportedStructs    map[string]*StructSymbol
	ImportedSubmodules map[string]*ModuleScope

	IsAnalysed bool
}

func NewModuleScope(name string, parent *ModuleScope) *ModuleScope {
	kind := ScopeSubmodule
	if parent == nil {
		kind = ScopeRootModule
	}
	return &ModuleScope{
		Kind:                kind,
		Name:                name,
		Parent:              parent,
		Functions:           map[string]*FunctionSymbol{},
		Structs:             map[string]*StructSymbol{},
		Submodules:          map[string]*ModuleScope{},
		ImportedFunctions:   map[string]*FunctionSymbol{},
		ImportedStructs:     map[string]*StructSymbol{},
		ImportedSubmodules:  map[string]*ModuleScope{},
	}
}

// DeclareFunction registers a function in this module. The set of
// function/struct names within one module must be unique (spec §3).
func (m *ModuleScope) DeclareFunction(fn *FunctionSymbol) error {
	if _, exists := m.Functions[fn.Name]; exists {
		return NewRuntimeErrorf("duplicate function %q in module %q", fn.Name, m.Name)
	}
	if _, exists := m.Structs[fn.Name]; exists {
		return NewRuntimeErrorf("name %q already declared as a struct in module %q", fn.Name, m.Name)
	}
	fn.Module = m
	m.Functions[fn.Name] = fn
	return nil
}

// DeclareStruct registers a struct type in this module.
func (m *ModuleScope) DeclareStruct(st *StructSymbol) error {
	if _, exists := m.Structs[st.Name]; exists {
		return NewRuntimeErrorf("duplicate struct %q in module %q", st.Name, m.Name)
	}
	if _, exists := m.Functions[st.Name]; exists {
		return NewRuntimeErrorf("name %q already declared as a function in module %q", st.Name, m.Name)
	}
	st.Module = m
	m.Structs[st.Name] = st
	return nil
}

// DeclareSubmodule registers a nested module.
func (m *ModuleScope) DeclareSubmodule(sub *ModuleScope) {
	sub.Parent = m
	sub.Kind = ScopeSubmodule
	m.Submodules[sub.Name] = sub
}

// Import records an imported function/struct/submodule, making it
// visible to lookups that pass lookInImports=true.
func (m *ModuleScope) ImportFunction(fn *FunctionSymbol) { m.ImportedFunctions[fn.Name] = fn }
func (m *ModuleScope) ImportStruct(st *StructSymbol)     { m.ImportedStructs[st.Name] = st }
func (m *ModuleScope) ImportSubmodule(sub *ModuleScope)  { m.ImportedSubmodules[sub.Name] = sub }

// LookupFunction resolves a name in this module, optionally consulting
// imports (spec §4.1 "look up a name by (scope, name, look-in-imports)").
func (m *ModuleScope) LookupFunction(name string, lookInImports bool) (*FunctionSymbol, bool) {
	if fn, ok := m.Functions[name]; ok {
		return fn, true
	}
	if lookInImports {
		if fn, ok := m.ImportedFunctions[name]; ok {
			return fn, true
		}
	}
	return nil, false
}

func (m *ModuleScope) LookupStruct(name string, lookInImports bool) (*StructSymbol, bool) {
	if st, ok := m.Structs[name]; ok {
		return st, true
	}
	if lookInImports {
		if st, ok := m.ImportedStructs[name]; ok {
			return st, true
		}
	}
	return nil, false
}

// LookupSubmodule resolves a direct child module name, declared first
// then imported (spec §4.1 name-resolution rule).
func (m *ModuleScope) LookupSubmodule(name string) (*ModuleScope, bool) {
	if sub, ok := m.Submodules[name]; ok {
		return sub, true
	}
	if sub, ok := m.ImportedSubmodules[name]; ok {
		return sub, true
	}
	return nil, false
}

// ResolveModulePath walks a dotted module path [m1, ..., mk] starting at
// the current module's root, following declared-then-imported
// submodules at each step (spec §4.1).
func ResolveModulePath(current *ModuleScope, path []string) (*ModuleScope, error) {
	root := current
	for root.Parent != nil {
		root = root.Parent
	}
	m := root
	for _, name := range path {
		next, ok := m.LookupSubmodule(name)
		if !ok {
			return nil, NewModuleNotFoundError(path)
		}
		m = next
	}
	return m, nil
}

// VarScope is a non-module scope: a function body, a block, or a closure
// body. Variable symbols belong to the innermost enclosing VarScope
// (spec §3 invariant).
type VarScope struct {
	Kind   ScopeKind
	Parent *VarScope // nil only for a function-body scope's conceptual top
	Module *ModuleScope

	vars map[string]*VarSymbol

	// EnclosingFunction is a non-owning handle to the function this scope
	// ultimately belongs to (possibly a closure) -- see spec §9 "model as
	// indices or non-owning handles", implemented here as a plain pointer
	// to a symbol record that outlives the scope tree (owned by the
	// analyser's function table), never to another live VarScope.
	EnclosingFunction *FunctionSymbol
}

// VarSymbol is one variable binding.
type VarSymbol struct {
	Name  string
	Scope *VarScope
}

func NewFunctionVarScope(module *ModuleScope, fn *FunctionSymbol) *VarScope {
	return &VarScope{Kind: ScopeFunction, Module: module, vars: map[string]*VarSymbol{}, EnclosingFunction: fn}
}

func NewChildVarScope(parent *VarScope, kind ScopeKind) *VarScope {
	return &VarScope{
		Kind:              kind,
		Parent:            parent,
		Module:            parent.Module,
		vars:              map[string]*VarSymbol{},
		EnclosingFunction: parent.EnclosingFunction,
	}
}

// AddVariable declares a new variable in this scope.
func (s *VarScope) AddVariable(name string) *VarSymbol {
	sym := &VarSymbol{Name: name, Scope: s}
	s.vars[name] = sym
	return sym
}

// HasVariable reports whether name is visible from this scope, walking
// up through enclosing non-module scopes.
func (s *VarScope) HasVariable(name string) (*VarSymbol, bool) {
	for cur := s; cur != nil; cur = cur.Parent {
		if sym, ok := cur.vars[name]; ok {
			return sym, true
		}
	}
	return nil, false
}

// IsClosureBody reports whether this scope (or any enclosing scope up to
// the owning function) belongs to a closure body, used by Variable
// analysis to populate CapturedVariables.
func (s *VarScope) IsClosureBody() bool {
	for cur := s; cur != nil; cur = cur.Parent {
		if cur.Kind == ScopeClosureBody {
			return true
		}
	}
	return false
}
