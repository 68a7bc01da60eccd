// Package wisp wires the five components together into the engine's
// public surface: given an already-parsed expression tree (the lexer
// and parser are external collaborators, spec §1), it analyses,
// compiles, and executes it. This is the "top-level page is the return
// channel of the public Execute entry point" glue named in spec §2.
package wisp

import (
	"os"

	"github.com/tliron/commonlog"
	"github.com/wisp-lang/wisp/compiler"
	"github.com/wisp-lang/wisp/lib/runtime"
	"github.com/wisp-lang/wisp/manifest"
	"github.com/wisp-lang/wisp/pkg/bytecode"
)

var log = commonlog.GetLogger("wisp")

// Program is one loaded script/project: its manifest (if any), its
// standard bindings table, process-global shell state, and the
// analyser/generator/VM instances that carry it from source tree to
// result value.
type Program struct {
	Manifest    *manifest.Manifest
	Std         *runtime.StdTable
	Shell       *runtime.ShellState
	Diagnostics *runtime.Diagnostics

	analyzer  *compiler.Analyzer
	generator *compiler.Generator
	vm        *bytecode.VM
}

// New builds a Program. m may be nil for a bare script run outside any
// project (manifest.FindAndLoad legitimately returns nil, nil).
func New(m *manifest.Manifest) *Program {
	std := runtime.NewStandardTable()
	shell := runtime.NewShellState()
	return &Program{
		Manifest:    m,
		Std:         std,
		Shell:       shell,
		Diagnostics: runtime.NewDiagnostics(os.Stderr),
		analyzer:    compiler.NewAnalyzer(std),
		generator:   compiler.NewGenerator(),
		vm:          bytecode.NewVM(std, shell),
	}
}

// Compile declares mod's functions/structs/submodules, analyses them
// and topLevel, then runs the instruction generator (spec §2 "source ->
// parser (external) -> analyser -> generator -> VM"). topLevel is the
// synthetic function wrapping the script's statements; its page is the
// return value, the one the caller hands to Execute.
func (p *Program) Compile(mod *compiler.Module, topLevel *compiler.Function) (*bytecode.Page, error) {
	if err := p.analyzer.DeclareModule(mod); err != nil {
		return nil, err
	}
	if err := p.analyzer.AnalyzeModule(mod); err != nil {
		return nil, err
	}
	if topLevel != nil {
		if err := p.analyzer.AnalyzeFunction(topLevel, mod.Scope); err != nil {
			return nil, err
		}
	}
	page, err := p.generator.CompileModule(mod, topLevel)
	if err != nil {
		return nil, err
	}
	log.Debug("compiled module", "functions", len(p.generator.FunctionTable))
	return page, nil
}

// Execute runs page as the top-level script and returns its value
// (spec §4.5 "Execute(page) -> value").
func (p *Program) Execute(page *bytecode.Page) (runtime.Value, error) {
	return p.vm.Execute(page)
}

// Run is the convenience one-shot entry point: compile then execute,
// rendering and returning any error via Diagnostics as well as to the
// caller.
func (p *Program) Run(mod *compiler.Module, topLevel *compiler.Function) (runtime.Value, error) {
	page, err := p.Compile(mod, topLevel)
	if err != nil {
		p.Diagnostics.Render(err)
		return runtime.Value{}, err
	}
	v, err := p.Execute(page)
	if err != nil {
		p.Diagnostics.Render(err)
		return runtime.Value{}, err
	}
	return v, nil
}

// LastExitCode reports the shell `?` variable: the most recently
// completed external process's exit code (spec §5/§8).
func (p *Program) LastExitCode() int { return p.Shell.LastExit() }
