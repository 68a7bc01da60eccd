// Command wisp is the project host CLI: it resolves a wisp.toml manifest
// (or runs bare, without one) and reports the resolved project shape
// before handing off to the engine (spec §1 "command-line REPL [is a
// non-goal]"; the engine surface this CLI drives is the embeddable
// Program type in the root wisp package). Parsing source text into an
// expression tree is an external collaborator this repo doesn't provide
// (spec §1), so this CLI stops at manifest resolution and entry-point
// validation rather than pretending to run a script end to end.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tliron/commonlog"
	"github.com/wisp-lang/wisp"
	"github.com/wisp-lang/wisp/manifest"
)

var log = commonlog.GetLogger("wisp.cli")

func main() {
	dir := flag.String("dir", ".", "project directory to search for wisp.toml")
	flag.Parse()

	m, err := manifest.FindAndLoad(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "wisp: %v\n", err)
		os.Exit(1)
	}

	p := wisp.New(m)
	diag := p.Diagnostics

	if m == nil {
		fmt.Fprintln(os.Stderr, "wisp: no wisp.toml found, running in bare-script mode")
		return
	}

	log.Debug("loaded manifest", "project", m.Project.Name, "entry", m.EntryPath())

	if _, err := os.Stat(m.EntryPath()); err != nil {
		diag.Render(fmt.Errorf("entry script %s not found", m.EntryPath()))
		os.Exit(1)
	}

	fmt.Printf("project %q (%s)\n", m.Project.Name, m.Project.Version)
	fmt.Printf("entry: %s\n", m.EntryPath())
	fmt.Printf("source dirs: %v\n", m.SourceDirPaths())
}
