// Command wispdump renders a page's cbor debug snapshot
// (pkg/bytecode.EncodeSnapshot) as human-readable disassembly, the
// debug-tooling sibling, for bytecode rather than errors, of the
// diagnostic report renderer named in SPEC_FULL.md §4.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/wisp-lang/wisp/pkg/bytecode"
)

func main() {
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: wispdump <snapshot-file> [...]")
		os.Exit(1)
	}

	status := 0
	for _, path := range args {
		if err := dump(path); err != nil {
			fmt.Fprintf(os.Stderr, "wispdump: %s: %v\n", path, err)
			status = 1
			continue
		}
	}
	os.Exit(status)
}

func dump(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	page, err := bytecode.DecodeSnapshot(data)
	if err != nil {
		return err
	}
	fmt.Print(bytecode.Disassemble(page))
	return nil
}
