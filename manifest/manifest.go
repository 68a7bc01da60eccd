// Package manifest handles wisp.toml project configuration: the entry
// point and the source search directories consulted when resolving
// `import` module paths; it has no dependency declarations (spec §6,
// SPEC_FULL.md §1/§4 "Manifest-driven module search").
package manifest

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// Manifest mirrors the teacher's maggie.toml shape, retargeted from a
// package manager's project file to the minimal surface this core
// needs: where the entry script lives and which directories `import`
// searches.
type Manifest struct {
	Project Project `toml:"project"`
	Source  Source  `toml:"source"`

	// Dir is the directory containing wisp.toml (set at load time, not
	// read from the file).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Source configures source file locations: Entry is the script file
// compiled and run as the top-level page; Dirs lists directories
// searched, in order, when an import's root module name isn't already
// loaded (SPEC_FULL.md §4).
type Source struct {
	Entry string   `toml:"entry"`
	Dirs  []string `toml:"dirs"`
}

// Load parses a wisp.toml file from dir.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, "wisp.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read %s", path)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrapf(err, "parse error in %s", path)
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot resolve path %s", dir)
	}
	m.Dir = abs

	if len(m.Source.Dirs) == 0 {
		m.Source.Dirs = []string{"src"}
	}
	if m.Source.Entry == "" {
		m.Source.Entry = "main.wisp"
	}
	return &m, nil
}

// FindAndLoad walks up from startDir looking for a wisp.toml file, loads
// it if found. Returns (nil, nil) when no manifest exists anywhere above
// startDir — running a single bare script without a project is legal.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "wisp.toml")); err == nil {
			return Load(dir)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

// SourceDirPaths returns absolute paths for the configured source
// directories, in search order.
func (m *Manifest) SourceDirPaths() []string {
	paths := make([]string, len(m.Source.Dirs))
	for i, d := range m.Source.Dirs {
		paths[i] = filepath.Join(m.Dir, d)
	}
	return paths
}

// EntryPath returns the absolute path of the configured entry script.
func (m *Manifest) EntryPath() string {
	return filepath.Join(m.Dir, m.Source.Entry)
}

// ResolveModuleFile searches SourceDirPaths, in order, for a file named
// root+".wisp", matching spec §4.1's "start at the current module's
// root" rule one level up: which directory a never-before-loaded root
// module name should be read from.
func (m *Manifest) ResolveModuleFile(root string) (string, bool) {
	for _, dir := range m.SourceDirPaths() {
		candidate := filepath.Join(dir, root+".wisp")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true
		}
	}
	return "", false
}
