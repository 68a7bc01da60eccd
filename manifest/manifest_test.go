package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, dir, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wisp.toml"), []byte(body), 0644))
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "scratch"
version = "0.1.0"
`)

	m, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, "scratch", m.Project.Name)
	require.Equal(t, []string{"src"}, m.Source.Dirs)
	require.Equal(t, "main.wisp", m.Source.Entry)
}

func TestLoadExplicitSource(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "scratch"

[source]
dirs = ["src", "vendor"]
entry = "run.wisp"
`)

	m, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, []string{"src", "vendor"}, m.Source.Dirs)
	require.Equal(t, "run.wisp", m.Source.Entry)
	require.Len(t, m.SourceDirPaths(), 2)
	require.Equal(t, filepath.Join(m.Dir, "run.wisp"), m.EntryPath())
}

func TestFindAndLoadWalksUp(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, `
[project]
name = "nested"
`)
	nested := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(nested, 0755))

	m, err := FindAndLoad(nested)
	require.NoError(t, err)
	require.NotNil(t, m)
	require.Equal(t, "nested", m.Project.Name)
}

func TestFindAndLoadNoManifest(t *testing.T) {
	dir := t.TempDir()
	m, err := FindAndLoad(dir)
	require.NoError(t, err)
	require.Nil(t, m)
}

func TestResolveModuleFile(t *testing.T) {
	dir := t.TempDir()
	srcDir := filepath.Join(dir, "src")
	require.NoError(t, os.MkdirAll(srcDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "util.wisp"), []byte(""), 0644))
	writeManifest(t, dir, `
[project]
name = "mods"
`)

	m, err := Load(dir)
	require.NoError(t, err)

	path, ok := m.ResolveModuleFile("util")
	require.True(t, ok)
	require.Equal(t, filepath.Join(srcDir, "util.wisp"), path)

	_, ok = m.ResolveModuleFile("missing")
	require.False(t, ok)
}
