package require

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/lune-org/lune/internal/core"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
}

func TestResolveRelativeWithExtensionCandidate(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "util.luau"), "return {}")

	r := NewResolver(nil)
	resolved, err := r.Resolve(dir, "./util")
	require.NoError(t, err)
	require.Empty(t, resolved.Std)

	want, err := filepath.EvalSymlinks(filepath.Join(dir, "util.luau"))
	require.NoError(t, err)
	require.Equal(t, want, resolved.Path)
}

func TestResolveDirectoryUsesInitFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "pkg", "init.luau"), "return {}")

	r := NewResolver(nil)
	resolved, err := r.Resolve(dir, "./pkg")
	require.NoError(t, err)

	want, err := filepath.EvalSymlinks(filepath.Join(dir, "pkg", "init.luau"))
	require.NoError(t, err)
	require.Equal(t, want, resolved.Path)
}

func TestResolveAmbiguousExtensionsFails(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "both.luau"), "return {}")
	writeFile(t, filepath.Join(dir, "both.lua"), "return {}")

	r := NewResolver(nil)
	_, err := r.Resolve(dir, "./both")
	require.ErrorIs(t, err, core.ErrRequireAmbiguous)
}

func TestResolveMissingModuleFails(t *testing.T) {
	dir := t.TempDir()
	r := NewResolver(nil)
	_, err := r.Resolve(dir, "./nope")
	require.ErrorIs(t, err, core.ErrRequireNotFound)
}

func TestResolveStdNamespace(t *testing.T) {
	dir := t.TempDir()
	std := func(name string) (core.Values, bool) {
		if name == "fs" {
			return core.Values{"fs-module"}, true
		}
		return nil, false
	}

	r := NewResolver(std)
	resolved, err := r.Resolve(dir, "@std/fs")
	require.NoError(t, err)
	require.Equal(t, "fs", resolved.Std)
}

func TestResolveUnknownStdNamespaceFails(t *testing.T) {
	dir := t.TempDir()
	r := NewResolver(func(string) (core.Values, bool) { return nil, false })
	_, err := r.Resolve(dir, "@std/nope")
	require.ErrorIs(t, err, core.ErrRequireNotFound)
}

func TestResolveAliasFromNearestConfig(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "lune.toml"), "[aliases]\nshared = \"libs/shared\"\n")
	writeFile(t, filepath.Join(root, "libs", "shared", "helper.luau"), "return {}")
	scriptDir := filepath.Join(root, "src")
	require.NoError(t, os.MkdirAll(scriptDir, 0o755))

	r := NewResolver(nil)
	resolved, err := r.Resolve(scriptDir, "@shared/helper")
	require.NoError(t, err)

	want, err := filepath.EvalSymlinks(filepath.Join(root, "libs", "shared", "helper.luau"))
	require.NoError(t, err)
	require.Equal(t, want, resolved.Path)
}

func TestResolveAliasIsCaseInsensitive(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "lune.toml"), "[aliases]\nShared = \"libs\"\n")
	writeFile(t, filepath.Join(root, "libs", "helper.luau"), "return {}")

	r := NewResolver(nil)
	_, err := r.Resolve(root, "@shared/helper")
	require.NoError(t, err)
}

func TestResolveUnknownAliasFails(t *testing.T) {
	root := t.TempDir()
	r := NewResolver(nil)
	_, err := r.Resolve(root, "@nope/helper")
	require.True(t, errors.Is(err, core.ErrRequireAliasNotFound))
}
