// Package require implements the require subsystem: canonical
// module-path resolution (relative, `@alias/...`, `@std/...`, init-file
// directories, extension candidates) plus the compile-once,
// single-flight, cycle-detecting module cache built on top of it.
package require

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/lune-org/lune/internal/core"
)

// Extensions is the fixed, ordered list of candidate extensions tried
// when a require specifier omits one — primary then alternate.
var Extensions = []string{".luau", ".lua"}

// InitFileNames are tried, in order, when a resolved path names a
// directory rather than a file.
var InitFileNames = []string{"init.luau", "init.lua"}

// AliasConfigNames are the filenames searched for while walking
// upward from a requiring script to find `{alias -> directory}`
// mappings, in the nearest configuration file found.
var AliasConfigNames = []string{"lune.toml", ".luneconfig"}

// aliasConfig is the on-disk shape of an alias configuration file.
type aliasConfig struct {
	Aliases map[string]string `toml:"aliases"`
}

// StdLoader reports whether `@std/name` names a built-in. The Resolver
// consults only its bool, so the built-in namespace never touches the
// filesystem; the values a std require returns come from the entries
// Cache.PreloadStd installs.
type StdLoader func(name string) (core.Values, bool)

// Resolver turns a require specifier, relative to a requiring script's
// directory, into a canonical module path.
type Resolver struct {
	fsys      statFS
	stdLoader StdLoader
}

// statFS is the minimal filesystem surface resolution needs, narrowed
// so tests can substitute an in-memory fake without touching disk.
type statFS interface {
	Stat(name string) (os.FileInfo, error)
}

type osFS struct{}

func (osFS) Stat(name string) (os.FileInfo, error) { return os.Stat(name) }

// NewResolver creates a Resolver that reads the real filesystem.
func NewResolver(std StdLoader) *Resolver {
	return &Resolver{fsys: osFS{}, stdLoader: std}
}

// Resolved is a fully canonicalized require target.
type Resolved struct {
	// Std is set when the specifier named a `@std/...` built-in; Path
	// is meaningless in that case.
	Std  string
	Path string
}

// Resolve canonicalizes specifier as seen from a script located at
// fromDir (an absolute directory), checking in order: built-in
// namespace, alias, relative, then init-file rewriting and
// extension-candidate search.
func (r *Resolver) Resolve(fromDir, specifier string) (Resolved, error) {
	if name, ok := strings.CutPrefix(specifier, "@std/"); ok {
		if r.stdLoader != nil {
			if _, ok := r.stdLoader(name); ok {
				return Resolved{Std: name}, nil
			}
		}
		return Resolved{}, fmt.Errorf("%w: @std/%s", core.ErrRequireNotFound, name)
	}

	var base string
	if rest, ok := strings.CutPrefix(specifier, "@"); ok {
		alias, sub, _ := strings.Cut(rest, "/")
		dir, err := r.resolveAlias(fromDir, alias)
		if err != nil {
			return Resolved{}, err
		}
		base = filepath.Join(dir, sub)
	} else if strings.HasPrefix(specifier, "./") || strings.HasPrefix(specifier, "../") {
		base = filepath.Join(fromDir, specifier)
	} else {
		// Bare specifiers outside @alias/@std are resolved as relative
		// to fromDir too; a distinct bare-module lookup order is only
		// needed for the `run` subcommand's command-line script
		// argument, handled in cmd/lune instead.
		base = filepath.Join(fromDir, specifier)
	}

	path, err := r.canonicalize(base)
	if err != nil {
		return Resolved{}, err
	}
	return Resolved{Path: path}, nil
}

// resolveAlias walks upward from fromDir looking for the nearest alias
// config file defining alias (case-insensitive).
func (r *Resolver) resolveAlias(fromDir, alias string) (string, error) {
	dir := fromDir
	wantLower := strings.ToLower(alias)
	for {
		for _, name := range AliasConfigNames {
			cfgPath := filepath.Join(dir, name)
			cfg, err := loadAliasConfig(cfgPath)
			if err != nil {
				continue
			}
			for k, v := range cfg.Aliases {
				if strings.ToLower(k) == wantLower {
					if filepath.IsAbs(v) {
						return v, nil
					}
					return filepath.Join(dir, v), nil
				}
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", fmt.Errorf("%w: @%s", core.ErrRequireAliasNotFound, alias)
}

func loadAliasConfig(path string) (*aliasConfig, error) {
	var cfg aliasConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// canonicalize applies init-file rewriting and extension-candidate
// search to base, then makes the result absolute and symlink-resolves it
// into the Cache's canonical module path key (no case folding).
func (r *Resolver) canonicalize(base string) (string, error) {
	candidates := r.candidatePaths(base)

	var found []string
	for _, c := range candidates {
		if info, err := r.fsys.Stat(c); err == nil && !info.IsDir() {
			found = append(found, c)
		}
	}
	switch len(found) {
	case 0:
		return "", fmt.Errorf("%w: %s", core.ErrRequireNotFound, base)
	case 1:
		return canonicalKey(found[0])
	default:
		return "", fmt.Errorf("%w: %s", core.ErrRequireAmbiguous, base)
	}
}

// candidatePaths enumerates every path canonicalize should check for
// base, in priority order: base itself (if it already names an
// existing file, whatever its extension), base's init-file rewrite if base is a
// directory, and base with each extension candidate appended.
func (r *Resolver) candidatePaths(base string) []string {
	var out []string
	if info, err := r.fsys.Stat(base); err == nil {
		if info.IsDir() {
			for _, initName := range InitFileNames {
				out = append(out, filepath.Join(base, initName))
			}
		} else {
			out = append(out, base)
		}
	}
	for _, ext := range Extensions {
		out = append(out, base+ext)
	}
	return out
}

// canonicalKey makes path absolute and resolves symlinks into the
// stable cache key used by the Cache. The key is not case-folded on any
// filesystem, so on a case-insensitive one two spellings of the same
// file give two keys and load as two modules.
func canonicalKey(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		// A module being required for the very first time may not yet
		// have every ancestor symlink-resolved in a way EvalSymlinks
		// tolerates on some platforms; fall back to the absolute path
		// rather than failing resolution outright.
		resolved = abs
	}
	return resolved, nil
}
