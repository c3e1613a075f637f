// Package fs implements the `@std/fs` built-in: thin synchronous
// wrappers over the local filesystem, plus
// github.com/dustin/go-humanize for the human-readable size field in
// fs.metadata.
package fs

import (
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/lune-org/lune/internal/core"
)

// Metadata is the value fs.metadata returns to script code.
type Metadata struct {
	Kind       string `json:"kind"` // "file", "dir", "symlink"
	Size       int64  `json:"size"`
	SizeHuman  string `json:"sizeHuman"`
	ModifiedAt int64  `json:"modifiedAt"` // unix seconds
	Readonly   bool   `json:"readonly"`
}

// Register installs the fs.* global functions into rt.
func Register(rt core.JSRuntime) error {
	fns := map[string]any{
		"__fs_readFile": func(path string) (string, error) {
			b, err := os.ReadFile(path)
			if err != nil {
				return "", err
			}
			return string(b), nil
		},
		"__fs_writeFile": func(path, contents string) (int, error) {
			if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
				return 0, err
			}
			return 1, nil
		},
		"__fs_removeFile": func(path string) (int, error) {
			if err := os.Remove(path); err != nil {
				return 0, err
			}
			return 1, nil
		},
		"__fs_readDir": func(path string) ([]string, error) {
			entries, err := os.ReadDir(path)
			if err != nil {
				return nil, err
			}
			names := make([]string, len(entries))
			for i, e := range entries {
				names[i] = e.Name()
			}
			return names, nil
		},
		"__fs_writeDir": func(path string) (int, error) {
			if err := os.MkdirAll(path, 0o755); err != nil {
				return 0, err
			}
			return 1, nil
		},
		"__fs_removeDir": func(path string) (int, error) {
			if err := os.RemoveAll(path); err != nil {
				return 0, err
			}
			return 1, nil
		},
		"__fs_isFile": func(path string) (int, error) {
			info, err := os.Stat(path)
			if err != nil {
				return 0, nil
			}
			return boolToInt(!info.IsDir()), nil
		},
		"__fs_isDir": func(path string) (int, error) {
			info, err := os.Stat(path)
			if err != nil {
				return 0, nil
			}
			return boolToInt(info.IsDir()), nil
		},
		"__fs_metadata": func(path string) (Metadata, error) {
			info, err := os.Lstat(path)
			if err != nil {
				return Metadata{}, err
			}
			kind := "file"
			switch {
			case info.Mode()&os.ModeSymlink != 0:
				kind = "symlink"
			case info.IsDir():
				kind = "dir"
			}
			return Metadata{
				Kind:       kind,
				Size:       info.Size(),
				SizeHuman:  humanize.Bytes(uint64(max64(info.Size(), 0))),
				ModifiedAt: info.ModTime().Unix(),
				Readonly:   info.Mode().Perm()&0o200 == 0,
			}, nil
		},
		"__fs_move": func(from, to string) (int, error) {
			if err := os.Rename(from, to); err != nil {
				return 0, err
			}
			return 1, nil
		},
		"__fs_absolute": func(path string) (string, error) {
			return filepath.Abs(path)
		},
	}

	for name, fn := range fns {
		if err := rt.RegisterFunc(name, fn); err != nil {
			return err
		}
	}
	return rt.Eval(fsBootstrapJS)
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

// boolToInt works around modernc.org/quickjs's RegisterFunc being unable
// to marshal a bare Go bool return value; script-facing wrappers coerce
// the int back to a real boolean with `!!`.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

const fsBootstrapJS = `
(function() {
	globalThis.fs = {
		readFile: function(path) { return __fs_readFile(path); },
		writeFile: function(path, contents) { __fs_writeFile(path, contents); },
		removeFile: function(path) { __fs_removeFile(path); },
		readDir: function(path) { return __fs_readDir(path); },
		writeDir: function(path) { __fs_writeDir(path); },
		removeDir: function(path) { __fs_removeDir(path); },
		isFile: function(path) { return !!__fs_isFile(path); },
		isDir: function(path) { return !!__fs_isDir(path); },
		metadata: function(path) { return __fs_metadata(path); },
		move: function(from, to) { __fs_move(from, to); },
		absolute: function(path) { return __fs_absolute(path); }
	};
})();
`
