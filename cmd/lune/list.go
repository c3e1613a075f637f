package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func listCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List runnable scripts under a directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			root := dir
			if root == "" {
				root = "."
			}

			var found []scriptEntry
			err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if d.IsDir() {
					if d.Name() == ".lune" || d.Name() == "node_modules" {
						return filepath.SkipDir
					}
					return nil
				}
				if !isScriptFile(d.Name()) {
					return nil
				}
				info, err := d.Info()
				if err != nil {
					return nil
				}
				found = append(found, scriptEntry{path: path, size: info.Size()})
				return nil
			})
			if err != nil {
				return fmt.Errorf("walking %s: %w", root, err)
			}

			if len(found) == 0 {
				fmt.Printf("no scripts found under %s\n", root)
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SCRIPT\tSIZE")
			for _, e := range found {
				rel, err := filepath.Rel(root, e.path)
				if err != nil {
					rel = e.path
				}
				fmt.Fprintf(w, "%s\t%s\n", rel, humanize.Bytes(uint64(e.size)))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "directory to scan")
	return cmd
}

type scriptEntry struct {
	path string
	size int64
}

// isScriptFile matches any extension the runtime accepts as an entry
// point; run.go compiles source as JS regardless of extension, so
// .luau/.lua scripts and plain .js are all runnable the same way.
func isScriptFile(name string) bool {
	ext := filepath.Ext(name)
	return ext == ".luau" || ext == ".lua" || ext == ".js"
}
