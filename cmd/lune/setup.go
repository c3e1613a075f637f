package main

import (
	"fmt"
	"os"
	"path/filepath"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
)

// typeDefFiles lists the stub .d.luau files setup writes for each
// built-in, so editors with Luau language-server support get
// autocomplete/type-checking against the lune globals.
var typeDefFiles = map[string]string{
	"task.d.luau":     "-- type definitions for the `task` global\n",
	"fs.d.luau":       "-- type definitions for the `fs` global\n",
	"net.d.luau":      "-- type definitions for the `net` global\n",
	"process.d.luau":  "-- type definitions for the `process` global\n",
	"serde.d.luau":    "-- type definitions for the `serde` global\n",
	"datetime.d.luau": "-- type definitions for the `datetime` global\n",
	"regex.d.luau":    "-- type definitions for the `regex` global\n",
	"stdio.d.luau":    "-- type definitions for the `stdio` global\n",
	"script.d.luau":   "-- type definitions for the `script` global\n",
}

func setupCmd() *cobra.Command {
	var global bool

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Write built-in type-definition stubs for editor support",
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := setupTargetDir(global)
			if err != nil {
				return err
			}

			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("creating %s: %w", target, err)
			}

			for name, contents := range typeDefFiles {
				path := filepath.Join(target, name)
				if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
					return fmt.Errorf("writing %s: %w", path, err)
				}
			}

			fmt.Printf("wrote %d type-definition stubs to %s\n", len(typeDefFiles), target)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&global, "global", "g", false, "write to $HOME/.lune instead of ./.lune")
	return cmd
}

func setupTargetDir(global bool) (string, error) {
	if !global {
		return ".lune", nil
	}
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".lune"), nil
}
