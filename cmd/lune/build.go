package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// buildCmd bundles a script and its relative-path requires into a
// single distributable file, using esbuild's bundler. `@std/...` and
// `@alias/...` specifiers are left external rather than inlined:
// globalThis.require (installed by requireBootstrapJS before any
// bundled code runs) already resolves both against the same
// require.Resolver a non-bundled script uses, so leaving them as bare
// require() calls in the bundle resolves them identically to `lune
// run`, without esbuild needing to understand lune.toml aliasing itself.
func buildCmd() *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "build <script>",
		Short: "Bundle a script and its local requires into one file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entry := args[0]
			if outPath == "" {
				outPath = strings.TrimSuffix(entry, filepath.Ext(entry)) + ".bundle.luau"
			}

			id := uuid.New().String()
			bundle, err := bundleScript(entry, id)
			if err != nil {
				return err
			}

			if err := os.WriteFile(outPath, bundle, 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", outPath, err)
			}

			fmt.Printf("built %s (bundle id %s)\n", outPath, id)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "output", "o", "", "output path (default: <script>.bundle.luau)")
	return cmd
}

func bundleScript(entry, manifestID string) ([]byte, error) {
	entryDir, err := filepath.Abs(filepath.Dir(entry))
	if err != nil {
		return nil, err
	}

	result := api.Build(api.BuildOptions{
		EntryPoints:   []string{entry},
		Bundle:        true,
		Write:         false,
		Format:        api.FormatCommonJS,
		Platform:      api.PlatformNeutral,
		AbsWorkingDir: entryDir,
		External:      []string{"@std/*", "@*"},
		Loader: map[string]api.Loader{
			".luau": api.LoaderJS,
			".lua":  api.LoaderJS,
			".js":   api.LoaderJS,
		},
	})

	if len(result.Errors) > 0 {
		msgs := make([]string, 0, len(result.Errors))
		for _, e := range result.Errors {
			msgs = append(msgs, e.Text)
		}
		return nil, fmt.Errorf("bundling %s: %s", entry, strings.Join(msgs, "; "))
	}
	if len(result.OutputFiles) == 0 {
		return nil, fmt.Errorf("bundling %s: esbuild produced no output", entry)
	}

	header := fmt.Sprintf("// lune bundle %s\n// built from %s\n", manifestID, entry)
	return append([]byte(header), result.OutputFiles[0].Contents...), nil
}
