package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/promptpack/internal/exchange"
	"github.com/fyrsmithlabs/promptpack/internal/prompt"
)

func newPromptCmd(c *cli) *cobra.Command {
	var (
		paths   bool
		noPaths bool
		scrub   bool
		output  string
	)
	cmd := &cobra.Command{
		Use:   "prompt",
		Short: "Render the active project as a prompt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := c.app
			p, err := a.manager.Active(cmd.Context())
			if err != nil {
				return err
			}

			opts := prompt.Options{
				HeaderPaths: (a.cfg.Prompt.HeaderPaths || paths) && !noPaths,
				Scrubber:    a.promptScrubber(),
			}
			if scrub {
				opts.Scrubber = a.scrubber
			}
			out := prompt.Generate(p, opts)
			a.metrics.RecordPrompt(len(out.Text))
			if out.Redactions > 0 {
				printRedactions(cmd.ErrOrStderr(), out)
			}

			if output == "" || output == "-" {
				fmt.Fprint(c.out(cmd), out.Text)
				return nil
			}
			if err := os.WriteFile(output, []byte(out.Text), 0o600); err != nil {
				return fmt.Errorf("writing prompt: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d bytes to %s\n", len(out.Text), output)
			return nil
		},
	}
	cmd.Flags().BoolVar(&paths, "paths", false, "use slash paths in file headers")
	cmd.Flags().BoolVar(&noPaths, "no-paths", false, "use bare names in file headers")
	cmd.Flags().BoolVar(&scrub, "scrub", false, "redact secrets even if prompt.scrub_secrets is off")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	cmd.MarkFlagsMutuallyExclusive("paths", "no-paths")
	return cmd
}

func printRedactions(w io.Writer, out prompt.Output) {
	rules := make([]string, 0, len(out.ByRule))
	for r := range out.ByRule {
		rules = append(rules, r)
	}
	sort.Strings(rules)
	fmt.Fprintf(w, "Redacted %d secret(s):", out.Redactions)
	for _, r := range rules {
		fmt.Fprintf(w, " %s=%d", r, out.ByRule[r])
	}
	fmt.Fprintln(w)
}

func newExportCmd(c *cli) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export [project]",
		Short: "Export a project, the active one by default, as a JSON document",
		Long: `export writes the project document to the --output path, to a file named
after the project in --dir, or to stdout.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id := ""
			if len(args) == 1 {
				p, err := resolveProject(ctx, c.app.manager, args[0])
				if err != nil {
					return err
				}
				id = p.ID
			}
			data, name, err := c.app.manager.Export(ctx, id)
			if err != nil {
				return err
			}

			dir, _ := cmd.Flags().GetString("dir")
			switch {
			case output == "-" || (output == "" && dir == ""):
				_, err = c.out(cmd).Write(append(data, '\n'))
				return err
			case output == "":
				output = filepath.Join(dir, name)
			}
			if err := os.WriteFile(output, data, 0o600); err != nil {
				return fmt.Errorf("writing export: %w", err)
			}
			fmt.Fprintf(c.out(cmd), "Exported to %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (- for stdout)")
	cmd.Flags().String("dir", "", "directory to write <project-name>.json into")
	cmd.MarkFlagsMutuallyExclusive("output", "dir")
	return cmd
}

func newImportCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file|->",
		Short: "Import a project document as a new active project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("opening document: %w", err)
				}
				defer f.Close()
				r = f
			}
			data, err := io.ReadAll(io.LimitReader(r, exchange.MaxDocumentSize+1))
			if err != nil {
				return fmt.Errorf("reading document: %w", err)
			}
			p, err := c.app.manager.Import(cmd.Context(), data)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out(cmd), "Imported project %q (%s)\n", p.Name, p.ID)
			return nil
		},
	}
}
