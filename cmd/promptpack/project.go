package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/promptpack/internal/project"
)

func newProjectCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "project",
		Aliases: []string{"projects", "p"},
		Short:   "Manage projects",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List projects, marking the active one",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				ctx := cmd.Context()
				active, _ := c.app.manager.Active(ctx)
				printProjects(c.out(cmd), c.app.manager.List(ctx), active)
				return nil
			},
		},
		&cobra.Command{
			Use:   "create [name]",
			Short: "Create a project and make it active",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				p, err := c.app.manager.Create(cmd.Context(), strings.Join(args, ""))
				if err != nil {
					return err
				}
				fmt.Fprintf(c.out(cmd), "Created project %q (%s)\n", p.Name, p.ID)
				return nil
			},
		},
		&cobra.Command{
			Use:   "rename <project> <name>",
			Short: "Rename a project",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx := cmd.Context()
				p, err := resolveProject(ctx, c.app.manager, args[0])
				if err != nil {
					return err
				}
				return c.app.manager.Rename(ctx, p.ID, args[1])
			},
		},
		&cobra.Command{
			Use:     "delete <project>",
			Aliases: []string{"rm"},
			Short:   "Delete a project",
			Args:    cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx := cmd.Context()
				p, err := resolveProject(ctx, c.app.manager, args[0])
				if err != nil {
					return err
				}
				if err := c.app.manager.Delete(ctx, p.ID); err != nil {
					return err
				}
				fmt.Fprintf(c.out(cmd), "Deleted project %q\n", p.Name)
				return nil
			},
		},
		&cobra.Command{
			Use:   "select <project>",
			Short: "Make a project active",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx := cmd.Context()
				p, err := resolveProject(ctx, c.app.manager, args[0])
				if err != nil {
					return err
				}
				return c.app.manager.Select(ctx, p.ID)
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Remove all nodes and instructions from the active project",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return c.app.manager.Clear(cmd.Context())
			},
		},
	)
	return cmd
}

func newInstructionsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "instructions",
		Short: "Show or set the active project's instructions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := c.app.manager.Active(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(c.out(cmd), p.Instructions)
			return nil
		},
	}

	var file string
	set := &cobra.Command{
		Use:   "set [text]",
		Short: "Replace the instructions from an argument, --file, or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readText(cmd, args, file)
			if err != nil {
				return err
			}
			return c.app.manager.SetInstructions(cmd.Context(), text)
		},
	}
	set.Flags().StringVarP(&file, "file", "f", "", "read text from file (- for stdin)")
	cmd.AddCommand(set)
	return cmd
}

// resolveProject finds a project by id, then by exact name.
func resolveProject(ctx context.Context, mgr project.Manager, ref string) (*project.Project, error) {
	if p, err := mgr.Get(ctx, ref); err == nil {
		return p, nil
	}
	var match *project.Project
	for _, p := range mgr.List(ctx) {
		if p.Name != ref {
			continue
		}
		if match != nil {
			return nil, fmt.Errorf("project name %q is ambiguous, use the id", ref)
		}
		match = p
	}
	if match == nil {
		return nil, fmt.Errorf("%w: %s", project.ErrProjectNotFound, ref)
	}
	return match, nil
}

// readText returns the single argument, or the contents of file, or stdin
// when file is "-" or neither is given.
func readText(cmd *cobra.Command, args []string, file string) (string, error) {
	if len(args) == 1 {
		if file != "" {
			return "", fmt.Errorf("pass text or --file, not both")
		}
		return args[0], nil
	}
	var (
		data []byte
		err  error
	)
	switch file {
	case "", "-":
		data, err = io.ReadAll(cmd.InOrStdin())
	default:
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return "", fmt.Errorf("reading text: %w", err)
	}
	return string(data), nil
}
