package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/promptpack/internal/project"
	"github.com/fyrsmithlabs/promptpack/internal/tree"
)

func newNodeCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "node",
		Aliases: []string{"nodes", "n"},
		Short:   "Manage files and folders of the active project",
		Long: `Nodes are addressed by id or by slash path from the root, e.g. src/main.ts.
A trailing slash selects a folder when a file and a folder share a name.`,
	}
	cmd.AddCommand(
		newAddNodeCmd(c, tree.TypeFile),
		newAddNodeCmd(c, tree.TypeFolder),
		&cobra.Command{
			Use:   "rename <node> <name>",
			Short: "Rename a node",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx := cmd.Context()
				n, err := resolveNode(ctx, c.app.manager, args[0])
				if err != nil {
					return err
				}
				return c.app.manager.RenameNode(ctx, n.ID, args[1])
			},
		},
		&cobra.Command{
			Use:     "rm <node>",
			Aliases: []string{"remove"},
			Short:   "Remove a node and everything below it",
			Args:    cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx := cmd.Context()
				n, err := resolveNode(ctx, c.app.manager, args[0])
				if err != nil {
					return err
				}
				removed, err := c.app.manager.RemoveNode(ctx, n.ID)
				if err != nil {
					return err
				}
				fmt.Fprintf(c.out(cmd), "Removed %d node(s)\n", len(removed))
				return nil
			},
		},
		newMoveCmd(c),
		newReorderCmd(c),
		newListCmd(c),
	)
	return cmd
}

func newAddNodeCmd(c *cli, typ tree.Type) *cobra.Command {
	var parent string
	cmd := &cobra.Command{
		Use:   "add-" + string(typ) + " <name>",
		Short: "Add a " + string(typ) + " to the active project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			parentID, err := resolveParent(ctx, c.app.manager, parent)
			if err != nil {
				return err
			}
			add := c.app.manager.AddFile
			if typ == tree.TypeFolder {
				add = c.app.manager.AddFolder
			}
			id, err := add(ctx, args[0], parentID)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.out(cmd), id)
			return nil
		},
	}
	cmd.Flags().StringVarP(&parent, "parent", "p", "", "parent folder (default root)")
	return cmd
}

func newMoveCmd(c *cli) *cobra.Command {
	var parent string
	cmd := &cobra.Command{
		Use:   "mv <node>",
		Short: "Move a node under another folder, or to the root",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			n, err := resolveNode(ctx, c.app.manager, args[0])
			if err != nil {
				return err
			}
			parentID, err := resolveParent(ctx, c.app.manager, parent)
			if err != nil {
				return err
			}
			return c.app.manager.MoveNode(ctx, n.ID, parentID)
		},
	}
	cmd.Flags().StringVarP(&parent, "parent", "p", "", "destination folder (default root)")
	return cmd
}

func newReorderCmd(c *cli) *cobra.Command {
	var parent string
	cmd := &cobra.Command{
		Use:   "reorder <child>...",
		Short: "Set the order of a folder's children",
		Long: `reorder takes every child of the folder, or of the root, in the new order.
Children are named relative to the folder.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			parentID, err := resolveParent(ctx, c.app.manager, parent)
			if err != nil {
				return err
			}
			ids := make([]string, 0, len(args))
			for _, ref := range args {
				n, err := resolveChild(ctx, c.app.manager, parentID, ref)
				if err != nil {
					return err
				}
				ids = append(ids, n.ID)
			}
			return c.app.manager.ReorderChildren(ctx, parentID, ids)
		},
	}
	cmd.Flags().StringVarP(&parent, "parent", "p", "", "folder whose children are reordered (default root)")
	return cmd
}

func newListCmd(c *cli) *cobra.Command {
	var ids bool
	cmd := &cobra.Command{
		Use:   "ls",
		Short: "Show the active project's tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := c.app.manager.Active(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(c.out(cmd), renderTree(p, ids))
			return nil
		},
	}
	cmd.Flags().BoolVar(&ids, "ids", false, "show node ids")
	return cmd
}

func newContentCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "content",
		Short: "Read or write file content",
	}

	var file string
	set := &cobra.Command{
		Use:   "set <file> [text]",
		Short: "Replace a file's content from an argument, --file, or stdin",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			n, err := resolveNode(ctx, c.app.manager, args[0])
			if err != nil {
				return err
			}
			text, err := readText(cmd, args[1:], file)
			if err != nil {
				return err
			}
			return c.app.manager.SetContent(ctx, n.ID, text)
		},
	}
	set.Flags().StringVarP(&file, "file", "f", "", "read content from file (- for stdin)")

	get := &cobra.Command{
		Use:   "get <file>",
		Short: "Print a file's content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			n, err := resolveNode(ctx, c.app.manager, args[0])
			if err != nil {
				return err
			}
			text, err := c.app.manager.Content(ctx, n.ID)
			if err != nil {
				return err
			}
			fmt.Fprint(c.out(cmd), text)
			return nil
		},
	}

	cmd.AddCommand(set, get)
	return cmd
}

// resolveParent resolves a parent reference; "" and "/" mean the root.
func resolveParent(ctx context.Context, mgr project.Manager, ref string) (string, error) {
	if ref == "" || ref == "/" {
		return "", nil
	}
	n, err := resolveNode(ctx, mgr, ref)
	if err != nil {
		return "", err
	}
	return n.ID, nil
}

// resolveNode finds a node of the active project by id, then by slash path.
func resolveNode(ctx context.Context, mgr project.Manager, ref string) (tree.Node, error) {
	if n, err := mgr.Node(ctx, ref); err == nil {
		return n, nil
	}

	parentID := ""
	parts := strings.Split(strings.Trim(ref, "/"), "/")
	for i, part := range parts {
		last := i == len(parts)-1
		folderOnly := !last || strings.HasSuffix(ref, "/")
		n, err := findChild(ctx, mgr, parentID, part, folderOnly)
		if err != nil {
			return tree.Node{}, fmt.Errorf("%w: %s", err, ref)
		}
		if last {
			return n, nil
		}
		parentID = n.ID
	}
	return tree.Node{}, fmt.Errorf("%w: %s", tree.ErrNodeNotFound, ref)
}

// resolveChild finds a direct child of parentID by id or name.
func resolveChild(ctx context.Context, mgr project.Manager, parentID, ref string) (tree.Node, error) {
	if n, err := mgr.Node(ctx, ref); err == nil && n.ParentID == parentID {
		return n, nil
	}
	n, err := findChild(ctx, mgr, parentID, strings.TrimSuffix(ref, "/"), strings.HasSuffix(ref, "/"))
	if err != nil {
		return tree.Node{}, fmt.Errorf("%w: %s", err, ref)
	}
	return n, nil
}

func findChild(ctx context.Context, mgr project.Manager, parentID, name string, folderOnly bool) (tree.Node, error) {
	children, err := mgr.Children(ctx, parentID)
	if err != nil {
		return tree.Node{}, err
	}
	var matches []tree.Node
	for _, n := range children {
		if n.Name != name || (folderOnly && !n.IsFolder()) {
			continue
		}
		matches = append(matches, n)
	}
	switch len(matches) {
	case 0:
		return tree.Node{}, tree.ErrNodeNotFound
	case 1:
		return matches[0], nil
	default:
		return tree.Node{}, fmt.Errorf("ambiguous name %q, add a trailing slash for the folder", name)
	}
}
