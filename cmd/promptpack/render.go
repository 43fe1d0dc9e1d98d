package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	ltree "github.com/charmbracelet/lipgloss/tree"

	"github.com/fyrsmithlabs/promptpack/internal/project"
	"github.com/fyrsmithlabs/promptpack/internal/tree"
	"github.com/fyrsmithlabs/promptpack/internal/watch"
)

var (
	projectStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true)

	folderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	enumStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("238")).
			MarginRight(1)
)

// renderTree draws p's nodes in child order. Folders end in a slash and
// empty folders show an (empty) marker.
func renderTree(p *project.Project, ids bool) string {
	root := ltree.Root(projectStyle.Render(p.Name)).
		Enumerator(ltree.RoundedEnumerator).
		EnumeratorStyle(enumStyle)

	var build func(parent *ltree.Tree, parentID string)
	build = func(parent *ltree.Tree, parentID string) {
		for _, n := range p.Tree.Children(parentID) {
			label := nodeLabel(n, ids)
			if !n.IsFolder() {
				parent.Child(label)
				continue
			}
			sub := ltree.Root(label).
				Enumerator(ltree.RoundedEnumerator).
				EnumeratorStyle(enumStyle)
			if len(p.Tree.Children(n.ID)) == 0 {
				sub.Child(dimStyle.Render("(empty)"))
			} else {
				build(sub, n.ID)
			}
			parent.Child(sub)
		}
	}
	build(root, "")

	if p.Tree.Len() == 0 {
		root.Child(dimStyle.Render("(empty)"))
	}
	return root.String()
}

func nodeLabel(n tree.Node, ids bool) string {
	label := n.Name
	if n.IsFolder() {
		label = folderStyle.Render(n.Name + "/")
	}
	if ids {
		label += " " + dimStyle.Render(n.ID)
	}
	return label
}

func printProjects(w io.Writer, projects []*project.Project, active *project.Project) {
	for _, p := range projects {
		marker := "  "
		name := p.Name
		if active != nil && p.ID == active.ID {
			marker = "* "
			name = projectStyle.Render(name)
		}
		fmt.Fprintf(w, "%s%s  %s  %s\n", marker, name, dimStyle.Render(p.ID),
			dimStyle.Render(fmt.Sprintf("%d node(s)", p.Tree.Len())))
	}
}

func printResult(w io.Writer, res watch.Result) {
	if res.Err != nil {
		fmt.Fprintf(w, "rejected %s: %v\n", res.Path, res.Err)
		return
	}
	fmt.Fprintf(w, "imported %s as %s\n", res.Path, res.ProjectID)
}
