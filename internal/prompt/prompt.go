// Package prompt renders a project into the text submitted to a model.
//
// Rendering is a pure function of the instructions and the tree: the same
// input always produces the same bytes. The output has three blocks, each
// omitted when empty:
//
//	<instructions>
//
//	Project Structure:
//	src/
//	  main.ts
//	docs/
//	  (empty)
//
//	File: main.ts
//	```
//	console.log(1)
//	```
package prompt

import (
	"strings"

	"github.com/fyrsmithlabs/promptpack/internal/project"
	"github.com/fyrsmithlabs/promptpack/internal/secrets"
	"github.com/fyrsmithlabs/promptpack/internal/tree"
)

const (
	structureHeader = "Project Structure:"
	emptyMarker     = "(empty)"
	indentUnit      = "  "
	fence           = "```"
)

// Options adjusts rendering.
type Options struct {
	// HeaderPaths renders file headers as slash paths instead of bare names.
	HeaderPaths bool

	// Scrubber redacts file content before it is fenced. Nil leaves
	// content untouched.
	Scrubber secrets.Scrubber
}

// Output is a rendered prompt.
type Output struct {
	Text string

	// Redactions counts secrets removed from file content.
	Redactions int

	// ByRule counts redactions per detection rule.
	ByRule map[string]int
}

// entry is one visited node with its depth and slash path.
type entry struct {
	node  tree.Node
	depth int
	path  string
}

// Generate renders p.
func Generate(p *project.Project, opts Options) Output {
	return Render(p.Instructions, p.Tree, opts)
}

// Render renders instructions and t.
func Render(instructions string, t *tree.Tree, opts Options) Output {
	out := Output{ByRule: map[string]int{}}
	var b strings.Builder

	if text := strings.TrimSpace(instructions); text != "" {
		b.WriteString(text)
		b.WriteString("\n\n")
	}

	entries := visit(t)
	if len(entries) == 0 {
		out.Text = b.String()
		return out
	}

	writeStructure(&b, entries)

	for _, e := range entries {
		if !e.node.IsFile() {
			continue
		}
		header := e.node.Name
		if opts.HeaderPaths {
			header = e.path
		}
		content := t.Content(e.node.ID)
		if opts.Scrubber != nil && opts.Scrubber.IsEnabled() {
			res := opts.Scrubber.Scrub(content)
			content = res.Scrubbed
			out.Redactions += res.TotalFindings
			for rule, n := range res.ByRule {
				out.ByRule[rule] += n
			}
		}

		b.WriteString("File: ")
		b.WriteString(header)
		b.WriteByte('\n')
		b.WriteString(fence)
		b.WriteByte('\n')
		b.WriteString(content)
		b.WriteByte('\n')
		b.WriteString(fence)
		b.WriteString("\n\n")
	}

	out.Text = b.String()
	return out
}

// Structure renders the indented listing of t without the section header.
func Structure(t *tree.Tree) string {
	var b strings.Builder
	writeListing(&b, visit(t))
	return b.String()
}

// writeStructure emits the section header, the listing and a blank line.
func writeStructure(b *strings.Builder, entries []entry) {
	b.WriteString(structureHeader)
	b.WriteByte('\n')
	writeListing(b, entries)
	b.WriteByte('\n')
}

func writeListing(b *strings.Builder, entries []entry) {
	for i, e := range entries {
		b.WriteString(strings.Repeat(indentUnit, e.depth))
		b.WriteString(e.node.Name)
		if !e.node.IsFolder() {
			b.WriteByte('\n')
			continue
		}
		b.WriteString("/\n")
		if i+1 == len(entries) || entries[i+1].depth <= e.depth {
			b.WriteString(strings.Repeat(indentUnit, e.depth+1))
			b.WriteString(emptyMarker)
			b.WriteByte('\n')
		}
	}
}

// visit flattens the tree in pre-order, tracking slash paths.
func visit(t *tree.Tree) []entry {
	if t == nil {
		return nil
	}
	entries := make([]entry, 0, t.Len())
	names := make([]string, 0, 8)
	t.Walk(func(n tree.Node, depth int) {
		names = append(names[:depth], n.Name)
		entries = append(entries, entry{
			node:  n,
			depth: depth,
			path:  strings.Join(names, "/"),
		})
	})
	return entries
}
