package tree

import "strings"

// WalkFunc is called for every node visited by Walk. depth is 0 for root
// level nodes.
type WalkFunc func(n Node, depth int)

// Walk visits every node reachable from the roots depth-first in pre-order,
// following child order.
func (t *Tree) Walk(fn WalkFunc) {
	index := t.childIndex()
	var visit func(parentID string, depth int)
	visit = func(parentID string, depth int) {
		for _, id := range index[parentID] {
			n := *t.nodes[id]
			fn(n, depth)
			if n.IsFolder() {
				visit(id, depth+1)
			}
		}
	}
	visit("", 0)
}

// Descendants returns every node transitively parented under id, excluding
// id itself, in breadth-first order.
func (t *Tree) Descendants(id string) []string {
	index := t.childIndex()
	out := make([]string, 0)
	queue := append([]string(nil), index[id]...)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		out = append(out, cur)
		queue = append(queue, index[cur]...)
	}
	return out
}

// Ancestors returns the chain of parent ids of id, nearest first. The walk
// stops after len(nodes) steps so a corrupted chain cannot loop forever.
func (t *Tree) Ancestors(id string) []string {
	out := make([]string, 0)
	n, ok := t.nodes[id]
	if !ok {
		return out
	}
	for cur := n.ParentID; cur != "" && len(out) <= len(t.nodes); {
		out = append(out, cur)
		p, ok := t.nodes[cur]
		if !ok {
			break
		}
		cur = p.ParentID
	}
	return out
}

// IsAncestor reports whether ancestorID appears in the parent chain of id.
func (t *Tree) IsAncestor(ancestorID, id string) bool {
	for _, a := range t.Ancestors(id) {
		if a == ancestorID {
			return true
		}
	}
	return false
}

// Path returns the slash separated names from the root down to id.
func (t *Tree) Path(id string) string {
	n, ok := t.nodes[id]
	if !ok {
		return ""
	}
	chain := t.Ancestors(id)
	parts := make([]string, 0, len(chain)+1)
	for i := len(chain) - 1; i >= 0; i-- {
		if p, ok := t.nodes[chain[i]]; ok {
			parts = append(parts, p.Name)
		}
	}
	parts = append(parts, n.Name)
	return strings.Join(parts, "/")
}

// childIndex maps every parent id to its children in insertion order.
func (t *Tree) childIndex() map[string][]string {
	index := make(map[string][]string, len(t.nodes))
	for _, id := range t.order {
		p := t.nodes[id].ParentID
		index[p] = append(index[p], id)
	}
	return index
}
