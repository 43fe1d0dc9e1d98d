package tree

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// Tree holds the nodes and file contents of one project.
type Tree struct {
	nodes   map[string]*Node
	order   []string // insertion order of node ids
	content map[string]string
}

// New returns an empty tree.
func New() *Tree {
	return &Tree{
		nodes:   make(map[string]*Node),
		content: make(map[string]string),
	}
}

// Len returns the number of nodes.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// AddFile creates a file under parentID ("" for root) with empty content
// and returns its id.
func (t *Tree) AddFile(name, parentID string) (string, error) {
	id, err := t.add(name, TypeFile, parentID)
	if err != nil {
		return "", err
	}
	t.content[id] = ""
	return id, nil
}

// AddFolder creates a folder under parentID ("" for root) and returns its id.
func (t *Tree) AddFolder(name, parentID string) (string, error) {
	return t.add(name, TypeFolder, parentID)
}

func (t *Tree) add(name string, typ Type, parentID string) (string, error) {
	name, err := cleanName(name)
	if err != nil {
		return "", err
	}
	if err := t.checkParent(parentID); err != nil {
		return "", err
	}
	if t.hasSibling(parentID, typ, name, "") {
		return "", fmt.Errorf("%w: %s %q", ErrDuplicateName, typ, name)
	}

	id := uuid.New().String()
	t.nodes[id] = &Node{ID: id, Name: name, Type: typ, ParentID: parentID}
	t.order = append(t.order, id)
	return id, nil
}

// Rename changes the name of a node in place.
func (t *Tree) Rename(id, name string) error {
	n, ok := t.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	name, err := cleanName(name)
	if err != nil {
		return err
	}
	if t.hasSibling(n.ParentID, n.Type, name, id) {
		return fmt.Errorf("%w: %s %q", ErrDuplicateName, n.Type, name)
	}
	n.Name = name
	return nil
}

// Remove deletes a node together with every descendant and their contents.
// It returns the ids that were removed, starting with id.
func (t *Tree) Remove(id string) ([]string, error) {
	if _, ok := t.nodes[id]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}

	removed := append([]string{id}, t.Descendants(id)...)
	gone := make(map[string]struct{}, len(removed))
	for _, rid := range removed {
		gone[rid] = struct{}{}
		delete(t.nodes, rid)
		delete(t.content, rid)
	}

	kept := t.order[:0]
	for _, oid := range t.order {
		if _, ok := gone[oid]; !ok {
			kept = append(kept, oid)
		}
	}
	t.order = kept
	return removed, nil
}

// Move reparents a node. Moving a folder into itself or one of its
// descendants is rejected.
func (t *Tree) Move(id, parentID string) error {
	n, ok := t.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	if err := t.checkParent(parentID); err != nil {
		return err
	}
	if parentID == id {
		return fmt.Errorf("%w: %s", ErrCycle, id)
	}
	for _, anc := range t.Ancestors(parentID) {
		if anc == id {
			return fmt.Errorf("%w: %s", ErrCycle, id)
		}
	}
	if t.hasSibling(parentID, n.Type, n.Name, id) {
		return fmt.Errorf("%w: %s %q", ErrDuplicateName, n.Type, n.Name)
	}
	n.ParentID = parentID
	return nil
}

// Reorder rewrites the relative order of the children of parentID. ids must
// be a permutation of the current children.
func (t *Tree) Reorder(parentID string, ids []string) error {
	if err := t.checkParent(parentID); err != nil {
		return err
	}

	current := make(map[string]struct{})
	slots := make([]int, 0)
	for i, oid := range t.order {
		if t.nodes[oid].ParentID == parentID {
			current[oid] = struct{}{}
			slots = append(slots, i)
		}
	}
	if len(ids) != len(slots) {
		return fmt.Errorf("%w: got %d ids, have %d children", ErrInvalidOrder, len(ids), len(slots))
	}
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := current[id]; !ok {
			return fmt.Errorf("%w: %s is not a child", ErrInvalidOrder, id)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: %s listed twice", ErrInvalidOrder, id)
		}
		seen[id] = struct{}{}
	}

	for i, slot := range slots {
		t.order[slot] = ids[i]
	}
	return nil
}

// Node returns a copy of the node with the given id.
func (t *Tree) Node(id string) (Node, bool) {
	n, ok := t.nodes[id]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

// Nodes returns copies of all nodes in insertion order.
func (t *Tree) Nodes() []Node {
	out := make([]Node, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, *t.nodes[id])
	}
	return out
}

// Children returns the nodes whose parent is parentID, in insertion order.
func (t *Tree) Children(parentID string) []Node {
	out := make([]Node, 0)
	for _, id := range t.order {
		if n := t.nodes[id]; n.ParentID == parentID {
			out = append(out, *n)
		}
	}
	return out
}

// Content returns the text of a file, or "" when there is none.
func (t *Tree) Content(id string) string {
	return t.content[id]
}

// SetContent replaces the text of a file node.
func (t *Tree) SetContent(id, text string) error {
	n, ok := t.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	if !n.IsFile() {
		return fmt.Errorf("%w: %s", ErrNotAFile, id)
	}
	t.content[id] = text
	return nil
}

// Clone returns a deep copy of the tree.
func (t *Tree) Clone() *Tree {
	c := &Tree{
		nodes:   make(map[string]*Node, len(t.nodes)),
		order:   make([]string, len(t.order)),
		content: make(map[string]string, len(t.content)),
	}
	for id, n := range t.nodes {
		cp := *n
		c.nodes[id] = &cp
	}
	copy(c.order, t.order)
	for id, text := range t.content {
		c.content[id] = text
	}
	return c
}

// Validate checks every tree invariant.
func (t *Tree) Validate() error {
	if len(t.order) != len(t.nodes) {
		return fmt.Errorf("%w: %d ordered ids for %d nodes", ErrInconsistentTree, len(t.order), len(t.nodes))
	}
	type key struct {
		parent string
		typ    Type
		name   string
	}
	names := make(map[key]struct{}, len(t.nodes))
	for _, id := range t.order {
		n, ok := t.nodes[id]
		if !ok {
			return fmt.Errorf("%w: ordered id %s has no node", ErrInconsistentTree, id)
		}
		if id == "" {
			return fmt.Errorf("%w: empty node id", ErrInconsistentTree)
		}
		if n.ID != id {
			return fmt.Errorf("%w: node %s stored under %s", ErrInconsistentTree, n.ID, id)
		}
		if n.ParentID == id {
			return fmt.Errorf("%w: node %s is its own parent", ErrCycle, id)
		}
		if !n.Type.Valid() {
			return fmt.Errorf("%w: %q", ErrInvalidNodeType, n.Type)
		}
		if _, err := cleanName(n.Name); err != nil {
			return fmt.Errorf("node %s: %w", id, err)
		}
		if err := t.checkParent(n.ParentID); err != nil {
			return fmt.Errorf("node %s: %w", id, err)
		}
		k := key{n.ParentID, n.Type, n.Name}
		if _, dup := names[k]; dup {
			return fmt.Errorf("%w: %s %q", ErrDuplicateName, n.Type, n.Name)
		}
		names[k] = struct{}{}
	}
	for _, id := range t.order {
		if err := t.checkAcyclic(id); err != nil {
			return err
		}
	}
	for id := range t.content {
		n, ok := t.nodes[id]
		if !ok || !n.IsFile() {
			return fmt.Errorf("%w: %s", ErrOrphanedContent, id)
		}
	}
	return nil
}

// checkParent verifies that parentID is root or an existing folder.
func (t *Tree) checkParent(parentID string) error {
	if parentID == "" {
		return nil
	}
	p, ok := t.nodes[parentID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrParentNotFound, parentID)
	}
	if !p.IsFolder() {
		return fmt.Errorf("%w: %s", ErrParentNotFolder, parentID)
	}
	return nil
}

// checkAcyclic walks the parent chain of id and fails when it does not
// reach root within len(nodes) steps.
func (t *Tree) checkAcyclic(id string) error {
	cur := id
	for steps := 0; cur != ""; steps++ {
		if steps > len(t.nodes) {
			return fmt.Errorf("%w: parent chain of %s does not terminate", ErrCycle, id)
		}
		n, ok := t.nodes[cur]
		if !ok {
			return fmt.Errorf("%w: %s", ErrParentNotFound, cur)
		}
		cur = n.ParentID
	}
	return nil
}

// hasSibling reports whether parentID already holds a node of typ named
// name, ignoring exceptID.
func (t *Tree) hasSibling(parentID string, typ Type, name, exceptID string) bool {
	for id, n := range t.nodes {
		if id != exceptID && n.ParentID == parentID && n.Type == typ && n.Name == name {
			return true
		}
	}
	return false
}

// cleanName trims name and rejects names that would break a slash path or
// a line of the prompt structure block.
func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyName
	}
	if strings.ContainsFunc(name, func(r rune) bool {
		return r == '/' || unicode.IsControl(r)
	}) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return name, nil
}
