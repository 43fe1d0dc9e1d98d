package tree

import (
	"encoding/json"
	"fmt"
	"sort"
)

// wireTree is the serialized form of a Tree.
type wireTree struct {
	Nodes    map[string]Node   `json:"nodes"`
	Order    []string          `json:"order"`
	Contents map[string]string `json:"contents"`
}

// MarshalJSON implements json.Marshaler.
func (t *Tree) MarshalJSON() ([]byte, error) {
	w := wireTree{
		Nodes:    make(map[string]Node, len(t.nodes)),
		Order:    append([]string{}, t.order...),
		Contents: make(map[string]string, len(t.content)),
	}
	for id, n := range t.nodes {
		w.Nodes[id] = *n
	}
	for id, text := range t.content {
		w.Contents[id] = text
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler. The decoded tree is validated.
func (t *Tree) UnmarshalJSON(data []byte) error {
	var w wireTree
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	built, err := FromMaps(w.Nodes, w.Order, w.Contents)
	if err != nil {
		return err
	}
	*t = *built
	return nil
}

// FromMaps builds a validated tree from decoded maps.
//
// Ids listed in order that have no node are skipped and nodes missing from
// order are appended in sorted id order. Content keyed by an unknown id is
// dropped; content keyed by a folder fails with ErrOrphanedContent.
func FromMaps(nodes map[string]Node, order []string, contents map[string]string) (*Tree, error) {
	t := New()
	for key, n := range nodes {
		if key == "" {
			return nil, fmt.Errorf("%w: empty node id", ErrInconsistentTree)
		}
		if n.ID == "" {
			n.ID = key
		}
		if n.ID != key {
			return nil, fmt.Errorf("%w: node %s stored under key %s", ErrInconsistentTree, n.ID, key)
		}
		cp := n
		t.nodes[key] = &cp
	}

	listed := make(map[string]struct{}, len(order))
	for _, id := range order {
		if _, ok := t.nodes[id]; !ok {
			continue
		}
		if _, dup := listed[id]; dup {
			continue
		}
		listed[id] = struct{}{}
		t.order = append(t.order, id)
	}
	missing := make([]string, 0)
	for id := range t.nodes {
		if _, ok := listed[id]; !ok {
			missing = append(missing, id)
		}
	}
	sort.Strings(missing)
	t.order = append(t.order, missing...)

	for id, text := range contents {
		n, ok := t.nodes[id]
		if !ok {
			continue
		}
		if !n.IsFile() {
			return nil, fmt.Errorf("%w: %s is a %s", ErrOrphanedContent, id, n.Type)
		}
		t.content[id] = text
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}
