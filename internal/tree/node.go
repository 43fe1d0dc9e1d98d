package tree

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Errors returned by tree operations.
var (
	ErrNodeNotFound     = errors.New("node not found")
	ErrNotAFile         = errors.New("node is not a file")
	ErrEmptyName        = errors.New("node name cannot be empty")
	ErrInvalidName      = errors.New("node name cannot contain slashes or control characters")
	ErrDuplicateName    = errors.New("sibling with the same name and type already exists")
	ErrParentNotFound   = errors.New("parent not found")
	ErrParentNotFolder  = errors.New("parent is not a folder")
	ErrCycle            = errors.New("node cannot be moved into itself or its descendants")
	ErrInvalidOrder     = errors.New("order must be a permutation of the current children")
	ErrInvalidNodeType  = errors.New("invalid node type")
	ErrOrphanedContent  = errors.New("content entry without a file node")
	ErrInconsistentTree = errors.New("inconsistent tree")
)

// Type is the kind of a node.
type Type string

const (
	// TypeFile is a leaf node with text content.
	TypeFile Type = "file"

	// TypeFolder is a node that can hold children.
	TypeFolder Type = "folder"
)

// Valid reports whether t is a known node type.
func (t Type) Valid() bool {
	return t == TypeFile || t == TypeFolder
}

// Node is a file or folder entry.
type Node struct {
	// ID is the unique node identifier (UUID).
	ID string

	// Name is the display name, unique among siblings of the same type.
	Name string

	// Type is file or folder.
	Type Type

	// ParentID is the containing folder, "" at root level.
	ParentID string
}

// IsFolder reports whether the node is a folder.
func (n Node) IsFolder() bool { return n.Type == TypeFolder }

// IsFile reports whether the node is a file.
func (n Node) IsFile() bool { return n.Type == TypeFile }

// IsRoot reports whether the node sits at root level.
func (n Node) IsRoot() bool { return n.ParentID == "" }

// nodeJSON is the wire form of Node. A root node has a null parent.
type nodeJSON struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Type     Type    `json:"type"`
	ParentID *string `json:"parent_id"`

	// LegacyParentID accepts documents written with camelCase keys.
	LegacyParentID *string `json:"parentId,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (n Node) MarshalJSON() ([]byte, error) {
	out := nodeJSON{ID: n.ID, Name: n.Name, Type: n.Type}
	if n.ParentID != "" {
		parent := n.ParentID
		out.ParentID = &parent
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *Node) UnmarshalJSON(data []byte) error {
	var in nodeJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if !in.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidNodeType, in.Type)
	}
	n.ID = in.ID
	n.Name = in.Name
	n.Type = in.Type
	n.ParentID = ""
	switch {
	case in.ParentID != nil:
		n.ParentID = *in.ParentID
	case in.LegacyParentID != nil:
		n.ParentID = *in.LegacyParentID
	}
	return nil
}
