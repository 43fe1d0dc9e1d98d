// Package exchange converts projects to and from portable JSON documents.
//
// Decode accepts the current tree document, a tree with its maps at the top
// level, and the legacy flat file list, which is upgraded into a single level
// tree. Every decoded tree satisfies the node invariants.
package exchange

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/fyrsmithlabs/promptpack/internal/tree"
)

// Version is the document version written by Encode.
const Version = 2

// MaxDocumentSize bounds the input accepted by Decode.
const MaxDocumentSize = 16 << 20

// fileNameSuffix is appended to every exported file name.
const fileNameSuffix = "-prompt-project.json"

// Errors returned by Decode.
var (
	ErrInvalidDocument = errors.New("invalid project document")
	ErrMissingName     = errors.New("project document has no name")
)

// Document is the portable form of a project.
type Document struct {
	Version      int        `json:"version"`
	ID           string     `json:"id,omitempty"`
	Name         string     `json:"name"`
	Instructions string     `json:"instructions"`
	Tree         *tree.Tree `json:"tree"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Encode renders doc as two-space indented JSON.
func Encode(doc Document) ([]byte, error) {
	if doc.Version == 0 {
		doc.Version = Version
	}
	if doc.Tree == nil {
		doc.Tree = tree.New()
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return data, nil
}

// rawDocument holds every field any accepted shape may carry.
type rawDocument struct {
	Version      int                  `json:"version"`
	ID           string               `json:"id"`
	Name         *string              `json:"name"`
	Instructions *string              `json:"instructions"`
	Tree         json.RawMessage      `json:"tree"`
	Nodes        map[string]tree.Node `json:"nodes"`
	Order        []string             `json:"order"`
	Contents     map[string]string    `json:"contents"`
	Files        []string             `json:"files"`
	FileContents map[string]string    `json:"fileContents"`
	CreatedAt    *time.Time           `json:"created_at"`
	UpdatedAt    *time.Time           `json:"updated_at"`
}

// Decode parses and validates a document. Errors wrap ErrInvalidDocument.
func Decode(data []byte) (Document, error) {
	if len(data) > MaxDocumentSize {
		return Document{}, fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrInvalidDocument, len(data), MaxDocumentSize)
	}

	var raw rawDocument
	if err := json.Unmarshal(data, &raw); err != nil {
		return Document{}, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	if raw.Name == nil || strings.TrimSpace(*raw.Name) == "" {
		return Document{}, fmt.Errorf("%w: %w", ErrInvalidDocument, ErrMissingName)
	}

	t, err := raw.buildTree()
	if err != nil {
		return Document{}, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	doc := Document{
		Version: raw.Version,
		ID:      raw.ID,
		Name:    strings.TrimSpace(*raw.Name),
		Tree:    t,
	}
	if doc.Version == 0 {
		doc.Version = 1
	}
	if raw.Instructions != nil {
		doc.Instructions = *raw.Instructions
	}
	if raw.CreatedAt != nil {
		doc.CreatedAt = *raw.CreatedAt
	}
	if raw.UpdatedAt != nil {
		doc.UpdatedAt = *raw.UpdatedAt
	}
	return doc, nil
}

// buildTree picks the shape by the first populated field: tree, then
// top-level nodes, then the legacy file list.
func (r *rawDocument) buildTree() (*tree.Tree, error) {
	switch {
	case len(r.Tree) > 0 && string(r.Tree) != "null":
		t := tree.New()
		if err := json.Unmarshal(r.Tree, t); err != nil {
			return nil, err
		}
		return t, nil
	case r.Nodes != nil:
		return tree.FromMaps(r.Nodes, r.Order, r.Contents)
	case r.Files != nil:
		return upgradeLegacy(r.Files, r.FileContents)
	default:
		return tree.New(), nil
	}
}

// upgradeLegacy turns a flat file list into root level files in list order.
// Repeated names keep the first entry and content for unlisted names is
// dropped.
func upgradeLegacy(files []string, contents map[string]string) (*tree.Tree, error) {
	t := tree.New()
	seen := make(map[string]struct{}, len(files))
	for _, name := range files {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		id, err := t.AddFile(name, "")
		if errors.Is(err, tree.ErrDuplicateName) {
			// "a" and " a" collapse to the same trimmed name.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("legacy file %q: %w", name, err)
		}
		if err := t.SetContent(id, contents[name]); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// FileName derives the export file name for a project name.
func FileName(projectName string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(projectName) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash {
			b.WriteByte('-')
			dash = true
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		slug = "project"
	}
	return slug + fileNameSuffix
}
