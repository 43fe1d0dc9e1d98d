package project

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/promptpack/internal/exchange"
	"github.com/fyrsmithlabs/promptpack/internal/tree"
)

// DefaultName is used when a project is created without a name.
const DefaultName = "New Project"

// Common errors.
var (
	ErrProjectNotFound  = errors.New("project not found")
	ErrEmptyProjectID   = errors.New("project ID cannot be empty")
	ErrEmptyProjectName = errors.New("project name cannot be empty")
	ErrLastProject      = errors.New("cannot delete the last project")
	ErrNoActiveProject  = errors.New("no active project")
)

// Project is a named file tree with instructions.
type Project struct {
	// ID is the unique project identifier (UUID).
	ID string `json:"id"`

	// Name is the human-readable project name.
	Name string `json:"name"`

	// Instructions is free-form text placed at the top of the prompt.
	Instructions string `json:"instructions"`

	// Tree holds the nodes and file contents.
	Tree *tree.Tree `json:"tree"`

	// CreatedAt is when the project was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the project was last modified.
	UpdatedAt time.Time `json:"updated_at"`
}

// NewProject creates an empty project with a generated UUID. A blank name
// falls back to DefaultName.
func NewProject(name string) *Project {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultName
	}
	now := time.Now().UTC()
	return &Project{
		ID:        uuid.New().String(),
		Name:      name,
		Tree:      tree.New(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy.
func (p *Project) Clone() *Project {
	c := *p
	if p.Tree != nil {
		c.Tree = p.Tree.Clone()
	} else {
		c.Tree = tree.New()
	}
	return &c
}

// Validate checks if the project has valid fields.
func (p *Project) Validate() error {
	if p.ID == "" {
		return ErrEmptyProjectID
	}
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyProjectName
	}
	if p.Tree == nil {
		return nil
	}
	if err := p.Tree.Validate(); err != nil {
		return fmt.Errorf("project %s: %w", p.ID, err)
	}
	return nil
}

// Document converts the project to its portable form.
func (p *Project) Document() exchange.Document {
	return exchange.Document{
		Version:      exchange.Version,
		ID:           p.ID,
		Name:         p.Name,
		Instructions: p.Instructions,
		Tree:         p.Tree,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

// FromDocument builds a new project from a decoded document. The project
// gets a fresh id and timestamps.
func FromDocument(doc exchange.Document) *Project {
	p := NewProject(doc.Name)
	p.Instructions = doc.Instructions
	if doc.Tree != nil {
		p.Tree = doc.Tree.Clone()
	}
	return p
}

func (p *Project) touch() {
	p.UpdatedAt = time.Now().UTC()
}
