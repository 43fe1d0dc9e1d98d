package project

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/promptpack/internal/exchange"
	"github.com/fyrsmithlabs/promptpack/internal/logging"
	"github.com/fyrsmithlabs/promptpack/internal/metrics"
	"github.com/fyrsmithlabs/promptpack/internal/storage"
	"github.com/fyrsmithlabs/promptpack/internal/tree"
)

// Storage keys of the persisted registry state.
const (
	KeyProjects       = "promptpack-projects"
	KeyCurrentProject = "promptpack-current-project"
)

// Manager owns the ordered project list, the active project and the node
// selection. Every successful mutation is persisted. Reads return copies.
type Manager interface {
	// List returns all projects in creation order.
	List(ctx context.Context) []*Project

	// Get retrieves a project by ID.
	Get(ctx context.Context, id string) (*Project, error)

	// Active returns the active project.
	Active(ctx context.Context) (*Project, error)

	// Create appends a new empty project and activates it.
	Create(ctx context.Context, name string) (*Project, error)

	// Rename changes a project's name.
	Rename(ctx context.Context, id, name string) error

	// Delete removes a project. The last project cannot be deleted.
	Delete(ctx context.Context, id string) error

	// Select activates a project.
	Select(ctx context.Context, id string) error

	// Export encodes a project, the active one when id is empty, and
	// returns the document with its file name.
	Export(ctx context.Context, id string) ([]byte, string, error)

	// Import decodes a document into a new active project.
	Import(ctx context.Context, data []byte) (*Project, error)

	// SetInstructions replaces the active project's instructions.
	SetInstructions(ctx context.Context, text string) error

	// Clear removes every node and the instructions of the active project.
	Clear(ctx context.Context) error

	// SelectNode selects a node of the active project; "" clears.
	SelectNode(ctx context.Context, id string) error

	// SelectedNode returns the selected node id, or "".
	SelectedNode(ctx context.Context) string

	AddFile(ctx context.Context, name, parentID string) (string, error)
	AddFolder(ctx context.Context, name, parentID string) (string, error)
	RenameNode(ctx context.Context, id, name string) error
	RemoveNode(ctx context.Context, id string) ([]string, error)
	MoveNode(ctx context.Context, id, parentID string) error
	ReorderChildren(ctx context.Context, parentID string, ids []string) error
	SetContent(ctx context.Context, id, text string) error
	Node(ctx context.Context, id string) (tree.Node, error)
	Children(ctx context.Context, parentID string) ([]tree.Node, error)
	Content(ctx context.Context, id string) (string, error)
}

// Option configures a manager.
type Option func(*manager)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(m *manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *manager) { m.metrics = mt }
}

// manager implements Manager over a storage.Store.
type manager struct {
	mu       sync.RWMutex
	store    storage.Store
	logger   *logging.Logger
	metrics  *metrics.Metrics
	projects []*Project
	activeID string
	selected string
}

// NewManager loads the registry from store. Missing or unreadable records
// fall back to a single default project.
func NewManager(ctx context.Context, store storage.Store, opts ...Option) Manager {
	m := &manager{
		store:  store,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.load(ctx)
	return m
}

func (m *manager) load(ctx context.Context) {
	m.projects = m.loadProjects(ctx)
	m.activeID = m.loadCurrent(ctx)

	seeded := false
	if len(m.projects) == 0 {
		m.projects = []*Project{NewProject(DefaultName)}
		seeded = true
	}
	if m.index(m.activeID) < 0 {
		m.activeID = m.projects[0].ID
	}
	if seeded {
		m.persist(ctx)
	}
	m.logger.Info(ctx, "registry loaded",
		zap.Int("projects", len(m.projects)),
		zap.String("active", m.activeID),
		zap.Bool("seeded", seeded))
}

func (m *manager) loadProjects(ctx context.Context) []*Project {
	data, err := m.store.Get(ctx, KeyProjects)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			m.logger.Warn(ctx, "failed to read projects, starting fresh", zap.Error(err))
		}
		return nil
	}

	// Entries are decoded one at a time so a single bad tree only costs
	// that project.
	var stored []json.RawMessage
	if err := json.Unmarshal(data, &stored); err != nil {
		m.logger.Warn(ctx, "stored projects unparsable, starting fresh", zap.Error(err))
		return nil
	}

	seen := make(map[string]struct{}, len(stored))
	projects := make([]*Project, 0, len(stored))
	for i, raw := range stored {
		var p *Project
		if err := json.Unmarshal(raw, &p); err != nil {
			m.logger.Warn(ctx, "skipping unparsable stored project", zap.Int("index", i), zap.Error(err))
			continue
		}
		if p == nil {
			continue
		}
		if p.Tree == nil {
			p.Tree = tree.New()
		}
		if err := p.Validate(); err != nil {
			m.logger.Warn(ctx, "skipping invalid stored project", zap.String("project.id", p.ID), zap.Error(err))
			continue
		}
		if _, dup := seen[p.ID]; dup {
			m.logger.Warn(ctx, "skipping duplicate stored project", zap.String("project.id", p.ID))
			continue
		}
		seen[p.ID] = struct{}{}
		projects = append(projects, p)
	}
	return projects
}

func (m *manager) loadCurrent(ctx context.Context) string {
	data, err := m.store.Get(ctx, KeyCurrentProject)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			m.logger.Warn(ctx, "failed to read current project", zap.Error(err))
		}
		return ""
	}
	var id *string
	if err := json.Unmarshal(data, &id); err != nil {
		m.logger.Warn(ctx, "stored current project unparsable", zap.Error(err))
		return ""
	}
	if id == nil {
		return ""
	}
	return *id
}

// persist writes both records. Failures are logged and counted; the
// in-memory state stays authoritative. Callers hold the write lock.
func (m *manager) persist(ctx context.Context) {
	data, err := json.Marshal(m.projects)
	if err == nil {
		err = m.store.Set(ctx, KeyProjects, data)
	}
	if err != nil {
		m.logger.Warn(ctx, "failed to persist projects", zap.Error(err))
		m.metrics.RecordStorageWriteFailure()
		return
	}

	var current *string
	if m.activeID != "" {
		current = &m.activeID
	}
	data, err = json.Marshal(current)
	if err == nil {
		err = m.store.Set(ctx, KeyCurrentProject, data)
	}
	if err != nil {
		m.logger.Warn(ctx, "failed to persist current project", zap.Error(err))
		m.metrics.RecordStorageWriteFailure()
	}
}

func (m *manager) index(id string) int {
	if id == "" {
		return -1
	}
	for i, p := range m.projects {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func (m *manager) find(id string) (int, error) {
	if id == "" {
		return -1, ErrEmptyProjectID
	}
	i := m.index(id)
	if i < 0 {
		return -1, fmt.Errorf("%w: %s", ErrProjectNotFound, id)
	}
	return i, nil
}

func (m *manager) record(op string, err error) error {
	m.metrics.RecordOperation(op, err)
	return err
}

// update clones project id, applies fn, validates the result and swaps it
// in. Nothing changes when fn or validation fails.
func (m *manager) update(ctx context.Context, op, id string, fn func(*Project) error) error {
	i, err := m.find(id)
	if err != nil {
		return m.record(op, err)
	}
	next := m.projects[i].Clone()
	if err := fn(next); err != nil {
		return m.record(op, err)
	}
	if err := next.Validate(); err != nil {
		return m.record(op, err)
	}
	next.touch()
	m.projects[i] = next
	m.persist(ctx)
	m.logger.Debug(logging.WithProjectID(ctx, id), "project updated", zap.String("operation", op))
	return m.record(op, nil)
}

// updateActive runs update against the active project under the write lock.
func (m *manager) updateActive(ctx context.Context, op string, fn func(*Project) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.activeID == "" {
		return m.record(op, ErrNoActiveProject)
	}
	return m.update(ctx, op, m.activeID, fn)
}

// List returns all projects.
func (m *manager) List(ctx context.Context) []*Project {
	m.mu.RLock()
	defer m.mu.RUnlock()

	projects := make([]*Project, 0, len(m.projects))
	for _, p := range m.projects {
		projects = append(projects, p.Clone())
	}
	return projects
}

// Get retrieves a project by ID.
func (m *manager) Get(ctx context.Context, id string) (*Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i, err := m.find(id)
	if err != nil {
		return nil, err
	}
	return m.projects[i].Clone(), nil
}

// Active returns the active project.
func (m *manager) Active(ctx context.Context) (*Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i := m.index(m.activeID)
	if i < 0 {
		return nil, ErrNoActiveProject
	}
	return m.projects[i].Clone(), nil
}

// Create appends a new project and makes it active.
func (m *manager) Create(ctx context.Context, name string) (*Project, error) {
	p := NewProject(name)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.projects = append(m.projects, p)
	m.activeID = p.ID
	m.selected = ""
	m.persist(ctx)

	m.logger.Info(logging.WithProjectID(ctx, p.ID), "project created", zap.String("name", p.Name))
	m.record("create", nil)
	return p.Clone(), nil
}

// Rename changes a project's name. A blank name changes nothing.
func (m *manager) Rename(ctx context.Context, id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return m.record("rename", ErrEmptyProjectName)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	return m.update(ctx, "rename", id, func(p *Project) error {
		p.Name = name
		return nil
	})
}

// Delete removes a project. When it was active, the first remaining
// project becomes active.
func (m *manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i, err := m.find(id)
	if err != nil {
		return m.record("delete", err)
	}
	if len(m.projects) == 1 {
		return m.record("delete", ErrLastProject)
	}

	projects := make([]*Project, 0, len(m.projects)-1)
	projects = append(projects, m.projects[:i]...)
	projects = append(projects, m.projects[i+1:]...)
	m.projects = projects

	if m.activeID == id {
		m.activeID = m.projects[0].ID
		m.selected = ""
	}
	m.persist(ctx)

	m.logger.Info(logging.WithProjectID(ctx, id), "project deleted", zap.String("active", m.activeID))
	return m.record("delete", nil)
}

// Select activates a project and clears the node selection.
func (m *manager) Select(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.find(id); err != nil {
		return m.record("select", err)
	}
	m.activeID = id
	m.selected = ""
	m.persist(ctx)

	m.logger.Debug(logging.WithProjectID(ctx, id), "project selected")
	return m.record("select", nil)
}

// Export encodes a project.
func (m *manager) Export(ctx context.Context, id string) ([]byte, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if id == "" {
		id = m.activeID
	}
	i, err := m.find(id)
	if err != nil {
		return nil, "", m.record("export", err)
	}
	p := m.projects[i]
	data, err := exchange.Encode(p.Document())
	if err != nil {
		return nil, "", m.record("export", err)
	}
	return data, exchange.FileName(p.Name), m.record("export", nil)
}

// Import decodes data into a new project with a fresh id and activates it.
// Nothing changes when the document is invalid.
func (m *manager) Import(ctx context.Context, data []byte) (*Project, error) {
	doc, err := exchange.Decode(data)
	if err != nil {
		return nil, m.record("import", err)
	}
	p := FromDocument(doc)
	if err := p.Validate(); err != nil {
		return nil, m.record("import", fmt.Errorf("%w: %w", exchange.ErrInvalidDocument, err))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.projects = append(m.projects, p)
	m.activeID = p.ID
	m.selected = ""
	m.persist(ctx)

	m.logger.Info(logging.WithProjectID(ctx, p.ID), "project imported",
		zap.String("name", p.Name),
		zap.Int("nodes", p.Tree.Len()),
		zap.Int("source_version", doc.Version))
	m.record("import", nil)
	return p.Clone(), nil
}

// SetInstructions replaces the active project's instructions.
func (m *manager) SetInstructions(ctx context.Context, text string) error {
	return m.updateActive(ctx, "set_instructions", func(p *Project) error {
		p.Instructions = text
		return nil
	})
}

// Clear wipes the active project's nodes, contents and instructions.
func (m *manager) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.activeID == "" {
		return m.record("clear", ErrNoActiveProject)
	}
	err := m.update(ctx, "clear", m.activeID, func(p *Project) error {
		p.Tree = tree.New()
		p.Instructions = ""
		return nil
	})
	if err == nil {
		m.selected = ""
	}
	return err
}

// SelectNode selects a node of the active project. An empty id clears the
// selection.
func (m *manager) SelectNode(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id == "" {
		m.selected = ""
		return nil
	}
	i := m.index(m.activeID)
	if i < 0 {
		return ErrNoActiveProject
	}
	if _, ok := m.projects[i].Tree.Node(id); !ok {
		return fmt.Errorf("%w: %s", tree.ErrNodeNotFound, id)
	}
	m.selected = id
	return nil
}

// SelectedNode returns the selected node id.
func (m *manager) SelectedNode(ctx context.Context) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.selected
}

// AddFile adds a file to the active project.
func (m *manager) AddFile(ctx context.Context, name, parentID string) (string, error) {
	var id string
	err := m.updateActive(ctx, "add_file", func(p *Project) error {
		var err error
		id, err = p.Tree.AddFile(name, parentID)
		return err
	})
	return id, err
}

// AddFolder adds a folder to the active project.
func (m *manager) AddFolder(ctx context.Context, name, parentID string) (string, error) {
	var id string
	err := m.updateActive(ctx, "add_folder", func(p *Project) error {
		var err error
		id, err = p.Tree.AddFolder(name, parentID)
		return err
	})
	return id, err
}

// RenameNode renames a node of the active project.
func (m *manager) RenameNode(ctx context.Context, id, name string) error {
	return m.updateActive(ctx, "rename_node", func(p *Project) error {
		return p.Tree.Rename(id, name)
	})
}

// RemoveNode removes a node and its subtree. The selection is cleared when
// it pointed into the removed set.
func (m *manager) RemoveNode(ctx context.Context, id string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.activeID == "" {
		return nil, m.record("remove_node", ErrNoActiveProject)
	}
	var removed []string
	err := m.update(ctx, "remove_node", m.activeID, func(p *Project) error {
		var err error
		removed, err = p.Tree.Remove(id)
		return err
	})
	if err != nil {
		return nil, err
	}
	for _, r := range removed {
		if r == m.selected {
			m.selected = ""
			break
		}
	}
	return removed, nil
}

// MoveNode moves a node under another folder or to root.
func (m *manager) MoveNode(ctx context.Context, id, parentID string) error {
	return m.updateActive(ctx, "move_node", func(p *Project) error {
		return p.Tree.Move(id, parentID)
	})
}

// ReorderChildren rewrites the order of a folder's children.
func (m *manager) ReorderChildren(ctx context.Context, parentID string, ids []string) error {
	return m.updateActive(ctx, "reorder", func(p *Project) error {
		return p.Tree.Reorder(parentID, ids)
	})
}

// SetContent replaces a file's content.
func (m *manager) SetContent(ctx context.Context, id, text string) error {
	return m.updateActive(ctx, "set_content", func(p *Project) error {
		return p.Tree.SetContent(id, text)
	})
}

// activeTree runs fn against the active tree under the read lock.
func (m *manager) activeTree(fn func(*tree.Tree) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i := m.index(m.activeID)
	if i < 0 {
		return ErrNoActiveProject
	}
	return fn(m.projects[i].Tree)
}

// Node returns a node of the active project.
func (m *manager) Node(ctx context.Context, id string) (tree.Node, error) {
	var n tree.Node
	err := m.activeTree(func(t *tree.Tree) error {
		var ok bool
		if n, ok = t.Node(id); !ok {
			return fmt.Errorf("%w: %s", tree.ErrNodeNotFound, id)
		}
		return nil
	})
	return n, err
}

// Children lists the children of parentID in the active project.
func (m *manager) Children(ctx context.Context, parentID string) ([]tree.Node, error) {
	var nodes []tree.Node
	err := m.activeTree(func(t *tree.Tree) error {
		if parentID != "" {
			p, ok := t.Node(parentID)
			if !ok {
				return fmt.Errorf("%w: %s", tree.ErrNodeNotFound, parentID)
			}
			if !p.IsFolder() {
				return fmt.Errorf("%w: %s", tree.ErrParentNotFolder, parentID)
			}
		}
		nodes = t.Children(parentID)
		return nil
	})
	return nodes, err
}

// Content returns a file's content in the active project.
func (m *manager) Content(ctx context.Context, id string) (string, error) {
	var text string
	err := m.activeTree(func(t *tree.Tree) error {
		n, ok := t.Node(id)
		if !ok {
			return fmt.Errorf("%w: %s", tree.ErrNodeNotFound, id)
		}
		if !n.IsFile() {
			return fmt.Errorf("%w: %s", tree.ErrNotAFile, id)
		}
		text = t.Content(id)
		return nil
	})
	return text, err
}
