package http

import (
	"time"

	"github.com/fyrsmithlabs/promptpack/internal/project"
	"github.com/fyrsmithlabs/promptpack/internal/tree"
)

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// ProjectSummary is a project without its tree.
type ProjectSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	Nodes     int       `json:"nodes"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProjectListResponse is the response body for GET /api/v1/projects.
type ProjectListResponse struct {
	Projects []ProjectSummary `json:"projects"`
	ActiveID string           `json:"active_id"`
}

// ProjectResponse is a full project including its tree.
type ProjectResponse struct {
	*project.Project
	SelectedNode string `json:"selected_node,omitempty"`
}

// NameRequest is the body of project create and rename requests.
type NameRequest struct {
	Name string `json:"name"`
}

// InstructionsRequest is the body of PUT /api/v1/active/instructions.
type InstructionsRequest struct {
	Instructions string `json:"instructions"`
}

// AddNodeRequest is the body of POST /api/v1/active/nodes.
type AddNodeRequest struct {
	Name     string    `json:"name"`
	Type     tree.Type `json:"type"`
	ParentID string    `json:"parent_id"`
}

// NodeResponse is one node of the active tree.
type NodeResponse struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Type     tree.Type `json:"type"`
	ParentID string    `json:"parent_id"`
}

// NodeListResponse lists the children of a folder.
type NodeListResponse struct {
	Nodes []NodeResponse `json:"nodes"`
}

// RemoveNodeResponse lists every node removed by a cascade delete.
type RemoveNodeResponse struct {
	Removed []string `json:"removed"`
}

// MoveRequest is the body of POST /api/v1/active/nodes/:id/move.
type MoveRequest struct {
	ParentID string `json:"parent_id"`
}

// ContentRequest carries file content.
type ContentRequest struct {
	Content string `json:"content"`
}

// ContentResponse is the content of a file node.
type ContentResponse struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// SelectionRequest is the body of PUT /api/v1/active/selection.
type SelectionRequest struct {
	NodeID string `json:"node_id"`
}

// ReorderRequest is the body of POST /api/v1/active/reorder.
type ReorderRequest struct {
	ParentID string   `json:"parent_id"`
	Order    []string `json:"order"`
}

// PromptResponse is the response body for GET /api/v1/active/prompt.
type PromptResponse struct {
	Prompt     string         `json:"prompt"`
	Bytes      int            `json:"bytes"`
	Redactions int            `json:"redactions"`
	ByRule     map[string]int `json:"by_rule,omitempty"`
}

// SuggestionsResponse is the response body for GET /api/v1/active/suggestions.
type SuggestionsResponse struct {
	Query       string   `json:"query"`
	Suggestions []string `json:"suggestions"`
}

func toNodeResponse(n tree.Node) NodeResponse {
	return NodeResponse{ID: n.ID, Name: n.Name, Type: n.Type, ParentID: n.ParentID}
}

func toSummary(p *project.Project, activeID string) ProjectSummary {
	return ProjectSummary{
		ID:        p.ID,
		Name:      p.Name,
		Active:    p.ID == activeID,
		Nodes:     p.Tree.Len(),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}
