package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/fyrsmithlabs/promptpack/internal/prompt"
	"github.com/fyrsmithlabs/promptpack/internal/tree"
)

var errInvalidArgument = errors.New("invalid argument")

type projectInfo struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Nodes  int    `json:"nodes"`
	Active bool   `json:"active"`
}

type projectListInput struct{}

type projectListOutput struct {
	Projects []projectInfo `json:"projects"`
	ActiveID string        `json:"active_id"`
}

type projectCreateInput struct {
	Name string `json:"name" jsonschema:"Project name, defaults to New Project when blank"`
}

type projectOutput struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type projectSelectInput struct {
	ID string `json:"id" jsonschema:"required,Project ID to activate"`
}

type nodeAddInput struct {
	Name     string `json:"name" jsonschema:"required,Node name, unique among siblings of the same type"`
	Type     string `json:"type" jsonschema:"required,file or folder"`
	ParentID string `json:"parent_id,omitempty" jsonschema:"Parent folder ID, empty for the root"`
}

type nodeAddOutput struct {
	ID string `json:"id"`
}

type contentSetInput struct {
	ID      string `json:"id" jsonschema:"required,File node ID"`
	Content string `json:"content" jsonschema:"Full replacement text of the file"`
}

type contentSetOutput struct {
	ID    string `json:"id"`
	Bytes int    `json:"bytes"`
}

type treeShowInput struct{}

type treeShowOutput struct {
	Project   string `json:"project"`
	Structure string `json:"structure"`
	Nodes     int    `json:"nodes"`
}

type promptGenerateInput struct {
	HeaderPaths bool `json:"header_paths,omitempty" jsonschema:"Use slash paths instead of bare names in file headers"`
}

type promptGenerateOutput struct {
	Prompt     string `json:"prompt"`
	Bytes      int    `json:"bytes"`
	Redactions int    `json:"redactions"`
}

func text(format string, args ...interface{}) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf(format, args...)}},
	}
}

// registerTools registers all MCP tools with the server.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "project_list",
		Description: "List all prompt projects and the active one",
	}, s.projectList)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "project_create",
		Description: "Create an empty project and make it active",
	}, s.projectCreate)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "project_select",
		Description: "Make a project active",
	}, s.projectSelect)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "node_add",
		Description: "Add a file or folder to the active project",
	}, s.nodeAdd)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "content_set",
		Description: "Replace the content of a file in the active project",
	}, s.contentSet)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "tree_show",
		Description: "Show the file tree of the active project",
	}, s.treeShow)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "prompt_generate",
		Description: "Render the active project into a single prompt",
	}, s.promptGenerate)
}

func (s *Server) projectList(ctx context.Context, _ *mcp.CallToolRequest, _ projectListInput) (_ *mcp.CallToolResult, _ projectListOutput, err error) {
	defer s.metrics.track(ctx, "project_list")(&err)

	out := projectListOutput{Projects: []projectInfo{}}
	if p, err := s.manager.Active(ctx); err == nil {
		out.ActiveID = p.ID
	}
	for _, p := range s.manager.List(ctx) {
		out.Projects = append(out.Projects, projectInfo{
			ID:     p.ID,
			Name:   p.Name,
			Nodes:  p.Tree.Len(),
			Active: p.ID == out.ActiveID,
		})
	}
	return text("Found %d projects", len(out.Projects)), out, nil
}

func (s *Server) projectCreate(ctx context.Context, _ *mcp.CallToolRequest, args projectCreateInput) (_ *mcp.CallToolResult, _ projectOutput, err error) {
	defer s.metrics.track(ctx, "project_create")(&err)

	p, err := s.manager.Create(ctx, args.Name)
	if err != nil {
		return nil, projectOutput{}, fmt.Errorf("project create failed: %w", err)
	}
	return text("Created project %q (%s)", p.Name, p.ID), projectOutput{ID: p.ID, Name: p.Name}, nil
}

func (s *Server) projectSelect(ctx context.Context, _ *mcp.CallToolRequest, args projectSelectInput) (_ *mcp.CallToolResult, _ projectOutput, err error) {
	defer s.metrics.track(ctx, "project_select")(&err)

	if err := s.manager.Select(ctx, args.ID); err != nil {
		return nil, projectOutput{}, fmt.Errorf("project select failed: %w", err)
	}
	p, err := s.manager.Active(ctx)
	if err != nil {
		return nil, projectOutput{}, err
	}
	return text("Active project is %q", p.Name), projectOutput{ID: p.ID, Name: p.Name}, nil
}

func (s *Server) nodeAdd(ctx context.Context, _ *mcp.CallToolRequest, args nodeAddInput) (_ *mcp.CallToolResult, _ nodeAddOutput, err error) {
	defer s.metrics.track(ctx, "node_add")(&err)

	var id string
	switch tree.Type(args.Type) {
	case tree.TypeFile:
		id, err = s.manager.AddFile(ctx, args.Name, args.ParentID)
	case tree.TypeFolder:
		id, err = s.manager.AddFolder(ctx, args.Name, args.ParentID)
	default:
		return nil, nodeAddOutput{}, fmt.Errorf("%w: type must be file or folder, got %q", errInvalidArgument, args.Type)
	}
	if err != nil {
		return nil, nodeAddOutput{}, fmt.Errorf("node add failed: %w", err)
	}
	return text("Added %s %q (%s)", args.Type, args.Name, id), nodeAddOutput{ID: id}, nil
}

func (s *Server) contentSet(ctx context.Context, _ *mcp.CallToolRequest, args contentSetInput) (_ *mcp.CallToolResult, _ contentSetOutput, err error) {
	defer s.metrics.track(ctx, "content_set")(&err)

	if err := s.manager.SetContent(ctx, args.ID, args.Content); err != nil {
		return nil, contentSetOutput{}, fmt.Errorf("content set failed: %w", err)
	}
	return text("Stored %d bytes", len(args.Content)), contentSetOutput{ID: args.ID, Bytes: len(args.Content)}, nil
}

func (s *Server) treeShow(ctx context.Context, _ *mcp.CallToolRequest, _ treeShowInput) (_ *mcp.CallToolResult, _ treeShowOutput, err error) {
	defer s.metrics.track(ctx, "tree_show")(&err)

	p, err := s.manager.Active(ctx)
	if err != nil {
		return nil, treeShowOutput{}, err
	}
	out := treeShowOutput{Project: p.Name, Structure: prompt.Structure(p.Tree), Nodes: p.Tree.Len()}
	if out.Nodes == 0 {
		return text("Project %q is empty", p.Name), out, nil
	}
	return text("%s", out.Structure), out, nil
}

func (s *Server) promptGenerate(ctx context.Context, _ *mcp.CallToolRequest, args promptGenerateInput) (_ *mcp.CallToolResult, _ promptGenerateOutput, err error) {
	defer s.metrics.track(ctx, "prompt_generate")(&err)

	p, err := s.manager.Active(ctx)
	if err != nil {
		return nil, promptGenerateOutput{}, err
	}
	res := prompt.Generate(p, prompt.Options{
		HeaderPaths: args.HeaderPaths || s.config.HeaderPaths,
		Scrubber:    s.scrubber,
	})
	s.prom.RecordPrompt(len(res.Text))

	out := promptGenerateOutput{Prompt: res.Text, Bytes: len(res.Text), Redactions: res.Redactions}
	return text("%s", res.Text), out, nil
}
