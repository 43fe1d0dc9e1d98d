package http

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/promptpack/internal/exchange"
	"github.com/fyrsmithlabs/promptpack/internal/logging"
	"github.com/fyrsmithlabs/promptpack/internal/project"
	"github.com/fyrsmithlabs/promptpack/internal/prompt"
	"github.com/fyrsmithlabs/promptpack/internal/tree"
)

// statusFor maps registry errors onto HTTP status codes. Import failures
// are checked first since they may wrap tree errors.
func statusFor(err error) int {
	switch {
	case errors.Is(err, exchange.ErrInvalidDocument):
		return http.StatusUnprocessableEntity
	case errors.Is(err, project.ErrProjectNotFound),
		errors.Is(err, project.ErrNoActiveProject),
		errors.Is(err, tree.ErrNodeNotFound),
		errors.Is(err, tree.ErrNotAFile):
		return http.StatusNotFound
	case errors.Is(err, tree.ErrDuplicateName),
		errors.Is(err, project.ErrLastProject):
		return http.StatusConflict
	case errors.Is(err, tree.ErrEmptyName),
		errors.Is(err, tree.ErrInvalidName),
		errors.Is(err, tree.ErrCycle),
		errors.Is(err, tree.ErrParentNotFound),
		errors.Is(err, tree.ErrParentNotFolder),
		errors.Is(err, tree.ErrInvalidOrder),
		errors.Is(err, tree.ErrInvalidNodeType),
		errors.Is(err, project.ErrEmptyProjectName),
		errors.Is(err, project.ErrEmptyProjectID),
		errors.Is(err, exchange.ErrMissingName):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// fail converts a registry error into an HTTP error.
func (s *Server) fail(c echo.Context, op string, err error) error {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		s.logger.Error(c.Request().Context(), "request failed", zap.String("operation", op), zap.Error(err))
		return echo.NewHTTPError(code, "internal error")
	}
	s.logger.Debug(c.Request().Context(), "request rejected", zap.String("operation", op), zap.Error(err))
	return echo.NewHTTPError(code, err.Error())
}

func badRequest(msg string) error {
	return echo.NewHTTPError(http.StatusBadRequest, msg)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleListProjects(c echo.Context) error {
	ctx := c.Request().Context()
	activeID := ""
	if p, err := s.manager.Active(ctx); err == nil {
		activeID = p.ID
	}
	projects := s.manager.List(ctx)
	resp := ProjectListResponse{Projects: make([]ProjectSummary, 0, len(projects)), ActiveID: activeID}
	for _, p := range projects {
		resp.Projects = append(resp.Projects, toSummary(p, activeID))
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleCreateProject(c echo.Context) error {
	var req NameRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}
	p, err := s.manager.Create(c.Request().Context(), req.Name)
	if err != nil {
		return s.fail(c, "create", err)
	}
	return c.JSON(http.StatusCreated, ProjectResponse{Project: p})
}

func (s *Server) handleGetProject(c echo.Context) error {
	p, err := s.manager.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.fail(c, "get", err)
	}
	return c.JSON(http.StatusOK, ProjectResponse{Project: p})
}

func (s *Server) handleRenameProject(c echo.Context) error {
	var req NameRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}
	ctx := c.Request().Context()
	if err := s.manager.Rename(ctx, c.Param("id"), req.Name); err != nil {
		return s.fail(c, "rename", err)
	}
	p, err := s.manager.Get(ctx, c.Param("id"))
	if err != nil {
		return s.fail(c, "rename", err)
	}
	return c.JSON(http.StatusOK, ProjectResponse{Project: p})
}

func (s *Server) handleDeleteProject(c echo.Context) error {
	if err := s.manager.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return s.fail(c, "delete", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleSelectProject(c echo.Context) error {
	ctx := c.Request().Context()
	if err := s.manager.Select(ctx, c.Param("id")); err != nil {
		return s.fail(c, "select", err)
	}
	return s.handleActive(c)
}

func (s *Server) handleExportProject(c echo.Context) error {
	data, name, err := s.manager.Export(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.fail(c, "export", err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+name+`"`)
	return c.Blob(http.StatusOK, echo.MIMEApplicationJSONCharsetUTF8, data)
}

func (s *Server) handleImport(c echo.Context) error {
	body := http.MaxBytesReader(c.Response(), c.Request().Body, exchange.MaxDocumentSize+1)
	data, err := io.ReadAll(body)
	if err != nil {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "document too large")
	}
	p, err := s.manager.Import(c.Request().Context(), data)
	if err != nil {
		return s.fail(c, "import", err)
	}
	return c.JSON(http.StatusCreated, ProjectResponse{Project: p})
}

func (s *Server) handleActive(c echo.Context) error {
	ctx := c.Request().Context()
	p, err := s.manager.Active(ctx)
	if err != nil {
		return s.fail(c, "active", err)
	}
	return c.JSON(http.StatusOK, ProjectResponse{Project: p, SelectedNode: s.manager.SelectedNode(ctx)})
}

func (s *Server) handleSetInstructions(c echo.Context) error {
	var req InstructionsRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}
	if err := s.manager.SetInstructions(c.Request().Context(), req.Instructions); err != nil {
		return s.fail(c, "set_instructions", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleClear(c echo.Context) error {
	if err := s.manager.Clear(c.Request().Context()); err != nil {
		return s.fail(c, "clear", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleListNodes(c echo.Context) error {
	nodes, err := s.manager.Children(c.Request().Context(), c.QueryParam("parent"))
	if err != nil {
		return s.fail(c, "children", err)
	}
	resp := NodeListResponse{Nodes: make([]NodeResponse, 0, len(nodes))}
	for _, n := range nodes {
		resp.Nodes = append(resp.Nodes, toNodeResponse(n))
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleAddNode(c echo.Context) error {
	var req AddNodeRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}
	ctx := c.Request().Context()

	var (
		id  string
		err error
	)
	switch req.Type {
	case tree.TypeFile:
		id, err = s.manager.AddFile(ctx, req.Name, req.ParentID)
	case tree.TypeFolder:
		id, err = s.manager.AddFolder(ctx, req.Name, req.ParentID)
	default:
		return badRequest("type must be 'file' or 'folder'")
	}
	if err != nil {
		return s.fail(c, "add_node", err)
	}

	n, err := s.manager.Node(ctx, id)
	if err != nil {
		return s.fail(c, "add_node", err)
	}
	return c.JSON(http.StatusCreated, toNodeResponse(n))
}

func (s *Server) handleGetNode(c echo.Context) error {
	n, err := s.manager.Node(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.fail(c, "node", err)
	}
	return c.JSON(http.StatusOK, toNodeResponse(n))
}

func (s *Server) handleRenameNode(c echo.Context) error {
	var req NameRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}
	ctx := c.Request().Context()
	if err := s.manager.RenameNode(ctx, c.Param("id"), req.Name); err != nil {
		return s.fail(c, "rename_node", err)
	}
	return s.handleGetNode(c)
}

func (s *Server) handleRemoveNode(c echo.Context) error {
	removed, err := s.manager.RemoveNode(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.fail(c, "remove_node", err)
	}
	return c.JSON(http.StatusOK, RemoveNodeResponse{Removed: removed})
}

func (s *Server) handleMoveNode(c echo.Context) error {
	var req MoveRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}
	if err := s.manager.MoveNode(c.Request().Context(), c.Param("id"), req.ParentID); err != nil {
		return s.fail(c, "move_node", err)
	}
	return s.handleGetNode(c)
}

func (s *Server) handleGetContent(c echo.Context) error {
	id := c.Param("id")
	text, err := s.manager.Content(c.Request().Context(), id)
	if err != nil {
		return s.fail(c, "content", err)
	}
	return c.JSON(http.StatusOK, ContentResponse{ID: id, Content: text})
}

func (s *Server) handleSetContent(c echo.Context) error {
	var req ContentRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}
	if err := s.manager.SetContent(c.Request().Context(), c.Param("id"), req.Content); err != nil {
		return s.fail(c, "set_content", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleSelectNode(c echo.Context) error {
	var req SelectionRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}
	if err := s.manager.SelectNode(c.Request().Context(), req.NodeID); err != nil {
		return s.fail(c, "select_node", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleReorder(c echo.Context) error {
	var req ReorderRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}
	if err := s.manager.ReorderChildren(c.Request().Context(), req.ParentID, req.Order); err != nil {
		return s.fail(c, "reorder", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handlePrompt(c echo.Context) error {
	ctx := c.Request().Context()
	p, err := s.manager.Active(ctx)
	if err != nil {
		return s.fail(c, "prompt", err)
	}

	opts := prompt.Options{HeaderPaths: s.config.HeaderPaths}
	if s.config.ScrubSecrets {
		opts.Scrubber = s.scrubber
	}
	out := prompt.Generate(p, opts)
	s.metrics.RecordPrompt(len(out.Text))
	if out.Redactions > 0 {
		s.logger.Info(logging.WithProjectID(ctx, p.ID), "redacted secrets from prompt",
			zap.Int("redactions", out.Redactions))
	}

	if strings.Contains(c.Request().Header.Get(echo.HeaderAccept), echo.MIMETextPlain) {
		return c.String(http.StatusOK, out.Text)
	}
	return c.JSON(http.StatusOK, PromptResponse{
		Prompt:     out.Text,
		Bytes:      len(out.Text),
		Redactions: out.Redactions,
		ByRule:     out.ByRule,
	})
}

func (s *Server) handleSuggestions(c echo.Context) error {
	p, err := s.manager.Active(c.Request().Context())
	if err != nil {
		return s.fail(c, "suggestions", err)
	}
	q := c.QueryParam("q")
	return c.JSON(http.StatusOK, SuggestionsResponse{Query: q, Suggestions: prompt.Suggest(p.Tree, q)})
}
