// Package mcp exposes the project registry as MCP tools over stdio.
//
// Tools call the registry directly:
//
//   - project_list, project_create, project_select
//   - node_add, content_set, tree_show
//   - prompt_generate
package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/fyrsmithlabs/promptpack/internal/logging"
	"github.com/fyrsmithlabs/promptpack/internal/metrics"
	"github.com/fyrsmithlabs/promptpack/internal/project"
	"github.com/fyrsmithlabs/promptpack/internal/secrets"
)

// Server is an MCP server backed by a project registry.
type Server struct {
	mcp      *mcp.Server
	manager  project.Manager
	scrubber secrets.Scrubber
	config   *Config
	metrics  *Metrics
	prom     *metrics.Metrics
	logger   *logging.Logger
}

// Config configures the MCP server.
type Config struct {
	// Name is the server implementation name (default: "promptpack")
	Name string

	// Version is the server version (default: "dev")
	Version string

	// Logger for structured logging. MCP owns stdout, so it must write
	// to stderr or OpenTelemetry only.
	Logger *logging.Logger

	// HeaderPaths renders prompt file headers as slash paths.
	HeaderPaths bool

	// Scrubber redacts prompt file content. Nil disables scrubbing.
	Scrubber secrets.Scrubber

	// Metrics records prompt sizes. Optional.
	Metrics *metrics.Metrics
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:    "promptpack",
		Version: "dev",
		Logger:  logging.NewNop(),
	}
}

// NewServer creates a new MCP server for mgr.
func NewServer(cfg *Config, mgr project.Manager) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if mgr == nil {
		return nil, errors.New("project manager is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}
	scrubber := cfg.Scrubber
	if scrubber == nil {
		scrubber = secrets.NoopScrubber{}
	}

	s := &Server{
		mcp: mcp.NewServer(&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		}, nil),
		manager:  mgr,
		scrubber: scrubber,
		config:   cfg,
		prom:     cfg.Metrics,
		logger:   cfg.Logger.Named("mcp"),
	}
	s.metrics = NewMetrics(s.logger)
	s.registerTools()

	return s, nil
}

// Run serves on the stdio transport until ctx is cancelled or the client
// disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info(ctx, "starting MCP server on stdio transport")
	if err := s.mcp.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("server run failed: %w", err)
	}
	return nil
}
