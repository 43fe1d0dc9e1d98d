package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httpserver "github.com/fyrsmithlabs/promptpack/internal/http"
	mcpserver "github.com/fyrsmithlabs/promptpack/internal/mcp"
	"github.com/fyrsmithlabs/promptpack/internal/watch"
)

func newServeCmd(c *cli) *cobra.Command {
	var (
		host string
		port int
	)
	cmd := &cobra.Command{
		Use:         "serve",
		Short:       "Serve the project registry over HTTP",
		Annotations: map[string]string{daemonAnnotation: "true"},
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := c.app
			if cmd.Flags().Changed("host") {
				a.cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				a.cfg.Server.Port = port
			}
			return runServe(cmd.Context(), a)
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "listen host (overrides server.http_host)")
	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides server.http_port)")
	return cmd
}

// runServe runs the HTTP server, and the import inbox when configured,
// until ctx is cancelled or the server fails.
func runServe(ctx context.Context, a *app) error {
	srv, err := httpserver.NewServer(a.manager, a.logger, &httpserver.Config{
		Host:         a.cfg.Server.Host,
		Port:         a.cfg.Server.Port,
		RateLimit:    a.cfg.Server.RateLimit,
		HeaderPaths:  a.cfg.Prompt.HeaderPaths,
		ScrubSecrets: a.cfg.Prompt.ScrubSecrets,
	}, httpserver.WithScrubber(a.scrubber), httpserver.WithMetrics(a.metrics))
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	errCh := make(chan error, 2)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	if dir := a.cfg.Watch.Dir; dir != "" {
		inbox, err := watch.New(dir, a.manager, watch.WithLogger(a.logger))
		if err != nil {
			return err
		}
		go func() {
			if err := inbox.Run(ctx); err != nil {
				errCh <- err
			}
		}()
		go drainResults(ctx, inbox)
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info(ctx, "shutdown signal received")
	case runErr = <-errCh:
		a.logger.Error(ctx, "server failed", zap.Error(runErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Join(runErr, fmt.Errorf("http shutdown: %w", err))
	}
	return runErr
}

// drainResults empties the inbox result channel. The inbox logs every
// outcome itself.
func drainResults(ctx context.Context, inbox *watch.Inbox) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-inbox.Results():
		}
	}
}

func newMCPCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:         "mcp",
		Short:       "Serve the project registry as MCP tools on stdio",
		Annotations: map[string]string{daemonAnnotation: "true"},
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := c.app
			srv, err := mcpserver.NewServer(&mcpserver.Config{
				Name:        "promptpack",
				Version:     version,
				Logger:      a.logger,
				HeaderPaths: a.cfg.Prompt.HeaderPaths,
				Scrubber:    a.promptScrubber(),
				Metrics:     a.metrics,
			}, a.manager)
			if err != nil {
				return err
			}
			return srv.Run(cmd.Context())
		},
	}
}

func newWatchCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [dir]",
		Short: "Import project documents dropped into a directory",
		Long: `watch imports every *.json project document found in the inbox directory,
then keeps importing new ones until interrupted. Imported files are renamed
with a .imported suffix, rejected ones with .rejected.`,
		Annotations: map[string]string{daemonAnnotation: "true"},
		Args:        cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := c.app
			dir := a.cfg.Watch.Dir
			if len(args) == 1 {
				dir = args[0]
			}
			if dir == "" {
				return errors.New("no inbox directory: pass one or set watch.dir")
			}

			inbox, err := watch.New(dir, a.manager, watch.WithLogger(a.logger))
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			out := c.out(cmd)
			go func() {
				for {
					select {
					case <-ctx.Done():
						return
					case res := <-inbox.Results():
						printResult(out, res)
					}
				}
			}()
			fmt.Fprintf(os.Stderr, "watching %s\n", dir)
			return inbox.Run(ctx)
		},
	}
}
