// Package main implements the promptpack CLI and daemon.
//
// Every command opens the configured storage and works on the project
// registry directly. serve exposes the registry over HTTP, mcp over the MCP
// stdio transport, and watch imports documents dropped into an inbox.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	c := &cli{}
	if err := execute(ctx, c, newRootCmd(c)); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// cli carries the global flags and the app opened by the root pre-run hook.
type cli struct {
	app *app

	configPath string
	storage    string
	dataDir    string
	logLevel   string
}

func (c *cli) out(cmd *cobra.Command) io.Writer {
	return cmd.OutOrStdout()
}

// daemonAnnotation marks long-running commands, which log at the
// configured level instead of warn.
const daemonAnnotation = "daemon"

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:   "promptpack",
		Short: "Assemble file trees and instructions into model prompts",
		Long: `promptpack keeps named projects of files, folders and instructions and
renders the active project into a single prompt.

Examples:
  promptpack project create "Demo"
  promptpack node add-folder src
  promptpack node add-file main.ts --parent src
  promptpack content set src/main.ts --file ./main.ts
  promptpack prompt`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if c.app != nil || cmd.Annotations["noapp"] == "true" {
				return nil
			}
			a, err := openApp(cmd.Context(), appOptions{
				configPath: c.configPath,
				storage:    c.storage,
				dataDir:    c.dataDir,
				logLevel:   c.logLevel,
				daemon:     cmd.Annotations[daemonAnnotation] == "true",
			})
			if err != nil {
				return err
			}
			c.app = a
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "", "config file (default ~/.config/promptpack/config.yaml)")
	flags.StringVar(&c.storage, "storage", "", "storage driver: memory, file, sqlite, postgres")
	flags.StringVar(&c.dataDir, "data-dir", "", "data directory or database file")
	flags.StringVar(&c.logLevel, "log-level", "", "log level: trace, debug, info, warn, error")

	root.AddCommand(
		newServeCmd(c),
		newMCPCmd(c),
		newWatchCmd(c),
		newProjectCmd(c),
		newInstructionsCmd(c),
		newNodeCmd(c),
		newContentCmd(c),
		newPromptCmd(c),
		newExportCmd(c),
		newImportCmd(c),
		newVersionCmd(),
	)
	return root
}

// execute runs root and releases whatever the command opened, also when
// it failed.
func execute(ctx context.Context, c *cli, root *cobra.Command) error {
	err := root.ExecuteContext(ctx)
	if c.app != nil {
		err = errors.Join(err, c.app.Close(ctx))
		c.app = nil
	}
	return err
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Show version information",
		Annotations: map[string]string{"noapp": "true"},
		Args:        cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "promptpack by Fyrsmith Labs\n")
			fmt.Fprintf(out, "Version:    %s\n", version)
			fmt.Fprintf(out, "Commit:     %s\n", gitCommit)
			fmt.Fprintf(out, "Build Date: %s\n", buildDate)
		},
	}
}
