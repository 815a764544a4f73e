// Package cli implements the arcpress command-line interface.
//
// This package provides commands for running personalization batches,
// previewing single artifacts for tuning, and managing the master-document
// archive. The CLI is built using cobra and supports verbose logging via the
// charmbracelet/log library.
//
// # Commands
//
// The main commands are:
//   - process: run a full batch from an orders CSV to an archived master
//   - preview: render one personalized artifact for arc tuning
//   - archive: list or prune archived master documents
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging.
package cli

import (
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/printlab/arcpress/pkg/buildinfo"
	"github.com/printlab/arcpress/pkg/config"
	"github.com/printlab/arcpress/pkg/pipeline"
)

// appName is the application name used for display.
const appName = "arcpress"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "Arcpress assembles personalized print batches",
		Long:         `Arcpress burns arc-curved personalization text into character artwork, places the results on print templates, and merges everything into a verified, archived master document.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())

	// Register all subcommands
	root.AddCommand(c.processCommand())
	root.AddCommand(c.previewCommand())
	root.AddCommand(c.archiveCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// loadConfig loads the TOML config at path, or the built-in defaults when
// path is empty.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// newRunner creates a pipeline runner for CLI use.
func (c *CLI) newRunner(configPath string) (*pipeline.Runner, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	return pipeline.NewRunner(cfg, c.Logger), nil
}
