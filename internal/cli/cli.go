// Package cli implements the modgraph command-line interface.
package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/modgraph/pkg/buildinfo"
	"github.com/matzehuels/modgraph/pkg/modgraph"
	"github.com/matzehuels/modgraph/pkg/project"
	"github.com/matzehuels/modgraph/pkg/store"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "modgraph"

	// envStore selects the snapshot store when --store is not given.
	envStore = "MODGRAPH_STORE"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// storeLocation overrides the snapshot store (--store).
	storeLocation string
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
		Short:        "modgraph inspects and maintains named module graphs",
		Long:         `modgraph loads module graph projects, prints their hierarchy, renders them as diagrams, sweeps unused modules, stores snapshots and serves an inspection API.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.storeLocation, "store", "",
		"snapshot store: directory, redis://..., mongodb://... or null (default: $"+envStore+" or cache dir)")

	root.AddCommand(c.inspectCommand())
	root.AddCommand(c.namesCommand())
	root.AddCommand(c.renderCommand())
	root.AddCommand(c.sweepCommand())
	root.AddCommand(c.snapshotCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Graph and Store Factories
// =============================================================================

// loadGraph reads a project file and builds its module graph.
func (c *CLI) loadGraph(path string) (*project.File, *modgraph.Graph, error) {
	f, err := project.Load(path)
	if err != nil {
		return nil, nil, err
	}
	g, err := f.Build(modgraph.Options{Logger: c.Logger})
	if err != nil {
		return nil, nil, err
	}
	c.Logger.Debug("loaded project", "path", path, "modules", len(f.Modules), "calls", len(f.Calls))
	return f, g, nil
}

// storeFlagOrEnv returns the --store flag, falling back to $MODGRAPH_STORE.
func (c *CLI) storeFlagOrEnv() string {
	if c.storeLocation != "" {
		return c.storeLocation
	}
	return os.Getenv(envStore)
}

// openSnapshots opens the configured snapshot store.
func (c *CLI) openSnapshots(ctx context.Context) (*store.Snapshots, error) {
	location := c.storeFlagOrEnv()
	if location == "" {
		dir, err := snapshotDir()
		if err != nil {
			return nil, err
		}
		location = dir
	}
	s, backend, err := store.Open(ctx, location)
	if err != nil {
		return nil, err
	}
	c.Logger.Debug("opened snapshot store", "backend", backend)
	return store.NewSnapshots(s, backend), nil
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/modgraph/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// snapshotDir returns the default file store directory.
func snapshotDir() (string, error) {
	dir, err := cacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "snapshots"), nil
}
