package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	errs "github.com/matzehuels/modgraph/pkg/errors"
	"github.com/matzehuels/modgraph/pkg/modgraph"
	"github.com/matzehuels/modgraph/pkg/project"
)

// snapshotCommand creates the snapshot management command.
func (c *CLI) snapshotCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Save, load and delete module graph snapshots",
		Long: `Snapshots capture the structure, instance IDs and parameter values of a
module graph. They are kept in the snapshot store selected with --store:
a directory (default: the user cache dir), redis://..., mongodb://... or null.`,
	}

	cmd.AddCommand(c.snapshotSaveCommand())
	cmd.AddCommand(c.snapshotLoadCommand())
	cmd.AddCommand(c.snapshotDeleteCommand())
	cmd.AddCommand(c.snapshotClearCommand())
	cmd.AddCommand(c.snapshotPathCommand())

	return cmd
}

// snapshotSaveCommand creates the "snapshot save" subcommand.
func (c *CLI) snapshotSaveCommand() *cobra.Command {
	var (
		name string
		ttl  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "save <project.toml>",
		Short: "Store a snapshot of a project's module graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			f, g, err := c.loadGraph(args[0])
			if err != nil {
				return err
			}
			if name == "" {
				name = snapshotName(f, args[0])
			}

			snaps, err := c.openSnapshots(ctx)
			if err != nil {
				return err
			}
			defer snaps.Store().Close()

			snap := g.Snapshot()
			snap.Name = f.Name
			hash, err := snaps.Save(ctx, name, snap, ttl)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printSuccess(out, "Saved snapshot %s", StyleHighlight.Render(name))
			printKeyValue(out, "modules", fmt.Sprint(len(snap.Modules)))
			printKeyValue(out, "calls", fmt.Sprint(len(snap.Calls)))
			printKeyValue(out, "hash", hash[:12])
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "snapshot name (default: project name)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "expire the snapshot after this duration (0 keeps it)")
	return cmd
}

// snapshotLoadCommand creates the "snapshot load" subcommand.
func (c *CLI) snapshotLoadCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "load <name>",
		Short: "Restore a snapshot and print it as a project file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			snaps, err := c.openSnapshots(ctx)
			if err != nil {
				return err
			}
			defer snaps.Store().Close()

			snap, err := snaps.Load(ctx, args[0])
			if err != nil {
				return err
			}
			// Restoring checks that the stored snapshot still forms a valid graph.
			g, err := modgraph.Restore(snap, modgraph.Options{Logger: c.Logger})
			if err != nil {
				return err
			}

			name := snap.Name
			if name == "" {
				name = args[0]
			}
			f := project.FromSnapshot(name, g.Snapshot())
			if output == "" {
				return f.Encode(cmd.OutOrStdout())
			}
			if err := project.Save(output, f); err != nil {
				return err
			}
			printSuccess(cmd.OutOrStdout(), "Restored snapshot %s", StyleHighlight.Render(args[0]))
			printFile(cmd.OutOrStdout(), output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write the project file here instead of stdout")
	return cmd
}

// snapshotDeleteCommand creates the "snapshot delete" subcommand.
func (c *CLI) snapshotDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a stored snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			snaps, err := c.openSnapshots(ctx)
			if err != nil {
				return err
			}
			defer snaps.Store().Close()

			if err := snaps.Delete(ctx, args[0]); err != nil {
				return err
			}
			printSuccess(cmd.OutOrStdout(), "Deleted snapshot %s", StyleHighlight.Render(args[0]))
			return nil
		},
	}
}

// snapshotClearCommand creates the "snapshot clear" subcommand.
func (c *CLI) snapshotClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove all snapshots from the local snapshot directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			dir, err := c.localSnapshotDir()
			if err != nil {
				return err
			}

			if _, err := os.Stat(dir); os.IsNotExist(err) {
				printInfo(out, "No snapshots stored")
				return nil
			}

			count, err := clearDir(dir)
			if err != nil {
				return errs.Wrap(errs.ErrCodeStorage, err, "clear %s", dir)
			}

			printSuccess(out, "Cleared %d snapshots", count)
			printDetail(out, "Directory: %s", dir)
			return nil
		},
	}
}

// snapshotPathCommand creates the "snapshot path" subcommand.
func (c *CLI) snapshotPathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the local snapshot directory path",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := c.localSnapshotDir()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), dir)
			return nil
		},
	}
}

// localSnapshotDir returns the directory of the file store. Remote stores
// have no local directory.
func (c *CLI) localSnapshotDir() (string, error) {
	loc := c.storeFlagOrEnv()
	if loc == "" {
		return snapshotDir()
	}
	if loc == "null" || strings.Contains(loc, "://") && !strings.HasPrefix(loc, "file://") {
		return "", errs.New(errs.ErrCodeUnsupported, "store %q has no local directory", loc)
	}
	return strings.TrimPrefix(loc, "file://"), nil
}

// clearDir removes every file below dir and then the emptied subdirectories.
func clearDir(dir string) (int, error) {
	count := 0
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors, continue walking
		}
		if path == dir {
			return nil
		}
		if !info.IsDir() {
			if err := os.Remove(path); err == nil {
				count++
			}
		}
		return nil
	})
	if err != nil {
		return count, err
	}

	// Clean up empty subdirectories
	_ = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || path == dir {
			return nil
		}
		if info.IsDir() {
			os.Remove(path)
		}
		return nil
	})
	return count, nil
}

// snapshotName picks the default snapshot name: the project name, or the
// input file's base name.
func snapshotName(f *project.File, input string) string {
	if f.Name != "" && errs.ValidateSegment(f.Name) == nil {
		return f.Name
	}
	base := filepath.Base(input)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
