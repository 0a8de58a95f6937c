package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/modgraph/pkg/api"
	errs "github.com/matzehuels/modgraph/pkg/errors"
	"github.com/matzehuels/modgraph/pkg/modgraph"
)

const (
	defaultAddr     = "127.0.0.1:8420"
	shutdownTimeout = 5 * time.Second
)

// serveCommand creates the serve command for the HTTP inspection API.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr     string
		snapshot string
	)

	cmd := &cobra.Command{
		Use:   "serve [project.toml]",
		Short: "Serve the HTTP inspection API for a module graph",
		Long: `Serve builds the module graph of a project file, or restores it from a stored
snapshot with --snapshot, and serves it over HTTP until interrupted.

Endpoints include /modules, /calls, /snapshot, /graph.svg and /cleanup.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			g, err := c.serveGraph(ctx, args, snapshot)
			if err != nil {
				return err
			}

			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return err
			}
			printSuccess(cmd.OutOrStdout(), "Serving %d modules on %s",
				len(g.Modules()), StyleHighlight.Render("http://"+ln.Addr().String()))
			return c.serve(ctx, ln, g)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", defaultAddr, "listen address")
	cmd.Flags().StringVar(&snapshot, "snapshot", "", "restore the graph from this stored snapshot")
	return cmd
}

// serveGraph loads the graph to serve from a project file or a snapshot.
func (c *CLI) serveGraph(ctx context.Context, args []string, snapshot string) (*modgraph.Graph, error) {
	if snapshot == "" {
		if len(args) == 0 {
			return nil, errs.New(errs.ErrCodeInvalidInput, "serve needs a project file or --snapshot")
		}
		_, g, err := c.loadGraph(args[0])
		return g, err
	}

	snaps, err := c.openSnapshots(ctx)
	if err != nil {
		return nil, err
	}
	defer snaps.Store().Close()

	snap, err := snaps.Load(ctx, snapshot)
	if err != nil {
		return nil, err
	}
	return modgraph.Restore(snap, modgraph.Options{Logger: c.Logger})
}

// serve runs the API on ln until ctx is cancelled, then shuts down gracefully.
func (c *CLI) serve(ctx context.Context, ln net.Listener, g *modgraph.Graph) error {
	srv := &http.Server{
		Handler:           api.New(g, c.Logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		c.Logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return eg.Wait()
}
