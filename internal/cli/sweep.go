package cli

import (
	"strings"

	"github.com/spf13/cobra"

	errs "github.com/matzehuels/modgraph/pkg/errors"
	"github.com/matzehuels/modgraph/pkg/modgraph"
	"github.com/matzehuels/modgraph/pkg/module"
	"github.com/matzehuels/modgraph/pkg/project"
)

// sweepOpts holds the command-line flags for the sweep command.
type sweepOpts struct {
	keep      []string // module paths whose call closure survives
	keepClass []string // classes whose instances survive
	output    string   // project file for the swept graph
}

// sweepCommand creates the sweep command for removing unused modules.
func (c *CLI) sweepCommand() *cobra.Command {
	var opts sweepOpts

	cmd := &cobra.Command{
		Use:   "sweep <project.toml>",
		Short: "Remove modules that are not reachable from the kept ones",
		Long: `Sweep marks every object of the graph for cleanup, unmarks the kept modules
together with everything they call, and removes the rest.

Kept modules are selected by path (--keep) or class (--keep-class). The swept
graph is written to --output as a project file when given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runSweep(cmd, args[0], &opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.keep, "keep", nil, "module paths to keep with their callees (comma-separated)")
	cmd.Flags().StringSliceVar(&opts.keepClass, "keep-class", nil, "module classes to keep with their callees (comma-separated)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "write the swept project to this file")

	return cmd
}

func (c *CLI) runSweep(cmd *cobra.Command, input string, opts *sweepOpts) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if len(opts.keep) == 0 && len(opts.keepClass) == 0 {
		return errs.New(errs.ErrCodeInvalidInput, "nothing to keep: pass --keep or --keep-class")
	}

	f, g, err := c.loadGraph(input)
	if err != nil {
		return err
	}

	keep, err := sweepKeeper(g, opts)
	if err != nil {
		return err
	}

	before := len(g.Modules())
	prog := newProgress(loggerFromContext(ctx))
	res, err := g.Cleanup(ctx, keep)
	if err != nil {
		return err
	}
	prog.done("Sweep finished")

	if len(res.Removed) == 0 {
		printInfo(out, "Nothing to remove (%d objects scanned)", res.Scanned)
	} else {
		printSuccess(out, "Removed %d namespaces and modules (%d objects scanned)", len(res.Removed), res.Scanned)
		for _, name := range res.Removed {
			printDetail(out, "%s", name)
		}
		if before > 0 && len(g.Modules()) == 0 {
			printWarning(out, "No modules left: none of the kept selections matched")
		}
	}

	if opts.output != "" {
		swept := project.FromSnapshot(f.Name, g.Snapshot())
		if err := project.Save(opts.output, swept); err != nil {
			return err
		}
		printFile(out, opts.output)
	}
	return nil
}

// sweepKeeper combines the path and class selections into one keep predicate.
// Class matches are expanded to their call closure like explicit paths.
func sweepKeeper(g *modgraph.Graph, opts *sweepOpts) (func(*module.Module) bool, error) {
	var roots []*module.Module
	for _, p := range opts.keep {
		m, err := g.Find(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		roots = append(roots, m)
	}
	if len(opts.keepClass) > 0 {
		byClass := modgraph.KeepClasses(opts.keepClass...)
		for _, m := range g.Modules() {
			if byClass(m) {
				roots = append(roots, m)
			}
		}
	}
	return modgraph.KeepReachable(roots...), nil
}
