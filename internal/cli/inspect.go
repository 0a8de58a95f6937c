package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/charmbracelet/lipgloss/tree"
	"github.com/spf13/cobra"

	errs "github.com/matzehuels/modgraph/pkg/errors"
	"github.com/matzehuels/modgraph/pkg/modgraph"
)

// inspectCommand creates the inspect command for printing a project's hierarchy.
func (c *CLI) inspectCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "inspect <project.toml>",
		Short: "Print the namespace and module hierarchy of a project",
		Long: `Inspect loads a project file, builds its module graph and prints the
namespaces, modules, parameters and calls as a tree.

Use --json to print the graph snapshot instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, g, err := c.loadGraph(args[0])
			if err != nil {
				return err
			}
			snap := g.Snapshot()
			snap.Name = f.Name

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(snap)
			}
			printHierarchy(out, snap)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the snapshot as JSON")
	return cmd
}

// namesCommand creates the names command for listing full names.
func (c *CLI) namesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "names <project.toml>",
		Short: "Print the full name of every namespace, module and parameter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, g, err := c.loadGraph(args[0])
			if err != nil {
				return err
			}
			for _, name := range fullNames(g) {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

// fullNames returns the full names of all live objects below the root, sorted.
func fullNames(g *modgraph.Graph) []string {
	var names []string
	for _, o := range g.Objects().Objects() {
		if o.IsRoot() {
			continue
		}
		if name := o.FullName(); name != "" {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

// printHierarchy prints snap as a tree rooted at the project name.
func printHierarchy(w io.Writer, snap *modgraph.Snapshot) {
	title := snap.Name
	if title == "" {
		title = "::"
	}

	nodes := map[string]*tree.Tree{"": tree.Root(StyleTitle.Render(title))}
	var namespace func(path string) *tree.Tree
	namespace = func(path string) *tree.Tree {
		if t, ok := nodes[path]; ok {
			return t
		}
		parent, name, err := errs.ParentPath(path)
		if err != nil {
			return nodes[""]
		}
		p := namespace(parent)
		t := tree.Root(styleNamespace.Render(name))
		p.Child(t)
		nodes[path] = t
		return t
	}
	for _, ns := range snap.Namespaces {
		namespace(ns)
	}

	outgoing := make(map[string][]modgraph.CallSnapshot)
	for _, call := range snap.Calls {
		outgoing[call.From] = append(outgoing[call.From], call)
	}

	for _, m := range snap.Modules {
		parent, name, err := errs.ParentPath(m.Path)
		if err != nil {
			continue
		}
		t := tree.Root(StyleValue.Render(name) + " " + styleClass.Render(m.Class))
		for _, p := range m.Params {
			label := styleParam.Render(p.Name) + " = " + StyleValue.Render(p.Value)
			if p.Value != p.Default {
				label += StyleDim.Render(" (default " + p.Default + ")")
			}
			t.Child(label)
		}
		for _, call := range outgoing[m.Path] {
			t.Child(StyleHighlight.Render(call.Slot) + " " + StyleDim.Render(iconArrow) + " " +
				StyleValue.Render(call.To) + " " + styleClass.Render(call.Class))
		}
		namespace(parent).Child(t)
	}

	fmt.Fprintln(w, nodes[""].Enumerator(tree.RoundedEnumerator).EnumeratorStyle(StyleDim).String())
	printStats(w, len(snap.Namespaces), len(snap.Modules), len(snap.Calls))
}
