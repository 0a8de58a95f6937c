package nodelink

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	errs "github.com/matzehuels/modgraph/pkg/errors"
	"github.com/matzehuels/modgraph/pkg/modgraph"
	"github.com/matzehuels/modgraph/pkg/render"
)

// Options configures node-link diagram rendering.
type Options struct {
	// Detailed adds the module class and parameter values to node labels
	// and the call class to edge labels.
	Detailed bool

	// Flat draws all modules at top level instead of grouping them into
	// namespace clusters.
	Flat bool
}

// ToDOT converts a module graph snapshot to Graphviz DOT format.
// The resulting DOT string can be rendered using [RenderSVG], [RenderPDF], or [RenderPNG].
//
// Node IDs are module full names. Unless [Options.Flat] is set, every
// namespace becomes a cluster nested inside its parent namespace.
func ToDOT(s *modgraph.Snapshot, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=24, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.5;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	if opts.Flat {
		for _, m := range s.Modules {
			writeNode(&buf, "  ", m, opts.Detailed)
		}
	} else {
		t := buildTree(s)
		t.write(&buf, "", "  ", opts.Detailed)
	}

	buf.WriteString("\n")
	for _, c := range s.Calls {
		label := c.Slot
		if opts.Detailed && c.Class != "" {
			label += "\n" + c.Class
		}
		fmt.Fprintf(&buf, "  %q -> %q [label=%q];\n", canonical(c.From), canonical(c.To), label)
	}

	buf.WriteString("}\n")
	return buf.String()
}

// tree groups modules and namespaces by their parent's full name.
type tree struct {
	namespaces map[string][]string
	modules    map[string][]modgraph.ModuleSnapshot
}

func buildTree(s *modgraph.Snapshot) *tree {
	t := &tree{
		namespaces: make(map[string][]string),
		modules:    make(map[string][]modgraph.ModuleSnapshot),
	}
	seen := map[string]bool{"": true}
	var addNamespace func(path string)
	addNamespace = func(path string) {
		if seen[path] {
			return
		}
		seen[path] = true
		parent, _, err := errs.ParentPath(path)
		if err != nil {
			return
		}
		addNamespace(parent)
		t.namespaces[parent] = append(t.namespaces[parent], path)
	}
	for _, ns := range s.Namespaces {
		addNamespace(canonical(ns))
	}
	for _, m := range s.Modules {
		parent, _, err := errs.ParentPath(m.Path)
		if err != nil {
			continue
		}
		addNamespace(parent)
		t.modules[parent] = append(t.modules[parent], m)
	}
	for _, v := range t.namespaces {
		slices.Sort(v)
	}
	return t
}

func (t *tree) write(buf *bytes.Buffer, parent, indent string, detailed bool) {
	for _, m := range t.modules[parent] {
		writeNode(buf, indent, m, detailed)
	}
	for _, ns := range t.namespaces[parent] {
		_, name, _ := errs.ParentPath(ns)
		fmt.Fprintf(buf, "%ssubgraph %q {\n", indent, "cluster_"+ns)
		fmt.Fprintf(buf, "%s  label=%q;\n", indent, name)
		fmt.Fprintf(buf, "%s  style=\"rounded,dashed\";\n", indent)
		t.write(buf, ns, indent+"  ", detailed)
		fmt.Fprintf(buf, "%s}\n", indent)
	}
}

func writeNode(buf *bytes.Buffer, indent string, m modgraph.ModuleSnapshot, detailed bool) {
	id := canonical(m.Path)
	_, name, _ := errs.ParentPath(id)
	fmt.Fprintf(buf, "%s%q [label=%q];\n", indent, id, fmtLabel(name, m, detailed))
}

func fmtLabel(name string, m modgraph.ModuleSnapshot, detailed bool) string {
	if !detailed {
		return name
	}
	parts := []string{name, m.Class}
	for _, p := range m.Params {
		parts = append(parts, fmt.Sprintf("%s: %s", p.Name, p.Value))
	}
	return strings.Join(parts, "\n")
}

// canonical normalizes a path to its "::"-prefixed form so node IDs match
// regardless of how the snapshot spelled them.
func canonical(path string) string {
	parts, err := errs.SplitFullName(path)
	if err != nil {
		return path
	}
	return errs.JoinFullName(parts...)
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
// Returns the SVG bytes ready for display or further conversion with [render.ToPDF] or [render.ToPNG].
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeInternal, err, "init graphviz")
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidFormat, err, "parse DOT")
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, errs.Wrap(errs.ErrCodeInternal, err, "render")
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	newSvg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)

	return svgTagRe.ReplaceAll(svg, []byte(newSvg))
}

// RenderPDF renders a DOT graph as PDF via SVG conversion.
//
// Requires librsvg: brew install librsvg (macOS), apt install librsvg2-bin (Linux).
func RenderPDF(ctx context.Context, dot string) ([]byte, error) {
	svg, err := RenderSVG(ctx, dot)
	if err != nil {
		return nil, err
	}
	return render.ToPDF(ctx, svg)
}

// RenderPNG renders a DOT graph as PNG via SVG conversion.
// A scale of 2.0 produces a 2x resolution image suitable for high-DPI displays.
func RenderPNG(ctx context.Context, dot string, scale float64) ([]byte, error) {
	svg, err := RenderSVG(ctx, dot)
	if err != nil {
		return nil, err
	}
	return render.ToPNG(ctx, svg, scale)
}
