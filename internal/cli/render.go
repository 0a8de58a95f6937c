package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	errs "github.com/matzehuels/modgraph/pkg/errors"
	"github.com/matzehuels/modgraph/pkg/modgraph"
	"github.com/matzehuels/modgraph/pkg/render/nodelink"
)

// defaultScale is the PNG rasterization scale.
const defaultScale = 2.0

// renderOpts holds the command-line flags for the render command.
type renderOpts struct {
	output   string   // output file path (or base path for multiple outputs)
	formats  []string // output formats: "dot", "svg", "pdf", "png", "json"
	detailed bool     // show classes and parameter values
	flat     bool     // skip namespace clusters
	scale    float64  // PNG scale factor
}

// renderCommand creates the render command for generating diagrams.
func (c *CLI) renderCommand() *cobra.Command {
	var formatsStr string
	opts := renderOpts{scale: defaultScale}

	cmd := &cobra.Command{
		Use:   "render <project.toml>",
		Short: "Render a module graph to DOT, SVG, PDF or PNG",
		Long: `Render draws the modules of a project as nodes and their calls as labeled
edges. Namespaces become clusters unless --flat is given.

Multiple formats may be requested at once (-f svg,png); each is written next
to the output base path.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.formats = parseFormats(formatsStr)
			if err := validateFormats(opts.formats); err != nil {
				return err
			}
			_, g, err := c.loadGraph(args[0])
			if err != nil {
				return err
			}
			return runRender(cmd.Context(), cmd.ErrOrStderr(), g, args[0], &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (single format) or base path (multiple)")
	cmd.Flags().StringVarP(&formatsStr, "format", "f", "", "output format(s): svg (default), dot, pdf, png, json (comma-separated)")
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "show classes and parameter values")
	cmd.Flags().BoolVar(&opts.flat, "flat", false, "do not group modules by namespace")
	cmd.Flags().Float64Var(&opts.scale, "scale", opts.scale, "PNG scale factor")

	return cmd
}

// parseFormats parses the --format flag into a slice of output formats.
// If empty, defaults to ["svg"].
func parseFormats(s string) []string {
	if s == "" {
		return []string{"svg"}
	}
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// validFormats is the set of supported output formats.
var validFormats = map[string]bool{"dot": true, "svg": true, "pdf": true, "png": true, "json": true}

// validateFormats checks that all requested formats are valid.
func validateFormats(formats []string) error {
	for _, f := range formats {
		if !validFormats[f] {
			return errs.New(errs.ErrCodeInvalidInput, "invalid format: %s (must be 'svg', 'dot', 'pdf', 'png' or 'json')", f)
		}
	}
	return nil
}

// basePath derives the base output path from the output and input file paths.
// If output is empty, it strips the extension from input.
// If output has a format extension (.svg, .pdf, etc.), it strips that extension.
func basePath(output, input string) string {
	if output == "" {
		return strings.TrimSuffix(input, filepath.Ext(input))
	}
	ext := filepath.Ext(output)
	if validFormats[strings.TrimPrefix(ext, ".")] {
		return strings.TrimSuffix(output, ext)
	}
	return output
}

// runRender renders g to every requested format and writes the results.
// Progress is shown on status while Graphviz runs.
func runRender(ctx context.Context, status io.Writer, g *modgraph.Graph, input string, opts *renderOpts) error {
	logger := loggerFromContext(ctx)
	snap := g.Snapshot()
	logger.Infof("Rendering %d modules, %d calls", len(snap.Modules), len(snap.Calls))

	base := basePath(opts.output, input)
	for _, format := range opts.formats {
		spin := newSpinner(ctx, status, "Rendering "+format)
		spin.Start()
		data, err := renderSnapshot(ctx, snap, format, opts)
		if err != nil {
			spin.StopWithError("Rendering " + format + " failed")
			return fmt.Errorf("%s: %w", format, err)
		}
		spin.Stop()
		logger.Debugf("Generated %s: %d bytes", format, len(data))

		path := base + "." + format
		if opts.output != "" && len(opts.formats) == 1 {
			path = opts.output
		}
		if err := writeOutput(path, data); err != nil {
			return err
		}
		logger.Infof("Generated %s", path)
	}
	return nil
}

// renderSnapshot produces the bytes for one output format.
func renderSnapshot(ctx context.Context, snap *modgraph.Snapshot, format string, opts *renderOpts) ([]byte, error) {
	if format == "json" {
		return json.MarshalIndent(snap, "", "  ")
	}
	dot := nodelink.ToDOT(snap, nodelink.Options{Detailed: opts.detailed, Flat: opts.flat})
	switch format {
	case "dot":
		return []byte(dot), nil
	case "svg":
		return nodelink.RenderSVG(ctx, dot)
	case "pdf":
		return nodelink.RenderPDF(ctx, dot)
	case "png":
		return nodelink.RenderPNG(ctx, dot, opts.scale)
	default:
		return nil, errs.New(errs.ErrCodeInvalidInput, "unknown format: %s", format)
	}
}

// openOutput opens path for writing; "-" means stdout.
func openOutput(path string) (io.WriteCloser, error) {
	if path == "-" {
		return nopCloser{os.Stdout}, nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}
	return os.Create(path)
}

func writeOutput(path string, data []byte) error {
	out, err := openOutput(path)
	if err != nil {
		return err
	}
	if _, err := out.Write(data); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
