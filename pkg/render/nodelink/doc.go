// Package nodelink renders module graphs as node-link diagrams.
//
// # Overview
//
// This package produces directed graph visualizations using Graphviz. Modules
// appear as boxes, calls as arrows labelled with their caller slot, and
// namespaces as nested dashed clusters.
//
// # Usage
//
// Convert a snapshot to DOT format, then render to SVG:
//
//	dot := nodelink.ToDOT(g.Snapshot(), nodelink.Options{})
//	svg, err := nodelink.RenderSVG(ctx, dot)
//
// For PDF or PNG output:
//
//	pdf, err := nodelink.RenderPDF(ctx, dot)
//	png, err := nodelink.RenderPNG(ctx, dot, 2.0)  // 2x scale
//
// # Options
//
//   - Detailed: labels include module class, parameter values and call class
//   - Flat: no namespace clusters
//
// # Dependencies
//
// This package uses [github.com/goccy/go-graphviz] for in-process SVG
// rendering. PDF and PNG conversion requires librsvg (rsvg-convert).
package nodelink
