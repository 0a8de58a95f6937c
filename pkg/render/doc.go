// Package render provides visualization rendering for module graphs.
//
// # Overview
//
// This package contains generic format conversion shared by the renderers:
//
//   - SVG to PDF via [ToPDF]
//   - SVG to PNG via [ToPNG]
//
// Both shell out to the rsvg-convert tool from librsvg; [Available] reports
// whether it is installed.
//
//	svg, err := nodelink.RenderSVG(ctx, dot)
//	pdf, err := render.ToPDF(ctx, svg)
//	png, err := render.ToPNG(ctx, svg, 2.0)  // 2x scale
//
// # Node-Link Diagrams
//
// The [nodelink] subpackage renders module graphs as directed diagrams using
// Graphviz. Modules appear as boxes, calls as labelled arrows and namespaces
// as nested clusters.
//
// [nodelink]: github.com/matzehuels/modgraph/pkg/render/nodelink
package render
