// Package pkg provides the core libraries for modgraph.
//
// # Overview
//
// modgraph models a hierarchy of named objects: a root, namespaces below it
// and module instances below those, connected by calls between module slots.
// The pkg directory is organized into these areas:
//
//  1. [object] - The object core (names, weak parent links, owners, cleanup marks, graph lock)
//  2. [module] - Modules, parameter slots and calls built on object kinds
//  3. [modgraph] - The locked container: paths, lookup, sweeps and snapshots
//  4. [project] - TOML project files
//  5. [store] - Snapshot storage (file, Redis, MongoDB)
//  6. [render] - Graphviz diagrams
//  7. [api] - HTTP inspection API
//
// Supporting packages are [errors] for structured error codes and path
// validation, [observability] for hooks and [buildinfo] for version data.
//
// # Architecture
//
// The typical data flow:
//
//	project file (TOML) or stored snapshot
//	         ↓
//	    [project] / [store] package (decode)
//	         ↓
//	    [modgraph] package (build graph of [object] + [module])
//	         ↓
//	    inspect / sweep / render / serve
//
// # Quick Start
//
// Build a graph, sweep it and render the result:
//
//	import (
//	    "context"
//	    "github.com/matzehuels/modgraph/pkg/modgraph"
//	    "github.com/matzehuels/modgraph/pkg/render/nodelink"
//	)
//
//	g := modgraph.New(modgraph.Options{})
//	view, _ := g.AddModule("::inst::view", "View3D")
//	g.AddModule("::inst::renderer", "SphereRenderer")
//	g.AddModule("::clock", "Clock")
//	g.Connect("::inst::view", "rendering", "::inst::renderer", "CallRender3D")
//
//	res, _ := g.Cleanup(context.Background(), modgraph.KeepReachable(view))
//	// res.Removed == []string{"::clock"}
//
//	dot := nodelink.ToDOT(g.Snapshot(), nodelink.Options{Detailed: true})
//	svg, _ := nodelink.RenderSVG(context.Background(), dot)
//
// # Concurrency
//
// A graph's root holds one reader/writer lock for the whole hierarchy.
// [modgraph.Graph] takes it for every operation; code that walks objects
// directly takes it through [object.Object.ModuleGraphLock].
package pkg
