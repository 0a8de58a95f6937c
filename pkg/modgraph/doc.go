// Package modgraph provides the module graph container.
//
// # Overview
//
// A [Graph] holds the strong references to every namespace and module of one
// object hierarchy and addresses them by full name ("::inst::view"). The
// underlying [object.Graph] only knows weak parent links; the container is
// what keeps nodes alive, registers itself as their owner, and releases them
// again on removal.
//
//	g := modgraph.New(modgraph.Options{})
//	view, _ := g.AddModule("::inst::view", "View3D")
//	_, _ = g.AddModule("::inst::renderer", "SphereRenderer")
//	_, _ = g.Connect("::inst::view", "rendering", "::inst::renderer", "CallRender3D")
//
// Missing intermediate namespaces are created on demand, so adding
// "::inst::view" also creates "::inst".
//
// # Cleanup
//
// [Graph.Cleanup] runs the mark-and-sweep teardown: every object is marked,
// the marks of the modules selected by the keep function are cleared
// together with their ancestors and parameter slots, and everything still
// marked gets its calls disconnected, its cleanup hook run, its owner
// detached and is finally destroyed.
//
// # Concurrency
//
// Every structural operation holds the module graph write lock; queries hold
// the read lock. A Graph is safe for concurrent use.
package modgraph
