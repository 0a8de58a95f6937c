// Package object provides the named, hierarchical object graph that modules,
// namespaces and parameter slots are built on.
//
// # Overview
//
// Every node in a module graph is an [Object]: it has a short name, a weak
// reference to its parent, an opaque non-owning owner, and a cleanup mark used
// by mark-and-sweep teardown. Objects live in a [Graph], an arena that hands
// out generation-checked [Handle] values. A handle never keeps its target
// alive: once an object is destroyed its handle resolves to nil, so children
// of a destroyed parent simply become detached instead of dangling.
//
// The graph root owns the single reader/writer lock that serializes
// structural access to the whole hierarchy. [Object.ModuleGraphLock] finds it
// by walking the parent chain and reports [ErrNoRoot] when the chain no longer
// reaches the root.
//
// # Names
//
// A name must not contain the separator "::". [Object.SetName] enforces this
// and returns [ErrInvalidName] on violation. The full name of an object is
// derived on demand:
//
//	g := object.NewGraph()
//	mid, _ := g.New("a", nil)
//	leaf, _ := g.New("b", nil)
//	_ = mid.SetParent(g.Root().Handle())
//	_ = leaf.SetParent(mid.Handle())
//	leaf.FullName() // "::a::b"
//
// # Kinds
//
// Behavior that differs between node kinds (cleanup, call disconnection,
// parameter relevance) is supplied through the [Kind] interface. [Base] holds
// the defaults: no-op cleanup and disconnection, and [NotApplicable] for every
// relevance query.
//
// # Concurrency
//
// Object fields are guarded by a short-lived internal lock, so every method is
// safe for concurrent use and never calls into a [Kind] while holding it. The
// module graph lock returned by [Object.ModuleGraphLock] is independent of that
// internal lock; it lets higher layers make multi-step structural changes
// atomic with respect to each other.
package object
