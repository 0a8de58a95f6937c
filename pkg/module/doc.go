// Package module provides the object kinds a module graph is assembled from.
//
// # Kinds
//
//   - [Module]: a processing node with a class name, a stable instance ID,
//     parameter slots and caller slots. It severs its calls on
//     DisconnectCalls and answers parameter relevance queries.
//   - [ParamSlot]: a child object of a module that holds one [Param].
//   - [Namespace]: an intermediate node that only contributes a name.
//
// Modules are connected by [Call] edges. A call leaves a named caller slot of
// its source module and enters the target module:
//
//	g := object.NewGraph()
//	view, _ := module.New(g, "view", "View3D")
//	rnd, _ := module.New(g, "renderer", "SphereRenderer")
//	call, _ := module.Connect(view, "rendering", rnd, "CallRender3D")
//
// A parameter is relevant to a module when one of the module's slots holds
// it, or when it is relevant to a module reachable through the outbound calls.
//
// # Concurrency
//
// Each module guards its own slot tables, so the methods here are safe for
// concurrent use. Structural changes that span several modules should still be
// made under the module graph lock (see [object.Object.ModuleGraphLock]).
package module
