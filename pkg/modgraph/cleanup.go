package modgraph

import (
	"context"
	"slices"
	"time"

	"github.com/matzehuels/modgraph/pkg/module"
	"github.com/matzehuels/modgraph/pkg/object"
	"github.com/matzehuels/modgraph/pkg/observability"
)

// SweepResult describes one Cleanup run.
type SweepResult struct {
	Scanned  int           // objects inspected, including parameter slots
	Removed  []string      // full names of removed namespaces and modules
	Duration time.Duration // time spent holding the write lock
}

// KeepAll keeps every module; a sweep with it only drops empty namespaces.
func KeepAll(*module.Module) bool { return true }

// KeepClasses keeps the modules whose class is one of classes.
func KeepClasses(classes ...string) func(*module.Module) bool {
	set := make(map[string]struct{}, len(classes))
	for _, c := range classes {
		set[c] = struct{}{}
	}
	return func(m *module.Module) bool {
		_, ok := set[m.Class()]
		return ok
	}
}

// KeepReachable keeps the modules at roots and every module reachable from
// them through outbound calls.
func KeepReachable(roots ...*module.Module) func(*module.Module) bool {
	keep := make(map[*module.Module]struct{})
	stack := append([]*module.Module(nil), roots...)
	for len(stack) > 0 {
		m := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := keep[m]; ok {
			continue
		}
		keep[m] = struct{}{}
		for _, c := range m.Outgoing() {
			stack = append(stack, c.To())
		}
	}
	return func(m *module.Module) bool {
		_, ok := keep[m]
		return ok
	}
}

// Cleanup removes every namespace and module not needed by a module for
// which keep returns true.
//
// The sweep runs in two phases under the module graph write lock. First all
// objects are marked and the marks along kept modules are cleared. Then
// every marked namespace or module has its calls disconnected and its
// cleanup hook run before it is detached and destroyed.
func (g *Graph) Cleanup(ctx context.Context, keep func(*module.Module) bool) (*SweepResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if keep == nil {
		keep = KeepAll
	}

	g.lock().Lock()
	start := time.Now()

	objs := g.objects.Objects()
	for _, o := range objs {
		o.SetAllCleanupMarks()
	}
	g.Root().ClearCleanupMark()
	for _, n := range g.nodes {
		if n.module == nil || !keep(n.module) {
			continue
		}
		unmark(n.obj)
		for _, s := range n.module.Params() {
			s.Object().ClearCleanupMark()
		}
	}

	var doomed []*node
	for _, n := range g.nodes {
		if n.obj.CleanupMarked() {
			doomed = append(doomed, n)
		}
	}
	for _, o := range objs {
		if o.CleanupMarked() {
			o.DisconnectCalls()
		}
	}
	// PerformCleanup clears each mark after running the hook.
	for _, o := range objs {
		o.PerformCleanup()
	}
	removed := g.releaseLocked(doomed)
	slices.Sort(removed)

	res := &SweepResult{Scanned: len(objs), Removed: removed, Duration: time.Since(start)}
	g.lock().Unlock()

	g.logger.Info("cleanup", "scanned", res.Scanned, "removed", len(res.Removed), "duration", res.Duration)
	observability.Graph().OnSweep(ctx, res.Scanned, len(res.Removed), res.Duration)
	return res, nil
}

// unmark clears the cleanup mark of o and all its ancestors.
func unmark(o *object.Object) {
	o.ClearCleanupMark()
	for _, a := range o.Ancestors() {
		a.ClearCleanupMark()
	}
}
