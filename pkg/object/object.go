package object

import (
	"fmt"
	"reflect"
	"strings"

	errs "github.com/matzehuels/modgraph/pkg/errors"
)

// Object is a named node in a [Graph].
//
// An object does not own its parent, its children or its owner. Strong
// references to objects are held by whatever container created them.
type Object struct {
	graph  *Graph
	handle Handle
	kind   Kind

	// guarded by graph.mu
	name        string
	parent      Handle
	owner       any
	cleanupMark bool
}

// Handle returns the weak handle that refers to o.
func (o *Object) Handle() Handle { return o.handle }

// Graph returns the graph o belongs to.
func (o *Object) Graph() *Graph { return o.graph }

// Kind returns the kind that supplies o's hooks.
func (o *Object) Kind() Kind { return o.kind }

// IsRoot reports whether o is the root of its graph.
func (o *Object) IsRoot() bool { return o == o.graph.root }

// IsAlive reports whether o has not been destroyed.
func (o *Object) IsAlive() bool { return o.graph.Resolve(o.handle) == o }

func (o *Object) String() string {
	if name := o.FullName(); name != "" {
		return name
	}
	return "::"
}

// Name returns the short name.
func (o *Object) Name() string {
	o.graph.mu.RLock()
	defer o.graph.mu.RUnlock()
	return o.name
}

// SetName replaces the short name. Returns ErrInvalidName if name contains
// "::"; the stored name is left unchanged in that case.
func (o *Object) SetName(name string) error {
	if err := errs.ValidateName(name); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidName, err)
	}
	o.graph.mu.Lock()
	defer o.graph.mu.Unlock()
	o.name = name
	return nil
}

// Parent returns the parent object, or nil if o is a root, is detached, or
// its parent has been destroyed.
func (o *Object) Parent() *Object {
	o.graph.mu.RLock()
	defer o.graph.mu.RUnlock()
	return o.graph.resolveLocked(o.parent)
}

// ParentHandle returns the raw parent handle, which may be stale.
func (o *Object) ParentHandle() Handle {
	o.graph.mu.RLock()
	defer o.graph.mu.RUnlock()
	return o.parent
}

// SetParent replaces the parent reference. [Nil] detaches o.
//
// Returns ErrStaleHandle if o or the parent has been destroyed,
// ErrRootImmutable if o is the graph root, and ErrCycle if the parent is o
// or one of its descendants.
func (o *Object) SetParent(parent Handle) error {
	g := o.graph
	if o == g.root {
		return ErrRootImmutable
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.resolveLocked(o.handle) != o {
		return ErrStaleHandle
	}
	if parent.IsNil() {
		o.parent = Nil
		return nil
	}
	p := g.resolveLocked(parent)
	if p == nil {
		return ErrStaleHandle
	}
	cycle := false
	if !g.walkUpLocked(p, func(a *Object) bool {
		if a == o {
			cycle = true
			return false
		}
		return true
	}) || cycle {
		return ErrCycle
	}
	o.parent = parent
	return nil
}

// Owner returns the registering context, or nil.
func (o *Object) Owner() any {
	o.graph.mu.RLock()
	defer o.graph.mu.RUnlock()
	return o.owner
}

// SetOwner sets or clears the owner. A nil owner always succeeds and clears
// it. A non-nil owner returns ErrAlreadyOwned if one is already set; the
// existing owner is never overwritten.
func (o *Object) SetOwner(owner any) error {
	if isNil(owner) {
		o.DetachOwner()
		return nil
	}
	return o.AttachOwner(owner)
}

// AttachOwner registers owner. Returns ErrAlreadyOwned if o already has one.
func (o *Object) AttachOwner(owner any) error {
	if isNil(owner) {
		return errs.New(errs.ErrCodeInvalidInput, "owner must not be nil")
	}
	o.graph.mu.Lock()
	defer o.graph.mu.Unlock()
	if o.owner != nil {
		return ErrAlreadyOwned
	}
	o.owner = owner
	return nil
}

// DetachOwner forgets the owner. The owner itself is never touched.
func (o *Object) DetachOwner() {
	o.graph.mu.Lock()
	o.owner = nil
	o.graph.mu.Unlock()
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface, reflect.UnsafePointer:
		return rv.IsNil()
	}
	return false
}

// FullName returns the "::"-separated path of o: "::"+name for every object
// from the root down to o. An anonymous root (empty name, no parent)
// contributes nothing, so a child of the default root is named "::child".
//
// The ancestor chain is snapshotted under the graph's internal read lock.
// If the chain is inconsistent FullName returns "" instead of failing.
func (o *Object) FullName() string {
	names, ok := o.pathSnapshot()
	if !ok {
		return ""
	}
	var b strings.Builder
	for i := len(names) - 1; i >= 0; i-- {
		b.WriteString(errs.Separator)
		b.WriteString(names[i])
	}
	return b.String()
}

// pathSnapshot returns the names from o upwards, leaf first.
func (o *Object) pathSnapshot() ([]string, bool) {
	g := o.graph
	g.mu.RLock()
	defer g.mu.RUnlock()
	var names []string
	ok := g.walkUpLocked(o, func(a *Object) bool {
		if a.name == "" && g.resolveLocked(a.parent) == nil {
			return false
		}
		names = append(names, a.name)
		return true
	})
	return names, ok
}

// Ancestors returns o's ancestors, parent first and root last.
func (o *Object) Ancestors() []*Object {
	g := o.graph
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []*Object
	g.walkUpLocked(g.resolveLocked(o.parent), func(a *Object) bool {
		out = append(out, a)
		return true
	})
	return out
}

// IsAttached reports whether o's ancestor chain reaches the graph root.
func (o *Object) IsAttached() bool {
	_, err := o.ModuleGraphLock()
	return err == nil
}

// ModuleGraphLock returns the reader/writer lock held by the graph root.
//
// The root returns its own lock. Any other object must reach the root by
// following parent links; a detached object, or one whose chain is broken
// by a destroyed ancestor, gets ErrNoRoot.
func (o *Object) ModuleGraphLock() (RWLocker, error) {
	g := o.graph
	if o == g.root {
		return g.lock, nil
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	found := false
	g.walkUpLocked(g.resolveLocked(o.parent), func(a *Object) bool {
		if a == g.root {
			found = true
			return false
		}
		return true
	})
	if !found {
		return nil, ErrNoRoot
	}
	return g.lock, nil
}

// CleanupMarked reports whether the cleanup mark is set.
func (o *Object) CleanupMarked() bool {
	o.graph.mu.RLock()
	defer o.graph.mu.RUnlock()
	return o.cleanupMark
}

// SetAllCleanupMarks sets o's cleanup mark. A sweep calls it on every
// reachable object before clearing the marks of the survivors.
func (o *Object) SetAllCleanupMarks() {
	o.graph.mu.Lock()
	o.cleanupMark = true
	o.graph.mu.Unlock()
}

// ClearCleanupMark clears o's cleanup mark.
func (o *Object) ClearCleanupMark() {
	o.graph.mu.Lock()
	o.cleanupMark = false
	o.graph.mu.Unlock()
}

// PerformCleanup runs the kind's cleanup hook if o is marked, then clears
// the mark. On an unmarked object it does nothing.
func (o *Object) PerformCleanup() {
	if !o.CleanupMarked() {
		return
	}
	o.kind.PerformCleanup(o)
	o.ClearCleanupMark()
}

// DisconnectCalls asks the kind to sever o's call edges.
func (o *Object) DisconnectCalls() {
	o.kind.DisconnectCalls(o)
}

// IsParamRelevant asks the kind whether p affects o. A nil visited set is
// allocated on demand.
func (o *Object) IsParamRelevant(visited Visited, p Param) Relevance {
	if visited == nil {
		visited = Visited{}
	}
	return o.kind.IsParamRelevant(o, visited, p)
}
