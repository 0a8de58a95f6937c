package object

import (
	"errors"
	"fmt"
	"sync"

	errs "github.com/matzehuels/modgraph/pkg/errors"
)

var (
	// ErrInvalidName is returned by [Graph.New] and [Object.SetName] when the
	// name contains the separator "::".
	ErrInvalidName = errors.New("invalid object name")

	// ErrAlreadyOwned is returned by [Object.SetOwner] and [Object.AttachOwner]
	// when a non-nil owner is set on an object that already has one. The
	// current owner must be detached first.
	ErrAlreadyOwned = errors.New("object already has an owner")

	// ErrNoRoot is returned by [Object.ModuleGraphLock] when the object's
	// ancestor chain does not reach the graph root.
	ErrNoRoot = errors.New("object is not attached to a graph root")

	// ErrCycle is returned by [Object.SetParent] when the new parent is the
	// object itself or one of its descendants.
	ErrCycle = errors.New("parent link would create a cycle")

	// ErrStaleHandle is returned when a handle refers to a destroyed object
	// or was never issued by the graph.
	ErrStaleHandle = errors.New("stale object handle")

	// ErrRootImmutable is returned when an operation would reparent or
	// destroy the graph root.
	ErrRootImmutable = errors.New("graph root cannot be reparented or destroyed")

	// ErrUnsupported is what [NotApplicable] maps to via [Relevance.Err].
	ErrUnsupported = errors.New("operation not supported for this kind")
)

// Handle is a weak reference to an object in a [Graph].
//
// The zero value is [Nil] and refers to no object. A handle stays valid until
// its object is destroyed; afterwards it resolves to nil even if the slot is
// reused, because every reuse bumps the slot generation.
type Handle struct {
	index uint32
	gen   uint32
}

// Nil is the handle that refers to no object.
var Nil Handle

// IsNil reports whether h is the nil handle.
func (h Handle) IsNil() bool { return h == Nil }

func (h Handle) String() string {
	if h.IsNil() {
		return "nil"
	}
	return fmt.Sprintf("%d@%d", h.index, h.gen)
}

type slot struct {
	gen uint32
	obj *Object
}

// Graph is the arena that owns object identity and the module graph lock.
//
// The zero value is not usable - use NewGraph.
type Graph struct {
	mu    sync.RWMutex // guards slots, free and all Object fields
	lock  RWLocker
	slots []slot
	free  []uint32
	live  int
	root  *Object
}

// Option configures a Graph.
type Option func(*Graph)

// WithLock makes l the module graph lock held by the root.
// A nil lock is ignored.
func WithLock(l RWLocker) Option {
	return func(g *Graph) {
		if l != nil {
			g.lock = l
		}
	}
}

// WithInstrumentedLock wraps the module graph lock so that acquisition waits
// are reported to observability hooks. Apply it after [WithLock].
func WithInstrumentedLock() Option {
	return func(g *Graph) {
		g.lock = Instrument(g.lock)
	}
}

// NewGraph creates a graph holding an anonymous root object.
func NewGraph(opts ...Option) *Graph {
	g := &Graph{
		lock:  &sync.RWMutex{},
		slots: make([]slot, 1), // index 0 backs the Nil handle
	}
	for _, opt := range opts {
		opt(g)
	}
	g.mu.Lock()
	g.root = g.allocLocked(Base{})
	g.mu.Unlock()
	return g
}

// Root returns the graph root.
func (g *Graph) Root() *Object { return g.root }

// Lock returns the module graph lock held by the root.
func (g *Graph) Lock() RWLocker { return g.lock }

// New creates a detached object. A nil kind selects [Base].
// Returns ErrInvalidName if name contains "::".
func (g *Graph) New(name string, kind Kind) (*Object, error) {
	if err := errs.ValidateName(name); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidName, err)
	}
	if kind == nil {
		kind = Base{}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	o := g.allocLocked(kind)
	o.name = name
	return o, nil
}

func (g *Graph) allocLocked(kind Kind) *Object {
	var idx uint32
	if n := len(g.free); n > 0 {
		idx = g.free[n-1]
		g.free = g.free[:n-1]
	} else {
		g.slots = append(g.slots, slot{})
		idx = uint32(len(g.slots) - 1)
	}
	s := &g.slots[idx]
	if s.gen == 0 {
		s.gen = 1
	}
	o := &Object{graph: g, handle: Handle{index: idx, gen: s.gen}, kind: kind}
	s.obj = o
	g.live++
	return o
}

// Resolve returns the object h refers to, or nil if it has been destroyed.
func (g *Graph) Resolve(h Handle) *Object {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.resolveLocked(h)
}

func (g *Graph) resolveLocked(h Handle) *Object {
	if h.index == 0 || int(h.index) >= len(g.slots) {
		return nil
	}
	s := g.slots[h.index]
	if s.gen != h.gen {
		return nil
	}
	return s.obj
}

// Destroy removes o from the graph. Its handle becomes stale, its parent
// link and owner are released, and children that pointed at it become
// detached. Destroy never touches the owner or the children themselves.
func (g *Graph) Destroy(o *Object) error {
	if o == g.root {
		return ErrRootImmutable
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.resolveLocked(o.handle) != o {
		return ErrStaleHandle
	}
	s := &g.slots[o.handle.index]
	s.obj = nil
	s.gen++
	if s.gen == 0 {
		s.gen = 1
	}
	g.free = append(g.free, o.handle.index)
	g.live--
	o.parent = Nil
	o.owner = nil
	o.cleanupMark = false
	return nil
}

// Len returns the number of live objects, including the root.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.live
}

// Objects returns a snapshot of all live objects in allocation-slot order.
func (g *Graph) Objects() []*Object {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Object, 0, g.live)
	for _, s := range g.slots[1:] {
		if s.obj != nil {
			out = append(out, s.obj)
		}
	}
	return out
}

// walkUpLocked calls fn for o and each resolvable ancestor until fn returns
// false or the chain ends. It reports false if the chain is longer than the
// number of live objects, which only happens on a cycle.
func (g *Graph) walkUpLocked(o *Object, fn func(*Object) bool) bool {
	for steps := 0; o != nil; steps++ {
		if steps > g.live {
			return false
		}
		if !fn(o) {
			return true
		}
		o = g.resolveLocked(o.parent)
	}
	return true
}
