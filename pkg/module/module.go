package module

import (
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	errs "github.com/matzehuels/modgraph/pkg/errors"
	"github.com/matzehuels/modgraph/pkg/object"
)

// Module is a processing node in the module graph.
type Module struct {
	obj   *object.Object
	class string
	id    uuid.UUID

	mu       sync.Mutex
	params   []*ParamSlot
	callers  map[string]*Call // caller slot -> outbound call
	callees  []*Call          // inbound calls
	released bool
}

// New creates a detached module with a fresh instance ID.
func New(g *object.Graph, name, class string) (*Module, error) {
	return NewWithID(g, name, class, uuid.New())
}

// NewWithID creates a detached module with the given instance ID.
// It is used when restoring snapshots.
func NewWithID(g *object.Graph, name, class string, id uuid.UUID) (*Module, error) {
	if class == "" {
		return nil, errs.New(errs.ErrCodeInvalidInput, "module %q has no class", name)
	}
	m := &Module{
		class:   class,
		id:      id,
		callers: make(map[string]*Call),
	}
	obj, err := g.New(name, m)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidName, err, "module %q", name)
	}
	m.obj = obj
	return m, nil
}

// Object returns the module's object.
func (m *Module) Object() *object.Object { return m.obj }

// Name returns the short name.
func (m *Module) Name() string { return m.obj.Name() }

// FullName returns the "::"-separated path of the module.
func (m *Module) FullName() string { return m.obj.FullName() }

// Class returns the module class.
func (m *Module) Class() string { return m.class }

// ID returns the instance ID.
func (m *Module) ID() uuid.UUID { return m.id }

func (m *Module) String() string { return m.FullName() + " (" + m.class + ")" }

// AddParam creates a parameter slot as a child object of the module.
// The slot is owned by the module. Modules held by a module graph must be
// extended under its write lock, which modgraph.Graph.AddParam takes.
func (m *Module) AddParam(name, def string) (*ParamSlot, error) {
	if err := errs.ValidateSegment(name); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.params {
		if s.obj.Name() == name {
			return nil, errs.New(errs.ErrCodeDuplicate, "module %s already has parameter %q", m.obj, name)
		}
	}

	s := &ParamSlot{param: NewParam(name, def), module: m}
	obj, err := m.obj.Graph().New(name, s)
	if err != nil {
		return nil, err
	}
	s.obj = obj
	if err := obj.SetParent(m.obj.Handle()); err != nil {
		_ = m.obj.Graph().Destroy(obj)
		return nil, err
	}
	if err := obj.AttachOwner(m); err != nil {
		_ = m.obj.Graph().Destroy(obj)
		return nil, err
	}
	m.params = append(m.params, s)
	return s, nil
}

// Param returns the parameter slot with the given name.
func (m *Module) Param(name string) (*ParamSlot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.params {
		if s.obj.Name() == name {
			return s, true
		}
	}
	return nil, false
}

// Params returns the parameter slots in creation order.
func (m *Module) Params() []*ParamSlot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.params)
}

// Outgoing returns the outbound calls sorted by caller slot.
func (m *Module) Outgoing() []*Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Call, 0, len(m.callers))
	for _, c := range m.callers {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b *Call) int { return strings.Compare(a.slot, b.slot) })
	return out
}

// Incoming returns the inbound calls in connection order.
func (m *Module) Incoming() []*Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.callees)
}

// Caller returns the call leaving the given caller slot.
func (m *Module) Caller(slot string) (*Call, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.callers[slot]
	return c, ok
}

// Released reports whether PerformCleanup has torn the module down.
func (m *Module) Released() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.released
}

// Disconnect severs every inbound and outbound call and returns how many
// calls were severed by this invocation.
func (m *Module) Disconnect() int {
	m.mu.Lock()
	calls := make([]*Call, 0, len(m.callers)+len(m.callees))
	for _, c := range m.callers {
		calls = append(calls, c)
	}
	calls = append(calls, m.callees...)
	m.mu.Unlock()

	n := 0
	for _, c := range calls {
		if c.Sever() {
			n++
		}
	}
	return n
}

// PerformCleanup marks the module released. Calls are severed separately by
// DisconnectCalls.
func (m *Module) PerformCleanup(*object.Object) {
	m.mu.Lock()
	m.released = true
	m.mu.Unlock()
}

// DisconnectCalls severs all calls. A second invocation finds none left.
func (m *Module) DisconnectCalls(*object.Object) {
	m.Disconnect()
}

// IsParamRelevant reports whether p belongs to one of the module's slots or
// is relevant to a module reachable through its outbound calls.
func (m *Module) IsParamRelevant(o *object.Object, visited object.Visited, p object.Param) object.Relevance {
	if !visited.Visit(o.Handle()) {
		return object.NotRelevant
	}
	for _, s := range m.Params() {
		if s.obj.IsParamRelevant(visited, p) == object.Relevant {
			return object.Relevant
		}
	}
	for _, c := range m.Outgoing() {
		if c.To().obj.IsParamRelevant(visited, p) == object.Relevant {
			return object.Relevant
		}
	}
	return object.NotRelevant
}

func (m *Module) removeCaller(c *Call) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.callers[c.slot] == c {
		delete(m.callers, c.slot)
	}
}

func (m *Module) removeCallee(c *Call) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callees = slices.DeleteFunc(m.callees, func(x *Call) bool { return x == c })
}

var _ object.Kind = (*Module)(nil)
