package module

import (
	"sync"

	"github.com/matzehuels/modgraph/pkg/object"
)

// Param is a named string-valued parameter.
type Param struct {
	name string
	def  string

	mu    sync.RWMutex
	value string
}

// NewParam creates a parameter holding its default value.
func NewParam(name, def string) *Param {
	return &Param{name: name, def: def, value: def}
}

// ParamName returns the parameter name.
func (p *Param) ParamName() string { return p.name }

// Default returns the default value.
func (p *Param) Default() string { return p.def }

// Value returns the current value.
func (p *Param) Value() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.value
}

// SetValue replaces the current value.
func (p *Param) SetValue(v string) {
	p.mu.Lock()
	p.value = v
	p.mu.Unlock()
}

// Reset restores the default value.
func (p *Param) Reset() { p.SetValue(p.def) }

// IsDefault reports whether the current value equals the default.
func (p *Param) IsDefault() bool { return p.Value() == p.def }

var _ object.Param = (*Param)(nil)

// ParamSlot is the object that attaches a Param to its module.
type ParamSlot struct {
	object.Base

	obj    *object.Object
	param  *Param
	module *Module
}

// Object returns the slot's object.
func (s *ParamSlot) Object() *object.Object { return s.obj }

// Param returns the parameter held by the slot.
func (s *ParamSlot) Param() *Param { return s.param }

// Module returns the module the slot belongs to.
func (s *ParamSlot) Module() *Module { return s.module }

// Name returns the slot name.
func (s *ParamSlot) Name() string { return s.obj.Name() }

// IsParamRelevant answers Relevant for the slot's own parameter.
func (s *ParamSlot) IsParamRelevant(_ *object.Object, _ object.Visited, p object.Param) object.Relevance {
	if p != nil && p == object.Param(s.param) {
		return object.Relevant
	}
	return object.NotRelevant
}

// PerformCleanup detaches the slot from its owning module.
func (s *ParamSlot) PerformCleanup(o *object.Object) {
	o.DetachOwner()
}

// Namespace is the kind of intermediate nodes that group modules.
type Namespace struct {
	object.Base
}

// NewNamespace creates a detached namespace object.
func NewNamespace(g *object.Graph, name string) (*object.Object, error) {
	return g.New(name, Namespace{})
}

// IsNamespace reports whether o is a namespace.
func IsNamespace(o *object.Object) bool {
	_, ok := o.Kind().(Namespace)
	return ok
}
