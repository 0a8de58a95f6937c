package modgraph

import (
	"github.com/google/uuid"

	errs "github.com/matzehuels/modgraph/pkg/errors"
)

// Snapshot is a serializable description of a module graph.
type Snapshot struct {
	Name       string           `json:"name,omitempty"`
	Namespaces []string         `json:"namespaces,omitempty"`
	Modules    []ModuleSnapshot `json:"modules"`
	Calls      []CallSnapshot   `json:"calls"`
}

// ModuleSnapshot describes one module instance.
type ModuleSnapshot struct {
	Path   string          `json:"path"`
	Class  string          `json:"class"`
	ID     string          `json:"id,omitempty"`
	Params []ParamSnapshot `json:"params,omitempty"`
}

// ParamSnapshot describes one parameter slot.
type ParamSnapshot struct {
	Name    string `json:"name"`
	Default string `json:"default"`
	Value   string `json:"value"`
}

// CallSnapshot describes one call.
type CallSnapshot struct {
	From  string `json:"from"`
	Slot  string `json:"slot"`
	To    string `json:"to"`
	Class string `json:"class"`
}

// Snapshot captures the current structure, instance IDs and parameter
// values. Modules and namespaces are sorted by full name.
func (g *Graph) Snapshot() *Snapshot {
	g.lock().RLock()
	defer g.lock().RUnlock()

	s := &Snapshot{Namespaces: g.namespacesLocked()}
	for _, m := range g.modulesLocked() {
		ms := ModuleSnapshot{Path: m.FullName(), Class: m.Class(), ID: m.ID().String()}
		for _, p := range m.Params() {
			ms.Params = append(ms.Params, ParamSnapshot{
				Name:    p.Name(),
				Default: p.Param().Default(),
				Value:   p.Param().Value(),
			})
		}
		s.Modules = append(s.Modules, ms)
	}
	for _, c := range g.callsLocked() {
		s.Calls = append(s.Calls, CallSnapshot{
			From:  c.From().FullName(),
			Slot:  c.Slot(),
			To:    c.To().FullName(),
			Class: c.Class(),
		})
	}
	return s
}

// Restore builds a new graph from s.
func Restore(s *Snapshot, opts Options) (*Graph, error) {
	g := New(opts)
	if err := g.Apply(s); err != nil {
		return nil, err
	}
	return g, nil
}

// Apply adds the namespaces, modules and calls of s to g. Modules without an
// ID get a fresh one. Apply holds the module graph write lock throughout; if
// any part of s fails, everything created so far is released and g is left
// unchanged.
func (g *Graph) Apply(s *Snapshot) error {
	if s == nil {
		return errs.New(errs.ErrCodeInvalidInput, "snapshot is nil")
	}
	g.lock().Lock()
	defer g.lock().Unlock()

	var u undo
	if err := g.applyLocked(s, &u); err != nil {
		u.rollbackLocked(g)
		return err
	}
	g.logger.Debug("applied snapshot", "modules", len(s.Modules), "calls", len(s.Calls))
	return nil
}

func (g *Graph) applyLocked(s *Snapshot, u *undo) error {
	for _, ns := range s.Namespaces {
		parts, err := errs.SplitFullName(ns)
		if err != nil {
			return err
		}
		if _, err := g.ensureNamespaceLocked(parts, u); err != nil {
			return err
		}
	}
	for _, ms := range s.Modules {
		m, err := g.addModuleLocked(ms.Path, ms.Class, ms.ID, u)
		if err != nil {
			return err
		}
		for _, p := range ms.Params {
			slot, err := m.AddParam(p.Name, p.Default)
			if err != nil {
				return errs.Wrap(errs.ErrCodeInvalidFormat, err, "module %s", ms.Path)
			}
			if p.Value != p.Default {
				slot.Param().SetValue(p.Value)
			}
		}
	}
	for _, c := range s.Calls {
		call, err := g.connectLocked(c.From, c.Slot, c.To, c.Class)
		if err != nil {
			return err
		}
		u.calls = append(u.calls, call)
	}
	return nil
}

func parseID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, errs.Wrap(errs.ErrCodeInvalidFormat, err, "invalid module id %q", s)
	}
	return id, nil
}
