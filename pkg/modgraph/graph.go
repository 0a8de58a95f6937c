package modgraph

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	errs "github.com/matzehuels/modgraph/pkg/errors"
	"github.com/matzehuels/modgraph/pkg/module"
	"github.com/matzehuels/modgraph/pkg/object"
	"github.com/matzehuels/modgraph/pkg/observability"
)

// Options configures a Graph.
type Options struct {
	// Logger receives debug logs for structural changes. Defaults to log.Default().
	Logger *log.Logger

	// Lock replaces the default module graph lock.
	Lock object.RWLocker

	// Instrument reports module graph lock waits to observability hooks.
	Instrument bool
}

// Graph is the module graph container.
//
// The zero value is not usable - use New.
type Graph struct {
	objects *object.Graph
	logger  *log.Logger

	// guarded by the module graph lock
	nodes map[object.Handle]*node
}

// node is a namespace or module held by the container.
type node struct {
	obj    *object.Object
	module *module.Module // nil for namespaces
}

// New creates an empty module graph.
func New(opts Options) *Graph {
	objOpts := []object.Option{object.WithLock(opts.Lock)}
	if opts.Instrument {
		objOpts = append(objOpts, object.WithInstrumentedLock())
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Graph{
		objects: object.NewGraph(objOpts...),
		logger:  logger,
		nodes:   make(map[object.Handle]*node),
	}
}

// Objects returns the underlying object graph.
func (g *Graph) Objects() *object.Graph { return g.objects }

// Root returns the anonymous root object.
func (g *Graph) Root() *object.Object { return g.objects.Root() }

func (g *Graph) lock() object.RWLocker { return g.objects.Lock() }

// Len returns the number of namespaces and modules.
func (g *Graph) Len() int {
	g.lock().RLock()
	defer g.lock().RUnlock()
	return len(g.nodes)
}

// childLocked returns the namespace or module called name directly below parent.
func (g *Graph) childLocked(parent *object.Object, name string) *node {
	for _, n := range g.nodes {
		if n.obj.Name() == name && n.obj.Parent() == parent {
			return n
		}
	}
	return nil
}

// lookupLocked resolves a full name to a node. The root resolves to nil, true.
func (g *Graph) lookupLocked(path string) (*node, error) {
	parts, err := errs.SplitFullName(path)
	if err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		return nil, nil
	}
	cur := g.Root()
	var n *node
	for _, p := range parts {
		n = g.childLocked(cur, p)
		if n == nil {
			return nil, errs.New(errs.ErrCodeNotFound, "no namespace or module at %q", path)
		}
		cur = n.obj
	}
	return n, nil
}

// ensureNamespaceLocked returns the object at the given segments, creating
// missing namespaces and recording them in u. Every existing segment must be
// a namespace.
func (g *Graph) ensureNamespaceLocked(parts []string, u *undo) (*object.Object, error) {
	cur := g.Root()
	for i, p := range parts {
		n := g.childLocked(cur, p)
		if n == nil {
			ns, err := module.NewNamespace(g.objects, p)
			if err != nil {
				return nil, err
			}
			if err := g.attachLocked(ns, cur); err != nil {
				return nil, err
			}
			n = &node{obj: ns}
			g.nodes[ns.Handle()] = n
			u.nodes = append(u.nodes, n)
			g.logger.Debug("created namespace", "path", ns.FullName())
		} else if n.module != nil {
			return nil, errs.New(errs.ErrCodeInvalidPath,
				"%q is a module and cannot contain other modules", errs.JoinFullName(parts[:i+1]...))
		}
		cur = n.obj
	}
	return cur, nil
}

// undo records the nodes and calls created by one mutation so that a
// failing mutation leaves the graph as it found it.
type undo struct {
	nodes []*node
	calls []*module.Call
}

func (u *undo) rollbackLocked(g *Graph) {
	for _, c := range u.calls {
		c.Sever()
	}
	if len(u.nodes) > 0 {
		g.releaseLocked(u.nodes)
		g.logger.Debug("rolled back", "nodes", len(u.nodes), "calls", len(u.calls))
	}
}

// attachLocked wires a fresh object into the hierarchy and registers the
// container as its owner. On failure the object is destroyed.
func (g *Graph) attachLocked(o, parent *object.Object) error {
	if err := o.SetParent(parent.Handle()); err != nil {
		_ = g.objects.Destroy(o)
		return wrapObjectErr(err, "attach %q", o.Name())
	}
	if err := o.AttachOwner(g); err != nil {
		_ = g.objects.Destroy(o)
		return wrapObjectErr(err, "attach %q", o.Name())
	}
	return nil
}

// AddNamespace creates the namespace at path and any missing ancestors.
// An existing namespace is returned as is.
func (g *Graph) AddNamespace(path string) (*object.Object, error) {
	parts, err := errs.SplitFullName(path)
	if err != nil {
		return nil, err
	}
	g.lock().Lock()
	defer g.lock().Unlock()
	var u undo
	ns, err := g.ensureNamespaceLocked(parts, &u)
	if err != nil {
		u.rollbackLocked(g)
		return nil, err
	}
	return ns, nil
}

// AddModule creates a module of the given class at path. Missing parent
// namespaces are created. Returns DUPLICATE if path is already taken.
// On error the graph is unchanged.
func (g *Graph) AddModule(path, class string) (*module.Module, error) {
	g.lock().Lock()
	defer g.lock().Unlock()
	var u undo
	m, err := g.addModuleLocked(path, class, "", &u)
	if err != nil {
		u.rollbackLocked(g)
		return nil, err
	}
	return m, nil
}

// addModuleLocked creates a module, restoring the instance ID when id is
// not empty. Everything it creates is recorded in u.
func (g *Graph) addModuleLocked(path, class, id string, u *undo) (*module.Module, error) {
	parts, err := errs.SplitFullName(path)
	if err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		return nil, errs.New(errs.ErrCodeInvalidPath, "module path must not be the root")
	}
	name := parts[len(parts)-1]
	if class == "" {
		return nil, errs.New(errs.ErrCodeInvalidInput, "module %q has no class", name)
	}
	instance := uuid.New()
	if id != "" {
		if instance, err = parseID(id); err != nil {
			return nil, err
		}
	}

	parent, err := g.ensureNamespaceLocked(parts[:len(parts)-1], u)
	if err != nil {
		return nil, err
	}
	if g.childLocked(parent, name) != nil {
		return nil, errs.New(errs.ErrCodeDuplicate, "%q already exists", path)
	}

	m, err := module.NewWithID(g.objects, name, class, instance)
	if err != nil {
		return nil, err
	}
	if err := g.attachLocked(m.Object(), parent); err != nil {
		return nil, err
	}
	n := &node{obj: m.Object(), module: m}
	g.nodes[m.Object().Handle()] = n
	u.nodes = append(u.nodes, n)

	full := m.FullName()
	g.logger.Debug("added module", "path", full, "class", class, "id", m.ID())
	observability.Graph().OnModuleAdded(context.Background(), full, class)
	return m, nil
}

// AddParam creates the parameter name with default def on the module at path.
func (g *Graph) AddParam(path, name, def string) (*module.ParamSlot, error) {
	g.lock().Lock()
	defer g.lock().Unlock()
	m, err := g.findLocked(path)
	if err != nil {
		return nil, err
	}
	return m.AddParam(name, def)
}

// Find returns the module at path.
func (g *Graph) Find(path string) (*module.Module, error) {
	g.lock().RLock()
	defer g.lock().RUnlock()
	return g.findLocked(path)
}

func (g *Graph) findLocked(path string) (*module.Module, error) {
	n, err := g.lookupLocked(path)
	if err != nil {
		if errs.Is(err, errs.ErrCodeNotFound) {
			return nil, errs.New(errs.ErrCodeModuleNotFound, "no module at %q", path)
		}
		return nil, err
	}
	if n == nil || n.module == nil {
		return nil, errs.New(errs.ErrCodeModuleNotFound, "%q is not a module", path)
	}
	return n.module, nil
}

// Node returns the namespace or module object at path. The empty path
// returns the root.
func (g *Graph) Node(path string) (*object.Object, error) {
	g.lock().RLock()
	defer g.lock().RUnlock()
	n, err := g.lookupLocked(path)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return g.Root(), nil
	}
	return n.obj, nil
}

// Remove deletes the namespace or module at path together with everything
// below it. Calls into or out of removed modules are severed.
func (g *Graph) Remove(path string) error {
	g.lock().Lock()
	defer g.lock().Unlock()

	n, err := g.lookupLocked(path)
	if err != nil {
		return err
	}
	if n == nil {
		return errs.Wrap(errs.ErrCodeInvalidPath, object.ErrRootImmutable, "remove %q", path)
	}

	var doomed []*node
	for _, c := range g.nodes {
		if c == n || slices.Contains(c.obj.Ancestors(), n.obj) {
			doomed = append(doomed, c)
		}
	}
	removed := g.releaseLocked(doomed)
	g.logger.Debug("removed", "path", path, "nodes", len(removed))
	return nil
}

// releaseLocked tears down the given nodes and returns their full names.
func (g *Graph) releaseLocked(doomed []*node) []string {
	names := make([]string, len(doomed))
	for i, n := range doomed {
		names[i] = n.obj.FullName()
	}
	for _, n := range doomed {
		n.obj.DisconnectCalls()
	}
	for i, n := range doomed {
		if m := n.module; m != nil {
			for _, s := range m.Params() {
				s.Object().DetachOwner()
				_ = g.objects.Destroy(s.Object())
			}
			observability.Graph().OnModuleRemoved(context.Background(), names[i])
		}
		n.obj.DetachOwner()
		delete(g.nodes, n.obj.Handle())
		_ = g.objects.Destroy(n.obj)
	}
	return names
}

// Move reparents the node at path under the namespace at newParent.
func (g *Graph) Move(path, newParent string) error {
	g.lock().Lock()
	defer g.lock().Unlock()

	n, err := g.lookupLocked(path)
	if err != nil {
		return err
	}
	if n == nil {
		return errs.Wrap(errs.ErrCodeInvalidPath, object.ErrRootImmutable, "move %q", path)
	}
	target := g.Root()
	if t, err := g.lookupLocked(newParent); err != nil {
		return err
	} else if t != nil {
		if t.module != nil {
			return errs.New(errs.ErrCodeInvalidPath, "%q is a module and cannot contain other modules", newParent)
		}
		target = t.obj
	}
	if c := g.childLocked(target, n.obj.Name()); c != nil && c != n {
		return errs.New(errs.ErrCodeDuplicate, "%s already contains %q", target, n.obj.Name())
	}
	if err := n.obj.SetParent(target.Handle()); err != nil {
		return wrapObjectErr(err, "move %q under %q", path, newParent)
	}
	g.logger.Debug("moved", "from", path, "to", n.obj.FullName())
	return nil
}

// Rename changes the short name of the node at path.
func (g *Graph) Rename(path, name string) error {
	if err := errs.ValidateSegment(name); err != nil {
		return err
	}
	g.lock().Lock()
	defer g.lock().Unlock()

	n, err := g.lookupLocked(path)
	if err != nil {
		return err
	}
	if n == nil {
		return errs.Wrap(errs.ErrCodeInvalidPath, object.ErrRootImmutable, "rename %q", path)
	}
	if c := g.childLocked(n.obj.Parent(), name); c != nil && c != n {
		return errs.New(errs.ErrCodeDuplicate, "%q already exists next to %q", name, path)
	}
	if err := n.obj.SetName(name); err != nil {
		return wrapObjectErr(err, "rename %q", path)
	}
	return nil
}

// Connect creates a call from the caller slot of the module at from into the
// module at to.
func (g *Graph) Connect(from, slot, to, class string) (*module.Call, error) {
	g.lock().Lock()
	defer g.lock().Unlock()
	return g.connectLocked(from, slot, to, class)
}

func (g *Graph) connectLocked(from, slot, to, class string) (*module.Call, error) {
	src, err := g.findLocked(from)
	if err != nil {
		return nil, err
	}
	dst, err := g.findLocked(to)
	if err != nil {
		return nil, err
	}
	c, err := module.Connect(src, slot, dst, class)
	if err != nil {
		return nil, err
	}
	g.logger.Debug("connected", "call", c.String(), "class", class)
	return c, nil
}

// Disconnect severs the call leaving the caller slot of the module at from.
func (g *Graph) Disconnect(from, slot string) error {
	g.lock().Lock()
	defer g.lock().Unlock()

	src, err := g.findLocked(from)
	if err != nil {
		return err
	}
	c, ok := src.Caller(slot)
	if !ok {
		return errs.New(errs.ErrCodeSlotNotFound, "caller slot %s.%s is not connected", from, slot)
	}
	c.Sever()
	g.logger.Debug("disconnected", "call", c.String())
	return nil
}

// Param returns the parameter slot addressed by its full name, for example
// "::inst::renderer::radius".
func (g *Graph) Param(path string) (*module.ParamSlot, error) {
	parent, name, err := errs.ParentPath(path)
	if err != nil {
		return nil, err
	}
	g.lock().RLock()
	defer g.lock().RUnlock()
	m, err := g.findLocked(parent)
	if err != nil {
		return nil, err
	}
	s, ok := m.Param(name)
	if !ok {
		return nil, errs.New(errs.ErrCodeSlotNotFound, "module %s has no parameter %q", parent, name)
	}
	return s, nil
}

// SetParam sets the value of the parameter addressed by its full name.
func (g *Graph) SetParam(path, value string) error {
	s, err := g.Param(path)
	if err != nil {
		return err
	}
	s.Param().SetValue(value)
	return nil
}

// RelevantModules returns the modules that p is relevant to, sorted by full
// name. Objects whose kind does not answer relevance queries are skipped.
func (g *Graph) RelevantModules(p object.Param) []*module.Module {
	g.lock().RLock()
	defer g.lock().RUnlock()
	var out []*module.Module
	for _, n := range g.nodes {
		if n.module != nil && n.obj.IsParamRelevant(nil, p) == object.Relevant {
			out = append(out, n.module)
		}
	}
	sortModules(out)
	return out
}

// Modules returns all modules sorted by full name.
func (g *Graph) Modules() []*module.Module {
	g.lock().RLock()
	defer g.lock().RUnlock()
	return g.modulesLocked()
}

func (g *Graph) modulesLocked() []*module.Module {
	out := make([]*module.Module, 0, len(g.nodes))
	for _, n := range g.nodes {
		if n.module != nil {
			out = append(out, n.module)
		}
	}
	sortModules(out)
	return out
}

// Namespaces returns the full names of all namespaces, sorted.
func (g *Graph) Namespaces() []string {
	g.lock().RLock()
	defer g.lock().RUnlock()
	return g.namespacesLocked()
}

func (g *Graph) namespacesLocked() []string {
	var out []string
	for _, n := range g.nodes {
		if n.module == nil {
			out = append(out, n.obj.FullName())
		}
	}
	slices.Sort(out)
	return out
}

// Calls returns all connected calls sorted by source module and slot.
func (g *Graph) Calls() []*module.Call {
	g.lock().RLock()
	defer g.lock().RUnlock()
	return g.callsLocked()
}

func (g *Graph) callsLocked() []*module.Call {
	var out []*module.Call
	for _, m := range g.modulesLocked() {
		out = append(out, m.Outgoing()...)
	}
	return out
}

func sortModules(ms []*module.Module) {
	slices.SortFunc(ms, func(a, b *module.Module) int {
		return strings.Compare(a.FullName(), b.FullName())
	})
}

// wrapObjectErr maps object sentinel errors to structured error codes.
func wrapObjectErr(err error, format string, args ...any) error {
	code := errs.ErrCodeInternal
	switch {
	case errors.Is(err, object.ErrInvalidName):
		code = errs.ErrCodeInvalidName
	case errors.Is(err, object.ErrAlreadyOwned):
		code = errs.ErrCodeAlreadyOwned
	case errors.Is(err, object.ErrNoRoot):
		code = errs.ErrCodeNoRoot
	case errors.Is(err, object.ErrCycle):
		code = errs.ErrCodeCycle
	case errors.Is(err, object.ErrStaleHandle):
		code = errs.ErrCodeStaleHandle
	case errors.Is(err, object.ErrRootImmutable):
		code = errs.ErrCodeInvalidPath
	}
	return errs.Wrap(code, err, format, args...)
}
