package module

import (
	"testing"

	"github.com/google/uuid"

	errs "github.com/matzehuels/modgraph/pkg/errors"
	"github.com/matzehuels/modgraph/pkg/object"
)

func newModule(t *testing.T, g *object.Graph, name, class string) *Module {
	t.Helper()
	m, err := New(g, name, class)
	if err != nil {
		t.Fatalf("New(%s): %v", name, err)
	}
	if err := m.Object().SetParent(g.Root().Handle()); err != nil {
		t.Fatalf("SetParent(%s): %v", name, err)
	}
	return m
}

func TestNewModule(t *testing.T) {
	g := object.NewGraph()
	m := newModule(t, g, "view", "View3D")

	if m.FullName() != "::view" {
		t.Errorf("FullName() = %q, want ::view", m.FullName())
	}
	if m.Class() != "View3D" {
		t.Errorf("Class() = %q, want View3D", m.Class())
	}
	if m.ID() == uuid.Nil {
		t.Error("ID() should be a fresh uuid")
	}
	if m.Object().Kind() != object.Kind(m) {
		t.Error("module should be the kind of its object")
	}

	if _, err := New(g, "x", ""); !errs.Is(err, errs.ErrCodeInvalidInput) {
		t.Errorf("New without class error = %v, want INVALID_INPUT", err)
	}
	if _, err := New(g, "a::b", "C"); !errs.Is(err, errs.ErrCodeInvalidName) {
		t.Errorf("New(a::b) error = %v, want INVALID_NAME", err)
	}

	id := uuid.New()
	restored, err := NewWithID(g, "again", "View3D", id)
	if err != nil {
		t.Fatalf("NewWithID: %v", err)
	}
	if restored.ID() != id {
		t.Errorf("ID() = %v, want %v", restored.ID(), id)
	}
}

func TestAddParam(t *testing.T) {
	g := object.NewGraph()
	m := newModule(t, g, "renderer", "SphereRenderer")

	s, err := m.AddParam("radius", "1.0")
	if err != nil {
		t.Fatalf("AddParam: %v", err)
	}
	if s.Object().FullName() != "::renderer::radius" {
		t.Errorf("slot FullName() = %q, want ::renderer::radius", s.Object().FullName())
	}
	if s.Object().Owner() != any(m) {
		t.Error("slot should be owned by its module")
	}
	if s.Module() != m || s.Name() != "radius" {
		t.Error("slot should know its module and name")
	}
	if s.Param().Value() != "1.0" || !s.Param().IsDefault() {
		t.Errorf("param value = %q, want default 1.0", s.Param().Value())
	}

	s.Param().SetValue("2.5")
	if s.Param().IsDefault() {
		t.Error("param should no longer be default")
	}
	s.Param().Reset()
	if s.Param().Value() != "1.0" {
		t.Error("Reset should restore the default")
	}

	if _, err := m.AddParam("radius", "3"); !errs.Is(err, errs.ErrCodeDuplicate) {
		t.Errorf("duplicate AddParam error = %v, want DUPLICATE", err)
	}
	if _, err := m.AddParam("bad name", "3"); !errs.Is(err, errs.ErrCodeInvalidName) {
		t.Errorf("AddParam(bad name) error = %v, want INVALID_NAME", err)
	}
	if got, ok := m.Param("radius"); !ok || got != s {
		t.Error("Param(radius) should return the slot")
	}
	if _, ok := m.Param("missing"); ok {
		t.Error("Param(missing) should not be found")
	}
	if len(m.Params()) != 1 {
		t.Errorf("Params() = %d, want 1", len(m.Params()))
	}
}

func TestConnect(t *testing.T) {
	g := object.NewGraph()
	view := newModule(t, g, "view", "View3D")
	rnd := newModule(t, g, "renderer", "SphereRenderer")

	c, err := Connect(view, "rendering", rnd, "CallRender3D")
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if c.From() != view || c.To() != rnd || c.Slot() != "rendering" || c.Class() != "CallRender3D" {
		t.Error("call endpoints do not match")
	}
	if c.String() != "::view.rendering -> ::renderer" {
		t.Errorf("String() = %q", c.String())
	}
	if got, ok := view.Caller("rendering"); !ok || got != c {
		t.Error("Caller(rendering) should return the call")
	}
	if len(rnd.Incoming()) != 1 || len(view.Outgoing()) != 1 {
		t.Error("call should be registered at both endpoints")
	}

	if _, err := Connect(view, "rendering", rnd, "CallRender3D"); !errs.Is(err, errs.ErrCodeDuplicate) {
		t.Errorf("second Connect error = %v, want DUPLICATE", err)
	}
	if _, err := Connect(view, "", rnd, "CallRender3D"); !errs.Is(err, errs.ErrCodeInvalidName) {
		t.Errorf("Connect with empty slot error = %v, want INVALID_NAME", err)
	}
	if _, err := Connect(nil, "x", rnd, ""); !errs.Is(err, errs.ErrCodeInvalidInput) {
		t.Errorf("Connect(nil) error = %v, want INVALID_INPUT", err)
	}
}

func TestDisconnectCallsIdempotent(t *testing.T) {
	g := object.NewGraph()
	view := newModule(t, g, "view", "View3D")
	rnd := newModule(t, g, "renderer", "SphereRenderer")
	data := newModule(t, g, "data", "PDBLoader")

	in, _ := Connect(view, "rendering", rnd, "CallRender3D")
	out, _ := Connect(rnd, "getdata", data, "MolecularDataCall")

	if n := rnd.Disconnect(); n != 2 {
		t.Errorf("first Disconnect severed %d calls, want 2", n)
	}
	if n := rnd.Disconnect(); n != 0 {
		t.Errorf("second Disconnect severed %d calls, want 0", n)
	}
	rnd.Object().DisconnectCalls()

	if in.Connected() || out.Connected() {
		t.Error("both calls should be severed")
	}
	if len(view.Outgoing()) != 0 || len(data.Incoming()) != 0 {
		t.Error("severed calls should be removed from the other endpoints")
	}
	if in.Sever() {
		t.Error("Sever on a severed call should report false")
	}

	// The slot is free again.
	if _, err := Connect(view, "rendering", data, "CallRender3D"); err != nil {
		t.Errorf("reconnect after disconnect: %v", err)
	}
}

func TestPerformCleanup(t *testing.T) {
	g := object.NewGraph()
	m := newModule(t, g, "view", "View3D")
	s, _ := m.AddParam("fov", "30")

	m.Object().PerformCleanup()
	if m.Released() {
		t.Error("unmarked module should not be released")
	}

	m.Object().SetAllCleanupMarks()
	m.Object().PerformCleanup()
	if !m.Released() {
		t.Error("marked module should be released by PerformCleanup")
	}

	s.Object().SetAllCleanupMarks()
	s.Object().PerformCleanup()
	if s.Object().Owner() != nil {
		t.Error("param slot cleanup should detach its owner")
	}
}

func TestIsParamRelevant(t *testing.T) {
	g := object.NewGraph()
	view := newModule(t, g, "view", "View3D")
	rnd := newModule(t, g, "renderer", "SphereRenderer")
	data := newModule(t, g, "data", "PDBLoader")
	other := newModule(t, g, "other", "Clock")

	radius, _ := rnd.AddParam("radius", "1")
	file, _ := data.AddParam("file", "")
	tick, _ := other.AddParam("tick", "0")

	_, _ = Connect(view, "rendering", rnd, "CallRender3D")
	_, _ = Connect(rnd, "getdata", data, "MolecularDataCall")
	// A cycle back to the view must not recurse forever.
	_, _ = Connect(data, "feedback", view, "CallFeedback")

	tests := []struct {
		name   string
		module *Module
		param  *Param
		want   object.Relevance
	}{
		{"own param", rnd, radius.Param(), object.Relevant},
		{"downstream param", view, file.Param(), object.Relevant},
		{"two hops", view, radius.Param(), object.Relevant},
		{"unrelated module", view, tick.Param(), object.NotRelevant},
		{"upstream is not relevant", other, file.Param(), object.NotRelevant},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.module.Object().IsParamRelevant(nil, tt.param); got != tt.want {
				t.Errorf("IsParamRelevant() = %v, want %v", got, tt.want)
			}
		})
	}

	if got := radius.Object().IsParamRelevant(nil, radius.Param()); got != object.Relevant {
		t.Errorf("slot relevance for own param = %v, want relevant", got)
	}
	if got := radius.Object().IsParamRelevant(nil, file.Param()); got != object.NotRelevant {
		t.Errorf("slot relevance for other param = %v, want not-relevant", got)
	}
}

func TestNamespace(t *testing.T) {
	g := object.NewGraph()
	ns, err := NewNamespace(g, "inst")
	if err != nil {
		t.Fatalf("NewNamespace: %v", err)
	}
	if !IsNamespace(ns) {
		t.Error("IsNamespace should be true for a namespace")
	}
	m := newModule(t, g, "view", "View3D")
	if IsNamespace(m.Object()) {
		t.Error("IsNamespace should be false for a module")
	}
	if ns.IsParamRelevant(nil, NewParam("x", "")) != object.NotApplicable {
		t.Error("namespaces do not answer relevance queries")
	}
}
