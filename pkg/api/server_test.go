package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/modgraph/pkg/buildinfo"
	"github.com/matzehuels/modgraph/pkg/modgraph"
	"github.com/matzehuels/modgraph/pkg/observability"
)

func newTestServer(t *testing.T) (*httptest.Server, *modgraph.Graph) {
	t.Helper()
	logger := log.New(io.Discard)
	g := modgraph.New(modgraph.Options{Logger: logger})
	for _, m := range []struct{ path, class string }{
		{"::inst::view", "View3D"},
		{"::inst::renderer", "SphereRenderer"},
		{"::data::pdb", "PDBLoader"},
		{"::clock", "Clock"},
	} {
		if _, err := g.AddModule(m.path, m.class); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := g.AddParam("::inst::renderer", "radius", "1"); err != nil {
		t.Fatal(err)
	}
	if _, err := g.Connect("::inst::view", "rendering", "::inst::renderer", "CallRender3D"); err != nil {
		t.Fatal(err)
	}
	if _, err := g.Connect("::inst::renderer", "getdata", "::data::pdb", "MolecularDataCall"); err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(New(g, logger))
	t.Cleanup(srv.Close)
	return srv, g
}

func do(t *testing.T, method, url, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp, data
}

func TestModules(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := do(t, http.MethodGet, srv.URL+"/modules", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var mods []modgraph.ModuleSnapshot
	if err := json.Unmarshal(body, &mods); err != nil {
		t.Fatal(err)
	}
	var paths []string
	for _, m := range mods {
		paths = append(paths, m.Path)
	}
	want := []string{"::clock", "::data::pdb", "::inst::renderer", "::inst::view"}
	if !slices.Equal(paths, want) {
		t.Errorf("paths = %v, want %v", paths, want)
	}
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := do(t, http.MethodGet, srv.URL+"/healthz", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var health struct {
		Status  string         `json:"status"`
		Modules int            `json:"modules"`
		Build   buildinfo.Info `json:"build"`
	}
	if err := json.Unmarshal(body, &health); err != nil {
		t.Fatal(err)
	}
	if health.Status != "ok" || health.Modules != 4 || health.Build.Version != buildinfo.Version {
		t.Errorf("health = %+v", health)
	}
}

func TestModule(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := do(t, http.MethodGet, srv.URL+"/modules/::inst::renderer", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}
	var view moduleView
	if err := json.Unmarshal(body, &view); err != nil {
		t.Fatal(err)
	}
	if view.Class != "SphereRenderer" || len(view.Params) != 1 {
		t.Errorf("unexpected module %+v", view.ModuleSnapshot)
	}
	if len(view.Incoming) != 1 || view.Incoming[0].From != "::inst::view" {
		t.Errorf("incoming = %+v", view.Incoming)
	}
	if len(view.Outgoing) != 1 || view.Outgoing[0].Slot != "getdata" {
		t.Errorf("outgoing = %+v", view.Outgoing)
	}
}

func TestEncodedPaths(t *testing.T) {
	srv, g := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"module", http.MethodGet, "/modules/%3A%3Ainst%3A%3Arenderer", "", http.StatusOK},
		{"relevant", http.MethodGet, "/relevant/%3A%3Ainst%3A%3Arenderer%3A%3Aradius", "", http.StatusOK},
		{"set param", http.MethodPut, "/params/%3A%3Ainst%3A%3Arenderer%3A%3Aradius", `{"value":"4"}`, http.StatusNoContent},
		{"missing module", http.MethodGet, "/modules/%3A%3Anope", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, tt.method, srv.URL+tt.path, tt.body)
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d: %s", resp.StatusCode, tt.status, body)
			}
		})
	}
	if slot, _ := g.Param("::inst::renderer::radius"); slot.Param().Value() != "4" {
		t.Errorf("value = %q, want 4", slot.Param().Value())
	}
}

func TestErrors(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"missing module", http.MethodGet, "/modules/::nope", "", http.StatusNotFound, "MODULE_NOT_FOUND"},
		{"bad path", http.MethodGet, "/modules/::a:b", "", http.StatusBadRequest, "INVALID_PATH"},
		{"missing param", http.MethodPut, "/params/::inst::renderer::nope", `{"value":"2"}`, http.StatusNotFound, "SLOT_NOT_FOUND"},
		{"bad body", http.MethodPut, "/params/::inst::renderer::radius", `{}`, http.StatusBadRequest, "INVALID_INPUT"},
		{"bad cleanup", http.MethodPost, "/cleanup", `{"keep":["::nope"]}`, http.StatusNotFound, "MODULE_NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, tt.method, srv.URL+tt.path, tt.body)
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}
			var e map[string]string
			if err := json.Unmarshal(body, &e); err != nil {
				t.Fatal(err)
			}
			if e["code"] != tt.code || e["error"] == "" {
				t.Errorf("error body = %v, want code %s", e, tt.code)
			}
		})
	}
}

func TestParamsAndRelevance(t *testing.T) {
	srv, g := newTestServer(t)

	resp, _ := do(t, http.MethodPut, srv.URL+"/params/::inst::renderer::radius", `{"value":"2.5"}`)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	slot, _ := g.Param("::inst::renderer::radius")
	if slot.Param().Value() != "2.5" {
		t.Errorf("value = %q, want 2.5", slot.Param().Value())
	}

	_, body := do(t, http.MethodGet, srv.URL+"/relevant/::inst::renderer::radius", "")
	var paths []string
	if err := json.Unmarshal(body, &paths); err != nil {
		t.Fatal(err)
	}
	if want := []string{"::inst::renderer", "::inst::view"}; !slices.Equal(paths, want) {
		t.Errorf("relevant = %v, want %v", paths, want)
	}
}

func TestCleanup(t *testing.T) {
	srv, g := newTestServer(t)

	resp, body := do(t, http.MethodPost, srv.URL+"/cleanup", `{"keep":["::inst::view"]}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}
	var res struct {
		Scanned int      `json:"scanned"`
		Removed []string `json:"removed"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(res.Removed, []string{"::clock"}) {
		t.Errorf("removed = %v, want [::clock]", res.Removed)
	}
	if len(g.Modules()) != 3 {
		t.Errorf("modules left = %d, want 3", len(g.Modules()))
	}
}

func TestSnapshotETag(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, _ := do(t, http.MethodGet, srv.URL+"/snapshot", "")
	etag := resp.Header.Get("ETag")
	if resp.StatusCode != http.StatusOK || etag == "" {
		t.Fatalf("status = %d, etag = %q", resp.StatusCode, etag)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/snapshot", nil)
	req.Header.Set("If-None-Match", etag)
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusNotModified {
		t.Errorf("conditional status = %d, want 304", resp2.StatusCode)
	}
}

func TestDOT(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := do(t, http.MethodGet, srv.URL+"/graph.dot?detailed=1", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/vnd.graphviz") {
		t.Errorf("Content-Type = %s", resp.Header.Get("Content-Type"))
	}
	if !strings.Contains(string(body), `"::inst::view" -> "::inst::renderer"`) {
		t.Errorf("DOT missing call edge:\n%s", body)
	}
}

type httpRecorder struct {
	observability.NoopHTTPHooks
	mu       sync.Mutex
	statuses []int
}

func (r *httpRecorder) OnResponse(_ context.Context, _, _ string, status int, _ time.Duration) {
	r.mu.Lock()
	r.statuses = append(r.statuses, status)
	r.mu.Unlock()
}

func TestHooks(t *testing.T) {
	rec := &httpRecorder{}
	observability.SetHTTPHooks(rec)
	defer observability.Reset()

	srv, _ := newTestServer(t)
	do(t, http.MethodGet, srv.URL+"/healthz", "")
	do(t, http.MethodGet, srv.URL+"/modules/::nope", "")

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if !slices.Equal(rec.statuses, []int{http.StatusOK, http.StatusNotFound}) {
		t.Errorf("statuses = %v", rec.statuses)
	}
}
