// Package api serves a read-mostly HTTP view of a module graph.
//
// # Endpoints
//
//	GET  /healthz                 liveness probe
//	GET  /snapshot                full graph snapshot (JSON)
//	GET  /modules                 all modules, sorted by full name
//	GET  /modules/{path}          one module with its calls
//	GET  /calls                   all calls
//	GET  /relevant/{param}        modules a parameter is relevant to
//	PUT  /params/{param}          set a parameter value: {"value": "..."}
//	POST /cleanup                 sweep modules not reachable from {"keep": [...]}
//	GET  /graph.dot               Graphviz source (?detailed=1&flat=1)
//	GET  /graph.svg               rendered diagram
//
// Paths are full names such as "::inst::view". Errors are reported as
// {"error": "...", "code": "..."} with a status derived from the error code.
package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/modgraph/pkg/buildinfo"
	errs "github.com/matzehuels/modgraph/pkg/errors"
	"github.com/matzehuels/modgraph/pkg/modgraph"
	"github.com/matzehuels/modgraph/pkg/module"
	"github.com/matzehuels/modgraph/pkg/observability"
	"github.com/matzehuels/modgraph/pkg/render/nodelink"
	"github.com/matzehuels/modgraph/pkg/store"
)

// Server exposes a module graph over HTTP.
type Server struct {
	graph  *modgraph.Graph
	logger *log.Logger
	router chi.Router
}

// New creates a server for g. A nil logger falls back to log.Default().
func New(g *modgraph.Graph, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{graph: g, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Get("/healthz", s.handleHealth)
	r.Get("/snapshot", s.handleSnapshot)
	r.Get("/modules", s.handleModules)
	r.Get("/modules/{path}", s.handleModule)
	r.Get("/calls", s.handleCalls)
	r.Get("/relevant/{param}", s.handleRelevant)
	r.Put("/params/{param}", s.handleSetParam)
	r.Post("/cleanup", s.handleCleanup)
	r.Get("/graph.dot", s.handleDOT)
	r.Get("/graph.svg", s.handleSVG)
	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// observe logs requests and reports them to the HTTP observability hooks.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		observability.HTTP().OnRequest(r.Context(), r.Method, r.URL.Path)
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		d := time.Since(start)
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "status", status, "duration", d)
		observability.HTTP().OnResponse(r.Context(), r.Method, r.URL.Path, status, d)
	})
}

// moduleView is the JSON form of a module with its calls.
type moduleView struct {
	modgraph.ModuleSnapshot
	Outgoing []modgraph.CallSnapshot `json:"outgoing"`
	Incoming []modgraph.CallSnapshot `json:"incoming"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"modules": len(s.graph.Modules()),
		"build":   buildinfo.Get(),
	})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap := s.graph.Snapshot()
	if etag, err := store.HashJSON(snap); err == nil {
		w.Header().Set("ETag", `"`+etag+`"`)
		if r.Header.Get("If-None-Match") == `"`+etag+`"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleModules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.graph.Snapshot().Modules)
}

func (s *Server) handleModule(w http.ResponseWriter, r *http.Request) {
	m, err := s.graph.Find(pathParam(r, "path"))
	if err != nil {
		writeError(w, err)
		return
	}
	snap := s.graph.Snapshot()
	full := m.FullName()
	view := moduleView{Outgoing: []modgraph.CallSnapshot{}, Incoming: []modgraph.CallSnapshot{}}
	for _, ms := range snap.Modules {
		if ms.Path == full {
			view.ModuleSnapshot = ms
		}
	}
	for _, c := range snap.Calls {
		if c.From == full {
			view.Outgoing = append(view.Outgoing, c)
		}
		if c.To == full {
			view.Incoming = append(view.Incoming, c)
		}
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleCalls(w http.ResponseWriter, r *http.Request) {
	calls := s.graph.Snapshot().Calls
	if calls == nil {
		calls = []modgraph.CallSnapshot{}
	}
	writeJSON(w, http.StatusOK, calls)
}

func (s *Server) handleRelevant(w http.ResponseWriter, r *http.Request) {
	slot, err := s.graph.Param(pathParam(r, "param"))
	if err != nil {
		writeError(w, err)
		return
	}
	paths := []string{}
	for _, m := range s.graph.RelevantModules(slot.Param()) {
		paths = append(paths, m.FullName())
	}
	writeJSON(w, http.StatusOK, paths)
}

func (s *Server) handleSetParam(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Value *string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Value == nil {
		writeError(w, errs.New(errs.ErrCodeInvalidInput, `body must be {"value": "..."}`))
		return
	}
	path := pathParam(r, "param")
	if err := s.graph.SetParam(path, *body.Value); err != nil {
		writeError(w, err)
		return
	}
	s.logger.Info("parameter set", "param", path, "value", *body.Value)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Keep []string `json:"keep"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, errs.Wrap(errs.ErrCodeInvalidInput, err, "decode cleanup request"))
		return
	}
	roots := make([]*module.Module, 0, len(body.Keep))
	for _, p := range body.Keep {
		m, err := s.graph.Find(p)
		if err != nil {
			writeError(w, err)
			return
		}
		roots = append(roots, m)
	}
	res, err := s.graph.Cleanup(r.Context(), modgraph.KeepReachable(roots...))
	if err != nil {
		writeError(w, err)
		return
	}
	removed := res.Removed
	if removed == nil {
		removed = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"scanned":  res.Scanned,
		"removed":  removed,
		"duration": res.Duration.String(),
	})
}

func (s *Server) dot(r *http.Request) string {
	q := r.URL.Query()
	return nodelink.ToDOT(s.graph.Snapshot(), nodelink.Options{
		Detailed: q.Get("detailed") == "1",
		Flat:     q.Get("flat") == "1",
	})
}

func (s *Server) handleDOT(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/vnd.graphviz; charset=utf-8")
	_, _ = w.Write([]byte(s.dot(r)))
}

func (s *Server) handleSVG(w http.ResponseWriter, r *http.Request) {
	svg, err := nodelink.RenderSVG(r.Context(), s.dot(r))
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	_, _ = w.Write(svg)
}

// pathParam returns the URL parameter key with percent-encoding removed, so
// "%3A%3Ainst" and "::inst" address the same object. A malformed escape is
// returned unchanged.
func pathParam(r *http.Request, key string) string {
	v := chi.URLParam(r, key)
	if u, err := url.PathUnescape(v); err == nil {
		return u
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	code := errs.GetCode(err)
	if code == "" {
		code = errs.ErrCodeInternal
	}
	writeJSON(w, errs.HTTPStatus(err), map[string]string{
		"error": errs.UserMessage(err),
		"code":  string(code),
	})
}
