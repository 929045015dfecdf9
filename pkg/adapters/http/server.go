package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/orgtree"
	"github.com/aretw0/orgtree/internal/presentation/graph"
	"github.com/aretw0/orgtree/internal/presentation/render"
	"github.com/aretw0/orgtree/pkg/analysis"
	"github.com/aretw0/orgtree/pkg/domain"
	"github.com/aretw0/orgtree/pkg/hierarchy"
	"github.com/aretw0/orgtree/pkg/observability"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/oapi-codegen/runtime"
)

// Engine is the part of orgtree.Engine the HTTP adapter needs.
type Engine interface {
	Hierarchy() *hierarchy.Structure
	Info() orgtree.LoadInfo
	Diagnose() *orgtree.Report
	Reload(ctx context.Context) (*domain.ChartDiff, error)
}

// Server serves read-only queries over the current hierarchy.
type Server struct {
	Engine  Engine
	Streams *StreamManager

	spec     *openapi3.T
	metrics  *observability.Metrics
	logger   *slog.Logger
	analyzer analysis.Analyzer
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics records request metrics and serves them on /metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithLogger sets the logger for request failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithAnalyzer sets the field names read by /stats, /compare and the valuation endpoints.
func WithAnalyzer(a analysis.Analyzer) Option {
	return func(s *Server) {
		s.analyzer = a
	}
}

// NewServer creates a server for engine. It fails only if the embedded API document is invalid.
func NewServer(engine Engine, opts ...Option) (*Server, error) {
	s := &Server{Engine: engine, analyzer: analysis.Default()}
	for _, opt := range opts {
		opt(s)
	}
	s.analyzer = s.analyzer.WithDefaults()
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s.Streams = NewStreamManager(s.logger)

	spec, err := GetSpec()
	if err != nil {
		return nil, err
	}
	s.spec = spec
	return s, nil
}

// NewHandler creates a new HTTP handler for the engine.
func NewHandler(engine Engine, opts ...Option) (http.Handler, error) {
	s, err := NewServer(engine, opts...)
	if err != nil {
		return nil, err
	}
	return s.Handler()
}

// Handler builds the router.
func (s *Server) Handler() (http.Handler, error) {
	validate, err := validateRequests(s.spec)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.observe)
	r.Use(validate)

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(rawSpec)
	})
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(swaggerHTML))
	})
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Post("/reload", s.Reload)
	r.Get("/roots", s.GetRoots)
	r.Get("/tree", s.GetTree)
	r.Get("/graph", s.GetGraph)
	r.Get("/entries", s.ListEntries)
	r.Get("/entries/{id}", s.GetEntry)
	r.Get("/entries/{id}/subordinates", s.GetSubordinates)
	r.Get("/entries/{id}/superiors", s.GetSuperiors)
	r.Get("/entries/{id}/chain", s.GetChain)
	r.Get("/entries/{id}/valuation", s.GetValuation)
	r.Get("/stats", s.GetStats)
	r.Get("/stats/{group}", s.GetGroupStats)
	r.Get("/compare", s.ComparePositions)
	r.Get("/factors", s.ListFactors)
	r.Get("/is-superior", s.IsSuperior)
	r.Get("/diagnostics", s.GetDiagnostics)
	r.Get("/events", s.SubscribeEvents)

	return enableCORS(r), nil
}

// Publish pushes a reload diff to the SSE clients. Nil diffs are ignored.
func (s *Server) Publish(diff *domain.ChartDiff) {
	if diff == nil {
		return
	}
	b, err := json.Marshal(diff)
	if err != nil {
		s.logger.Error("failed to encode diff", "error", err)
		return
	}
	s.Streams.Broadcast(string(b))
}

func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		code := ww.Status()
		if code == 0 {
			code = http.StatusOK
		}
		s.metrics.ObserveRequest(route, r.Method, code, time.Since(start))
		s.logger.Debug("request", "method", r.Method, "route", route, "code", code)
	})
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

const swaggerHTML = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>orgtree API Documentation</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui.css" />
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui-bundle.js" crossorigin></script>
<script>
    window.onload = () => {
    window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui',
    });
    };
</script>
</body>
</html>
`

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	apiVersion := "unknown"
	if s.spec.Info != nil {
		apiVersion = s.spec.Info.Version
	}
	info := s.Engine.Info()

	s.writeJSON(w, http.StatusOK, map[string]any{
		"app":           "orgtree-http",
		"version":       orgtree.Version,
		"api_version":   apiVersion,
		"entries":       info.Entries,
		"roots":         info.Roots,
		"loaded_at":     info.LoadedAt,
		"from_snapshot": info.FromSnapshot,
		"checksum":      info.Checksum,
	})
}

// Reload handles the POST /reload request.
func (s *Server) Reload(w http.ResponseWriter, r *http.Request) {
	diff, err := s.Engine.Reload(r.Context())
	if err != nil {
		s.logger.Error("reload failed", "error", err)
		http.Error(w, fmt.Sprintf("Reload error: %v", err), http.StatusInternalServerError)
		return
	}
	s.Publish(diff)
	if diff == nil {
		diff = &domain.ChartDiff{}
	}
	s.writeJSON(w, http.StatusOK, diff)
}

// GetRoots handles the GET /roots request.
func (s *Server) GetRoots(w http.ResponseWriter, r *http.Request) {
	s.writeEntries(w, s.Engine.Hierarchy().Roots())
}

// TreeNode is a position with its subordinates nested.
type TreeNode struct {
	domain.Entry
	Subordinates []TreeNode `json:"subordinates,omitempty"`
}

// GetTree handles the GET /tree request.
// The chart checksum is the ETag, so unchanged charts answer 304.
func (s *Server) GetTree(w http.ResponseWriter, r *http.Request) {
	if sum := s.Engine.Info().Checksum; sum != "" {
		etag := `"` + sum + `"`
		w.Header().Set("ETag", etag)
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}

	var build func(n *hierarchy.Node) TreeNode
	build = func(n *hierarchy.Node) TreeNode {
		tn := TreeNode{Entry: n.Entry()}
		for _, sub := range n.Subordinates() {
			tn.Subordinates = append(tn.Subordinates, build(sub))
		}
		return tn
	}

	roots := s.Engine.Hierarchy().Tree()
	tree := make([]TreeNode, 0, len(roots))
	for _, n := range roots {
		tree = append(tree, build(n))
	}
	s.writeJSON(w, http.StatusOK, tree)
}

// GetGraph handles the GET /graph request.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	var focus *string
	if err := runtime.BindQueryParameter("form", true, false, "focus", r.URL.Query(), &focus); err != nil {
		http.Error(w, fmt.Sprintf("Invalid format for parameter focus: %v", err), http.StatusBadRequest)
		return
	}

	h := s.Engine.Hierarchy()
	var overlay *graph.GraphOverlay
	if focus != nil && *focus != "" {
		overlay = &graph.GraphOverlay{Focus: *focus}
		for _, sup := range h.Superiors(*focus) {
			overlay.Highlighted = append(overlay.Highlighted, sup.ID)
		}
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, graph.GenerateMermaid(h, overlay))
}

// ListEntries handles the GET /entries request.
func (s *Server) ListEntries(w http.ResponseWriter, r *http.Request) {
	var label, field, level *string
	if err := runtime.BindQueryParameter("form", true, false, "label", r.URL.Query(), &label); err != nil {
		http.Error(w, fmt.Sprintf("Invalid format for parameter label: %v", err), http.StatusBadRequest)
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "field", r.URL.Query(), &field); err != nil {
		http.Error(w, fmt.Sprintf("Invalid format for parameter field: %v", err), http.StatusBadRequest)
		return
	}

	if err := runtime.BindQueryParameter("form", true, false, "level", r.URL.Query(), &level); err != nil {
		http.Error(w, fmt.Sprintf("Invalid format for parameter level: %v", err), http.StatusBadRequest)
		return
	}

	var key, value string
	if field != nil {
		var ok bool
		if key, value, ok = domain.ParseFieldFilter(*field); !ok {
			http.Error(w, "field filter must be written as key=value", http.StatusBadRequest)
			return
		}
	}

	matched := s.Engine.Hierarchy().Filter(func(e domain.Entry) bool {
		if label != nil && !strings.EqualFold(strings.TrimSpace(e.Label), strings.TrimSpace(*label)) {
			return false
		}
		return key == "" || e.FieldEquals(key, value)
	})

	if level != nil {
		factor, minLevel, ok := domain.ParseFieldFilter(*level)
		if !ok {
			http.Error(w, "level filter must be written as factor=level", http.StatusBadRequest)
			return
		}
		var err error
		if matched, err = s.analyzer.Valuation.AtLeast(matched, factor, minLevel); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	s.writeEntries(w, matched)
}

// GetEntry handles the GET /entries/{id} request.
func (s *Server) GetEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	e, found := s.Engine.Hierarchy().Entry(id)
	if !found {
		s.notFound(w, id)
		return
	}
	s.writeJSON(w, http.StatusOK, e)
}

// GetSubordinates handles the GET /entries/{id}/subordinates request.
func (s *Server) GetSubordinates(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	var recursive *bool
	if err := runtime.BindQueryParameter("form", true, false, "recursive", r.URL.Query(), &recursive); err != nil {
		http.Error(w, fmt.Sprintf("Invalid format for parameter recursive: %v", err), http.StatusBadRequest)
		return
	}

	h := s.Engine.Hierarchy()
	if recursive != nil && *recursive {
		s.writeEntries(w, h.AllSubordinates(id))
		return
	}
	s.writeEntries(w, h.DirectSubordinates(id))
}

// GetSuperiors handles the GET /entries/{id}/superiors request.
func (s *Server) GetSuperiors(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	s.writeEntries(w, s.Engine.Hierarchy().Superiors(id))
}

// GetChain handles the GET /entries/{id}/chain request.
func (s *Server) GetChain(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	chain, found := render.Chain(s.Engine.Hierarchy(), id)
	if !found {
		s.notFound(w, id)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, chain)
}

// IsSuperior handles the GET /is-superior request.
func (s *Server) IsSuperior(w http.ResponseWriter, r *http.Request) {
	var superior, subordinate string
	if err := runtime.BindQueryParameter("form", true, true, "superior", r.URL.Query(), &superior); err != nil {
		http.Error(w, fmt.Sprintf("Invalid format for parameter superior: %v", err), http.StatusBadRequest)
		return
	}
	if err := runtime.BindQueryParameter("form", true, true, "subordinate", r.URL.Query(), &subordinate); err != nil {
		http.Error(w, fmt.Sprintf("Invalid format for parameter subordinate: %v", err), http.StatusBadRequest)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{
		"result": s.Engine.Hierarchy().IsSuperior(superior, subordinate),
	})
}

// Valuation is the answer of GET /entries/{id}/valuation.
type Valuation struct {
	ID      string            `json:"id"`
	Factors []analysis.Factor `json:"factors"`
	Total   int               `json:"total"`
}

// GetValuation handles the GET /entries/{id}/valuation request.
func (s *Server) GetValuation(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	e, found := s.Engine.Hierarchy().Entry(id)
	if !found {
		s.notFound(w, id)
		return
	}
	factors := s.analyzer.Valuation.Factors(e)
	if factors == nil {
		factors = []analysis.Factor{}
	}
	total, _ := s.analyzer.Valuation.Total(e)
	s.writeJSON(w, http.StatusOK, Valuation{ID: id, Factors: factors, Total: total})
}

// GetStats handles the GET /stats request.
func (s *Server) GetStats(w http.ResponseWriter, r *http.Request) {
	var groupField *string
	if err := runtime.BindQueryParameter("form", true, false, "group_field", r.URL.Query(), &groupField); err != nil {
		http.Error(w, fmt.Sprintf("Invalid format for parameter group_field: %v", err), http.StatusBadRequest)
		return
	}
	a := s.analyzer
	if groupField != nil && *groupField != "" {
		a.GroupField = *groupField
	}
	stats := a.Stats(s.Engine.Hierarchy().Entries())
	if stats == nil {
		stats = []analysis.GroupStats{}
	}
	s.writeJSON(w, http.StatusOK, stats)
}

// GetGroupStats handles the GET /stats/{group} request.
func (s *Server) GetGroupStats(w http.ResponseWriter, r *http.Request) {
	group, ok := s.pathParam(w, r, "group")
	if !ok {
		return
	}
	gs, found := s.analyzer.Group(s.Engine.Hierarchy().Entries(), group)
	if !found {
		http.Error(w, fmt.Sprintf("no position in group %s", group), http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, gs)
}

// ComparePositions handles the GET /compare request.
func (s *Server) ComparePositions(w http.ResponseWriter, r *http.Request) {
	var ids, factors []string
	if err := runtime.BindQueryParameter("form", true, true, "id", r.URL.Query(), &ids); err != nil {
		http.Error(w, fmt.Sprintf("Invalid format for parameter id: %v", err), http.StatusBadRequest)
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "factor", r.URL.Query(), &factors); err != nil {
		http.Error(w, fmt.Sprintf("Invalid format for parameter factor: %v", err), http.StatusBadRequest)
		return
	}

	h := s.Engine.Hierarchy()
	entries := make([]domain.Entry, 0, len(ids))
	for _, id := range ids {
		e, ok := h.Entry(id)
		if !ok {
			s.notFound(w, id)
			return
		}
		entries = append(entries, e)
	}

	cmp, err := s.analyzer.Valuation.Compare(entries, factors)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.writeJSON(w, http.StatusOK, cmp)
}

// FactorInfo describes one valuation factor.
type FactorInfo struct {
	Key         string `json:"key"`
	Field       string `json:"field"`
	Description string `json:"description,omitempty"`
}

// ListFactors handles the GET /factors request.
func (s *Server) ListFactors(w http.ResponseWriter, r *http.Request) {
	fs := s.analyzer.Valuation
	out := make([]FactorInfo, 0, len(fs.Keys))
	for _, k := range fs.Keys {
		d, _ := fs.Explain(k)
		out = append(out, FactorInfo{Key: k, Field: fs.Prefix + k, Description: d})
	}
	s.writeJSON(w, http.StatusOK, out)
}

// GetDiagnostics handles the GET /diagnostics request.
func (s *Server) GetDiagnostics(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.Engine.Diagnose())
}

// SubscribeEvents handles the GET /events request (SSE).
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.Streams.Subscribe()
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: reload\ndata: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

// -- Helpers --

func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (string, bool) {
	return s.pathParam(w, r, "id")
}

func (s *Server) pathParam(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	var v string
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), &v, runtime.BindStyledParameterOptions{
		ParamLocation: runtime.ParamLocationPath,
		Explode:       false,
		Required:      true,
	})
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid format for parameter %s: %v", name, err), http.StatusBadRequest)
		return "", false
	}
	return v, true
}

func (s *Server) notFound(w http.ResponseWriter, id string) {
	http.Error(w, fmt.Sprintf("%v: %s", domain.ErrEntryNotFound, id), http.StatusNotFound)
}

func (s *Server) writeEntries(w http.ResponseWriter, entries []domain.Entry) {
	if entries == nil {
		entries = []domain.Entry{}
	}
	s.writeJSON(w, http.StatusOK, entries)
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "error", err)
	}
}
