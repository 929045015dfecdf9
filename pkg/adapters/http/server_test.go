package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/orgtree"
	"github.com/aretw0/orgtree/pkg/adapters/memory"
	"github.com/aretw0/orgtree/pkg/analysis"
	"github.com/aretw0/orgtree/pkg/domain"
	"github.com/aretw0/orgtree/pkg/observability"
)

func company() []domain.Entry {
	return []domain.Entry{
		{ID: "1", Label: "CEO"},
		{ID: "2", Label: "CTO", SuperiorID: "1"},
		{ID: "3", Label: "CFO", SuperiorID: "1"},
		{ID: "4", Label: "Dev Manager", SuperiorID: "2", Fields: map[string]any{"area": "Engineering"}},
		{ID: "5", Label: "QA Manager", SuperiorID: "2", Fields: map[string]any{"area": "Engineering"}},
		{ID: "6", Label: "Developer 1", SuperiorID: "4"},
		{ID: "7", Label: "Developer 2", SuperiorID: "4"},
		{ID: "8", Label: "Accountant", SuperiorID: "3"},
	}
}

type fixture struct {
	src     *memory.Source
	engine  *orgtree.Engine
	server  *Server
	handler http.Handler
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	return newFixtureWith(t, company(), opts...)
}

func newFixtureWith(t *testing.T, chart []domain.Entry, opts ...Option) *fixture {
	t.Helper()
	src := memory.NewSource(chart...)
	eng, err := orgtree.New("", orgtree.WithSource(src))
	if err != nil {
		t.Fatal(err)
	}
	if err := eng.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	srv, err := NewServer(eng, opts...)
	if err != nil {
		t.Fatal(err)
	}
	h, err := srv.Handler()
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{src: src, engine: eng, server: srv, handler: h}
}

func (f *fixture) do(t *testing.T, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func (f *fixture) ids(t *testing.T, target string) []string {
	t.Helper()
	w := f.do(t, "GET", target)
	if w.Code != http.StatusOK {
		t.Fatalf("%s: expected 200, got %d: %s", target, w.Code, w.Body.String())
	}
	var entries []domain.Entry
	if err := json.Unmarshal(w.Body.Bytes(), &entries); err != nil {
		t.Fatalf("%s: %v", target, err)
	}
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

func assertIDs(t *testing.T, target string, got []string, want ...string) {
	t.Helper()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("%s: expected %v, got %v", target, want, got)
	}
}

func TestQueries(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		target string
		want   []string
	}{
		{"/roots", []string{"1"}},
		{"/entries", []string{"1", "2", "3", "4", "5", "6", "7", "8"}},
		{"/entries?label=dev%20manager", []string{"4"}},
		{"/entries?field=area=engineering", []string{"4", "5"}},
		{"/entries/2/subordinates", []string{"4", "5"}},
		{"/entries/2/subordinates?recursive=true", []string{"4", "6", "7", "5"}},
		{"/entries/6/superiors", []string{"4", "2", "1"}},
		{"/entries/99/subordinates", []string{}},
		{"/entries/99/superiors", []string{}},
	}
	for _, tt := range tests {
		assertIDs(t, tt.target, f.ids(t, tt.target), tt.want...)
	}
}

func TestGetEntry(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, "GET", "/entries/4")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var e domain.Entry
	if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil {
		t.Fatal(err)
	}
	if e.Label != "Dev Manager" || e.SuperiorID != "2" || e.Fields["area"] != "Engineering" {
		t.Errorf("unexpected entry %+v", e)
	}

	if w := f.do(t, "GET", "/entries/99"); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown id, got %d", w.Code)
	}
}

func TestGetChain(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, "GET", "/entries/7/chain")
	want := "CEO (ID: 1)\n  └─ CTO (ID: 2)\n    └─ Dev Manager (ID: 4)\n      └─ Developer 2 (ID: 7)\n"
	if w.Code != http.StatusOK || w.Body.String() != want {
		t.Errorf("unexpected chain %d:\n%s", w.Code, w.Body.String())
	}
	if w := f.do(t, "GET", "/entries/99/chain"); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestIsSuperior(t *testing.T) {
	f := newFixture(t)

	check := func(target string, want bool) {
		t.Helper()
		w := f.do(t, "GET", target)
		var body map[string]bool
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("%s: %v", target, err)
		}
		if body["result"] != want {
			t.Errorf("%s: expected %v", target, want)
		}
	}
	check("/is-superior?superior=1&subordinate=7", true)
	check("/is-superior?superior=3&subordinate=7", false)
	check("/is-superior?superior=7&subordinate=7", false)
	check("/is-superior?superior=ghost&subordinate=7", false)
}

func TestInvalidRequests(t *testing.T) {
	f := newFixture(t)

	for _, target := range []string{
		"/is-superior?superior=1",
		"/entries/2/subordinates?recursive=maybe",
		"/entries?field=area",
	} {
		if w := f.do(t, "GET", target); w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", target, w.Code)
		}
	}
}

func TestGetTree(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, "GET", "/tree")
	var tree []TreeNode
	if err := json.Unmarshal(w.Body.Bytes(), &tree); err != nil {
		t.Fatal(err)
	}
	if len(tree) != 1 || tree[0].ID != "1" || len(tree[0].Subordinates) != 2 {
		t.Fatalf("unexpected tree %+v", tree)
	}
	dev := tree[0].Subordinates[0].Subordinates[0]
	if dev.ID != "4" || len(dev.Subordinates) != 2 || dev.Subordinates[1].ID != "7" {
		t.Errorf("unexpected subtree %+v", dev)
	}

	etag := w.Header().Get("ETag")
	if etag != `"`+f.engine.Info().Checksum+`"` {
		t.Fatalf("unexpected ETag %q", etag)
	}
	req := httptest.NewRequest("GET", "/tree", nil)
	req.Header.Set("If-None-Match", etag)
	cached := httptest.NewRecorder()
	f.handler.ServeHTTP(cached, req)
	if cached.Code != http.StatusNotModified || cached.Body.Len() != 0 {
		t.Errorf("expected 304 without body, got %d", cached.Code)
	}
}

func TestGetGraph(t *testing.T) {
	f := newFixture(t)

	body := f.do(t, "GET", "/graph?focus=6").Body.String()
	for _, want := range []string{"graph TD", "p_1 --> p_2", "class p_6 focus", "p_4"} {
		if !strings.Contains(body, want) {
			t.Errorf("graph missing %q:\n%s", want, body)
		}
	}
}

func TestDiagnosticsAndInfo(t *testing.T) {
	f := newFixture(t)

	var report orgtree.Report
	if err := json.Unmarshal(f.do(t, "GET", "/diagnostics").Body.Bytes(), &report); err != nil {
		t.Fatal(err)
	}
	if report.Entries != 8 || report.Roots != 1 || len(report.Issues) != 0 {
		t.Errorf("unexpected report %+v", report)
	}

	var info map[string]any
	if err := json.Unmarshal(f.do(t, "GET", "/info").Body.Bytes(), &info); err != nil {
		t.Fatal(err)
	}
	if info["version"] != orgtree.Version || info["api_version"] != "0.1.0" || info["entries"] != float64(8) ||
		info["checksum"] != f.engine.Info().Checksum {
		t.Errorf("unexpected info %v", info)
	}

	if w := f.do(t, "GET", "/health"); !strings.Contains(w.Body.String(), `"ok"`) {
		t.Errorf("unexpected health %s", w.Body.String())
	}
}

func TestReload(t *testing.T) {
	f := newFixture(t)

	next := append(company(), domain.Entry{ID: "9", Label: "Intern", SuperiorID: "8"})
	if err := f.src.ReplaceEntries(context.Background(), next); err != nil {
		t.Fatal(err)
	}

	w := f.do(t, "POST", "/reload")
	var diff domain.ChartDiff
	if err := json.Unmarshal(w.Body.Bytes(), &diff); err != nil {
		t.Fatal(err)
	}
	if len(diff.Added) != 1 || diff.Added[0] != "9" {
		t.Errorf("unexpected diff %+v", diff)
	}
	assertIDs(t, "/entries/9/superiors", f.ids(t, "/entries/9/superiors"), "8", "3", "1")
}

func TestMetricsAndSpec(t *testing.T) {
	f := newFixture(t, WithMetrics(observability.NewMetrics()))

	f.do(t, "GET", "/roots")
	f.do(t, "GET", "/entries/99")

	body := f.do(t, "GET", "/metrics").Body.String()
	for _, want := range []string{
		`orgtree_http_requests_total{code="200",method="GET",route="/roots"} 1`,
		`orgtree_http_requests_total{code="404",method="GET",route="/entries/{id}"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}

	if w := f.do(t, "GET", "/openapi.yaml"); !strings.Contains(w.Body.String(), "openapi: 3.0.3") {
		t.Error("expected embedded spec")
	}
	if w := f.do(t, "OPTIONS", "/roots"); w.Code != http.StatusOK || w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("unexpected preflight response %d", w.Code)
	}
}

// syncRecorder is a ResponseWriter that can be read while the handler streams.
type syncRecorder struct {
	mu     sync.Mutex
	header http.Header
	buf    bytes.Buffer
}

func (r *syncRecorder) Header() http.Header { return r.header }
func (r *syncRecorder) WriteHeader(int)     {}
func (r *syncRecorder) Flush()              {}

func (r *syncRecorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.Write(p)
}

func (r *syncRecorder) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.String()
}

func TestSubscribeEvents(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req := httptest.NewRequest("GET", "/events", nil).WithContext(ctx)
	w := &syncRecorder{header: make(http.Header)}

	done := make(chan struct{})
	go func() {
		f.handler.ServeHTTP(w, req)
		close(done)
	}()

	waitFor(t, func() bool { return f.server.Streams.Len() == 1 })
	f.server.Publish(nil)
	f.server.Publish(&domain.ChartDiff{Added: []string{"9"}})
	waitFor(t, func() bool { return strings.Contains(w.String(), "event: reload") })

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stream did not stop")
	}

	body := w.String()
	if !strings.Contains(body, "event: ping") || !strings.Contains(body, `data: {"added":["9"]}`) {
		t.Errorf("unexpected stream:\n%s", body)
	}
	if strings.Count(body, "event: reload") != 1 {
		t.Errorf("nil diffs must not be published:\n%s", body)
	}
	if f.server.Streams.Len() != 0 {
		t.Error("expected subscriber to be removed")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestGetSpec(t *testing.T) {
	doc, err := GetSpec()
	if err != nil {
		t.Fatal(err)
	}
	if doc.Paths.Find("/entries/{id}/chain") == nil {
		t.Error("expected chain path in spec")
	}
}

func payroll() []domain.Entry {
	return []domain.Entry{
		{ID: "1", Label: "CEO", Fields: map[string]any{
			"area": "Board", "salary": 100.0, "vacancies": 1,
			"valuation_A": map[string]any{"level": "Level V", "score": 50},
			"valuation_B": 40,
		}},
		{ID: "2", Label: "CTO", SuperiorID: "1", Fields: map[string]any{
			"area": "Engineering", "salary": 80.0,
			"valuation_A": "Level III",
		}},
		{ID: "3", Label: "Developer", SuperiorID: "2", Fields: map[string]any{
			"area": "Engineering", "salary": 60.0, "vacancies": 2,
			"valuation_A": map[string]any{"level": "Level II", "score": 20},
		}},
	}
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func TestGetStats(t *testing.T) {
	f := newFixtureWith(t, payroll())

	w := f.do(t, "GET", "/stats")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var stats []analysis.GroupStats
	decode(t, w, &stats)
	if len(stats) != 2 || stats[0].Group != "Board" || stats[1].Group != "Engineering" {
		t.Fatalf("unexpected groups: %+v", stats)
	}
	eng := stats[1]
	if eng.Count != 2 || eng.AverageSalary != 70 || eng.TotalVacancies != 2 {
		t.Errorf("unexpected engineering stats: %+v", eng)
	}

	w = f.do(t, "GET", "/stats?group_field=salary")
	decode(t, w, &stats)
	if len(stats) != 3 || stats[0].Group != "100" {
		t.Errorf("expected one group per salary, got %+v", stats)
	}

	w = f.do(t, "GET", "/stats/engineering")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var gs analysis.GroupStats
	decode(t, w, &gs)
	if gs.Count != 2 || gs.TotalSalary != 140 {
		t.Errorf("unexpected group: %+v", gs)
	}

	if w := f.do(t, "GET", "/stats/Sales"); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for an empty group, got %d", w.Code)
	}
}

func TestStats_WithAnalyzer(t *testing.T) {
	f := newFixtureWith(t, payroll(), WithAnalyzer(analysis.Analyzer{GroupField: "vacancies"}))

	var stats []analysis.GroupStats
	decode(t, f.do(t, "GET", "/stats"), &stats)
	if len(stats) != 3 || stats[0].Group != "1" || stats[1].Group != "" {
		t.Fatalf("expected grouping by vacancies, got %+v", stats)
	}
	if stats[0].TotalSalary != 100 {
		t.Errorf("missing names should fall back to the defaults, got %+v", stats[0])
	}
}

func TestValuation(t *testing.T) {
	f := newFixtureWith(t, payroll())

	w := f.do(t, "GET", "/entries/1/valuation")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var v Valuation
	decode(t, w, &v)
	if len(v.Factors) != 2 || v.Total != 90 {
		t.Errorf("unexpected valuation: %+v", v)
	}

	if w := f.do(t, "GET", "/entries/99/valuation"); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}

	assertIDs(t, "level", f.ids(t, "/entries?level=A=Level%20III"), "1", "2")
	for _, target := range []string{"/entries?level=A", "/entries?level=Z=Level%20I", "/entries?level=A=senior"} {
		if w := f.do(t, "GET", target); w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", target, w.Code)
		}
	}
}

func TestComparePositions(t *testing.T) {
	f := newFixtureWith(t, payroll())

	w := f.do(t, "GET", "/compare?id=1&id=3&factor=A")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var cmp analysis.Comparison
	decode(t, w, &cmp)
	if strings.Join(cmp.Positions, ",") != "1,3" || len(cmp.Factors) != 1 {
		t.Fatalf("unexpected comparison: %+v", cmp)
	}
	if got := cmp.Factors[0].Scores["3"].Score; got != 20 {
		t.Errorf("expected developer A score 20, got %d", got)
	}
	if cmp.Totals["1"] != 90 || cmp.Totals["3"] != 20 {
		t.Errorf("unexpected totals: %v", cmp.Totals)
	}

	tests := map[string]int{
		"/compare":               http.StatusBadRequest,
		"/compare?id=1&factor=Z": http.StatusBadRequest,
		"/compare?id=1&id=99":    http.StatusNotFound,
	}
	for target, code := range tests {
		if w := f.do(t, "GET", target); w.Code != code {
			t.Errorf("%s: expected %d, got %d", target, code, w.Code)
		}
	}
}

func TestListFactors(t *testing.T) {
	f := newFixture(t)

	var factors []FactorInfo
	decode(t, f.do(t, "GET", "/factors"), &factors)
	if len(factors) != 5 {
		t.Fatalf("expected 5 factors, got %+v", factors)
	}
	if factors[0].Key != "A" || factors[0].Field != "valuation_A" || factors[0].Description == "" {
		t.Errorf("unexpected first factor: %+v", factors[0])
	}
}
