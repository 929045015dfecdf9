package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/aretw0/orgtree"
	"github.com/aretw0/orgtree/pkg/analysis"
	"github.com/aretw0/orgtree/pkg/dsl"
	"github.com/aretw0/orgtree/pkg/observability"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T) *orgtree.Engine {
	t.Helper()
	chart := dsl.New()
	chart.Add("1").Label("CEO").
		Add("2").Label("CTO").ReportsTo("1").
		Add("3").Label("CFO").ReportsTo("1").
		Add("4").Label("Dev Manager").ReportsTo("2").Field("area", "Engineering").
		Add("6").Label("Developer 1").ReportsTo("4").
		Add("7").Label("Developer 2").ReportsTo("4")

	eng, err := orgtree.New("", orgtree.WithSource(chart.Source()))
	require.NoError(t, err)
	require.NoError(t, eng.Load(context.Background()))
	return eng
}

func call(t *testing.T, s *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	var tool *server.ServerTool
	for _, st := range s.tools() {
		if st.Tool.Name == name {
			tool = &st
			break
		}
	}
	require.NotNil(t, tool, "tool %s not registered", name)

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	res, err := tool.Handler(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	return tc.Text
}

func entryIDs(t *testing.T, res *mcp.CallToolResult) []string {
	t.Helper()
	require.False(t, res.IsError, text(t, res))
	var out EntriesResult
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &out))
	ids := make([]string, len(out.Entries))
	for i, e := range out.Entries {
		ids[i] = e.ID
	}
	return ids
}

func TestTools_Queries(t *testing.T) {
	s := NewServer(newEngine(t))

	assert.Equal(t, []string{"1"}, entryIDs(t, call(t, s, "get_roots", nil)))
	assert.Equal(t, []string{"4"}, entryIDs(t, call(t, s, "get_subordinates", map[string]any{"id": "2"})))
	assert.Equal(t, []string{"4", "6", "7"}, entryIDs(t, call(t, s, "get_subordinates", map[string]any{"id": "2", "recursive": true})))
	assert.Equal(t, []string{"4", "2", "1"}, entryIDs(t, call(t, s, "get_superiors", map[string]any{"id": "6"})))
	assert.Equal(t, []string{}, entryIDs(t, call(t, s, "get_superiors", map[string]any{"id": "99"})))
}

func TestTools_GetEntry(t *testing.T) {
	s := NewServer(newEngine(t))

	res := call(t, s, "get_entry", map[string]any{"id": "4"})
	require.False(t, res.IsError)
	var got EntryResult
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &got))
	assert.Equal(t, "Dev Manager", got.Entry.Label)
	assert.Equal(t, "Engineering", got.Entry.Fields["area"])
	require.NotNil(t, got.Superior)
	assert.Equal(t, "2", got.Superior.ID)
	assert.Equal(t, 2, got.Subordinates)

	res = call(t, s, "get_entry", map[string]any{"id": "1"})
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &got))
	assert.Nil(t, got.Superior)

	res = call(t, s, "get_entry", map[string]any{"id": "99"})
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "entry not found")
}

func TestTools_FindIsSuperiorAndChain(t *testing.T) {
	s := NewServer(newEngine(t))

	res := call(t, s, "find_by_label", map[string]any{"label": "developer 2"})
	var found EntryResult
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &found))
	assert.Equal(t, "7", found.Entry.ID)
	assert.True(t, call(t, s, "find_by_label", map[string]any{"label": "Janitor"}).IsError)

	var sup SuperiorResult
	require.NoError(t, json.Unmarshal([]byte(text(t, call(t, s, "is_superior", map[string]any{"superior": "1", "subordinate": "7"}))), &sup))
	assert.True(t, sup.Result)
	require.NoError(t, json.Unmarshal([]byte(text(t, call(t, s, "is_superior", map[string]any{"superior": "3", "subordinate": "7"}))), &sup))
	assert.False(t, sup.Result)

	var chain ChainResult
	require.NoError(t, json.Unmarshal([]byte(text(t, call(t, s, "describe_chain", map[string]any{"id": "6"}))), &chain))
	assert.Equal(t, "CEO (ID: 1)\n  └─ CTO (ID: 2)\n    └─ Dev Manager (ID: 4)\n      └─ Developer 1 (ID: 6)", chain.Chain)
	assert.True(t, call(t, s, "describe_chain", map[string]any{"id": "99"}).IsError)
}

func TestTools_Diagnose(t *testing.T) {
	s := NewServer(newEngine(t))
	assert.Equal(t, "6 positions, 1 top-level, no issues.", text(t, call(t, s, "diagnose", nil)))
}

func TestTools_Metrics(t *testing.T) {
	m := observability.NewMetrics()
	s := NewServer(newEngine(t), WithMetrics(m))

	call(t, s, "get_roots", nil)
	call(t, s, "get_entry", map[string]any{"id": "99"})

	n, err := testutil.GatherAndCount(m.Registry(), "orgtree_mcp_tool_calls_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestResource_Tree(t *testing.T) {
	s := NewServer(newEngine(t))

	contents, err := s.readTree(context.Background(), mcp.ReadResourceRequest{})
	require.NoError(t, err)
	require.Len(t, contents, 1)

	tc, ok := contents[0].(mcp.TextResourceContents)
	require.True(t, ok)
	assert.Equal(t, TreeURI, tc.URI)

	var tree []treeNode
	require.NoError(t, json.Unmarshal([]byte(tc.Text), &tree))
	require.Len(t, tree, 1)
	assert.Equal(t, "1", tree[0].ID)
	assert.True(t, strings.Contains(tc.Text, `"subordinates"`))
	assert.Len(t, tree[0].Subordinates, 2)
}

func newTownHall(t *testing.T) *orgtree.Engine {
	t.Helper()
	level := func(l string, score int) map[string]any {
		return map[string]any{"nivel": "Nivel " + l, "puntuacion": score}
	}
	chart := dsl.New()
	chart.Add("1").Label("Secretario General").
		Field("Área", "Secretaría").Field("Salario", 45000.0).Field("Número_Vacantes", 1).
		Field("Valoración_A", level("V", 50)).Field("Valoración_E", level("II", 20)).
		Add("2").Label("Tesorero").ReportsTo("1").
		Field("Área", "Hacienda").Field("Salario", 42000.0).Field("Número_Vacantes", 1).
		Field("Valoración_A", level("V", 50)).Field("Valoración_E", level("II", 20)).
		Add("45").Label("Jefe de Servicio de Hacienda").ReportsTo("2").
		Field("Área", "Hacienda").Field("Salario", 38000.0).Field("Número_Vacantes", 1).
		Field("Valoración_A", level("IV", 40)).Field("Valoración_E", level("II", 20))

	eng, err := orgtree.New("", orgtree.WithSource(chart.Source()))
	require.NoError(t, err)
	require.NoError(t, eng.Load(context.Background()))
	return eng
}

func TestTools_Statistics(t *testing.T) {
	s := NewServer(newTownHall(t), WithAnalyzer(analysis.RPT()))

	var stats StatsResult
	require.NoError(t, json.Unmarshal([]byte(text(t, call(t, s, "get_statistics", nil))), &stats))
	require.Len(t, stats.Groups, 2)
	assert.Equal(t, "Hacienda", stats.Groups[1].Group)
	assert.Equal(t, 40000.0, stats.Groups[1].AverageSalary)
	assert.Equal(t, []string{"Tesorero", "Jefe de Servicio de Hacienda"}, stats.Groups[1].Positions)

	require.NoError(t, json.Unmarshal([]byte(text(t, call(t, s, "get_statistics", map[string]any{"group": "hacienda"}))), &stats))
	require.Len(t, stats.Groups, 1)
	assert.Equal(t, 2, stats.Groups[0].Count)

	assert.True(t, call(t, s, "get_statistics", map[string]any{"group": "Urbanismo"}).IsError)
}

func TestTools_Valuation(t *testing.T) {
	s := NewServer(newTownHall(t), WithAnalyzer(analysis.RPT()))

	var v ValuationResult
	require.NoError(t, json.Unmarshal([]byte(text(t, call(t, s, "get_valuation", map[string]any{"id": "45"}))), &v))
	assert.Equal(t, 60, v.Total)
	assert.Equal(t, []analysis.Factor{
		{Key: "A", Level: "Nivel IV", Score: 40},
		{Key: "E", Level: "Nivel II", Score: 20},
	}, v.Factors)
	assert.True(t, call(t, s, "get_valuation", map[string]any{"id": "99"}).IsError)

	var cmp analysis.Comparison
	res := call(t, s, "compare_positions", map[string]any{"ids": []any{"2", "45"}, "factors": []any{"A"}})
	require.False(t, res.IsError, text(t, res))
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &cmp))
	assert.Equal(t, []string{"2", "45"}, cmp.Positions)
	assert.Equal(t, 50, cmp.Factors[0].Scores["2"].Score)
	assert.Equal(t, map[string]int{"2": 70, "45": 60}, cmp.Totals)

	assert.True(t, call(t, s, "compare_positions", map[string]any{"ids": []any{"2", "99"}}).IsError)
	assert.True(t, call(t, s, "compare_positions", map[string]any{"ids": []any{"2"}, "factors": []any{"Z"}}).IsError)
}

func TestTools_ExplainFactor(t *testing.T) {
	s := NewServer(newEngine(t))

	var all FactorsResult
	require.NoError(t, json.Unmarshal([]byte(text(t, call(t, s, "explain_factor", nil))), &all))
	assert.Len(t, all.Factors, 5)

	var one FactorsResult
	require.NoError(t, json.Unmarshal([]byte(text(t, call(t, s, "explain_factor", map[string]any{"factor": "C"}))), &one))
	assert.Contains(t, one.Factors["C"], "Complexity")

	assert.True(t, call(t, s, "explain_factor", map[string]any{"factor": "Z"}).IsError)
}
