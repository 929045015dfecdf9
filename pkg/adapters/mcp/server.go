package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/orgtree"
	"github.com/aretw0/orgtree/internal/presentation/render"
	"github.com/aretw0/orgtree/pkg/analysis"
	"github.com/aretw0/orgtree/pkg/domain"
	"github.com/aretw0/orgtree/pkg/hierarchy"
	"github.com/aretw0/orgtree/pkg/observability"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// TreeURI is the resource holding the whole chart as nested JSON.
const TreeURI = "orgtree://tree"

// Engine is the part of orgtree.Engine the MCP server needs.
type Engine interface {
	Hierarchy() *hierarchy.Structure
	Diagnose() *orgtree.Report
}

// EntryResult describes one position and its immediate surroundings.
type EntryResult struct {
	Entry        domain.Entry  `json:"entry" jsonschema_description:"The position"`
	Superior     *domain.Entry `json:"superior,omitempty" jsonschema_description:"The position it reports to, absent for top-level positions"`
	Subordinates int           `json:"subordinates" jsonschema_description:"Number of direct subordinates"`
}

// EntriesResult wraps a list of positions.
type EntriesResult struct {
	Entries []domain.Entry `json:"entries" jsonschema_description:"Positions, in hierarchy order"`
}

// SuperiorResult answers is_superior.
type SuperiorResult struct {
	Result bool `json:"result" jsonschema_description:"True when superior is above subordinate"`
}

// ChainResult answers describe_chain.
type ChainResult struct {
	Chain string `json:"chain" jsonschema_description:"Chain of command rendered top-down"`
}

type idArgs struct {
	ID string `json:"id"`
}

type subordinatesArgs struct {
	ID        string `json:"id"`
	Recursive bool   `json:"recursive"`
}

type superiorArgs struct {
	Superior    string `json:"superior"`
	Subordinate string `json:"subordinate"`
}

type labelArgs struct {
	Label string `json:"label"`
}

type statsArgs struct {
	GroupField string `json:"group_field"`
	Group      string `json:"group"`
}

type compareArgs struct {
	IDs     []string `json:"ids"`
	Factors []string `json:"factors"`
}

type factorArgs struct {
	Factor string `json:"factor"`
}

// StatsResult answers get_statistics.
type StatsResult struct {
	Groups []analysis.GroupStats `json:"groups" jsonschema_description:"Head count, salaries and vacancies per group"`
}

// ValuationResult answers get_valuation.
type ValuationResult struct {
	ID      string            `json:"id" jsonschema_description:"Position ID"`
	Factors []analysis.Factor `json:"factors" jsonschema_description:"Valuation factors the position carries"`
	Total   int               `json:"total" jsonschema_description:"Sum of the factor scores"`
}

// FactorsResult answers explain_factor.
type FactorsResult struct {
	Factors map[string]string `json:"factors" jsonschema_description:"What each valuation factor measures, by key"`
}

// Server wraps the engine and exposes it as an MCP Server.
type Server struct {
	engine    Engine
	metrics   *observability.Metrics
	logger    *slog.Logger
	analyzer  analysis.Analyzer
	mcpServer *server.MCPServer
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics counts tool calls.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithAnalyzer sets the field names read by the statistics and valuation tools.
func WithAnalyzer(a analysis.Analyzer) Option {
	return func(s *Server) {
		s.analyzer = a
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(engine Engine, opts ...Option) *Server {
	s := &Server{
		engine:    engine,
		analyzer:  analysis.Default(),
		mcpServer: server.NewMCPServer("orgtree-mcp", orgtree.Version),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.analyzer = s.analyzer.WithDefaults()
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s.mcpServer.AddTools(s.tools()...)
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE and stops when ctx is done.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("shutting down MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) tools() []server.ServerTool {
	idParam := mcp.WithString("id", mcp.Required(), mcp.Description("Position ID"))

	return []server.ServerTool{
		s.tool(mcp.NewTool("get_entry",
			mcp.WithDescription("Get a position with its superior and the number of direct subordinates."),
			idParam,
			mcp.WithOutputSchema[EntryResult](),
		), mcp.NewStructuredToolHandler(s.handleGetEntry)),

		s.tool(mcp.NewTool("get_roots",
			mcp.WithDescription("List the top-level positions of the chart."),
			mcp.WithOutputSchema[EntriesResult](),
		), mcp.NewStructuredToolHandler(s.handleGetRoots)),

		s.tool(mcp.NewTool("get_subordinates",
			mcp.WithDescription("List the positions reporting to a position. With recursive, list every position below it."),
			idParam,
			mcp.WithBoolean("recursive", mcp.Description("Include indirect subordinates (default false)")),
			mcp.WithOutputSchema[EntriesResult](),
		), mcp.NewStructuredToolHandler(s.handleGetSubordinates)),

		s.tool(mcp.NewTool("get_superiors",
			mcp.WithDescription("List the chain of superiors of a position, nearest first, up to the top of the chart."),
			idParam,
			mcp.WithOutputSchema[EntriesResult](),
		), mcp.NewStructuredToolHandler(s.handleGetSuperiors)),

		s.tool(mcp.NewTool("is_superior",
			mcp.WithDescription("Check whether one position is above another in the chain of command."),
			mcp.WithString("superior", mcp.Required(), mcp.Description("Candidate superior ID")),
			mcp.WithString("subordinate", mcp.Required(), mcp.Description("Candidate subordinate ID")),
			mcp.WithOutputSchema[SuperiorResult](),
		), mcp.NewStructuredToolHandler(s.handleIsSuperior)),

		s.tool(mcp.NewTool("describe_chain",
			mcp.WithDescription("Describe the chain of command from the top of the chart down to a position."),
			idParam,
			mcp.WithOutputSchema[ChainResult](),
		), mcp.NewStructuredToolHandler(s.handleDescribeChain)),

		s.tool(mcp.NewTool("find_by_label",
			mcp.WithDescription("Find a position by its label, ignoring case."),
			mcp.WithString("label", mcp.Required(), mcp.Description("Position label")),
			mcp.WithOutputSchema[EntryResult](),
		), mcp.NewStructuredToolHandler(s.handleFindByLabel)),

		s.tool(mcp.NewTool("get_statistics",
			mcp.WithDescription("Count positions, total and average salary, and vacancies per group (area by default)."),
			mcp.WithString("group_field", mcp.Description("Field to group by instead of the configured one")),
			mcp.WithString("group", mcp.Description("Only return this group, matched ignoring case")),
			mcp.WithOutputSchema[StatsResult](),
		), mcp.NewStructuredToolHandler(s.handleGetStatistics)),

		s.tool(mcp.NewTool("get_valuation",
			mcp.WithDescription("Get the valuation factors of a position and their total score."),
			idParam,
			mcp.WithOutputSchema[ValuationResult](),
		), mcp.NewStructuredToolHandler(s.handleGetValuation)),

		s.tool(mcp.NewTool("compare_positions",
			mcp.WithDescription("Compare the valuation factors of several positions side by side."),
			mcp.WithArray("ids", mcp.Required(), mcp.WithStringItems(), mcp.Description("Position IDs to compare")),
			mcp.WithArray("factors", mcp.WithStringItems(), mcp.Description("Factor keys to compare (default all)")),
			mcp.WithOutputSchema[analysis.Comparison](),
		), mcp.NewStructuredToolHandler(s.handleComparePositions)),

		s.tool(mcp.NewTool("explain_factor",
			mcp.WithDescription("Explain what a valuation factor measures. Without a factor, explain all of them."),
			mcp.WithString("factor", mcp.Description("Factor key, e.g. C")),
			mcp.WithOutputSchema[FactorsResult](),
		), mcp.NewStructuredToolHandler(s.handleExplainFactor)),

		s.tool(mcp.NewTool("diagnose",
			mcp.WithDescription("Report duplicated ids, unknown superiors, self references, loops and detached positions."),
		), s.handleDiagnose),
	}
}

// tool counts calls and failures of handler.
func (s *Server) tool(t mcp.Tool, handler server.ToolHandlerFunc) server.ServerTool {
	return server.ServerTool{
		Tool: t,
		Handler: func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			res, err := handler(ctx, request)
			isError := err != nil || (res != nil && res.IsError)
			s.metrics.ObserveToolCall(t.Name, isError)
			if isError {
				s.logger.Debug("tool call failed", "tool", t.Name)
			}
			return res, err
		},
	}
}

func (s *Server) handleGetEntry(ctx context.Context, request mcp.CallToolRequest, args idArgs) (EntryResult, error) {
	return s.describe(args.ID)
}

func (s *Server) handleFindByLabel(ctx context.Context, request mcp.CallToolRequest, args labelArgs) (EntryResult, error) {
	e, ok := s.engine.Hierarchy().FindByLabel(args.Label)
	if !ok {
		return EntryResult{}, fmt.Errorf("no position labeled %q", args.Label)
	}
	return s.describe(e.ID)
}

func (s *Server) describe(id string) (EntryResult, error) {
	h := s.engine.Hierarchy()
	n, ok := h.Node(id)
	if !ok {
		return EntryResult{}, fmt.Errorf("%w: %s", domain.ErrEntryNotFound, id)
	}
	res := EntryResult{Entry: n.Entry(), Subordinates: len(n.Subordinates())}
	if sup, ok := n.Superior(); ok {
		e := sup.Entry()
		res.Superior = &e
	}
	return res, nil
}

func (s *Server) handleGetRoots(ctx context.Context, request mcp.CallToolRequest, args struct{}) (EntriesResult, error) {
	return entries(s.engine.Hierarchy().Roots()), nil
}

func (s *Server) handleGetSubordinates(ctx context.Context, request mcp.CallToolRequest, args subordinatesArgs) (EntriesResult, error) {
	h := s.engine.Hierarchy()
	if args.Recursive {
		return entries(h.AllSubordinates(args.ID)), nil
	}
	return entries(h.DirectSubordinates(args.ID)), nil
}

func (s *Server) handleGetSuperiors(ctx context.Context, request mcp.CallToolRequest, args idArgs) (EntriesResult, error) {
	return entries(s.engine.Hierarchy().Superiors(args.ID)), nil
}

func (s *Server) handleIsSuperior(ctx context.Context, request mcp.CallToolRequest, args superiorArgs) (SuperiorResult, error) {
	return SuperiorResult{Result: s.engine.Hierarchy().IsSuperior(args.Superior, args.Subordinate)}, nil
}

func (s *Server) handleDescribeChain(ctx context.Context, request mcp.CallToolRequest, args idArgs) (ChainResult, error) {
	chain, ok := render.Chain(s.engine.Hierarchy(), args.ID)
	if !ok {
		return ChainResult{}, fmt.Errorf("%w: %s", domain.ErrEntryNotFound, args.ID)
	}
	return ChainResult{Chain: chain}, nil
}

func (s *Server) handleGetStatistics(ctx context.Context, request mcp.CallToolRequest, args statsArgs) (StatsResult, error) {
	a := s.analyzer
	if args.GroupField != "" {
		a.GroupField = args.GroupField
	}
	all := s.engine.Hierarchy().Entries()
	if args.Group != "" {
		gs, ok := a.Group(all, args.Group)
		if !ok {
			return StatsResult{}, fmt.Errorf("no position in group %q", args.Group)
		}
		return StatsResult{Groups: []analysis.GroupStats{gs}}, nil
	}
	groups := a.Stats(all)
	if groups == nil {
		groups = []analysis.GroupStats{}
	}
	return StatsResult{Groups: groups}, nil
}

func (s *Server) handleGetValuation(ctx context.Context, request mcp.CallToolRequest, args idArgs) (ValuationResult, error) {
	e, ok := s.engine.Hierarchy().Entry(args.ID)
	if !ok {
		return ValuationResult{}, fmt.Errorf("%w: %s", domain.ErrEntryNotFound, args.ID)
	}
	factors := s.analyzer.Valuation.Factors(e)
	if factors == nil {
		factors = []analysis.Factor{}
	}
	total, _ := s.analyzer.Valuation.Total(e)
	return ValuationResult{ID: args.ID, Factors: factors, Total: total}, nil
}

func (s *Server) handleComparePositions(ctx context.Context, request mcp.CallToolRequest, args compareArgs) (analysis.Comparison, error) {
	if len(args.IDs) == 0 {
		return analysis.Comparison{}, fmt.Errorf("ids must name at least one position")
	}
	h := s.engine.Hierarchy()
	list := make([]domain.Entry, 0, len(args.IDs))
	for _, id := range args.IDs {
		e, ok := h.Entry(id)
		if !ok {
			return analysis.Comparison{}, fmt.Errorf("%w: %s", domain.ErrEntryNotFound, id)
		}
		list = append(list, e)
	}
	return s.analyzer.Valuation.Compare(list, args.Factors)
}

func (s *Server) handleExplainFactor(ctx context.Context, request mcp.CallToolRequest, args factorArgs) (FactorsResult, error) {
	fs := s.analyzer.Valuation
	keys := fs.Keys
	if args.Factor != "" {
		keys = []string{args.Factor}
	}
	out := FactorsResult{Factors: make(map[string]string, len(keys))}
	for _, k := range keys {
		d, ok := fs.Explain(k)
		if !ok {
			return FactorsResult{}, fmt.Errorf("%w: %q", analysis.ErrUnknownFactor, k)
		}
		out.Factors[k] = d
	}
	return out, nil
}

func (s *Server) handleDiagnose(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report := s.engine.Diagnose()
	if len(report.Issues) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("%d positions, %d top-level, no issues.", report.Entries, report.Roots)), nil
	}
	jsonBytes, err := json.Marshal(report)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode failed: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func entries(list []domain.Entry) EntriesResult {
	if list == nil {
		list = []domain.Entry{}
	}
	return EntriesResult{Entries: list}
}

// treeNode is a position with its subordinates nested.
type treeNode struct {
	domain.Entry
	Subordinates []treeNode `json:"subordinates,omitempty"`
}

func (s *Server) tree() []treeNode {
	var build func(n *hierarchy.Node) treeNode
	build = func(n *hierarchy.Node) treeNode {
		tn := treeNode{Entry: n.Entry()}
		for _, sub := range n.Subordinates() {
			tn.Subordinates = append(tn.Subordinates, build(sub))
		}
		return tn
	}

	roots := s.engine.Hierarchy().Tree()
	out := make([]treeNode, 0, len(roots))
	for _, n := range roots {
		out = append(out, build(n))
	}
	return out
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(TreeURI, "Organization chart",
		mcp.WithResourceDescription("Every position reachable from the top of the chart, nested under its superior."),
		mcp.WithMIMEType("application/json"),
	), s.readTree)
}

func (s *Server) readTree(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	jsonBytes, err := json.Marshal(s.tree())
	if err != nil {
		return nil, fmt.Errorf("failed to encode tree: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      TreeURI,
			MIMEType: "application/json",
			Text:     string(jsonBytes),
		},
	}, nil
}
