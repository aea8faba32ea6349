package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"nodewatch/internal/etl"
	"nodewatch/internal/service"
)

// Server exposes the node metric queries as MCP tools so agents can ask the
// same questions the CLI answers.
type Server struct {
	mcp      *server.MCPServer
	queries  *service.QueryService
	registry *etl.Registry
	logger   *zap.Logger
}

// Deps holds everything the MCP server needs from the app layer.
type Deps struct {
	Queries  *service.QueryService
	Registry *etl.Registry
	Logger   *zap.Logger
	Version  string
}

// New creates and configures the MCP server with all tools and resources.
func New(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	s := &Server{
		queries:  deps.Queries,
		registry: deps.Registry,
		logger:   logger,
	}

	s.mcp = server.NewMCPServer(
		"nodewatch-mcp",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
	)

	s.registerQueryTools()
	s.registerResources()
	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	s.logger.Info("starting MCP stdio server")
	return server.ServeStdio(s.mcp)
}

// ── Tools ──────────────────────────────────────────────────

func (s *Server) registerQueryTools() {
	readOnly := mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: boolPtr(true)})

	s.mcp.AddTool(mcp.NewTool("rank",
		mcp.WithDescription("Show the top nodes of a fresh leaderboard snapshot, one block per node in ranking order"),
		mcp.WithNumber("n", mcp.Description(fmt.Sprintf("How many nodes to show (default %d)", service.DefaultRankSize))),
		readOnly,
	), s.handleRank)

	s.mcp.AddTool(mcp.NewTool("node_metrics",
		mcp.WithDescription("Show every metric of one node, or a single metric when 'metric' is given"),
		mcp.WithString("nodeId", mcp.Description("Node identifier (case-insensitive)"), mcp.Required()),
		mcp.WithString("metric", mcp.Description("Column name (case-insensitive); use list_columns to see them")),
		readOnly,
	), s.handleNodeMetrics)

	s.mcp.AddTool(mcp.NewTool("all_metrics",
		mcp.WithDescription("Show every metric for several nodes, one block per node; defaults to the configured nodes"),
		mcp.WithString("nodeIds", mcp.Description("Comma-separated node identifiers (optional)")),
		readOnly,
	), s.handleAllMetrics)

	s.mcp.AddTool(mcp.NewTool("list_columns",
		mcp.WithDescription("List the metric columns of the active source"),
		readOnly,
	), s.handleListColumns)

	s.mcp.AddTool(mcp.NewTool("list_sources",
		mcp.WithDescription("List the configured metric sources and their settings"),
		readOnly,
	), s.handleListSources)
}

func (s *Server) handleRank(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	n := int(req.GetFloat("n", 0))
	blocks, err := s.queries.Rank(ctx, n)
	return blocksResult(blocks, err), nil
}

func (s *Server) handleNodeMetrics(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	nodeID := req.GetString("nodeId", "")
	if strings.TrimSpace(nodeID) == "" {
		return nil, fmt.Errorf("nodeId is required")
	}
	blocks, err := s.queries.Metric(ctx, nodeID, req.GetString("metric", ""))
	return blocksResult(blocks, err), nil
}

func (s *Server) handleAllMetrics(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var ids []string
	if raw := req.GetString("nodeIds", ""); raw != "" {
		ids = strings.Split(raw, ",")
	}
	blocks, err := s.queries.AllMetrics(ctx, ids...)
	return blocksResult(blocks, err), nil
}

func (s *Server) handleListColumns(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.queries.Schema())
}

func (s *Server) handleListSources(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.registry == nil {
		return jsonResult([]etl.SourceSpec{})
	}
	return jsonResult(s.registry.List())
}

// ── Resources ──────────────────────────────────────────────

const schemaURI = "nodewatch://schema"

func (s *Server) registerResources() {
	s.mcp.AddResource(mcp.NewResource(
		schemaURI,
		"Active column schema",
		mcp.WithMIMEType("application/json"),
	), s.handleSchemaResource)
}

func (s *Server) handleSchemaResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(s.queries.Schema(), "", "  ")
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      schemaURI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// ── Helpers ────────────────────────────────────────────────

// textResult creates a simple text tool result.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

// blocksResult returns one text content per block. A query error marks the
// result as an error while still carrying the rendered failure blocks.
func blocksResult(blocks []string, err error) *mcp.CallToolResult {
	res := &mcp.CallToolResult{Content: make([]mcp.Content, 0, len(blocks))}
	for _, b := range blocks {
		res.Content = append(res.Content, mcp.TextContent{Type: "text", Text: b})
	}
	res.IsError = err != nil
	return res
}

// jsonResult serializes v to JSON and wraps it in a text tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return textResult(string(data)), nil
}

func boolPtr(v bool) *bool { return &v }
