// Package mcpadapter exposes retrieval and routing as MCP tools so agent
// frontends can use the knowledge bases without going through the REST API.
package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/Pond500/rag-mcp/internal/core/ports"
)

type Server struct {
	search    ports.SearchService
	routes    ports.RouteService
	kbs       ports.KnowledgeBaseManager
	mcpServer *server.MCPServer
	logger    *slog.Logger

	defaultTopK int
}

func NewServer(
	search ports.SearchService,
	routes ports.RouteService,
	kbs ports.KnowledgeBaseManager,
	defaultTopK int,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if defaultTopK <= 0 {
		defaultTopK = 5
	}

	s := &Server{
		search:      search,
		routes:      routes,
		kbs:         kbs,
		logger:      logger,
		defaultTopK: defaultTopK,
	}

	mcpServer := server.NewMCPServer(
		"rag-mcp",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	mcpServer.AddTool(
		mcp.NewTool("search",
			mcp.WithDescription("Hybrid search over one knowledge base. Returns ranked chunks with source attribution and a formatted context block."),
			mcp.WithString("knowledge_base", mcp.Required(), mcp.Description("Name of the knowledge base to search.")),
			mcp.WithString("query", mcp.Required(), mcp.Description("Natural language search query.")),
			mcp.WithNumber("top_k", mcp.Description("Maximum number of chunks to return.")),
			mcp.WithBoolean("rerank", mcp.Description("Apply cross-encoder reranking on top of RRF fusion.")),
		),
		s.handleSearch,
	)
	mcpServer.AddTool(
		mcp.NewTool("route",
			mcp.WithDescription("Pick the knowledge base most relevant to a query, or report that none matches."),
			mcp.WithString("query", mcp.Required(), mcp.Description("Query to route.")),
		),
		s.handleRoute,
	)
	mcpServer.AddTool(
		mcp.NewTool("list_knowledge_bases",
			mcp.WithDescription("List all registered knowledge bases with their descriptions."),
		),
		s.handleListKnowledgeBases,
	)

	s.mcpServer = mcpServer
	return s
}

// ServeStdio blocks serving the MCP protocol over stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) handleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kb, err := req.RequireString("knowledge_base")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	opts := ports.SearchOptions{
		TopK:        req.GetInt("top_k", s.defaultTopK),
		UseRerank:   req.GetBool("rerank", false),
		Deduplicate: true,
	}

	results, err := s.search.Search(ctx, kb, query, opts)
	if err != nil {
		s.logger.Warn("mcp search failed", "kb", kb, "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("search %q: %v", kb, err)), nil
	}
	return jsonResult(results)
}

func (s *Server) handleRoute(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	decision, err := s.routes.Route(ctx, query)
	if err != nil {
		s.logger.Warn("mcp route failed", "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("route query: %v", err)), nil
	}
	return jsonResult(decision)
}

func (s *Server) handleListKnowledgeBases(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	descriptors, err := s.kbs.List(ctx)
	if err != nil {
		s.logger.Warn("mcp list knowledge bases failed", "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("list knowledge bases: %v", err)), nil
	}
	return jsonResult(map[string]any{"knowledge_bases": descriptors})
}

func jsonResult(payload any) (*mcp.CallToolResult, error) {
	raw, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal tool result: %w", err)
	}
	return mcp.NewToolResultText(string(raw)), nil
}
