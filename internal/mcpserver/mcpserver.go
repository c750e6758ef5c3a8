// Package mcpserver exposes the helpdesk to MCP clients over stdio, so an
// assistant can ask questions, run raw knowledge-base searches, and add
// new entries without the HTTP layer.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/endpointd/internal/cascade"
	"github.com/kalambet/endpointd/internal/kb"
	"github.com/kalambet/endpointd/internal/search"
)

// Asker answers questions through the decision cascade.
type Asker interface {
	Answer(ctx context.Context, question string) *cascade.Answer
}

// Searcher runs one lookup against the configured retrieval backend.
type Searcher interface {
	SearchKB(ctx context.Context, query string, where map[string]string, topK int) (*search.Result, error)
}

// KBWriter appends knowledge-base entries.
type KBWriter interface {
	Insert(category, question, answer string, keywords []string) (int64, error)
}

// Deps holds the tool implementations.
type Deps struct {
	Asker    Asker
	Searcher Searcher
	KB       KBWriter
}

// New creates an MCP server with the endpointd tools registered.
func New(deps Deps) *server.MCPServer {
	s := server.NewMCPServer(
		"endpointd",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions("endpointd — endpoint-support helpdesk: WiFi, VPN, Outlook, performance, smart card, automation."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("ask",
			mcp.WithDescription("Answer an endpoint-support question through the full decision cascade (files, rules, knowledge base)."),
			mcp.WithString("question", mcp.Description("The user's question"), mcp.Required()),
		),
		toolAsk(deps),
	)

	s.AddTool(
		mcp.NewTool("kb_search",
			mcp.WithDescription("Search the knowledge base directly with the configured retrieval backend, bypassing the cascade."),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
			mcp.WithNumber("top_k", mcp.Description("Maximum number of vector matches (default 5)")),
		),
		toolKBSearch(deps),
	)

	s.AddTool(
		mcp.NewTool("kb_add",
			mcp.WithDescription("Add a question/answer entry to the knowledge base."),
			mcp.WithString("question", mcp.Description("Canonical question"), mcp.Required()),
			mcp.WithString("answer", mcp.Description("Answer returned verbatim to users"), mcp.Required()),
			mcp.WithString("category", mcp.Description("Category label (default: general)")),
			mcp.WithString("keywords", mcp.Description("Comma-separated keywords used as extra match surface")),
		),
		toolKBAdd(deps),
	)

	return s
}

func toolAsk(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil {
			return mcpError("question is required"), nil
		}

		b, err := json.Marshal(deps.Asker.Answer(ctx, question))
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal answer: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func toolKBSearch(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		topK := req.GetInt("top_k", 5)
		if topK <= 0 {
			topK = 5
		}
		if topK > 50 {
			topK = 50
		}

		res, err := deps.Searcher.SearchKB(ctx, query, nil, topK)
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}
		b, err := json.Marshal(res)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func toolKBAdd(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil {
			return mcpError("question is required"), nil
		}
		answer, err := req.RequireString("answer")
		if err != nil {
			return mcpError("answer is required"), nil
		}

		category := req.GetString("category", "general")
		keywords := kb.SplitKeywords(req.GetString("keywords", ""))

		id, err := deps.KB.Insert(category, question, answer, keywords)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to insert entry: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Stored KB entry %d", id)), nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
