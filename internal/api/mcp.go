package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/nkov/supportbot/internal/bot"
	"github.com/nkov/supportbot/internal/session"
)

// NewMCPServer exposes the four bot operations as MCP tools so agent
// frontends can drive the support pipeline directly.
func NewMCPServer(b *bot.Bot) *server.MCPServer {
	s := server.NewMCPServer(
		"supportbot",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions("supportbot — customer support backend with FAQ lookup, model answers, and human escalation."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("submit_query",
			mcp.WithDescription("Submit a customer query. Answers from the FAQ table or the model, escalating to a human agent when the answer is unsatisfactory."),
			mcp.WithString("query", mcp.Description("The customer's question"), mcp.Required()),
			mcp.WithString("session_id", mcp.Description("Session to continue; omit to start a new conversation")),
		),
		mcpSubmitQuery(b),
	)

	s.AddTool(
		mcp.NewTool("get_session",
			mcp.WithDescription("Fetch a session's metadata and full turn history."),
			mcp.WithString("session_id", mcp.Description("Session identifier"), mcp.Required()),
		),
		mcpGetSession(b),
	)

	s.AddTool(
		mcp.NewTool("list_sessions",
			mcp.WithDescription("List all live support sessions."),
		),
		mcpListSessions(b),
	)

	s.AddTool(
		mcp.NewTool("summarize_session",
			mcp.WithDescription("Summarize a session's conversation and store the summary as contextual memory."),
			mcp.WithString("session_id", mcp.Description("Session identifier"), mcp.Required()),
		),
		mcpSummarizeSession(b),
	)

	return s
}

func mcpSubmitQuery(b *bot.Bot) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}
		sessionID := req.GetString("session_id", "")

		res, err := b.SubmitQuery(ctx, query, sessionID)
		if errors.Is(err, session.ErrSessionNotFound) {
			return mcpError("session not found"), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("query failed: %v", err)), nil
		}

		out, err := json.Marshal(map[string]any{
			"response":   res.Response,
			"session_id": res.SessionID,
			"escalated":  res.Escalated,
		})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		return mcpText(string(out)), nil
	}
}

func mcpGetSession(b *bot.Bot) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("session_id")
		if err != nil {
			return mcpError("session_id is required"), nil
		}

		sess, err := b.GetSession(ctx, id)
		if errors.Is(err, session.ErrSessionNotFound) {
			return mcpError("session not found"), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("loading session failed: %v", err)), nil
		}

		out, err := json.Marshal(map[string]any{
			"session_id":    sess.ID,
			"created_at":    sess.CreatedAt.Format(time.RFC3339),
			"query_history": sess.History,
		})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal session: %v", err)), nil
		}
		return mcpText(string(out)), nil
	}
}

func mcpListSessions(b *bot.Bot) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessions, err := b.ListSessions(ctx)
		if err != nil {
			return mcpError(fmt.Sprintf("listing sessions failed: %v", err)), nil
		}

		type sessionSummary struct {
			SessionID string `json:"session_id"`
			CreatedAt string `json:"created_at"`
			Turns     int    `json:"turns"`
		}
		summaries := make([]sessionSummary, len(sessions))
		for i, s := range sessions {
			summaries[i] = sessionSummary{
				SessionID: s.ID,
				CreatedAt: s.CreatedAt.Format(time.RFC3339),
				Turns:     len(s.History) / 2,
			}
		}

		out, err := json.Marshal(summaries)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal sessions: %v", err)), nil
		}
		return mcpText(string(out)), nil
	}
}

func mcpSummarizeSession(b *bot.Bot) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("session_id")
		if err != nil {
			return mcpError("session_id is required"), nil
		}

		summary, err := b.SummarizeSession(ctx, id)
		if errors.Is(err, session.ErrSessionNotFound) {
			return mcpError("session not found"), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("summarization failed: %v", err)), nil
		}
		return mcpText(summary), nil
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
