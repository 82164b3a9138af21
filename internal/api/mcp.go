package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"lectura/internal/pipeline"
	"lectura/internal/store"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Store    *store.Store
	Pipeline *pipeline.Pipeline
}

// NewMCPServer creates an MCP server exposing stored recordings and note
// regeneration to agent clients.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"lectura",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("lectura — transcribed lecture recordings with AI-generated markdown notes."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("list_recordings",
			mcp.WithDescription("List all stored recordings with their titles and processing dates."),
		),
		mcpListRecordings(deps),
	)

	s.AddTool(
		mcp.NewTool("get_transcript",
			mcp.WithDescription("Fetch the full transcript of a stored recording."),
			mcp.WithString("audio_id", mcp.Description("Recording identifier"), mcp.Required()),
		),
		mcpGetTranscript(deps),
	)

	s.AddTool(
		mcp.NewTool("get_notes",
			mcp.WithDescription("Fetch the generated markdown notes of a stored recording."),
			mcp.WithString("audio_id", mcp.Description("Recording identifier"), mcp.Required()),
		),
		mcpGetNotes(deps),
	)

	s.AddTool(
		mcp.NewTool("regenerate_notes",
			mcp.WithDescription("Re-run note generation for a stored recording using its cached transcript."),
			mcp.WithString("audio_id", mcp.Description("Recording identifier"), mcp.Required()),
			mcp.WithString("provider", mcp.Description("Optional provider override (default, openai, anthropic, custom, local, ollama)")),
			mcp.WithString("model", mcp.Description("Optional model override")),
		),
		mcpRegenerateNotes(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"recordings://recent",
			"Recent Recordings",
			mcp.WithResourceDescription("The 10 most recently processed recordings"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRecent(deps),
	)

	return s
}

func mcpListRecordings(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		records, err := deps.Store.ListAll()
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list recordings: %v", err)), nil
		}
		if len(records) == 0 {
			return mcpText("[]"), nil
		}

		b, err := json.Marshal(records)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal recordings: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpGetTranscript(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		audioID, err := req.RequireString("audio_id")
		if err != nil {
			return mcpError("audio_id is required"), nil
		}

		text, err := deps.Store.GetTranscript(audioID)
		if errors.Is(err, store.ErrNotFound) {
			return mcpError(fmt.Sprintf("recording %s not found", audioID)), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("failed to read transcript: %v", err)), nil
		}
		return mcpText(text), nil
	}
}

func mcpGetNotes(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		audioID, err := req.RequireString("audio_id")
		if err != nil {
			return mcpError("audio_id is required"), nil
		}

		text, err := deps.Store.GetNotes(audioID)
		if errors.Is(err, store.ErrNotFound) {
			return mcpError(fmt.Sprintf("recording %s not found", audioID)), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("failed to read notes: %v", err)), nil
		}
		return mcpText(text), nil
	}
}

func mcpRegenerateNotes(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		audioID, err := req.RequireString("audio_id")
		if err != nil {
			return mcpError("audio_id is required"), nil
		}

		res, err := deps.Pipeline.Regenerate(ctx, audioID, pipeline.Options{
			Provider: req.GetString("provider", ""),
			Model:    req.GetString("model", ""),
		})
		if errors.Is(err, store.ErrNotFound) {
			return mcpError(fmt.Sprintf("recording %s not found", audioID)), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("regeneration failed: %v", err)), nil
		}

		return mcpText(res.Notes), nil
	}
}

func mcpResourceRecent(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		records, err := deps.Store.ListAll()
		if err != nil {
			return nil, fmt.Errorf("failed to list recordings: %w", err)
		}
		if len(records) > 10 {
			records = records[:10]
		}

		type recordingSummary struct {
			AudioID       string `json:"audioId"`
			Title         string `json:"title"`
			DateProcessed string `json:"dateProcessed"`
		}

		summaries := make([]recordingSummary, len(records))
		for i, rec := range records {
			summaries[i] = recordingSummary{
				AudioID:       rec.AudioID,
				Title:         rec.Title,
				DateProcessed: rec.DateProcessed.Format(time.RFC3339),
			}
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal recordings: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
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
