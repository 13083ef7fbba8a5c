package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/notekit/notekit/internal/logger"
	"github.com/notekit/notekit/internal/models"
	"github.com/notekit/notekit/internal/ratelimit"
	"github.com/notekit/notekit/internal/search"
	"github.com/notekit/notekit/internal/stats"
)

// NotesServer exposes the note store over the Model Context Protocol so
// LLM clients can create, search and manage notes with the same semantics
// as the HTTP API, including the creation rate limit.
type NotesServer struct {
	repo      *models.NoteRepository
	engine    *search.Engine
	stats     *stats.Aggregator
	limiter   *ratelimit.Limiter
	mcpServer *server.MCPServer
}

func NewNotesServer(repo *models.NoteRepository, engine *search.Engine, aggregator *stats.Aggregator, limiter *ratelimit.Limiter) *NotesServer {
	ns := &NotesServer{
		repo:    repo,
		engine:  engine,
		stats:   aggregator,
		limiter: limiter,
	}

	ns.mcpServer = server.NewMCPServer(
		"notekit",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	ns.registerTools()
	ns.registerResources()

	return ns
}

func (s *NotesServer) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *NotesServer) registerTools() {
	addNoteTool := mcp.NewTool("add_note",
		mcp.WithDescription("Add a new note. Creation is idempotent: repeating an identical title and content returns the existing note instead of duplicating it."),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("The title of the note"),
		),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("The content of the note"),
		),
	)
	s.mcpServer.AddTool(addNoteTool, s.handleAddNote)

	searchTool := mcp.NewTool("search_notes",
		mcp.WithDescription("Ranked full-text search over active notes. Title matches rank above content matches."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query string"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results (default: 10)"),
		),
	)
	s.mcpServer.AddTool(searchTool, s.handleSearchNotes)

	getNoteTool := mcp.NewTool("get_note",
		mcp.WithDescription("Get a specific note by ID"),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("The ID of the note to retrieve"),
		),
	)
	s.mcpServer.AddTool(getNoteTool, s.handleGetNote)

	listNotesTool := mcp.NewTool("list_notes",
		mcp.WithDescription("List active notes with pagination and sorting"),
		mcp.WithNumber("page",
			mcp.Description("1-indexed page number (default: 1)"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Page size (default: 10)"),
		),
		mcp.WithString("sort_by",
			mcp.Description("Sort field: created_at, updated_at or title (default: updated_at)"),
		),
		mcp.WithString("order",
			mcp.Description("Sort order: asc or desc (default: desc)"),
		),
	)
	s.mcpServer.AddTool(listNotesTool, s.handleListNotes)

	updateNoteTool := mcp.NewTool("update_note",
		mcp.WithDescription("Update an existing note. Only fields that actually change are written."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("The ID of the note to update"),
		),
		mcp.WithString("title",
			mcp.Description("New title for the note (optional)"),
		),
		mcp.WithString("content",
			mcp.Description("New content for the note (optional)"),
		),
	)
	s.mcpServer.AddTool(updateNoteTool, s.handleUpdateNote)

	deleteNoteTool := mcp.NewTool("delete_note",
		mcp.WithDescription("Soft-delete a note by ID. The note is hidden from all reads but retained."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("The ID of the note to delete"),
		),
	)
	s.mcpServer.AddTool(deleteNoteTool, s.handleDeleteNote)
}

func (s *NotesServer) registerResources() {
	recentResource := mcp.NewResource("notes://recent",
		"Recent Notes",
		mcp.WithResourceDescription("Get the most recently updated notes"),
		mcp.WithMIMEType("application/json"),
	)
	s.mcpServer.AddResource(recentResource, s.handleRecentNotes)

	statsResource := mcp.NewResource("notes://stats",
		"Notes Statistics",
		mcp.WithResourceDescription("Get statistics about the notes database"),
		mcp.WithMIMEType("application/json"),
	)
	s.mcpServer.AddResource(statsResource, s.handleStats)
}

// Tool handlers

func (s *NotesServer) handleAddNote(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger.Debug("MCP tool call: add_note")

	title, err := request.RequireString("title")
	if err != nil {
		return nil, fmt.Errorf("missing required parameter 'title': %w", err)
	}

	content, err := request.RequireString("content")
	if err != nil {
		return nil, fmt.Errorf("missing required parameter 'content': %w", err)
	}

	if err := s.limiter.Allow(); err != nil {
		return nil, err
	}

	note, created, err := s.repo.Create(title, content)
	if err != nil {
		return nil, fmt.Errorf("failed to create note: %w", err)
	}

	if !created {
		return mcp.NewToolResultText(fmt.Sprintf(
			"An identical active note already exists; returning it.\nID: %s\nTitle: %s",
			note.ID, note.Title)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf(
		"Note created successfully with ID: %s\nTitle: %s", note.ID, note.Title)), nil
}

func (s *NotesServer) handleSearchNotes(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger.Debug("MCP tool call: search_notes")

	query, err := request.RequireString("query")
	if err != nil {
		return nil, fmt.Errorf("missing required parameter 'query': %w", err)
	}
	limit := request.GetInt("limit", 10)

	results, err := s.engine.Search(query)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	if len(results) > limit {
		results = results[:limit]
	}

	if len(results) == 0 {
		return mcp.NewToolResultText("No notes found matching your query."), nil
	}

	result := fmt.Sprintf("Found %d notes:\n\n", len(results))
	for i, r := range results {
		result += fmt.Sprintf("%d. [score %d] [ID: %s] %s\n   %s\n\n",
			i+1, r.Score, r.Note.ID, r.Note.Title,
			truncateString(r.Note.Content, 100))
	}

	return mcp.NewToolResultText(result), nil
}

func (s *NotesServer) handleGetNote(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger.Debug("MCP tool call: get_note")

	id, err := request.RequireString("id")
	if err != nil {
		return nil, fmt.Errorf("missing required parameter 'id': %w", err)
	}

	note, err := s.repo.GetByID(id)
	if err != nil {
		return nil, fmt.Errorf("failed to get note: %w", err)
	}

	return mcp.NewToolResultText(fmt.Sprintf(
		"Note ID: %s\nTitle: %s\nCreated: %s\nUpdated: %s\n\nContent:\n%s",
		note.ID, note.Title,
		note.CreatedAt.Format("2006-01-02 15:04:05"),
		note.UpdatedAt.Format("2006-01-02 15:04:05"),
		note.Content)), nil
}

func (s *NotesServer) handleListNotes(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger.Debug("MCP tool call: list_notes")

	page := request.GetInt("page", 1)
	limit := request.GetInt("limit", 10)
	sortBy := request.GetString("sort_by", "updated_at")
	order := request.GetString("order", "desc")

	notes, total, err := s.repo.List(page, limit, sortBy, order)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}

	if len(notes) == 0 {
		return mcp.NewToolResultText("No notes found."), nil
	}

	result := fmt.Sprintf("Page %d (%d total active notes):\n\n", page, total)
	for i, note := range notes {
		result += fmt.Sprintf("%d. [ID: %s] %s (Updated: %s)\n   %s\n\n",
			(page-1)*limit+i+1, note.ID, note.Title,
			note.UpdatedAt.Format("2006-01-02"),
			truncateString(note.Content, 80))
	}

	return mcp.NewToolResultText(result), nil
}

func (s *NotesServer) handleUpdateNote(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger.Debug("MCP tool call: update_note")

	id, err := request.RequireString("id")
	if err != nil {
		return nil, fmt.Errorf("missing required parameter 'id': %w", err)
	}

	var title, content *string
	if t := request.GetString("title", ""); t != "" {
		title = &t
	}
	if c := request.GetString("content", ""); c != "" {
		content = &c
	}

	note, changed, err := s.repo.Update(id, title, content)
	if err != nil {
		return nil, fmt.Errorf("failed to update note: %w", err)
	}

	if !changed {
		return mcp.NewToolResultText(fmt.Sprintf(
			"No changes detected for note %s; nothing written.", note.ID)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf(
		"Note %s updated successfully.\nTitle: %s", note.ID, note.Title)), nil
}

func (s *NotesServer) handleDeleteNote(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger.Debug("MCP tool call: delete_note")

	id, err := request.RequireString("id")
	if err != nil {
		return nil, fmt.Errorf("missing required parameter 'id': %w", err)
	}

	deleted, err := s.repo.SoftDelete(id)
	if err != nil {
		return nil, fmt.Errorf("failed to delete note: %w", err)
	}

	if !deleted {
		return mcp.NewToolResultText(fmt.Sprintf("Note %s was already deleted.", id)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Successfully deleted note %s", id)), nil
}

// Resource handlers

func (s *NotesServer) handleRecentNotes(_ context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	logger.Debug("MCP resource read: notes://recent")

	notes, _, err := s.repo.List(1, 10, "updated_at", "desc")
	if err != nil {
		return nil, fmt.Errorf("failed to get recent notes: %w", err)
	}

	data, err := json.MarshalIndent(notes, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal notes: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *NotesServer) handleStats(_ context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	logger.Debug("MCP resource read: notes://stats")

	summary, err := s.stats.Collect()
	if err != nil {
		return nil, fmt.Errorf("failed to collect stats: %w", err)
	}

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal stats: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
