package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ziadkadry99/pdfvault/internal/catalog"
	"github.com/ziadkadry99/pdfvault/internal/metrics"
)

const defaultSearchLimit = 10

// handleSearchDocuments runs a ranked full-text query.
func (s *Server) handleSearchDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil || strings.TrimSpace(query) == "" {
		s.metrics.Search("mcp", metrics.OutcomeInvalid)
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}

	limit := request.GetInt("limit", defaultSearchLimit)
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	offset := request.GetInt("offset", 0)

	results, err := s.store.Search(ctx, query, catalog.SearchOptions{
		Limit:          limit,
		Offset:         offset,
		HighlightStart: "**",
		HighlightEnd:   "**",
	})
	if err != nil {
		if errors.Is(err, catalog.ErrInvalidQuery) {
			s.metrics.Search("mcp", metrics.OutcomeInvalid)
			return mcp.NewToolResultError(fmt.Sprintf("invalid query %q: %v", query, err)), nil
		}
		s.metrics.Search("mcp", metrics.OutcomeError)
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	s.metrics.Search("mcp", metrics.OutcomeOK)

	if len(results) == 0 {
		return mcp.NewToolResultText("No results found. The archive may not be indexed yet. Run `pdfvault ingest` to index it."), nil
	}

	return mcp.NewToolResultText(formatSearchResults(results, offset)), nil
}

// handleGetDocument returns one stored document as JSON.
func (s *Server) handleGetDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireInt("id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: id"), nil
	}

	doc, err := s.store.Get(ctx, int64(id))
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("No document with id %d.", id)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("failed to read document: %v", err)), nil
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode document: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// handleIndexStats reports store counts.
func (s *Server) handleIndexStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read stats: %v", err)), nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Documents: %d\n", stats.Documents))
	sb.WriteString(fmt.Sprintf("Indexed: %d\n", stats.Indexed))
	sb.WriteString(fmt.Sprintf("Archives: %d\n", stats.Containers))
	if !stats.LastInsertedAt.IsZero() {
		sb.WriteString(fmt.Sprintf("Last inserted: %s\n", stats.LastInsertedAt.Format("2006-01-02 15:04:05")))
	}
	if !stats.Consistent() {
		sb.WriteString("Warning: document and index counts differ; run `pdfvault check`.\n")
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// formatSearchResults converts search results into a rich text format optimized
// for AI agent consumption.
func formatSearchResults(results []catalog.SearchResult, offset int) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d result(s):\n", len(results)))

	for i, r := range results {
		sb.WriteString(fmt.Sprintf("\n--- Result %d ---\n", offset+i+1))
		sb.WriteString(fmt.Sprintf("ID: %d\n", r.ID))
		sb.WriteString(fmt.Sprintf("Archive: %s\n", r.Container))
		sb.WriteString(fmt.Sprintf("Document: %s\n", r.Name))
		if pages, ok := r.PagesCount(); ok {
			sb.WriteString(fmt.Sprintf("Pages: %d\n", pages))
		}
		sb.WriteString(fmt.Sprintf("Relevance: %s (%.2f)\n", r.Relevance, r.Score))

		sb.WriteString("\n")
		sb.WriteString(r.Snippet)
		sb.WriteString("\n")
	}

	return sb.String()
}
