package mcp

import "github.com/mark3labs/mcp-go/mcp"

// searchDocumentsTool defines the search_documents MCP tool.
var searchDocumentsTool = mcp.NewTool("search_documents",
	mcp.WithDescription("Full-text search over the indexed PDF archive. Supports FTS5 syntax: phrases in double quotes, AND/OR/NOT, and prefix terms like netw*. Returns ranked documents with highlighted snippets."),
	mcp.WithString("query",
		mcp.Required(),
		mcp.Description("FTS5 search query"),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of results to return (default 10)"),
	),
	mcp.WithNumber("offset",
		mcp.Description("Number of results to skip, for paging"),
	),
)

// getDocumentTool defines the get_document MCP tool.
var getDocumentTool = mcp.NewTool("get_document",
	mcp.WithDescription("Get the stored record for one document: archive, file name, size, page count and ingest metadata."),
	mcp.WithNumber("id",
		mcp.Required(),
		mcp.Description("Document id as returned by search_documents"),
	),
)

// indexStatsTool defines the index_stats MCP tool.
var indexStatsTool = mcp.NewTool("index_stats",
	mcp.WithDescription("Get document, archive and index counts for the archive store."),
)
