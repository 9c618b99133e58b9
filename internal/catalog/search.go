package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Defaults applied by Search when options are left zero.
const (
	DefaultLimit         = 20
	DefaultSnippetTokens = 32
	MaxSnippetTokens     = 64
	DefaultEllipsis      = "..."
)

// SearchOptions control ranking output and paging.
type SearchOptions struct {
	Limit          int
	Offset         int
	SnippetTokens  int
	HighlightStart string
	HighlightEnd   string
}

func (o SearchOptions) withDefaults() SearchOptions {
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	switch {
	case o.SnippetTokens <= 0:
		o.SnippetTokens = DefaultSnippetTokens
	case o.SnippetTokens > MaxSnippetTokens:
		o.SnippetTokens = MaxSnippetTokens
	}
	if o.HighlightStart == "" && o.HighlightEnd == "" {
		o.HighlightStart, o.HighlightEnd = "<b>", "</b>"
	}
	return o
}

// SearchResult is one ranked match. Lower Score is more relevant.
type SearchResult struct {
	Document
	Score     float64   `json:"score"`
	Relevance Relevance `json:"relevance"`
	Snippet   string    `json:"snippet"`
}

// Relevance is a coarse band derived from a bm25 score.
type Relevance string

const (
	RelevanceVeryHigh Relevance = "very high"
	RelevanceHigh     Relevance = "high"
	RelevanceMedium   Relevance = "medium"
	RelevanceLow      Relevance = "low"
)

// RelevanceFor maps a bm25 score (more negative is better) to a band.
func RelevanceFor(score float64) Relevance {
	switch {
	case score < -10:
		return RelevanceVeryHigh
	case score < -8:
		return RelevanceHigh
	case score < -5:
		return RelevanceMedium
	default:
		return RelevanceLow
	}
}

const searchQuery = `
	SELECT d.id, d.container_path, d.document_name, d.metadata, d.created_at,
	       bm25(search_index) AS score,
	       snippet(search_index, 0, ?, ?, ?, ?) AS snip
	FROM search_index
	JOIN documents d ON d.id = search_index.rowid
	WHERE search_index MATCH ?
	ORDER BY score
	LIMIT ? OFFSET ?`

// Search runs an FTS5 query and returns matches ordered by bm25, most
// relevant first, each joined to its metadata row.
func (s *Store) Search(ctx context.Context, query string, opts SearchOptions) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", ErrInvalidQuery)
	}
	opts = opts.withDefaults()

	rows, err := s.db.QueryContext(ctx, searchQuery,
		opts.HighlightStart, opts.HighlightEnd, DefaultEllipsis, opts.SnippetTokens,
		query, opts.Limit, opts.Offset,
	)
	if err != nil {
		return nil, wrapQueryError(query, err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var (
			r        SearchResult
			metadata sql.NullString
			created  string
			snippet  sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Container, &r.Name, &metadata, &created, &r.Score, &snippet); err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}
		r.Metadata = decodeMetadata(metadata)
		r.CreatedAt = parseTime(created)
		r.Snippet = snippet.String
		r.Relevance = RelevanceFor(r.Score)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapQueryError(query, err)
	}
	return results, nil
}

// CountMatches returns the total number of documents matching query.
func (s *Store) CountMatches(ctx context.Context, query string) (int, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return 0, fmt.Errorf("%w: empty query", ErrInvalidQuery)
	}
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM search_index WHERE search_index MATCH ?`, query,
	).Scan(&n)
	if err != nil {
		return 0, wrapQueryError(query, err)
	}
	return n, nil
}

// wrapQueryError tags FTS5 syntax errors with ErrInvalidQuery so callers can
// tell a bad query from a broken store.
func wrapQueryError(query string, err error) error {
	msg := err.Error()
	for _, marker := range []string{"fts5", "syntax error", "unterminated string", "no such column"} {
		if strings.Contains(msg, marker) {
			return fmt.Errorf("%w %q: %v", ErrInvalidQuery, query, err)
		}
	}
	return fmt.Errorf("searching %q: %w", query, err)
}
