package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/pdfvault/internal/catalog"
	"github.com/ziadkadry99/pdfvault/internal/db"
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Full-text search over the indexed documents",
	Long: `Runs an FTS5 query against the store and prints ranked matches with
highlighted snippets. Phrases go in double quotes; AND, OR, NOT and prefix
terms (netw*) are supported. With -i, opens a paged interactive console.`,
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().Int("limit", 0, "results per page (default search.limit)")
	searchCmd.Flags().Int("offset", 0, "results to skip")
	searchCmd.Flags().Int("tokens", 0, "snippet length in tokens, 1-64 (default search.snippet_tokens)")
	searchCmd.Flags().Bool("json", false, "output results as JSON")
	searchCmd.Flags().BoolP("interactive", "i", false, "open the interactive search console")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	query := strings.TrimSpace(strings.Join(args, " "))

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	interactive, _ := cmd.Flags().GetBool("interactive")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	if query == "" && !interactive {
		return errors.New("a query is required; use -i for the interactive console")
	}

	opts := catalog.SearchOptions{
		Limit:         cfg.Search.Limit,
		SnippetTokens: cfg.Search.SnippetTokens,
	}
	if n, _ := cmd.Flags().GetInt("limit"); n > 0 {
		opts.Limit = n
	}
	if n, _ := cmd.Flags().GetInt("offset"); n > 0 {
		opts.Offset = n
	}
	if n, _ := cmd.Flags().GetInt("tokens"); n > 0 {
		opts.SnippetTokens = n
	}

	database, err := db.OpenReadOnly(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("%w\nRun `pdfvault ingest` first to build the index", err)
	}
	defer database.Close()
	store := catalog.NewStore(database)

	if interactive {
		opts.HighlightStart, opts.HighlightEnd = highlightMarkers()
		return runConsole(ctx, store, opts, query)
	}

	if !jsonOutput {
		opts.HighlightStart, opts.HighlightEnd = highlightMarkers()
	}
	results, err := store.Search(ctx, query, opts)
	if err != nil {
		return err
	}
	total, err := store.CountMatches(ctx, query)
	if err != nil {
		return err
	}

	if jsonOutput {
		return printSearchJSON(query, total, results)
	}
	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}
	printSearchTable(results, opts.Offset, total)
	return nil
}

type searchOutputJSON struct {
	Query   string                 `json:"query"`
	Total   int                    `json:"total"`
	Results []catalog.SearchResult `json:"results"`
}

func printSearchJSON(query string, total int, results []catalog.SearchResult) error {
	if results == nil {
		results = []catalog.SearchResult{}
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(searchOutputJSON{Query: query, Total: total, Results: results})
}

func printSearchTable(results []catalog.SearchResult, offset, total int) {
	fmt.Printf("Showing %d-%d of %d matches:\n\n", offset+1, offset+len(results), total)

	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = true
	tbl.AppendHeader(table.Row{"#", "Relevance", "Archive", "Document", "Pages", "Size", "Snippet"})
	tbl.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, WidthMax: 30},
		{Number: 4, WidthMax: 40},
		{Number: 7, WidthMax: 60},
	})

	for i, r := range results {
		tbl.AppendRow(table.Row{
			offset + i + 1,
			relevanceColor(r.Relevance).Sprint(r.Relevance),
			filepath.Base(r.Container),
			r.Name,
			pagesLabel(r.Document),
			sizeLabel(r.Document),
			r.Snippet,
		})
	}
	fmt.Println(tbl.Render())
}

// highlightMarkers returns the snippet markers for terminal output.
func highlightMarkers() (string, string) {
	if color.NoColor {
		return "[", "]"
	}
	return "\x1b[1;33m", "\x1b[0m"
}

func relevanceColor(r catalog.Relevance) *color.Color {
	switch r {
	case catalog.RelevanceVeryHigh:
		return color.New(color.FgGreen, color.Bold)
	case catalog.RelevanceHigh:
		return color.New(color.FgGreen)
	case catalog.RelevanceMedium:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgWhite)
	}
}

func pagesLabel(d catalog.Document) string {
	if n, ok := d.PagesCount(); ok {
		return fmt.Sprintf("%d", n)
	}
	return "-"
}

func sizeLabel(d catalog.Document) string {
	if n, ok := d.FileSize(); ok && n >= 0 {
		return humanize.Bytes(uint64(n))
	}
	return "-"
}

const (
	navNext   = "Next page →"
	navPrev   = "← Previous page"
	navSearch = "New search"
)

// runConsole loops over queries until the user enters an empty one or
// interrupts. query, when set, is run first.
func runConsole(ctx context.Context, store *catalog.Store, opts catalog.SearchOptions, query string) error {
	for {
		if query == "" {
			prompt := promptui.Prompt{Label: "Search (empty to quit)"}
			q, err := prompt.Run()
			if err != nil {
				if isPromptExit(err) {
					return nil
				}
				return err
			}
			query = strings.TrimSpace(q)
			if query == "" {
				return nil
			}
		}

		if err := browse(ctx, store, opts, query); err != nil {
			return err
		}
		query = ""
	}
}

// browse pages through the matches for one query.
func browse(ctx context.Context, store *catalog.Store, opts catalog.SearchOptions, query string) error {
	total, err := store.CountMatches(ctx, query)
	if err != nil {
		if errors.Is(err, catalog.ErrInvalidQuery) {
			color.New(color.FgRed).Fprintf(os.Stdout, "Invalid query: %v\n", err)
			return nil
		}
		return err
	}
	if total == 0 {
		fmt.Println("No results found.")
		return nil
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = catalog.DefaultLimit
	}
	offset := 0

	for {
		page := opts
		page.Offset = offset
		results, err := store.Search(ctx, query, page)
		if err != nil {
			return err
		}

		items := make([]string, 0, len(results)+3)
		for i, r := range results {
			items = append(items, fmt.Sprintf("%3d. %-10s %s | %s",
				offset+i+1, r.Relevance, r.Name, filepath.Base(r.Container)))
		}
		if offset+limit < total {
			items = append(items, navNext)
		}
		if offset > 0 {
			items = append(items, navPrev)
		}
		items = append(items, navSearch)

		sel := promptui.Select{
			Label: fmt.Sprintf("%q: %d-%d of %d", query, offset+1, offset+len(results), total),
			Items: items,
			Size:  15,
		}
		idx, choice, err := sel.Run()
		if err != nil {
			if isPromptExit(err) {
				return nil
			}
			return err
		}

		switch {
		case idx < len(results):
			if err := showDetail(ctx, store, results[idx]); err != nil {
				return err
			}
		case choice == navNext:
			offset += limit
		case choice == navPrev:
			offset -= limit
			if offset < 0 {
				offset = 0
			}
		default:
			return nil
		}
	}
}

// showDetail prints the stored record behind one result.
func showDetail(ctx context.Context, store *catalog.Store, r catalog.SearchResult) error {
	doc, err := store.Get(ctx, r.ID)
	if err != nil {
		return err
	}

	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.AppendRows([]table.Row{
		{"ID", doc.ID},
		{"Archive", doc.Container},
		{"Document", doc.Name},
		{"Size", sizeLabel(*doc)},
		{"Pages", pagesLabel(*doc)},
		{"Relevance", fmt.Sprintf("%s (%.2f)", relevanceColor(r.Relevance).Sprint(r.Relevance), r.Score)},
		{"Inserted", humanize.Time(doc.CreatedAt)},
	})
	if root, ok := doc.Metadata[catalog.MetaRootDirectory].(string); ok {
		tbl.AppendRow(table.Row{"Root", root})
	}
	if retried, ok := doc.Metadata[catalog.MetaRetry].(bool); ok && retried {
		tbl.AppendRow(table.Row{"Recovered", "by retry"})
	}
	tbl.SetColumnConfigs([]table.ColumnConfig{{Number: 2, WidthMax: 80}})

	fmt.Println()
	fmt.Println(tbl.Render())
	fmt.Printf("\n%s\n\n", r.Snippet)
	return nil
}

func isPromptExit(err error) bool {
	return errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF)
}
