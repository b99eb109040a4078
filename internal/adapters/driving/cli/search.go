package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/yexubai/BookBrain/internal/core/domain"
)

var (
	searchLimit int
	searchJSON  bool
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true)
	scoreStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	categoryStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	metaStyle     = lipgloss.NewStyle().Faint(true)
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the library by meaning",
	Long: `Embeds the query and ranks books by vector similarity. Requires a
reachable embedding service and an ingested library.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum number of results")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	results, err := a.search.Search(context.Background(), args[0], searchLimit)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputSearchJSON(cmd, results)
	}
	return outputSearchPretty(cmd, results)
}

func outputSearchJSON(cmd *cobra.Command, results []domain.SearchResult) error {
	type hit struct {
		ID       string  `json:"id"`
		Title    string  `json:"title"`
		Author   string  `json:"author,omitempty"`
		Category string  `json:"category"`
		Path     string  `json:"path"`
		Score    float64 `json:"score"`
	}

	hits := make([]hit, 0, len(results))
	for i := range results {
		book := &results[i].Book
		hits = append(hits, hit{
			ID:       book.ID,
			Title:    book.Title,
			Author:   book.Author,
			Category: book.Category,
			Path:     book.Path,
			Score:    results[i].Score,
		})
	}

	data, err := json.MarshalIndent(hits, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchPretty(cmd *cobra.Command, results []domain.SearchResult) error {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	for i := range results {
		book := &results[i].Book

		category := book.Category
		if book.Subcategory != "" {
			category += " / " + book.Subcategory
		}

		cmd.Printf("  [%d] %s %s\n", i+1,
			titleStyle.Render(book.Title),
			scoreStyle.Render(fmt.Sprintf("(%.2f)", results[i].Score)))
		cmd.Printf("      %s", categoryStyle.Render(category))
		if book.Author != "" {
			cmd.Printf("  %s", metaStyle.Render(book.Author))
		}
		cmd.Println()
		cmd.Printf("      %s\n", metaStyle.Render(book.Path))
		cmd.Println()
	}
	return nil
}
