package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/lexisearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/lexisearch/internal/searcher/parser"
)

var (
	queryLimit int
	queryJSON  bool
)

var queryCmd = &cobra.Command{
	Use:   "query [terms...]",
	Short: "Search the city index",
	Long: `Search cities by name. Words are ANDed unless OR appears; NOT excludes
the following word.

Examples:
  citysearch query --records data/cities.tsv berlin
  citysearch query --records data/cities.tsv "york OR hamburg" --limit 5 --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().IntVarP(&queryLimit, "limit", "n", 0, "number of results (default from config)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
}

func runQuery(cmd *cobra.Command, args []string) error {
	engine, err := buildEngine(cmd.Context())
	if err != nil {
		return fmt.Errorf("building index: %w", err)
	}
	limit := cfg.Search.DefaultLimit
	if queryLimit > 0 {
		limit = queryLimit
	}
	plan := parser.Parse(strings.Join(args, " "))
	result, err := executor.New(engine).Execute(cmd.Context(), plan, limit)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	if queryJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	return printResult(cmd.OutOrStdout(), result)
}

func printResult(w io.Writer, result *executor.SearchResult) error {
	if len(result.Results) == 0 {
		_, err := fmt.Fprintln(w, "No results found.")
		return err
	}
	fmt.Fprintf(w, "Found %d results for: %s\n\n", result.TotalHits, result.Query)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tID\tCITY\tSTATE\tSCORE\tRELEVANCE")
	for i, hit := range result.Results {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%.4f\t%.2f\n",
			i+1, hit.ID, hit.City.Name, hit.City.State, hit.Score, hit.City.Relevance)
	}
	return tw.Flush()
}
