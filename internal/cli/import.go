package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/lexisearch/internal/city"
	"github.com/Adithya-Monish-Kumar-K/lexisearch/pkg/postgres"
)

var importTable string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Load a TSV city file into the Postgres city table",
	Long: `Read cities from --records and replace the contents of the configured
Postgres table with them in one transaction. The table is created when it
does not exist. Search services using the postgres source pick the data up
on their next rebuild.

Example:
  citysearch import --config configs/development.yaml --records data/cities.tsv`,
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().StringVar(&importTable, "table", "", "target table (default from config)")
}

func runImport(cmd *cobra.Command, args []string) error {
	if recordsPath == "" {
		return fmt.Errorf("--records is required")
	}
	set, err := city.FileSource{Path: recordsPath}.Load(cmd.Context())
	if err != nil {
		return err
	}
	table := cfg.Index.RecordsTable
	if importTable != "" {
		table = importTable
	}
	pg, err := postgres.New(cfg.Postgres)
	if err != nil {
		return err
	}
	defer pg.Close()
	if err := city.Replace(cmd.Context(), pg.DB, table, set); err != nil {
		return fmt.Errorf("importing into %s: %w", table, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d cities into %s\n", set.Len(), table)
	return nil
}
