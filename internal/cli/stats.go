package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/lexisearch/internal/indexer/index"
)

var statsTopKeys int

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print corpus and ranking statistics",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().IntVar(&statsTopKeys, "keys", 0, "also list the first N keys in sorted order")
}

func runStats(cmd *cobra.Command, args []string) error {
	engine, err := buildEngine(cmd.Context())
	if err != nil {
		return fmt.Errorf("building index: %w", err)
	}
	stats, err := engine.Stats()
	if err != nil {
		return err
	}
	out := map[string]any{"index": stats}
	if statsTopKeys > 0 {
		snap, err := engine.Current()
		if err != nil {
			return err
		}
		keys := index.SortedKeys(snap.Index)
		if len(keys) > statsTopKeys {
			keys = keys[:statsTopKeys]
		}
		out["keys"] = keys
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
