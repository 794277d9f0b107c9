package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/lexisearch/internal/indexer/rebuild"
	"github.com/Adithya-Monish-Kumar-K/lexisearch/pkg/kafka"
)

var (
	rebuildBrokers string
	rebuildReason  string
)

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Ask running search services to rebuild their index",
	Long: `Publish a rebuild request on the index rebuild topic. Every search service
listening on the topic reloads its source, republishes its snapshot and
clears its query cache.`,
	RunE: runRebuild,
}

func init() {
	rootCmd.AddCommand(rebuildCmd)
	rebuildCmd.Flags().StringVar(&rebuildBrokers, "brokers", "", "comma separated Kafka brokers (default from config)")
	rebuildCmd.Flags().StringVar(&rebuildReason, "reason", "cli", "reason recorded with the rebuild")
}

func runRebuild(cmd *cobra.Command, args []string) error {
	kcfg := cfg.Kafka
	if rebuildBrokers != "" {
		kcfg.Brokers = strings.Split(rebuildBrokers, ",")
	}
	if len(kcfg.Brokers) == 0 {
		return fmt.Errorf("no Kafka brokers configured")
	}
	producer := kafka.NewProducer(kcfg, kcfg.Topics.IndexRebuild)
	defer producer.Close()

	req := rebuild.Request{Reason: rebuildReason, RequestedAt: time.Now().UTC()}
	if err := producer.Publish(cmd.Context(), kafka.Event{Key: rebuildReason, Value: req}); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "rebuild requested on %s\n", kcfg.Topics.IndexRebuild)
	return nil
}
