// Package cli implements the citysearch command line tool.
package cli

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/lexisearch/internal/city"
	"github.com/Adithya-Monish-Kumar-K/lexisearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/lexisearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/lexisearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/lexisearch/pkg/postgres"
)

var (
	cfgFile     string
	recordsPath string
	logLevel    string
	cfg         *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "citysearch",
	Short: "Query a BM25-ranked city index from the command line",
	Long: `citysearch builds an in-memory index from a city source and queries it,
or drives a running search service.

Example usage:
  citysearch query --records data/cities.tsv new york
  citysearch stats --records data/cities.tsv
  citysearch loadtest --url http://localhost:8080 --duration 30s
  citysearch rebuild --brokers localhost:9092
  citysearch import --records data/cities.tsv`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = loadConfig(cmd)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		logger.SetupWriter(cmd.ErrOrStderr(), cfg.Logging.Level, "text")
		return nil
	},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (defaults and LS_* environment when empty)")
	rootCmd.PersistentFlags().StringVar(&recordsPath, "records", "", "TSV city file; overrides the configured source")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level")
}

// loadConfig applies the persistent flags of cmd on top of the config file.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	c, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if recordsPath != "" {
		c.Index.Source = config.SourceFile
		c.Index.RecordsPath = recordsPath
	}
	if cfgFile == "" || cmd.Flags().Changed("log-level") {
		c.Logging.Level = logLevel
	}
	return c, nil
}

// buildEngine indexes the configured source and returns the engine holding
// the published snapshot.
func buildEngine(ctx context.Context) (*indexer.Engine, error) {
	var db *sql.DB
	if cfg.Index.Source == config.SourcePostgres {
		pg, err := postgres.New(cfg.Postgres)
		if err != nil {
			return nil, err
		}
		defer pg.Close()
		db = pg.DB
	}
	src, err := city.NewSource(cfg.Index, db)
	if err != nil {
		return nil, err
	}
	engine := indexer.NewEngine(indexer.Options{
		K:             cfg.Ranking.K,
		B:             cfg.Ranking.B,
		RankAll:       cfg.Index.RankAll,
		RankerWorkers: cfg.Index.RankerWorkers,
	}, nil)
	if _, err := engine.Build(ctx, src); err != nil {
		return nil, err
	}
	return engine, nil
}
