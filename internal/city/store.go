package city

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/lexisearch/pkg/postgres"
)

var columns = []string{"id", "name", "state", "lat", "lon", "relevance"}

func createTableSQL(table string) string {
	return "CREATE TABLE IF NOT EXISTS " + pq.QuoteIdentifier(table) + ` (
	id        BIGINT PRIMARY KEY,
	name      TEXT NOT NULL,
	state     TEXT NOT NULL,
	lat       DOUBLE PRECISION NOT NULL,
	lon       DOUBLE PRECISION NOT NULL,
	relevance DOUBLE PRECISION NOT NULL DEFAULT 0
)`
}

// Replace creates table if needed and swaps its rows for the cities in set
// within one transaction, so a PostgresSource never sees a partial load.
func Replace(ctx context.Context, db *sql.DB, table string, set *Set) error {
	return postgres.InTx(ctx, db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, createTableSQL(table)); err != nil {
			return fmt.Errorf("creating table: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "TRUNCATE "+pq.QuoteIdentifier(table)); err != nil {
			return fmt.Errorf("truncating table: %w", err)
		}
		stmt, err := tx.PrepareContext(ctx, pq.CopyIn(table, columns...))
		if err != nil {
			return fmt.Errorf("preparing copy: %w", err)
		}
		defer stmt.Close()
		for c := range set.Cities() {
			if _, err := stmt.ExecContext(ctx, int64(c.ID()), c.Name(), c.State(), c.Lat(), c.Lon(), c.Relevance()); err != nil {
				return fmt.Errorf("copying city %d: %w", c.ID(), err)
			}
		}
		if _, err := stmt.ExecContext(ctx); err != nil {
			return fmt.Errorf("flushing copy: %w", err)
		}
		return nil
	})
}
