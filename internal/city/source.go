package city

import (
	"database/sql"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/lexisearch/pkg/config"
)

// NewSource returns the source selected by cfg. db is only used by the
// postgres source and must be non-nil for it.
func NewSource(cfg config.IndexConfig, db *sql.DB) (Source, error) {
	switch cfg.Source {
	case config.SourceFile:
		return FileSource{Path: cfg.RecordsPath}, nil
	case config.SourcePostgres:
		if db == nil {
			return nil, fmt.Errorf("postgres source needs a database connection")
		}
		return NewPostgresSource(db, cfg.RecordsTable), nil
	default:
		return nil, fmt.Errorf("unknown index source %q", cfg.Source)
	}
}
