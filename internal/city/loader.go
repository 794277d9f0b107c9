package city

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/lexisearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/lexisearch/pkg/resilience"
)

// Source produces the full set of cities to index.
type Source interface {
	Load(ctx context.Context) (*Set, error)
}

const tsvFields = 6

// ParseTSV reads tab separated rows of id, name, state, lat, lon and
// relevance. Lines starting with # and blank lines are skipped.
func ParseTSV(r io.Reader) (*Set, error) {
	reader := csv.NewReader(r)
	reader.Comma = '\t'
	reader.Comment = '#'
	reader.FieldsPerRecord = tsvFields
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	var cities []*City
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading cities: %w", err)
		}
		line, _ := reader.FieldPos(0)
		c, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		cities = append(cities, c)
	}
	set, err := NewSet(cities...)
	if err != nil {
		return nil, resilience.Permanent(err)
	}
	return set, nil
}

// isSchemaError reports a missing table or column, or a permission problem.
// Retrying those cannot help.
func isSchemaError(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code.Class() == "42"
}

func parseRow(row []string) (*City, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(row[0]), 10, 32)
	if err != nil {
		return nil, fmt.Errorf("parsing id %q: %w", row[0], err)
	}
	var coords [3]float64
	for i, field := range row[3:] {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return nil, fmt.Errorf("parsing column %d %q: %w", i+4, field, err)
		}
		coords[i] = v
	}
	return New(uint32(id), strings.TrimSpace(row[1]), strings.TrimSpace(row[2]), coords[0], coords[1], coords[2])
}

// FileSource loads cities from a TSV file.
type FileSource struct {
	Path string
}

func (s FileSource) Load(ctx context.Context) (*Set, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", s.Path, err)
	}
	defer f.Close()
	set, err := ParseTSV(f)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", s.Path, err)
	}
	logger.WithComponent("city-loader").Info("cities loaded",
		"source", "file",
		"path", s.Path,
		"count", set.Len(),
	)
	return set, nil
}

// PostgresSource loads cities from a table with columns id, name, state,
// lat, lon and relevance.
type PostgresSource struct {
	db     *sql.DB
	table  string
	retry  resilience.RetryConfig
	logger *slog.Logger
}

// NewPostgresSource returns a source reading table through db.
func NewPostgresSource(db *sql.DB, table string) *PostgresSource {
	return &PostgresSource{
		db:     db,
		table:  table,
		retry:  resilience.RetryConfig{MaxAttempts: 3},
		logger: logger.WithComponent("city-loader").With("table", table),
	}
}

func (s *PostgresSource) query() string {
	return "SELECT id, name, state, lat, lon, relevance FROM " +
		pq.QuoteIdentifier(s.table) + " ORDER BY id"
}

func (s *PostgresSource) Load(ctx context.Context) (*Set, error) {
	var set *Set
	err := resilience.Retry(ctx, "load-cities", s.retry, func() error {
		var err error
		set, err = s.load(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("cities loaded", "source", "postgres", "count", set.Len())
	return set, nil
}

func (s *PostgresSource) load(ctx context.Context) (*Set, error) {
	rows, err := s.db.QueryContext(ctx, s.query())
	if err != nil {
		err = fmt.Errorf("querying cities: %w", err)
		if isSchemaError(err) {
			return nil, resilience.Permanent(err)
		}
		return nil, err
	}
	defer rows.Close()

	var cities []*City
	for rows.Next() {
		var (
			id                  int64
			name, state         string
			lat, lon, relevance float64
		)
		if err := rows.Scan(&id, &name, &state, &lat, &lon, &relevance); err != nil {
			return nil, fmt.Errorf("scanning city row: %w", err)
		}
		if id < 0 || id > int64(^uint32(0)) {
			return nil, resilience.Permanent(fmt.Errorf("city id %d out of range", id))
		}
		c, err := New(uint32(id), name, state, lat, lon, relevance)
		if err != nil {
			return nil, resilience.Permanent(err)
		}
		cities = append(cities, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating city rows: %w", err)
	}
	set, err := NewSet(cities...)
	if err != nil {
		return nil, resilience.Permanent(err)
	}
	return set, nil
}
