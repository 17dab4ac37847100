package output

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgColumns is the fixed table layout; every row is stored with all fields
// whatever the requested columns.
var pgColumns = []string{
	"run_id", "position", "isbn", "cover_url", "product_url", "title", "price",
	"rating", "category", "publisher", "status", "error", "scraped_at",
}

// PostgresSink stores rows in a Postgres table, tagged with the run id.
type PostgresSink struct {
	DSN   string
	Table string
	RunID string
}

// Write implements Sink. cols is ignored; the table always carries every field.
func (s *PostgresSink) Write(ctx context.Context, rows []Row, cols []Column) (string, error) {
	cfg, err := pgxpool.ParseConfig(s.DSN)
	if err != nil {
		return "", fmt.Errorf("failed to parse postgres dsn: %w", err)
	}
	cfg.MaxConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return "", fmt.Errorf("failed to create pool: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return "", fmt.Errorf("failed to ping database: %w", err)
	}

	table := pgx.Identifier{s.table()}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, createTableSQL(table)); err != nil {
		return "", fmt.Errorf("creating table %s: %w", s.table(), err)
	}

	if _, err := tx.CopyFrom(ctx, table, pgColumns, pgx.CopyFromRows(s.values(rows, time.Now().UTC()))); err != nil {
		return "", fmt.Errorf("copying %d rows: %w", len(rows), err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}

	return fmt.Sprintf("postgres://%s:%d/%s#%s", cfg.ConnConfig.Host, cfg.ConnConfig.Port, cfg.ConnConfig.Database, s.table()), nil
}

func (s *PostgresSink) table() string {
	if s.Table == "" {
		return "books"
	}
	return s.Table
}

func (s *PostgresSink) values(rows []Row, at time.Time) [][]any {
	values := make([][]any, 0, len(rows))
	for i, r := range rows {
		values = append(values, []any{
			s.RunID, i, r.ISBN, r.CoverURL, r.ProductURL, r.Title, r.Price,
			r.Rating, r.Category, r.Publisher, r.Status, r.Error, at,
		})
	}
	return values
}

func createTableSQL(table pgx.Identifier) string {
	return `CREATE TABLE IF NOT EXISTS ` + table.Sanitize() + ` (
	id          BIGSERIAL PRIMARY KEY,
	run_id      TEXT NOT NULL,
	position    INTEGER NOT NULL,
	isbn        TEXT NOT NULL,
	cover_url   TEXT NOT NULL,
	product_url TEXT NOT NULL,
	title       TEXT NOT NULL,
	price       TEXT NOT NULL,
	rating      TEXT NOT NULL,
	category    TEXT NOT NULL,
	publisher   TEXT NOT NULL,
	status      TEXT NOT NULL,
	error       TEXT NOT NULL,
	scraped_at  TIMESTAMPTZ NOT NULL
)`
}
