// Package registry persists registered queries outside the in-memory
// engine and restores them on boot. The engine itself never blocks on
// storage; persistence happens alongside registration in the API layer.
package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/querystream/percolator/internal/query"
	"github.com/querystream/percolator/pkg/postgres"
)

// Store is the durable registry boundary.
type Store interface {
	SaveQueries(ctx context.Context, queries []*query.MonitorQuery) error
	DeleteQuery(ctx context.Context, id string) error
	LoadAll(ctx context.Context) ([]*query.MonitorQuery, error)
}

// PostgresStore keeps queries in a single table, one row per query id, the
// expression trees serialised as JSON.
type PostgresStore struct {
	client *postgres.Client
	logger *slog.Logger
}

// NewPostgresStore wraps a connected client.
func NewPostgresStore(client *postgres.Client) *PostgresStore {
	return &PostgresStore{
		client: client,
		logger: slog.Default().With("component", "query-store"),
	}
}

// EnsureSchema creates the queries table when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS monitor_queries (
	id         TEXT PRIMARY KEY,
	definition JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`
	if _, err := s.client.DB.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("creating monitor_queries table: %w", err)
	}
	return nil
}

// SaveQueries upserts the batch in one transaction.
func (s *PostgresStore) SaveQueries(ctx context.Context, queries []*query.MonitorQuery) error {
	return s.client.InTx(ctx, func(tx *sql.Tx) error {
		const upsert = `
INSERT INTO monitor_queries (id, definition, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (id) DO UPDATE SET definition = EXCLUDED.definition, updated_at = now()`
		for _, q := range queries {
			definition, err := json.Marshal(q)
			if err != nil {
				return fmt.Errorf("encoding query %q: %w", q.ID, err)
			}
			if _, err := tx.ExecContext(ctx, upsert, q.ID, definition); err != nil {
				return fmt.Errorf("upserting query %q: %w", q.ID, err)
			}
		}
		return nil
	})
}

// DeleteQuery removes one row; deleting an unknown id is a no-op.
func (s *PostgresStore) DeleteQuery(ctx context.Context, id string) error {
	if _, err := s.client.DB.ExecContext(ctx,
		`DELETE FROM monitor_queries WHERE id = $1`, id); err != nil {
		return fmt.Errorf("deleting query %q: %w", id, err)
	}
	return nil
}

// LoadAll returns every stored query. Rows that no longer decode are
// skipped with a warning rather than failing the whole restore.
func (s *PostgresStore) LoadAll(ctx context.Context) ([]*query.MonitorQuery, error) {
	rows, err := s.client.DB.QueryContext(ctx,
		`SELECT id, definition FROM monitor_queries ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("loading queries: %w", err)
	}
	defer rows.Close()

	var queries []*query.MonitorQuery
	for rows.Next() {
		var id string
		var definition []byte
		if err := rows.Scan(&id, &definition); err != nil {
			return nil, fmt.Errorf("scanning query row: %w", err)
		}
		q := new(query.MonitorQuery)
		if err := json.Unmarshal(definition, q); err != nil {
			s.logger.Warn("skipping undecodable stored query", "query_id", id, "error", err)
			continue
		}
		queries = append(queries, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating query rows: %w", err)
	}
	return queries, nil
}
