package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// Postgres persists results in a single-table Postgres database, the
// same shape as the SQLite backend with a JSONB payload column.
type Postgres struct {
	db *sql.DB
}

// NewPostgres connects using dsn (a lib/pq connection string), verifies
// the connection, and initializes the schema.
func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	p := &Postgres{db: db}
	if err := p.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return p, nil
}

func (p *Postgres) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS results (
		key TEXT PRIMARY KEY,
		value JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);
	`
	_, err := p.db.Exec(schema)
	return err
}

func (p *Postgres) Get(ctx context.Context, key string) (*QueryResult, error) {
	var value []byte
	err := p.db.QueryRowContext(ctx, "SELECT value FROM results WHERE key = $1", key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying key %q: %w", key, err)
	}

	var result QueryResult
	if err := json.Unmarshal(value, &result); err != nil {
		return nil, fmt.Errorf("decoding value for key %q: %w", key, err)
	}
	return &result, nil
}

func (p *Postgres) Put(ctx context.Context, key string, result *QueryResult) error {
	value, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encoding value for key %q: %w", key, err)
	}

	query := `
		INSERT INTO results (key, value, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`
	if _, err := p.db.ExecContext(ctx, query, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("storing key %q: %w", key, err)
	}
	return nil
}

func (p *Postgres) List(ctx context.Context) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, "SELECT key FROM results ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("listing keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scanning key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (p *Postgres) Delete(ctx context.Context, key string) error {
	if _, err := p.db.ExecContext(ctx, "DELETE FROM results WHERE key = $1", key); err != nil {
		return fmt.Errorf("deleting key %q: %w", key, err)
	}
	return nil
}

func (p *Postgres) Close() error {
	return p.db.Close()
}
