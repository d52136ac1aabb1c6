package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// DB wraps a database/sql connection pool for PostgreSQL.
type DB struct {
	Pool *sql.DB
}

// NewDB creates a new database connection.
// The caller must import a PostgreSQL driver (e.g., _ "github.com/lib/pq").
func NewDB(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	pool.SetMaxOpenConns(25)
	pool.SetMaxIdleConns(5)

	if err := pool.PingContext(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close closes the connection pool.
func (d *DB) Close() error {
	return d.Pool.Close()
}

// Migrate runs the database schema migrations.
func (d *DB) Migrate(ctx context.Context) error {
	_, err := d.Pool.ExecContext(ctx, migrationSQL)
	if err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

const migrationSQL = `
CREATE TABLE IF NOT EXISTS ingestions (
    id               TEXT PRIMARY KEY,
    file_name        TEXT NOT NULL,
    mime_type        TEXT NOT NULL DEFAULT '',
    size_bytes       BIGINT NOT NULL DEFAULT 0,
    category         TEXT NOT NULL DEFAULT '',
    status           TEXT NOT NULL,
    error            TEXT NOT NULL DEFAULT '',
    risk_level       TEXT NOT NULL DEFAULT '',
    extracted_chars  INTEGER NOT NULL DEFAULT 0,
    processing_ms    BIGINT NOT NULL DEFAULT 0,
    metadata         JSONB NOT NULL DEFAULT '{}',
    created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    completed_at     TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_ingestions_status ON ingestions(status);
CREATE INDEX IF NOT EXISTS idx_ingestions_created_at ON ingestions(created_at DESC);
`

// CreateRecord stores a new ingestion record.
func (d *DB) CreateRecord(ctx context.Context, r *Record) error {
	metadataJSON, _ := json.Marshal(r.Metadata)

	_, err := d.Pool.ExecContext(ctx,
		`INSERT INTO ingestions (id, file_name, mime_type, size_bytes, category, status, error, risk_level, extracted_chars, processing_ms, metadata, created_at, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		r.ID, r.FileName, r.MIMEType, r.SizeBytes, r.Category,
		string(r.Status), r.Error, r.RiskLevel,
		r.ExtractedChars, r.ProcessingMS, metadataJSON,
		r.CreatedAt, r.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ingestion: %w", err)
	}
	return nil
}

// GetRecord retrieves an ingestion record by ID.
func (d *DB) GetRecord(ctx context.Context, id string) (*Record, error) {
	r := &Record{}
	var status string
	var metadataJSON []byte

	err := d.Pool.QueryRowContext(ctx,
		`SELECT id, file_name, mime_type, size_bytes, category, status, error, risk_level, extracted_chars, processing_ms, metadata, created_at, completed_at
		 FROM ingestions WHERE id = $1`, id,
	).Scan(&r.ID, &r.FileName, &r.MIMEType, &r.SizeBytes, &r.Category,
		&status, &r.Error, &r.RiskLevel,
		&r.ExtractedChars, &r.ProcessingMS, &metadataJSON,
		&r.CreatedAt, &r.CompletedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get ingestion: %w", err)
	}

	r.Status = Status(status)
	json.Unmarshal(metadataJSON, &r.Metadata)
	return r, nil
}

// ListRecords returns ingestion records newest first, with the total count
// before pagination. status filters when non-empty.
func (d *DB) ListRecords(ctx context.Context, limit, offset int, status string) ([]*Record, int, error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM ingestions`
	listQuery := `SELECT id, file_name, mime_type, size_bytes, category, status, error, risk_level, extracted_chars, processing_ms, metadata, created_at, completed_at
		 FROM ingestions`
	args := []any{}
	if status != "" {
		countQuery += ` WHERE status = $1`
		listQuery += ` WHERE status = $1`
		args = append(args, status)
	}

	if err := d.Pool.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count ingestions: %w", err)
	}

	listQuery += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := d.Pool.QueryContext(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list ingestions: %w", err)
	}
	defer rows.Close()

	var result []*Record
	for rows.Next() {
		r := &Record{}
		var recStatus string
		var metadataJSON []byte

		if err := rows.Scan(&r.ID, &r.FileName, &r.MIMEType, &r.SizeBytes, &r.Category,
			&recStatus, &r.Error, &r.RiskLevel,
			&r.ExtractedChars, &r.ProcessingMS, &metadataJSON,
			&r.CreatedAt, &r.CompletedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan ingestion: %w", err)
		}

		r.Status = Status(recStatus)
		json.Unmarshal(metadataJSON, &r.Metadata)
		result = append(result, r)
	}
	return result, total, rows.Err()
}
