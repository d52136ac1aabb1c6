package history

import (
	"context"
	"log/slog"
)

// PersistentRepository wraps a MemoryRepository with a PostgreSQL backend.
// Writes go to both stores (DB failure is logged but non-fatal).
// Reads try memory first, falling back to the database.
type PersistentRepository struct {
	mem *MemoryRepository
	db  *DB
}

// NewPersistent creates a repository backed by both memory and PostgreSQL.
func NewPersistent(mem *MemoryRepository, database *DB) *PersistentRepository {
	return &PersistentRepository{mem: mem, db: database}
}

func (r *PersistentRepository) Create(ctx context.Context, record *Record) error {
	_ = r.mem.Create(ctx, record)
	if err := r.db.CreateRecord(ctx, record); err != nil {
		slog.Warn("db create ingestion failed, in-memory only", "err", err)
	}
	return nil
}

func (r *PersistentRepository) Get(ctx context.Context, id string) (*Record, error) {
	rec, err := r.mem.Get(ctx, id)
	if err == nil {
		return rec, nil
	}

	dbRec, dbErr := r.db.GetRecord(ctx, id)
	if dbErr != nil {
		return nil, err // return original ErrNotFound
	}

	// Cache in memory for future lookups.
	_ = r.mem.Create(ctx, dbRec)
	return dbRec, nil
}

func (r *PersistentRepository) List(ctx context.Context, limit, offset int, status string) ([]*Record, int, error) {
	recs, total, err := r.db.ListRecords(ctx, limit, offset, status)
	if err == nil {
		return recs, total, nil
	}
	slog.Warn("db list ingestions failed, falling back to in-memory", "err", err)
	return r.mem.List(ctx, limit, offset, status)
}
