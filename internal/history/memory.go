package history

import (
	"context"
	"sort"
	"sync"
)

const maxRecords = 1000

// MemoryRepository stores ingestion records in memory with FIFO eviction.
type MemoryRepository struct {
	mu      sync.RWMutex
	records map[string]*Record
	order   []string // insertion order for FIFO eviction
}

func NewMemory() *MemoryRepository {
	return &MemoryRepository{
		records: make(map[string]*Record),
	}
}

func (r *MemoryRepository) Create(_ context.Context, record *Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// FIFO eviction when at capacity.
	if len(r.order) >= maxRecords {
		oldest := r.order[0]
		r.order = r.order[1:]
		delete(r.records, oldest)
	}

	r.records[record.ID] = record
	r.order = append(r.order, record.ID)
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec, nil
}

func (r *MemoryRepository) List(_ context.Context, limit, offset int, status string) ([]*Record, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*Record, 0, len(r.records))
	for _, rec := range r.records {
		if status == "" || string(rec.Status) == status {
			all = append(all, rec)
		}
	}

	// Sort by created_at descending (newest first).
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}
