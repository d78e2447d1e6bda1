package schedule

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryRepository implements Repository in process memory.
type MemoryRepository struct {
	mu      sync.RWMutex
	records map[Key]Record
}

// NewMemoryRepository creates an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: make(map[Key]Record)}
}

func (r *MemoryRepository) Get(_ context.Context, learnerID string) ([]Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records := make([]Record, 0)
	for key, record := range r.records {
		if key.LearnerID == learnerID {
			records = append(records, record.clone())
		}
	}
	sortRecords(records)
	return records, nil
}

func (r *MemoryRepository) Find(_ context.Context, learnerID, conceptID string) (*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[Key{LearnerID: learnerID, ConceptID: conceptID}]
	if !ok {
		return nil, nil
	}
	found := record.clone()
	return &found, nil
}

func (r *MemoryRepository) CreateIfAbsent(_ context.Context, learnerID, conceptID, conceptLabel string, now time.Time) (Record, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := Key{LearnerID: learnerID, ConceptID: conceptID}
	if existing, ok := r.records[key]; ok {
		return existing.clone(), false, nil
	}
	record := NewRecord(learnerID, conceptID, conceptLabel, now)
	r.records[key] = record
	return record.clone(), true, nil
}

func (r *MemoryRepository) Upsert(_ context.Context, record *Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return upsertInto(r.records, record)
}

// upsertInto applies the Upsert contract to an in-memory record set.
func upsertInto(records map[Key]Record, record *Record) error {
	key := record.Key()
	existing, ok := records[key]
	if !ok {
		return &NotFoundError{LearnerID: record.LearnerID, ConceptID: record.ConceptID}
	}
	if existing.Version != record.Version {
		return fmt.Errorf("stored version %d, given %d: %w", existing.Version, record.Version, ErrVersionConflict)
	}

	updated := record.clone()
	updated.Version++
	updated.CreatedAt = existing.CreatedAt
	records[key] = updated
	record.Version = updated.Version
	return nil
}

func sortRecords(records []Record) {
	sort.Slice(records, func(i, j int) bool {
		if !records[i].NextReviewAt.Equal(records[j].NextReviewAt) {
			return records[i].NextReviewAt.Before(records[j].NextReviewAt)
		}
		return records[i].ConceptID < records[j].ConceptID
	})
}
