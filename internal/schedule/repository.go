package schedule

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

//go:generate mockgen -source=repository.go -destination=../mocks/schedule/mock_repository.go -package=mock_schedule

// Repository persists schedule records keyed by learner and concept.
type Repository interface {
	// Get returns every record of the learner, earliest review first.
	Get(ctx context.Context, learnerID string) ([]Record, error)
	// Find returns the record for the key, or nil if it does not exist.
	Find(ctx context.Context, learnerID, conceptID string) (*Record, error)
	// CreateIfAbsent creates an unreviewed record due at now unless one exists.
	// It returns the stored record and whether it was created by this call.
	CreateIfAbsent(ctx context.Context, learnerID, conceptID, conceptLabel string, now time.Time) (Record, bool, error)
	// Upsert overwrites the mutable fields of an existing record.
	// It fails with *NotFoundError if the record does not exist and with ErrVersionConflict
	// if the stored version differs from record.Version. On success record.Version is advanced.
	Upsert(ctx context.Context, record *Record) error
}

const recordColumns = `learner_id, concept_id, concept_label, easiness_factor, interval_days, repetitions,
	last_review_at, next_review_at, last_score, version, created_at, updated_at`

// DBRepository implements Repository using MySQL.
type DBRepository struct {
	db *sqlx.DB
}

// NewDBRepository creates a new DBRepository.
func NewDBRepository(db *sqlx.DB) *DBRepository {
	return &DBRepository{db: db}
}

// Get returns all records of a learner.
func (r *DBRepository) Get(ctx context.Context, learnerID string) ([]Record, error) {
	records := make([]Record, 0)
	if err := r.db.SelectContext(ctx, &records,
		"SELECT "+recordColumns+" FROM schedule_records WHERE learner_id = ? ORDER BY next_review_at, concept_id",
		learnerID); err != nil {
		return nil, unavailable("db.SelectContext(schedule_records)", err)
	}
	return records, nil
}

// Find returns the record for a learner and concept, or nil if not found.
func (r *DBRepository) Find(ctx context.Context, learnerID, conceptID string) (*Record, error) {
	var record Record
	err := r.db.GetContext(ctx, &record,
		"SELECT "+recordColumns+" FROM schedule_records WHERE learner_id = ? AND concept_id = ?",
		learnerID, conceptID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("db.GetContext(schedule_record)", err)
	}
	return &record, nil
}

// CreateIfAbsent inserts a new record, leaving an existing row for the same key untouched.
// The primary key on (learner_id, concept_id) makes concurrent calls create at most one row.
func (r *DBRepository) CreateIfAbsent(ctx context.Context, learnerID, conceptID, conceptLabel string, now time.Time) (Record, bool, error) {
	record := NewRecord(learnerID, conceptID, conceptLabel, now)
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO schedule_records (learner_id, concept_id, concept_label, easiness_factor, interval_days, repetitions,
		next_review_at, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE learner_id = learner_id`,
		record.LearnerID, record.ConceptID, record.ConceptLabel, record.EasinessFactor, record.IntervalDays,
		record.Repetitions, record.NextReviewAt, record.Version, record.CreatedAt, record.UpdatedAt)
	if err != nil {
		return Record{}, false, unavailable("db.ExecContext(insert schedule_record)", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return Record{}, false, unavailable("result.RowsAffected()", err)
	}
	if affected == 1 {
		return record, true, nil
	}

	existing, err := r.Find(ctx, learnerID, conceptID)
	if err != nil {
		return Record{}, false, fmt.Errorf("r.Find() > %w", err)
	}
	if existing == nil {
		return Record{}, false, unavailable("db.ExecContext(insert schedule_record)",
			fmt.Errorf("record %s/%s neither inserted nor found", learnerID, conceptID))
	}
	return *existing, false, nil
}

// Upsert updates an existing record when its version still matches.
func (r *DBRepository) Upsert(ctx context.Context, record *Record) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE schedule_records SET concept_label = ?, easiness_factor = ?, interval_days = ?, repetitions = ?,
		last_review_at = ?, next_review_at = ?, last_score = ?, version = version + 1, updated_at = ?
		WHERE learner_id = ? AND concept_id = ? AND version = ?`,
		record.ConceptLabel, record.EasinessFactor, record.IntervalDays, record.Repetitions,
		record.LastReviewAt, record.NextReviewAt, record.LastScore, record.UpdatedAt,
		record.LearnerID, record.ConceptID, record.Version)
	if err != nil {
		return unavailable("db.ExecContext(update schedule_record)", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return unavailable("result.RowsAffected()", err)
	}
	if affected == 0 {
		existing, err := r.Find(ctx, record.LearnerID, record.ConceptID)
		if err != nil {
			return fmt.Errorf("r.Find() > %w", err)
		}
		if existing == nil {
			return &NotFoundError{LearnerID: record.LearnerID, ConceptID: record.ConceptID}
		}
		return fmt.Errorf("stored version %d, given %d: %w", existing.Version, record.Version, ErrVersionConflict)
	}
	record.Version++
	return nil
}
