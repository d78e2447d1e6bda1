// Package schedule provides schedule record models, categorization and repositories.
package schedule

import (
	"time"

	"github.com/at-ishikawa/reviewer/internal/sm2"
)

// Record is the review schedule of one concept for one learner.
type Record struct {
	LearnerID      string     `db:"learner_id" yaml:"learner_id" json:"learner_id"`
	ConceptID      string     `db:"concept_id" yaml:"concept_id" json:"concept_id"`
	ConceptLabel   string     `db:"concept_label" yaml:"concept_label" json:"concept_label"`
	EasinessFactor float64    `db:"easiness_factor" yaml:"easiness_factor" json:"easiness_factor"`
	IntervalDays   int        `db:"interval_days" yaml:"interval_days" json:"interval_days"`
	Repetitions    int        `db:"repetitions" yaml:"repetitions" json:"repetitions"`
	LastReviewAt   *time.Time `db:"last_review_at" yaml:"last_review_at,omitempty" json:"last_review_at,omitempty"`
	NextReviewAt   time.Time  `db:"next_review_at" yaml:"next_review_at" json:"next_review_at"`
	LastScore      *int       `db:"last_score" yaml:"last_score,omitempty" json:"last_score,omitempty"`
	Version        int64      `db:"version" yaml:"version" json:"version"`
	CreatedAt      time.Time  `db:"created_at" yaml:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" yaml:"updated_at" json:"updated_at"`
}

// CatalogConcept is a reviewable concept supplied by the content catalog.
type CatalogConcept struct {
	ConceptID    string `yaml:"id" json:"concept_id" validate:"required"`
	ConceptLabel string `yaml:"label" json:"concept_label"`
}

// Key identifies a record.
type Key struct {
	LearnerID string
	ConceptID string
}

func (k Key) String() string {
	return k.LearnerID + "/" + k.ConceptID
}

// Key returns the identity of the record.
func (r Record) Key() Key {
	return Key{LearnerID: r.LearnerID, ConceptID: r.ConceptID}
}

// NewRecord returns an unreviewed record that is due at now.
func NewRecord(learnerID, conceptID, conceptLabel string, now time.Time) Record {
	return Record{
		LearnerID:      learnerID,
		ConceptID:      conceptID,
		ConceptLabel:   conceptLabel,
		EasinessFactor: sm2.DefaultEasinessFactor,
		IntervalDays:   0,
		Repetitions:    0,
		NextReviewAt:   now,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// IsReviewed reports whether the record has received at least one review.
func (r Record) IsReviewed() bool {
	return r.LastReviewAt != nil
}

// ApplyReview returns a copy of r updated with the outcome of a review
// scored at score and taken at now.
func (r Record) ApplyReview(score int, now time.Time) Record {
	quality := sm2.QualityFromScore(score)
	result := sm2.ComputeNext(quality, r.Repetitions, r.EasinessFactor, r.IntervalDays)

	reviewedAt := now
	s := score
	r.EasinessFactor = result.EasinessFactor
	r.IntervalDays = result.IntervalDays
	r.Repetitions = result.Repetitions
	r.LastReviewAt = &reviewedAt
	r.LastScore = &s
	// Calendar days, so the due time keeps its wall clock across DST changes
	r.NextReviewAt = now.AddDate(0, 0, result.IntervalDays)
	r.UpdatedAt = now
	return r
}

func (r Record) clone() Record {
	out := r
	if r.LastReviewAt != nil {
		v := *r.LastReviewAt
		out.LastReviewAt = &v
	}
	if r.LastScore != nil {
		v := *r.LastScore
		out.LastScore = &v
	}
	return out
}
