// Package review synchronizes learners' catalogs into schedule records and records review outcomes.
package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go"
	"github.com/go-playground/validator/v10"

	"github.com/at-ishikawa/reviewer/internal/catalog"
	"github.com/at-ishikawa/reviewer/internal/lock"
	"github.com/at-ishikawa/reviewer/internal/schedule"
	"github.com/at-ishikawa/reviewer/internal/sm2"
)

const defaultConflictRetries = 5

// ErrNoCatalog is returned by SyncFromCatalog when the service has no catalog provider.
var ErrNoCatalog = errors.New("no catalog provider configured")

// Service is the entry point for catalog synchronization, review intake and schedule overviews.
type Service struct {
	repo            schedule.Repository
	locker          lock.Locker
	catalog         catalog.Provider
	validate        *validator.Validate
	now             func() time.Time
	conflictRetries uint
}

// Option configures a Service.
type Option func(*Service)

// WithLocker sets the per-key locker. Defaults to an in-process locker.
func WithLocker(locker lock.Locker) Option {
	return func(s *Service) {
		s.locker = locker
	}
}

// WithCatalog sets the catalog used by SyncFromCatalog.
func WithCatalog(provider catalog.Provider) Option {
	return func(s *Service) {
		s.catalog = provider
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithConflictRetries sets how often a review is retried after a concurrent update.
func WithConflictRetries(n uint) Option {
	return func(s *Service) {
		s.conflictRetries = n
	}
}

// NewService creates a new Service.
func NewService(repo schedule.Repository, opts ...Option) *Service {
	s := &Service{
		repo:            repo,
		locker:          lock.NewLocal(),
		validate:        validator.New(),
		now:             time.Now,
		conflictRetries: defaultConflictRetries,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SubmitReview records a review scored from 0 to 100 and reschedules the concept.
// Reviews of the same concept are serialized, so concurrent submissions are all applied.
func (s *Service) SubmitReview(ctx context.Context, learnerID, conceptID string, score int) (schedule.Record, error) {
	if !sm2.IsValidScore(score) {
		return schedule.Record{}, &schedule.InvalidScoreError{Score: score}
	}

	key := schedule.Key{LearnerID: learnerID, ConceptID: conceptID}
	unlock, err := s.locker.Lock(ctx, key.String())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return schedule.Record{}, fmt.Errorf("locker.Lock(%s) > %w", key, ctxErr)
		}
		return schedule.Record{}, &schedule.StoreUnavailableError{Op: fmt.Sprintf("locker.Lock(%s)", key), Err: err}
	}
	defer unlock()

	var updated schedule.Record
	err = retry.Do(
		func() error {
			record, err := s.applyReview(ctx, key, score)
			if err != nil {
				return err
			}
			updated = record
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(s.conflictRetries+1),
		retry.Delay(5*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, schedule.ErrVersionConflict)
		}),
		retry.OnRetry(func(n uint, err error) {
			slog.Default().Debug("Retrying review after concurrent update",
				"attempt", n+1,
				"learner", learnerID,
				"concept", conceptID)
		}),
	)
	if err != nil {
		var notFound *schedule.NotFoundError
		if errors.As(err, &notFound) {
			slog.Default().Error("Schedule record disappeared during review",
				"learner", learnerID,
				"concept", conceptID,
				"error", err)
		}
		return schedule.Record{}, err
	}

	slog.Default().Info("Review recorded",
		"learner", learnerID,
		"concept", conceptID,
		"score", score,
		"quality", sm2.QualityFromScore(score),
		"repetitions", updated.Repetitions,
		"interval_days", updated.IntervalDays,
		"next_review_at", updated.NextReviewAt)
	return updated, nil
}

func (s *Service) applyReview(ctx context.Context, key schedule.Key, score int) (schedule.Record, error) {
	record, err := s.repo.Find(ctx, key.LearnerID, key.ConceptID)
	if err != nil {
		return schedule.Record{}, fmt.Errorf("repo.Find(%s) > %w", key, err)
	}
	if record == nil {
		return schedule.Record{}, &schedule.UnknownConceptError{LearnerID: key.LearnerID, ConceptID: key.ConceptID}
	}

	next := record.ApplyReview(score, s.now())
	if err := s.repo.Upsert(ctx, &next); err != nil {
		return schedule.Record{}, fmt.Errorf("repo.Upsert(%s) > %w", key, err)
	}
	return next, nil
}

// Sync creates schedule records for catalog concepts the learner has no record for yet
// and returns how many were created. Records of concepts missing from the catalog are kept as is.
func (s *Service) Sync(ctx context.Context, learnerID string, concepts []schedule.CatalogConcept) (int, error) {
	existing, err := s.repo.Get(ctx, learnerID)
	if err != nil {
		return 0, fmt.Errorf("repo.Get(%s) > %w", learnerID, err)
	}
	known := make(map[string]bool, len(existing)+len(concepts))
	for _, record := range existing {
		known[record.ConceptID] = true
	}

	now := s.now()
	created := 0
	for _, concept := range concepts {
		if err := s.validate.Struct(concept); err != nil {
			slog.Default().Warn("Skipping invalid catalog concept",
				"learner", learnerID,
				"concept", concept,
				"error", err)
			continue
		}
		if known[concept.ConceptID] {
			continue
		}
		known[concept.ConceptID] = true

		_, ok, err := s.repo.CreateIfAbsent(ctx, learnerID, concept.ConceptID, concept.ConceptLabel, now)
		if err != nil {
			return created, fmt.Errorf("repo.CreateIfAbsent(%s/%s) > %w", learnerID, concept.ConceptID, err)
		}
		if ok {
			created++
		}
	}

	if created > 0 {
		slog.Default().Info("Catalog synchronized",
			"learner", learnerID,
			"catalog_size", len(concepts),
			"created", created)
	}
	return created, nil
}

// SyncFromCatalog pulls the learner's catalog from the configured provider and synchronizes it.
func (s *Service) SyncFromCatalog(ctx context.Context, learnerID string) (int, error) {
	if s.catalog == nil {
		return 0, ErrNoCatalog
	}
	concepts, err := s.catalog.Concepts(ctx, learnerID)
	if err != nil {
		return 0, fmt.Errorf("catalog.Concepts(%s) > %w", learnerID, err)
	}
	return s.Sync(ctx, learnerID, concepts)
}

// Overview is a learner's categorized schedule at a point in time.
type Overview struct {
	At       time.Time         `json:"at"`
	Due      []schedule.Record `json:"due"`
	Upcoming []schedule.Record `json:"upcoming"`
	Mastered []schedule.Record `json:"mastered"`
	Summary  schedule.Summary  `json:"summary"`
}

// Overview reads all records of the learner and categorizes them relative to the current time.
func (s *Service) Overview(ctx context.Context, learnerID string) (Overview, error) {
	records, err := s.repo.Get(ctx, learnerID)
	if err != nil {
		return Overview{}, fmt.Errorf("repo.Get(%s) > %w", learnerID, err)
	}
	now := s.now()
	due, upcoming, mastered := schedule.Categorize(records, now)
	return Overview{
		At:       now,
		Due:      due,
		Upcoming: upcoming,
		Mastered: mastered,
		Summary:  schedule.Summarize(records, now),
	}, nil
}
