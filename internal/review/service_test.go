package review

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/at-ishikawa/reviewer/internal/catalog"
	mock_catalog "github.com/at-ishikawa/reviewer/internal/mocks/catalog"
	mock_schedule "github.com/at-ishikawa/reviewer/internal/mocks/schedule"
	"github.com/at-ishikawa/reviewer/internal/schedule"
)

var testNow = time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func newMemoryService(t *testing.T, opts ...Option) (*Service, *schedule.MemoryRepository) {
	t.Helper()
	repo := schedule.NewMemoryRepository()
	opts = append([]Option{WithClock(fixedClock)}, opts...)
	return NewService(repo, opts...), repo
}

func TestService_SubmitReview(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(t *testing.T, repo *schedule.MemoryRepository)
		conceptID string
		score     int
		check     func(t *testing.T, got schedule.Record)
		wantErr   func(t *testing.T, err error)
	}{
		{
			name: "first perfect review schedules tomorrow",
			setup: func(t *testing.T, repo *schedule.MemoryRepository) {
				_, _, err := repo.CreateIfAbsent(context.Background(), "learner-1", "c1", "Cells", testNow.Add(-time.Hour))
				require.NoError(t, err)
			},
			conceptID: "c1",
			score:     100,
			check: func(t *testing.T, got schedule.Record) {
				assert.Equal(t, 1, got.Repetitions)
				assert.Equal(t, 1, got.IntervalDays)
				assert.Greater(t, got.EasinessFactor, 2.5)
				assert.Equal(t, testNow.AddDate(0, 0, 1), got.NextReviewAt)
				require.NotNil(t, got.LastReviewAt)
				assert.Equal(t, testNow, *got.LastReviewAt)
				require.NotNil(t, got.LastScore)
				assert.Equal(t, 100, *got.LastScore)
			},
		},
		{
			name: "failing score resets repetitions",
			setup: func(t *testing.T, repo *schedule.MemoryRepository) {
				record, _, err := repo.CreateIfAbsent(context.Background(), "learner-1", "c1", "Cells", testNow)
				require.NoError(t, err)
				record.Repetitions = 3
				record.IntervalDays = 15
				require.NoError(t, repo.Upsert(context.Background(), &record))
			},
			conceptID: "c1",
			score:     45,
			check: func(t *testing.T, got schedule.Record) {
				assert.Equal(t, 0, got.Repetitions)
				assert.Equal(t, 1, got.IntervalDays)
				assert.Less(t, got.EasinessFactor, 2.5)
				assert.GreaterOrEqual(t, got.EasinessFactor, 1.3)
			},
		},
		{
			name:      "score above range",
			conceptID: "c1",
			score:     101,
			wantErr: func(t *testing.T, err error) {
				var invalid *schedule.InvalidScoreError
				require.ErrorAs(t, err, &invalid)
				assert.Equal(t, 101, invalid.Score)
			},
		},
		{
			name:      "score below range",
			conceptID: "c1",
			score:     -1,
			wantErr: func(t *testing.T, err error) {
				var invalid *schedule.InvalidScoreError
				assert.ErrorAs(t, err, &invalid)
			},
		},
		{
			name:      "unknown concept",
			conceptID: "never-synced",
			score:     80,
			wantErr: func(t *testing.T, err error) {
				var unknown *schedule.UnknownConceptError
				require.ErrorAs(t, err, &unknown)
				assert.Equal(t, "never-synced", unknown.ConceptID)
				assert.Equal(t, "learner-1", unknown.LearnerID)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, repo := newMemoryService(t)
			if tt.setup != nil {
				tt.setup(t, repo)
			}

			got, err := service.SubmitReview(context.Background(), "learner-1", tt.conceptID, tt.score)
			if tt.wantErr != nil {
				tt.wantErr(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, got)

			stored, err := repo.Find(context.Background(), "learner-1", tt.conceptID)
			require.NoError(t, err)
			assert.Equal(t, got, *stored)
		})
	}
}

func TestService_SubmitReview_OnlyMutatesOneRecord(t *testing.T) {
	service, repo := newMemoryService(t)
	ctx := context.Background()
	_, err := service.Sync(ctx, "learner-1", []schedule.CatalogConcept{
		{ConceptID: "c1", ConceptLabel: "Cells"},
		{ConceptID: "c2", ConceptLabel: "Atoms"},
	})
	require.NoError(t, err)
	before, err := repo.Find(ctx, "learner-1", "c2")
	require.NoError(t, err)

	_, err = service.SubmitReview(ctx, "learner-1", "c1", 90)
	require.NoError(t, err)

	after, err := repo.Find(ctx, "learner-1", "c2")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestService_SubmitReview_ConcurrentReviewsAreAllApplied(t *testing.T) {
	service, repo := newMemoryService(t)
	ctx := context.Background()
	_, _, err := repo.CreateIfAbsent(ctx, "learner-1", "c1", "Cells", testNow)
	require.NoError(t, err)

	const reviews = 12
	var wg sync.WaitGroup
	for i := 0; i < reviews; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.SubmitReview(ctx, "learner-1", "c1", 100)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := repo.Find(ctx, "learner-1", "c1")
	require.NoError(t, err)
	assert.Equal(t, reviews, got.Repetitions)
	assert.Equal(t, int64(1+reviews), got.Version)
}

func TestService_SubmitReview_RetriesVersionConflict(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mock_schedule.NewMockRepository(ctrl)
	service := NewService(repo, WithClock(fixedClock))

	stale := schedule.NewRecord("learner-1", "c1", "Cells", testNow)
	fresh := stale
	fresh.Version = 2

	gomock.InOrder(
		repo.EXPECT().Find(gomock.Any(), "learner-1", "c1").Return(&stale, nil),
		repo.EXPECT().Upsert(gomock.Any(), gomock.Any()).
			Return(fmt.Errorf("stored version 2, given 1: %w", schedule.ErrVersionConflict)),
		repo.EXPECT().Find(gomock.Any(), "learner-1", "c1").Return(&fresh, nil),
		repo.EXPECT().Upsert(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, record *schedule.Record) error {
				assert.Equal(t, int64(2), record.Version)
				record.Version++
				return nil
			}),
	)

	got, err := service.SubmitReview(context.Background(), "learner-1", "c1", 70)

	require.NoError(t, err)
	assert.Equal(t, int64(3), got.Version)
	assert.Equal(t, 1, got.Repetitions)
}

func TestService_SubmitReview_StoreErrors(t *testing.T) {
	storeErr := &schedule.StoreUnavailableError{Op: "db.GetContext(schedule_record)", Err: errors.New("connection refused")}
	record := schedule.NewRecord("learner-1", "c1", "Cells", testNow)

	tests := []struct {
		name    string
		setup   func(repo *mock_schedule.MockRepository)
		wantErr func(t *testing.T, err error)
	}{
		{
			name: "find fails",
			setup: func(repo *mock_schedule.MockRepository) {
				repo.EXPECT().Find(gomock.Any(), "learner-1", "c1").Return(nil, storeErr)
			},
			wantErr: func(t *testing.T, err error) {
				var got *schedule.StoreUnavailableError
				require.ErrorAs(t, err, &got)
				assert.Same(t, storeErr, got)
			},
		},
		{
			name: "upsert fails",
			setup: func(repo *mock_schedule.MockRepository) {
				repo.EXPECT().Find(gomock.Any(), "learner-1", "c1").Return(&record, nil)
				repo.EXPECT().Upsert(gomock.Any(), gomock.Any()).Return(storeErr)
			},
			wantErr: func(t *testing.T, err error) {
				var got *schedule.StoreUnavailableError
				assert.ErrorAs(t, err, &got)
			},
		},
		{
			name: "record vanished between read and write",
			setup: func(repo *mock_schedule.MockRepository) {
				repo.EXPECT().Find(gomock.Any(), "learner-1", "c1").Return(&record, nil)
				repo.EXPECT().Upsert(gomock.Any(), gomock.Any()).
					Return(&schedule.NotFoundError{LearnerID: "learner-1", ConceptID: "c1"})
			},
			wantErr: func(t *testing.T, err error) {
				var got *schedule.NotFoundError
				assert.ErrorAs(t, err, &got)
			},
		},
		{
			name: "conflicts exhaust retries",
			setup: func(repo *mock_schedule.MockRepository) {
				repo.EXPECT().Find(gomock.Any(), "learner-1", "c1").Return(&record, nil).Times(3)
				repo.EXPECT().Upsert(gomock.Any(), gomock.Any()).Return(schedule.ErrVersionConflict).Times(3)
			},
			wantErr: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, schedule.ErrVersionConflict)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			repo := mock_schedule.NewMockRepository(ctrl)
			tt.setup(repo)
			service := NewService(repo, WithClock(fixedClock), WithConflictRetries(2))

			_, err := service.SubmitReview(context.Background(), "learner-1", "c1", 80)

			require.Error(t, err)
			tt.wantErr(t, err)
		})
	}
}

type failingLocker struct{ err error }

func (l failingLocker) Lock(context.Context, string) (func(), error) { return nil, l.err }

func TestService_SubmitReview_LockUnavailable(t *testing.T) {
	service, _ := newMemoryService(t, WithLocker(failingLocker{err: errors.New("redis: connection refused")}))

	_, err := service.SubmitReview(context.Background(), "learner-1", "c1", 80)

	var storeErr *schedule.StoreUnavailableError
	require.ErrorAs(t, err, &storeErr)
	assert.ErrorContains(t, err, "redis: connection refused")
}

func TestService_Sync(t *testing.T) {
	ctx := context.Background()

	t.Run("creates only missing concepts", func(t *testing.T) {
		service, repo := newMemoryService(t)
		existing, _, err := repo.CreateIfAbsent(ctx, "learner-1", "c1", "Cells", testNow.Add(-72*time.Hour))
		require.NoError(t, err)
		reviewed := existing.ApplyReview(90, testNow.Add(-48*time.Hour))
		require.NoError(t, repo.Upsert(ctx, &reviewed))

		created, err := service.Sync(ctx, "learner-1", []schedule.CatalogConcept{
			{ConceptID: "c1", ConceptLabel: "Cells (renamed)"},
			{ConceptID: "c2", ConceptLabel: "Atoms"},
			{ConceptID: "c3", ConceptLabel: "Molecules"},
		})

		require.NoError(t, err)
		assert.Equal(t, 2, created)

		untouched, err := repo.Find(ctx, "learner-1", "c1")
		require.NoError(t, err)
		assert.Equal(t, reviewed, *untouched)

		c2, err := repo.Find(ctx, "learner-1", "c2")
		require.NoError(t, err)
		assert.Equal(t, schedule.NewRecord("learner-1", "c2", "Atoms", testNow), *c2)
	})

	t.Run("is idempotent", func(t *testing.T) {
		service, repo := newMemoryService(t)
		catalogConcepts := []schedule.CatalogConcept{
			{ConceptID: "c1", ConceptLabel: "Cells"},
			{ConceptID: "c2", ConceptLabel: "Atoms"},
		}

		created, err := service.Sync(ctx, "learner-1", catalogConcepts)
		require.NoError(t, err)
		assert.Equal(t, 2, created)
		before, err := repo.Get(ctx, "learner-1")
		require.NoError(t, err)

		created, err = service.Sync(ctx, "learner-1", catalogConcepts)
		require.NoError(t, err)
		assert.Equal(t, 0, created)
		after, err := repo.Get(ctx, "learner-1")
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})

	t.Run("never deletes records missing from the catalog", func(t *testing.T) {
		service, repo := newMemoryService(t)
		_, err := service.Sync(ctx, "learner-1", []schedule.CatalogConcept{{ConceptID: "c1"}, {ConceptID: "c2"}})
		require.NoError(t, err)

		created, err := service.Sync(ctx, "learner-1", []schedule.CatalogConcept{{ConceptID: "c2"}})
		require.NoError(t, err)
		assert.Equal(t, 0, created)

		records, err := repo.Get(ctx, "learner-1")
		require.NoError(t, err)
		assert.Len(t, records, 2)
	})

	t.Run("skips blank and duplicate concepts", func(t *testing.T) {
		service, repo := newMemoryService(t)

		created, err := service.Sync(ctx, "learner-1", []schedule.CatalogConcept{
			{ConceptID: "", ConceptLabel: "No ID"},
			{ConceptID: "c1", ConceptLabel: "First"},
			{ConceptID: "c1", ConceptLabel: "Second"},
		})

		require.NoError(t, err)
		assert.Equal(t, 1, created)
		record, err := repo.Find(ctx, "learner-1", "c1")
		require.NoError(t, err)
		assert.Equal(t, "First", record.ConceptLabel)
	})

	t.Run("store failure is returned", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		repo := mock_schedule.NewMockRepository(ctrl)
		storeErr := &schedule.StoreUnavailableError{Op: "db.SelectContext(schedule_records)", Err: errors.New("timeout")}
		repo.EXPECT().Get(gomock.Any(), "learner-1").Return(nil, storeErr)

		_, err := NewService(repo).Sync(ctx, "learner-1", []schedule.CatalogConcept{{ConceptID: "c1"}})

		assert.ErrorIs(t, err, storeErr)
	})
}

func TestService_Sync_ConcurrentRunsCreateOnce(t *testing.T) {
	service, repo := newMemoryService(t)
	ctx := context.Background()
	catalogConcepts := []schedule.CatalogConcept{{ConceptID: "c1"}, {ConceptID: "c2"}, {ConceptID: "c3"}}

	var mu sync.Mutex
	total := 0
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			created, err := service.Sync(ctx, "learner-1", catalogConcepts)
			assert.NoError(t, err)
			mu.Lock()
			total += created
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, total)
	records, err := repo.Get(ctx, "learner-1")
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestService_SyncFromCatalog(t *testing.T) {
	ctx := context.Background()

	t.Run("pulls from the provider", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		provider := mock_catalog.NewMockProvider(ctrl)
		provider.EXPECT().Concepts(gomock.Any(), "learner-1").
			Return([]schedule.CatalogConcept{{ConceptID: "c1", ConceptLabel: "Cells"}}, nil)
		service, _ := newMemoryService(t, WithCatalog(provider))

		created, err := service.SyncFromCatalog(ctx, "learner-1")

		require.NoError(t, err)
		assert.Equal(t, 1, created)
	})

	t.Run("provider error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		provider := mock_catalog.NewMockProvider(ctrl)
		provider.EXPECT().Concepts(gomock.Any(), "learner-1").Return(nil, errors.New("catalog down"))
		service, _ := newMemoryService(t, WithCatalog(provider))

		_, err := service.SyncFromCatalog(ctx, "learner-1")

		assert.ErrorContains(t, err, "catalog down")
	})

	t.Run("no provider", func(t *testing.T) {
		service, _ := newMemoryService(t)

		_, err := service.SyncFromCatalog(ctx, "learner-1")

		assert.ErrorIs(t, err, ErrNoCatalog)
	})
}

func TestService_Overview(t *testing.T) {
	ctx := context.Background()
	service, repo := newMemoryService(t, WithCatalog(catalog.Static{
		"learner-1": {{ConceptID: "c1", ConceptLabel: "Cells"}, {ConceptID: "c2", ConceptLabel: "Atoms"}},
	}))
	_, err := service.SyncFromCatalog(ctx, "learner-1")
	require.NoError(t, err)
	_, err = service.SubmitReview(ctx, "learner-1", "c2", 95)
	require.NoError(t, err)

	got, err := service.Overview(ctx, "learner-1")

	require.NoError(t, err)
	assert.Equal(t, testNow, got.At)
	require.Len(t, got.Due, 1)
	assert.Equal(t, "c1", got.Due[0].ConceptID)
	require.Len(t, got.Upcoming, 1)
	assert.Equal(t, "c2", got.Upcoming[0].ConceptID)
	assert.Empty(t, got.Mastered)
	assert.Equal(t, 2, got.Summary.Total)
	assert.Equal(t, 1, got.Summary.Reviewed)

	records, err := repo.Get(ctx, "learner-1")
	require.NoError(t, err)
	assert.Len(t, records, 2)
}
