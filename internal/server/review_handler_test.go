package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/at-ishikawa/reviewer/internal/catalog"
	"github.com/at-ishikawa/reviewer/internal/metrics"
	mock_schedule "github.com/at-ishikawa/reviewer/internal/mocks/schedule"
	"github.com/at-ishikawa/reviewer/internal/review"
	"github.com/at-ishikawa/reviewer/internal/schedule"
)

var testNow = time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

type testServer struct {
	client   *ReviewClient
	url      string
	registry *prometheus.Registry
}

func newTestServer(t *testing.T, repo schedule.Repository, health HealthCheck, opts ...review.Option) testServer {
	t.Helper()

	opts = append([]review.Option{review.WithClock(func() time.Time { return testNow })}, opts...)
	service := review.NewService(repo, opts...)
	registry := prometheus.NewRegistry()
	handler := NewReviewHandler(service, metrics.New(registry))

	srv := httptest.NewServer(NewMux(handler, registry, health))
	t.Cleanup(srv.Close)

	return testServer{
		client:   NewReviewClient(srv.Client(), srv.URL),
		url:      srv.URL,
		registry: registry,
	}
}

func connectCode(t *testing.T, err error) connect.Code {
	t.Helper()
	var connectErr *connect.Error
	require.True(t, errors.As(err, &connectErr), "not a connect error: %v", err)
	return connectErr.Code()
}

func TestReviewHandler_SyncCatalog(t *testing.T) {
	tests := []struct {
		name        string
		catalog     catalog.Provider
		req         *SyncCatalogRequest
		wantCreated int
		wantCode    connect.Code
		wantErr     bool
	}{
		{
			name: "creates records for provided concepts",
			req: &SyncCatalogRequest{
				LearnerID: "learner-1",
				Concepts: []schedule.CatalogConcept{
					{ConceptID: "c1", ConceptLabel: "Cells"},
					{ConceptID: "c2", ConceptLabel: "Atoms"},
				},
			},
			wantCreated: 2,
		},
		{
			name: "pulls concepts from the catalog provider",
			catalog: catalog.Static{
				"learner-1": {{ConceptID: "c1", ConceptLabel: "Cells"}},
			},
			req:         &SyncCatalogRequest{LearnerID: "learner-1"},
			wantCreated: 1,
		},
		{
			name:     "returns INVALID_ARGUMENT without learner",
			req:      &SyncCatalogRequest{},
			wantCode: connect.CodeInvalidArgument,
			wantErr:  true,
		},
		{
			name:     "returns FAILED_PRECONDITION without catalog provider",
			req:      &SyncCatalogRequest{LearnerID: "learner-1"},
			wantCode: connect.CodeFailedPrecondition,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts []review.Option
			if tt.catalog != nil {
				opts = append(opts, review.WithCatalog(tt.catalog))
			}
			ts := newTestServer(t, schedule.NewMemoryRepository(), nil, opts...)

			resp, err := ts.client.SyncCatalog(context.Background(), tt.req)

			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, resp)
				assert.Equal(t, tt.wantCode, connectCode(t, err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCreated, resp.Created)
		})
	}
}

func TestReviewHandler_SubmitReview(t *testing.T) {
	tests := []struct {
		name     string
		req      *SubmitReviewRequest
		wantCode connect.Code
		wantErr  bool
	}{
		{
			name: "reschedules a synchronized concept",
			req:  &SubmitReviewRequest{LearnerID: "learner-1", ConceptID: "c1", Score: 100},
		},
		{
			name:     "returns INVALID_ARGUMENT for score out of range",
			req:      &SubmitReviewRequest{LearnerID: "learner-1", ConceptID: "c1", Score: 150},
			wantCode: connect.CodeInvalidArgument,
			wantErr:  true,
		},
		{
			name:     "returns INVALID_ARGUMENT without concept",
			req:      &SubmitReviewRequest{LearnerID: "learner-1", Score: 80},
			wantCode: connect.CodeInvalidArgument,
			wantErr:  true,
		},
		{
			name:     "returns FAILED_PRECONDITION for unknown concept",
			req:      &SubmitReviewRequest{LearnerID: "learner-1", ConceptID: "missing", Score: 80},
			wantCode: connect.CodeFailedPrecondition,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, schedule.NewMemoryRepository(), nil)
			_, err := ts.client.SyncCatalog(context.Background(), &SyncCatalogRequest{
				LearnerID: "learner-1",
				Concepts:  []schedule.CatalogConcept{{ConceptID: "c1", ConceptLabel: "Cells"}},
			})
			require.NoError(t, err)

			resp, err := ts.client.SubmitReview(context.Background(), tt.req)

			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, connectCode(t, err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "c1", resp.Record.ConceptID)
			assert.Equal(t, 1, resp.Record.Repetitions)
			assert.Equal(t, 1, resp.Record.IntervalDays)
			assert.Equal(t, "daily", resp.Record.IntervalLabel)
			assert.Equal(t, "1 review", resp.Record.RepetitionsLabel)
			assert.True(t, testNow.AddDate(0, 0, 1).Equal(resp.Record.NextReviewAt))
		})
	}
}

func TestReviewHandler_SubmitReview_StoreUnavailable(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mock_schedule.NewMockRepository(ctrl)
	repo.EXPECT().Find(gomock.Any(), "learner-1", "c1").
		Return(nil, &schedule.StoreUnavailableError{Op: "db.GetContext(schedule_record)", Err: errors.New("connection refused")})
	ts := newTestServer(t, repo, nil)

	_, err := ts.client.SubmitReview(context.Background(), &SubmitReviewRequest{LearnerID: "learner-1", ConceptID: "c1", Score: 80})

	require.Error(t, err)
	assert.Equal(t, connect.CodeUnavailable, connectCode(t, err))
}

func TestReviewHandler_ListSchedule(t *testing.T) {
	ts := newTestServer(t, schedule.NewMemoryRepository(), nil)
	ctx := context.Background()
	_, err := ts.client.SyncCatalog(ctx, &SyncCatalogRequest{
		LearnerID: "learner-1",
		Concepts: []schedule.CatalogConcept{
			{ConceptID: "c1", ConceptLabel: "Cells"},
			{ConceptID: "c2", ConceptLabel: "Atoms"},
		},
	})
	require.NoError(t, err)
	_, err = ts.client.SubmitReview(ctx, &SubmitReviewRequest{LearnerID: "learner-1", ConceptID: "c1", Score: 90})
	require.NoError(t, err)

	resp, err := ts.client.ListSchedule(ctx, &ListScheduleRequest{LearnerID: "learner-1"})

	require.NoError(t, err)
	require.Len(t, resp.Due, 1)
	assert.Equal(t, "c2", resp.Due[0].ConceptID)
	assert.Equal(t, "new", resp.Due[0].IntervalLabel)
	require.Len(t, resp.Upcoming, 1)
	assert.Equal(t, "c1", resp.Upcoming[0].ConceptID)
	assert.NotNil(t, resp.Mastered)
	assert.Empty(t, resp.Mastered)
	assert.Equal(t, 2, resp.Summary.Total)

	_, err = ts.client.ListSchedule(ctx, &ListScheduleRequest{})
	require.Error(t, err)
	assert.Equal(t, connect.CodeInvalidArgument, connectCode(t, err))
}

func TestToConnectError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want connect.Code
	}{
		{name: "invalid score", err: &schedule.InvalidScoreError{Score: -1}, want: connect.CodeInvalidArgument},
		{name: "unknown concept", err: &schedule.UnknownConceptError{LearnerID: "l", ConceptID: "c"}, want: connect.CodeFailedPrecondition},
		{name: "no catalog", err: review.ErrNoCatalog, want: connect.CodeFailedPrecondition},
		{name: "record not found", err: &schedule.NotFoundError{LearnerID: "l", ConceptID: "c"}, want: connect.CodeInternal},
		{
			name: "store unavailable",
			err:  fmt.Errorf("repo.Get(l) > %w", &schedule.StoreUnavailableError{Op: "db.SelectContext", Err: errors.New("down")}),
			want: connect.CodeUnavailable,
		},
		{name: "catalog status", err: &catalog.StatusError{StatusCode: http.StatusBadGateway}, want: connect.CodeUnavailable},
		{name: "version conflict", err: schedule.ErrVersionConflict, want: connect.CodeAborted},
		{name: "canceled", err: context.Canceled, want: connect.CodeCanceled},
		{name: "deadline", err: context.DeadlineExceeded, want: connect.CodeDeadlineExceeded},
		{name: "other", err: errors.New("boom"), want: connect.CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, toConnectError(tt.err).Code())
		})
	}
}

func TestNewMux_HealthAndMetrics(t *testing.T) {
	tests := []struct {
		name       string
		health     HealthCheck
		wantStatus int
	}{
		{name: "without check", wantStatus: http.StatusOK},
		{name: "healthy", health: func(context.Context) error { return nil }, wantStatus: http.StatusOK},
		{name: "unhealthy", health: func(context.Context) error { return errors.New("db down") }, wantStatus: http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, schedule.NewMemoryRepository(), tt.health)

			resp, err := http.Get(ts.url + "/healthz")
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}

	t.Run("metrics endpoint exposes review counters", func(t *testing.T) {
		ts := newTestServer(t, schedule.NewMemoryRepository(), nil)
		_, err := ts.client.SubmitReview(context.Background(), &SubmitReviewRequest{LearnerID: "l", ConceptID: "c", Score: 50})
		require.Error(t, err)

		resp, err := http.Get(ts.url + "/metrics")
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), `reviewer_reviews_total{result="unknown_concept"} 1`)
	})
}

func TestCORSMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := CORSMiddleware(next, []string{"http://localhost:3000"})

	tests := []struct {
		name       string
		method     string
		origin     string
		wantOrigin string
		wantStatus int
	}{
		{name: "allowed origin", method: http.MethodPost, origin: "http://localhost:3000", wantOrigin: "http://localhost:3000", wantStatus: http.StatusOK},
		{name: "other origin", method: http.MethodPost, origin: "http://evil.example", wantOrigin: "", wantStatus: http.StatusOK},
		{name: "preflight", method: http.MethodOptions, origin: "http://localhost:3000", wantOrigin: "http://localhost:3000", wantStatus: http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/reviewer.v1.ReviewService/ListSchedule", strings.NewReader("{}"))
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}
