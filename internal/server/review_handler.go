// Package server provides the Connect RPC handlers of the review service.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/go-playground/validator/v10"

	"github.com/at-ishikawa/reviewer/internal/catalog"
	"github.com/at-ishikawa/reviewer/internal/metrics"
	"github.com/at-ishikawa/reviewer/internal/review"
	"github.com/at-ishikawa/reviewer/internal/schedule"
	"github.com/at-ishikawa/reviewer/internal/sm2"
)

const ReviewServiceName = "reviewer.v1.ReviewService"

const (
	SyncCatalogProcedure  = "/" + ReviewServiceName + "/SyncCatalog"
	SubmitReviewProcedure = "/" + ReviewServiceName + "/SubmitReview"
	ListScheduleProcedure = "/" + ReviewServiceName + "/ListSchedule"
)

// ReviewHandler serves the review service RPCs.
type ReviewHandler struct {
	service  *review.Service
	metrics  *metrics.Metrics
	validate *validator.Validate
}

// NewReviewHandler creates a new ReviewHandler.
func NewReviewHandler(service *review.Service, m *metrics.Metrics) *ReviewHandler {
	return &ReviewHandler{
		service:  service,
		metrics:  m,
		validate: validator.New(),
	}
}

// NewReviewServiceHandler builds an HTTP handler serving every procedure of the review service.
// It returns the path prefix to mount the handler on.
func NewReviewServiceHandler(h *ReviewHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)
	syncCatalog := connect.NewUnaryHandler(SyncCatalogProcedure, h.SyncCatalog, opts...)
	submitReview := connect.NewUnaryHandler(SubmitReviewProcedure, h.SubmitReview, opts...)
	listSchedule := connect.NewUnaryHandler(ListScheduleProcedure, h.ListSchedule, opts...)

	return "/" + ReviewServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case SyncCatalogProcedure:
			syncCatalog.ServeHTTP(w, r)
		case SubmitReviewProcedure:
			submitReview.ServeHTTP(w, r)
		case ListScheduleProcedure:
			listSchedule.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// SyncCatalog creates schedule records for new catalog concepts.
func (h *ReviewHandler) SyncCatalog(
	ctx context.Context,
	req *connect.Request[SyncCatalogRequest],
) (*connect.Response[SyncCatalogResponse], error) {
	if err := h.validateRequest(req.Msg); err != nil {
		return nil, err
	}

	var (
		created int
		err     error
	)
	if req.Msg.Concepts == nil {
		created, err = h.service.SyncFromCatalog(ctx, req.Msg.LearnerID)
	} else {
		created, err = h.service.Sync(ctx, req.Msg.LearnerID, req.Msg.Concepts)
	}
	h.metrics.ObserveSync(created, err)
	if err != nil {
		return nil, toConnectError(fmt.Errorf("sync catalog(%s): %w", req.Msg.LearnerID, err))
	}

	return connect.NewResponse(&SyncCatalogResponse{Created: created}), nil
}

// SubmitReview records a review score and returns the rescheduled record.
func (h *ReviewHandler) SubmitReview(
	ctx context.Context,
	req *connect.Request[SubmitReviewRequest],
) (*connect.Response[SubmitReviewResponse], error) {
	if err := h.validateRequest(req.Msg); err != nil {
		return nil, err
	}

	start := time.Now()
	record, err := h.service.SubmitReview(ctx, req.Msg.LearnerID, req.Msg.ConceptID, req.Msg.Score)
	h.metrics.ObserveReview(sm2.QualityFromScore(req.Msg.Score), time.Since(start), err)
	if err != nil {
		return nil, toConnectError(fmt.Errorf("submit review(%s/%s): %w", req.Msg.LearnerID, req.Msg.ConceptID, err))
	}

	return connect.NewResponse(&SubmitReviewResponse{Record: newRecordView(record)}), nil
}

// ListSchedule returns the learner's records split into due, upcoming and mastered.
func (h *ReviewHandler) ListSchedule(
	ctx context.Context,
	req *connect.Request[ListScheduleRequest],
) (*connect.Response[ListScheduleResponse], error) {
	if err := h.validateRequest(req.Msg); err != nil {
		return nil, err
	}

	overview, err := h.service.Overview(ctx, req.Msg.LearnerID)
	if err != nil {
		return nil, toConnectError(fmt.Errorf("list schedule(%s): %w", req.Msg.LearnerID, err))
	}
	h.metrics.ObserveListing(len(overview.Due))

	return connect.NewResponse(&ListScheduleResponse{
		At:       overview.At,
		Due:      newRecordViews(overview.Due),
		Upcoming: newRecordViews(overview.Upcoming),
		Mastered: newRecordViews(overview.Mastered),
		Summary:  overview.Summary,
	}), nil
}

func (h *ReviewHandler) validateRequest(msg any) *connect.Error {
	if err := h.validate.Struct(msg); err != nil {
		return connect.NewError(connect.CodeInvalidArgument, err)
	}
	return nil
}

func toConnectError(err error) *connect.Error {
	var (
		invalidScore   *schedule.InvalidScoreError
		unknownConcept *schedule.UnknownConceptError
		notFound       *schedule.NotFoundError
		unavailable    *schedule.StoreUnavailableError
		catalogStatus  *catalog.StatusError
	)
	switch {
	case errors.As(err, &invalidScore):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.As(err, &unknownConcept), errors.Is(err, review.ErrNoCatalog):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.As(err, &notFound):
		return connect.NewError(connect.CodeInternal, err)
	case errors.As(err, &unavailable), errors.As(err, &catalogStatus):
		return connect.NewError(connect.CodeUnavailable, err)
	case errors.Is(err, schedule.ErrVersionConflict):
		return connect.NewError(connect.CodeAborted, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}
