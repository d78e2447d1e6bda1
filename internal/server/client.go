package server

import (
	"context"
	"strings"

	"connectrpc.com/connect"
)

// ReviewClient calls the review service over Connect.
type ReviewClient struct {
	syncCatalog  *connect.Client[SyncCatalogRequest, SyncCatalogResponse]
	submitReview *connect.Client[SubmitReviewRequest, SubmitReviewResponse]
	listSchedule *connect.Client[ListScheduleRequest, ListScheduleResponse]
}

// NewReviewClient creates a client for the review service served at baseURL.
func NewReviewClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *ReviewClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(jsonCodec{})}, opts...)
	return &ReviewClient{
		syncCatalog:  connect.NewClient[SyncCatalogRequest, SyncCatalogResponse](httpClient, baseURL+SyncCatalogProcedure, opts...),
		submitReview: connect.NewClient[SubmitReviewRequest, SubmitReviewResponse](httpClient, baseURL+SubmitReviewProcedure, opts...),
		listSchedule: connect.NewClient[ListScheduleRequest, ListScheduleResponse](httpClient, baseURL+ListScheduleProcedure, opts...),
	}
}

func (c *ReviewClient) SyncCatalog(ctx context.Context, req *SyncCatalogRequest) (*SyncCatalogResponse, error) {
	res, err := c.syncCatalog.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}

func (c *ReviewClient) SubmitReview(ctx context.Context, req *SubmitReviewRequest) (*SubmitReviewResponse, error) {
	res, err := c.submitReview.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}

func (c *ReviewClient) ListSchedule(ctx context.Context, req *ListScheduleRequest) (*ListScheduleResponse, error) {
	res, err := c.listSchedule.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}
