package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/avast/retry-go"
	"resty.dev/v3"

	"github.com/at-ishikawa/reviewer/internal/schedule"
)

const maxPages = 1000

// HTTPConfig configures an HTTPProvider.
type HTTPConfig struct {
	BaseURL          string
	Token            string
	Timeout          time.Duration
	MaxRetryAttempts uint
	RetryDelay       time.Duration
}

// HTTPProvider fetches catalogs from a content service over HTTP.
// It follows next_page_token until the last page.
type HTTPProvider struct {
	httpClient       *resty.Client
	maxRetryAttempts uint
	retryDelay       time.Duration
}

// NewHTTPProvider creates an HTTPProvider.
func NewHTTPProvider(config HTTPConfig) *HTTPProvider {
	client := resty.New()
	client.SetBaseURL(config.BaseURL)
	client.SetHeader("Accept", "application/json")
	if config.Token != "" {
		client.SetAuthToken(config.Token)
	}
	if config.Timeout > 0 {
		client.SetTimeout(config.Timeout)
	}

	retryDelay := config.RetryDelay
	if retryDelay <= 0 {
		retryDelay = 100 * time.Millisecond
	}
	return &HTTPProvider{
		httpClient:       client,
		maxRetryAttempts: config.MaxRetryAttempts,
		retryDelay:       retryDelay,
	}
}

func (p *HTTPProvider) Close() error {
	return p.httpClient.Close()
}

type conceptPage struct {
	Concepts      []schedule.CatalogConcept `json:"concepts"`
	NextPageToken string                    `json:"next_page_token"`
}

// StatusError is returned when the catalog service answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("catalog response error %d: %s", e.StatusCode, e.Body)
}

func (p *HTTPProvider) Concepts(ctx context.Context, learnerID string) ([]schedule.CatalogConcept, error) {
	concepts := make([]schedule.CatalogConcept, 0)
	seenTokens := make(map[string]bool)
	pageToken := ""
	for page := 0; page < maxPages; page++ {
		result, err := p.fetchPageWithRetry(ctx, learnerID, pageToken)
		if err != nil {
			return nil, err
		}
		concepts = append(concepts, result.Concepts...)

		if result.NextPageToken == "" {
			return concepts, nil
		}
		if seenTokens[result.NextPageToken] {
			return nil, fmt.Errorf("catalog pagination loop at token %q", result.NextPageToken)
		}
		seenTokens[result.NextPageToken] = true
		pageToken = result.NextPageToken
	}
	return nil, fmt.Errorf("catalog for learner %q exceeds %d pages", learnerID, maxPages)
}

func (p *HTTPProvider) fetchPageWithRetry(ctx context.Context, learnerID, pageToken string) (conceptPage, error) {
	var result conceptPage
	err := retry.Do(
		func() error {
			page, err := p.fetchPage(ctx, learnerID, pageToken)
			if err != nil {
				if !isRetryableError(ctx, err) {
					return retry.Unrecoverable(err)
				}
				return err
			}
			result = page
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(p.maxRetryAttempts+1),
		retry.Delay(p.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			slog.Default().Info("Retrying catalog request",
				"attempt", n+1,
				"learner", learnerID,
				"error", err)
		}),
	)
	if err != nil {
		return conceptPage{}, fmt.Errorf("fetch catalog page for %q > %w", learnerID, err)
	}
	return result, nil
}

func (p *HTTPProvider) fetchPage(ctx context.Context, learnerID, pageToken string) (conceptPage, error) {
	var page conceptPage
	req := p.httpClient.R().
		SetContext(ctx).
		SetPathParam("learnerID", learnerID).
		SetResult(&page)
	if pageToken != "" {
		req.SetQueryParam("page_token", pageToken)
	}

	res, err := req.Get("/learners/{learnerID}/concepts")
	if err != nil {
		return conceptPage{}, fmt.Errorf("client.R().Get > %w", err)
	}
	if res.IsError() {
		return conceptPage{}, &StatusError{StatusCode: res.StatusCode(), Body: res.String()}
	}
	return page, nil
}

// isRetryableError retries transport failures, rate limiting and 5xx responses.
func isRetryableError(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode >= http.StatusInternalServerError
	}
	return true
}
