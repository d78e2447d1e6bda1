// Package catalog reads the reviewable concepts of a learner from the content catalog.
package catalog

import (
	"context"

	"github.com/at-ishikawa/reviewer/internal/schedule"
)

//go:generate mockgen -source=provider.go -destination=../mocks/catalog/mock_provider.go -package=mock_catalog

// Provider returns a snapshot of the concepts available to a learner.
type Provider interface {
	Concepts(ctx context.Context, learnerID string) ([]schedule.CatalogConcept, error)
}

// Static is a Provider backed by a fixed map of learner ID to concepts.
type Static map[string][]schedule.CatalogConcept

func (s Static) Concepts(_ context.Context, learnerID string) ([]schedule.CatalogConcept, error) {
	concepts := s[learnerID]
	result := make([]schedule.CatalogConcept, len(concepts))
	copy(result, concepts)
	return result, nil
}
