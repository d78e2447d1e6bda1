package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/at-ishikawa/reviewer/internal/config"
	"github.com/at-ishikawa/reviewer/internal/review"
)

func newSyncCommand() *cobra.Command {
	var concurrency int

	cmd := &cobra.Command{
		Use:   "sync <learner-id>...",
		Short: "Create schedule records for concepts newly added to the learners' catalogs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if concurrency <= 0 {
				return fmt.Errorf("--concurrency must be positive")
			}
			return runWithService(cmd, func(ctx context.Context, cfg *config.Config, service *review.Service) error {
				created, err := syncLearners(ctx, service, args, concurrency)
				if err != nil {
					return err
				}
				for i, learnerID := range args {
					fmt.Fprintf(cmd.OutOrStdout(), "Created %d schedule records for %s\n", created[i], learnerID)
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "Number of learners synchronized at the same time")

	return cmd
}

// syncLearners synchronizes each learner's catalog and returns the created counts in learnerIDs order.
func syncLearners(ctx context.Context, service *review.Service, learnerIDs []string, concurrency int) ([]int, error) {
	created := make([]int, len(learnerIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, learnerID := range learnerIDs {
		g.Go(func() error {
			n, err := service.SyncFromCatalog(gctx, learnerID)
			if err != nil {
				return fmt.Errorf("service.SyncFromCatalog(%s) > %w", learnerID, err)
			}
			created[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return created, nil
}
