package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/at-ishikawa/reviewer/internal/config"
	"github.com/at-ishikawa/reviewer/internal/review"
	"github.com/at-ishikawa/reviewer/internal/schedule"
)

func newReviewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "review <learner-id> <concept-id> <score>",
		Short: "Record a review scored from 0 to 100 and reschedule the concept",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			learnerID, conceptID := args[0], args[1]
			score, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("score must be an integer between 0 and 100: %q", args[2])
			}

			return runWithService(cmd, func(ctx context.Context, cfg *config.Config, service *review.Service) error {
				record, err := service.SubmitReview(ctx, learnerID, conceptID, score)
				if err != nil {
					return fmt.Errorf("service.SubmitReview(%s, %s) > %w", learnerID, conceptID, err)
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Next review of %s on %s (%s, %s, easiness %.2f)\n",
					displayLabel(record),
					record.NextReviewAt.Format("2006-01-02"),
					schedule.IntervalLabel(record.IntervalDays),
					schedule.RepetitionsLabel(record.Repetitions),
					record.EasinessFactor)
				return err
			})
		},
	}
}

func displayLabel(record schedule.Record) string {
	if record.ConceptLabel == "" {
		return record.ConceptID
	}
	return record.ConceptLabel
}
