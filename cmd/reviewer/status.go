package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/at-ishikawa/reviewer/internal/config"
	"github.com/at-ishikawa/reviewer/internal/review"
	"github.com/at-ishikawa/reviewer/internal/schedule"
)

// BucketFlag selects which schedule buckets the status command prints.
type BucketFlag string

const (
	BucketAll      BucketFlag = "all"
	BucketDue      BucketFlag = "due"
	BucketUpcoming BucketFlag = "upcoming"
	BucketMastered BucketFlag = "mastered"
)

// Set implements pflag.Value.
func (b *BucketFlag) Set(v string) error {
	switch BucketFlag(v) {
	case BucketAll, BucketDue, BucketUpcoming, BucketMastered:
		*b = BucketFlag(v)
	default:
		return fmt.Errorf("invalid value %q, valid values are %q, %q, %q or %q", v, BucketAll, BucketDue, BucketUpcoming, BucketMastered)
	}
	return nil
}

// String implements pflag.Value.
func (b *BucketFlag) String() string {
	if b == nil {
		return ""
	}
	return string(*b)
}

// Type implements pflag.Value.
func (b *BucketFlag) Type() string {
	return "BucketFlag"
}

var (
	_ pflag.Value = (*BucketFlag)(nil)
)

func (b BucketFlag) includes(bucket BucketFlag) bool {
	return b == BucketAll || b == bucket
}

func newStatusCommand() *cobra.Command {
	var outputJSON bool
	only := BucketAll

	cmd := &cobra.Command{
		Use:   "status <learner-id>",
		Short: "Show due, upcoming and mastered concepts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			learnerID := args[0]
			return runWithService(cmd, func(ctx context.Context, cfg *config.Config, service *review.Service) error {
				overview, err := service.Overview(ctx, learnerID)
				if err != nil {
					return fmt.Errorf("service.Overview(%s) > %w", learnerID, err)
				}
				if outputJSON {
					encoder := json.NewEncoder(cmd.OutOrStdout())
					encoder.SetIndent("", "  ")
					return encoder.Encode(overview)
				}
				return printOverview(cmd.OutOrStdout(), overview, only)
			})
		},
	}

	cmd.Flags().BoolVar(&outputJSON, "json", false, "Output as JSON")
	cmd.Flags().Var(&only, "only", "Bucket to print. Options: all, due, upcoming, mastered")

	return cmd
}

func printOverview(w io.Writer, overview review.Overview, only BucketFlag) error {
	bold := color.New(color.Bold)
	sections := []struct {
		bucket  BucketFlag
		title   string
		heading *color.Color
		records []schedule.Record
		empty   string
	}{
		{bucket: BucketDue, title: "Due", heading: color.New(color.FgRed, color.Bold), records: overview.Due, empty: "Nothing is due."},
		{bucket: BucketUpcoming, title: "Upcoming", heading: color.New(color.FgCyan, color.Bold), records: overview.Upcoming, empty: "Nothing is scheduled."},
		{bucket: BucketMastered, title: "Mastered", heading: color.New(color.FgGreen, color.Bold), records: overview.Mastered, empty: "No concept is mastered yet."},
	}

	summary := overview.Summary
	if _, err := bold.Fprintf(w, "%d concepts, %d reviewed, average easiness %.2f\n",
		summary.Total, summary.Reviewed, summary.AverageEF); err != nil {
		return err
	}
	for _, section := range sections {
		if !only.includes(section.bucket) {
			continue
		}
		if _, err := section.heading.Fprintf(w, "\n%s (%d)\n", section.title, len(section.records)); err != nil {
			return err
		}
		if len(section.records) == 0 {
			if _, err := fmt.Fprintf(w, "  %s\n", section.empty); err != nil {
				return err
			}
			continue
		}
		for _, record := range section.records {
			if _, err := fmt.Fprintf(w, "  %-30s %-16s %-12s next %s\n",
				displayLabel(record),
				schedule.IntervalLabel(record.IntervalDays),
				schedule.RepetitionsLabel(record.Repetitions),
				record.NextReviewAt.Format("2006-01-02 15:04")); err != nil {
				return err
			}
		}
	}
	return nil
}
