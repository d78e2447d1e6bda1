package schedule

import (
	"sort"
	"time"
)

const (
	MasteredRepetitions = 5
	MasteredScore       = 80
)

// Categorize partitions records into due, upcoming and mastered buckets relative to now.
// Each record lands in exactly one bucket; due is checked first, then mastered.
// Due and upcoming are ordered by NextReviewAt, earliest first.
func Categorize(records []Record, now time.Time) (due, upcoming, mastered []Record) {
	due = make([]Record, 0)
	upcoming = make([]Record, 0)
	mastered = make([]Record, 0)

	for _, r := range records {
		switch {
		case !r.NextReviewAt.After(now):
			due = append(due, r)
		case r.IsMastered():
			mastered = append(mastered, r)
		default:
			upcoming = append(upcoming, r)
		}
	}

	byNextReview := func(rs []Record) func(i, j int) bool {
		return func(i, j int) bool {
			return rs[i].NextReviewAt.Before(rs[j].NextReviewAt)
		}
	}
	sort.SliceStable(due, byNextReview(due))
	sort.SliceStable(upcoming, byNextReview(upcoming))
	return due, upcoming, mastered
}

// IsMastered reports whether the record has a long enough streak and a high enough last score.
// It ignores whether the record is currently due.
func (r Record) IsMastered() bool {
	return r.Repetitions >= MasteredRepetitions && r.LastScore != nil && *r.LastScore >= MasteredScore
}

// Summary aggregates a learner's records for display.
type Summary struct {
	Total         int        `json:"total"`
	Due           int        `json:"due"`
	Upcoming      int        `json:"upcoming"`
	Mastered      int        `json:"mastered"`
	Reviewed      int        `json:"reviewed"`
	AverageEF     float64    `json:"average_easiness_factor"`
	NextReviewAt  *time.Time `json:"next_review_at,omitempty"`
	LongestStreak int        `json:"longest_streak"`
}

// Summarize counts records per bucket and computes review statistics.
// NextReviewAt is the earliest review time after now, nil when nothing is upcoming.
func Summarize(records []Record, now time.Time) Summary {
	due, upcoming, mastered := Categorize(records, now)
	summary := Summary{
		Total:    len(records),
		Due:      len(due),
		Upcoming: len(upcoming),
		Mastered: len(mastered),
	}
	if len(records) == 0 {
		return summary
	}

	var efSum float64
	for _, r := range records {
		efSum += r.EasinessFactor
		if r.IsReviewed() {
			summary.Reviewed++
		}
		if r.Repetitions > summary.LongestStreak {
			summary.LongestStreak = r.Repetitions
		}
		if r.NextReviewAt.After(now) && (summary.NextReviewAt == nil || r.NextReviewAt.Before(*summary.NextReviewAt)) {
			next := r.NextReviewAt
			summary.NextReviewAt = &next
		}
	}
	summary.AverageEF = efSum / float64(len(records))
	return summary
}
