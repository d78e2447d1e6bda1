package schedule

import "fmt"

// IntervalLabel describes a review interval the way it is shown to learners,
// for example "daily", "every 3 days" or "weekly".
func IntervalLabel(intervalDays int) string {
	switch {
	case intervalDays <= 0:
		return "new"
	case intervalDays == 1:
		return "daily"
	case intervalDays < 7:
		return fmt.Sprintf("every %d days", intervalDays)
	case intervalDays < 14:
		return "weekly"
	case intervalDays < 30:
		return fmt.Sprintf("every %d weeks", intervalDays/7)
	case intervalDays < 60:
		return "monthly"
	case intervalDays < 365:
		return fmt.Sprintf("every %d months", intervalDays/30)
	case intervalDays < 730:
		return "yearly"
	default:
		return fmt.Sprintf("every %d years", intervalDays/365)
	}
}

// RepetitionsLabel describes a success streak, for example "3 reviews".
func RepetitionsLabel(repetitions int) string {
	if repetitions < 0 {
		repetitions = 0
	}
	if repetitions == 1 {
		return "1 review"
	}
	return fmt.Sprintf("%d reviews", repetitions)
}
