// Package sm2 implements the SM-2 spaced repetition scheduling function.
package sm2

import "math"

const (
	DefaultEasinessFactor = 2.5
	MinEasinessFactor     = 1.3

	MinQuality = 0
	MaxQuality = 5

	// PassingQuality is the lowest quality that counts as a successful recall.
	PassingQuality = 3

	MinScore = 0
	MaxScore = 100

	// MaxIntervalDays caps the interval so due dates stay within DATETIME and time.Time range.
	MaxIntervalDays = 36500
)

// Result is the schedule state produced by a single review.
type Result struct {
	IntervalDays   int
	EasinessFactor float64
	Repetitions    int
}

// ComputeNext calculates the next interval, easiness factor and repetition count
// from a quality grade and the prior schedule state.
// Out of range inputs are clamped rather than rejected.
func ComputeNext(quality, priorReps int, priorEF float64, priorIntervalDays int) Result {
	quality = clampQuality(quality)
	if priorReps < 0 {
		priorReps = 0
	}
	if priorEF <= 0 || math.IsNaN(priorEF) || math.IsInf(priorEF, 0) {
		priorEF = DefaultEasinessFactor
	}
	priorEF = math.Max(priorEF, MinEasinessFactor)
	if priorIntervalDays <= 0 {
		priorIntervalDays = 1
	}
	priorIntervalDays = min(priorIntervalDays, MaxIntervalDays)

	ef := UpdateEasinessFactor(priorEF, quality)

	// Failed recall resets the streak
	if quality < PassingQuality {
		return Result{IntervalDays: 1, EasinessFactor: ef, Repetitions: 0}
	}

	reps := priorReps + 1
	return Result{
		IntervalDays:   nextInterval(reps, priorIntervalDays, ef),
		EasinessFactor: ef,
		Repetitions:    reps,
	}
}

// UpdateEasinessFactor applies the SM-2 easiness delta for a quality grade.
// The result never drops below MinEasinessFactor.
func UpdateEasinessFactor(ef float64, quality int) float64 {
	q := float64(clampQuality(quality))
	delta := 0.1 - (5-q)*(0.08+(5-q)*0.02)
	return math.Max(ef+delta, MinEasinessFactor)
}

func nextInterval(reps, lastInterval int, ef float64) int {
	switch reps {
	case 1:
		return 1
	case 2:
		return 6
	default:
		return int(math.Min(math.Round(float64(lastInterval)*ef), MaxIntervalDays))
	}
}

// QualityFromScore maps a 0-100 score onto the 0-5 quality scale.
// Many scores share a grade: scores from 90 upward all map to 5, 70 to 89 map to 4.
func QualityFromScore(score int) int {
	switch {
	case score <= MinScore:
		return MinQuality
	case score >= MaxScore:
		return MaxQuality
	}
	return clampQuality(int(math.Round(float64(score*MaxQuality) / MaxScore)))
}

// IsValidScore reports whether score lies within [MinScore, MaxScore].
func IsValidScore(score int) bool {
	return score >= MinScore && score <= MaxScore
}

func clampQuality(quality int) int {
	if quality < MinQuality {
		return MinQuality
	}
	if quality > MaxQuality {
		return MaxQuality
	}
	return quality
}
