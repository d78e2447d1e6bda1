package server

import (
	"time"

	"github.com/at-ishikawa/reviewer/internal/schedule"
)

type SyncCatalogRequest struct {
	LearnerID string `json:"learner_id" validate:"required"`
	// Concepts is the catalog to synchronize. When omitted, the server's catalog provider is used.
	Concepts []schedule.CatalogConcept `json:"concepts,omitempty"`
}

type SyncCatalogResponse struct {
	Created int `json:"created"`
}

type SubmitReviewRequest struct {
	LearnerID string `json:"learner_id" validate:"required"`
	ConceptID string `json:"concept_id" validate:"required"`
	Score     int    `json:"score"`
}

type SubmitReviewResponse struct {
	Record RecordView `json:"record"`
}

type ListScheduleRequest struct {
	LearnerID string `json:"learner_id" validate:"required"`
}

type ListScheduleResponse struct {
	At       time.Time        `json:"at"`
	Due      []RecordView     `json:"due"`
	Upcoming []RecordView     `json:"upcoming"`
	Mastered []RecordView     `json:"mastered"`
	Summary  schedule.Summary `json:"summary"`
}

// RecordView is a schedule record with display labels.
type RecordView struct {
	schedule.Record
	IntervalLabel    string `json:"interval_label"`
	RepetitionsLabel string `json:"repetitions_label"`
}

func newRecordView(record schedule.Record) RecordView {
	return RecordView{
		Record:           record,
		IntervalLabel:    schedule.IntervalLabel(record.IntervalDays),
		RepetitionsLabel: schedule.RepetitionsLabel(record.Repetitions),
	}
}

func newRecordViews(records []schedule.Record) []RecordView {
	views := make([]RecordView, 0, len(records))
	for _, record := range records {
		views = append(views, newRecordView(record))
	}
	return views
}
