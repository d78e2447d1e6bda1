// Package metrics exposes Prometheus collectors for review intake and catalog synchronization.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/at-ishikawa/reviewer/internal/schedule"
)

const namespace = "reviewer"

// Result labels.
const (
	ResultOK             = "ok"
	ResultInvalidScore   = "invalid_score"
	ResultUnknownConcept = "unknown_concept"
	ResultUnavailable    = "unavailable"
	ResultError          = "error"
)

// Metrics holds the collectors of a server.
type Metrics struct {
	reviews        *prometheus.CounterVec
	reviewQuality  *prometheus.HistogramVec
	reviewDuration prometheus.Histogram
	syncs          *prometheus.CounterVec
	createdRecords prometheus.Counter
	dueRecords     prometheus.Gauge
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		reviews: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reviews_total",
			Help:      "Number of submitted reviews by result.",
		}, []string{"result"}),
		reviewQuality: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "review_quality",
			Help:      "SM-2 quality of accepted reviews.",
			Buckets:   []float64{0, 1, 2, 3, 4, 5},
		}, []string{"outcome"}),
		reviewDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "review_duration_seconds",
			Help:      "Time spent recording a review, including lock waits and retries.",
			Buckets:   prometheus.DefBuckets,
		}),
		syncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_syncs_total",
			Help:      "Number of catalog synchronizations by result.",
		}, []string{"result"}),
		createdRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "schedule_records_created_total",
			Help:      "Number of schedule records created by catalog synchronization.",
		}),
		dueRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_listed_due_records",
			Help:      "Number of due records in the most recent schedule listing.",
		}),
	}
	reg.MustRegister(
		m.reviews,
		m.reviewQuality,
		m.reviewDuration,
		m.syncs,
		m.createdRecords,
		m.dueRecords,
	)
	return m
}

// ObserveReview records the outcome of a review submission.
// quality is ignored unless err is nil.
func (m *Metrics) ObserveReview(quality int, elapsed time.Duration, err error) {
	m.reviews.WithLabelValues(Result(err)).Inc()
	m.reviewDuration.Observe(elapsed.Seconds())
	if err != nil {
		return
	}
	outcome := "passed"
	if quality < 3 {
		outcome = "failed"
	}
	m.reviewQuality.WithLabelValues(outcome).Observe(float64(quality))
}

// ObserveSync records the outcome of a catalog synchronization.
func (m *Metrics) ObserveSync(created int, err error) {
	m.syncs.WithLabelValues(Result(err)).Inc()
	if created > 0 {
		m.createdRecords.Add(float64(created))
	}
}

// ObserveListing records the size of the due bucket of a listing.
func (m *Metrics) ObserveListing(due int) {
	m.dueRecords.Set(float64(due))
}

// Result maps an operation error to a result label.
func Result(err error) string {
	if err == nil {
		return ResultOK
	}
	var (
		invalidScore   *schedule.InvalidScoreError
		unknownConcept *schedule.UnknownConceptError
		unavailable    *schedule.StoreUnavailableError
	)
	switch {
	case errors.As(err, &invalidScore):
		return ResultInvalidScore
	case errors.As(err, &unknownConcept):
		return ResultUnknownConcept
	case errors.As(err, &unavailable):
		return ResultUnavailable
	default:
		return ResultError
	}
}
