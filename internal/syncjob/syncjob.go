// Package syncjob synchronizes learners' catalogs on a cron schedule.
package syncjob

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/at-ishikawa/reviewer/internal/metrics"
)

// Syncer creates the schedule records missing from a learner's catalog.
type Syncer interface {
	SyncFromCatalog(ctx context.Context, learnerID string) (int, error)
}

// Job runs a catalog synchronization of every configured learner on each tick of its schedule.
// A run that is still in progress when the next tick fires causes that tick to be skipped.
type Job struct {
	syncer   Syncer
	learners []string
	metrics  *metrics.Metrics
	cron     *cron.Cron
}

// Option configures a Job.
type Option func(*Job)

// WithMetrics records the outcome of each synchronization.
func WithMetrics(m *metrics.Metrics) Option {
	return func(j *Job) {
		j.metrics = m
	}
}

// New parses expression, a standard five-field cron expression or a descriptor such as "@every 1h".
func New(syncer Syncer, expression string, learners []string, opts ...Option) (*Job, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	schedule, err := parser.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expression, err)
	}

	logger := cronLogger{logger: slog.Default().With("component", "syncjob")}
	job := &Job{
		syncer:   syncer,
		learners: append([]string(nil), learners...),
		cron:     cron.New(cron.WithLogger(logger), cron.WithChain(cron.SkipIfStillRunning(logger))),
	}
	for _, opt := range opts {
		opt(job)
	}
	job.cron.Schedule(schedule, cron.FuncJob(func() {
		job.RunOnce(context.Background())
	}))
	return job, nil
}

// RunOnce synchronizes every learner and returns the number of records created.
// A failing learner is logged and does not stop the others.
func (j *Job) RunOnce(ctx context.Context) int {
	total, failed := 0, 0
	for _, learnerID := range j.learners {
		created, err := j.syncer.SyncFromCatalog(ctx, learnerID)
		if j.metrics != nil {
			j.metrics.ObserveSync(created, err)
		}
		if err != nil {
			failed++
			slog.Default().Error("Scheduled catalog sync failed",
				"learner", learnerID,
				"error", err)
			continue
		}
		total += created
	}

	slog.Default().Debug("Scheduled catalog sync finished",
		"learners", len(j.learners),
		"failed", failed,
		"created", total)
	return total
}

// Start runs the schedule in its own goroutine.
func (j *Job) Start() {
	j.cron.Start()
}

// Stop stops scheduling new runs and waits for a running one to finish or ctx to be done.
func (j *Job) Stop(ctx context.Context) error {
	select {
	case <-j.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger writes cron's logs through slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
