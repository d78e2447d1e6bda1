// Package datasync copies schedule records from YAML files into another store.
package datasync

import (
	"context"
	"fmt"
	"io"

	"github.com/at-ishikawa/reviewer/internal/schedule"
)

// ImportResult tracks counts of an import.
type ImportResult struct {
	Learners       int
	RecordsNew     int
	RecordsSkipped int
	RecordsUpdated int
}

// ImportOptions controls import behavior.
type ImportOptions struct {
	DryRun bool
	// UpdateExisting overwrites destination records that were reviewed less recently than the source.
	UpdateExisting bool
}

// Source lists and reads the records to import.
type Source interface {
	LearnerIDs() ([]string, error)
	Get(ctx context.Context, learnerID string) ([]schedule.Record, error)
}

// Importer reads schedule records from a source and writes them to a repository.
type Importer struct {
	source      Source
	destination schedule.Repository
	writer      io.Writer
}

// NewImporter creates a new Importer.
func NewImporter(source Source, destination schedule.Repository, writer io.Writer) *Importer {
	return &Importer{
		source:      source,
		destination: destination,
		writer:      writer,
	}
}

// Import copies every record of every learner in the source.
func (imp *Importer) Import(ctx context.Context, opts ImportOptions) (*ImportResult, error) {
	learnerIDs, err := imp.source.LearnerIDs()
	if err != nil {
		return nil, fmt.Errorf("source.LearnerIDs() > %w", err)
	}

	var result ImportResult
	for _, learnerID := range learnerIDs {
		records, err := imp.source.Get(ctx, learnerID)
		if err != nil {
			return nil, fmt.Errorf("source.Get(%s) > %w", learnerID, err)
		}
		result.Learners++
		for _, record := range records {
			if err := imp.importRecord(ctx, record, opts, &result); err != nil {
				return nil, fmt.Errorf("importRecord(%s) > %w", record.Key(), err)
			}
		}
	}
	return &result, nil
}

func (imp *Importer) importRecord(ctx context.Context, record schedule.Record, opts ImportOptions, result *ImportResult) error {
	existing, err := imp.destination.Find(ctx, record.LearnerID, record.ConceptID)
	if err != nil {
		return fmt.Errorf("destination.Find() > %w", err)
	}

	if existing != nil {
		if !opts.UpdateExisting || !isNewer(record, *existing) {
			result.RecordsSkipped++
			fmt.Fprintf(imp.writer, "  [SKIP]  %s\n", record.Key())
			return nil
		}
		if !opts.DryRun {
			if err := imp.overwrite(ctx, record, existing.Version); err != nil {
				return err
			}
		}
		result.RecordsUpdated++
		fmt.Fprintf(imp.writer, "  [UPDATE]  %s\n", record.Key())
		return nil
	}

	if !opts.DryRun {
		created, ok, err := imp.destination.CreateIfAbsent(ctx, record.LearnerID, record.ConceptID, record.ConceptLabel, record.CreatedAt)
		if err != nil {
			return fmt.Errorf("destination.CreateIfAbsent() > %w", err)
		}
		if !ok {
			result.RecordsSkipped++
			fmt.Fprintf(imp.writer, "  [SKIP]  %s\n", record.Key())
			return nil
		}
		if record.IsReviewed() {
			if err := imp.overwrite(ctx, record, created.Version); err != nil {
				return err
			}
		}
	}
	result.RecordsNew++
	fmt.Fprintf(imp.writer, "  [NEW]  %s\n", record.Key())
	return nil
}

// overwrite replaces the scheduling state of the destination record, which must be at version.
func (imp *Importer) overwrite(ctx context.Context, record schedule.Record, version int64) error {
	record.Version = version
	if err := imp.destination.Upsert(ctx, &record); err != nil {
		return fmt.Errorf("destination.Upsert() > %w", err)
	}
	return nil
}

func isNewer(source, destination schedule.Record) bool {
	if source.LastReviewAt == nil {
		return false
	}
	if destination.LastReviewAt == nil {
		return true
	}
	return source.LastReviewAt.After(*destination.LastReviewAt)
}
