package schedule

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// YAMLRepository implements Repository with one YAML file per learner.
// It is safe for concurrent use within a single process only.
type YAMLRepository struct {
	directory string
	mu        sync.Mutex
}

// NewYAMLRepository creates a YAMLRepository storing files under directory.
func NewYAMLRepository(directory string) *YAMLRepository {
	return &YAMLRepository{directory: directory}
}

func (r *YAMLRepository) Get(_ context.Context, learnerID string) ([]Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.load(learnerID)
	if err != nil {
		return nil, err
	}
	result := make([]Record, 0, len(records))
	for _, record := range records {
		result = append(result, record)
	}
	sortRecords(result)
	return result, nil
}

func (r *YAMLRepository) Find(_ context.Context, learnerID, conceptID string) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.load(learnerID)
	if err != nil {
		return nil, err
	}
	record, ok := records[Key{LearnerID: learnerID, ConceptID: conceptID}]
	if !ok {
		return nil, nil
	}
	return &record, nil
}

func (r *YAMLRepository) CreateIfAbsent(_ context.Context, learnerID, conceptID, conceptLabel string, now time.Time) (Record, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.load(learnerID)
	if err != nil {
		return Record{}, false, err
	}
	key := Key{LearnerID: learnerID, ConceptID: conceptID}
	if existing, ok := records[key]; ok {
		return existing, false, nil
	}

	record := NewRecord(learnerID, conceptID, conceptLabel, now)
	records[key] = record
	if err := r.save(learnerID, records); err != nil {
		return Record{}, false, err
	}
	return record, true, nil
}

func (r *YAMLRepository) Upsert(_ context.Context, record *Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.load(record.LearnerID)
	if err != nil {
		return err
	}
	version := record.Version
	if err := upsertInto(records, record); err != nil {
		return err
	}
	if err := r.save(record.LearnerID, records); err != nil {
		record.Version = version
		return err
	}
	return nil
}

// LearnerIDs lists the learners that have a schedule file.
func (r *YAMLRepository) LearnerIDs() ([]string, error) {
	entries, err := os.ReadDir(r.directory)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, unavailable(fmt.Sprintf("os.ReadDir(%s)", r.directory), err)
	}

	learnerIDs := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != ".yml" {
			continue
		}
		learnerID, err := url.PathUnescape(strings.TrimSuffix(name, ".yml"))
		if err != nil {
			continue
		}
		learnerIDs = append(learnerIDs, learnerID)
	}
	sort.Strings(learnerIDs)
	return learnerIDs, nil
}

func (r *YAMLRepository) path(learnerID string) string {
	return filepath.Join(r.directory, url.PathEscape(learnerID)+".yml")
}

func (r *YAMLRepository) load(learnerID string) (map[Key]Record, error) {
	path := r.path(learnerID)
	records := make(map[Key]Record)

	content, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return records, nil
	}
	if err != nil {
		return nil, unavailable(fmt.Sprintf("os.ReadFile(%s)", path), err)
	}

	var list []Record
	if err := yaml.Unmarshal(content, &list); err != nil {
		return nil, fmt.Errorf("yaml.Unmarshal(%s) > %w", path, err)
	}
	for _, record := range list {
		records[record.Key()] = record
	}
	return records, nil
}

func (r *YAMLRepository) save(learnerID string, records map[Key]Record) error {
	list := make([]Record, 0, len(records))
	for _, record := range records {
		list = append(list, record)
	}
	sortRecords(list)

	content, err := yaml.Marshal(list)
	if err != nil {
		return fmt.Errorf("yaml.Marshal > %w", err)
	}
	if err := os.MkdirAll(r.directory, 0755); err != nil {
		return unavailable(fmt.Sprintf("os.MkdirAll(%s)", r.directory), err)
	}

	// Replace the file atomically
	path := r.path(learnerID)
	tmp, err := os.CreateTemp(r.directory, ".schedule-*.yml")
	if err != nil {
		return unavailable("os.CreateTemp", err)
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()
	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		return unavailable(fmt.Sprintf("write(%s)", tmp.Name()), err)
	}
	if err := tmp.Close(); err != nil {
		return unavailable(fmt.Sprintf("close(%s)", tmp.Name()), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return unavailable(fmt.Sprintf("os.Rename(%s)", path), err)
	}
	return nil
}
