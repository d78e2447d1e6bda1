package catalog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/at-ishikawa/reviewer/internal/schedule"
)

// YAMLProvider reads catalogs from <directory>/<learner ID>.yml files.
// Each file is a list of {id, label} entries. A missing file is an empty catalog.
type YAMLProvider struct {
	directory string
}

// NewYAMLProvider creates a YAMLProvider.
func NewYAMLProvider(directory string) *YAMLProvider {
	return &YAMLProvider{directory: directory}
}

func (p *YAMLProvider) Concepts(_ context.Context, learnerID string) ([]schedule.CatalogConcept, error) {
	path := filepath.Join(p.directory, url.PathEscape(learnerID)+".yml")
	content, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return []schedule.CatalogConcept{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("os.ReadFile(%s) > %w", path, err)
	}

	concepts := make([]schedule.CatalogConcept, 0)
	if err := yaml.Unmarshal(content, &concepts); err != nil {
		return nil, fmt.Errorf("yaml.Unmarshal(%s) > %w", path, err)
	}
	return concepts, nil
}
