// Package testutil provides shared test helpers for creating config files and catalog fixtures.
package testutil

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/at-ishikawa/reviewer/internal/schedule"
)

// Directories are the data directories referenced by a test config.
type Directories struct {
	Schedules string
	Catalogs  string
	Reports   string
}

// SetupTestConfig creates a config file using YAML schedules and catalogs under tmpDir,
// with all referenced directories created.
// Returns the path to the generated config file.
func SetupTestConfig(t *testing.T, tmpDir string) (string, Directories) {
	t.Helper()

	dirs := Directories{
		Schedules: filepath.Join(tmpDir, "schedules"),
		Catalogs:  filepath.Join(tmpDir, "catalogs"),
		Reports:   filepath.Join(tmpDir, "reports"),
	}
	for _, d := range []string{dirs.Schedules, dirs.Catalogs, dirs.Reports} {
		require.NoError(t, os.MkdirAll(d, 0755))
	}

	configContent := fmt.Sprintf(`store:
  driver: yaml
  directory: %s
lock:
  driver: local
catalog:
  driver: yaml
  directory: %s
report:
  output_directory: %s
`,
		dirs.Schedules,
		dirs.Catalogs,
		dirs.Reports,
	)

	cfgPath := filepath.Join(tmpDir, "config.yml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(configContent), 0644))
	return cfgPath, dirs
}

// SetupBrokenConfig creates a config file that cannot be parsed.
func SetupBrokenConfig(t *testing.T, tmpDir string) string {
	t.Helper()
	cfgPath := filepath.Join(tmpDir, "config.yml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("store: [unclosed"), 0644))
	return cfgPath
}

// WriteCatalog writes the catalog of learnerID in the format read by catalog.YAMLProvider.
func WriteCatalog(t *testing.T, catalogsDir, learnerID string, concepts []schedule.CatalogConcept) {
	t.Helper()

	content, err := yaml.Marshal(concepts)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(catalogsDir, url.PathEscape(learnerID)+".yml"), content, 0644))
}
