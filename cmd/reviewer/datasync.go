package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/at-ishikawa/reviewer/internal/database"
	"github.com/at-ishikawa/reviewer/internal/datasync"
	"github.com/at-ishikawa/reviewer/internal/schedule"
)

func newMigrateImportYAMLCommand() *cobra.Command {
	var directory string
	var dryRun, updateExisting bool

	cmd := &cobra.Command{
		Use:   "import-yaml",
		Short: "Import YAML schedule records into the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if directory == "" {
				directory = cfg.Store.Directory
			}
			if directory == "" {
				return fmt.Errorf("--directory is required when store.directory is not configured")
			}

			db, err := database.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("database.Open() > %w", err)
			}
			defer func() {
				_ = db.Close()
			}()

			return importYAML(cmd.Context(), cmd.OutOrStdout(), directory, schedule.NewDBRepository(db), datasync.ImportOptions{
				DryRun:         dryRun,
				UpdateExisting: updateExisting,
			})
		},
	}

	cmd.Flags().StringVar(&directory, "directory", "", "Directory of YAML schedule records (defaults to store.directory)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Preview changes without modifying the database")
	cmd.Flags().BoolVar(&updateExisting, "update-existing", false, "Update records that were reviewed more recently in YAML")
	return cmd
}

func importYAML(ctx context.Context, w io.Writer, directory string, destination schedule.Repository, opts datasync.ImportOptions) error {
	importer := datasync.NewImporter(schedule.NewYAMLRepository(directory), destination, w)
	result, err := importer.Import(ctx, opts)
	if err != nil {
		return fmt.Errorf("importer.Import() > %w", err)
	}

	fmt.Fprintln(w, "\nImport Summary:")
	if opts.DryRun {
		fmt.Fprintln(w, "  (dry-run mode, no changes made)")
	}
	fmt.Fprintf(w, "  Learners: %d\n", result.Learners)
	fmt.Fprintf(w, "  Records:  %d new, %d skipped, %d updated\n", result.RecordsNew, result.RecordsSkipped, result.RecordsUpdated)
	return nil
}
