package main

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/at-ishikawa/reviewer/internal/config"
	"github.com/at-ishikawa/reviewer/internal/report"
	"github.com/at-ishikawa/reviewer/internal/review"
)

func newReportCommand() *cobra.Command {
	var (
		outputPath string
		pdf        bool
	)

	cmd := &cobra.Command{
		Use:   "report <learner-id>",
		Short: "Write the learner's review schedule as a Markdown or PDF report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			learnerID := args[0]
			return runWithService(cmd, func(ctx context.Context, cfg *config.Config, service *review.Service) error {
				overview, err := service.Overview(ctx, learnerID)
				if err != nil {
					return fmt.Errorf("service.Overview(%s) > %w", learnerID, err)
				}

				path := outputPath
				if path == "" {
					path = filepath.Join(cfg.Report.OutputDirectory, url.PathEscape(learnerID)+".md")
				}
				data := report.NewData(learnerID, overview)
				if err := report.WriteMarkdown(path, cfg.Report.Template, data); err != nil {
					return fmt.Errorf("report.WriteMarkdown(%s) > %w", path, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Report written to %s\n", path)

				if pdf {
					pdfPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".pdf"
					if err := report.WritePDF(pdfPath, cfg.Report.Template, data); err != nil {
						return fmt.Errorf("report.WritePDF(%s) > %w", pdfPath, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "PDF written to %s\n", pdfPath)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Markdown output path (defaults to <report.output_directory>/<learner-id>.md)")
	cmd.Flags().BoolVar(&pdf, "pdf", false, "Also write the report as a PDF next to the Markdown file")

	return cmd
}
