// Package report renders a learner's review schedule as Markdown and PDF.
package report

import (
	_ "embed"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/at-ishikawa/reviewer/internal/review"
	"github.com/at-ishikawa/reviewer/internal/schedule"
)

const embeddedTemplateName = "schedule-report.md.go.tmpl"

//go:embed templates/schedule-report.md.go.tmpl
var fallbackTemplate string

// Data is the input of a report template.
type Data struct {
	LearnerID   string
	GeneratedAt time.Time
	Summary     schedule.Summary
	Due         []Row
	Upcoming    []Row
	Mastered    []Row
}

// Row is one schedule record formatted for display.
type Row struct {
	ConceptID        string
	Label            string
	IntervalLabel    string
	RepetitionsLabel string
	EasinessFactor   float64
	NextReviewAt     time.Time
	LastScore        *int
}

// NewData builds report data from a schedule overview.
func NewData(learnerID string, overview review.Overview) Data {
	return Data{
		LearnerID:   learnerID,
		GeneratedAt: overview.At,
		Summary:     overview.Summary,
		Due:         newRows(overview.Due),
		Upcoming:    newRows(overview.Upcoming),
		Mastered:    newRows(overview.Mastered),
	}
}

func newRows(records []schedule.Record) []Row {
	rows := make([]Row, 0, len(records))
	for _, r := range records {
		label := r.ConceptLabel
		if label == "" {
			label = r.ConceptID
		}
		// Pipes would split the Markdown table cell
		label = strings.ReplaceAll(label, "|", `\|`)
		rows = append(rows, Row{
			ConceptID:        r.ConceptID,
			Label:            label,
			IntervalLabel:    schedule.IntervalLabel(r.IntervalDays),
			RepetitionsLabel: schedule.RepetitionsLabel(r.Repetitions),
			EasinessFactor:   r.EasinessFactor,
			NextReviewAt:     r.NextReviewAt,
			LastScore:        r.LastScore,
		})
	}
	return rows
}

// ParseTemplate parses the template at templatePath, or the embedded template
// when templatePath is empty or cannot be parsed.
func ParseTemplate(templatePath string) (*template.Template, error) {
	funcMap := template.FuncMap{
		"date": func(t time.Time) string {
			return t.Format("2006-01-02")
		},
		"datetime": func(t time.Time) string {
			return t.Format("2006-01-02 15:04 MST")
		},
		"score": func(score *int) string {
			if score == nil {
				return "-"
			}
			return fmt.Sprintf("%d", *score)
		},
	}

	if templatePath != "" {
		if _, err := os.Stat(templatePath); err == nil {
			tmpl, err := template.New(filepath.Base(templatePath)).
				Funcs(funcMap).
				ParseFiles(templatePath)
			if err == nil {
				return tmpl, nil
			}
			slog.Default().Warn("failed to parse a report template",
				slog.String("templatePath", templatePath),
				slog.Any("error", err),
			)
		}
	}

	tmpl, err := template.New(embeddedTemplateName).
		Funcs(funcMap).
		Parse(fallbackTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse embedded template: %w", err)
	}
	return tmpl, nil
}

// Render writes the Markdown report of data to output.
func Render(output io.Writer, templatePath string, data Data) error {
	tmpl, err := ParseTemplate(templatePath)
	if err != nil {
		return fmt.Errorf("ParseTemplate() > %w", err)
	}
	if err := tmpl.Execute(output, data); err != nil {
		return fmt.Errorf("tmpl.Execute() > %w", err)
	}
	return nil
}

// WriteMarkdown renders the report into a new file at path.
func WriteMarkdown(path, templatePath string, data Data) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("os.MkdirAll(%s) > %w", filepath.Dir(path), err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("os.Create(%s) > %w", path, err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("file.Close(%s) > %w", path, closeErr)
		}
	}()

	if err := Render(file, templatePath, data); err != nil {
		return fmt.Errorf("Render() > %w", err)
	}
	return nil
}
