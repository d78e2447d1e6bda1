package report

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mandolyte/mdtopdf"
)

// WritePDF renders the report of data and writes it as an A4 PDF at path.
func WritePDF(path, templatePath string, data Data) error {
	if filepath.Ext(path) != ".pdf" {
		return fmt.Errorf("PDF report path must have .pdf extension: %s", path)
	}

	var markdown bytes.Buffer
	if err := Render(&markdown, templatePath, data); err != nil {
		return fmt.Errorf("Render() > %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("os.MkdirAll(%s) > %w", filepath.Dir(path), err)
	}

	renderer := mdtopdf.NewPdfRenderer("P", "A4", path, "", nil, mdtopdf.LIGHT)
	if err := renderer.Process(markdown.Bytes()); err != nil {
		return fmt.Errorf("renderer.Process(%s) > %w", path, err)
	}
	return nil
}
