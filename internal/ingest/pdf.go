package ingest

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/blog-pipeline/internal/model"
)

// PDFIngester extracts PDF text with the pdftotext CLI.
type PDFIngester struct {
	binPath string
}

// NewPDFIngester creates a PDFIngester. If binPath is empty, "pdftotext" is used.
func NewPDFIngester(binPath string) *PDFIngester {
	if binPath == "" {
		binPath = "pdftotext"
	}
	return &PDFIngester{binPath: binPath}
}

func (p *PDFIngester) Ingest(ctx context.Context, path string) (model.SourceContent, error) {
	if _, err := os.Stat(path); err != nil {
		return model.SourceContent{}, eris.Wrapf(err, "ingest: pdf not found: %s", path)
	}
	out, err := p.extract(ctx, path)
	if err != nil {
		return model.SourceContent{}, err
	}

	pages := splitPages(out)
	if len(pages) == 0 {
		return model.SourceContent{}, eris.Errorf("ingest: no text content extracted from pdf: %s", path)
	}
	return model.SourceContent{
		SourceType: model.SourceTypePDF,
		Origin:     path,
		Title:      strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Content:    strings.Join(pages, "\n\n"),
		Metadata:   map[string]any{"page_count": len(pages)},
	}, nil
}

// extract runs pdftotext -layout and returns stdout.
func (p *PDFIngester) extract(ctx context.Context, path string) (string, error) {
	cmd := exec.CommandContext(ctx, p.binPath, "-layout", "-enc", "UTF-8", path, "-")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", eris.Wrapf(err, "ingest: pdftotext failed for %s: %s", path, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// splitPages splits pdftotext output on form feeds and drops blank pages.
func splitPages(out string) []string {
	var pages []string
	for _, page := range strings.Split(out, "\f") {
		if page = strings.TrimSpace(page); page != "" {
			pages = append(pages, page)
		}
	}
	return pages
}
