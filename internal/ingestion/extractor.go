// Package ingestion turns uploaded or fetched files into plain text.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var ErrUnsupportedFile = errors.New("unsupported file type")

// Document is the extracted text of one file, page by page.
type Document struct {
	Path       string
	Source     string // "local", "upload" or "gdrive"
	Title      string
	ImportedAt time.Time
	Pages      []string
}

// Text joins the pages with newlines.
func (d *Document) Text() string {
	return strings.Join(d.Pages, "\n")
}

// ExtractText detects file type and returns text via direct extraction or OCR.
func ExtractText(ctx context.Context, path string) (string, error) {
	doc, err := Load(ctx, path, "local")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(doc.Text()), nil
}

// Load extracts path into a Document. PDFs keep their page structure; a
// PDF with no text layer at all is OCRed page by page.
func Load(ctx context.Context, path, source string) (*Document, error) {
	doc := &Document{
		Path:       path,
		Source:     source,
		Title:      strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		ImportedAt: time.Now(),
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".txt", ".md":
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		doc.Pages = []string{string(b)}
	case ".pdf":
		pages, err := ExtractPDFPages(path)
		if err == nil && !blank(pages) {
			doc.Pages = pages
			break
		}
		// scanned document
		pages, err = OCRPages(ctx, path)
		if err != nil {
			return nil, err
		}
		doc.Pages = pages
	case ".png", ".jpg", ".jpeg":
		pages, err := OCRPages(ctx, path)
		if err != nil {
			return nil, err
		}
		doc.Pages = pages
	default:
		return nil, fmt.Errorf("%s: %w", ext, ErrUnsupportedFile)
	}
	return doc, nil
}

func blank(pages []string) bool {
	for _, p := range pages {
		if strings.TrimSpace(p) != "" {
			return false
		}
	}
	return true
}
