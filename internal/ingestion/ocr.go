package ingestion

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// ExtractTextWithOCR runs Tesseract on an image, or on every page of a
// scanned PDF after rendering it with pdftoppm (poppler).
func ExtractTextWithOCR(ctx context.Context, path string) (string, error) {
	pages, err := OCRPages(ctx, path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(strings.Join(pages, "\n")), nil
}

// OCRPages returns one OCR result per page. Images are a single page.
func OCRPages(ctx context.Context, path string) ([]string, error) {
	if strings.ToLower(filepath.Ext(path)) != ".pdf" {
		text, err := runTesseract(path)
		if err != nil {
			return nil, err
		}
		return []string{text}, nil
	}

	dir, err := os.MkdirTemp("", "suite_pdfimg")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	prefix := filepath.Join(dir, "page")
	if err := exec.CommandContext(ctx, "pdftoppm", "-png", path, prefix).Run(); err != nil {
		return nil, fmt.Errorf("pdftoppm convert failed: %w", err)
	}
	matches, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)

	pages := make([]string, 0, len(matches))
	for _, m := range matches {
		t, err := runTesseract(m)
		if err != nil {
			continue
		}
		pages = append(pages, t)
	}
	return pages, nil
}

func runTesseract(imgPath string) (string, error) {
	client := gosseract.NewClient()
	defer client.Close()
	if err := client.SetImage(imgPath); err != nil {
		return "", err
	}
	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("tesseract %s: %w", filepath.Base(imgPath), err)
	}
	return strings.TrimSpace(text), nil
}
