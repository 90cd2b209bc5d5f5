package ingestion

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"

	pdf "github.com/ledongthuc/pdf"
)

// ExtractTextFromPDF returns the text layer of the whole document, or an
// empty string when there is none.
func ExtractTextFromPDF(ctx context.Context, path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer f.Close()

	var buf bytes.Buffer
	b, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(&buf, b); err != nil {
		return "", err
	}
	text := strings.TrimSpace(buf.String())
	if text == "" {
		// try pdftotext CLI if available
		out, err := exec.CommandContext(ctx, "pdftotext", "-layout", path, "-").Output()
		if err == nil {
			return strings.TrimSpace(string(out)), nil
		}
	}
	return text, nil
}

// ExtractPDFPages returns the text of each page in order. Pages without a
// text layer come back as empty strings.
func ExtractPDFPages(path string) ([]string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer f.Close()

	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}
