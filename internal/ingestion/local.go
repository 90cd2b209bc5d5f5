package ingestion

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

var allowedExt = []string{".pdf", ".txt", ".md", ".png", ".jpg", ".jpeg"}

// LoadLocalFiles walks root and returns files with one of exts, or any
// supported extension when exts is empty.
func LoadLocalFiles(root string, exts ...string) ([]string, error) {
	if len(exts) == 0 {
		exts = allowedExt
	}
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if slices.Contains(exts, strings.ToLower(filepath.Ext(path))) {
			out = append(out, path)
		}
		return nil
	})
	return out, err
}

// Supported reports whether name has one of exts.
func Supported(name string, exts ...string) bool {
	return slices.Contains(exts, strings.ToLower(filepath.Ext(name)))
}

// SaveUpload writes r to dir/name unless that file already exists, in which
// case the existing copy is kept. Only the base name of name is used.
func SaveUpload(dir, name string, r io.Reader) (path string, existed bool, err error) {
	base := filepath.Base(filepath.Clean("/" + name))
	if base == "/" || base == "." {
		return "", false, fmt.Errorf("invalid file name %q", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", false, err
	}
	path = filepath.Join(dir, base)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return path, true, nil
	}
	if err != nil {
		return "", false, err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", false, fmt.Errorf("save %s: %w", base, err)
	}
	return path, false, f.Close()
}
