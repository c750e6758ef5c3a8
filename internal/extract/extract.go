// Package extract pulls plain text out of local files for search and
// vector ingestion. Plain-text formats are read verbatim; PDFs go through
// text extraction. Anything else is skipped.
package extract

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// textExts are the file extensions read verbatim as text.
var textExts = map[string]bool{
	".txt":  true,
	".md":   true,
	".log":  true,
	".json": true,
	".yaml": true,
	".yml":  true,
	".csv":  true,
}

// Supported reports whether Text knows how to read the file at path.
func Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return textExts[ext] || ext == ".pdf"
}

// Text returns the plain-text content of the file at path. Unsupported
// extensions yield an empty string and no error, so directory walks can
// treat them as skippable rather than failed.
func Text(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case textExts[ext]:
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", path, err)
		}
		return string(data), nil
	case ext == ".pdf":
		return pdfText(path)
	default:
		return "", nil
	}
}

func pdfText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening pdf %s: %w", path, err)
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting pdf text from %s: %w", path, err)
	}
	var sb strings.Builder
	if _, err := io.Copy(&sb, reader); err != nil {
		return "", fmt.Errorf("reading pdf text from %s: %w", path, err)
	}
	return sb.String(), nil
}
