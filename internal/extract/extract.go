// Package extract turns uploaded files into plain text. Only .pdf,
// .md and .txt are accepted; anything else is rejected before a
// document is created.
package extract

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"copilot/internal/models"
)

var contentTypes = map[string]string{
	".pdf": "application/pdf",
	".md":  "text/markdown",
	".txt": "text/plain",
}

// Supported reports whether the filename's extension is ingestible.
func Supported(filename string) bool {
	_, ok := contentTypes[normalizeExt(filename)]
	return ok
}

// ContentType maps a supported filename to its MIME type. Unsupported
// names return "".
func ContentType(filename string) string {
	return contentTypes[normalizeExt(filename)]
}

// Text extracts plain text from raw file bytes, dispatching on the
// filename's extension. Unsupported extensions return
// models.ErrUnsupportedFileType.
func Text(filename string, data []byte) (string, error) {
	switch normalizeExt(filename) {
	case ".pdf":
		return fromPDF(data)
	case ".md", ".txt":
		return string(data), nil
	default:
		return "", fmt.Errorf("%w: %s", models.ErrUnsupportedFileType, filepath.Ext(filename))
	}
}

func normalizeExt(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}

func fromPDF(data []byte) (text string, err error) {
	// The pdf parser panics on some malformed files; turn that into a
	// regular extraction error.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf extraction failed: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to parse pdf: %w", err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to extract pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("failed to read pdf text: %w", err)
	}
	return buf.String(), nil
}
