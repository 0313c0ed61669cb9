// Package pagecount inspects uploaded documents to determine how many
// pages they hold. The pricing core never guesses a page count: it either
// comes from here or from an explicit client-supplied estimate.
package pagecount

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	pdf "github.com/ledongthuc/pdf"
)

// ErrUnsupported means the content type cannot be inspected; callers fall
// back to the customer's own page estimate.
var ErrUnsupported = errors.New("unsupported document type")

// Count returns the page count of the document, or ErrUnsupported for
// types we cannot inspect.
func Count(data []byte, contentType string) (int, error) {
	if !IsInspectable(contentType) {
		return 0, ErrUnsupported
	}
	reader := bytes.NewReader(data)
	doc, err := pdf.NewReader(reader, int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("open pdf: %w", err)
	}
	pages := doc.NumPage()
	if pages < 1 {
		return 0, fmt.Errorf("pdf reports %d pages", pages)
	}
	return pages, nil
}

// IsInspectable reports whether Count can derive a real page count for the
// content type.
func IsInspectable(contentType string) bool {
	mediaType := strings.ToLower(strings.TrimSpace(contentType))
	if idx := strings.Index(mediaType, ";"); idx >= 0 {
		mediaType = strings.TrimSpace(mediaType[:idx])
	}
	return mediaType == "application/pdf"
}
