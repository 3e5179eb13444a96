// Package validators checks user provided input before it reaches the core
package validators

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

var (
	ErrNoFile              = errors.New("No file uploaded")
	ErrFileTypeUnsupported = errors.New("Unsupported file type")
)

// VideoValidator decides what counts as an acceptable upload
type VideoValidator struct {
	// Extra mime types accepted besides video/*
	AllowedTypes []string
}

// Sniff detects the mime type of r from its content. Client supplied
// Content-Type headers are never trusted. r is rewound afterwards.
func (v VideoValidator) Sniff(r io.ReadSeeker) (string, error) {
	mime, err := mimetype.DetectReader(r)
	if err != nil {
		return "", fmt.Errorf("failed to detect file type, %w", err)
	}

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("failed to rewind file, %w", err)
	}

	if !v.accepts(mime) {
		return "", ErrFileTypeUnsupported
	}

	return mime.String(), nil
}

func (v VideoValidator) accepts(m *mimetype.MIME) bool {
	for cur := m; cur != nil; cur = cur.Parent() {
		if strings.HasPrefix(cur.String(), "video/") {
			return true
		}

		if slices.ContainsFunc(v.AllowedTypes, cur.Is) {
			return true
		}
	}

	return false
}
