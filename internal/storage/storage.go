// Package storage keeps the raw receipt images.
package storage

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// ImageStore persists uploaded receipt images and returns a reference that can
// be stored with the receipt and passed back to Open.
type ImageStore interface {
	// Save stores the image bytes and returns its reference.
	Save(ctx context.Context, filename, contentType string, data []byte) (string, error)

	// Open returns the bytes behind a reference produced by Save.
	Open(ctx context.Context, ref string) ([]byte, error)
}

// Prefix is the folder receipt images are stored under.
const Prefix = "receipts"

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ObjectName builds a collision-free object name for an uploaded file,
// e.g. "receipts/5f0c...-lunch.jpg".
func ObjectName(filename string) string {
	base := path.Base(strings.ReplaceAll(filename, `\`, "/"))
	base = strings.Trim(unsafeChars.ReplaceAllString(base, "_"), "._")
	if base == "" {
		base = "image"
	}
	return path.Join(Prefix, uuid.NewString()+"-"+base)
}

// ParseGCSURI splits "gs://bucket/path/to/object" into bucket and object.
func ParseGCSURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}

	parts := strings.SplitN(strings.TrimPrefix(uri, "gs://"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}

// FilenameFromRef returns the last path element of a reference.
// e.g., "gs://bucket/receipts/abc-lunch.jpg" → "abc-lunch.jpg"
func FilenameFromRef(ref string) string {
	trimmed := strings.TrimPrefix(ref, "gs://")
	if strings.HasPrefix(ref, "gs://") {
		parts := strings.SplitN(trimmed, "/", 2)
		if len(parts) < 2 {
			return trimmed
		}
		trimmed = parts[1]
	}
	return path.Base(trimmed)
}
