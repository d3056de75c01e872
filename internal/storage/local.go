package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore keeps images under a media root on disk. References are paths
// relative to the root, e.g. "receipts/5f0c...-lunch.jpg".
type LocalStore struct {
	root string
}

// NewLocalStore creates the media root if needed.
func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(filepath.Join(root, Prefix), 0o755); err != nil {
		return nil, fmt.Errorf("NewLocalStore: create media root: %w", err)
	}
	return &LocalStore{root: root}, nil
}

// Save writes the image to disk.
func (s *LocalStore) Save(ctx context.Context, filename, contentType string, data []byte) (string, error) {
	ref := ObjectName(filename)
	if err := os.WriteFile(filepath.Join(s.root, filepath.FromSlash(ref)), data, 0o644); err != nil {
		return "", fmt.Errorf("Save: write image: %w", err)
	}
	return ref, nil
}

// Open reads an image saved by Save.
func (s *LocalStore) Open(ctx context.Context, ref string) ([]byte, error) {
	clean := filepath.Clean(filepath.FromSlash(ref))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("Open: invalid image reference %q", ref)
	}

	data, err := os.ReadFile(filepath.Join(s.root, clean))
	if err != nil {
		return nil, fmt.Errorf("Open: read image: %w", err)
	}
	return data, nil
}
