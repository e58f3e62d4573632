// Package artifacts stores the rendered page images that index records
// reference. Records hold paths relative to the store root
// ("<documentID>/<image>"), so the backend can be local disk or GCS.
package artifacts

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Store persists page images keyed by document-scoped relative paths.
type Store interface {
	// SaveDocumentPages ingests the split page images for one document, in
	// order, and returns the stored relative paths in the same order.
	SaveDocumentPages(ctx context.Context, documentID string, localPaths []string) ([]string, error)
	// Read returns the bytes of one stored page image.
	Read(ctx context.Context, relPath string) ([]byte, error)
	// Delete removes one stored image. Deleting an image that is already
	// missing is not an error.
	Delete(ctx context.Context, relPath string) error
	// DeleteDocument removes every image stored for a document.
	DeleteDocument(ctx context.Context, documentID string) error
}

// LocalStore keeps page images on local disk under a root directory.
type LocalStore struct {
	root string
}

func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact root %s: %w", root, err)
	}
	return &LocalStore{root: root}, nil
}

func (s *LocalStore) SaveDocumentPages(_ context.Context, documentID string, localPaths []string) ([]string, error) {
	docDir := filepath.Join(s.root, documentID)
	if err := os.MkdirAll(docDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create document dir %s: %w", docDir, err)
	}

	relPaths := make([]string, 0, len(localPaths))
	for _, src := range localPaths {
		name := filepath.Base(src)
		if err := copyFile(src, filepath.Join(docDir, name)); err != nil {
			return nil, fmt.Errorf("failed to store page image %s: %w", name, err)
		}
		relPaths = append(relPaths, filepath.ToSlash(filepath.Join(documentID, name)))
	}
	return relPaths, nil
}

func (s *LocalStore) Read(_ context.Context, relPath string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(relPath)))
	if err != nil {
		return nil, fmt.Errorf("failed to read page image %s: %w", relPath, err)
	}
	return data, nil
}

func (s *LocalStore) Delete(_ context.Context, relPath string) error {
	err := os.Remove(filepath.Join(s.root, filepath.FromSlash(relPath)))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete page image %s: %w", relPath, err)
	}
	return nil
}

func (s *LocalStore) DeleteDocument(_ context.Context, documentID string) error {
	if err := os.RemoveAll(filepath.Join(s.root, documentID)); err != nil {
		return fmt.Errorf("failed to delete document images %s: %w", documentID, err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
