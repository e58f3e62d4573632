package artifacts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/Lllllllleong/detailsheetindex/internal/gcp"
)

// GCSStore keeps page images in a GCS bucket, one object per page under a
// document-scoped prefix. For deployments that cannot keep local state.
type GCSStore struct {
	client *storage.Client
	bucket string
}

func NewGCSStore(client *storage.Client, bucket string) *GCSStore {
	return &GCSStore{client: client, bucket: bucket}
}

func (s *GCSStore) SaveDocumentPages(ctx context.Context, documentID string, localPaths []string) ([]string, error) {
	bucketHandle := s.client.Bucket(s.bucket)
	relPaths := make([]string, 0, len(localPaths))
	for _, src := range localPaths {
		name := filepath.Base(src)
		content, err := os.ReadFile(src)
		if err != nil {
			return nil, fmt.Errorf("failed to read page image %s: %w", src, err)
		}
		objectName := documentID + "/" + name
		if err := gcp.SaveToGCSAtomically(ctx, bucketHandle, objectName, content); err != nil {
			return nil, fmt.Errorf("failed to upload page image %s: %w", objectName, err)
		}
		relPaths = append(relPaths, objectName)
	}
	return relPaths, nil
}

func (s *GCSStore) Read(ctx context.Context, relPath string) ([]byte, error) {
	reader, err := s.client.Bucket(s.bucket).Object(relPath).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open page image gs://%s/%s: %w", s.bucket, relPath, err)
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read page image gs://%s/%s: %w", s.bucket, relPath, err)
	}
	return data, nil
}

func (s *GCSStore) Delete(ctx context.Context, relPath string) error {
	err := s.client.Bucket(s.bucket).Object(relPath).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("failed to delete page image %s: %w", relPath, err)
	}
	return nil
}

func (s *GCSStore) DeleteDocument(ctx context.Context, documentID string) error {
	bucketHandle := s.client.Bucket(s.bucket)
	it := bucketHandle.Objects(ctx, &storage.Query{Prefix: documentID + "/"})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to list document images %s: %w", documentID, err)
		}
		if err := s.Delete(ctx, attrs.Name); err != nil {
			return err
		}
	}
	return nil
}
