package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
)

// AssetSource opens note assets by their graph-relative path
// (for example "assets/image_1.png").
type AssetSource interface {
	Open(ctx context.Context, relPath string) (io.ReadCloser, error)
}

// FSSource reads assets from the graph directory on disk.
type FSSource struct {
	root string
}

// NewFSSource creates a source rooted at the graph directory.
func NewFSSource(root string) *FSSource {
	return &FSSource{root: root}
}

// Open opens relPath below the root. Paths escaping the root are rejected.
func (s *FSSource) Open(_ context.Context, relPath string) (io.ReadCloser, error) {
	clean, err := cleanAssetPath(relPath)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(s.root, filepath.FromSlash(clean)))
	if err != nil {
		return nil, fmt.Errorf("failed to open asset %s: %w", relPath, err)
	}
	return f, nil
}

// BucketSource reads assets from an object storage bucket.
type BucketSource struct {
	client Client
	bucket string
	prefix string
}

// NewBucketSource creates a source over bucket, with every object name
// prefixed by prefix.
func NewBucketSource(client Client, bucket, prefix string) *BucketSource {
	return &BucketSource{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// Open fetches the object for relPath.
func (s *BucketSource) Open(ctx context.Context, relPath string) (io.ReadCloser, error) {
	clean, err := cleanAssetPath(relPath)
	if err != nil {
		return nil, err
	}
	name := clean
	if s.prefix != "" {
		name = s.prefix + "/" + clean
	}
	obj, err := s.client.GetObject(ctx, s.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get asset %s: %w", name, err)
	}
	return obj, nil
}

// Check verifies that the bucket is reachable.
func (s *BucketSource) Check(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", s.bucket, err)
	}
	if !ok {
		return fmt.Errorf("bucket %s does not exist", s.bucket)
	}
	return nil
}

// NewAssetSource builds the source selected by cfg.Source. root is the graph
// directory used by the fs source.
func NewAssetSource(cfg Config, root string) (AssetSource, error) {
	switch cfg.Source {
	case "", "fs":
		return NewFSSource(root), nil
	case "s3":
		client, err := NewClient(cfg)
		if err != nil {
			return nil, err
		}
		return NewBucketSource(client, cfg.Bucket, cfg.Prefix), nil
	default:
		return nil, fmt.Errorf("unknown asset source %q", cfg.Source)
	}
}

func cleanAssetPath(relPath string) (string, error) {
	p := strings.TrimPrefix(filepath.ToSlash(relPath), "../")
	p = path.Clean("/" + p)[1:]
	if p == "" || p == "." {
		return "", fmt.Errorf("invalid asset path %q", relPath)
	}
	return p, nil
}
