package backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// destination for exported backups
type Sink interface {
	Save(ctx context.Context, name string, data []byte, auto bool) (string, error)
	// newest first
	List(ctx context.Context, auto bool) ([]Metadata, error)
	Delete(ctx context.Context, path string) error
}

func folder(auto bool) string {
	if auto {
		return AutoFolder
	}
	return ManualFolder
}

// writes backups below a root directory
type FileSink struct {
	Root string
}

func NewFileSink(root string) *FileSink {
	return &FileSink{Root: root}
}

func (s *FileSink) Save(ctx context.Context, name string, data []byte, auto bool) (string, error) {
	dir := filepath.Join(s.Root, folder(auto))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create backup folder: %w", err)
	}
	out := filepath.Join(dir, name)
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write backup: %w", err)
	}
	return out, nil
}

func (s *FileSink) List(ctx context.Context, auto bool) ([]Metadata, error) {
	dir := filepath.Join(s.Root, folder(auto))
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}

	var out []Metadata
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		meta, ok := ParseFilename(entry.Name())
		if !ok {
			continue
		}
		meta.Path = filepath.Join(dir, entry.Name())
		if info, err := entry.Info(); err == nil {
			meta.Size = info.Size()
		}
		out = append(out, meta)
	}
	sortNewest(out)
	return out, nil
}

func (s *FileSink) Delete(ctx context.Context, p string) error {
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete backup %s: %w", p, err)
	}
	return nil
}

type MinioOptions struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UseSSL          bool
}

// stores backups as objects under the backup folder prefixes
type MinioSink struct {
	client *minio.Client
	bucket string
}

// creates the bucket when missing
func NewMinioSink(ctx context.Context, opts MinioOptions) (*MinioSink, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKeyID, opts.SecretAccessKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}
	return &MinioSink{client: client, bucket: opts.Bucket}, nil
}

func (s *MinioSink) Save(ctx context.Context, name string, data []byte, auto bool) (string, error) {
	key := path.Join(folder(auto), name)
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: MimeType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload backup: %w", err)
	}
	return key, nil
}

func (s *MinioSink) List(ctx context.Context, auto bool) ([]Metadata, error) {
	objectCh := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    folder(auto) + "/",
		Recursive: true,
	})

	var out []Metadata
	for object := range objectCh {
		if object.Err != nil {
			return nil, fmt.Errorf("error listing backups: %w", object.Err)
		}
		meta, ok := ParseFilename(object.Key)
		if !ok || strings.HasSuffix(object.Key, "/") {
			continue
		}
		meta.Filename = path.Base(object.Key)
		meta.Path = object.Key
		meta.Size = object.Size
		out = append(out, meta)
	}
	sortNewest(out)
	return out, nil
}

func (s *MinioSink) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete backup %s: %w", key, err)
	}
	return nil
}

func sortNewest(items []Metadata) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt > items[j].CreatedAt
	})
}
