// Package source fetches graph and trace documents from local files or
// S3-compatible object storage.
package source

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
)

// Source yields the raw bytes of one document.
type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
	// URI identifies the document in logs and events.
	URI() string
}

// Options configures remote sources.
type Options struct {
	Region   string
	Endpoint string // custom S3 endpoint (MinIO and similar)
}

// New returns the Source for uri. "s3://bucket/key" selects object storage,
// "file://path" and bare paths select the local filesystem.
func New(ctx context.Context, uri string, opts Options) (Source, error) {
	if uri == "" {
		return nil, fmt.Errorf("empty document location")
	}
	switch {
	case strings.HasPrefix(uri, "s3://"):
		bucket, key, err := ParseS3URI(uri)
		if err != nil {
			return nil, err
		}
		return NewS3Source(ctx, bucket, key, opts.Region, opts.Endpoint)
	case strings.HasPrefix(uri, "file://"):
		return &FileSource{Path: strings.TrimPrefix(uri, "file://")}, nil
	case strings.Contains(uri, "://"):
		return nil, fmt.Errorf("unsupported document scheme in %q", uri)
	}
	return &FileSource{Path: uri}, nil
}

// ParseS3URI splits "s3://bucket/key" into its bucket and key.
func ParseS3URI(uri string) (bucket, key string, err error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", "", fmt.Errorf("parsing %q: %w", uri, err)
	}
	if u.Scheme != "s3" {
		return "", "", fmt.Errorf("%q is not an s3:// location", uri)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return "", "", fmt.Errorf("%q must name both bucket and key", uri)
	}
	return u.Host, key, nil
}

// FileSource reads a document from the local filesystem.
type FileSource struct {
	Path string
}

func (f *FileSource) Fetch(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", f.Path, err)
	}
	return data, nil
}

func (f *FileSource) URI() string { return f.Path }

// LocalPath reports the filesystem path behind s, if any. Only local
// documents can be watched for changes.
func LocalPath(s Source) (string, bool) {
	if f, ok := s.(*FileSource); ok {
		return f.Path, true
	}
	return "", false
}
