// Package blobstore wraps cloud.google.com/go/storage as the Blob
// Client external collaborator: download to local temp,
// upload from local temp, with retries, over two distinct containers.
package blobstore

import (
	"context"
	"fmt"
	"io"
	"os"

	"cloud.google.com/go/storage"
	"github.com/sirupsen/logrus"
)

// Client is the Blob Client interface Stage B/C depend on. It is
// small and mockable on purpose: the Document Processor never talks
// to cloud.google.com/go/storage directly.
type Client interface {
	// DownloadToTemp fetches objectPath from the SOURCE container into
	// a freshly created temp file and returns its path. Callers must
	// remove it.
	DownloadToTemp(ctx context.Context, objectPath string) (tempPath string, err error)

	// UploadFromTemp uploads localPath to objectPath in the DEST
	// container with overwrite=true semantics (the default for GCS object writes).
	UploadFromTemp(ctx context.Context, objectPath, localPath string) (sizeBytes int64, err error)
}

// GCSClient is the production Client backed by Google Cloud Storage.
// Startup validates SOURCE and DEST are non-empty and distinct (spec
// §6: "a safety check that prevents accidentally overwriting upstream
// artifacts").
type GCSClient struct {
	client     *storage.Client
	source     string
	dest       string
	tempDir    string
	maxRetries int
	log        *logrus.Entry
}

// NewGCSClient validates the container configuration and wraps an
// already-constructed storage.Client (the caller owns its lifecycle
// and credentials, following the pattern of injecting external
// clients rather than constructing them deep in business logic).
func NewGCSClient(client *storage.Client, sourceContainer, destContainer, tempDir string, maxRetries int, log *logrus.Entry) (*GCSClient, error) {
	if sourceContainer == "" || destContainer == "" {
		return nil, fmt.Errorf("blobstore: source and dest containers must both be non-empty")
	}
	if sourceContainer == destContainer {
		return nil, fmt.Errorf("blobstore: source and dest containers must be distinct (got %q for both)", sourceContainer)
	}
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &GCSClient{client: client, source: sourceContainer, dest: destContainer, tempDir: tempDir, maxRetries: maxRetries, log: log}, nil
}

func (c *GCSClient) DownloadToTemp(ctx context.Context, objectPath string) (string, error) {
	f, err := os.CreateTemp(c.tempDir, "intake-dl-*")
	if err != nil {
		return "", fmt.Errorf("blobstore download: create temp file: %w", err)
	}
	tempPath := f.Name()

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.log.WithField("attempt", attempt).WithField("object", objectPath).Warn("retrying blob download")
		}
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			lastErr = err
			continue
		}
		if err := f.Truncate(0); err != nil {
			lastErr = err
			continue
		}
		lastErr = c.downloadOnce(ctx, objectPath, f)
		if lastErr == nil {
			break
		}
	}
	f.Close()
	if lastErr != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("blobstore download %s: %w", objectPath, lastErr)
	}
	return tempPath, nil
}

func (c *GCSClient) downloadOnce(ctx context.Context, objectPath string, dst io.Writer) error {
	r, err := c.client.Bucket(c.source).Object(objectPath).NewReader(ctx)
	if err != nil {
		return err
	}
	defer r.Close()
	_, err = io.Copy(dst, r)
	return err
}

func (c *GCSClient) UploadFromTemp(ctx context.Context, objectPath, localPath string) (int64, error) {
	var lastErr error
	var size int64
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.log.WithField("attempt", attempt).WithField("object", objectPath).Warn("retrying blob upload")
		}
		size, lastErr = c.uploadOnce(ctx, objectPath, localPath)
		if lastErr == nil {
			return size, nil
		}
	}
	return 0, fmt.Errorf("blobstore upload %s: %w", objectPath, lastErr)
}

func (c *GCSClient) uploadOnce(ctx context.Context, objectPath, localPath string) (int64, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	w := c.client.Bucket(c.dest).Object(objectPath).NewWriter(ctx)
	n, copyErr := io.Copy(w, f)
	closeErr := w.Close()
	if copyErr != nil {
		return 0, copyErr
	}
	if closeErr != nil {
		return 0, closeErr
	}
	return n, nil
}
