package blobstore

import (
	"context"
	"fmt"
	"os"
	"sync"
)

// FakeClient is an in-memory Client used by tests throughout this
// module (blobstore and processor tests) so they can exercise
// the download/upload contract without a real GCS bucket.
type FakeClient struct {
	mu      sync.Mutex
	Objects map[string][]byte
	tempDir string
}

func NewFakeClient() *FakeClient {
	return &FakeClient{Objects: make(map[string][]byte)}
}

func (f *FakeClient) DownloadToTemp(ctx context.Context, objectPath string) (string, error) {
	f.mu.Lock()
	data, ok := f.Objects[objectPath]
	f.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("fake blobstore: object %q not found", objectPath)
	}
	tmp, err := os.CreateTemp("", "intake-fake-dl-*")
	if err != nil {
		return "", err
	}
	defer tmp.Close()
	if _, err := tmp.Write(data); err != nil {
		return "", err
	}
	return tmp.Name(), nil
}

func (f *FakeClient) UploadFromTemp(ctx context.Context, objectPath, localPath string) (int64, error) {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return 0, err
	}
	f.mu.Lock()
	f.Objects[objectPath] = data
	f.mu.Unlock()
	return int64(len(data)), nil
}
