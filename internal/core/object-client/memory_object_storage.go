package objectclient

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/markdave123-py/smartdoc/internal/core"
)

var _ core.ObjectClient = (*MemoryClient)(nil)

// MemoryClient keeps objects in process memory. Used when no bucket is configured.
type MemoryClient struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemoryClient() *MemoryClient {
	return &MemoryClient{objects: make(map[string][]byte)}
}

func (c *MemoryClient) UploadFile(ctx context.Context, bucket, key string, data io.Reader, _ string) (string, error) {
	body, err := io.ReadAll(data)
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	c.mu.Lock()
	c.objects[bucket+"/"+key] = body
	c.mu.Unlock()
	return "mem://" + bucket + "/" + key, nil
}

func (c *MemoryClient) DeleteFile(_ context.Context, bucket, key string) error {
	c.mu.Lock()
	delete(c.objects, bucket+"/"+key)
	c.mu.Unlock()
	return nil
}

func (c *MemoryClient) GetFile(_ context.Context, bucket, key string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	body, ok := c.objects[bucket+"/"+key]
	if !ok {
		return nil, fmt.Errorf("object %s: %w", key, core.ErrNotFound)
	}
	return append([]byte(nil), body...), nil
}

// Len reports how many objects are stored.
func (c *MemoryClient) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.objects)
}
