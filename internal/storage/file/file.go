// Package file provides a JSON-file-backed storage adapter, the default for
// device-local deployments where the cart must survive app restarts without
// any external backend.
package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/martincharlesFajIT/fajtradingllc/internal/storage"
)

// Adapter stores each key as <dir>/<key>.json. Writes go through a temp
// file and rename so a crash mid-write never leaves a truncated blob.
type Adapter struct {
	mu  sync.Mutex
	dir string
}

var _ storage.Adapter = (*Adapter)(nil)

// New creates a file adapter rooted at dir, creating it if needed.
func New(dir string) (*Adapter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Adapter{dir: dir}, nil
}

// Read returns the stored value, or storage.ErrNotFound when the file does
// not exist.
func (a *Adapter) Read(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	data, err := os.ReadFile(a.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

// Write stores the value atomically.
func (a *Adapter) Write(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	path := a.path(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, value, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// Ping verifies the storage directory is still writable.
func (a *Adapter) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return fmt.Errorf("storage dir unavailable: %w", err)
	}
	return nil
}

func (a *Adapter) path(key string) string {
	return filepath.Join(a.dir, key+".json")
}
