// Package storage defines the durable key-value capability the cart store
// persists through. Adapters are injected; the store never constructs its
// own storage.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Read when the key has never been written.
// An absent key is a valid empty-cart state, not a failure.
var ErrNotFound = errors.New("storage: key not found")

// Adapter is a minimal durable key-value store.
type Adapter interface {
	// Read returns the value stored under key, or ErrNotFound.
	Read(ctx context.Context, key string) ([]byte, error)

	// Write durably stores value under key, overwriting any previous value.
	Write(ctx context.Context, key string, value []byte) error
}

// Pinger is implemented by adapters that can probe backend connectivity,
// used for readiness checks.
type Pinger interface {
	Ping(ctx context.Context) error
}
