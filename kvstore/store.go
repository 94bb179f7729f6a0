package kvstore

import (
	"context"
	"errors"
)

var (
	// ErrClosed is returned by operations on a store after Close.
	ErrClosed = errors.New("kvstore: store closed")
	// ErrBackend wraps failures reported by the underlying backend.
	ErrBackend = errors.New("kvstore: backend failure")
	// ErrEmptyKey is returned when an operation receives an empty key.
	ErrEmptyKey = errors.New("kvstore: empty key")
)

// Store is a durable byte-valued key-value store.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

func checkKeys(keys ...string) error {
	for _, k := range keys {
		if k == "" {
			return ErrEmptyKey
		}
	}
	return nil
}
