// Package kv is a small key-value abstraction used for cook history and
// the synthesized audio cache. Keys are plain strings; callers namespace
// them with a "prefix:" convention.
package kv

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("kv: not found")

// Entry is one key-value pair returned by List.
type Entry struct {
	Key   string
	Value []byte
}

// Store is a key-value store.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// List returns every entry whose key starts with prefix, in key order.
	List(ctx context.Context, prefix string) ([]Entry, error)
	Close() error
}
