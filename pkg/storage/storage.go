// Package storage defines the contract shared by the image store tiers.
//
// Both tiers partition keys by scope (a browser session ID) and expose the
// same get/put/delete surface so callers can pick a tier without knowing
// which backend sits behind it.
package storage

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Get when the scope holds no value for the key.
	ErrNotFound = errors.New("storage: not found")
	// ErrCapacityExceeded is returned by Put when the value does not fit.
	// The previous value for the key, if any, is left untouched.
	ErrCapacityExceeded = errors.New("storage: capacity exceeded")
	// ErrClosed is returned by tiers used after Close.
	ErrClosed = errors.New("storage: closed")
)

// Tier is a scoped string key-value store.
type Tier interface {
	// Name identifies the tier in logs and metrics.
	Name() string
	// Get returns the value or ErrNotFound.
	Get(ctx context.Context, scope, key string) (string, error)
	// Put stores or overwrites the value. It either commits fully or not at all.
	Put(ctx context.Context, scope, key, value string) error
	// Delete removes the key. Deleting a missing key is not an error.
	Delete(ctx context.Context, scope, key string) error
}

// QuotaReporter is implemented by tiers with a bounded quota.
type QuotaReporter interface {
	// Available reports how many bytes scope may still store.
	Available(scope string) int64
}

// EntrySize is the number of quota bytes a key/value pair occupies.
func EntrySize(key, value string) int64 {
	return int64(len(key) + len(value))
}
