// Package repository defines the storage contracts the console depends on.
package repository

import "context"

// KeyValueStore is the console's durable string store. It replaces the
// per-origin storage a browser would offer: the session token, the cached
// user, and UI preferences live here.
//
// Get returns an error wrapping apperror.ErrNotFound for a missing key.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}
