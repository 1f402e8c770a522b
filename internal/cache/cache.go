// Package cache holds the tiered definition cache. The cache is a
// rebuildable projection of the store, never a second source of truth: a
// namespace is either absent or a complete mirror of the store's content for
// its scope key.
package cache

import "context"

// HashCache is a key → field → value store, one hash per cache namespace.
// Implementations never return partial namespaces: GetAll returns the whole
// entry set or an error.
type HashCache interface {
	// GetAll returns every field of a hash. An absent key yields an empty
	// map, not an error.
	GetAll(ctx context.Context, key string) (map[string][]byte, error)

	// Get returns one field. The bool reports whether the field was present.
	Get(ctx context.Context, key, field string) ([]byte, bool, error)

	// PutAll upserts a set of fields into a hash.
	PutAll(ctx context.Context, key string, fields map[string][]byte) error

	// Delete drops whole hashes. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
}
