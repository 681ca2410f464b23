// Package kv provides the client's durable key-value store.
//
// The entitlement cache keeps its persisted snapshot and the compatibility
// flags here. Three backends exist: SQLite for the mobile/desktop client, S3
// for stateless admin-panel deployments, and an in-memory map for tests and
// throwaway sessions.
package kv

import (
	"context"
)

// Repository is a byte-oriented key-value store.
// Get returns (nil, nil) when the key is absent; Delete of an absent key is not an error.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) (map[string][]byte, error)
	Clear(ctx context.Context) error
}
