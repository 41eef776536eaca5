package store

import "context"

// Store is the key-value/set abstraction the engine persists through. No
// relational queries: scalar keys, field records, and named membership sets.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error

	GetRecord(ctx context.Context, key string) (map[string]string, bool, error)
	SetRecord(ctx context.Context, key string, fields map[string]string) error
	DeleteRecord(ctx context.Context, key string) error

	AddToSet(ctx context.Context, set, member string) error
	RemoveFromSet(ctx context.Context, set, member string) error
	SetMembers(ctx context.Context, set string) ([]string, error)

	Close() error
}
