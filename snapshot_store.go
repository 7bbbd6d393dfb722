package postcache

import "context"

// SnapshotStore is a durable key-value slot for store snapshots.
// Values never expire; Load reports ok=false when the key was never saved.
type SnapshotStore interface {
	Driver() Driver
	Load(ctx context.Context, key string) ([]byte, bool, error)
	Save(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
