// Package snapshottest provides reusable contract tests for
// postcache.SnapshotStore implementations.
//
// Example pattern:
//
//	func TestRedisSnapshotContract(t *testing.T) {
//		client := newTestRedisClient(t)
//		slot := postcache.NewRedisSnapshotStore(ctx, client, postcache.WithPrefix("test"))
//		snapshottest.RunSnapshotContract(t, slot, snapshottest.Options{CaseName: t.Name()})
//	}
package snapshottest
