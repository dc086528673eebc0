package incentive

import (
	"context"

	"github.com/odyssey-erp/cashiercounter/internal/platform/cache"
	"github.com/odyssey-erp/cashiercounter/internal/shared"
)

// SnapshotKey is the cache key of a supplier's latest snapshot.
func SnapshotKey(supplier string) string {
	return cache.Key("incentive_snapshot", supplier)
}

// Reports serves the snapshot read path. Live pricing never reads from it.
type Reports struct {
	snapshots SnapshotStore
	cache     *cache.Store
}

// NewReports constructs the reporting service.
func NewReports(snapshots SnapshotStore, store *cache.Store) *Reports {
	return &Reports{snapshots: snapshots, cache: store}
}

// LatestSnapshot returns the most recent snapshot of supplier.
func (r *Reports) LatestSnapshot(ctx context.Context, supplier string) (Snapshot, error) {
	if supplier == "" {
		return Snapshot{}, shared.Invalid("supplier", nil, "is required")
	}
	var snap Snapshot
	err := r.cache.FetchJSON(ctx, SnapshotKey(supplier), &snap, func(ctx context.Context) (any, error) {
		return r.snapshots.LatestSnapshot(ctx, supplier)
	})
	return snap, err
}
