// Package store defines the analytical store boundary consumed by the
// pipeline core. The core never touches store tables except through this
// interface: batch inserts and unit deletes on staging, count queries scoped
// by the load-month tag, and atomic full-replace rebuilds of the downstream
// layers.
package store

import (
	"context"

	"github.com/dwsmith1983/stratum/pkg/types"
)

// Store is the analytical store interface.
type Store interface {
	// EnsureTables creates the staging and downstream tables if absent.
	EnsureTables(ctx context.Context) error

	// CountUnit returns the number of staging rows tagged with the given
	// load month. Cheap relative to a full scan: staging is partitioned on
	// the tag.
	CountUnit(ctx context.Context, month int) (int64, error)

	// CountYear returns the total number of staged rows across all units.
	CountYear(ctx context.Context) (int64, error)

	// InsertBatch appends one bounded batch to staging, tagging every row
	// with the load month. Returns rows written.
	InsertBatch(ctx context.Context, month int, batch []types.TripRecord) (int64, error)

	// DeleteUnit removes all staging rows tagged with the given load month.
	// Returns rows deleted.
	DeleteUnit(ctx context.Context, month int) (int64, error)

	// Rebuild replaces the given downstream layer with the full, current
	// transformation of its upstream layer. Visibility is all-or-nothing:
	// no intermediate state is ever queryable. Returns the rebuilt row count.
	Rebuild(ctx context.Context, stage types.Stage) (int64, error)

	// Ping verifies connectivity.
	Ping(ctx context.Context) error

	Close() error
}
