// Package source defines the boundary to the upstream system that serves the
// monthly record files. Fetching the same month is side-effect-free on the
// source, so a fetch may be repeated freely under retry.
package source

import (
	"context"

	"github.com/dwsmith1983/stratum/pkg/types"
)

// FetchResult is one month's worth of source data: the expected record count
// for the unit, and a lazy iterator over bounded-size batches. Callers hold
// at most one unit's batches at a time; peak memory is bounded by unit size
// regardless of total dataset size.
type FetchResult struct {
	ExpectedRows int64

	// Next returns the next batch, or ok=false once the unit is exhausted.
	Next func() (batch []types.TripRecord, ok bool)
}

// Source fetches one unit of work from the upstream system.
type Source interface {
	Fetch(ctx context.Context, month int) (*FetchResult, error)
}
