// Package loader performs the idempotent load of a single unit of work: it
// compares the staged row count against the source's expected count and then
// skips, loads, or deletes-and-reloads so that re-running a unit always
// converges on exactly one copy of its data.
package loader

import (
	"context"
	"log/slog"

	"github.com/dwsmith1983/stratum/internal/metrics"
	"github.com/dwsmith1983/stratum/internal/source"
	"github.com/dwsmith1983/stratum/internal/store"
	"github.com/dwsmith1983/stratum/pkg/types"
)

// Outcome is the result of a successful LoadUnit call. Status is SKIPPED when
// the unit was already fully staged (or the source has no rows for it) and
// SUCCESS when rows were loaded this call.
type Outcome struct {
	Status types.RunStatus
	Rows   int64
}

// Loader loads units from a source into the staging layer.
type Loader struct {
	store  store.Store
	source source.Source
	logger *slog.Logger

	// expected pins the first expected count observed per unit. Retried
	// attempts re-fetch the source; a source that reports a different count
	// for the same unit mid-run cannot be loaded safely.
	expected map[int]int64
}

// New creates a Loader.
func New(st store.Store, src source.Source, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		store:    st,
		source:   src,
		logger:   logger,
		expected: make(map[int]int64),
	}
}

// LoadUnit loads one month idempotently. It returns an error carrying a
// failure kind when the fetch, load, or verification fails; the caller
// decides whether to retry.
func (l *Loader) LoadUnit(ctx context.Context, month int) (*Outcome, error) {
	result, err := l.source.Fetch(ctx, month)
	if err != nil {
		return nil, err
	}
	expected := result.ExpectedRows

	if prev, seen := l.expected[month]; seen && prev != expected {
		return nil, types.DataIntegrity(
			"source reported %d rows for %s, previously %d",
			expected, types.MonthName(month), prev)
	}
	l.expected[month] = expected

	staged, err := l.store.CountUnit(ctx, month)
	if err != nil {
		return nil, err
	}

	log := l.logger.With("month", types.MonthName(month),
		"staged", staged, "expected", expected)

	if expected == 0 {
		log.Info("source has no rows for unit, skipping")
		return &Outcome{Status: types.StatusSkipped}, nil
	}
	if staged == expected {
		log.Info("unit already staged, skipping")
		return &Outcome{Status: types.StatusSkipped}, nil
	}

	if staged > 0 {
		// Partial or stale data from an interrupted run. The only safe
		// repair is a full reload of the unit.
		deleted, err := l.store.DeleteUnit(ctx, month)
		if err != nil {
			return nil, err
		}
		metrics.RowsDeleted.Add(deleted)
		log.Warn("cleared partial unit before reload", "deleted", deleted)
	}

	loaded, err := l.loadBatches(ctx, month, result)
	if err != nil {
		return nil, err
	}

	verified, err := l.store.CountUnit(ctx, month)
	if err != nil {
		return nil, err
	}
	if verified != expected {
		return nil, types.DataIntegrity(
			"loaded %s but staged count %d does not match expected %d",
			types.MonthName(month), verified, expected)
	}

	log.Info("unit loaded", "rows", loaded)
	return &Outcome{Status: types.StatusSuccess, Rows: loaded}, nil
}

func (l *Loader) loadBatches(ctx context.Context, month int, result *source.FetchResult) (int64, error) {
	var total int64
	for {
		batch, ok := result.Next()
		if !ok {
			return total, nil
		}
		n, err := l.store.InsertBatch(ctx, month, batch)
		if err != nil {
			return total, err
		}
		total += n
		metrics.RowsLoaded.Add(n)
	}
}
