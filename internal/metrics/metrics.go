// Package metrics exposes runtime counters via expvar.
package metrics

import "expvar"

var (
	UnitsLoaded      = expvar.NewInt("units_loaded")
	UnitsSkipped     = expvar.NewInt("units_skipped")
	UnitsFailed      = expvar.NewInt("units_failed")
	RowsLoaded       = expvar.NewInt("rows_loaded")
	RowsDeleted      = expvar.NewInt("rows_deleted")
	RebuildsTotal    = expvar.NewInt("rebuilds_total")
	RebuildsFailed   = expvar.NewInt("rebuilds_failed")
	RetriesScheduled = expvar.NewInt("retries_scheduled")
	RecorderErrors   = expvar.NewInt("recorder_errors")
	SourceFetches    = expvar.NewInt("source_fetches")
	BreakerOpens     = expvar.NewInt("breaker_opens")
)
