// Package orchestrator drives the two pipeline modes over the layered store:
// full refresh walks every month of the target year, incremental resolves and
// processes exactly one month. Both record every attempt in the audit history
// and finish with full-replace rebuilds of the downstream layers.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dwsmith1983/stratum/internal/audit"
	"github.com/dwsmith1983/stratum/internal/loader"
	"github.com/dwsmith1983/stratum/internal/metrics"
	"github.com/dwsmith1983/stratum/internal/retry"
	"github.com/dwsmith1983/stratum/internal/source"
	"github.com/dwsmith1983/stratum/internal/store"
	"github.com/dwsmith1983/stratum/pkg/types"
)

// ErrNothingToDo signals that every month of the target year already carries
// a completed record. The incremental driver records nothing in this case.
var ErrNothingToDo = errors.New("all units complete, nothing to do")

// Orchestrator composes the loader, retry executor, and audit recorder into
// the pipeline drivers. A single Orchestrator runs one pipeline at a time;
// concurrent runs against the same dataset are not supported.
type Orchestrator struct {
	cfg      *types.ProjectConfig
	store    store.Store
	loader   *loader.Loader
	recorder audit.Recorder
	exec     *retry.Executor
	logger   *slog.Logger
}

// New creates an Orchestrator wired to the given backends.
func New(cfg *types.ProjectConfig, st store.Store, src source.Source, rec audit.Recorder, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		cfg:      cfg,
		store:    st,
		loader:   loader.New(st, src, logger),
		recorder: rec,
		exec:     retry.NewExecutor(cfg.Retry, logger),
		logger:   logger,
	}
}

// RunFullRefresh processes months 1 through 12 in order, then rebuilds the
// downstream layers. A FAILED month halts the run immediately: later months
// are not attempted and no rebuild happens, so downstream layers are never
// rebuilt from an inconsistent staging state.
func (o *Orchestrator) RunFullRefresh(ctx context.Context) error {
	o.logger.Info("starting full refresh", "year", o.cfg.TargetYear)

	for month := 1; month <= types.MonthsPerYear; month++ {
		// Cancellation is honored only between units; an in-flight load
		// finishes or fails rather than being torn down mid-batch.
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := o.processUnit(ctx, types.PipelineFullRefresh, month); err != nil {
			return err
		}
	}
	return o.rebuildDownstream(ctx, types.PipelineFullRefresh)
}

// RunIncremental resolves the next incomplete month from the audit history
// and processes it, then rebuilds the downstream layers. A non-zero override
// bypasses the resolver but not the idempotency check. When all twelve months
// are complete it returns ErrNothingToDo without recording anything.
func (o *Orchestrator) RunIncremental(ctx context.Context, override int) error {
	month := override
	if month == 0 {
		history, err := o.recorder.History(ctx)
		if err != nil {
			return err
		}
		next, ok := audit.NextUnit(history)
		if !ok {
			o.logger.Info("target year complete", "year", o.cfg.TargetYear)
			return ErrNothingToDo
		}
		month = next
	} else if month < 1 || month > types.MonthsPerYear {
		return types.Fatal(fmt.Errorf("month override %d out of range 1..%d", month, types.MonthsPerYear))
	}

	o.logger.Info("starting incremental step",
		"year", o.cfg.TargetYear, "month", types.MonthName(month))

	if err := o.processUnit(ctx, types.PipelineIncremental, month); err != nil {
		return err
	}
	return o.rebuildDownstream(ctx, types.PipelineIncremental)
}

// processUnit loads one month through the retry executor and records the
// outcome. Runtime spans from before the idempotency check through the end
// of the load, retry backoff included, on the monotonic clock. The unit's
// error is returned after the record is written; a recorder failure takes
// precedence, since an unrecorded outcome would corrupt the history.
func (o *Orchestrator) processUnit(ctx context.Context, pipeline types.PipelineName, month int) error {
	start := time.Now()
	rec := audit.NewRunRecord(pipeline, o.cfg.TargetYear, month)

	var outcome *loader.Outcome
	unitErr := o.exec.Do(ctx, "load "+types.MonthName(month), func(ctx context.Context) error {
		var err error
		outcome, err = o.loader.LoadUnit(ctx, month)
		return err
	})
	rec.Runtime = time.Since(start).Seconds()

	if unitErr != nil {
		rec.Status = types.StatusFailed
		rec.ErrorMessage = unitErr.Error()
		metrics.UnitsFailed.Add(1)
	} else {
		rec.Status = outcome.Status
		rec.RowsLoaded = outcome.Rows
		switch outcome.Status {
		case types.StatusSkipped:
			metrics.UnitsSkipped.Add(1)
		default:
			metrics.UnitsLoaded.Add(1)
		}
	}

	if err := o.recorder.Record(ctx, rec); err != nil {
		metrics.RecorderErrors.Add(1)
		return err
	}
	return unitErr
}

// rebuildDownstream fully replaces validated, cleaned, and aggregated in
// order. Each stage is retry-wrapped and recorded on its own; a failed stage
// halts the remaining stages, since each is derived from the previous one.
func (o *Orchestrator) rebuildDownstream(ctx context.Context, pipeline types.PipelineName) error {
	for _, stage := range types.Stages() {
		start := time.Now()
		rec := audit.NewStageRecord(pipeline, o.cfg.TargetYear, stage)

		var rows int64
		stageErr := o.exec.Do(ctx, "rebuild "+string(stage), func(ctx context.Context) error {
			var err error
			rows, err = o.store.Rebuild(ctx, stage)
			return err
		})
		rec.Runtime = time.Since(start).Seconds()
		metrics.RebuildsTotal.Add(1)

		if stageErr != nil {
			rec.Status = types.StatusFailed
			rec.ErrorMessage = stageErr.Error()
			metrics.RebuildsFailed.Add(1)
		} else {
			rec.Status = types.StatusSuccess
			rec.RowsLoaded = rows
		}

		if err := o.recorder.Record(ctx, rec); err != nil {
			metrics.RecorderErrors.Add(1)
			return err
		}
		if stageErr != nil {
			return stageErr
		}
	}
	return nil
}
