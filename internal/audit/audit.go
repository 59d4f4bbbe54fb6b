// Package audit owns the append-only run history: the recorder boundary that
// persists run records, and the progression resolver that derives the next
// unit of work from the recorded history. History is the sole source of truth
// for progression; records are never mutated or deleted.
package audit

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/dwsmith1983/stratum/pkg/types"
)

// Recorder persists run records durably. A failed Record is fatal to the
// whole run: an unrecorded outcome would make the history lie.
type Recorder interface {
	// Ensure creates the audit storage if absent.
	Ensure(ctx context.Context) error

	// Record appends one immutable run record.
	Record(ctx context.Context, rec types.RunRecord) error

	// History returns all run records in run_timestamp order, oldest first.
	History(ctx context.Context) ([]types.RunRecord, error)
}

// NewRunRecord starts a run record for a unit-of-work attempt. Month 0 marks
// whole-year and rebuild records. Status, rows, runtime and error message are
// filled in when the attempt finishes.
func NewRunRecord(pipeline types.PipelineName, year, month int) types.RunRecord {
	return types.RunRecord{
		RecordID:     ulid.Make().String(),
		PipelineName: pipeline,
		Month:        month,
		UnitLabel:    types.UnitLabel(month),
		DateRange:    types.DateRange(year, month),
		RunTimestamp: time.Now().UTC(),
	}
}

// NewStageRecord starts a run record for a downstream full-replace rebuild.
func NewStageRecord(pipeline types.PipelineName, year int, stage types.Stage) types.RunRecord {
	rec := NewRunRecord(pipeline, year, 0)
	rec.UnitLabel = "rebuild " + string(stage)
	return rec
}
