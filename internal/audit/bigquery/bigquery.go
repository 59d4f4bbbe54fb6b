// Package bigquery implements the audit Recorder on a BigQuery table,
// keeping the run history beside the data it describes.
package bigquery

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"

	"github.com/dwsmith1983/stratum/internal/audit"
	storebq "github.com/dwsmith1983/stratum/internal/store/bigquery"
	"github.com/dwsmith1983/stratum/pkg/types"
)

// Compile-time interface satisfaction check.
var _ audit.Recorder = (*Recorder)(nil)

// Recorder appends run records to the audit table via DML and reads the full
// history back for progression decisions. It shares the store's client.
type Recorder struct {
	api    storebq.API
	cfg    *types.ProjectConfig
	logger *slog.Logger
}

// New creates a Recorder over the store's BigQuery API.
func New(api storebq.API, cfg *types.ProjectConfig, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{api: api, cfg: cfg, logger: logger}
}

func (r *Recorder) table() string {
	return fmt.Sprintf("`%s.%s.%s`", r.cfg.Project, r.cfg.Dataset, r.cfg.Tables.Audit)
}

// Ensure creates the audit table if absent.
func (r *Recorder) Ensure(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  record_id STRING NOT NULL,
  pipeline_name STRING NOT NULL,
  month INT64,
  unit_label STRING,
  date_range STRING,
  status STRING NOT NULL,
  rows_loaded INT64,
  run_timestamp TIMESTAMP NOT NULL,
  runtime_seconds FLOAT64,
  error_message STRING
)`, r.table())
	if err := r.api.Exec(ctx, ddl); err != nil {
		return types.RecorderFailure(fmt.Errorf("creating audit table: %w", err))
	}
	return nil
}

// Record appends one run record. Any failure is a RecorderFailure: the
// orchestrator treats it as fatal to the run.
func (r *Recorder) Record(ctx context.Context, rec types.RunRecord) error {
	sql := fmt.Sprintf(`INSERT INTO %s
(record_id, pipeline_name, month, unit_label, date_range, status,
 rows_loaded, run_timestamp, runtime_seconds, error_message)
VALUES ('%s', '%s', %d, '%s', '%s', '%s', %d, TIMESTAMP('%s'), %f, '%s')`,
		r.table(),
		escape(rec.RecordID),
		escape(string(rec.PipelineName)),
		rec.Month,
		escape(rec.UnitLabel),
		escape(rec.DateRange),
		escape(string(rec.Status)),
		rec.RowsLoaded,
		rec.RunTimestamp.UTC().Format("2006-01-02 15:04:05"),
		rec.Runtime,
		escape(rec.ErrorMessage),
	)
	if _, err := r.api.ExecDML(ctx, sql); err != nil {
		return types.RecorderFailure(fmt.Errorf("recording run: %w", err))
	}
	r.logger.Info("run recorded",
		"pipeline", string(rec.PipelineName), "unit", rec.UnitLabel,
		"status", string(rec.Status), "rows", rec.RowsLoaded)
	return nil
}

// History returns all run records, oldest first. record_id breaks timestamp
// ties deterministically (ULIDs sort by creation time).
func (r *Recorder) History(ctx context.Context) ([]types.RunRecord, error) {
	sql := fmt.Sprintf(`SELECT record_id, pipeline_name, month, unit_label,
date_range, status, rows_loaded, run_timestamp, runtime_seconds, error_message
FROM %s ORDER BY run_timestamp, record_id`, r.table())

	rows, err := r.api.ReadRows(ctx, sql)
	if err != nil {
		return nil, types.RecorderFailure(fmt.Errorf("reading run history: %w", err))
	}

	records := make([]types.RunRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, types.RunRecord{
			RecordID:     stringVal(row["record_id"]),
			PipelineName: types.PipelineName(stringVal(row["pipeline_name"])),
			Month:        int(intVal(row["month"])),
			UnitLabel:    stringVal(row["unit_label"]),
			DateRange:    stringVal(row["date_range"]),
			Status:       types.RunStatus(stringVal(row["status"])),
			RowsLoaded:   intVal(row["rows_loaded"]),
			RunTimestamp: timeVal(row["run_timestamp"]),
			Runtime:      floatVal(row["runtime_seconds"]),
			ErrorMessage: stringVal(row["error_message"]),
		})
	}
	return records, nil
}

func escape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}

func stringVal(v bigquery.Value) string {
	s, _ := v.(string)
	return s
}

func intVal(v bigquery.Value) int64 {
	n, _ := v.(int64)
	return n
}

func floatVal(v bigquery.Value) float64 {
	f, _ := v.(float64)
	return f
}

func timeVal(v bigquery.Value) time.Time {
	t, _ := v.(time.Time)
	return t
}
