package bigquery

import (
	"fmt"

	"cloud.google.com/go/bigquery"

	"github.com/dwsmith1983/stratum/pkg/types"
)

// stagingSchema is the staging table row shape. load_month is the explicit
// unit tag written at load time; idempotency count queries are scoped by it.
var stagingSchema = bigquery.Schema{
	{Name: "vendor_id", Type: bigquery.IntegerFieldType},
	{Name: "pickup_datetime", Type: bigquery.TimestampFieldType},
	{Name: "dropoff_datetime", Type: bigquery.TimestampFieldType},
	{Name: "passenger_count", Type: bigquery.IntegerFieldType},
	{Name: "trip_distance", Type: bigquery.FloatFieldType},
	{Name: "fare_amount", Type: bigquery.FloatFieldType},
	{Name: "total_amount", Type: bigquery.FloatFieldType},
	{Name: "load_month", Type: bigquery.IntegerFieldType},
}

func tableRef(cfg *types.ProjectConfig, table string) string {
	return fmt.Sprintf("`%s.%s.%s`", cfg.Project, cfg.Dataset, table)
}

func stageTable(cfg *types.ProjectConfig, stage types.Stage) (string, error) {
	switch stage {
	case types.StageValidated:
		return cfg.Tables.Validated, nil
	case types.StageCleaned:
		return cfg.Tables.Cleaned, nil
	case types.StageAggregated:
		return cfg.Tables.Aggregated, nil
	default:
		return "", fmt.Errorf("unknown stage: %s", stage)
	}
}

// ensureTableSQL returns CREATE TABLE IF NOT EXISTS statements keyed by table
// name. Staging is integer-range partitioned on load_month so that unit
// counts and deletes touch a single partition. Downstream layers are created
// on first rebuild via CREATE OR REPLACE, matching their full-replace
// lifecycle; only staging needs up-front DDL. The audit table belongs to the
// audit recorder.
func ensureTableSQL(cfg *types.ProjectConfig) map[string]string {
	staging := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  vendor_id INT64,
  pickup_datetime TIMESTAMP,
  dropoff_datetime TIMESTAMP,
  passenger_count INT64,
  trip_distance FLOAT64,
  fare_amount FLOAT64,
  total_amount FLOAT64,
  load_month INT64 NOT NULL
)
PARTITION BY RANGE_BUCKET(load_month, GENERATE_ARRAY(1, 13, 1))`,
		tableRef(cfg, cfg.Tables.Staging))

	return map[string]string{
		cfg.Tables.Staging: staging,
	}
}

func countUnitSQL(cfg *types.ProjectConfig, month int) string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE load_month = %d",
		tableRef(cfg, cfg.Tables.Staging), month)
}

func countYearSQL(cfg *types.ProjectConfig) string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s", tableRef(cfg, cfg.Tables.Staging))
}

func countStageSQL(cfg *types.ProjectConfig, stage types.Stage) string {
	table, _ := stageTable(cfg, stage)
	return fmt.Sprintf("SELECT COUNT(*) FROM %s", tableRef(cfg, table))
}

func deleteUnitSQL(cfg *types.ProjectConfig, month int) string {
	return fmt.Sprintf("DELETE FROM %s WHERE load_month = %d",
		tableRef(cfg, cfg.Tables.Staging), month)
}

// rebuildSQL returns the CREATE OR REPLACE statement for a downstream layer.
// Each layer is always the full transformation of its upstream layer; nothing
// downstream of staging is ever patched incrementally.
func rebuildSQL(cfg *types.ProjectConfig, stage types.Stage) (string, error) {
	switch stage {
	case types.StageValidated:
		// Year filter: staged source files can contain out-of-range records
		// from unrelated periods; they stop here.
		return fmt.Sprintf(`CREATE OR REPLACE TABLE %s AS
SELECT vendor_id, pickup_datetime, dropoff_datetime, passenger_count,
       trip_distance, fare_amount, total_amount, load_month
FROM %s
WHERE pickup_datetime >= TIMESTAMP('%d-01-01')
  AND pickup_datetime < TIMESTAMP('%d-01-01')`,
			tableRef(cfg, cfg.Tables.Validated),
			tableRef(cfg, cfg.Tables.Staging),
			cfg.TargetYear, cfg.TargetYear+1), nil

	case types.StageCleaned:
		return fmt.Sprintf(`CREATE OR REPLACE TABLE %s AS
SELECT vendor_id, pickup_datetime, dropoff_datetime, passenger_count,
       trip_distance, fare_amount, total_amount
FROM %s
WHERE dropoff_datetime > pickup_datetime
  AND trip_distance > 0
  AND passenger_count > 0
  AND fare_amount >= 0
  AND total_amount >= 0`,
			tableRef(cfg, cfg.Tables.Cleaned),
			tableRef(cfg, cfg.Tables.Validated)), nil

	case types.StageAggregated:
		return fmt.Sprintf(`CREATE OR REPLACE TABLE %s AS
SELECT DATE(pickup_datetime) AS trip_date,
       COUNT(*) AS trip_count,
       SUM(trip_distance) AS total_distance,
       AVG(trip_distance) AS avg_distance,
       SUM(total_amount) AS total_revenue,
       AVG(fare_amount) AS avg_fare
FROM %s
GROUP BY trip_date`,
			tableRef(cfg, cfg.Tables.Aggregated),
			tableRef(cfg, cfg.Tables.Cleaned)), nil

	default:
		return "", fmt.Errorf("unknown stage: %s", stage)
	}
}
