// Package types defines the public domain types for the Stratum layered
// ingestion pipeline.
package types

import (
	"fmt"
	"time"
)

// Months in a target year; units of work are numbered 1..MonthsPerYear.
const MonthsPerYear = 12

// PipelineName identifies which driver produced a run record.
type PipelineName string

// PipelineName values enumerate the two pipeline drivers.
const (
	PipelineFullRefresh PipelineName = "full_refresh"
	PipelineIncremental PipelineName = "incremental"
)

// RunStatus is the terminal outcome of a unit-of-work attempt.
type RunStatus string

// RunStatus values enumerate the possible attempt outcomes.
const (
	StatusSuccess RunStatus = "SUCCESS"
	StatusFailed  RunStatus = "FAILED"
	StatusSkipped RunStatus = "SKIPPED"
)

// Stage names a downstream layer rebuilt by full replace after staging changes.
type Stage string

// Stage values enumerate the downstream layers in rebuild order.
const (
	StageValidated  Stage = "validated"
	StageCleaned    Stage = "cleaned"
	StageAggregated Stage = "aggregated"
)

// Stages returns the downstream rebuild stages in execution order.
func Stages() []Stage {
	return []Stage{StageValidated, StageCleaned, StageAggregated}
}

// RunRecord is one immutable audit entry for an attempted unit of work.
// Records are append-only; pipeline state is always derived from the full
// history, never from mutation.
type RunRecord struct {
	RecordID     string       `json:"recordId"`
	PipelineName PipelineName `json:"pipelineName"`
	Month        int          `json:"month"` // 1-12, or 0 for whole-year / rebuild records
	UnitLabel    string       `json:"unitLabel"`
	DateRange    string       `json:"dateRange"`
	Status       RunStatus    `json:"status"`
	RowsLoaded   int64        `json:"rowsLoaded"`
	RunTimestamp time.Time    `json:"runTimestamp"`
	Runtime      float64      `json:"runtimeSeconds"`
	ErrorMessage string       `json:"errorMessage,omitempty"`
}

// RetryPolicy configures automatic retry behavior for transient failures.
type RetryPolicy struct {
	MaxAttempts       int     `yaml:"maxAttempts" json:"maxAttempts"`
	BackoffSeconds    float64 `yaml:"backoffSeconds" json:"backoffSeconds"`
	BackoffMultiplier float64 `yaml:"backoffMultiplier" json:"backoffMultiplier"`
}

// TripRecord is a single staged source record. LoadMonth is the explicit
// unit tag written at load time; idempotency decisions are scoped by it
// rather than by record timestamps, which may fall outside the unit's
// nominal period.
type TripRecord struct {
	VendorID       int64     `json:"vendorId"`
	PickupTime     time.Time `json:"pickupTime"`
	DropoffTime    time.Time `json:"dropoffTime"`
	PassengerCount int64     `json:"passengerCount"`
	TripDistance   float64   `json:"tripDistance"`
	FareAmount     float64   `json:"fareAmount"`
	TotalAmount    float64   `json:"totalAmount"`
	LoadMonth      int       `json:"loadMonth"`
}

// MonthName returns the English month name for a 1-12 month number.
func MonthName(month int) string {
	if month < 1 || month > MonthsPerYear {
		return fmt.Sprintf("Month-%d", month)
	}
	return time.Month(month).String()
}

// UnitLabel returns the human-readable unit label for a run record:
// the month name, or "full year" for whole-year records.
func UnitLabel(month int) string {
	if month == 0 {
		return "full year"
	}
	return MonthName(month)
}

// DateRange returns the inclusive date-range label for a unit of work in the
// given target year, e.g. "2024-02-01 to 2024-02-29".
func DateRange(year, month int) string {
	if month == 0 {
		return fmt.Sprintf("%d-01-01 to %d-12-31", year, year)
	}
	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	return fmt.Sprintf("%s to %s", first.Format("2006-01-02"), last.Format("2006-01-02"))
}

// MonthBounds returns the half-open [start, end) time bounds of a unit.
func MonthBounds(year, month int) (time.Time, time.Time) {
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}
