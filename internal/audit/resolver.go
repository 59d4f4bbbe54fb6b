package audit

import "github.com/dwsmith1983/stratum/pkg/types"

// completed reports whether a record marks its unit as done. FAILED records
// are informational only and never advance progression.
func completed(rec types.RunRecord) bool {
	return rec.Status == types.StatusSuccess || rec.Status == types.StatusSkipped
}

// CompletedUnits returns the set of months with a completed incremental
// record in the history.
func CompletedUnits(history []types.RunRecord) map[int]bool {
	done := make(map[int]bool)
	for _, rec := range history {
		if rec.PipelineName != types.PipelineIncremental {
			continue
		}
		if rec.Month < 1 || rec.Month > types.MonthsPerYear {
			continue
		}
		if completed(rec) {
			done[rec.Month] = true
		}
	}
	return done
}

// NextUnit returns the next month the incremental driver should attempt: the
// lowest month without a completed record. Gaps are never skipped; a FAILED
// month is re-attempted before anything later. ok=false signals that all
// twelve months are complete and there is nothing to do.
func NextUnit(history []types.RunRecord) (month int, ok bool) {
	done := CompletedUnits(history)
	for m := 1; m <= types.MonthsPerYear; m++ {
		if !done[m] {
			return m, true
		}
	}
	return 0, false
}

// IsYearComplete reports whether the whole target year is already staged:
// every month carries a completed per-unit record, from either driver.
func IsYearComplete(history []types.RunRecord) bool {
	done := make(map[int]bool)
	for _, rec := range history {
		if !completed(rec) {
			continue
		}
		if rec.Month >= 1 && rec.Month <= types.MonthsPerYear {
			done[rec.Month] = true
		}
	}
	return len(done) == types.MonthsPerYear
}
