package dynamodb

import (
	"fmt"
	"time"
)

// Single-table layout: all run records live in one partition and sort by a
// millisecond timestamp prefix. The record ID suffix breaks ties.
const (
	pkRunHistory    = "RUNS"
	prefixRunRecord = "RUNREC#"
)

func runRecordSK(ts time.Time, recordID string) string {
	return fmt.Sprintf("%s%013d#%s", prefixRunRecord, ts.UnixMilli(), recordID)
}
