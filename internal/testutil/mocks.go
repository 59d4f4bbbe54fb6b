// Package testutil provides shared in-memory fakes for testing the
// orchestration layers without real backends.
package testutil

import (
	"context"
	"sync"

	"github.com/dwsmith1983/stratum/internal/audit"
	"github.com/dwsmith1983/stratum/internal/source"
	"github.com/dwsmith1983/stratum/internal/store"
	"github.com/dwsmith1983/stratum/pkg/types"
)

// Compile-time interface satisfaction checks.
var (
	_ store.Store    = (*MockStore)(nil)
	_ source.Source  = (*MockSource)(nil)
	_ audit.Recorder = (*MockRecorder)(nil)
)

// MockStore is an in-memory Store keyed by load month. Errors can be injected
// per method to exercise failure paths.
type MockStore struct {
	mu     sync.Mutex
	units  map[int][]types.TripRecord
	stages map[types.Stage]int64

	CountErr   error
	InsertErr  error
	DeleteErr  error
	RebuildErr map[types.Stage]error

	InsertCalls  int
	DeleteCalls  int
	RebuildCalls []types.Stage
}

// NewMockStore creates an empty in-memory store.
func NewMockStore() *MockStore {
	return &MockStore{
		units:      make(map[int][]types.TripRecord),
		stages:     make(map[types.Stage]int64),
		RebuildErr: make(map[types.Stage]error),
	}
}

// Seed places rows in a unit without going through InsertBatch.
func (m *MockStore) Seed(month int, rows int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.units[month] = make([]types.TripRecord, rows)
}

// Rows returns the current row count for a unit.
func (m *MockStore) Rows(month int) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.units[month]))
}

func (m *MockStore) EnsureTables(_ context.Context) error { return nil }

func (m *MockStore) CountUnit(_ context.Context, month int) (int64, error) {
	if m.CountErr != nil {
		return 0, m.CountErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.units[month])), nil
}

func (m *MockStore) CountYear(_ context.Context) (int64, error) {
	if m.CountErr != nil {
		return 0, m.CountErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int64
	for _, rows := range m.units {
		total += int64(len(rows))
	}
	return total, nil
}

func (m *MockStore) InsertBatch(_ context.Context, month int, batch []types.TripRecord) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InsertCalls++
	if m.InsertErr != nil {
		return 0, m.InsertErr
	}
	m.units[month] = append(m.units[month], batch...)
	return int64(len(batch)), nil
}

func (m *MockStore) DeleteUnit(_ context.Context, month int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeleteCalls++
	if m.DeleteErr != nil {
		return 0, m.DeleteErr
	}
	deleted := int64(len(m.units[month]))
	delete(m.units, month)
	return deleted, nil
}

func (m *MockStore) Rebuild(_ context.Context, stage types.Stage) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RebuildCalls = append(m.RebuildCalls, stage)
	if err := m.RebuildErr[stage]; err != nil {
		return 0, err
	}
	var total int64
	for _, rows := range m.units {
		total += int64(len(rows))
	}
	m.stages[stage] = total
	return total, nil
}

func (m *MockStore) Ping(_ context.Context) error { return nil }
func (m *MockStore) Close() error                 { return nil }

// MockSource serves canned units. Rows maps month to the number of records
// the source holds for it; Errs injects per-month fetch errors, consumed one
// per Fetch call so tests can fail an attempt and let the retry succeed.
type MockSource struct {
	mu        sync.Mutex
	Rows      map[int]int
	Errs      map[int][]error
	BatchSize int

	FetchCalls map[int]int
}

// NewMockSource creates a source with the given rows per month.
func NewMockSource(rows map[int]int) *MockSource {
	return &MockSource{
		Rows:       rows,
		Errs:       make(map[int][]error),
		BatchSize:  1000,
		FetchCalls: make(map[int]int),
	}
}

// FailNext queues errors to be returned by the next Fetch calls for a month.
func (m *MockSource) FailNext(month int, errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Errs[month] = append(m.Errs[month], errs...)
}

func (m *MockSource) Fetch(_ context.Context, month int) (*source.FetchResult, error) {
	m.mu.Lock()
	m.FetchCalls[month]++
	if queue := m.Errs[month]; len(queue) > 0 {
		err := queue[0]
		m.Errs[month] = queue[1:]
		m.mu.Unlock()
		return nil, err
	}
	total := m.Rows[month]
	batchSize := m.BatchSize
	m.mu.Unlock()

	served := 0
	return &source.FetchResult{
		ExpectedRows: int64(total),
		Next: func() ([]types.TripRecord, bool) {
			if served >= total {
				return nil, false
			}
			n := batchSize
			if remaining := total - served; remaining < n {
				n = remaining
			}
			served += n
			return make([]types.TripRecord, n), true
		},
	}, nil
}

// MockRecorder is an in-memory append-only run history.
type MockRecorder struct {
	mu      sync.Mutex
	records []types.RunRecord

	RecordErr  error
	HistoryErr error
}

// NewMockRecorder creates an empty recorder.
func NewMockRecorder() *MockRecorder {
	return &MockRecorder{}
}

// Append seeds history directly, bypassing Record error injection.
func (m *MockRecorder) Append(recs ...types.RunRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, recs...)
}

// Records returns a copy of everything recorded so far.
func (m *MockRecorder) Records() []types.RunRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.RunRecord, len(m.records))
	copy(out, m.records)
	return out
}

func (m *MockRecorder) Ensure(_ context.Context) error { return nil }

func (m *MockRecorder) Record(_ context.Context, rec types.RunRecord) error {
	if m.RecordErr != nil {
		return m.RecordErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

func (m *MockRecorder) History(_ context.Context) ([]types.RunRecord, error) {
	if m.HistoryErr != nil {
		return nil, m.HistoryErr
	}
	return m.Records(), nil
}
