package bigquery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/stratum/pkg/types"
)

// fakeAPI records executed statements and serves scripted results.
type fakeAPI struct {
	mu       sync.Mutex
	execSQL  []string
	dmlSQL   []string
	querySQL []string
	inserted map[string][]*bigquery.ValuesSaver

	execErr   error
	dmlRows   int64
	dmlErr    error
	queryInts []int64
	queryErr  error
	insertErr error
	closed    bool
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{inserted: make(map[string][]*bigquery.ValuesSaver)}
}

func (f *fakeAPI) Exec(_ context.Context, sql string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execSQL = append(f.execSQL, sql)
	return f.execErr
}

func (f *fakeAPI) ExecDML(_ context.Context, sql string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dmlSQL = append(f.dmlSQL, sql)
	return f.dmlRows, f.dmlErr
}

func (f *fakeAPI) QueryInt64(_ context.Context, sql string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.querySQL = append(f.querySQL, sql)
	if f.queryErr != nil {
		return 0, f.queryErr
	}
	if len(f.queryInts) == 0 {
		return 0, nil
	}
	n := f.queryInts[0]
	f.queryInts = f.queryInts[1:]
	return n, nil
}

func (f *fakeAPI) ReadRows(_ context.Context, _ string) ([]map[string]bigquery.Value, error) {
	return nil, nil
}

func (f *fakeAPI) Insert(_ context.Context, table string, rows []*bigquery.ValuesSaver) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted[table] = append(f.inserted[table], rows...)
	return nil
}

func (f *fakeAPI) Close() error {
	f.closed = true
	return nil
}

func testConfig() *types.ProjectConfig {
	return &types.ProjectConfig{
		Project:    "proj",
		Dataset:    "trips",
		TargetYear: 2024,
		Tables: types.TableConfig{
			Staging:    "trips_staging",
			Validated:  "trips_validated",
			Cleaned:    "trips_cleaned",
			Aggregated: "trips_daily",
			Audit:      "pipeline_runs",
		},
	}
}

func TestEnsureTables(t *testing.T) {
	api := newFakeAPI()
	st := NewWithAPI(api, testConfig(), nil)

	require.NoError(t, st.EnsureTables(context.Background()))

	require.Len(t, api.execSQL, 1)
	assert.Contains(t, api.execSQL[0], "CREATE TABLE IF NOT EXISTS `proj.trips.trips_staging`")
	assert.Contains(t, api.execSQL[0], "RANGE_BUCKET(load_month")
}

func TestCountUnit(t *testing.T) {
	api := newFakeAPI()
	api.queryInts = []int64{2964624}
	st := NewWithAPI(api, testConfig(), nil)

	n, err := st.CountUnit(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2964624), n)
	assert.Contains(t, api.querySQL[0], "WHERE load_month = 2")
}

func TestInsertBatch_TagsRowsWithLoadMonth(t *testing.T) {
	api := newFakeAPI()
	st := NewWithAPI(api, testConfig(), nil)

	batch := []types.TripRecord{
		{VendorID: 1, PickupTime: time.Now(), PassengerCount: 2},
		{VendorID: 2, PickupTime: time.Now(), PassengerCount: 1},
	}
	n, err := st.InsertBatch(context.Background(), 3, batch)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	rows := api.inserted["trips_staging"]
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.Equal(t, bigquery.Value(int64(3)), row.Row[len(row.Row)-1])
	}
}

func TestInsertBatch_EmptyIsNoop(t *testing.T) {
	api := newFakeAPI()
	st := NewWithAPI(api, testConfig(), nil)

	n, err := st.InsertBatch(context.Background(), 3, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, api.inserted)
}

func TestDeleteUnit(t *testing.T) {
	api := newFakeAPI()
	api.dmlRows = 512
	st := NewWithAPI(api, testConfig(), nil)

	n, err := st.DeleteUnit(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(512), n)
	assert.Contains(t, api.dmlSQL[0], "DELETE FROM `proj.trips.trips_staging` WHERE load_month = 7")
}

func TestRebuild(t *testing.T) {
	api := newFakeAPI()
	api.queryInts = []int64{1000}
	st := NewWithAPI(api, testConfig(), nil)

	n, err := st.Rebuild(context.Background(), types.StageValidated)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), n)

	require.Len(t, api.execSQL, 1)
	assert.Contains(t, api.execSQL[0], "CREATE OR REPLACE TABLE `proj.trips.trips_validated`")
	assert.Contains(t, api.execSQL[0], "TIMESTAMP('2024-01-01')")
	assert.Contains(t, api.execSQL[0], "TIMESTAMP('2025-01-01')")
}

func TestRebuild_UnknownStageIsFatal(t *testing.T) {
	st := NewWithAPI(newFakeAPI(), testConfig(), nil)

	_, err := st.Rebuild(context.Background(), types.Stage("bogus"))
	require.Error(t, err)
	assert.Equal(t, types.FailureFatal, types.KindOf(err))
}

func TestRebuildSQL_StageChain(t *testing.T) {
	cfg := testConfig()

	cleaned, err := rebuildSQL(cfg, types.StageCleaned)
	require.NoError(t, err)
	assert.Contains(t, cleaned, "FROM `proj.trips.trips_validated`")
	assert.Contains(t, cleaned, "dropoff_datetime > pickup_datetime")

	agg, err := rebuildSQL(cfg, types.StageAggregated)
	require.NoError(t, err)
	assert.Contains(t, agg, "FROM `proj.trips.trips_cleaned`")
	assert.Contains(t, agg, "GROUP BY trip_date")
}

func TestQueryErrorsAreClassified(t *testing.T) {
	api := newFakeAPI()
	api.queryErr = errors.New("rpc error: unavailable")
	st := NewWithAPI(api, testConfig(), nil)

	_, err := st.CountUnit(context.Background(), 1)
	require.Error(t, err)
	assert.Equal(t, types.FailureTransient, types.KindOf(err))
}

func TestClose(t *testing.T) {
	api := newFakeAPI()
	st := NewWithAPI(api, testConfig(), nil)
	require.NoError(t, st.Close())
	assert.True(t, api.closed)
}
