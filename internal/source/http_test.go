package source

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/stratum/pkg/types"
)

const sampleCSV = `vendor_id,pickup_datetime,dropoff_datetime,passenger_count,trip_distance,fare_amount,total_amount
1,2024-01-05 08:30:00,2024-01-05 08:45:00,2,3.5,15.00,18.50
2,2024-01-12 22:10:00,2024-01-12 22:40:00,1,8.1,27.50,33.00
1,2024-01-20 14:00:00,2024-01-20 14:05:00,3,0.9,5.50,7.00
`

func gzipBytes(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func newTestSource(serverURL string) *HTTPSource {
	return NewHTTPSource(types.SourceConfig{
		BaseURL:        serverURL,
		FileTemplate:   "trips_2024-%02d.csv.gz",
		TimeoutSeconds: 5,
		BatchSize:      2,
	}, nil)
}

func TestFetch_DecodesGzippedCSV(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/trips_2024-01.csv.gz", r.URL.Path)
		_, _ = w.Write(gzipBytes(t, sampleCSV))
	}))
	defer srv.Close()

	src := newTestSource(srv.URL)
	result, err := src.Fetch(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, int64(3), result.ExpectedRows)

	batch, ok := result.Next()
	require.True(t, ok)
	require.Len(t, batch, 2)
	assert.Equal(t, int64(1), batch[0].VendorID)
	assert.Equal(t, int64(2), batch[0].PassengerCount)
	assert.Equal(t, 3.5, batch[0].TripDistance)
	assert.Equal(t, 18.50, batch[0].TotalAmount)

	batch, ok = result.Next()
	require.True(t, ok)
	assert.Len(t, batch, 1)

	_, ok = result.Next()
	assert.False(t, ok)
}

func TestFetch_PlainCSVWithoutGzipSuffix(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(sampleCSV))
	}))
	defer srv.Close()

	src := NewHTTPSource(types.SourceConfig{
		BaseURL:        srv.URL,
		FileTemplate:   "trips_2024-%02d.csv",
		TimeoutSeconds: 5,
	}, nil)

	result, err := src.Fetch(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.ExpectedRows)
}

func TestFetch_NotFoundIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestSource(srv.URL).Fetch(context.Background(), 1)
	require.Error(t, err)
	assert.Equal(t, types.FailureFatal, types.KindOf(err))
}

func TestFetch_ServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestSource(srv.URL).Fetch(context.Background(), 1)
	require.Error(t, err)
	assert.Equal(t, types.FailureTransient, types.KindOf(err))
}

func TestFetch_RateLimitIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestSource(srv.URL).Fetch(context.Background(), 1)
	require.Error(t, err)
	assert.Equal(t, types.FailureTransient, types.KindOf(err))
}

func TestFetch_MalformedHeaderIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(gzipBytes(t, "wrong,header,layout,a,b,c,d\n"))
	}))
	defer srv.Close()

	_, err := newTestSource(srv.URL).Fetch(context.Background(), 1)
	require.Error(t, err)
	assert.Equal(t, types.FailureFatal, types.KindOf(err))
}

func TestFetch_MalformedRowIsFatal(t *testing.T) {
	bad := sampleCSV + "not-a-number,2024-01-01 00:00:00,2024-01-01 00:10:00,1,1.0,5.0,6.0\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(gzipBytes(t, bad))
	}))
	defer srv.Close()

	_, err := newTestSource(srv.URL).Fetch(context.Background(), 1)
	require.Error(t, err)
	assert.Equal(t, types.FailureFatal, types.KindOf(err))
}

func TestFetch_EmptyFileHasZeroExpected(t *testing.T) {
	header := "vendor_id,pickup_datetime,dropoff_datetime,passenger_count,trip_distance,fare_amount,total_amount\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(gzipBytes(t, header))
	}))
	defer srv.Close()

	result, err := newTestSource(srv.URL).Fetch(context.Background(), 1)
	require.NoError(t, err)
	assert.Zero(t, result.ExpectedRows)

	_, ok := result.Next()
	assert.False(t, ok)
}

func TestFetch_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	src := newTestSource(srv.URL)
	for i := 0; i < breakerFailThreshold; i++ {
		_, err := src.Fetch(context.Background(), 1)
		require.Error(t, err)
	}

	// Breaker is open now: the request never reaches the server and the
	// failure stays transient so callers keep their normal retry path.
	before := hits
	_, err := src.Fetch(context.Background(), 1)
	require.Error(t, err)
	assert.Equal(t, types.FailureTransient, types.KindOf(err))
	assert.Equal(t, before, hits)
}

func TestURL(t *testing.T) {
	src := NewHTTPSource(types.SourceConfig{
		BaseURL:      "https://data.example.com/trips/",
		FileTemplate: "trips_2024-%02d.csv.gz",
	}, nil)

	assert.Equal(t, "https://data.example.com/trips/trips_2024-02.csv.gz", src.URL(2))
}

func TestParseTimestamp(t *testing.T) {
	for _, s := range []string{"2024-01-05T08:30:00Z", "2024-01-05 08:30:00"} {
		ts, err := parseTimestamp(s)
		require.NoError(t, err, s)
		assert.Equal(t, 2024, ts.Year())
	}

	_, err := parseTimestamp("05/01/2024")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unrecognized timestamp")
}

func TestDecodeCSV_FieldCountMismatchIsFatal(t *testing.T) {
	short := "vendor_id,pickup_datetime,dropoff_datetime,passenger_count,trip_distance,fare_amount,total_amount\n1,2024-01-01 00:00:00\n"
	_, err := decodeCSV(bytes.NewReader([]byte(short)))
	require.Error(t, err)
	assert.Equal(t, types.FailureFatal, types.KindOf(err))
}

func TestFetch_RecordsRetainedAfterReuse(t *testing.T) {
	// csv.ReuseRecord shares the row buffer; parsed records must not alias it.
	var rows bytes.Buffer
	rows.WriteString("vendor_id,pickup_datetime,dropoff_datetime,passenger_count,trip_distance,fare_amount,total_amount\n")
	for i := 1; i <= 10; i++ {
		fmt.Fprintf(&rows, "%d,2024-01-%02d 08:00:00,2024-01-%02d 08:30:00,1,2.0,10.0,12.0\n", i, i, i)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(gzipBytes(t, rows.String()))
	}))
	defer srv.Close()

	src := NewHTTPSource(types.SourceConfig{
		BaseURL:        srv.URL,
		FileTemplate:   "t_%02d.csv.gz",
		TimeoutSeconds: 5,
		BatchSize:      100,
	}, nil)

	result, err := src.Fetch(context.Background(), 1)
	require.NoError(t, err)

	batch, ok := result.Next()
	require.True(t, ok)
	require.Len(t, batch, 10)
	for i, rec := range batch {
		assert.Equal(t, int64(i+1), rec.VendorID)
	}
}
