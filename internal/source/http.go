package source

import (
	"compress/gzip"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/dwsmith1983/stratum/internal/metrics"
	"github.com/dwsmith1983/stratum/pkg/types"
)

// Compile-time interface satisfaction check.
var _ Source = (*HTTPSource)(nil)

// Circuit breaker defaults: open after five consecutive failed downloads,
// probe again after a minute.
const (
	breakerFailThreshold = 5
	breakerCooldown      = 60 * time.Second
)

// HTTPSource downloads monthly record files over HTTP. Downloads run through
// a circuit breaker so a dead upstream fails fast instead of burning the
// retry budget of every unit in sequence.
type HTTPSource struct {
	cfg     types.SourceConfig
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

// NewHTTPSource creates an HTTPSource from the project source config.
func NewHTTPSource(cfg types.SourceConfig, logger *slog.Logger) *HTTPSource {
	if logger == nil {
		logger = slog.Default()
	}
	s := &HTTPSource{
		cfg:    cfg,
		client: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		logger: logger,
	}
	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "source",
		Timeout: breakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerFailThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				metrics.BreakerOpens.Add(1)
			}
			logger.Warn("source circuit breaker state change",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return s
}

// URL returns the download URL for a month.
func (s *HTTPSource) URL(month int) string {
	base := strings.TrimRight(s.cfg.BaseURL, "/")
	return base + "/" + fmt.Sprintf(s.cfg.FileTemplate, month)
}

// Fetch downloads and decodes one month's file. The whole unit is decoded
// before returning so the expected count is known up front; batches are then
// served lazily in bounded slices.
func (s *HTTPSource) Fetch(ctx context.Context, month int) (*FetchResult, error) {
	metrics.SourceFetches.Add(1)

	result, err := s.breaker.Execute(func() (interface{}, error) {
		return s.download(ctx, month)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, types.Transient(fmt.Errorf("source unavailable: %w", err))
		}
		return nil, classifyFetch(err)
	}

	records := result.([]types.TripRecord)
	s.logger.Info("fetched source unit",
		"month", types.MonthName(month), "records", len(records))

	batchSize := s.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = types.DefaultBatchSize
	}
	offset := 0
	return &FetchResult{
		ExpectedRows: int64(len(records)),
		Next: func() ([]types.TripRecord, bool) {
			if offset >= len(records) {
				return nil, false
			}
			end := offset + batchSize
			if end > len(records) {
				end = len(records)
			}
			batch := records[offset:end]
			offset = end
			return batch, true
		},
	}, nil
}

func (s *HTTPSource) download(ctx context.Context, month int) ([]types.TripRecord, error) {
	rawURL := s.URL(month)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, types.Fatal(fmt.Errorf("building request: %w", err))
	}

	s.logger.Info("downloading source file", "url", rawURL, "month", types.MonthName(month))
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return nil, types.Fatal(fmt.Errorf("source file not found: %s", rawURL))
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
		return nil, types.Transient(fmt.Errorf("source returned %d for %s", resp.StatusCode, rawURL))
	default:
		return nil, types.Fatal(fmt.Errorf("source returned %d for %s", resp.StatusCode, rawURL))
	}

	body := io.Reader(resp.Body)
	if strings.HasSuffix(rawURL, ".gz") {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, types.Fatal(fmt.Errorf("opening gzip stream: %w", err))
		}
		defer func() { _ = gz.Close() }()
		body = gz
	}

	records, err := decodeCSV(body)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", rawURL, err)
	}
	return records, nil
}

// csv column layout of the monthly source files.
var csvColumns = []string{
	"vendor_id", "pickup_datetime", "dropoff_datetime",
	"passenger_count", "trip_distance", "fare_amount", "total_amount",
}

func decodeCSV(r io.Reader) ([]types.TripRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(csvColumns)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, types.Fatal(fmt.Errorf("reading header: %w", err))
	}
	for i, col := range csvColumns {
		if header[i] != col {
			return nil, types.Fatal(fmt.Errorf("unexpected column %d: got %q, want %q", i, header[i], col))
		}
	}

	var records []types.TripRecord
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, types.Fatal(fmt.Errorf("line %d: %w", line, err))
		}
		rec, err := parseRow(row)
		if err != nil {
			return nil, types.Fatal(fmt.Errorf("line %d: %w", line, err))
		}
		records = append(records, rec)
	}
	return records, nil
}

func parseRow(row []string) (types.TripRecord, error) {
	var rec types.TripRecord
	var err error

	if rec.VendorID, err = strconv.ParseInt(row[0], 10, 64); err != nil {
		return rec, fmt.Errorf("vendor_id: %w", err)
	}
	if rec.PickupTime, err = parseTimestamp(row[1]); err != nil {
		return rec, fmt.Errorf("pickup_datetime: %w", err)
	}
	if rec.DropoffTime, err = parseTimestamp(row[2]); err != nil {
		return rec, fmt.Errorf("dropoff_datetime: %w", err)
	}
	if rec.PassengerCount, err = strconv.ParseInt(row[3], 10, 64); err != nil {
		return rec, fmt.Errorf("passenger_count: %w", err)
	}
	if rec.TripDistance, err = strconv.ParseFloat(row[4], 64); err != nil {
		return rec, fmt.Errorf("trip_distance: %w", err)
	}
	if rec.FareAmount, err = strconv.ParseFloat(row[5], 64); err != nil {
		return rec, fmt.Errorf("fare_amount: %w", err)
	}
	if rec.TotalAmount, err = strconv.ParseFloat(row[6], 64); err != nil {
		return rec, fmt.Errorf("total_amount: %w", err)
	}
	return rec, nil
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// classifyFetch maps raw download errors onto the failure taxonomy.
// Already-classified errors pass through.
func classifyFetch(err error) error {
	var f *types.Failure
	if errors.As(err, &f) {
		return err
	}
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return types.Transient(err)
	}
	var nerr net.Error
	if errors.As(err, &nerr) {
		return types.Transient(err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return types.Transient(err)
	}
	return types.Transient(err)
}
