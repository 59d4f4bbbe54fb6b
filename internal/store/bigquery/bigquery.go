// Package bigquery implements the Store interface backed by Google BigQuery.
package bigquery

import (
	"context"
	"fmt"
	"log/slog"

	"cloud.google.com/go/bigquery"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/dwsmith1983/stratum/internal/store"
	"github.com/dwsmith1983/stratum/pkg/types"
)

// Compile-time interface satisfaction check.
var _ store.Store = (*BigQueryStore)(nil)

// API is the subset of the BigQuery client used by the store. Tests supply
// a fake; production wraps the real client.
type API interface {
	Exec(ctx context.Context, sql string) error
	ExecDML(ctx context.Context, sql string) (int64, error)
	QueryInt64(ctx context.Context, sql string) (int64, error)
	ReadRows(ctx context.Context, sql string) ([]map[string]bigquery.Value, error)
	Insert(ctx context.Context, table string, rows []*bigquery.ValuesSaver) error
	Close() error
}

// BigQueryStore implements Store against a single project/dataset.
type BigQueryStore struct {
	api    API
	cfg    *types.ProjectConfig
	logger *slog.Logger
}

// New creates a BigQueryStore with a real client.
func New(ctx context.Context, cfg *types.ProjectConfig, logger *slog.Logger, opts ...option.ClientOption) (*BigQueryStore, error) {
	client, err := bigquery.NewClient(ctx, cfg.Project, opts...)
	if err != nil {
		return nil, types.Fatal(fmt.Errorf("creating BigQuery client: %w", err))
	}
	return NewWithAPI(&clientWrapper{client: client, dataset: cfg.Dataset}, cfg, logger), nil
}

// NewWithAPI creates a BigQueryStore over an explicit API implementation.
func NewWithAPI(api API, cfg *types.ProjectConfig, logger *slog.Logger) *BigQueryStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &BigQueryStore{api: api, cfg: cfg, logger: logger}
}

// API exposes the underlying client subset for collaborators sharing the
// connection (the BigQuery audit recorder).
func (s *BigQueryStore) API() API { return s.api }

// EnsureTables creates the staging, downstream, and audit tables if absent.
// The DDL statements are independent, so they run concurrently.
func (s *BigQueryStore) EnsureTables(ctx context.Context) error {
	stmts := ensureTableSQL(s.cfg)
	g, ctx := errgroup.WithContext(ctx)
	for name, ddl := range stmts {
		name, ddl := name, ddl
		g.Go(func() error {
			s.logger.Info("ensuring table", "table", name)
			if err := s.api.Exec(ctx, ddl); err != nil {
				return fmt.Errorf("creating table %s: %w", name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (s *BigQueryStore) CountUnit(ctx context.Context, month int) (int64, error) {
	n, err := s.api.QueryInt64(ctx, countUnitSQL(s.cfg, month))
	if err != nil {
		return 0, classify(fmt.Errorf("counting staged rows for %s: %w", types.MonthName(month), err))
	}
	return n, nil
}

func (s *BigQueryStore) CountYear(ctx context.Context) (int64, error) {
	n, err := s.api.QueryInt64(ctx, countYearSQL(s.cfg))
	if err != nil {
		return 0, classify(fmt.Errorf("counting staged rows: %w", err))
	}
	return n, nil
}

func (s *BigQueryStore) InsertBatch(ctx context.Context, month int, batch []types.TripRecord) (int64, error) {
	if len(batch) == 0 {
		return 0, nil
	}
	rows := make([]*bigquery.ValuesSaver, 0, len(batch))
	for _, rec := range batch {
		rows = append(rows, &bigquery.ValuesSaver{
			Schema: stagingSchema,
			Row: []bigquery.Value{
				rec.VendorID,
				rec.PickupTime,
				rec.DropoffTime,
				rec.PassengerCount,
				rec.TripDistance,
				rec.FareAmount,
				rec.TotalAmount,
				int64(month),
			},
		})
	}
	if err := s.api.Insert(ctx, s.cfg.Tables.Staging, rows); err != nil {
		return 0, classify(fmt.Errorf("inserting batch for %s: %w", types.MonthName(month), err))
	}
	return int64(len(batch)), nil
}

func (s *BigQueryStore) DeleteUnit(ctx context.Context, month int) (int64, error) {
	n, err := s.api.ExecDML(ctx, deleteUnitSQL(s.cfg, month))
	if err != nil {
		return 0, classify(fmt.Errorf("deleting staged rows for %s: %w", types.MonthName(month), err))
	}
	s.logger.Info("deleted staged unit", "month", types.MonthName(month), "rows", n)
	return n, nil
}

func (s *BigQueryStore) Rebuild(ctx context.Context, stage types.Stage) (int64, error) {
	sql, err := rebuildSQL(s.cfg, stage)
	if err != nil {
		return 0, types.Fatal(err)
	}
	if err := s.api.Exec(ctx, sql); err != nil {
		return 0, classify(fmt.Errorf("rebuilding %s layer: %w", stage, err))
	}
	n, err := s.api.QueryInt64(ctx, countStageSQL(s.cfg, stage))
	if err != nil {
		return 0, classify(fmt.Errorf("counting %s layer: %w", stage, err))
	}
	s.logger.Info("rebuilt layer", "stage", string(stage), "rows", n)
	return n, nil
}

func (s *BigQueryStore) Ping(ctx context.Context) error {
	if _, err := s.api.QueryInt64(ctx, "SELECT 1"); err != nil {
		return classify(fmt.Errorf("pinging BigQuery: %w", err))
	}
	return nil
}

func (s *BigQueryStore) Close() error { return s.api.Close() }

// clientWrapper wraps the real BigQuery client.
type clientWrapper struct {
	client  *bigquery.Client
	dataset string
}

func (w *clientWrapper) Exec(ctx context.Context, sql string) error {
	job, err := w.client.Query(sql).Run(ctx)
	if err != nil {
		return err
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return err
	}
	return status.Err()
}

func (w *clientWrapper) ExecDML(ctx context.Context, sql string) (int64, error) {
	job, err := w.client.Query(sql).Run(ctx)
	if err != nil {
		return 0, err
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return 0, err
	}
	if err := status.Err(); err != nil {
		return 0, err
	}
	if stats, ok := status.Statistics.Details.(*bigquery.QueryStatistics); ok {
		return stats.NumDMLAffectedRows, nil
	}
	return 0, nil
}

func (w *clientWrapper) QueryInt64(ctx context.Context, sql string) (int64, error) {
	it, err := w.client.Query(sql).Read(ctx)
	if err != nil {
		return 0, err
	}
	var row []bigquery.Value
	if err := it.Next(&row); err != nil {
		return 0, err
	}
	if len(row) == 0 {
		return 0, fmt.Errorf("empty result row")
	}
	n, ok := row[0].(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected result type %T", row[0])
	}
	return n, nil
}

func (w *clientWrapper) ReadRows(ctx context.Context, sql string) ([]map[string]bigquery.Value, error) {
	it, err := w.client.Query(sql).Read(ctx)
	if err != nil {
		return nil, err
	}
	var rows []map[string]bigquery.Value
	for {
		row := map[string]bigquery.Value{}
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (w *clientWrapper) Insert(ctx context.Context, table string, rows []*bigquery.ValuesSaver) error {
	ins := w.client.Dataset(w.dataset).Table(table).Inserter()
	return ins.Put(ctx, rows)
}

func (w *clientWrapper) Close() error { return w.client.Close() }
