// Package commands implements the CLI subcommands for the stratum binary.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/dwsmith1983/stratum/internal/audit"
	auditbq "github.com/dwsmith1983/stratum/internal/audit/bigquery"
	auditddb "github.com/dwsmith1983/stratum/internal/audit/dynamodb"
	"github.com/dwsmith1983/stratum/internal/config"
	"github.com/dwsmith1983/stratum/internal/source"
	"github.com/dwsmith1983/stratum/internal/store"
	storebq "github.com/dwsmith1983/stratum/internal/store/bigquery"
	"github.com/dwsmith1983/stratum/pkg/types"
)

// newLogger builds the process logger. Level defaults to info; STRATUM_DEBUG
// switches to debug.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("STRATUM_DEBUG") != "" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// buildStack creates the store and audit recorder from config. The caller
// must invoke cleanup when done.
func buildStack(ctx context.Context, cfg *types.ProjectConfig, logger *slog.Logger) (store.Store, audit.Recorder, func(), error) {
	st, err := storebq.New(ctx, cfg, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("creating store: %w", err)
	}
	cleanup := func() { _ = st.Close() }

	rec, err := newRecorder(st, cfg, logger)
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}
	return st, rec, cleanup, nil
}

// newRecorder creates the configured audit backend. The BigQuery recorder
// shares the store's client; DynamoDB gets its own.
func newRecorder(st *storebq.BigQueryStore, cfg *types.ProjectConfig, logger *slog.Logger) (audit.Recorder, error) {
	switch cfg.Audit.Provider {
	case "", "bigquery":
		return auditbq.New(st.API(), cfg, logger), nil
	case "dynamodb":
		rec, err := auditddb.New(cfg.Audit.DynamoDB, logger)
		if err != nil {
			return nil, fmt.Errorf("creating dynamodb recorder: %w", err)
		}
		return rec, nil
	default:
		return nil, fmt.Errorf("unsupported audit provider: %s", cfg.Audit.Provider)
	}
}

func newSource(cfg *types.ProjectConfig, logger *slog.Logger) source.Source {
	return source.NewHTTPSource(cfg.Source, logger)
}

func loadConfig() (*types.ProjectConfig, error) {
	cfg, err := config.Load(".")
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", config.FileName, err)
	}
	return cfg, nil
}
