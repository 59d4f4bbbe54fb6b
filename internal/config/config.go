// Package config handles loading and validation of stratum.yaml project configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dwsmith1983/stratum/pkg/types"
)

// FileName is the project configuration file looked up in the working directory.
const FileName = "stratum.yaml"

// Load reads and parses stratum.yaml from the given directory.
func Load(dir string) (*types.ProjectConfig, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg types.ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(cfg *types.ProjectConfig) {
	if cfg.TargetYear == 0 {
		cfg.TargetYear = types.DefaultTargetYear
	}
	if cfg.Source.TimeoutSeconds <= 0 {
		cfg.Source.TimeoutSeconds = types.DefaultFetchTimeout
	}
	if cfg.Source.BatchSize <= 0 {
		cfg.Source.BatchSize = types.DefaultBatchSize
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = types.DefaultMaxAttempts
	}
	if cfg.Retry.BackoffSeconds <= 0 {
		cfg.Retry.BackoffSeconds = types.DefaultBackoffSeconds
	}
	if cfg.Retry.BackoffMultiplier <= 0 {
		cfg.Retry.BackoffMultiplier = types.DefaultBackoffFactor
	}
	if cfg.Audit.Provider == "" {
		cfg.Audit.Provider = "bigquery"
	}
}

func validate(cfg *types.ProjectConfig) error {
	if cfg.Project == "" {
		return fmt.Errorf("project is required")
	}
	if cfg.Dataset == "" {
		return fmt.Errorf("dataset is required")
	}
	tables := map[string]string{
		"tables.staging":    cfg.Tables.Staging,
		"tables.validated":  cfg.Tables.Validated,
		"tables.cleaned":    cfg.Tables.Cleaned,
		"tables.aggregated": cfg.Tables.Aggregated,
		"tables.audit":      cfg.Tables.Audit,
	}
	for name, value := range tables {
		if value == "" {
			return fmt.Errorf("%s is required", name)
		}
	}
	if cfg.Source.BaseURL == "" {
		return fmt.Errorf("source.baseUrl is required")
	}
	if cfg.Source.FileTemplate == "" {
		return fmt.Errorf("source.fileTemplate is required")
	}
	if !strings.Contains(cfg.Source.FileTemplate, "%") {
		return fmt.Errorf("source.fileTemplate must contain a month format verb, e.g. %%02d")
	}
	switch cfg.Audit.Provider {
	case "bigquery":
	case "dynamodb":
		if cfg.Audit.DynamoDB == nil {
			return fmt.Errorf("audit.dynamodb config is required when audit provider is dynamodb")
		}
		if cfg.Audit.DynamoDB.TableName == "" {
			return fmt.Errorf("audit.dynamodb.tableName is required")
		}
	default:
		return fmt.Errorf("unsupported audit provider: %s", cfg.Audit.Provider)
	}
	return nil
}
