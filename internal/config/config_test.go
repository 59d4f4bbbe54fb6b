package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/stratum/pkg/types"
)

const validConfig = `project: my-project
dataset: trips
targetYear: 2024
tables:
  staging: trips_staging
  validated: trips_validated
  cleaned: trips_cleaned
  aggregated: trips_daily
  audit: pipeline_runs
source:
  baseUrl: https://data.example.com/trips
  fileTemplate: trips_2024-%02d.csv.gz
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o644))
	return dir
}

func TestLoad(t *testing.T) {
	dir := writeConfig(t, validConfig)

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "my-project", cfg.Project)
	assert.Equal(t, "trips", cfg.Dataset)
	assert.Equal(t, 2024, cfg.TargetYear)
	assert.Equal(t, "trips_staging", cfg.Tables.Staging)
	assert.Equal(t, "https://data.example.com/trips", cfg.Source.BaseURL)
}

func TestLoad_AppliesDefaults(t *testing.T) {
	dir := writeConfig(t, validConfig)

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, types.DefaultFetchTimeout, cfg.Source.TimeoutSeconds)
	assert.Equal(t, types.DefaultBatchSize, cfg.Source.BatchSize)
	assert.Equal(t, types.DefaultMaxAttempts, cfg.Retry.MaxAttempts)
	assert.Equal(t, types.DefaultBackoffSeconds, cfg.Retry.BackoffSeconds)
	assert.Equal(t, types.DefaultBackoffFactor, cfg.Retry.BackoffMultiplier)
	assert.Equal(t, "bigquery", cfg.Audit.Provider)
}

func TestLoad_RetryOverrides(t *testing.T) {
	dir := writeConfig(t, validConfig+`retry:
  maxAttempts: 5
  backoffSeconds: 2.5
  backoffMultiplier: 3
`)

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, 2.5, cfg.Retry.BackoffSeconds)
	assert.Equal(t, 3.0, cfg.Retry.BackoffMultiplier)
}

func TestLoad_DynamoDBAudit(t *testing.T) {
	dir := writeConfig(t, validConfig+`audit:
  provider: dynamodb
  dynamodb:
    tableName: stratum-runs
    region: us-east-1
    endpoint: http://localhost:8000
    createTable: true
`)

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "dynamodb", cfg.Audit.Provider)
	require.NotNil(t, cfg.Audit.DynamoDB)
	assert.Equal(t, "stratum-runs", cfg.Audit.DynamoDB.TableName)
	assert.True(t, cfg.Audit.DynamoDB.CreateTable)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(t.TempDir())
	require.Error(t, err)
}

const configSansSource = `project: my-project
dataset: trips
tables:
  staging: trips_staging
  validated: trips_validated
  cleaned: trips_cleaned
  aggregated: trips_daily
  audit: pipeline_runs
`

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing project",
			content: "dataset: trips\n",
			wantErr: "project is required",
		},
		{
			name:    "missing dataset",
			content: "project: my-project\n",
			wantErr: "dataset is required",
		},
		{
			name:    "missing table",
			content: "project: my-project\ndataset: trips\n",
			wantErr: "is required",
		},
		{
			name: "missing source",
			content: configSansSource,
			wantErr: "source.baseUrl is required",
		},
		{
			name: "template without month verb",
			content: configSansSource + `source:
  baseUrl: https://data.example.com/trips
  fileTemplate: trips.csv.gz
`,
			wantErr: "month format verb",
		},
		{
			name: "dynamodb without config",
			content: validConfig + `audit:
  provider: dynamodb
`,
			wantErr: "audit.dynamodb config is required",
		},
		{
			name: "dynamodb without table name",
			content: validConfig + `audit:
  provider: dynamodb
  dynamodb:
    region: us-east-1
`,
			wantErr: "audit.dynamodb.tableName is required",
		},
		{
			name: "unknown audit provider",
			content: validConfig + `audit:
  provider: etcd
`,
			wantErr: "unsupported audit provider",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dir := writeConfig(t, tc.content)
			_, err := Load(dir)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
