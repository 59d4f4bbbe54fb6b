package types

// Defaults applied by config loading when fields are omitted.
const (
	DefaultTargetYear     = 2024
	DefaultBatchSize      = 50000
	DefaultFetchTimeout   = 300 // seconds
	DefaultMaxAttempts    = 3
	DefaultBackoffSeconds = 1.0
	DefaultBackoffFactor  = 2.0
)

// TableConfig names the five store tables the pipeline owns.
type TableConfig struct {
	Staging    string `yaml:"staging" json:"staging"`
	Validated  string `yaml:"validated" json:"validated"`
	Cleaned    string `yaml:"cleaned" json:"cleaned"`
	Aggregated string `yaml:"aggregated" json:"aggregated"`
	Audit      string `yaml:"audit" json:"audit"`
}

// SourceConfig locates the monthly source files.
type SourceConfig struct {
	// BaseURL plus FileTemplate (fmt verb for the month number, e.g.
	// "trips_2024-%02d.csv.gz") form the per-month download URL.
	BaseURL        string `yaml:"baseUrl" json:"baseUrl"`
	FileTemplate   string `yaml:"fileTemplate" json:"fileTemplate"`
	TimeoutSeconds int    `yaml:"timeoutSeconds,omitempty" json:"timeoutSeconds,omitempty"`
	BatchSize      int    `yaml:"batchSize,omitempty" json:"batchSize,omitempty"`
}

// DynamoDBAuditConfig configures the optional DynamoDB audit backend.
type DynamoDBAuditConfig struct {
	TableName string `yaml:"tableName" json:"tableName"`
	Region    string `yaml:"region,omitempty" json:"region,omitempty"`
	// Endpoint overrides the AWS endpoint for DynamoDB Local.
	Endpoint    string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	CreateTable bool   `yaml:"createTable,omitempty" json:"createTable,omitempty"`
}

// AuditConfig selects where run records are persisted.
type AuditConfig struct {
	// Provider is "bigquery" (default: the audit table lives beside the data)
	// or "dynamodb".
	Provider string               `yaml:"provider,omitempty" json:"provider,omitempty"`
	DynamoDB *DynamoDBAuditConfig `yaml:"dynamodb,omitempty" json:"dynamodb,omitempty"`
}

// ProjectConfig is the top-level stratum.yaml configuration. It is threaded
// explicitly through constructors; nothing reads it ambiently.
type ProjectConfig struct {
	Project    string       `yaml:"project" json:"project"`
	Dataset    string       `yaml:"dataset" json:"dataset"`
	TargetYear int          `yaml:"targetYear,omitempty" json:"targetYear,omitempty"`
	Tables     TableConfig  `yaml:"tables" json:"tables"`
	Source     SourceConfig `yaml:"source" json:"source"`
	Retry      RetryPolicy  `yaml:"retry,omitempty" json:"retry,omitempty"`
	Audit      AuditConfig  `yaml:"audit,omitempty" json:"audit,omitempty"`
}
