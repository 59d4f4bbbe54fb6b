// Package dynamodb implements the audit Recorder on AWS DynamoDB, for
// deployments that keep the run history outside the analytical store.
package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/dwsmith1983/stratum/internal/audit"
	"github.com/dwsmith1983/stratum/pkg/types"
)

// Compile-time interface satisfaction check.
var _ audit.Recorder = (*Recorder)(nil)

// DDBAPI is the subset of the DynamoDB client used by the recorder.
type DDBAPI interface {
	PutItem(ctx context.Context, input *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, input *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	DescribeTable(ctx context.Context, input *dynamodb.DescribeTableInput, opts ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	CreateTable(ctx context.Context, input *dynamodb.CreateTableInput, opts ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

// Recorder stores run records as single-table items: one partition for the
// history, records sorted by timestamp-prefixed keys.
type Recorder struct {
	client      DDBAPI
	tableName   string
	createTable bool
	logger      *slog.Logger
}

// New creates a Recorder from the audit config.
func New(cfg *types.DynamoDBAuditConfig, logger *slog.Logger) (*Recorder, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	// For DynamoDB Local: use static credentials and a custom endpoint.
	if cfg.Endpoint != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider("local", "local", ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, types.Fatal(fmt.Errorf("loading AWS config: %w", err))
	}

	var clientOpts []func(*dynamodb.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *dynamodb.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		client:      dynamodb.NewFromConfig(awsCfg, clientOpts...),
		tableName:   cfg.TableName,
		createTable: cfg.CreateTable,
		logger:      logger,
	}, nil
}

// NewWithClient creates a Recorder over an explicit client, for tests.
func NewWithClient(client DDBAPI, tableName string, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{client: client, tableName: tableName, logger: logger}
}

// Ensure verifies the audit table exists, creating it when configured to.
func (r *Recorder) Ensure(ctx context.Context) error {
	_, err := r.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: &r.tableName,
	})
	if err == nil {
		return nil
	}

	var notFound *ddbtypes.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return types.RecorderFailure(fmt.Errorf("describing audit table: %w", err))
	}
	if !r.createTable {
		return types.Fatal(fmt.Errorf("audit table %s does not exist", r.tableName))
	}

	r.logger.Info("creating audit table", "table", r.tableName)
	_, err = r.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: &r.tableName,
		AttributeDefinitions: []ddbtypes.AttributeDefinition{
			{AttributeName: aws.String("PK"), AttributeType: ddbtypes.ScalarAttributeTypeS},
			{AttributeName: aws.String("SK"), AttributeType: ddbtypes.ScalarAttributeTypeS},
		},
		KeySchema: []ddbtypes.KeySchemaElement{
			{AttributeName: aws.String("PK"), KeyType: ddbtypes.KeyTypeHash},
			{AttributeName: aws.String("SK"), KeyType: ddbtypes.KeyTypeRange},
		},
		BillingMode: ddbtypes.BillingModePayPerRequest,
	})
	if err != nil {
		return types.RecorderFailure(fmt.Errorf("creating audit table: %w", err))
	}
	return nil
}
