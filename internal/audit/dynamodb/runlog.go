package dynamodb

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/dwsmith1983/stratum/pkg/types"
)

// Record appends one run record. Any failure is a RecorderFailure: the
// orchestrator treats it as fatal to the run.
func (r *Recorder) Record(ctx context.Context, rec types.RunRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return types.RecorderFailure(fmt.Errorf("marshaling run record: %w", err))
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &r.tableName,
		Item: map[string]ddbtypes.AttributeValue{
			"PK":   &ddbtypes.AttributeValueMemberS{Value: pkRunHistory},
			"SK":   &ddbtypes.AttributeValueMemberS{Value: runRecordSK(rec.RunTimestamp, rec.RecordID)},
			"data": &ddbtypes.AttributeValueMemberS{Value: string(data)},
		},
	})
	if err != nil {
		return types.RecorderFailure(fmt.Errorf("recording run: %w", err))
	}
	r.logger.Info("run recorded",
		"pipeline", string(rec.PipelineName), "unit", rec.UnitLabel,
		"status", string(rec.Status), "rows", rec.RowsLoaded)
	return nil
}

// History returns all run records, oldest first. The sort key encodes the run
// timestamp, so ascending key order is chronological order.
func (r *Recorder) History(ctx context.Context) ([]types.RunRecord, error) {
	var records []types.RunRecord
	var startKey map[string]ddbtypes.AttributeValue

	for {
		out, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              &r.tableName,
			KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
			ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
				":pk":     &ddbtypes.AttributeValueMemberS{Value: pkRunHistory},
				":prefix": &ddbtypes.AttributeValueMemberS{Value: prefixRunRecord},
			},
			ScanIndexForward:  aws.Bool(true),
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, types.RecorderFailure(fmt.Errorf("reading run history: %w", err))
		}

		for _, item := range out.Items {
			data, ok := item["data"].(*ddbtypes.AttributeValueMemberS)
			if !ok {
				continue
			}
			var rec types.RunRecord
			if err := json.Unmarshal([]byte(data.Value), &rec); err != nil {
				return nil, types.RecorderFailure(fmt.Errorf("unmarshaling run record: %w", err))
			}
			records = append(records, rec)
		}

		if out.LastEvaluatedKey == nil {
			break
		}
		startKey = out.LastEvaluatedKey
	}
	return records, nil
}
