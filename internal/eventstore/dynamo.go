package eventstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/imrishuroy/go-orderflow-saga/internal/aws"
)

// maxTransactItems is DynamoDB's TransactWriteItems limit.
const maxTransactItems = 100

// DynamoStore stores one item per event: partition key aggregate_id, sort key version.
type DynamoStore struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewDynamoStore creates a DynamoStore over tableName.
func NewDynamoStore(client aws.DynamoDBAPI, tableName string) *DynamoStore {
	return &DynamoStore{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

// Load pages through the stream in version order.
func (s *DynamoStore) Load(ctx context.Context, aggregateID string) ([]Record, error) {
	var (
		out   []Record
		start map[string]types.AttributeValue
	)
	for {
		resp, err := s.client.Query(ctx, &dyn.QueryInput{
			TableName:                 &s.tableName,
			KeyConditionExpression:    awsString("aggregate_id = :id"),
			ExpressionAttributeValues: map[string]types.AttributeValue{":id": &types.AttributeValueMemberS{Value: aggregateID}},
			ConsistentRead:            awsBool(true),
			ScanIndexForward:          awsBool(true),
			ExclusiveStartKey:         start,
		})
		if err != nil {
			return nil, fmt.Errorf("query stream %s: %w", aggregateID, err)
		}
		var page []Record
		if err := attributevalue.UnmarshalListOfMaps(resp.Items, &page); err != nil {
			return nil, fmt.Errorf("unmarshal stream %s: %w", aggregateID, err)
		}
		out = append(out, page...)
		if len(resp.LastEvaluatedKey) == 0 {
			return out, nil
		}
		start = resp.LastEvaluatedKey
	}
}

// Append writes all records in one transaction. Every put is conditioned on
// its version being free, and the first put also asserts the previous
// version exists, so a writer holding a stale version is refused.
func (s *DynamoStore) Append(ctx context.Context, aggregateID string, expectedVersion int, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	if len(records) > maxTransactItems {
		return fmt.Errorf("append %s: %d records exceeds transaction limit", aggregateID, len(records))
	}

	stamped := stamp(aggregateID, expectedVersion, records, s.nowFunc())
	items := make([]types.TransactWriteItem, 0, len(stamped))
	for _, r := range stamped {
		item, err := attributevalue.MarshalMap(r)
		if err != nil {
			return fmt.Errorf("marshal event %s/%d: %w", aggregateID, r.Version, err)
		}
		items = append(items, types.TransactWriteItem{
			Put: &types.Put{
				TableName:           &s.tableName,
				Item:                item,
				ConditionExpression: awsString("attribute_not_exists(version)"),
			},
		})
	}
	if expectedVersion > 0 {
		// The predecessor must already be stored.
		items = append(items, types.TransactWriteItem{
			ConditionCheck: &types.ConditionCheck{
				TableName: &s.tableName,
				Key: map[string]types.AttributeValue{
					"aggregate_id": &types.AttributeValueMemberS{Value: aggregateID},
					"version":      &types.AttributeValueMemberN{Value: strconv.Itoa(expectedVersion)},
				},
				ConditionExpression: awsString("attribute_exists(version)"),
			},
		})
	}

	_, err := s.client.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{TransactItems: items})
	if err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) {
			return fmt.Errorf("%w: %s expected version %d", ErrVersionConflict, aggregateID, expectedVersion)
		}
		return fmt.Errorf("append %s: %w", aggregateID, err)
	}
	return nil
}

func awsString(s string) *string { return &s }
func awsBool(b bool) *bool       { return &b }
