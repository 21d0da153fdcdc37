// Package idempotency is the worker's inbox: it records which messages have
// been processed so SQS redeliveries are acknowledged without reprocessing.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/imrishuroy/go-orderflow-saga/internal/aws"
)

// DefaultLease is how long a worker owns a message it began.
const DefaultLease = 2 * time.Minute

// Store encapsulates inbox operations against DynamoDB.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	ttlWindow time.Duration // how long finished entries are kept
	lease     time.Duration
	nowFunc   func() time.Time
}

// NewStore returns a configured Store.
// tableName: DynamoDB table name for inbox entries.
// ttlWindow: retention of entries (e.g., 48*time.Hour)
func NewStore(client aws.DynamoDBAPI, tableName string, ttlWindow time.Duration) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		ttlWindow: ttlWindow,
		lease:     DefaultLease,
		nowFunc:   time.Now,
	}
}

// Begin claims messageID for processing. It succeeds for a new message, for
// one whose last attempt FAILED, and for one whose lease ran out.
// Returns (true, nil) when claimed and (false, nil) when another attempt owns
// or already finished it (use Get to tell which).
func (s *Store) Begin(ctx context.Context, messageID, kind, orderID string) (bool, error) {
	now := s.nowFunc()
	existing, err := s.Get(ctx, messageID)
	if err != nil {
		return false, err
	}
	rec := Record{
		MessageID:  messageID,
		Kind:       kind,
		OrderID:    orderID,
		Status:     StatusInProgress,
		Attempts:   1,
		LeaseUntil: now.Add(s.lease).Unix(),
		CreatedAt:  now,
		UpdatedAt:  now,
		ExpiresAt:  now.Add(s.ttlWindow).Unix(),
	}
	if existing != nil {
		rec.Attempts = existing.Attempts + 1
		rec.CreatedAt = existing.CreatedAt
	}

	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return false, fmt.Errorf("marshal record: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:                &s.tableName,
		Item:                     item,
		ConditionExpression:      awsString("attribute_not_exists(message_id) OR #s = :failed OR (#s = :inprogress AND lease_until < :now)"),
		ExpressionAttributeNames: map[string]string{"#s": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":failed":     &types.AttributeValueMemberS{Value: StatusFailed},
			":inprogress": &types.AttributeValueMemberS{Value: StatusInProgress},
			":now":        &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Unix(), 10)},
		},
	})
	if err != nil {
		var sc smithy.APIError
		if errors.As(err, &sc) && sc.ErrorCode() == "ConditionalCheckFailedException" {
			return false, nil
		}
		return false, fmt.Errorf("put item: %w", err)
	}
	return true, nil
}

// Get retrieves an entry by message id. If not found, returns (nil, nil).
func (s *Store) Get(ctx context.Context, messageID string) (*Record, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tableName,
		Key:            messageKey(messageID),
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var rec Record
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}
	return &rec, nil
}

// MarkDone sets the entry to DONE.
func (s *Store) MarkDone(ctx context.Context, messageID string) error {
	return s.finish(ctx, messageID, StatusDone, "")
}

// MarkFailed marks the entry FAILED so the next delivery can claim it.
func (s *Store) MarkFailed(ctx context.Context, messageID, note string) error {
	return s.finish(ctx, messageID, StatusFailed, note)
}

func (s *Store) finish(ctx context.Context, messageID, status, note string) error {
	now := s.nowFunc()
	_, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:        &s.tableName,
		Key:              messageKey(messageID),
		UpdateExpression: awsString("SET #s = :s, note = :n, updated_at = :ua"),
		ExpressionAttributeNames: map[string]string{
			"#s": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":s":  &types.AttributeValueMemberS{Value: status},
			":n":  &types.AttributeValueMemberS{Value: note},
			":ua": &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
		},
		ConditionExpression: awsString("attribute_exists(message_id)"),
		ReturnValues:        types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return fmt.Errorf("update item (mark %s): %w", status, err)
	}
	return nil
}

func messageKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"message_id": &types.AttributeValueMemberS{Value: id},
	}
}

// Helper
func awsString(s string) *string { return &s }
func awsBool(b bool) *bool       { return &b }
