package deadline

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/imrishuroy/go-orderflow-saga/internal/aws"
	"github.com/imrishuroy/go-orderflow-saga/internal/messages"
)

// tombstone marks a cancelled schedule in the deadlines table.
type tombstone struct {
	ScheduleID  string    `dynamodbav:"schedule_id"` // PK
	Name        string    `dynamodbav:"name"`
	CancelledAt time.Time `dynamodbav:"cancelled_at"`
	ExpiresAt   int64     `dynamodbav:"expires_at"` // TTL epoch seconds
}

// SQSScheduler delivers deadlines as delayed SQS messages. SQS cannot delete
// a message by id before it is received, so Cancel records a tombstone that
// the worker checks with Cancelled when the firing arrives. A rescheduled
// deadline sends a second message under the same id: the tombstone drops
// both, and the saga ignores whichever fires second.
type SQSScheduler struct {
	publisher *aws.Publisher
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

func NewSQSScheduler(publisher *aws.Publisher, client aws.DynamoDBAPI, tableName string) *SQSScheduler {
	return &SQSScheduler{
		publisher: publisher,
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

func (s *SQSScheduler) Schedule(ctx context.Context, delay time.Duration, name string, payload messages.ProductReserved) (string, error) {
	id := ScheduleID(name, payload.OrderID)
	env, err := messages.NewEnvelope(fired(id, name, payload))
	if err != nil {
		return "", err
	}
	if _, err := s.publisher.SendEnvelope(ctx, env, delay); err != nil {
		return "", fmt.Errorf("schedule %s: %w", name, err)
	}
	return id, nil
}

// Cancel is an unconditional put, so repeating it or cancelling a fired
// schedule is harmless.
func (s *SQSScheduler) Cancel(ctx context.Context, name, scheduleID string) error {
	if scheduleID == "" {
		return nil
	}
	now := s.nowFunc()
	item, err := attributevalue.MarshalMap(tombstone{
		ScheduleID:  scheduleID,
		Name:        name,
		CancelledAt: now,
		ExpiresAt:   now.Add(aws.MaxDelay + time.Hour).Unix(),
	})
	if err != nil {
		return fmt.Errorf("marshal tombstone: %w", err)
	}
	if _, err := s.client.PutItem(ctx, &dyn.PutItemInput{TableName: &s.tableName, Item: item}); err != nil {
		return fmt.Errorf("cancel %s %s: %w", name, scheduleID, err)
	}
	return nil
}

// Cancelled reports whether scheduleID has a tombstone.
func (s *SQSScheduler) Cancelled(ctx context.Context, scheduleID string) (bool, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"schedule_id": &types.AttributeValueMemberS{Value: scheduleID},
		},
		ConsistentRead:       awsBool(true),
		ProjectionExpression: awsString("schedule_id, expires_at"),
	})
	if err != nil {
		return false, fmt.Errorf("get tombstone %s: %w", scheduleID, err)
	}
	if len(out.Item) == 0 {
		return false, nil
	}
	if n, ok := out.Item["expires_at"].(*types.AttributeValueMemberN); ok {
		if exp, err := strconv.ParseInt(n.Value, 10, 64); err == nil && exp < s.nowFunc().Unix() {
			// expired but not yet swept by TTL
			return false, nil
		}
	}
	return true, nil
}

func awsString(s string) *string { return &s }
func awsBool(b bool) *bool       { return &b }
