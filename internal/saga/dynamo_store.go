package saga

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

// DynamoStateStore keeps one item per order in the saga table.
type DynamoStateStore struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

func NewDynamoStateStore(client aws.DynamoDBAPI, tableName string) *DynamoStateStore {
	return &DynamoStateStore{client: client, tableName: tableName, nowFunc: time.Now}
}

func (s *DynamoStateStore) Load(ctx context.Context, orderID string) (State, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"order_id": &types.AttributeValueMemberS{Value: orderID},
		},
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return State{}, fmt.Errorf("get saga %s: %w", orderID, err)
	}
	if len(out.Item) == 0 {
		return State{OrderID: orderID}, nil
	}
	var st State
	if err := attributevalue.UnmarshalMap(out.Item, &st); err != nil {
		return State{}, fmt.Errorf("unmarshal saga %s: %w", orderID, err)
	}
	return st, nil
}

func (s *DynamoStateStore) Save(ctx context.Context, state State) (State, error) {
	expected := state.Revision
	state.Revision++
	state.UpdatedAt = s.nowFunc()

	item, err := attributevalue.MarshalMap(state)
	if err != nil {
		return State{}, fmt.Errorf("marshal saga %s: %w", state.OrderID, err)
	}
	input := &dyn.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	}
	if expected == 0 {
		input.ConditionExpression = awsString("attribute_not_exists(order_id)")
	} else {
		input.ConditionExpression = awsString("#rev = :rev")
		input.ExpressionAttributeNames = map[string]string{"#rev": "revision"}
		input.ExpressionAttributeValues = map[string]types.AttributeValue{
			":rev": &types.AttributeValueMemberN{Value: strconv.FormatInt(expected, 10)},
		}
	}

	if _, err := s.client.PutItem(ctx, input); err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "ConditionalCheckFailedException" {
			return State{}, fmt.Errorf("%w: %s expected revision %d", ErrStateConflict, state.OrderID, expected)
		}
		return State{}, fmt.Errorf("put saga %s: %w", state.OrderID, err)
	}
	return state, nil
}

func awsString(s string) *string { return &s }
func awsBool(b bool) *bool       { return &b }
