package projection

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-orderflow-saga/internal/aws/awstest"
	"github.com/imrishuroy/go-orderflow-saga/internal/messages"
)

func newDynamoStore(t *testing.T) (*DynamoStore, *awstest.Dynamo) {
	t.Helper()
	db := awstest.NewDynamo()
	db.CreateTable("orders", "order_id", "")
	s := NewDynamoStore(db, "orders")
	s.nowFunc = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return s, db
}

func TestDynamoInsertGet(t *testing.T) {
	s, _ := newDynamoStore(t)
	ctx := context.Background()

	view := OrderView{OrderID: "o-1", UserID: "u-1", ProductID: "p-1", Quantity: 2, AddressID: "a-1", Status: messages.StatusCreated}
	require.NoError(t, s.Insert(ctx, view))

	got, err := s.Get(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, "p-1", got.ProductID)
	assert.Equal(t, 2, got.Quantity)
	assert.Equal(t, messages.StatusCreated, got.Status)
	assert.True(t, got.CreatedAt.Equal(s.nowFunc()))

	require.ErrorIs(t, s.Insert(ctx, view), ErrAlreadyExists)

	_, err = s.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDynamoUpdateStatus(t *testing.T) {
	s, _ := newDynamoStore(t)
	ctx := context.Background()
	require.NoError(t, s.Insert(ctx, OrderView{OrderID: "o-1", Status: messages.StatusCreated}))

	require.NoError(t, s.UpdateStatus(ctx, "o-1", messages.StatusCreated, messages.StatusRejected, "Payment timeout."))
	got, err := s.Get(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, messages.StatusRejected, got.Status)
	assert.Equal(t, "Payment timeout.", got.Reason)

	err = s.UpdateStatus(ctx, "o-1", messages.StatusCreated, messages.StatusApproved, "")
	require.ErrorIs(t, err, ErrStatusMismatch)

	err = s.UpdateStatus(ctx, "missing", messages.StatusCreated, messages.StatusApproved, "")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDynamoUpdateStatusClientError(t *testing.T) {
	s, db := newDynamoStore(t)
	db.Errors["UpdateItem"] = errors.New("boom")

	err := s.UpdateStatus(context.Background(), "o-1", messages.StatusCreated, messages.StatusApproved, "")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrStatusMismatch)
	assert.NotErrorIs(t, err, ErrNotFound)
}
