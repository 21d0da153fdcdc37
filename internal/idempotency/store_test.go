package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-orderflow-saga/internal/aws/awstest"
)

func newStore(t *testing.T) (*Store, *awstest.Dynamo, *time.Time) {
	t.Helper()
	db := awstest.NewDynamo()
	db.CreateTable("order-inbox", "message_id", "")
	s := NewStore(db, "order-inbox", 48*time.Hour)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.nowFunc = func() time.Time { return now }
	return s, db, &now
}

func TestBeginGetMarkDone(t *testing.T) {
	s, _, _ := newStore(t)
	ctx := context.Background()

	started, err := s.Begin(ctx, "m-1", "OrderCreated", "o-1")
	require.NoError(t, err)
	require.True(t, started)

	// a concurrent redelivery inside the lease is refused
	started, err = s.Begin(ctx, "m-1", "OrderCreated", "o-1")
	require.NoError(t, err)
	require.False(t, started)

	rec, err := s.Get(ctx, "m-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, StatusInProgress, rec.Status)
	assert.Equal(t, "o-1", rec.OrderID)
	assert.Equal(t, "OrderCreated", rec.Kind)
	assert.Equal(t, s.nowFunc().Add(48*time.Hour).Unix(), rec.ExpiresAt)

	require.NoError(t, s.MarkDone(ctx, "m-1"))
	rec, err = s.Get(ctx, "m-1")
	require.NoError(t, err)
	assert.Equal(t, StatusDone, rec.Status)

	started, err = s.Begin(ctx, "m-1", "OrderCreated", "o-1")
	require.NoError(t, err)
	assert.False(t, started)
}

func TestBeginAfterFailure(t *testing.T) {
	s, _, _ := newStore(t)
	ctx := context.Background()

	_, err := s.Begin(ctx, "m-1", "ProductReserved", "o-1")
	require.NoError(t, err)
	require.NoError(t, s.MarkFailed(ctx, "m-1", "users service down"))

	rec, err := s.Get(ctx, "m-1")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, rec.Status)
	assert.Equal(t, "users service down", rec.Note)

	started, err := s.Begin(ctx, "m-1", "ProductReserved", "o-1")
	require.NoError(t, err)
	require.True(t, started)

	rec, err = s.Get(ctx, "m-1")
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Attempts)
	assert.Equal(t, StatusInProgress, rec.Status)
}

func TestBeginTakesOverExpiredLease(t *testing.T) {
	s, _, now := newStore(t)
	ctx := context.Background()

	_, err := s.Begin(ctx, "m-1", "OrderCreated", "o-1")
	require.NoError(t, err)

	*now = now.Add(DefaultLease + time.Second)
	started, err := s.Begin(ctx, "m-1", "OrderCreated", "o-1")
	require.NoError(t, err)
	assert.True(t, started)
}

func TestGetMissing(t *testing.T) {
	s, _, _ := newStore(t)
	rec, err := s.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestMarkDoneUnknownMessage(t *testing.T) {
	s, _, _ := newStore(t)
	require.Error(t, s.MarkDone(context.Background(), "nope"))
}

func TestBeginClientError(t *testing.T) {
	s, db, _ := newStore(t)
	db.Errors["PutItem"] = errors.New("throttled")

	started, err := s.Begin(context.Background(), "m-1", "OrderCreated", "o-1")
	require.Error(t, err)
	assert.False(t, started)
}
