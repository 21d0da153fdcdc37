package messages

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	deadline := PaymentDeadlineFired{
		ScheduleID: "sch-1",
		Name:       "payment-processing-deadline",
		Reserved: ProductReserved{
			OrderID:   "order-1",
			ProductID: "p-1",
			Quantity:  2,
			UserID:    "u-1",
		},
	}

	env, err := NewEnvelope(deadline)
	require.NoError(t, err)
	assert.NotEmpty(t, env.ID)
	assert.Equal(t, KindPaymentDeadlineFired, env.Kind)
	assert.Equal(t, "order-1", env.OrderID)

	body, err := env.Marshal()
	require.NoError(t, err)

	parsed, err := Parse(body)
	require.NoError(t, err)

	msg, err := parsed.Decode()
	require.NoError(t, err)
	assert.Equal(t, deadline, msg)
}

func TestParseRejectsIncompleteEnvelope(t *testing.T) {
	_, err := Parse([]byte(`{"kind":"OrderCreated"}`))
	require.Error(t, err)

	_, err = Parse([]byte(`not json`))
	require.Error(t, err)
}

func TestDecodeUnknownKind(t *testing.T) {
	env := Envelope{ID: "1", Kind: "ShipOrder", Payload: json.RawMessage(`{}`)}
	_, err := env.Decode()
	require.ErrorIs(t, err, ErrUnknownKind)
}

func TestDecodeOrderMismatch(t *testing.T) {
	env, err := NewEnvelope(ApproveOrder{OrderID: "order-1"})
	require.NoError(t, err)
	env.OrderID = "order-2"

	_, err = env.Decode()
	require.Error(t, err)
}

func TestKindClassification(t *testing.T) {
	assert.True(t, KindReserveProduct.IsCommand())
	assert.False(t, KindReserveProduct.OwnCommand())
	assert.True(t, KindRejectOrder.OwnCommand())
	assert.False(t, KindProductReserved.IsCommand())
	assert.False(t, KindPaymentDeadlineFired.IsCommand())
}

func TestOrderStatusTerminal(t *testing.T) {
	assert.False(t, StatusCreated.Terminal())
	assert.True(t, StatusApproved.Terminal())
	assert.True(t, StatusRejected.Terminal())
}
