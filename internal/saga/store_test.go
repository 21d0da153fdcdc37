package saga

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-orderflow-saga/internal/aws/awstest"
)

func stateStores() map[string]StateStore {
	db := awstest.NewDynamo()
	db.CreateTable("order-sagas", "order_id", "")
	return map[string]StateStore{
		"memory": NewMemoryStateStore(),
		"dynamo": NewDynamoStateStore(db, "order-sagas"),
	}
}

func TestStateStoreRoundTrip(t *testing.T) {
	for name, store := range stateStores() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			st, err := store.Load(ctx, "o-1")
			require.NoError(t, err)
			assert.Equal(t, "o-1", st.OrderID)
			assert.False(t, st.Started())
			assert.Zero(t, st.Revision)

			st.Phase = PhaseAwaitingPayment
			st.ScheduleID = "sch-1"
			st.Quantity = 2
			saved, err := store.Save(ctx, st)
			require.NoError(t, err)
			assert.Equal(t, int64(1), saved.Revision)

			loaded, err := store.Load(ctx, "o-1")
			require.NoError(t, err)
			assert.Equal(t, PhaseAwaitingPayment, loaded.Phase)
			assert.Equal(t, "sch-1", loaded.ScheduleID)
			assert.Equal(t, 2, loaded.Quantity)
			assert.Equal(t, int64(1), loaded.Revision)

			loaded.Phase = PhaseCompleting
			loaded.ScheduleID = ""
			_, err = store.Save(ctx, loaded)
			require.NoError(t, err)

			again, err := store.Load(ctx, "o-1")
			require.NoError(t, err)
			assert.Empty(t, again.ScheduleID)
			assert.Equal(t, int64(2), again.Revision)
		})
	}
}

func TestStateStoreConflict(t *testing.T) {
	for name, store := range stateStores() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			fresh := State{OrderID: "o-1", Phase: PhaseAwaitingReservation}

			_, err := store.Save(ctx, fresh)
			require.NoError(t, err)

			// a second writer that also loaded revision 0
			_, err = store.Save(ctx, fresh)
			require.ErrorIs(t, err, ErrStateConflict)

			stale := fresh
			stale.Revision = 5
			_, err = store.Save(ctx, stale)
			require.ErrorIs(t, err, ErrStateConflict)
		})
	}
}
