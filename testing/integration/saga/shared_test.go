package saga

import (
	"context"
	"database/sql"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-finance/sagaflow/saga"
	"github.com/open-finance/sagaflow/saga/mutex"
	sagaSql "github.com/open-finance/sagaflow/saga/sql"
	testLog "github.com/open-finance/sagaflow/testing/log"
)

type paymentPayload struct {
	PaymentID string `json:"payment_id"`
	Amount    int    `json:"amount"`
}

// runSagaLifecycle drives a full saga through the sql store: execution,
// failure, compensation fenced by the db mutex, and recovery of a saga seeded
// as interrupted
func runSagaLifecycle(t *testing.T, db *sql.DB, driver saga.SQLDriver) {
	ctx := context.Background()

	store, err := saga.NewSQLSagaStore(sagaSql.NewDB(db), driver, saga.NewJSONMarshaller())
	require.NoError(t, err)

	var compensatedViaRegistry bool

	registry := saga.NewRegistry().Register("RESERVE_FUNDS", func(ctx context.Context) error {
		compensatedViaRegistry = true
		return nil
	})

	orchestrator := saga.New(store,
		saga.WithLogger(testLog.NewNilLogger()),
		saga.WithMutex(mutex.NewSQLMutex(db, driver)),
		saga.WithRegistry(registry),
	)

	t.Run("failed saga compensates under the db mutex", func(t *testing.T) {
		exec, err := orchestrator.StartSaga(ctx, saga.NewSagaID(), paymentPayload{PaymentID: "pay-1", Amount: 100})
		require.NoError(t, err)

		var released bool

		_, err = orchestrator.ExecuteStep(ctx, exec, "RESERVE_FUNDS", func(ctx context.Context) (interface{}, error) {
			return nil, nil
		})
		require.NoError(t, err)

		exec.AddCompensation("RESERVE_FUNDS", func(ctx context.Context) error {
			released = true
			return nil
		})

		_, err = orchestrator.ExecuteStep(ctx, exec, "CAPTURE_FUNDS", func(ctx context.Context) (interface{}, error) {
			return nil, errors.New("capture rejected")
		})
		require.Error(t, err)

		result, err := orchestrator.ExecuteCompensations(ctx, exec.SagaID())
		require.NoError(t, err)
		assert.Equal(t, 1, result.SuccessfulCompensations)
		assert.True(t, released)

		stored, err := store.GetByID(ctx, exec.SagaID())
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.True(t, stored.Status().Compensated())
		assert.Equal(t, []string{"RESERVE_FUNDS"}, stored.CompletedSteps())
		assert.Equal(t, []string{"CAPTURE_FUNDS"}, stored.FailedSteps())
	})

	t.Run("completed saga is excluded from recovery", func(t *testing.T) {
		exec, err := orchestrator.StartSaga(ctx, saga.NewSagaID(), paymentPayload{PaymentID: "pay-2"})
		require.NoError(t, err)

		_, err = orchestrator.CompleteSaga(ctx, exec.SagaID())
		require.NoError(t, err)

		interrupted, err := store.FindInterrupted(ctx)
		require.NoError(t, err)

		for _, candidate := range interrupted {
			assert.NotEqual(t, exec.SagaID(), candidate.SagaID())
		}
	})

	t.Run("interrupted saga recovers through the registry", func(t *testing.T) {
		interruptedID := saga.NewSagaID()

		seeded := saga.NewExecution(interruptedID, paymentPayload{PaymentID: "pay-3"})
		seeded.AddCompensation("RESERVE_FUNDS", nil)
		require.NoError(t, store.Save(ctx, seeded))

		result, err := orchestrator.RecoverSagas(ctx)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, result.SuccessfulRecoveries, 1)
		assert.True(t, compensatedViaRegistry)

		recovered, err := store.GetByID(ctx, interruptedID)
		require.NoError(t, err)
		require.NotNil(t, recovered)
		assert.True(t, recovered.Status().Compensated())
	})

	t.Run("filter and delete", func(t *testing.T) {
		exec, err := orchestrator.StartSaga(ctx, saga.NewSagaID(), paymentPayload{PaymentID: "pay-4"})
		require.NoError(t, err)

		byID, err := store.GetByFilter(ctx, saga.WithSagaID(exec.SagaID()))
		require.NoError(t, err)
		require.Len(t, byID, 1)
		assert.Equal(t, exec.SagaID(), byID[0].SagaID())

		byName, err := store.GetByFilter(ctx, saga.WithSagaName("paymentPayload"))
		require.NoError(t, err)
		assert.NotEmpty(t, byName)

		require.NoError(t, store.Delete(ctx, exec.SagaID()))

		loaded, err := store.GetByID(ctx, exec.SagaID())
		require.NoError(t, err)
		assert.Nil(t, loaded)

		err = store.Delete(ctx, exec.SagaID())
		require.Error(t, err)
	})
}

// runMutexExclusion verifies the db lock actually excludes a second holder
func runMutexExclusion(t *testing.T, db *sql.DB, driver saga.SQLDriver) {
	ctx := context.Background()
	m := mutex.NewSQLMutex(db, driver)

	lock, err := m.Lock(ctx, "exclusive-saga")
	require.NoError(t, err)

	require.NoError(t, lock.Release(ctx))

	// acquirable again once released
	lock, err = m.Lock(ctx, "exclusive-saga")
	require.NoError(t, err)
	require.NoError(t, lock.Release(ctx))
}
