package saga

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sagaSql "github.com/open-finance/sagaflow/saga/sql"
)

func expectTablesInit(mock sqlmock.Sqlmock) {
	mock.ExpectBegin()
	mock.ExpectExec("create table if not exists saga_execution").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("create table if not exists saga_execution_step").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
}

func newStoreMock(t *testing.T, driver SQLDriver) (Store, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	expectTablesInit(mock)

	store, err := NewSQLSagaStore(sagaSql.NewDB(db), driver, NewJSONMarshaller())
	require.NoError(t, err)

	return store, mock
}

func TestNewSQLSagaStoreInitTables(t *testing.T) {
	newStoreMock(t, MYSQLDriver)
}

func TestNewSQLSagaStoreInitTablesFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec("create table if not exists saga_execution").WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	store, err := NewSQLSagaStore(sagaSql.NewDB(db), MYSQLDriver, NewJSONMarshaller())
	assert.Nil(t, store)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "initializing tables for SQLSagaStore, driver mysql")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreSaveInsertsNewSaga(t *testing.T) {
	store, mock := newStoreMock(t, MYSQLDriver)

	exec := NewExecution(SagaID("saga-1"), orderPayload{OrderID: "ord-1"})
	step := newStep(StepID("step-1"), "RESERVE_STOCK")
	exec.addStep(step)
	exec.completeStep(step)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE saga_execution SET name=?, status=?, payload=?, last_error=?, updated_at=? WHERE uid=?;")).
		WithArgs("orderPayload", "executing", sqlmock.AnyArg(), "", sqlmock.AnyArg(), "saga-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO saga_execution (uid, name, status, payload, last_error, started_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?);")).
		WithArgs("saga-1", "orderPayload", "executing", sqlmock.AnyArg(), "", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM saga_execution_step WHERE saga_uid=?;")).
		WithArgs("saga-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO saga_execution_step (uid, saga_uid, name, status, error, started_at, finished_at) VALUES (?, ?, ?, ?, ?, ?, ?);")).
		WithArgs("step-1", "saga-1", "RESERVE_STOCK", "completed", "", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, store.Save(context.Background(), exec))
}

func TestSQLStoreSaveUpdatesExistingSaga(t *testing.T) {
	store, mock := newStoreMock(t, MYSQLDriver)

	exec := NewExecution(SagaID("saga-2"), orderPayload{})
	exec.markCompleted()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE saga_execution SET name=?, status=?, payload=?, last_error=?, updated_at=? WHERE uid=?;")).
		WithArgs("orderPayload", "completed", sqlmock.AnyArg(), "", sqlmock.AnyArg(), "saga-2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM saga_execution_step WHERE saga_uid=?;")).
		WithArgs("saga-2").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	require.NoError(t, store.Save(context.Background(), exec))
}

func TestSQLStoreSaveRollsBackOnFailure(t *testing.T) {
	store, mock := newStoreMock(t, MYSQLDriver)

	exec := NewExecution(SagaID("saga-3"), orderPayload{})

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE saga_execution SET name=?, status=?, payload=?, last_error=?, updated_at=? WHERE uid=?;")).
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	err := store.Save(context.Background(), exec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "updating saga saga-3")
}

func TestSQLStoreGetByID(t *testing.T) {
	store, mock := newStoreMock(t, MYSQLDriver)
	ctx := context.Background()

	t.Run("existing saga", func(t *testing.T) {
		payload, err := NewJSONMarshaller().Marshal(NewExecution(SagaID("saga-4"), orderPayload{OrderID: "ord-4"}))
		require.NoError(t, err)

		mock.ExpectQuery(regexp.QuoteMeta("SELECT payload FROM saga_execution WHERE uid=?;")).
			WithArgs("saga-4").
			WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow(payload))

		exec, err := store.GetByID(ctx, SagaID("saga-4"))
		require.NoError(t, err)
		require.NotNil(t, exec)
		assert.Equal(t, SagaID("saga-4"), exec.SagaID())
		assert.True(t, exec.Status().Started())
	})

	t.Run("unknown saga", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("SELECT payload FROM saga_execution WHERE uid=?;")).
			WithArgs("ghost").
			WillReturnError(sql.ErrNoRows)

		exec, err := store.GetByID(ctx, SagaID("ghost"))
		require.NoError(t, err)
		assert.Nil(t, exec)
	})

	t.Run("corrupted payload", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("SELECT payload FROM saga_execution WHERE uid=?;")).
			WithArgs("saga-5").
			WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow([]byte("{broken")))

		exec, err := store.GetByID(ctx, SagaID("saga-5"))
		assert.Nil(t, exec)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "deserializing payload of saga saga-5")
	})
}

func TestSQLStoreGetByFilter(t *testing.T) {
	store, mock := newStoreMock(t, MYSQLDriver)
	ctx := context.Background()

	t.Run("no filters", func(t *testing.T) {
		res, err := store.GetByFilter(ctx)
		assert.Nil(t, res)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no filters found")
	})

	t.Run("combined filters", func(t *testing.T) {
		payload, err := NewJSONMarshaller().Marshal(NewExecution(SagaID("saga-6"), orderPayload{}))
		require.NoError(t, err)

		mock.ExpectQuery(regexp.QuoteMeta("SELECT payload FROM saga_execution WHERE status = ? AND name = ?;")).
			WithArgs("started", "orderPayload").
			WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow(payload))

		res, err := store.GetByFilter(ctx, WithStatus("started"), WithSagaName("orderPayload"))
		require.NoError(t, err)
		require.Len(t, res, 1)
		assert.Equal(t, SagaID("saga-6"), res[0].SagaID())
	})
}

func TestSQLStoreFindInterrupted(t *testing.T) {
	store, mock := newStoreMock(t, MYSQLDriver)

	payload, err := NewJSONMarshaller().Marshal(NewExecution(SagaID("saga-7"), orderPayload{}))
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT payload FROM saga_execution WHERE status NOT IN (?, ?, ?);")).
		WithArgs("completed", "compensated", "aborted").
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow(payload))

	res, err := store.FindInterrupted(context.Background())
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, SagaID("saga-7"), res[0].SagaID())
}

func TestSQLStoreDelete(t *testing.T) {
	store, mock := newStoreMock(t, MYSQLDriver)
	ctx := context.Background()

	t.Run("existing saga", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM saga_execution WHERE uid=?;")).
			WithArgs("saga-8").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, store.Delete(ctx, SagaID("saga-8")))
	})

	t.Run("unknown saga", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM saga_execution WHERE uid=?;")).
			WithArgs("ghost").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := store.Delete(ctx, SagaID("ghost"))
		require.Error(t, err)
		assert.EqualError(t, err, "no saga ghost found")
	})
}

func TestSQLStorePGPlaceholders(t *testing.T) {
	t.Run("prepQuery rewrites wildcards", func(t *testing.T) {
		s := &sqlStore{driver: PGDriver}
		assert.Equal(t,
			"UPDATE saga_execution SET status=$1 WHERE uid=$2;",
			s.prepQuery("UPDATE saga_execution SET status=? WHERE uid=?;"),
		)

		mysqlStore := &sqlStore{driver: MYSQLDriver}
		assert.Equal(t,
			"UPDATE saga_execution SET status=? WHERE uid=?;",
			mysqlStore.prepQuery("UPDATE saga_execution SET status=? WHERE uid=?;"),
		)
	})

	t.Run("queries run with pg placeholders", func(t *testing.T) {
		store, mock := newStoreMock(t, PGDriver)

		mock.ExpectQuery(regexp.QuoteMeta("SELECT payload FROM saga_execution WHERE uid=$1;")).
			WithArgs("ghost").
			WillReturnError(sql.ErrNoRows)

		exec, err := store.GetByID(context.Background(), SagaID("ghost"))
		require.NoError(t, err)
		assert.Nil(t, exec)
	})
}
