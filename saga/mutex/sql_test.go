package mutex

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-finance/sagaflow/saga"
)

func TestMysqlMutex(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	m := NewSQLMutex(db, saga.MYSQLDriver)
	ctx := context.Background()

	t.Run("acquire and release", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("SELECT GET_LOCK(?, -1);")).
			WithArgs("saga-1").
			WillReturnRows(sqlmock.NewRows([]string{"res"}).AddRow(1))

		lock, err := m.Lock(ctx, "saga-1")
		require.NoError(t, err)
		require.NotNil(t, lock)

		mock.ExpectQuery(regexp.QuoteMeta("SELECT RELEASE_LOCK(?);")).
			WithArgs("saga-1").
			WillReturnRows(sqlmock.NewRows([]string{"res"}).AddRow(1))

		require.NoError(t, lock.Release(ctx))
	})

	t.Run("lock held by another session", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("SELECT GET_LOCK(?, -1);")).
			WithArgs("saga-2").
			WillReturnRows(sqlmock.NewRows([]string{"res"}).AddRow(0))

		lock, err := m.Lock(ctx, "saga-2")
		assert.Nil(t, lock)
		require.Error(t, err)
		assert.IsType(t, MutexErr{}, err)
		assert.Contains(t, err.Error(), "got 0 when acquiring lock for saga saga-2")
	})

	t.Run("query failure", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("SELECT GET_LOCK(?, -1);")).
			WithArgs("saga-3").
			WillReturnError(sql.ErrConnDone)

		lock, err := m.Lock(ctx, "saga-3")
		assert.Nil(t, lock)
		require.Error(t, err)
		assert.IsType(t, MutexErr{}, err)
	})

	t.Run("release by a foreign connection", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("SELECT GET_LOCK(?, -1);")).
			WithArgs("saga-4").
			WillReturnRows(sqlmock.NewRows([]string{"res"}).AddRow(1))

		lock, err := m.Lock(ctx, "saga-4")
		require.NoError(t, err)

		mock.ExpectQuery(regexp.QuoteMeta("SELECT RELEASE_LOCK(?);")).
			WithArgs("saga-4").
			WillReturnRows(sqlmock.NewRows([]string{"res"}).AddRow(0))

		err = lock.Release(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "lock was not established by this connection")
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgsqlMutex(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	m := NewSQLMutex(db, saga.PGDriver)
	ctx := context.Background()

	t.Run("acquire and release", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_lock(hashtext($1));")).
			WithArgs("saga-1").
			WillReturnResult(sqlmock.NewResult(0, 0))

		lock, err := m.Lock(ctx, "saga-1")
		require.NoError(t, err)
		require.NotNil(t, lock)

		mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_unlock(hashtext($1));")).
			WithArgs("saga-1").
			WillReturnResult(sqlmock.NewResult(0, 0))

		require.NoError(t, lock.Release(ctx))
	})

	t.Run("acquire failure", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_lock(hashtext($1));")).
			WithArgs("saga-2").
			WillReturnError(sql.ErrConnDone)

		lock, err := m.Lock(ctx, "saga-2")
		assert.Nil(t, lock)
		require.Error(t, err)
		assert.IsType(t, MutexErr{}, err)
		assert.Contains(t, err.Error(), "acquiring lock for saga saga-2")
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}
