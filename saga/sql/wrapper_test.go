package sql

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnIsReusedPerSaga(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	wrapped := NewDB(db)
	ctx := context.Background()

	first, err := wrapped.Conn(ctx, "saga-1")
	require.NoError(t, err)

	second, err := wrapped.Conn(ctx, "saga-1")
	require.NoError(t, err)

	// both clients share the connection assigned to the saga
	assert.Same(t, first, second)

	// the first close only drops the refcount
	require.NoError(t, second.Close())
	assert.Contains(t, wrapped.connectionsInUse, "saga-1")

	require.NoError(t, first.Close())
	assert.NotContains(t, wrapped.connectionsInUse, "saga-1")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConnsOfDifferentSagasAreIndependent(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)

	wrapped := NewDB(db)
	ctx := context.Background()

	first, err := wrapped.Conn(ctx, "saga-1")
	require.NoError(t, err)

	second, err := wrapped.Conn(ctx, "saga-2")
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.Len(t, wrapped.connectionsInUse, 2)

	require.NoError(t, first.Close())
	require.NoError(t, second.Close())
	assert.Empty(t, wrapped.connectionsInUse)
}

func TestConnAssignedAgainAfterRelease(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)

	wrapped := NewDB(db)
	ctx := context.Background()

	first, err := wrapped.Conn(ctx, "saga-1")
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := wrapped.Conn(ctx, "saga-1")
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	require.NoError(t, second.Close())
}
