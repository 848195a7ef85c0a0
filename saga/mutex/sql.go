package mutex

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pkg/errors"

	"github.com/open-finance/sagaflow/saga"
)

type mysqlMutex struct {
	db *sql.DB
}

func (m *mysqlMutex) Lock(ctx context.Context, sagaID string) (saga.MutexLock, error) {
	conn, err := m.db.Conn(ctx)
	if err != nil {
		return nil, WithMutexErr(errors.Wrapf(err, "obtaining a connection from pool for saga %s", sagaID))
	}

	r := sql.NullInt64{}
	if err := conn.QueryRowContext(ctx, "SELECT GET_LOCK(?, -1);", sagaID).Scan(&r); err != nil {
		closingErr := conn.Close()
		return nil, WithMutexErr(errors.Wrapf(err, "acquiring lock for saga %s. %v", sagaID, closingErr))
	}

	/*
		Returns 1 if the lock was obtained successfully,
		0 if the attempt timed out (for example, because another client has previously locked the name),
		or NULL if an error occurred (such as running out of memory or the thread was killed with mysqladmin kill).
	*/
	if r.Int64 == 1 {
		return &mysqlLock{conn: conn, sagaID: sagaID}, nil
	}

	closingErr := conn.Close()

	return nil, WithMutexErr(errors.Errorf("got 0 when acquiring lock for saga %s. %v", sagaID, closingErr))
}

type mysqlLock struct {
	conn   *sql.Conn
	sagaID string
}

func (l *mysqlLock) Release(ctx context.Context) error {
	r := sql.NullInt64{}
	if err := l.conn.QueryRowContext(ctx, "SELECT RELEASE_LOCK(?);", l.sagaID).Scan(&r); err != nil {
		closingErr := l.conn.Close()
		return WithMutexErr(errors.Wrapf(err, "releasing lock for saga %s. %v", l.sagaID, closingErr))
	}

	if r.Int64 != 1 {
		closingErr := l.conn.Close()
		return WithMutexErr(errors.Errorf("lock was not established by this connection for saga %s. %v", l.sagaID, closingErr))
	}

	if err := l.conn.Close(); err != nil {
		return WithMutexErr(errors.Wrapf(err, "closing connection of saga's %s mutex", l.sagaID))
	}

	return nil
}

type pgsqlMutex struct {
	db *sql.DB
}

func (p *pgsqlMutex) Lock(ctx context.Context, sagaID string) (saga.MutexLock, error) {
	var (
		conn *sql.Conn
		err  error
	)

	retries := 3

	// database/sql with pg occasionally returns a connection which is closed already,
	// see https://github.com/golang/go/issues/39449 and https://github.com/golang/go/issues/32530
	for i := 0; i < retries; i++ {
		conn, err = p.db.Conn(ctx)

		if err != nil {
			return nil, WithMutexErr(errors.Wrapf(err, "obtaining a connection from pool for saga %s", sagaID))
		}

		if err := conn.PingContext(ctx); err != nil {
			if i < retries-1 {
				continue
			}
		}

		break
	}

	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock(hashtext($1));`, sagaID); err != nil {
		errMsg := fmt.Sprintf("acquiring lock for saga %s. %s", sagaID, err)

		if closingErr := conn.Close(); closingErr != nil {
			errMsg = fmt.Sprintf("%s. also failed to close connection %s", errMsg, closingErr.Error())
		}
		return nil, WithMutexErr(errors.New(errMsg))
	}

	return &pgsqlLock{conn: conn, sagaID: sagaID}, nil
}

type pgsqlLock struct {
	conn   *sql.Conn
	sagaID string
}

func (l *pgsqlLock) Release(ctx context.Context) error {
	if _, err := l.conn.ExecContext(ctx, "SELECT pg_advisory_unlock(hashtext($1));", l.sagaID); err != nil {
		closingErr := l.conn.Close()
		return WithMutexErr(errors.Wrapf(err, "releasing lock for saga %s. %v", l.sagaID, closingErr))
	}

	if err := l.conn.Close(); err != nil {
		return WithMutexErr(errors.Wrapf(err, "closing mutex connection of saga %s", l.sagaID))
	}

	return nil
}
