package mutex

import (
	"database/sql"

	"github.com/open-finance/sagaflow/saga"
)

type MutexErr struct {
	error
}

func WithMutexErr(err error) error {
	return MutexErr{err}
}

// NewSQLMutex returns a distributed per-saga mutex backed by the database:
// GET_LOCK on mysql, advisory locks on postgres. The orchestrator uses it to
// fence compensation draining and recovery of one saga across processes.
func NewSQLMutex(db *sql.DB, driver saga.SQLDriver) saga.Mutex {
	if driver == saga.MYSQLDriver {
		return &mysqlMutex{db: db}
	}

	return &pgsqlMutex{db: db}
}
