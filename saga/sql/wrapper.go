package sql

import (
	"context"
	"database/sql"
	"sync"

	"github.com/pkg/errors"
)

// DB wraps database/sql and hands out per-saga connections. Reusing one
// connection for all writes of a saga keeps its persistence ordered without
// serializing unrelated sagas against each other.
type DB struct {
	*sql.DB
	connectionsLock  *sync.RWMutex
	connectionsInUse map[string]*Conn
}

func NewDB(db *sql.DB) *DB {
	return &DB{
		DB:               db,
		connectionsLock:  &sync.RWMutex{},
		connectionsInUse: make(map[string]*Conn),
	}
}

// Conn returns the connection already assigned to sagaUID or assigns a fresh
// one from the pool
func (m *DB) Conn(ctx context.Context, sagaUID string) (*Conn, error) {
	m.connectionsLock.RLock()
	wrappedConn, exists := m.connectionsInUse[sagaUID]
	m.connectionsLock.RUnlock()

	if exists {
		wrappedConn.registerClient()

		// the connection might have died while unused
		if err := wrappedConn.PingContext(ctx); err == nil {
			return wrappedConn, nil
		}
	}

	conn, err := m.DB.Conn(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "obtaining a connection from pool for saga %s", sagaUID)
	}

	wrappedConn = &Conn{
		clientsMutex: &sync.Mutex{},
		clients:      1,
		sagaUID:      sagaUID,
		Conn:         conn,
		releaseFunc:  m.releaseConnection,
	}

	m.connectionsLock.Lock()
	defer m.connectionsLock.Unlock()

	m.connectionsInUse[sagaUID] = wrappedConn

	return wrappedConn, nil
}

func (m *DB) releaseConnection(sagaUID string) {
	m.connectionsLock.Lock()
	defer m.connectionsLock.Unlock()

	delete(m.connectionsInUse, sagaUID)
}

// Conn is a refcounted per-saga connection. It returns to the pool once the
// last client closes it.
type Conn struct {
	*sql.Conn
	clientsMutex *sync.Mutex
	clients      uint32
	sagaUID      string
	releaseFunc  func(sagaUID string)
}

func (c *Conn) registerClient() {
	c.clientsMutex.Lock()
	defer c.clientsMutex.Unlock()

	c.clients++
}

func (c *Conn) Close() error {
	c.clientsMutex.Lock()
	defer c.clientsMutex.Unlock()

	c.clients--

	if c.clients == 0 {
		c.releaseFunc(c.sagaUID)
		return c.Conn.Close()
	}

	return nil
}
