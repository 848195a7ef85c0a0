package saga

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	sagaSql "github.com/open-finance/sagaflow/saga/sql"

	"github.com/pkg/errors"
)

const (
	MYSQLDriver SQLDriver = "mysql"
	PGDriver    SQLDriver = "pg"
)

type SQLDriver string

type sqlStore struct {
	marshaller Marshaller
	db         *sagaSql.DB
	driver     SQLDriver
}

// NewSQLSagaStore creates a sql saga store, it supports mysql and postgres drivers.
// driver param is required because of https://github.com/golang/go/issues/3602. Better this than +1 dependency or copy pasting code
func NewSQLSagaStore(db *sagaSql.DB, driver SQLDriver, marshaller Marshaller) (Store, error) {
	s := &sqlStore{db: db, driver: driver, marshaller: marshaller}
	if err := s.initTables(); err != nil {
		return nil, errors.Wrapf(err, "initializing tables for SQLSagaStore, driver %s", driver)
	}

	return s, nil
}

// Save upserts the execution row and rewrites its step mirror rows in one
// transaction. The payload column is authoritative for reads; step rows exist
// for ad-hoc querying and audit.
func (s sqlStore) Save(ctx context.Context, exec *Execution) error {
	payload, err := s.marshaller.Marshal(exec)
	if err != nil {
		return errors.Wrapf(err, "marshaling saga %s", exec.SagaID())
	}

	conn, err := s.db.Conn(ctx, exec.SagaID().String())
	if err != nil {
		return errors.Wrap(err, "obtaining a connection")
	}

	defer conn.Close()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrapf(err, "beginning a transaction for saga %s", exec.SagaID())
	}

	now := time.Now().UTC()

	res, err := tx.ExecContext(ctx, s.prepQuery(fmt.Sprintf("UPDATE %v SET name=?, status=?, payload=?, last_error=?, updated_at=? WHERE uid=?;", sagaTableName)),
		exec.SagaName(),
		exec.Status().String(),
		payload,
		exec.LastError(),
		now,
		exec.SagaID().String(),
	)
	if err != nil {
		if rErr := tx.Rollback(); rErr != nil {
			return errors.Wrapf(rErr, "rollback when %s", err)
		}
		return errors.Wrapf(err, "updating saga %s", exec.SagaID())
	}

	rows, err := res.RowsAffected()
	if err != nil {
		if rErr := tx.Rollback(); rErr != nil {
			return errors.Wrapf(rErr, "rollback when %s", err)
		}
		return errors.Wrapf(err, "reading affected rows for saga %s", exec.SagaID())
	}

	if rows == 0 {
		_, err = tx.ExecContext(ctx, s.prepQuery(fmt.Sprintf("INSERT INTO %v (uid, name, status, payload, last_error, started_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?);", sagaTableName)),
			exec.SagaID().String(),
			exec.SagaName(),
			exec.Status().String(),
			payload,
			exec.LastError(),
			exec.StartedAt(),
			now,
		)
		if err != nil {
			if rErr := tx.Rollback(); rErr != nil {
				return errors.Wrapf(rErr, "rollback when %s", err)
			}
			return errors.Wrapf(err, "inserting saga %s", exec.SagaID())
		}
	}

	if err := s.saveSteps(ctx, tx, exec); err != nil {
		if rErr := tx.Rollback(); rErr != nil {
			return errors.Wrapf(rErr, "rollback when %s", err)
		}
		return errors.WithStack(err)
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrapf(err, "committing saga %s into the store", exec.SagaID())
	}

	return nil
}

func (s sqlStore) saveSteps(ctx context.Context, tx *sql.Tx, exec *Execution) error {
	_, err := tx.ExecContext(ctx, s.prepQuery(fmt.Sprintf("DELETE FROM %v WHERE saga_uid=?;", sagaStepTableName)), exec.SagaID().String())
	if err != nil {
		return errors.Wrapf(err, "clearing step rows of saga %s", exec.SagaID())
	}

	for _, step := range exec.Steps() {
		finishedAt := step.CompletedAt()
		if finishedAt == nil {
			finishedAt = step.FailedAt()
		}

		_, err = tx.ExecContext(ctx, s.prepQuery(fmt.Sprintf("INSERT INTO %v (uid, saga_uid, name, status, error, started_at, finished_at) VALUES (?, ?, ?, ?, ?, ?, ?);", sagaStepTableName)),
			step.StepID().String(),
			exec.SagaID().String(),
			step.StepName(),
			step.Status().String(),
			step.ErrorMessage(),
			step.StartedAt(),
			finishedAt,
		)
		if err != nil {
			return errors.Wrapf(err, "inserting step %s of saga %s", step.StepName(), exec.SagaID())
		}
	}

	return nil
}

func (s sqlStore) GetByID(ctx context.Context, sagaID SagaID) (*Execution, error) {
	conn, err := s.db.Conn(ctx, sagaID.String())
	if err != nil {
		return nil, errors.Wrap(err, "obtaining a connection")
	}

	defer conn.Close()

	var payload []byte
	err = conn.QueryRowContext(ctx, s.prepQuery(fmt.Sprintf("SELECT payload FROM %v WHERE uid=?;", sagaTableName)), sagaID.String()).
		Scan(&payload)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, errors.WithStack(err)
	}

	exec, err := s.marshaller.Unmarshal(payload)
	if err != nil {
		return nil, errors.Wrapf(err, "deserializing payload of saga %s", sagaID)
	}

	return exec, nil
}

func (s sqlStore) GetByFilter(ctx context.Context, filters ...FilterOption) ([]*Execution, error) {
	if len(filters) == 0 {
		return nil, errors.Errorf("no filters found, you have to specify at least one so result won't be whole store")
	}

	opts := &filterOptions{}

	for _, filter := range filters {
		filter(opts)
	}

	query := fmt.Sprintf("SELECT payload FROM %v WHERE", sagaTableName)

	var (
		args       []interface{}
		conditions []string
	)

	if opts.sagaID != "" {
		conditions = append(conditions, " uid = ?")
		args = append(args, opts.sagaID)
	}

	if opts.status != "" {
		conditions = append(conditions, " status = ?")
		args = append(args, opts.status)
	}

	if opts.sagaName != "" {
		conditions = append(conditions, " name = ?")
		args = append(args, opts.sagaName)
	}

	if len(conditions) == 0 {
		return nil, errors.Errorf("all specified filters are empty, you have to specify at least one so result won't be whole store")
	}

	for i, condition := range conditions {
		query += condition

		if i < len(conditions)-1 {
			query += " AND"
		}
	}

	query += ";"

	return s.queryExecutions(ctx, query, args...)
}

// FindInterrupted returns all sagas whose last persisted status is not
// terminal, the candidates for recovery after a restart
func (s sqlStore) FindInterrupted(ctx context.Context) ([]*Execution, error) {
	query := fmt.Sprintf("SELECT payload FROM %v WHERE status NOT IN (?, ?, ?);", sagaTableName)

	return s.queryExecutions(ctx, query,
		sagaStatusCompleted.String(),
		sagaStatusCompensated.String(),
		sagaStatusAborted.String(),
	)
}

func (s sqlStore) queryExecutions(ctx context.Context, query string, args ...interface{}) ([]*Execution, error) {
	rows, err := s.db.QueryContext(ctx, s.prepQuery(query), args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying sagas")
	}

	defer rows.Close()

	res := make([]*Execution, 0)

	for rows.Next() {
		var payload []byte

		if err := rows.Scan(&payload); err != nil {
			return nil, errors.WithStack(err)
		}

		exec, err := s.marshaller.Unmarshal(payload)
		if err != nil {
			return nil, errors.Wrap(err, "deserializing saga payload")
		}

		res = append(res, exec)
	}

	if rows.Err() != nil {
		return nil, errors.WithStack(rows.Err())
	}

	return res, nil
}

func (s sqlStore) Delete(ctx context.Context, sagaID SagaID) error {
	conn, err := s.db.Conn(ctx, sagaID.String())
	if err != nil {
		return errors.Wrap(err, "obtaining a connection")
	}

	defer conn.Close()

	res, err := conn.ExecContext(ctx, s.prepQuery(fmt.Sprintf("DELETE FROM %v WHERE uid=?;", sagaTableName)), sagaID.String())
	if err != nil {
		return errors.Wrapf(err, "executing delete query for saga %s", sagaID)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return errors.Wrapf(err, "getting response of delete query for saga %s", sagaID)
	}

	if rows > 0 {
		return nil
	}

	return errors.Errorf("no saga %s found", sagaID)
}

func (s sqlStore) initTables() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return errors.WithStack(err)
	}

	_, err = tx.ExecContext(ctx, fmt.Sprintf(`create table if not exists %v
	(
		uid varchar(255) not null primary key,
		name varchar(255) null,
		status varchar(255) null,
		payload text null,
		last_error text null,
		started_at timestamp null,
		updated_at timestamp null
	);`, sagaTableName))

	if err != nil {
		if rErr := tx.Rollback(); rErr != nil {
			return errors.Wrapf(rErr, "error rollback when %s", err)
		}
		return errors.WithStack(err)
	}

	_, err = tx.ExecContext(ctx, fmt.Sprintf(`create table if not exists %v
	(
		uid varchar(255) not null primary key,
		saga_uid varchar(255) not null,
		name varchar(255) null,
		status varchar(255) null,
		error text null,
		started_at timestamp null,
		finished_at timestamp null,
		constraint saga_execution_step_saga_uid_fk
			foreign key (saga_uid) references %v (uid)
				on update cascade on delete cascade
	);`, sagaStepTableName, sagaTableName))

	if err != nil {
		if rErr := tx.Rollback(); rErr != nil {
			return errors.Wrapf(rErr, "error rollback when %s", err)
		}
		return errors.WithStack(err)
	}

	if err := tx.Commit(); err != nil {
		return errors.WithStack(err)
	}

	return nil
}

// prepQuery replaces wildcard params to specific driver. Standard wildcard is '?'
func (s *sqlStore) prepQuery(query string) string {
	var res []byte

	counter := 1

	for i := 0; i < len(query); i++ {
		if query[i] == '?' && s.driver == PGDriver {
			res = append(append(res, '$'), []byte(strconv.Itoa(counter))...)
			counter++

			continue

		}
		res = append(res, query[i])
	}

	return string(res)
}
