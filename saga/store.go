package saga

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
)

const (
	sagaTableName     = "saga_execution"
	sagaStepTableName = "saga_execution_step"
)

type FilterOption func(opts *filterOptions)

// Store is the durable persistence contract the orchestrator requires. Every
// state transition is mirrored here; the stored copy outlives the in-memory
// one and drives recovery after a restart.
type Store interface {
	Save(ctx context.Context, exec *Execution) error
	// GetByID returns nil, nil when the saga is unknown to the store
	GetByID(ctx context.Context, sagaID SagaID) (*Execution, error)
	GetByFilter(ctx context.Context, filters ...FilterOption) ([]*Execution, error)
	// FindInterrupted returns all executions whose last known status is not terminal
	FindInterrupted(ctx context.Context) ([]*Execution, error)
	Delete(ctx context.Context, sagaID SagaID) error
}

func WithSagaID(sagaID SagaID) FilterOption {
	return func(opts *filterOptions) {
		opts.sagaID = sagaID.String()
	}
}

func WithStatus(status string) FilterOption {
	return func(opts *filterOptions) {
		opts.status = status
	}
}

func WithSagaName(sagaName string) FilterOption {
	return func(opts *filterOptions) {
		opts.sagaName = sagaName
	}
}

type filterOptions struct {
	sagaID   string
	status   string
	sagaName string
}

// Marshaller encodes executions for the store payload column
type Marshaller interface {
	Marshal(exec *Execution) ([]byte, error)
	Unmarshal(data []byte) (*Execution, error)
}

func NewJSONMarshaller() Marshaller {
	return &jsonMarshaller{}
}

type jsonMarshaller struct {
}

func (m jsonMarshaller) Marshal(exec *Execution) ([]byte, error) {
	data, err := json.Marshal(exec)
	return data, errors.WithStack(err)
}

func (m jsonMarshaller) Unmarshal(data []byte) (*Execution, error) {
	exec := &Execution{}
	if err := json.Unmarshal(data, exec); err != nil {
		return nil, errors.WithStack(err)
	}

	return exec, nil
}
