package saga

import (
	"github.com/google/uuid"
)

// SagaID is the primary key of a saga execution, generated once at creation
type SagaID string

func NewSagaID() SagaID {
	return SagaID(uuid.New().String())
}

func (id SagaID) String() string {
	return string(id)
}

// StepID identifies a single step invocation within a saga
type StepID string

func NewStepID() StepID {
	return StepID(uuid.New().String())
}

func (id StepID) String() string {
	return string(id)
}
