package saga

import (
	"fmt"
	"time"
)

// StartError means persistence failed at creation, the saga never became active
type StartError struct {
	SagaID SagaID
	Err    error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("starting saga %s: %s", e.SagaID, e.Err)
}

func (e *StartError) Unwrap() error {
	return e.Err
}

// StepExecutionError is raised to the caller when a step's business logic
// fails. The orchestrator never compensates on its own, the workflow decides
// whether and when to drain compensations.
type StepExecutionError struct {
	SagaID   SagaID
	StepID   StepID
	StepName string
	Err      error
}

func (e *StepExecutionError) Error() string {
	return fmt.Sprintf("step %s [%s] of saga %s failed: %s", e.StepName, e.StepID, e.SagaID, e.Err)
}

func (e *StepExecutionError) Unwrap() error {
	return e.Err
}

// StepTimeoutError marks a step whose operation outlived its deadline. The
// in-flight call is abandoned, a late result is discarded.
type StepTimeoutError struct {
	StepName string
	Timeout  time.Duration
}

func (e *StepTimeoutError) Error() string {
	return fmt.Sprintf("step %s timed out after %s", e.StepName, e.Timeout)
}

// NotFoundError means the referenced saga is not owned by this orchestrator
// and, where applicable, is unknown to the store as well
type NotFoundError struct {
	SagaID SagaID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("saga %s not found", e.SagaID)
}
