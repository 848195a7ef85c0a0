package saga

import (
	"github.com/pkg/errors"
)

const (
	sagaStatusStarted      status = "started"
	sagaStatusExecuting    status = "executing"
	sagaStatusCompleted    status = "completed"
	sagaStatusCompensating status = "compensating"
	sagaStatusCompensated  status = "compensated"
	sagaStatusAborted      status = "aborted"
)

type Status interface {
	Started() bool
	Executing() bool
	Completed() bool
	Compensating() bool
	Compensated() bool
	Aborted() bool
	// IsTerminal reports whether no further transitions are possible
	IsTerminal() bool
	String() string
}

type status string

func (s status) Started() bool {
	return s == sagaStatusStarted
}

func (s status) Executing() bool {
	return s == sagaStatusExecuting
}

func (s status) Completed() bool {
	return s == sagaStatusCompleted
}

func (s status) Compensating() bool {
	return s == sagaStatusCompensating
}

func (s status) Compensated() bool {
	return s == sagaStatusCompensated
}

func (s status) Aborted() bool {
	return s == sagaStatusAborted
}

func (s status) IsTerminal() bool {
	return s == sagaStatusCompleted || s == sagaStatusCompensated || s == sagaStatusAborted
}

func (s status) String() string {
	return string(s)
}

func statusFromStr(str string) (status, error) {
	switch s := status(str); s {
	case sagaStatusStarted, sagaStatusExecuting, sagaStatusCompleted,
		sagaStatusCompensating, sagaStatusCompensated, sagaStatusAborted:
		return s, nil
	default:
		return "", errors.Errorf("unknown saga status %q", str)
	}
}

const (
	stepStatusExecuting stepStatus = "executing"
	stepStatusCompleted stepStatus = "completed"
	stepStatusFailed    stepStatus = "failed"
)

// StepStatus is the lifecycle of a single step: executing -> completed|failed.
// A step never leaves a terminal status.
type StepStatus interface {
	Executing() bool
	Completed() bool
	Failed() bool
	String() string
}

type stepStatus string

func (s stepStatus) Executing() bool {
	return s == stepStatusExecuting
}

func (s stepStatus) Completed() bool {
	return s == stepStatusCompleted
}

func (s stepStatus) Failed() bool {
	return s == stepStatusFailed
}

func (s stepStatus) String() string {
	return string(s)
}

func stepStatusFromStr(str string) (stepStatus, error) {
	switch s := stepStatus(str); s {
	case stepStatusExecuting, stepStatusCompleted, stepStatusFailed:
		return s, nil
	default:
		return "", errors.Errorf("unknown step status %q", str)
	}
}
