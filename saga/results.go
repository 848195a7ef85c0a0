package saga

import (
	"time"
)

// Summary is a read-only projection of one execution, cheap to hand out to
// status endpoints and dashboards
type Summary struct {
	SagaID           SagaID        `json:"saga_id"`
	Status           string        `json:"status"`
	TotalSteps       int           `json:"total_steps"`
	CompletedSteps   int           `json:"completed_steps"`
	FailedSteps      int           `json:"failed_steps"`
	ExecutionTime    time.Duration `json:"execution_time"`
	HasCompensations bool          `json:"has_compensations"`
	StartedAt        time.Time     `json:"started_at"`
	CompletedAt      *time.Time    `json:"completed_at,omitempty"`
}

func (s Summary) CompletionPercentage() float64 {
	if s.TotalSteps == 0 {
		return 0
	}

	return float64(s.CompletedSteps) / float64(s.TotalSteps) * 100
}

func (s Summary) IsFullySuccessful() bool {
	return s.Status == sagaStatusCompleted.String() && s.FailedSteps == 0
}

// CompensationResult aggregates the outcome of one compensation drain.
// Individual failures are recorded here and never escalate to the caller.
type CompensationResult struct {
	SagaID                  SagaID                `json:"saga_id"`
	TotalCompensations      int                   `json:"total_compensations"`
	SuccessfulCompensations int                   `json:"successful_compensations"`
	FailedCompensations     []CompensationFailure `json:"failed_compensations,omitempty"`
	StartedAt               time.Time             `json:"started_at"`
}

type CompensationFailure struct {
	StepName     string    `json:"step_name"`
	ErrorMessage string    `json:"error_message"`
	FailedAt     time.Time `json:"failed_at"`
}

const (
	RecoveryOutcomeCompensated RecoveryOutcome = "compensated"
	RecoveryOutcomeAlreadyDone RecoveryOutcome = "already_done"
	RecoveryOutcomeFailed      RecoveryOutcome = "failed"
)

type RecoveryOutcome string

// RecoveryResult summarizes one RecoverSagas run. Sagas recover independently,
// a single failure shows up here without blocking the others.
type RecoveryResult struct {
	TotalSagas           int             `json:"total_sagas"`
	SuccessfulRecoveries int             `json:"successful_recoveries"`
	FailedRecoveries     int             `json:"failed_recoveries"`
	RecoveredSagas       []RecoveredSaga `json:"recovered_sagas,omitempty"`
	CompletedAt          time.Time       `json:"completed_at"`
}

type RecoveredSaga struct {
	SagaID  SagaID          `json:"saga_id"`
	Outcome RecoveryOutcome `json:"outcome"`
	Error   string          `json:"error,omitempty"`
}
