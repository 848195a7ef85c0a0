package saga

import (
	"time"
)

// Step tracks one named unit of work within a saga. Entries are appended
// in execution order and, once terminal, only timestamps stay mutable.
type Step struct {
	stepID       StepID
	stepName     string
	status       stepStatus
	startedAt    time.Time
	completedAt  *time.Time
	failedAt     *time.Time
	errorMessage string
}

func newStep(stepID StepID, stepName string) *Step {
	return &Step{
		stepID:    stepID,
		stepName:  stepName,
		status:    stepStatusExecuting,
		startedAt: time.Now().UTC(),
	}
}

func (s *Step) StepID() StepID {
	return s.stepID
}

func (s *Step) StepName() string {
	return s.stepName
}

func (s *Step) Status() StepStatus {
	return s.status
}

func (s *Step) StartedAt() time.Time {
	return s.startedAt
}

func (s *Step) CompletedAt() *time.Time {
	return s.completedAt
}

func (s *Step) FailedAt() *time.Time {
	return s.failedAt
}

func (s *Step) ErrorMessage() string {
	return s.errorMessage
}

func (s *Step) markCompleted() {
	now := time.Now().UTC()
	s.status = stepStatusCompleted
	s.completedAt = &now
}

func (s *Step) markFailed(err error) {
	now := time.Now().UTC()
	s.status = stepStatusFailed
	s.failedAt = &now
	if err != nil {
		s.errorMessage = err.Error()
	}
}

type stepModel struct {
	StepID       string     `json:"step_id"`
	StepName     string     `json:"step_name"`
	Status       string     `json:"status"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	FailedAt     *time.Time `json:"failed_at,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

func (s *Step) toModel() stepModel {
	return stepModel{
		StepID:       s.stepID.String(),
		StepName:     s.stepName,
		Status:       s.status.String(),
		StartedAt:    s.startedAt,
		CompletedAt:  s.completedAt,
		FailedAt:     s.failedAt,
		ErrorMessage: s.errorMessage,
	}
}

func stepFromModel(m stepModel) (*Step, error) {
	st, err := stepStatusFromStr(m.Status)
	if err != nil {
		return nil, err
	}

	return &Step{
		stepID:       StepID(m.StepID),
		stepName:     m.StepName,
		status:       st,
		startedAt:    m.StartedAt,
		completedAt:  m.CompletedAt,
		failedAt:     m.FailedAt,
		errorMessage: m.ErrorMessage,
	}, nil
}
