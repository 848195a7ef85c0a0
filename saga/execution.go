package saga

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

const (
	compensationPending   compensationStatus = "pending"
	compensationCompleted compensationStatus = "completed"
	compensationFailed    compensationStatus = "failed"
)

type compensationStatus string

// compensationEntry pairs a step name with its reversing action. Entries keep
// insertion order, the drain replays them in reverse. The function itself is
// never persisted; after a restart it is resolved through a Registry.
type compensationEntry struct {
	stepName      string
	fn            CompensationFunc
	status        compensationStatus
	compensatedAt *time.Time
	errorMessage  string
}

// Execution is the aggregate root tracking one saga's progress. It is owned
// in-memory by the orchestrator while active and mirrored to the store after
// every transition; the durable copy is the source of truth for recovery.
type Execution struct {
	mu                      sync.RWMutex
	sagaID                  SagaID
	sagaName                string
	status                  status
	sagaData                interface{}
	startedAt               time.Time
	completedAt             *time.Time
	abortedAt               *time.Time
	compensationStartedAt   *time.Time
	compensationCompletedAt *time.Time
	steps                   []*Step
	compensations           []*compensationEntry
	contextData             *ContextData
	abortReason             string
	lastError               string
}

func NewExecution(sagaID SagaID, sagaData interface{}) *Execution {
	return &Execution{
		sagaID:      sagaID,
		sagaName:    sagaDataName(sagaData),
		status:      sagaStatusStarted,
		sagaData:    sagaData,
		startedAt:   time.Now().UTC(),
		steps:       make([]*Step, 0),
		contextData: NewContextData(),
	}
}

// sagaDataName yields the bare type name of the caller payload, used for
// notifications and store filtering
func sagaDataName(sagaData interface{}) string {
	if sagaData == nil {
		return ""
	}

	name := fmt.Sprintf("%T", sagaData)
	name = strings.TrimLeft(name, "*")

	if idx := strings.LastIndex(name, "."); idx >= 0 {
		name = name[idx+1:]
	}

	return name
}

func (e *Execution) SagaID() SagaID {
	return e.sagaID
}

func (e *Execution) SagaName() string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.sagaName
}

func (e *Execution) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.status
}

func (e *Execution) SagaData() interface{} {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.sagaData
}

// DecodeData decodes the caller payload into out. Needed for executions
// loaded from the store, where the payload comes back as generic JSON.
func (e *Execution) DecodeData(out interface{}) error {
	e.mu.RLock()
	data := e.sagaData
	e.mu.RUnlock()

	if data == nil {
		return errors.Errorf("saga %s carries no data", e.sagaID)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  out,
		TagName: "json",
	})
	if err != nil {
		return errors.Wrap(err, "creating decoder for saga data")
	}

	return errors.Wrapf(decoder.Decode(data), "decoding data of saga %s", e.sagaID)
}

func (e *Execution) ContextData() *ContextData {
	return e.contextData
}

func (e *Execution) StartedAt() time.Time {
	return e.startedAt
}

func (e *Execution) CompletedAt() *time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.completedAt
}

func (e *Execution) AbortedAt() *time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.abortedAt
}

func (e *Execution) AbortReason() string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.abortReason
}

func (e *Execution) LastError() string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.lastError
}

// ExecutionTime is the time the saga has been running, frozen once completed
func (e *Execution) ExecutionTime() time.Duration {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.completedAt != nil {
		return e.completedAt.Sub(e.startedAt)
	}

	return time.Since(e.startedAt)
}

func (e *Execution) Steps() []*Step {
	e.mu.RLock()
	defer e.mu.RUnlock()

	steps := make([]*Step, len(e.steps))
	copy(steps, e.steps)

	return steps
}

func (e *Execution) CompletedSteps() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var names []string
	for _, s := range e.steps {
		if s.status.Completed() {
			names = append(names, s.stepName)
		}
	}

	return names
}

func (e *Execution) FailedSteps() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var names []string
	for _, s := range e.steps {
		if s.status.Failed() {
			names = append(names, s.stepName)
		}
	}

	return names
}

// AddCompensation registers the reversing action for a step. Registering the
// same step again replaces the action but keeps the original position, so the
// reverse drain order stays stable.
func (e *Execution) AddCompensation(stepName string, fn CompensationFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, entry := range e.compensations {
		if entry.stepName == stepName {
			entry.fn = fn
			entry.status = compensationPending
			return
		}
	}

	e.compensations = append(e.compensations, &compensationEntry{
		stepName: stepName,
		fn:       fn,
		status:   compensationPending,
	})
}

func (e *Execution) IsTerminal() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.status.IsTerminal()
}

func (e *Execution) CanBeCompensated() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return !e.status.IsTerminal() && len(e.compensations) > 0
}

// pendingCompensations returns the entries still to drain, already reversed
// into LIFO order
func (e *Execution) pendingCompensations() []*compensationEntry {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var pending []*compensationEntry
	for i := len(e.compensations) - 1; i >= 0; i-- {
		if e.compensations[i].status == compensationPending {
			pending = append(pending, e.compensations[i])
		}
	}

	return pending
}

func (e *Execution) addStep(step *Step) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.steps = append(e.steps, step)
	e.status = sagaStatusExecuting
}

func (e *Execution) completeStep(step *Step) {
	e.mu.Lock()
	defer e.mu.Unlock()

	step.markCompleted()
}

func (e *Execution) failStep(step *Step, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	step.markFailed(err)
	if err != nil {
		e.lastError = err.Error()
	}
}

func (e *Execution) completeCompensation(entry *compensationEntry) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now().UTC()
	entry.status = compensationCompleted
	entry.compensatedAt = &now
}

func (e *Execution) failCompensation(entry *compensationEntry, errMsg string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now().UTC()
	entry.status = compensationFailed
	entry.compensatedAt = &now
	entry.errorMessage = errMsg
}

func (e *Execution) markCompleted() {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now().UTC()
	e.status = sagaStatusCompleted
	e.completedAt = &now
}

func (e *Execution) markCompensating() {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now().UTC()
	e.status = sagaStatusCompensating
	if e.compensationStartedAt == nil {
		e.compensationStartedAt = &now
	}
}

func (e *Execution) markCompensated() {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now().UTC()
	e.status = sagaStatusCompensated
	e.compensationCompletedAt = &now
}

func (e *Execution) markAborted(reason string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now().UTC()
	e.status = sagaStatusAborted
	e.abortedAt = &now
	e.abortReason = reason
}

// Summary builds the read-only projection of this execution
func (e *Execution) Summary() Summary {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var completed, failed int
	for _, s := range e.steps {
		switch {
		case s.status.Completed():
			completed++
		case s.status.Failed():
			failed++
		}
	}

	executionTime := time.Since(e.startedAt)
	if e.completedAt != nil {
		executionTime = e.completedAt.Sub(e.startedAt)
	}

	return Summary{
		SagaID:           e.sagaID,
		Status:           e.status.String(),
		TotalSteps:       len(e.steps),
		CompletedSteps:   completed,
		FailedSteps:      failed,
		ExecutionTime:    executionTime,
		HasCompensations: len(e.compensations) > 0,
		StartedAt:        e.startedAt,
		CompletedAt:      e.completedAt,
	}
}

type compensationModel struct {
	StepName      string     `json:"step_name"`
	Status        string     `json:"status"`
	CompensatedAt *time.Time `json:"compensated_at,omitempty"`
	ErrorMessage  string     `json:"error_message,omitempty"`
}

type executionModel struct {
	SagaID                  string              `json:"saga_id"`
	SagaName                string              `json:"saga_name"`
	Status                  string              `json:"status"`
	SagaData                interface{}         `json:"saga_data,omitempty"`
	StartedAt               time.Time           `json:"started_at"`
	CompletedAt             *time.Time          `json:"completed_at,omitempty"`
	AbortedAt               *time.Time          `json:"aborted_at,omitempty"`
	CompensationStartedAt   *time.Time          `json:"compensation_started_at,omitempty"`
	CompensationCompletedAt *time.Time          `json:"compensation_completed_at,omitempty"`
	Steps                   []stepModel         `json:"steps"`
	Compensations           []compensationModel `json:"compensations"`
	ContextData             *ContextData        `json:"context_data,omitempty"`
	AbortReason             string              `json:"abort_reason,omitempty"`
	LastError               string              `json:"last_error,omitempty"`
}

func (e *Execution) MarshalJSON() ([]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	m := executionModel{
		SagaID:                  e.sagaID.String(),
		SagaName:                e.sagaName,
		Status:                  e.status.String(),
		SagaData:                e.sagaData,
		StartedAt:               e.startedAt,
		CompletedAt:             e.completedAt,
		AbortedAt:               e.abortedAt,
		CompensationStartedAt:   e.compensationStartedAt,
		CompensationCompletedAt: e.compensationCompletedAt,
		Steps:                   make([]stepModel, len(e.steps)),
		Compensations:           make([]compensationModel, len(e.compensations)),
		ContextData:             e.contextData,
		AbortReason:             e.abortReason,
		LastError:               e.lastError,
	}

	for i, s := range e.steps {
		m.Steps[i] = s.toModel()
	}

	for i, c := range e.compensations {
		m.Compensations[i] = compensationModel{
			StepName:      c.stepName,
			Status:        string(c.status),
			CompensatedAt: c.compensatedAt,
			ErrorMessage:  c.errorMessage,
		}
	}

	return json.Marshal(m)
}

func (e *Execution) UnmarshalJSON(data []byte) error {
	m := executionModel{}
	if err := json.Unmarshal(data, &m); err != nil {
		return errors.WithStack(err)
	}

	st, err := statusFromStr(m.Status)
	if err != nil {
		return errors.Wrapf(err, "parsing status of saga %s", m.SagaID)
	}

	steps := make([]*Step, len(m.Steps))
	for i, sm := range m.Steps {
		step, err := stepFromModel(sm)
		if err != nil {
			return errors.Wrapf(err, "parsing step %s of saga %s", sm.StepName, m.SagaID)
		}
		steps[i] = step
	}

	compensations := make([]*compensationEntry, len(m.Compensations))
	for i, cm := range m.Compensations {
		compensations[i] = &compensationEntry{
			stepName:      cm.StepName,
			status:        compensationStatus(cm.Status),
			compensatedAt: cm.CompensatedAt,
			errorMessage:  cm.ErrorMessage,
		}
	}

	contextData := m.ContextData
	if contextData == nil {
		contextData = NewContextData()
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.sagaID = SagaID(m.SagaID)
	e.sagaName = m.SagaName
	e.status = st
	e.sagaData = m.SagaData
	e.startedAt = m.StartedAt
	e.completedAt = m.CompletedAt
	e.abortedAt = m.AbortedAt
	e.compensationStartedAt = m.CompensationStartedAt
	e.compensationCompletedAt = m.CompensationCompletedAt
	e.steps = steps
	e.compensations = compensations
	e.contextData = contextData
	e.abortReason = m.AbortReason
	e.lastError = m.LastError

	return nil
}
