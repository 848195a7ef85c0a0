package saga

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/open-finance/sagaflow/log"
)

// StepFunc is a caller-supplied unit of work. It returns a result or fails;
// it knows nothing about the orchestrator.
type StepFunc func(ctx context.Context) (interface{}, error)

// CompensationFunc reverses the effect of a previously completed step.
// Errors are caught and recorded, never re-raised to the drain caller.
type CompensationFunc func(ctx context.Context) error

// Mutex fences compensation draining and recovery of one saga across
// processes. Implementations live in saga/mutex.
type Mutex interface {
	Lock(ctx context.Context, sagaID string) (MutexLock, error)
}

type MutexLock interface {
	Release(ctx context.Context) error
}

type Option func(o *Orchestrator)

func WithLogger(logger log.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

func WithNotifier(notifier EventNotifier) Option {
	return func(o *Orchestrator) {
		o.notifier = notifier
	}
}

func WithMutex(mutex Mutex) Option {
	return func(o *Orchestrator) {
		o.mutex = mutex
	}
}

func WithRegistry(registry *Registry) Option {
	return func(o *Orchestrator) {
		o.registry = registry
	}
}

// Orchestrator coordinates multi-step business transactions spanning
// independent services: it runs steps strictly sequentially within a saga,
// persists every transition, and drains registered compensations in reverse
// order when the workflow decides to roll back. Different sagas are fully
// independent and may run concurrently.
type Orchestrator struct {
	store       Store
	notifier    EventNotifier
	logger      log.Logger
	mutex       Mutex
	registry    *Registry
	activeSagas *xsync.MapOf[SagaID, *Execution]
}

func New(store Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:       store,
		notifier:    NopNotifier(),
		logger:      log.DefaultLogger(),
		activeSagas: xsync.NewMapOf[SagaID, *Execution](),
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// StartSaga creates a new execution, registers it as active and persists it.
// A persistence failure is fatal here: the saga is deregistered and no
// partial state is left behind.
func (o *Orchestrator) StartSaga(ctx context.Context, sagaID SagaID, sagaData interface{}) (*Execution, error) {
	exec := NewExecution(sagaID, sagaData)

	o.activeSagas.Store(sagaID, exec)

	if err := o.store.Save(ctx, exec); err != nil {
		o.activeSagas.Delete(sagaID)
		return nil, &StartError{SagaID: sagaID, Err: err}
	}

	o.notify(func() {
		o.notifier.SagaStarted(ctx, sagaID, exec.SagaName())
	})

	o.logger.WithFields(log.Fields{"sagaId": sagaID, "sagaName": exec.SagaName()}).Log(log.InfoLevel, "saga started")

	return exec, nil
}

// ExecuteStep appends a step in executing status, persists the saga and
// invokes fn. On failure it marks the step failed and raises a
// StepExecutionError; draining compensations stays the caller's decision.
// Persistence failures around step transitions are logged and swallowed,
// in-memory state remains authoritative until the next successful save.
func (o *Orchestrator) ExecuteStep(ctx context.Context, exec *Execution, stepName string, fn StepFunc) (interface{}, error) {
	stepID := NewStepID()
	step := newStep(stepID, stepName)

	exec.addStep(step)

	logger := o.logger.WithFields(log.Fields{"sagaId": exec.SagaID(), "step": stepName, "stepId": stepID})
	logger.Log(log.DebugLevel, "executing saga step")

	if err := o.store.Save(ctx, exec); err != nil {
		logger.Logf(log.WarnLevel, "failed to persist saga before step: %s", err)
	}

	result, err := fn(ctx)
	if err != nil {
		exec.failStep(step, err)

		if saveErr := o.store.Save(ctx, exec); saveErr != nil {
			logger.Logf(log.WarnLevel, "failed to persist saga after step failure: %s", saveErr)
		}

		o.notify(func() {
			o.notifier.StepFailed(ctx, exec.SagaID(), stepName, stepID, err)
		})

		logger.Logf(log.ErrorLevel, "saga step failed: %s", err)

		return nil, &StepExecutionError{SagaID: exec.SagaID(), StepID: stepID, StepName: stepName, Err: err}
	}

	exec.completeStep(step)

	// the result is already final for the caller, the mirror write may finish later
	go func() {
		if err := o.store.Save(context.Background(), exec); err != nil {
			logger.Logf(log.WarnLevel, "failed to persist saga after step completion: %s", err)
		}
	}()

	o.notify(func() {
		o.notifier.StepCompleted(ctx, exec.SagaID(), stepName, stepID)
	})

	logger.Log(log.DebugLevel, "saga step completed")

	return result, nil
}

// ExecuteAsyncStep races fn against a timer. If the timer fires first the
// step fails with a StepTimeoutError and the in-flight operation is
// abandoned: it is not cancelled, its late result is simply discarded.
func (o *Orchestrator) ExecuteAsyncStep(ctx context.Context, exec *Execution, stepName string, timeout time.Duration, fn StepFunc) (interface{}, error) {
	return o.ExecuteStep(ctx, exec, stepName, func(ctx context.Context) (interface{}, error) {
		type stepOutcome struct {
			result interface{}
			err    error
		}

		// buffered so an abandoned operation can still deliver and exit
		outcomeCh := make(chan stepOutcome, 1)

		go func() {
			result, err := fn(ctx)
			outcomeCh <- stepOutcome{result: result, err: err}
		}()

		timer := time.NewTimer(timeout)
		defer timer.Stop()

		select {
		case outcome := <-outcomeCh:
			return outcome.result, outcome.err
		case <-timer.C:
			return nil, &StepTimeoutError{StepName: stepName, Timeout: timeout}
		case <-ctx.Done():
			return nil, errors.WithStack(ctx.Err())
		}
	})
}

// ExecuteCompensations drains the compensation stack of a saga in reverse
// registration order. Each failure is recorded and does not stop the drain.
// Draining a saga that already reached a terminal status is a no-op.
func (o *Orchestrator) ExecuteCompensations(ctx context.Context, sagaID SagaID) (*CompensationResult, error) {
	exec, ok := o.activeSagas.Load(sagaID)
	if !ok {
		loaded, err := o.store.GetByID(ctx, sagaID)
		if err != nil {
			return nil, errors.Wrapf(err, "loading saga %s for compensation", sagaID)
		}

		if loaded == nil {
			return nil, &NotFoundError{SagaID: sagaID}
		}

		exec = loaded
	}

	return o.compensate(ctx, exec)
}

func (o *Orchestrator) compensate(ctx context.Context, exec *Execution) (*CompensationResult, error) {
	sagaID := exec.SagaID()
	logger := o.logger.WithFields(log.Fields{"sagaId": sagaID})

	if exec.IsTerminal() {
		logger.Log(log.DebugLevel, "saga already terminal, nothing to compensate")
		return &CompensationResult{SagaID: sagaID, StartedAt: time.Now().UTC()}, nil
	}

	if o.mutex != nil {
		lock, err := o.mutex.Lock(ctx, sagaID.String())
		if err != nil {
			return nil, errors.Wrapf(err, "acquiring mutex for compensation of saga %s", sagaID)
		}

		defer func() {
			if err := lock.Release(ctx); err != nil {
				logger.Logf(log.WarnLevel, "failed to release saga mutex: %s", err)
			}
		}()
	}

	exec.markCompensating()

	if err := o.store.Save(ctx, exec); err != nil {
		logger.Logf(log.WarnLevel, "failed to persist saga before compensation: %s", err)
	}

	pending := exec.pendingCompensations()

	result := &CompensationResult{
		SagaID:             sagaID,
		TotalCompensations: len(pending),
		StartedAt:          time.Now().UTC(),
	}

	logger.Logf(log.InfoLevel, "executing %d compensations", len(pending))

	for _, entry := range pending {
		o.runCompensation(ctx, exec, entry, result)
	}

	exec.markCompensated()

	if err := o.store.Save(ctx, exec); err != nil {
		logger.Logf(log.WarnLevel, "failed to persist saga after compensation: %s", err)
	}

	o.activeSagas.Delete(sagaID)

	o.notify(func() {
		o.notifier.SagaCompensated(ctx, sagaID, result)
	})

	logger.Logf(log.InfoLevel, "saga compensated, %d/%d successful", result.SuccessfulCompensations, result.TotalCompensations)

	return result, nil
}

// runCompensation executes one entry, isolating errors and panics so the
// remaining entries still drain
func (o *Orchestrator) runCompensation(ctx context.Context, exec *Execution, entry *compensationEntry, result *CompensationResult) {
	logger := o.logger.WithFields(log.Fields{"sagaId": exec.SagaID(), "step": entry.stepName})

	fn := entry.fn
	if fn == nil && o.registry != nil {
		fn, _ = o.registry.Resolve(entry.stepName)
	}

	if fn == nil {
		// entry loaded from the store, the closure died with the previous process
		errMsg := fmt.Sprintf("no compensation handler registered for step %s", entry.stepName)
		exec.failCompensation(entry, errMsg)
		result.FailedCompensations = append(result.FailedCompensations, CompensationFailure{
			StepName:     entry.stepName,
			ErrorMessage: errMsg,
			FailedAt:     time.Now().UTC(),
		})

		logger.Log(log.ErrorLevel, errMsg)

		return
	}

	var err error

	func() {
		defer func() {
			if r := recover(); r != nil {
				err = errors.Errorf("compensation panicked: %v", r)
			}
		}()

		err = fn(ctx)
	}()

	if err != nil {
		exec.failCompensation(entry, err.Error())
		result.FailedCompensations = append(result.FailedCompensations, CompensationFailure{
			StepName:     entry.stepName,
			ErrorMessage: err.Error(),
			FailedAt:     time.Now().UTC(),
		})

		logger.Logf(log.ErrorLevel, "compensation failed: %s", err)

		return
	}

	exec.completeCompensation(entry)
	result.SuccessfulCompensations++

	logger.Log(log.DebugLevel, "compensation successful")
}

// CompleteSaga marks an in-flight saga completed. Completion is only valid
// for sagas this orchestrator currently owns.
func (o *Orchestrator) CompleteSaga(ctx context.Context, sagaID SagaID) (*Execution, error) {
	exec, ok := o.activeSagas.Load(sagaID)
	if !ok {
		return nil, &NotFoundError{SagaID: sagaID}
	}

	exec.markCompleted()

	logger := o.logger.WithFields(log.Fields{"sagaId": sagaID})

	if err := o.store.Save(ctx, exec); err != nil {
		logger.Logf(log.WarnLevel, "failed to persist saga on completion: %s", err)
	}

	o.activeSagas.Delete(sagaID)

	took := exec.ExecutionTime()

	o.notify(func() {
		o.notifier.SagaCompleted(ctx, sagaID, took)
	})

	logger.Logf(log.InfoLevel, "saga completed in %s", took)

	return exec, nil
}

// AbortSaga marks a saga aborted without running compensations, for cases
// where rolling back is unnecessary or already handled externally.
func (o *Orchestrator) AbortSaga(ctx context.Context, sagaID SagaID, reason string) (*Execution, error) {
	exec, ok := o.activeSagas.Load(sagaID)
	if !ok {
		return nil, &NotFoundError{SagaID: sagaID}
	}

	exec.markAborted(reason)

	logger := o.logger.WithFields(log.Fields{"sagaId": sagaID})

	if err := o.store.Save(ctx, exec); err != nil {
		logger.Logf(log.WarnLevel, "failed to persist saga on abort: %s", err)
	}

	o.activeSagas.Delete(sagaID)

	o.notify(func() {
		o.notifier.SagaAborted(ctx, sagaID, reason)
	})

	logger.Logf(log.WarnLevel, "saga aborted: %s", reason)

	return exec, nil
}

// GetExecution returns the live execution for active sagas, otherwise the
// stored copy. Returns nil, nil when the saga is unknown.
func (o *Orchestrator) GetExecution(ctx context.Context, sagaID SagaID) (*Execution, error) {
	if exec, ok := o.activeSagas.Load(sagaID); ok {
		return exec, nil
	}

	exec, err := o.store.GetByID(ctx, sagaID)
	if err != nil {
		return nil, errors.Wrapf(err, "loading saga %s", sagaID)
	}

	return exec, nil
}

// ActiveSagas returns a snapshot of the executions this orchestrator owns
func (o *Orchestrator) ActiveSagas() []*Execution {
	var res []*Execution

	o.activeSagas.Range(func(id SagaID, exec *Execution) bool {
		res = append(res, exec)
		return true
	})

	return res
}

// notify runs a notifier call, making sure a panicking notifier cannot fail
// the saga operation
func (o *Orchestrator) notify(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Logf(log.WarnLevel, "saga notifier panicked: %v", r)
		}
	}()

	fn()
}
