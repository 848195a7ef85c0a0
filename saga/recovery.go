package saga

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/open-finance/sagaflow/log"
)

// RecoverSagas re-establishes correct outcomes for sagas interrupted by a
// crash or restart. Sagas still in started/executing are compensated in full:
// the failure point's side effects may or may not have landed, rolling back
// is the only safe answer. Sagas caught mid-compensation resume the remaining
// entries. Each saga recovers independently.
func (o *Orchestrator) RecoverSagas(ctx context.Context) (*RecoveryResult, error) {
	o.logger.Log(log.InfoLevel, "starting saga recovery")

	interrupted, err := o.store.FindInterrupted(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying interrupted sagas")
	}

	result := &RecoveryResult{
		TotalSagas:     len(interrupted),
		RecoveredSagas: make([]RecoveredSaga, 0, len(interrupted)),
	}

	for _, exec := range interrupted {
		recovered := o.recoverSaga(ctx, exec)
		result.RecoveredSagas = append(result.RecoveredSagas, recovered)

		if recovered.Outcome == RecoveryOutcomeFailed {
			result.FailedRecoveries++
		} else {
			result.SuccessfulRecoveries++
		}
	}

	result.CompletedAt = time.Now().UTC()

	o.logger.Logf(log.InfoLevel, "saga recovery completed, %d/%d sagas recovered", result.SuccessfulRecoveries, result.TotalSagas)

	return result, nil
}

func (o *Orchestrator) recoverSaga(ctx context.Context, exec *Execution) (recovered RecoveredSaga) {
	sagaID := exec.SagaID()
	logger := o.logger.WithFields(log.Fields{"sagaId": sagaID, "status": exec.Status().String()})
	logger.Log(log.DebugLevel, "recovering saga")

	defer func() {
		if r := recover(); r != nil {
			logger.Logf(log.ErrorLevel, "panic while recovering saga: %v", r)
			recovered = RecoveredSaga{SagaID: sagaID, Outcome: RecoveryOutcomeFailed, Error: fmt.Sprintf("panic: %v", r)}
		}
	}()

	st := exec.Status()

	switch {
	case st.Started() || st.Executing() || st.Compensating():
		if _, err := o.compensate(ctx, exec); err != nil {
			logger.Logf(log.ErrorLevel, "failed to recover saga: %s", err)
			return RecoveredSaga{SagaID: sagaID, Outcome: RecoveryOutcomeFailed, Error: err.Error()}
		}

		return RecoveredSaga{SagaID: sagaID, Outcome: RecoveryOutcomeCompensated}
	case st.IsTerminal():
		// the store may have raced a concurrent writer, nothing to do
		return RecoveredSaga{SagaID: sagaID, Outcome: RecoveryOutcomeAlreadyDone}
	default:
		logger.Log(log.WarnLevel, "unknown saga status during recovery")
		return RecoveredSaga{SagaID: sagaID, Outcome: RecoveryOutcomeFailed, Error: fmt.Sprintf("unknown status: %s", st)}
	}
}
