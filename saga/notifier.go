package saga

import (
	"context"
	"time"

	"github.com/open-finance/sagaflow/log"
)

// EventNotifier publishes saga lifecycle notifications. Calls are
// fire-and-forget: the orchestrator guards every call, a failing or panicking
// notifier never fails the saga operation itself.
type EventNotifier interface {
	SagaStarted(ctx context.Context, sagaID SagaID, sagaName string)
	StepCompleted(ctx context.Context, sagaID SagaID, stepName string, stepID StepID)
	StepFailed(ctx context.Context, sagaID SagaID, stepName string, stepID StepID, err error)
	SagaCompensated(ctx context.Context, sagaID SagaID, result *CompensationResult)
	SagaCompleted(ctx context.Context, sagaID SagaID, took time.Duration)
	SagaAborted(ctx context.Context, sagaID SagaID, reason string)
}

//NopNotifier discards all notifications, used by default if another isn't specified
func NopNotifier() EventNotifier {
	return &nopNotifier{}
}

type nopNotifier struct {
}

func (n nopNotifier) SagaStarted(ctx context.Context, sagaID SagaID, sagaName string) {
}

func (n nopNotifier) StepCompleted(ctx context.Context, sagaID SagaID, stepName string, stepID StepID) {
}

func (n nopNotifier) StepFailed(ctx context.Context, sagaID SagaID, stepName string, stepID StepID, err error) {
}

func (n nopNotifier) SagaCompensated(ctx context.Context, sagaID SagaID, result *CompensationResult) {
}

func (n nopNotifier) SagaCompleted(ctx context.Context, sagaID SagaID, took time.Duration) {
}

func (n nopNotifier) SagaAborted(ctx context.Context, sagaID SagaID, reason string) {
}

// NewLogNotifier writes lifecycle notifications to the logger, useful for
// deployments without a broker
func NewLogNotifier(logger log.Logger) EventNotifier {
	return &logNotifier{logger: logger}
}

type logNotifier struct {
	logger log.Logger
}

func (n logNotifier) SagaStarted(ctx context.Context, sagaID SagaID, sagaName string) {
	n.logger.WithFields(log.Fields{"sagaId": sagaID, "sagaName": sagaName}).Log(log.InfoLevel, "saga started")
}

func (n logNotifier) StepCompleted(ctx context.Context, sagaID SagaID, stepName string, stepID StepID) {
	n.logger.WithFields(log.Fields{"sagaId": sagaID, "step": stepName, "stepId": stepID}).Log(log.InfoLevel, "saga step completed")
}

func (n logNotifier) StepFailed(ctx context.Context, sagaID SagaID, stepName string, stepID StepID, err error) {
	n.logger.WithFields(log.Fields{"sagaId": sagaID, "step": stepName, "stepId": stepID}).Logf(log.ErrorLevel, "saga step failed: %s", err)
}

func (n logNotifier) SagaCompensated(ctx context.Context, sagaID SagaID, result *CompensationResult) {
	n.logger.WithFields(log.Fields{"sagaId": sagaID}).Logf(log.InfoLevel, "saga compensated, %d/%d successful",
		result.SuccessfulCompensations, result.TotalCompensations)
}

func (n logNotifier) SagaCompleted(ctx context.Context, sagaID SagaID, took time.Duration) {
	n.logger.WithFields(log.Fields{"sagaId": sagaID}).Logf(log.InfoLevel, "saga completed in %s", took)
}

func (n logNotifier) SagaAborted(ctx context.Context, sagaID SagaID, reason string) {
	n.logger.WithFields(log.Fields{"sagaId": sagaID}).Logf(log.WarnLevel, "saga aborted: %s", reason)
}
