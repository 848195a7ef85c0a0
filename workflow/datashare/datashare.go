// Package datashare chains the cross-platform data sharing steps through the
// saga orchestrator: consent validation, rate limiting, aggregation of data
// from the connected platforms, transformation and masking, encryption,
// delivery to the requesting participant and the audit trail. Intermediate
// payloads travel between steps through the saga's context data.
package datashare

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/open-finance/sagaflow/log"
	"github.com/open-finance/sagaflow/saga"
)

const (
	StepValidateConsent  = "VALIDATE_CONSENT"
	StepCheckRateLimits  = "CHECK_RATE_LIMITS"
	StepAggregateData    = "AGGREGATE_DATA"
	StepTransformData    = "TRANSFORM_DATA"
	StepEncryptData      = "ENCRYPT_DATA"
	StepDeliverData      = "DELIVER_DATA"
	StepRecordAuditTrail = "RECORD_AUDIT_TRAIL"
)

const (
	ctxKeyAggregated  = "aggregated_data"
	ctxKeyTransformed = "transformed_data"
	ctxKeyEncrypted   = "encrypted_payload"
)

const (
	StatusDelivered   Status = "delivered"
	StatusTimeout     Status = "timeout"
	StatusInvalid     Status = "invalid"
	StatusRateLimited Status = "rate_limited"
	StatusFailed      Status = "failed"
)

type Status string

const (
	CodeConsentInvalid = "consent_invalid"
	CodeRateLimited    = "rate_limited"
)

type StepFailure struct {
	Code    string
	Message string
}

func (e *StepFailure) Error() string {
	return e.Message
}

type Request struct {
	ConsentID     string   `json:"consent_id"`
	CustomerID    string   `json:"customer_id"`
	ParticipantID string   `json:"participant_id"`
	Scopes        []string `json:"scopes"`
	RequestID     string   `json:"request_id"`
}

type AggregatedData struct {
	Sources []string               `json:"sources"`
	Records map[string]interface{} `json:"records"`
}

type TransformedData struct {
	Format  string                 `json:"format"`
	Records map[string]interface{} `json:"records"`
}

type EncryptedPayload struct {
	KeyID      string `json:"key_id"`
	Ciphertext []byte `json:"ciphertext"`
}

type Result struct {
	SagaID         saga.SagaID              `json:"saga_id"`
	RequestID      string                   `json:"request_id"`
	Status         Status                   `json:"status"`
	FailureReason  string                   `json:"failure_reason,omitempty"`
	CompletedSteps []string                 `json:"completed_steps,omitempty"`
	ExecutionTime  time.Duration            `json:"execution_time"`
	Compensation   *saga.CompensationResult `json:"compensation,omitempty"`
}

type ConsentValidator interface {
	ValidateConsentForDataAccess(ctx context.Context, consentID, participantID, customerID string, scopes []string) error
}

// RateLimiter reserves a request slot for the participant; a reserved slot is
// released again when a later step fails
type RateLimiter interface {
	Reserve(ctx context.Context, participantID, consentID string) error
	Release(ctx context.Context, participantID, consentID string) error
}

type Aggregator interface {
	Aggregate(ctx context.Context, req Request) (*AggregatedData, error)
	Purge(ctx context.Context, requestID string) error
}

type Transformer interface {
	Transform(ctx context.Context, data *AggregatedData, scopes []string) (*TransformedData, error)
	Purge(ctx context.Context, requestID string) error
}

type Encryptor interface {
	Encrypt(ctx context.Context, data *TransformedData, participantID string) (*EncryptedPayload, error)
	DestroyKey(ctx context.Context, keyID string) error
}

type Deliverer interface {
	Deliver(ctx context.Context, participantID string, payload *EncryptedPayload) error
}

type AuditRecorder interface {
	RecordDataShared(ctx context.Context, sagaID saga.SagaID, req Request) error
	RecordCompensation(ctx context.Context, sagaID saga.SagaID, requestID string, result *saga.CompensationResult) error
}

type Deps struct {
	Consents    ConsentValidator
	RateLimits  RateLimiter
	Aggregation Aggregator
	Transform   Transformer
	Encryption  Encryptor
	Delivery    Deliverer
	Audit       AuditRecorder
}

type Option func(w *Workflow)

func WithLogger(logger log.Logger) Option {
	return func(w *Workflow) {
		w.logger = logger
	}
}

// WithAggregationTimeout bounds the cross-platform aggregation step, default 2 minutes
func WithAggregationTimeout(timeout time.Duration) Option {
	return func(w *Workflow) {
		w.aggregationTimeout = timeout
	}
}

// WithDeliveryTimeout bounds the delivery step, default 1 minute
func WithDeliveryTimeout(timeout time.Duration) Option {
	return func(w *Workflow) {
		w.deliveryTimeout = timeout
	}
}

type Workflow struct {
	orchestrator       *saga.Orchestrator
	deps               Deps
	aggregationTimeout time.Duration
	deliveryTimeout    time.Duration
	logger             log.Logger
}

func NewWorkflow(orchestrator *saga.Orchestrator, deps Deps, opts ...Option) *Workflow {
	w := &Workflow{
		orchestrator:       orchestrator,
		deps:               deps,
		aggregationTimeout: time.Minute * 2,
		deliveryTimeout:    time.Minute,
		logger:             log.DefaultLogger(),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Share runs the full data sharing saga and always returns a classified
// Result; failed sagas are compensated before returning
func (w *Workflow) Share(ctx context.Context, req Request) Result {
	sagaID := saga.NewSagaID()
	logger := w.logger.WithFields(log.Fields{"sagaId": sagaID, "requestId": req.RequestID})

	logger.Log(log.InfoLevel, "starting data sharing request")

	exec, err := w.orchestrator.StartSaga(ctx, sagaID, req)
	if err != nil {
		logger.Logf(log.ErrorLevel, "failed to start data sharing saga: %s", err)
		return Result{
			SagaID:        sagaID,
			RequestID:     req.RequestID,
			Status:        StatusFailed,
			FailureReason: err.Error(),
		}
	}

	if err := w.runSteps(ctx, exec, req); err != nil {
		return w.handleFailure(ctx, exec, req, err)
	}

	if _, err := w.orchestrator.CompleteSaga(ctx, sagaID); err != nil {
		logger.Logf(log.ErrorLevel, "failed to complete data sharing saga: %s", err)
	}

	logger.Log(log.InfoLevel, "data sharing request completed")

	return Result{
		SagaID:         sagaID,
		RequestID:      req.RequestID,
		Status:         StatusDelivered,
		CompletedSteps: exec.CompletedSteps(),
		ExecutionTime:  exec.ExecutionTime(),
	}
}

func (w *Workflow) runSteps(ctx context.Context, exec *saga.Execution, req Request) error {
	_, err := w.orchestrator.ExecuteStep(ctx, exec, StepValidateConsent, func(ctx context.Context) (interface{}, error) {
		return nil, w.deps.Consents.ValidateConsentForDataAccess(ctx, req.ConsentID, req.ParticipantID, req.CustomerID, req.Scopes)
	})
	if err != nil {
		return err
	}

	_, err = w.orchestrator.ExecuteStep(ctx, exec, StepCheckRateLimits, func(ctx context.Context) (interface{}, error) {
		return nil, w.deps.RateLimits.Reserve(ctx, req.ParticipantID, req.ConsentID)
	})
	if err != nil {
		return err
	}

	exec.AddCompensation(StepCheckRateLimits, func(ctx context.Context) error {
		return w.deps.RateLimits.Release(ctx, req.ParticipantID, req.ConsentID)
	})

	aggregated, err := w.orchestrator.ExecuteAsyncStep(ctx, exec, StepAggregateData, w.aggregationTimeout, func(ctx context.Context) (interface{}, error) {
		return w.deps.Aggregation.Aggregate(ctx, req)
	})
	if err != nil {
		return err
	}

	exec.ContextData().Set(ctxKeyAggregated, aggregated)
	exec.AddCompensation(StepAggregateData, func(ctx context.Context) error {
		return w.deps.Aggregation.Purge(ctx, req.RequestID)
	})

	transformed, err := w.orchestrator.ExecuteStep(ctx, exec, StepTransformData, func(ctx context.Context) (interface{}, error) {
		data := &AggregatedData{}
		if err := exec.ContextData().DecodeValue(ctxKeyAggregated, data); err != nil {
			return nil, err
		}

		return w.deps.Transform.Transform(ctx, data, req.Scopes)
	})
	if err != nil {
		return err
	}

	exec.ContextData().Set(ctxKeyTransformed, transformed)
	exec.AddCompensation(StepTransformData, func(ctx context.Context) error {
		return w.deps.Transform.Purge(ctx, req.RequestID)
	})

	encrypted, err := w.orchestrator.ExecuteStep(ctx, exec, StepEncryptData, func(ctx context.Context) (interface{}, error) {
		data := &TransformedData{}
		if err := exec.ContextData().DecodeValue(ctxKeyTransformed, data); err != nil {
			return nil, err
		}

		return w.deps.Encryption.Encrypt(ctx, data, req.ParticipantID)
	})
	if err != nil {
		return err
	}

	payload, ok := encrypted.(*EncryptedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload type %T from encryption step", encrypted)
	}

	exec.ContextData().Set(ctxKeyEncrypted, payload)
	exec.AddCompensation(StepEncryptData, func(ctx context.Context) error {
		return w.deps.Encryption.DestroyKey(ctx, payload.KeyID)
	})

	_, err = w.orchestrator.ExecuteAsyncStep(ctx, exec, StepDeliverData, w.deliveryTimeout, func(ctx context.Context) (interface{}, error) {
		return nil, w.deps.Delivery.Deliver(ctx, req.ParticipantID, payload)
	})
	if err != nil {
		return err
	}

	_, err = w.orchestrator.ExecuteStep(ctx, exec, StepRecordAuditTrail, func(ctx context.Context) (interface{}, error) {
		return nil, w.deps.Audit.RecordDataShared(ctx, exec.SagaID(), req)
	})

	return err
}

func (w *Workflow) handleFailure(ctx context.Context, exec *saga.Execution, req Request, stepErr error) Result {
	sagaID := exec.SagaID()
	logger := w.logger.WithFields(log.Fields{"sagaId": sagaID, "requestId": req.RequestID})

	logger.Logf(log.ErrorLevel, "data sharing request failed, compensating: %s", stepErr)

	compensation, err := w.orchestrator.ExecuteCompensations(ctx, sagaID)
	if err != nil {
		logger.Logf(log.ErrorLevel, "compensation of data sharing saga failed: %s", err)
	} else if w.deps.Audit != nil {
		if err := w.deps.Audit.RecordCompensation(ctx, sagaID, req.RequestID, compensation); err != nil {
			logger.Logf(log.WarnLevel, "failed to record compensation audit entry: %s", err)
		}
	}

	return Result{
		SagaID:         sagaID,
		RequestID:      req.RequestID,
		Status:         classify(stepErr),
		FailureReason:  stepErr.Error(),
		CompletedSteps: exec.CompletedSteps(),
		ExecutionTime:  exec.ExecutionTime(),
		Compensation:   compensation,
	}
}

func classify(err error) Status {
	var timeoutErr *saga.StepTimeoutError
	if errors.As(err, &timeoutErr) {
		return StatusTimeout
	}

	var failure *StepFailure
	if errors.As(err, &failure) {
		switch failure.Code {
		case CodeConsentInvalid:
			return StatusInvalid
		case CodeRateLimited:
			return StatusRateLimited
		}
	}

	return StatusFailed
}
