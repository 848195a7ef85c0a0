// Package consent chains the consent authorization steps through the saga
// orchestrator: participant validation, consent verification and creation,
// customer notification, waiting for the customer's decision, registration
// with the trust framework and final activation. Any step failure rolls the
// workflow back through the compensations registered so far.
package consent

import (
	"context"
	"errors"
	"time"

	"github.com/open-finance/sagaflow/log"
	"github.com/open-finance/sagaflow/saga"
)

const (
	StepValidateParticipant  = "VALIDATE_PARTICIPANT"
	StepVerifyConsentRequest = "VERIFY_CONSENT_REQUEST"
	StepCreateConsentRecord  = "CREATE_CONSENT_RECORD"
	StepNotifyCustomer       = "NOTIFY_CUSTOMER"
	StepWaitForAuthorization = "WAIT_FOR_AUTHORIZATION"
	StepRegisterTrust        = "REGISTER_WITH_TRUST_FRAMEWORK"
	StepActivateConsent      = "ACTIVATE_CONSENT"
)

const (
	StatusAuthorized Status = "authorized"
	StatusTimeout    Status = "timeout"
	StatusDenied     Status = "denied"
	StatusInvalid    Status = "invalid"
	StatusFailed     Status = "failed"
)

type Status string

const (
	CodeDenied           = "customer_denied"
	CodeValidationFailed = "validation_failed"
)

// StepFailure is a business failure with a classification code, mapped onto
// the workflow status when the saga unwinds
type StepFailure struct {
	Code    string
	Message string
}

func (e *StepFailure) Error() string {
	return e.Message
}

type Request struct {
	ConsentID        string    `json:"consent_id"`
	CustomerID       string    `json:"customer_id"`
	ParticipantID    string    `json:"participant_id"`
	Scopes           []string  `json:"scopes"`
	Purpose          string    `json:"purpose"`
	AuthorizationURL string    `json:"authorization_url"`
	ExpiresAt        time.Time `json:"expires_at"`
	Certificates     []string  `json:"certificates"`
	RequestSignature string    `json:"request_signature"`
}

// Result is what the caller ultimately receives: either an authorized consent
// or a classified failure with the compensation outcome attached
type Result struct {
	SagaID         saga.SagaID              `json:"saga_id"`
	ConsentID      string                   `json:"consent_id"`
	Status         Status                   `json:"status"`
	FailureReason  string                   `json:"failure_reason,omitempty"`
	CompletedSteps []string                 `json:"completed_steps,omitempty"`
	ExecutionTime  time.Duration            `json:"execution_time"`
	AuthorizedAt   *time.Time               `json:"authorized_at,omitempty"`
	Compensation   *saga.CompensationResult `json:"compensation,omitempty"`
}

type ParticipantVerifier interface {
	ValidateParticipant(ctx context.Context, participantID string, certificates []string, signature string) error
	RevokeValidation(ctx context.Context, participantID string) error
}

type ConsentService interface {
	VerifyConsentRequest(ctx context.Context, req Request) error
	CreatePendingConsent(ctx context.Context, req Request) error
	DeleteConsent(ctx context.Context, consentID string) error
	ActivateConsent(ctx context.Context, consentID string, expiresAt time.Time) error
}

type NotificationService interface {
	SendAuthorizationRequest(ctx context.Context, req Request) error
	CancelAuthorizationRequest(ctx context.Context, customerID, consentID string) error
	NotifyConsentActivated(ctx context.Context, customerID, consentID, participantID string) error
}

// AuthorizationWaiter blocks until the customer decides. A denial comes back
// as a StepFailure with CodeDenied; the workflow bounds the wait with the
// configured timeout.
type AuthorizationWaiter interface {
	WaitForAuthorization(ctx context.Context, consentID string) error
}

type TrustFrameworkClient interface {
	RegisterConsent(ctx context.Context, consentID, participantID, customerID string, scopes []string, authorizedAt time.Time) error
	DeregisterConsent(ctx context.Context, consentID string) error
}

type AuditRecorder interface {
	RecordConsentAuthorized(ctx context.Context, sagaID saga.SagaID, consentID string) error
	RecordCompensation(ctx context.Context, sagaID saga.SagaID, consentID string, result *saga.CompensationResult) error
}

type Deps struct {
	Participants  ParticipantVerifier
	Consents      ConsentService
	Notifications NotificationService
	Authorization AuthorizationWaiter
	Trust         TrustFrameworkClient
	Audit         AuditRecorder
}

type Option func(w *Workflow)

func WithLogger(logger log.Logger) Option {
	return func(w *Workflow) {
		w.logger = logger
	}
}

// WithAuthorizationTimeout bounds the wait for the customer's decision,
// default 5 minutes
func WithAuthorizationTimeout(timeout time.Duration) Option {
	return func(w *Workflow) {
		w.authorizationTimeout = timeout
	}
}

type Workflow struct {
	orchestrator         *saga.Orchestrator
	deps                 Deps
	authorizationTimeout time.Duration
	logger               log.Logger
}

func NewWorkflow(orchestrator *saga.Orchestrator, deps Deps, opts ...Option) *Workflow {
	w := &Workflow{
		orchestrator:         orchestrator,
		deps:                 deps,
		authorizationTimeout: time.Minute * 5,
		logger:               log.DefaultLogger(),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Authorize runs the full consent authorization saga. Business failures never
// come back as errors: the caller always receives a Result with a classified
// status, failed sagas are compensated before returning.
func (w *Workflow) Authorize(ctx context.Context, req Request) Result {
	sagaID := saga.NewSagaID()
	logger := w.logger.WithFields(log.Fields{"sagaId": sagaID, "consentId": req.ConsentID})

	logger.Log(log.InfoLevel, "starting consent authorization")

	exec, err := w.orchestrator.StartSaga(ctx, sagaID, req)
	if err != nil {
		logger.Logf(log.ErrorLevel, "failed to start consent authorization saga: %s", err)
		return Result{
			SagaID:        sagaID,
			ConsentID:     req.ConsentID,
			Status:        StatusFailed,
			FailureReason: err.Error(),
		}
	}

	if err := w.runSteps(ctx, exec, req); err != nil {
		return w.handleFailure(ctx, exec, req, err)
	}

	if _, err := w.orchestrator.CompleteSaga(ctx, sagaID); err != nil {
		logger.Logf(log.ErrorLevel, "failed to complete consent authorization saga: %s", err)
	}

	now := time.Now().UTC()

	logger.Log(log.InfoLevel, "consent authorization completed")

	return Result{
		SagaID:         sagaID,
		ConsentID:      req.ConsentID,
		Status:         StatusAuthorized,
		CompletedSteps: exec.CompletedSteps(),
		ExecutionTime:  exec.ExecutionTime(),
		AuthorizedAt:   &now,
	}
}

func (w *Workflow) runSteps(ctx context.Context, exec *saga.Execution, req Request) error {
	_, err := w.orchestrator.ExecuteStep(ctx, exec, StepValidateParticipant, func(ctx context.Context) (interface{}, error) {
		return nil, w.deps.Participants.ValidateParticipant(ctx, req.ParticipantID, req.Certificates, req.RequestSignature)
	})
	if err != nil {
		return err
	}

	exec.AddCompensation(StepValidateParticipant, func(ctx context.Context) error {
		return w.deps.Participants.RevokeValidation(ctx, req.ParticipantID)
	})

	_, err = w.orchestrator.ExecuteStep(ctx, exec, StepVerifyConsentRequest, func(ctx context.Context) (interface{}, error) {
		return nil, w.deps.Consents.VerifyConsentRequest(ctx, req)
	})
	if err != nil {
		return err
	}

	_, err = w.orchestrator.ExecuteStep(ctx, exec, StepCreateConsentRecord, func(ctx context.Context) (interface{}, error) {
		return nil, w.deps.Consents.CreatePendingConsent(ctx, req)
	})
	if err != nil {
		return err
	}

	exec.AddCompensation(StepCreateConsentRecord, func(ctx context.Context) error {
		return w.deps.Consents.DeleteConsent(ctx, req.ConsentID)
	})

	_, err = w.orchestrator.ExecuteStep(ctx, exec, StepNotifyCustomer, func(ctx context.Context) (interface{}, error) {
		return nil, w.deps.Notifications.SendAuthorizationRequest(ctx, req)
	})
	if err != nil {
		return err
	}

	exec.AddCompensation(StepNotifyCustomer, func(ctx context.Context) error {
		return w.deps.Notifications.CancelAuthorizationRequest(ctx, req.CustomerID, req.ConsentID)
	})

	_, err = w.orchestrator.ExecuteAsyncStep(ctx, exec, StepWaitForAuthorization, w.authorizationTimeout, func(ctx context.Context) (interface{}, error) {
		return nil, w.deps.Authorization.WaitForAuthorization(ctx, req.ConsentID)
	})
	if err != nil {
		return err
	}

	authorizedAt := time.Now().UTC()

	_, err = w.orchestrator.ExecuteStep(ctx, exec, StepRegisterTrust, func(ctx context.Context) (interface{}, error) {
		return nil, w.deps.Trust.RegisterConsent(ctx, req.ConsentID, req.ParticipantID, req.CustomerID, req.Scopes, authorizedAt)
	})
	if err != nil {
		return err
	}

	exec.AddCompensation(StepRegisterTrust, func(ctx context.Context) error {
		return w.deps.Trust.DeregisterConsent(ctx, req.ConsentID)
	})

	_, err = w.orchestrator.ExecuteStep(ctx, exec, StepActivateConsent, func(ctx context.Context) (interface{}, error) {
		if err := w.deps.Consents.ActivateConsent(ctx, req.ConsentID, req.ExpiresAt); err != nil {
			return nil, err
		}

		if err := w.deps.Notifications.NotifyConsentActivated(ctx, req.CustomerID, req.ConsentID, req.ParticipantID); err != nil {
			return nil, err
		}

		return nil, w.deps.Audit.RecordConsentAuthorized(ctx, exec.SagaID(), req.ConsentID)
	})

	return err
}

func (w *Workflow) handleFailure(ctx context.Context, exec *saga.Execution, req Request, stepErr error) Result {
	sagaID := exec.SagaID()
	logger := w.logger.WithFields(log.Fields{"sagaId": sagaID, "consentId": req.ConsentID})

	logger.Logf(log.ErrorLevel, "consent authorization failed, compensating: %s", stepErr)

	compensation, err := w.orchestrator.ExecuteCompensations(ctx, sagaID)
	if err != nil {
		logger.Logf(log.ErrorLevel, "compensation of consent authorization saga failed: %s", err)
	} else if w.deps.Audit != nil {
		if err := w.deps.Audit.RecordCompensation(ctx, sagaID, req.ConsentID, compensation); err != nil {
			logger.Logf(log.WarnLevel, "failed to record compensation audit entry: %s", err)
		}
	}

	return Result{
		SagaID:         sagaID,
		ConsentID:      req.ConsentID,
		Status:         classify(stepErr),
		FailureReason:  stepErr.Error(),
		CompletedSteps: exec.CompletedSteps(),
		ExecutionTime:  exec.ExecutionTime(),
		Compensation:   compensation,
	}
}

// classify maps the saga error taxonomy onto the workflow-level status
func classify(err error) Status {
	var timeoutErr *saga.StepTimeoutError
	if errors.As(err, &timeoutErr) {
		return StatusTimeout
	}

	var failure *StepFailure
	if errors.As(err, &failure) {
		switch failure.Code {
		case CodeDenied:
			return StatusDenied
		case CodeValidationFailed:
			return StatusInvalid
		}
	}

	return StatusFailed
}
