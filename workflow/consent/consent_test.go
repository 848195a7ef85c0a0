package consent_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-finance/sagaflow/saga"
	testLog "github.com/open-finance/sagaflow/testing/log"
	mockSaga "github.com/open-finance/sagaflow/testing/mocks/saga"
	"github.com/open-finance/sagaflow/workflow/consent"
)

type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.calls = append(l.calls, name)
}

func (l *callLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	res := make([]string, len(l.calls))
	copy(res, l.calls)

	return res
}

// consentServices backs every collaborator of the workflow; failures are
// injected per method name
type consentServices struct {
	log       *callLog
	failOn    map[string]error
	waitDelay time.Duration

	compensations *saga.CompensationResult
}

func newConsentServices() *consentServices {
	return &consentServices{log: &callLog{}, failOn: map[string]error{}}
}

func (s *consentServices) call(name string) error {
	s.log.add(name)
	return s.failOn[name]
}

func (s *consentServices) ValidateParticipant(ctx context.Context, participantID string, certificates []string, signature string) error {
	return s.call("ValidateParticipant")
}

func (s *consentServices) RevokeValidation(ctx context.Context, participantID string) error {
	return s.call("RevokeValidation")
}

func (s *consentServices) VerifyConsentRequest(ctx context.Context, req consent.Request) error {
	return s.call("VerifyConsentRequest")
}

func (s *consentServices) CreatePendingConsent(ctx context.Context, req consent.Request) error {
	return s.call("CreatePendingConsent")
}

func (s *consentServices) DeleteConsent(ctx context.Context, consentID string) error {
	return s.call("DeleteConsent")
}

func (s *consentServices) ActivateConsent(ctx context.Context, consentID string, expiresAt time.Time) error {
	return s.call("ActivateConsent")
}

func (s *consentServices) SendAuthorizationRequest(ctx context.Context, req consent.Request) error {
	return s.call("SendAuthorizationRequest")
}

func (s *consentServices) CancelAuthorizationRequest(ctx context.Context, customerID, consentID string) error {
	return s.call("CancelAuthorizationRequest")
}

func (s *consentServices) NotifyConsentActivated(ctx context.Context, customerID, consentID, participantID string) error {
	return s.call("NotifyConsentActivated")
}

func (s *consentServices) WaitForAuthorization(ctx context.Context, consentID string) error {
	if s.waitDelay > 0 {
		time.Sleep(s.waitDelay)
	}

	return s.call("WaitForAuthorization")
}

func (s *consentServices) RegisterConsent(ctx context.Context, consentID, participantID, customerID string, scopes []string, authorizedAt time.Time) error {
	return s.call("RegisterConsent")
}

func (s *consentServices) DeregisterConsent(ctx context.Context, consentID string) error {
	return s.call("DeregisterConsent")
}

func (s *consentServices) RecordConsentAuthorized(ctx context.Context, sagaID saga.SagaID, consentID string) error {
	return s.call("RecordConsentAuthorized")
}

func (s *consentServices) RecordCompensation(ctx context.Context, sagaID saga.SagaID, consentID string, result *saga.CompensationResult) error {
	s.compensations = result
	return s.call("RecordCompensation")
}

func (s *consentServices) deps() consent.Deps {
	return consent.Deps{
		Participants:  s,
		Consents:      s,
		Notifications: s,
		Authorization: s,
		Trust:         s,
		Audit:         s,
	}
}

func newConsentWorkflow(services *consentServices, opts ...consent.Option) (*consent.Workflow, *saga.Orchestrator) {
	orchestrator := saga.New(saga.NewInMemoryStore(saga.NewJSONMarshaller()), saga.WithLogger(testLog.NewNilLogger()))
	opts = append([]consent.Option{consent.WithLogger(testLog.NewNilLogger())}, opts...)

	return consent.NewWorkflow(orchestrator, services.deps(), opts...), orchestrator
}

func testRequest() consent.Request {
	return consent.Request{
		ConsentID:     "consent-1",
		CustomerID:    "cust-1",
		ParticipantID: "tpp-1",
		Scopes:        []string{"accounts", "balances"},
		Purpose:       "account aggregation",
		ExpiresAt:     time.Now().Add(time.Hour * 24 * 90),
	}
}

func TestConsentAuthorizeHappyPath(t *testing.T) {
	services := newConsentServices()
	workflow, orchestrator := newConsentWorkflow(services)

	result := workflow.Authorize(context.Background(), testRequest())

	assert.Equal(t, consent.StatusAuthorized, result.Status)
	assert.Equal(t, "consent-1", result.ConsentID)
	assert.Empty(t, result.FailureReason)
	assert.Nil(t, result.Compensation)
	require.NotNil(t, result.AuthorizedAt)

	assert.Equal(t, []string{
		consent.StepValidateParticipant,
		consent.StepVerifyConsentRequest,
		consent.StepCreateConsentRecord,
		consent.StepNotifyCustomer,
		consent.StepWaitForAuthorization,
		consent.StepRegisterTrust,
		consent.StepActivateConsent,
	}, result.CompletedSteps)

	assert.Equal(t, []string{
		"ValidateParticipant",
		"VerifyConsentRequest",
		"CreatePendingConsent",
		"SendAuthorizationRequest",
		"WaitForAuthorization",
		"RegisterConsent",
		"ActivateConsent",
		"NotifyConsentActivated",
		"RecordConsentAuthorized",
	}, services.log.list())

	stored, err := orchestrator.GetExecution(context.Background(), result.SagaID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.Status().Completed())
}

func TestConsentAuthorizeDenied(t *testing.T) {
	services := newConsentServices()
	services.failOn["WaitForAuthorization"] = &consent.StepFailure{Code: consent.CodeDenied, Message: "customer denied the request"}

	workflow, orchestrator := newConsentWorkflow(services)

	result := workflow.Authorize(context.Background(), testRequest())

	assert.Equal(t, consent.StatusDenied, result.Status)
	assert.Contains(t, result.FailureReason, "customer denied the request")
	assert.Equal(t, []string{
		consent.StepValidateParticipant,
		consent.StepVerifyConsentRequest,
		consent.StepCreateConsentRecord,
		consent.StepNotifyCustomer,
	}, result.CompletedSteps)

	require.NotNil(t, result.Compensation)
	assert.Equal(t, 3, result.Compensation.TotalCompensations)
	assert.Equal(t, 3, result.Compensation.SuccessfulCompensations)

	// the rollback unwinds in reverse of how the effects were created
	calls := services.log.list()
	require.GreaterOrEqual(t, len(calls), 3)
	assert.Equal(t, []string{"CancelAuthorizationRequest", "DeleteConsent", "RevokeValidation", "RecordCompensation"}, calls[len(calls)-4:])

	assert.Same(t, result.Compensation, services.compensations)

	stored, err := orchestrator.GetExecution(context.Background(), result.SagaID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.Status().Compensated())
}

func TestConsentAuthorizeInvalidParticipant(t *testing.T) {
	services := newConsentServices()
	services.failOn["ValidateParticipant"] = &consent.StepFailure{Code: consent.CodeValidationFailed, Message: "certificate expired"}

	workflow, _ := newConsentWorkflow(services)

	result := workflow.Authorize(context.Background(), testRequest())

	assert.Equal(t, consent.StatusInvalid, result.Status)
	assert.Contains(t, result.FailureReason, "certificate expired")
	assert.Empty(t, result.CompletedSteps)

	// nothing was created yet, nothing to unwind
	require.NotNil(t, result.Compensation)
	assert.Zero(t, result.Compensation.TotalCompensations)
}

func TestConsentAuthorizeTimesOut(t *testing.T) {
	services := newConsentServices()
	services.waitDelay = time.Millisecond * 300

	workflow, _ := newConsentWorkflow(services, consent.WithAuthorizationTimeout(time.Millisecond*50))

	started := time.Now()
	result := workflow.Authorize(context.Background(), testRequest())

	assert.Equal(t, consent.StatusTimeout, result.Status)
	assert.Less(t, time.Since(started), time.Millisecond*250)

	require.NotNil(t, result.Compensation)
	assert.Equal(t, 3, result.Compensation.TotalCompensations)
}

func TestConsentAuthorizeInfrastructureFailure(t *testing.T) {
	services := newConsentServices()
	services.failOn["RegisterConsent"] = errors.New("trust framework unavailable")

	workflow, _ := newConsentWorkflow(services)

	result := workflow.Authorize(context.Background(), testRequest())

	assert.Equal(t, consent.StatusFailed, result.Status)
	assert.Contains(t, result.FailureReason, "trust framework unavailable")

	require.NotNil(t, result.Compensation)
	assert.Equal(t, 3, result.Compensation.TotalCompensations)
}

func TestConsentAuthorizeStartFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mockSaga.NewMockStore(ctrl)
	store.EXPECT().Save(gomock.Any(), gomock.Any()).Return(errors.New("store offline"))

	orchestrator := saga.New(store, saga.WithLogger(testLog.NewNilLogger()))
	services := newConsentServices()

	workflow := consent.NewWorkflow(orchestrator, services.deps(), consent.WithLogger(testLog.NewNilLogger()))

	result := workflow.Authorize(context.Background(), testRequest())

	assert.Equal(t, consent.StatusFailed, result.Status)
	assert.Contains(t, result.FailureReason, "store offline")
	assert.Empty(t, services.log.list())
}
