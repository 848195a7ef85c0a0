// A runnable demo of the consent authorization workflow: one saga authorizes
// successfully, a second one is denied by the customer and rolls back through
// its compensations. Set AMQP_URL to additionally publish saga lifecycle
// events to a rabbitmq exchange.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/open-finance/sagaflow/log"
	amqpNotify "github.com/open-finance/sagaflow/notify/amqp"
	"github.com/open-finance/sagaflow/saga"
	"github.com/open-finance/sagaflow/workflow/consent"
)

func main() {
	logger := log.DefaultLogger()
	ctx := context.Background()

	opts := []saga.Option{saga.WithLogger(logger)}

	if url := os.Getenv("AMQP_URL"); url != "" {
		notifier := amqpNotify.NewNotifier(url, logger)
		if err := notifier.Connect(ctx); err != nil {
			logger.Logf(log.FatalLevel, "connecting amqp notifier: %s", err)
		}

		defer notifier.Close()

		opts = append(opts, saga.WithNotifier(notifier))
	}

	orchestrator := saga.New(saga.NewInMemoryStore(saga.NewJSONMarshaller()), opts...)

	services := &demoServices{logger: logger}

	workflow := consent.NewWorkflow(orchestrator, consent.Deps{
		Participants:  services,
		Consents:      services,
		Notifications: services,
		Authorization: services,
		Trust:         services,
		Audit:         services,
	}, consent.WithLogger(logger), consent.WithAuthorizationTimeout(time.Second*5))

	request := consent.Request{
		ConsentID:     "consent-demo-1",
		CustomerID:    "customer-42",
		ParticipantID: "tpp-7",
		Scopes:        []string{"accounts", "balances"},
		Purpose:       "account aggregation",
		ExpiresAt:     time.Now().Add(time.Hour * 24 * 90),
	}

	printResult("authorized consent", workflow.Authorize(ctx, request))

	services.denyAuthorization = true
	request.ConsentID = "consent-demo-2"

	printResult("denied consent", workflow.Authorize(ctx, request))
}

func printResult(title string, result consent.Result) {
	encoded, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Printf("%s: %v\n", title, result)
		return
	}

	fmt.Printf("--- %s ---\n%s\n", title, encoded)
}

// demoServices plays every collaborator of the workflow in memory
type demoServices struct {
	logger            log.Logger
	denyAuthorization bool
}

func (s *demoServices) ValidateParticipant(ctx context.Context, participantID string, certificates []string, signature string) error {
	s.logger.Logf(log.InfoLevel, "validated participant %s", participantID)
	return nil
}

func (s *demoServices) RevokeValidation(ctx context.Context, participantID string) error {
	s.logger.Logf(log.InfoLevel, "revoked validation of participant %s", participantID)
	return nil
}

func (s *demoServices) VerifyConsentRequest(ctx context.Context, req consent.Request) error {
	return nil
}

func (s *demoServices) CreatePendingConsent(ctx context.Context, req consent.Request) error {
	s.logger.Logf(log.InfoLevel, "created pending consent %s", req.ConsentID)
	return nil
}

func (s *demoServices) DeleteConsent(ctx context.Context, consentID string) error {
	s.logger.Logf(log.InfoLevel, "deleted consent %s", consentID)
	return nil
}

func (s *demoServices) ActivateConsent(ctx context.Context, consentID string, expiresAt time.Time) error {
	s.logger.Logf(log.InfoLevel, "activated consent %s until %s", consentID, expiresAt.Format(time.RFC3339))
	return nil
}

func (s *demoServices) SendAuthorizationRequest(ctx context.Context, req consent.Request) error {
	s.logger.Logf(log.InfoLevel, "asked customer %s to authorize consent %s", req.CustomerID, req.ConsentID)
	return nil
}

func (s *demoServices) CancelAuthorizationRequest(ctx context.Context, customerID, consentID string) error {
	s.logger.Logf(log.InfoLevel, "cancelled authorization request of consent %s", consentID)
	return nil
}

func (s *demoServices) NotifyConsentActivated(ctx context.Context, customerID, consentID, participantID string) error {
	return nil
}

func (s *demoServices) WaitForAuthorization(ctx context.Context, consentID string) error {
	time.Sleep(time.Millisecond * 100)

	if s.denyAuthorization {
		return &consent.StepFailure{Code: consent.CodeDenied, Message: "customer denied the request"}
	}

	return nil
}

func (s *demoServices) RegisterConsent(ctx context.Context, consentID, participantID, customerID string, scopes []string, authorizedAt time.Time) error {
	return nil
}

func (s *demoServices) DeregisterConsent(ctx context.Context, consentID string) error {
	return nil
}

func (s *demoServices) RecordConsentAuthorized(ctx context.Context, sagaID saga.SagaID, consentID string) error {
	return nil
}

func (s *demoServices) RecordCompensation(ctx context.Context, sagaID saga.SagaID, consentID string, result *saga.CompensationResult) error {
	return nil
}
