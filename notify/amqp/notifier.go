package amqp

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/open-finance/sagaflow/log"
	"github.com/open-finance/sagaflow/saga"
)

const defaultExchange = "saga.events"

// NewNotifier returns a saga.EventNotifier publishing lifecycle notifications
// to an amqp topic exchange, one routing key per event kind. Publishing is
// best effort: broker errors are logged and never surfaced to the saga
// operation that triggered the notification.
func NewNotifier(url string, logger log.Logger, opts ...Option) *Notifier {
	n := &Notifier{
		url:      url,
		exchange: defaultExchange,
		logger:   logger,
	}

	for _, opt := range opts {
		opt(n)
	}

	return n
}

type Option func(n *Notifier)

func WithExchange(exchange string) Option {
	return func(n *Notifier) {
		n.exchange = exchange
	}
}

type Notifier struct {
	url        string
	exchange   string
	logger     log.Logger
	connection *amqp.Connection
	channel    *amqp.Channel
}

func (n *Notifier) Connect(ctx context.Context) error {
	conn, err := amqp.Dial(n.url)
	if err != nil {
		return errors.WithStack(err)
	}

	channel, err := conn.Channel()
	if err != nil {
		return errors.WithStack(err)
	}

	if err := channel.ExchangeDeclare(
		n.exchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		return errors.WithStack(err)
	}

	n.connection = conn
	n.channel = channel

	return nil
}

func (n *Notifier) Close() error {
	if n.connection == nil {
		return nil
	}

	return errors.WithStack(n.connection.Close())
}

func (n *Notifier) SagaStarted(ctx context.Context, sagaID saga.SagaID, sagaName string) {
	n.publish(ctx, "saga.started", map[string]interface{}{
		"saga_id":   sagaID,
		"saga_name": sagaName,
	})
}

func (n *Notifier) StepCompleted(ctx context.Context, sagaID saga.SagaID, stepName string, stepID saga.StepID) {
	n.publish(ctx, "saga.step.completed", map[string]interface{}{
		"saga_id":   sagaID,
		"step_name": stepName,
		"step_id":   stepID,
	})
}

func (n *Notifier) StepFailed(ctx context.Context, sagaID saga.SagaID, stepName string, stepID saga.StepID, err error) {
	n.publish(ctx, "saga.step.failed", map[string]interface{}{
		"saga_id":   sagaID,
		"step_name": stepName,
		"step_id":   stepID,
		"error":     err.Error(),
	})
}

func (n *Notifier) SagaCompensated(ctx context.Context, sagaID saga.SagaID, result *saga.CompensationResult) {
	n.publish(ctx, "saga.compensated", map[string]interface{}{
		"saga_id": sagaID,
		"result":  result,
	})
}

func (n *Notifier) SagaCompleted(ctx context.Context, sagaID saga.SagaID, took time.Duration) {
	n.publish(ctx, "saga.completed", map[string]interface{}{
		"saga_id":     sagaID,
		"duration_ms": took.Milliseconds(),
	})
}

func (n *Notifier) SagaAborted(ctx context.Context, sagaID saga.SagaID, reason string) {
	n.publish(ctx, "saga.aborted", map[string]interface{}{
		"saga_id": sagaID,
		"reason":  reason,
	})
}

func (n *Notifier) publish(ctx context.Context, routingKey string, body map[string]interface{}) {
	if n.channel == nil {
		n.logger.Logf(log.WarnLevel, "amqp notifier is not connected, dropping %s notification", routingKey)
		return
	}

	body["occurred_at"] = time.Now().UTC()

	data, err := json.Marshal(body)
	if err != nil {
		n.logger.Logf(log.ErrorLevel, "marshaling %s notification: %s", routingKey, err)
		return
	}

	err = n.channel.PublishWithContext(
		ctx,
		n.exchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Timestamp:   time.Now(),
			Body:        data,
		},
	)
	if err != nil {
		n.logger.Logf(log.ErrorLevel, "publishing %s notification: %s", routingKey, err)
	}
}
