package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"github.com/rabbitmq/amqp091-go"

	"github.com/inboxlab/warmstack/interfaces"
	"github.com/inboxlab/warmstack/internal/logger"
	"github.com/inboxlab/warmstack/internal/models"
	"github.com/inboxlab/warmstack/internal/tracing"
	"github.com/inboxlab/warmstack/internal/utils"
)

const (
	ExchangeWarmupEvents = "warmstack-events"
	ExchangeDeadLetter   = "dead-letter"

	QueueWarmupEvents = "warmstack-events"
	DLQWarmupEvents   = QueueWarmupEvents + "-dlq"

	RoutingKeyDeadLetter    = "dead-letter"
	RoutingKeySessionPrefix = "warmup.session."
	RoutingKeyMailLogged    = "warmup.mail.logged"

	// Session event names published under RoutingKeySessionPrefix.
	SessionEventStarted   = "started"
	SessionEventPaused    = "paused"
	SessionEventResumed   = "resumed"
	SessionEventStopped   = "stopped"
	SessionEventCompleted = "completed"
	SessionEventFailed    = "failed"

	DefaultMessageTTL       = 240 * time.Hour // after TTL message moves to DLQ
	DefaultMaxRetries       = 3
	DefaultPublishTimeout   = 5 * time.Second
	DefaultReconnectBackoff = time.Second
	MaxReconnectBackoff     = 30 * time.Second
)

// SessionEvent is the wire shape of a warm-up lifecycle notification.
type SessionEvent struct {
	ID        string                `json:"id"`
	Event     string                `json:"event"`
	Session   *models.WarmupSession `json:"session"`
	Timestamp string                `json:"timestamp"`
}

// MailEvent is emitted once per persisted mail log row.
type MailEvent struct {
	ID        string          `json:"id"`
	Entry     *models.MailLog `json:"entry"`
	Timestamp string          `json:"timestamp"`
}

type RabbitMQPublisher struct {
	connection      *amqp091.Connection
	connectionMutex sync.Mutex
	publishChannel  *amqp091.Channel
	publishMutex    sync.Mutex
	url             string
	logger          logger.Logger
	confirms        chan amqp091.Confirmation
}

func NewRabbitMQPublisher(rabbitmqURL string, logger logger.Logger) (*RabbitMQPublisher, error) {
	publisher := &RabbitMQPublisher{
		url:    rabbitmqURL,
		logger: logger,
	}

	err := publisher.connect()
	if err != nil {
		return nil, err
	}

	return publisher, nil
}

// PublishSessionEvent emits a lifecycle event for the given session. Broker
// failures are logged and swallowed; warm-up progress never depends on the
// event stream.
func (r *RabbitMQPublisher) PublishSessionEvent(ctx context.Context, event string, session *models.WarmupSession) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "RabbitMQPublisher.PublishSessionEvent")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.LogKV("event", event)
	if session != nil {
		tracing.TagEntity(span, session.ID)
	}

	message := SessionEvent{
		ID:        utils.GenerateNanoIDWithPrefix("event", 21),
		Event:     event,
		Session:   session,
		Timestamp: utils.Now().Format(time.RFC3339),
	}

	if err := r.publishMessageOnExchange(ctx, message, ExchangeWarmupEvents, RoutingKeySessionPrefix+event); err != nil {
		tracing.TraceErr(span, err)
		r.logger.Errorf("Failed to publish session event %s: %v", event, err)
	}
}

// PublishMailEvent emits one event per logged warm-up message.
func (r *RabbitMQPublisher) PublishMailEvent(ctx context.Context, entry *models.MailLog) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "RabbitMQPublisher.PublishMailEvent")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	if entry != nil {
		tracing.TagEntity(span, entry.ID)
	}

	message := MailEvent{
		ID:        utils.GenerateNanoIDWithPrefix("event", 21),
		Entry:     entry,
		Timestamp: utils.Now().Format(time.RFC3339),
	}

	if err := r.publishMessageOnExchange(ctx, message, ExchangeWarmupEvents, RoutingKeyMailLogged); err != nil {
		tracing.TraceErr(span, err)
		r.logger.Errorf("Failed to publish mail event: %v", err)
	}
}

func (r *RabbitMQPublisher) setupPublishChannel() error {
	channel, err := r.connection.Channel()
	if err != nil {
		return errors.Wrap(err, "Failed to open publish channel")
	}

	// Enable publisher confirms
	err = channel.Confirm(false)
	if err != nil {
		channel.Close()
		return errors.Wrap(err, "Failed to enable publisher confirms")
	}

	r.confirms = channel.NotifyPublish(make(chan amqp091.Confirmation, 1))
	r.publishChannel = channel
	return nil
}

func (r *RabbitMQPublisher) handleReconnection() {
	backoff := DefaultReconnectBackoff

	for {
		notifyClose := r.connection.NotifyClose(make(chan *amqp091.Error))
		err := <-notifyClose
		r.logger.Warnf("RabbitMQ connection closed: %v, attempting to reconnect", err)

		for {
			err := r.connect()
			if err == nil {
				r.logger.Info("Successfully reconnected to RabbitMQ")
				break
			}

			r.logger.Errorf("Failed to reconnect: %v, retrying in %v", err, backoff)
			time.Sleep(backoff)

			backoff *= 2
			if backoff > MaxReconnectBackoff {
				backoff = MaxReconnectBackoff
			}
		}

		backoff = DefaultReconnectBackoff
	}
}

func (r *RabbitMQPublisher) setupExchangesAndQueues() error {
	channel, err := r.connection.Channel()
	if err != nil {
		return errors.Wrap(err, "Failed to open channel for exchange/queue setup")
	}
	defer channel.Close()

	// Dead Letter Exchange (direct)
	err = channel.ExchangeDeclare(
		ExchangeDeadLetter,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return errors.Wrap(err, "Failed to declare dead letter exchange")
	}

	// Warm-up events exchange (topic) so consumers can bind to
	// warmup.session.* or warmup.mail.* selectively.
	err = channel.ExchangeDeclare(
		ExchangeWarmupEvents,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return errors.Wrap(err, "Failed to declare warm-up events exchange")
	}

	err = r.declareQueueWithDLQ(channel, QueueWarmupEvents, DLQWarmupEvents)
	if err != nil {
		return err
	}

	err = channel.QueueBind(
		QueueWarmupEvents,
		"warmup.#",
		ExchangeWarmupEvents,
		false,
		nil,
	)
	if err != nil {
		return errors.Wrapf(err, "Failed to bind queue %s to exchange %s", QueueWarmupEvents, ExchangeWarmupEvents)
	}

	return nil
}

func (r *RabbitMQPublisher) declareQueueWithDLQ(channel *amqp091.Channel, queueName string, dlqName string) error {
	_, err := channel.QueueDeclare(
		dlqName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return errors.Wrapf(err, "Failed to declare DLQ %s", dlqName)
	}

	err = channel.QueueBind(
		dlqName,
		RoutingKeyDeadLetter,
		ExchangeDeadLetter,
		false,
		nil,
	)
	if err != nil {
		return errors.Wrapf(err, "Failed to bind DLQ %s to exchange", dlqName)
	}

	args := make(map[string]interface{})
	args["x-dead-letter-exchange"] = ExchangeDeadLetter
	args["x-dead-letter-routing-key"] = RoutingKeyDeadLetter
	args["x-message-ttl"] = int64(DefaultMessageTTL.Milliseconds())

	_, err = channel.QueueDeclare(
		queueName,
		true,
		false,
		false,
		false,
		args,
	)
	if err != nil {
		return errors.Wrapf(err, "Failed to declare queue %s", queueName)
	}

	return nil
}

func (r *RabbitMQPublisher) connect() error {
	r.connectionMutex.Lock()
	defer r.connectionMutex.Unlock()

	var err error
	r.connection, err = amqp091.Dial(r.url)
	if err != nil {
		return errors.Wrap(err, "Failed to connect to RabbitMQ")
	}

	err = r.setupExchangesAndQueues()
	if err != nil {
		return errors.Wrap(err, "Failed to setup exchanges and queues")
	}

	err = r.setupPublishChannel()
	if err != nil {
		return errors.Wrap(err, "Failed to setup publish channel")
	}

	go r.handleReconnection()

	return nil
}

func (r *RabbitMQPublisher) ensureConnectionAndChannel() error {
	if r.connection == nil || r.connection.IsClosed() {
		if err := r.connect(); err != nil {
			return errors.Wrap(err, "Failed to establish connection")
		}
	}

	if r.publishChannel == nil || r.publishChannel.IsClosed() {
		if err := r.setupPublishChannel(); err != nil {
			return errors.Wrap(err, "Failed to establish channel")
		}
	}

	return nil
}

func (r *RabbitMQPublisher) publishMessageOnExchange(ctx context.Context, message interface{}, exchange, routingKey string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "RabbitMQPublisher.PublishMessageOnExchange")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.LogObjectAsJson(span, "message", message)

	for attempt := 0; attempt < DefaultMaxRetries; attempt++ {
		err := r.publishWithConfirm(ctx, message, exchange, routingKey)
		if err == nil {
			return nil
		}

		r.logger.Warnf("Publish attempt %d failed: %v", attempt+1, err)
		if attempt < DefaultMaxRetries-1 {
			time.Sleep(time.Millisecond * 100 * time.Duration(attempt+1))
		}
	}

	return errors.New("Failed to publish message after all retries")
}

func (r *RabbitMQPublisher) publishWithConfirm(ctx context.Context, message interface{}, exchange, routingKey string) error {
	r.publishMutex.Lock()
	defer r.publishMutex.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := r.ensureConnectionAndChannel(); err != nil {
		return err
	}

	jsonBody, err := json.Marshal(message)
	if err != nil {
		return errors.Wrap(err, "Failed to marshal message")
	}

	err = r.publishChannel.Publish(
		exchange,
		routingKey,
		true,  // mandatory - ensure message is routed
		false, // immediate
		amqp091.Publishing{
			DeliveryMode: amqp091.Persistent,
			ContentType:  "application/json",
			Body:         jsonBody,
			Timestamp:    time.Now(),
		})
	if err != nil {
		return errors.Wrap(err, "Failed to publish message")
	}

	select {
	case confirm := <-r.confirms:
		if !confirm.Ack {
			return errors.New("Message was not confirmed by server")
		}
	case <-time.After(DefaultPublishTimeout):
		return errors.New("Publish confirmation timeout")
	case <-ctx.Done():
		return ctx.Err()
	}

	return nil
}

// Close gracefully shuts down the publisher.
func (r *RabbitMQPublisher) Close() error {
	r.connectionMutex.Lock()
	defer r.connectionMutex.Unlock()

	var err error
	if r.publishChannel != nil {
		err = r.publishChannel.Close()
		if err != nil {
			r.logger.Errorf("Error closing publish channel: %v", err)
		}
	}

	if r.connection != nil {
		if closeErr := r.connection.Close(); closeErr != nil {
			r.logger.Errorf("Error closing connection: %v", closeErr)
			if err == nil {
				err = closeErr
			}
		}
	}

	return err
}

// noopPublisher keeps the warm-up path identical when no broker is
// configured.
type noopPublisher struct{}

func NewNoopPublisher() interfaces.EventPublisher {
	return &noopPublisher{}
}

func (n *noopPublisher) PublishSessionEvent(ctx context.Context, event string, session *models.WarmupSession) {
}

func (n *noopPublisher) PublishMailEvent(ctx context.Context, entry *models.MailLog) {}

func (n *noopPublisher) Close() error { return nil }
