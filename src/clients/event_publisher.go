package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"parking-svc/src/internal/config"
	"parking-svc/src/internal/events"
	"parking-svc/src/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"
)

const defaultPublishTimeout = 5 * time.Second

type amqpPublisher interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// EventPublisher publishes vehicle events to a RabbitMQ exchange, using the topic as routing key.
type EventPublisher struct {
	channel amqpPublisher
	cfg     *config.RabbitMQConfig
}

func NewEventPublisher(channel amqpPublisher, cfg *config.RabbitMQConfig) *EventPublisher {
	return &EventPublisher{
		channel: channel,
		cfg:     cfg,
	}
}

func (p *EventPublisher) Publish(ctx context.Context, topic string, event events.Event) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", models.ErrPublish, err)
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Type:         string(event.Kind),
		Body:         body,
		Timestamp:    time.Now(),
	}

	// amqp publishes block on the socket while the broker applies flow control.
	result := make(chan error, 1)
	go func() {
		result <- p.channel.Publish(p.cfg.Exchange, topic, false, false, msg)
	}()

	timer := time.NewTimer(p.timeout())
	defer timer.Stop()

	select {
	case err = <-result:
	case <-ctx.Done():
		err = ctx.Err()
	case <-timer.C:
		err = fmt.Errorf("publish timed out after %s", p.timeout())
	}

	if err != nil {
		logrus.WithError(err).WithField("event", event.Kind).Error("Failed to publish event")
		return fmt.Errorf("%w: %v", models.ErrPublish, err)
	}

	logrus.WithFields(logrus.Fields{
		"event":       event.Kind,
		"id":          event.ID,
		"plate":       event.Plate,
		"exchange":    p.cfg.Exchange,
		"routing_key": topic,
	}).Debug("Event published")

	return nil
}

func (p *EventPublisher) timeout() time.Duration {
	if p.cfg.Timeout > 0 {
		return time.Duration(p.cfg.Timeout) * time.Second
	}
	return defaultPublishTimeout
}
