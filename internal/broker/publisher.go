package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher performs fire-and-forget publication of domain events.
// A successful Publish means the broker accepted the message, not that
// any consumer processed it.
type Publisher struct {
	channels ChannelProvider
	logger   *slog.Logger
}

func NewPublisher(channels ChannelProvider, logger *slog.Logger) *Publisher {
	return &Publisher{channels: channels, logger: logger}
}

// Publish declares the topic, serializes the event and sends it with
// persistent delivery so it survives a broker restart while queued.
func (p *Publisher) Publish(ctx context.Context, topic Topic, event any) error {
	ch, err := p.channels.Channel()
	if err != nil {
		return err
	}

	if err := topic.Declare(ch); err != nil {
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	exchange, key := topic.publishTarget()
	publishing := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		MessageId:    uuid.New().String(),
		Timestamp:    time.Now(),
		DeliveryMode: amqp.Persistent,
	}

	if err := ch.PublishWithContext(ctx, exchange, key, false, false, publishing); err != nil {
		return fmt.Errorf("failed to publish to %q: %w", exchange+"/"+key, err)
	}

	p.logger.Info("Published event",
		slog.String("exchange", exchange),
		slog.String("routing_key", key),
		slog.String("message_id", publishing.MessageId),
	)
	return nil
}
