package broker

import (
	"context"
	"errors"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	// DefaultMaxAttempts bounds redelivery of a failing message before
	// it is routed to the topic's dead-letter queue.
	DefaultMaxAttempts = 5

	retryCountHeader = "x-retry-count"
)

// HandlerFunc processes one consumed message body. Returning an error
// schedules a redelivery attempt; after the attempt budget is spent the
// message dead-letters instead of looping forever.
type HandlerFunc func(ctx context.Context, body []byte) error

type ConsumerConfig struct {
	Topic         Topic
	MaxAttempts   int
	PrefetchCount int
}

// Consumer runs a per-queue consume loop with manual acknowledgment:
// ack on handler success, bounded retry then dead-letter on failure.
type Consumer struct {
	channels ChannelProvider
	config   ConsumerConfig
	handler  HandlerFunc
	logger   *slog.Logger
}

func NewConsumer(channels ChannelProvider, config ConsumerConfig, handler HandlerFunc, logger *slog.Logger) *Consumer {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultMaxAttempts
	}
	return &Consumer{
		channels: channels,
		config:   config,
		handler:  handler,
		logger:   logger,
	}
}

// Start declares the topic and its dead-letter queue, then consumes
// until ctx is done. A closed delivery channel ends the loop with an
// error so the caller can decide whether to restart.
func (c *Consumer) Start(ctx context.Context) error {
	ch, err := c.channels.Channel()
	if err != nil {
		return err
	}

	topic := c.config.Topic
	if err := topic.Declare(ch); err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(topic.DeadLetterQueue(), true, false, false, false, nil); err != nil {
		return err
	}

	if c.config.PrefetchCount > 0 {
		if err := ch.Qos(c.config.PrefetchCount, 0, false); err != nil {
			return err
		}
	}

	deliveries, err := ch.Consume(topic.Queue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	c.logger.Info("Started consuming", slog.String("queue", topic.Queue))

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			c.handle(ctx, ch, d)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, ch Channel, d amqp.Delivery) {
	if err := c.handler(ctx, d.Body); err != nil {
		c.logger.Error("Error processing message",
			slog.String("queue", c.config.Topic.Queue),
			slog.Any("error", err),
		)
		retryOrDeadLetter(ctx, ch, c.config.Topic, d, c.config.MaxAttempts, c.logger)
		return
	}
	d.Ack(false)
}

// retryOrDeadLetter republishes a failed delivery to its own queue
// with an incremented retry-count header, or to the dead-letter queue
// once the attempt budget is spent. The original delivery is acked in
// both cases; republishing instead of nack+requeue is what lets the
// attempt count travel with the message.
func retryOrDeadLetter(ctx context.Context, ch Channel, topic Topic, d amqp.Delivery, maxAttempts int, logger *slog.Logger) {
	attempts := deliveryAttempts(d)

	if attempts+1 >= maxAttempts {
		if _, err := ch.QueueDeclare(topic.DeadLetterQueue(), true, false, false, false, nil); err != nil {
			logger.Error("Failed to declare dead-letter queue", slog.Any("error", err))
			d.Nack(false, true)
			return
		}
		err := ch.PublishWithContext(ctx, "", topic.DeadLetterQueue(), false, false, amqp.Publishing{
			ContentType:   d.ContentType,
			Body:          d.Body,
			Headers:       d.Headers,
			CorrelationId: d.CorrelationId,
			ReplyTo:       d.ReplyTo,
			DeliveryMode:  amqp.Persistent,
		})
		if err != nil {
			logger.Error("Failed to dead-letter message", slog.Any("error", err))
			d.Nack(false, true)
			return
		}
		logger.Warn("Message dead-lettered",
			slog.String("queue", topic.Queue),
			slog.Int("attempts", attempts+1),
		)
		d.Ack(false)
		return
	}

	headers := amqp.Table{}
	for k, v := range d.Headers {
		headers[k] = v
	}
	headers[retryCountHeader] = int32(attempts + 1)

	err := ch.PublishWithContext(ctx, "", topic.Queue, false, false, amqp.Publishing{
		ContentType:   d.ContentType,
		Body:          d.Body,
		Headers:       headers,
		CorrelationId: d.CorrelationId,
		ReplyTo:       d.ReplyTo,
		DeliveryMode:  amqp.Persistent,
	})
	if err != nil {
		logger.Error("Failed to requeue message", slog.Any("error", err))
		d.Nack(false, true)
		return
	}
	d.Ack(false)
}

func deliveryAttempts(d amqp.Delivery) int {
	v, ok := d.Headers[retryCountHeader]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case int32:
		return int(n)
	case int64:
		return int(n)
	case int:
		return n
	default:
		return 0
	}
}
