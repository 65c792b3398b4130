package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

var (
	ErrRequestTimeout = errors.New("request timed out")
	ErrTooManyPending = errors.New("too many pending requests")
	ErrBadReply       = errors.New("could not parse reply")
)

const (
	// replyQueueTTL bounds broker-side retention of replies nobody
	// collects: the exclusive reply queue drops messages after 30s.
	replyQueueTTL = 30 * time.Second

	defaultRequestTimeout = 30 * time.Second
	defaultMaxPending     = 1024
)

// RPC turns an asynchronous publish/consume pair into an awaitable
// call. Each request gets its own exclusive broker-named reply queue
// and a fresh correlation id, so concurrent requests from the same
// process never interfere.
//
// Outstanding requests are tracked in a bounded map keyed by
// correlation id; entries are removed when the call resolves, fails or
// times out, so a dropped reply can never leak a pending slot.
type RPC struct {
	channels   ChannelProvider
	logger     *slog.Logger
	timeout    time.Duration
	maxPending int

	mu      sync.Mutex
	pending map[string]struct{} // correlation ids awaiting replies
}

// NewRPC creates a request/reply client. A non-positive timeout falls
// back to the 30 second default, mirroring the reply queue TTL.
func NewRPC(channels ChannelProvider, timeout time.Duration, logger *slog.Logger) *RPC {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &RPC{
		channels:   channels,
		logger:     logger,
		timeout:    timeout,
		maxPending: defaultMaxPending,
		pending:    make(map[string]struct{}),
	}
}

// Pending reports the number of requests currently awaiting replies.
func (c *RPC) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *RPC) register(correlationID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.pending) >= c.maxPending {
		return ErrTooManyPending
	}
	c.pending[correlationID] = struct{}{}
	return nil
}

func (c *RPC) unregister(correlationID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, correlationID)
}

// Request publishes payload to the target queue with a replyTo and
// correlation id, then blocks until the matching reply arrives, the
// context is done, or the timeout elapses. The reply body is
// unmarshalled into reply; an unparseable reply is still acknowledged
// so the broker never redelivers it, and ErrBadReply is returned.
//
// Deliveries carrying a foreign correlation id are ignored and left
// unacknowledged; the reply queue's TTL clears them eventually.
func (c *RPC) Request(ctx context.Context, queue string, payload, reply any) error {
	ch, err := c.channels.Channel()
	if err != nil {
		return err
	}

	replyQueue, err := ch.QueueDeclare("", false, false, true, false, amqp.Table{
		"x-message-ttl": int32(replyQueueTTL / time.Millisecond),
	})
	if err != nil {
		return fmt.Errorf("failed to declare reply queue: %w", err)
	}

	correlationID := uuid.New().String()
	if err := c.register(correlationID); err != nil {
		return err
	}
	defer c.unregister(correlationID)

	// The correlation id doubles as the consumer tag so the reply
	// consumer can be cancelled when this call resolves or times out.
	// Without the cancel every request would leave a consumer behind
	// for the lifetime of the shared channel.
	deliveries, err := ch.Consume(replyQueue.Name, correlationID, false, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to consume reply queue %q: %w", replyQueue.Name, err)
	}
	defer ch.Cancel(correlationID, false)

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	err = ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:   "application/json",
		Body:          body,
		CorrelationId: correlationID,
		ReplyTo:       replyQueue.Name,
		DeliveryMode:  amqp.Persistent,
	})
	if err != nil {
		return fmt.Errorf("failed to publish request to %q: %w", queue, err)
	}

	c.logger.Info("Request sent",
		slog.String("queue", queue),
		slog.String("correlation_id", correlationID),
		slog.String("reply_queue", replyQueue.Name),
	)

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return fmt.Errorf("%w: no reply from %q after %s", ErrRequestTimeout, queue, c.timeout)
		case d, ok := <-deliveries:
			if !ok {
				return ErrNotConnected
			}
			if d.CorrelationId != correlationID {
				// Stray message on an exclusive single-shot queue.
				// Should not happen; keep waiting for the real reply.
				c.logger.Warn("Ignoring reply with foreign correlation id",
					slog.String("expected", correlationID),
					slog.String("got", d.CorrelationId),
				)
				continue
			}

			d.Ack(false)
			if err := json.Unmarshal(d.Body, reply); err != nil {
				return fmt.Errorf("%w: %v", ErrBadReply, err)
			}
			return nil
		}
	}
}

// ServeHandler produces the reply for one RPC request body.
type ServeHandler func(ctx context.Context, body []byte) (any, error)

// Serve answers requests on the given queue until ctx is done. Each
// reply is published to the request's replyTo queue with the request's
// correlation id. Failing requests follow the bounded-retry path and
// dead-letter after MaxAttempts.
func (c *RPC) Serve(ctx context.Context, topic Topic, handler ServeHandler) error {
	ch, err := c.channels.Channel()
	if err != nil {
		return err
	}

	if err := topic.Declare(ch); err != nil {
		return err
	}

	deliveries, err := ch.Consume(topic.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to consume queue %q: %w", topic.Queue, err)
	}

	c.logger.Info("Serving requests", slog.String("queue", topic.Queue))

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			c.serveOne(ctx, ch, topic, handler, d)
		}
	}
}

func (c *RPC) serveOne(ctx context.Context, ch Channel, topic Topic, handler ServeHandler, d amqp.Delivery) {
	response, err := handler(ctx, d.Body)
	if err != nil {
		c.logger.Error("Error handling request",
			slog.String("queue", topic.Queue),
			slog.Any("error", err),
		)
		retryOrDeadLetter(ctx, ch, topic, d, DefaultMaxAttempts, c.logger)
		return
	}

	body, err := json.Marshal(response)
	if err != nil {
		c.logger.Error("Failed to marshal reply", slog.Any("error", err))
		retryOrDeadLetter(ctx, ch, topic, d, DefaultMaxAttempts, c.logger)
		return
	}

	err = ch.PublishWithContext(ctx, "", d.ReplyTo, false, false, amqp.Publishing{
		ContentType:   "application/json",
		Body:          body,
		CorrelationId: d.CorrelationId,
		DeliveryMode:  amqp.Persistent,
	})
	if err != nil {
		c.logger.Error("Failed to publish reply",
			slog.String("reply_queue", d.ReplyTo),
			slog.Any("error", err),
		)
		d.Nack(false, true)
		return
	}

	d.Ack(false)
}
