package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

var (
	ErrNotConnected = errors.New("not connected to RabbitMQ")
	ErrClosed       = errors.New("connection is closed")
)

// Channel is the subset of RabbitMQ channel operations the messaging
// core uses. *amqp.Channel satisfies it and brokertest provides an
// in-memory implementation for tests.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Cancel(consumer string, noWait bool) error
	Qos(prefetchCount, prefetchSize int, global bool) error
	Close() error
}

// ChannelProvider hands out a usable channel, establishing the
// underlying connection if none exists yet. Every publisher, consumer
// and RPC client acquires its channel through this interface.
type ChannelProvider interface {
	Channel() (Channel, error)
}

// Connection owns the single connection/channel pair a service process
// uses for its whole lifetime. The channel is opened lazily on first
// use; if the broker drops the connection the cached channel is
// discarded and the next Channel call dials again.
type Connection struct {
	url    string
	logger *slog.Logger

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
	closed  bool
}

// NewConnection returns an unconnected Connection. No dialing happens
// until the first Channel call.
func NewConnection(url string, logger *slog.Logger) *Connection {
	return &Connection{url: url, logger: logger}
}

// Channel returns the process-wide channel, connecting to the broker
// first when necessary. Calling it while a channel is already open is
// a no-op.
func (c *Connection) Channel() (Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	if c.channel != nil {
		return c.channel, nil
	}

	conn, err := amqp.Dial(c.url)
	if err != nil {
		c.logger.Error("Failed to connect to RabbitMQ", slog.Any("error", err))
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		c.logger.Error("Failed to open channel", slog.Any("error", err))
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	c.conn = conn
	c.channel = ch
	go c.watch(conn)

	c.logger.Info("Connected to RabbitMQ")
	return ch, nil
}

// watch drops the cached connection once the broker closes it so the
// next Channel call redials. There is no background reconnect loop.
func (c *Connection) watch(conn *amqp.Connection) {
	err := <-conn.NotifyClose(make(chan *amqp.Error))
	if err != nil {
		c.logger.Error("RabbitMQ connection closed", slog.Any("error", err))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == conn {
		c.conn = nil
		c.channel = nil
	}
}

// Close tears down the channel and then the connection. The Connection
// is unusable afterwards.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}
