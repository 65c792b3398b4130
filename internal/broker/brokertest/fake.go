// Package brokertest provides an in-memory stand-in for a RabbitMQ
// channel. It implements broker.Channel and broker.ChannelProvider with
// real routing semantics (direct and fanout exchanges, queue bindings,
// manual acknowledgment, redelivery on nack) so the messaging core and
// the service messengers can be exercised without a broker.
package brokertest

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shopxindia/intermessage/internal/broker"
)

type binding struct {
	queue string
	key   string
}

type exchange struct {
	kind     string
	bindings []binding
}

type message struct {
	pub         amqp.Publishing
	exchange    string
	routingKey  string
	redelivered bool
}

type consumer struct {
	tag string
	ch  chan amqp.Delivery
}

type queue struct {
	name      string
	durable   bool
	exclusive bool
	backlog   []message
	consumers []consumer
	next      int
	acked     int
	dropped   int
}

type inflight struct {
	q   *queue
	msg message
}

// Broker is the in-memory broker. It doubles as the channel: every
// Channel() call returns the broker itself.
type Broker struct {
	mu        sync.Mutex
	exchanges map[string]*exchange
	queues    map[string]*queue
	inflights map[uint64]inflight
	tagSeq    uint64
	nameSeq   int
	ctagSeq   int
	closed    bool
}

func New() *Broker {
	return &Broker{
		exchanges: make(map[string]*exchange),
		queues:    make(map[string]*queue),
		inflights: make(map[uint64]inflight),
	}
}

// Channel implements broker.ChannelProvider.
func (b *Broker) Channel() (broker.Channel, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, broker.ErrClosed
	}
	return b, nil
}

func (b *Broker) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ex, ok := b.exchanges[name]; ok {
		if ex.kind != kind {
			return fmt.Errorf("PRECONDITION_FAILED: exchange %q redeclared as %q, was %q", name, kind, ex.kind)
		}
		return nil
	}
	b.exchanges[name] = &exchange{kind: kind}
	return nil
}

func (b *Broker) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if name == "" {
		b.nameSeq++
		name = fmt.Sprintf("amq.gen-%d", b.nameSeq)
	}

	if q, ok := b.queues[name]; ok {
		if q.durable != durable || q.exclusive != exclusive {
			return amqp.Queue{}, fmt.Errorf("PRECONDITION_FAILED: queue %q redeclared with conflicting parameters", name)
		}
		return amqp.Queue{Name: name, Messages: len(q.backlog)}, nil
	}

	b.queues[name] = &queue{name: name, durable: durable, exclusive: exclusive}
	return amqp.Queue{Name: name}, nil
}

func (b *Broker) QueueBind(name, key, exch string, noWait bool, args amqp.Table) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	ex, ok := b.exchanges[exch]
	if !ok {
		return fmt.Errorf("NOT_FOUND: no exchange %q", exch)
	}
	if _, ok := b.queues[name]; !ok {
		return fmt.Errorf("NOT_FOUND: no queue %q", name)
	}
	for _, bd := range ex.bindings {
		if bd.queue == name && bd.key == key {
			return nil
		}
	}
	ex.bindings = append(ex.bindings, binding{queue: name, key: key})
	return nil
}

func (b *Broker) PublishWithContext(ctx context.Context, exch, key string, mandatory, immediate bool, pub amqp.Publishing) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	msg := message{pub: pub, exchange: exch, routingKey: key}

	if exch == "" {
		// Default exchange: route straight to the queue named by the
		// routing key. Publishing to an absent queue silently drops,
		// as the broker would for an unroutable non-mandatory message.
		if q, ok := b.queues[key]; ok {
			b.deliverLocked(q, msg)
		}
		return nil
	}

	ex, ok := b.exchanges[exch]
	if !ok {
		return fmt.Errorf("NOT_FOUND: no exchange %q", exch)
	}
	for _, bd := range ex.bindings {
		if ex.kind == string(broker.FanoutExchange) || bd.key == key {
			if q, ok := b.queues[bd.queue]; ok {
				b.deliverLocked(q, msg)
			}
		}
	}
	return nil
}

func (b *Broker) Consume(name, tag string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	q, ok := b.queues[name]
	if !ok {
		return nil, fmt.Errorf("NOT_FOUND: no queue %q", name)
	}

	if tag == "" {
		b.ctagSeq++
		tag = fmt.Sprintf("ctag-%d", b.ctagSeq)
	}

	ch := make(chan amqp.Delivery, 1024)
	q.consumers = append(q.consumers, consumer{tag: tag, ch: ch})

	backlog := q.backlog
	q.backlog = nil
	for _, msg := range backlog {
		b.deliverLocked(q, msg)
	}
	return ch, nil
}

// Cancel removes the consumer with the given tag and closes its
// delivery channel. Undelivered messages stay on the queue for the
// next consumer. Unknown tags are a no-op, as on the broker.
func (b *Broker) Cancel(tag string, noWait bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, q := range b.queues {
		for i, c := range q.consumers {
			if c.tag != tag {
				continue
			}
			q.consumers = append(q.consumers[:i], q.consumers[i+1:]...)
			close(c.ch)
			return nil
		}
	}
	return nil
}

func (b *Broker) Qos(prefetchCount, prefetchSize int, global bool) error {
	return nil
}

// Close marks the broker closed and closes every consumer channel, as
// a dropped connection would.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for _, q := range b.queues {
		for _, c := range q.consumers {
			close(c.ch)
		}
		q.consumers = nil
	}
	return nil
}

// deliverLocked hands the message to the next consumer round-robin, or
// parks it on the backlog when nobody is consuming.
func (b *Broker) deliverLocked(q *queue, msg message) {
	if len(q.consumers) == 0 {
		q.backlog = append(q.backlog, msg)
		return
	}

	b.tagSeq++
	tag := b.tagSeq
	b.inflights[tag] = inflight{q: q, msg: msg}

	d := amqp.Delivery{
		Acknowledger:  &acker{b: b},
		DeliveryTag:   tag,
		Redelivered:   msg.redelivered,
		Exchange:      msg.exchange,
		RoutingKey:    msg.routingKey,
		ContentType:   msg.pub.ContentType,
		CorrelationId: msg.pub.CorrelationId,
		ReplyTo:       msg.pub.ReplyTo,
		MessageId:     msg.pub.MessageId,
		Timestamp:     msg.pub.Timestamp,
		Headers:       msg.pub.Headers,
		Body:          msg.pub.Body,
	}

	c := q.consumers[q.next%len(q.consumers)]
	q.next++
	c.ch <- d
}

type acker struct {
	b *Broker
}

func (a *acker) Ack(tag uint64, multiple bool) error {
	a.b.mu.Lock()
	defer a.b.mu.Unlock()
	inf, ok := a.b.inflights[tag]
	if !ok {
		return fmt.Errorf("unknown delivery tag %d", tag)
	}
	delete(a.b.inflights, tag)
	inf.q.acked++
	return nil
}

func (a *acker) Nack(tag uint64, multiple, requeue bool) error {
	a.b.mu.Lock()
	defer a.b.mu.Unlock()
	inf, ok := a.b.inflights[tag]
	if !ok {
		return fmt.Errorf("unknown delivery tag %d", tag)
	}
	delete(a.b.inflights, tag)
	if !requeue {
		inf.q.dropped++
		return nil
	}
	inf.msg.redelivered = true
	a.b.deliverLocked(inf.q, inf.msg)
	return nil
}

func (a *acker) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

// Test inspection helpers.

// Backlog reports how many undelivered messages sit on the queue.
func (b *Broker) Backlog(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if q, ok := b.queues[name]; ok {
		return len(q.backlog)
	}
	return 0
}

// BacklogBodies returns the bodies parked on the queue, in order.
func (b *Broker) BacklogBodies(name string) [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.queues[name]
	if !ok {
		return nil
	}
	bodies := make([][]byte, len(q.backlog))
	for i, msg := range q.backlog {
		bodies[i] = msg.pub.Body
	}
	return bodies
}

// Acked reports how many deliveries from the queue were acknowledged.
func (b *Broker) Acked(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if q, ok := b.queues[name]; ok {
		return q.acked
	}
	return 0
}

// HasQueue reports whether the queue has been declared.
func (b *Broker) HasQueue(name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.queues[name]
	return ok
}

// BindingCount reports how many queues are bound to the exchange.
func (b *Broker) BindingCount(exch string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ex, ok := b.exchanges[exch]; ok {
		return len(ex.bindings)
	}
	return 0
}
