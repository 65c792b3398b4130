package broker

import "fmt"

type ExchangeKind string

const (
	DirectExchange ExchangeKind = "direct"
	FanoutExchange ExchangeKind = "fanout"
)

// Topic describes one fixed route of the inter-service wire contract:
// an exchange, a queue, or both joined by a routing key. Declarations
// are durable and idempotent; every service that touches a topic
// declares it with these exact parameters before first use.
type Topic struct {
	Exchange   string
	Kind       ExchangeKind
	Queue      string
	RoutingKey string
}

// The routing table shared by all six services. Names are part of the
// wire contract and must not change independently per service.
var (
	// OTPBroadcast fans user OTP requests out to every bound queue.
	OTPBroadcast = Topic{Exchange: "user.request", Kind: FanoutExchange, Queue: "user_request_queue"}

	// PaymentMail carries payment confirmation/cancellation mail requests.
	PaymentMail = Topic{Exchange: "payment.request", Kind: DirectExchange, Queue: "payment_mail_queue", RoutingKey: "payment_confirmation"}

	// OrderMail carries order confirmation/cancellation mail requests.
	OrderMail = Topic{Exchange: "order.request", Kind: DirectExchange, Queue: "order_confirmation_queue", RoutingKey: "order.confirmation"}

	// LowStock notifies sellers about products running low.
	LowStock = Topic{Exchange: "product.request", Kind: DirectExchange, Queue: "product_queue", RoutingKey: "product_quantity_less"}

	// UserDetails is the user-details RPC request queue; replies go to
	// the caller's exclusive reply queue.
	UserDetails = Topic{Queue: "user.details.request"}

	// ProductDetails is the product-details RPC request queue.
	ProductDetails = Topic{Queue: "product_request_queue"}

	// PaymentStatus carries payment status transitions back to the
	// order service.
	PaymentStatus = Topic{Exchange: "payment_exchange", Kind: DirectExchange, Queue: "payment_order_queue", RoutingKey: "payment_status"}

	// PaymentInit asks the payment service to start a payment.
	PaymentInit = Topic{Queue: "order_request_queue"}

	// SellerAck tells sellers which of their products were ordered.
	SellerAck = Topic{Queue: "seller_request_queue"}
)

// Declare asserts the topic's exchange and/or queue and binds them
// when both are present. Re-declaring with identical parameters is a
// no-op on the broker; conflicting parameters surface as an error.
func (t Topic) Declare(ch Channel) error {
	if t.Exchange != "" {
		if err := ch.ExchangeDeclare(t.Exchange, string(t.Kind), true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare exchange %q: %w", t.Exchange, err)
		}
	}
	if t.Queue != "" {
		if _, err := ch.QueueDeclare(t.Queue, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare queue %q: %w", t.Queue, err)
		}
	}
	if t.Exchange != "" && t.Queue != "" {
		if err := ch.QueueBind(t.Queue, t.RoutingKey, t.Exchange, false, nil); err != nil {
			return fmt.Errorf("failed to bind queue %q to exchange %q: %w", t.Queue, t.Exchange, err)
		}
	}
	return nil
}

// DeadLetterQueue names the queue messages land on after exhausting
// their redelivery budget.
func (t Topic) DeadLetterQueue() string {
	return t.Queue + ".dlq"
}

// publishTarget resolves the exchange and routing key Publish should
// use. Queue-only topics publish through the default exchange, which
// routes directly to the queue of the same name.
func (t Topic) publishTarget() (exchange, key string) {
	if t.Exchange == "" {
		return "", t.Queue
	}
	return t.Exchange, t.RoutingKey
}
