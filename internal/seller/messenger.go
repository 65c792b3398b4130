package seller

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shopxindia/intermessage/internal/broker"
	"github.com/shopxindia/intermessage/internal/messages"
)

// Orders is the seller-side persistence collaborator; each ack links
// an order to the seller who must fulfil part of it.
type Orders interface {
	RecordOrder(ctx context.Context, ack messages.SellerOrderAck) error
}

// Messenger consumes order acknowledgments from seller_request_queue.
type Messenger struct {
	channels broker.ChannelProvider
	orders   Orders
	logger   *slog.Logger
}

func NewMessenger(channels broker.ChannelProvider, orders Orders, logger *slog.Logger) *Messenger {
	return &Messenger{channels: channels, orders: orders, logger: logger}
}

// Run consumes seller acks until ctx is done. One message carries the
// acks for every seller involved in an order.
func (m *Messenger) Run(ctx context.Context) error {
	consumer := broker.NewConsumer(m.channels, broker.ConsumerConfig{Topic: broker.SellerAck}, m.handleAcks, m.logger)
	return consumer.Start(ctx)
}

func (m *Messenger) handleAcks(ctx context.Context, body []byte) error {
	var acks []messages.SellerOrderAck
	if err := json.Unmarshal(body, &acks); err != nil {
		return fmt.Errorf("bad seller ack payload: %w", err)
	}

	for _, ack := range acks {
		if err := m.orders.RecordOrder(ctx, ack); err != nil {
			return err
		}
		m.logger.Info("Recorded seller order",
			slog.String("seller_id", ack.SellerID),
			slog.String("order_id", ack.OrderID),
		)
	}
	return nil
}

// MemoryOrders records acks in process, for the service binary when
// no database is wired in and for tests.
type MemoryOrders struct {
	mu   sync.Mutex
	acks []messages.SellerOrderAck
}

func NewMemoryOrders() *MemoryOrders {
	return &MemoryOrders{}
}

func (o *MemoryOrders) RecordOrder(ctx context.Context, ack messages.SellerOrderAck) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.acks = append(o.acks, ack)
	return nil
}

func (o *MemoryOrders) Recorded() []messages.SellerOrderAck {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]messages.SellerOrderAck(nil), o.acks...)
}
