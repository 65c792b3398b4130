package order

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/shopxindia/intermessage/internal/broker"
	"github.com/shopxindia/intermessage/internal/messages"
)

// Messenger is the order service's side of the inter-service
// protocol: product-details RPC, payment initiation, mail and seller
// ack publication, and the payment status consumer.
type Messenger struct {
	channels broker.ChannelProvider
	rpc      *broker.RPC
	pub      *broker.Publisher
	store    Store
	logger   *slog.Logger

	// OrderLink is embedded in confirmation mails so users can find
	// their order.
	OrderLink string
}

func NewMessenger(channels broker.ChannelProvider, rpc *broker.RPC, pub *broker.Publisher, store Store, orderLink string, logger *slog.Logger) *Messenger {
	return &Messenger{
		channels:  channels,
		rpc:       rpc,
		pub:       pub,
		store:     store,
		logger:    logger,
		OrderLink: orderLink,
	}
}

// RequestProductDetails resolves product records from the product
// service over the product_request_queue RPC.
func (m *Messenger) RequestProductDetails(ctx context.Context, productIDs []string) ([]messages.Product, error) {
	var products []messages.Product
	req := messages.ProductDetailsRequest{ProductIDs: productIDs}

	if err := m.rpc.Request(ctx, broker.ProductDetails.Queue, req, &products); err != nil {
		return nil, fmt.Errorf("product details request failed: %w", err)
	}

	m.logger.Info("Received product details", slog.Int("count", len(products)))
	return products, nil
}

// RequestPaymentInitiation asks the payment service to start a payment
// for the order. Fire-and-forget.
func (m *Messenger) RequestPaymentInitiation(ctx context.Context, init messages.PaymentInitiation) error {
	if err := m.pub.Publish(ctx, broker.PaymentInit, init); err != nil {
		return fmt.Errorf("failed to request payment initiation: %w", err)
	}
	m.logger.Info("Payment initiation requested", slog.String("order_id", init.OrderID))
	return nil
}

// RequestOrderConfirmationMail publishes an order mail request for the
// notification service.
func (m *Messenger) RequestOrderConfirmationMail(ctx context.Context, req messages.OrderRequest) error {
	if err := m.pub.Publish(ctx, broker.OrderMail, req); err != nil {
		return fmt.Errorf("failed to request order mail: %w", err)
	}
	return nil
}

// RequestSellerAck tells each seller involved in the order that one of
// their products was bought.
func (m *Messenger) RequestSellerAck(ctx context.Context, orderID string) error {
	o, err := m.store.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}

	acks := make([]messages.SellerOrderAck, len(o.Lines))
	for i, l := range o.Lines {
		acks[i] = messages.SellerOrderAck{SellerID: l.SellerID, OrderID: orderID}
	}

	if err := m.pub.Publish(ctx, broker.SellerAck, acks); err != nil {
		return fmt.Errorf("failed to send seller ack: %w", err)
	}
	m.logger.Info("Seller ack sent", slog.String("order_id", orderID))
	return nil
}

// Run consumes payment status transitions from the payment service
// until ctx is done. A SUCCESS status also triggers the confirmation
// mail and the seller acks; PENDING and FAILED only update the stored
// status.
func (m *Messenger) Run(ctx context.Context) error {
	consumer := broker.NewConsumer(m.channels, broker.ConsumerConfig{Topic: broker.PaymentStatus}, m.handlePaymentStatus, m.logger)
	return consumer.Start(ctx)
}

func (m *Messenger) handlePaymentStatus(ctx context.Context, body []byte) error {
	var resp messages.PaymentResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("bad payment status payload: %w", err)
	}

	m.logger.Info("Received payment status",
		slog.String("order_id", resp.Data.OrderID),
		slog.String("status", string(resp.Type)),
	)

	if err := m.store.UpdatePaymentStatus(ctx, resp.Data); err != nil {
		return err
	}

	if resp.Type != messages.PaymentSuccess {
		return nil
	}

	o, err := m.store.GetOrder(ctx, resp.Data.OrderID)
	if err != nil {
		return err
	}

	mail := messages.OrderRequest{
		Type: messages.OrderConfirmation,
		ConfirmationData: &messages.OrderConfirmationData{
			UserID:      o.UserID,
			OrderID:     o.OrderID,
			OrderDate:   o.CreatedAt,
			OrderItems:  o.MailItems(),
			TotalAmount: o.TotalAmount,
			OrderLink:   m.OrderLink,
		},
	}
	if err := m.RequestOrderConfirmationMail(ctx, mail); err != nil {
		return err
	}

	return m.RequestSellerAck(ctx, o.OrderID)
}
