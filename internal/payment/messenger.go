package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/shopxindia/intermessage/internal/broker"
	"github.com/shopxindia/intermessage/internal/messages"
)

// Messenger is the payment service's side of the protocol: it
// consumes payment initiations from the order service and publishes
// status transitions and mail requests.
type Messenger struct {
	channels broker.ChannelProvider
	pub      *broker.Publisher
	qr       *QRService
	logger   *slog.Logger
}

func NewMessenger(channels broker.ChannelProvider, pub *broker.Publisher, qr *QRService, logger *slog.Logger) *Messenger {
	return &Messenger{channels: channels, pub: pub, qr: qr, logger: logger}
}

// Run consumes order_request_queue until ctx is done. Each initiation
// creates a PENDING payment and reports it back to the order service.
func (m *Messenger) Run(ctx context.Context) error {
	consumer := broker.NewConsumer(m.channels, broker.ConsumerConfig{Topic: broker.PaymentInit}, m.handleInitiation, m.logger)
	return consumer.Start(ctx)
}

func (m *Messenger) handleInitiation(ctx context.Context, body []byte) error {
	var init messages.PaymentInitiation
	if err := json.Unmarshal(body, &init); err != nil {
		return fmt.Errorf("bad payment initiation payload: %w", err)
	}

	rec, err := m.qr.InitiatePayment(ctx, init)
	if err != nil {
		return err
	}

	return m.PublishPaymentStatus(ctx, messages.PaymentResponse{
		Type: messages.PaymentPending,
		Data: messages.Payment{
			PaymentID:     rec.PaymentID,
			OrderID:       rec.OrderID,
			PaymentStatus: messages.PaymentPending,
		},
	})
}

// PublishPaymentStatus reports a status transition to the order
// service over payment_exchange.
func (m *Messenger) PublishPaymentStatus(ctx context.Context, resp messages.PaymentResponse) error {
	if err := m.pub.Publish(ctx, broker.PaymentStatus, resp); err != nil {
		return fmt.Errorf("failed to publish payment status: %w", err)
	}
	m.logger.Info("Payment status sent",
		slog.String("order_id", resp.Data.OrderID),
		slog.String("status", string(resp.Type)),
	)
	return nil
}

// RequestPaymentConfirmationMail asks the notification service to
// mail the user about the payment.
func (m *Messenger) RequestPaymentConfirmationMail(ctx context.Context, req messages.PaymentMailRequest) error {
	if err := m.pub.Publish(ctx, broker.PaymentMail, req); err != nil {
		return fmt.Errorf("failed to request payment mail: %w", err)
	}
	return nil
}
