package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopxindia/intermessage/internal/broker"
	"github.com/shopxindia/intermessage/internal/messages"
)

// Messenger is the notification service's side of the protocol. It
// consumes the four notification workflows (OTP broadcast, payment
// mail, order mail, low-stock notice) and resolves user contact
// details over the user-details RPC before sending mails.
type Messenger struct {
	channels broker.ChannelProvider
	rpc      *broker.RPC
	dispatch Dispatch
	logger   *slog.Logger
}

func NewMessenger(channels broker.ChannelProvider, rpc *broker.RPC, dispatch Dispatch, logger *slog.Logger) *Messenger {
	return &Messenger{
		channels: channels,
		rpc:      rpc,
		dispatch: dispatch,
		logger:   logger,
	}
}

// RequestUserDetails fetches a user's contact details from the user
// service over the user.details.request RPC.
func (m *Messenger) RequestUserDetails(ctx context.Context, userID string) (messages.UserDetails, error) {
	var details messages.UserDetails
	req := messages.UserDetailsRequest{UserID: userID}

	if err := m.rpc.Request(ctx, broker.UserDetails.Queue, req, &details); err != nil {
		return messages.UserDetails{}, fmt.Errorf("user details request failed: %w", err)
	}
	return details, nil
}

// Run starts all four consumers and blocks until ctx is done or one of
// them fails.
func (m *Messenger) Run(ctx context.Context) error {
	consumers := []*broker.Consumer{
		broker.NewConsumer(m.channels, broker.ConsumerConfig{Topic: broker.OTPBroadcast}, m.handleOTP, m.logger),
		broker.NewConsumer(m.channels, broker.ConsumerConfig{Topic: broker.PaymentMail}, m.handlePaymentMail, m.logger),
		broker.NewConsumer(m.channels, broker.ConsumerConfig{Topic: broker.OrderMail}, m.handleOrderMail, m.logger),
		broker.NewConsumer(m.channels, broker.ConsumerConfig{Topic: broker.LowStock}, m.handleLowStock, m.logger),
	}

	errCh := make(chan error, len(consumers))
	for _, c := range consumers {
		go func(c *broker.Consumer) {
			errCh <- c.Start(ctx)
		}(c)
	}

	for range consumers {
		if err := <-errCh; err != nil {
			return err
		}
	}
	return nil
}

func (m *Messenger) handleOTP(ctx context.Context, body []byte) error {
	var req messages.OTPRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return fmt.Errorf("bad OTP payload: %w", err)
	}

	m.logger.Info("Sending OTP notification", slog.String("user_id", req.UserID))
	return m.dispatch.SendOTP(ctx, req)
}

func (m *Messenger) handlePaymentMail(ctx context.Context, body []byte) error {
	var req messages.PaymentMailRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return fmt.Errorf("bad payment mail payload: %w", err)
	}

	user, err := m.RequestUserDetails(ctx, req.UserID)
	if err != nil {
		return err
	}

	switch req.Type {
	case messages.PaymentMailCancellation:
		return m.dispatch.SendPaymentCancellationMail(ctx, req, user)
	case messages.PaymentMailConfirmation:
		return m.dispatch.SendPaymentConfirmationMail(ctx, req, user)
	default:
		return fmt.Errorf("unknown payment mail type %q", req.Type)
	}
}

func (m *Messenger) handleOrderMail(ctx context.Context, body []byte) error {
	var req messages.OrderRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return fmt.Errorf("bad order mail payload: %w", err)
	}

	switch req.Type {
	case messages.OrderCancellation:
		if req.CancellationData == nil {
			return errors.New("cancellation mail without cancellation data")
		}
		user, err := m.RequestUserDetails(ctx, req.CancellationData.UserID)
		if err != nil {
			return err
		}
		return m.dispatch.SendOrderCancellationMail(ctx, *req.CancellationData, user)
	case messages.OrderConfirmation:
		if req.ConfirmationData == nil {
			return errors.New("confirmation mail without confirmation data")
		}
		user, err := m.RequestUserDetails(ctx, req.ConfirmationData.UserID)
		if err != nil {
			return err
		}
		return m.dispatch.SendOrderConfirmationMail(ctx, *req.ConfirmationData, user)
	default:
		return fmt.Errorf("unknown order mail type %q", req.Type)
	}
}

func (m *Messenger) handleLowStock(ctx context.Context, body []byte) error {
	var notice messages.LowStockNotice
	if err := json.Unmarshal(body, &notice); err != nil {
		return fmt.Errorf("bad low stock payload: %w", err)
	}

	m.logger.Info("Sending low stock notification", slog.String("seller", notice.SellerName))
	return m.dispatch.SendLowStockMail(ctx, notice)
}
