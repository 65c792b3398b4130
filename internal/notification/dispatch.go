package notification

import (
	"context"
	"log/slog"

	"github.com/shopxindia/intermessage/internal/messages"
)

// Dispatch delivers the actual notifications. The production platform
// renders templates and sends mail/SMS through its providers; the
// messaging core only decides which of these to call and with what.
type Dispatch interface {
	SendOTP(ctx context.Context, req messages.OTPRequest) error
	SendOrderConfirmationMail(ctx context.Context, data messages.OrderConfirmationData, user messages.UserDetails) error
	SendOrderCancellationMail(ctx context.Context, data messages.OrderCancellationData, user messages.UserDetails) error
	SendPaymentConfirmationMail(ctx context.Context, req messages.PaymentMailRequest, user messages.UserDetails) error
	SendPaymentCancellationMail(ctx context.Context, req messages.PaymentMailRequest, user messages.UserDetails) error
	SendLowStockMail(ctx context.Context, notice messages.LowStockNotice) error
}

// LogDispatch writes every notification to the log instead of sending
// it, for running the service without mail/SMS providers.
type LogDispatch struct {
	logger *slog.Logger
}

func NewLogDispatch(logger *slog.Logger) *LogDispatch {
	return &LogDispatch{logger: logger}
}

func (d *LogDispatch) SendOTP(ctx context.Context, req messages.OTPRequest) error {
	d.logger.Info("OTP notification",
		slog.String("user_id", req.UserID),
		slog.String("email", req.Email),
		slog.String("phone", req.PhoneNo),
	)
	return nil
}

func (d *LogDispatch) SendOrderConfirmationMail(ctx context.Context, data messages.OrderConfirmationData, user messages.UserDetails) error {
	d.logger.Info("Order confirmation mail",
		slog.String("order_id", data.OrderID),
		slog.String("email", user.Email),
	)
	return nil
}

func (d *LogDispatch) SendOrderCancellationMail(ctx context.Context, data messages.OrderCancellationData, user messages.UserDetails) error {
	d.logger.Info("Order cancellation mail",
		slog.String("order_id", data.OrderID),
		slog.String("email", user.Email),
	)
	return nil
}

func (d *LogDispatch) SendPaymentConfirmationMail(ctx context.Context, req messages.PaymentMailRequest, user messages.UserDetails) error {
	d.logger.Info("Payment confirmation mail",
		slog.String("order_id", req.OrderID),
		slog.String("email", user.Email),
	)
	return nil
}

func (d *LogDispatch) SendPaymentCancellationMail(ctx context.Context, req messages.PaymentMailRequest, user messages.UserDetails) error {
	d.logger.Info("Payment cancellation mail",
		slog.String("order_id", req.OrderID),
		slog.String("email", user.Email),
	)
	return nil
}

func (d *LogDispatch) SendLowStockMail(ctx context.Context, notice messages.LowStockNotice) error {
	d.logger.Info("Low stock mail",
		slog.String("seller", notice.SellerName),
		slog.String("email", notice.Email),
	)
	return nil
}
