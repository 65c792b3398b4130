package payment

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/shopxindia/intermessage/internal/messages"
)

// QRCodeData is a generated one time payment code together with its
// QR rendering, handed to the user out of band.
type QRCodeData struct {
	QRString string
	Code     string
}

// ValidationResult is the outcome of a code validation attempt.
type ValidationResult struct {
	Status  messages.PaymentStatus
	Message string
}

// MailLinks are the outward facing links embedded in payment mails.
type MailLinks struct {
	Receipt string
	Retry   string
	Support string
}

// QRService initiates payments (generate a code, store it with a TTL,
// persist the payment PENDING) and validates submitted codes, driving
// the SUCCESS/FAILED status publication back to the order service.
type QRService struct {
	store   Store
	codes   CodeStore
	codeTTL time.Duration
	links   MailLinks
	logger  *slog.Logger

	messenger *Messenger
}

func NewQRService(store Store, codes CodeStore, codeTTL time.Duration, links MailLinks, logger *slog.Logger) *QRService {
	if codeTTL <= 0 {
		codeTTL = 50 * time.Minute
	}
	return &QRService{
		store:   store,
		codes:   codes,
		codeTTL: codeTTL,
		links:   links,
		logger:  logger,
	}
}

// SetMessenger wires in the messenger after both sides exist; the
// messenger consumes payment initiations and the QR service publishes
// statuses through it.
func (s *QRService) SetMessenger(m *Messenger) {
	s.messenger = m
}

// GenerateQRCode produces a six digit code and its QR image as a data
// URL, and stores the code with the configured expiry.
func (s *QRService) GenerateQRCode(ctx context.Context) (QRCodeData, error) {
	code := fmt.Sprintf("%06d", rand.IntN(1000000))

	png, err := qrcode.Encode(code, qrcode.High, 256)
	if err != nil {
		return QRCodeData{}, fmt.Errorf("failed to generate QR code: %w", err)
	}

	if err := s.codes.Put(ctx, code, s.codeTTL); err != nil {
		return QRCodeData{}, err
	}

	return QRCodeData{
		QRString: "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
		Code:     code,
	}, nil
}

// InitiatePayment creates a PENDING payment for an incoming order.
func (s *QRService) InitiatePayment(ctx context.Context, init messages.PaymentInitiation) (Record, error) {
	qr, err := s.GenerateQRCode(ctx)
	if err != nil {
		return Record{}, err
	}

	rec := Record{
		PaymentID: uuid.New().String(),
		OrderID:   init.OrderID,
		UserID:    init.UserID,
		Amount:    init.TotalAmount,
		QRString:  qr.QRString,
		Status:    messages.PaymentPending,
		CreatedAt: time.Now(),
	}
	if err := s.store.CreatePayment(ctx, rec); err != nil {
		return Record{}, fmt.Errorf("failed to persist payment: %w", err)
	}

	s.logger.Info("Payment initiated",
		slog.String("payment_id", rec.PaymentID),
		slog.String("order_id", rec.OrderID),
	)
	return rec, nil
}

// ValidatePayment checks a submitted code against the code store. A
// valid code completes the payment and publishes SUCCESS plus the
// confirmation mail request; a missing or expired code reports FAILED
// without touching the payment.
func (s *QRService) ValidatePayment(ctx context.Context, orderID, code string) (ValidationResult, error) {
	rec, err := s.store.PaymentByOrder(ctx, orderID)
	if err != nil {
		return ValidationResult{}, fmt.Errorf("invalid payment validation request: %w", err)
	}

	ok, err := s.codes.Take(ctx, code)
	if err != nil {
		if failErr := s.store.FailPayment(ctx, rec.PaymentID); failErr != nil {
			s.logger.Error("Failed to mark payment failed", slog.Any("error", failErr))
		}
		s.publishStatus(ctx, rec, messages.PaymentFailed)
		return ValidationResult{}, err
	}
	if !ok {
		return ValidationResult{
			Status:  messages.PaymentFailed,
			Message: "Code not found, expired or already used",
		}, nil
	}

	if err := s.store.CompletePayment(ctx, rec.PaymentID); err != nil {
		s.publishStatus(ctx, rec, messages.PaymentFailed)
		return ValidationResult{}, fmt.Errorf("failed to complete payment: %w", err)
	}

	s.publishStatus(ctx, rec, messages.PaymentSuccess)

	mail := messages.PaymentMailRequest{
		Type:             messages.PaymentMailConfirmation,
		OrderID:          rec.OrderID,
		UserID:           rec.UserID,
		Amount:           rec.Amount,
		ReceiptLink:      s.links.Receipt,
		RetryPaymentLink: s.links.Retry,
		SupportLink:      s.links.Support,
	}
	if err := s.messenger.RequestPaymentConfirmationMail(ctx, mail); err != nil {
		s.logger.Error("Failed to request confirmation mail", slog.Any("error", err))
	}

	return ValidationResult{Status: messages.PaymentSuccess, Message: "Code is valid"}, nil
}

func (s *QRService) publishStatus(ctx context.Context, rec Record, status messages.PaymentStatus) {
	resp := messages.PaymentResponse{
		Type: status,
		Data: messages.Payment{
			PaymentID:     rec.PaymentID,
			OrderID:       rec.OrderID,
			PaymentStatus: status,
		},
	}
	if err := s.messenger.PublishPaymentStatus(ctx, resp); err != nil {
		s.logger.Error("Failed to publish payment status",
			slog.String("order_id", rec.OrderID),
			slog.Any("error", err),
		)
	}
}
