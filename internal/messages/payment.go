package messages

type PaymentStatus string

const (
	PaymentSuccess  PaymentStatus = "SUCCESS"
	PaymentFailed   PaymentStatus = "FAILED"
	PaymentRefunded PaymentStatus = "REFUNDED"
	PaymentPending  PaymentStatus = "PENDING"
)

// PaymentInitiation asks the payment service to start a payment for a
// freshly created order.
type PaymentInitiation struct {
	OrderID     string  `json:"orderId"`
	UserID      string  `json:"userId"`
	TotalAmount float64 `json:"totalAmount"`
}

type Payment struct {
	PaymentID     string        `json:"paymentId"`
	OrderID       string        `json:"orderId"`
	PaymentStatus PaymentStatus `json:"paymentStatus"`
}

// PaymentResponse reports a payment status transition back to the
// order service.
type PaymentResponse struct {
	Type PaymentStatus `json:"type"`
	Data Payment       `json:"data"`
}

type PaymentMailType string

const (
	PaymentMailConfirmation PaymentMailType = "CONFIRMATION"
	PaymentMailCancellation PaymentMailType = "CANCELLATION"
)

// PaymentMailRequest asks the notification service to mail a user
// about a payment.
type PaymentMailRequest struct {
	Type             PaymentMailType `json:"type"`
	OrderID          string          `json:"orderId"`
	UserID           string          `json:"userId"`
	Amount           float64         `json:"amount"`
	ReceiptLink      string          `json:"receiptLink,omitempty"`
	RetryPaymentLink string          `json:"retryPaymentLink,omitempty"`
	SupportLink      string          `json:"supportLink,omitempty"`
}
