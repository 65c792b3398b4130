// Package messages holds the JSON documents exchanged between the
// ShopX services. Field names are part of the cross-service wire
// contract and keep the platform's original camelCase casing.
package messages

import "time"

type OrderType string

const (
	OrderConfirmation OrderType = "CONFIRMATION"
	OrderCancellation OrderType = "CANCELLATION"
)

type OrderItem struct {
	ProductID    string  `json:"productId"`
	Quantity     int     `json:"quantity"`
	ProductPrice float64 `json:"productPrice"`
}

type OrderConfirmationData struct {
	UserID      string      `json:"userId"`
	OrderID     string      `json:"orderId"`
	OrderDate   time.Time   `json:"orderDate"`
	OrderItems  []OrderItem `json:"orderItems"`
	TotalAmount float64     `json:"totalAmount"`
	OrderLink   string      `json:"orderLink"`
}

type OrderCancellationData struct {
	UserID      string `json:"userId"`
	OrderID     string `json:"orderId"`
	Reason      string `json:"reason"`
	SupportLink string `json:"supportLink"`
}

// OrderRequest asks the notification service to mail a user about an
// order. Exactly one of the data fields is set, matching Type.
type OrderRequest struct {
	Type             OrderType              `json:"type"`
	ConfirmationData *OrderConfirmationData `json:"confirmationData,omitempty"`
	CancellationData *OrderCancellationData `json:"cancellationData,omitempty"`
}

// SellerOrderAck tells a seller one of their products was ordered.
// The seller queue carries a list of these, one per order item.
type SellerOrderAck struct {
	SellerID string `json:"sellerId"`
	OrderID  string `json:"orderId"`
}
