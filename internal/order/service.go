package order

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shopxindia/intermessage/internal/messages"
)

var (
	ErrEmptyOrder      = errors.New("order has no items")
	ErrProductNotFound = errors.New("product not found")
)

type OrderItemInput struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type OrderInput struct {
	UserID string           `json:"userId"`
	Items  []OrderItemInput `json:"orderItems"`
}

// Service implements the create-order workflow: resolve products over
// RPC, persist the order as PENDING, then request payment initiation.
// Any product missing from the product service fails the whole order
// before anything is persisted.
type Service struct {
	store     Store
	messenger *Messenger
	logger    *slog.Logger
}

func NewService(store Store, messenger *Messenger, logger *slog.Logger) *Service {
	return &Service{store: store, messenger: messenger, logger: logger}
}

func (s *Service) CreateOrder(ctx context.Context, input OrderInput) (Order, error) {
	if input.UserID == "" || len(input.Items) == 0 {
		return Order{}, ErrEmptyOrder
	}

	productIDs := make([]string, len(input.Items))
	for i, item := range input.Items {
		productIDs[i] = item.ProductID
	}

	products, err := s.messenger.RequestProductDetails(ctx, productIDs)
	if err != nil {
		return Order{}, err
	}

	byID := make(map[string]messages.Product, len(products))
	for _, p := range products {
		byID[p.ProductID] = p
	}

	o := Order{
		OrderID:       uuid.New().String(),
		UserID:        input.UserID,
		PaymentStatus: messages.PaymentPending,
		CreatedAt:     time.Now(),
	}

	for _, item := range input.Items {
		p, ok := byID[item.ProductID]
		if !ok {
			return Order{}, fmt.Errorf("%w: %s", ErrProductNotFound, item.ProductID)
		}
		price := p.ProductPrice
		if p.DiscountedPrice > 0 {
			price = p.DiscountedPrice
		}
		o.Lines = append(o.Lines, OrderLine{
			ProductID:    p.ProductID,
			SellerID:     p.SellerID,
			Quantity:     item.Quantity,
			ProductPrice: price,
		})
		o.TotalAmount += price * float64(item.Quantity)
	}

	if err := s.store.CreateOrder(ctx, o); err != nil {
		return Order{}, fmt.Errorf("failed to persist order: %w", err)
	}

	s.logger.Info("Order created",
		slog.String("order_id", o.OrderID),
		slog.String("user_id", o.UserID),
		slog.Float64("total_amount", o.TotalAmount),
	)

	// Payment initiation happens after the order exists; a failure
	// here leaves the order PENDING until a payment event reconciles
	// it.
	err = s.messenger.RequestPaymentInitiation(ctx, messages.PaymentInitiation{
		OrderID:     o.OrderID,
		UserID:      o.UserID,
		TotalAmount: o.TotalAmount,
	})
	if err != nil {
		s.logger.Error("Failed to request payment initiation", slog.Any("error", err))
	}

	return o, nil
}
