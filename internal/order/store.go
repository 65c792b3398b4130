package order

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopxindia/intermessage/internal/messages"
)

var ErrOrderNotFound = errors.New("order not found")

// OrderLine is one ordered product together with the seller it
// belongs to.
type OrderLine struct {
	ProductID    string
	SellerID     string
	Quantity     int
	ProductPrice float64
}

// Order is the order service's view of a placed order. An order is
// created PENDING and stays PENDING until a terminal payment status
// arrives on the payment_order_queue.
type Order struct {
	OrderID       string
	UserID        string
	Lines         []OrderLine
	TotalAmount   float64
	PaymentStatus messages.PaymentStatus
	CreatedAt     time.Time
}

// MailItems converts the order lines to the wire shape the
// notification service expects.
func (o Order) MailItems() []messages.OrderItem {
	items := make([]messages.OrderItem, len(o.Lines))
	for i, l := range o.Lines {
		items[i] = messages.OrderItem{
			ProductID:    l.ProductID,
			Quantity:     l.Quantity,
			ProductPrice: l.ProductPrice,
		}
	}
	return items
}

// Store is the persistence collaborator. The real platform keeps
// orders in a relational database behind its own repository; the
// messaging core only needs these three calls.
type Store interface {
	CreateOrder(ctx context.Context, o Order) error
	GetOrder(ctx context.Context, orderID string) (Order, error)
	UpdatePaymentStatus(ctx context.Context, p messages.Payment) error
}

// MemoryStore is an in-process Store used by the service binary when
// no database is wired in, and by tests.
type MemoryStore struct {
	mu     sync.RWMutex
	orders map[string]Order
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{orders: make(map[string]Order)}
}

func (s *MemoryStore) CreateOrder(ctx context.Context, o Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.OrderID] = o
	return nil
}

func (s *MemoryStore) GetOrder(ctx context.Context, orderID string) (Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[orderID]
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	return o, nil
}

func (s *MemoryStore) UpdatePaymentStatus(ctx context.Context, p messages.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[p.OrderID]
	if !ok {
		return ErrOrderNotFound
	}
	o.PaymentStatus = p.PaymentStatus
	s.orders[p.OrderID] = o
	return nil
}
