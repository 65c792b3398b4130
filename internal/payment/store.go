package payment

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopxindia/intermessage/internal/messages"
)

var ErrPaymentNotFound = errors.New("payment not found")

// Record is one payment attempt for an order.
type Record struct {
	PaymentID string
	OrderID   string
	UserID    string
	Amount    float64
	QRString  string
	Status    messages.PaymentStatus
	CreatedAt time.Time
}

// Store is the persistence collaborator of the payment service.
type Store interface {
	CreatePayment(ctx context.Context, rec Record) error
	PaymentByOrder(ctx context.Context, orderID string) (Record, error)
	CompletePayment(ctx context.Context, paymentID string) error
	FailPayment(ctx context.Context, paymentID string) error
}

// MemoryStore keeps payments in process, for the service binary when
// no database is wired in and for tests.
type MemoryStore struct {
	mu       sync.RWMutex
	payments map[string]Record // keyed by payment id
	byOrder  map[string]string // order id -> payment id
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		payments: make(map[string]Record),
		byOrder:  make(map[string]string),
	}
}

func (s *MemoryStore) CreatePayment(ctx context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments[rec.PaymentID] = rec
	s.byOrder[rec.OrderID] = rec.PaymentID
	return nil
}

func (s *MemoryStore) PaymentByOrder(ctx context.Context, orderID string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byOrder[orderID]
	if !ok {
		return Record{}, ErrPaymentNotFound
	}
	return s.payments[id], nil
}

func (s *MemoryStore) CompletePayment(ctx context.Context, paymentID string) error {
	return s.setStatus(paymentID, messages.PaymentSuccess)
}

func (s *MemoryStore) FailPayment(ctx context.Context, paymentID string) error {
	return s.setStatus(paymentID, messages.PaymentFailed)
}

func (s *MemoryStore) setStatus(paymentID string, status messages.PaymentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.payments[paymentID]
	if !ok {
		return ErrPaymentNotFound
	}
	rec.Status = status
	s.payments[paymentID] = rec
	return nil
}
