package product

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shopxindia/intermessage/internal/broker"
	"github.com/shopxindia/intermessage/internal/messages"
)

// Lookup is the product catalog collaborator. The real platform backs
// it with a DynamoDB repository; the messaging core only resolves
// products by id.
type Lookup interface {
	ByIDs(ctx context.Context, productIDs []string) ([]messages.Product, error)
}

// Messenger answers product-details RPCs from the order service and
// publishes low-stock notices toward the notification service.
type Messenger struct {
	rpc      *broker.RPC
	pub      *broker.Publisher
	products Lookup
	logger   *slog.Logger
}

func NewMessenger(rpc *broker.RPC, pub *broker.Publisher, products Lookup, logger *slog.Logger) *Messenger {
	return &Messenger{rpc: rpc, pub: pub, products: products, logger: logger}
}

// Serve answers requests on product_request_queue until ctx is done.
func (m *Messenger) Serve(ctx context.Context) error {
	return m.rpc.Serve(ctx, broker.ProductDetails, func(ctx context.Context, body []byte) (any, error) {
		var req messages.ProductDetailsRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, fmt.Errorf("bad product details request: %w", err)
		}

		products, err := m.products.ByIDs(ctx, req.ProductIDs)
		if err != nil {
			return nil, err
		}

		m.logger.Info("Resolved product details", slog.Int("count", len(products)))
		return products, nil
	})
}

// NotifyLowStock warns the seller, via the notification service, that
// some of their products are running low.
func (m *Messenger) NotifyLowStock(ctx context.Context, notice messages.LowStockNotice) error {
	if err := m.pub.Publish(ctx, broker.LowStock, notice); err != nil {
		return fmt.Errorf("failed to publish low stock notice: %w", err)
	}
	m.logger.Info("Low stock notice sent", slog.String("seller", notice.SellerName))
	return nil
}

// MemoryLookup is an in-process catalog used by the service binary
// when no database is wired in, and by tests.
type MemoryLookup struct {
	mu       sync.RWMutex
	products map[string]messages.Product
}

func NewMemoryLookup(products ...messages.Product) *MemoryLookup {
	l := &MemoryLookup{products: make(map[string]messages.Product)}
	for _, p := range products {
		l.products[p.ProductID] = p
	}
	return l
}

func (l *MemoryLookup) Add(p messages.Product) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.products[p.ProductID] = p
}

// ByIDs returns the products that exist, in request order. Missing ids
// are skipped; the caller decides whether a partial result is fatal.
func (l *MemoryLookup) ByIDs(ctx context.Context, productIDs []string) ([]messages.Product, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []messages.Product
	for _, id := range productIDs {
		if p, ok := l.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}
