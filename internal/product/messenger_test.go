package product_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shopxindia/intermessage/internal/broker"
	"github.com/shopxindia/intermessage/internal/broker/brokertest"
	"github.com/shopxindia/intermessage/internal/messages"
	"github.com/shopxindia/intermessage/internal/product"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestServeAnswersProductDetails(t *testing.T) {
	fake := brokertest.New()
	logger := testLogger()
	rpc := broker.NewRPC(fake, 2*time.Second, logger)

	lookup := product.NewMemoryLookup(
		messages.Product{ProductID: "p1", ProductName: "USB-C cable", ProductPrice: 199, SellerID: "s1", Stock: 40, Availability: true},
		messages.Product{ProductID: "p2", ProductName: "Power bank", ProductPrice: 1499, DiscountedPrice: 1299, SellerID: "s2", Stock: 7, Availability: true},
	)
	m := product.NewMessenger(rpc, broker.NewPublisher(fake, logger), lookup, logger)

	ch, err := fake.Channel()
	require.NoError(t, err)
	require.NoError(t, broker.ProductDetails.Declare(ch))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Serve(ctx)

	var products []messages.Product
	err = rpc.Request(ctx, broker.ProductDetails.Queue,
		messages.ProductDetailsRequest{ProductIDs: []string{"p2", "p1"}}, &products)
	require.NoError(t, err)
	require.Len(t, products, 2)

	// request order is preserved
	require.Equal(t, "p2", products[0].ProductID)
	require.Equal(t, 1299.0, products[0].DiscountedPrice)
	require.Equal(t, "p1", products[1].ProductID)
}

func TestServeSkipsUnknownProducts(t *testing.T) {
	fake := brokertest.New()
	logger := testLogger()
	rpc := broker.NewRPC(fake, 2*time.Second, logger)
	m := product.NewMessenger(rpc, broker.NewPublisher(fake, logger), product.NewMemoryLookup(
		messages.Product{ProductID: "p1", ProductPrice: 199, SellerID: "s1"},
	), logger)

	ch, err := fake.Channel()
	require.NoError(t, err)
	require.NoError(t, broker.ProductDetails.Declare(ch))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Serve(ctx)

	var products []messages.Product
	err = rpc.Request(ctx, broker.ProductDetails.Queue,
		messages.ProductDetailsRequest{ProductIDs: []string{"p1", "ghost"}}, &products)
	require.NoError(t, err)

	// missing ids are simply absent; the caller decides what that means
	require.Len(t, products, 1)
	require.Equal(t, "p1", products[0].ProductID)
}

func TestNotifyLowStockRoutesToProductQueue(t *testing.T) {
	fake := brokertest.New()
	logger := testLogger()
	m := product.NewMessenger(broker.NewRPC(fake, time.Second, logger), broker.NewPublisher(fake, logger), product.NewMemoryLookup(), logger)

	notice := messages.LowStockNotice{
		Email:      "seller@shopxindia.shop",
		SellerName: "Gupta Electronics",
		LowStockProducts: []messages.LowStockProduct{
			{ProductName: "Power bank", Quantity: 3},
		},
		InventoryDashboardLink: "https://shopxindia.shop/seller/inventory",
	}
	require.NoError(t, m.NotifyLowStock(context.Background(), notice))

	bodies := fake.BacklogBodies(broker.LowStock.Queue)
	require.Len(t, bodies, 1)

	var got messages.LowStockNotice
	require.NoError(t, json.Unmarshal(bodies[0], &got))
	require.Equal(t, notice, got)
}
