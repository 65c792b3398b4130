package notification_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shopxindia/intermessage/internal/broker"
	"github.com/shopxindia/intermessage/internal/broker/brokertest"
	"github.com/shopxindia/intermessage/internal/messages"
	"github.com/shopxindia/intermessage/internal/notification"
	"github.com/shopxindia/intermessage/internal/user"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// recordingDispatch captures every notification instead of sending it.
type recordingDispatch struct {
	mu                 sync.Mutex
	otps               []messages.OTPRequest
	orderConfirmations []messages.UserDetails
	orderCancellations []messages.UserDetails
	paymentMails       []messages.PaymentMailRequest
	lowStock           []messages.LowStockNotice
}

func (d *recordingDispatch) SendOTP(ctx context.Context, req messages.OTPRequest) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.otps = append(d.otps, req)
	return nil
}

func (d *recordingDispatch) SendOrderConfirmationMail(ctx context.Context, data messages.OrderConfirmationData, u messages.UserDetails) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.orderConfirmations = append(d.orderConfirmations, u)
	return nil
}

func (d *recordingDispatch) SendOrderCancellationMail(ctx context.Context, data messages.OrderCancellationData, u messages.UserDetails) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.orderCancellations = append(d.orderCancellations, u)
	return nil
}

func (d *recordingDispatch) SendPaymentConfirmationMail(ctx context.Context, req messages.PaymentMailRequest, u messages.UserDetails) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.paymentMails = append(d.paymentMails, req)
	return nil
}

func (d *recordingDispatch) SendPaymentCancellationMail(ctx context.Context, req messages.PaymentMailRequest, u messages.UserDetails) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.paymentMails = append(d.paymentMails, req)
	return nil
}

func (d *recordingDispatch) SendLowStockMail(ctx context.Context, notice messages.LowStockNotice) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lowStock = append(d.lowStock, notice)
	return nil
}

// fixture runs the notification messenger next to a live user service
// so the user-details RPC can resolve.
type fixture struct {
	fake     *brokertest.Broker
	dispatch *recordingDispatch
	pub      *broker.Publisher
}

func newFixture(t *testing.T, users ...messages.UserDetails) *fixture {
	t.Helper()

	fake := brokertest.New()
	logger := testLogger()
	rpc := broker.NewRPC(fake, 2*time.Second, logger)
	pub := broker.NewPublisher(fake, logger)

	// declare the RPC queue up front so requests cannot race the user
	// service's own declaration
	ch, err := fake.Channel()
	require.NoError(t, err)
	require.NoError(t, broker.UserDetails.Declare(ch))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	userMessenger := user.NewMessenger(rpc, pub, user.NewMemoryLookup(users...), logger)
	go userMessenger.Serve(ctx)

	dispatch := &recordingDispatch{}
	messenger := notification.NewMessenger(fake, rpc, dispatch, logger)
	go messenger.Run(ctx)

	return &fixture{fake: fake, dispatch: dispatch, pub: pub}
}

func TestOTPBroadcastIsDispatched(t *testing.T) {
	f := newFixture(t)

	req := messages.OTPRequest{UserID: "u-1", Email: "u1@shopxindia.shop", EmailOTP: 482913, SMSOTP: 771204}
	require.NoError(t, f.pub.Publish(context.Background(), broker.OTPBroadcast, req))

	require.Eventually(t, func() bool {
		f.dispatch.mu.Lock()
		defer f.dispatch.mu.Unlock()
		return len(f.dispatch.otps) == 1 && f.dispatch.otps[0].EmailOTP == 482913
	}, 2*time.Second, 10*time.Millisecond)
}

func TestOrderCancellationMailResolvesUser(t *testing.T) {
	f := newFixture(t, messages.UserDetails{UserID: "u-1", FirstName: "Asha", Email: "asha@shopxindia.shop"})

	mail := messages.OrderRequest{
		Type: messages.OrderCancellation,
		CancellationData: &messages.OrderCancellationData{
			UserID:      "u-1",
			OrderID:     "o-1",
			Reason:      "payment window elapsed",
			SupportLink: "https://shopxindia.shop/support",
		},
	}
	require.NoError(t, f.pub.Publish(context.Background(), broker.OrderMail, mail))

	require.Eventually(t, func() bool {
		f.dispatch.mu.Lock()
		defer f.dispatch.mu.Unlock()
		return len(f.dispatch.orderCancellations) == 1 &&
			f.dispatch.orderCancellations[0].Email == "asha@shopxindia.shop"
	}, 3*time.Second, 10*time.Millisecond)
}

func TestOrderConfirmationMailResolvesUser(t *testing.T) {
	f := newFixture(t, messages.UserDetails{UserID: "u-2", Email: "ravi@shopxindia.shop"})

	mail := messages.OrderRequest{
		Type: messages.OrderConfirmation,
		ConfirmationData: &messages.OrderConfirmationData{
			UserID:      "u-2",
			OrderID:     "o-2",
			OrderItems:  []messages.OrderItem{{ProductID: "p1", Quantity: 1, ProductPrice: 99}},
			TotalAmount: 99,
		},
	}
	require.NoError(t, f.pub.Publish(context.Background(), broker.OrderMail, mail))

	require.Eventually(t, func() bool {
		f.dispatch.mu.Lock()
		defer f.dispatch.mu.Unlock()
		return len(f.dispatch.orderConfirmations) == 1 &&
			f.dispatch.orderConfirmations[0].Email == "ravi@shopxindia.shop"
	}, 3*time.Second, 10*time.Millisecond)
}

func TestPaymentMailIsDispatched(t *testing.T) {
	f := newFixture(t, messages.UserDetails{UserID: "u-1", Email: "asha@shopxindia.shop"})

	mail := messages.PaymentMailRequest{
		Type:        messages.PaymentMailConfirmation,
		OrderID:     "o-1",
		UserID:      "u-1",
		Amount:      260,
		ReceiptLink: "https://shopxindia.shop/receipts",
	}
	require.NoError(t, f.pub.Publish(context.Background(), broker.PaymentMail, mail))

	require.Eventually(t, func() bool {
		f.dispatch.mu.Lock()
		defer f.dispatch.mu.Unlock()
		return len(f.dispatch.paymentMails) == 1 && f.dispatch.paymentMails[0].OrderID == "o-1"
	}, 3*time.Second, 10*time.Millisecond)
}

func TestLowStockNoticeIsDispatched(t *testing.T) {
	f := newFixture(t)

	notice := messages.LowStockNotice{
		Email:      "seller@shopxindia.shop",
		SellerName: "Gupta Electronics",
		LowStockProducts: []messages.LowStockProduct{
			{ProductName: "USB-C cable", Quantity: 2},
		},
	}
	require.NoError(t, f.pub.Publish(context.Background(), broker.LowStock, notice))

	require.Eventually(t, func() bool {
		f.dispatch.mu.Lock()
		defer f.dispatch.mu.Unlock()
		return len(f.dispatch.lowStock) == 1 && f.dispatch.lowStock[0].SellerName == "Gupta Electronics"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestMailForUnknownMailTypeDeadLetters(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.pub.Publish(context.Background(), broker.OrderMail, messages.OrderRequest{Type: "SOMETHING_ELSE"}))

	require.Eventually(t, func() bool {
		return f.fake.Backlog(broker.OrderMail.DeadLetterQueue()) == 1
	}, 3*time.Second, 10*time.Millisecond)
}
