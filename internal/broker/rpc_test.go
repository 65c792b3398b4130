package broker_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"

	"github.com/shopxindia/intermessage/internal/broker"
	"github.com/shopxindia/intermessage/internal/broker/brokertest"
	"github.com/shopxindia/intermessage/internal/messages"
)

func TestRequestReplyRoundTrip(t *testing.T) {
	fake := brokertest.New()
	rpc := broker.NewRPC(fake, time.Second, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// declare up front so the request cannot race the server's own
	// declaration and get dropped as unroutable
	ch, err := fake.Channel()
	require.NoError(t, err)
	require.NoError(t, broker.ProductDetails.Declare(ch))

	go rpc.Serve(ctx, broker.ProductDetails, func(ctx context.Context, body []byte) (any, error) {
		var req messages.ProductDetailsRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, err
		}
		products := make([]messages.Product, len(req.ProductIDs))
		for i, id := range req.ProductIDs {
			products[i] = messages.Product{ProductID: id, ProductName: "product " + id, ProductPrice: 10}
		}
		return products, nil
	})

	var products []messages.Product
	err = rpc.Request(ctx, broker.ProductDetails.Queue,
		messages.ProductDetailsRequest{ProductIDs: []string{"p1", "p2"}}, &products)
	require.NoError(t, err)
	require.Len(t, products, 2)
	require.Equal(t, "p1", products[0].ProductID)
	require.Equal(t, "p2", products[1].ProductID)
	require.Equal(t, 0, rpc.Pending())
}

func TestRequestIgnoresForeignCorrelationID(t *testing.T) {
	fake := brokertest.New()
	rpc := broker.NewRPC(fake, time.Second, testLogger())

	ctx := context.Background()
	ch, err := fake.Channel()
	require.NoError(t, err)
	require.NoError(t, broker.ProductDetails.Declare(ch))

	deliveries, err := ch.Consume(broker.ProductDetails.Queue, "", false, false, false, false, nil)
	require.NoError(t, err)

	go func() {
		d := <-deliveries
		// a stray reply with someone else's correlation id arrives first
		ch.PublishWithContext(ctx, "", d.ReplyTo, false, false, amqp.Publishing{
			CorrelationId: "not-yours",
			Body:          []byte(`{"productId":"wrong"}`),
		})
		ch.PublishWithContext(ctx, "", d.ReplyTo, false, false, amqp.Publishing{
			CorrelationId: d.CorrelationId,
			Body:          []byte(`{"productId":"p1","productName":"widget"}`),
		})
		d.Ack(false)
	}()

	var product messages.Product
	err = rpc.Request(ctx, broker.ProductDetails.Queue, messages.ProductDetailsRequest{ProductIDs: []string{"p1"}}, &product)
	require.NoError(t, err)
	require.Equal(t, "p1", product.ProductID)
}

func TestRequestTimesOutWithoutReply(t *testing.T) {
	fake := brokertest.New()
	rpc := broker.NewRPC(fake, 50*time.Millisecond, testLogger())

	var reply messages.UserDetails
	err := rpc.Request(context.Background(), broker.UserDetails.Queue,
		messages.UserDetailsRequest{UserID: "u-1"}, &reply)
	require.ErrorIs(t, err, broker.ErrRequestTimeout)
	require.Equal(t, 0, rpc.Pending())
}

func TestLateReplyAfterTimeoutStaysOnReplyQueue(t *testing.T) {
	fake := brokertest.New()
	rpc := broker.NewRPC(fake, 50*time.Millisecond, testLogger())

	var reply messages.UserDetails
	err := rpc.Request(context.Background(), broker.UserDetails.Queue,
		messages.UserDetailsRequest{UserID: "u-1"}, &reply)
	require.ErrorIs(t, err, broker.ErrRequestTimeout)

	// the reply consumer is cancelled together with the request, so a
	// reply arriving after the timeout parks on the queue for its TTL
	// instead of vanishing into an abandoned consumer
	ch, err := fake.Channel()
	require.NoError(t, err)
	require.NoError(t, ch.PublishWithContext(context.Background(), "", "amq.gen-1", false, false, amqp.Publishing{
		CorrelationId: "too-late",
		Body:          []byte(`{"userId":"u-1"}`),
	}))
	require.Equal(t, 1, fake.Backlog("amq.gen-1"))
	require.Equal(t, 0, fake.Acked("amq.gen-1"))
}

func TestUnparseableReplyIsRejectedButAcked(t *testing.T) {
	fake := brokertest.New()
	rpc := broker.NewRPC(fake, time.Second, testLogger())

	ctx := context.Background()
	ch, err := fake.Channel()
	require.NoError(t, err)
	require.NoError(t, broker.UserDetails.Declare(ch))

	deliveries, err := ch.Consume(broker.UserDetails.Queue, "", false, false, false, false, nil)
	require.NoError(t, err)

	go func() {
		d := <-deliveries
		ch.PublishWithContext(ctx, "", d.ReplyTo, false, false, amqp.Publishing{
			CorrelationId: d.CorrelationId,
			Body:          []byte(`{not json`),
		})
		d.Ack(false)
	}()

	var reply messages.UserDetails
	err = rpc.Request(ctx, broker.UserDetails.Queue, messages.UserDetailsRequest{UserID: "u-1"}, &reply)
	require.ErrorIs(t, err, broker.ErrBadReply)

	// the broken reply must not be redelivered: it was acked anyway.
	// the reply queue is the first auto-named queue the fake hands out.
	require.Equal(t, 1, fake.Acked("amq.gen-1"))
	require.Equal(t, 0, rpc.Pending())
}

func TestConcurrentRequestsDoNotInterfere(t *testing.T) {
	fake := brokertest.New()
	rpc := broker.NewRPC(fake, time.Second, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := fake.Channel()
	require.NoError(t, err)
	require.NoError(t, broker.UserDetails.Declare(ch))

	go rpc.Serve(ctx, broker.UserDetails, func(ctx context.Context, body []byte) (any, error) {
		var req messages.UserDetailsRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, err
		}
		return messages.UserDetails{UserID: req.UserID}, nil
	})

	done := make(chan string, 2)
	for _, id := range []string{"u-1", "u-2"} {
		go func(id string) {
			var reply messages.UserDetails
			if err := rpc.Request(ctx, broker.UserDetails.Queue, messages.UserDetailsRequest{UserID: id}, &reply); err != nil {
				done <- "error: " + err.Error()
				return
			}
			if reply.UserID != id {
				done <- "mismatch: " + reply.UserID
				return
			}
			done <- id
		}(id)
	}

	got := map[string]bool{}
	for range 2 {
		got[<-done] = true
	}
	require.True(t, got["u-1"], "u-1 request should resolve with its own reply")
	require.True(t, got["u-2"], "u-2 request should resolve with its own reply")
}
