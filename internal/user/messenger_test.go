package user_test

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
	"github.com/shopxindia/intermessage/internal/user"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestRequestOTPReachesEveryBoundQueue(t *testing.T) {
	fake := brokertest.New()
	logger := testLogger()
	m := user.NewMessenger(broker.NewRPC(fake, time.Second, logger), broker.NewPublisher(fake, logger), user.NewMemoryLookup(), logger)

	ch, err := fake.Channel()
	require.NoError(t, err)
	require.NoError(t, broker.OTPBroadcast.Declare(ch))
	_, err = ch.QueueDeclare("sms_otp_queue", true, false, false, false, nil)
	require.NoError(t, err)
	require.NoError(t, ch.QueueBind("sms_otp_queue", "", broker.OTPBroadcast.Exchange, false, nil))

	req := messages.OTPRequest{UserID: "u-1", EmailOTP: 123456, SMSOTP: 654321}
	require.NoError(t, m.RequestOTP(context.Background(), req))

	require.Equal(t, 1, fake.Backlog(broker.OTPBroadcast.Queue))
	require.Equal(t, 1, fake.Backlog("sms_otp_queue"))

	var got messages.OTPRequest
	require.NoError(t, json.Unmarshal(fake.BacklogBodies("sms_otp_queue")[0], &got))
	require.Equal(t, req, got)
}

func TestServeAnswersUserDetails(t *testing.T) {
	fake := brokertest.New()
	logger := testLogger()
	rpc := broker.NewRPC(fake, 2*time.Second, logger)

	lookup := user.NewMemoryLookup(messages.UserDetails{
		UserID:    "u-1",
		FirstName: "Asha",
		Email:     "asha@shopxindia.shop",
		Addresses: []messages.Address{{ID: "a-1", UserID: "u-1", City: "Pune", IsDefault: true}},
	})
	m := user.NewMessenger(rpc, broker.NewPublisher(fake, logger), lookup, logger)

	ch, err := fake.Channel()
	require.NoError(t, err)
	require.NoError(t, broker.UserDetails.Declare(ch))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Serve(ctx)

	var details messages.UserDetails
	err = rpc.Request(ctx, broker.UserDetails.Queue, messages.UserDetailsRequest{UserID: "u-1"}, &details)
	require.NoError(t, err)
	require.Equal(t, "Asha", details.FirstName)
	require.Len(t, details.Addresses, 1)
	require.Equal(t, "Pune", details.Addresses[0].City)
}

func TestServeUnknownUserLeavesRequesterWaiting(t *testing.T) {
	fake := brokertest.New()
	logger := testLogger()
	rpc := broker.NewRPC(fake, 100*time.Millisecond, logger)
	m := user.NewMessenger(rpc, broker.NewPublisher(fake, logger), user.NewMemoryLookup(), logger)

	ch, err := fake.Channel()
	require.NoError(t, err)
	require.NoError(t, broker.UserDetails.Declare(ch))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Serve(ctx)

	// no reply is ever published for a user that does not exist; the
	// caller runs into its timeout
	var details messages.UserDetails
	err = rpc.Request(ctx, broker.UserDetails.Queue, messages.UserDetailsRequest{UserID: "ghost"}, &details)
	require.ErrorIs(t, err, broker.ErrRequestTimeout)
}
