package user

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shopxindia/intermessage/internal/broker"
	"github.com/shopxindia/intermessage/internal/messages"
)

var ErrUserNotFound = errors.New("user not found")

// Lookup is the user repository collaborator.
type Lookup interface {
	ByID(ctx context.Context, userID string) (messages.UserDetails, error)
}

// Messenger broadcasts OTP requests on the user.request fanout
// exchange and answers user-details RPCs for the other services.
type Messenger struct {
	rpc    *broker.RPC
	pub    *broker.Publisher
	users  Lookup
	logger *slog.Logger
}

func NewMessenger(rpc *broker.RPC, pub *broker.Publisher, users Lookup, logger *slog.Logger) *Messenger {
	return &Messenger{rpc: rpc, pub: pub, users: users, logger: logger}
}

// RequestOTP broadcasts an OTP delivery request. Every queue bound to
// the fanout exchange receives a copy.
func (m *Messenger) RequestOTP(ctx context.Context, req messages.OTPRequest) error {
	if err := m.pub.Publish(ctx, broker.OTPBroadcast, req); err != nil {
		return fmt.Errorf("failed to broadcast OTP request: %w", err)
	}
	m.logger.Info("OTP request broadcast", slog.String("user_id", req.UserID))
	return nil
}

// Serve answers user-details requests on user.details.request until
// ctx is done.
func (m *Messenger) Serve(ctx context.Context) error {
	return m.rpc.Serve(ctx, broker.UserDetails, func(ctx context.Context, body []byte) (any, error) {
		var req messages.UserDetailsRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, fmt.Errorf("bad user details request: %w", err)
		}

		details, err := m.users.ByID(ctx, req.UserID)
		if err != nil {
			return nil, err
		}

		m.logger.Info("Resolved user details", slog.String("user_id", req.UserID))
		return details, nil
	})
}

// MemoryLookup is an in-process user directory used by the service
// binary when no database is wired in, and by tests.
type MemoryLookup struct {
	mu    sync.RWMutex
	users map[string]messages.UserDetails
}

func NewMemoryLookup(users ...messages.UserDetails) *MemoryLookup {
	l := &MemoryLookup{users: make(map[string]messages.UserDetails)}
	for _, u := range users {
		l.users[u.UserID] = u
	}
	return l
}

func (l *MemoryLookup) Add(u messages.UserDetails) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.users[u.UserID] = u
}

func (l *MemoryLookup) ByID(ctx context.Context, userID string) (messages.UserDetails, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	u, ok := l.users[userID]
	if !ok {
		return messages.UserDetails{}, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	return u, nil
}
