package domain

import (
	"context"

	"github.com/HMasataka/hubsim/internal/eventbus"
)

// Hub is the contract a chat front end drives: lifecycle, subscriptions and
// method invocation. Events may arrive at any time after StartConnection.
type Hub interface {
	// StartConnection connects the hub
	StartConnection(ctx context.Context) error

	// StopConnection disconnects the hub
	StopConnection(ctx context.Context) error

	// On subscribes a handler to an event name
	On(name eventbus.EventName, handler eventbus.Handler) eventbus.SubscriptionID

	// Off removes a subscription
	Off(name eventbus.EventName, id eventbus.SubscriptionID)

	// Invoke calls a hub method by name
	Invoke(ctx context.Context, method string, args ...any) (any, error)

	// JoinChat adds a user to the roster
	JoinChat(ctx context.Context, username string) (*JoinResult, error)

	// SendMessage broadcasts a chat message
	SendMessage(ctx context.Context, username, content string) (*SendResult, error)

	// State returns the connection state
	State() ConnectionState

	// Close tears the hub down
	Close() error
}

// Debugger injects inbound events directly, bypassing Invoke and its latency
type Debugger interface {
	SimulateUserJoin(username string)
	SimulateUserLeave(username string)
	SimulateMessage(username, content string)
	SimulateUserList()
	SimulateDisconnect()
	SimulateReconnect()
}
