// Package channels defines the interfaces and types for the Wingman
// host-messaging surface. The host platform (Discord) implements the
// Channel interface so the reply loop can receive messages and send
// replies without knowing platform details.
package channels

import (
	"context"
	"fmt"
	"time"
)

// Channel defines the interface a host messaging platform must implement.
type Channel interface {
	// Name returns the channel identifier (e.g. "discord").
	Name() string

	// Connect establishes the connection to the messaging platform.
	Connect(ctx context.Context) error

	// Disconnect gracefully closes the connection.
	Disconnect() error

	// Send sends a message to the specified conversation.
	Send(ctx context.Context, to string, message *OutgoingMessage) error

	// Receive returns a Go channel that emits incoming messages.
	Receive() <-chan *IncomingMessage

	// IsConnected returns true if the channel is connected.
	IsConnected() bool

	// Health returns the channel health status.
	Health() HealthStatus
}

// PresenceChannel extends Channel with typing indicators.
type PresenceChannel interface {
	Channel

	// SendTyping sends a "typing..." indicator to the conversation.
	SendTyping(ctx context.Context, to string) error
}

// FocusChannel extends Channel with conversation-focus events.
// A focus event signals that the operator is active in a conversation,
// which makes it the conversation the reply loop watches.
type FocusChannel interface {
	Channel

	// FocusEvents returns a Go channel emitting focus changes.
	FocusEvents() <-chan *FocusEvent
}

// NotifyChannel extends Channel with out-of-band operator alerts.
type NotifyChannel interface {
	Channel

	// Notify delivers a message directly to the operator.
	Notify(ctx context.Context, text string) error
}

// IncomingMessage represents a message received from the host platform.
type IncomingMessage struct {
	// ID is the unique message identifier in the source channel.
	ID string

	// Channel identifies the source channel (e.g. "discord").
	Channel string

	// From is the sender identifier on the platform.
	From string

	// FromName is the sender display name (if available).
	FromName string

	// FromSelf indicates the message was authored by the bot account.
	FromSelf bool

	// FromOperator indicates the message was authored by the operator.
	FromOperator bool

	// ChatID is the conversation (guild channel or DM) identifier.
	ChatID string

	// IsGroup indicates whether the message is from a group conversation.
	IsGroup bool

	// Content is the text content of the message.
	Content string

	// Timestamp is when the message was sent.
	Timestamp time.Time

	// ReplyTo contains the ID of the message being replied to.
	ReplyTo string
}

// OutgoingMessage represents a message to be sent through a channel.
type OutgoingMessage struct {
	// Content is the text content of the message.
	Content string

	// ReplyTo contains the ID of the message to reply to.
	ReplyTo string
}

// FocusEvent signals that the focused conversation changed.
type FocusEvent struct {
	// ChatID is the newly focused conversation.
	ChatID string

	// At is when the focus change happened.
	At time.Time
}

// HealthStatus represents the health state of a channel.
type HealthStatus struct {
	Connected     bool
	LastMessageAt time.Time
	ErrorCount    int
}

// Errors.
var (
	ErrChannelDisconnected = fmt.Errorf("channel is not connected")
	ErrSendFailed          = fmt.Errorf("failed to send message")
)
