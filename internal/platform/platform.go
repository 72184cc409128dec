// Package platform defines the chat platform surface the sweeper depends on.
package platform

import (
	"context"
	"time"
)

// Attachment is a file attached to a message.
type Attachment struct {
	Filename    string
	ContentType string
}

// Message is a read-only view of a platform message.
type Message struct {
	ID          string
	ChannelID   string
	Author      string
	Content     string
	CreatedAt   time.Time
	Attachments []Attachment
}

// Channel is a text channel the bot can read.
type Channel struct {
	ID   string
	Name string
}

// HistoryQuery bounds a history enumeration.
// Before, when set, keeps only messages created strictly before it.
// Limit, when positive, keeps only the most recent Limit matching messages.
type HistoryQuery struct {
	Before time.Time
	Limit  int
}

// Inbound is a user message delivered by the gateway.
type Inbound struct {
	ChannelID string
	UserID    string
	Text      string
}

// Client is the REST surface of a chat platform.
type Client interface {
	Name() string
	Channels(ctx context.Context) ([]Channel, error)
	History(ctx context.Context, channelID string, q HistoryQuery) ([]Message, error)
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	Send(ctx context.Context, channelID, text string) error
}

// EventHandler receives gateway events.
type EventHandler interface {
	OnReady(ctx context.Context)
	OnMessage(ctx context.Context, in Inbound)
}

// Gateway is the realtime connection. Run blocks until ctx is cancelled.
type Gateway interface {
	Run(ctx context.Context, h EventHandler) error
}
