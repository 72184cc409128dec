// Package platformtest provides an in-memory platform.Client for tests.
package platformtest

import (
	"context"
	"errors"
	"sort"
	"sync"

	perrors "github.com/p-blackswan/channel-sweeper/internal/errors"
	"github.com/p-blackswan/channel-sweeper/internal/platform"
)

// Sent is a reply recorded by the fake.
type Sent struct {
	ChannelID string
	Text      string
}

// Client is an in-memory platform.Client. History returns messages newest
// first, like the real platforms.
type Client struct {
	mu sync.Mutex

	ChannelList []platform.Channel
	Messages    map[string][]platform.Message

	// DeleteErr, when set, is consulted for every delete.
	DeleteErr  func(channelID, messageID string) error
	HistoryErr error
	ChannelErr error
	SendErr    error

	Deleted []string
	Sent    []Sent
	Queries []platform.HistoryQuery
}

// NewClient creates an empty fake.
func NewClient() *Client {
	return &Client{Messages: make(map[string][]platform.Message)}
}

// Add stores messages in a channel.
func (c *Client) Add(channelID string, msgs ...platform.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range msgs {
		m.ChannelID = channelID
		c.Messages[channelID] = append(c.Messages[channelID], m)
	}
}

func (c *Client) Name() string { return "fake" }

func (c *Client) Channels(_ context.Context) ([]platform.Channel, error) {
	if c.ChannelErr != nil {
		return nil, c.ChannelErr
	}
	return c.ChannelList, nil
}

func (c *Client) History(_ context.Context, channelID string, q platform.HistoryQuery) ([]platform.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Queries = append(c.Queries, q)
	if c.HistoryErr != nil {
		return nil, c.HistoryErr
	}

	msgs := append([]platform.Message(nil), c.Messages[channelID]...)
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].CreatedAt.After(msgs[j].CreatedAt) })

	out := make([]platform.Message, 0, len(msgs))
	for _, m := range msgs {
		if !q.Before.IsZero() && !m.CreatedAt.Before(q.Before) {
			continue
		}
		out = append(out, m)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

func (c *Client) DeleteMessage(_ context.Context, channelID, messageID string) error {
	if c.DeleteErr != nil {
		if err := c.DeleteErr(channelID, messageID); err != nil {
			return err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	kept := make([]platform.Message, 0, len(c.Messages[channelID]))
	for _, m := range c.Messages[channelID] {
		if m.ID != messageID {
			kept = append(kept, m)
		}
	}
	if len(kept) == len(c.Messages[channelID]) {
		return perrors.New("fake", "delete", perrors.KindNotFound, errors.New("message_not_found"))
	}
	c.Deleted = append(c.Deleted, messageID)
	c.Messages[channelID] = kept
	return nil
}

func (c *Client) Send(_ context.Context, channelID, text string) error {
	if c.SendErr != nil {
		return c.SendErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Sent = append(c.Sent, Sent{ChannelID: channelID, Text: text})
	return nil
}

// DeletedIDs returns a copy of the deleted message IDs in call order.
func (c *Client) DeletedIDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.Deleted...)
}

// Replies returns a copy of the sent messages.
func (c *Client) Replies() []Sent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Sent(nil), c.Sent...)
}
