// Package slack adapts the Slack Web API and Socket Mode to the sweeper.
package slack

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"

	perrors "github.com/p-blackswan/channel-sweeper/internal/errors"
	"github.com/p-blackswan/channel-sweeper/internal/platform"
)

const (
	platformName = "slack"
	pageSize     = 200
)

// API abstracts the Slack Web API client for testing.
type API interface {
	GetConversationsContext(ctx context.Context, params *slack.GetConversationsParameters) ([]slack.Channel, string, error)
	GetConversationHistoryContext(ctx context.Context, params *slack.GetConversationHistoryParameters) (*slack.GetConversationHistoryResponse, error)
	DeleteMessageContext(ctx context.Context, channel, messageTimestamp string) (string, string, error)
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// Client implements platform.Client on top of the Slack Web API.
type Client struct {
	api    API
	logger zerolog.Logger
}

// NewClient creates a new Slack platform client.
func NewClient(api API, logger zerolog.Logger) *Client {
	return &Client{
		api:    api,
		logger: logger.With().Str("component", "slack.client").Logger(),
	}
}

func (c *Client) Name() string { return platformName }

// Channels lists the public and private channels the bot is a member of.
func (c *Client) Channels(ctx context.Context) ([]platform.Channel, error) {
	params := &slack.GetConversationsParameters{
		ExcludeArchived: true,
		Limit:           pageSize,
		Types:           []string{"public_channel", "private_channel"},
	}

	var out []platform.Channel
	for {
		channels, next, err := c.api.GetConversationsContext(ctx, params)
		if err != nil {
			return nil, classify("conversations.list", err)
		}
		for _, ch := range channels {
			if !ch.IsMember {
				continue
			}
			out = append(out, platform.Channel{ID: ch.ID, Name: ch.Name})
		}
		if next == "" {
			return out, nil
		}
		params.Cursor = next
	}
}

// History pages through conversations.history, newest first. With Before
// set the query uses Slack's exclusive latest bound.
func (c *Client) History(ctx context.Context, channelID string, q platform.HistoryQuery) ([]platform.Message, error) {
	params := &slack.GetConversationHistoryParameters{
		ChannelID: channelID,
		Limit:     pageSize,
	}
	if q.Limit > 0 && q.Limit < pageSize {
		params.Limit = q.Limit
	}
	if !q.Before.IsZero() {
		params.Latest = FormatTimestamp(q.Before)
		params.Inclusive = false
	}

	var out []platform.Message
	for {
		resp, err := c.api.GetConversationHistoryContext(ctx, params)
		if err != nil {
			return nil, classify("conversations.history", err)
		}
		for _, m := range resp.Messages {
			msg, err := toMessage(channelID, m)
			if err != nil {
				c.logger.Warn().Err(err).Str("channel", channelID).Msg("skipping message with unparsable timestamp")
				continue
			}
			out = append(out, msg)
			if q.Limit > 0 && len(out) == q.Limit {
				return out, nil
			}
		}
		next := resp.ResponseMetaData.NextCursor
		if !resp.HasMore || next == "" {
			return out, nil
		}
		params.Cursor = next
	}
}

// DeleteMessage deletes a message by its timestamp.
func (c *Client) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	if _, _, err := c.api.DeleteMessageContext(ctx, channelID, messageID); err != nil {
		return classify("chat.delete", err)
	}
	return nil
}

// Send posts a plain text message.
func (c *Client) Send(ctx context.Context, channelID, text string) error {
	if _, _, err := c.api.PostMessageContext(ctx, channelID, slack.MsgOptionText(text, false)); err != nil {
		return classify("chat.postMessage", err)
	}
	return nil
}

func toMessage(channelID string, m slack.Message) (platform.Message, error) {
	created, err := ParseTimestamp(m.Timestamp)
	if err != nil {
		return platform.Message{}, err
	}
	author := m.User
	if author == "" {
		author = m.BotID
	}

	atts := make([]platform.Attachment, 0, len(m.Files))
	for _, f := range m.Files {
		atts = append(atts, platform.Attachment{Filename: f.Name, ContentType: f.Mimetype})
	}
	return platform.Message{
		ID:          m.Timestamp,
		ChannelID:   channelID,
		Author:      author,
		Content:     m.Text,
		CreatedAt:   created,
		Attachments: atts,
	}, nil
}

// ParseTimestamp converts a Slack message timestamp ("1700000000.000100").
func ParseTimestamp(ts string) (time.Time, error) {
	secPart, fracPart, _ := strings.Cut(ts, ".")
	sec, err := strconv.ParseInt(secPart, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing slack timestamp %q: %w", ts, err)
	}
	var micros int64
	if fracPart != "" {
		fracPart = (fracPart + "000000")[:6]
		micros, err = strconv.ParseInt(fracPart, 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("parsing slack timestamp %q: %w", ts, err)
		}
	}
	return time.Unix(sec, micros*int64(time.Microsecond)).UTC(), nil
}

// FormatTimestamp renders t in Slack's timestamp format.
func FormatTimestamp(t time.Time) string {
	return fmt.Sprintf("%d.%06d", t.Unix(), t.Nanosecond()/int(time.Microsecond))
}

// permissionCodes are Slack error codes meaning the bot may not act.
var permissionCodes = map[string]bool{
	"cant_delete_message": true,
	"missing_scope":       true,
	"not_in_channel":      true,
	"restricted_action":   true,
	"not_authed":          true,
	"invalid_auth":        true,
	"access_denied":       true,
}

var notFoundCodes = map[string]bool{
	"channel_not_found": true,
	"message_not_found": true,
}

func classify(op string, err error) error {
	var slackErr slack.SlackErrorResponse
	if errors.As(err, &slackErr) {
		switch {
		case permissionCodes[slackErr.Err]:
			return perrors.New(platformName, op, perrors.KindPermissionDenied, err)
		case notFoundCodes[slackErr.Err]:
			return perrors.New(platformName, op, perrors.KindNotFound, err)
		}
		return perrors.New(platformName, op, perrors.KindTransport, err)
	}

	var rateErr *slack.RateLimitedError
	if errors.As(err, &rateErr) {
		return perrors.WithStatus(platformName, op, perrors.KindTransport, 429, err)
	}

	var statusErr slack.StatusCodeError
	if errors.As(err, &statusErr) {
		kind := perrors.KindTransport
		if statusErr.Code == 403 {
			kind = perrors.KindPermissionDenied
		}
		return perrors.WithStatus(platformName, op, kind, statusErr.Code, err)
	}

	return perrors.New(platformName, op, perrors.KindTransport, err)
}
