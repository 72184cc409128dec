// Package discord adapts the Discord REST API and gateway to the sweeper.
package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/diamondburned/arikawa/v3/api"
	dc "github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/utils/httputil"
	"github.com/rs/zerolog"

	perrors "github.com/p-blackswan/channel-sweeper/internal/errors"
	"github.com/p-blackswan/channel-sweeper/internal/platform"
)

const platformName = "discord"

// API is the subset of the Discord REST API used by the sweeper.
type API interface {
	Guilds(ctx context.Context) ([]dc.Guild, error)
	Channels(ctx context.Context, guildID dc.GuildID) ([]dc.Channel, error)
	Messages(ctx context.Context, channelID dc.ChannelID, limit uint) ([]dc.Message, error)
	MessagesBefore(ctx context.Context, channelID dc.ChannelID, before dc.MessageID, limit uint) ([]dc.Message, error)
	DeleteMessage(ctx context.Context, channelID dc.ChannelID, messageID dc.MessageID) error
	SendMessage(ctx context.Context, channelID dc.ChannelID, content string) error
}

// restAPI binds arikawa's client to a per-call context.
type restAPI struct {
	c *api.Client
}

// NewAPI wraps an arikawa REST client.
func NewAPI(c *api.Client) API {
	return restAPI{c: c}
}

func (r restAPI) Guilds(ctx context.Context) ([]dc.Guild, error) {
	return r.c.WithContext(ctx).Guilds(0)
}

func (r restAPI) Channels(ctx context.Context, guildID dc.GuildID) ([]dc.Channel, error) {
	return r.c.WithContext(ctx).Channels(guildID)
}

func (r restAPI) Messages(ctx context.Context, channelID dc.ChannelID, limit uint) ([]dc.Message, error) {
	return r.c.WithContext(ctx).Messages(channelID, limit)
}

func (r restAPI) MessagesBefore(ctx context.Context, channelID dc.ChannelID, before dc.MessageID, limit uint) ([]dc.Message, error) {
	return r.c.WithContext(ctx).MessagesBefore(channelID, before, limit)
}

func (r restAPI) DeleteMessage(ctx context.Context, channelID dc.ChannelID, messageID dc.MessageID) error {
	return r.c.WithContext(ctx).DeleteMessage(channelID, messageID, "")
}

func (r restAPI) SendMessage(ctx context.Context, channelID dc.ChannelID, content string) error {
	_, err := r.c.WithContext(ctx).SendMessage(channelID, content)
	return err
}

// Client implements platform.Client for Discord.
type Client struct {
	api    API
	logger zerolog.Logger
}

// NewClient creates a new Discord platform client.
func NewClient(a API, logger zerolog.Logger) *Client {
	return &Client{
		api:    a,
		logger: logger.With().Str("component", "discord.client").Logger(),
	}
}

func (c *Client) Name() string { return platformName }

// Channels returns the text channels of every guild the bot has joined.
func (c *Client) Channels(ctx context.Context) ([]platform.Channel, error) {
	guilds, err := c.api.Guilds(ctx)
	if err != nil {
		return nil, classify("guilds", err)
	}

	var out []platform.Channel
	for _, g := range guilds {
		chs, err := c.api.Channels(ctx, g.ID)
		if err != nil {
			err = classify("channels", err)
			if perrors.KindOf(err) == perrors.KindPermissionDenied {
				c.logger.Warn().Err(err).Str("guild", g.ID.String()).Msg("cannot list guild channels, skipping")
				continue
			}
			return nil, err
		}
		for _, ch := range chs {
			if ch.Type != dc.GuildText {
				continue
			}
			out = append(out, platform.Channel{ID: ch.ID.String(), Name: ch.Name})
		}
	}
	return out, nil
}

// History returns messages newest first. Before is translated into a
// snowflake so Discord filters on the server side.
func (c *Client) History(ctx context.Context, channelID string, q platform.HistoryQuery) ([]platform.Message, error) {
	chID, err := parseChannelID(channelID)
	if err != nil {
		return nil, err
	}

	limit := uint(0)
	if q.Limit > 0 {
		limit = uint(q.Limit)
	}

	var msgs []dc.Message
	if q.Before.IsZero() {
		msgs, err = c.api.Messages(ctx, chID, limit)
	} else {
		msgs, err = c.api.MessagesBefore(ctx, chID, dc.MessageID(dc.NewSnowflake(q.Before)), limit)
	}
	if err != nil {
		return nil, classify("messages", err)
	}

	out := make([]platform.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessage(channelID, m))
	}
	return out, nil
}

// DeleteMessage deletes one message.
func (c *Client) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	chID, err := parseChannelID(channelID)
	if err != nil {
		return err
	}
	sf, err := dc.ParseSnowflake(messageID)
	if err != nil {
		return perrors.New(platformName, "delete message", perrors.KindInvalidInput, fmt.Errorf("message id %q: %w", messageID, err))
	}
	if err := c.api.DeleteMessage(ctx, chID, dc.MessageID(sf)); err != nil {
		return classify("delete message", err)
	}
	return nil
}

// Send posts a plain text message.
func (c *Client) Send(ctx context.Context, channelID, text string) error {
	chID, err := parseChannelID(channelID)
	if err != nil {
		return err
	}
	if err := c.api.SendMessage(ctx, chID, text); err != nil {
		return classify("send message", err)
	}
	return nil
}

func parseChannelID(id string) (dc.ChannelID, error) {
	sf, err := dc.ParseSnowflake(id)
	if err != nil || !sf.IsValid() {
		return 0, perrors.New(platformName, "parse channel", perrors.KindNotFound, fmt.Errorf("channel id %q is not a snowflake", id))
	}
	return dc.ChannelID(sf), nil
}

func toMessage(channelID string, m dc.Message) platform.Message {
	atts := make([]platform.Attachment, 0, len(m.Attachments))
	for _, a := range m.Attachments {
		atts = append(atts, platform.Attachment{Filename: a.Filename, ContentType: a.ContentType})
	}
	return platform.Message{
		ID:          m.ID.String(),
		ChannelID:   channelID,
		Author:      m.Author.ID.String(),
		Content:     m.Content,
		CreatedAt:   m.ID.Time(),
		Attachments: atts,
	}
}

func classify(op string, err error) error {
	var httpErr *httputil.HTTPError
	if errors.As(err, &httpErr) {
		kind := perrors.KindTransport
		switch httpErr.Status {
		case http.StatusForbidden, http.StatusUnauthorized:
			kind = perrors.KindPermissionDenied
		case http.StatusNotFound:
			kind = perrors.KindNotFound
		}
		return perrors.WithStatus(platformName, op, kind, httpErr.Status, err)
	}
	return perrors.New(platformName, op, perrors.KindTransport, err)
}
