package discord

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	dc "github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/gateway"
	"github.com/diamondburned/arikawa/v3/utils/httputil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/p-blackswan/channel-sweeper/internal/errors"
	"github.com/p-blackswan/channel-sweeper/internal/platform"
)

type mockDiscordAPI struct {
	guilds     []dc.Guild
	channels   map[dc.GuildID][]dc.Channel
	channelErr map[dc.GuildID]error
	messages   []dc.Message
	before     dc.MessageID
	limit      uint
	usedBefore bool
	deleteErr  error
	deleted    []dc.MessageID
	sent       []string
}

func (m *mockDiscordAPI) Guilds(_ context.Context) ([]dc.Guild, error) {
	return m.guilds, nil
}

func (m *mockDiscordAPI) Channels(_ context.Context, guildID dc.GuildID) ([]dc.Channel, error) {
	if err := m.channelErr[guildID]; err != nil {
		return nil, err
	}
	return m.channels[guildID], nil
}

func (m *mockDiscordAPI) Messages(_ context.Context, _ dc.ChannelID, limit uint) ([]dc.Message, error) {
	m.limit = limit
	return m.messages, nil
}

func (m *mockDiscordAPI) MessagesBefore(_ context.Context, _ dc.ChannelID, before dc.MessageID, limit uint) ([]dc.Message, error) {
	m.usedBefore = true
	m.before = before
	m.limit = limit
	return m.messages, nil
}

func (m *mockDiscordAPI) DeleteMessage(_ context.Context, _ dc.ChannelID, messageID dc.MessageID) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = append(m.deleted, messageID)
	return nil
}

func (m *mockDiscordAPI) SendMessage(_ context.Context, _ dc.ChannelID, content string) error {
	m.sent = append(m.sent, content)
	return nil
}

func TestClient_ChannelsTextOnlyAcrossGuilds(t *testing.T) {
	api := &mockDiscordAPI{
		guilds: []dc.Guild{{ID: 1}, {ID: 2}, {ID: 3}},
		channels: map[dc.GuildID][]dc.Channel{
			1: {{ID: 10, Name: "general", Type: dc.GuildText}, {ID: 11, Name: "voice", Type: dc.GuildVoice}},
			2: {{ID: 20, Name: "images", Type: dc.GuildText}},
		},
		channelErr: map[dc.GuildID]error{3: &httputil.HTTPError{Status: http.StatusForbidden}},
	}
	c := NewClient(api, zerolog.Nop())

	chs, err := c.Channels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []platform.Channel{{ID: "10", Name: "general"}, {ID: "20", Name: "images"}}, chs)
}

func TestClient_HistoryBeforeUsesSnowflake(t *testing.T) {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	msgID := dc.MessageID(dc.NewSnowflake(created))
	api := &mockDiscordAPI{messages: []dc.Message{{
		ID:          msgID,
		Author:      dc.User{ID: 42},
		Content:     "cat",
		Attachments: []dc.Attachment{{Filename: "cat.png", ContentType: "image/png"}},
	}}}
	c := NewClient(api, zerolog.Nop())
	cutoff := created.Add(time.Hour)

	msgs, err := c.History(context.Background(), "100", platform.HistoryQuery{Before: cutoff})
	require.NoError(t, err)
	require.True(t, api.usedBefore)
	assert.Equal(t, uint(0), api.limit)
	assert.Equal(t, cutoff.Unix(), api.before.Time().Unix())

	require.Len(t, msgs, 1)
	assert.Equal(t, msgID.String(), msgs[0].ID)
	assert.Equal(t, "100", msgs[0].ChannelID)
	assert.Equal(t, "42", msgs[0].Author)
	assert.Equal(t, created.Unix(), msgs[0].CreatedAt.Unix())
	assert.Equal(t, []platform.Attachment{{Filename: "cat.png", ContentType: "image/png"}}, msgs[0].Attachments)
}

func TestClient_HistoryRecentWithLimit(t *testing.T) {
	api := &mockDiscordAPI{}
	c := NewClient(api, zerolog.Nop())

	_, err := c.History(context.Background(), "100", platform.HistoryQuery{Limit: 100})
	require.NoError(t, err)
	assert.False(t, api.usedBefore)
	assert.Equal(t, uint(100), api.limit)
}

func TestClient_InvalidChannelIsNotFound(t *testing.T) {
	c := NewClient(&mockDiscordAPI{}, zerolog.Nop())

	_, err := c.History(context.Background(), "general", platform.HistoryQuery{})
	assert.ErrorIs(t, err, perrors.ErrNotFound)
}

func TestClient_DeleteMessageClassifiesErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want perrors.Kind
	}{
		{"forbidden", &httputil.HTTPError{Status: http.StatusForbidden}, perrors.KindPermissionDenied},
		{"not found", &httputil.HTTPError{Status: http.StatusNotFound}, perrors.KindNotFound},
		{"server error", &httputil.HTTPError{Status: http.StatusBadGateway}, perrors.KindTransport},
		{"network", errors.New("connection reset"), perrors.KindTransport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClient(&mockDiscordAPI{deleteErr: tt.err}, zerolog.Nop())
			err := c.DeleteMessage(context.Background(), "100", "200")
			require.Error(t, err)
			assert.Equal(t, tt.want, perrors.KindOf(err))
		})
	}
}

func TestClient_DeleteAndSend(t *testing.T) {
	api := &mockDiscordAPI{}
	c := NewClient(api, zerolog.Nop())

	require.NoError(t, c.DeleteMessage(context.Background(), "100", "200"))
	require.NoError(t, c.Send(context.Background(), "100", "hello"))
	assert.Equal(t, []dc.MessageID{200}, api.deleted)
	assert.Equal(t, []string{"hello"}, api.sent)
	assert.Equal(t, "discord", c.Name())

	err := c.DeleteMessage(context.Background(), "100", "abc")
	assert.ErrorIs(t, err, perrors.ErrInvalidInput)
}

func TestInbound(t *testing.T) {
	user := &gateway.MessageCreateEvent{Message: dc.Message{
		ChannelID: 100, Author: dc.User{ID: 7}, Content: "!set_interval 5",
	}}
	in, ok := inbound(user)
	require.True(t, ok)
	assert.Equal(t, platform.Inbound{ChannelID: "100", UserID: "7", Text: "!set_interval 5"}, in)

	bot := &gateway.MessageCreateEvent{Message: dc.Message{
		ChannelID: 100, Author: dc.User{ID: 8, Bot: true}, Content: "!set_interval 5",
	}}
	_, ok = inbound(bot)
	assert.False(t, ok)
}
