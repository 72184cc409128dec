package main

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-blackswan/channel-sweeper/internal/config"
)

func TestConnect(t *testing.T) {
	tests := []struct {
		cfg  config.Config
		name string
	}{
		{config.Config{Platform: config.PlatformDiscord, DiscordToken: "token"}, "discord"},
		{config.Config{Platform: config.PlatformSlack, SlackBotToken: "xoxb", SlackAppToken: "xapp"}, "slack"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, err := connect(&tt.cfg, zerolog.Nop())
			require.NoError(t, err)
			assert.Equal(t, tt.name, conn.client.Name())
			assert.NotNil(t, conn.gateway)

			client, err := restClient(&tt.cfg, zerolog.Nop())
			require.NoError(t, err)
			assert.Equal(t, tt.name, client.Name())
		})
	}
}

func TestConnect_UnknownPlatform(t *testing.T) {
	_, err := connect(&config.Config{Platform: "irc"}, zerolog.Nop())
	assert.Error(t, err)

	_, err = restClient(&config.Config{Platform: "irc"}, zerolog.Nop())
	assert.Error(t, err)
}
