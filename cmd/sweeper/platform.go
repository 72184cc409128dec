package main

import (
	"fmt"

	"github.com/diamondburned/arikawa/v3/api"
	"github.com/rs/zerolog"
	slackgo "github.com/slack-go/slack"

	"github.com/p-blackswan/channel-sweeper/internal/config"
	"github.com/p-blackswan/channel-sweeper/internal/platform"
	"github.com/p-blackswan/channel-sweeper/internal/platform/discord"
	"github.com/p-blackswan/channel-sweeper/internal/platform/slack"
)

// connection is the REST client and realtime gateway of one platform.
type connection struct {
	client  platform.Client
	gateway platform.Gateway
}

func connect(cfg *config.Config, logger zerolog.Logger) (connection, error) {
	switch cfg.Platform {
	case config.PlatformDiscord:
		gw := discord.NewGateway(cfg.DiscordToken, logger)
		return connection{client: gw.Client(), gateway: gw}, nil
	case config.PlatformSlack:
		app := slack.NewApp(cfg.SlackBotToken, cfg.SlackAppToken, logger)
		return connection{client: app.Client(), gateway: app}, nil
	}
	return connection{}, fmt.Errorf("unknown platform %q", cfg.Platform)
}

// restClient builds a client without opening a gateway session.
func restClient(cfg *config.Config, logger zerolog.Logger) (platform.Client, error) {
	switch cfg.Platform {
	case config.PlatformDiscord:
		return discord.NewClient(discord.NewAPI(api.NewClient("Bot "+cfg.DiscordToken)), logger), nil
	case config.PlatformSlack:
		return slack.NewClient(slackgo.New(cfg.SlackBotToken), logger), nil
	}
	return nil, fmt.Errorf("unknown platform %q", cfg.Platform)
}
