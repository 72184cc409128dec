package discord

import (
	"context"
	"fmt"

	"github.com/diamondburned/arikawa/v3/gateway"
	"github.com/diamondburned/arikawa/v3/state"
	"github.com/rs/zerolog"

	"github.com/p-blackswan/channel-sweeper/internal/platform"
)

// Intents needed to see guild channels and read command text.
const Intents = gateway.IntentGuilds | gateway.IntentGuildMessages | gateway.IntentMessageContent

// Gateway keeps the Discord websocket session open and forwards events.
type Gateway struct {
	state  *state.State
	client *Client
	logger zerolog.Logger
}

// NewGateway creates a gateway for the given bot token.
func NewGateway(token string, logger zerolog.Logger) *Gateway {
	s := state.New("Bot " + token)
	s.AddIntents(Intents)

	return &Gateway{
		state:  s,
		client: NewClient(NewAPI(s.Client), logger),
		logger: logger.With().Str("component", "discord").Logger(),
	}
}

// Client returns the REST client sharing the gateway session.
func (g *Gateway) Client() *Client {
	return g.client
}

// Run opens the session and blocks until ctx is cancelled.
func (g *Gateway) Run(ctx context.Context, h platform.EventHandler) error {
	g.state.AddHandler(func(e *gateway.ReadyEvent) {
		g.logger.Info().Str("user", e.User.Username).Int("guilds", len(e.Guilds)).Msg("Discord ready")
		h.OnReady(ctx)
	})
	g.state.AddHandler(func(e *gateway.MessageCreateEvent) {
		if in, ok := inbound(e); ok {
			h.OnMessage(ctx, in)
		}
	})

	g.logger.Info().Msg("opening Discord gateway")
	if err := g.state.Open(ctx); err != nil {
		return fmt.Errorf("opening discord gateway: %w", err)
	}

	<-ctx.Done()
	if err := g.state.Close(); err != nil {
		g.logger.Warn().Err(err).Msg("closing Discord gateway")
	}
	g.logger.Info().Msg("Discord gateway stopped")
	return nil
}

// inbound skips bot and webhook authors, including the sweeper itself.
func inbound(e *gateway.MessageCreateEvent) (platform.Inbound, bool) {
	if e.Author.Bot || e.WebhookID.IsValid() {
		return platform.Inbound{}, false
	}
	return platform.Inbound{
		ChannelID: e.ChannelID.String(),
		UserID:    e.Author.ID.String(),
		Text:      e.Content,
	}, true
}
