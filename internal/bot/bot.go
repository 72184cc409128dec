// Package bot connects gateway events to the scheduler and command handler.
package bot

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/channel-sweeper/internal/platform"
	"github.com/p-blackswan/channel-sweeper/internal/settings"
)

// Scheduler is the part of the sweep scheduler the bot drives.
type Scheduler interface {
	Start(ctx context.Context) bool
	Ensure(channelID string)
	Running() bool
}

// Commands handles prefixed chat commands.
type Commands interface {
	Handle(ctx context.Context, in platform.Inbound) bool
}

// Bot implements platform.EventHandler.
type Bot struct {
	client   platform.Client
	store    *settings.Store
	sched    Scheduler
	commands Commands
	ready    atomic.Bool
	logger   zerolog.Logger
}

// New creates a bot.
func New(client platform.Client, store *settings.Store, sched Scheduler, commands Commands, logger zerolog.Logger) *Bot {
	return &Bot{
		client:   client,
		store:    store,
		sched:    sched,
		commands: commands,
		logger:   logger.With().Str("component", "bot").Logger(),
	}
}

// OnReady registers every visible channel and starts the scheduler. A
// reconnect keeps the running scheduler and only adds new channels.
func (b *Bot) OnReady(ctx context.Context) {
	channels, err := b.client.Channels(ctx)
	if err != nil {
		b.logger.Error().Err(err).Msg("failed to list channels, only configured channels will be swept")
	}
	for _, ch := range channels {
		b.store.GetOrDefault(ch.ID)
	}

	if !b.sched.Start(ctx) {
		for _, ch := range channels {
			b.sched.Ensure(ch.ID)
		}
	}
	b.ready.Store(true)

	b.logger.Info().
		Str("platform", b.client.Name()).
		Int("channels", len(channels)).
		Msg("bot ready, sweeping channels")
}

// OnMessage forwards the message to the command handler. A panic while
// handling one message is logged and does not reach the gateway loop.
func (b *Bot) OnMessage(ctx context.Context, in platform.Inbound) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().
				Interface("panic", r).
				Str("channel", in.ChannelID).
				Str("user", in.UserID).
				Msg("command handler panicked")
		}
	}()

	if b.commands.Handle(ctx, in) {
		b.logger.Debug().Str("channel", in.ChannelID).Str("user", in.UserID).Msg("command handled")
	}
}

// Ready reports whether the platform has signalled ready at least once.
func (b *Bot) Ready() bool {
	return b.ready.Load()
}
