package slack

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/p-blackswan/channel-sweeper/internal/platform"
)

// acker acknowledges Socket Mode envelopes.
type acker interface {
	Ack(req socketmode.Request, payload ...interface{})
}

// App is the Slack bot application using Socket Mode.
type App struct {
	api       *slack.Client
	socket    *socketmode.Client
	acker     acker
	client    *Client
	botUserID string
	handlers  sync.WaitGroup
	logger    zerolog.Logger
}

// NewApp creates a new Slack bot app.
func NewApp(botToken, appToken string, logger zerolog.Logger) *App {
	api := slack.New(
		botToken,
		slack.OptionAppLevelToken(appToken),
	)
	socket := socketmode.New(api)

	return &App{
		api:    api,
		socket: socket,
		acker:  socket,
		client: NewClient(api, logger),
		logger: logger.With().Str("component", "slack").Logger(),
	}
}

// Client returns the Web API client of the app.
func (a *App) Client() *Client {
	return a.client
}

// Run starts the Socket Mode event loop. Blocks until context is cancelled.
func (a *App) Run(ctx context.Context, h platform.EventHandler) error {
	a.logger.Info().Msg("starting Slack Socket Mode connection")

	if resp, err := a.api.AuthTestContext(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("auth test failed, own messages will not be filtered")
	} else {
		a.botUserID = resp.UserID
		a.logger.Info().Str("bot_user_id", resp.UserID).Str("team", resp.Team).Msg("Slack bot identity resolved")
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-a.socket.Events:
				if !ok {
					return
				}
				a.dispatch(ctx, evt, h)
			}
		}
	}()

	err := a.socket.RunContext(ctx)
	a.handlers.Wait()
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("socket mode error: %w", err)
	}
	a.logger.Info().Msg("Slack Socket Mode stopped")
	return nil
}

// dispatch routes Socket Mode events to the handler.
func (a *App) dispatch(ctx context.Context, evt socketmode.Event, h platform.EventHandler) {
	switch evt.Type {
	case socketmode.EventTypeConnected:
		a.logger.Info().Msg("Slack connected")
		h.OnReady(ctx)
	case socketmode.EventTypeConnectionError:
		a.logger.Warn().Interface("data", evt.Data).Msg("Slack connection error")
	case socketmode.EventTypeEventsAPI:
		// Slack requires the ack within 3 seconds
		if a.acker != nil && evt.Request != nil {
			a.acker.Ack(*evt.Request)
		}
		eventsAPIEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
		if !ok {
			a.logger.Warn().Str("type", string(evt.Type)).Msg("failed to cast events_api data")
			return
		}
		if eventsAPIEvent.Type != slackevents.CallbackEvent {
			return
		}
		// Commands can sweep a whole channel, so they run off the event
		// loop and later envelopes are still acked in time.
		if in, ok := a.inbound(eventsAPIEvent.InnerEvent); ok {
			a.handlers.Add(1)
			go func() {
				defer a.handlers.Done()
				h.OnMessage(ctx, in)
			}()
		}
	default:
		a.logger.Debug().Str("type", string(evt.Type)).Msg("unhandled event type")
	}
}

// inbound extracts a user message, skipping bots, edits and deletions.
func (a *App) inbound(inner slackevents.EventsAPIInnerEvent) (platform.Inbound, bool) {
	ev, ok := inner.Data.(*slackevents.MessageEvent)
	if !ok {
		return platform.Inbound{}, false
	}
	if ev.User == "" || ev.SubType != "" || ev.BotID != "" || ev.User == a.botUserID {
		return platform.Inbound{}, false
	}
	return platform.Inbound{ChannelID: ev.Channel, UserID: ev.User, Text: ev.Text}, true
}
