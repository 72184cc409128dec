// Package command implements the "!" chat commands of the bot.
package command

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	perrors "github.com/p-blackswan/channel-sweeper/internal/errors"
	"github.com/p-blackswan/channel-sweeper/internal/metrics"
	"github.com/p-blackswan/channel-sweeper/internal/platform"
	"github.com/p-blackswan/channel-sweeper/internal/runid"
	"github.com/p-blackswan/channel-sweeper/internal/settings"
	"github.com/p-blackswan/channel-sweeper/internal/sweep"
)

const (
	cmdSetInterval          = "set_interval"
	cmdSetCutoff            = "set_cutoff_minutes"
	cmdDeleteMessagesBefore = "delete_messages_before"
)

// Scheduler is the part of the sweep scheduler commands drive.
type Scheduler interface {
	Start(ctx context.Context) bool
	Running() bool
	Reschedule(channelID string)
	Ensure(channelID string)
	Exclusive(channelID string, fn func()) bool
}

// Sweeper runs an ad-hoc sweep.
type Sweeper interface {
	Sweep(ctx context.Context, channelID string, cutoff time.Time) (sweep.Result, error)
}

// Config holds command handler configuration.
type Config struct {
	Prefix string
	Locale string
	// RateLimit is the number of commands a user may run per minute.
	RateLimit int
}

// Handler parses inbound messages and runs commands.
type Handler struct {
	cfg       Config
	store     *settings.Store
	scheduler Scheduler
	sweeper   Sweeper
	replier   platform.Client
	catalog   Catalog
	limiter   *RateLimiter
	metrics   *metrics.Metrics
	now       func() time.Time
	logger    zerolog.Logger
}

// NewHandler creates a new command handler.
func NewHandler(cfg Config, store *settings.Store, sched Scheduler, sweeper Sweeper, replier platform.Client, m *metrics.Metrics, logger zerolog.Logger) *Handler {
	if cfg.Prefix == "" {
		cfg.Prefix = "!"
	}
	return &Handler{
		cfg:       cfg,
		store:     store,
		scheduler: sched,
		sweeper:   sweeper,
		replier:   replier,
		catalog:   CatalogFor(cfg.Locale),
		limiter:   NewRateLimiter(cfg.RateLimit, time.Minute),
		metrics:   m,
		now:       time.Now,
		logger:    logger.With().Str("component", "command").Logger(),
	}
}

// Handle runs the command in the message, if any. It returns false for
// messages that are not commands this handler knows.
func (h *Handler) Handle(ctx context.Context, in platform.Inbound) bool {
	cmd, ok := Parse(h.cfg.Prefix, in.Text)
	if !ok {
		return false
	}

	var run func(context.Context, platform.Inbound, []string) (string, string)
	switch cmd.Name {
	case cmdSetInterval:
		run = h.setInterval
	case cmdSetCutoff:
		run = h.setCutoff
	case cmdDeleteMessagesBefore:
		run = h.deleteMessagesBefore
	default:
		return false
	}

	ctx, id := runid.Ensure(ctx)
	log := h.logger.With().Str("run_id", id).Str("command", cmd.Name).Str("user", in.UserID).Str("channel", in.ChannelID).Logger()

	if !h.limiter.Allow(in.UserID) {
		log.Warn().Msg("rate limited")
		h.metrics.RecordCommand(cmd.Name, "rate_limited")
		h.reply(ctx, in.ChannelID, h.catalog.RateLimited)
		return true
	}

	log.Info().Strs("args", cmd.Args).Msg("command received")
	reply, status := run(ctx, in, cmd.Args)
	h.metrics.RecordCommand(cmd.Name, status)
	h.reply(ctx, in.ChannelID, reply)
	return true
}

func (h *Handler) setInterval(ctx context.Context, in platform.Inbound, args []string) (string, string) {
	if len(args) != 1 {
		return h.catalog.usage(h.cfg.Prefix, cmdSetInterval, "<minutes>"), "usage"
	}
	minutes, err := parseMinutes(args[0])
	if err != nil {
		return h.catalog.usage(h.cfg.Prefix, cmdSetInterval, "<minutes>"), "usage"
	}

	h.store.SetInterval(in.ChannelID, minutes)
	if h.scheduler.Running() {
		h.scheduler.Reschedule(in.ChannelID)
		return fmt.Sprintf(h.catalog.IntervalChanged, minutes), "ok"
	}
	h.scheduler.Start(ctx)
	return fmt.Sprintf(h.catalog.IntervalSet, minutes), "ok"
}

func (h *Handler) setCutoff(_ context.Context, in platform.Inbound, args []string) (string, string) {
	if len(args) != 1 {
		return h.catalog.usage(h.cfg.Prefix, cmdSetCutoff, "<minutes>"), "usage"
	}
	minutes, err := parseMinutes(args[0])
	if err != nil {
		return h.catalog.usage(h.cfg.Prefix, cmdSetCutoff, "<minutes>"), "usage"
	}

	h.store.SetCutoff(in.ChannelID, minutes)
	h.scheduler.Ensure(in.ChannelID)
	return fmt.Sprintf(h.catalog.CutoffSet, minutes), "ok"
}

// deleteMessagesBefore sweeps a channel once with a cutoff of now minus
// the given minutes, without touching the channel's stored settings.
func (h *Handler) deleteMessagesBefore(ctx context.Context, _ platform.Inbound, args []string) (string, string) {
	usage := h.catalog.usage(h.cfg.Prefix, cmdDeleteMessagesBefore, "<channel_id> <minutes>")
	if len(args) != 2 {
		return usage, "usage"
	}
	channelID, err := parseChannelRef(args[0])
	if err != nil {
		return usage, "usage"
	}
	minutes, err := parseMinutes(args[1])
	if err != nil {
		return usage, "usage"
	}

	cutoff := h.now().Add(-time.Duration(minutes) * time.Minute)
	var res sweep.Result
	ran := h.scheduler.Exclusive(channelID, func() {
		res, err = h.sweeper.Sweep(ctx, channelID, cutoff)
	})
	if !ran {
		h.logger.Warn().Str("target", channelID).Msg("sweep already running, skipping one-off sweep")
		return fmt.Sprintf(h.catalog.SweepRunning, channelID), "busy"
	}
	if err != nil {
		h.logger.Error().Err(err).Str("target", channelID).Msg("one-off sweep failed")
		return h.errorReply(channelID, err), string(perrors.KindOf(err))
	}

	h.logger.Info().
		Str("target", channelID).
		Int("matched", res.Matched).
		Int("deleted", res.Deleted).
		Int("gone", res.Gone).
		Msg("one-off sweep finished")

	switch {
	case res.Deleted == 0 && len(res.Failures) == 0:
		return h.catalog.NothingToDelete, "ok"
	case res.Deleted == 0:
		f := res.Failures[0]
		return h.failureReply(f.Err), string(f.Kind)
	case len(res.Failures) > 0:
		return fmt.Sprintf(h.catalog.DeletedPartial, res.Deleted, len(res.Failures)), "partial"
	}
	return fmt.Sprintf(h.catalog.Deleted, res.Deleted), "ok"
}

// failureReply describes a failed delete. A missing channel cannot be the
// cause once the history was read.
func (h *Handler) failureReply(err error) string {
	if perrors.KindOf(err) == perrors.KindPermissionDenied {
		return h.catalog.PermissionDenied
	}
	return fmt.Sprintf(h.catalog.DeleteFailed, err)
}

func (h *Handler) errorReply(channelID string, err error) string {
	switch perrors.KindOf(err) {
	case perrors.KindPermissionDenied:
		return h.catalog.PermissionDenied
	case perrors.KindNotFound:
		return fmt.Sprintf(h.catalog.ChannelNotFound, channelID)
	}
	return fmt.Sprintf(h.catalog.DeleteFailed, err)
}

func (h *Handler) reply(ctx context.Context, channelID, text string) {
	if err := h.replier.Send(ctx, channelID, text); err != nil {
		h.logger.Error().Err(err).Str("channel", channelID).Msg("failed to send reply")
	}
}
