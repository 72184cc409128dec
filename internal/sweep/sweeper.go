// Package sweep deletes channel messages older than a cutoff.
package sweep

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	perrors "github.com/p-blackswan/channel-sweeper/internal/errors"
	"github.com/p-blackswan/channel-sweeper/internal/metrics"
	"github.com/p-blackswan/channel-sweeper/internal/platform"
	"github.com/p-blackswan/channel-sweeper/internal/runid"
)

// Failure is a message that could not be deleted.
type Failure struct {
	MessageID string
	Kind      perrors.Kind
	Err       error
}

// Result summarizes one sweep of one channel.
type Result struct {
	RunID     string
	ChannelID string
	Matched   int
	Deleted   int

	// Gone counts messages that were already deleted when the sweep
	// reached them.
	Gone     int
	Failures []Failure
}

// Sweeper runs the filter-and-delete routine against a platform.
type Sweeper struct {
	client  platform.Client
	policy  Policy
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewSweeper creates a new Sweeper.
func NewSweeper(client platform.Client, policy Policy, m *metrics.Metrics, logger zerolog.Logger) *Sweeper {
	return &Sweeper{
		client:  client,
		policy:  policy,
		metrics: m,
		logger:  logger.With().Str("component", "sweep").Str("profile", string(policy.Profile)).Logger(),
	}
}

// Policy returns the active policy.
func (s *Sweeper) Policy() Policy {
	return s.policy
}

// Sweep deletes the messages of channelID eligible at cutoff.
//
// A failed delete is recorded in the result and the sweep moves on to the
// next message. Only a failed enumeration or a cancelled context ends the
// sweep early; the partial result is returned alongside the error.
func (s *Sweeper) Sweep(ctx context.Context, channelID string, cutoff time.Time) (Result, error) {
	start := time.Now()
	ctx, id := runid.Ensure(ctx)
	res := Result{RunID: id, ChannelID: channelID}
	log := s.logger.With().Str("run_id", res.RunID).Str("channel", channelID).Logger()

	msgs, err := s.client.History(ctx, channelID, s.policy.Query(cutoff))
	if err != nil {
		s.metrics.RecordSweep(string(s.policy.Profile), "error", time.Since(start).Seconds())
		return res, fmt.Errorf("listing messages in %s: %w", channelID, err)
	}

	eligible := s.policy.Filter(msgs, cutoff)
	res.Matched = len(eligible)
	log.Info().
		Int("found", res.Matched).
		Int("scanned", len(msgs)).
		Time("cutoff", cutoff).
		Msg("found messages to delete")

	for _, m := range eligible {
		if err := ctx.Err(); err != nil {
			s.finish(log, &res, "cancelled", start)
			return res, err
		}

		log.Info().Str("message", m.ID).Str("author", m.Author).Msg("attempting to delete message")
		if err := s.deleteOne(ctx, channelID, m.ID); err != nil {
			kind := perrors.KindOf(err)
			if kind == perrors.KindNotFound {
				res.Gone++
				log.Info().Str("message", m.ID).Msg("message already gone")
				continue
			}
			res.Failures = append(res.Failures, Failure{MessageID: m.ID, Kind: kind, Err: err})
			s.metrics.RecordDeleteFailure(string(kind))
			log.Error().Err(err).Str("message", m.ID).Str("kind", string(kind)).Msg("failed to delete message")
			continue
		}
		res.Deleted++
		log.Info().
			Str("message", m.ID).
			Str("author", m.Author).
			Str("content", m.Content).
			Msg("deleted message")
	}

	s.finish(log, &res, "ok", start)
	return res, nil
}

func (s *Sweeper) finish(log zerolog.Logger, res *Result, outcome string, start time.Time) {
	if outcome == "ok" && len(res.Failures) > 0 {
		outcome = "partial"
	}
	s.metrics.RecordSweep(string(s.policy.Profile), outcome, time.Since(start).Seconds())
	s.metrics.RecordDeleted(string(s.policy.Profile), res.Deleted)

	log.Info().
		Int("matched", res.Matched).
		Int("deleted", res.Deleted).
		Int("gone", res.Gone).
		Int("failed", len(res.Failures)).
		Str("outcome", outcome).
		Dur("took", time.Since(start)).
		Msg("sweep finished")
}

// deleteOne converts a panicking client call into an error.
func (s *Sweeper) deleteOne(ctx context.Context, channelID, messageID string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("delete %s panicked: %v", messageID, r)
		}
	}()
	return s.client.DeleteMessage(ctx, channelID, messageID)
}
