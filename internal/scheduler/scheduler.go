// Package scheduler runs periodic per-channel sweeps.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/p-blackswan/channel-sweeper/internal/metrics"
	"github.com/p-blackswan/channel-sweeper/internal/runid"
	"github.com/p-blackswan/channel-sweeper/internal/settings"
	"github.com/p-blackswan/channel-sweeper/internal/sweep"
)

// State is the lifecycle state of the scheduler.
type State int

const (
	Idle State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "idle"
}

// Sweeper runs one sweep of one channel.
type Sweeper interface {
	Sweep(ctx context.Context, channelID string, cutoff time.Time) (sweep.Result, error)
}

// Config holds scheduler configuration.
type Config struct {
	// SweepTimeout bounds a single channel sweep. Zero means no bound.
	SweepTimeout time.Duration
}

// Scheduler owns one cron entry per channel. Every entry fires on the
// channel's own interval, so a slow channel never delays another one.
type Scheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	store   *settings.Store
	sweeper Sweeper
	cfg     Config
	state   State
	ctx     context.Context
	entries map[string]cron.EntryID
	locks   map[string]*sync.Mutex

	now     func() time.Time
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// New creates an idle scheduler.
func New(store *settings.Store, sweeper Sweeper, cfg Config, m *metrics.Metrics, logger zerolog.Logger) *Scheduler {
	logger = logger.With().Str("component", "scheduler").Logger()
	cl := cronLogger{logger: logger}

	return &Scheduler{
		cron:    cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl))),
		store:   store,
		sweeper: sweeper,
		cfg:     cfg,
		state:   Idle,
		ctx:     context.Background(),
		entries: make(map[string]cron.EntryID),
		locks:   make(map[string]*sync.Mutex),
		now:     time.Now,
		metrics: m,
		logger:  logger,
	}
}

// Start moves the scheduler from Idle to Running and schedules every known
// channel. It returns false if the scheduler was already running.
func (s *Scheduler) Start(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Running {
		return false
	}
	s.ctx = runid.Clear(ctx)
	s.state = Running

	for _, id := range s.store.Channels() {
		s.scheduleLocked(id)
	}
	s.cron.Start()
	s.metrics.SetChannelsScheduled(len(s.entries))

	s.logger.Info().Int("channels", len(s.entries)).Msg("scheduler started")
	return true
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Running reports whether Start has been called.
func (s *Scheduler) Running() bool {
	return s.State() == Running
}

// Reschedule replaces the channel's entry with one using its current
// interval. The next tick is one new interval from now; a sweep already in
// flight is left to finish. On an idle scheduler this is a no-op, the new
// interval is picked up by Start.
func (s *Scheduler) Reschedule(channelID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Running {
		return
	}
	s.scheduleLocked(channelID)
	s.metrics.SetChannelsScheduled(len(s.entries))
}

// Ensure schedules the channel if it has no entry yet.
func (s *Scheduler) Ensure(channelID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Running {
		return
	}
	if _, ok := s.entries[channelID]; ok {
		return
	}
	s.scheduleLocked(channelID)
	s.metrics.SetChannelsScheduled(len(s.entries))
}

// Interval returns the period the channel is currently scheduled at.
func (s *Scheduler) Interval(channelID string) (time.Duration, bool) {
	entry, ok := s.entry(channelID)
	if !ok {
		return 0, false
	}
	sched, ok := entry.Schedule.(cron.ConstantDelaySchedule)
	if !ok {
		return 0, false
	}
	return sched.Delay, true
}

// Next returns when the channel is next swept.
func (s *Scheduler) Next(channelID string) (time.Time, bool) {
	entry, ok := s.entry(channelID)
	if !ok {
		return time.Time{}, false
	}
	return entry.Next, true
}

// Scheduled returns the number of channels with an entry.
func (s *Scheduler) Scheduled() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Stop halts the timers and waits for in-flight sweeps up to timeout.
func (s *Scheduler) Stop(timeout time.Duration) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info().Msg("scheduler stopped")
	case <-time.After(timeout):
		s.logger.Warn().Dur("timeout", timeout).Msg("scheduler stop timed out with sweeps in flight")
	}
}

// Exclusive runs fn while holding the channel's sweep lock. It returns
// false without calling fn if a sweep of the channel is already running.
func (s *Scheduler) Exclusive(channelID string, fn func()) bool {
	lock := s.channelLock(channelID)
	if !lock.TryLock() {
		return false
	}
	defer lock.Unlock()
	fn()
	return true
}

// RunOnce sweeps a channel immediately with its stored cutoff. A sweep
// already running for the same channel makes this a no-op returning false.
func (s *Scheduler) RunOnce(channelID string) bool {
	ran := s.Exclusive(channelID, func() { s.sweepChannel(channelID) })
	if !ran {
		s.logger.Warn().Str("channel", channelID).Msg("previous sweep still running, skipping tick")
	}
	return ran
}

func (s *Scheduler) sweepChannel(channelID string) {
	s.mu.Lock()
	parent := s.ctx
	s.mu.Unlock()

	cs := s.store.GetOrDefault(channelID)
	cutoff := s.now().Add(-cs.Cutoff)

	ctx := parent
	if s.cfg.SweepTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, s.cfg.SweepTimeout)
		defer cancel()
	}

	ctx, id := runid.Ensure(ctx)
	log := s.logger.With().Str("run_id", id).Str("channel", channelID).Logger()

	log.Debug().Time("cutoff", cutoff).Msg("sweep tick")
	if _, err := s.sweeper.Sweep(ctx, channelID, cutoff); err != nil {
		log.Error().Err(err).Msg("sweep failed")
	}
}

func (s *Scheduler) scheduleLocked(channelID string) {
	if id, ok := s.entries[channelID]; ok {
		s.cron.Remove(id)
	}

	cs := s.store.GetOrDefault(channelID)
	if cs.Interval < time.Second {
		s.logger.Warn().
			Str("channel", channelID).
			Dur("interval", cs.Interval).
			Msg("interval below one second, sweeping every second")
	}

	id := s.cron.Schedule(cron.Every(cs.Interval), cron.FuncJob(func() {
		s.RunOnce(channelID)
	}))
	s.entries[channelID] = id

	s.logger.Info().Str("channel", channelID).Dur("interval", cs.Interval).Msg("channel scheduled")
}

func (s *Scheduler) entry(channelID string) (cron.Entry, bool) {
	s.mu.Lock()
	id, ok := s.entries[channelID]
	s.mu.Unlock()
	if !ok {
		return cron.Entry{}, false
	}
	e := s.cron.Entry(id)
	return e, e.Valid()
}

func (s *Scheduler) channelLock(channelID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[channelID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[channelID] = l
	}
	return l
}

// cronLogger routes cron's logs through zerolog.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
