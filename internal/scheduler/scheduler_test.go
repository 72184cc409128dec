package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-blackswan/channel-sweeper/internal/runid"
	"github.com/p-blackswan/channel-sweeper/internal/settings"
	"github.com/p-blackswan/channel-sweeper/internal/sweep"
)

type sweepCall struct {
	channelID string
	cutoff    time.Time
	deadline  bool
	runID     string
}

// recordingSweeper implements Sweeper for testing.
type recordingSweeper struct {
	mu    sync.Mutex
	calls []sweepCall
	err   error
	block chan struct{}
	began chan struct{}
}

func (r *recordingSweeper) Sweep(ctx context.Context, channelID string, cutoff time.Time) (sweep.Result, error) {
	if r.began != nil {
		r.began <- struct{}{}
	}
	if r.block != nil {
		<-r.block
	}
	_, hasDeadline := ctx.Deadline()
	id, _ := runid.From(ctx)
	r.mu.Lock()
	r.calls = append(r.calls, sweepCall{channelID: channelID, cutoff: cutoff, deadline: hasDeadline, runID: id})
	r.mu.Unlock()
	return sweep.Result{ChannelID: channelID}, r.err
}

func (r *recordingSweeper) Calls() []sweepCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sweepCall(nil), r.calls...)
}

func newTestScheduler(t *testing.T, sw Sweeper) (*Scheduler, *settings.Store) {
	t.Helper()
	store := settings.NewStore(settings.Defaults{Interval: 60 * time.Minute, Cutoff: 720 * time.Minute})
	s := New(store, sw, Config{SweepTimeout: time.Minute}, nil, zerolog.Nop())
	t.Cleanup(func() { s.Stop(time.Second) })
	return s, store
}

func TestScheduler_StartsIdle(t *testing.T) {
	s, _ := newTestScheduler(t, &recordingSweeper{})
	assert.Equal(t, Idle, s.State())
	assert.False(t, s.Running())
	assert.Equal(t, "idle", s.State().String())
}

func TestScheduler_StartSchedulesKnownChannels(t *testing.T) {
	s, store := newTestScheduler(t, &recordingSweeper{})
	store.GetOrDefault("C1")
	store.SetInterval("C2", 5)

	assert.True(t, s.Start(context.Background()))
	assert.Equal(t, Running, s.State())
	assert.Equal(t, 2, s.Scheduled())

	d, ok := s.Interval("C1")
	require.True(t, ok)
	assert.Equal(t, time.Hour, d)

	d, ok = s.Interval("C2")
	require.True(t, ok)
	assert.Equal(t, 5*time.Minute, d)
}

func TestScheduler_StartIsIdempotent(t *testing.T) {
	s, _ := newTestScheduler(t, &recordingSweeper{})
	assert.True(t, s.Start(context.Background()))
	assert.False(t, s.Start(context.Background()))
	assert.True(t, s.Running())
}

func TestScheduler_RescheduleKeepsRunning(t *testing.T) {
	s, store := newTestScheduler(t, &recordingSweeper{})
	store.GetOrDefault("C1")
	require.True(t, s.Start(context.Background()))

	store.SetInterval("C1", 30)
	before := time.Now()
	s.Reschedule("C1")

	assert.True(t, s.Running())
	d, ok := s.Interval("C1")
	require.True(t, ok)
	assert.Equal(t, 30*time.Minute, d)

	next, ok := s.Next("C1")
	require.True(t, ok)
	assert.WithinDuration(t, before.Add(30*time.Minute), next, 2*time.Second)
	assert.Equal(t, 1, s.Scheduled())
}

func TestScheduler_RescheduleWhileIdleIsDeferred(t *testing.T) {
	s, store := newTestScheduler(t, &recordingSweeper{})
	store.SetInterval("C1", 15)

	s.Reschedule("C1")
	assert.Equal(t, 0, s.Scheduled())

	s.Start(context.Background())
	d, ok := s.Interval("C1")
	require.True(t, ok)
	assert.Equal(t, 15*time.Minute, d)
}

func TestScheduler_EnsureAddsOnlyMissing(t *testing.T) {
	s, store := newTestScheduler(t, &recordingSweeper{})
	s.Start(context.Background())

	store.GetOrDefault("C9")
	s.Ensure("C9")
	assert.Equal(t, 1, s.Scheduled())

	store.SetInterval("C9", 2)
	s.Ensure("C9")
	d, _ := s.Interval("C9")
	assert.Equal(t, time.Hour, d, "Ensure must not reschedule an existing entry")
}

func TestScheduler_RunOnceUsesStoredCutoff(t *testing.T) {
	sw := &recordingSweeper{}
	s, store := newTestScheduler(t, sw)
	fixed := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }
	store.SetCutoff("C1", 90)

	assert.True(t, s.RunOnce("C1"))

	calls := sw.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "C1", calls[0].channelID)
	assert.Equal(t, fixed.Add(-90*time.Minute), calls[0].cutoff)
	assert.True(t, calls[0].deadline)
}

func TestScheduler_RunOnceSwallowsSweepErrors(t *testing.T) {
	sw := &recordingSweeper{err: errors.New("transport down")}
	s, _ := newTestScheduler(t, sw)

	assert.NotPanics(t, func() { s.RunOnce("C1") })
	assert.Len(t, sw.Calls(), 1)
}

func TestScheduler_SkipsOverlappingSweepOfSameChannel(t *testing.T) {
	sw := &recordingSweeper{block: make(chan struct{}), began: make(chan struct{}, 1)}
	s, _ := newTestScheduler(t, sw)

	done := make(chan bool)
	go func() { done <- s.RunOnce("C1") }()
	<-sw.began

	assert.False(t, s.RunOnce("C1"))

	close(sw.block)
	assert.True(t, <-done)
	assert.Len(t, sw.Calls(), 1)
}

func TestScheduler_ExclusiveSkippedWhileSweepRuns(t *testing.T) {
	sw := &recordingSweeper{block: make(chan struct{}), began: make(chan struct{}, 1)}
	s, _ := newTestScheduler(t, sw)

	done := make(chan bool)
	go func() { done <- s.RunOnce("C1") }()
	<-sw.began

	called := false
	assert.False(t, s.Exclusive("C1", func() { called = true }))
	assert.False(t, called)
	assert.True(t, s.Exclusive("C2", func() { called = true }))
	assert.True(t, called)

	close(sw.block)
	assert.True(t, <-done)
}

func TestScheduler_TickSkippedWhileExclusiveHeld(t *testing.T) {
	sw := &recordingSweeper{}
	s, _ := newTestScheduler(t, sw)

	held := make(chan struct{})
	release := make(chan struct{})
	done := make(chan bool)
	go func() {
		done <- s.Exclusive("C1", func() {
			close(held)
			<-release
		})
	}()
	<-held

	assert.False(t, s.RunOnce("C1"))
	assert.Empty(t, sw.Calls())

	close(release)
	require.True(t, <-done)
	assert.True(t, s.RunOnce("C1"))
	assert.Len(t, sw.Calls(), 1)
}

func TestScheduler_SweepsDoNotInheritStartRunID(t *testing.T) {
	sw := &recordingSweeper{}
	s, _ := newTestScheduler(t, sw)

	require.True(t, s.Start(runid.With(context.Background(), "cmd-1")))
	s.RunOnce("C1")
	s.RunOnce("C1")

	calls := sw.Calls()
	require.Len(t, calls, 2)
	for _, c := range calls {
		assert.NotEmpty(t, c.runID)
		assert.NotEqual(t, "cmd-1", c.runID)
	}
	assert.NotEqual(t, calls[0].runID, calls[1].runID)
}

func TestScheduler_InFlightSweepSurvivesReschedule(t *testing.T) {
	sw := &recordingSweeper{block: make(chan struct{}), began: make(chan struct{}, 1)}
	s, store := newTestScheduler(t, sw)
	store.GetOrDefault("C1")
	s.Start(context.Background())

	done := make(chan bool)
	go func() { done <- s.RunOnce("C1") }()
	<-sw.began

	store.SetInterval("C1", 30)
	s.Reschedule("C1")
	close(sw.block)

	assert.True(t, <-done)
	assert.True(t, s.Running())
	d, _ := s.Interval("C1")
	assert.Equal(t, 30*time.Minute, d)
}

func TestScheduler_DegenerateIntervalStillTicks(t *testing.T) {
	sw := &recordingSweeper{}
	s, store := newTestScheduler(t, sw)
	store.SetInterval("C1", 0)

	s.Start(context.Background())

	d, ok := s.Interval("C1")
	require.True(t, ok)
	assert.Equal(t, time.Second, d)
	assert.Eventually(t, func() bool { return len(sw.Calls()) > 0 }, 3*time.Second, 50*time.Millisecond)
}
