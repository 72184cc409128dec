// Package settings holds the per-channel sweep configuration.
package settings

import (
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"
)

// ChannelSetting is the sweep configuration of a single channel.
type ChannelSetting struct {
	ChannelID string
	Interval  time.Duration
	Cutoff    time.Duration
}

// Defaults are applied to a channel the first time it is read or written.
type Defaults struct {
	Interval time.Duration
	Cutoff   time.Duration
}

// Override pre-configures a channel at startup.
type Override struct {
	ChannelID       string `yaml:"channel"`
	IntervalMinutes *int   `yaml:"interval_minutes"`
	CutoffMinutes   *int   `yaml:"cutoff_minutes"`
}

// Store maps channel IDs to their settings. Entries live for the
// process lifetime; there is no delete.
type Store struct {
	mu       sync.RWMutex
	defaults Defaults
	channels map[string]ChannelSetting
}

// NewStore creates an empty store.
func NewStore(defaults Defaults) *Store {
	return &Store{
		defaults: defaults,
		channels: make(map[string]ChannelSetting),
	}
}

// Defaults returns the values new channels start with.
func (s *Store) Defaults() Defaults {
	return s.defaults
}

// GetOrDefault returns the channel's setting, inserting the defaults if absent.
func (s *Store) GetOrDefault(channelID string) ChannelSetting {
	s.mu.RLock()
	cs, ok := s.channels[channelID]
	s.mu.RUnlock()
	if ok {
		return cs
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrInsertLocked(channelID)
}

// Get returns the channel's setting without creating it.
func (s *Store) Get(channelID string) (ChannelSetting, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cs, ok := s.channels[channelID]
	return cs, ok
}

// SetInterval updates the sweep interval. Minutes are stored as given.
func (s *Store) SetInterval(channelID string, minutes int) ChannelSetting {
	s.mu.Lock()
	defer s.mu.Unlock()

	cs := s.getOrInsertLocked(channelID)
	cs.Interval = time.Duration(minutes) * time.Minute
	s.channels[channelID] = cs
	return cs
}

// SetCutoff updates the retention cutoff. Minutes are stored as given.
func (s *Store) SetCutoff(channelID string, minutes int) ChannelSetting {
	s.mu.Lock()
	defer s.mu.Unlock()

	cs := s.getOrInsertLocked(channelID)
	cs.Cutoff = time.Duration(minutes) * time.Minute
	s.channels[channelID] = cs
	return cs
}

// Seed applies startup overrides. Fields left nil keep their defaults.
func (s *Store) Seed(overrides []Override) {
	for _, o := range overrides {
		if o.ChannelID == "" {
			continue
		}
		s.GetOrDefault(o.ChannelID)
		if o.IntervalMinutes != nil {
			s.SetInterval(o.ChannelID, *o.IntervalMinutes)
		}
		if o.CutoffMinutes != nil {
			s.SetCutoff(o.ChannelID, *o.CutoffMinutes)
		}
	}
}

// Channels returns the IDs of all known channels, sorted.
func (s *Store) Channels() []string {
	s.mu.RLock()
	ids := lo.Keys(s.channels)
	s.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

// Snapshot returns a copy of every setting, ordered by channel ID.
func (s *Store) Snapshot() []ChannelSetting {
	ids := s.Channels()
	out := make([]ChannelSetting, 0, len(ids))

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range ids {
		out = append(out, s.channels[id])
	}
	return out
}

// Len returns the number of known channels.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.channels)
}

func (s *Store) getOrInsertLocked(channelID string) ChannelSetting {
	if cs, ok := s.channels[channelID]; ok {
		return cs
	}
	cs := ChannelSetting{
		ChannelID: channelID,
		Interval:  s.defaults.Interval,
		Cutoff:    s.defaults.Cutoff,
	}
	s.channels[channelID] = cs
	return cs
}
