package sweep

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/samber/lo"

	"github.com/p-blackswan/channel-sweeper/internal/platform"
	"github.com/p-blackswan/channel-sweeper/internal/settings"
)

// Profile selects which messages a sweep considers.
type Profile string

const (
	// ProfileHistory sweeps the full channel history.
	ProfileHistory Profile = "history"
	// ProfileImages sweeps image posts among the most recent messages.
	ProfileImages Profile = "images"
)

// imagesWindow is how many recent messages the images profile inspects.
const imagesWindow = 100

// Policy is the enumeration bound and predicate of a profile.
type Policy struct {
	Profile      Profile
	HistoryLimit int
	RequireImage bool
}

// PolicyFor returns the policy of a profile.
func PolicyFor(p Profile) (Policy, error) {
	switch p {
	case ProfileHistory:
		return Policy{Profile: ProfileHistory}, nil
	case ProfileImages:
		return Policy{Profile: ProfileImages, HistoryLimit: imagesWindow, RequireImage: true}, nil
	}
	return Policy{}, fmt.Errorf("unknown sweep profile %q", p)
}

// DefaultsFor returns the settings a new channel gets under a profile.
func DefaultsFor(p Profile) settings.Defaults {
	if p == ProfileImages {
		return settings.Defaults{Interval: 5 * time.Minute, Cutoff: 10 * time.Minute}
	}
	return settings.Defaults{Interval: 60 * time.Minute, Cutoff: 720 * time.Minute}
}

// Query builds the history query for a sweep at cutoff.
// The images profile reads a fixed window of recent messages and filters afterwards.
func (p Policy) Query(cutoff time.Time) platform.HistoryQuery {
	if p.HistoryLimit > 0 {
		return platform.HistoryQuery{Limit: p.HistoryLimit}
	}
	return platform.HistoryQuery{Before: cutoff}
}

// Eligible reports whether m should be deleted. Only messages created
// strictly before cutoff qualify.
func (p Policy) Eligible(m platform.Message, cutoff time.Time) bool {
	if !m.CreatedAt.Before(cutoff) {
		return false
	}
	if p.RequireImage && !HasImage(m) {
		return false
	}
	return true
}

// Filter keeps the eligible messages, preserving order.
func (p Policy) Filter(msgs []platform.Message, cutoff time.Time) []platform.Message {
	return lo.Filter(msgs, func(m platform.Message, _ int) bool {
		return p.Eligible(m, cutoff)
	})
}

// HasImage reports whether any attachment is an image.
func HasImage(m platform.Message) bool {
	return lo.SomeBy(m.Attachments, isImage)
}

func isImage(a platform.Attachment) bool {
	ct := a.ContentType
	if ct == "" {
		ct = mime.TypeByExtension(strings.ToLower(filepath.Ext(a.Filename)))
	}
	ct, _, _ = strings.Cut(ct, ";")
	ct = strings.TrimSpace(strings.ToLower(ct))
	if ct == "" {
		return false
	}
	if known := mimetype.Lookup(ct); known != nil {
		ct = known.String()
	}
	return strings.HasPrefix(ct, "image/")
}
