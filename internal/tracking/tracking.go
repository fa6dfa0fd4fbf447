// Package tracking persists watch progress locally so playback can resume
// where it left off. Storage is SQLite, which needs cgo; without it the
// store refuses to open and the rest of the app runs untracked.
package tracking

import (
	"time"

	"github.com/pkg/errors"
)

// IsCgoEnabled reports whether this binary was built with SQLite support.
var IsCgoEnabled = cgoEnabled()

var (
	ErrCgoDisabled = errors.New("watch progress tracking needs a cgo build")
	ErrNotOpen     = errors.New("progress store is not open")
)

// Record is one episode's saved position. AnimeID plus EpisodeID identify
// it; saving the same pair again overwrites the previous position.
type Record struct {
	AnimeID   string
	EpisodeID string
	Number    int
	Position  int
	Duration  int
	Title     string
	UpdatedAt time.Time
}

// Remaining returns how many seconds are left, clamped at zero.
func (r Record) Remaining() int {
	if left := r.Duration - r.Position; left > 0 {
		return left
	}
	return 0
}

// NearlyDone reports whether the episode was watched past 90 percent,
// which the app treats as finished when suggesting what to play next.
func (r Record) NearlyDone() bool {
	return r.Duration > 0 && r.Position*10 >= r.Duration*9
}

// DisabledNotice is the message shown when tracking is compiled out.
func DisabledNotice() string {
	if IsCgoEnabled {
		return ""
	}
	return "Watch progress tracking is disabled in this build; resume and continue-watching are unavailable."
}
