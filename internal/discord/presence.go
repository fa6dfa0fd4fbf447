package discord

import (
	"fmt"
	"sync"
	"time"

	"github.com/tr1xem/go-discordrpc/client"

	"github.com/gotaku-app/gotaku/internal/util"
)

// Type 3 renders as "Watching ..." in the Discord client.
const activityWatching = 3

// keepaliveEvery bounds how long the presence may go without a refresh;
// Discord drops stale activities otherwise.
const keepaliveEvery = 2 * time.Minute

const fallbackArt = "https://raw.githubusercontent.com/gotaku-app/gotaku/main/assets/gotaku.png"

// Probe reads live playback state. *player.MPVHandle satisfies it.
type Probe interface {
	Position() (float64, error)
	Duration() (float64, error)
	Paused() (bool, error)
}

// Watching describes the episode the presence should show. PageURL, when
// set, becomes an "Open Episode" button.
type Watching struct {
	Title   string
	Episode int
	Poster  string
	PageURL string
}

// Updater polls the playback probe and pushes an activity whenever the
// visible state changed, plus a periodic keepalive. One updater serves one
// episode's playback.
type Updater struct {
	watching Watching
	probe    Probe
	freq     time.Duration

	post func(client.Activity) error
	now  func() time.Time

	mu         sync.Mutex
	duration   float64
	lastPaused bool
	lastPosted time.Time
	lastForce  time.Time

	done chan struct{}
	wg   sync.WaitGroup
}

// NewUpdater builds an updater that refreshes every freq while playback
// lasts.
func NewUpdater(w Watching, probe Probe, freq time.Duration) *Updater {
	if freq <= 0 {
		freq = 5 * time.Second
	}
	return &Updater{
		watching: w,
		probe:    probe,
		freq:     freq,
		now:      time.Now,
		done:     make(chan struct{}),
	}
}

// Start connects to Discord and begins the refresh loop. When no Discord
// client is running it logs and does nothing.
func (u *Updater) Start() {
	if u.post == nil {
		if err := Login(); err != nil {
			util.Debugf("discord presence unavailable: %v", err)
			return
		}
		u.post = postActivity
	}
	u.wg.Add(1)
	go func() {
		defer u.wg.Done()
		ticker := time.NewTicker(u.freq)
		defer ticker.Stop()

		u.update(true)
		for {
			select {
			case <-ticker.C:
				u.update(false)
			case <-u.done:
				return
			}
		}
	}()
}

// Stop ends the refresh loop and waits for it. Safe to call more than once.
func (u *Updater) Stop() {
	if u == nil {
		return
	}
	select {
	case <-u.done:
	default:
		close(u.done)
	}
	u.wg.Wait()
}

func (u *Updater) update(force bool) {
	pos, err := u.probe.Position()
	if err != nil {
		// Player gone or not ready yet; try again next tick.
		return
	}
	paused := false
	if p, err := u.probe.Paused(); err == nil {
		paused = p
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	if u.duration <= 0 {
		if d, err := u.probe.Duration(); err == nil && d > 0 {
			u.duration = d
		}
	}

	now := u.now()
	if !u.shouldPostLocked(paused, now, force) {
		return
	}
	if err := u.post(u.activityLocked(pos, paused, now)); err != nil {
		util.Debugf("discord presence update failed: %v", err)
		return
	}
	u.lastPaused = paused
	u.lastPosted = now
}

// shouldPostLocked keeps the update rate down: post on the first tick, on a
// pause flip, on demand, and at the keepalive interval.
func (u *Updater) shouldPostLocked(paused bool, now time.Time, force bool) bool {
	if force || u.lastPosted.IsZero() || paused != u.lastPaused {
		u.lastForce = now
		return true
	}
	if now.Sub(u.lastForce) >= keepaliveEvery {
		u.lastForce = now
		return true
	}
	return false
}

func (u *Updater) activityLocked(pos float64, paused bool, now time.Time) client.Activity {
	start := now.Add(-time.Duration(pos * float64(time.Second)))

	var ts *client.Timestamps
	smallImage, smallText := "", ""
	switch {
	case paused:
		ts = &client.Timestamps{Start: &start}
		smallImage, smallText = "pause-button", "Paused"
	case u.duration > 60 && u.duration > pos:
		end := now.Add(time.Duration((u.duration - pos) * float64(time.Second)))
		ts = &client.Timestamps{Start: &start, End: &end}
	default:
		ts = &client.Timestamps{Start: &start}
	}

	poster := u.watching.Poster
	if poster == "" {
		poster = fallbackArt
	}

	var buttons []*client.Button
	if u.watching.PageURL != "" {
		buttons = append(buttons, &client.Button{
			Label: "Open Episode",
			Url:   u.watching.PageURL,
		})
	}

	return client.Activity{
		Type:       activityWatching,
		Name:       u.watching.Title,
		Details:    u.watching.Title,
		State:      fmt.Sprintf("Episode %d", u.watching.Episode),
		LargeImage: poster,
		LargeText:  u.watching.Title,
		SmallImage: smallImage,
		SmallText:  smallText,
		Timestamps: ts,
		Buttons:    buttons,
	}
}
