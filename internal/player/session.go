// Package player drives playback of a resolved stream: an mpv process
// behind an IPC socket, plus a session state machine with bounded retry and
// the fallback actions the UI exposes when a stream will not play.
package player

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/gotaku-app/gotaku/internal/models"
	"github.com/gotaku-app/gotaku/internal/repository"
	"github.com/gotaku-app/gotaku/internal/util"
)

// State is the playback lifecycle. Idle -> Loading -> Ready <-> Buffering
// -> Ended or Error; Error -> Retrying while the retry budget lasts.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
	StateBuffering
	StateRetrying
	StateEnded
	StateError
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateBuffering:
		return "buffering"
	case StateRetrying:
		return "retrying"
	case StateEnded:
		return "ended"
	case StateError:
		return "error"
	default:
		return "idle"
	}
}

// Cause is the user-facing reason playback failed.
type Cause int

const (
	CauseUnknown Cause = iota
	CauseNetworkDown
	CauseTimeout
	CauseAccessDenied
	CauseNotFound
	CauseMalformedMedia
	CauseUnsupportedFormat
)

func (c Cause) String() string {
	switch c {
	case CauseNetworkDown:
		return "network down"
	case CauseTimeout:
		return "timeout"
	case CauseAccessDenied:
		return "access denied"
	case CauseNotFound:
		return "not found"
	case CauseMalformedMedia:
		return "malformed media"
	case CauseUnsupportedFormat:
		return "unsupported format"
	default:
		return "unknown"
	}
}

// ClassifyPlayback maps a playback error to its Cause.
func ClassifyPlayback(err error) Cause {
	if err == nil {
		return CauseUnknown
	}
	switch repository.Classify(err) {
	case repository.KindNetworkUnavailable:
		return CauseNetworkDown
	case repository.KindTimeout:
		return CauseTimeout
	case repository.KindAccessDenied:
		return CauseAccessDenied
	case repository.KindNotFound:
		return CauseNotFound
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "format"), strings.Contains(msg, "codec"), strings.Contains(msg, "unrecognized"):
		return CauseUnsupportedFormat
	case strings.Contains(msg, "corrupt"), strings.Contains(msg, "malformed"), strings.Contains(msg, "invalid data"):
		return CauseMalformedMedia
	}
	return CauseUnknown
}

// Handle is an owned playback resource. Stop must be safe to call more than
// once; Done reports process exit, nil for a clean end.
type Handle interface {
	Stop() error
	Done() <-chan error
}

// ResolveFunc turns a stream descriptor into a directly playable URL.
type ResolveFunc func(ctx context.Context, sd models.StreamDescriptor) (string, bool)

// LaunchFunc starts the player resource for a resolved URL.
type LaunchFunc func(ctx context.Context, playURL string, hint models.StreamHint, headers map[string]string) (Handle, error)

// Options configures a Session. Resolve and Launch are required; the zero
// values of the rest give 3 retries with a 2 second constant backoff.
type Options struct {
	Resolve     ResolveFunc
	Launch      LaunchFunc
	OpenBrowser func(pageURL string) error
	MaxRetries  int
	Backoff     time.Duration
}

// Session owns at most one playback resource at a time and releases it on
// every exit path: a new load, a quality switch, session close, or the
// embedded-browser fallback.
type Session struct {
	resolve     ResolveFunc
	launch      LaunchFunc
	openBrowser func(string) error
	maxRetries  int
	backoff     time.Duration

	mu       sync.Mutex
	state    State
	cause    Cause
	retries  int
	streams  []models.StreamDescriptor
	index    int
	resolved string
	hint     models.StreamHint
	handle   Handle
}

// Snapshot is a read-only view of the session for rendering.
type Snapshot struct {
	State      State
	Cause      Cause
	Retries    int
	MaxRetries int
	Quality    string
	PageURL    string
	Resolved   string
	Hint       models.StreamHint
	CanCycle   bool
	CanEmbed   bool
}

// NewSession builds a session over streams in rank order; index 0 plays
// first and CycleQuality advances through the rest, wrapping.
func NewSession(streams []models.StreamDescriptor, opts Options) (*Session, error) {
	if len(streams) == 0 {
		return nil, errors.New("no streams to play")
	}
	if opts.Resolve == nil || opts.Launch == nil {
		return nil, errors.New("session needs both a resolve and a launch function")
	}
	s := &Session{
		resolve:     opts.Resolve,
		launch:      opts.Launch,
		openBrowser: opts.OpenBrowser,
		maxRetries:  opts.MaxRetries,
		backoff:     opts.Backoff,
		streams:     streams,
		state:       StateIdle,
	}
	if s.maxRetries <= 0 {
		s.maxRetries = 3
	}
	if s.backoff <= 0 {
		s.backoff = 2 * time.Second
	}
	if s.openBrowser == nil {
		s.openBrowser = func(string) error { return errors.New("no browser available") }
	}
	return s, nil
}

// Load tears down any current playback, resolves the current stream and
// starts it. A launch failure burns the retry budget against the same
// resolved URL before the session settles in terminal Error.
func (s *Session) Load(ctx context.Context) error {
	s.mu.Lock()
	s.teardownLocked()
	s.state = StateLoading
	s.cause = CauseUnknown
	s.retries = 0
	s.resolved = ""
	sd := s.streams[s.index]
	s.mu.Unlock()

	playURL, ok := s.resolve(ctx, sd)
	if !ok {
		s.mu.Lock()
		s.state = StateError
		s.cause = CauseUnsupportedFormat
		s.mu.Unlock()
		return errors.Errorf("no playable URL for %s stream", sd.Quality)
	}

	s.mu.Lock()
	s.resolved = playURL
	s.hint = models.HintFor(playURL)
	s.mu.Unlock()

	if err := s.startOnce(ctx); err != nil {
		return s.failAndRetry(ctx, err)
	}
	return nil
}

// Retry is the manual retry action for a terminal Error: it resets the
// budget and re-attempts the already resolved URL, or re-resolves when
// resolution itself was the failure.
func (s *Session) Retry(ctx context.Context) error {
	s.mu.Lock()
	s.retries = 0
	resolved := s.resolved
	s.mu.Unlock()

	if resolved == "" {
		return s.Load(ctx)
	}
	if err := s.startOnce(ctx); err != nil {
		return s.failAndRetry(ctx, err)
	}
	return nil
}

// CycleQuality advances to the next stream in rank order, wrapping, and
// resets the retry budget. It is available regardless of how much budget
// the current stream burned.
func (s *Session) CycleQuality(ctx context.Context) error {
	s.mu.Lock()
	s.index = (s.index + 1) % len(s.streams)
	s.mu.Unlock()
	return s.Load(ctx)
}

// OpenEmbedded releases the player and hands the original, unresolved page
// URL to the browser. This is the escape hatch for sources the extractor
// cannot parse.
func (s *Session) OpenEmbedded() error {
	s.mu.Lock()
	s.teardownLocked()
	page := s.streams[s.index].URL
	s.state = StateIdle
	s.mu.Unlock()
	return s.openBrowser(page)
}

// OnError is for playback failures reported after a successful start, such
// as the player process dying mid-stream.
func (s *Session) OnError(ctx context.Context, err error) {
	_ = s.failAndRetry(ctx, err)
}

// OnBuffering marks a stall during playback.
func (s *Session) OnBuffering() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateReady {
		s.state = StateBuffering
	}
}

// OnReady marks recovery from a stall.
func (s *Session) OnReady() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateBuffering {
		s.state = StateReady
	}
}

// OnEnded marks a clean end of playback and releases the resource.
func (s *Session) OnEnded() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teardownLocked()
	s.state = StateEnded
}

// Close releases the playback resource and returns the session to Idle.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teardownLocked()
	s.state = StateIdle
}

// Current returns the stream descriptor the session is positioned on.
func (s *Session) Current() models.StreamDescriptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streams[s.index]
}

// Handle returns the live playback resource, or nil outside Ready and
// Buffering.
func (s *Session) Handle() Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle
}

// Snapshot returns a read-only view for rendering.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		State:      s.state,
		Cause:      s.cause,
		Retries:    s.retries,
		MaxRetries: s.maxRetries,
		Quality:    s.streams[s.index].Quality,
		PageURL:    s.streams[s.index].URL,
		Resolved:   s.resolved,
		Hint:       s.hint,
		CanCycle:   len(s.streams) > 1,
		CanEmbed:   s.streams[s.index].URL != "",
	}
}

func (s *Session) startOnce(ctx context.Context) error {
	s.mu.Lock()
	playURL, hint := s.resolved, s.hint
	s.mu.Unlock()

	handle, err := s.launch(ctx, playURL, hint, StreamHeaders(playURL))
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.teardownLocked()
	s.handle = handle
	s.state = StateReady
	s.cause = CauseUnknown
	s.mu.Unlock()
	return nil
}

// failAndRetry burns the remaining budget against the same resolved URL
// with a constant backoff. The URL is never re-resolved here; that is what
// CycleQuality and Retry are for.
func (s *Session) failAndRetry(ctx context.Context, cause error) error {
	s.mu.Lock()
	s.teardownLocked()
	s.cause = ClassifyPlayback(cause)
	s.state = StateError
	s.mu.Unlock()

	for {
		s.mu.Lock()
		if s.retries >= s.maxRetries {
			s.state = StateError
			s.mu.Unlock()
			return errors.Wrapf(cause, "playback failed after %d retries", s.maxRetries)
		}
		s.retries++
		attempt := s.retries
		budget := s.maxRetries
		s.state = StateRetrying
		s.mu.Unlock()

		util.Debugf("playback retry %d/%d", attempt, budget)
		select {
		case <-ctx.Done():
			s.mu.Lock()
			s.state = StateError
			s.mu.Unlock()
			return ctx.Err()
		case <-time.After(s.backoff):
		}

		err := s.startOnce(ctx)
		if err == nil {
			return nil
		}
		cause = err
		s.mu.Lock()
		s.teardownLocked()
		s.cause = ClassifyPlayback(cause)
		s.state = StateError
		s.mu.Unlock()
	}
}

func (s *Session) teardownLocked() {
	if s.handle != nil {
		_ = s.handle.Stop()
		s.handle = nil
	}
}

// StreamHeaders returns the request headers certain origins require before
// they serve media.
func StreamHeaders(rawURL string) map[string]string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	host := strings.ToLower(u.Hostname())
	switch {
	case strings.HasSuffix(host, "blogger.com"), strings.HasSuffix(host, "googlevideo.com"):
		return map[string]string{"Referer": "https://www.blogger.com/"}
	case strings.HasSuffix(host, "desustream.info"):
		return map[string]string{
			"Referer": "https://otakudesu.cloud/",
			"Origin":  "https://otakudesu.cloud",
		}
	}
	return nil
}
