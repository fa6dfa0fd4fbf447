// Package gotaku exposes the catalog pipeline as an embeddable library:
// provider gateways with fallback, the response cache, and stream
// resolution, without any of the terminal UI.
package gotaku

import (
	"context"

	"github.com/gotaku-app/gotaku/internal/cache"
	"github.com/gotaku-app/gotaku/internal/config"
	"github.com/gotaku-app/gotaku/internal/gateway"
	"github.com/gotaku-app/gotaku/internal/models"
	"github.com/gotaku-app/gotaku/internal/player"
	"github.com/gotaku-app/gotaku/internal/repository"
	"github.com/gotaku-app/gotaku/internal/resolver"
	"github.com/gotaku-app/gotaku/internal/version"
	"github.com/gotaku-app/gotaku/pkg/gotaku/types"
)

// Client is the main entry point for embedding the catalog in another Go
// project. Safe for concurrent use.
type Client struct {
	cfg  config.Config
	repo *repository.Repository
	res  *resolver.Resolver
}

// Option customizes a Client at construction time.
type Option func(*settings)

type settings struct {
	source types.Source
}

// WithSource pins the client to a single provider instead of the
// primary-then-alternate fallback chain.
func WithSource(s types.Source) Option {
	return func(st *settings) { st.source = s }
}

// NewClient builds a client against the stock providers. GOTAKU_*
// environment variables override hosts and tuning, same as the CLI.
func NewClient(opts ...Option) *Client {
	var st settings
	for _, o := range opts {
		o(&st)
	}

	cfg := config.FromEnv()
	var sources []gateway.Source
	for _, p := range st.source.ToProviders(cfg) {
		sources = append(sources, gateway.NewClient(p, cfg))
	}

	return &Client{
		cfg:  cfg,
		repo: repository.New(cfg, cache.New(), sources...),
		res:  resolver.New(cfg),
	}
}

// APIError is a failed operation surfaced to library callers. Message is
// already phrased for display.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Status
}

// unwrap translates a repository answer into plain (data, error). Context
// cancellation passes through untouched so callers can match on it.
func unwrap[T any](env models.Envelope[T], err error) (T, error) {
	var zero T
	if repository.IsCanceled(err) {
		return zero, err
	}
	if err != nil || !env.OK {
		apiErr := &APIError{StatusCode: env.StatusCode, Status: env.StatusMessage, Message: env.Message}
		if apiErr.Message == "" && err != nil {
			apiErr.Message = err.Error()
		}
		return zero, apiErr
	}
	return env.Data, nil
}

// noticeOf returns the degradation note carried by successful envelopes that
// were not served exactly as asked: a fallback provider, rebuilt list data,
// or demo streams.
func noticeOf[T any](env models.Envelope[T]) string {
	if env.OK && env.StatusMessage != "OK" {
		return env.Message
	}
	return ""
}

// Search returns catalog entries matching the query.
func (c *Client) Search(ctx context.Context, query string) ([]*types.Anime, error) {
	data, err := unwrap(c.repo.Search(ctx, query))
	if err != nil {
		return nil, err
	}
	return types.FromInternalSummaryList(data), nil
}

// Ongoing returns one page of currently airing shows.
func (c *Client) Ongoing(ctx context.Context, page int) ([]*types.Anime, *types.Page, error) {
	env, err := c.repo.Ongoing(ctx, page)
	data, err := unwrap(env, err)
	if err != nil {
		return nil, nil, err
	}
	return types.FromInternalSummaryList(data), types.FromInternalPage(env.Pagination), nil
}

// Completed returns one page of finished shows.
func (c *Client) Completed(ctx context.Context, page int) ([]*types.Anime, *types.Page, error) {
	env, err := c.repo.Completed(ctx, page)
	data, err := unwrap(env, err)
	if err != nil {
		return nil, nil, err
	}
	return types.FromInternalSummaryList(data), types.FromInternalPage(env.Pagination), nil
}

// AnimeList returns the full catalog index.
func (c *Client) AnimeList(ctx context.Context) ([]*types.Anime, error) {
	data, err := unwrap(c.repo.AnimeList(ctx))
	if err != nil {
		return nil, err
	}
	return types.FromInternalSummaryList(data), nil
}

// Genres returns the genre index.
func (c *Client) Genres(ctx context.Context) ([]*types.Genre, error) {
	data, err := unwrap(c.repo.Genres(ctx))
	if err != nil {
		return nil, err
	}
	return types.FromInternalGenreList(data), nil
}

// GenreAnime returns one page of shows tagged with a genre.
func (c *Client) GenreAnime(ctx context.Context, genreID string, page int) ([]*types.Anime, *types.Page, error) {
	env, err := c.repo.GenreAnime(ctx, genreID, page)
	data, err := unwrap(env, err)
	if err != nil {
		return nil, nil, err
	}
	return types.FromInternalSummaryList(data), types.FromInternalPage(env.Pagination), nil
}

// Detail returns the full record for one anime. When the detail endpoint is
// down the record may be rebuilt from list data; Notice says so.
func (c *Client) Detail(ctx context.Context, animeID string) (*types.AnimeDetail, error) {
	env, err := c.repo.Detail(ctx, animeID)
	data, err := unwrap(env, err)
	if err != nil {
		return nil, err
	}
	detail := types.FromInternalDetail(data)
	if detail != nil {
		detail.Notice = noticeOf(env)
	}
	return detail, nil
}

// Episode returns the playback payload for one episode.
func (c *Client) Episode(ctx context.Context, episodeID string) (*types.Episode, error) {
	env, err := c.repo.Episode(ctx, episodeID)
	data, err := unwrap(env, err)
	if err != nil {
		return nil, err
	}
	episode := types.FromInternalEpisode(data)
	if episode != nil {
		episode.Notice = noticeOf(env)
	}
	return episode, nil
}

// StreamURL resolves an episode to a directly playable media URL plus the
// request headers some hosts require. Candidates are tried best first, so an
// embed-only server is only used when nothing direct resolves.
func (c *Client) StreamURL(ctx context.Context, episodeID string) (string, map[string]string, error) {
	env, err := c.repo.Episode(ctx, episodeID)
	data, err := unwrap(env, err)
	if err != nil {
		return "", nil, err
	}

	candidates := append([]models.StreamDescriptor(nil), data.Servers...)
	if data.DefaultStreamingURL != "" {
		candidates = append(candidates, models.StreamDescriptor{
			Quality:  "default",
			URL:      data.DefaultStreamingURL,
			StreamID: "default",
		})
	}
	if len(candidates) == 0 {
		return "", nil, resolver.ErrNoStreams
	}

	ordered := resolver.SortByQuality(candidates)
	if best, selErr := c.res.SelectBestStream(candidates); selErr == nil {
		reordered := []models.StreamDescriptor{best}
		for _, sd := range ordered {
			if sd.URL != best.URL {
				reordered = append(reordered, sd)
			}
		}
		ordered = reordered
	}

	for _, sd := range ordered {
		if playURL, ok := c.res.PlayableURL(ctx, sd); ok {
			return playURL, player.StreamHeaders(playURL), nil
		}
	}
	return "", nil, resolver.ErrNoStreams
}

// ClearCache drops every cached response.
func (c *Client) ClearCache() {
	c.repo.ClearCache()
}

// GetAvailableSources returns the providers a client can be pinned to.
func (c *Client) GetAvailableSources() []types.Source {
	return []types.Source{
		types.SourcePrimary,
		types.SourceAlternate,
	}
}

// Version reports the library version.
func Version() string {
	return version.Version
}

// Searcher debounces search-as-you-type: only the last query inside the
// quiet period runs, and a newer query cancels the previous in-flight
// request. deliver runs on a timer goroutine.
type Searcher struct {
	client  *Client
	deb     *repository.Debouncer
	slot    repository.Slot
	deliver func(query string, results []*types.Anime, err error)
}

// NewSearcher builds a debounced searcher over this client. The quiet
// period comes from the client configuration.
func (c *Client) NewSearcher(deliver func(query string, results []*types.Anime, err error)) *Searcher {
	return &Searcher{
		client:  c,
		deb:     repository.NewDebouncer(c.cfg.SearchDebounce),
		deliver: deliver,
	}
}

// Query schedules a search for q, replacing any pending or in-flight one.
// Superseded queries are dropped, not delivered.
func (s *Searcher) Query(q string) {
	s.deb.Do(func() {
		ctx := s.slot.Begin(context.Background())
		results, err := s.client.Search(ctx, q)
		if repository.IsCanceled(err) {
			return
		}
		s.deliver(q, results, err)
	})
}

// Close drops pending work and aborts any in-flight search.
func (s *Searcher) Close() {
	s.deb.Stop()
	s.slot.Cancel()
}
