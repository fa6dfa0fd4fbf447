// Package repository composes the gateway sources, the fallback orchestrator
// and the response cache into one operation per screen. Every operation
// returns the uniform envelope; the error is non-nil only for cancellation
// or a fully exhausted source chain.
package repository

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gotaku-app/gotaku/internal/cache"
	"github.com/gotaku-app/gotaku/internal/config"
	"github.com/gotaku-app/gotaku/internal/gateway"
	"github.com/gotaku-app/gotaku/internal/models"
	"github.com/gotaku-app/gotaku/internal/util"
)

const episodeDelimiter = "_ep_"

// Repository is safe for concurrent use; the cache is its only shared state.
type Repository struct {
	cfg     config.Config
	store   *cache.Cache
	sources []gateway.Source
}

// New builds a repository over the given sources. The first source is the
// primary; the rest are fallbacks in order.
func New(cfg config.Config, store *cache.Cache, sources ...gateway.Source) *Repository {
	return &Repository{cfg: cfg, store: store, sources: sources}
}

// Ongoing returns one page of currently airing shows.
func (r *Repository) Ongoing(ctx context.Context, page int) (models.Envelope[[]models.AnimeSummary], error) {
	key := fmt.Sprintf("ongoing_%d", page)
	return fetchThrough(ctx, r, key, "Failed to fetch ongoing anime", nonEmpty[models.AnimeSummary],
		func(ctx context.Context, src gateway.Source) (models.Envelope[[]models.AnimeSummary], error) {
			return src.Ongoing(ctx, page)
		})
}

// Completed returns one page of finished shows.
func (r *Repository) Completed(ctx context.Context, page int) (models.Envelope[[]models.AnimeSummary], error) {
	key := fmt.Sprintf("complete_%d", page)
	return fetchThrough(ctx, r, key, "Failed to fetch completed anime", nonEmpty[models.AnimeSummary],
		func(ctx context.Context, src gateway.Source) (models.Envelope[[]models.AnimeSummary], error) {
			return src.Completed(ctx, page)
		})
}

// AnimeList returns the full catalog index.
func (r *Repository) AnimeList(ctx context.Context) (models.Envelope[[]models.AnimeSummary], error) {
	return fetchThrough(ctx, r, "anime_list", "Failed to fetch the anime list", nonEmpty[models.AnimeSummary],
		func(ctx context.Context, src gateway.Source) (models.Envelope[[]models.AnimeSummary], error) {
			return src.AnimeList(ctx)
		})
}

// Search returns shows matching the query.
func (r *Repository) Search(ctx context.Context, query string) (models.Envelope[[]models.AnimeSummary], error) {
	q := strings.TrimSpace(query)
	key := "search_" + strings.ToLower(q)
	return fetchThrough(ctx, r, key, fmt.Sprintf("Failed to search for %q", q), nonEmpty[models.AnimeSummary],
		func(ctx context.Context, src gateway.Source) (models.Envelope[[]models.AnimeSummary], error) {
			return src.Search(ctx, q)
		})
}

// Genres returns the genre index.
func (r *Repository) Genres(ctx context.Context) (models.Envelope[[]models.Genre], error) {
	return fetchThrough(ctx, r, "genres", "Failed to fetch genres", nonEmpty[models.Genre],
		func(ctx context.Context, src gateway.Source) (models.Envelope[[]models.Genre], error) {
			return src.Genres(ctx)
		})
}

// GenreAnime returns one page of shows tagged with a genre.
func (r *Repository) GenreAnime(ctx context.Context, genreID string, page int) (models.Envelope[[]models.AnimeSummary], error) {
	key := fmt.Sprintf("genre_%s_%d", genreID, page)
	return fetchThrough(ctx, r, key, "Failed to fetch anime for genre "+genreID, nonEmpty[models.AnimeSummary],
		func(ctx context.Context, src gateway.Source) (models.Envelope[[]models.AnimeSummary], error) {
			return src.GenreAnime(ctx, genreID, page)
		})
}

// Detail returns the full record for one anime. When every endpoint fails it
// reconstructs a partial record from the list pages instead of surfacing a
// hard failure.
func (r *Repository) Detail(ctx context.Context, animeID string) (models.Envelope[*models.AnimeDetail], error) {
	key := "detail_" + animeID
	if hit := cache.Get[*models.AnimeDetail](r.store, key); hit != nil {
		util.Debugf("cache hit: %s", key)
		util.PerfCount("cache.hit")
		return *hit, nil
	}
	util.PerfCount("cache.miss")
	defer util.Perf("repository.detail", time.Now())

	calls := sourceCalls(r.sources, func(ctx context.Context, src gateway.Source) (models.Envelope[*models.AnimeDetail], error) {
		return src.Detail(ctx, animeID)
	})
	env, err := TryWithFallbacks(ctx, r.store, calls[0], calls[1:], key, "Failed to fetch details for "+animeID, notNil[models.AnimeDetail])
	if err != nil && IsCanceled(err) {
		return env, err
	}
	if !env.OK {
		if syn, found := r.synthesizeDetail(ctx, animeID); found {
			return syn, nil
		}
	}
	return finish(env, err)
}

// Episode returns the playback payload for one episode. When every endpoint
// fails it answers with a guessed direct URL plus two demo streams, so the
// player always has something to try.
func (r *Repository) Episode(ctx context.Context, episodeID string) (models.Envelope[*models.EpisodeDetail], error) {
	key := "episode_" + episodeID
	if hit := cache.Get[*models.EpisodeDetail](r.store, key); hit != nil {
		util.Debugf("cache hit: %s", key)
		util.PerfCount("cache.hit")
		return *hit, nil
	}
	util.PerfCount("cache.miss")
	defer util.Perf("repository.episode", time.Now())

	calls := sourceCalls(r.sources, func(ctx context.Context, src gateway.Source) (models.Envelope[*models.EpisodeDetail], error) {
		return src.Episode(ctx, episodeID)
	})
	env, err := TryWithFallbacks(ctx, r.store, calls[0], calls[1:], key, "Failed to fetch episode "+episodeID, notNil[models.EpisodeDetail])
	if err != nil && IsCanceled(err) {
		return env, err
	}
	if !env.OK {
		return r.synthesizeEpisode(episodeID), nil
	}
	return finish(env, err)
}

// ClearCache drops every cached response.
func (r *Repository) ClearCache() {
	r.store.Clear()
}

// sourceCalls turns one gateway method into an ordered call list, primary
// first.
func sourceCalls[T any](sources []gateway.Source, run func(context.Context, gateway.Source) (models.Envelope[T], error)) []Call[T] {
	calls := make([]Call[T], 0, len(sources))
	for _, src := range sources {
		src := src
		calls = append(calls, Call[T]{
			Name: src.Name(),
			Run: func(ctx context.Context) (models.Envelope[T], error) {
				return run(ctx, src)
			},
		})
	}
	return calls
}

// fetchThrough is the common path: cache lookup, then the fallback chain,
// then failure translation.
func fetchThrough[T any](ctx context.Context, r *Repository, key, failureMessage string, valid func(T) bool, run func(context.Context, gateway.Source) (models.Envelope[T], error)) (models.Envelope[T], error) {
	if key != "" {
		if hit := cache.Get[T](r.store, key); hit != nil {
			util.Debugf("cache hit: %s", key)
			util.PerfCount("cache.hit")
			return *hit, nil
		}
	}
	util.PerfCount("cache.miss")
	defer util.Perf("repository.fetch", time.Now())

	calls := sourceCalls(r.sources, run)
	env, err := TryWithFallbacks(ctx, r.store, calls[0], calls[1:], key, failureMessage, valid)
	return finish(env, err)
}

// finish propagates cancellation untouched and rewrites an exhausted failure
// into the user-facing message for its cause.
func finish[T any](env models.Envelope[T], err error) (models.Envelope[T], error) {
	if err != nil && IsCanceled(err) {
		return env, err
	}
	if env.OK {
		return env, nil
	}
	kind := KindAllSourcesFailed
	switch Classify(err) {
	case KindNetworkUnavailable:
		kind = KindNetworkUnavailable
	case KindTimeout:
		kind = KindTimeout
	case KindAccessDenied:
		kind = KindAccessDenied
	case KindNotFound:
		kind = KindNotFound
	}
	env.Message = userMessage(kind, env.Message)
	return env, &Error{Kind: kind, Msg: env.Message}
}

// synthesizeDetail rebuilds a minimal detail record by scanning the first
// ongoing and completed pages for the anime. Episode ids are derived as
// "<animeId>_ep_<n>" so the episode operation can still resolve them. The
// result is never cached.
func (r *Repository) synthesizeDetail(ctx context.Context, animeID string) (models.Envelope[*models.AnimeDetail], bool) {
	var (
		ongoing, completed       models.Envelope[[]models.AnimeSummary]
		ongoingErr, completedErr error
	)
	util.ParallelExecute(2,
		func() { ongoing, ongoingErr = r.Ongoing(ctx, 1) },
		func() { completed, completedErr = r.Completed(ctx, 1) },
	)
	if ctx.Err() != nil {
		return models.Envelope[*models.AnimeDetail]{}, false
	}

	var pool []models.AnimeSummary
	if ongoingErr == nil && ongoing.OK {
		pool = append(pool, ongoing.Data...)
	}
	if completedErr == nil && completed.OK {
		pool = append(pool, completed.Data...)
	}

	for _, item := range pool {
		if item.AnimeID != animeID && util.Slugify(item.Title) != animeID {
			continue
		}
		count := item.EpisodeCount()
		if count <= 0 {
			count = 12
		}
		episodes := make([]models.EpisodeRef, 0, count)
		for n := 1; n <= count; n++ {
			episodes = append(episodes, models.EpisodeRef{
				EpisodeID: fmt.Sprintf("%s%s%d", item.AnimeID, episodeDelimiter, n),
				Title:     fmt.Sprintf("Episode %d", n),
			})
		}
		detail := &models.AnimeDetail{
			AnimeID:  item.AnimeID,
			Title:    item.Title,
			Poster:   item.Poster,
			Episodes: episodes,
		}
		if item.Score != nil {
			detail.Score = *item.Score
		}
		env := models.Success(detail, nil)
		env.StatusMessage = "Success (degraded)"
		env.Message = "Detail rebuilt from list data; some fields are partial."
		util.Debugf("synthesized detail for %s from list data (%d episodes)", animeID, count)
		return env, true
	}
	return models.Envelope[*models.AnimeDetail]{}, false
}

// synthesizeEpisode builds a demo playback payload for an episode no source
// could serve.
func (r *Repository) synthesizeEpisode(episodeID string) models.Envelope[*models.EpisodeDetail] {
	animeID := episodeID
	number := 1
	if id, n, ok := SplitEpisodeID(episodeID); ok {
		animeID, number = id, n
	}
	guess := fmt.Sprintf(r.cfg.StreamURLTemplate, animeID, number)
	detail := &models.EpisodeDetail{
		EpisodeID:           episodeID,
		AnimeID:             animeID,
		Title:               fmt.Sprintf("Episode %d", number),
		DefaultStreamingURL: guess,
		Servers: []models.StreamDescriptor{
			{Quality: "720p", URL: guess, StreamID: "guess-720"},
			{Quality: "480p", URL: r.cfg.DemoMP4URL, StreamID: "demo-mp4"},
			{Quality: "HLS", URL: r.cfg.DemoHLSURL, StreamID: "demo-hls"},
		},
	}
	env := models.Success(detail, nil)
	env.StatusMessage = "Success (demo)"
	env.Message = "Episode served from a fallback demo source; playback options are limited."
	util.Debugf("synthesized episode %s with guessed stream %s", episodeID, guess)
	return env
}

// SplitEpisodeID splits a derived episode id back into its anime id and
// episode number. Returns false for ids that were not derived.
func SplitEpisodeID(episodeID string) (string, int, bool) {
	idx := strings.LastIndex(episodeID, episodeDelimiter)
	if idx <= 0 {
		return "", 0, false
	}
	n, err := strconv.Atoi(episodeID[idx+len(episodeDelimiter):])
	if err != nil || n < 1 {
		return "", 0, false
	}
	return episodeID[:idx], n, true
}
