package repository

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gotaku-app/gotaku/internal/cache"
	"github.com/gotaku-app/gotaku/internal/config"
	"github.com/gotaku-app/gotaku/internal/gateway"
	"github.com/gotaku-app/gotaku/internal/models"
)

// mockSource stubs one provider; unset methods answer with an error so a
// test only wires what it cares about.
type mockSource struct {
	name       string
	ongoing    func(ctx context.Context, page int) (models.Envelope[[]models.AnimeSummary], error)
	completed  func(ctx context.Context, page int) (models.Envelope[[]models.AnimeSummary], error)
	animeList  func(ctx context.Context) (models.Envelope[[]models.AnimeSummary], error)
	detail     func(ctx context.Context, animeID string) (models.Envelope[*models.AnimeDetail], error)
	episode    func(ctx context.Context, episodeID string) (models.Envelope[*models.EpisodeDetail], error)
	search     func(ctx context.Context, query string) (models.Envelope[[]models.AnimeSummary], error)
	genres     func(ctx context.Context) (models.Envelope[[]models.Genre], error)
	genreAnime func(ctx context.Context, genreID string, page int) (models.Envelope[[]models.AnimeSummary], error)
}

var errNoStub = errors.New("no stub")

func (m *mockSource) Name() string { return m.name }

func (m *mockSource) Ongoing(ctx context.Context, page int) (models.Envelope[[]models.AnimeSummary], error) {
	if m.ongoing == nil {
		return models.Envelope[[]models.AnimeSummary]{}, errNoStub
	}
	return m.ongoing(ctx, page)
}

func (m *mockSource) Completed(ctx context.Context, page int) (models.Envelope[[]models.AnimeSummary], error) {
	if m.completed == nil {
		return models.Envelope[[]models.AnimeSummary]{}, errNoStub
	}
	return m.completed(ctx, page)
}

func (m *mockSource) AnimeList(ctx context.Context) (models.Envelope[[]models.AnimeSummary], error) {
	if m.animeList == nil {
		return models.Envelope[[]models.AnimeSummary]{}, errNoStub
	}
	return m.animeList(ctx)
}

func (m *mockSource) Detail(ctx context.Context, animeID string) (models.Envelope[*models.AnimeDetail], error) {
	if m.detail == nil {
		return models.Envelope[*models.AnimeDetail]{}, errNoStub
	}
	return m.detail(ctx, animeID)
}

func (m *mockSource) Episode(ctx context.Context, episodeID string) (models.Envelope[*models.EpisodeDetail], error) {
	if m.episode == nil {
		return models.Envelope[*models.EpisodeDetail]{}, errNoStub
	}
	return m.episode(ctx, episodeID)
}

func (m *mockSource) Search(ctx context.Context, query string) (models.Envelope[[]models.AnimeSummary], error) {
	if m.search == nil {
		return models.Envelope[[]models.AnimeSummary]{}, errNoStub
	}
	return m.search(ctx, query)
}

func (m *mockSource) Genres(ctx context.Context) (models.Envelope[[]models.Genre], error) {
	if m.genres == nil {
		return models.Envelope[[]models.Genre]{}, errNoStub
	}
	return m.genres(ctx)
}

func (m *mockSource) GenreAnime(ctx context.Context, genreID string, page int) (models.Envelope[[]models.AnimeSummary], error) {
	if m.genreAnime == nil {
		return models.Envelope[[]models.AnimeSummary]{}, errNoStub
	}
	return m.genreAnime(ctx, genreID, page)
}

func newTestRepo(primary, alternate *mockSource) *Repository {
	return New(config.Default(), cache.New(), primary, alternate)
}

// ===== Test: the second identical fetch is served from cache =====

func TestOngoingCachesFirstFetch(t *testing.T) {
	t.Parallel()

	var hits int
	primary := &mockSource{
		name: "otakudesu",
		ongoing: func(ctx context.Context, page int) (models.Envelope[[]models.AnimeSummary], error) {
			hits++
			return models.Success(summaries("one-piece", "frieren"), nil), nil
		},
	}
	repo := newTestRepo(primary, &mockSource{name: "samehadaku"})

	first, err := repo.Ongoing(context.Background(), 1)
	require.NoError(t, err)
	second, err := repo.Ongoing(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, 1, hits, "second call must be a cache hit")
	assert.Equal(t, first, second)
}

// ===== Test: a dead primary falls back to the alternate provider =====

func TestOngoingFallsBackToAlternate(t *testing.T) {
	t.Parallel()

	primary := &mockSource{name: "otakudesu"}
	alternate := &mockSource{
		name: "samehadaku",
		ongoing: func(ctx context.Context, page int) (models.Envelope[[]models.AnimeSummary], error) {
			return models.Success(summaries("dandadan"), nil), nil
		},
	}
	repo := newTestRepo(primary, alternate)

	env, err := repo.Ongoing(context.Background(), 2)
	require.NoError(t, err)
	assert.True(t, env.OK)
	assert.Equal(t, "Success (fallback)", env.StatusMessage)
	assert.Equal(t, "dandadan", env.Data[0].AnimeID)
}

// ===== Test: a blocked detail endpoint degrades to list data =====

func TestDetailSynthesizesFromListsWhenBlocked(t *testing.T) {
	t.Parallel()

	episodes := 3
	blocked := func(ctx context.Context, animeID string) (models.Envelope[*models.AnimeDetail], error) {
		return models.Envelope[*models.AnimeDetail]{}, &gateway.StatusError{Provider: "otakudesu", StatusCode: 403}
	}
	primary := &mockSource{
		name:   "otakudesu",
		detail: blocked,
		ongoing: func(ctx context.Context, page int) (models.Envelope[[]models.AnimeSummary], error) {
			item := models.AnimeSummary{AnimeID: "spy-family", Title: "Spy x Family", Poster: "https://img/spy.jpg", Episodes: &episodes}
			return models.Success([]models.AnimeSummary{item}, nil), nil
		},
	}
	alternate := &mockSource{name: "samehadaku", detail: blocked}
	repo := newTestRepo(primary, alternate)

	env, err := repo.Detail(context.Background(), "spy-family")
	require.NoError(t, err)
	require.True(t, env.OK)
	require.NotNil(t, env.Data)

	assert.Contains(t, env.Message, "partial")
	assert.Equal(t, "Spy x Family", env.Data.Title)
	require.Len(t, env.Data.Episodes, 3)
	assert.Equal(t, "spy-family_ep_1", env.Data.Episodes[0].EpisodeID)
	assert.Equal(t, "spy-family_ep_3", env.Data.Episodes[2].EpisodeID)

	assert.Nil(t, cache.Get[*models.AnimeDetail](repo.store, "detail_spy-family"),
		"synthesized detail must not be cached")
}

// ===== Test: an unknown episode degrades to the demo payload =====

func TestEpisodeSynthesizesDemoAfterTotalFailure(t *testing.T) {
	t.Parallel()

	repo := newTestRepo(&mockSource{name: "otakudesu"}, &mockSource{name: "samehadaku"})

	env, err := repo.Episode(context.Background(), "spy-family_ep_7")
	require.NoError(t, err)
	require.True(t, env.OK)
	require.NotNil(t, env.Data)

	assert.Contains(t, env.Message, "limited")
	assert.Contains(t, env.Data.DefaultStreamingURL, "spy-family")
	assert.Contains(t, env.Data.DefaultStreamingURL, "7")
	require.Len(t, env.Data.Servers, 3)
	assert.Equal(t, env.Data.DefaultStreamingURL, env.Data.Servers[0].URL)
	assert.True(t, strings.Contains(env.Data.Servers[1].URL, ".mp4"))
	assert.True(t, strings.Contains(env.Data.Servers[2].URL, ".m3u8"))

	assert.Nil(t, cache.Get[*models.EpisodeDetail](repo.store, "episode_spy-family_ep_7"),
		"demo payload must not be cached")
}

// ===== Test: a DNS failure surfaces as a network-down message =====

func TestSearchTranslatesNetworkFailure(t *testing.T) {
	t.Parallel()

	down := func(ctx context.Context, query string) (models.Envelope[[]models.AnimeSummary], error) {
		return models.Envelope[[]models.AnimeSummary]{}, &net.DNSError{Err: "no such host", Name: "wajik-anime-api.vercel.app", IsNotFound: true}
	}
	repo := newTestRepo(&mockSource{name: "otakudesu", search: down}, &mockSource{name: "samehadaku", search: down})

	env, err := repo.Search(context.Background(), "one piece")
	require.Error(t, err)

	var repoErr *Error
	require.ErrorAs(t, err, &repoErr)
	assert.Equal(t, KindNetworkUnavailable, repoErr.Kind)
	assert.False(t, env.OK)
	assert.Contains(t, env.Message, "No internet connection")
}

// ===== Test: cancellation is not an error and leaves no trace =====

func TestCancelLeavesCacheUntouched(t *testing.T) {
	t.Parallel()

	var alternateHits int
	primary := &mockSource{
		name: "otakudesu",
		genreAnime: func(ctx context.Context, genreID string, page int) (models.Envelope[[]models.AnimeSummary], error) {
			return models.Envelope[[]models.AnimeSummary]{}, context.Canceled
		},
	}
	alternate := &mockSource{
		name: "samehadaku",
		genreAnime: func(ctx context.Context, genreID string, page int) (models.Envelope[[]models.AnimeSummary], error) {
			alternateHits++
			return models.Success(summaries("bleach"), nil), nil
		},
	}
	repo := newTestRepo(primary, alternate)

	_, err := repo.GenreAnime(context.Background(), "action", 1)
	require.Error(t, err)
	assert.True(t, IsCanceled(err))
	assert.Equal(t, 0, alternateHits)
	assert.Equal(t, 0, repo.store.Len())
}

// ===== Test: derived episode ids round-trip through the splitter =====

func TestSplitEpisodeID(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in     string
		anime  string
		number int
		ok     bool
	}{
		{"spy-family_ep_7", "spy-family", 7, true},
		{"one-piece_ep_1089", "one-piece", 1089, true},
		{"weird_ep_name_ep_2", "weird_ep_name", 2, true},
		{"no-delimiter", "", 0, false},
		{"trailing_ep_", "", 0, false},
		{"not-number_ep_x", "", 0, false},
		{"_ep_3", "", 0, false},
	}
	for _, tc := range cases {
		anime, number, ok := SplitEpisodeID(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		if tc.ok {
			assert.Equal(t, tc.anime, anime, tc.in)
			assert.Equal(t, tc.number, number, tc.in)
		}
	}
}

// ===== Test: genre pages cache under their own key =====

func TestGenreAnimeCachesPerPage(t *testing.T) {
	t.Parallel()

	var hits int
	primary := &mockSource{
		name: "otakudesu",
		genreAnime: func(ctx context.Context, genreID string, page int) (models.Envelope[[]models.AnimeSummary], error) {
			hits++
			return models.Success(summaries("jujutsu-kaisen"), nil), nil
		},
	}
	repo := newTestRepo(primary, &mockSource{name: "samehadaku"})

	_, err := repo.GenreAnime(context.Background(), "action", 1)
	require.NoError(t, err)
	_, err = repo.GenreAnime(context.Background(), "action", 2)
	require.NoError(t, err)
	_, err = repo.GenreAnime(context.Background(), "action", 1)
	require.NoError(t, err)

	assert.Equal(t, 2, hits, "pages 1 and 2 fetch once each")
}
