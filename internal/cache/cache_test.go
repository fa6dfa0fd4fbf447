package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gotaku-app/gotaku/internal/models"
)

// fakeClock lets tests move time without sleeping.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newTestCache(clk *fakeClock) *Cache {
	c := New()
	c.now = clk.Now
	return c
}

func sampleList(n int) []models.AnimeSummary {
	out := make([]models.AnimeSummary, n)
	for i := range out {
		out[i] = models.AnimeSummary{
			AnimeID: fmt.Sprintf("anime-%d", i),
			Title:   fmt.Sprintf("Anime %d", i),
		}
	}
	return out
}

// ===== Test: put then get returns the value unchanged =====

func TestCacheRoundTrip(t *testing.T) {
	t.Parallel()

	clk := newFakeClock()
	c := newTestCache(clk)

	env := models.Success(sampleList(3), &models.Pagination{CurrentPage: 1, TotalPages: 10})
	Put(c, "ongoing_1", env)

	got := Get[[]models.AnimeSummary](c, "ongoing_1")
	require.NotNil(t, got)
	assert.Equal(t, env, *got)
	assert.Len(t, got.Data, 3)
}

// ===== Test: entries expire lazily and are removed on read =====

func TestCacheLazyExpiry(t *testing.T) {
	t.Parallel()

	clk := newFakeClock()
	c := newTestCache(clk)

	Put(c, "ongoing_1", models.Success(sampleList(1), nil))
	require.Equal(t, 1, c.Len())

	clk.Advance(DefaultTTL + time.Second)

	assert.Nil(t, Get[[]models.AnimeSummary](c, "ongoing_1"))
	assert.Equal(t, 0, c.Len(), "expired entry should be removed, not just hidden")
}

// ===== Test: TTL depends on the key prefix =====

func TestCacheTTLByPrefix(t *testing.T) {
	t.Parallel()

	assert.Equal(t, EpisodeTTL, TTLFor("episode_naruto_ep_1"))
	assert.Equal(t, DetailTTL, TTLFor("detail_naruto"))
	assert.Equal(t, DefaultTTL, TTLFor("ongoing_2"))
	assert.Equal(t, DefaultTTL, TTLFor("complete_1"))
	assert.Equal(t, DefaultTTL, TTLFor("search_one piece"))
	assert.Equal(t, DefaultTTL, TTLFor("genres"))
	assert.Equal(t, DefaultTTL, TTLFor("genre_action_1"))
}

func TestCacheEpisodeExpiresBeforeDetail(t *testing.T) {
	t.Parallel()

	clk := newFakeClock()
	c := newTestCache(clk)

	detail := &models.AnimeDetail{AnimeID: "naruto", Title: "Naruto"}
	episode := &models.EpisodeDetail{EpisodeID: "naruto_ep_1"}

	Put(c, "detail_naruto", models.Success(detail, nil))
	Put(c, "episode_naruto_ep_1", models.Success(episode, nil))

	clk.Advance(EpisodeTTL + time.Second)

	assert.Nil(t, Get[*models.EpisodeDetail](c, "episode_naruto_ep_1"))
	assert.NotNil(t, Get[*models.AnimeDetail](c, "detail_naruto"))
}

// ===== Test: a type mismatch is a miss, never a panic =====

func TestCacheTypeMismatchIsMiss(t *testing.T) {
	t.Parallel()

	clk := newFakeClock()
	c := newTestCache(clk)

	Put(c, "detail_naruto", models.Success(sampleList(2), nil))

	assert.NotPanics(t, func() {
		got := Get[*models.AnimeDetail](c, "detail_naruto")
		assert.Nil(t, got)
	})
}

// ===== Test: explicit sweep removes only expired entries =====

func TestCacheClearExpired(t *testing.T) {
	t.Parallel()

	clk := newFakeClock()
	c := newTestCache(clk)

	Put(c, "ongoing_1", models.Success(sampleList(1), nil))
	clk.Advance(DefaultTTL + time.Second)
	Put(c, "ongoing_2", models.Success(sampleList(1), nil))

	c.ClearExpired()

	assert.Equal(t, 1, c.Len())
	assert.Nil(t, Get[[]models.AnimeSummary](c, "ongoing_1"))
	assert.NotNil(t, Get[[]models.AnimeSummary](c, "ongoing_2"))
}

func TestCacheRemoveAndClear(t *testing.T) {
	t.Parallel()

	clk := newFakeClock()
	c := newTestCache(clk)

	Put(c, "genres", models.Success([]models.Genre{{GenreID: "action", Title: "Action"}}, nil))
	Put(c, "ongoing_1", models.Success(sampleList(1), nil))

	c.Remove("genres")
	assert.Nil(t, Get[[]models.Genre](c, "genres"))
	assert.Equal(t, 1, c.Len())

	c.Clear()
	assert.Equal(t, 0, c.Len())
}

// ===== Test: overwriting a key refreshes both value and timestamp =====

func TestCachePutRefreshes(t *testing.T) {
	t.Parallel()

	clk := newFakeClock()
	c := newTestCache(clk)

	Put(c, "ongoing_1", models.Success(sampleList(1), nil))
	clk.Advance(DefaultTTL - time.Second)
	Put(c, "ongoing_1", models.Success(sampleList(5), nil))
	clk.Advance(2 * time.Second)

	got := Get[[]models.AnimeSummary](c, "ongoing_1")
	require.NotNil(t, got)
	assert.Len(t, got.Data, 5)
}
