// Package gateway is the typed call surface over the two providers. Both
// expose the same route family behind different base URLs; a Client binds
// one of them. Retry pacing and request headers live here; fallback ordering
// between providers does not.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/gotaku-app/gotaku/internal/config"
	"github.com/gotaku-app/gotaku/internal/models"
	"github.com/gotaku-app/gotaku/internal/util"
)

// responses larger than this are upstream garbage, not catalog data
const maxResponseBytes = 4 << 20

// Source is the call surface the repository composes fallback chains from.
type Source interface {
	Name() string
	Ongoing(ctx context.Context, page int) (models.Envelope[[]models.AnimeSummary], error)
	Completed(ctx context.Context, page int) (models.Envelope[[]models.AnimeSummary], error)
	AnimeList(ctx context.Context) (models.Envelope[[]models.AnimeSummary], error)
	Detail(ctx context.Context, animeID string) (models.Envelope[*models.AnimeDetail], error)
	Episode(ctx context.Context, episodeID string) (models.Envelope[*models.EpisodeDetail], error)
	Search(ctx context.Context, query string) (models.Envelope[[]models.AnimeSummary], error)
	Genres(ctx context.Context) (models.Envelope[[]models.Genre], error)
	GenreAnime(ctx context.Context, genreID string, page int) (models.Envelope[[]models.AnimeSummary], error)
}

// StatusError is a non-2xx answer that did not carry a decodable envelope.
type StatusError struct {
	Provider   string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d", e.Provider, e.StatusCode)
}

// Client talks to one provider.
type Client struct {
	name      string
	baseURL   string
	client    *http.Client
	limiter   *rate.Limiter
	retry     RetryPolicy
	userAgent string
}

// NewClient builds a Client for the given provider using the shared pooled
// HTTP client.
func NewClient(p config.Provider, cfg config.Config) *Client {
	return &Client{
		name:      p.Name,
		baseURL:   strings.TrimRight(p.BaseURL, "/"),
		client:    util.GetSharedClient(),
		limiter:   rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		retry:     RetryPolicy{MaxAttempts: cfg.RetryAttempts, UnitDelay: cfg.RetryUnitDelay},
		userAgent: cfg.UserAgent,
	}
}

func (c *Client) Name() string { return c.name }

func (c *Client) Ongoing(ctx context.Context, page int) (models.Envelope[[]models.AnimeSummary], error) {
	return fetchJSON[[]models.AnimeSummary](ctx, c, "/ongoing", pageQuery(page))
}

func (c *Client) Completed(ctx context.Context, page int) (models.Envelope[[]models.AnimeSummary], error) {
	return fetchJSON[[]models.AnimeSummary](ctx, c, "/completed", pageQuery(page))
}

func (c *Client) AnimeList(ctx context.Context) (models.Envelope[[]models.AnimeSummary], error) {
	return fetchJSON[[]models.AnimeSummary](ctx, c, "/anime", nil)
}

func (c *Client) Detail(ctx context.Context, animeID string) (models.Envelope[*models.AnimeDetail], error) {
	return fetchJSON[*models.AnimeDetail](ctx, c, "/anime/"+url.PathEscape(animeID), nil)
}

func (c *Client) Episode(ctx context.Context, episodeID string) (models.Envelope[*models.EpisodeDetail], error) {
	return fetchJSON[*models.EpisodeDetail](ctx, c, "/episode/"+url.PathEscape(episodeID), nil)
}

func (c *Client) Search(ctx context.Context, query string) (models.Envelope[[]models.AnimeSummary], error) {
	q := url.Values{}
	q.Set("q", query)
	return fetchJSON[[]models.AnimeSummary](ctx, c, "/search", q)
}

func (c *Client) Genres(ctx context.Context) (models.Envelope[[]models.Genre], error) {
	return fetchJSON[[]models.Genre](ctx, c, "/genres", nil)
}

func (c *Client) GenreAnime(ctx context.Context, genreID string, page int) (models.Envelope[[]models.AnimeSummary], error) {
	return fetchJSON[[]models.AnimeSummary](ctx, c, "/genres/"+url.PathEscape(genreID), pageQuery(page))
}

func pageQuery(page int) url.Values {
	if page <= 1 {
		return nil
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	return q
}

// fetchJSON performs one rate-limited, retried GET and decodes the provider
// envelope. A non-2xx answer that still carries a valid envelope is returned
// as data (ok=false envelopes make the orchestrator fall back on their own);
// anything else becomes an error.
func fetchJSON[T any](ctx context.Context, c *Client, path string, query url.Values) (models.Envelope[T], error) {
	var zero models.Envelope[T]

	if err := c.limiter.Wait(ctx); err != nil {
		return zero, err
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	resp, err := c.retry.Do(ctx, c.client, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodGet, target, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		return zero, errors.Wrapf(err, "%s: GET %s", c.name, path)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			util.Debugf("close response body: %v", closeErr)
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return zero, errors.Wrapf(err, "%s: read body for %s", c.name, path)
	}

	var env models.Envelope[T]
	if decodeErr := json.Unmarshal(body, &env); decodeErr != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return zero, &StatusError{Provider: c.name, StatusCode: resp.StatusCode}
		}
		return zero, errors.Wrapf(decodeErr, "%s: decode %s", c.name, path)
	}

	// Some deployments answer errors with a bare {"message": ...} that
	// unmarshals into a zero envelope. Treat those like a status error.
	if env.StatusCode == 0 && !env.OK {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return zero, &StatusError{Provider: c.name, StatusCode: resp.StatusCode}
		}
		return zero, errors.Errorf("%s: malformed envelope for %s", c.name, path)
	}

	env.Pagination.Normalize()
	util.Debugf("%s: GET %s -> %d (ok=%v)", c.name, path, env.StatusCode, env.OK)
	return env, nil
}
