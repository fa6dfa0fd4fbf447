// Package resolver picks the most playable stream for an episode and digs
// direct media URLs out of embedded player pages. Extraction is best-effort
// scraping: it is fragile against upstream markup changes and always fails
// soft instead of returning an error past this boundary.
package resolver

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"

	"github.com/gotaku-app/gotaku/internal/config"
	"github.com/gotaku-app/gotaku/internal/models"
	"github.com/gotaku-app/gotaku/internal/util"
)

const maxPageBytes = 2 << 20

// ErrNoStreams reports an empty candidate list. Callers handle it as a
// normal outcome, not a panic.
var ErrNoStreams = errors.New("no streams available")

// Resolver owns the extraction memo; a new instance starts cold.
type Resolver struct {
	client    *http.Client
	userAgent string
	timeout   time.Duration
	reliable  []string
	bandMin   int
	bandMax   int

	mu   sync.Mutex
	memo map[string]string
}

func New(cfg config.Config) *Resolver {
	return &Resolver{
		client:    util.GetSharedClient(),
		userAgent: cfg.UserAgent,
		timeout:   cfg.ExtractTimeout,
		reliable:  cfg.ReliableHosts,
		bandMin:   cfg.PreferredMin,
		bandMax:   cfg.PreferredMax,
		memo:      make(map[string]string),
	}
}

// SelectBestStream ranks the candidates and returns the one most likely to
// play: reliable hosts first, then the preferred resolution band, then raw
// resolution. Ties keep the input order.
func (r *Resolver) SelectBestStream(streams []models.StreamDescriptor) (models.StreamDescriptor, error) {
	if len(streams) == 0 {
		return models.StreamDescriptor{}, ErrNoStreams
	}
	sorted := SortByQuality(streams)

	for _, sd := range sorted {
		if r.isReliableHost(sd.URL) {
			return sd, nil
		}
	}
	for _, sd := range sorted {
		if q := Rank(sd.Quality); q >= r.bandMin && q <= r.bandMax {
			return sd, nil
		}
	}
	return sorted[0], nil
}

// SortByQuality returns a copy of streams in descending resolution order.
// The sort is stable so equally ranked entries keep their input order.
func SortByQuality(streams []models.StreamDescriptor) []models.StreamDescriptor {
	sorted := make([]models.StreamDescriptor, len(streams))
	copy(sorted, streams)
	sort.SliceStable(sorted, func(i, j int) bool {
		return Rank(sorted[i].Quality) > Rank(sorted[j].Quality)
	})
	return sorted
}

var resolutionRe = regexp.MustCompile(`(\d+)\s*[pP]`)

// Rank parses a numeric resolution out of a free-form quality label.
// Unparseable labels rank 0, the lowest.
func Rank(quality string) int {
	if m := resolutionRe.FindStringSubmatch(quality); len(m) > 1 {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n
		}
	}
	upper := strings.ToUpper(quality)
	switch {
	case strings.Contains(upper, "HD"):
		return 720
	case strings.Contains(upper, "SD"):
		return 480
	}
	for _, digits := range []string{"1080", "720", "480", "360"} {
		if strings.Contains(quality, digits) {
			n, _ := strconv.Atoi(digits)
			return n
		}
	}
	return 0
}

func (r *Resolver) isReliableHost(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, known := range r.reliable {
		if host == known || strings.HasSuffix(host, "."+known) {
			return true
		}
	}
	return false
}

// PlayableURL returns a URL the player can consume for sd. Direct media
// passes through untouched; embedded player pages go through extraction.
// ok is false when nothing playable could be derived.
func (r *Resolver) PlayableURL(ctx context.Context, sd models.StreamDescriptor) (string, bool) {
	if sd.URL == "" {
		return "", false
	}
	if sd.LooksDirect() {
		return sd.URL, true
	}
	return r.ExtractDirectURL(ctx, sd.URL)
}

// ExtractDirectURL fetches an embedded player page and tries the known
// extraction patterns against it. Successful extractions are memoized by
// page URL for the life of the resolver.
func (r *Resolver) ExtractDirectURL(ctx context.Context, pageURL string) (string, bool) {
	if pageURL == "" {
		return "", false
	}
	r.mu.Lock()
	if hit, ok := r.memo[pageURL]; ok {
		r.mu.Unlock()
		util.Debugf("extraction memo hit: %s", pageURL)
		return hit, true
	}
	r.mu.Unlock()
	defer util.Perf("resolver.extract", time.Now())

	page, err := r.fetchPage(ctx, pageURL)
	if err != nil {
		util.Debugf("extract %s: %v", pageURL, err)
		return "", false
	}
	direct := ExtractFromHTML(page)
	if direct == "" {
		util.Debugf("no media URL found in %s", pageURL)
		return "", false
	}

	r.mu.Lock()
	r.memo[pageURL] = direct
	r.mu.Unlock()
	util.Debugf("extracted %s from %s", direct, pageURL)
	return direct, true
}

func (r *Resolver) fetchPage(ctx context.Context, pageURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", errors.Wrap(err, "build player page request")
	}
	req.Header.Set("User-Agent", r.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	if ref := refererFor(pageURL); ref != "" {
		req.Header.Set("Referer", ref)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "fetch player page")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("player page answered %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", errors.Wrap(err, "read player page")
	}
	return string(body), nil
}

func refererFor(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host + "/"
}

var (
	fileAssignRe  = regexp.MustCompile(`(?i)(?:file|source|src|url)\s*[:=]\s*["']([^"']+?\.(?:mp4|m3u8)[^"']*)["']`)
	sourceParamRe = regexp.MustCompile(`(?i)(?:source|src)=(https?[^&"'\s<>]+)`)
	mp4Re         = regexp.MustCompile(`https?://[^\s<>"']+\.mp4[^\s<>"']*`)
	m3u8Re        = regexp.MustCompile(`https?://[^\s<>"']+\.m3u8[^\s<>"']*`)
)

// ExtractFromHTML runs the extraction ladder over one page: a DOM pass over
// video and data-* elements first, then the script patterns in order of
// specificity. Returns "" when nothing matches.
func ExtractFromHTML(page string) string {
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(page)); err == nil {
		if src := domSource(doc); src != "" {
			return src
		}
	}
	// Embed providers pass the real file as a source= query parameter,
	// usually percent-encoded. This must run before the assignment pattern
	// or the embed URL itself would match.
	if m := sourceParamRe.FindStringSubmatch(page); len(m) > 1 {
		candidate := m[1]
		if decoded, err := url.QueryUnescape(candidate); err == nil {
			candidate = decoded
		}
		if looksMedia(candidate) {
			return candidate
		}
	}
	if m := fileAssignRe.FindStringSubmatch(page); len(m) > 1 {
		return m[1]
	}
	if m := mp4Re.FindString(page); m != "" {
		return m
	}
	if m := m3u8Re.FindString(page); m != "" {
		return m
	}
	return ""
}

func domSource(doc *goquery.Document) string {
	var found string
	doc.Find("video source, video").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		for _, attr := range []string{"src", "data-video-src", "data-src"} {
			if v, ok := s.Attr(attr); ok && looksMedia(v) {
				found = v
				return false
			}
		}
		return true
	})
	if found != "" {
		return found
	}
	doc.Find("[data-video], [data-src], [data-url]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		for _, attr := range []string{"data-video", "data-src", "data-url"} {
			if v, ok := s.Attr(attr); ok && looksMedia(v) {
				found = v
				return false
			}
		}
		return true
	})
	return found
}

func looksMedia(u string) bool {
	return strings.Contains(u, ".mp4") || strings.Contains(u, ".m3u8")
}
