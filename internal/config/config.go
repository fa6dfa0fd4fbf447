// Package config holds the runtime tunables. Everything observed to vary
// between deployments (provider hosts, retry pacing, resolver heuristics)
// lives here instead of being scattered as constants.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Provider identifies one upstream scraped API.
type Provider struct {
	Name    string
	BaseURL string
}

// Config is the full set of runtime tunables. Zero values are filled by
// Default; FromEnv applies GOTAKU_* overrides on top.
type Config struct {
	Primary   Provider
	Alternate Provider

	// Transport-level retry for 5xx/403 answers: linear backoff,
	// attempt number times RetryUnitDelay.
	RetryAttempts  int
	RetryUnitDelay time.Duration

	// Per-provider request pacing.
	RequestsPerSecond float64
	Burst             int

	// Stream selection heuristics. Hosts are matched by suffix against
	// the stream URL host. The preferred band is the resolution range
	// observed to play most reliably on these sources.
	ReliableHosts []string
	PreferredMin  int
	PreferredMax  int

	// Player-page extraction.
	ExtractTimeout time.Duration
	UserAgent      string

	// Synthesized episode links when every endpoint is down.
	StreamURLTemplate string
	DemoMP4URL        string
	DemoHLSURL        string

	PlayerBin      string
	SearchDebounce time.Duration
}

// Default returns the stock configuration.
func Default() Config {
	return Config{
		Primary: Provider{
			Name:    "otakudesu",
			BaseURL: "https://wajik-anime-api.vercel.app/otakudesu",
		},
		Alternate: Provider{
			Name:    "samehadaku",
			BaseURL: "https://wajik-anime-api.vercel.app/samehadaku",
		},
		RetryAttempts:     3,
		RetryUnitDelay:    500 * time.Millisecond,
		RequestsPerSecond: 4,
		Burst:             8,
		ReliableHosts:     []string{"desustream.info", "mp4upload.com", "blogger.com"},
		PreferredMin:      360,
		PreferredMax:      720,
		ExtractTimeout:    10 * time.Second,
		UserAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64)",
		StreamURLTemplate: "https://desustream.info/stream/%s-episode-%d.mp4",
		DemoMP4URL:        "https://commondatastorage.googleapis.com/gtv-videos-bucket/sample/BigBuckBunny.mp4",
		DemoHLSURL:        "https://test-streams.mux.dev/x36xhzz/x36xhzz.m3u8",
		PlayerBin:         "mpv",
		SearchDebounce:    400 * time.Millisecond,
	}
}

// FromEnv returns Default with GOTAKU_* environment overrides applied.
func FromEnv() Config {
	c := Default()
	c.applyEnv()
	return c
}

func (c *Config) applyEnv() {
	if v := os.Getenv("GOTAKU_PRIMARY_URL"); v != "" {
		c.Primary.BaseURL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv("GOTAKU_ALTERNATE_URL"); v != "" {
		c.Alternate.BaseURL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv("GOTAKU_RETRY_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.RetryAttempts = n
		}
	}
	if v := os.Getenv("GOTAKU_RETRY_UNIT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.RetryUnitDelay = time.Duration(n) * time.Millisecond
		}
	}
	if v := os.Getenv("GOTAKU_RELIABLE_HOSTS"); v != "" {
		var hosts []string
		for _, h := range strings.Split(v, ",") {
			if h = strings.TrimSpace(h); h != "" {
				hosts = append(hosts, h)
			}
		}
		if len(hosts) > 0 {
			c.ReliableHosts = hosts
		}
	}
	if v := os.Getenv("GOTAKU_PREFERRED_BAND"); v != "" {
		// format: "min-max", e.g. "360-720"
		parts := strings.SplitN(v, "-", 2)
		if len(parts) == 2 {
			min, errMin := strconv.Atoi(parts[0])
			max, errMax := strconv.Atoi(parts[1])
			if errMin == nil && errMax == nil && min > 0 && max >= min {
				c.PreferredMin, c.PreferredMax = min, max
			}
		}
	}
	if v := os.Getenv("GOTAKU_PLAYER"); v != "" {
		c.PlayerBin = v
	}
}
