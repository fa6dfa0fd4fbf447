package models

import "strings"

// AnimeSummary is one row of a list endpoint. Field presence varies by
// provider and by list category: the ongoing shape carries schedule fields,
// the completed shape carries Score on the alternate provider only. Optional
// fields are pointers so "absent" stays distinguishable from zero.
type AnimeSummary struct {
	AnimeID           string  `json:"animeId"`
	Title             string  `json:"title"`
	Poster            string  `json:"poster"`
	Episodes          *int    `json:"episodes"`
	ReleaseDay        string  `json:"releaseDay,omitempty"`
	LatestReleaseDate string  `json:"latestReleaseDate,omitempty"`
	Score             *string `json:"score,omitempty"`
}

// EpisodeCount returns the episode count or 0 when the provider omitted it.
func (s AnimeSummary) EpisodeCount() int {
	if s.Episodes == nil {
		return 0
	}
	return *s.Episodes
}

// Genre is one catalog genre.
type Genre struct {
	GenreID string `json:"genreId"`
	Title   string `json:"title"`
}

// EpisodeRef is one entry of a detail page's ordered episode list.
type EpisodeRef struct {
	EpisodeID string `json:"episodeId"`
	Title     string `json:"title"`
	Href      string `json:"href,omitempty"`
}

// AnimeDetail is the full detail record. A synthesized record (built from
// list data when the detail endpoint is blocked) is identified only by the
// envelope message, not by shape.
type AnimeDetail struct {
	AnimeID       string       `json:"animeId"`
	Title         string       `json:"title"`
	JapaneseTitle string       `json:"japanese,omitempty"`
	Poster        string       `json:"poster"`
	Score         string       `json:"score,omitempty"`
	Status        string       `json:"status,omitempty"`
	Synopsis      string       `json:"synopsis,omitempty"`
	Genres        []Genre      `json:"genres,omitempty"`
	Episodes      []EpisodeRef `json:"episodes"`
}

// StreamDescriptor is one candidate playable reference for an episode.
// The URL may be a direct media file, an adaptive manifest, or an embedded
// player page; nothing but the URL itself tells which.
type StreamDescriptor struct {
	Quality  string `json:"quality"`
	URL      string `json:"url"`
	StreamID string `json:"streamId"`
}

// LooksDirect reports whether the URL points at media a player can consume
// without extraction. Substring match, not proof.
func (sd StreamDescriptor) LooksDirect() bool {
	u := strings.ToLower(sd.URL)
	return strings.Contains(u, ".mp4") || strings.Contains(u, ".m3u8") || strings.Contains(u, ".mpd")
}

// EpisodeDetail is the playback payload for one episode.
type EpisodeDetail struct {
	EpisodeID           string             `json:"episodeId"`
	AnimeID             string             `json:"animeId"`
	Title               string             `json:"title"`
	DefaultStreamingURL string             `json:"defaultStreamingUrl,omitempty"`
	Servers             []StreamDescriptor `json:"servers"`
}

// StreamHint tells the player what container to expect, inferred from the
// URL because the providers never declare it.
type StreamHint int

const (
	HintProgressive StreamHint = iota
	HintHLS
	HintDASH
)

func (h StreamHint) String() string {
	switch h {
	case HintHLS:
		return "hls"
	case HintDASH:
		return "dash"
	default:
		return "progressive"
	}
}

// HintFor infers the stream hint from URL substrings.
func HintFor(url string) StreamHint {
	u := strings.ToLower(url)
	switch {
	case strings.Contains(u, ".m3u8"):
		return HintHLS
	case strings.Contains(u, ".mpd"):
		return HintDASH
	default:
		return HintProgressive
	}
}
