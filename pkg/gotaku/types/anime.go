// Package types provides public type definitions for the gotaku library
package types

import (
	"github.com/gotaku-app/gotaku/internal/models"
)

// Anime is one catalog entry as returned by the list and search operations.
type Anime struct {
	// ID is the provider-wide anime identifier, usable with Detail
	ID string
	// Title is the romanized title
	Title string
	// Poster is the cover image URL
	Poster string
	// Episodes is the episode count, 0 when the provider omitted it
	Episodes int
	// ReleaseDay is the weekly airing day for ongoing shows (may be empty)
	ReleaseDay string
	// LatestReleaseDate is the date of the newest episode (may be empty)
	LatestReleaseDate string
	// Score is the community rating as the provider formats it (may be empty)
	Score string
}

// Genre is one catalog genre.
type Genre struct {
	// ID is the genre identifier, usable with GenreAnime
	ID string
	// Title is the display name
	Title string
}

// EpisodeRef is one entry of a detail record's ordered episode list.
type EpisodeRef struct {
	// ID is the episode identifier, usable with Episode and StreamURL
	ID string
	// Title is the display title (may be just "Episode N")
	Title string
}

// AnimeDetail is the full record for one anime.
type AnimeDetail struct {
	ID            string
	Title         string
	JapaneseTitle string
	Poster        string
	Score         string
	Status        string
	Synopsis      string
	Genres        []Genre
	// Episodes is ordered first to last
	Episodes []EpisodeRef
	// Notice is non-empty when the record was served degraded, for example
	// rebuilt from list data because the detail endpoint was down
	Notice string
}

// Stream is one candidate playable reference for an episode. The URL may be
// a direct media file or an embedded player page; StreamURL on the client
// resolves either into something a player accepts.
type Stream struct {
	Quality string
	URL     string
	ID      string
}

// Episode is the playback payload for one episode.
type Episode struct {
	ID      string
	AnimeID string
	Title   string
	// DefaultURL is the provider's preferred stream, when it names one
	DefaultURL string
	Streams    []Stream
	// Notice is non-empty when the payload was served degraded, for example
	// synthesized demo streams because every endpoint failed
	Notice string
}

// Page carries list pagination. Zero Next or Prev means no such page.
type Page struct {
	Current int
	Total   int
	Next    int
	Prev    int
	HasNext bool
	HasPrev bool
}

// FromInternalSummary converts an internal list row to the public type.
func FromInternalSummary(internal models.AnimeSummary) *Anime {
	anime := &Anime{
		ID:                internal.AnimeID,
		Title:             internal.Title,
		Poster:            internal.Poster,
		Episodes:          internal.EpisodeCount(),
		ReleaseDay:        internal.ReleaseDay,
		LatestReleaseDate: internal.LatestReleaseDate,
	}
	if internal.Score != nil {
		anime.Score = *internal.Score
	}
	return anime
}

// FromInternalSummaryList converts a slice of internal list rows.
func FromInternalSummaryList(internal []models.AnimeSummary) []*Anime {
	result := make([]*Anime, len(internal))
	for i := range internal {
		result[i] = FromInternalSummary(internal[i])
	}
	return result
}

// FromInternalGenreList converts a slice of internal genres.
func FromInternalGenreList(internal []models.Genre) []*Genre {
	result := make([]*Genre, len(internal))
	for i, g := range internal {
		result[i] = &Genre{ID: g.GenreID, Title: g.Title}
	}
	return result
}

// FromInternalDetail converts an internal detail record to the public type.
func FromInternalDetail(internal *models.AnimeDetail) *AnimeDetail {
	if internal == nil {
		return nil
	}

	detail := &AnimeDetail{
		ID:            internal.AnimeID,
		Title:         internal.Title,
		JapaneseTitle: internal.JapaneseTitle,
		Poster:        internal.Poster,
		Score:         internal.Score,
		Status:        internal.Status,
		Synopsis:      internal.Synopsis,
	}

	if len(internal.Genres) > 0 {
		detail.Genres = make([]Genre, len(internal.Genres))
		for i, g := range internal.Genres {
			detail.Genres[i] = Genre{ID: g.GenreID, Title: g.Title}
		}
	}

	if len(internal.Episodes) > 0 {
		detail.Episodes = make([]EpisodeRef, len(internal.Episodes))
		for i, ep := range internal.Episodes {
			detail.Episodes[i] = EpisodeRef{ID: ep.EpisodeID, Title: ep.Title}
		}
	}

	return detail
}

// FromInternalEpisode converts an internal playback payload to the public type.
func FromInternalEpisode(internal *models.EpisodeDetail) *Episode {
	if internal == nil {
		return nil
	}

	episode := &Episode{
		ID:         internal.EpisodeID,
		AnimeID:    internal.AnimeID,
		Title:      internal.Title,
		DefaultURL: internal.DefaultStreamingURL,
	}

	if len(internal.Servers) > 0 {
		episode.Streams = make([]Stream, len(internal.Servers))
		for i, s := range internal.Servers {
			episode.Streams[i] = Stream{Quality: s.Quality, URL: s.URL, ID: s.StreamID}
		}
	}

	return episode
}

// FromInternalPage converts internal pagination, flattening the pointer
// cursors to plain ints.
func FromInternalPage(internal *models.Pagination) *Page {
	if internal == nil {
		return nil
	}

	page := &Page{
		Current: internal.CurrentPage,
		Total:   internal.TotalPages,
		HasNext: internal.HasNextPage,
		HasPrev: internal.HasPrevPage,
	}
	if internal.NextPage != nil {
		page.Next = *internal.NextPage
	}
	if internal.PrevPage != nil {
		page.Prev = *internal.PrevPage
	}
	return page
}
