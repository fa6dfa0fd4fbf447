package app

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/gotaku-app/gotaku/internal/models"
	"github.com/gotaku-app/gotaku/internal/repository"
)

var digitsRe = regexp.MustCompile(`\d+`)

// episodeNumber recovers the human episode number: from a derived id when
// the episode was synthesized, from digits in the title, or from list
// position as the last resort.
func episodeNumber(ref models.EpisodeRef, idx int) int {
	if _, n, ok := repository.SplitEpisodeID(ref.EpisodeID); ok {
		return n
	}
	if m := digitsRe.FindString(ref.Title); m != "" {
		if n, err := strconv.Atoi(m); err == nil && n > 0 {
			return n
		}
	}
	return idx + 1
}

func episodeLabel(ref models.EpisodeRef, idx int) string {
	if strings.TrimSpace(ref.Title) != "" {
		return ref.Title
	}
	return fmt.Sprintf("Episode %d", episodeNumber(ref, idx))
}

func indexOfEpisode(refs []models.EpisodeRef, episodeID string) int {
	for i, ref := range refs {
		if ref.EpisodeID == episodeID {
			return i
		}
	}
	return -1
}

// FormatClock renders seconds as m:ss, or h:mm:ss past the hour.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := seconds % 3600 / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

func summaryLabel(s models.AnimeSummary) string {
	label := s.Title
	if n := s.EpisodeCount(); n > 0 {
		label += fmt.Sprintf(" (%d eps)", n)
	}
	if s.Score != nil && *s.Score != "" {
		label += " ★" + *s.Score
	}
	if s.ReleaseDay != "" {
		label += " · " + s.ReleaseDay
	}
	return label
}

func summaryPreview(s models.AnimeSummary) string {
	lines := []string{s.Title}
	if s.ReleaseDay != "" {
		lines = append(lines, "Airs: "+s.ReleaseDay)
	}
	if s.LatestReleaseDate != "" {
		lines = append(lines, "Latest: "+s.LatestReleaseDate)
	}
	if n := s.EpisodeCount(); n > 0 {
		lines = append(lines, fmt.Sprintf("Episodes: %d", n))
	}
	if s.Score != nil && *s.Score != "" {
		lines = append(lines, "Score: "+*s.Score)
	}
	if s.Poster != "" {
		lines = append(lines, "Poster: "+s.Poster)
	}
	return strings.Join(lines, "\n")
}

// parseRange reads "3" or "1-5" as a 1-based inclusive episode range,
// clamped to the episode count.
func parseRange(input string, max int) (int, int, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return 0, 0, errors.New("empty range")
	}

	from, to := 0, 0
	if strings.Contains(s, "-") {
		parts := strings.SplitN(s, "-", 2)
		a, errA := strconv.Atoi(strings.TrimSpace(parts[0]))
		b, errB := strconv.Atoi(strings.TrimSpace(parts[1]))
		if errA != nil || errB != nil {
			return 0, 0, errors.Errorf("cannot read %q as a range like 1-5", s)
		}
		from, to = a, b
	} else {
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, 0, errors.Errorf("cannot read %q as an episode number", s)
		}
		from, to = n, n
	}

	if from < 1 || to < from {
		return 0, 0, errors.Errorf("range %q is out of order", s)
	}
	if from > max {
		return 0, 0, errors.Errorf("episode %d is past the last episode (%d)", from, max)
	}
	if to > max {
		to = max
	}
	return from, to, nil
}
