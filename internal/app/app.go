// Package app is the interactive terminal flow: browse or search the
// catalog, pick an episode, then hand off to playback or download. All
// data access goes through the repository; this package only renders and
// routes.
package app

import (
	"context"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/huh/spinner"
	"github.com/ktr0731/go-fuzzyfinder"
	"github.com/pkg/errors"

	"github.com/gotaku-app/gotaku/internal/config"
	"github.com/gotaku-app/gotaku/internal/models"
	"github.com/gotaku-app/gotaku/internal/repository"
	"github.com/gotaku-app/gotaku/internal/resolver"
	"github.com/gotaku-app/gotaku/internal/tracking"
	"github.com/gotaku-app/gotaku/internal/util"
)

var (
	errQuit = errors.New("quit requested")
	errBack = errors.New("back requested")
)

// Options wires the app together. Store may be nil when progress tracking
// is unavailable; Discord toggles rich presence updates during playback.
type Options struct {
	Config   config.Config
	Repo     *repository.Repository
	Resolver *resolver.Resolver
	Store    *tracking.Store
	Discord  bool
	Download bool
}

type App struct {
	cfg       config.Config
	repo      *repository.Repository
	res       *resolver.Resolver
	store     *tracking.Store
	discordOn bool
	download  bool
	slot      repository.Slot
}

func New(opts Options) *App {
	return &App{
		cfg:       opts.Config,
		repo:      opts.Repo,
		res:       opts.Resolver,
		store:     opts.Store,
		discordOn: opts.Discord,
		download:  opts.Download,
	}
}

// Run is the top-level loop. A non-empty query skips the menu and searches
// immediately, matching the "gotaku <name>" invocation.
func (a *App) Run(ctx context.Context, query string) error {
	defer a.slot.Cancel()

	for {
		if err := a.dispatch(ctx, query); err != nil {
			if errors.Is(err, errQuit) || repository.IsCanceled(err) {
				return nil
			}
			if !errors.Is(err, errBack) {
				fmt.Println(util.ErrorHandler(err))
			}
		}
		if query != "" {
			// The query form is one-shot: fall back to the menu after.
			query = ""
		}
	}
}

func (a *App) dispatch(ctx context.Context, query string) error {
	if query != "" {
		return a.searchFlow(ctx, query)
	}

	choice, err := a.mainMenu()
	if err != nil {
		return errQuit
	}

	switch choice {
	case "search":
		q, err := util.GetUserInput("Anime title")
		if err != nil {
			return errBack
		}
		return a.searchFlow(ctx, q)
	case "ongoing":
		return a.pagedFlow(ctx, "Ongoing releases", a.repo.Ongoing)
	case "completed":
		return a.pagedFlow(ctx, "Completed series", a.repo.Completed)
	case "genres":
		return a.genreFlow(ctx)
	case "list":
		return a.catalogFlow(ctx)
	case "resume":
		return a.resumeFlow(ctx)
	default:
		return errQuit
	}
}

func (a *App) mainMenu() (string, error) {
	options := []huh.Option[string]{
		huh.NewOption("Search anime", "search"),
		huh.NewOption("Ongoing releases", "ongoing"),
		huh.NewOption("Completed series", "completed"),
		huh.NewOption("Browse by genre", "genres"),
		huh.NewOption("Full catalog", "list"),
	}
	if a.store != nil {
		options = append(options, huh.NewOption("Continue watching", "resume"))
	}
	options = append(options, huh.NewOption("Quit", "quit"))

	var choice string
	menu := huh.NewSelect[string]().
		Title("Gotaku").
		Description("What do you want to watch?").
		Options(options...).
		Value(&choice)

	if err := menu.Run(); err != nil {
		return "", err
	}
	return choice, nil
}

func (a *App) searchFlow(ctx context.Context, query string) error {
	var (
		env models.Envelope[[]models.AnimeSummary]
		err error
	)
	fetchCtx := a.slot.Begin(ctx)
	_ = spinner.New().
		Title(fmt.Sprintf("Searching for %q...", query)).
		Type(spinner.Dots).
		Action(func() { env, err = a.repo.Search(fetchCtx, query) }).
		Run()
	if err != nil {
		return err
	}
	announce(env)
	if len(env.Data) == 0 {
		util.Warnf("Nothing found for %q.", query)
		return errBack
	}

	action, idx, err := pickSummary("Pick a result:", env.Data, 0, false)
	if err != nil {
		return err
	}
	if action != pickSelected {
		return errBack
	}
	return a.animeFlow(ctx, env.Data[idx].AnimeID)
}

// pagedFlow drives the ongoing and completed lists, both paginated the
// same way upstream.
func (a *App) pagedFlow(ctx context.Context, label string, fetch func(context.Context, int) (models.Envelope[[]models.AnimeSummary], error)) error {
	page := 1
	for {
		var (
			env models.Envelope[[]models.AnimeSummary]
			err error
		)
		fetchCtx := a.slot.Begin(ctx)
		_ = spinner.New().
			Title(fmt.Sprintf("Loading %s, page %d...", label, page)).
			Type(spinner.Dots).
			Action(func() { env, err = fetch(fetchCtx, page) }).
			Run()
		if err != nil {
			return err
		}
		announce(env)
		if len(env.Data) == 0 {
			if page > 1 {
				util.Warn("No more pages.")
				page--
				continue
			}
			util.Warn("Nothing here right now.")
			return errBack
		}

		action, idx, err := pickSummary(label+":", env.Data, page, true)
		if err != nil {
			return err
		}
		switch action {
		case pickSelected:
			return a.animeFlow(ctx, env.Data[idx].AnimeID)
		case pickNextPage:
			page++
		case pickPrevPage:
			if page > 1 {
				page--
			}
		default:
			return errBack
		}
	}
}

func (a *App) genreFlow(ctx context.Context) error {
	var (
		env models.Envelope[[]models.Genre]
		err error
	)
	fetchCtx := a.slot.Begin(ctx)
	_ = spinner.New().
		Title("Loading genres...").
		Type(spinner.Dots).
		Action(func() { env, err = a.repo.Genres(fetchCtx) }).
		Run()
	if err != nil {
		return err
	}
	announce(env)
	if len(env.Data) == 0 {
		util.Warn("No genres available.")
		return errBack
	}

	genres := env.Data
	idx, err := fuzzyfinder.Find(
		genres,
		func(i int) string { return genres[i].Title },
		fuzzyfinder.WithPromptString("Pick a genre: "),
	)
	if err != nil {
		if errors.Is(err, fuzzyfinder.ErrAbort) {
			return errBack
		}
		return errors.Wrap(err, "genre selection")
	}

	genre := genres[idx]
	return a.pagedFlow(ctx, genre.Title, func(ctx context.Context, page int) (models.Envelope[[]models.AnimeSummary], error) {
		return a.repo.GenreAnime(ctx, genre.GenreID, page)
	})
}

func (a *App) catalogFlow(ctx context.Context) error {
	var (
		env models.Envelope[[]models.AnimeSummary]
		err error
	)
	fetchCtx := a.slot.Begin(ctx)
	_ = spinner.New().
		Title("Loading the full catalog...").
		Type(spinner.Dots).
		Action(func() { env, err = a.repo.AnimeList(fetchCtx) }).
		Run()
	if err != nil {
		return err
	}
	announce(env)
	if len(env.Data) == 0 {
		util.Warn("The catalog came back empty.")
		return errBack
	}

	action, idx, err := pickSummary("Full catalog:", env.Data, 0, false)
	if err != nil {
		return err
	}
	if action != pickSelected {
		return errBack
	}
	return a.animeFlow(ctx, env.Data[idx].AnimeID)
}

// resumeFlow lists saved progress newest first and jumps straight back
// into the chosen episode.
func (a *App) resumeFlow(ctx context.Context) error {
	records, err := a.store.All()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		util.Info("Nothing in progress yet. Watch something first.")
		return errBack
	}

	idx, err := fuzzyfinder.Find(
		records,
		func(i int) string {
			r := records[i]
			return fmt.Sprintf("%s — Episode %d · %s / %s",
				r.Title, r.Number, FormatClock(r.Position), FormatClock(r.Duration))
		},
		fuzzyfinder.WithPromptString("Continue watching: "),
	)
	if err != nil {
		if errors.Is(err, fuzzyfinder.ErrAbort) {
			return errBack
		}
		return errors.Wrap(err, "resume selection")
	}

	rec := records[idx]
	detail, err := a.fetchDetail(ctx, rec.AnimeID)
	if err != nil {
		return err
	}
	epIdx := indexOfEpisode(detail.Episodes, rec.EpisodeID)
	if epIdx < 0 {
		util.Warn("That episode is gone from the listing; pick one manually.")
		return a.episodeLoop(ctx, detail, -1)
	}
	resumeFrom := rec.Position
	if rec.NearlyDone() {
		// Finished or close to it: move on to the next episode instead.
		if epIdx+1 < len(detail.Episodes) {
			epIdx++
		}
		resumeFrom = 0
	}
	return a.watchLoop(ctx, detail, epIdx, resumeFrom)
}

// animeFlow fetches the detail record and enters the episode loop,
// offering to pick up where the viewer left off.
func (a *App) animeFlow(ctx context.Context, animeID string) error {
	detail, err := a.fetchDetail(ctx, animeID)
	if err != nil {
		return err
	}
	if len(detail.Episodes) == 0 {
		util.Warnf("%s has no listed episodes.", detail.Title)
		return errBack
	}

	if epIdx, resumeFrom, ok := a.offerResume(detail); ok {
		return a.watchLoop(ctx, detail, epIdx, resumeFrom)
	}
	return a.episodeLoop(ctx, detail, -1)
}

// episodeLoop lets the viewer pick an episode and then follows the
// post-playback navigation until they leave the anime.
func (a *App) episodeLoop(ctx context.Context, detail *models.AnimeDetail, epIdx int) error {
	if epIdx < 0 {
		var back bool
		var err error
		epIdx, back, err = pickEpisode(detail)
		if err != nil {
			return err
		}
		if back {
			return errBack
		}
	}
	return a.watchLoop(ctx, detail, epIdx, 0)
}

func (a *App) fetchDetail(ctx context.Context, animeID string) (*models.AnimeDetail, error) {
	var (
		env models.Envelope[*models.AnimeDetail]
		err error
	)
	fetchCtx := a.slot.Begin(ctx)
	_ = spinner.New().
		Title("Fetching details...").
		Type(spinner.Dots).
		Action(func() { env, err = a.repo.Detail(fetchCtx, animeID) }).
		Run()
	if err != nil {
		return nil, err
	}
	announce(env)
	if !env.OK || env.Data == nil {
		return nil, errors.New(env.Message)
	}
	return env.Data, nil
}

func (a *App) fetchEpisode(ctx context.Context, episodeID string) (*models.EpisodeDetail, error) {
	var (
		env models.Envelope[*models.EpisodeDetail]
		err error
	)
	fetchCtx := a.slot.Begin(ctx)
	_ = spinner.New().
		Title("Fetching episode...").
		Type(spinner.Dots).
		Action(func() { env, err = a.repo.Episode(fetchCtx, episodeID) }).
		Run()
	if err != nil {
		return nil, err
	}
	announce(env)
	if !env.OK || env.Data == nil {
		return nil, errors.New(env.Message)
	}
	return env.Data, nil
}

// offerResume asks whether to continue a partially watched episode. It
// returns ok=false when there is nothing to resume or the viewer declines.
func (a *App) offerResume(detail *models.AnimeDetail) (int, int, bool) {
	if a.store == nil {
		return 0, 0, false
	}
	rec, err := a.store.Resume(detail.AnimeID)
	if err != nil || rec == nil {
		return 0, 0, false
	}
	epIdx := indexOfEpisode(detail.Episodes, rec.EpisodeID)
	if epIdx < 0 {
		return 0, 0, false
	}

	if rec.NearlyDone() {
		if epIdx+1 >= len(detail.Episodes) {
			return 0, 0, false
		}
		next := epIdx + 1
		var yes bool
		err := huh.NewConfirm().
			Title(fmt.Sprintf("You finished episode %d. Continue with %s?",
				rec.Number, episodeLabel(detail.Episodes[next], next))).
			Value(&yes).
			Run()
		if err != nil || !yes {
			return 0, 0, false
		}
		return next, 0, true
	}

	var yes bool
	err = huh.NewConfirm().
		Title(fmt.Sprintf("Resume episode %d at %s?", rec.Number, FormatClock(rec.Position))).
		Value(&yes).
		Run()
	if err != nil || !yes {
		return 0, 0, false
	}
	return epIdx, rec.Position, true
}

type pickAction int

const (
	pickSelected pickAction = iota
	pickBackAction
	pickNextPage
	pickPrevPage
)

type pickRow struct {
	label  string
	action pickAction
	idx    int
}

// pickSummary shows a fuzzy-searchable list with a back entry on top and,
// for paginated lists, page-turn entries. Esc counts as back.
func pickSummary(label string, items []models.AnimeSummary, page int, paged bool) (pickAction, int, error) {
	rows := []pickRow{{"← Back", pickBackAction, -1}}
	if paged {
		rows = append(rows, pickRow{"→ Next page", pickNextPage, -1})
		if page > 1 {
			rows = append(rows, pickRow{"← Previous page", pickPrevPage, -1})
		}
	}
	for i, item := range items {
		rows = append(rows, pickRow{summaryLabel(item), pickSelected, i})
	}

	idx, err := fuzzyfinder.Find(
		rows,
		func(i int) string { return rows[i].label },
		fuzzyfinder.WithPromptString(label+" "),
		fuzzyfinder.WithPreviewWindow(func(i, w, h int) string {
			if i < 0 || i >= len(rows) || rows[i].action != pickSelected {
				return ""
			}
			return summaryPreview(items[rows[i].idx])
		}),
	)
	if err != nil {
		if errors.Is(err, fuzzyfinder.ErrAbort) {
			return pickBackAction, -1, nil
		}
		return pickBackAction, -1, errors.Wrap(err, "selection")
	}
	row := rows[idx]
	return row.action, row.idx, nil
}

func pickEpisode(detail *models.AnimeDetail) (int, bool, error) {
	rows := []pickRow{{"← Back", pickBackAction, -1}}
	for i, ref := range detail.Episodes {
		rows = append(rows, pickRow{episodeLabel(ref, i), pickSelected, i})
	}

	idx, err := fuzzyfinder.Find(
		rows,
		func(i int) string { return rows[i].label },
		fuzzyfinder.WithPromptString("Pick an episode: "),
	)
	if err != nil {
		if errors.Is(err, fuzzyfinder.ErrAbort) {
			return -1, true, nil
		}
		return -1, true, errors.Wrap(err, "episode selection")
	}
	row := rows[idx]
	if row.action != pickSelected {
		return -1, true, nil
	}
	return row.idx, false, nil
}

// announce surfaces the envelope's provenance: fallback answers as info,
// degraded and demo answers as warnings.
func announce[T any](env models.Envelope[T]) {
	switch env.StatusMessage {
	case "Success (fallback)":
		util.Info(env.Message)
	case "Success (degraded)", "Success (demo)":
		util.Warn(env.Message)
	}
}
