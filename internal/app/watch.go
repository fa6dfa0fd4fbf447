package app

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/huh/spinner"

	"github.com/gotaku-app/gotaku/internal/discord"
	"github.com/gotaku-app/gotaku/internal/models"
	"github.com/gotaku-app/gotaku/internal/player"
	"github.com/gotaku-app/gotaku/internal/resolver"
	"github.com/gotaku-app/gotaku/internal/tracking"
	"github.com/gotaku-app/gotaku/internal/util"
)

var autosaveEvery = 5 * time.Second

type outcome int

const (
	outcomeReplay outcome = iota
	outcomeNext
	outcomePrev
	outcomePick
	outcomeBack
	outcomeQuit
	outcomeDownload
	outcomeDownloadRange
)

// watchLoop is the per-anime driver: it plays the chosen episode and
// follows the navigation choices until the viewer leaves.
func (a *App) watchLoop(ctx context.Context, detail *models.AnimeDetail, epIdx, resumeFrom int) error {
	if a.download {
		return a.downloadEntry(ctx, detail, epIdx)
	}
	return a.playLoop(ctx, detail, epIdx, resumeFrom)
}

func (a *App) playLoop(ctx context.Context, detail *models.AnimeDetail, epIdx, resumeFrom int) error {
	for {
		o, err := a.playEpisode(ctx, detail, epIdx, resumeFrom)
		resumeFrom = 0
		if err != nil {
			return err
		}
		switch o {
		case outcomeNext:
			if epIdx+1 >= len(detail.Episodes) {
				util.Info("That was the last listed episode.")
				return errBack
			}
			epIdx++
		case outcomePrev:
			if epIdx > 0 {
				epIdx--
			}
		case outcomePick:
			idx, back, err := pickEpisode(detail)
			if err != nil {
				return err
			}
			if back {
				return errBack
			}
			epIdx = idx
		case outcomeReplay:
		case outcomeBack:
			return errBack
		default:
			return errQuit
		}
	}
}

// playEpisode resolves and plays one episode, runs the trouble menu on
// terminal errors, and ends in the navigation menu.
func (a *App) playEpisode(ctx context.Context, detail *models.AnimeDetail, epIdx, resumeFrom int) (outcome, error) {
	ref := detail.Episodes[epIdx]
	ep, err := a.fetchEpisode(ctx, ref.EpisodeID)
	if err != nil {
		fmt.Println(util.ErrorHandler(err))
		return outcomeBack, nil
	}

	streams := orderStreams(a.res, ep)
	if len(streams) == 0 {
		util.Warn("No playable sources for this episode.")
		return outcomeBack, nil
	}

	session, err := player.NewSession(streams, player.Options{
		Resolve:     a.res.PlayableURL,
		Launch:      player.MPVLauncher{Bin: a.cfg.PlayerBin}.Launch,
		OpenBrowser: openInBrowser,
	})
	if err != nil {
		return outcomeBack, err
	}
	defer session.Close()

	number := episodeNumber(ref, epIdx)
	util.Infof("Playing %s — Episode %d", detail.Title, number)

	var loadErr error
	_ = spinner.New().
		Title("Resolving stream...").
		Type(spinner.Dots).
		Action(func() { loadErr = session.Load(ctx) }).
		Run()
	if loadErr != nil {
		util.Debugf("initial load: %v", loadErr)
	}

	for {
		snap := session.Snapshot()
		switch snap.State {
		case player.StateReady, player.StateBuffering:
			ended, err := a.supervise(ctx, session, detail, ep, number, resumeFrom)
			resumeFrom = 0
			if err != nil {
				return outcomeQuit, err
			}
			if ended {
				return a.afterMenus(ctx, detail, epIdx)
			}
		case player.StateError:
			cont := a.troubleMenu(ctx, session, snap)
			if !cont {
				return outcomeBack, nil
			}
		default:
			// Ended, or Idle after the browser handoff.
			return a.afterMenus(ctx, detail, epIdx)
		}
	}
}

// supervise watches one live playback handle: it wires rich presence and
// progress autosave, then waits for the player to exit. A process error is
// fed back into the session, which may auto-recover; ended reports a clean
// finish.
func (a *App) supervise(ctx context.Context, session *player.Session, detail *models.AnimeDetail, ep *models.EpisodeDetail, number, resumeFrom int) (bool, error) {
	handle := session.Handle()
	if handle == nil {
		return false, nil
	}
	mpv, _ := handle.(*player.MPVHandle)

	if resumeFrom > 0 && mpv != nil {
		// mpv ignores seeks until the file is loaded; give it a moment.
		time.Sleep(500 * time.Millisecond)
		if err := mpv.Seek(float64(resumeFrom)); err != nil {
			util.Debugf("resume seek: %v", err)
		} else {
			util.Infof("Resumed at %s", FormatClock(resumeFrom))
		}
	}

	var upd *discord.Updater
	if a.discordOn && mpv != nil {
		upd = discord.NewUpdater(discord.Watching{
			Title:   detail.Title,
			Episode: number,
			Poster:  detail.Poster,
			PageURL: session.Current().URL,
		}, mpv, 5*time.Second)
		upd.Start()
	}

	var probe playbackProbe
	if mpv != nil {
		probe = mpv
	}
	stopSave := a.startAutosave(detail, ep, number, probe)

	select {
	case err := <-handle.Done():
		upd.Stop()
		stopSave()
		if err == nil {
			session.OnEnded()
			return true, nil
		}
		util.Debugf("playback exited: %v", err)
		session.OnError(ctx, err)
		return false, nil
	case <-ctx.Done():
		upd.Stop()
		stopSave()
		session.Close()
		return false, ctx.Err()
	}
}

type playbackProbe interface {
	Position() (float64, error)
	Duration() (float64, error)
}

// startAutosave persists playback position on a ticker and once more on
// stop. The returned func blocks until the goroutine is gone.
func (a *App) startAutosave(detail *models.AnimeDetail, ep *models.EpisodeDetail, number int, probe playbackProbe) func() {
	if a.store == nil || probe == nil {
		return func() {}
	}

	save := func() {
		pos, err := probe.Position()
		if err != nil || pos <= 0 {
			return
		}
		dur, err := probe.Duration()
		if err != nil || dur <= 0 {
			return
		}
		rec := tracking.Record{
			AnimeID:   detail.AnimeID,
			EpisodeID: ep.EpisodeID,
			Number:    number,
			Position:  int(pos),
			Duration:  int(dur),
			Title:     detail.Title,
		}
		if err := a.store.Save(rec); err != nil {
			util.Debugf("save progress: %v", err)
		}
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(autosaveEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				save()
			case <-stop:
				save()
				return
			}
		}
	}()
	return func() {
		close(stop)
		<-done
	}
}

// troubleMenu handles a terminal playback error. It returns false when the
// viewer gives up on this episode.
func (a *App) troubleMenu(ctx context.Context, session *player.Session, snap player.Snapshot) bool {
	util.Warnf("Playback failed (%s) on %s after %d retries.", snap.Cause, snap.Quality, snap.Retries)

	options := []huh.Option[string]{huh.NewOption("Try again", "retry")}
	if snap.CanCycle {
		options = append(options, huh.NewOption("Switch quality", "cycle"))
	}
	if snap.CanEmbed {
		options = append(options, huh.NewOption("Open in browser", "embed"))
	}
	options = append(options, huh.NewOption("Back", "back"))

	var choice string
	menu := huh.NewSelect[string]().
		Title("Stream trouble").
		Description(playbackAdvice(snap.Cause)).
		Options(options...).
		Value(&choice)
	if err := menu.Run(); err != nil {
		return false
	}

	switch choice {
	case "retry":
		_ = spinner.New().Title("Retrying...").Type(spinner.Dots).
			Action(func() { _ = session.Retry(ctx) }).Run()
		return true
	case "cycle":
		_ = spinner.New().Title("Switching quality...").Type(spinner.Dots).
			Action(func() { _ = session.CycleQuality(ctx) }).Run()
		return true
	case "embed":
		if err := session.OpenEmbedded(); err != nil {
			util.Warnf("Could not open the browser: %v", err)
		} else {
			util.Info("Opened the embedded player in your browser.")
		}
		return false
	default:
		return false
	}
}

// playbackAdvice is the one-line hint shown with the trouble menu.
func playbackAdvice(c player.Cause) string {
	switch c {
	case player.CauseNetworkDown:
		return "The network looks unreachable. Check your connection and retry."
	case player.CauseTimeout:
		return "The source is slow to answer. Retrying sometimes clears it."
	case player.CauseAccessDenied:
		return "The source refused the request. Another quality usually works."
	case player.CauseNotFound:
		return "The stream seems to be gone. Try another quality."
	case player.CauseMalformedMedia:
		return "The stream data looks broken. Try another quality or the browser."
	case player.CauseUnsupportedFormat:
		return "mpv cannot play this stream. The embedded page may still work."
	default:
		return "Playback failed. Retry, or try another quality."
	}
}

// afterMenus runs the post-playback navigation menu, looping through
// download choices so the viewer lands back on the same menu.
func (a *App) afterMenus(ctx context.Context, detail *models.AnimeDetail, epIdx int) (outcome, error) {
	for {
		o := a.afterMenu(detail, epIdx)
		switch o {
		case outcomeDownload:
			if err := a.downloadEpisodes(ctx, detail, epIdx, epIdx); err != nil {
				fmt.Println(util.ErrorHandler(err))
			}
		case outcomeDownloadRange:
			if err := a.downloadRange(ctx, detail); err != nil {
				fmt.Println(util.ErrorHandler(err))
			}
		default:
			return o, nil
		}
	}
}

func (a *App) afterMenu(detail *models.AnimeDetail, epIdx int) outcome {
	var options []huh.Option[string]
	if epIdx+1 < len(detail.Episodes) {
		options = append(options, huh.NewOption("Next episode", "next"))
	}
	if epIdx > 0 {
		options = append(options, huh.NewOption("Previous episode", "prev"))
	}
	options = append(options,
		huh.NewOption("Pick an episode", "pick"),
		huh.NewOption("Replay", "replay"),
		huh.NewOption("Download this episode", "download"),
		huh.NewOption("Download a range", "download-range"),
		huh.NewOption("Another anime", "back"),
		huh.NewOption("Quit", "quit"),
	)

	var choice string
	menu := huh.NewSelect[string]().
		Title("What next?").
		Options(options...).
		Value(&choice)
	if err := menu.Run(); err != nil {
		return outcomeQuit
	}
	return outcomeFor(choice)
}

func outcomeFor(choice string) outcome {
	switch choice {
	case "next":
		return outcomeNext
	case "prev":
		return outcomePrev
	case "pick":
		return outcomePick
	case "replay":
		return outcomeReplay
	case "download":
		return outcomeDownload
	case "download-range":
		return outcomeDownloadRange
	case "back":
		return outcomeBack
	default:
		return outcomeQuit
	}
}

// orderStreams puts the selector's best pick first, then the rest in rank
// order, deduplicated by URL. The page's default stream joins the pool as
// one more candidate.
func orderStreams(res *resolver.Resolver, ep *models.EpisodeDetail) []models.StreamDescriptor {
	candidates := make([]models.StreamDescriptor, 0, len(ep.Servers)+1)
	candidates = append(candidates, ep.Servers...)
	if ep.DefaultStreamingURL != "" {
		candidates = append(candidates, models.StreamDescriptor{
			Quality:  "default",
			URL:      ep.DefaultStreamingURL,
			StreamID: "default",
		})
	}
	if len(candidates) == 0 {
		return nil
	}

	ordered := resolver.SortByQuality(candidates)
	pool := ordered
	if best, err := res.SelectBestStream(candidates); err == nil {
		pool = append([]models.StreamDescriptor{best}, ordered...)
	}

	seen := make(map[string]bool, len(pool))
	out := make([]models.StreamDescriptor, 0, len(pool))
	for _, sd := range pool {
		if seen[sd.URL] {
			continue
		}
		seen[sd.URL] = true
		out = append(out, sd)
	}
	return out
}

func openInBrowser(pageURL string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", pageURL)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", pageURL)
	default:
		cmd = exec.Command("xdg-open", pageURL)
	}
	return cmd.Start()
}
