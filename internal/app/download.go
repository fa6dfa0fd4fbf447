package app

import (
	"context"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/huh/spinner"
	"github.com/pkg/errors"

	"github.com/gotaku-app/gotaku/internal/downloader"
	"github.com/gotaku-app/gotaku/internal/models"
	"github.com/gotaku-app/gotaku/internal/player"
	"github.com/gotaku-app/gotaku/internal/util"
)

// downloadEntry is the -download flow: the episode is already chosen, ask
// what to do with it.
func (a *App) downloadEntry(ctx context.Context, detail *models.AnimeDetail, epIdx int) error {
	var choice string
	menu := huh.NewSelect[string]().
		Title("Download Options").
		Description("Choose how you want to proceed:").
		Options(
			huh.NewOption("Download this episode", "single"),
			huh.NewOption("Download a range", "range"),
			huh.NewOption("Play without downloading", "play"),
		).
		Value(&choice)
	if err := menu.Run(); err != nil {
		return errBack
	}

	switch choice {
	case "single":
		if err := a.downloadEpisodes(ctx, detail, epIdx, epIdx); err != nil {
			return err
		}
		return a.offerOffline(ctx, detail, epIdx)
	case "range":
		return a.downloadRange(ctx, detail)
	default:
		return a.playLoop(ctx, detail, epIdx, 0)
	}
}

func (a *App) downloadRange(ctx context.Context, detail *models.AnimeDetail) error {
	var input string
	err := huh.NewInput().
		Title(fmt.Sprintf("Episodes to download (1-%d, e.g. 3 or 1-5)", len(detail.Episodes))).
		Value(&input).
		Run()
	if err != nil {
		return errBack
	}
	from, to, err := parseRange(input, len(detail.Episodes))
	if err != nil {
		return err
	}
	return a.downloadEpisodes(ctx, detail, from-1, to-1)
}

func (a *App) downloadEpisodes(ctx context.Context, detail *models.AnimeDetail, fromIdx, toIdx int) error {
	jobs := a.buildJobs(ctx, detail, fromIdx, toIdx)
	if len(jobs) == 0 {
		return errors.New("no downloadable streams found")
	}

	d := a.newDownloader(detail)
	if len(jobs) == 1 {
		path, err := d.Download(ctx, jobs[0])
		if err != nil {
			return err
		}
		util.Infof("Saved to %s", path)
		return nil
	}
	if err := d.DownloadAll(ctx, jobs); err != nil {
		return err
	}
	util.Infof("Saved %d episodes to %s", len(jobs), downloader.DefaultDir(detail.AnimeID))
	return nil
}

// buildJobs resolves each requested episode down to a direct URL. Episodes
// that cannot be resolved are skipped with a warning rather than failing
// the batch.
func (a *App) buildJobs(ctx context.Context, detail *models.AnimeDetail, fromIdx, toIdx int) []downloader.Job {
	var jobs []downloader.Job
	for i := fromIdx; i <= toIdx && i < len(detail.Episodes); i++ {
		if i < 0 {
			continue
		}
		ref := detail.Episodes[i]
		number := episodeNumber(ref, i)

		var job *downloader.Job
		_ = spinner.New().
			Title(fmt.Sprintf("Preparing episode %d...", number)).
			Type(spinner.Dots).
			Action(func() {
				env, err := a.repo.Episode(ctx, ref.EpisodeID)
				if err != nil || !env.OK || env.Data == nil {
					util.Warnf("Skipping episode %d: %s", number, failureText(env, err))
					return
				}
				for _, sd := range orderStreams(a.res, env.Data) {
					if playURL, ok := a.res.PlayableURL(ctx, sd); ok {
						job = &downloader.Job{
							EpisodeID: ref.EpisodeID,
							Number:    number,
							URL:       playURL,
							Headers:   player.StreamHeaders(playURL),
						}
						return
					}
				}
				util.Warnf("Skipping episode %d: no resolvable stream", number)
			}).
			Run()
		if job != nil {
			jobs = append(jobs, *job)
		}
	}
	return jobs
}

func (a *App) newDownloader(detail *models.AnimeDetail) *downloader.Downloader {
	return downloader.New(downloader.Options{OutputDir: downloader.DefaultDir(detail.AnimeID)})
}

// offerOffline asks whether to play the file that was just saved.
func (a *App) offerOffline(ctx context.Context, detail *models.AnimeDetail, epIdx int) error {
	ref := detail.Episodes[epIdx]
	dest := a.newDownloader(detail).DestPath(downloader.Job{Number: episodeNumber(ref, epIdx)})

	var yes bool
	if err := huh.NewConfirm().
		Title("Play the downloaded episode now?").
		Value(&yes).
		Run(); err != nil || !yes {
		return nil
	}
	return a.playLocal(ctx, dest)
}

func (a *App) playLocal(ctx context.Context, path string) error {
	handle, err := player.MPVLauncher{Bin: a.cfg.PlayerBin}.Launch(ctx, path, models.HintProgressive, nil)
	if err != nil {
		return err
	}
	util.Infof("Playing %s", path)
	select {
	case err := <-handle.Done():
		if err != nil {
			util.Debugf("local playback: %v", err)
		}
		return nil
	case <-ctx.Done():
		_ = handle.Stop()
		return ctx.Err()
	}
}

func failureText[T any](env models.Envelope[T], err error) string {
	if err != nil {
		return err.Error()
	}
	if env.Message != "" {
		return env.Message
	}
	return "no data"
}
