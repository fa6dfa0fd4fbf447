// Package downloader saves episodes for offline playback. Plain media URLs
// stream over HTTP with a progress bar; HLS playlists and hosts that gate
// direct requests go through yt-dlp.
package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/lrstanley/go-ytdlp"
	"github.com/pkg/errors"

	"github.com/gotaku-app/gotaku/internal/util"
)

const (
	minFileSize          = 1024
	copyBufferSize       = 32 * 1024
	hlsSizeEstimate      = 400 << 20
	fallbackSizeEstimate = 300 << 20
)

// Job is one episode to download. URL must already be directly playable;
// Headers carry whatever the origin requires (Referer and friends).
type Job struct {
	EpisodeID string
	Number    int
	URL       string
	Headers   map[string]string
}

// Options configures a Downloader. Zero values mean the per-anime default
// directory, three concurrent transfers and the shared download client.
type Options struct {
	OutputDir   string
	Concurrent  int
	Client      *http.Client
	ProgramOpts []tea.ProgramOption
}

type Downloader struct {
	outputDir   string
	concurrent  int
	client      *http.Client
	programOpts []tea.ProgramOption
}

func New(opts Options) *Downloader {
	d := &Downloader{
		outputDir:   opts.OutputDir,
		concurrent:  opts.Concurrent,
		client:      opts.Client,
		programOpts: opts.ProgramOpts,
	}
	if d.outputDir == "" {
		d.outputDir = DefaultDir("")
	}
	if d.concurrent <= 0 {
		d.concurrent = 3
	}
	if d.client == nil {
		d.client = util.GetDownloadClient()
	}
	return d
}

// DefaultDir returns the per-anime download directory.
func DefaultDir(animeID string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	safe := strings.ReplaceAll(strings.TrimSpace(animeID), " ", "_")
	return filepath.Join(home, ".local", "gotaku", "downloads", safe)
}

// NeedsYtDlp reports whether a URL is better served by yt-dlp than a plain
// HTTP transfer: HLS playlists and hosts that gate direct requests.
func NeedsYtDlp(url string) bool {
	return strings.Contains(url, ".m3u8") ||
		strings.Contains(url, "blogger.com") ||
		strings.Contains(url, "googlevideo.com")
}

// DestPath returns where a job's file will land.
func (d *Downloader) DestPath(job Job) string {
	return filepath.Join(d.outputDir, fmt.Sprintf("%d.mp4", job.Number))
}

// Downloaded reports whether a job already has a complete-looking file.
func (d *Downloader) Downloaded(job Job) bool {
	st, err := os.Stat(d.DestPath(job))
	return err == nil && st.Size() >= minFileSize
}

// Download fetches one episode and returns the file path. An episode that
// is already on disk is returned as-is without touching the network.
func (d *Downloader) Download(ctx context.Context, job Job) (string, error) {
	dest := d.DestPath(job)
	if d.Downloaded(job) {
		util.Infof("episode %d is already downloaded at %s", job.Number, dest)
		return dest, nil
	}
	title := fmt.Sprintf("Downloading episode %d", job.Number)
	if err := d.runWithProgress(ctx, title, []Job{job}); err != nil {
		return "", err
	}
	return dest, nil
}

// DownloadAll fetches the given episodes with bounded concurrency, sharing
// one progress bar. Episodes already on disk are skipped.
func (d *Downloader) DownloadAll(ctx context.Context, jobs []Job) error {
	var pending []Job
	for _, job := range jobs {
		if d.Downloaded(job) {
			util.Infof("episode %d is already downloaded, skipping", job.Number)
			continue
		}
		pending = append(pending, job)
	}
	if len(pending) == 0 {
		return nil
	}
	title := fmt.Sprintf("Downloading %d episode(s)", len(pending))
	return d.runWithProgress(ctx, title, pending)
}

func (d *Downloader) runWithProgress(ctx context.Context, title string, jobs []Job) error {
	if err := os.MkdirAll(d.outputDir, 0o700); err != nil {
		return errors.Wrap(err, "create download directory")
	}

	var total int64
	for _, job := range jobs {
		total += d.contentLength(ctx, job)
	}

	m := newProgressModel(title, total)
	p := tea.NewProgram(m, d.programOpts...)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		err := d.fetchAll(ctx, jobs, p)
		if err == nil {
			p.Send(progressMsg{received: total, total: total})
			p.Send(statusMsg("Done"))
		} else {
			p.Send(statusMsg(fmt.Sprintf("Failed: %v", err)))
		}
		// Let the final frame render before tearing the UI down.
		time.Sleep(150 * time.Millisecond)
		m.mu.Lock()
		m.done = true
		m.mu.Unlock()
		p.Quit()
		done <- err
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-done
		return errors.Wrap(err, "progress display")
	}
	// The UI is gone, either finished or Ctrl+C; stop any transfer still
	// running.
	cancel()
	return <-done
}

func (d *Downloader) fetchAll(ctx context.Context, jobs []Job, p *tea.Program) error {
	var wg sync.WaitGroup
	sem := make(chan struct{}, d.concurrent)
	errCh := make(chan error, len(jobs))
	var received atomic.Int64

	for _, job := range jobs {
		wg.Add(1)
		go func(job Job) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			p.Send(statusMsg(fmt.Sprintf("Episode %d...", job.Number)))
			err := d.fetch(ctx, job, func(n int64) {
				p.Send(progressMsg{received: received.Add(n)})
			})
			if err != nil {
				errCh <- errors.Wrapf(err, "episode %d", job.Number)
				return
			}
			p.Send(statusMsg(fmt.Sprintf("Episode %d finished", job.Number)))
		}(job)
	}
	wg.Wait()
	close(errCh)

	failed := 0
	for err := range errCh {
		failed++
		util.Warnf("download failed: %v", err)
	}
	if failed > 0 {
		return errors.Errorf("%d of %d downloads failed", failed, len(jobs))
	}
	return nil
}

func (d *Downloader) fetch(ctx context.Context, job Job, report func(int64)) error {
	dest, err := d.securePath(d.DestPath(job))
	if err != nil {
		return err
	}

	if NeedsYtDlp(job.URL) {
		err = d.fetchYtDlp(ctx, job.URL, dest)
	} else {
		err = d.fetchHTTP(ctx, job, dest, report)
	}
	if err == nil {
		err = verifyFile(dest)
	}
	if err != nil {
		_ = os.Remove(dest)
		return err
	}
	return nil
}

func (d *Downloader) fetchHTTP(ctx context.Context, job Job, dest string, report func(int64)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, job.URL, nil)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	for k, v := range job.Headers {
		req.Header.Set(k, v)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "start download")
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("unexpected status %s", resp.Status)
	}

	out, err := os.Create(dest)
	if err != nil {
		return errors.Wrap(err, "create file")
	}
	defer func() { _ = out.Close() }()

	buf := make([]byte, copyBufferSize)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				return errors.Wrap(werr, "write file")
			}
			report(int64(n))
		}
		if rerr == io.EOF {
			return nil
		}
		if rerr != nil {
			return errors.Wrap(rerr, "read stream")
		}
	}
}

func (d *Downloader) fetchYtDlp(ctx context.Context, url, dest string) error {
	util.Debugf("delegating to yt-dlp: %s", url)
	ytdlp.MustInstall(ctx, nil)
	if _, err := ytdlp.New().Output(dest).Run(ctx, url); err != nil {
		return errors.Wrap(err, "yt-dlp")
	}
	return nil
}

// securePath resolves p and refuses anything that escapes the output
// directory.
func (d *Downloader) securePath(p string) (string, error) {
	absDir, err := filepath.Abs(filepath.Clean(d.outputDir))
	if err != nil {
		return "", err
	}
	absFile, err := filepath.Abs(filepath.Clean(p))
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(absDir, absFile)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.Errorf("destination %s escapes the download directory", p)
	}
	return absFile, nil
}

func verifyFile(dest string) error {
	st, err := os.Stat(dest)
	if err != nil {
		return errors.Wrap(err, "downloaded file missing")
	}
	if st.Size() < minFileSize {
		return errors.Errorf("downloaded file is suspiciously small (%d bytes)", st.Size())
	}
	return nil
}

// contentLength probes the transfer size for the progress bar. HLS
// playlists have no meaningful length and some hosts refuse HEAD, so this
// falls back to estimates rather than failing the download.
func (d *Downloader) contentLength(ctx context.Context, job Job) int64 {
	if strings.Contains(job.URL, ".m3u8") {
		return hlsSizeEstimate
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, job.URL, nil)
	if err != nil {
		return fallbackSizeEstimate
	}
	for k, v := range job.Headers {
		req.Header.Set(k, v)
	}

	resp, err := util.GetFastClient().Do(req)
	if err != nil {
		return d.rangeProbe(ctx, job)
	}
	_ = resp.Body.Close()
	if resp.ContentLength > 0 {
		return resp.ContentLength
	}
	return d.rangeProbe(ctx, job)
}

// rangeProbe requests the first kilobyte and reads the full size off the
// Content-Range reply.
func (d *Downloader) rangeProbe(ctx context.Context, job Job) int64 {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, job.URL, nil)
	if err != nil {
		return fallbackSizeEstimate
	}
	for k, v := range job.Headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Range", "bytes=0-1023")

	resp, err := util.GetFastClient().Do(req)
	if err != nil {
		return fallbackSizeEstimate
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	if parts := strings.Split(resp.Header.Get("Content-Range"), "/"); len(parts) == 2 && parts[1] != "*" {
		if total, err := strconv.ParseInt(parts[1], 10, 64); err == nil {
			return total
		}
	}
	return fallbackSizeEstimate
}
