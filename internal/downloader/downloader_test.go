package downloader

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func headlessOpts() []tea.ProgramOption {
	return []tea.ProgramOption{
		tea.WithoutRenderer(),
		tea.WithInput(&bytes.Buffer{}),
	}
}

func testPayload(size int) []byte {
	payload := make([]byte, size)
	for i := range payload {
		payload[i] = byte('a' + i%26)
	}
	return payload
}

func TestNeedsYtDlp(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		url  string
		want bool
	}{
		{"hls playlist", "https://cdn.example.net/stream/master.m3u8", true},
		{"hls with query", "https://cdn.example.net/x.m3u8?token=abc", true},
		{"blogger host", "https://www.blogger.com/video.g?token=xyz", true},
		{"googlevideo host", "https://r4.googlevideo.com/videoplayback?id=1", true},
		{"plain mp4", "https://desustream.info/videos/ep-1.mp4", false},
		{"mp4upload", "https://mp4upload.com/files/ep-2.mp4", false},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, NeedsYtDlp(tc.url))
		})
	}
}

func TestSecurePathRejectsTraversal(t *testing.T) {
	t.Parallel()

	d := New(Options{OutputDir: t.TempDir()})

	ok, err := d.securePath(filepath.Join(d.outputDir, "12.mp4"))
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(ok))

	_, err = d.securePath(filepath.Join(d.outputDir, "..", "evil.mp4"))
	assert.Error(t, err)

	_, err = d.securePath(filepath.Join(d.outputDir, "..", "..", "etc", "passwd"))
	assert.Error(t, err)
}

func TestDestPathUsesEpisodeNumber(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	d := New(Options{OutputDir: dir})

	assert.Equal(t, filepath.Join(dir, "7.mp4"), d.DestPath(Job{Number: 7}))
}

// ===== Test: plain HTTP transfer writes the file and forwards headers =====

func TestFetchHTTPDownloadsFile(t *testing.T) {
	t.Parallel()

	payload := testPayload(4 * 1024)
	var gotReferer atomic.Value

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReferer.Store(r.Header.Get("Referer"))
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	d := New(Options{OutputDir: t.TempDir(), Client: srv.Client()})
	job := Job{
		Number:  3,
		URL:     srv.URL + "/ep-3.mp4",
		Headers: map[string]string{"Referer": "https://www.blogger.com/"},
	}

	var reported int64
	err := d.fetch(context.Background(), job, func(n int64) { reported += n })
	require.NoError(t, err)

	assert.Equal(t, "https://www.blogger.com/", gotReferer.Load())
	assert.Equal(t, int64(len(payload)), reported)

	got, err := os.ReadFile(d.DestPath(job))
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	assert.True(t, d.Downloaded(job))
}

func TestFetchHTTPRejectsBadStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	d := New(Options{OutputDir: t.TempDir(), Client: srv.Client()})
	job := Job{Number: 1, URL: srv.URL + "/gone.mp4"}

	err := d.fetch(context.Background(), job, func(int64) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.NoFileExists(t, d.DestPath(job))
}

func TestFetchRemovesTruncatedFile(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("way too short"))
	}))
	defer srv.Close()

	d := New(Options{OutputDir: t.TempDir(), Client: srv.Client()})
	job := Job{Number: 2, URL: srv.URL + "/tiny.mp4"}

	err := d.fetch(context.Background(), job, func(int64) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "suspiciously small")
	assert.NoFileExists(t, d.DestPath(job))
}

func TestDownloadSkipsExisting(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	dir := t.TempDir()
	d := New(Options{OutputDir: dir, Client: srv.Client(), ProgramOpts: headlessOpts()})
	job := Job{Number: 5, URL: srv.URL + "/ep-5.mp4"}

	require.NoError(t, os.WriteFile(d.DestPath(job), testPayload(2*1024), 0o600))

	path, err := d.Download(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, d.DestPath(job), path)
	assert.Equal(t, int32(0), hits.Load())
}

func TestContentLength(t *testing.T) {
	t.Parallel()

	t.Run("hls estimate", func(t *testing.T) {
		t.Parallel()
		d := New(Options{OutputDir: t.TempDir()})
		got := d.contentLength(context.Background(), Job{URL: "https://cdn.example.net/master.m3u8"})
		assert.Equal(t, int64(hlsSizeEstimate), got)
	})

	t.Run("head reports length", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Length", "123456")
		}))
		defer srv.Close()

		d := New(Options{OutputDir: t.TempDir()})
		got := d.contentLength(context.Background(), Job{URL: srv.URL + "/ep.mp4"})
		assert.Equal(t, int64(123456), got)
	})

	t.Run("range fallback", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodHead {
				return
			}
			if r.Header.Get("Range") != "" {
				w.Header().Set("Content-Range", "bytes 0-1023/5000000")
				w.WriteHeader(http.StatusPartialContent)
				_, _ = w.Write(testPayload(1024))
			}
		}))
		defer srv.Close()

		d := New(Options{OutputDir: t.TempDir()})
		got := d.contentLength(context.Background(), Job{URL: srv.URL + "/ep.mp4"})
		assert.Equal(t, int64(5000000), got)
	})
}

// ===== Test: full download run through the progress UI, headless =====

func TestDownloadEndToEnd(t *testing.T) {
	t.Parallel()

	payload := testPayload(8 * 1024)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", fmt.Sprint(len(payload)))
		if r.Method == http.MethodHead {
			return
		}
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	d := New(Options{OutputDir: t.TempDir(), Client: srv.Client(), ProgramOpts: headlessOpts()})
	job := Job{Number: 9, URL: srv.URL + "/ep-9.mp4"}

	path, err := d.Download(context.Background(), job)
	require.NoError(t, err)

	st, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), st.Size())
}

func TestDownloadAllSkipsCompletedAndFetchesRest(t *testing.T) {
	t.Parallel()

	payload := testPayload(4 * 1024)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", fmt.Sprint(len(payload)))
		if r.Method == http.MethodHead {
			return
		}
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	d := New(Options{OutputDir: t.TempDir(), Client: srv.Client(), ProgramOpts: headlessOpts()})
	jobs := []Job{
		{Number: 1, URL: srv.URL + "/ep-1.mp4"},
		{Number: 2, URL: srv.URL + "/ep-2.mp4"},
	}

	require.NoError(t, os.WriteFile(d.DestPath(jobs[0]), testPayload(2*1024), 0o600))

	require.NoError(t, d.DownloadAll(context.Background(), jobs))
	assert.True(t, d.Downloaded(jobs[0]))
	assert.True(t, d.Downloaded(jobs[1]))
}

func TestDefaultDirIsNamespaced(t *testing.T) {
	t.Parallel()

	dir := DefaultDir("one piece")
	assert.Contains(t, dir, filepath.Join("gotaku", "downloads", "one_piece"))
}
