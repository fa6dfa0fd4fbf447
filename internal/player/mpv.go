package player

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/gotaku-app/gotaku/internal/models"
	"github.com/gotaku-app/gotaku/internal/util"
)

const socketWaitTimeout = 3 * time.Second

// MPVLauncher starts mpv with an IPC socket for control. The zero value
// uses whatever "mpv" resolves to in PATH.
type MPVLauncher struct {
	Bin string
}

// Launch starts mpv on playURL and waits for its IPC socket to appear. It
// satisfies LaunchFunc.
func (l MPVLauncher) Launch(ctx context.Context, playURL string, hint models.StreamHint, headers map[string]string) (Handle, error) {
	bin := l.Bin
	if bin == "" {
		bin = "mpv"
	}
	if _, err := exec.LookPath(bin); err != nil {
		return nil, errors.Errorf("%s not found in PATH, install it from https://mpv.io/installation/", bin)
	}

	socketPath := newSocketPath()
	args := []string{
		"--no-terminal",
		"--quiet",
		fmt.Sprintf("--input-ipc-server=%s", socketPath),
	}
	if fields := headerFields(headers); fields != "" {
		args = append(args, "--http-header-fields="+fields)
	}
	if hint == models.HintHLS {
		args = append(args, "--demuxer-lavf-o=protocol_whitelist=[file,http,https,tcp,tls,crypto,hls,applehttp]")
	}
	args = append(args, playURL)

	util.Debugf("starting %s with arguments: %v", bin, args)

	cmd := exec.Command(bin, args...)
	setProcessGroup(cmd)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "start %s", bin)
	}

	h := &MPVHandle{cmd: cmd, socketPath: socketPath, done: make(chan error, 1)}
	go func() {
		err := cmd.Wait()
		if err != nil && stderr.Len() > 0 {
			err = errors.Errorf("%v: %s", err, strings.TrimSpace(stderr.String()))
		}
		h.done <- err
	}()

	if err := h.waitForSocket(ctx, socketWaitTimeout); err != nil {
		_ = h.Stop()
		return nil, err
	}
	return h, nil
}

// MPVHandle controls one mpv process over its IPC socket.
type MPVHandle struct {
	cmd        *exec.Cmd
	socketPath string
	done       chan error
	stopOnce   sync.Once
}

// Done reports process exit; nil means mpv ended cleanly.
func (h *MPVHandle) Done() <-chan error { return h.done }

// SocketPath returns the IPC socket path, useful for external tooling.
func (h *MPVHandle) SocketPath() string { return h.socketPath }

// Stop kills the mpv process. Safe to call more than once.
func (h *MPVHandle) Stop() error {
	var err error
	h.stopOnce.Do(func() {
		if h.cmd.Process != nil {
			err = h.cmd.Process.Kill()
		}
	})
	return err
}

func (h *MPVHandle) waitForSocket(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if socketReady(h.socketPath) {
			return nil
		}
		select {
		case err := <-h.done:
			if err == nil {
				err = errors.New("exited immediately")
			}
			return errors.Wrap(err, "mpv gave up before creating its IPC socket")
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
	return errors.New("timeout waiting for the mpv IPC socket")
}

func socketReady(socketPath string) bool {
	if runtime.GOOS == "windows" {
		_, err := os.Stat(`\\.\pipe\` + strings.TrimPrefix(socketPath, `\\.\pipe\`))
		return err == nil
	}
	_, err := os.Stat(socketPath)
	return err == nil
}

var socketSeq atomic.Uint32

func newSocketPath() string {
	// UnixNano alone can repeat on coarse clocks; the sequence number keeps
	// concurrent launches on distinct sockets.
	stamp := fmt.Sprintf("%x_%d", time.Now().UnixNano(), socketSeq.Add(1))
	if runtime.GOOS == "windows" {
		return fmt.Sprintf(`\\.\pipe\gotaku_mpvsocket_%s`, stamp)
	}
	return fmt.Sprintf("/tmp/gotaku_mpvsocket_%s", stamp)
}

// headerFields renders headers in mpv's --http-header-fields syntax, sorted
// for a stable command line.
func headerFields(headers map[string]string) string {
	if len(headers) == 0 {
		return ""
	}
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, headers[k]))
	}
	return strings.Join(parts, ",")
}

// Position returns the playback position in seconds.
func (h *MPVHandle) Position() (float64, error) {
	return h.floatProperty("time-pos")
}

// Duration returns the media duration in seconds.
func (h *MPVHandle) Duration() (float64, error) {
	return h.floatProperty("duration")
}

// Paused reports whether playback is paused.
func (h *MPVHandle) Paused() (bool, error) {
	data, err := h.sendCommand([]interface{}{"get_property", "pause"})
	if err != nil {
		return false, err
	}
	paused, ok := data.(bool)
	if !ok {
		return false, errors.Errorf("unexpected pause payload %T", data)
	}
	return paused, nil
}

// Seek jumps to an absolute position in seconds.
func (h *MPVHandle) Seek(seconds float64) error {
	_, err := h.sendCommand([]interface{}{"set_property", "time-pos", seconds})
	return err
}

func (h *MPVHandle) floatProperty(name string) (float64, error) {
	data, err := h.sendCommand([]interface{}{"get_property", name})
	if err != nil {
		return 0, err
	}
	value, ok := data.(float64)
	if !ok {
		return 0, errors.Errorf("unexpected %s payload %T", name, data)
	}
	return value, nil
}

// sendCommand sends one JSON IPC command to mpv and returns the data field
// of its reply.
func (h *MPVHandle) sendCommand(command []interface{}) (interface{}, error) {
	conn, err := dialMPVSocket(h.socketPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = conn.Close() }()

	payload, err := json.Marshal(map[string]interface{}{"command": command})
	if err != nil {
		return nil, err
	}
	if _, err := conn.Write(append(payload, '\n')); err != nil {
		return nil, err
	}

	buffer := make([]byte, 4096)
	n, err := conn.Read(buffer)
	if err != nil {
		return nil, err
	}
	util.Debugf("raw response from mpv: %s", string(buffer[:n]))

	// One read can carry several newline separated JSON payloads; events
	// without an error field are interleaved with the actual reply.
	for _, raw := range bytes.Split(buffer[:n], []byte("\n")) {
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}
		var response map[string]interface{}
		if err := json.Unmarshal(raw, &response); err != nil {
			continue
		}
		status, ok := response["error"].(string)
		if !ok {
			continue
		}
		switch status {
		case "success":
			return response["data"], nil
		case "property unavailable":
			continue
		default:
			return nil, errors.Errorf("mpv: %s", status)
		}
	}
	return nil, errors.New("no reply in mpv response")
}
