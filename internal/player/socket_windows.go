//go:build windows

package player

import (
	"net"
	"path/filepath"
	"strings"
	"time"

	"github.com/Microsoft/go-winio"
)

// dialMPVSocket connects to the mpv IPC socket. Windows talks to mpv over
// a named pipe in the \\.\pipe\NAME format, via go-winio.
func dialMPVSocket(socketPath string) (net.Conn, error) {
	if !strings.HasPrefix(socketPath, `\\.\pipe\`) {
		socketPath = `\\.\pipe\` + filepath.Base(socketPath)
	}
	timeout := 5 * time.Second
	return winio.DialPipe(socketPath, &timeout)
}
