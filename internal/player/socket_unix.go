//go:build !windows

package player

import (
	"net"
)

// dialMPVSocket connects to the mpv IPC socket. Unix-like systems use a
// plain unix domain socket.
func dialMPVSocket(socketPath string) (net.Conn, error) {
	return net.Dial("unix", socketPath)
}
