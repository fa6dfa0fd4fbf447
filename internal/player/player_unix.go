//go:build !windows

package player

import (
	"os/exec"
	"syscall"
)

// setProcessGroup puts mpv in its own process group so killing the handle
// takes the whole player down with it.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}
