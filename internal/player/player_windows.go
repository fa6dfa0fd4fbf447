//go:build windows

package player

import (
	"os/exec"

	"github.com/gotaku-app/gotaku/internal/util"
)

// setProcessGroup is a no-op on Windows; the process is killed directly.
func setProcessGroup(cmd *exec.Cmd) {
	util.Debugf("setting process group for command: %s", cmd.String())
}
