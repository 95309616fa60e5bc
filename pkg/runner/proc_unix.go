//go:build !windows

package runner

import (
	"os/exec"
	"syscall"
)

// killGroup puts the command in its own process group and makes
// cancellation kill the whole group, so children forked by a script go
// down with it.
func killGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
