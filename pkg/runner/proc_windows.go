//go:build windows

package runner

import "os/exec"

// killGroup keeps the default cancellation, which kills the process only.
func killGroup(cmd *exec.Cmd) {}
