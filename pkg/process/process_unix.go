//go:build unix

package process

import (
	"os/exec"
	"syscall"
)

// configureProcessGroup places the command in a new process group, and
// ensures cancellation kills the whole group rather than just the leader.
func configureProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}

		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
