//go:build !windows

package agents

import (
	"errors"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// configureProcess puts the agent in its own process group so a terminal
// Ctrl-C reaches only the orchestrator. terminateProcess signals that group.
func configureProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// terminateProcess sends SIGTERM to the agent's process group, so children
// it started stop with it. If the group is gone the leader is signalled
// directly.
func terminateProcess(p *os.Process) error {
	err := unix.Kill(-p.Pid, unix.SIGTERM)
	if errors.Is(err, unix.ESRCH) {
		err = unix.Kill(p.Pid, unix.SIGTERM)
	}
	if errors.Is(err, unix.ESRCH) {
		return os.ErrProcessDone
	}
	return err
}
