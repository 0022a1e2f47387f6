//go:build !windows

package liveness

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

type osProber struct{}

// Alive sends signal 0, which performs error checking only. EPERM means the
// process exists but belongs to someone else.
func (osProber) Alive(pid int) (bool, error) {
	if pid <= 0 {
		return false, nil
	}
	err := unix.Kill(pid, 0)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, unix.ESRCH):
		return false, nil
	case errors.Is(err, unix.EPERM):
		return true, nil
	default:
		return false, fmt.Errorf("probe pid %d: %w", pid, err)
	}
}
