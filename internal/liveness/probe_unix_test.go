//go:build !windows

package liveness

import (
	"os"
	"os/exec"
	"testing"
)

func TestOSProberCurrentProcess(t *testing.T) {
	alive, err := OSProber().Alive(os.Getpid())
	if err != nil {
		t.Fatalf("Alive: %v", err)
	}
	if !alive {
		t.Error("current process should be alive")
	}
}

func TestOSProberReapedChild(t *testing.T) {
	cmd := exec.Command("true")
	if err := cmd.Run(); err != nil {
		t.Skipf("cannot run true: %v", err)
	}
	alive, err := OSProber().Alive(cmd.Process.Pid)
	if err != nil {
		t.Fatalf("Alive: %v", err)
	}
	if alive {
		t.Error("reaped child should not be alive")
	}
}

func TestOSProberInvalidPID(t *testing.T) {
	alive, err := OSProber().Alive(0)
	if err != nil || alive {
		t.Errorf("Alive(0): got (%v, %v), want (false, nil)", alive, err)
	}
}
