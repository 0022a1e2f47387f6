//go:build !windows

package agents

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

// processRunning reports whether pid exists and is not a zombie waiting to
// be reaped.
func processRunning(pid int) bool {
	if err := unix.Kill(pid, 0); err != nil {
		return false
	}
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return true
	}
	stat := string(data)
	fields := strings.Fields(stat[strings.LastIndexByte(stat, ')')+1:])
	return len(fields) == 0 || fields[0] != "Z"
}

func TestRunTimeoutStopsChildProcesses(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "child.pid")
	script := writeScript(t, "sleep 30 &\necho $! > '"+pidFile+"'\nwait")
	r, _, _ := newTestRunner(t, Config{Binary: script, Timeout: 200 * time.Millisecond}, Options{})

	start := time.Now()
	res := r.Run(context.Background(), "alice")
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Run took %v, output pipes were held open", elapsed)
	}
	if !res.TimedOut {
		t.Error("TimedOut should be set")
	}

	data, err := os.ReadFile(pidFile)
	if err != nil {
		t.Fatalf("read child pid: %v", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		t.Fatalf("parse child pid %q: %v", data, err)
	}
	t.Cleanup(func() { _ = unix.Kill(pid, unix.SIGKILL) })

	deadline := time.Now().Add(5 * time.Second)
	for processRunning(pid) {
		if time.Now().After(deadline) {
			t.Fatalf("child %d still running after the agent was terminated", pid)
		}
		time.Sleep(20 * time.Millisecond)
	}
}
