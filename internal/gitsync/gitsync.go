// Package gitsync refreshes the working copy before each scheduling cycle.
package gitsync

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DefaultTimeout bounds a single pull.
const DefaultTimeout = 2 * time.Minute

// Commander runs a command in dir and returns its combined output.
type Commander interface {
	CombinedOutput(ctx context.Context, dir, name string, args ...string) ([]byte, error)
}

type execCommander struct{}

func (execCommander) CombinedOutput(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

// Syncer pulls the repository with rebase.
type Syncer struct {
	Dir     string
	Binary  string
	Timeout time.Duration
	Run     Commander
}

// New creates a Syncer for dir using the git on PATH.
func New(dir string) *Syncer {
	return &Syncer{Dir: dir}
}

// Args returns the git arguments used for a pull.
func (s *Syncer) Args() []string {
	return []string{"pull", "--rebase", "--quiet"}
}

// Pull runs `git pull --rebase --quiet`. Failures carry git's output so
// the caller can log them; they are never fatal to a cycle.
func (s *Syncer) Pull(ctx context.Context) error {
	binary := s.Binary
	if binary == "" {
		binary = "git"
	}
	run := s.Run
	if run == nil {
		run = execCommander{}
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := run.CombinedOutput(ctx, s.Dir, binary, s.Args()...)
	if err != nil {
		if msg := strings.TrimSpace(string(out)); msg != "" {
			return fmt.Errorf("git pull: %w: %s", err, msg)
		}
		return fmt.Errorf("git pull: %w", err)
	}
	return nil
}
