package gitsync

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"
)

type fakeCommander struct {
	dir  string
	name string
	args []string
	out  []byte
	err  error
}

func (f *fakeCommander) CombinedOutput(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	f.dir, f.name, f.args = dir, name, args
	if _, ok := ctx.Deadline(); !ok {
		return nil, errors.New("pull should carry a deadline")
	}
	return f.out, f.err
}

func TestPullArgs(t *testing.T) {
	fake := &fakeCommander{}
	s := &Syncer{Dir: "/repo", Run: fake}

	if err := s.Pull(context.Background()); err != nil {
		t.Fatalf("Pull: %v", err)
	}
	if fake.dir != "/repo" || fake.name != "git" {
		t.Errorf("command: got %q in %q", fake.name, fake.dir)
	}
	if got := strings.Join(fake.args, " "); got != "pull --rebase --quiet" {
		t.Errorf("args: got %q", got)
	}
}

func TestPullFailureIncludesOutput(t *testing.T) {
	fake := &fakeCommander{
		out: []byte("error: cannot pull with rebase: You have unstaged changes.\n"),
		err: errors.New("exit status 128"),
	}
	s := &Syncer{Dir: "/repo", Binary: "/usr/bin/git", Run: fake}

	err := s.Pull(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "unstaged changes") {
		t.Errorf("error %q should include git output", err)
	}
	if fake.name != "/usr/bin/git" {
		t.Errorf("binary: got %q", fake.name)
	}
}

func TestPullNotARepository(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	s := New(t.TempDir())
	if err := s.Pull(context.Background()); err == nil {
		t.Error("pull outside a repository should fail")
	}
}
