package tracker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// DefaultGHBinary is the GitHub CLI used when no binary is configured.
const DefaultGHBinary = "gh"

// ErrNoIssue is returned when the store is built without an issue number.
var ErrNoIssue = errors.New("tracker issue number is not set")

// Commander runs an external command and returns its standard output.
type Commander interface {
	Output(ctx context.Context, dir, name string, args ...string) ([]byte, error)
}

// ExecCommander runs commands with os/exec.
type ExecCommander struct{}

// Output runs name with args in dir. Stderr is folded into the error.
func (ExecCommander) Output(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if dir != "" {
		cmd.Dir = dir
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return out, fmt.Errorf("%w: %s", err, msg)
		}
		return out, err
	}
	return out, nil
}

// GHOptions configures a GHStore.
type GHOptions struct {
	// Binary is the gh executable. Defaults to DefaultGHBinary.
	Binary string
	// Issue is the tracker issue number.
	Issue int
	// Repo is owner/name. Empty lets gh infer the repository from Dir.
	Repo string
	// Dir is the working directory for gh invocations.
	Dir string
	// Commander overrides command execution (tests).
	Commander Commander
	// Now overrides the clock used for Record.FetchedAt.
	Now func() time.Time
}

// GHStore is a Store backed by a GitHub issue through the gh CLI.
type GHStore struct {
	binary  string
	issue   int
	repo    string
	dir     string
	run     Commander
	now     func() time.Time
	payload *payloadValidator
}

// NewGHStore creates a gh-backed store for the configured issue.
func NewGHStore(opts GHOptions) (*GHStore, error) {
	if opts.Issue <= 0 {
		return nil, ErrNoIssue
	}
	validator, err := newPayloadValidator()
	if err != nil {
		return nil, err
	}
	s := &GHStore{
		binary:  opts.Binary,
		issue:   opts.Issue,
		repo:    opts.Repo,
		dir:     opts.Dir,
		run:     opts.Commander,
		now:     opts.Now,
		payload: validator,
	}
	if s.binary == "" {
		s.binary = DefaultGHBinary
	}
	if s.run == nil {
		s.run = ExecCommander{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Issue returns the tracker issue number.
func (s *GHStore) Issue() int {
	return s.issue
}

// Read fetches body and labels with `gh issue view --json body,labels`.
func (s *GHStore) Read(ctx context.Context) (Record, error) {
	args := s.withRepo("issue", "view", strconv.Itoa(s.issue), "--json", "body,labels")
	out, err := s.run.Output(ctx, s.dir, s.binary, args...)
	if err != nil {
		return Record{}, fmt.Errorf("gh issue view %d: %w", s.issue, err)
	}
	issue, err := s.payload.decode(out)
	if err != nil {
		return Record{}, fmt.Errorf("gh issue view %d: %w", s.issue, err)
	}
	rec := Record{
		Body:      issue.Body,
		Labels:    make([]string, 0, len(issue.Labels)),
		FetchedAt: s.now(),
	}
	for _, label := range issue.Labels {
		rec.Labels = append(rec.Labels, label.Name)
	}
	return rec, nil
}

// RemoveLabel runs `gh issue edit --remove-label`.
func (s *GHStore) RemoveLabel(ctx context.Context, label string) error {
	if strings.TrimSpace(label) == "" {
		return errors.New("label is empty")
	}
	args := s.withRepo("issue", "edit", strconv.Itoa(s.issue), "--remove-label", label)
	if _, err := s.run.Output(ctx, s.dir, s.binary, args...); err != nil {
		return fmt.Errorf("gh issue edit %d --remove-label %s: %w", s.issue, label, err)
	}
	return nil
}

func (s *GHStore) withRepo(args ...string) []string {
	if s.repo != "" {
		args = append(args, "--repo", s.repo)
	}
	return args
}
