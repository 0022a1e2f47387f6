// Package cmd provides tests for CLI command handlers.
package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nibzard/baton/internal/config"
	"github.com/nibzard/baton/internal/logging"
)

// isolate points HOME and the config lookup at a fresh directory and makes
// it the working directory.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	t.Setenv("APPDATA", filepath.Join(dir, "appdata"))
	for _, key := range []string{
		config.ConfigEnvVar, "BATON_REPO_DIR", "BATON_LOG_DIR", "BATON_TRACKER_ISSUE",
		"BATON_INTERVAL", "BATON_MODEL", "BATON_AGENT_ARGS", "CLAUDE_BIN", "BATON_AGENT_BIN",
		"GH_BIN", "BATON_GIT_PULL", "BATON_MAINTENANCE_PERIOD", "BATON_PROMPT_FORMAT",
		"BATON_HOOK", "BATON_PROMPT_FILE",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	t.Chdir(dir)
	return dir
}

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}
}

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

// fakeGH writes a gh stand-in that answers `issue view` with body and
// labels and records every `issue edit` call in <dir>/gh-edits.
func fakeGH(t *testing.T, dir, body string, labels ...string) string {
	t.Helper()
	type label struct {
		Name string `json:"name"`
	}
	payload := struct {
		Body   string  `json:"body"`
		Labels []label `json:"labels"`
	}{Body: body, Labels: []label{}}
	for _, l := range labels {
		payload.Labels = append(payload.Labels, label{Name: l})
	}
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	payloadPath := filepath.Join(dir, "issue.json")
	if err := os.WriteFile(payloadPath, data, 0o644); err != nil {
		t.Fatal(err)
	}
	edits := filepath.Join(dir, "gh-edits")
	return writeScript(t, dir, "gh", `case "$2" in
view) cat '`+payloadPath+`' ;;
edit) echo "$@" >> '`+edits+`' ;;
*) echo "unexpected: $@" >&2; exit 2 ;;
esac
`)
}

// lockedBuffer is written by the logger and the agent output pumps.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr lockedBuffer
	err := run(context.Background(), args, &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

// TestRun tests the main Run function.
func TestRun(t *testing.T) {
	isolate(t)

	t.Run("shows help with --help flag", func(t *testing.T) {
		out, _, err := execute(t, "--help")
		if err != nil {
			t.Errorf("expected no error with --help, got %v", err)
		}
		if !strings.Contains(out, "Commands:") {
			t.Errorf("expected usage, got %q", out)
		}
	})

	t.Run("shows help with -h flag", func(t *testing.T) {
		if _, _, err := execute(t, "-h"); err != nil {
			t.Errorf("expected no error with -h, got %v", err)
		}
	})

	t.Run("shows version with --version flag", func(t *testing.T) {
		out, _, err := execute(t, "--version")
		if err != nil {
			t.Errorf("expected no error with --version, got %v", err)
		}
		if !strings.Contains(out, Version) {
			t.Errorf("expected version %q in %q", Version, out)
		}
	})

	t.Run("shows version with version command", func(t *testing.T) {
		if _, _, err := execute(t, "version"); err != nil {
			t.Errorf("expected no error with version command, got %v", err)
		}
	})

	t.Run("shows help with help command", func(t *testing.T) {
		if _, _, err := execute(t, "help"); err != nil {
			t.Errorf("expected no error with help command, got %v", err)
		}
	})

	t.Run("unknown command returns error", func(t *testing.T) {
		_, _, err := execute(t, "unknown-command")
		if err == nil {
			t.Fatal("expected error for unknown command, got nil")
		}
		if !strings.Contains(err.Error(), "unknown command") {
			t.Errorf("expected 'unknown command' error, got %v", err)
		}
	})

	t.Run("run without issue fails validation", func(t *testing.T) {
		_, _, err := execute(t, "run")
		if err == nil || !strings.Contains(err.Error(), "tracker.issue") {
			t.Errorf("expected tracker.issue validation error, got %v", err)
		}
	})

	t.Run("bad global flag is an error", func(t *testing.T) {
		if _, _, err := execute(t, "-no-such-flag"); err == nil {
			t.Error("expected error for unknown flag")
		}
	})
}

func TestInitCommand(t *testing.T) {
	dir := isolate(t)

	out, _, err := execute(t, "init")
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if !strings.Contains(out, config.ProjectConfigFile) {
		t.Errorf("init output = %q", out)
	}
	data, err := os.ReadFile(filepath.Join(dir, config.ProjectConfigFile))
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if string(data) != config.ExampleConfig() {
		t.Error("config file does not match example config")
	}

	if _, _, err := execute(t, "init"); err == nil {
		t.Error("expected second init to refuse to overwrite")
	}

	out, _, err = execute(t, "init", "-print")
	if err != nil {
		t.Fatalf("init -print: %v", err)
	}
	if out != config.ExampleConfig() {
		t.Error("init -print does not match example config")
	}
}

func TestConfigCommand(t *testing.T) {
	isolate(t)

	out, _, err := execute(t, "-issue", "42", "-interval", "30", "config")
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	for _, want := range []string{"issue = 42", "interval_seconds = 30", "no config files found"} {
		if !strings.Contains(out, want) {
			t.Errorf("config output missing %q:\n%s", want, out)
		}
	}
}

func TestStatusCommand(t *testing.T) {
	requireShell(t)
	dir := isolate(t)
	gh := fakeGH(t, dir, "## Status\nAction Count: 10\n", "active:bob", "next:alice")

	out, _, err := execute(t, "-issue", "7", "-gh", gh, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	for _, want := range []string{"Action Count: 10", "Active:       bob", "Next:         alice", "would run grace", "active:bob"} {
		if !strings.Contains(out, want) {
			t.Errorf("status output missing %q:\n%s", want, out)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "gh-edits")); !os.IsNotExist(err) {
		t.Error("status must not modify the tracker")
	}

	tests := []struct {
		name            string
		next            string
		wantAgent       string
		wantMaintenance bool
	}{
		{"bootstrap agent replaced on maintenance count", "next:alice", "grace", true},
		{"other next agent is not replaced", "next:carol", "carol", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gh := fakeGH(t, dir, "## Status\nAction Count: 10\n", "active:bob", tt.next)
			out, _, err := execute(t, "-issue", "7", "-gh", gh, "status", "-json")
			if err != nil {
				t.Fatalf("status -json: %v", err)
			}
			var report statusReport
			if err := json.Unmarshal([]byte(out), &report); err != nil {
				t.Fatalf("decode report: %v\n%s", err, out)
			}
			if report.Issue != 7 || report.ActionCount != 10 {
				t.Errorf("report = %+v", report)
			}
			if report.Decision.Action != "run" || report.Decision.Agent != tt.wantAgent || report.Decision.Maintenance != tt.wantMaintenance {
				t.Errorf("decision = %+v, want run %s maintenance=%v", report.Decision, tt.wantAgent, tt.wantMaintenance)
			}
			if report.Decision.StaleLabel != "active:bob" {
				t.Errorf("stale label = %q, want active:bob", report.Decision.StaleLabel)
			}
		})
	}
}

func TestStatusReadFailure(t *testing.T) {
	requireShell(t)
	dir := isolate(t)
	gh := writeScript(t, dir, "gh", "echo 'HTTP 404' >&2\nexit 1\n")

	_, _, err := execute(t, "-issue", "7", "-gh", gh, "status")
	if err == nil || !strings.Contains(err.Error(), "read tracker") {
		t.Errorf("expected read tracker error, got %v", err)
	}
}

func TestOnceCommand(t *testing.T) {
	requireShell(t)
	dir := isolate(t)

	t.Run("runs next agent", func(t *testing.T) {
		gh := fakeGH(t, dir, "Action Count: 3", "next:bob")
		agent := writeScript(t, dir, "agent", "echo \"hello from $BATON_AGENT\"\n")

		out, _, err := execute(t, "-issue", "7", "-gh", gh, "-agent-bin", agent, "-git-pull=false", "once")
		if err != nil {
			t.Fatalf("once: %v", err)
		}
		if !strings.Contains(out, "hello from bob") {
			t.Errorf("agent output missing:\n%s", out)
		}
		runs, err := logging.FindLogRuns(filepath.Join(dir, config.DefaultLogDir))
		if err != nil {
			t.Fatalf("FindLogRuns: %v", err)
		}
		if len(runs) != 1 || runs[0].Agent != "bob" {
			t.Errorf("runs = %+v, want one bob run", runs)
		}
	})

	t.Run("clears stale label", func(t *testing.T) {
		gh := fakeGH(t, dir, "Action Count: 3", "active:alice", "next:bob")
		agent := writeScript(t, dir, "agent", "exit 0\n")

		if _, _, err := execute(t, "-issue", "7", "-gh", gh, "-agent-bin", agent, "-git-pull=false", "once"); err != nil {
			t.Fatalf("once: %v", err)
		}
		edits, err := os.ReadFile(filepath.Join(dir, "gh-edits"))
		if err != nil {
			t.Fatalf("read gh edits: %v", err)
		}
		if !strings.Contains(string(edits), "--remove-label active:alice") {
			t.Errorf("edits = %q, want removal of active:alice", edits)
		}
	})

	t.Run("reports agent failure", func(t *testing.T) {
		gh := fakeGH(t, dir, "Action Count: 3", "next:bob")
		agent := writeScript(t, dir, "agent", "exit 3\n")

		_, _, err := execute(t, "-issue", "7", "-gh", gh, "-agent-bin", agent, "-git-pull=false", "once")
		if err == nil || !strings.Contains(err.Error(), "exited with code 3") {
			t.Errorf("expected exit code error, got %v", err)
		}
	})
}

func TestLsCommand(t *testing.T) {
	dir := isolate(t)

	out, _, err := execute(t, "ls")
	if err != nil {
		t.Fatalf("ls on empty dir: %v", err)
	}
	if !strings.Contains(out, "No run logs") {
		t.Errorf("ls output = %q", out)
	}

	logDir := filepath.Join(dir, config.DefaultLogDir)
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		t.Fatal(err)
	}
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, agent := range []string{"alice", "bob", "alice"} {
		name := logging.RunFileName(agent, base.Add(time.Duration(i)*time.Minute))
		if err := os.WriteFile(filepath.Join(logDir, name), []byte("x\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	out, _, err = execute(t, "ls")
	if err != nil {
		t.Fatalf("ls: %v", err)
	}
	if got := strings.Count(out, ".log"); got != 3 {
		t.Errorf("ls listed %d runs, want 3:\n%s", got, out)
	}

	out, _, err = execute(t, "ls", "-agent", "bob")
	if err != nil {
		t.Fatalf("ls -agent: %v", err)
	}
	if got := strings.Count(out, ".log"); got != 1 || !strings.Contains(out, "bob") {
		t.Errorf("ls -agent bob:\n%s", out)
	}

	out, _, err = execute(t, "ls", "-n", "2")
	if err != nil {
		t.Fatalf("ls -n: %v", err)
	}
	if got := strings.Count(out, ".log"); got != 2 {
		t.Errorf("ls -n 2 listed %d runs", got)
	}
}

func TestTailCommand(t *testing.T) {
	dir := isolate(t)

	if _, _, err := execute(t, "tail"); err == nil {
		t.Error("expected error without run logs")
	}

	logDir := filepath.Join(dir, config.DefaultLogDir)
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		t.Fatal(err)
	}
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	older := filepath.Join(logDir, logging.RunFileName("alice", base))
	newer := filepath.Join(logDir, logging.RunFileName("bob", base.Add(time.Minute)))
	if err := os.WriteFile(older, []byte("alice 1\nalice 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(newer, []byte("bob 1\nbob 2\nbob 3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	// FindLatestLog goes by modification time.
	later := time.Now().Add(time.Hour)
	if err := os.Chtimes(newer, later, later); err != nil {
		t.Fatal(err)
	}

	out, _, err := execute(t, "tail", "-n", "2")
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if out != "bob 2\nbob 3\n" {
		t.Errorf("tail -n 2 = %q", out)
	}

	out, _, err = execute(t, "tail", "-n", "0", "alice")
	if err != nil {
		t.Fatalf("tail alice: %v", err)
	}
	if out != "alice 1\nalice 2\n" {
		t.Errorf("tail alice = %q", out)
	}

	if _, _, err := execute(t, "tail", "carol"); err == nil {
		t.Error("expected error for agent without logs")
	}
}

func TestDoctorCommand(t *testing.T) {
	requireShell(t)
	dir := isolate(t)
	gh := fakeGH(t, dir, "Action Count: 1", "next:bob")
	agent := writeScript(t, dir, "agent", "exit 0\n")

	out, _, err := execute(t, "-issue", "7", "-gh", gh, "-agent-bin", agent, "-git-pull=false", "doctor")
	if err != nil {
		t.Fatalf("doctor: %v\n%s", err, out)
	}
	for _, want := range []string{"Baton Doctor", "Action Count 1", "All checks passed"} {
		if !strings.Contains(out, want) {
			t.Errorf("doctor output missing %q:\n%s", want, out)
		}
	}

	out, _, err = execute(t, "-issue", "7", "-gh", gh, "-agent-bin", filepath.Join(dir, "missing"), "-git-pull=false", "doctor")
	if err == nil {
		t.Fatalf("expected doctor to fail with missing agent binary:\n%s", out)
	}
	if !strings.Contains(out, "1 check(s) failed") {
		t.Errorf("doctor output:\n%s", out)
	}
}

func TestCheckBinary(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()
	exe := writeScript(t, dir, "tool", "exit 0\n")
	plain := filepath.Join(dir, "plain")
	if err := os.WriteFile(plain, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		binary   string
		required bool
		want     checkStatus
	}{
		{"executable path", exe, true, checkOK},
		{"not executable required", plain, true, checkFail},
		{"not executable optional", plain, false, checkWarn},
		{"directory", dir, true, checkFail},
		{"empty", "", true, checkFail},
		{"missing optional", "baton-no-such-binary", false, checkWarn},
		{"in PATH", "sh", true, checkOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := checkBinary("tool", tt.binary, tt.required)
			if got.Status != tt.want {
				t.Errorf("checkBinary(%q, %v) = %v (%s), want %v", tt.binary, tt.required, got.Status, got.Detail, tt.want)
			}
		})
	}
}
