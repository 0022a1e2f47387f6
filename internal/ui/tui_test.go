package ui

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nibzard/baton/internal/liveness"
	"github.com/nibzard/baton/internal/loop"
	"github.com/nibzard/baton/internal/schedule"
	"github.com/nibzard/baton/internal/tracker"
)

type staticStore struct {
	rec     tracker.Record
	err     error
	removed int
}

func (s *staticStore) Read(context.Context) (tracker.Record, error) {
	return s.rec, s.err
}

func (s *staticStore) RemoveLabel(context.Context, string) error {
	s.removed++
	return nil
}

func TestSnapshot(t *testing.T) {
	logDir := t.TempDir()
	for _, name := range []string{"alice-2025-01-01T00-00-00.log", "bob-2025-01-01T00-05-00.log"} {
		if err := os.WriteFile(filepath.Join(logDir, name), []byte("out"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	store := &staticStore{rec: tracker.Record{
		Body:   "Action Count: 30",
		Labels: []string{"active:carol", "next:alice"},
	}}
	src := Source{Store: store, Policy: schedule.DefaultPolicy(), LogDir: logDir}

	snap := src.Snapshot(context.Background())
	if snap.ReadErr != nil {
		t.Fatalf("ReadErr: %v", snap.ReadErr)
	}
	if snap.Decision.Agent != "grace" || !snap.Decision.Maintenance {
		t.Errorf("Decision: got %+v", snap.Decision)
	}
	if snap.Decision.Stale == nil || snap.Decision.Stale.Holder != "carol" {
		t.Errorf("Stale: got %+v", snap.Decision.Stale)
	}
	if store.removed != 0 {
		t.Error("Snapshot must not modify the tracker")
	}
	if len(snap.Runs) != 2 || snap.Runs[0].Agent != "bob" {
		t.Errorf("Runs: got %+v", snap.Runs)
	}
}

func TestSnapshotMissingLogDirAndReadError(t *testing.T) {
	src := Source{
		Store:  &staticStore{err: errors.New("gh: auth required")},
		Policy: schedule.DefaultPolicy(),
		LogDir: filepath.Join(t.TempDir(), "missing"),
	}
	snap := src.Snapshot(context.Background())
	if snap.ReadErr == nil {
		t.Error("expected ReadErr")
	}
	if snap.Decision.Action != schedule.ActionWait {
		t.Errorf("Decision: got %v, want wait", snap.Decision.Action)
	}
	if snap.RunsErr != nil {
		t.Errorf("missing log dir should not be an error: %v", snap.RunsErr)
	}
}

func TestSnapshotLocalAlive(t *testing.T) {
	lv := liveness.NewTracker(liveness.ProberFunc(func(int) (bool, error) { return true, nil }))
	lv.Track(liveness.Handle{PID: 10, Agent: "alice"})
	src := Source{Store: &staticStore{}, Policy: schedule.DefaultPolicy(), Liveness: lv}

	if snap := src.Snapshot(context.Background()); snap.Decision.Action != schedule.ActionWait {
		t.Errorf("Decision: got %+v, want wait", snap.Decision)
	}
}

func TestViewRendersSnapshot(t *testing.T) {
	src := Source{Policy: schedule.DefaultPolicy(), Issue: 45}
	m := newTUIModel(context.Background(), src, &tuiConfig{refresh: time.Second})

	if out := m.View(); !strings.Contains(out, "Loading...") {
		t.Errorf("initial view should show loading:\n%s", out)
	}

	snap := Snapshot{
		FetchedAt: time.Now(),
		Record:    tracker.Record{Body: "Action Count: 4", Labels: []string{"next:bob"}},
		Decision:  schedule.Decision{Action: schedule.ActionRun, Agent: "bob", Reason: "next label"},
	}
	model, _ := m.Update(snapshotMsg(snap))
	out := model.View()
	for _, want := range []string{"tracker #45", "Action Count: 4", "Next:   bob", "Run bob", "No runs yet."} {
		if !strings.Contains(out, want) {
			t.Errorf("view missing %q:\n%s", want, out)
		}
	}
}

func TestUpdateKeys(t *testing.T) {
	m := newTUIModel(context.Background(), Source{}, &tuiConfig{refresh: time.Second})

	model, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("h")})
	if !model.(*tuiModel).showHelp {
		t.Error("h should toggle help")
	}
	if !strings.Contains(model.View(), "Keyboard Shortcuts") {
		t.Error("help screen not rendered")
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("q should return a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}

	m.fetching = false
	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	if cmd == nil || !m.fetching {
		t.Error("r should start a fetch")
	}
	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	if cmd != nil {
		t.Error("r should not start a second fetch while one is in flight")
	}
}

func TestEventsAreKept(t *testing.T) {
	events := make(chan loop.Event)
	m := newTUIModel(context.Background(), Source{}, &tuiConfig{refresh: time.Second, events: events})
	m.fetching = true

	for i := 0; i < maxEvents+3; i++ {
		m.Update(eventMsg(loop.Event{Kind: loop.EventAgentStarted, Agent: "alice", Time: time.Now()}))
	}
	if len(m.recent) != maxEvents {
		t.Errorf("recent: got %d, want %d", len(m.recent), maxEvents)
	}
	m.Update(eventsClosedMsg{})
	if m.events != nil {
		t.Error("events channel should be dropped after close")
	}

	var b strings.Builder
	writeEvents(&b, m.recent)
	if !strings.Contains(b.String(), "agent_started") {
		t.Errorf("events view: %q", b.String())
	}
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{12, "12B"},
		{2048, "2.0K"},
		{3 << 20, "3.0M"},
	}
	for _, tt := range tests {
		if got := formatSize(tt.n); got != tt.want {
			t.Errorf("formatSize(%d): got %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestIsTTY(t *testing.T) {
	if IsTTY(&bytes.Buffer{}) {
		t.Error("buffer is not a TTY")
	}
	f, err := os.CreateTemp(t.TempDir(), "x")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if IsTTY(f) {
		t.Error("regular file is not a TTY")
	}
}
