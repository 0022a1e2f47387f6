// Package ui provides the optional terminal dashboard.
package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nibzard/baton/internal/liveness"
	"github.com/nibzard/baton/internal/logging"
	"github.com/nibzard/baton/internal/loop"
	"github.com/nibzard/baton/internal/schedule"
	"github.com/nibzard/baton/internal/tracker"
)

// DefaultRefresh is how often the dashboard re-reads the tracker. Each
// refresh is one gh call.
const DefaultRefresh = 15 * time.Second

const maxRecentRuns = 8
const maxEvents = 10

// Source is what the dashboard observes.
type Source struct {
	Store  tracker.Store
	Policy schedule.Policy
	LogDir string
	Issue  int
	// Liveness is consulted for the prospective decision. Nil means "as a
	// fresh instance would see it".
	Liveness *liveness.Tracker
}

// Snapshot is one refresh of the dashboard data.
type Snapshot struct {
	FetchedAt time.Time
	Record    tracker.Record
	ReadErr   error
	Decision  schedule.Decision
	Runs      []logging.LogRun
	RunsErr   error
}

// Snapshot reads the tracker and the run log directory. It never modifies
// the tracker.
func (s Source) Snapshot(ctx context.Context) Snapshot {
	snap := Snapshot{FetchedAt: time.Now()}

	localAlive := false
	if s.Liveness != nil {
		_, localAlive = s.Liveness.Alive()
	}

	if s.Store != nil {
		rec, err := s.Store.Read(ctx)
		if err != nil {
			snap.ReadErr = err
		} else {
			snap.Record = rec
		}
	}
	if snap.ReadErr == nil {
		snap.Decision = schedule.Decide(snap.Record, localAlive, s.Policy)
	} else {
		snap.Decision = schedule.Decision{Action: schedule.ActionWait, Reason: "tracker read failed"}
	}

	if s.LogDir != "" {
		runs, err := logging.FindLogRuns(s.LogDir)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			snap.RunsErr = err
		}
		if len(runs) > maxRecentRuns {
			runs = runs[:maxRecentRuns]
		}
		snap.Runs = runs
	}
	return snap
}

// TUIOption configures the TUI behavior.
type TUIOption func(*tuiConfig)

type tuiConfig struct {
	refresh time.Duration
	loop    *loop.Loop
	events  <-chan loop.Event
}

// WithRefresh sets the tracker polling interval.
func WithRefresh(d time.Duration) TUIOption {
	return func(c *tuiConfig) {
		if d > 0 {
			c.refresh = d
		}
	}
}

// WithLoop runs l in the background while the dashboard is open. events
// should be the channel l was created with.
func WithLoop(l *loop.Loop, events <-chan loop.Event) TUIOption {
	return func(c *tuiConfig) {
		c.loop = l
		c.events = events
	}
}

// RunTUI starts the dashboard and blocks until the user quits or ctx is
// done. With WithLoop the loop is stopped, and awaited, on exit.
func RunTUI(ctx context.Context, src Source, opts ...TUIOption) error {
	c := &tuiConfig{refresh: DefaultRefresh}
	for _, opt := range opts {
		opt(c)
	}

	if !IsTTY(os.Stdout) {
		return fmt.Errorf("tui requires a TTY")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var loopDone chan error
	if c.loop != nil {
		loopDone = make(chan error, 1)
		go func() { loopDone <- c.loop.Run(ctx) }()
	}

	model := newTUIModel(ctx, src, c)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := program.Run()

	cancel()
	if loopDone != nil {
		if loopErr := <-loopDone; loopErr != nil && err == nil {
			err = loopErr
		}
	}
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}

type tuiModel struct {
	ctx      context.Context
	src      Source
	loop     *loop.Loop
	events   <-chan loop.Event
	refresh  time.Duration
	snap     *Snapshot
	fetching bool
	recent   []loop.Event
	showHelp bool
}

type tickMsg time.Time

type snapshotMsg Snapshot

type eventMsg loop.Event

type eventsClosedMsg struct{}

func newTUIModel(ctx context.Context, src Source, c *tuiConfig) *tuiModel {
	return &tuiModel{
		ctx:     ctx,
		src:     src,
		loop:    c.loop,
		events:  c.events,
		refresh: c.refresh,
	}
}

func (m *tuiModel) Init() tea.Cmd {
	m.fetching = true
	cmds := []tea.Cmd{m.fetchCmd(), tickCmd(m.refresh)}
	if m.events != nil {
		cmds = append(cmds, waitForEvent(m.events))
	}
	return tea.Batch(cmds...)
}

func (m *tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "r", "f5":
			if m.fetching {
				return m, nil
			}
			m.fetching = true
			return m, m.fetchCmd()
		case "h", "?":
			m.showHelp = !m.showHelp
			return m, nil
		}
	case tickMsg:
		if m.fetching {
			return m, tickCmd(m.refresh)
		}
		m.fetching = true
		return m, tea.Batch(m.fetchCmd(), tickCmd(m.refresh))
	case snapshotMsg:
		snap := Snapshot(msg)
		m.snap = &snap
		m.fetching = false
	case eventMsg:
		m.recent = append(m.recent, loop.Event(msg))
		if len(m.recent) > maxEvents {
			m.recent = m.recent[len(m.recent)-maxEvents:]
		}
		cmds := []tea.Cmd{waitForEvent(m.events)}
		if !m.fetching && (msg.Kind == loop.EventAgentStarted || msg.Kind == loop.EventAgentFinished) {
			m.fetching = true
			cmds = append(cmds, m.fetchCmd())
		}
		return m, tea.Batch(cmds...)
	case eventsClosedMsg:
		m.events = nil
	}
	return m, nil
}

func (m *tuiModel) View() string {
	var b strings.Builder
	writeTitle(&b, m.src.Issue)

	if m.showHelp {
		writeHelp(&b)
		writeFooter(&b, m.refresh)
		return b.String()
	}

	if m.loop != nil {
		writeLoopStatus(&b, m.loop.Status())
	}
	if m.snap == nil {
		b.WriteString("Loading...\n\n")
		writeFooter(&b, m.refresh)
		return b.String()
	}

	writeTracker(&b, m.snap)
	writeDecision(&b, m.snap.Decision, m.loop != nil)
	writeRuns(&b, m.snap)
	if m.loop != nil {
		writeEvents(&b, m.recent)
	}
	writeFooter(&b, m.refresh)
	return b.String()
}

func (m *tuiModel) fetchCmd() tea.Cmd {
	src, ctx := m.src, m.ctx
	return func() tea.Msg {
		readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		return snapshotMsg(src.Snapshot(readCtx))
	}
}

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func waitForEvent(ch <-chan loop.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg(ev)
	}
}

func writeTitle(b *strings.Builder, issue int) {
	title := "baton"
	if issue > 0 {
		title = fmt.Sprintf("baton - tracker #%d", issue)
	}
	b.WriteString(title + "\n")
	b.WriteString(strings.Repeat("=", len(title)) + "\n\n")
}

func writeLoopStatus(b *strings.Builder, st loop.Status) {
	b.WriteString("This Instance\n\n")
	b.WriteString(fmt.Sprintf("  ID: %s  Cycles: %d\n", st.InstanceID, st.Cycles))
	if st.Running != nil {
		b.WriteString(fmt.Sprintf("  Running: %s (pid %d, %s)\n",
			st.Running.Agent, st.Running.PID, time.Since(st.Running.StartedAt).Round(time.Second)))
	} else {
		b.WriteString("  Running: -\n")
	}
	if st.LastResult != nil {
		b.WriteString(fmt.Sprintf("  Last run: %s exit %d in %s\n",
			st.LastResult.Agent, st.LastResult.ExitCode, st.LastResult.Duration.Round(time.Second)))
	}
	if st.LastError != nil {
		b.WriteString("  Last error: " + st.LastError.Error() + "\n")
	}
	b.WriteString("\n")
}

func writeTracker(b *strings.Builder, snap *Snapshot) {
	b.WriteString("Tracker\n\n")
	if snap.ReadErr != nil {
		b.WriteString("  Error reading tracker:\n")
		b.WriteString("  " + snap.ReadErr.Error() + "\n\n")
		return
	}
	rec := snap.Record
	active := "-"
	if names := rec.ActiveAgents(); len(names) > 0 {
		active = strings.Join(names, ", ")
	}
	next := "-"
	if names := rec.NextAgents(); len(names) > 0 {
		next = strings.Join(names, ", ")
	}
	b.WriteString(fmt.Sprintf("  Action Count: %d\n", rec.ActionCount()))
	b.WriteString(fmt.Sprintf("  Active: %s\n", active))
	b.WriteString(fmt.Sprintf("  Next:   %s\n", next))
	b.WriteString(fmt.Sprintf("  Fetched: %s\n\n", snap.FetchedAt.Format("15:04:05")))
}

func writeDecision(b *strings.Builder, d schedule.Decision, live bool) {
	if live {
		b.WriteString("Next Cycle\n\n")
	} else {
		b.WriteString("Next Cycle (as a fresh instance)\n\n")
	}
	switch d.Action {
	case schedule.ActionRun:
		line := "  Run " + d.Agent
		if d.Maintenance {
			line += " [maintenance]"
		}
		b.WriteString(line + "\n")
		if d.Stale != nil {
			b.WriteString("  Clear stale " + d.Stale.Label() + "\n")
		}
	default:
		b.WriteString("  Wait\n")
	}
	if d.Reason != "" {
		b.WriteString("  Reason: " + d.Reason + "\n")
	}
	b.WriteString("\n")
}

func writeRuns(b *strings.Builder, snap *Snapshot) {
	b.WriteString("Recent Runs\n\n")
	if snap.RunsErr != nil {
		b.WriteString("  " + snap.RunsErr.Error() + "\n\n")
		return
	}
	if len(snap.Runs) == 0 {
		b.WriteString("  No runs yet.\n\n")
		return
	}
	for _, run := range snap.Runs {
		b.WriteString(formatRun(run))
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

func writeEvents(b *strings.Builder, events []loop.Event) {
	b.WriteString("Activity\n\n")
	if len(events) == 0 {
		b.WriteString("  Waiting for first cycle...\n\n")
		return
	}
	for i := len(events) - 1; i >= 0; i-- {
		ev := events[i]
		line := fmt.Sprintf("  %s %-15s", ev.Time.Format("15:04:05"), ev.Kind)
		if ev.Agent != "" {
			line += " " + ev.Agent
		}
		if ev.Message != "" {
			line += " - " + ev.Message
		}
		b.WriteString(line + "\n")
	}
	b.WriteString("\n")
}

func writeHelp(b *strings.Builder) {
	b.WriteString("Keyboard Shortcuts\n\n")
	b.WriteString("  q, ctrl+c    Quit\n")
	b.WriteString("  r, F5        Refresh now\n")
	b.WriteString("  h, ?         Toggle this help screen\n\n")
}

func writeFooter(b *strings.Builder, interval time.Duration) {
	b.WriteString(fmt.Sprintf("Press h for help | q to quit | Refreshing every %s\n", interval))
}

func formatRun(run logging.LogRun) string {
	return fmt.Sprintf("  %s  %-12s %8s", run.StartedAt.Local().Format("2006-01-02 15:04:05"), run.Agent, formatSize(run.Size))
}

func formatSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1fM", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1fK", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%dB", n)
	}
}

// IsTTY returns true if w is a terminal.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
