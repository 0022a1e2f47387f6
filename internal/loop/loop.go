// Package loop drives the orchestrator: one scheduling cycle at startup and
// then one per tick, never overlapping.
package loop

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/nibzard/baton/internal/agents"
	"github.com/nibzard/baton/internal/hooks"
	"github.com/nibzard/baton/internal/liveness"
	"github.com/nibzard/baton/internal/schedule"
	"github.com/nibzard/baton/internal/tracker"
)

// Syncer refreshes the working copy before a cycle.
type Syncer interface {
	Pull(ctx context.Context) error
}

// AgentRunner runs one agent to completion.
type AgentRunner interface {
	Run(ctx context.Context, agent string) agents.Result
}

// Options configures a Loop.
type Options struct {
	Store    tracker.Store
	Runner   AgentRunner
	Liveness *liveness.Tracker
	// Syncer is optional; nil skips the sync step.
	Syncer   Syncer
	Policy   schedule.Policy
	Interval time.Duration
	// HookCommand runs after every agent run; empty disables it.
	HookCommand string
	WorkDir     string
	InstanceID  string
	Logger      *log.Logger
	// Events receives progress updates when non-nil. Sends never block.
	Events chan<- Event
}

// Loop owns all per-instance state. Create one per process with New.
type Loop struct {
	store       tracker.Store
	runner      AgentRunner
	liveness    *liveness.Tracker
	syncer      Syncer
	policy      schedule.Policy
	interval    time.Duration
	hookCommand string
	workDir     string
	instanceID  string
	logger      *log.Logger
	events      chan<- Event

	// tick overrides the ticker channel (tests).
	tick <-chan time.Time

	mu     sync.Mutex
	status Status
}

// New validates opts and creates a Loop. A missing instance ID is
// generated.
func New(opts Options) (*Loop, error) {
	if opts.Store == nil {
		return nil, errors.New("loop: store is nil")
	}
	if opts.Runner == nil {
		return nil, errors.New("loop: runner is nil")
	}
	if opts.Interval <= 0 {
		return nil, fmt.Errorf("loop: interval must be > 0, got %s", opts.Interval)
	}
	if opts.Policy.BootstrapAgent == "" {
		return nil, errors.New("loop: bootstrap agent is empty")
	}
	if opts.Liveness == nil {
		opts.Liveness = liveness.NewTracker(nil)
	}
	if opts.InstanceID == "" {
		opts.InstanceID = uuid.NewString()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	return &Loop{
		store:       opts.Store,
		runner:      opts.Runner,
		liveness:    opts.Liveness,
		syncer:      opts.Syncer,
		policy:      opts.Policy,
		interval:    opts.Interval,
		hookCommand: opts.HookCommand,
		workDir:     opts.WorkDir,
		instanceID:  opts.InstanceID,
		logger:      logger.With("instance", shortID(opts.InstanceID)),
		events:      opts.Events,
		status:      Status{InstanceID: opts.InstanceID},
	}, nil
}

// InstanceID returns the identifier of this orchestrator instance.
func (l *Loop) InstanceID() string {
	return l.instanceID
}

// Run executes a cycle immediately and then one per interval until ctx is
// done. Ticks that fire while a cycle is running collapse into at most one
// pending cycle. Run returns nil on shutdown.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("Orchestrator started",
		"interval", l.interval,
		"bootstrap", l.policy.BootstrapAgent,
		"maintenance", l.policy.MaintenanceAgent,
	)
	l.emit(Event{Kind: EventStarted, Message: "orchestrator started"})

	tick := l.tick
	if tick == nil {
		ticker := time.NewTicker(l.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	l.runCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			l.shutdown()
			return nil
		case <-tick:
			if ctx.Err() != nil {
				l.shutdown()
				return nil
			}
			l.runCycle(ctx)
		}
	}
}

func (l *Loop) shutdown() {
	if h, ok := l.liveness.Current(); ok {
		l.logger.Warn("Shutting down with agent still running", "agent", h.Agent, "pid", h.PID)
	} else {
		l.logger.Info("Shutting down")
	}
	l.emit(Event{Kind: EventStopped, Message: "orchestrator stopped"})
}

// runCycle runs one cycle and logs, rather than returns, its error.
func (l *Loop) runCycle(ctx context.Context) {
	if _, err := l.Cycle(ctx); err != nil && ctx.Err() == nil {
		l.logger.Error("Cycle failed", "err", err)
	}
}

// Cycle performs a single scheduling step: sync, liveness check, tracker
// read, stale-lease recovery and at most one agent run. A tracker read
// failure yields a Wait decision and the error.
func (l *Loop) Cycle(ctx context.Context) (schedule.Decision, error) {
	n := l.beginCycle()
	logger := l.logger.With("cycle", n)

	if l.syncer != nil {
		if err := l.syncer.Pull(ctx); err != nil {
			logger.Warn("Repo sync failed", "err", err)
		}
	}

	if h, alive := l.liveness.Alive(); alive {
		d := schedule.Decide(tracker.Record{}, true, l.policy)
		logger.Info("Agent still running, waiting", "agent", h.Agent, "pid", h.PID, "running_for", time.Since(h.StartedAt).Round(time.Second))
		l.endCycle(d, nil, nil)
		return d, nil
	}

	rec, err := l.store.Read(ctx)
	if err != nil {
		d := schedule.Decision{Action: schedule.ActionWait, Reason: "tracker read failed"}
		err = fmt.Errorf("read tracker: %w", err)
		logger.Error("Failed to read tracker, skipping cycle", "err", err)
		l.endCycle(d, nil, err)
		return d, err
	}
	l.warnDuplicates(logger, rec)

	d := schedule.Decide(rec, false, l.policy)
	if d.Stale != nil {
		logger.Warn("Stale active label found, clearing", "holder", d.Stale.Holder, "label", d.Stale.Label())
		l.emit(Event{Kind: EventStaleCleared, Agent: d.Stale.Holder, Message: "cleared " + d.Stale.Label()})
		if err := l.store.RemoveLabel(ctx, d.Stale.Label()); err != nil {
			logger.Error("Failed to clear stale label", "label", d.Stale.Label(), "err", err)
		}
	}

	if d.Action != schedule.ActionRun {
		l.endCycle(d, nil, nil)
		return d, nil
	}
	if ctx.Err() != nil {
		wait := schedule.Decision{Action: schedule.ActionWait, Reason: "shutting down"}
		l.endCycle(wait, nil, nil)
		return wait, nil
	}

	logger.Info("Running agent",
		"agent", d.Agent,
		"action_count", rec.ActionCount(),
		"maintenance", d.Maintenance,
		"reason", d.Reason,
	)
	l.emit(Event{Kind: EventAgentStarted, Agent: d.Agent, Message: d.Reason})

	res := l.runner.Run(ctx, d.Agent)
	l.logResult(logger, res)
	l.emit(Event{Kind: EventAgentFinished, Agent: d.Agent, ExitCode: res.ExitCode, Message: fmt.Sprintf("exit code %d", res.ExitCode)})

	if !res.Abandoned {
		l.runHook(ctx, logger, res)
	}
	l.endCycle(d, &res, nil)
	return d, nil
}

func (l *Loop) logResult(logger *log.Logger, res agents.Result) {
	fields := []any{
		"agent", res.Agent,
		"exit_code", res.ExitCode,
		"duration", res.Duration.Round(time.Second),
	}
	if res.LogPath != "" {
		fields = append(fields, "log", res.LogPath)
	}
	switch {
	case res.Abandoned:
		logger.Warn("Agent left running at shutdown", append(fields, "pid", res.PID)...)
	case res.Err != nil:
		logger.Error("Agent run failed", append(fields, "err", res.Err)...)
	case res.TimedOut:
		logger.Warn("Agent completed after timeout", fields...)
	default:
		logger.Info("Agent completed", fields...)
	}
}

func (l *Loop) runHook(ctx context.Context, logger *log.Logger, res agents.Result) {
	if l.hookCommand == "" {
		return
	}
	if ctx.Err() != nil {
		ctx = context.Background()
	}
	hookCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	result, err := hooks.Invoke(hookCtx, hooks.Options{
		Command:  l.hookCommand,
		Agent:    res.Agent,
		ExitCode: res.ExitCode,
		LogPath:  res.LogPath,
		WorkDir:  l.workDir,
	})
	if err != nil {
		logger.Warn("Hook failed", "command", l.hookCommand, "exit_code", result.ExitCode, "err", err)
	}
}

func (l *Loop) warnDuplicates(logger *log.Logger, rec tracker.Record) {
	if active := rec.ActiveAgents(); len(active) > 1 {
		logger.Warn("Multiple active labels, using the first", "agents", strings.Join(active, ","))
	}
	if next := rec.NextAgents(); len(next) > 1 {
		logger.Warn("Multiple next labels, using the first", "agents", strings.Join(next, ","))
	}
}

func (l *Loop) emit(ev Event) {
	if l.events == nil {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	select {
	case l.events <- ev:
	default:
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
