package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/nibzard/baton/internal/agents"
	"github.com/nibzard/baton/internal/config"
	"github.com/nibzard/baton/internal/gitsync"
	"github.com/nibzard/baton/internal/liveness"
	"github.com/nibzard/baton/internal/logging"
	"github.com/nibzard/baton/internal/loop"
	"github.com/nibzard/baton/internal/prompts"
	"github.com/nibzard/baton/internal/schedule"
	"github.com/nibzard/baton/internal/tracker"
	"github.com/nibzard/baton/internal/ui"
)

// app holds the wired components of one orchestrator instance.
type app struct {
	cfg        *config.Config
	logger     *log.Logger
	store      *tracker.GHStore
	liveness   *liveness.Tracker
	runner     *agents.Runner
	instanceID string
}

// appOptions redirects output for embedding the loop in other commands.
type appOptions struct {
	// LogOutput receives orchestrator log lines.
	LogOutput io.Writer
	// AgentStdout and AgentStderr receive the agent's console output.
	AgentStdout io.Writer
	AgentStderr io.Writer
}

func newLogger(cfg *config.Config, out io.Writer) *log.Logger {
	return logging.NewConsole(logging.ConsoleOptions{
		Level:           logging.ParseLogLevel(cfg.LogLevel),
		Formatter:       logging.ParseLogFormatter(cfg.LogFormat),
		ReportTimestamp: cfg.LogTimestamps,
		ReportCaller:    cfg.LogCaller,
		Prefix:          logging.DefaultPrefix,
		Output:          out,
	})
}

func newStore(cfg *config.Config) (*tracker.GHStore, error) {
	return tracker.NewGHStore(tracker.GHOptions{
		Binary: cfg.Tracker.GHBinary,
		Issue:  cfg.Tracker.Issue,
		Repo:   cfg.Tracker.Repo,
		Dir:    cfg.RepoDir,
	})
}

func policyFromConfig(cfg *config.Config) schedule.Policy {
	return schedule.Policy{
		BootstrapAgent:    cfg.Schedule.BootstrapAgent,
		MaintenanceAgent:  cfg.Schedule.MaintenanceAgent,
		MaintenancePeriod: cfg.Schedule.MaintenancePeriod,
	}
}

// promptBuilder renders the agent prompt from the configured template.
func promptBuilder(cfg *config.Config) (agents.PromptFunc, error) {
	renderer, err := prompts.NewRenderer(cfg.PromptPath())
	if err != nil {
		return nil, err
	}
	return func(agent string) (string, error) {
		data := prompts.NewData(agent, cfg.ProjectName, cfg.Tracker.Repo, cfg.RepoDir, cfg.Tracker.Issue, cfg.SkillsPath(), time.Now())
		return renderer.Render(data)
	}, nil
}

func newApp(cfg *config.Config, opts appOptions) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := newLogger(cfg, opts.LogOutput)
	store, err := newStore(cfg)
	if err != nil {
		return nil, err
	}
	prompt, err := promptBuilder(cfg)
	if err != nil {
		return nil, err
	}

	instanceID := uuid.NewString()
	live := liveness.NewTracker(liveness.OSProber())
	runner, err := agents.NewRunner(agents.Options{
		Config: agents.Config{
			Binary:        cfg.Agent.Binary,
			Model:         cfg.Agent.Model,
			Args:          cfg.Agent.Args,
			PromptFormat:  agents.PromptFormat(cfg.Agent.PromptFormat),
			WorkDir:       cfg.RepoDir,
			LogDir:        cfg.LogPath(),
			Timeout:       cfg.AgentTimeout(),
			ShutdownGrace: cfg.ShutdownGrace(),
			InstanceID:    instanceID,
		},
		Prompt:  prompt,
		Tracker: live,
		Logger:  logger,
		Stdout:  opts.AgentStdout,
		Stderr:  opts.AgentStderr,
	})
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:        cfg,
		logger:     logger,
		store:      store,
		liveness:   live,
		runner:     runner,
		instanceID: instanceID,
	}, nil
}

// newLoop builds the orchestrator loop. events may be nil.
func (a *app) newLoop(events chan<- loop.Event) (*loop.Loop, error) {
	var syncer loop.Syncer
	if a.cfg.GitPull {
		syncer = gitsync.New(a.cfg.RepoDir)
	}
	return loop.New(loop.Options{
		Store:       a.store,
		Runner:      a.runner,
		Liveness:    a.liveness,
		Syncer:      syncer,
		Policy:      policyFromConfig(a.cfg),
		Interval:    a.cfg.Interval(),
		HookCommand: a.cfg.HookCommand,
		WorkDir:     a.cfg.RepoDir,
		InstanceID:  a.instanceID,
		Logger:      a.logger,
		Events:      events,
	})
}

// runCommand runs the orchestrator loop until ctx is cancelled.
func runCommand(ctx context.Context, cfg *config.Config, std streams, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(std.err)
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := newApp(cfg, appOptions{LogOutput: std.out, AgentStdout: std.out, AgentStderr: std.err})
	if err != nil {
		return err
	}
	l, err := a.newLoop(nil)
	if err != nil {
		return err
	}
	for _, f := range cfg.Files {
		a.logger.Debug("Loaded config file", "path", f)
	}
	a.logger.Info("Watching tracker",
		"issue", cfg.Tracker.Issue,
		"repo", cfg.Tracker.Repo,
		"repo_dir", cfg.RepoDir,
		"log_dir", cfg.LogPath(),
		"agent_binary", cfg.Agent.Binary,
	)
	return l.Run(ctx)
}

// onceCommand runs exactly one cycle, including the agent run it decides
// on, and exits.
func onceCommand(ctx context.Context, cfg *config.Config, std streams, args []string) error {
	fs := flag.NewFlagSet("once", flag.ContinueOnError)
	fs.SetOutput(std.err)
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := newApp(cfg, appOptions{LogOutput: std.out, AgentStdout: std.out, AgentStderr: std.err})
	if err != nil {
		return err
	}
	l, err := a.newLoop(nil)
	if err != nil {
		return err
	}
	d, err := l.Cycle(ctx)
	if err != nil {
		return err
	}
	st := l.Status()
	if st.LastResult != nil && st.LastResult.ExitCode != 0 {
		return fmt.Errorf("agent %s exited with code %d", st.LastResult.Agent, st.LastResult.ExitCode)
	}
	if d.Action == schedule.ActionWait {
		a.logger.Info("Nothing to run", "reason", d.Reason)
	}
	return nil
}

// tuiCommand launches the dashboard, optionally running the loop inside it.
func tuiCommand(ctx context.Context, cfg *config.Config, std streams, args []string) error {
	fs := flag.NewFlagSet("tui", flag.ContinueOnError)
	fs.SetOutput(std.err)
	withLoop := fs.Bool("run", false, "Run the orchestrator loop inside the dashboard")
	refresh := fs.Duration("refresh", ui.DefaultRefresh, "Tracker refresh interval")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if !ui.IsTTY(os.Stdout) {
		return fmt.Errorf("tui requires a TTY")
	}

	// The dashboard owns the terminal. Agent output still reaches the run
	// logs and orchestrator lines surface as events.
	a, err := newApp(cfg, appOptions{LogOutput: io.Discard, AgentStdout: io.Discard, AgentStderr: io.Discard})
	if err != nil {
		return err
	}

	src := ui.Source{
		Store:    a.store,
		Policy:   policyFromConfig(cfg),
		LogDir:   cfg.LogPath(),
		Issue:    cfg.Tracker.Issue,
		Liveness: a.liveness,
	}
	opts := []ui.TUIOption{ui.WithRefresh(*refresh)}
	if *withLoop {
		events := make(chan loop.Event, 64)
		l, err := a.newLoop(events)
		if err != nil {
			return err
		}
		opts = append(opts, ui.WithLoop(l, events))
	}
	return ui.RunTUI(ctx, src, opts...)
}
