package agents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/nibzard/baton/internal/liveness"
	"github.com/nibzard/baton/internal/logging"
)

// ExitCodeSpawnFailed is reported when the agent could not be started
// or its prompt could not be built.
const ExitCodeSpawnFailed = 1

// ExitCodeUnknown is reported when the process ended without an exit
// status, for example when it was killed by a signal.
const ExitCodeUnknown = -1

// DefaultShutdownGrace bounds how long Run waits after cancellation.
const DefaultShutdownGrace = 10 * time.Second

// PromptFormat specifies how the prompt is passed to the agent.
type PromptFormat string

const (
	// PromptArg passes the prompt as the last command-line argument.
	PromptArg PromptFormat = "arg"
	// PromptStdin writes the prompt to the agent's stdin.
	PromptStdin PromptFormat = "stdin"
)

// PromptFunc builds the prompt for one agent run.
type PromptFunc func(agent string) (string, error)

// Config holds executor settings.
type Config struct {
	Binary        string
	Model         string
	Args          []string
	PromptFormat  PromptFormat
	WorkDir       string
	LogDir        string
	Timeout       time.Duration
	ShutdownGrace time.Duration
	InstanceID    string
	Env           []string
}

// Result describes one finished (or abandoned) agent run.
type Result struct {
	Agent     string
	PID       int
	ExitCode  int
	LogPath   string
	StartedAt time.Time
	Duration  time.Duration
	TimedOut  bool
	// Interrupted is set when the caller's context ended the run.
	Interrupted bool
	// Abandoned is set when Run returned before the process exited.
	// The liveness handle is kept so the next cycle still sees it.
	Abandoned bool
	Err       error
}

// Options configures a Runner.
type Options struct {
	Config    Config
	Prompt    PromptFunc
	Tracker   *liveness.Tracker
	Logger    *log.Logger
	Stdout    io.Writer
	Stderr    io.Writer
	Now       func() time.Time
	Terminate func(*os.Process) error
}

// Runner launches agent processes.
type Runner struct {
	cfg       Config
	prompt    PromptFunc
	tracker   *liveness.Tracker
	logger    *log.Logger
	stdout    io.Writer
	stderr    io.Writer
	now       func() time.Time
	terminate func(*os.Process) error
}

// NewRunner creates a runner. Missing outputs default to the process's own
// stdout and stderr.
func NewRunner(opts Options) (*Runner, error) {
	if opts.Config.Binary == "" {
		return nil, errors.New("agent binary is empty")
	}
	if opts.Prompt == nil {
		return nil, errors.New("prompt builder is nil")
	}
	if opts.Tracker == nil {
		opts.Tracker = liveness.NewTracker(liveness.OSProber())
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Terminate == nil {
		opts.Terminate = terminateProcess
	}
	if opts.Config.PromptFormat == "" {
		opts.Config.PromptFormat = PromptArg
	}
	if opts.Config.ShutdownGrace <= 0 {
		opts.Config.ShutdownGrace = DefaultShutdownGrace
	}
	return &Runner{
		cfg:       opts.Config,
		prompt:    opts.Prompt,
		tracker:   opts.Tracker,
		logger:    opts.Logger,
		stdout:    opts.Stdout,
		stderr:    opts.Stderr,
		now:       opts.Now,
		terminate: opts.Terminate,
	}, nil
}

// Tracker returns the liveness tracker the runner records handles in.
func (r *Runner) Tracker() *liveness.Tracker {
	return r.tracker
}

// BuildArgs returns the executor arguments for prompt.
func (r *Runner) BuildArgs(prompt string) []string {
	args := make([]string, 0, len(r.cfg.Args)+3)
	if r.cfg.Model != "" {
		args = append(args, "--model", r.cfg.Model)
	}
	args = append(args, r.cfg.Args...)
	if r.cfg.PromptFormat == PromptArg {
		args = append(args, prompt)
	}
	return args
}

// Run executes one agent run and blocks until the process exits, or until
// ctx is done and the shutdown grace has elapsed. Failures to build the
// prompt or start the process are reported as ExitCodeSpawnFailed.
func (r *Runner) Run(ctx context.Context, agent string) Result {
	res := Result{Agent: agent, StartedAt: r.now()}
	logger := r.logger.With("agent", agent)

	prompt, err := r.prompt(agent)
	if err != nil {
		logger.Error("Failed to build prompt", "err", err)
		res.ExitCode = ExitCodeSpawnFailed
		res.Err = fmt.Errorf("build prompt: %w", err)
		return res
	}

	var runLog *logging.RunLog
	if r.cfg.LogDir != "" {
		runLog, err = logging.OpenRunLog(r.cfg.LogDir, agent, res.StartedAt)
		if err != nil {
			logger.Warn("Run log unavailable, streaming to console only", "err", err)
			runLog = nil
		} else {
			res.LogPath = runLog.Path
			defer runLog.Close()
		}
	}

	cmd := exec.Command(r.cfg.Binary, r.BuildArgs(prompt)...)
	cmd.Dir = r.cfg.WorkDir
	cmd.Env = r.environ(agent, res.LogPath)
	if r.cfg.PromptFormat == PromptStdin {
		cmd.Stdin = strings.NewReader(ensurePromptTerminator(prompt))
	}
	cmd.Stdout = teeWriter(r.stdout, runLog)
	cmd.Stderr = teeWriter(r.stderr, runLog)
	// Bounds how long Wait keeps copying output after exit when a
	// grandchild still holds the pipes.
	cmd.WaitDelay = r.cfg.ShutdownGrace
	configureProcess(cmd)

	if err := cmd.Start(); err != nil {
		logger.Error("Failed to start agent", "binary", r.cfg.Binary, "err", err)
		res.ExitCode = ExitCodeSpawnFailed
		res.Err = fmt.Errorf("start %s: %w", r.cfg.Binary, err)
		res.Duration = r.now().Sub(res.StartedAt)
		return res
	}

	res.PID = cmd.Process.Pid
	r.tracker.Track(liveness.Handle{PID: res.PID, Agent: agent, StartedAt: res.StartedAt})
	logger.Debug("Agent started", "pid", res.PID, "log", res.LogPath)

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	var timeoutC <-chan time.Time
	if r.cfg.Timeout > 0 {
		timer := time.NewTimer(r.cfg.Timeout)
		defer timer.Stop()
		timeoutC = timer.C
	}

	terminated := false
	requestTerminate := func(reason string) {
		if terminated {
			return
		}
		terminated = true
		if err := r.terminate(cmd.Process); err != nil && !errors.Is(err, os.ErrProcessDone) {
			logger.Warn("Terminate request failed", "pid", res.PID, "reason", reason, "err", err)
		}
	}

	for {
		select {
		case waitErr := <-done:
			return r.finish(res, waitErr)

		case <-timeoutC:
			timeoutC = nil
			res.TimedOut = true
			logger.Warn("Agent timed out, terminating", "timeout", r.cfg.Timeout, "pid", res.PID)
			requestTerminate("timeout")

		case <-ctx.Done():
			res.Interrupted = true
			logger.Info("Shutdown requested, terminating agent", "pid", res.PID, "grace", r.cfg.ShutdownGrace)
			requestTerminate("shutdown")

			grace := time.NewTimer(r.cfg.ShutdownGrace)
			defer grace.Stop()
			select {
			case waitErr := <-done:
				return r.finish(res, waitErr)
			case <-grace.C:
				logger.Warn("Agent still running after shutdown grace", "pid", res.PID)
				res.Abandoned = true
				res.ExitCode = ExitCodeUnknown
				res.Err = ctx.Err()
				res.Duration = r.now().Sub(res.StartedAt)
				return res
			}
		}
	}
}

// finish records the exit status and releases the liveness handle. The
// handle is released here and nowhere else so a cycle running mid-flight
// always sees the process.
func (r *Runner) finish(res Result, waitErr error) Result {
	res.ExitCode = exitCodeFromError(waitErr)
	res.Duration = r.now().Sub(res.StartedAt)
	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		res.Err = waitErr
	}
	r.tracker.Release(res.PID)
	return res
}

func (r *Runner) environ(agent, logPath string) []string {
	env := append(os.Environ(), r.cfg.Env...)
	env = append(env, "BATON_AGENT="+agent)
	if r.cfg.InstanceID != "" {
		env = append(env, "BATON_INSTANCE="+r.cfg.InstanceID)
	}
	if logPath != "" {
		env = append(env, "BATON_LOG_FILE="+logPath)
	}
	return env
}

func teeWriter(console io.Writer, runLog *logging.RunLog) io.Writer {
	if runLog == nil {
		return console
	}
	return io.MultiWriter(console, runLog)
}

func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return ExitCodeUnknown
}

func ensurePromptTerminator(prompt string) string {
	if strings.HasSuffix(prompt, "\n") {
		return prompt
	}
	return prompt + "\n"
}
