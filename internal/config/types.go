package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"
)

// Default values.
const (
	DefaultLogDir               = "logs"
	DefaultSkillsDir            = "skills"
	DefaultProjectName          = "M2Sim"
	DefaultGHBinary             = "gh"
	DefaultIntervalSeconds      = 180
	DefaultBootstrapAgent       = "alice"
	DefaultMaintenanceAgent     = "grace"
	DefaultMaintenancePeriod    = 10
	DefaultAgentBinary          = "claude"
	DefaultAgentModel           = "claude-opus-4-5"
	DefaultAgentTimeoutSeconds  = 900
	DefaultShutdownGraceSeconds = 10
	DefaultLogLevel             = "info"
	DefaultLogFormat            = "text"
)

// DefaultAgentArgs returns the capability flags passed to the agent binary.
func DefaultAgentArgs() []string {
	return []string{"--dangerously-skip-permissions"}
}

// PromptFormat specifies how the prompt is passed to the agent.
type PromptFormat string

const (
	// PromptFormatArg passes the prompt as the last command-line argument.
	PromptFormatArg PromptFormat = "arg"
	// PromptFormatStdin passes the prompt via stdin.
	PromptFormatStdin PromptFormat = "stdin"
)

// Config holds the full configuration for baton.
type Config struct {
	// Paths
	RepoDir    string `toml:"repo_dir"`
	LogDir     string `toml:"log_dir"`
	SkillsDir  string `toml:"skills_dir"`
	PromptFile string `toml:"prompt_file"`

	ProjectName string `toml:"project_name"`

	// Run `git pull --rebase --quiet` before every cycle
	GitPull bool `toml:"git_pull"`

	// Hook run after every agent run
	HookCommand string `toml:"hook_command"`

	Tracker  TrackerConfig  `toml:"tracker"`
	Schedule ScheduleConfig `toml:"schedule"`
	Agent    AgentConfig    `toml:"agent"`

	// Logging configuration
	LogLevel      string `toml:"log_level"`
	LogFormat     string `toml:"log_format"`
	LogTimestamps bool   `toml:"log_timestamps"`
	LogCaller     bool   `toml:"log_caller"`

	// Files that contributed to this config (computed)
	Files []string `toml:"-"`
}

// TrackerConfig locates the shared tracker issue.
type TrackerConfig struct {
	Issue    int    `toml:"issue"`
	Repo     string `toml:"repo"`
	GHBinary string `toml:"gh_binary"`
}

// ScheduleConfig controls the cycle interval and agent rotation.
type ScheduleConfig struct {
	IntervalSeconds   int    `toml:"interval_seconds"`
	BootstrapAgent    string `toml:"bootstrap_agent"`
	MaintenanceAgent  string `toml:"maintenance_agent"`
	MaintenancePeriod int    `toml:"maintenance_period"`
}

// AgentConfig describes the external agent executor.
type AgentConfig struct {
	Binary               string       `toml:"binary"`
	Model                string       `toml:"model"`
	Args                 []string     `toml:"args"`
	PromptFormat         PromptFormat `toml:"prompt_format"`
	TimeoutSeconds       int          `toml:"timeout_seconds"`
	ShutdownGraceSeconds int          `toml:"shutdown_grace_seconds"`
}

// Interval returns the cycle interval.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.Schedule.IntervalSeconds) * time.Second
}

// AgentTimeout returns the hard wall-clock limit for one agent run.
// Zero or negative disables the timeout.
func (c *Config) AgentTimeout() time.Duration {
	return time.Duration(c.Agent.TimeoutSeconds) * time.Second
}

// ShutdownGrace returns how long shutdown waits for a terminated agent.
func (c *Config) ShutdownGrace() time.Duration {
	return time.Duration(c.Agent.ShutdownGraceSeconds) * time.Second
}

// LogPath resolves the run log directory against the repo dir.
func (c *Config) LogPath() string {
	return c.resolve(c.LogDir)
}

// SkillsPath resolves the skills directory against the repo dir.
func (c *Config) SkillsPath() string {
	return c.resolve(c.SkillsDir)
}

// PromptPath resolves the custom prompt template, if any.
func (c *Config) PromptPath() string {
	if c.PromptFile == "" {
		return ""
	}
	return c.resolve(c.PromptFile)
}

func (c *Config) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.RepoDir, p)
}

// Validate reports settings the loop cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Tracker.Issue <= 0 {
		errs = append(errs, errors.New("tracker.issue must be a positive issue number"))
	}
	if c.Schedule.IntervalSeconds <= 0 {
		errs = append(errs, fmt.Errorf("schedule.interval_seconds must be > 0, got %d", c.Schedule.IntervalSeconds))
	}
	if c.Schedule.BootstrapAgent == "" {
		errs = append(errs, errors.New("schedule.bootstrap_agent is empty"))
	}
	if c.Schedule.MaintenancePeriod > 0 && c.Schedule.MaintenanceAgent == "" {
		errs = append(errs, errors.New("schedule.maintenance_agent is empty"))
	}
	if c.Agent.Binary == "" {
		errs = append(errs, errors.New("agent.binary is empty"))
	}
	switch c.Agent.PromptFormat {
	case PromptFormatArg, PromptFormatStdin:
	default:
		errs = append(errs, fmt.Errorf("agent.prompt_format must be %q or %q, got %q", PromptFormatArg, PromptFormatStdin, c.Agent.PromptFormat))
	}
	return errors.Join(errs...)
}

// setDefaults applies default values to the config.
func setDefaults(cfg *Config) {
	cfg.RepoDir = "."
	cfg.LogDir = DefaultLogDir
	cfg.SkillsDir = DefaultSkillsDir
	cfg.ProjectName = DefaultProjectName
	cfg.GitPull = true

	cfg.Tracker.GHBinary = DefaultGHBinary

	cfg.Schedule.IntervalSeconds = DefaultIntervalSeconds
	cfg.Schedule.BootstrapAgent = DefaultBootstrapAgent
	cfg.Schedule.MaintenanceAgent = DefaultMaintenanceAgent
	cfg.Schedule.MaintenancePeriod = DefaultMaintenancePeriod

	cfg.Agent.Binary = DefaultAgentBinary
	cfg.Agent.Model = DefaultAgentModel
	cfg.Agent.Args = DefaultAgentArgs()
	cfg.Agent.PromptFormat = PromptFormatArg
	cfg.Agent.TimeoutSeconds = DefaultAgentTimeoutSeconds
	cfg.Agent.ShutdownGraceSeconds = DefaultShutdownGraceSeconds

	cfg.LogLevel = DefaultLogLevel
	cfg.LogFormat = DefaultLogFormat
	cfg.LogTimestamps = true
}

// Defaults returns a config holding only built-in defaults.
func Defaults() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}
