package config

import (
	"flag"
	"strings"

	"github.com/nibzard/baton/internal/utils"
)

// parseFlags defines the global flags on fs and parses args into cfg.
func parseFlags(cfg *Config, fs *flag.FlagSet, args []string) error {
	if fs == nil {
		fs = flag.NewFlagSet("baton", flag.ContinueOnError)
	}

	// Paths
	fs.StringVar(&cfg.RepoDir, "repo-dir", cfg.RepoDir, "Repository the agents work in")
	fs.StringVar(&cfg.LogDir, "log-dir", cfg.LogDir, "Run log directory (relative to repo dir)")
	fs.StringVar(&cfg.SkillsDir, "skills-dir", cfg.SkillsDir, "Skills directory referenced by the prompt")
	fs.StringVar(&cfg.PromptFile, "prompt-file", cfg.PromptFile, "Custom prompt template")
	fs.StringVar(&cfg.ProjectName, "project", cfg.ProjectName, "Project name used in the prompt")
	fs.BoolVar(&cfg.GitPull, "git-pull", cfg.GitPull, "Run git pull --rebase before every cycle")
	fs.StringVar(&cfg.HookCommand, "hook", cfg.HookCommand, "Command to run after each agent run")

	// Tracker
	fs.IntVar(&cfg.Tracker.Issue, "issue", cfg.Tracker.Issue, "Tracker issue number")
	fs.StringVar(&cfg.Tracker.Repo, "tracker-repo", cfg.Tracker.Repo, "Tracker repository (owner/name)")
	fs.StringVar(&cfg.Tracker.GHBinary, "gh", cfg.Tracker.GHBinary, "GitHub CLI binary")

	// Schedule
	fs.IntVar(&cfg.Schedule.IntervalSeconds, "interval", cfg.Schedule.IntervalSeconds, "Seconds between cycles")
	fs.StringVar(&cfg.Schedule.BootstrapAgent, "bootstrap-agent", cfg.Schedule.BootstrapAgent, "Agent to run when no next label exists")
	fs.StringVar(&cfg.Schedule.MaintenanceAgent, "maintenance-agent", cfg.Schedule.MaintenanceAgent, "Agent for maintenance cycles")
	fs.IntVar(&cfg.Schedule.MaintenancePeriod, "maintenance-period", cfg.Schedule.MaintenancePeriod, "Run the maintenance agent every N actions (0 disables)")

	// Agent executor
	fs.StringVar(&cfg.Agent.Binary, "agent-bin", cfg.Agent.Binary, "Agent executor binary")
	fs.StringVar(&cfg.Agent.Model, "model", cfg.Agent.Model, "Model passed to the agent executor")
	agentArgs := strings.Join(cfg.Agent.Args, ",")
	fs.StringVar(&agentArgs, "agent-args", agentArgs, "Comma-separated extra agent arguments")
	promptFormat := string(cfg.Agent.PromptFormat)
	fs.StringVar(&promptFormat, "prompt-format", promptFormat, "How to pass the prompt (arg|stdin)")
	fs.IntVar(&cfg.Agent.TimeoutSeconds, "timeout", cfg.Agent.TimeoutSeconds, "Agent timeout in seconds (0 disables)")
	fs.IntVar(&cfg.Agent.ShutdownGraceSeconds, "shutdown-grace", cfg.Agent.ShutdownGraceSeconds, "Seconds to wait for an agent after shutdown")

	// Logging
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug|info|warn|error)")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format (text|json|logfmt)")
	fs.BoolVar(&cfg.LogTimestamps, "log-timestamps", cfg.LogTimestamps, "Include timestamps in console logs")
	fs.BoolVar(&cfg.LogCaller, "log-caller", cfg.LogCaller, "Include caller in console logs")

	if err := fs.Parse(args); err != nil {
		return err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "agent-args":
			cfg.Agent.Args = utils.SplitAndTrim(agentArgs, ",")
		case "prompt-format":
			cfg.Agent.PromptFormat = PromptFormat(promptFormat)
		}
	})
	return nil
}
