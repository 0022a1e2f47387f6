package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/nibzard/baton/internal/utils"
)

// loadFromEnv overrides config from environment variables. Values that do
// not parse are ignored and the previous layer wins.
func loadFromEnv(cfg *Config) {
	if v := os.Getenv("BATON_REPO_DIR"); v != "" {
		cfg.RepoDir = v
	}
	if v := os.Getenv("BATON_LOG_DIR"); v != "" {
		cfg.LogDir = v
	}
	if v := os.Getenv("BATON_SKILLS_DIR"); v != "" {
		cfg.SkillsDir = v
	}
	if v := os.Getenv("BATON_PROMPT_FILE"); v != "" {
		cfg.PromptFile = v
	}
	if v := os.Getenv("BATON_PROJECT_NAME"); v != "" {
		cfg.ProjectName = v
	}
	if v := os.Getenv("BATON_GIT_PULL"); v != "" {
		cfg.GitPull = boolFromString(v)
	}
	if v := os.Getenv("BATON_HOOK"); v != "" {
		cfg.HookCommand = v
	}

	// Tracker
	setIntFromEnv("BATON_TRACKER_ISSUE", &cfg.Tracker.Issue)
	if v := os.Getenv("BATON_TRACKER_REPO"); v != "" {
		cfg.Tracker.Repo = v
	}
	if v := os.Getenv("GH_BIN"); v != "" {
		cfg.Tracker.GHBinary = v
	}

	// Schedule
	setIntFromEnv("BATON_INTERVAL", &cfg.Schedule.IntervalSeconds)
	if v := os.Getenv("BATON_BOOTSTRAP_AGENT"); v != "" {
		cfg.Schedule.BootstrapAgent = v
	}
	if v := os.Getenv("BATON_MAINTENANCE_AGENT"); v != "" {
		cfg.Schedule.MaintenanceAgent = v
	}
	setIntFromEnv("BATON_MAINTENANCE_PERIOD", &cfg.Schedule.MaintenancePeriod)

	// Agent executor
	if v := os.Getenv("CLAUDE_BIN"); v != "" {
		cfg.Agent.Binary = v
	}
	if v := os.Getenv("BATON_AGENT_BIN"); v != "" {
		cfg.Agent.Binary = v
	}
	if v := os.Getenv("BATON_MODEL"); v != "" {
		cfg.Agent.Model = v
	}
	if v, ok := os.LookupEnv("BATON_AGENT_ARGS"); ok {
		cfg.Agent.Args = utils.SplitAndTrim(v, ",")
	}
	if v := os.Getenv("BATON_PROMPT_FORMAT"); v != "" {
		cfg.Agent.PromptFormat = PromptFormat(v)
	}
	setIntFromEnv("BATON_AGENT_TIMEOUT", &cfg.Agent.TimeoutSeconds)
	setIntFromEnv("BATON_SHUTDOWN_GRACE", &cfg.Agent.ShutdownGraceSeconds)

	// Logging
	if v := os.Getenv("BATON_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("BATON_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("BATON_LOG_TIMESTAMPS"); v != "" {
		cfg.LogTimestamps = boolFromString(v)
	}
	if v := os.Getenv("BATON_LOG_CALLER"); v != "" {
		cfg.LogCaller = boolFromString(v)
	}
}

func setIntFromEnv(key string, target *int) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	if i, err := strconv.Atoi(v); err == nil {
		*target = i
	}
}

func boolFromString(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
