package config

import (
	"flag"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/nibzard/baton/internal/utils"
)

// Load loads configuration from multiple sources in priority order:
// 1. Defaults
// 2. User config file (~/.baton/baton.toml or OS-specific config dir)
// 3. Project config file (baton.toml, .baton.toml, or $BATON_CONFIG)
// 4. Environment variables
// 5. CLI flags
func Load(fs *flag.FlagSet, args []string) (*Config, error) {
	cfg := &Config{}

	// 1. Set defaults
	setDefaults(cfg)

	// 2. Try to load from user config file
	if userConfigFile := findUserConfigFile(); userConfigFile != "" {
		if err := loadConfigFile(cfg, userConfigFile); err != nil {
			return nil, fmt.Errorf("loading user config file %s: %w", userConfigFile, err)
		}
	}

	// 3. Try to load from project config file (overrides user config)
	projectConfigFile, err := findProjectConfigFile()
	if err != nil {
		return nil, err
	}
	if projectConfigFile != "" {
		if err := loadConfigFile(cfg, projectConfigFile); err != nil {
			return nil, fmt.Errorf("loading project config file %s: %w", projectConfigFile, err)
		}
	}

	// 4. Override from environment
	loadFromEnv(cfg)

	// 5. Parse CLI flags (they override everything)
	if err := parseFlags(cfg, fs, args); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	// 6. Compute derived values
	if err := finalizeConfig(cfg); err != nil {
		return nil, fmt.Errorf("finalizing config: %w", err)
	}

	return cfg, nil
}

// LoadFile decodes a single TOML file over the defaults. It skips the
// environment and flags and is meant for tools and tests.
func LoadFile(path string) (*Config, error) {
	cfg := Defaults()
	if err := loadConfigFile(cfg, path); err != nil {
		return nil, err
	}
	if err := finalizeConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadConfigFile loads TOML config from the given file. Unknown keys are
// rejected so a typo does not silently fall back to a default.
func loadConfigFile(cfg *Config, path string) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	cfg.Files = append(cfg.Files, path)
	return nil
}

// finalizeConfig computes derived values and normalizes paths.
func finalizeConfig(cfg *Config) error {
	cfg.RepoDir = expandPath(cfg.RepoDir)
	if cfg.RepoDir == "" {
		cfg.RepoDir = "."
	}
	abs, err := filepath.Abs(cfg.RepoDir)
	if err != nil {
		return fmt.Errorf("resolving repo dir: %w", err)
	}
	cfg.RepoDir = abs

	cfg.LogDir = expandPath(cfg.LogDir)
	cfg.SkillsDir = expandPath(cfg.SkillsDir)
	cfg.PromptFile = expandPath(cfg.PromptFile)
	cfg.Agent.Binary = expandPath(cfg.Agent.Binary)

	cfg.Schedule.BootstrapAgent = utils.NormalizeAgentName(cfg.Schedule.BootstrapAgent)
	cfg.Schedule.MaintenanceAgent = utils.NormalizeAgentName(cfg.Schedule.MaintenanceAgent)
	cfg.Agent.PromptFormat = PromptFormat(strings.ToLower(strings.TrimSpace(string(cfg.Agent.PromptFormat))))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	return nil
}
