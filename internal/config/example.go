package config

import (
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"
)

// ExampleConfig returns an example configuration showing all available options.
func ExampleConfig() string {
	return `# baton configuration file
# Values can be overridden by environment variables (BATON_*) or CLI flags.

# Repository the agents work in; git pull runs here before every cycle
repo_dir = "."

# Per-run agent logs, relative to repo_dir
log_dir = "logs"

# Role files referenced by the prompt: <skills_dir>/everyone.md, <skills_dir>/<agent>.md
skills_dir = "skills"

# Optional text/template overriding the built-in prompt
# prompt_file = "agent/prompt.tmpl"

project_name = "M2Sim"
git_pull = true

# Command run after every agent run: <hook> <agent> <exit_code> <log_path>
# hook_command = "/path/to/hook.sh"

log_level = "info"     # debug|info|warn|error
log_format = "text"    # text|json|logfmt
log_timestamps = true
log_caller = false

[tracker]
issue = 45
# owner/name; empty lets gh infer it from repo_dir
repo = ""
gh_binary = "gh"

[schedule]
interval_seconds = 180
bootstrap_agent = "alice"
maintenance_agent = "grace"
# Run maintenance_agent instead of bootstrap_agent every Nth action (0 disables)
maintenance_period = 10

[agent]
binary = "claude"
model = "claude-opus-4-5"
args = ["--dangerously-skip-permissions"]
prompt_format = "arg"  # arg|stdin
timeout_seconds = 900
shutdown_grace_seconds = 10
`
}

// WriteExample writes ExampleConfig to path, refusing to overwrite.
func WriteExample(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := io.WriteString(f, ExampleConfig()); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// Encode writes cfg as TOML.
func Encode(w io.Writer, cfg *Config) error {
	enc := toml.NewEncoder(w)
	enc.Indent = ""
	return enc.Encode(cfg)
}
