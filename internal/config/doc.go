// Package config loads baton's settings.
//
// Sources are applied in this order, later ones winning: built-in defaults,
// the user file, the project file, BATON_* environment variables (plus
// GH_BIN and CLAUDE_BIN), and finally command-line flags.
//
// The user file is ~/.baton/baton.toml, or baton/baton.toml under the OS
// config directory (%APPDATA% on Windows, ~/Library/Application Support on
// macOS, $XDG_CONFIG_HOME or ~/.config elsewhere). The project file is
// baton.toml or .baton.toml in the working directory, unless BATON_CONFIG
// names one explicitly.
//
// Relative log, skills and prompt paths are resolved against repo_dir.
package config
