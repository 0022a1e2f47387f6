package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// ConfigEnvVar names an explicit project config file.
const ConfigEnvVar = "BATON_CONFIG"

// ProjectConfigFile is the project config file name looked up in the
// current directory.
const ProjectConfigFile = "baton.toml"

// findProjectConfigFile returns $BATON_CONFIG if set, otherwise the first of
// baton.toml or .baton.toml in the current directory.
func findProjectConfigFile() (string, error) {
	if explicit := os.Getenv(ConfigEnvVar); explicit != "" {
		path := expandPath(explicit)
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("%s=%s: %w", ConfigEnvVar, explicit, err)
		}
		return path, nil
	}
	for _, name := range []string{ProjectConfigFile, "." + ProjectConfigFile} {
		if _, err := os.Stat(name); err == nil {
			return name, nil
		}
	}
	return "", nil
}

// findUserConfigFile checks ~/.baton/baton.toml first, then the OS-specific
// config directory.
func findUserConfigFile() string {
	home, err := os.UserHomeDir()
	if err == nil {
		userConfigPath := filepath.Join(home, ".baton", "baton.toml")
		if _, err := os.Stat(userConfigPath); err == nil {
			return userConfigPath
		}
	}

	if cfgDir := osUserConfigDir(); cfgDir != "" {
		userConfigPath := filepath.Join(cfgDir, "baton", "baton.toml")
		if _, err := os.Stat(userConfigPath); err == nil {
			return userConfigPath
		}
	}

	return ""
}

// osUserConfigDir returns the OS-specific user config directory.
// Returns empty string if the directory cannot be determined.
func osUserConfigDir() string {
	switch runtime.GOOS {
	case "windows":
		if appdata := os.Getenv("APPDATA"); appdata != "" {
			return appdata
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, "Library", "Application Support")
		}
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return xdg
		}
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, ".config")
		}
	}
	return ""
}
