package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// expandPath expands $VAR references and a leading ~ in p. On Windows it
// also accepts ~\ and %VAR%.
func expandPath(p string) string {
	if p == "" {
		return p
	}

	expanded := os.ExpandEnv(p)
	if runtime.GOOS == "windows" {
		expanded = expandWindowsEnv(expanded)
	}

	switch {
	case expanded == "~":
		if home, err := os.UserHomeDir(); err == nil {
			return home
		}
	case strings.HasPrefix(expanded, "~/"), runtime.GOOS == "windows" && strings.HasPrefix(expanded, `~\`):
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, expanded[2:])
		}
	}
	return expanded
}

// expandWindowsEnv replaces %VAR% with its value. Unknown variables and a
// lone % are left as written.
func expandWindowsEnv(p string) string {
	if !strings.Contains(p, "%") {
		return p
	}
	var b strings.Builder
	for i := 0; i < len(p); {
		if p[i] != '%' {
			b.WriteByte(p[i])
			i++
			continue
		}
		end := strings.IndexByte(p[i+1:], '%')
		if end <= 0 {
			b.WriteByte('%')
			i++
			continue
		}
		key := p[i+1 : i+1+end]
		if val, ok := os.LookupEnv(key); ok {
			b.WriteString(val)
		} else {
			b.WriteString("%" + key + "%")
		}
		i += end + 2
	}
	return b.String()
}
