package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// RunLogExt is the extension of per-run agent logs.
const RunLogExt = ".log"

// runStampLayout is an ISO-8601 UTC second with ':' replaced by '-' so the
// name is valid on every filesystem.
const runStampLayout = "2006-01-02T15-04-05"

// RunFileName returns <agent>-<timestamp>.log for a run started at t.
func RunFileName(agent string, t time.Time) string {
	return sanitizeLabel(agent) + "-" + t.UTC().Format(runStampLayout) + RunLogExt
}

// RunLog is an append-only file receiving one agent run's output.
// Writes are serialized so stdout and stderr pumps can share it.
type RunLog struct {
	Path string

	mu   sync.Mutex
	file *os.File
}

// OpenRunLog creates dir if needed and opens the run log for appending.
func OpenRunLog(dir, agent string, startedAt time.Time) (*RunLog, error) {
	if dir == "" {
		return nil, fmt.Errorf("log dir is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	path := filepath.Join(dir, RunFileName(agent, startedAt))
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return &RunLog{Path: path, file: file}, nil
}

// Write appends p to the file. After Close, writes are dropped and report
// success so a writer fanning out to the console keeps going.
func (r *RunLog) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return len(p), nil
	}
	return r.file.Write(p)
}

// Close closes the log file. It is safe to call more than once.
func (r *RunLog) Close() error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

func sanitizeLabel(input string) string {
	if strings.TrimSpace(input) == "" {
		return "run"
	}

	var b strings.Builder
	for i := 0; i < len(input); i++ {
		c := input[i]
		valid := (c >= 'A' && c <= 'Z') ||
			(c >= 'a' && c <= 'z') ||
			(c >= '0' && c <= '9') ||
			c == '_' || c == '-'
		if !valid {
			b.WriteByte('_')
			continue
		}
		b.WriteByte(c)
	}

	label := strings.Trim(b.String(), "_")
	if label == "" {
		return "run"
	}
	return label
}
