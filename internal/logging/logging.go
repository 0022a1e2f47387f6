// Package logging provides the console logger, per-run agent log files,
// and helpers to list and tail them.
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// FindLatestLog finds the most recently modified run log in a directory.
// A missing directory yields an empty path and no error.
func FindLatestLog(logDir string) (string, error) {
	entries, err := os.ReadDir(logDir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read log dir: %w", err)
	}

	var latest string
	var latestTime time.Time

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, RunLogExt) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if latest == "" || info.ModTime().After(latestTime) {
			latestTime = info.ModTime()
			latest = filepath.Join(logDir, name)
		}
	}

	return latest, nil
}

// TailLog copies the last n lines of path to w (all of it when n <= 0).
// With follow it keeps copying appended data until ctx is done.
func TailLog(ctx context.Context, w io.Writer, path string, n int, follow bool) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if n > 0 {
		if err := tailSeek(file, n); err != nil {
			return fmt.Errorf("seek to tail position: %w", err)
		}
	}

	if _, err := io.Copy(w, file); err != nil {
		return err
	}
	if !follow {
		return nil
	}

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := io.Copy(w, file); err != nil {
				return err
			}
		}
	}
}

// tailSeek positions file at the start of the n-th line from the end.
func tailSeek(file *os.File, n int) error {
	const chunk = 4096

	stat, err := file.Stat()
	if err != nil {
		return err
	}
	size := stat.Size()
	if size == 0 {
		return nil
	}

	// Ignore a trailing newline so it does not count as an empty line.
	end := size
	last := make([]byte, 1)
	if _, err := file.ReadAt(last, size-1); err != nil {
		return err
	}
	if last[0] == '\n' {
		end--
	}

	buf := make([]byte, chunk)
	seen := 0
	for pos := end; pos > 0; {
		readSize := int64(chunk)
		if pos < readSize {
			readSize = pos
		}
		pos -= readSize
		if _, err := file.ReadAt(buf[:readSize], pos); err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		for i := readSize - 1; i >= 0; i-- {
			if buf[i] != '\n' {
				continue
			}
			seen++
			if seen == n {
				_, err := file.Seek(pos+i+1, io.SeekStart)
				return err
			}
		}
	}
	_, err = file.Seek(0, io.SeekStart)
	return err
}

// LogRun describes one agent run log on disk.
type LogRun struct {
	Agent     string
	StartedAt time.Time
	ModTime   time.Time
	Size      int64
	Path      string
}

// FindLogRuns lists run logs in logDir, newest first. Files that do not
// follow the <agent>-<timestamp>.log naming are skipped.
func FindLogRuns(logDir string) ([]LogRun, error) {
	entries, err := os.ReadDir(logDir)
	if err != nil {
		return nil, fmt.Errorf("read log dir: %w", err)
	}

	runs := make([]LogRun, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		agent, started, ok := parseRunFileName(entry.Name())
		if !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		runs = append(runs, LogRun{
			Agent:     agent,
			StartedAt: started,
			ModTime:   info.ModTime(),
			Size:      info.Size(),
			Path:      filepath.Join(logDir, entry.Name()),
		})
	}

	sort.Slice(runs, func(i, j int) bool {
		if runs[i].StartedAt.Equal(runs[j].StartedAt) {
			return runs[i].ModTime.After(runs[j].ModTime)
		}
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})

	return runs, nil
}

// parseRunFileName splits <agent>-<timestamp>.log. Agent names may contain
// '-', so the timestamp is taken from the fixed-width suffix.
func parseRunFileName(name string) (string, time.Time, bool) {
	if !strings.HasSuffix(name, RunLogExt) {
		return "", time.Time{}, false
	}
	base := strings.TrimSuffix(name, RunLogExt)
	if len(base) < len(runStampLayout)+2 {
		return "", time.Time{}, false
	}
	split := len(base) - len(runStampLayout)
	if base[split-1] != '-' {
		return "", time.Time{}, false
	}
	started, err := time.Parse(runStampLayout, base[split:])
	if err != nil {
		return "", time.Time{}, false
	}
	return base[:split-1], started, true
}
