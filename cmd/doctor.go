package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nibzard/baton/internal/config"
	"github.com/nibzard/baton/internal/prompts"
)

// doctorTrackerTimeout bounds the tracker read performed by doctor.
const doctorTrackerTimeout = 30 * time.Second

type checkStatus int

const (
	checkOK checkStatus = iota
	checkWarn
	checkFail
)

func (s checkStatus) icon() string {
	switch s {
	case checkOK:
		return "✅"
	case checkWarn:
		return "⚠️ "
	default:
		return "❌"
	}
}

// checkResult is one line of doctor output.
type checkResult struct {
	Label  string
	Value  string
	Status checkStatus
	Detail string
}

type checkFunc func(ctx context.Context) checkResult

// doctorCommand checks that baton can run: config, directories, the
// external binaries and tracker access. Checks run concurrently and are
// printed in a fixed order.
func doctorCommand(ctx context.Context, cfg *config.Config, std streams, args []string) error {
	flags := flag.NewFlagSet("doctor", flag.ContinueOnError)
	flags.SetOutput(std.err)
	verbose := flags.Bool("v", false, "Verbose output")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() > 0 {
		return fmt.Errorf("unexpected arguments: %v", flags.Args())
	}

	w := std.out
	fmt.Fprintln(w, "Baton Doctor")
	fmt.Fprintln(w, "============")
	fmt.Fprintln(w)

	if *verbose {
		fmt.Fprintln(w, "Config files:")
		if len(cfg.Files) == 0 {
			fmt.Fprintln(w, "  (none, using defaults)")
		}
		for _, f := range cfg.Files {
			fmt.Fprintf(w, "  %s\n", f)
		}
		fmt.Fprintln(w)
	}

	checks := []checkFunc{
		func(context.Context) checkResult { return checkConfig(cfg) },
		func(context.Context) checkResult { return checkDir("Repo dir", cfg.RepoDir, true) },
		func(context.Context) checkResult { return checkDir("Skills dir", cfg.SkillsPath(), false) },
		func(context.Context) checkResult { return checkDir("Log dir", cfg.LogPath(), false) },
		func(context.Context) checkResult { return checkPrompt(cfg) },
		func(context.Context) checkResult { return checkBinary("gh", cfg.Tracker.GHBinary, true) },
		func(context.Context) checkResult { return checkBinary("git", "git", cfg.GitPull) },
		func(context.Context) checkResult { return checkBinary("Agent", cfg.Agent.Binary, true) },
		func(ctx context.Context) checkResult { return checkTracker(ctx, cfg) },
	}

	results := make([]checkResult, len(checks))
	g, gctx := errgroup.WithContext(ctx)
	for i, check := range checks {
		g.Go(func() error {
			results[i] = check(gctx)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		if r.Value != "" {
			fmt.Fprintf(w, "%s: %s\n", r.Label, r.Value)
		} else {
			fmt.Fprintf(w, "%s:\n", r.Label)
		}
		fmt.Fprintf(w, "  %s %s\n", r.Status.icon(), r.Detail)
		if r.Status == checkFail {
			failed++
		}
	}
	fmt.Fprintln(w)

	if failed > 0 {
		fmt.Fprintf(w, "❌ %d check(s) failed\n", failed)
		return fmt.Errorf("doctor found %d problem(s)", failed)
	}
	fmt.Fprintln(w, "✅ All checks passed")
	return nil
}

func checkConfig(cfg *config.Config) checkResult {
	r := checkResult{Label: "Config"}
	if err := cfg.Validate(); err != nil {
		r.Status = checkFail
		r.Detail = strings.ReplaceAll(err.Error(), "\n", "; ")
		return r
	}
	r.Detail = fmt.Sprintf("OK (issue #%d, every %s, %s/%s every %d)",
		cfg.Tracker.Issue, cfg.Interval(), cfg.Schedule.BootstrapAgent,
		cfg.Schedule.MaintenanceAgent, cfg.Schedule.MaintenancePeriod)
	return r
}

func checkDir(label, path string, required bool) checkResult {
	r := checkResult{Label: label, Value: path}
	info, err := os.Stat(path)
	switch {
	case err == nil && info.IsDir():
		r.Detail = "OK"
	case err == nil:
		r.Status = checkFail
		r.Detail = "Not a directory"
	case required:
		r.Status = checkFail
		r.Detail = err.Error()
	default:
		r.Status = checkWarn
		r.Detail = "Does not exist yet"
	}
	return r
}

func checkPrompt(cfg *config.Config) checkResult {
	r := checkResult{Label: "Prompt template", Value: cfg.PromptPath()}
	prompt, err := promptBuilder(cfg)
	if err == nil {
		_, err = prompt(cfg.Schedule.BootstrapAgent)
	}
	if err != nil {
		r.Status = checkFail
		r.Detail = err.Error()
		return r
	}
	if r.Value == "" {
		r.Value = prompts.DefaultTemplateName
	}
	r.Detail = "OK"
	return r
}

func checkTracker(ctx context.Context, cfg *config.Config) checkResult {
	r := checkResult{Label: "Tracker", Value: trackerName(cfg)}
	if cfg.Tracker.Issue <= 0 {
		r.Status = checkFail
		r.Detail = "Issue not configured"
		return r
	}
	store, err := newStore(cfg)
	if err != nil {
		r.Status = checkFail
		r.Detail = err.Error()
		return r
	}
	ctx, cancel := context.WithTimeout(ctx, doctorTrackerTimeout)
	defer cancel()
	rec, err := store.Read(ctx)
	if err != nil {
		r.Status = checkFail
		r.Detail = err.Error()
		return r
	}
	r.Detail = fmt.Sprintf("OK (Action Count %d, labels: %s)", rec.ActionCount(), joinOrNone(rec.Labels))
	return r
}

func trackerName(cfg *config.Config) string {
	if cfg.Tracker.Repo == "" {
		return fmt.Sprintf("#%d", cfg.Tracker.Issue)
	}
	return fmt.Sprintf("%s#%d", cfg.Tracker.Repo, cfg.Tracker.Issue)
}

// checkBinary resolves binary as a path or through PATH. A missing optional
// binary is a warning.
func checkBinary(label, binary string, required bool) checkResult {
	r := checkResult{Label: label, Value: binary}
	problem := func(detail string) checkResult {
		r.Detail = detail
		r.Status = checkWarn
		if required {
			r.Status = checkFail
		}
		return r
	}

	if strings.TrimSpace(binary) == "" {
		return problem("Not configured")
	}
	if info, err := os.Stat(binary); err == nil {
		if info.IsDir() {
			return problem("Path is a directory")
		}
		if !isExecutablePath(binary, info) {
			return problem("Not executable")
		}
		r.Detail = "OK"
		return r
	}

	resolved, err := exec.LookPath(binary)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return problem("Not found in PATH")
		}
		return problem(fmt.Sprintf("Not found: %v", err))
	}
	if info, err := os.Stat(resolved); err == nil {
		if info.IsDir() {
			return problem("Found in PATH but is a directory: " + resolved)
		}
		if !isExecutablePath(resolved, info) {
			return problem("Found in PATH but not executable: " + resolved)
		}
	}
	r.Detail = "OK (found in PATH: " + resolved + ")"
	return r
}

func isExecutablePath(path string, info os.FileInfo) bool {
	if info == nil {
		return false
	}
	if runtime.GOOS == "windows" {
		return isWindowsExecutable(path)
	}
	return info.Mode().Perm()&0o111 != 0
}

func isWindowsExecutable(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return false
	}
	pathext := os.Getenv("PATHEXT")
	if pathext == "" {
		pathext = ".COM;.EXE;.BAT;.CMD"
	}
	for _, e := range strings.Split(pathext, ";") {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		if e == ext {
			return true
		}
	}
	return false
}
