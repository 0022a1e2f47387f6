// Package hooks invokes the external post-run hook.
package hooks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
)

// Options configures a hook invocation.
type Options struct {
	Command  string
	Agent    string
	ExitCode int
	LogPath  string
	WorkDir  string
	Stdout   io.Writer
	Stderr   io.Writer
}

// Result captures the outcome of a hook invocation.
type Result struct {
	Ran      bool
	Command  []string
	ExitCode int
}

// Invoke runs `<command> <agent> <exit_code> <log_path>`. An empty command
// is a no-op. The agent's outcome is also exported as BATON_HOOK_* so
// scripts can ignore positional arguments.
func Invoke(ctx context.Context, opts Options) (Result, error) {
	if opts.Command == "" {
		return Result{}, nil
	}
	if opts.Agent == "" {
		return Result{}, errors.New("hook invoked without agent")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	code := strconv.Itoa(opts.ExitCode)
	cmd := exec.CommandContext(ctx, opts.Command, opts.Agent, code, opts.LogPath)
	if opts.WorkDir != "" {
		cmd.Dir = opts.WorkDir
	}
	cmd.Env = append(os.Environ(),
		"BATON_HOOK_AGENT="+opts.Agent,
		"BATON_HOOK_EXIT_CODE="+code,
		"BATON_HOOK_LOG="+opts.LogPath,
	)
	cmd.Stdout = opts.Stdout
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	cmd.Stderr = opts.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	err := cmd.Run()
	result := Result{
		Ran:      true,
		Command:  cmd.Args,
		ExitCode: exitCodeFromError(err),
	}
	if err != nil {
		return result, fmt.Errorf("hook command failed: %w", err)
	}
	return result, nil
}

func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
