// Package cmd implements the CLI command structure for baton.
package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nibzard/baton/internal/config"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Run executes the baton CLI.
func Run(ctx context.Context, args []string) error {
	return run(ctx, args, os.Stdout, os.Stderr)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	// Create a flag set for global options
	fs := flag.NewFlagSet("baton", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		printUsage(fs, stderr)
	}
	help := fs.Bool("help", false, "Show help")
	fs.BoolVar(help, "h", false, "Show help")
	showVersion := fs.Bool("version", false, "Show version")
	fs.BoolVar(showVersion, "v", false, "Show version")

	// Global flags
	cfg, err := config.Load(fs, args)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if *help {
		printUsage(fs, stdout)
		return nil
	}
	if *showVersion {
		return versionCommand(stdout)
	}

	// If no args or first arg is a flag, use "run" as default
	subcommand := "run"
	remainingArgs := fs.Args()
	if len(remainingArgs) > 0 && !strings.HasPrefix(remainingArgs[0], "-") {
		subcommand = remainingArgs[0]
		remainingArgs = remainingArgs[1:]
	}

	std := streams{out: stdout, err: stderr}

	switch subcommand {
	case "run":
		return runCommand(ctx, cfg, std, remainingArgs)
	case "once":
		return onceCommand(ctx, cfg, std, remainingArgs)
	case "status":
		return statusCommand(ctx, cfg, std, remainingArgs)
	case "tui":
		return tuiCommand(ctx, cfg, std, remainingArgs)
	case "doctor":
		return doctorCommand(ctx, cfg, std, remainingArgs)
	case "tail":
		return tailCommand(ctx, cfg, std, remainingArgs)
	case "ls":
		return lsCommand(cfg, std, remainingArgs)
	case "init":
		return initCommand(std, remainingArgs)
	case "config":
		return configCommand(cfg, std, remainingArgs)
	case "version":
		return versionCommand(stdout)
	case "help":
		printUsage(fs, stdout)
		return nil
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", subcommand)
		printUsage(fs, stderr)
		return fmt.Errorf("unknown command: %s", subcommand)
	}
}

// streams carries the writers a command prints to.
type streams struct {
	out io.Writer
	err io.Writer
}

// versionCommand prints version information.
func versionCommand(w io.Writer) error {
	fmt.Fprintf(w, "baton version %s\n", Version)
	return nil
}

// printUsage prints the usage message.
func printUsage(fs *flag.FlagSet, w io.Writer) {
	fmt.Fprintln(w, "baton - runs one agent at a time, taking turns through a GitHub tracker issue")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  baton [global options] [command] [command options]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  run           Run the orchestrator loop (default command)")
	fmt.Fprintln(w, "  once          Run a single cycle and exit")
	fmt.Fprintln(w, "  status        Show tracker state and the decision a new instance would make")
	fmt.Fprintln(w, "  tui           Launch the terminal dashboard (-run also runs the loop)")
	fmt.Fprintln(w, "  doctor        Check dependencies, config and tracker access")
	fmt.Fprintln(w, "  tail [agent]  Tail the latest run log")
	fmt.Fprintln(w, "  ls            List run logs")
	fmt.Fprintln(w, "  init [file]   Write an example baton.toml")
	fmt.Fprintln(w, "  config        Print the effective configuration")
	fmt.Fprintln(w, "  version       Show version information")
	fmt.Fprintln(w, "  help          Show this help message")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Global Options:")
	fs.SetOutput(w)
	fs.PrintDefaults()
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Status Options:")
	fmt.Fprintln(w, "  -json")
	fmt.Fprintln(w, "        Print machine-readable JSON")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Tail Options:")
	fmt.Fprintln(w, "  -f, --follow")
	fmt.Fprintln(w, "        Follow the log (like tail -f)")
	fmt.Fprintln(w, "  -n int")
	fmt.Fprintln(w, "        Number of lines to show (0 = all)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Ls Options:")
	fmt.Fprintln(w, "  -agent string")
	fmt.Fprintln(w, "        Only list runs of this agent")
	fmt.Fprintln(w, "  -n int")
	fmt.Fprintln(w, "        Maximum number of runs to list (0 = all)")
}
