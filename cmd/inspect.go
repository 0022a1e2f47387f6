package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/nibzard/baton/internal/config"
	"github.com/nibzard/baton/internal/logging"
	"github.com/nibzard/baton/internal/schedule"
	"github.com/nibzard/baton/internal/tracker"
	"github.com/nibzard/baton/internal/ui"
)

// statusReport is the machine-readable form of `baton status`.
type statusReport struct {
	Issue       int       `json:"issue"`
	Repo        string    `json:"repo,omitempty"`
	FetchedAt   time.Time `json:"fetched_at"`
	ActionCount int       `json:"action_count"`
	Labels      []string  `json:"labels"`
	Active      []string  `json:"active"`
	Next        []string  `json:"next"`
	Decision    struct {
		Action      string `json:"action"`
		Agent       string `json:"agent,omitempty"`
		StaleLabel  string `json:"stale_label,omitempty"`
		Maintenance bool   `json:"maintenance"`
		Reason      string `json:"reason"`
	} `json:"decision"`
}

func newStatusReport(cfg *config.Config, rec tracker.Record, d schedule.Decision) statusReport {
	r := statusReport{
		Issue:       cfg.Tracker.Issue,
		Repo:        cfg.Tracker.Repo,
		FetchedAt:   rec.FetchedAt,
		ActionCount: rec.ActionCount(),
		Labels:      nonNil(rec.Labels),
		Active:      nonNil(rec.ActiveAgents()),
		Next:        nonNil(rec.NextAgents()),
	}
	r.Decision.Action = d.Action.String()
	r.Decision.Agent = d.Agent
	r.Decision.Maintenance = d.Maintenance
	r.Decision.Reason = d.Reason
	if d.Stale != nil {
		r.Decision.StaleLabel = d.Stale.Label()
	}
	return r
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// statusCommand reads the tracker and prints the decision a fresh instance
// would make. It never modifies the tracker.
func statusCommand(ctx context.Context, cfg *config.Config, std streams, args []string) error {
	flags := flag.NewFlagSet("status", flag.ContinueOnError)
	flags.SetOutput(std.err)
	asJSON := flags.Bool("json", false, "Print machine-readable JSON")
	if err := flags.Parse(args); err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	store, err := newStore(cfg)
	if err != nil {
		return err
	}

	src := ui.Source{Store: store, Policy: policyFromConfig(cfg), Issue: cfg.Tracker.Issue}
	snap := src.Snapshot(ctx)
	if snap.ReadErr != nil {
		return fmt.Errorf("read tracker: %w", snap.ReadErr)
	}
	report := newStatusReport(cfg, snap.Record, snap.Decision)

	if *asJSON {
		enc := json.NewEncoder(std.out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	w := std.out
	if cfg.Tracker.Repo != "" {
		fmt.Fprintf(w, "Tracker:      %s#%d\n", cfg.Tracker.Repo, report.Issue)
	} else {
		fmt.Fprintf(w, "Tracker:      #%d\n", report.Issue)
	}
	fmt.Fprintf(w, "Action Count: %d\n", report.ActionCount)
	fmt.Fprintf(w, "Active:       %s\n", joinOrNone(report.Active))
	fmt.Fprintf(w, "Next:         %s\n", joinOrNone(report.Next))
	if len(report.Active) > 1 || len(report.Next) > 1 {
		fmt.Fprintln(w, "Warning:      duplicate labels, the first one wins")
	}
	fmt.Fprintln(w)
	switch snap.Decision.Action {
	case schedule.ActionRun:
		fmt.Fprintf(w, "A new instance would run %s (%s)\n", report.Decision.Agent, report.Decision.Reason)
		if report.Decision.StaleLabel != "" {
			fmt.Fprintf(w, "after clearing stale label %s\n", report.Decision.StaleLabel)
		}
	default:
		fmt.Fprintf(w, "A new instance would wait (%s)\n", report.Decision.Reason)
	}
	return nil
}

func joinOrNone(s []string) string {
	if len(s) == 0 {
		return "(none)"
	}
	return strings.Join(s, ", ")
}

// tailCommand tails the latest run log, optionally of one agent.
func tailCommand(ctx context.Context, cfg *config.Config, std streams, args []string) error {
	flags := flag.NewFlagSet("tail", flag.ContinueOnError)
	flags.SetOutput(std.err)
	follow := flags.Bool("follow", false, "Follow the log (like tail -f)")
	flags.BoolVar(follow, "f", false, "Follow the log (like tail -f)")
	lines := flags.Int("n", 50, "Number of lines to show (0 = all)")
	if err := flags.Parse(args); err != nil {
		return err
	}

	logDir := cfg.LogPath()
	var path string
	if agent := flags.Arg(0); agent != "" {
		runs, err := logging.FindLogRuns(logDir)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		for _, run := range runs {
			if run.Agent == agent {
				path = run.Path
				break
			}
		}
		if path == "" {
			return fmt.Errorf("no run logs for agent %q in %s", agent, logDir)
		}
	} else {
		latest, err := logging.FindLatestLog(logDir)
		if err != nil {
			return err
		}
		if latest == "" {
			return fmt.Errorf("no run logs found in %s", logDir)
		}
		path = latest
	}

	fmt.Fprintf(std.err, "==> %s <==\n", path)
	return logging.TailLog(ctx, std.out, path, *lines, *follow)
}

// lsCommand lists run logs, newest first.
func lsCommand(cfg *config.Config, std streams, args []string) error {
	flags := flag.NewFlagSet("ls", flag.ContinueOnError)
	flags.SetOutput(std.err)
	agent := flags.String("agent", "", "Only list runs of this agent")
	limit := flags.Int("n", 0, "Maximum number of runs to list (0 = all)")
	if err := flags.Parse(args); err != nil {
		return err
	}

	logDir := cfg.LogPath()
	runs, err := logging.FindLogRuns(logDir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if *agent != "" {
		filtered := runs[:0]
		for _, run := range runs {
			if run.Agent == *agent {
				filtered = append(filtered, run)
			}
		}
		runs = filtered
	}
	if *limit > 0 && len(runs) > *limit {
		runs = runs[:*limit]
	}
	if len(runs) == 0 {
		fmt.Fprintf(std.out, "No run logs in %s\n", logDir)
		return nil
	}

	tw := tabwriter.NewWriter(std.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tAGENT\tSIZE\tPATH")
	for _, run := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", run.StartedAt.Local().Format(time.DateTime), run.Agent, run.Size, run.Path)
	}
	return tw.Flush()
}

// initCommand writes an example config file.
func initCommand(std streams, args []string) error {
	flags := flag.NewFlagSet("init", flag.ContinueOnError)
	flags.SetOutput(std.err)
	toStdout := flags.Bool("print", false, "Print the example to stdout instead of writing a file")
	if err := flags.Parse(args); err != nil {
		return err
	}

	if *toStdout {
		_, err := fmt.Fprint(std.out, config.ExampleConfig())
		return err
	}
	path := flags.Arg(0)
	if path == "" {
		path = config.ProjectConfigFile
	}
	if err := config.WriteExample(path); err != nil {
		return err
	}
	fmt.Fprintf(std.out, "Wrote %s\n", path)
	return nil
}

// configCommand prints the effective configuration as TOML.
func configCommand(cfg *config.Config, std streams, args []string) error {
	flags := flag.NewFlagSet("config", flag.ContinueOnError)
	flags.SetOutput(std.err)
	if err := flags.Parse(args); err != nil {
		return err
	}
	if len(cfg.Files) == 0 {
		fmt.Fprintln(std.out, "# no config files found, showing defaults and overrides")
	}
	for _, f := range cfg.Files {
		fmt.Fprintf(std.out, "# from %s\n", f)
	}
	return config.Encode(std.out, cfg)
}
