// Package tracker reads and edits the shared coordination record: the labels
// and body of a single tracker issue that every baton instance polls.
package tracker

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Label prefixes used by the turn-taking protocol.
const (
	ActivePrefix = "active:"
	NextPrefix   = "next:"
)

var actionCountPattern = regexp.MustCompile(`Action Count:\s*(\d+)`)

// Record is one snapshot of the tracker issue.
type Record struct {
	Body      string
	Labels    []string
	FetchedAt time.Time
}

// ActionCount returns the counter embedded in the body. A missing or
// malformed counter reads as 0.
func (r Record) ActionCount() int {
	m := actionCountPattern.FindStringSubmatch(r.Body)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

// ActiveAgent returns the agent named by the first active: label.
func (r Record) ActiveAgent() (string, bool) {
	return firstWithPrefix(r.Labels, ActivePrefix)
}

// NextAgent returns the agent named by the first next: label.
func (r Record) NextAgent() (string, bool) {
	return firstWithPrefix(r.Labels, NextPrefix)
}

// ActiveAgents returns every agent carrying an active: label, in label order.
func (r Record) ActiveAgents() []string {
	return allWithPrefix(r.Labels, ActivePrefix)
}

// NextAgents returns every agent carrying a next: label, in label order.
func (r Record) NextAgents() []string {
	return allWithPrefix(r.Labels, NextPrefix)
}

// ActiveLease returns the lease implied by the first active: label.
func (r Record) ActiveLease() (Lease, bool) {
	holder, ok := r.ActiveAgent()
	if !ok {
		return Lease{}, false
	}
	return Lease{Holder: holder, ObservedAt: r.FetchedAt}, true
}

// ActiveLabel returns the label marking agent as running.
func ActiveLabel(agent string) string {
	return ActivePrefix + agent
}

// NextLabel returns the label scheduling agent for the following turn.
func NextLabel(agent string) string {
	return NextPrefix + agent
}

func firstWithPrefix(labels []string, prefix string) (string, bool) {
	for _, label := range labels {
		if name, ok := agentFromLabel(label, prefix); ok {
			return name, true
		}
	}
	return "", false
}

func allWithPrefix(labels []string, prefix string) []string {
	var names []string
	for _, label := range labels {
		if name, ok := agentFromLabel(label, prefix); ok {
			names = append(names, name)
		}
	}
	return names
}

// agentFromLabel treats "next:" with no name as if the label were absent.
func agentFromLabel(label, prefix string) (string, bool) {
	if !strings.HasPrefix(label, prefix) {
		return "", false
	}
	name := strings.TrimSpace(strings.TrimPrefix(label, prefix))
	if name == "" {
		return "", false
	}
	return name, true
}
