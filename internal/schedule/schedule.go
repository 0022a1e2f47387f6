// Package schedule decides, once per cycle, whether this instance should
// wait, or which agent it should start.
package schedule

import (
	"fmt"

	"github.com/nibzard/baton/internal/tracker"
)

// Defaults for Policy.
const (
	DefaultBootstrapAgent    = "alice"
	DefaultMaintenanceAgent  = "grace"
	DefaultMaintenancePeriod = 10
)

// Action is what the loop should do this cycle.
type Action int

const (
	// ActionWait leaves the tracker alone and starts nothing.
	ActionWait Action = iota
	// ActionRun starts Decision.Agent.
	ActionRun
)

func (a Action) String() string {
	switch a {
	case ActionWait:
		return "wait"
	case ActionRun:
		return "run"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Policy holds the fixed agent names of the rotation.
type Policy struct {
	// BootstrapAgent runs when no next: label exists.
	BootstrapAgent string
	// MaintenanceAgent replaces BootstrapAgent on maintenance cycles.
	MaintenanceAgent string
	// MaintenancePeriod is N in "every Nth action". Zero or less disables it.
	MaintenancePeriod int
}

// DefaultPolicy returns the alice/grace rotation with a period of 10.
func DefaultPolicy() Policy {
	return Policy{
		BootstrapAgent:    DefaultBootstrapAgent,
		MaintenanceAgent:  DefaultMaintenanceAgent,
		MaintenancePeriod: DefaultMaintenancePeriod,
	}
}

// IsMaintenanceCount reports whether count falls on a maintenance cycle.
func (p Policy) IsMaintenanceCount(count int) bool {
	return p.MaintenancePeriod > 0 && count > 0 && count%p.MaintenancePeriod == 0
}

// Decision is the outcome of one evaluation.
type Decision struct {
	Action Action
	// Agent is set when Action is ActionRun.
	Agent string
	// Stale is the active lease the caller must clear before running Agent.
	Stale *tracker.Lease
	// Maintenance is true when Agent came from the periodic override.
	Maintenance bool
	// Reason is a short human-readable explanation.
	Reason string
}

// Decide evaluates the record against local liveness. It performs no I/O.
//
// A live local process always yields Wait and the record is not consulted.
// Otherwise any active label is treated as stale: it is returned in
// Decision.Stale and the next agent is chosen as if it were absent.
func Decide(rec tracker.Record, localAlive bool, p Policy) Decision {
	if localAlive {
		return Decision{Action: ActionWait, Reason: "local agent still running"}
	}

	d := Decision{Action: ActionRun}
	if lease, ok := rec.ActiveLease(); ok {
		d.Stale = &lease
	}

	next, ok := rec.NextAgent()
	if !ok {
		next = p.BootstrapAgent
	}

	count := rec.ActionCount()
	if p.IsMaintenanceCount(count) && next == p.BootstrapAgent && p.MaintenanceAgent != "" {
		d.Agent = p.MaintenanceAgent
		d.Maintenance = true
		d.Reason = fmt.Sprintf("maintenance cycle (action count %d)", count)
		return d
	}

	d.Agent = next
	if ok {
		d.Reason = "next label"
	} else {
		d.Reason = "no next label, bootstrap agent"
	}
	return d
}
