package tracker

import (
	"fmt"
	"time"
)

// Lease is the mutual-exclusion claim expressed by an active:<agent> label.
//
// It has no renewal, no expiry and no owner identity beyond the agent name,
// and the store offers no compare-and-swap: between the moment a Lease is
// observed and the moment an instance acts on it (clearing the label or
// starting an agent) another instance may have done the same. Agents are
// expected to tolerate an occasional overlapping turn.
type Lease struct {
	// Holder is the agent named by the label.
	Holder string
	// ObservedAt is when this instance read the label, not when it was set;
	// the tracker does not record acquisition time.
	ObservedAt time.Time
}

// Label returns the tracker label backing the lease.
func (l Lease) Label() string {
	return ActiveLabel(l.Holder)
}

func (l Lease) String() string {
	if l.ObservedAt.IsZero() {
		return fmt.Sprintf("lease(%s)", l.Holder)
	}
	return fmt.Sprintf("lease(%s, seen %s)", l.Holder, l.ObservedAt.UTC().Format(time.RFC3339))
}
