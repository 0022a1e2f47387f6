// Package liveness tracks the agent process spawned by this instance and
// answers whether it is still running.
//
// Only the instance that spawned a process knows its PID, so a Tracker is
// authoritative for local state only. Remote state (tracker labels) is judged
// by the caller.
package liveness

import (
	"sync"
	"time"
)

// Handle identifies the agent process owned by this instance.
type Handle struct {
	PID       int
	Agent     string
	StartedAt time.Time
}

// Prober asks the operating system whether a PID refers to a running
// process without affecting it.
type Prober interface {
	Alive(pid int) (bool, error)
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(pid int) (bool, error)

// Alive calls f.
func (f ProberFunc) Alive(pid int) (bool, error) {
	return f(pid)
}

// OSProber returns the platform liveness probe.
func OSProber() Prober {
	return osProber{}
}

// Tracker holds at most one Handle. It is safe for concurrent use, but only
// the runner that spawned the process should Track or Release it.
type Tracker struct {
	mu      sync.Mutex
	prober  Prober
	current *Handle
}

// NewTracker creates a tracker using prober. A nil prober uses OSProber.
func NewTracker(prober Prober) *Tracker {
	if prober == nil {
		prober = OSProber()
	}
	return &Tracker{prober: prober}
}

// Track records h as the current process, replacing any previous handle.
func (t *Tracker) Track(h Handle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = &h
}

// Release clears the current handle if it still refers to pid.
func (t *Tracker) Release(pid int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil || t.current.PID != pid {
		return false
	}
	t.current = nil
	return true
}

// Current returns the tracked handle without probing it.
func (t *Tracker) Current() (Handle, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return Handle{}, false
	}
	return *t.current, true
}

// Alive probes the tracked process. A process the OS no longer knows about
// is released and reported dead. If the probe itself fails the process is
// reported alive, so an undeterminable state never starts a second agent.
func (t *Tracker) Alive() (Handle, bool) {
	h, ok := t.Current()
	if !ok {
		return Handle{}, false
	}
	alive, err := t.prober.Alive(h.PID)
	if err != nil {
		return h, true
	}
	if !alive {
		t.Release(h.PID)
		return Handle{}, false
	}
	return h, true
}
