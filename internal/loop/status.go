package loop

import (
	"time"

	"github.com/nibzard/baton/internal/agents"
	"github.com/nibzard/baton/internal/liveness"
	"github.com/nibzard/baton/internal/schedule"
)

// Status is a point-in-time snapshot of a Loop.
type Status struct {
	InstanceID   string
	Cycles       int
	InCycle      bool
	LastCycleAt  time.Time
	LastDecision *schedule.Decision
	LastResult   *agents.Result
	LastError    error
	// Running is the agent process this instance owns, if any.
	Running *liveness.Handle
}

// EventKind classifies an Event.
type EventKind string

const (
	EventStarted       EventKind = "started"
	EventStaleCleared  EventKind = "stale_cleared"
	EventAgentStarted  EventKind = "agent_started"
	EventAgentFinished EventKind = "agent_finished"
	EventStopped       EventKind = "stopped"
)

// Event is a progress notification for observers such as the TUI.
type Event struct {
	Kind     EventKind
	Time     time.Time
	Agent    string
	ExitCode int
	Message  string
}

// Status returns a copy of the loop's state. It is safe to call from any
// goroutine.
func (l *Loop) Status() Status {
	l.mu.Lock()
	st := l.status
	l.mu.Unlock()

	if h, ok := l.liveness.Current(); ok {
		st.Running = &h
	}
	return st
}

func (l *Loop) beginCycle() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.status.Cycles++
	l.status.InCycle = true
	l.status.LastCycleAt = time.Now()
	return l.status.Cycles
}

func (l *Loop) endCycle(d schedule.Decision, res *agents.Result, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.status.InCycle = false
	l.status.LastDecision = &d
	if res != nil {
		r := *res
		l.status.LastResult = &r
	}
	l.status.LastError = err
}
