package model

import "fmt"

type JobState string

const (
	StateIdle    JobState = "idle"
	StateRunning JobState = "running"
	StatePaused  JobState = "paused"
	StateStopped JobState = "stopped"
)

type JobEvent string

const (
	EventStartAccepted  JobEvent = "start_accepted"
	EventResumeAccepted JobEvent = "resume_accepted"
	EventPauseAccepted  JobEvent = "pause_accepted"
	EventStopAccepted   JobEvent = "stop_accepted"
	EventJobFailed      JobEvent = "job_failed"
)

var allowedTransitions = map[JobState]map[JobEvent]JobState{
	StateIdle: {
		EventStartAccepted: StateRunning,
		EventStopAccepted:  StateIdle, // backend acknowledges a stop with nothing to stop
		EventJobFailed:     StateStopped,
	},
	StateRunning: {
		EventPauseAccepted: StatePaused,
		EventStopAccepted:  StateStopped,
		EventJobFailed:     StateStopped,
	},
	StatePaused: {
		EventResumeAccepted: StateRunning,
		EventStopAccepted:   StateStopped,
		EventJobFailed:      StateStopped,
	},
	StateStopped: {
		EventStartAccepted: StateRunning,
		EventStopAccepted:  StateStopped,
		EventJobFailed:     StateStopped,
	},
}

func IsKnownState(state JobState) bool {
	_, ok := allowedTransitions[state]
	return ok
}

// Next returns the state reached from `from` on event `ev`.
func Next(from JobState, ev JobEvent) (JobState, bool) {
	next, ok := allowedTransitions[from]
	if !ok {
		return from, false
	}
	to, ok := next[ev]
	if !ok {
		return from, false
	}
	return to, true
}

func CanTransition(from JobState, ev JobEvent) bool {
	_, ok := Next(from, ev)
	return ok
}

func Transition(state *JobState, ev JobEvent) error {
	from := *state
	to, ok := Next(from, ev)
	if !ok {
		return fmt.Errorf("invalid job state transition: %q on %q", from, ev)
	}
	*state = to
	return nil
}
