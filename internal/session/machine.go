package session

import "scraper-console/internal/model"

// Machine owns the single JobState value. Only accepted commands and
// backend failures move it.
type Machine struct {
	state model.JobState
}

func NewMachine() *Machine {
	return &Machine{state: model.StateIdle}
}

func (m *Machine) State() model.JobState { return m.state }

func (m *Machine) Apply(ev model.JobEvent) error {
	return model.Transition(&m.state, ev)
}

func (m *Machine) CanStart() bool  { return model.CanTransition(m.state, model.EventStartAccepted) }
func (m *Machine) CanPause() bool  { return model.CanTransition(m.state, model.EventPauseAccepted) }
func (m *Machine) CanResume() bool { return model.CanTransition(m.state, model.EventResumeAccepted) }

// CanStop reports whether stopping would change anything. Stop is still
// sendable from Idle.
func (m *Machine) CanStop() bool {
	return m.state == model.StateRunning || m.state == model.StatePaused
}

// Active is true while a job is running or paused.
func (m *Machine) Active() bool {
	return m.state == model.StateRunning || m.state == model.StatePaused
}
