package session

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/ternarybob/arbor"

	"scraper-console/internal/jobclient"
	"scraper-console/internal/model"
	"scraper-console/internal/telemetry"
)

var ErrNotAllowed = errors.New("command not allowed")

var acceptEvents = map[jobclient.Command]model.JobEvent{
	jobclient.CommandStart:  model.EventStartAccepted,
	jobclient.CommandPause:  model.EventPauseAccepted,
	jobclient.CommandResume: model.EventResumeAccepted,
	jobclient.CommandStop:   model.EventStopAccepted,
}

var defaultAckMessages = map[jobclient.Command]string{
	jobclient.CommandStart:  "Job started",
	jobclient.CommandPause:  "Job paused",
	jobclient.CommandResume: "Job resumed",
	jobclient.CommandStop:   "Job stopped",
}

type ChannelStatus struct {
	Connected bool          `json:"connected"`
	URL       string        `json:"url,omitempty"`
	Attempt   int           `json:"attempt"`
	RetryIn   time.Duration `json:"retry_in,omitempty"`
	LastError string        `json:"last_error,omitempty"`
}

// Outcome is the result of one dispatched command.
type Outcome struct {
	Command jobclient.Command
	Ack     jobclient.Ack
	Err     error
}

type Snapshot struct {
	State    model.JobState         `json:"state"`
	Params   *model.JobParameters   `json:"params,omitempty"`
	Progress model.ProgressSnapshot `json:"progress"`
	Logs     []model.LogEntry       `json:"logs"`
	Results  []model.ResultRecord   `json:"results"`
	Channel  ChannelStatus          `json:"channel"`
	Pending  []jobclient.Command    `json:"pending,omitempty"`
}

type Options struct {
	Now          func() time.Time
	LogRetention int
	Logger       arbor.ILogger
}

// Session is the one aggregate the presentation layer mutates. It is not
// safe for concurrent use; callers drive it from a single loop.
type Session struct {
	machine *Machine
	store   *Store
	logger  arbor.ILogger

	params  *model.JobParameters
	channel ChannelStatus
	pending map[jobclient.Command]int
}

func New(opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = arbor.NewLogger()
	}
	return &Session{
		machine: NewMachine(),
		store:   NewStore(opts.Now, opts.LogRetention),
		logger:  logger,
		pending: make(map[jobclient.Command]int),
	}
}

func (s *Session) Machine() *Machine { return s.machine }
func (s *Session) State() model.JobState { return s.machine.State() }

// BeginStart records the launch of a new job. Streams are cleared here, at
// dispatch, so telemetry arriving before the acknowledgement is kept.
func (s *Session) BeginStart(params model.JobParameters) error {
	if !s.machine.CanStart() {
		return s.refuse(jobclient.CommandStart)
	}
	if err := params.Validate(); err != nil {
		s.store.AppendLog(model.LevelError, err.Error())
		return err
	}
	s.store.Reset()
	p := params
	s.params = &p
	s.pending[jobclient.CommandStart]++
	return nil
}

// Begin records any other command. Stop is always allowed.
func (s *Session) Begin(cmd jobclient.Command) error {
	switch cmd {
	case jobclient.CommandStart:
		return fmt.Errorf("%w: start needs parameters", ErrNotAllowed)
	case jobclient.CommandPause:
		if !s.machine.CanPause() {
			return s.refuse(cmd)
		}
	case jobclient.CommandResume:
		if !s.machine.CanResume() {
			return s.refuse(cmd)
		}
	case jobclient.CommandStop, jobclient.CommandExport:
	default:
		return fmt.Errorf("%w: unknown command %q", ErrNotAllowed, cmd)
	}
	s.pending[cmd]++
	return nil
}

func (s *Session) refuse(cmd jobclient.Command) error {
	err := fmt.Errorf("%w: cannot %s while %s", ErrNotAllowed, cmd, s.machine.State())
	s.store.AppendLog(model.LevelError, err.Error())
	return err
}

// Complete applies the answer to a command sent earlier with Begin.
func (s *Session) Complete(out Outcome) {
	if s.pending[out.Command] > 0 {
		s.pending[out.Command]--
	}
	if s.pending[out.Command] == 0 {
		delete(s.pending, out.Command)
	}

	if out.Err != nil {
		s.logger.Warn().Err(out.Err).Str("command", string(out.Command)).Str("request_id", out.Ack.RequestID).Msg("command failed")
		s.store.AppendLog(model.LevelError, failureMessage(out.Command, out.Err))
		return
	}

	ev, ok := acceptEvents[out.Command]
	if !ok {
		if out.Ack.Message != "" {
			s.store.AppendLog(model.LevelSuccess, out.Ack.Message)
		}
		return
	}

	from := s.machine.State()
	if err := s.machine.Apply(ev); err != nil {
		s.logger.Info().Str("command", string(out.Command)).Str("state", string(from)).Msg("ignoring late acknowledgement")
		s.store.AppendLog(model.LevelInfo, fmt.Sprintf("Ignored %s acknowledgement while %s", out.Command, from))
		return
	}
	if out.Command == jobclient.CommandStop && from == model.StateIdle {
		return
	}

	msg := out.Ack.Message
	if msg == "" {
		msg = defaultAckMessages[out.Command]
	}
	s.store.AppendLog(model.LevelSuccess, msg)
}

func failureMessage(cmd jobclient.Command, err error) string {
	var rejected *jobclient.RejectedError
	if errors.As(err, &rejected) {
		return rejected.Error()
	}
	return fmt.Sprintf("%s failed: %v", cmd, err)
}

// Apply folds one telemetry event into the session.
func (s *Session) Apply(ev telemetry.Event) {
	switch e := ev.(type) {
	case telemetry.LogMessage:
		s.store.AppendLog(e.Level, e.Message)
	case telemetry.ProgressMessage:
		s.store.SetProgress(e.Progress)
	case telemetry.ResultMessage:
		s.store.UpsertResult(e.Record)
	case telemetry.ErrorMessage:
		s.store.AppendLog(model.LevelError, e.Message)
		if err := s.machine.Apply(model.EventJobFailed); err != nil {
			s.logger.Error().Err(err).Msg("job failure not applied")
		}
	case telemetry.UnknownMessage:
		s.logger.Debug().Str("type", e.Type).Msg("ignoring unknown telemetry message")
	case telemetry.Connected:
		s.channel = ChannelStatus{Connected: true, URL: e.URL, Attempt: e.Attempt}
		s.store.AppendLog(model.LevelSuccess, "Telemetry channel connected")
	case telemetry.Disconnected:
		s.channel.Connected = false
		s.channel.Attempt = e.Attempt
		s.channel.RetryIn = e.RetryIn
		if e.Err != nil {
			s.channel.LastError = e.Err.Error()
		}
	case telemetry.TransportError:
		if e.Err != nil {
			s.channel.LastError = e.Err.Error()
		}
		s.store.AppendLog(model.LevelError, fmt.Sprintf("Telemetry connection error: %v", e.Err))
	default:
		s.logger.Warn().Str("event", fmt.Sprintf("%T", ev)).Msg("unhandled telemetry event")
	}
}

// Reset clears the streams and forgets the launched parameters. Stopping the
// backend job is the caller's part.
func (s *Session) Reset() {
	s.store.Reset()
	s.params = nil
}

func (s *Session) ClearResults() {
	s.store.ClearResults()
}

// Note appends an operator-facing log entry.
func (s *Session) Note(level model.LogLevel, message string) {
	s.store.AppendLog(level, message)
}

// Params returns the parameters of the current job, if one was launched.
func (s *Session) Params() (model.JobParameters, bool) {
	if s.params == nil {
		return model.JobParameters{}, false
	}
	return *s.params, true
}

func (s *Session) Pending() bool { return len(s.pending) > 0 }

func (s *Session) IsPending(cmd jobclient.Command) bool { return s.pending[cmd] > 0 }

func (s *Session) Channel() ChannelStatus { return s.channel }

func (s *Session) Progress() model.ProgressSnapshot { return s.store.Progress() }

func (s *Session) Logs() []model.LogEntry { return s.store.Logs() }

func (s *Session) Results() []model.ResultRecord { return s.store.Results() }

func (s *Session) ResultCount() int { return s.store.ResultCount() }

func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		State:    s.machine.State(),
		Progress: s.store.Progress(),
		Logs:     s.store.Logs(),
		Results:  s.store.Results(),
		Channel:  s.channel,
	}
	if s.params != nil {
		p := *s.params
		snap.Params = &p
	}
	for cmd := range s.pending {
		snap.Pending = append(snap.Pending, cmd)
	}
	sort.Slice(snap.Pending, func(i, j int) bool { return snap.Pending[i] < snap.Pending[j] })
	return snap
}
