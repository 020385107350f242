package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/ternarybob/arbor"

	"scraper-console/internal/config"
	"scraper-console/internal/export"
	"scraper-console/internal/jobclient"
	"scraper-console/internal/logging"
	"scraper-console/internal/model"
	"scraper-console/internal/session"
	"scraper-console/internal/telemetry"
)

type consoleMode int

const (
	consoleModeControl consoleMode = iota
	consoleModeForm
)

const telemetryBatchSize = 64

// jobCommander is the lifecycle half of *jobclient.Client.
type jobCommander interface {
	Start(ctx context.Context, params model.JobParameters) (jobclient.Ack, error)
	Pause(ctx context.Context) (jobclient.Ack, error)
	Resume(ctx context.Context) (jobclient.Ack, error)
	Stop(ctx context.Context) (jobclient.Ack, error)
}

type artifactExporter interface {
	Export(ctx context.Context, params model.JobParameters) (export.Artifact, error)
}

type consoleModel struct {
	session   *session.Session
	client    jobCommander
	exporter  artifactExporter
	exportDir string
	events    <-chan telemetry.Event
	catalog   config.CatalogConfig
	logger    arbor.ILogger
	now       func() time.Time

	form    *jobForm
	mode    consoleMode
	width   int
	height  int
	cursor  int
	spinner spinner.Model
	bar     progress.Model
	logView viewport.Model

	channelClosed bool
	statusMessage string
}

type telemetryBatchMsg struct {
	events []telemetry.Event
	ok     bool
}

type commandDoneMsg struct {
	outcome session.Outcome
}

type exportDoneMsg struct {
	message   string
	requestID string
	err       error
}

var (
	consoleTitleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	consoleMutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	consoleErrorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	consoleOKStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	consolePanelStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	consoleSelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("62")).Bold(true)
	consoleKeyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("238")).Padding(0, 1)
	consoleOffKeyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Padding(0, 1)
	consoleOpenStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	consoleClosedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	consoleStateStyles = map[model.JobState]lipgloss.Style{
		model.StateIdle:    lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Bold(true),
		model.StateRunning: lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
		model.StatePaused:  lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true),
		model.StateStopped: lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true),
	}
)

func runConsole(args []string) error {
	fs := flag.NewFlagSet("console", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfigPath(), "config file path (TOML)")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !stdinIsTTY() {
		return errors.New("console requires an interactive terminal (TTY)")
	}

	app, err := newAppContext(*configPath, logging.ModeConsole)
	if err != nil {
		return err
	}
	channel, err := app.newChannel()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	channel.Start(ctx)
	defer channel.Close()

	sess := session.New(session.Options{LogRetention: app.cfg.Telemetry.LogRetention, Logger: app.logger})
	m := newConsoleModel(consoleDeps{
		session:   sess,
		client:    app.client,
		exporter:  export.NewCoordinator(app.client, time.Now, app.logger),
		exportDir: app.cfg.Export.Dir,
		events:    channel.Events(),
		cfg:       app.cfg,
		logger:    app.logger,
	})

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "tty") {
			return errors.New("console requires an interactive terminal (TTY)")
		}
		return err
	}
	return nil
}

type consoleDeps struct {
	session   *session.Session
	client    jobCommander
	exporter  artifactExporter
	exportDir string
	events    <-chan telemetry.Event
	cfg       *config.Config
	logger    arbor.ILogger
	now       func() time.Time
}

func newConsoleModel(d consoleDeps) consoleModel {
	cfg := d.cfg
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}
	now := d.now
	if now == nil {
		now = time.Now
	}
	logger := d.logger
	if logger == nil {
		logger = arbor.NewLogger()
	}

	spin := spinner.New()
	spin.Spinner = spinner.MiniDot
	spin.Style = consoleMutedStyle

	logView := viewport.New(60, 8)
	logView.SetContent("No activity yet.")

	return consoleModel{
		session:   d.session,
		client:    d.client,
		exporter:  d.exporter,
		exportDir: d.exportDir,
		events:    d.events,
		catalog:   cfg.Catalog,
		logger:    logger,
		now:       now,
		form:      newJobForm(cfg.Catalog, cfg.DefaultHeadless(), cfg.DefaultExpandedSearch(), 100),
		mode:      consoleModeControl,
		spinner:   spin,
		bar:       progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		logView:   logView,
	}
}

func (m consoleModel) Init() tea.Cmd {
	return tea.Batch(waitForTelemetryCmd(m.events), m.spinner.Tick)
}

func (m consoleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.form = resizeFormInput(m.form, m.width)
		m.bar.Width = clampInt(m.width-30, 10, 80)
		m.logView.Width = maxInt(m.width-4, 20)
		m.logView.Height = clampInt(m.height/4, 4, 12)
		m.refreshLogView()
		return m, nil
	case telemetryBatchMsg:
		for _, ev := range msg.events {
			m.session.Apply(ev)
		}
		m.refreshLogView()
		if !msg.ok {
			m.channelClosed = true
			return m, nil
		}
		return m, waitForTelemetryCmd(m.events)
	case commandDoneMsg:
		m.session.Complete(msg.outcome)
		m.refreshLogView()
		return m, nil
	case exportDoneMsg:
		m.session.Complete(session.Outcome{
			Command: jobclient.CommandExport,
			Ack:     jobclient.Ack{Message: msg.message, RequestID: msg.requestID},
			Err:     msg.err,
		})
		m.refreshLogView()
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch m.mode {
	case consoleModeForm:
		return m.updateForm(keyMsg)
	default:
		return m.updateControl(keyMsg)
	}
}

func (m consoleModel) updateControl(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	machine := m.session.Machine()
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	case "down", "j":
		if m.cursor < m.session.ResultCount()-1 {
			m.cursor++
		}
		return m, nil
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.logView, cmd = m.logView.Update(msg)
		return m, cmd
	case "tab", "f":
		if machine.Active() {
			m.statusMessage = "parameters are locked while a job is " + string(machine.State())
			return m, nil
		}
		m.mode = consoleModeForm
		m.form.Error = ""
		m.form.loadFieldIntoInput()
		m.form.Input.Focus()
		m.statusMessage = ""
		return m, nil
	case "s":
		if !machine.CanStart() {
			return m, nil
		}
		params, err := m.form.toJobParameters()
		if err != nil {
			m.statusMessage = "error: " + err.Error()
			return m, nil
		}
		if err := m.session.BeginStart(params); err != nil {
			m.statusMessage = "error: " + err.Error()
			m.refreshLogView()
			return m, nil
		}
		m.cursor = 0
		m.statusMessage = "starting " + params.Category + " in " + params.Region + "..."
		m.refreshLogView()
		return m, startJobCmd(m.client, params)
	case "p":
		if !machine.CanPause() {
			return m, nil
		}
		return m.dispatch(jobclient.CommandPause)
	case "c":
		if !machine.CanResume() {
			return m, nil
		}
		return m.dispatch(jobclient.CommandResume)
	case "x":
		return m.dispatch(jobclient.CommandStop)
	case "r":
		m.session.Reset()
		m.cursor = 0
		m.refreshLogView()
		next, cmd := m.dispatch(jobclient.CommandStop)
		nm := next.(consoleModel)
		nm.statusMessage = "reset: streams cleared"
		return nm, cmd
	case "e":
		if m.session.ResultCount() == 0 || m.exporter == nil {
			return m, nil
		}
		params, err := m.form.toJobParameters()
		if err != nil {
			m.statusMessage = "error: " + err.Error()
			return m, nil
		}
		if err := m.session.Begin(jobclient.CommandExport); err != nil {
			m.statusMessage = "error: " + err.Error()
			return m, nil
		}
		m.statusMessage = "exporting..."
		return m, exportArtifactCmd(m.exporter, m.exportDir, params, m.now)
	case "C":
		m.session.ClearResults()
		m.cursor = 0
		m.statusMessage = "results cleared"
		return m, nil
	}
	return m, nil
}

func (m consoleModel) dispatch(cmd jobclient.Command) (tea.Model, tea.Cmd) {
	if err := m.session.Begin(cmd); err != nil {
		m.statusMessage = "error: " + err.Error()
		m.refreshLogView()
		return m, nil
	}
	m.statusMessage = string(cmd) + " sent"
	return m, jobCommandCmd(m.client, cmd)
}

func (m consoleModel) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.form == nil {
		m.mode = consoleModeControl
		return m, nil
	}

	key := msg.String()
	switch strings.ToLower(key) {
	case "ctrl+c", "esc":
		m.form.commitInput()
		m.mode = consoleModeControl
		m.form.Input.Blur()
		return m, nil
	case "up", "shift+tab":
		m.form.commitInput()
		if m.form.Index > 0 {
			m.form.Index--
		}
		m.form.loadFieldIntoInput()
		return m, nil
	case "down", "tab":
		m.form.commitInput()
		if m.form.Index < len(m.form.Fields)-1 {
			m.form.Index++
		}
		m.form.loadFieldIntoInput()
		return m, nil
	case " ", "space":
		kind := m.form.currentField().Kind
		if kind == formFieldBool {
			m.form.toggleBoolField()
			return m, nil
		}
		if kind == formFieldSelect {
			m.form.nextSelectOption()
			return m, nil
		}
	case "left", "h":
		kind := m.form.currentField().Kind
		if kind == formFieldBool {
			m.form.toggleBoolField()
			return m, nil
		}
		if kind == formFieldSelect {
			m.form.prevSelectOption()
			return m, nil
		}
	case "right", "l":
		kind := m.form.currentField().Kind
		if kind == formFieldBool {
			m.form.toggleBoolField()
			return m, nil
		}
		if kind == formFieldSelect {
			m.form.nextSelectOption()
			return m, nil
		}
	case "y":
		if m.form.currentField().Kind == formFieldBool {
			m.form.setBoolField(true)
			return m, nil
		}
	case "n":
		if m.form.currentField().Kind == formFieldBool {
			m.form.setBoolField(false)
			return m, nil
		}
	case "enter", "ctrl+s":
		m.form.commitInput()
		if m.form.Index < len(m.form.Fields)-1 && key != "ctrl+s" {
			m.form.Index++
			m.form.loadFieldIntoInput()
			return m, nil
		}
		if _, err := m.form.toJobParameters(); err != nil {
			m.form.Error = err.Error()
			return m, nil
		}
		m.form.Error = ""
		m.form.Input.Blur()
		m.mode = consoleModeControl
		m.statusMessage = "parameters ready: press s to start"
		return m, nil
	}

	kind := m.form.currentField().Kind
	if kind == formFieldBool || kind == formFieldSelect {
		return m, nil
	}
	var cmd tea.Cmd
	m.form.Input, cmd = m.form.Input.Update(msg)
	m.form.Fields[m.form.Index].Value = m.form.Input.Value()
	return m, cmd
}

func (m *consoleModel) refreshLogView() {
	logs := m.session.Logs()
	if len(logs) == 0 {
		m.logView.SetContent(consoleMutedStyle.Render("No activity yet."))
		return
	}
	lines := make([]string, 0, len(logs))
	width := maxInt(m.logView.Width-2, 20)
	for _, entry := range logs {
		lines = append(lines, renderLogLine(entry, width))
	}
	m.logView.SetContent(strings.Join(lines, "\n"))
	m.logView.GotoBottom()
}

func renderLogLine(entry model.LogEntry, width int) string {
	line := wrapOrTrim(fmt.Sprintf("[%s] %s", entry.Timestamp, entry.Message), width)
	switch displayLevel(entry.Level) {
	case model.LevelSuccess:
		return consoleOKStyle.Render(line)
	case model.LevelError:
		return consoleErrorStyle.Render(line)
	default:
		return line
	}
}

func (m consoleModel) View() string {
	if m.width <= 0 {
		m.width = 100
	}
	if m.height <= 0 {
		m.height = 30
	}

	sections := []string{
		m.renderHeader(),
		m.renderParameters(),
		m.renderControls(),
	}
	if bar := m.renderProgress(); bar != "" {
		sections = append(sections, bar)
	}
	sections = append(sections,
		consolePanelStyle.Width(maxInt(m.width-2, 30)).Render(consoleTitleStyle.Render("Activity")+"\n"+m.logView.View()),
		m.renderResults(),
		m.renderStatusLine(),
	)
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m consoleModel) renderHeader() string {
	state := m.session.State()
	style, ok := consoleStateStyles[state]
	if !ok {
		style = consoleMutedStyle
	}
	ch := m.session.Channel()
	channel := consoleErrorStyle.Render("channel: offline")
	switch {
	case m.channelClosed:
		channel = consoleMutedStyle.Render("channel: closed")
	case ch.Connected:
		channel = consoleOKStyle.Render("channel: connected")
	case ch.RetryIn > 0:
		channel = consoleErrorStyle.Render(fmt.Sprintf("channel: reconnecting in %s", ch.RetryIn))
	}
	pending := ""
	if m.session.Pending() {
		pending = " " + m.spinner.View()
	}
	title := consoleTitleStyle.Render("scraper-console") + "  " + style.Render(strings.ToUpper(string(state))) + pending + "  " + channel
	hints := consoleMutedStyle.Render("s: start | p: pause | c: continue | x: stop | r: reset | e: export | C: clear results | tab: parameters | q: quit")
	return title + "\n" + hints
}

func (m consoleModel) renderParameters() string {
	width := maxInt(m.width-2, 30)
	if m.mode == consoleModeForm {
		return m.viewForm(width)
	}
	params, err := m.form.toJobParameters()
	lines := []string{consoleTitleStyle.Render("Parameters")}
	if err != nil {
		lines = append(lines, consoleErrorStyle.Render("invalid: "+err.Error()))
	} else {
		lines = append(lines,
			kv("category", params.Category)+"   "+kv("target", fmt.Sprintf("%d", params.TargetCount)),
			kv("region", params.Region)+"   "+kv("country", params.Country),
			kv("headless", yesNo(params.Headless))+"   "+kv("expanded search", yesNo(params.ExpandedSearch)),
		)
	}
	if m.session.Machine().Active() {
		lines = append(lines, consoleMutedStyle.Render("locked while the job is active"))
	}
	for i := range lines {
		lines[i] = wrapOrTrim(lines[i], maxInt(width-4, 12))
	}
	return consolePanelStyle.Width(width).Render(strings.Join(lines, "\n"))
}

func (m consoleModel) viewForm(width int) string {
	hints := consoleMutedStyle.Render("tab/shift+tab or up/down: move | left/right/space: change | y/n: set yes/no | enter: next/done | esc: back")
	lines := make([]string, 0, len(m.form.Fields)+6)
	lines = append(lines, consoleTitleStyle.Render("Edit Parameters"), hints)
	for i, f := range m.form.Fields {
		prefix := "  "
		if i == m.form.Index {
			prefix = "> "
		}
		display := strings.TrimSpace(f.Value)
		if f.Kind == formFieldBool {
			v, _ := parseBool(display)
			display = yesNo(v)
		}
		if display == "" {
			display = consoleMutedStyle.Render("(empty)")
		}
		if f.Kind == formFieldSelect {
			display = "[" + display + "]"
		}
		lines = append(lines, wrapOrTrim(fmt.Sprintf("%s%s: %s", prefix, f.Label, display), maxInt(width-6, 20)))
	}

	curr := m.form.currentField()
	lines = append(lines, "", curr.Label)
	if strings.TrimSpace(curr.Help) != "" {
		lines = append(lines, consoleMutedStyle.Render(curr.Help))
	}
	if curr.Kind == formFieldString || curr.Kind == formFieldInt {
		lines = append(lines, m.form.Input.View())
	}
	if strings.TrimSpace(m.form.Error) != "" {
		lines = append(lines, consoleErrorStyle.Render(m.form.Error))
	}
	return consolePanelStyle.Width(width).Render(strings.Join(lines, "\n"))
}

type controlButton struct {
	key     string
	label   string
	enabled bool
}

func (m consoleModel) controlButtons() []controlButton {
	machine := m.session.Machine()
	buttons := make([]controlButton, 0, 5)
	switch {
	case machine.CanPause():
		buttons = append(buttons, controlButton{"p", "Pause", !m.session.IsPending(jobclient.CommandPause)})
	case machine.CanResume():
		buttons = append(buttons, controlButton{"c", "Continue", !m.session.IsPending(jobclient.CommandResume)})
	default:
		buttons = append(buttons, controlButton{"s", "Start", !m.session.IsPending(jobclient.CommandStart)})
	}
	buttons = append(buttons,
		controlButton{"x", "Stop", true},
		controlButton{"r", "Reset", true},
	)
	if m.session.ResultCount() > 0 {
		buttons = append(buttons,
			controlButton{"e", "Export", !m.session.IsPending(jobclient.CommandExport)},
			controlButton{"C", "Clear results", true},
		)
	}
	return buttons
}

func (m consoleModel) renderControls() string {
	parts := make([]string, 0, 5)
	for _, b := range m.controlButtons() {
		label := b.key + " " + b.label
		if b.enabled {
			parts = append(parts, consoleKeyStyle.Render(label))
		} else {
			parts = append(parts, consoleOffKeyStyle.Render(label))
		}
	}
	return strings.Join(parts, " ")
}

func (m consoleModel) renderProgress() string {
	p := m.session.Progress()
	if !m.session.Machine().Active() && p.Percentage <= 0 {
		return ""
	}
	target := 0
	if params, ok := m.session.Params(); ok {
		target = params.TargetCount
	}
	ratio := float64(clampInt(p.Percentage, 0, 100)) / 100
	label := fmt.Sprintf(" %d%%  %d of %d records", p.Percentage, p.Current, target)
	return m.bar.ViewAs(ratio) + label
}

func (m consoleModel) renderResults() string {
	width := maxInt(m.width-2, 30)
	results := m.session.Results()
	title := consoleTitleStyle.Render(fmt.Sprintf("Results (%d)", len(results)))
	if len(results) == 0 {
		return consolePanelStyle.Width(width).Render(title + "\n" + consoleMutedStyle.Render("No results yet."))
	}

	inner := maxInt(width-6, 40)
	nameW := clampInt(inner/4, 10, 40)
	addrW := clampInt(inner/4, 10, 50)
	phoneW := 14
	head := fmt.Sprintf("%-4s %s %s %s %-6s %-7s %s", "#", padRunes("Name", nameW), padRunes("Address", addrW), padRunes("Phone", phoneW), "Rating", "Reviews", "Status")

	maxRows := clampInt(m.height-24, 3, 20)
	cursor := clampInt(m.cursor, 0, len(results)-1)
	start, end := listWindow(len(results), cursor, maxRows)
	lines := []string{title, consoleMutedStyle.Render(truncateRunes(head, inner))}
	if start > 0 {
		lines = append(lines, consoleMutedStyle.Render("..."))
	}
	for i := start; i < end; i++ {
		r := results[i]
		status := defaultIfEmpty(r.Status, "-")
		if isOpenStatus(r.Status) {
			status = consoleOpenStyle.Render(status)
		} else if r.Status != "" {
			status = consoleClosedStyle.Render(status)
		}
		row := fmt.Sprintf("%-4d %s %s %s %-6s %-7s ",
			r.ID,
			padRunes(defaultIfEmpty(r.Name, "-"), nameW),
			padRunes(defaultIfEmpty(r.Address, "-"), addrW),
			padRunes(defaultIfEmpty(r.Phone, "-"), phoneW),
			formatRating(r.Rating),
			formatReviews(r.ReviewCount),
		)
		if i == cursor {
			row = consoleSelStyle.Render(row)
		}
		lines = append(lines, row+status)
	}
	if end < len(results) {
		lines = append(lines, consoleMutedStyle.Render("..."))
	}
	return consolePanelStyle.Width(width).Render(strings.Join(lines, "\n"))
}

func (m consoleModel) renderStatusLine() string {
	msg := strings.TrimSpace(m.statusMessage)
	if msg == "" {
		msg = "Tip: tab edits the search parameters while no job is active."
	}
	style := consoleMutedStyle
	if strings.HasPrefix(strings.ToLower(msg), "error:") {
		style = consoleErrorStyle
	}
	return style.Width(m.width).Render(truncateRunes(msg, maxInt(m.width-2, 10)))
}

// waitForTelemetryCmd drains whatever is already queued, up to a batch, so
// bursts render once while order is kept.
func waitForTelemetryCmd(ch <-chan telemetry.Event) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return telemetryBatchMsg{ok: false}
		}
		events := make([]telemetry.Event, 0, telemetryBatchSize)
		events = append(events, ev)
		for len(events) < telemetryBatchSize {
			select {
			case next, ok := <-ch:
				if !ok {
					return telemetryBatchMsg{events: events, ok: false}
				}
				events = append(events, next)
			default:
				return telemetryBatchMsg{events: events, ok: true}
			}
		}
		return telemetryBatchMsg{events: events, ok: true}
	}
}

func startJobCmd(client jobCommander, params model.JobParameters) tea.Cmd {
	return func() tea.Msg {
		ack, err := client.Start(context.Background(), params)
		return commandDoneMsg{outcome: session.Outcome{Command: jobclient.CommandStart, Ack: ack, Err: err}}
	}
}

func jobCommandCmd(client jobCommander, cmd jobclient.Command) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		var (
			ack jobclient.Ack
			err error
		)
		switch cmd {
		case jobclient.CommandPause:
			ack, err = client.Pause(ctx)
		case jobclient.CommandResume:
			ack, err = client.Resume(ctx)
		case jobclient.CommandStop:
			ack, err = client.Stop(ctx)
		default:
			err = fmt.Errorf("unsupported command %q", cmd)
		}
		return commandDoneMsg{outcome: session.Outcome{Command: cmd, Ack: ack, Err: err}}
	}
}

func exportArtifactCmd(exp artifactExporter, dir string, params model.JobParameters, now func() time.Time) tea.Cmd {
	return func() tea.Msg {
		art, err := exp.Export(context.Background(), params)
		if err != nil {
			return exportDoneMsg{requestID: art.RequestID, err: err}
		}
		path, err := export.Save(dir, art, now())
		if err != nil {
			return exportDoneMsg{requestID: art.RequestID, err: err}
		}
		return exportDoneMsg{message: export.Describe(art, path), requestID: art.RequestID}
	}
}
