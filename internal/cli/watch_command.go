package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"scraper-console/internal/logging"
	"scraper-console/internal/model"
	"scraper-console/internal/session"
	"scraper-console/internal/telemetry"
)

const (
	watchRedrawEvery = 700 * time.Millisecond
	watchEventLines  = 8
	watchRuleWidth   = 120
)

type watchOptions struct {
	jsonOut bool
	// clear resets the terminal before each frame.
	clear   bool
	limiter *rate.Limiter
	now     func() time.Time
}

// watchLine is one --json output line.
type watchLine struct {
	Time     string                  `json:"time"`
	Type     string                  `json:"type"`
	Level    model.LogLevel          `json:"level,omitempty"`
	Message  string                  `json:"message,omitempty"`
	Progress *model.ProgressSnapshot `json:"progress,omitempty"`
	Record   *model.ResultRecord     `json:"record,omitempty"`
	URL      string                  `json:"url,omitempty"`
	Attempt  int                     `json:"attempt,omitempty"`
	RetryIn  string                  `json:"retry_in,omitempty"`
	Data     json.RawMessage         `json:"data,omitempty"`
	State    model.JobState          `json:"state"`
}

func runWatch(args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfigPath(), "config file path (TOML)")
	jsonOut := fs.Bool("json", false, "print one JSON line per telemetry event")
	duration := fs.Duration("for", 0, "stop after this long (0 = until interrupted)")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	app, err := newAppContext(*configPath, logging.ModeCommand)
	if err != nil {
		return err
	}
	channel, err := app.newChannel()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	channel.Start(ctx)
	defer channel.Close()

	sess := session.New(session.Options{LogRetention: app.cfg.Telemetry.LogRetention, Logger: app.logger})
	return watchEvents(ctx, channel.Events(), sess, os.Stdout, watchOptions{
		jsonOut: *jsonOut,
		clear:   stdinIsTTY(),
		limiter: rate.NewLimiter(rate.Every(watchRedrawEvery), 1),
	})
}

// watchEvents folds every event into sess and writes either JSON lines or
// rate-limited dashboard frames. It returns when ctx ends or events closes.
func watchEvents(ctx context.Context, events <-chan telemetry.Event, sess *session.Session, out io.Writer, opts watchOptions) error {
	if opts.now == nil {
		opts.now = time.Now
	}
	if opts.limiter == nil {
		opts.limiter = rate.NewLimiter(rate.Every(watchRedrawEvery), 1)
	}
	enc := json.NewEncoder(out)

	draw := func() error {
		_, err := io.WriteString(out, renderWatchFrame(sess, opts.clear))
		return err
	}

	// A throttled event schedules one trailing redraw so the last state of a
	// burst is shown even when the connection goes quiet.
	var (
		trailing  *time.Timer
		trailingC <-chan time.Time
		reserved  *rate.Reservation
	)
	stopTrailing := func() {
		if trailing != nil {
			trailing.Stop()
			trailing, trailingC = nil, nil
		}
		if reserved != nil {
			reserved.Cancel()
			reserved = nil
		}
	}
	defer stopTrailing()

	finish := func() error {
		stopTrailing()
		if opts.jsonOut {
			return nil
		}
		return draw()
	}

	for {
		select {
		case <-ctx.Done():
			return finish()
		case <-trailingC:
			trailing, trailingC, reserved = nil, nil, nil
			if err := draw(); err != nil {
				return err
			}
		case ev, ok := <-events:
			if !ok {
				return finish()
			}
			sess.Apply(ev)
			if opts.jsonOut {
				if err := enc.Encode(watchLineFor(ev, sess.State(), opts.now())); err != nil {
					return err
				}
				continue
			}
			if trailing != nil {
				continue
			}
			if opts.limiter.Allow() {
				if err := draw(); err != nil {
					return err
				}
				continue
			}
			if r := opts.limiter.Reserve(); r.OK() {
				reserved = r
				trailing = time.NewTimer(r.Delay())
				trailingC = trailing.C
			}
		}
	}
}

func watchLineFor(ev telemetry.Event, state model.JobState, at time.Time) watchLine {
	line := watchLine{Time: at.UTC().Format(time.RFC3339), State: state}
	switch e := ev.(type) {
	case telemetry.LogMessage:
		line.Type = telemetry.TypeLog
		line.Level = e.Level
		line.Message = e.Message
	case telemetry.ProgressMessage:
		p := e.Progress
		line.Type = telemetry.TypeProgress
		line.Progress = &p
	case telemetry.ResultMessage:
		r := e.Record
		line.Type = telemetry.TypeResult
		line.Record = &r
	case telemetry.ErrorMessage:
		line.Type = telemetry.TypeError
		line.Message = e.Message
	case telemetry.UnknownMessage:
		line.Type = e.Type
		line.Data = e.Data
	case telemetry.Connected:
		line.Type = "connected"
		line.URL = e.URL
		line.Attempt = e.Attempt
	case telemetry.Disconnected:
		line.Type = "disconnected"
		line.Attempt = e.Attempt
		line.RetryIn = e.RetryIn.String()
		if e.Err != nil {
			line.Message = e.Err.Error()
		}
	case telemetry.TransportError:
		line.Type = "transport_error"
		if e.Err != nil {
			line.Message = e.Err.Error()
		}
	}
	return line
}

func renderWatchFrame(sess *session.Session, clear bool) string {
	var b strings.Builder
	if clear {
		b.WriteString("\033[H\033[2J")
	}

	p := sess.Progress()
	target := 0
	if params, ok := sess.Params(); ok {
		target = params.TargetCount
	}
	ch := sess.Channel()
	channel := "offline"
	switch {
	case ch.Connected:
		channel = "connected"
	case ch.RetryIn > 0:
		channel = "retry in " + ch.RetryIn.String()
	}
	b.WriteString(fmt.Sprintf("scraper-console live | state %s | progress %d%% | records %d/%d | results %d | channel %s\n",
		sess.State(), p.Percentage, p.Current, target, sess.ResultCount(), channel))
	b.WriteString(strings.Repeat("-", watchRuleWidth) + "\n")

	logs := sess.Logs()
	if len(logs) == 0 {
		b.WriteString("(no activity yet)\n")
		return b.String()
	}
	start := 0
	if len(logs) > watchEventLines {
		start = len(logs) - watchEventLines
	}
	for _, entry := range logs[start:] {
		b.WriteString(fmt.Sprintf("[%s] %-7s %s\n", entry.Timestamp, displayLevel(entry.Level), entry.Message))
	}
	return b.String()
}
