package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"scraper-console/internal/export"
	"scraper-console/internal/jobclient"
	"scraper-console/internal/logging"
	"scraper-console/internal/model"
)

type commandReport struct {
	Command   string `json:"command"`
	Message   string `json:"message,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type exportReport struct {
	Path      string `json:"path"`
	Bytes     int    `json:"bytes"`
	Sheet     string `json:"sheet,omitempty"`
	Rows      int    `json:"rows"`
	RequestID string `json:"request_id,omitempty"`
}

// paramFlags are shared by start and export.
type paramFlags struct {
	category *string
	region   *string
	country  *string
	count    *int
	headless *string
	expanded *string
}

func bindParamFlags(fs *flag.FlagSet) paramFlags {
	return paramFlags{
		category: fs.String("category", "", "business category (default: catalog default)"),
		region:   fs.String("region", "", "region/department (default: catalog default)"),
		country:  fs.String("country", "", "country (default: catalog default)"),
		count:    fs.Int("count", 0, "target record count (0 = catalog default)"),
		headless: fs.String("headless", "", "run the backend browser headless: y|n (default: catalog default)"),
		expanded: fs.String("expanded", "", "expanded search: y|n (default: catalog default)"),
	}
}

func (p paramFlags) resolve(app *appContext) (model.JobParameters, error) {
	catalog := app.cfg.Catalog
	params := model.JobParameters{
		Category:       defaultIfEmpty(strings.TrimSpace(*p.category), catalog.DefaultCategory),
		Region:         defaultIfEmpty(strings.TrimSpace(*p.region), catalog.DefaultRegion),
		Country:        defaultIfEmpty(strings.TrimSpace(*p.country), catalog.DefaultCountry),
		TargetCount:    *p.count,
		Headless:       app.cfg.DefaultHeadless(),
		ExpandedSearch: app.cfg.DefaultExpandedSearch(),
	}
	if params.TargetCount == 0 {
		params.TargetCount = catalog.DefaultCount
	}
	if raw := strings.TrimSpace(*p.headless); raw != "" {
		v, ok := parseBool(raw)
		if !ok {
			return model.JobParameters{}, fmt.Errorf("--headless must be y or n, got %q", raw)
		}
		params.Headless = v
	}
	if raw := strings.TrimSpace(*p.expanded); raw != "" {
		v, ok := parseBool(raw)
		if !ok {
			return model.JobParameters{}, fmt.Errorf("--expanded must be y or n, got %q", raw)
		}
		params.ExpandedSearch = v
	}
	if err := params.Validate(); err != nil {
		return model.JobParameters{}, err
	}
	return params, nil
}

func runStart(args []string) error {
	fs := flag.NewFlagSet("start", flag.ContinueOnError)
	params := bindParamFlags(fs)
	configPath := fs.String("config", defaultConfigPath(), "config file path (TOML)")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	app, err := newAppContext(*configPath, logging.ModeCommand)
	if err != nil {
		return err
	}
	p, err := params.resolve(app)
	if err != nil {
		return err
	}
	ack, err := app.client.Start(context.Background(), p)
	if err != nil {
		return err
	}
	return printCommandReport(jobclient.CommandStart, ack, *jsonOut)
}

func runPause(args []string) error {
	return runLifecycleCommand(jobclient.CommandPause, args)
}

func runResume(args []string) error {
	return runLifecycleCommand(jobclient.CommandResume, args)
}

func runStop(args []string) error {
	return runLifecycleCommand(jobclient.CommandStop, args)
}

func runLifecycleCommand(cmd jobclient.Command, args []string) error {
	fs := flag.NewFlagSet(string(cmd), flag.ContinueOnError)
	configPath := fs.String("config", defaultConfigPath(), "config file path (TOML)")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("%s takes no arguments", cmd)
	}

	app, err := newAppContext(*configPath, logging.ModeCommand)
	if err != nil {
		return err
	}
	ctx := context.Background()
	var ack jobclient.Ack
	switch cmd {
	case jobclient.CommandPause:
		ack, err = app.client.Pause(ctx)
	case jobclient.CommandResume:
		ack, err = app.client.Resume(ctx)
	case jobclient.CommandStop:
		ack, err = app.client.Stop(ctx)
	default:
		return fmt.Errorf("unsupported command %q", cmd)
	}
	if err != nil {
		return err
	}
	return printCommandReport(cmd, ack, *jsonOut)
}

func printCommandReport(cmd jobclient.Command, ack jobclient.Ack, jsonOut bool) error {
	if jsonOut {
		return printJSON(commandReport{Command: string(cmd), Message: ack.Message, RequestID: ack.RequestID})
	}
	msg := strings.TrimSpace(ack.Message)
	if msg == "" {
		msg = string(cmd) + " accepted"
	}
	fmt.Println(msg)
	return nil
}

func runExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	params := bindParamFlags(fs)
	configPath := fs.String("config", defaultConfigPath(), "config file path (TOML)")
	outDir := fs.String("out", "", "directory for the workbook (default: config export dir)")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	app, err := newAppContext(*configPath, logging.ModeCommand)
	if err != nil {
		return err
	}
	p, err := params.resolve(app)
	if err != nil {
		return err
	}
	dir := defaultIfEmpty(strings.TrimSpace(*outDir), app.cfg.Export.Dir)
	if dir == "" {
		return errors.New("export directory is required")
	}

	coord := export.NewCoordinator(app.client, time.Now, app.logger)
	art, err := coord.Export(context.Background(), p)
	if err != nil {
		return err
	}
	path, err := export.Save(dir, art, time.Now())
	if err != nil {
		return err
	}

	if *jsonOut {
		report := exportReport{Path: path, Bytes: len(art.Data), RequestID: art.RequestID}
		if art.Summary != nil {
			report.Sheet = art.Summary.Sheet
			report.Rows = art.Summary.Rows
		}
		return printJSON(report)
	}
	fmt.Println(export.Describe(art, path))
	return nil
}
