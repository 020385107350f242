package cli

import (
	"flag"

	"scraper-console/internal/config"
	"scraper-console/internal/logging"
)

type configReport struct {
	*config.Config
	ChannelURL         string   `json:"channel_url"`
	ConfigFiles        []string `json:"config_files,omitempty"`
	EffectiveHeadless  bool     `json:"effective_headless"`
	EffectiveExpansion bool     `json:"effective_expanded_search"`
}

func runConfig(args []string) error {
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfigPath(), "config file path (TOML)")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	app, err := newAppContext(*configPath, logging.ModeCommand)
	if err != nil {
		return err
	}
	return printJSON(configReport{
		Config:             app.cfg,
		ChannelURL:         app.cfg.ChannelURL(),
		ConfigFiles:        resolveConfigPaths(*configPath),
		EffectiveHeadless:  app.cfg.DefaultHeadless(),
		EffectiveExpansion: app.cfg.DefaultExpandedSearch(),
	})
}
