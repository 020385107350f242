package cli

import (
	"net/http"
	"os"
	"strings"

	"github.com/ternarybob/arbor"

	"scraper-console/internal/config"
	"scraper-console/internal/jobclient"
	"scraper-console/internal/logging"
	"scraper-console/internal/telemetry"
)

const localConfigFile = "scraper-console.toml"

type appContext struct {
	cfg    *config.Config
	logger arbor.ILogger
	client *jobclient.Client
}

func defaultConfigPath() string {
	return strings.TrimSpace(os.Getenv("SCRAPER_CONFIG"))
}

// resolveConfigPaths picks the explicit path, or the working-directory
// file when it exists.
func resolveConfigPaths(explicit string) []string {
	explicit = strings.TrimSpace(explicit)
	if explicit != "" {
		return []string{explicit}
	}
	if _, err := os.Stat(localConfigFile); err == nil {
		return []string{localConfigFile}
	}
	return nil
}

func newAppContext(configPath string, mode logging.Mode) (*appContext, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	cfg, err := config.Load(resolveConfigPaths(configPath)...)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Logging, mode)
	if err != nil {
		return nil, err
	}
	client, err := jobclient.New(jobclient.Options{
		BaseURL:    cfg.Server.APIURL,
		HTTPClient: &http.Client{Timeout: cfg.RequestTimeout()},
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}
	logger.Debug().
		Str("api_url", cfg.Server.APIURL).
		Str("channel_url", cfg.ChannelURL()).
		Msg("configuration resolved")
	return &appContext{cfg: cfg, logger: logger, client: client}, nil
}

func (a *appContext) newChannel() (*telemetry.Channel, error) {
	return telemetry.New(telemetry.Options{
		URL:            a.cfg.ChannelURL(),
		ReconnectDelay: a.cfg.ReconnectDelay(),
		Logger:         a.logger,
	})
}
