package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

const (
	DefaultAPIURL          = "http://localhost:8000"
	DefaultReconnectDelay  = "3s"
	DefaultLogLevel        = "info"
	DefaultCategory        = "minería"
	DefaultRegion          = "Lima"
	DefaultCountry         = "Perú"
	DefaultTargetCount     = 100
	telemetryPath          = "/ws"
	defaultExportDirectory = "."
)

var DefaultRegions = []string{
	"Lima", "Arequipa", "Cusco", "Trujillo", "Chiclayo", "Piura", "Iquitos",
	"Huancayo", "Tacna", "Ica", "Juliaca", "Pucallpa", "Cajamarca", "Ayacucho",
	"Huánuco", "Chimbote", "Tarapoto", "Tumbes", "Puno", "Sullana",
}

var DefaultCountries = []string{"Perú", "Chile", "Argentina", "Colombia", "México"}

type Config struct {
	Server    ServerConfig    `toml:"server" json:"server"`
	Telemetry TelemetryConfig `toml:"telemetry" json:"telemetry"`
	Export    ExportConfig    `toml:"export" json:"export"`
	Logging   LoggingConfig   `toml:"logging" json:"logging"`
	Catalog   CatalogConfig   `toml:"catalog" json:"catalog"`
}

type ServerConfig struct {
	APIURL string `toml:"api_url" json:"api_url"`
	// WSURL is the telemetry base; derived from APIURL when empty.
	WSURL          string `toml:"ws_url" json:"ws_url,omitempty"`
	RequestTimeout string `toml:"request_timeout" json:"request_timeout,omitempty"`
}

type TelemetryConfig struct {
	ReconnectDelay string `toml:"reconnect_delay" json:"reconnect_delay"`
	// LogRetention caps the operator log; 0 keeps everything.
	LogRetention int `toml:"log_retention" json:"log_retention"`
}

type ExportConfig struct {
	Dir string `toml:"dir" json:"dir"`
}

type LoggingConfig struct {
	Level string `toml:"level" json:"level"`
	File  string `toml:"file" json:"file,omitempty"`
}

type CatalogConfig struct {
	Regions         []string `toml:"regions" json:"regions"`
	Countries       []string `toml:"countries" json:"countries"`
	DefaultCategory string   `toml:"default_category" json:"default_category"`
	DefaultRegion   string   `toml:"default_region" json:"default_region"`
	DefaultCountry  string   `toml:"default_country" json:"default_country"`
	DefaultCount    int      `toml:"default_count" json:"default_count"`
	Headless        *bool    `toml:"headless" json:"headless,omitempty"`
	ExpandedSearch  *bool    `toml:"expanded_search" json:"expanded_search,omitempty"`
}

func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{APIURL: DefaultAPIURL},
		Telemetry: TelemetryConfig{
			ReconnectDelay: DefaultReconnectDelay,
		},
		Export:  ExportConfig{Dir: defaultExportDirectory},
		Logging: LoggingConfig{Level: DefaultLogLevel},
		Catalog: CatalogConfig{
			Regions:         append([]string(nil), DefaultRegions...),
			Countries:       append([]string(nil), DefaultCountries...),
			DefaultCategory: DefaultCategory,
			DefaultRegion:   DefaultRegion,
			DefaultCountry:  DefaultCountry,
			DefaultCount:    DefaultTargetCount,
		},
	}
}

// LoadDotEnv reads .env files into the process environment without
// replacing variables that are already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	existing := make([]string, 0, len(paths))
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

// Load applies defaults, then each TOML file in order, then environment
// overrides. Later files win over earlier ones.
func Load(paths ...string) (*Config, error) {
	cfg := NewDefaultConfig()
	for _, path := range paths {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := firstEnv("SCRAPER_API_URL", "VITE_API_URL"); v != "" {
		cfg.Server.APIURL = v
	}
	if v := firstEnv("SCRAPER_WS_URL", "VITE_WS_URL"); v != "" {
		cfg.Server.WSURL = v
	}
	if v := os.Getenv("SCRAPER_REQUEST_TIMEOUT"); v != "" {
		cfg.Server.RequestTimeout = v
	}
	if v := os.Getenv("SCRAPER_RECONNECT_DELAY"); v != "" {
		cfg.Telemetry.ReconnectDelay = v
	}
	if v := os.Getenv("SCRAPER_LOG_RETENTION"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Telemetry.LogRetention = n
		}
	}
	if v := os.Getenv("SCRAPER_EXPORT_DIR"); v != "" {
		cfg.Export.Dir = v
	}
	if v := os.Getenv("SCRAPER_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SCRAPER_LOG_FILE"); v != "" {
		cfg.Logging.File = v
	}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

func (c *Config) normalize() error {
	c.Server.APIURL = strings.TrimRight(strings.TrimSpace(c.Server.APIURL), "/")
	if c.Server.APIURL == "" {
		c.Server.APIURL = DefaultAPIURL
	}
	if err := checkURL(c.Server.APIURL, "http", "https"); err != nil {
		return fmt.Errorf("invalid server.api_url: %w", err)
	}
	c.Server.WSURL = strings.TrimRight(strings.TrimSpace(c.Server.WSURL), "/")
	if c.Server.WSURL != "" {
		if err := checkURL(c.Server.WSURL, "ws", "wss"); err != nil {
			return fmt.Errorf("invalid server.ws_url: %w", err)
		}
	}
	if strings.TrimSpace(c.Server.RequestTimeout) != "" {
		if _, err := parsePositiveDuration(c.Server.RequestTimeout); err != nil {
			return fmt.Errorf("invalid server.request_timeout: %w", err)
		}
	}

	if strings.TrimSpace(c.Telemetry.ReconnectDelay) == "" {
		c.Telemetry.ReconnectDelay = DefaultReconnectDelay
	}
	if _, err := parsePositiveDuration(c.Telemetry.ReconnectDelay); err != nil {
		return fmt.Errorf("invalid telemetry.reconnect_delay: %w", err)
	}
	if c.Telemetry.LogRetention < 0 {
		return errors.New("invalid telemetry.log_retention: must be >= 0")
	}

	c.Export.Dir = strings.TrimSpace(c.Export.Dir)
	if c.Export.Dir == "" {
		c.Export.Dir = defaultExportDirectory
	}

	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	switch c.Logging.Level {
	case "":
		c.Logging.Level = DefaultLogLevel
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level %q (expected trace, debug, info, warn, or error)", c.Logging.Level)
	}
	c.Logging.File = strings.TrimSpace(c.Logging.File)

	c.Catalog.Regions = cleanList(c.Catalog.Regions, DefaultRegions)
	c.Catalog.Countries = cleanList(c.Catalog.Countries, DefaultCountries)
	c.Catalog.DefaultCategory = defaultIfBlank(c.Catalog.DefaultCategory, DefaultCategory)
	c.Catalog.DefaultRegion = catalogDefault(c.Catalog.DefaultRegion, c.Catalog.Regions)
	c.Catalog.DefaultCountry = catalogDefault(c.Catalog.DefaultCountry, c.Catalog.Countries)
	if c.Catalog.DefaultCount <= 0 {
		c.Catalog.DefaultCount = DefaultTargetCount
	}
	return nil
}

func checkURL(raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	for _, s := range schemes {
		if u.Scheme == s {
			if u.Host == "" {
				return fmt.Errorf("missing host in %q", raw)
			}
			return nil
		}
	}
	return fmt.Errorf("%q must use %s", raw, strings.Join(schemes, " or "))
}

func parsePositiveDuration(raw string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive, got %s", raw)
	}
	return d, nil
}

func cleanList(in, fallback []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	if len(out) == 0 {
		return append([]string(nil), fallback...)
	}
	return out
}

// catalogDefault keeps v when it names one of options (case-insensitively,
// returned in its catalog spelling) and falls back to the first option.
func catalogDefault(v string, options []string) string {
	v = strings.TrimSpace(v)
	for _, opt := range options {
		if strings.EqualFold(opt, v) {
			return opt
		}
	}
	return options[0]
}

func defaultIfBlank(v, fallback string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return fallback
	}
	return v
}

// ChannelURL is the telemetry endpoint: the configured ws base, or the API
// base with its scheme swapped, plus "/ws".
func (c *Config) ChannelURL() string {
	base := c.Server.WSURL
	if base == "" {
		base = c.Server.APIURL
		switch {
		case strings.HasPrefix(base, "https://"):
			base = "wss://" + strings.TrimPrefix(base, "https://")
		case strings.HasPrefix(base, "http://"):
			base = "ws://" + strings.TrimPrefix(base, "http://")
		}
	}
	if strings.HasSuffix(base, telemetryPath) {
		return base
	}
	return base + telemetryPath
}

func (c *Config) ReconnectDelay() time.Duration {
	d, err := parsePositiveDuration(c.Telemetry.ReconnectDelay)
	if err != nil {
		return 3 * time.Second
	}
	return d
}

// RequestTimeout is zero when requests should only be bounded by transport
// behaviour.
func (c *Config) RequestTimeout() time.Duration {
	if strings.TrimSpace(c.Server.RequestTimeout) == "" {
		return 0
	}
	d, err := parsePositiveDuration(c.Server.RequestTimeout)
	if err != nil {
		return 0
	}
	return d
}

func (c *Config) DefaultHeadless() bool {
	return c.Catalog.Headless == nil || *c.Catalog.Headless
}

func (c *Config) DefaultExpandedSearch() bool {
	return c.Catalog.ExpandedSearch == nil || *c.Catalog.ExpandedSearch
}
