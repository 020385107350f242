package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"SCRAPER_API_URL", "VITE_API_URL", "SCRAPER_WS_URL", "VITE_WS_URL",
		"SCRAPER_REQUEST_TIMEOUT", "SCRAPER_RECONNECT_DELAY", "SCRAPER_LOG_RETENTION",
		"SCRAPER_EXPORT_DIR", "SCRAPER_LOG_LEVEL", "SCRAPER_LOG_FILE",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.APIURL != "http://localhost:8000" {
		t.Fatalf("unexpected api url %q", cfg.Server.APIURL)
	}
	if got := cfg.ChannelURL(); got != "ws://localhost:8000/ws" {
		t.Fatalf("unexpected channel url %q", got)
	}
	if cfg.ReconnectDelay() != 3*time.Second {
		t.Fatalf("unexpected reconnect delay %s", cfg.ReconnectDelay())
	}
	if cfg.RequestTimeout() != 0 {
		t.Fatalf("expected no request timeout, got %s", cfg.RequestTimeout())
	}
	if len(cfg.Catalog.Regions) != 20 || cfg.Catalog.Regions[0] != "Lima" {
		t.Fatalf("unexpected regions %v", cfg.Catalog.Regions)
	}
	if cfg.Catalog.DefaultCategory != "minería" || cfg.Catalog.DefaultCount != 100 {
		t.Fatalf("unexpected catalog defaults %+v", cfg.Catalog)
	}
	if !cfg.DefaultHeadless() || !cfg.DefaultExpandedSearch() {
		t.Fatal("headless and expanded search default to on")
	}
}

func TestLoad_FilesMergeInOrderAndEnvWins(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	base := writeFile(t, dir, "base.toml", `
[server]
api_url = "https://scraper.example.pe/"
request_timeout = "45s"

[telemetry]
reconnect_delay = "5s"
log_retention = 500

[catalog]
regions = ["Cusco", "Puno", "Cusco", " "]
headless = false
`)
	override := writeFile(t, dir, "override.toml", `
[telemetry]
reconnect_delay = "1s"

[logging]
level = "DEBUG"
`)
	t.Setenv("SCRAPER_EXPORT_DIR", "/tmp/exports")

	cfg, err := Load(base, override)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.APIURL != "https://scraper.example.pe" {
		t.Fatalf("unexpected api url %q", cfg.Server.APIURL)
	}
	if got := cfg.ChannelURL(); got != "wss://scraper.example.pe/ws" {
		t.Fatalf("unexpected channel url %q", got)
	}
	if cfg.ReconnectDelay() != time.Second {
		t.Fatalf("later file should win, got %s", cfg.ReconnectDelay())
	}
	if cfg.RequestTimeout() != 45*time.Second {
		t.Fatalf("unexpected request timeout %s", cfg.RequestTimeout())
	}
	if cfg.Telemetry.LogRetention != 500 {
		t.Fatalf("unexpected retention %d", cfg.Telemetry.LogRetention)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected level %q", cfg.Logging.Level)
	}
	if cfg.Export.Dir != "/tmp/exports" {
		t.Fatalf("env should override export dir, got %q", cfg.Export.Dir)
	}
	if strings.Join(cfg.Catalog.Regions, ",") != "Cusco,Puno" {
		t.Fatalf("unexpected regions %v", cfg.Catalog.Regions)
	}
	if cfg.Catalog.DefaultRegion != "Cusco" {
		t.Fatalf("default region should follow the catalog, got %q", cfg.Catalog.DefaultRegion)
	}
	if cfg.DefaultHeadless() {
		t.Fatal("headless should be off from file")
	}
}

func TestLoad_LegacyFrontendEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("VITE_API_URL", "http://10.0.0.5:8000")
	t.Setenv("VITE_WS_URL", "ws://10.0.0.5:8000/ws")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.APIURL != "http://10.0.0.5:8000" {
		t.Fatalf("unexpected api url %q", cfg.Server.APIURL)
	}
	if got := cfg.ChannelURL(); got != "ws://10.0.0.5:8000/ws" {
		t.Fatalf("ws url with path should be kept, got %q", got)
	}

	t.Setenv("SCRAPER_API_URL", "http://primary:9000")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.APIURL != "http://primary:9000" {
		t.Fatalf("SCRAPER_API_URL should win, got %q", cfg.Server.APIURL)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		file string
	}{
		{name: "api scheme", env: map[string]string{"SCRAPER_API_URL": "ftp://host"}},
		{name: "ws scheme", env: map[string]string{"SCRAPER_WS_URL": "http://host/ws"}},
		{name: "delay", env: map[string]string{"SCRAPER_RECONNECT_DELAY": "soon"}},
		{name: "negative delay", env: map[string]string{"SCRAPER_RECONNECT_DELAY": "-1s"}},
		{name: "level", env: map[string]string{"SCRAPER_LOG_LEVEL": "loud"}},
		{name: "bad toml", file: "[server\napi_url = 1"},
		{name: "retention", file: "[telemetry]\nlog_retention = -3"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			var paths []string
			if tc.file != "" {
				paths = append(paths, writeFile(t, t.TempDir(), "bad.toml", tc.file))
			}
			if _, err := Load(paths...); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("expected missing file error")
	}
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := writeFile(t, dir, ".env", "SCRAPER_API_URL=http://from-dotenv:8000\nSCRAPER_LOG_LEVEL=warn\n")
	t.Setenv("SCRAPER_LOG_LEVEL", "error")
	// t.Setenv with an empty value counts as set; clear it so godotenv can fill it.
	os.Unsetenv("SCRAPER_API_URL")

	if err := LoadDotEnv(path, filepath.Join(dir, "absent.env")); err != nil {
		t.Fatalf("load dotenv: %v", err)
	}
	if got := os.Getenv("SCRAPER_API_URL"); got != "http://from-dotenv:8000" {
		t.Fatalf("unexpected api url %q", got)
	}
	if got := os.Getenv("SCRAPER_LOG_LEVEL"); got != "error" {
		t.Fatalf("existing env must not be replaced, got %q", got)
	}
}

func TestLoad_CatalogDefaultsStayInsideCatalog(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	cases := []struct {
		name        string
		content     string
		wantRegion  string
		wantCountry string
	}{
		{
			name: "lists without the built-in defaults",
			content: `
[catalog]
regions = ["Santiago", "Valparaíso"]
countries = ["Chile"]
`,
			wantRegion:  "Santiago",
			wantCountry: "Chile",
		},
		{
			name: "explicit defaults present in the lists",
			content: `
[catalog]
regions = ["Santiago", "Valparaíso"]
countries = ["Chile", "Perú"]
default_region = "valparaíso"
default_country = "Perú"
`,
			wantRegion:  "Valparaíso",
			wantCountry: "Perú",
		},
		{
			name: "explicit default missing from the list",
			content: `
[catalog]
regions = ["Santiago"]
default_region = "Lima"
`,
			wantRegion:  "Santiago",
			wantCountry: "Perú",
		},
	}
	for i, tc := range cases {
		path := writeFile(t, dir, fmt.Sprintf("catalog-%d.toml", i), tc.content)
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("%s: load: %v", tc.name, err)
		}
		if cfg.Catalog.DefaultRegion != tc.wantRegion {
			t.Fatalf("%s: expected default region %q, got %q", tc.name, tc.wantRegion, cfg.Catalog.DefaultRegion)
		}
		if cfg.Catalog.DefaultCountry != tc.wantCountry {
			t.Fatalf("%s: expected default country %q, got %q", tc.name, tc.wantCountry, cfg.Catalog.DefaultCountry)
		}
	}
}
