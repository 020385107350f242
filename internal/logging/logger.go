package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/arbor/models"

	"scraper-console/internal/config"
)

type Mode int

const (
	// ModeCommand writes diagnostics to stderr, plus the file when configured.
	ModeCommand Mode = iota
	// ModeConsole never touches the terminal; the UI owns it.
	ModeConsole
)

const (
	timeFormat     = "15:04:05"
	maxFileSize    = 10 * 1024 * 1024
	maxFileBackups = 3
)

// New builds the diagnostic logger for one process.
func New(cfg config.LoggingConfig, mode Mode) (arbor.ILogger, error) {
	logger := arbor.NewLogger()

	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, fmt.Errorf("create log directory for %s: %w", cfg.File, err)
		}
		logger = logger.WithFileWriter(models.WriterConfiguration{
			Type:       models.LogWriterTypeFile,
			FileName:   cfg.File,
			TimeFormat: timeFormat,
			MaxSize:    maxFileSize,
			MaxBackups: maxFileBackups,
		})
	}

	if mode == ModeCommand {
		logger = logger.WithConsoleWriter(models.WriterConfiguration{
			Type:       models.LogWriterTypeConsole,
			TimeFormat: timeFormat,
		})
	}

	level := cfg.Level
	if level == "" {
		level = config.DefaultLogLevel
	}
	return logger.WithLevelFromString(level), nil
}
