package logi

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var (
	logger *slog.Logger
	once   sync.Once

	discard = slog.New(slog.NewJSONHandler(io.Discard, nil))
)

const (
	OutputFile   = "file"
	OutputStdout = "stdout"
)

// Config holds the logging configuration
type Config struct {
	// Output selects where records go: OutputFile or OutputStdout
	// Default: OutputFile
	Output string
	// LogDir is the directory where log files will be stored
	// Default: /var/log/netmon (or ./logs if not writable)
	LogDir string
	// LogFileName is the name of the log file
	// Default: app.log
	LogFileName string
	// Level is the minimum log level to write
	// Default: slog.LevelInfo
	Level slog.Level
}

// NewLog creates or returns the singleton logger instance.
// It's safe for concurrent use across multiple goroutines.
func NewLog(cfg *Config) (*slog.Logger, error) {
	var initErr error

	once.Do(func() {
		if cfg == nil {
			cfg = &Config{}
		}

		var (
			out  io.Writer
			dest string
		)

		switch cfg.Output {
		case OutputStdout:
			out = os.Stdout
			dest = OutputStdout
		case "", OutputFile:
			file, logPath, err := openLogFile(cfg)
			if err != nil {
				initErr = err
				return
			}
			out = file
			dest = logPath
		default:
			initErr = fmt.Errorf("unknown log output %q", cfg.Output)
			return
		}

		opts := &slog.HandlerOptions{
			Level:     cfg.Level,
			AddSource: false,
		}

		logger = slog.New(slog.NewJSONHandler(out, opts))

		logger.Info("logger initialized",
			"destination", dest,
			"level", cfg.Level.String(),
		)
	})

	if initErr != nil {
		return nil, initErr
	}

	return logger, nil
}

func openLogFile(cfg *Config) (*os.File, string, error) {
	if cfg.LogDir == "" {
		// /var/log/netmon works in containers; fall back to ./logs
		cfg.LogDir = "/var/log/netmon"
		if !isDirWritable(cfg.LogDir) {
			cfg.LogDir = "./logs"
		}
	}

	if cfg.LogFileName == "" {
		cfg.LogFileName = "app.log"
	}

	if err := os.MkdirAll(cfg.LogDir, 0755); err != nil {
		return nil, "", fmt.Errorf("failed to create log directory %s: %w", cfg.LogDir, err)
	}

	logPath := filepath.Join(cfg.LogDir, cfg.LogFileName)

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open log file %s: %w", logPath, err)
	}
	return file, logPath, nil
}

// GetLogger returns the logger created by NewLog. Before NewLog has run it
// returns a logger that discards everything, so packages stay usable in tests.
func GetLogger() *slog.Logger {
	if logger == nil {
		return discard
	}
	return logger
}

// ParseLevel maps "debug", "info", "warn" and "error" to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

// isDirWritable checks if a directory is writable
func isDirWritable(path string) bool {
	if err := os.MkdirAll(path, 0755); err != nil {
		return false
	}

	testFile := filepath.Join(path, ".write_test")
	file, err := os.OpenFile(testFile, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return false
	}
	file.Close()
	os.Remove(testFile)
	return true
}
