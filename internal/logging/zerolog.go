package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// LogDirName is the per-run log directory inside the backup repo.
const LogDirName = "__log__"

// maxLogFiles bounds how many per-run log files are kept.
const maxLogFiles = 100

// ZeroLogger adapts zerolog to the Logger interface. The file stream gets
// everything; the console stream is filtered to the configured level.
type ZeroLogger struct {
	console zerolog.Logger
	file    zerolog.Logger
	closer  io.Closer
}

// Setup creates the __log__ directory, opens a timestamped log file, prunes
// old log files down to the most recent maxLogFiles, and returns a logger
// writing to both streams. Returns the log file path for reporting.
func Setup(repoRoot, level string) (*ZeroLogger, string, error) {
	logDir := filepath.Join(repoRoot, LogDirName)
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, "", fmt.Errorf("creating log dir: %w", err)
	}

	name := time.Now().Format("20060102_150405") + ".log"
	logPath := filepath.Join(logDir, name)
	f, err := os.Create(logPath)
	if err != nil {
		return nil, "", fmt.Errorf("creating log file: %w", err)
	}

	pruneOldLogs(logDir)

	consoleLevel := zerolog.InfoLevel
	if parsed, err := zerolog.ParseLevel(level); err == nil && level != "" {
		consoleLevel = parsed
	}

	console := zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}).Level(consoleLevel).With().Timestamp().Logger()

	file := zerolog.New(f).Level(zerolog.DebugLevel).With().Timestamp().Logger()

	return &ZeroLogger{console: console, file: file, closer: f}, logPath, nil
}

func (z *ZeroLogger) Debug(msg string, args ...any) {
	z.console.Debug().Msgf(msg, args...)
	z.file.Debug().Msgf(msg, args...)
}

func (z *ZeroLogger) Info(msg string, args ...any) {
	z.console.Info().Msgf(msg, args...)
	z.file.Info().Msgf(msg, args...)
}

func (z *ZeroLogger) Warn(msg string, args ...any) {
	z.console.Warn().Msgf(msg, args...)
	z.file.Warn().Msgf(msg, args...)
}

func (z *ZeroLogger) Error(msg string, args ...any) {
	z.console.Error().Msgf(msg, args...)
	z.file.Error().Msgf(msg, args...)
}

// Close flushes and closes the log file stream.
func (z *ZeroLogger) Close() error {
	if z.closer == nil {
		return nil
	}
	return z.closer.Close()
}

// pruneOldLogs keeps only the most recent maxLogFiles *.log files. Names
// sort chronologically because of the timestamp format.
func pruneOldLogs(logDir string) {
	matches, err := filepath.Glob(filepath.Join(logDir, "*.log"))
	if err != nil {
		return
	}
	if len(matches) <= maxLogFiles {
		return
	}
	sort.Strings(matches)
	for _, old := range matches[:len(matches)-maxLogFiles] {
		_ = os.Remove(old)
	}
}
