package log

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/small-frappuccino/confessbot/pkg/util"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger bundles the category loggers used across the bot. Each category writes
// to its own rotated file and mirrors to the console.
type Logger struct {
	application *slog.Logger
	discord     *slog.Logger
	errors      *slog.Logger

	level   *slog.LevelVar
	writers []io.Closer
}

var (
	// GlobalLogger is the process-wide logger instance set up by SetupLogger.
	GlobalLogger *Logger

	setupOnce sync.Once
)

// SetupLogger initializes the global logger. It is idempotent and thread-safe.
// Log files live under the application cache directory and rotate via lumberjack.
func SetupLogger() error {
	setupOnce.Do(func() {
		GlobalLogger = newLogger(util.GetLogDirPath())
	})
	return nil
}

func newLogger(logDir string) *Logger {
	level := &slog.LevelVar{}
	level.Set(slog.LevelInfo)

	l := &Logger{level: level}

	l.application = l.category(logDir, "application.log", os.Stdout)
	l.discord = l.category(logDir, "discord.log", os.Stdout)
	l.errors = l.category(logDir, "error.log", os.Stderr)
	return l
}

func (l *Logger) category(logDir, filename string, console io.Writer) *slog.Logger {
	rotated := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, filename),
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}
	l.writers = append(l.writers, rotated)

	handler := slog.NewTextHandler(io.MultiWriter(console, rotated), &slog.HandlerOptions{
		Level: l.level,
	})
	return slog.New(handler)
}

// SetLevel adjusts the minimum level for all categories. Unknown names keep the
// current level.
func (l *Logger) SetLevel(name string) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		l.level.Set(slog.LevelDebug)
	case "info":
		l.level.Set(slog.LevelInfo)
	case "warn", "warning":
		l.level.Set(slog.LevelWarn)
	case "error":
		l.level.Set(slog.LevelError)
	}
}

// Sync flushes and closes the rotated log files. Safe to call more than once.
func (l *Logger) Sync() {
	if l == nil {
		return
	}
	for _, w := range l.writers {
		_ = w.Close()
	}
	l.writers = nil
}

// ApplicationLogger returns the logger for application lifecycle events.
func ApplicationLogger() *slog.Logger {
	if GlobalLogger == nil {
		return slog.Default()
	}
	return GlobalLogger.application
}

// DiscordLogger returns the logger for Discord transport events.
func DiscordLogger() *slog.Logger {
	if GlobalLogger == nil {
		return slog.Default()
	}
	return GlobalLogger.discord
}

// ErrorLoggerRaw returns the logger reserved for error reporting.
func ErrorLoggerRaw() *slog.Logger {
	if GlobalLogger == nil {
		return slog.Default()
	}
	return GlobalLogger.errors
}
