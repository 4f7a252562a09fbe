package errutil

import (
	"fmt"
	"sync"

	"github.com/small-frappuccino/confessbot/pkg/log"
)

// Helpers for uniform error reporting:
// - InitializeGlobalErrorHandler(logger *log.Logger) error
// - HandleDiscordError(operation string, fn func() error) error
// - HandleConfigError(operation, path string, fn func() error) error
//
// Each runs the provided function, logs any error through the error logger,
// and returns a wrapped/formatted error where appropriate.

var (
	mu     sync.RWMutex
	logger *log.Logger
)

// InitializeGlobalErrorHandler sets the package-level logger used by the error helpers.
// It is safe to call multiple times; the last non-nil logger wins.
// Returns an error if the supplied logger is nil.
func InitializeGlobalErrorHandler(l *log.Logger) error {
	if l == nil {
		return fmt.Errorf("nil logger provided")
	}
	mu.Lock()
	logger = l
	mu.Unlock()
	return nil
}

// HandleDiscordError executes fn and logs any error that occurs as a Discord-related error.
// It returns whatever error fn returns (unmodified), after logging it.
func HandleDiscordError(operation string, fn func() error) error {
	if fn == nil {
		return fmt.Errorf("nil function provided")
	}

	err := fn()
	if err == nil {
		return nil
	}

	log.ErrorLoggerRaw().Error("Discord operation failed", "operation", operation, "error", err)
	return err
}

// HandleConfigError executes fn and logs any error that occurs as a configuration-related error.
// It returns a wrapped error with context about the operation and path.
func HandleConfigError(operation, path string, fn func() error) error {
	if fn == nil {
		return fmt.Errorf("nil function provided")
	}

	err := fn()
	if err == nil {
		return nil
	}

	log.ErrorLoggerRaw().Error("Config operation failed", "operation", operation, "path", path, "error", err)
	return fmt.Errorf("config %s %s: %w", operation, path, err)
}
