package logging

import (
	"fmt"
	"sync"

	"poolgateway/internal/config"
)

var (
	globalLogger Logger
	globalMu     sync.RWMutex
)

// InitializeLogging builds the process-wide logger from configuration and
// installs it as the global logger.
func InitializeLogging(cfg *config.Config) error {
	logger := NewMultiLogger()
	logger.SetLevel(ParseLogLevel(cfg.Logging.Level))

	factory := NewAdapterFactory()

	if len(cfg.Logging.Adapters) == 0 {
		adapter := NewStdoutAdapter("stdout", cfg.Logging.Format)
		if err := logger.AddAdapter(adapter); err != nil {
			return fmt.Errorf("register default stdout adapter: %w", err)
		}
	}

	for _, a := range cfg.Logging.Adapters {
		if !a.Enabled {
			continue
		}
		adapter, err := factory.CreateAdapter(AdapterConfig{
			Name:    a.Name,
			Type:    a.Type,
			Enabled: a.Enabled,
			Options: a.Options,
		})
		if err != nil {
			return fmt.Errorf("create adapter %q: %w", a.Name, err)
		}
		if err := logger.AddAdapter(adapter); err != nil {
			return fmt.Errorf("register adapter %q: %w", a.Name, err)
		}
	}

	globalMu.Lock()
	globalLogger = logger
	globalMu.Unlock()

	return nil
}

// GetGlobalLogger returns the process-wide logger, falling back to a
// stdout-only logger if InitializeLogging was never called (e.g. in tests).
func GetGlobalLogger() Logger {
	globalMu.RLock()
	l := globalLogger
	globalMu.RUnlock()
	if l != nil {
		return l
	}

	fallback := NewMultiLogger()
	_ = fallback.AddAdapter(NewStdoutAdapter("stdout", "text"))
	return fallback
}

// CloseLogging flushes and closes every adapter on the global logger.
func CloseLogging() error {
	globalMu.RLock()
	l := globalLogger
	globalMu.RUnlock()
	if l == nil {
		return nil
	}
	return l.Close()
}
