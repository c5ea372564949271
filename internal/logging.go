package internal

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// LogConfig captures options for the global logger.
type LogConfig struct {
	Level  string    // optional log level ("debug", "info", etc.)
	Output io.Writer // optional writer (defaults to os.Stdout)
}

var (
	logOnce sync.Once
	baseLog zerolog.Logger
)

// ConfigureLogging initialises the global zerolog logger exactly once.
func ConfigureLogging(cfg LogConfig) {
	logOnce.Do(func() {
		level := zerolog.InfoLevel
		if cfg.Level != "" {
			if parsed, err := zerolog.ParseLevel(cfg.Level); err == nil {
				level = parsed
			}
		} else if env := os.Getenv("NEARCAST_LOG_LEVEL"); env != "" {
			if parsed, err := zerolog.ParseLevel(env); err == nil {
				level = parsed
			}
		}
		zerolog.SetGlobalLevel(level)
		zerolog.TimeFieldFormat = time.RFC3339

		writer := cfg.Output
		if writer == nil {
			writer = os.Stdout
		}

		baseLog = zerolog.New(writer).With().
			Timestamp().
			Str("service", "nearcast").
			Logger()
	})
}

// Logger returns a child logger annotated with the given component name.
func Logger(component string) zerolog.Logger {
	ConfigureLogging(LogConfig{})
	return baseLog.With().Str("component", component).Logger()
}
