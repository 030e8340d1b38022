package observability

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogFormat selects the logger's output encoding.
type LogFormat string

const (
	LogFormatJSON    LogFormat = "json"
	LogFormatConsole LogFormat = "console"
)

// LoggerConfig configures the process-wide structured logger.
type LoggerConfig struct {
	Level  zerolog.Level
	Format LogFormat
	Output io.Writer
}

// InitGlobalLogger wires zerolog's package-global logger, used by the
// packages that log via github.com/rs/zerolog/log (spec.md's
// ambient logging concern, carried from the teacher pack's
// jhkimqd-chaos-utils logging idiom).
func InitGlobalLogger(cfg LoggerConfig) {
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	var output io.Writer = cfg.Output
	if cfg.Format == LogFormatConsole {
		output = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: time.RFC3339}
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger().Level(cfg.Level)
	zerolog.SetGlobalLevel(cfg.Level)
}
