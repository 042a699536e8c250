package observability

import (
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcncl/pdxquery/internal/errors"
)

// InitLogger builds the process logger and installs it as the global
// zerolog logger. Diagnostics must never share stdout with protocol output,
// so callers pass stderr.
func InitLogger(app, level, format string, w io.Writer) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), errors.NewInvalidArgumentError(fmt.Sprintf("invalid log level '%s'", level), err)
	}

	var output io.Writer
	switch format {
	case "json":
		output = w
	case "console", "":
		output = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
		}
	default:
		return zerolog.Nop(), errors.NewInvalidArgumentError(fmt.Sprintf("unknown log format '%s'", format), nil)
	}

	logger := zerolog.New(output).Level(lvl).With().Timestamp().Str("app", app).Logger()
	log.Logger = logger
	return logger, nil
}
