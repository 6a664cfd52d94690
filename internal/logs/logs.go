// Package logs builds the process-wide zerolog logger.
package logs

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// New returns the root logger. Pretty selects the human-readable console
// writer for interactive use; otherwise lines are emitted as JSON.
func New(pretty bool) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	var writer io.Writer = os.Stdout
	if pretty {
		writer = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
	}

	logger := zerolog.New(writer).With().
		Timestamp().
		Logger()

	log.Logger = logger

	return logger
}
