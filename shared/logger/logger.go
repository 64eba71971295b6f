package logger

import (
	"os"

	"github.com/rs/zerolog"
)

// New creates the service-wide logger. Output is JSON unless pretty is
// requested, which switches to the human-readable console writer.
func New(service string, pretty bool) *zerolog.Logger {
	var out = zerolog.New(os.Stderr)
	if pretty {
		out = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	log := out.With().
		Timestamp().
		Str("service", service).
		Logger()

	return &log
}
