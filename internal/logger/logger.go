// Package logger builds the zerolog logger shared by the igdl packages.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Options configures the logger.
type Options struct {
	// Level is a zerolog level name: trace, debug, info, warn, error.
	// Default: info
	Level string

	// Output is where log lines are written.
	// Default: os.Stderr
	Output io.Writer

	// JSON disables the human-readable console format.
	JSON bool
}

// New returns a logger for opts.
func New(opts Options) (zerolog.Logger, error) {
	if opts.Output == nil {
		opts.Output = os.Stderr
	}

	level := zerolog.InfoLevel
	if s := strings.TrimSpace(opts.Level); s != "" {
		l, err := zerolog.ParseLevel(strings.ToLower(s))
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		level = l
	}

	out := opts.Output
	if !opts.JSON {
		out = zerolog.ConsoleWriter{Out: opts.Output, TimeFormat: time.TimeOnly}
	}

	return zerolog.New(out).Level(level).With().Timestamp().Str("app", "igdl").Logger(), nil
}
