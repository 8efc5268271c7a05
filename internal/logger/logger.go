package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds the application logger. Development gets colorized console
// output; production writes JSON lines.
func New(level string, production bool) zerolog.Logger {
	return newWithWriter(level, production, os.Stderr)
}

func newWithWriter(level string, production bool, out io.Writer) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	w := out
	if !production {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	// Add a hook to include the caller's file and line number
	return zerolog.New(w).Level(lvl).With().Timestamp().Caller().Logger()
}
