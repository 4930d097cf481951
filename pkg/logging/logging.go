package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup configures the global zerolog logger.
// format "json" writes structured lines; anything else uses the console writer.
// Unknown levels fall back to info.
func Setup(level, format string) {
	setup(os.Stdout, level, format)
}

func setup(out io.Writer, level, format string) {
	// Timestamp format
	zerolog.TimeFieldFormat = time.RFC3339

	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	w := out
	if format != "json" {
		w = zerolog.NewConsoleWriter(func(cw *zerolog.ConsoleWriter) {
			cw.Out = out
			cw.TimeFormat = time.RFC3339
		})
	}

	log.Logger = zerolog.New(w).With().Timestamp().Logger()
	// log.Ctx falls back to this when no request logger is attached.
	zerolog.DefaultContextLogger = &log.Logger
}
