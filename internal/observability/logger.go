package observability

import (
	"github.com/danmuck/barcoded/internal/logging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger configures the runtime logging profile and tags every line with
// app.
func InitLogger(app string) zerolog.Logger {
	logging.ConfigureRuntime()
	return tagApp(app)
}

// InitLoggerWith is InitLogger with the level and format read from a config
// file.
func InitLoggerWith(app, level, format string) zerolog.Logger {
	logging.ApplySettings(level, format)
	return tagApp(app)
}

func tagApp(app string) zerolog.Logger {
	logger := log.Logger.With().Str("app", app).Logger()
	log.Logger = logger
	return logger
}
