package main

import (
	"io"
	"log/slog"

	"github.com/soyunomas/deduplicator/internal/config"
	"github.com/soyunomas/deduplicator/internal/lib/logger/handlers/slogpretty"
)

// setupLogger: en local un handler coloreado que solo muestra avisos (la
// consola ya informa de cada archivo), en dev/prod JSON para máquinas.
func setupLogger(env string, verbose bool, out io.Writer) *slog.Logger {
	var log *slog.Logger

	switch env {
	case config.EnvDev:
		log = slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case config.EnvProd:
		log = slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		log = setupPrettySlog(verbose, out)
	}
	return log
}

func setupPrettySlog(verbose bool, out io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: level,
		},
	}

	handler := opts.NewPrettyHandler(out)

	return slog.New(handler)
}
