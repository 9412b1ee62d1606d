package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dkovacevic/dossier-migrate/cmd"
	"github.com/dkovacevic/dossier-migrate/internal/conf"
	"github.com/dkovacevic/dossier-migrate/internal/logging"
)

func main() {
	settings, err := conf.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading configuration: %v\n", err)
		os.Exit(1)
	}

	level := logging.ParseLevel(settings.Log.Level)
	if settings.Debug {
		level = logging.ParseLevel("debug")
	}
	logging.Init()
	logging.SetLevel(level)

	if settings.Log.File != "" {
		fileLogger, closeLog, err := logging.NewFileLogger(settings.Log.File, "dossier-migrate", level)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error opening log file: %v\n", err)
			os.Exit(1)
		}
		defer closeLog() //nolint:errcheck // best-effort flush on shutdown
		slog.SetDefault(fileLogger)
	}

	// A single cancellation signal threads through every phase; Ctrl-C aborts
	// in-flight repository and database calls.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := cmd.RootCommand(settings)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
