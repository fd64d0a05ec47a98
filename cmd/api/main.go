package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/markdave123-py/Careerlyst/internal/app"
	"github.com/markdave123-py/Careerlyst/internal/config"
	"github.com/markdave123-py/Careerlyst/internal/logging"
)

func main() {
	// Handle SIGINT/SIGTERM for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadConfig()
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	application, err := app.NewApp(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("startup failed")
	}
	defer application.Close()

	log.Info("Careerlyst research API is running")
	if err := application.Run(ctx); err != nil {
		log.WithError(err).Error("server stopped with error")
		return
	}
	log.Info("shut down cleanly")
}
