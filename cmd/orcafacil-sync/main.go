package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/orcafacil/internal/app"
	"github.com/dmitrijs2005/orcafacil/internal/config"
	"github.com/dmitrijs2005/orcafacil/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("%v", err)
	}

	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		log.Fatalf("%v", err)
	}

	a, err := app.NewApp(ctx, cfg, logger, os.Stdout)
	if err != nil {
		log.Fatalf("%v", err)
	}

	runErr := a.Run(ctx)
	if err := a.Close(); err != nil {
		logger.Warn(ctx, "close failed", "error", err)
	}
	if runErr != nil {
		log.Fatalf("%v", runErr)
	}
}
